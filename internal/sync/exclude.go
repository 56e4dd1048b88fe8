package sync

import "strings"

// matchesExclude reports whether relPath matches any of patterns. Each
// pattern supports the same four shapes as the original sync helper's
// glob-lite matching: "*suffix", "prefix*", "*middle*", and a bare
// substring match with no wildcard at all.
func matchesExclude(relPath string, patterns []string) bool {
	for _, p := range patterns {
		if matchesOne(relPath, p) {
			return true
		}
	}
	return false
}

func matchesOne(relPath, pattern string) bool {
	hasPrefixStar := strings.HasPrefix(pattern, "*")
	hasSuffixStar := strings.HasSuffix(pattern, "*")

	switch {
	case hasPrefixStar && hasSuffixStar && len(pattern) >= 2:
		return strings.Contains(relPath, pattern[1:len(pattern)-1])
	case hasPrefixStar:
		return strings.HasSuffix(relPath, pattern[1:])
	case hasSuffixStar:
		return strings.HasPrefix(relPath, pattern[:len(pattern)-1])
	default:
		return strings.Contains(relPath, pattern)
	}
}
