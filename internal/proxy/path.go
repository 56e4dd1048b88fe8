// Package proxy implements the Transfer Proxy (C7): an HTTP surface
// over a local base directory, serving listings and compressed
// downloads directly, and brokering S3 presigned URLs for content the
// proxy itself doesn't hold.
package proxy

import (
	"path/filepath"
	"strings"

	"github.com/xzsean666/marketfeed/internal/errors"
)

// validatePath rejects any requested path containing "..", "./" or "\."
// anywhere, then resolves it against baseDir and rejects anything that
// escapes it after `.`/`..` cleaning. When the target exists, its
// symlink-resolved form must also stay under the symlink-resolved base.
func validatePath(baseDir, requested string) (string, error) {
	if strings.Contains(requested, "..") || strings.Contains(requested, "./") || strings.Contains(requested, `\.`) {
		return "", errors.PathTraversal
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(absBase, requested)
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}

	if resolved != absBase && !strings.HasPrefix(resolved, absBase+string(filepath.Separator)) {
		return "", errors.PathTraversal
	}
	if realPath, err := filepath.EvalSymlinks(resolved); err == nil {
		realBase, err := filepath.EvalSymlinks(absBase)
		if err != nil {
			return "", err
		}
		if realPath != realBase && !strings.HasPrefix(realPath, realBase+string(filepath.Separator)) {
			return "", errors.PathTraversal
		}
	}
	return resolved, nil
}
