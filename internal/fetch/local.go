package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalSource enumerates .jsonl shards under a local directory, grounded
// on the original job runner's local_files handling (fs::read_dir +
// fs::read_to_string, non-recursive).
type LocalSource struct {
	label    string
	basePath string
}

// NewLocalSource returns a Source rooted at basePath, labeled for the
// given index (1-based, matching "local-<idx+1>" in the job runner).
func NewLocalSource(index int, basePath string) *LocalSource {
	return &LocalSource{label: fmt.Sprintf("local-%d", index), basePath: basePath}
}

func (s *LocalSource) Label() string { return s.label }

func (s *LocalSource) dayDirPath(date time.Time) string {
	return filepath.Join(s.basePath, dayDir(date))
}

func (s *LocalSource) List(ctx context.Context, date time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.dayDirPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".jsonl") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *LocalSource) Fetch(ctx context.Context, date time.Time, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dayDirPath(date), name))
}
