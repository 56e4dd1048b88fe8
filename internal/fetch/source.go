// Package fetch implements the Fetcher component (C1): producing, for a
// (source, date) pair, the raw JSONL shard bytes covering that UTC day,
// from a local directory, an SSH-tunneled host, or an HTTP server with an
// object-store presign fallback.
package fetch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xzsean666/marketfeed/internal/logging"
)

// Shard is one downloaded JSONL file, already decompressed.
type Shard struct {
	Name string
	Data []byte
}

// Source is implemented by each of the three fetcher variants.
type Source interface {
	// Label identifies this source for merger tagging and log lines, e.g.
	// "local-1", "ssh-2-host.example.com", "http-1-https://api.example.com".
	Label() string
	// List enumerates the .jsonl shard names available for date.
	List(ctx context.Context, date time.Time) ([]string, error)
	// Fetch downloads and decompresses a single named shard.
	Fetch(ctx context.Context, date time.Time, name string) ([]byte, error)
}

var log = logging.WithComponent("fetch")

// FetchAll lists then downloads every shard from src in parallel (bounded
// by concurrency), matching the "one task per shard download, with a
// progress counter" fan-out the original fetchers use. Results preserve
// listing order regardless of completion order, since the merger only
// cares about source order, not intra-source shard order.
func FetchAll(ctx context.Context, src Source, date time.Time, concurrency int) ([]Shard, error) {
	names, err := src.List(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list shards for %s: %w", src.Label(), err)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Shard, len(names))
	errs := make([]error, len(names))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var completed int64
	var mu sync.Mutex

	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := src.Fetch(ctx, date, name)
			if err != nil {
				errs[i] = fmt.Errorf("fetch %s/%s: %w", src.Label(), name, err)
				return
			}
			decoded, err := DecompressIfNeeded(data)
			if err != nil {
				errs[i] = fmt.Errorf("decompress %s/%s: %w", src.Label(), name, err)
				return
			}
			results[i] = Shard{Name: name, Data: decoded}

			mu.Lock()
			completed++
			n := completed
			mu.Unlock()
			log.Debugf("%s: %d/%d shards downloaded", src.Label(), n, len(names))
		}(i, name)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// dayDir builds the <YYYY>/<MM>/<DD> partition suffix a fetcher appends to
// its configured base path.
func dayDir(date time.Time) string {
	return fmt.Sprintf("%04d/%02d/%02d", date.Year(), date.Month(), date.Day())
}
