// Package orchestrator wires the Fetcher, Merger, and Columnar Writer
// together into one MP job run (C4): pick the merger variant for a data
// type, ingest every configured source in the fixed local -> ssh -> http
// order, gap-fill the day, then fan out one parallel write per symbol.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xzsean666/marketfeed/internal/columnar"
	"github.com/xzsean666/marketfeed/internal/config"
	"github.com/xzsean666/marketfeed/internal/domain"
	"github.com/xzsean666/marketfeed/internal/errors"
	"github.com/xzsean666/marketfeed/internal/fetch"
	"github.com/xzsean666/marketfeed/internal/logging"
	"github.com/xzsean666/marketfeed/internal/merge"

	"golang.org/x/sync/errgroup"
)

var log = logging.WithComponent("orchestrator")

// Result summarizes one completed run, for the CLI layer to report.
type Result struct {
	DataType     string
	Date         time.Time
	Symbols      int
	FilesWritten []string
}

const fetchConcurrency = 8

// Run executes one full MP job for dataSource on date, writing columnar
// output under out.
func Run(ctx context.Context, dataSource config.DataSourceConfig, out config.OutputConfig, date time.Time) (*Result, error) {
	merger := newMerger(dataSource.DataType)

	sources, err := buildSources(dataSource)
	if err != nil {
		return nil, err
	}
	defer closeSources(sources)

	if err := probeHTTPSources(ctx, sources); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ProxyProbeFailed, err)
	}

	for _, src := range sources {
		shards, err := fetch.FetchAll(ctx, src, date, fetchConcurrency)
		if err != nil {
			log.Warnf("source %s unreachable, skipping: %v", src.Label(), err)
			continue
		}
		for _, shard := range shards {
			added, skipped := merger.AddJSONL(src.Label(), shard.Data)
			log.Debugf("%s/%s: %d added, %d skipped", src.Label(), shard.Name, added, skipped)
		}
	}

	series := merger.Series()
	if series.IsEmpty() {
		return nil, errors.EmptyAfterIngest
	}

	if err := merge.ApplyGapFill(ctx, series, date); err != nil {
		return nil, fmt.Errorf("gap-fill: %w", err)
	}

	files, err := writeSymbols(ctx, series, out, date)
	if err != nil {
		return nil, err
	}

	return &Result{
		DataType:     dataSource.DataType,
		Date:         date,
		Symbols:      len(series.Symbols()),
		FilesWritten: files,
	}, nil
}

func newMerger(dataType string) merge.Merger {
	if dataType == "mark-price" {
		return merge.NewMarkPriceMerger()
	}
	return merge.NewGenericMerger()
}

func buildSources(ds config.DataSourceConfig) ([]fetch.Source, error) {
	var sources []fetch.Source
	for i, local := range ds.LocalFiles {
		sources = append(sources, fetch.NewLocalSource(i+1, local.BasePath))
	}
	for i, sshCfg := range ds.SSHServers {
		sources = append(sources, fetch.NewSSHSource(i+1, sshCfg))
	}
	for i, httpCfg := range ds.HTTPServers {
		src, err := fetch.NewHTTPSource(i+1, httpCfg)
		if err != nil {
			return nil, fmt.Errorf("configure http source %d: %w", i+1, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func probeHTTPSources(ctx context.Context, sources []fetch.Source) error {
	for _, src := range sources {
		if httpSrc, ok := src.(*fetch.HTTPSource); ok {
			if err := httpSrc.CheckProxyAvailability(ctx); err != nil {
				return fmt.Errorf("%s: %w", httpSrc.Label(), err)
			}
		}
	}
	return nil
}

func closeSources(sources []fetch.Source) {
	for _, src := range sources {
		if sshSrc, ok := src.(*fetch.SSHSource); ok {
			if err := sshSrc.Close(); err != nil {
				log.Warnf("closing %s: %v", sshSrc.Label(), err)
			}
		}
	}
}

// writeSymbols spawns one parallel write per symbol, each named
// "<output.Name>-<symbol>", splitting into ceil(n/batch_size) files when
// output.BatchSize is set.
func writeSymbols(ctx context.Context, series *domain.DaySeries, out config.OutputConfig, date time.Time) ([]string, error) {
	batchSize := 0
	if out.BatchSize != nil {
		batchSize = *out.BatchSize
	}

	g, _ := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var files []string

	for _, symbol := range series.Symbols() {
		symbol := symbol
		bucket, _ := series.Bucket(symbol)
		rows := bucket.Rows()
		if len(rows) == 0 {
			continue
		}
		g.Go(func() error {
			writerName := fmt.Sprintf("%s-%s", out.Name, symbol)
			w := columnar.New(columnar.Config{
				BasePath:   out.Path,
				Name:       writerName,
				Date:       date,
				BatchSize:  batchSize,
				UseTempDir: out.UseTempDir,
			})
			w.WriteRows(rows)
			if err := w.Flush(); err != nil {
				return fmt.Errorf("flush %s: %w", writerName, err)
			}
			written := w.Close()

			mu.Lock()
			files = append(files, written...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
