package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/klauspost/compress/zstd"
	"github.com/xzsean666/marketfeed/internal/catalog"
	"github.com/xzsean666/marketfeed/internal/domain"
	"github.com/xzsean666/marketfeed/internal/repository/objectstore"
	"golang.org/x/sync/errgroup"
)

const compressedSuffix = ".zst"

// Engine runs one Folder Sync job between a local root and a single
// remote prefix, reconciling state through the Sync Catalog.
type Engine struct {
	Repo         objectstore.ObjectRepository
	Catalog      *catalog.SyncCatalog
	LocalRoot    string
	RemotePrefix string
	Opts         Options
}

// Run executes the sync per Opts.Direction.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	switch e.Opts.Direction {
	case LocalToRemote:
		return e.runLocalToRemote(ctx, e.Opts.Delete)
	case RemoteToLocal:
		return e.runRemoteToLocal(ctx, e.Opts.Delete)
	case Bidirectional:
		first, err := e.runLocalToRemote(ctx, e.Opts.Delete)
		if err != nil {
			return first, err
		}
		// Bi's second pass never deletes: a file the first pass just
		// created on one side must not be deleted by the other.
		second, err := e.runRemoteToLocal(ctx, false)
		first.merge(second)
		return first, err
	default:
		return Stats{}, fmt.Errorf("unknown sync direction %q", e.Opts.Direction)
	}
}

func (e *Engine) remoteKey(relPath string) string {
	key := path.Join(e.RemotePrefix, filepath.ToSlash(relPath))
	if e.Opts.UseCompression {
		key += compressedSuffix
	}
	return key
}

func (e *Engine) localPath(relPath string) string {
	return filepath.Join(e.LocalRoot, filepath.FromSlash(relPath))
}

func (e *Engine) runLocalToRemote(ctx context.Context, withDelete bool) (Stats, error) {
	files, err := scanLocal(e.LocalRoot, e.Opts.ExcludePatterns)
	if err != nil {
		return Stats{}, fmt.Errorf("scan local root: %w", err)
	}

	var stats Stats
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if e.Opts.MaxParallel > 0 {
		g.SetLimit(e.Opts.MaxParallel)
	}

	seen := make(map[string]bool, len(files))
	for _, lf := range files {
		lf := lf
		seen[lf.RelativePath] = true
		g.Go(func() error {
			result, err := e.uploadOne(gctx, lf)
			mu.Lock()
			stats.merge(result)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if withDelete {
		deleted, err := e.deleteRemoteNotIn(ctx, seen)
		stats.merge(deleted)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// uploadOne uploads lf if it is new, changed, or Force is set. Unchanged
// files (matching catalog's content hash) are skipped.
func (e *Engine) uploadOne(ctx context.Context, lf localFile) (Stats, error) {
	var stats Stats
	stats.Scanned = 1

	hash, err := hashFile(lf.AbsPath)
	if err != nil {
		stats.Errors = 1
		log.Warnf("hash %s: %v", lf.RelativePath, err)
		return stats, fmt.Errorf("hash %s: %w", lf.RelativePath, err)
	}

	if !e.Opts.Force {
		if entry, ok, err := e.Catalog.Get(lf.RelativePath); err == nil && ok && entry.ContentHash == hash {
			stats.Skipped = 1
			return stats, nil
		}
	}

	// Before uploading, consult the remote directly: an object already
	// there with a matching uncompressed size means some earlier run (or
	// a catalog that was cleared/lost) already placed it, so record the
	// catalog row from observed remote state instead of re-uploading.
	if !e.Opts.Force && !e.Opts.UseCompression {
		if exists, size, err := e.Repo.Exists(ctx, e.remoteKey(lf.RelativePath)); err == nil && exists && size == lf.SizeBytes {
			log.Debugf("%s: already present remotely, recording catalog row without upload", lf.RelativePath)
			if !e.Opts.DryRun {
				if err := e.Catalog.Put(domain.SyncEntry{
					RelativePath:  lf.RelativePath,
					SizeBytes:     lf.SizeBytes,
					MtimeUnixSecs: lf.MtimeUnix,
					ContentHash:   hash,
					LastSyncSecs:  time.Now().Unix(),
				}); err != nil {
					stats.Errors = 1
					return stats, fmt.Errorf("catalog put %s: %w", lf.RelativePath, err)
				}
			}
			stats.Skipped = 1
			return stats, nil
		}
	}

	if e.Opts.DryRun {
		stats.Uploaded = 1
		stats.BytesUploaded = lf.SizeBytes
		return stats, nil
	}

	data, err := os.ReadFile(lf.AbsPath)
	if err != nil {
		stats.Errors = 1
		return stats, fmt.Errorf("read %s: %w", lf.RelativePath, err)
	}
	if e.Opts.UseCompression {
		data, err = compressZstd(data)
		if err != nil {
			stats.Errors = 1
			return stats, fmt.Errorf("compress %s: %w", lf.RelativePath, err)
		}
	}

	if _, err := e.Repo.Upload(ctx, e.remoteKey(lf.RelativePath), bytes.NewReader(data), e.Opts.Quiet); err != nil {
		stats.Errors = 1
		log.Warnf("upload %s: %v", lf.RelativePath, err)
		return stats, fmt.Errorf("upload %s: %w", lf.RelativePath, err)
	}

	if err := e.Catalog.Put(domain.SyncEntry{
		RelativePath:  lf.RelativePath,
		SizeBytes:     lf.SizeBytes,
		MtimeUnixSecs: lf.MtimeUnix,
		ContentHash:   hash,
		LastSyncSecs:  time.Now().Unix(),
	}); err != nil {
		stats.Errors = 1
		return stats, fmt.Errorf("catalog put %s: %w", lf.RelativePath, err)
	}

	stats.Uploaded = 1
	stats.BytesUploaded = int64(len(data))
	return stats, nil
}

func (e *Engine) runRemoteToLocal(ctx context.Context, withDelete bool) (Stats, error) {
	objects, err := e.Repo.ListPrefix(ctx, e.RemotePrefix)
	if err != nil {
		return Stats{}, fmt.Errorf("list remote prefix %s: %w", e.RemotePrefix, err)
	}

	var stats Stats
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if e.Opts.MaxParallel > 0 {
		g.SetLimit(e.Opts.MaxParallel)
	}

	seen := make(map[string]bool, len(objects))
	for _, obj := range objects {
		rel := e.relativeFromKey(obj.Key)
		if rel == "" || matchesExclude(rel, e.Opts.ExcludePatterns) {
			continue
		}
		obj := obj
		seen[rel] = true
		g.Go(func() error {
			result, err := e.downloadOne(gctx, obj, rel)
			mu.Lock()
			stats.merge(result)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if withDelete {
		deleted, err := e.deleteLocalNotIn(seen)
		stats.merge(deleted)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (e *Engine) relativeFromKey(key string) string {
	prefix := e.RemotePrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	rel := strings.TrimPrefix(key, prefix)
	if e.Opts.UseCompression {
		if !strings.HasSuffix(rel, compressedSuffix) {
			return ""
		}
		rel = strings.TrimSuffix(rel, compressedSuffix)
	}
	return rel
}

func (e *Engine) downloadOne(ctx context.Context, obj objectstore.ObjectInfo, rel string) (Stats, error) {
	var stats Stats
	stats.Scanned = 1

	localPath := e.localPath(rel)
	if !e.Opts.Force {
		if existing, err := hashFile(localPath); err == nil {
			if entry, ok, cerr := e.Catalog.Get(rel); cerr == nil && ok && entry.ContentHash == existing {
				stats.Skipped = 1
				return stats, nil
			}
		}
	}

	if e.Opts.DryRun {
		stats.Downloaded = 1
		stats.BytesDownloaded = obj.Size
		return stats, nil
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0775); err != nil {
		stats.Errors = 1
		return stats, fmt.Errorf("mkdir for %s: %w", rel, err)
	}

	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0664)
	if err != nil {
		stats.Errors = 1
		return stats, fmt.Errorf("create %s: %w", localPath, err)
	}

	buf := manager.NewWriteAtBuffer([]byte{})
	_, err = e.Repo.Download(ctx, obj.Key, buf, e.Opts.Quiet)
	if err != nil {
		f.Close()
		stats.Errors = 1
		log.Warnf("download %s: %v", obj.Key, err)
		return stats, fmt.Errorf("download %s: %w", obj.Key, err)
	}
	data := buf.Bytes()
	if e.Opts.UseCompression {
		data, err = decompressZstd(data)
		if err != nil {
			f.Close()
			stats.Errors = 1
			return stats, fmt.Errorf("decompress %s: %w", obj.Key, err)
		}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		stats.Errors = 1
		return stats, fmt.Errorf("write %s: %w", localPath, err)
	}
	if err := f.Close(); err != nil {
		stats.Errors = 1
		return stats, fmt.Errorf("close %s: %w", localPath, err)
	}

	hash, err := hashFile(localPath)
	if err != nil {
		stats.Errors = 1
		return stats, fmt.Errorf("hash %s: %w", localPath, err)
	}
	if err := e.Catalog.Put(domain.SyncEntry{
		RelativePath:  rel,
		SizeBytes:     int64(len(data)),
		MtimeUnixSecs: time.Now().Unix(),
		ContentHash:   hash,
		RemoteEtag:    obj.ETag,
		LastSyncSecs:  time.Now().Unix(),
	}); err != nil {
		stats.Errors = 1
		return stats, fmt.Errorf("catalog put %s: %w", rel, err)
	}

	stats.Downloaded = 1
	stats.BytesDownloaded = int64(len(data))
	return stats, nil
}

func (e *Engine) deleteRemoteNotIn(ctx context.Context, localRel map[string]bool) (Stats, error) {
	var stats Stats
	objects, err := e.Repo.ListPrefix(ctx, e.RemotePrefix)
	if err != nil {
		return stats, fmt.Errorf("list for delete: %w", err)
	}
	var toDelete []string
	for _, obj := range objects {
		rel := e.relativeFromKey(obj.Key)
		if rel == "" || localRel[rel] {
			continue
		}
		toDelete = append(toDelete, obj.Key)
	}
	stats.Deleted = len(toDelete)
	if e.Opts.DryRun || len(toDelete) == 0 {
		return stats, nil
	}
	if err := e.Repo.DeleteBatch(ctx, toDelete); err != nil {
		stats.Errors++
		log.Warnf("delete remote stragglers: %v", err)
		return stats, fmt.Errorf("delete remote stragglers: %w", err)
	}
	for _, key := range toDelete {
		_ = e.Catalog.Delete(e.relativeFromKey(key))
	}
	return stats, nil
}

func (e *Engine) deleteLocalNotIn(remoteRel map[string]bool) (Stats, error) {
	var stats Stats
	files, err := scanLocal(e.LocalRoot, e.Opts.ExcludePatterns)
	if err != nil {
		return stats, fmt.Errorf("scan for delete: %w", err)
	}
	for _, lf := range files {
		if remoteRel[lf.RelativePath] {
			continue
		}
		stats.Deleted++
		if e.Opts.DryRun {
			continue
		}
		if err := os.Remove(lf.AbsPath); err != nil {
			stats.Errors++
			log.Warnf("delete local %s: %v", lf.RelativePath, err)
			continue
		}
		_ = e.Catalog.Delete(lf.RelativePath)
	}
	return stats, nil
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
