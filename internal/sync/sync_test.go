package sync

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzsean666/marketfeed/internal/catalog"
	"github.com/xzsean666/marketfeed/internal/repository/objectstore"
)

// fakeRepo is an in-memory ObjectRepository double standing in for S3/GCS
// in the sync engine tests.
type fakeRepo struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeRepo() *fakeRepo { return &fakeRepo{objects: make(map[string][]byte)} }

func (f *fakeRepo) Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return key, nil
}

func (f *fakeRepo) Download(ctx context.Context, key string, dest io.WriterAt, quiet bool) (int64, error) {
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return 0, os.ErrNotExist
	}
	n, err := dest.WriteAt(data, 0)
	return int64(n), err
}

func (f *fakeRepo) Exists(ctx context.Context, key string) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return ok, int64(len(data)), nil
}

func (f *fakeRepo) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	delete(f.objects, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeRepo) DeleteBatch(ctx context.Context, keys []string) error {
	for _, k := range keys {
		_ = f.Delete(ctx, k)
	}
	return nil
}

func (f *fakeRepo) ListPrefix(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []objectstore.ObjectInfo
	for k, v := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, objectstore.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeRepo) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://example.invalid/" + key, nil
}

func (f *fakeRepo) GetBucketName() string  { return "fake-bucket" }
func (f *fakeRepo) GetStorageType() string { return "fake" }

func newTestEngine(t *testing.T, opts Options) (*Engine, *fakeRepo, string) {
	t.Helper()
	localRoot := t.TempDir()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repo := newFakeRepo()
	engine := &Engine{
		Repo:      repo,
		Catalog:   catalog.NewSyncCatalog(store),
		LocalRoot: localRoot,
		Opts:      opts,
	}
	return engine, repo, localRoot
}

// Property 9 — FS idempotence: running L→R twice with no changes
// produces uploaded=0, deleted=0, errors=0 on the second pass.
func TestEngine_LocalToRemoteIdempotent(t *testing.T) {
	engine, _, localRoot := newTestEngine(t, Options{Direction: LocalToRemote, MaxParallel: 4})
	require.NoError(t, os.WriteFile(filepath.Join(localRoot, "a.txt"), []byte("hello"), 0644))

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Uploaded)
	assert.Equal(t, 0, first.Errors)

	second, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Uploaded)
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, 0, second.Errors)
	assert.Equal(t, 1, second.Skipped)
}

// E6 — FS bidirectional with exclude: .git/HEAD is never transferred in
// either direction, and compression suffixes remote keys with .zst.
func TestEngine_BidirectionalWithExclude(t *testing.T) {
	engine, repo, localRoot := newTestEngine(t, Options{
		Direction:       Bidirectional,
		ExcludePatterns: []string{".git/"},
		UseCompression:  true,
		MaxParallel:     4,
	})

	require.NoError(t, os.WriteFile(filepath.Join(localRoot, "a.txt"), []byte("local content"), 0644))

	remoteData, err := compressZstd([]byte("remote content"))
	require.NoError(t, err)
	repo.objects["b.txt.zst"] = remoteData
	gitData, err := compressZstd([]byte("ref: refs/heads/main"))
	require.NoError(t, err)
	repo.objects[".git/HEAD.zst"] = gitData

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Errors)

	assert.FileExists(t, filepath.Join(localRoot, "b.txt"))
	assert.NoFileExists(t, filepath.Join(localRoot, ".git", "HEAD"))

	_, uploadedLocal := repo.objects["a.txt.zst"]
	assert.True(t, uploadedLocal)

	downloaded, err := os.ReadFile(filepath.Join(localRoot, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "remote content", string(downloaded))

	uploadedBytes, err := decompressZstd(repo.objects["a.txt.zst"])
	require.NoError(t, err)
	assert.Equal(t, []byte("local content"), uploadedBytes)
}

func TestMatchesExclude(t *testing.T) {
	assert.True(t, matchesExclude(".git/HEAD", []string{".git/"}))
	assert.True(t, matchesExclude("build/out.o", []string{"*.o"}))
	assert.True(t, matchesExclude("tmp_scratch", []string{"tmp_*"}))
	assert.False(t, matchesExclude("a.txt", []string{".git/"}))
}
