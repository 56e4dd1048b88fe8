package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzsean666/marketfeed/internal/catalog"
	"github.com/xzsean666/marketfeed/internal/repository/objectstore"
)

// fakeRepo is an in-memory ObjectRepository double for exercising the
// presign broker protocol without a real backend.
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

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	baseDir := t.TempDir()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := NewServer(baseDir, newFakeRepo(), catalog.NewUploadCatalog(store))
	return srv, baseDir
}

// Property 8 — TP path safety.
func TestValidatePath_RejectsTraversal(t *testing.T) {
	base := t.TempDir()
	cases := []string{"../etc/passwd", "./secret", `a\.b`, "a/../../b"}
	for _, c := range cases {
		_, err := validatePath(base, c)
		assert.Error(t, err, "expected traversal rejection for %q", c)
	}
}

func TestValidatePath_AllowsWithinBase(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "sub"), 0755))
	resolved, err := validatePath(base, "sub")
	require.NoError(t, err)
	absBase, _ := filepath.Abs(base)
	assert.Equal(t, filepath.Join(absBase, "sub"), resolved)
}

func TestHandleDownload_RejectsTraversalWithoutOpeningFile(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/download?file=../outside", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// E5 — TP upload lifecycle.
func TestGetS3URL_Lifecycle(t *testing.T) {
	srv, baseDir := newTestServer(t)
	filePath := filepath.Join(baseDir, "a.parquet")
	require.NoError(t, os.WriteFile(filePath, []byte("parquet bytes"), 0644))

	// First call: no prior record -> pending, no url.
	w1 := httptest.NewRecorder()
	srv.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/get_s3_url?file=a.parquet", nil))
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Contains(t, w1.Body.String(), `"status":"pending"`)
	assert.NotContains(t, w1.Body.String(), `"url"`)

	// Wait for the detached upload to complete.
	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get_s3_url?file=a.parquet", nil))
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), `"status":"completed"`)
	}, 2*time.Second, 10*time.Millisecond)

	// Second call after completion: completed with a presigned url.
	w2 := httptest.NewRecorder()
	srv.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/get_s3_url?file=a.parquet", nil))
	assert.Contains(t, w2.Body.String(), `"status":"completed"`)
	assert.Contains(t, w2.Body.String(), `"url"`)

	// Third call with update=true: forces a fresh pending cycle.
	w3 := httptest.NewRecorder()
	srv.ServeHTTP(w3, httptest.NewRequest(http.MethodGet, "/get_s3_url?file=a.parquet&update=true", nil))
	assert.Contains(t, w3.Body.String(), `"status":"pending"`)
}
