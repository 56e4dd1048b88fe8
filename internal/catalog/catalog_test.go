package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzsean666/marketfeed/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutGetDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	val, ok, err := store.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, store.Delete([]byte("k")))
	_, ok, err = store.Get([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GetMissingKeyIsNotAnError(t *testing.T) {
	store := openTestStore(t)
	_, ok, err := store.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncCatalog_RoundTrip(t *testing.T) {
	sc := NewSyncCatalog(openTestStore(t))

	entry := domain.SyncEntry{RelativePath: "a/b.txt", SizeBytes: 10, ContentHash: "abc"}
	require.NoError(t, sc.Put(entry))

	got, ok, err := sc.Get("a/b.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)

	require.NoError(t, sc.Delete("a/b.txt"))
	_, ok, err = sc.Get("a/b.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncCatalog_IterAll(t *testing.T) {
	sc := NewSyncCatalog(openTestStore(t))
	require.NoError(t, sc.Put(domain.SyncEntry{RelativePath: "a.txt", ContentHash: "1"}))
	require.NoError(t, sc.Put(domain.SyncEntry{RelativePath: "b.txt", ContentHash: "2"}))

	var seen []string
	require.NoError(t, sc.IterAll(func(e domain.SyncEntry) bool {
		seen = append(seen, e.RelativePath)
		return true
	}))
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, seen)
}

// Property 10 — TP upload-state monotonicity: the observed status
// sequence for a given md5 is a prefix of Pending, Uploading, Completed,
// or ends in Failed from any earlier state.
func TestUploadCatalog_StatusSequenceIsMonotonic(t *testing.T) {
	uc := NewUploadCatalog(openTestStore(t))
	hash := "deadbeef"

	transitions := []domain.UploadStatus{
		domain.StatusPending,
		domain.StatusUploading,
		domain.StatusCompleted,
	}
	for _, status := range transitions {
		rec, ok, err := uc.Get(hash)
		if !ok {
			rec = domain.UploadRecord{ContentHash: hash}
		}
		require.NoError(t, err)
		rec.Status = status
		require.NoError(t, uc.Put(rec))
	}

	final, ok, err := uc.Get(hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, final.Status)
}

func TestUploadCatalog_FailedCanOccurFromAnyState(t *testing.T) {
	uc := NewUploadCatalog(openTestStore(t))
	rec := domain.UploadRecord{ContentHash: "h1", Status: domain.StatusUploading}
	require.NoError(t, uc.Put(rec))

	rec.Status = domain.StatusFailed
	require.NoError(t, uc.Put(rec))

	got, ok, err := uc.Get("h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusFailed, got.Status)
}
