package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/xzsean666/marketfeed/internal/domain"
)

// SyncCatalog is the Sync Catalog (C5): SyncEntry rows keyed by relative
// path, JSON-encoded onto the embedded KV store.
type SyncCatalog struct {
	store *Store
}

// NewSyncCatalog wraps an opened Store for FS's use.
func NewSyncCatalog(store *Store) *SyncCatalog {
	return &SyncCatalog{store: store}
}

func syncKey(relativePath string) []byte {
	return []byte("sync/" + relativePath)
}

// Put upserts one entry, keyed by its RelativePath.
func (c *SyncCatalog) Put(entry domain.SyncEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal sync entry: %w", err)
	}
	return c.store.Put(syncKey(entry.RelativePath), data)
}

// Get reads the entry for relativePath, if any.
func (c *SyncCatalog) Get(relativePath string) (domain.SyncEntry, bool, error) {
	data, ok, err := c.store.Get(syncKey(relativePath))
	if err != nil || !ok {
		return domain.SyncEntry{}, false, err
	}
	var entry domain.SyncEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.SyncEntry{}, false, fmt.Errorf("unmarshal sync entry %s: %w", relativePath, err)
	}
	return entry, true, nil
}

// Delete removes the entry for relativePath.
func (c *SyncCatalog) Delete(relativePath string) error {
	return c.store.Delete(syncKey(relativePath))
}

// IterAll visits every entry, stopping early if fn returns false.
func (c *SyncCatalog) IterAll(fn func(entry domain.SyncEntry) bool) error {
	return c.store.IterAll([]byte("sync/"), func(_, value []byte) bool {
		var entry domain.SyncEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			return true
		}
		return fn(entry)
	})
}

// Clear removes every sync entry.
func (c *SyncCatalog) Clear() error {
	return c.store.Clear([]byte("sync/"))
}
