package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/xzsean666/marketfeed/internal/domain"
)

// UploadCatalog is the Transfer Proxy's upload-broker state store:
// UploadRecord rows keyed by content hash (MD5 hex).
type UploadCatalog struct {
	store *Store
}

// NewUploadCatalog wraps an opened Store for TP's use.
func NewUploadCatalog(store *Store) *UploadCatalog {
	return &UploadCatalog{store: store}
}

func uploadKey(contentHash string) []byte {
	return []byte("upload/" + contentHash)
}

// Put upserts one upload record, keyed by its ContentHash.
func (c *UploadCatalog) Put(rec domain.UploadRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal upload record: %w", err)
	}
	return c.store.Put(uploadKey(rec.ContentHash), data)
}

// Get reads the record for contentHash, if any.
func (c *UploadCatalog) Get(contentHash string) (domain.UploadRecord, bool, error) {
	data, ok, err := c.store.Get(uploadKey(contentHash))
	if err != nil || !ok {
		return domain.UploadRecord{}, false, err
	}
	var rec domain.UploadRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.UploadRecord{}, false, fmt.Errorf("unmarshal upload record %s: %w", contentHash, err)
	}
	return rec, true, nil
}

// Delete removes the record for contentHash.
func (c *UploadCatalog) Delete(contentHash string) error {
	return c.store.Delete(uploadKey(contentHash))
}

// IterAll visits every upload record, stopping early if fn returns
// false.
func (c *UploadCatalog) IterAll(fn func(rec domain.UploadRecord) bool) error {
	return c.store.IterAll([]byte("upload/"), func(_, value []byte) bool {
		var rec domain.UploadRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return true
		}
		return fn(rec)
	})
}
