// Package catalog wraps an embedded ordered key-value store (goleveldb)
// behind the get/put/delete/iter_all/clear/flush contract the Sync
// Catalog (C5) and the Transfer Proxy's upload broker both depend on.
// leveldb's write-ahead log makes every successful Put durable before it
// returns, so there is no separate explicit flush step to expose, unlike
// the inconsistency the original store had to work around.
package catalog

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/xzsean666/marketfeed/internal/errors"
)

// Store is a single opened catalog database.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) the catalog at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errWrap(err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return errWrap(s.db.Close())
}

// Put writes value under key, overwriting any prior value. Individual
// key operations are atomic by construction; there is no multi-key
// transaction surface because none of the three components need one.
func (s *Store) Put(key, value []byte) error {
	return errWrap(s.db.Put(key, value, nil))
}

// Get reads the value stored under key. ok is false if the key is
// absent (not an error condition).
func (s *Store) Get(key []byte) (value []byte, ok bool, err error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errWrap(err)
	}
	return v, true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key []byte) error {
	return errWrap(s.db.Delete(key, nil))
}

// IterAll visits every (key, value) pair under prefix in key order,
// stopping early if fn returns false.
func (s *Store) IterAll(prefix []byte, fn func(key, value []byte) bool) error {
	var rng *util.Range
	if len(prefix) > 0 {
		rng = util.BytesPrefix(prefix)
	}
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()
	for iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return errWrap(iter.Error())
}

// Clear removes every key under prefix.
func (s *Store) Clear(prefix []byte) error {
	batch := new(leveldb.Batch)
	if err := s.IterAll(prefix, func(key, _ []byte) bool {
		batch.Delete(append([]byte{}, key...))
		return true
	}); err != nil {
		return err
	}
	return errWrap(s.db.Write(batch, nil))
}

func errWrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", errors.CatalogOpFailed, err)
}
