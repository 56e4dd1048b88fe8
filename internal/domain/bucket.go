package domain

import "sort"

// SymbolBucket is an ordered map from dedup key (integer UTC seconds) to the
// normalized record that won that second. Keys are unique by construction:
// Insert is a no-op if the key is already present (first-writer-wins).
type SymbolBucket struct {
	rows map[int64]Row
}

// NewSymbolBucket returns an empty bucket.
func NewSymbolBucket() *SymbolBucket {
	return &SymbolBucket{rows: make(map[int64]Row)}
}

// Insert stores row under key only if the key is absent. It reports whether
// the insert happened.
func (b *SymbolBucket) Insert(key int64, row Row) bool {
	if _, exists := b.rows[key]; exists {
		return false
	}
	b.rows[key] = row
	return true
}

// Set unconditionally writes row under key, used by gap-fill to add
// synthetic rows for seconds that were never ingested.
func (b *SymbolBucket) Set(key int64, row Row) {
	b.rows[key] = row
}

// Get returns the row at key, if any.
func (b *SymbolBucket) Get(key int64) (Row, bool) {
	row, ok := b.rows[key]
	return row, ok
}

// Len returns the number of distinct seconds present.
func (b *SymbolBucket) Len() int {
	return len(b.rows)
}

// Keys returns all dedup keys in ascending order.
func (b *SymbolBucket) Keys() []int64 {
	keys := make([]int64, 0, len(b.rows))
	for k := range b.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Bounds returns the smallest and largest keys present. ok is false for an
// empty bucket.
func (b *SymbolBucket) Bounds() (first, last int64, ok bool) {
	if len(b.rows) == 0 {
		return 0, 0, false
	}
	keys := b.Keys()
	return keys[0], keys[len(keys)-1], true
}

// Rows returns the bucket's rows in ascending key order.
func (b *SymbolBucket) Rows() []Row {
	keys := b.Keys()
	out := make([]Row, len(keys))
	for i, k := range keys {
		out[i] = b.rows[k]
	}
	return out
}

// DaySeries maps symbol to that symbol's SymbolBucket for one UTC date.
type DaySeries struct {
	buckets map[string]*SymbolBucket
}

// NewDaySeries returns an empty series.
func NewDaySeries() *DaySeries {
	return &DaySeries{buckets: make(map[string]*SymbolBucket)}
}

// BucketFor returns the bucket for symbol, creating it lazily.
func (d *DaySeries) BucketFor(symbol string) *SymbolBucket {
	b, ok := d.buckets[symbol]
	if !ok {
		b = NewSymbolBucket()
		d.buckets[symbol] = b
	}
	return b
}

// Symbols returns the known symbols in sorted order.
func (d *DaySeries) Symbols() []string {
	out := make([]string, 0, len(d.buckets))
	for s := range d.buckets {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// IsEmpty reports whether no symbol carries any rows.
func (d *DaySeries) IsEmpty() bool {
	for _, b := range d.buckets {
		if b.Len() > 0 {
			return false
		}
	}
	return true
}

// Bucket returns the bucket for symbol without creating it.
func (d *DaySeries) Bucket(symbol string) (*SymbolBucket, bool) {
	b, ok := d.buckets[symbol]
	return b, ok
}
