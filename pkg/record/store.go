package record

import (
	"github.com/google/btree"

	"github.com/vanderheijden86/seltable/pkg/debug"
	"github.com/vanderheijden86/seltable/pkg/metrics"
)

type entry struct {
	seq uint64
	key Key
	rec Record
}

// MergeStats summarizes one Merge call.
type MergeStats struct {
	Added   int
	Updated int
	Skipped int // records without a primary-key value
	NewKeys []Key
}

// Store maps primary-key values to records. Lookups go through a key index;
// iteration follows the order in which keys were first merged. Entries are
// never removed.
//
// Store is not safe for concurrent use; the owning table serializes access.
type Store struct {
	pkField string
	index   map[Key]*entry
	order   *btree.BTreeG[*entry]
	seq     uint64
}

// NewStore creates an empty store keyed by pkField.
func NewStore(pkField string) *Store {
	return &Store{
		pkField: pkField,
		index:   make(map[Key]*entry),
		order:   btree.NewG(32, func(a, b *entry) bool { return a.seq < b.seq }),
	}
}

// PrimaryKey returns the field the store is keyed by.
func (s *Store) PrimaryKey() string { return s.pkField }

// Merge upserts records by primary key. An existing key keeps its position
// and has its record replaced.
func (s *Store) Merge(records []Record) MergeStats {
	defer metrics.Timer(metrics.MergeRecords)()

	var stats MergeStats
	for _, rec := range records {
		key, ok := rec.Key(s.pkField)
		if !ok {
			stats.Skipped++
			continue
		}
		if e, exists := s.index[key]; exists {
			e.rec = rec
			stats.Updated++
			continue
		}
		s.seq++
		e := &entry{seq: s.seq, key: key, rec: rec}
		s.index[key] = e
		s.order.ReplaceOrInsert(e)
		stats.Added++
		stats.NewKeys = append(stats.NewKeys, key)
	}
	debug.LogIf(stats.Skipped > 0, "record merge skipped %d records without %q", stats.Skipped, s.pkField)
	return stats
}

// Get returns the record stored under key.
func (s *Store) Get(key Key) (Record, bool) {
	e, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return e.rec, true
}

// Has reports whether key is present.
func (s *Store) Has(key Key) bool {
	_, ok := s.index[key]
	return ok
}

// Len returns the number of stored records.
func (s *Store) Len() int { return len(s.index) }

// Ascend visits records in first-seen order until fn returns false.
func (s *Store) Ascend(fn func(Key, Record) bool) {
	s.order.Ascend(func(e *entry) bool {
		return fn(e.key, e.rec)
	})
}

// All returns every record in first-seen order.
func (s *Store) All() []Record {
	out := make([]Record, 0, s.Len())
	s.Ascend(func(_ Key, r Record) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Keys returns every key in first-seen order.
func (s *Store) Keys() []Key {
	out := make([]Key, 0, s.Len())
	s.Ascend(func(k Key, _ Record) bool {
		out = append(out, k)
		return true
	})
	return out
}

// Window returns up to limit records starting at offset in first-seen order.
func (s *Store) Window(offset, limit int) []Record {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= s.Len() {
		return nil
	}
	out := make([]Record, 0, limit)
	i := 0
	s.Ascend(func(_ Key, r Record) bool {
		if i >= offset {
			out = append(out, r)
		}
		i++
		return len(out) < limit
	})
	return out
}
