// Package selection tracks which rows are selected. It keeps an ordered key
// set and a materialized key->record snapshot that always hold exactly the
// same keys.
package selection

import (
	"fmt"
	"slices"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/seltable/pkg/record"
)

// Result reports what a selection operation did.
type Result int

const (
	// Ignored means the key is not in the record store; nothing changed.
	Ignored Result = iota
	// Applied means the selection changed.
	Applied
	// Unchanged means the key was already in the requested state.
	Unchanged
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case Unchanged:
		return "unchanged"
	default:
		return "ignored"
	}
}

// Lookup resolves keys against the record store.
type Lookup interface {
	Get(key record.Key) (record.Record, bool)
}

// Source is a Lookup that can also enumerate every loaded record.
type Source interface {
	Lookup
	Ascend(fn func(record.Key, record.Record) bool)
	Len() int
}

// Label is one selected-item chip.
type Label struct {
	Key   record.Key
	Title string
}

// Model is the selection state. Not safe for concurrent use.
type Model struct {
	pkField string
	order   []record.Key
	values  map[record.Key]record.Record

	// Preselected keys that were not loaded yet. They are not selected until
	// a merge brings them into the store.
	pending []record.Key
}

// New creates an empty selection for records keyed by pkField.
func New(pkField string) *Model {
	return &Model{
		pkField: pkField,
		values:  make(map[record.Key]record.Record),
	}
}

// Set selects or deselects key. Selecting a key that is not in src is a
// no-op and reports Ignored.
func (m *Model) Set(key record.Key, present bool, src Lookup) Result {
	if !present {
		m.dropPending(key)
		if _, ok := m.values[key]; !ok {
			return Unchanged
		}
		delete(m.values, key)
		m.order = slices.DeleteFunc(m.order, func(k record.Key) bool { return k == key })
		return Applied
	}

	rec, ok := src.Get(key)
	if !ok {
		return Ignored
	}
	if _, selected := m.values[key]; selected {
		m.values[key] = rec
		return Unchanged
	}
	m.values[key] = rec
	m.order = append(m.order, key)
	return Applied
}

// Toggle flips the selection state of key.
func (m *Model) Toggle(key record.Key, src Lookup) Result {
	return m.Set(key, !m.Has(key), src)
}

// SelectAll replaces the selection with every record currently in src.
// It returns the number of selected keys.
func (m *Model) SelectAll(src Source) int {
	m.order = make([]record.Key, 0, src.Len())
	m.values = make(map[record.Key]record.Record, src.Len())
	m.pending = nil
	src.Ascend(func(k record.Key, r record.Record) bool {
		m.order = append(m.order, k)
		m.values[k] = r
		return true
	})
	return len(m.order)
}

// Clear deselects everything and drops pending preselections. It returns
// the number of keys that were selected.
func (m *Model) Clear() int {
	n := len(m.order)
	m.order = nil
	m.values = make(map[record.Key]record.Record)
	m.pending = nil
	return n
}

// IsAllSelected reports whether every one of total loaded rows is selected.
// An empty table is never "all selected".
func (m *Model) IsAllSelected(total int) bool {
	return total > 0 && total == len(m.order)
}

// Preselect selects the keys already present in src and holds the rest as
// pending until Resolve sees them.
func (m *Model) Preselect(keys []record.Key, src Lookup) (applied, pending int) {
	for _, k := range keys {
		switch m.Set(k, true, src) {
		case Applied:
			applied++
		case Ignored:
			if !slices.Contains(m.pending, k) {
				m.pending = append(m.pending, k)
				pending++
			}
		}
	}
	return applied, pending
}

// Resolve promotes pending preselections whose keys are now in src.
// It returns how many were selected.
func (m *Model) Resolve(src Lookup) int {
	if len(m.pending) == 0 {
		return 0
	}
	n := 0
	rest := m.pending[:0]
	for _, k := range m.pending {
		if m.Set(k, true, src) == Applied {
			n++
			continue
		}
		if _, ok := m.values[k]; !ok {
			rest = append(rest, k)
		}
	}
	m.pending = rest
	return n
}

func (m *Model) dropPending(key record.Key) {
	m.pending = slices.DeleteFunc(m.pending, func(k record.Key) bool { return k == key })
}

// Has reports whether key is selected.
func (m *Model) Has(key record.Key) bool {
	_, ok := m.values[key]
	return ok
}

// Len returns the number of selected keys.
func (m *Model) Len() int { return len(m.order) }

// Keys returns selected keys in selection order.
func (m *Model) Keys() []record.Key {
	return slices.Clone(m.order)
}

// Pending returns preselected keys that are not loaded yet.
func (m *Model) Pending() []record.Key {
	return slices.Clone(m.pending)
}

// Values returns the record snapshots in selection order.
func (m *Model) Values() []record.Record {
	out := make([]record.Record, len(m.order))
	for i, k := range m.order {
		out[i] = m.values[k]
	}
	return out
}

// Labels returns one label per selected record in selection order.
func (m *Model) Labels(titleField string) []Label {
	out := make([]Label, len(m.order))
	for i, k := range m.order {
		out[i] = Label{Key: k, Title: record.Text(m.values[k][titleField])}
	}
	return out
}

// Serialize encodes the selected keys, in selection order, as a JSON array
// of their original primary-key values.
func (m *Model) Serialize() (string, error) {
	raw := make([]any, len(m.order))
	for i, k := range m.order {
		if v, ok := m.values[k][m.pkField]; ok {
			raw[i] = v
		} else {
			raw[i] = string(k)
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("serializing selection: %w", err)
	}
	return string(b), nil
}

// Check verifies that the key list and the snapshot map agree.
func (m *Model) Check() error {
	if len(m.order) != len(m.values) {
		return fmt.Errorf("selection: %d keys but %d values", len(m.order), len(m.values))
	}
	seen := make(map[record.Key]struct{}, len(m.order))
	for _, k := range m.order {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("selection: key %q listed twice", k)
		}
		seen[k] = struct{}{}
		if _, ok := m.values[k]; !ok {
			return fmt.Errorf("selection: key %q has no value", k)
		}
	}
	return nil
}
