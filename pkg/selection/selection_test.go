package selection

import (
	"strconv"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/seltable/pkg/record"
)

func newStore(n int) *record.Store {
	s := record.NewStore("id")
	recs := make([]record.Record, n)
	for i := range recs {
		recs[i] = record.Record{"id": i + 1, "name": "row" + strconv.Itoa(i+1)}
	}
	s.Merge(recs)
	return s
}

func TestSetSelectedAddsSnapshot(t *testing.T) {
	s := newStore(2)
	m := New("id")

	if got := m.Set("1", true, s); got != Applied {
		t.Fatalf("expected Applied, got %v", got)
	}
	if !m.Has("1") || m.Len() != 1 {
		t.Fatalf("expected key 1 selected")
	}
	if v := m.Values()[0]; v["name"] != "row1" {
		t.Errorf("unexpected snapshot %v", v)
	}
}

func TestSetSelectedMissingKeyIsIgnored(t *testing.T) {
	s := newStore(1)
	m := New("id")
	if got := m.Set("99", true, s); got != Ignored {
		t.Fatalf("expected Ignored, got %v", got)
	}
	if m.Len() != 0 {
		t.Fatalf("ignored key was selected")
	}
}

func TestSetSelectedIdempotent(t *testing.T) {
	s := newStore(3)
	m := New("id")
	m.Set("2", true, s)
	before, _ := m.Serialize()
	if got := m.Set("2", true, s); got != Unchanged {
		t.Fatalf("expected Unchanged on repeat, got %v", got)
	}
	after, _ := m.Serialize()
	if before != after || m.Len() != 1 {
		t.Fatalf("repeat select changed state: %s -> %s", before, after)
	}
}

func TestDeselect(t *testing.T) {
	s := newStore(3)
	m := New("id")
	m.Set("1", true, s)
	m.Set("2", true, s)
	if got := m.Set("1", false, s); got != Applied {
		t.Fatalf("expected Applied, got %v", got)
	}
	if got := m.Set("1", false, s); got != Unchanged {
		t.Fatalf("expected Unchanged, got %v", got)
	}
	keys := m.Keys()
	if len(keys) != 1 || keys[0] != "2" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestSelectAllReplaces(t *testing.T) {
	s := newStore(3)
	m := New("id")
	m.Set("3", true, s)

	if n := m.SelectAll(s); n != 3 {
		t.Fatalf("expected 3 selected, got %d", n)
	}
	keys := m.Keys()
	if keys[0] != "1" || keys[2] != "3" {
		t.Errorf("select all should follow store order, got %v", keys)
	}
	if !m.IsAllSelected(s.Len()) {
		t.Error("expected all selected")
	}
	m.Set("2", false, s)
	if m.IsAllSelected(s.Len()) {
		t.Error("expected not all selected after deselect")
	}
}

func TestIsAllSelectedEmptyStore(t *testing.T) {
	s := record.NewStore("id")
	m := New("id")
	m.SelectAll(s)
	if m.IsAllSelected(s.Len()) {
		t.Fatal("empty store must not report all selected")
	}
}

func TestSerializeKeepsRawValues(t *testing.T) {
	s := record.NewStore("id")
	s.Merge([]record.Record{{"id": 1, "name": "Alice"}, {"id": "b", "name": "Bob"}})
	m := New("id")
	m.Set("1", true, s)
	m.Set("b", true, s)

	got, err := m.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if got != `[1,"b"]` {
		t.Errorf("Serialize() = %s", got)
	}

	empty, _ := New("id").Serialize()
	if empty != "[]" {
		t.Errorf("empty selection serialized as %s", empty)
	}
}

func TestLabelsFollowSelectionOrder(t *testing.T) {
	s := newStore(3)
	m := New("id")
	m.Set("3", true, s)
	m.Set("1", true, s)
	labels := m.Labels("name")
	if len(labels) != 2 || labels[0].Title != "row3" || labels[1].Title != "row1" {
		t.Fatalf("unexpected labels %+v", labels)
	}
}

func TestPreselectHoldsPendingUntilLoaded(t *testing.T) {
	s := newStore(1)
	m := New("id")
	applied, pending := m.Preselect([]record.Key{"1", "5"}, s)
	if applied != 1 || pending != 1 {
		t.Fatalf("applied=%d pending=%d", applied, pending)
	}
	if m.Has("5") {
		t.Fatal("pending key must not be selected")
	}

	s.Merge([]record.Record{{"id": 5, "name": "late"}})
	if n := m.Resolve(s); n != 1 {
		t.Fatalf("expected 1 resolved, got %d", n)
	}
	if !m.Has("5") || len(m.Pending()) != 0 {
		t.Fatalf("expected key 5 selected and nothing pending")
	}
}

func TestDeselectDropsPending(t *testing.T) {
	s := record.NewStore("id")
	m := New("id")
	m.Preselect([]record.Key{"7"}, s)
	m.Set("7", false, s)
	s.Merge([]record.Record{{"id": 7}})
	if m.Resolve(s) != 0 || m.Has("7") {
		t.Fatal("deselected pending key came back")
	}
}

func TestClear(t *testing.T) {
	s := newStore(2)
	m := New("id")
	m.SelectAll(s)
	if n := m.Clear(); n != 2 {
		t.Fatalf("expected 2 cleared, got %d", n)
	}
	if m.Len() != 0 {
		t.Fatal("selection not empty after Clear")
	}
}

func TestToggle(t *testing.T) {
	s := newStore(1)
	m := New("id")
	m.Toggle("1", s)
	if !m.Has("1") {
		t.Fatal("toggle on failed")
	}
	m.Toggle("1", s)
	if m.Has("1") {
		t.Fatal("toggle off failed")
	}
}

// Keys and snapshot map stay in lockstep under any operation sequence.
func TestSelectionInvariantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(0, 8).Draw(t, "size")
		s := newStore(size)
		m := New("id")

		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			key := record.Key(strconv.Itoa(rapid.IntRange(0, 10).Draw(t, "key")))
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0, 1:
				m.Set(key, rapid.Bool().Draw(t, "present"), s)
			case 2:
				m.Toggle(key, s)
			case 3:
				m.SelectAll(s)
			case 4:
				m.Clear()
			}
			if err := m.Check(); err != nil {
				t.Fatalf("invariant broken after op %d: %v", i, err)
			}
			for _, k := range m.Keys() {
				if !s.Has(k) {
					t.Fatalf("selected key %q not in store", k)
				}
			}
		}
	})
}

func TestSelectAllThenIsAllSelectedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(0, 20).Draw(t, "size")
		s := newStore(size)
		m := New("id")
		m.SelectAll(s)
		if got := m.IsAllSelected(s.Len()); got != (size > 0) {
			t.Fatalf("size=%d all=%v", size, got)
		}
		if size == 0 {
			return
		}
		victim := rapid.IntRange(1, size).Draw(t, "victim")
		m.Set(record.Key(strconv.Itoa(victim)), false, s)
		if m.IsAllSelected(s.Len()) {
			t.Fatal("deselecting one key must clear all-selected")
		}
	})
}
