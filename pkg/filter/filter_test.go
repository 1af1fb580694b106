package filter

import (
	"testing"

	"github.com/vanderheijden86/seltable/pkg/record"
)

func fixture() *record.Store {
	s := record.NewStore("id")
	s.Merge([]record.Record{
		{"id": 1, "name": "Alice"},
		{"id": 2, "name": "Bob"},
		{"id": 3, "name": "alicia"},
		{"id": 4, "name": "Malice"},
	})
	return s
}

func TestApplyCaseSensitiveContainment(t *testing.T) {
	v := Apply(fixture(), "name", "lic")
	if !v.Active || v.Term != "lic" {
		t.Fatalf("expected active view, got %+v", v)
	}
	want := []record.Key{"1", "3", "4"}
	if len(v.Keys) != len(want) {
		t.Fatalf("got %v, want %v", v.Keys, want)
	}
	for i := range want {
		if v.Keys[i] != want[i] {
			t.Fatalf("got %v, want %v", v.Keys, want)
		}
	}

	if v := Apply(fixture(), "name", "Ali"); v.Len() != 1 {
		t.Errorf("matching must be case-sensitive, got %v", v.Keys)
	}
}

func TestApplyEmptyTermIsInactive(t *testing.T) {
	v := Apply(fixture(), "name", "")
	if v.Active || v.Keys != nil {
		t.Fatalf("expected inactive view, got %+v", v)
	}
}

func TestApplyDoesNotTouchStore(t *testing.T) {
	s := fixture()
	before := s.Keys()
	Apply(s, "name", "zzz")
	after := s.Keys()
	if len(before) != len(after) {
		t.Fatal("filter changed the store")
	}
}
