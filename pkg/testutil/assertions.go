package testutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/seltable/pkg/loader"
	"github.com/vanderheijden86/seltable/pkg/record"
	"github.com/vanderheijden86/seltable/pkg/viewmodel"
)

// AssertRowKeys verifies the rendered rows, in order.
func AssertRowKeys(t *testing.T, vm viewmodel.ViewModel, want ...string) {
	t.Helper()
	got := make([]string, len(vm.Rows))
	for i, r := range vm.Rows {
		got[i] = string(r.Key)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

// AssertLabels verifies the label chip titles, in order.
func AssertLabels(t *testing.T, vm viewmodel.ViewModel, want ...string) {
	t.Helper()
	got := vm.LabelTitles()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("labels = %v, want %v", got, want)
	}
}

// AssertIndicator verifies the indicator kind.
func AssertIndicator(t *testing.T, vm viewmodel.ViewModel, want viewmodel.IndicatorKind) {
	t.Helper()
	if vm.Indicator.Kind != want {
		t.Errorf("indicator = %v, want %v", vm.Indicator.Kind, want)
	}
}

// AssertNoDuplicateKeys verifies every record has a distinct primary key.
func AssertNoDuplicateKeys(t *testing.T, records []record.Record, pkField string) {
	t.Helper()
	seen := make(map[record.Key]bool, len(records))
	for i, r := range records {
		k, ok := r.Key(pkField)
		if !ok {
			t.Errorf("record %d has no %q", i, pkField)
			continue
		}
		if seen[k] {
			t.Errorf("duplicate key %s", k)
		}
		seen[k] = true
	}
}

// AssertJSONEqual compares two values by their JSON encoding.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()
	e, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("marshal expected: %v", err)
	}
	a, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("marshal actual: %v", err)
	}
	if string(e) != string(a) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", e, a)
	}
}

// GoldenFile compares output against a file under dir. Setting
// GENERATE_GOLDEN rewrites the file instead.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{t: t, dir: dir, name: name, update: os.Getenv("GENERATE_GOLDEN") != ""}
}

func (g *GoldenFile) Path() string { return filepath.Join(g.dir, g.name) }

func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()
	path := g.Path()
	if g.update {
		if err := os.MkdirAll(g.dir, 0o755); err != nil {
			g.t.Fatalf("create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0o644); err != nil {
			g.t.Fatalf("write golden file: %v", err)
		}
		return
	}
	expected, err := os.ReadFile(path)
	if err != nil {
		g.t.Fatalf("read golden file %s (run with GENERATE_GOLDEN=1 to create): %v", path, err)
	}
	if string(expected) == actual {
		return
	}
	el, al := strings.Split(string(expected), "\n"), strings.Split(actual, "\n")
	for i := 0; i < max(len(el), len(al)); i++ {
		var e, a string
		if i < len(el) {
			e = el[i]
		}
		if i < len(al) {
			a = al[i]
		}
		if e != a {
			g.t.Errorf("golden mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, e, a)
			return
		}
	}
}

// AssertJSON compares the indented JSON form of actual.
func (g *GoldenFile) AssertJSON(actual any) {
	g.t.Helper()
	data, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		g.t.Fatalf("marshal: %v", err)
	}
	g.Assert(string(data))
}

// WriteDataset writes records as records.jsonl under dir and returns the path.
func WriteDataset(t *testing.T, dir string, records []record.Record) string {
	t.Helper()
	path := filepath.Join(dir, "records.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	defer f.Close()
	if err := writeJSONL(f, records); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func writeJSONL(w io.Writer, records []record.Record) error {
	return loader.WriteJSONL(w, records)
}

// Keys returns the primary keys of records, in order.
func Keys(records []record.Record, pkField string) []record.Key {
	out := make([]record.Key, 0, len(records))
	for _, r := range records {
		if k, ok := r.Key(pkField); ok {
			out = append(out, k)
		}
	}
	return out
}
