package loader_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/seltable/pkg/loader"
	"github.com/vanderheijden86/seltable/pkg/record"
)

// =============================================================================
// FindDatasetPath Tests
// =============================================================================

func TestFindDatasetPath_NonExistentDirectory(t *testing.T) {
	_, err := loader.FindDatasetPath("/nonexistent/path/to/data")
	if err == nil {
		t.Fatal("Expected error for non-existent directory")
	}
	if !strings.Contains(err.Error(), "failed to read data directory") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestFindDatasetPath_EmptyDirectory(t *testing.T) {
	_, err := loader.FindDatasetPath(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no dataset file found") {
		t.Fatalf("Expected 'no dataset file found', got %v", err)
	}
}

func TestFindDatasetPath_PrefersRecordsJSONL(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "data.jsonl"), []byte(`{"id":1}`), 0644)
	os.WriteFile(filepath.Join(dir, "records.jsonl"), []byte(`{"id":2}`), 0644)
	os.WriteFile(filepath.Join(dir, "other.jsonl"), []byte(`{"id":3}`), 0644)

	path, err := loader.FindDatasetPath(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "records.jsonl" {
		t.Errorf("Expected records.jsonl, got %s", path)
	}
}

func TestFindDatasetPath_SkipsEmptyAndBackups(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "records.jsonl"), nil, 0644)
	os.WriteFile(filepath.Join(dir, "records.jsonl.backup"), []byte(`{"id":1}`), 0644)
	os.WriteFile(filepath.Join(dir, "people.json"), []byte(`[{"id":1}]`), 0644)

	path, err := loader.FindDatasetPath(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "people.json" {
		t.Errorf("Expected people.json, got %s", path)
	}
}

func TestGetDataDir_Env(t *testing.T) {
	t.Setenv(loader.DataDirEnvVar, "/tmp/elsewhere")
	dir, err := loader.GetDataDir("ignored")
	if err != nil || dir != "/tmp/elsewhere" {
		t.Fatalf("GetDataDir = %q, %v", dir, err)
	}
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_SkipsMalformedAndBlankLines(t *testing.T) {
	input := "\xEF\xBB\xBF{\"id\":1,\"name\":\"Alice\"}\n\n{broken\n{\"id\":2,\"name\":\"Bob\"}\n[1,2]\n"
	var warnings []string
	recs, err := loader.Parse(strings.NewReader(input), loader.ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0]["name"] != "Alice" {
		t.Errorf("BOM not stripped: %v", recs[0])
	}
	if len(warnings) != 2 {
		t.Errorf("Expected 2 warnings, got %v", warnings)
	}
}

func TestParse_LongLineSkipped(t *testing.T) {
	long := `{"id":1,"name":"` + strings.Repeat("x", 200) + `"}`
	input := long + "\n" + `{"id":2}` + "\n"
	var warned bool
	recs, err := loader.Parse(strings.NewReader(input), loader.ParseOptions{
		BufferSize:     64,
		WarningHandler: func(msg string) { warned = strings.Contains(msg, "line too long") || warned },
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 1 || !warned {
		t.Fatalf("Expected one record and a warning, got %d records warned=%v", len(recs), warned)
	}
}

func TestParse_PrimaryKeyAndFilter(t *testing.T) {
	input := `{"id":1,"team":"a"}
{"name":"orphan"}
{"id":3,"team":"b"}
`
	recs, err := loader.Parse(strings.NewReader(input), loader.ParseOptions{
		PrimaryKey:     "id",
		Filter:         func(r record.Record) bool { return r["team"] == "b" },
		WarningHandler: func(string) {},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 1 || record.Text(recs[0]["id"]) != "3" {
		t.Fatalf("Unexpected records %v", recs)
	}
}

func TestLoadFile_ArrayAndJSONL(t *testing.T) {
	dir := t.TempDir()
	arr := filepath.Join(dir, "a.json")
	os.WriteFile(arr, []byte("  \n[{\"id\":1},{\"id\":2}]"), 0644)
	lines := filepath.Join(dir, "b.jsonl")
	os.WriteFile(lines, []byte("{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n"), 0644)

	a, err := loader.LoadFile(arr, loader.ParseOptions{})
	if err != nil || len(a) != 2 {
		t.Fatalf("array: %d records, %v", len(a), err)
	}
	b, err := loader.LoadFile(lines, loader.ParseOptions{})
	if err != nil || len(b) != 3 {
		t.Fatalf("jsonl: %d records, %v", len(b), err)
	}

	if _, err := loader.LoadFile(filepath.Join(dir, "missing.jsonl"), loader.ParseOptions{}); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestWriteJSONLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := []record.Record{{"id": 1, "name": "Alice"}, {"id": 2, "name": "Bob"}}
	if err := loader.WriteJSONL(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := loader.Parse(&buf, loader.ParseOptions{})
	if err != nil || len(out) != 2 || out[1]["name"] != "Bob" {
		t.Fatalf("round trip failed: %v %v", out, err)
	}
}
