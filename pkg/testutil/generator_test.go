package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/seltable/pkg/column"
	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/loader"
)

func TestRecords(t *testing.T) {
	recs := NewDefault().Records(12)
	if len(recs) != 12 {
		t.Fatalf("expected 12 records, got %d", len(recs))
	}
	AssertNoDuplicateKeys(t, recs, "id")
	if recs[0]["name"] != "user001" || recs[11]["name"] != "user012" {
		t.Errorf("unexpected names %v %v", recs[0]["name"], recs[11]["name"])
	}
	if recs[0]["team"] != "red" || recs[1]["team"] != "blue" {
		t.Errorf("teams should alternate, got %v %v", recs[0]["team"], recs[1]["team"])
	}
}

func TestDeterminism(t *testing.T) {
	a := New(GeneratorConfig{Seed: 7}).Records(20)
	b := New(GeneratorConfig{Seed: 7}).Records(20)
	AssertJSONEqual(t, a, b)
}

func TestColumnsMatchRecords(t *testing.T) {
	g := New(GeneratorConfig{Seed: 1, KeyField: "uid", NameField: "title"})
	reg := column.NewRegistry(g.Columns())
	if err := reg.Validate(); err != nil {
		t.Fatal(err)
	}
	if reg.PrimaryKey() != "uid" || reg.TitleField() != "title" {
		t.Errorf("pk=%q title=%q", reg.PrimaryKey(), reg.TitleField())
	}
	rec := g.Records(1)[0]
	for _, c := range reg.Columns() {
		if _, ok := rec[c.Field]; !ok {
			t.Errorf("record lacks column %q", c.Field)
		}
	}
}

func TestNamed(t *testing.T) {
	recs := Named("Alice", "Bob")
	keys := Keys(recs, "id")
	if len(keys) != 2 || keys[1] != "2" || recs[1]["name"] != "Bob" {
		t.Errorf("unexpected %v %v", keys, recs)
	}
}

func TestPager(t *testing.T) {
	p := NewPager(QuickRecords(25), "")
	ctx := context.Background()
	params := fetch.NewQueryParams(map[string]any{"team": "red"})

	for page, want := range map[int]int{1: 10, 3: 5, 4: 0} {
		resp, err := p.Fetch(ctx, params.WithPaging(page, 10))
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Data.List) != want {
			t.Errorf("page %d: got %d records, want %d", page, len(resp.Data.List), want)
		}
		if resp.Data.Total == nil || *resp.Data.Total != 25 {
			t.Errorf("page %d: unexpected total", page)
		}
	}
	if calls := p.Calls(); len(calls) != 3 || calls[0]["team"] != "red" {
		t.Errorf("unexpected calls %v", calls)
	}
}

func TestPager_NestedAndFailures(t *testing.T) {
	p := NewPager(QuickRecords(5), "params")
	p.FailPage = 1
	params := fetch.NewQueryParams(nil).Nested("params")

	if _, err := p.Fetch(context.Background(), params.WithPaging(1, 2)); err == nil {
		t.Fatal("expected one-shot failure")
	}
	resp, err := p.Fetch(context.Background(), params.WithPaging(1, 2))
	if err != nil || len(resp.Data.List) != 2 {
		t.Fatalf("retry = %v, %v", resp, err)
	}

	p.Code = 3
	resp, _ = p.Fetch(context.Background(), params.WithPaging(2, 2))
	if resp.Code != 3 {
		t.Errorf("expected code 3, got %d", resp.Code)
	}
}

func TestWriteDataset(t *testing.T) {
	recs := QuickRecords(3)
	path := WriteDataset(t, t.TempDir(), recs)
	got, err := loader.LoadFile(path, loader.ParseOptions{PrimaryKey: "id", WarningHandler: func(string) {}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}

	text, err := ToJSONL(recs)
	if err != nil || strings.Count(text, "\n") != 3 {
		t.Errorf("ToJSONL = %q, %v", text, err)
	}
}

func TestGoldenFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GENERATE_GOLDEN", "1")
	NewGoldenFile(t, dir, "x.golden").AssertJSON(map[string]int{"a": 1})

	t.Setenv("GENERATE_GOLDEN", "")
	g := NewGoldenFile(t, dir, "x.golden")
	g.AssertJSON(map[string]int{"a": 1})
	if _, err := os.Stat(filepath.Join(dir, "x.golden")); err != nil {
		t.Fatal(err)
	}
}

func BenchmarkRecords1000(b *testing.B) {
	g := NewDefault()
	for b.Loop() {
		g.Records(1000)
	}
}
