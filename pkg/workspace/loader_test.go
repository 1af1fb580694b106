package workspace_test

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/seltable/pkg/testutil"
	"github.com/vanderheijden86/seltable/pkg/workspace"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDatasetNameAndPrefix(t *testing.T) {
	tests := []struct {
		name       string
		ds         workspace.Dataset
		wantName   string
		wantPrefix string
	}{
		{"from path", workspace.Dataset{Path: "data/People.jsonl"}, "People", "people-"},
		{"explicit name", workspace.Dataset{Path: "a.jsonl", Name: "Staff"}, "Staff", "staff-"},
		{"explicit prefix", workspace.Dataset{Path: "a.jsonl", Prefix: "x:"}, "a", "x:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ds.GetName(); got != tt.wantName {
				t.Errorf("name = %q", got)
			}
			if got := tt.ds.GetPrefix(); got != tt.wantPrefix {
				t.Errorf("prefix = %q", got)
			}
		})
	}
}

func TestQualifyID(t *testing.T) {
	if got := workspace.QualifyID("7", "red-"); got != "red-7" {
		t.Errorf("got %q", got)
	}
	if got := workspace.QualifyID("red-7", "red-"); got != "red-7" {
		t.Errorf("already qualified: %q", got)
	}
	if got := workspace.QualifyID("7", ""); got != "7" {
		t.Errorf("empty prefix: %q", got)
	}
}

func TestLoadAllKeepsDatasetOrder(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteDataset(t, dir, testutil.Named("Alice", "Bob"))
	b := writeFile(t, dir, "more.jsonl", `{"id":3,"name":"Carol"}`+"\n")

	recs, results, err := workspace.NewAggregateLoader(workspace.FromPaths([]string{a, b}), "id").LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[2]["name"] != "Carol" {
		t.Fatalf("records = %v", recs)
	}
	if results[1].Name != "more" || len(results[1].Records) != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestLoadAllNamespacesKeys(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "red.jsonl", `{"id":1,"name":"Alice"}`+"\n")
	b := writeFile(t, dir, "blue.jsonl", `{"id":1,"name":"Bob"}`+"\n")

	l := workspace.NewAggregateLoader(workspace.FromPaths([]string{a, b}), "id")
	l.SetNamespace(true)
	recs, _, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if recs[0]["id"] != "red-1" || recs[1]["id"] != "blue-1" {
		t.Errorf("ids = %v, %v", recs[0]["id"], recs[1]["id"])
	}
}

func TestLoadAllSkipsFailedDatasets(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.jsonl", `{"id":1}`+"\n")
	missing := filepath.Join(dir, "missing.jsonl")

	var logs bytes.Buffer
	l := workspace.NewAggregateLoader(workspace.FromPaths([]string{missing, good}), "id")
	l.SetLogger(log.New(&logs, "", 0))
	recs, results, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || results[0].Error == nil {
		t.Errorf("recs=%d results=%+v", len(recs), results)
	}
	if logs.Len() == 0 {
		t.Error("expected the failure to be logged")
	}

	if _, _, err := workspace.NewAggregateLoader(workspace.FromPaths([]string{missing}), "id").LoadAll(context.Background()); err == nil {
		t.Error("expected an error when nothing loads")
	}
	if _, _, err := workspace.NewAggregateLoader(nil, "id").LoadAll(context.Background()); err == nil {
		t.Error("expected an error for an empty workspace")
	}
}

func TestLoadAllCanceled(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jsonl", `{"id":1}`+"\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, results, err := workspace.NewAggregateLoader(workspace.FromPaths([]string{a}), "id").LoadAll(ctx)
	if err == nil || results[0].Error == nil {
		t.Errorf("canceled load should fail: err=%v results=%+v", err, results)
	}
}
