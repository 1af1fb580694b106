//go:build ignore

// generate_testdata.go creates standard datasets for benchmarks and demos.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	tests/testdata/benchmark/small.jsonl   (100 records)
//	tests/testdata/benchmark/medium.jsonl  (1000 records)
//	tests/testdata/benchmark/large.jsonl   (5000 records)
//	tests/testdata/benchmark/huge.jsonl    (20000 records)
//	tests/testdata/benchmark/people.db     (table "people", 1000 rows)
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/seltable/pkg/record"
	"github.com/vanderheijden86/seltable/pkg/testutil"
)

type datasetSpec struct {
	name string
	size int
}

var datasets = []datasetSpec{
	{"small", 100},
	{"medium", 1000},
	{"large", 5000},
	{"huge", 20000},
}

func main() {
	outputDir := "tests/testdata/benchmark"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d records)...\n", ds.name, ds.size)

		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.size) // reproducible per size
		records := testutil.New(cfg).Records(ds.size)

		jsonl, err := testutil.ToJSONL(records)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode %s: %v\n", ds.name, err)
			os.Exit(1)
		}
		outputPath := filepath.Join(outputDir, ds.name+".jsonl")
		if err := os.WriteFile(outputPath, []byte(jsonl), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d bytes)\n", outputPath, len(jsonl))
	}

	dbPath := filepath.Join(outputDir, "people.db")
	if err := writeSQLite(dbPath, testutil.QuickRecords(1000)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	fmt.Printf("  Written %s\n", dbPath)

	fmt.Println("\nDone! Test datasets created in", outputDir)
}

func writeSQLite(path string, records []record.Record) error {
	os.Remove(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, team TEXT, score INTEGER, joined TEXT)`); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, r := range records {
		_, err := sq.Insert("people").
			Columns("id", "name", "team", "score", "joined").
			Values(r["id"], r["name"], r["team"], r["score"], r["joined"]).
			RunWith(tx).
			Exec()
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
