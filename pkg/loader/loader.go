// Package loader reads inline datasets for the table from JSONL or JSON
// array files.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/seltable/pkg/record"
)

// DataDirEnvVar overrides the directory searched for datasets.
const DataDirEnvVar = "SELTABLE_DATA_DIR"

// PreferredNames defines the priority order for dataset files.
var PreferredNames = []string{"records.jsonl", "data.jsonl", "records.json", "data.json"}

// GetDataDir returns the dataset directory, respecting SELTABLE_DATA_DIR.
// Otherwise it is dir, or the working directory when dir is empty.
func GetDataDir(dir string) (string, error) {
	if envDir := os.Getenv(DataDirEnvVar); envDir != "" {
		return envDir, nil
	}
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return wd, nil
}

// IsDatasetName reports whether name looks like a dataset file. Backups and
// editor leftovers are skipped.
func IsDatasetName(name string) bool {
	if !strings.HasSuffix(name, ".jsonl") && !strings.HasSuffix(name, ".json") {
		return false
	}
	if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return false
	}
	return true
}

// FindDatasetPath locates a dataset in dir, preferring PreferredNames and
// skipping empty files when a non-empty one exists.
func FindDatasetPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() || !IsDatasetName(e.Name()) {
			continue
		}
		candidates = append(candidates, e.Name())
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no dataset file found in %s", dir)
	}

	nonEmpty := func(name string) (string, bool) {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		return path, err == nil && info.Size() > 0
	}

	for _, preferred := range PreferredNames {
		for _, name := range candidates {
			if name == preferred {
				if path, ok := nonEmpty(name); ok {
					return path, nil
				}
			}
		}
	}
	for _, name := range candidates {
		if path, ok := nonEmpty(name); ok {
			return path, nil
		}
	}
	return filepath.Join(dir, candidates[0]), nil
}

// DefaultMaxBufferSize is the default maximum line size (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures parsing.
type ParseOptions struct {
	// WarningHandler receives messages about skipped lines. If nil, warnings
	// go to os.Stderr unless SELTABLE_QUIET=1.
	WarningHandler func(string)

	// BufferSize is the maximum line length; longer lines are skipped.
	BufferSize int

	// PrimaryKey, when set, drops records that lack that field.
	PrimaryKey string

	// Filter optionally keeps only records for which it returns true.
	Filter func(record.Record) bool
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("SELTABLE_QUIET") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

func (o ParseOptions) keep(r record.Record) (bool, string) {
	if o.PrimaryKey != "" {
		if _, ok := r.Key(o.PrimaryKey); !ok {
			return false, fmt.Sprintf("missing primary key %q", o.PrimaryKey)
		}
	}
	if o.Filter != nil && !o.Filter(r) {
		return false, ""
	}
	return true, ""
}

// LoadFile reads a dataset file. Files whose first non-blank byte is '['
// are read as a JSON array, everything else as JSONL.
func LoadFile(path string, opts ParseOptions) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no dataset found at %s", path)
		}
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if isArray(br) {
		return ParseArray(br, opts)
	}
	return Parse(br, opts)
}

func isArray(br *bufio.Reader) bool {
	for i := 1; ; i++ {
		b, err := br.Peek(i)
		if err != nil || len(b) < i {
			return false
		}
		c := b[i-1]
		switch {
		case c == '[':
			return true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			continue
		case c == 0xEF || c == 0xBB || c == 0xBF:
			continue
		default:
			return false
		}
	}
}

// ParseArray decodes a JSON array of objects.
func ParseArray(r io.Reader, opts ParseOptions) ([]record.Record, error) {
	var raw []record.Record
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding dataset array: %w", err)
	}
	warn := opts.warn()
	out := raw[:0]
	for i, rec := range raw {
		ok, why := opts.keep(rec)
		if !ok {
			if why != "" {
				warn(fmt.Sprintf("skipping record %d: %s", i, why))
			}
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Parse reads JSONL records. It strips a UTF-8 BOM, skips blank, overlong
// and malformed lines with a warning.
func Parse(r io.Reader, opts ParseOptions) ([]record.Record, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)
	warn := opts.warn()

	var records []record.Record
	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading dataset at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		rec, err := decodeLine(line)
		if err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}
		ok, why := opts.keep(rec)
		if !ok {
			if why != "" {
				warn(fmt.Sprintf("skipping line %d: %s", lineNum, why))
			}
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeLine(line []byte) (record.Record, error) {
	var rec record.Record
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("not an object")
	}
	return rec, nil
}

// WriteJSONL writes records one per line.
func WriteJSONL(w io.Writer, records []record.Record) error {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	for i, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
	}
	return buf.Flush()
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
