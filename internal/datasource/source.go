// Package datasource detects, validates and opens the data sources a table
// can be bound to: inline dataset files, remote endpoints and SQLite
// databases.
package datasource

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/seltable/pkg/loader"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceInline is a JSONL or JSON array file loaded up front.
	SourceInline SourceType = "inline"
	// SourceEndpoint is a paginated HTTP endpoint.
	SourceEndpoint SourceType = "endpoint"
	// SourceSQLite is a table in a SQLite database, paged on demand.
	SourceSQLite SourceType = "sqlite"
)

// Priority values for discovered sources (higher = preferred on equal mtime).
const (
	PrioritySQLite = 100
	PriorityInline = 50
)

// Source describes one data source.
type Source struct {
	Type SourceType `yaml:"type" json:"type"`
	// Path is the dataset file or database path.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// URL is the endpoint for SourceEndpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Table is the SQLite table; empty picks the first user table.
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
	// RateLimit caps endpoint requests per second; 0 disables.
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`

	Priority        int       `yaml:"-" json:"priority,omitempty"`
	ModTime         time.Time `yaml:"-" json:"mod_time,omitempty"`
	Size            int64     `yaml:"-" json:"size,omitempty"`
	Valid           bool      `yaml:"-" json:"valid"`
	ValidationError string    `yaml:"-" json:"validation_error,omitempty"`
	RecordCount     int       `yaml:"-" json:"record_count"`
}

// String returns a human-readable description of the source
func (s Source) String() string {
	status := "valid"
	if !s.Valid {
		status = "unvalidated"
		if s.ValidationError != "" {
			status = fmt.Sprintf("invalid: %s", s.ValidationError)
		}
	}
	switch s.Type {
	case SourceEndpoint:
		return fmt.Sprintf("%s (%s, %s)", s.URL, s.Type, status)
	case SourceSQLite:
		table := s.Table
		if table == "" {
			table = "*"
		}
		return fmt.Sprintf("%s:%s (%s, records=%d, %s)", s.Path, table, s.Type, s.RecordCount, status)
	}
	return fmt.Sprintf("%s (%s, records=%d, %s)", s.Path, s.Type, s.RecordCount, status)
}

// Location returns the URL or path, whichever applies.
func (s Source) Location() string {
	if s.Type == SourceEndpoint {
		return s.URL
	}
	return s.Path
}

// IsSQLiteName reports whether name has a SQLite database extension.
func IsSQLiteName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Detect classifies a command-line argument. URLs become endpoints,
// database files SQLite sources and anything else an inline dataset.
// A "path.db:table" suffix selects the SQLite table.
func Detect(arg string) Source {
	if u, err := url.Parse(arg); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return Source{Type: SourceEndpoint, URL: arg}
	}
	if i := strings.LastIndex(arg, ":"); i > 0 && IsSQLiteName(arg[:i]) {
		return Source{Type: SourceSQLite, Path: arg[:i], Table: arg[i+1:]}
	}
	if IsSQLiteName(arg) {
		return Source{Type: SourceSQLite, Path: arg}
	}
	return Source{Type: SourceInline, Path: arg}
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// Dir is the directory to scan (SELTABLE_DATA_DIR or cwd when empty).
	Dir string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives progress messages when set.
	Logger func(msg string)
}

// DiscoverSources finds dataset files and SQLite databases in a directory,
// freshest first.
func DiscoverSources(opts DiscoveryOptions) ([]Source, error) {
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger(fmt.Sprintf(format, args...))
		}
	}

	dir, err := loader.GetDataDir(opts.Dir)
	if err != nil {
		return nil, err
	}
	logf("Discovering sources in: %s", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var sources []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var src Source
		switch {
		case IsSQLiteName(name):
			src = Source{Type: SourceSQLite, Priority: PrioritySQLite}
		case loader.IsDatasetName(name):
			src = Source{Type: SourceInline, Priority: PriorityInline}
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		src.Path = filepath.Join(dir, name)
		src.ModTime = info.ModTime()
		src.Size = info.Size()
		sources = append(sources, src)
		logf("Found %s: %s (mod=%s)", src.Type, src.Path, src.ModTime.Format(time.RFC3339))
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				logf("Validation failed for %s: %v", sources[i].Path, err)
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	logf("Discovered %d sources", len(sources))
	return sources, nil
}

// ValidateSource checks that a source can be read and records its size.
func ValidateSource(s *Source) error {
	err := validate(s)
	s.Valid = err == nil
	if err != nil {
		s.ValidationError = err.Error()
	} else {
		s.ValidationError = ""
	}
	return err
}

func validate(s *Source) error {
	switch s.Type {
	case SourceEndpoint:
		u, err := url.Parse(s.URL)
		if err != nil {
			return err
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("endpoint %q is not an absolute URL", s.URL)
		}
		return nil
	case SourceInline:
		recs, err := loader.LoadFile(s.Path, loader.ParseOptions{WarningHandler: func(string) {}})
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("no records")
		}
		s.RecordCount = len(recs)
		return nil
	case SourceSQLite:
		p, err := NewSQLiteProvider(s.Path, s.Table, SQLiteOptions{})
		if err != nil {
			return err
		}
		defer p.Close()
		n, err := p.Count()
		if err != nil {
			return err
		}
		s.Table = p.Table()
		s.RecordCount = n
		return nil
	}
	return fmt.Errorf("unknown source type: %q", s.Type)
}

// SelectBestSource returns the first valid source of an already sorted list.
func SelectBestSource(sources []Source) (Source, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("no valid sources among %d candidates", len(sources))
}
