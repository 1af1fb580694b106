// Package workspace loads several dataset files as one table.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/seltable/pkg/loader"
	"github.com/vanderheijden86/seltable/pkg/record"
)

// Dataset is one member file of a workspace.
type Dataset struct {
	Path string
	// Name defaults to the file name without extension.
	Name string
	// Prefix qualifies primary keys when namespacing is on. Defaults to
	// the lowercased name plus "-".
	Prefix string
}

// GetName returns the explicit name or the one derived from the path.
func (d Dataset) GetName() string {
	if d.Name != "" {
		return d.Name
	}
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GetPrefix returns the key prefix for this dataset.
func (d Dataset) GetPrefix() string {
	if d.Prefix != "" {
		return d.Prefix
	}
	return strings.ToLower(d.GetName()) + "-"
}

// FromPaths builds datasets from file paths.
func FromPaths(paths []string) []Dataset {
	out := make([]Dataset, len(paths))
	for i, p := range paths {
		out[i] = Dataset{Path: p}
	}
	return out
}

// QualifyID prefixes id unless it already carries the prefix.
func QualifyID(id, prefix string) string {
	if prefix == "" || strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}

// LoadResult contains the result of loading a single dataset
type LoadResult struct {
	Name    string
	Prefix  string
	Records []record.Record
	Error   error
}

// AggregateLoader loads the records of several datasets concurrently.
type AggregateLoader struct {
	datasets  []Dataset
	pkField   string
	namespace bool
	logger    *log.Logger
}

// NewAggregateLoader creates a loader for datasets keyed by pkField.
func NewAggregateLoader(datasets []Dataset, pkField string) *AggregateLoader {
	return &AggregateLoader{
		datasets: datasets,
		pkField:  pkField,
		// Silent unless the caller opts in; stderr may be captured by
		// consumers of --print.
		logger: log.New(io.Discard, "", 0),
	}
}

// SetLogger sets a custom logger for error reporting
func (l *AggregateLoader) SetLogger(logger *log.Logger) {
	l.logger = logger
}

// SetNamespace qualifies every primary key with its dataset's prefix, so
// equal keys from different files stay distinct.
func (l *AggregateLoader) SetNamespace(on bool) {
	l.namespace = on
}

// LoadAll loads every dataset and returns the records in dataset order.
// A failing dataset is reported in its LoadResult and skipped; LoadAll
// fails only when none could be loaded.
func (l *AggregateLoader) LoadAll(ctx context.Context) ([]record.Record, []LoadResult, error) {
	if len(l.datasets) == 0 {
		return nil, nil, errors.New("no datasets in workspace")
	}

	results := make([]LoadResult, len(l.datasets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, ds := range l.datasets {
		g.Go(func() error {
			results[i] = LoadResult{Name: ds.GetName(), Prefix: ds.GetPrefix()}
			if err := ctx.Err(); err != nil {
				results[i].Error = err
				return nil
			}
			recs, err := loader.LoadFile(ds.Path, loader.ParseOptions{
				PrimaryKey:     l.pkField,
				WarningHandler: func(msg string) { l.logger.Printf("%s: %s", ds.GetName(), msg) },
			})
			if err != nil {
				results[i].Error = fmt.Errorf("loading %s: %w", ds.GetName(), err)
				return nil
			}
			if l.namespace {
				l.qualify(recs, ds.GetPrefix())
			}
			results[i].Records = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, results, err
	}

	var all []record.Record
	loaded := 0
	for _, r := range results {
		if r.Error != nil {
			l.logger.Printf("skipping %s: %v", r.Name, r.Error)
			continue
		}
		loaded++
		all = append(all, r.Records...)
	}
	if loaded == 0 {
		return nil, results, fmt.Errorf("no dataset could be loaded: %w", results[0].Error)
	}
	return all, results, nil
}

// qualify rewrites primary keys in place.
func (l *AggregateLoader) qualify(recs []record.Record, prefix string) {
	for _, r := range recs {
		if k, ok := r.Key(l.pkField); ok {
			r[l.pkField] = QualifyID(string(k), prefix)
		}
	}
}
