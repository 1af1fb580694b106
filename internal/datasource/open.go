package datasource

import (
	"fmt"
	"slices"
	"sort"

	"github.com/vanderheijden86/seltable/pkg/column"
	"github.com/vanderheijden86/seltable/pkg/debug"
	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/loader"
	"github.com/vanderheijden86/seltable/pkg/provider"
	"github.com/vanderheijden86/seltable/pkg/record"
)

// OpenOptions configures Open.
type OpenOptions struct {
	PrimaryKey string
	TitleField string
	NestKey    string
}

// Opened is a source ready to be bound to a table: either inline records or
// a provider.
type Opened struct {
	Source   Source
	Records  []record.Record
	Provider fetch.Provider
	// Columns is a best-effort column list for sources without a
	// configured one.
	Columns []column.Spec
	closer  func() error
}

// Close releases the provider's resources.
func (o *Opened) Close() error {
	if o.closer != nil {
		return o.closer()
	}
	return nil
}

// Open resolves src.
func Open(src Source, opts OpenOptions) (*Opened, error) {
	pk, title := opts.PrimaryKey, opts.TitleField
	if pk == "" {
		pk = column.DefaultPrimaryKey
	}
	if title == "" {
		title = column.DefaultTitleField
	}

	out := &Opened{Source: src}
	switch src.Type {
	case SourceInline:
		recs, err := loader.LoadFile(src.Path, loader.ParseOptions{
			PrimaryKey:     pk,
			WarningHandler: func(msg string) { debug.Log("loader: %s", msg) },
		})
		if err != nil {
			return nil, err
		}
		out.Records = recs
		out.Columns = InferColumns(recs, pk, title)

	case SourceEndpoint:
		p, err := provider.NewHTTP(src.URL, provider.WithRateLimit(src.RateLimit, 1))
		if err != nil {
			return nil, err
		}
		out.Provider = p
		out.Columns = []column.Spec{{Field: pk, PrimaryKey: true}, {Field: title, TitleField: true}}

	case SourceSQLite:
		p, err := NewSQLiteProvider(src.Path, src.Table, SQLiteOptions{PrimaryKey: pk, NestKey: opts.NestKey})
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", src.Path, err)
		}
		out.Provider = p
		out.Columns = SQLiteColumns(p, pk, title)
		out.closer = p.Close

	default:
		return nil, fmt.Errorf("unknown source type: %q", src.Type)
	}
	return out, nil
}

// InferColumns derives columns from the union of record fields: the
// primary key first, the title field second, the rest sorted.
func InferColumns(recs []record.Record, pk, title string) []column.Spec {
	seen := make(map[string]bool)
	for _, r := range recs {
		for k := range r {
			seen[k] = true
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		if k != pk && k != title {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return buildSpecs(fields, pk, title)
}

// SQLiteColumns derives columns from the table schema.
func SQLiteColumns(p *SQLiteProvider, pk, title string) []column.Spec {
	fields := slices.DeleteFunc(p.Columns(), func(c string) bool { return c == pk || c == title })
	return buildSpecs(fields, pk, title)
}

func buildSpecs(rest []string, pk, title string) []column.Spec {
	specs := []column.Spec{{Field: pk, PrimaryKey: true}}
	if title != pk {
		specs = append(specs, column.Spec{Field: title, TitleField: true})
	} else {
		specs[0].TitleField = true
	}
	for _, f := range rest {
		specs = append(specs, column.Spec{Field: f})
	}
	return specs
}
