// Package testutil provides deterministic record fixtures and fake page
// providers for table tests.
package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/vanderheijden86/seltable/pkg/column"
	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/record"
)

// GeneratorConfig controls record generation.
type GeneratorConfig struct {
	Seed       int64     // 0 = time-based
	KeyField   string    // default "id"
	NameField  string    // default "name"
	NamePrefix string    // default "user"
	Teams      []string  // default red, blue
	BaseTime   time.Time // default 2025-01-01 12:00 UTC
}

func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       42,
		KeyField:   "id",
		NameField:  "name",
		NamePrefix: "user",
		Teams:      []string{"red", "blue"},
		BaseTime:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Generator produces records with sequential numeric keys starting at 1.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	if cfg.KeyField == "" {
		cfg.KeyField = def.KeyField
	}
	if cfg.NameField == "" {
		cfg.NameField = def.NameField
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = def.NamePrefix
	}
	if len(cfg.Teams) == 0 {
		cfg.Teams = def.Teams
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = def.BaseTime
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

func NewDefault() *Generator { return New(DefaultConfig()) }

// Columns returns the column list matching generated records.
func (g *Generator) Columns() []column.Spec {
	return []column.Spec{
		{Field: g.cfg.KeyField, Title: "ID", PrimaryKey: true},
		{Field: g.cfg.NameField, Title: "Name", TitleField: true},
		{Field: "team", Title: "Team"},
		{Field: "score", Title: "Score"},
		{Field: "joined", Title: "Joined"},
	}
}

// Records generates n records. Names are zero-padded so that lexical and
// numeric order agree.
func (g *Generator) Records(n int) []record.Record {
	out := make([]record.Record, n)
	for i := range n {
		out[i] = g.record(i + 1)
	}
	return out
}

func (g *Generator) record(id int) record.Record {
	return record.Record{
		g.cfg.KeyField:  id,
		g.cfg.NameField: fmt.Sprintf("%s%03d", g.cfg.NamePrefix, id),
		"team":          g.cfg.Teams[(id-1)%len(g.cfg.Teams)],
		"score":         g.rng.Intn(100),
		"joined":        g.cfg.BaseTime.Add(time.Duration(id) * time.Hour).Format(time.RFC3339),
	}
}

// Named returns records whose title field takes the given names, keyed 1..n.
func Named(names ...string) []record.Record {
	out := make([]record.Record, len(names))
	for i, n := range names {
		out[i] = record.Record{"id": i + 1, "name": n}
	}
	return out
}

// Pager serves a fixed record set page by page, like a remote endpoint.
// Pages are 1-based. Requests past the end get an empty list.
type Pager struct {
	mu      sync.Mutex
	records []record.Record
	nestKey string
	calls   []fetch.Query

	// Code, when non-zero, is returned on every response.
	Code int
	// FailPage makes the given page fail with a transport error once.
	FailPage int
	// Gate, when set, blocks each Fetch until a value is received.
	Gate chan struct{}
}

// NewPager serves records. nestKey names the nested paging object, if any.
func NewPager(records []record.Record, nestKey string) *Pager {
	return &Pager{records: records, nestKey: nestKey}
}

func (p *Pager) Fetch(ctx context.Context, q fetch.Query) (fetch.Response, error) {
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return fetch.Response{}, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, q)

	page, size := q.Page(p.nestKey), q.PageSize(p.nestKey)
	if p.FailPage != 0 && page == p.FailPage {
		p.FailPage = 0
		return fetch.Response{}, fmt.Errorf("testutil: page %d unavailable", page)
	}
	if p.Code != 0 {
		return fetch.Response{Code: p.Code, Message: "rejected"}, nil
	}
	if size <= 0 {
		size = fetch.DefaultPageSize
	}
	start := (page - 1) * size
	list := []record.Record{}
	if start >= 0 && start < len(p.records) {
		end := min(start+size, len(p.records))
		list = p.records[start:end]
	}
	total := len(p.records)
	return fetch.Response{Data: fetch.Data{List: list, Total: &total}}, nil
}

// Calls returns the queries received so far.
func (p *Pager) Calls() []fetch.Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]fetch.Query(nil), p.calls...)
}

// ToJSONL renders records one per line.
func ToJSONL(records []record.Record) (string, error) {
	var sb strings.Builder
	if err := writeJSONL(&sb, records); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func QuickRecords(n int) []record.Record { return NewDefault().Records(n) }

func Empty() []record.Record { return []record.Record{} }
