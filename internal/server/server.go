// Package server is a small paginated records endpoint speaking the
// {code, msg, data:{list, total}} envelope the HTTP provider consumes.
// It exists for demos and end-to-end tests of remote tables.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SierraSoftworks/connor"
	"github.com/fulldump/box"
	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/record"
)

// Envelope codes. Anything but CodeOK is a rejection.
const (
	CodeOK          = 0
	CodeBadRequest  = 1
	CodeUnavailable = 2
)

// DefaultNestKey is the query parameter holding a JSON-encoded params object.
const DefaultNestKey = "params"

// MaxPageSize caps page_size.
const MaxPageSize = 1000

var errBadFilter = errors.New("filter must be a JSON object")

// Options configures a Server.
type Options struct {
	// NestKey names the JSON-encoded object that may carry paging and
	// filter parameters. Defaults to DefaultNestKey.
	NestKey string

	// PageSize applies when a request names none.
	PageSize int

	// Latency delays every response.
	Latency time.Duration

	// FailEvery rejects every Nth request with CodeUnavailable. Zero disables.
	FailEvery int

	Metrics *Metrics
}

// Server serves an in-memory record set page by page.
type Server struct {
	opts Options

	mu      sync.RWMutex
	records []record.Record

	requests atomic.Int64
}

// New creates a server over records.
func New(records []record.Record, opts Options) *Server {
	if opts.NestKey == "" {
		opts.NestKey = DefaultNestKey
	}
	if opts.PageSize <= 0 {
		opts.PageSize = fetch.DefaultPageSize
	}
	return &Server{opts: opts, records: plainRecords(records)}
}

// Replace swaps the served record set.
func (s *Server) Replace(records []record.Record) {
	plain := plainRecords(records)
	s.mu.Lock()
	s.records = plain
	s.mu.Unlock()
}

// Len returns the number of served records.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Page is the data part of the envelope.
type Page struct {
	List  []record.Record `json:"list"`
	Total int             `json:"total"`
}

// Envelope is the response body of every records request.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"msg,omitempty"`
	Data    *Page  `json:"data,omitempty"`
}

// ListRequest is a parsed records query.
type ListRequest struct {
	Page     int
	PageSize int
	Filter   map[string]any
}

// ParseListRequest reads paging from the top level or from the nested
// params object; nested values win. A malformed params or filter value is
// an error.
func ParseListRequest(r *http.Request, nestKey string, defaultSize int) (ListRequest, error) {
	values := r.URL.Query()
	req := ListRequest{Page: 1, PageSize: defaultSize}

	if v := values.Get(fetch.ParamPage); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("page: %w", err)
		}
		req.Page = n
	}
	if v := values.Get(fetch.ParamPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("page_size: %w", err)
		}
		req.PageSize = n
	}

	var nested fetch.Query
	if raw := values.Get(nestKey); raw != "" {
		if err := json.Unmarshal([]byte(raw), &nested); err != nil {
			return req, fmt.Errorf("%s: %w", nestKey, err)
		}
		if p := nested.Page(""); p != 0 {
			req.Page = p
		}
		if ps := nested.PageSize(""); ps != 0 {
			req.PageSize = ps
		}
	}

	if raw := values.Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Filter); err != nil || req.Filter == nil {
			return req, errBadFilter
		}
	} else if f, ok := nested["filter"].(map[string]any); ok {
		req.Filter = f
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = defaultSize
	}
	req.PageSize = min(req.PageSize, MaxPageSize)
	return req, nil
}

// List returns one page of the records matching req.
func (s *Server) List(req ListRequest) (Page, error) {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	matched := records
	if len(req.Filter) > 0 {
		matched = make([]record.Record, 0, len(records))
		for _, r := range records {
			ok, err := connor.Match(req.Filter, map[string]any(r))
			if err != nil {
				return Page{}, fmt.Errorf("match: %w", err)
			}
			if ok {
				matched = append(matched, r)
			}
		}
	}

	page := Page{List: []record.Record{}, Total: len(matched)}
	start := (req.Page - 1) * req.PageSize
	if start < len(matched) {
		end := min(start+req.PageSize, len(matched))
		page.List = matched[start:end]
	}
	return page, nil
}

func (s *Server) listRecords(ctx context.Context) (*Envelope, error) {
	start := time.Now()
	n := s.requests.Add(1)

	if s.opts.Latency > 0 {
		select {
		case <-time.After(s.opts.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	env := s.respond(box.GetRequest(ctx), n)
	s.opts.Metrics.observe(env, time.Since(start))
	return env, nil
}

func (s *Server) respond(r *http.Request, n int64) *Envelope {
	if s.opts.FailEvery > 0 && n%int64(s.opts.FailEvery) == 0 {
		return &Envelope{Code: CodeUnavailable, Message: "temporarily unavailable"}
	}
	req, err := ParseListRequest(r, s.opts.NestKey, s.opts.PageSize)
	if err != nil {
		return &Envelope{Code: CodeBadRequest, Message: err.Error()}
	}
	page, err := s.List(req)
	if err != nil {
		return &Envelope{Code: CodeBadRequest, Message: err.Error()}
	}
	return &Envelope{Code: CodeOK, Data: &page}
}

// plainRecords converts json.Number values to float64 so filters compare
// numbers as numbers.
func plainRecords(records []record.Record) []record.Record {
	out := make([]record.Record, len(records))
	for i, r := range records {
		c := make(record.Record, len(r))
		for k, v := range r {
			c[k] = plainValue(v)
		}
		out[i] = c
	}
	return out
}

func plainValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return float64(i)
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = plainValue(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = plainValue(e)
		}
		return s
	}
	return v
}
