package fetch

import (
	"maps"

	json "github.com/goccy/go-json"
)

// Paging parameter names sent to the remote provider.
const (
	ParamPage     = "page"
	ParamPageSize = "page_size"
)

// Query is the merged parameter set for one fetch.
type Query map[string]any

// Page returns the page number carried by q, looking inside nestKey when set.
func (q Query) Page(nestKey string) int {
	return intParam(q.paging(nestKey), ParamPage)
}

// PageSize returns the page size carried by q.
func (q Query) PageSize(nestKey string) int {
	return intParam(q.paging(nestKey), ParamPageSize)
}

func (q Query) paging(nestKey string) map[string]any {
	if nestKey == "" {
		return q
	}
	if m, ok := q[nestKey].(map[string]any); ok {
		return m
	}
	return nil
}

func intParam(m map[string]any, name string) int {
	switch v := m[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// QueryParams is the immutable base parameter set given at construction.
// When NestKey is set, paging parameters are merged into the object stored
// under that key instead of the top level.
type QueryParams struct {
	base    map[string]any
	nestKey string
}

// NewQueryParams copies base.
func NewQueryParams(base map[string]any) QueryParams {
	return QueryParams{base: maps.Clone(base)}
}

// ParseQueryParams decodes a JSON object. Malformed input falls back to an
// empty parameter set; ok reports whether the input parsed.
func ParseQueryParams(raw string) (QueryParams, bool) {
	if raw == "" {
		return QueryParams{}, true
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return QueryParams{}, false
	}
	return QueryParams{base: m}, true
}

// Nested returns a copy that merges paging parameters under key.
func (p QueryParams) Nested(key string) QueryParams {
	return QueryParams{base: p.base, nestKey: key}
}

// NestKey returns the key paging parameters are nested under, if any.
func (p QueryParams) NestKey() string { return p.nestKey }

// Base returns a copy of the base parameters.
func (p QueryParams) Base() map[string]any {
	return maps.Clone(p.base)
}

// WithPaging returns a new Query holding the base parameters plus page and
// page_size. The base is never modified.
func (p QueryParams) WithPaging(page, pageSize int) Query {
	q := make(Query, len(p.base)+2)
	for k, v := range p.base {
		q[k] = v
	}

	if p.nestKey == "" {
		q[ParamPage] = page
		q[ParamPageSize] = pageSize
		return q
	}

	nested := nestedObject(p.base[p.nestKey])
	nested[ParamPage] = page
	nested[ParamPageSize] = pageSize
	q[p.nestKey] = nested
	return q
}

// nestedObject accepts an object or a JSON-encoded object string; anything
// else becomes an empty object.
func nestedObject(v any) map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return maps.Clone(x)
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(x), &m); err == nil && m != nil {
			return m
		}
	}
	return make(map[string]any)
}
