package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/record"
	"github.com/vanderheijden86/seltable/pkg/selection"
)

const pageBody = `{"code":0,"data":{"list":[{"id":1,"name":"Alice"},{"id":2,"name":"Bob"}]}}`

func TestFetchDecodesEnvelope(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, AcceptEncoding, r.Header.Get("Accept-Encoding"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		io.WriteString(w, pageBody)
	}))
	defer srv.Close()

	p, err := NewHTTP(srv.URL+"/v1/records?tenant=acme", WithHeader("X-Token", "secret"))
	require.NoError(t, err)

	q := fetch.NewQueryParams(map[string]any{"params": map[string]any{"type": "vip"}}).
		Nested("params").WithPaging(2, 10)
	resp, err := p.Fetch(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Code)
	require.Len(t, resp.Data.List, 2)
	assert.Equal(t, "Alice", resp.Data.List[0]["name"])
	assert.Equal(t, []string{"acme"}, gotQuery["tenant"])

	var nested map[string]any
	require.NoError(t, json.Unmarshal([]byte(gotQuery["params"][0]), &nested))
	assert.Equal(t, "vip", nested["type"])
	assert.EqualValues(t, 2, nested["page"])
	assert.EqualValues(t, 10, nested["page_size"])
}

func TestFetchKeepsNumericKeysRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageBody)
	}))
	defer srv.Close()

	p, err := NewHTTP(srv.URL)
	require.NoError(t, err)
	resp, err := p.Fetch(context.Background(), fetch.Query{})
	require.NoError(t, err)

	s := record.NewStore("id")
	s.Merge(resp.Data.List)
	m := selection.New("id")
	m.Set("1", true, s)
	m.Set("2", true, s)
	v, err := m.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", v)
}

func TestFetchCompressedBodies(t *testing.T) {
	for _, enc := range []string{"gzip", "zstd"} {
		t.Run(enc, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", enc)
				var zw io.WriteCloser
				if enc == "gzip" {
					zw = gzip.NewWriter(w)
				} else {
					var err error
					zw, err = zstd.NewWriter(w)
					require.NoError(t, err)
				}
				io.WriteString(zw, pageBody)
				zw.Close()
			}))
			defer srv.Close()

			p, err := NewHTTP(srv.URL)
			require.NoError(t, err)
			resp, err := p.Fetch(context.Background(), fetch.Query{"page": 1})
			require.NoError(t, err)
			assert.Len(t, resp.Data.List, 2)
		})
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusBadGateway) }},
		{"body", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "<html>") }},
		{"encoding", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			io.WriteString(w, pageBody)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			p, err := NewHTTP(srv.URL)
			require.NoError(t, err)
			_, err = p.Fetch(context.Background(), fetch.Query{})
			assert.Error(t, err)
		})
	}
}

func TestFetchNonZeroCodeIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":1,"msg":"bad filter","data":{"list":[]}}`)
	}))
	defer srv.Close()

	p, _ := NewHTTP(srv.URL)
	resp, err := p.Fetch(context.Background(), fetch.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Code)
	assert.Equal(t, "bad filter", resp.Message)
}

func TestRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageBody)
	}))
	defer srv.Close()

	p, err := NewHTTP(srv.URL, WithRateLimit(0.001, 1))
	require.NoError(t, err)
	_, err = p.Fetch(context.Background(), fetch.Query{})
	require.NoError(t, err, "first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Fetch(ctx, fetch.Query{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, fetch.ErrBusy))
}

func TestNewHTTPRejectsRelative(t *testing.T) {
	_, err := NewHTTP("/v1/records")
	assert.Error(t, err)
}

func TestEncodeQuery(t *testing.T) {
	v, err := EncodeQuery(fetch.Query{
		"page":   3,
		"name":   "x y",
		"skip":   nil,
		"filter": map[string]any{"a": 1},
		"ids":    []int{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "3", v.Get("page"))
	assert.Equal(t, "x y", v.Get("name"))
	assert.False(t, v.Has("skip"))
	assert.JSONEq(t, `{"a":1}`, v.Get("filter"))
	assert.Equal(t, "[1,2]", v.Get("ids"))
}
