// Package provider implements remote data providers for the table.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/vanderheijden86/seltable/pkg/debug"
	"github.com/vanderheijden86/seltable/pkg/fetch"
)

// DefaultTimeout bounds one page request when no client is supplied.
const DefaultTimeout = 30 * time.Second

// AcceptEncoding is sent with every request.
const AcceptEncoding = "zstd, gzip"

// HTTP fetches pages with GET <endpoint>?<query> and decodes the
// {code, msg, data:{list}} envelope.
type HTTP struct {
	endpoint *url.URL
	client   *http.Client
	limiter  *rate.Limiter
	header   http.Header
}

// Option configures an HTTP provider.
type Option func(*HTTP)

// WithClient replaces the default client.
func WithClient(c *http.Client) Option {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithRateLimit throttles requests to perSecond with the given burst.
// Zero or negative perSecond disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *HTTP) {
		if perSecond <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(h *HTTP) {
		h.header.Add(key, value)
	}
}

// NewHTTP creates a provider for endpoint, which must be an absolute URL.
// Query parameters already present on the endpoint are kept.
func NewHTTP(endpoint string, opts ...Option) (*HTTP, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q is not an absolute URL", endpoint)
	}
	h := &HTTP{
		endpoint: u,
		client:   &http.Client{Timeout: DefaultTimeout},
		header:   make(http.Header),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Endpoint returns the configured endpoint.
func (h *HTTP) Endpoint() string { return h.endpoint.String() }

// Fetch implements fetch.Provider. Network errors, non-2xx statuses and
// undecodable bodies are returned as errors; a well-formed envelope with a
// non-zero code is returned as a Response for the state machine to judge.
func (h *HTTP) Fetch(ctx context.Context, q fetch.Query) (fetch.Response, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return fetch.Response{}, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	u, err := h.buildURL(q)
	if err != nil {
		return fetch.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fetch.Response{}, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", AcceptEncoding)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return fetch.Response{}, err
	}
	defer resp.Body.Close()
	debug.LogTiming("GET "+u, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fetch.Response{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return fetch.Response{}, err
	}
	defer body.Close()

	var out fetch.Response
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return fetch.Response{}, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

func (h *HTTP) buildURL(q fetch.Query) (string, error) {
	values := h.endpoint.Query()
	extra, err := EncodeQuery(q)
	if err != nil {
		return "", err
	}
	for k, vs := range extra {
		values[k] = vs
	}
	u := *h.endpoint
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// EncodeQuery flattens q into URL values. Scalars are sent as text; objects
// and arrays are sent JSON-encoded; nil values are omitted.
func EncodeQuery(q fetch.Query) (url.Values, error) {
	values := make(url.Values, len(q))
	for k, v := range q {
		switch x := v.(type) {
		case nil:
		case string:
			values.Set(k, x)
		case bool, int, int64, int32, uint, uint64, float64, float32, json.Number:
			values.Set(k, fmt.Sprint(x))
		default:
			b, err := json.Marshal(x)
			if err != nil {
				return nil, fmt.Errorf("encoding query param %q: %w", k, err)
			}
			values.Set(k, string(b))
		}
	}
	return values, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		return zr, nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("opening zstd body: %w", err)
		}
		return readCloser{Reader: zr, close: func() error { zr.Close(); return nil }}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}
