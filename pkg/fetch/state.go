// Package fetch implements the paging state machine: one explicit tagged
// state, pure transitions that return the next state plus the effects the
// caller must apply, and the provider contract.
package fetch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vanderheijden86/seltable/pkg/record"
)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 10

// Status is the tag of the fetch state.
type Status int

const (
	Idle Status = iota
	Loading
	// Failed behaves like Idle for gating purposes but remembers that the
	// last fetch did not complete, so the load-failure indicator persists.
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// RejectPolicy decides how a non-success response code is surfaced.
type RejectPolicy int

const (
	// RejectAsEmpty treats the response as an empty page and surfaces nothing.
	RejectAsEmpty RejectPolicy = iota
	// RejectAsFailure surfaces the CodeError like a transport failure.
	RejectAsFailure
)

// ParseRejectPolicy maps config strings to a policy. Unknown values map to
// RejectAsEmpty.
func ParseRejectPolicy(s string) RejectPolicy {
	if s == "failure" || s == "error" {
		return RejectAsFailure
	}
	return RejectAsEmpty
}

// Data is the payload of a successful response.
type Data struct {
	List  []record.Record `json:"list"`
	Total *int            `json:"total,omitempty"`
}

// Response is the provider's answer for one page. Code 0 is the only
// success code.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"msg,omitempty"`
	Data    Data   `json:"data"`
}

// Provider fetches one page of records.
type Provider interface {
	Fetch(ctx context.Context, q Query) (Response, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, q Query) (Response, error)

func (f ProviderFunc) Fetch(ctx context.Context, q Query) (Response, error) {
	return f(ctx, q)
}

// Request describes one outbound fetch.
type Request struct {
	ID       string
	Page     int
	PageSize int
	Query    Query
	Started  time.Time
}

// Result is the settled outcome of a Request.
type Result struct {
	RequestID string
	Response  Response
	Err       error
}

// Effects lists what the caller must do after Settle.
type Effects struct {
	// Merge holds records to merge into the store.
	Merge []record.Record
	// Advanced reports that the page counter moved forward.
	Advanced bool
	// Failure is the error to surface to the renderer, if any.
	Failure error
	// Rejected is set for any non-success response code, whatever the policy.
	Rejected *CodeError
	// Elapsed is the time between Begin and Settle.
	Elapsed time.Duration
}

// State is the fetch state. It is a value; transitions return a new State.
type State struct {
	Status      Status
	Page        int
	PageSize    int
	LastPointer float64
	// Exhausted is set after a page came back empty.
	Exhausted bool
	// Err is the last surfaced failure; it is non-nil only when Status is Failed.
	Err error

	Policy RejectPolicy

	inFlight string
	started  time.Time
}

// NewState returns an idle state at page 1.
func NewState(pageSize int, policy RejectPolicy) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return State{Status: Idle, Page: 1, PageSize: pageSize, Policy: policy}
}

// Loading reports whether a fetch is in flight.
func (s State) Loading() bool { return s.Status == Loading }

// InFlight returns the in-flight request ID, or "".
func (s State) InFlight() string { return s.inFlight }

// Begin starts a fetch for the current page. It fails with ErrBusy while
// another fetch is in flight and leaves the state untouched in that case.
func (s State) Begin(params QueryParams, now time.Time) (State, Request, error) {
	if s.Status == Loading {
		return s, Request{}, ErrBusy
	}
	req := Request{
		ID:       uuid.NewString(),
		Page:     s.Page,
		PageSize: s.PageSize,
		Query:    params.WithPaging(s.Page, s.PageSize),
		Started:  now,
	}
	next := s
	next.Status = Loading
	next.inFlight = req.ID
	next.started = now
	return next, req, nil
}

// MarkPointer records the scroll position that triggered a fetch.
func (s State) MarkPointer(p float64) State {
	s.LastPointer = p
	return s
}

// Rearm clears Exhausted so the next trigger may fetch again.
func (s State) Rearm() State {
	s.Exhausted = false
	return s
}

// Settle applies the outcome of the in-flight request. Results for any other
// request are rejected with ErrStaleResult and the state is unchanged.
func (s State) Settle(res Result, now time.Time) (State, Effects, error) {
	if s.Status != Loading || res.RequestID == "" || res.RequestID != s.inFlight {
		return s, Effects{}, ErrStaleResult
	}

	next := s
	next.inFlight = ""
	next.started = time.Time{}
	eff := Effects{Elapsed: now.Sub(s.started)}

	if res.Err != nil {
		err := AsTransport(res.Err)
		next.Status = Failed
		next.Err = err
		eff.Failure = err
		return next, eff, nil
	}

	if res.Response.Code != 0 {
		ce := &CodeError{Code: res.Response.Code, Message: res.Response.Message}
		eff.Rejected = ce
		if s.Policy == RejectAsFailure {
			next.Status = Failed
			next.Err = ce
			eff.Failure = ce
			return next, eff, nil
		}
		next.Status = Idle
		next.Err = nil
		return next, eff, nil
	}

	next.Status = Idle
	next.Err = nil
	list := res.Response.Data.List
	if len(list) == 0 {
		next.Exhausted = true
		return next, eff, nil
	}
	next.Page++
	next.Exhausted = false
	eff.Merge = list
	eff.Advanced = true
	return next, eff, nil
}
