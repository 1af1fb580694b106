// Package table is the selectable table widget core. It owns the record
// store, the selection, the fetch state and the filter view, and emits a
// fresh view model after every mutation.
//
// All state lives behind one mutex. Provider I/O never runs while the mutex
// is held: a fetch is started with BeginFetch (or OnScroll/LoadMore), the
// caller runs the returned request, and hands the outcome to CompleteFetch.
// FetchNextPage does all three for synchronous callers.
package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vanderheijden86/seltable/pkg/column"
	"github.com/vanderheijden86/seltable/pkg/debug"
	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/filter"
	"github.com/vanderheijden86/seltable/pkg/metrics"
	"github.com/vanderheijden86/seltable/pkg/record"
	"github.com/vanderheijden86/seltable/pkg/scroll"
	"github.com/vanderheijden86/seltable/pkg/selection"
	"github.com/vanderheijden86/seltable/pkg/viewmodel"
)

// DefaultHeight is the viewport height used when none is configured.
const DefaultHeight = 400

// Options configures a Table.
type Options struct {
	Columns []column.Spec

	// Records is the inline dataset. Without a Provider the table runs in
	// local mode and never fetches.
	Records  []record.Record
	Provider fetch.Provider

	// Selected holds the primary-key values to preselect.
	Selected []any

	// QueryParams is a JSON object of base parameters. Malformed JSON is
	// logged and replaced by an empty object. Query, when non-nil, takes
	// precedence.
	QueryParams string
	Query       map[string]any
	// NestKey, when set, merges paging parameters into the object stored
	// under that key.
	NestKey string

	PageSize        int
	Height          float64
	ScrollThreshold float64
	RejectPolicy    fetch.RejectPolicy

	// Emit is called with a new snapshot after every mutation, while the
	// table lock is held. It must not call back into the Table.
	Emit viewmodel.Emitter

	// Now defaults to time.Now.
	Now func() time.Time
}

// Table is one widget instance. It is safe for concurrent use.
type Table struct {
	mu sync.Mutex

	cols     column.Registry
	store    *record.Store
	sel      *selection.Model
	state    fetch.State
	params   fetch.QueryParams
	provider fetch.Provider
	policy   scroll.Policy
	view     filter.View
	height   float64
	emit     viewmodel.Emitter
	now      func() time.Time

	lastReject *fetch.CodeError
}

// New builds a table, loads the inline records, applies the preselection and
// emits the initial view model.
func New(opts Options) (*Table, error) {
	cols := column.NewRegistry(opts.Columns)
	if err := cols.Validate(); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}

	params := fetch.NewQueryParams(opts.Query)
	if opts.Query == nil {
		var ok bool
		params, ok = fetch.ParseQueryParams(opts.QueryParams)
		debug.LogIf(!ok, "table: malformed query params %q, using {}", opts.QueryParams)
	}
	if opts.NestKey != "" {
		params = params.Nested(opts.NestKey)
	}

	t := &Table{
		cols:     cols,
		store:    record.NewStore(cols.PrimaryKey()),
		sel:      selection.New(cols.PrimaryKey()),
		state:    fetch.NewState(opts.PageSize, opts.RejectPolicy),
		params:   params,
		provider: opts.Provider,
		policy:   scroll.NewPolicy(opts.ScrollThreshold),
		height:   opts.Height,
		emit:     opts.Emit,
		now:      opts.Now,
	}
	if t.height <= 0 {
		t.height = DefaultHeight
	}
	if t.emit == nil {
		t.emit = viewmodel.Discard
	}
	if t.now == nil {
		t.now = time.Now
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(opts.Records) > 0 {
		t.store.Merge(opts.Records)
	}
	if len(opts.Selected) > 0 {
		keys := make([]record.Key, 0, len(opts.Selected))
		for _, v := range opts.Selected {
			if k, ok := toKey(v); ok {
				keys = append(keys, k)
			}
		}
		applied, pending := t.sel.Preselect(keys, t.store)
		debug.Log("table: preselected %d, %d pending", applied, pending)
	}
	t.emitLocked()
	return t, nil
}

func toKey(v any) (record.Key, bool) {
	if k, ok := v.(record.Key); ok {
		return k, k != ""
	}
	return record.KeyOf(v)
}

// Remote reports whether the table has a provider.
func (t *Table) Remote() bool { return t.provider != nil }

// Height returns the configured viewport height.
func (t *Table) Height() float64 { return t.height }

// Columns returns the column registry.
func (t *Table) Columns() column.Registry { return t.cols }

// SetSelected selects or deselects the row whose primary key is key.
// Selecting a key that is not loaded is ignored.
func (t *Table) SetSelected(key any, present bool) selection.Result {
	k, ok := toKey(key)
	if !ok {
		return selection.Ignored
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	res := t.sel.Set(k, present, t.store)
	if res == selection.Ignored {
		debug.Log("table: select of unknown key %q ignored", k)
	}
	t.emitLocked()
	return res
}

// Toggle flips the selection of key.
func (t *Table) Toggle(key any) selection.Result {
	k, ok := toKey(key)
	if !ok {
		return selection.Ignored
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	res := t.sel.Toggle(k, t.store)
	t.emitLocked()
	return res
}

// SelectAll replaces the selection with every loaded record.
func (t *Table) SelectAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.sel.SelectAll(t.store)
	t.emitLocked()
	return n
}

// ClearSelection deselects everything.
func (t *Table) ClearSelection() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.sel.Clear()
	t.emitLocked()
	return n
}

// ToggleAll drives the select-all checkbox: it clears the selection when
// every loaded row is selected and selects all otherwise. It returns the
// resulting all-selected state.
func (t *Table) ToggleAll() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sel.IsAllSelected(t.store.Len()) {
		t.sel.Clear()
	} else {
		t.sel.SelectAll(t.store)
	}
	t.emitLocked()
	return t.sel.IsAllSelected(t.store.Len())
}

// IsAllSelected reports whether every loaded record is selected.
func (t *Table) IsAllSelected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sel.IsAllSelected(t.store.Len())
}

// ApplyFilter switches the rendered rows to the records whose title field
// contains term, or back to the full store for "". The store and the
// selection are never modified. While a filter is active the scroll
// trigger is suppressed.
func (t *Table) ApplyFilter(term string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.view = filter.Apply(t.store, t.cols.TitleField(), term)
	t.emitLocked()
}

// Filter returns the active filter term.
func (t *Table) Filter() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view.Term
}

// OnScroll feeds scroll geometry to the trigger policy. When it decides to
// fetch, the pointer is recorded and the fetch is started in the same
// critical section, and the request is returned for the caller to run.
func (t *Table) OnScroll(g scroll.Geometry) (fetch.Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.provider == nil {
		return fetch.Request{}, false
	}
	gate := scroll.Gate{
		LastPointer: t.state.LastPointer,
		Loading:     t.state.Loading(),
		Exhausted:   t.state.Exhausted,
		Suppressed:  t.view.Active,
	}
	if !t.policy.ShouldFetch(g, gate) {
		return fetch.Request{}, false
	}
	t.state = t.state.MarkPointer(g.ScrollTop)
	req, err := t.beginLocked()
	if err != nil {
		return fetch.Request{}, false
	}
	return req, true
}

// LoadMore is the manual trigger. It ignores exhaustion and the filter but
// still refuses to start a second concurrent fetch.
func (t *Table) LoadMore() (fetch.Request, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.provider == nil {
		return fetch.Request{}, fetch.ErrNoProvider
	}
	if !t.state.Loading() {
		t.state = t.state.Rearm()
	}
	return t.beginLocked()
}

// BeginFetch starts a fetch of the current page.
func (t *Table) BeginFetch() (fetch.Request, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.provider == nil {
		return fetch.Request{}, fetch.ErrNoProvider
	}
	return t.beginLocked()
}

func (t *Table) beginLocked() (fetch.Request, error) {
	next, req, err := t.state.Begin(t.params, t.now())
	if err != nil {
		return fetch.Request{}, err
	}
	t.state = next
	debug.Log("table: fetch %s page=%d size=%d", req.ID, req.Page, req.PageSize)
	t.emitLocked()
	return req, nil
}

// Run executes req against the provider. It does not touch table state and
// may be called from any goroutine.
func (t *Table) Run(ctx context.Context, req fetch.Request) fetch.Result {
	if t.provider == nil {
		return fetch.Result{RequestID: req.ID, Err: fetch.ErrNoProvider}
	}
	resp, err := t.provider.Fetch(ctx, req.Query)
	return fetch.Result{RequestID: req.ID, Response: resp, Err: err}
}

// CompleteFetch settles the in-flight fetch. Records from a successful page
// are merged, pending preselections are resolved and an active filter is
// recomputed. The returned Effects carry the surfaced failure, if any.
func (t *Table) CompleteFetch(res fetch.Result) (fetch.Effects, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, eff, err := t.state.Settle(res, t.now())
	if err != nil {
		debug.Log("table: dropping result %s: %v", res.RequestID, err)
		return eff, err
	}
	t.state = next
	metrics.FetchLatency.Record(eff.Elapsed)
	debug.LogTiming("fetch "+res.RequestID, eff.Elapsed)

	if eff.Rejected != nil {
		t.lastReject = eff.Rejected
		debug.Log("table: %v", eff.Rejected)
	}
	if eff.Failure != nil {
		debug.Log("table: %v", eff.Failure)
	}
	if len(eff.Merge) > 0 {
		stats := t.store.Merge(eff.Merge)
		if n := t.sel.Resolve(t.store); n > 0 {
			debug.Log("table: resolved %d pending selections", n)
		}
		if t.view.Active {
			t.view = filter.Apply(t.store, t.cols.TitleField(), t.view.Term)
		}
		debug.Log("table: merged +%d ~%d skipped %d", stats.Added, stats.Updated, stats.Skipped)
	}
	t.emitLocked()
	return eff, nil
}

// FetchNextPage loads the next page synchronously. In local mode it returns
// the store contents without fetching. The returned records are the page
// just merged; a surfaced failure is returned as the error.
func (t *Table) FetchNextPage(ctx context.Context) ([]record.Record, error) {
	if t.provider == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.store.All(), nil
	}

	req, err := t.BeginFetch()
	if err != nil {
		return nil, err
	}
	eff, err := t.CompleteFetch(t.Run(ctx, req))
	if err != nil {
		return nil, err
	}
	return eff.Merge, eff.Failure
}

// Value returns the serialized selection, e.g. "[1,2]".
func (t *Table) Value() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valueLocked()
}

func (t *Table) valueLocked() string {
	v, err := t.sel.Serialize()
	if err != nil {
		debug.Log("table: %v", err)
		return "[]"
	}
	return v
}

// SelectedKeys returns the selected keys in selection order.
func (t *Table) SelectedKeys() []record.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sel.Keys()
}

// SelectedValues returns the raw primary-key values of the selection,
// suitable as Options.Selected when rebuilding the table.
func (t *Table) SelectedValues() []any {
	t.mu.Lock()
	defer t.mu.Unlock()

	pk := t.cols.PrimaryKey()
	vals := t.sel.Values()
	out := make([]any, 0, len(vals)+len(t.sel.Pending()))
	for _, r := range vals {
		out = append(out, r[pk])
	}
	for _, k := range t.sel.Pending() {
		out = append(out, k)
	}
	return out
}

// Labels returns one label per selected record, in selection order.
func (t *Table) Labels() []viewmodel.Label {
	return t.View().Labels
}

// Len returns the number of loaded records.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Len()
}

// State returns a copy of the fetch state.
func (t *Table) State() fetch.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastReject returns the last non-success response code seen, if any.
func (t *Table) LastReject() *fetch.CodeError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReject
}

// Err returns the surfaced failure, or nil.
func (t *Table) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Err
}

// View builds the current view model.
func (t *Table) View() viewmodel.ViewModel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buildLocked()
}

func (t *Table) buildLocked() viewmodel.ViewModel {
	var rows []record.Record
	if t.view.Active {
		rows = make([]record.Record, 0, len(t.view.Keys))
		for _, k := range t.view.Keys {
			if r, ok := t.store.Get(k); ok {
				rows = append(rows, r)
			}
		}
	} else {
		rows = t.store.All()
	}
	return viewmodel.Build(viewmodel.Input{
		Columns:     t.cols,
		Records:     rows,
		Checked:     t.sel.Has,
		Labels:      t.sel.Labels(t.cols.TitleField()),
		AllSelected: t.sel.IsAllSelected(t.store.Len()),
		Value:       t.valueLocked(),
		Filter:      t.view.Term,
		Fetch:       t.state,
		Loaded:      t.store.Len(),
	})
}

func (t *Table) emitLocked() {
	t.emit(t.buildLocked())
}

// IsBusy reports whether err means a fetch was already in flight.
func IsBusy(err error) bool { return errors.Is(err, fetch.ErrBusy) }
