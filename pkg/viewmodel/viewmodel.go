// Package viewmodel builds the renderable snapshot handed to a renderer after
// every state change. Renderers only read view models; they never reach
// into the table's state.
package viewmodel

import (
	"fmt"

	"github.com/vanderheijden86/seltable/pkg/column"
	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/metrics"
	"github.com/vanderheijden86/seltable/pkg/record"
	"github.com/vanderheijden86/seltable/pkg/selection"
)

// IndicatorKind classifies the status line under the rows.
type IndicatorKind int

const (
	IndicatorNone IndicatorKind = iota
	IndicatorLoading
	IndicatorEmpty
	IndicatorFailed
)

func (k IndicatorKind) String() string {
	switch k {
	case IndicatorLoading:
		return "loading"
	case IndicatorEmpty:
		return "empty"
	case IndicatorFailed:
		return "failed"
	default:
		return "none"
	}
}

// MarshalText lets the kind appear by name in JSON output.
func (k IndicatorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (k *IndicatorKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "loading":
		*k = IndicatorLoading
	case "empty":
		*k = IndicatorEmpty
	case "failed":
		*k = IndicatorFailed
	case "none", "":
		*k = IndicatorNone
	default:
		return fmt.Errorf("viewmodel: unknown indicator kind %q", b)
	}
	return nil
}

// Indicator texts.
const (
	TextLoading = "Loading data..."
	TextEmpty   = "No data"
	TextFailed  = "Unable to load data..."
)

// Indicator is the empty/loading/error status line.
type Indicator struct {
	Kind IndicatorKind `json:"kind"`
	Text string        `json:"text,omitempty"`
}

// Row is one rendered table row.
type Row struct {
	Key     record.Key `json:"key"`
	Cells   []string   `json:"cells"`
	Checked bool       `json:"checked"`
}

// Label is one selected-item chip.
type Label struct {
	Key      record.Key `json:"key"`
	Title    string     `json:"title"`
	Closable bool       `json:"closable"`
}

// ViewModel is a complete, self-consistent snapshot of the table.
type ViewModel struct {
	Headers     []column.Header `json:"headers"`
	Rows        []Row           `json:"rows"`
	Labels      []Label         `json:"labels"`
	AllSelected bool            `json:"all_selected"`
	Indicator   Indicator       `json:"indicator"`
	// Value is the serialized selection, e.g. "[1,2]".
	Value  string `json:"value"`
	Filter string `json:"filter,omitempty"`
	Page   int    `json:"page"`
	Status string `json:"status"`
	// Loaded is the number of records in the store, not just the visible rows.
	Loaded int `json:"loaded"`
}

// Input is everything Build needs.
type Input struct {
	Columns     column.Registry
	Records     []record.Record
	Checked     func(record.Key) bool
	Labels      []selection.Label
	AllSelected bool
	Value       string
	Filter      string
	Fetch       fetch.State
	Loaded      int
}

// Build assembles a ViewModel. Records are rendered in the given order.
func Build(in Input) ViewModel {
	defer metrics.Timer(metrics.ViewBuild)()

	pk := in.Columns.PrimaryKey()
	cols := in.Columns.Columns()

	vm := ViewModel{
		Headers:     in.Columns.Headers(),
		Rows:        make([]Row, 0, len(in.Records)),
		Labels:      make([]Label, len(in.Labels)),
		AllSelected: in.AllSelected,
		Value:       in.Value,
		Filter:      in.Filter,
		Page:        in.Fetch.Page,
		Status:      in.Fetch.Status.String(),
		Loaded:      in.Loaded,
	}

	for _, r := range in.Records {
		key, ok := r.Key(pk)
		if !ok {
			continue
		}
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = record.Text(r[c.Field])
		}
		row := Row{Key: key, Cells: cells}
		if in.Checked != nil {
			row.Checked = in.Checked(key)
		}
		vm.Rows = append(vm.Rows, row)
	}

	for i, l := range in.Labels {
		vm.Labels[i] = Label{Key: l.Key, Title: l.Title, Closable: true}
	}

	vm.Indicator = indicator(in.Fetch, len(vm.Rows))
	return vm
}

func indicator(s fetch.State, rows int) Indicator {
	switch {
	case s.Loading():
		return Indicator{Kind: IndicatorLoading, Text: TextLoading}
	case s.Status == fetch.Failed:
		return Indicator{Kind: IndicatorFailed, Text: TextFailed}
	case rows == 0:
		return Indicator{Kind: IndicatorEmpty, Text: TextEmpty}
	}
	return Indicator{}
}

// Row returns the row for key, if visible.
func (vm ViewModel) Row(key record.Key) (Row, bool) {
	for _, r := range vm.Rows {
		if r.Key == key {
			return r, true
		}
	}
	return Row{}, false
}

// LabelTitles returns the label titles in order.
func (vm ViewModel) LabelTitles() []string {
	out := make([]string, len(vm.Labels))
	for i, l := range vm.Labels {
		out[i] = l.Title
	}
	return out
}
