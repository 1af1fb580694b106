// Package filter derives the transient, title-substring filtered view of the
// record store. It never mutates the store or the selection.
package filter

import (
	"strings"

	"github.com/vanderheijden86/seltable/pkg/metrics"
	"github.com/vanderheijden86/seltable/pkg/record"
)

// Source enumerates records in display order.
type Source interface {
	Ascend(fn func(record.Key, record.Record) bool)
}

// View is the result of applying a term. An inactive view means "show the
// full store".
type View struct {
	Term   string
	Active bool
	Keys   []record.Key
}

// Apply scans src and keeps records whose title field contains term.
// Matching is case-sensitive plain containment.
func Apply(src Source, titleField, term string) View {
	if term == "" {
		return View{}
	}
	defer metrics.Timer(metrics.FilterScan)()

	v := View{Term: term, Active: true}
	src.Ascend(func(k record.Key, r record.Record) bool {
		if Match(r, titleField, term) {
			v.Keys = append(v.Keys, k)
		}
		return true
	})
	return v
}

// Match reports whether r's title field contains term.
func Match(r record.Record, titleField, term string) bool {
	return strings.Contains(record.Text(r[titleField]), term)
}

// Len returns the number of matched keys.
func (v View) Len() int { return len(v.Keys) }
