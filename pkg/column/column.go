// Package column parses table column descriptors and resolves which record
// fields carry row identity and the human-readable title.
package column

import (
	"errors"
	"fmt"
)

// Default field names used when no column is flagged.
const (
	DefaultPrimaryKey = "id"
	DefaultTitleField = "name"
)

// ErrEmptyField is returned by Validate when a column has no field name.
var ErrEmptyField = errors.New("column field is empty")

// Spec describes one displayed column.
type Spec struct {
	Field      string `yaml:"field" json:"field"`
	Title      string `yaml:"title,omitempty" json:"title,omitempty"`
	Width      int    `yaml:"width,omitempty" json:"width,omitempty"` // 0 = auto
	PrimaryKey bool   `yaml:"pk,omitempty" json:"pk,omitempty"`       // row identity
	TitleField bool   `yaml:"name,omitempty" json:"name,omitempty"`   // label chips
}

// Header is the renderable form of a column heading.
type Header struct {
	Field string `json:"field"`
	Title string `json:"title"`
	Width int    `json:"width,omitempty"`
}

// Registry is an immutable, parsed column list.
type Registry struct {
	cols       []Spec
	primaryKey string
	titleField string
}

// NewRegistry resolves the primary-key and title fields. When several
// columns carry the same flag the last one wins.
func NewRegistry(specs []Spec) Registry {
	r := Registry{
		cols:       make([]Spec, len(specs)),
		primaryKey: DefaultPrimaryKey,
		titleField: DefaultTitleField,
	}
	copy(r.cols, specs)

	for _, c := range r.cols {
		if c.PrimaryKey {
			r.primaryKey = c.Field
		}
		if c.TitleField {
			r.titleField = c.Field
		}
	}
	return r
}

// Validate reports descriptors that cannot address a record field.
func (r Registry) Validate() error {
	for i, c := range r.cols {
		if c.Field == "" {
			return fmt.Errorf("column %d: %w", i, ErrEmptyField)
		}
	}
	return nil
}

// Columns returns a copy of the column list.
func (r Registry) Columns() []Spec {
	out := make([]Spec, len(r.cols))
	copy(out, r.cols)
	return out
}

// Len returns the number of columns.
func (r Registry) Len() int { return len(r.cols) }

// PrimaryKey returns the field that identifies a row.
func (r Registry) PrimaryKey() string { return r.primaryKey }

// TitleField returns the field used for selection labels and search.
func (r Registry) TitleField() string { return r.titleField }

// Headers returns column headings. A column without a title shows its field.
func (r Registry) Headers() []Header {
	out := make([]Header, len(r.cols))
	for i, c := range r.cols {
		title := c.Title
		if title == "" {
			title = c.Field
		}
		out[i] = Header{Field: c.Field, Title: title, Width: c.Width}
	}
	return out
}
