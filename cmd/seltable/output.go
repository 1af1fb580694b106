package main

import (
	"context"
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/seltable/internal/datasource"
	"github.com/vanderheijden86/seltable/pkg/table"
	"github.com/vanderheijden86/seltable/pkg/version"
	"github.com/vanderheijden86/seltable/pkg/viewmodel"
)

// headlessOutput is what --print writes.
type headlessOutput struct {
	GeneratedAt string              `json:"generated_at"`
	Version     string              `json:"version"`
	Source      datasource.Source   `json:"source"`
	Error       string              `json:"error,omitempty"`
	View        viewmodel.ViewModel `json:"view"`
}

// printHeadless loads the first page of a remote table and writes the view
// model as indented JSON.
func printHeadless(ctx context.Context, w io.Writer, t *table.Table, src datasource.Source) error {
	out := headlessOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Version:     version.Version,
		Source:      src,
	}
	if t.Remote() && t.Len() == 0 {
		if _, err := t.FetchNextPage(ctx); err != nil {
			out.Error = err.Error()
		}
	}
	out.View = t.View()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
