package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/seltable/internal/datasource"
	"github.com/vanderheijden86/seltable/pkg/config"
)

var errNoSource = errors.New("no data source: pass a dataset file, a .db[:table] or an endpoint URL")

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm falls back to accessible mode without a terminal.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// resolveTableDef loads the table definition named by ref: a name
// registered in the config, or a path to a YAML file. An empty ref yields
// an empty definition.
func resolveTableDef(ref string, cfg config.Config) (config.TableDef, string, error) {
	if ref == "" {
		return config.TableDef{}, "", nil
	}
	name := ref
	path := ref
	if nt := cfg.FindTable(ref); nt != nil {
		name, path = nt.Name, nt.Path
	} else {
		name = filepath.Base(ref)
		name = name[:len(name)-len(filepath.Ext(name))]
	}
	def, err := config.LoadTable(path)
	return def, name, err
}

// sourceFromDef converts the definition's source block. Reports false when
// the block is empty.
func sourceFromDef(d config.SourceDef) (datasource.Source, bool) {
	if d.Path == "" && d.URL == "" {
		return datasource.Source{}, false
	}
	var src datasource.Source
	switch {
	case d.URL != "":
		src = datasource.Detect(d.URL)
	default:
		src = datasource.Detect(d.Path)
	}
	if d.Type != "" {
		src.Type = datasource.SourceType(d.Type)
	}
	if d.Table != "" {
		src.Table = d.Table
	}
	src.RateLimit = d.RateLimit
	return src, true
}

// resolveSource picks the source: an explicit argument wins, then the
// table definition, then discovery in the data directory. When discovery
// is ambiguous or empty and a terminal is attached, the user is asked.
func resolveSource(arg string, def config.TableDef, interactive bool) (datasource.Source, error) {
	if arg != "" {
		return datasource.Detect(arg), nil
	}
	if src, ok := sourceFromDef(def.Source); ok {
		return src, nil
	}

	dir, err := datasourceDir()
	if err != nil {
		return datasource.Source{}, err
	}
	found, err := datasource.DiscoverSources(datasource.DiscoveryOptions{
		Dir:                    dir,
		ValidateAfterDiscovery: true,
	})
	if err != nil {
		return datasource.Source{}, err
	}
	switch {
	case len(found) == 1:
		return found[0], nil
	case len(found) > 1 && interactive:
		return pickSource(found)
	case len(found) > 1:
		return datasource.SelectBestSource(found)
	case interactive:
		return askSource()
	}
	return datasource.Source{}, errNoSource
}

func datasourceDir() (string, error) {
	if d := os.Getenv("SELTABLE_DATA_DIR"); d != "" {
		return d, nil
	}
	return os.Getwd()
}

func pickSource(found []datasource.Source) (datasource.Source, error) {
	opts := make([]huh.Option[int], len(found))
	for i, s := range found {
		opts[i] = huh.NewOption(s.String(), i)
	}
	var choice int
	form := newForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Several data sources found").
			Description("Pick the one to open").
			Options(opts...).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return datasource.Source{}, err
	}
	return found[choice], nil
}

func askSource() (datasource.Source, error) {
	var location string
	form := newForm(huh.NewGroup(
		huh.NewInput().
			Title("Data source").
			Description("A .jsonl/.json file, a .db[:table] or an http(s) endpoint").
			Value(&location).
			Validate(func(s string) error {
				if s == "" {
					return errNoSource
				}
				return nil
			}),
	))
	if err := form.Run(); err != nil {
		return datasource.Source{}, fmt.Errorf("asking for a source: %w", err)
	}
	return datasource.Detect(location), nil
}
