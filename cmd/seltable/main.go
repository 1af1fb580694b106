package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/seltable/internal/datasource"
	_ "github.com/vanderheijden86/seltable/internal/ttyguard"
	"github.com/vanderheijden86/seltable/pkg/column"
	"github.com/vanderheijden86/seltable/pkg/config"
	"github.com/vanderheijden86/seltable/pkg/debug"
	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/hooks"
	"github.com/vanderheijden86/seltable/pkg/metrics"
	"github.com/vanderheijden86/seltable/pkg/table"
	"github.com/vanderheijden86/seltable/pkg/ui"
	"github.com/vanderheijden86/seltable/pkg/version"
	"github.com/vanderheijden86/seltable/pkg/watcher"
	"github.com/vanderheijden86/seltable/pkg/workspace"
)

type flags struct {
	table      string
	source     string
	pk         string
	name       string
	selected   string
	query      string
	nestKey    string
	pageSize   int
	threshold  int
	reject     string
	print      bool
	watch      bool
	remember   bool
	noHooks    bool
	namespace  bool
	metrics    bool
	cpuProfile string
}

func parseFlags(args []string) (flags, []string, error) {
	var f flags
	fs := flag.NewFlagSet("seltable", flag.ContinueOnError)
	fs.StringVar(&f.table, "table", "", "Table definition: a name from the config or a YAML file")
	fs.StringVar(&f.source, "source", "", "Data source (file, .db[:table] or URL); overrides the table definition")
	fs.StringVar(&f.pk, "pk", "", "Primary-key field when no columns are defined (default id)")
	fs.StringVar(&f.name, "name", "", "Title field when no columns are defined (default name)")
	fs.StringVar(&f.selected, "selected", "", `Preselected keys as a JSON array, e.g. "[1,2]"`)
	fs.StringVar(&f.query, "query", "", `Base query parameters as a JSON object`)
	fs.StringVar(&f.nestKey, "nest-key", "", "Merge paging parameters into this nested object")
	fs.IntVar(&f.pageSize, "page-size", 0, "Records per page")
	fs.IntVar(&f.threshold, "threshold", 0, "Rows from the bottom that trigger the next page")
	fs.StringVar(&f.reject, "reject", "", "Non-success response handling: empty | failure")
	fs.BoolVar(&f.print, "print", false, "Print the first page as JSON instead of starting the UI")
	fs.BoolVar(&f.watch, "watch", true, "Reload inline datasets when the file changes")
	fs.BoolVar(&f.remember, "remember", false, "Restore and save the selection for named tables")
	fs.BoolVar(&f.namespace, "namespace", false, "Prefix keys with the file name when several datasets are given")
	fs.BoolVar(&f.noHooks, "no-hooks", false, "Skip .seltable/hooks.yaml")
	fs.BoolVar(&f.metrics, "metrics", false, "Print timing metrics to stderr on exit")
	fs.StringVar(&f.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	showVersion := fs.Bool("version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	if *showVersion {
		return f, nil, errVersion
	}
	return f, fs.Args(), nil
}

var errVersion = errors.New("version requested")

func main() {
	f, args, err := parseFlags(os.Args[1:])
	switch {
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, errVersion):
		fmt.Printf("seltable %s\n", version.Version)
		os.Exit(0)
	case err != nil:
		os.Exit(2)
	}

	if f.cpuProfile != "" {
		pf, err := os.Create(f.cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pf.Close()
		if err := pprof.StartCPUProfile(pf); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if err := run(f, args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if f.metrics {
		metrics.WriteSummary(os.Stderr)
	}
}

// session is everything needed to (re)build the table.
type session struct {
	name   string
	def    config.TableDef
	src    datasource.Source
	opened *datasource.Opened
	pk     string
	title  string

	// paths lists every dataset file when several are given; they are
	// loaded together as one inline table.
	paths     []string
	namespace bool
}

func run(f flags, args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		debug.Log("config: %v, using defaults", err)
		cfg = config.DefaultConfig()
	}

	def, name, err := resolveTableDef(f.table, cfg)
	if err != nil {
		return err
	}
	if err := applyFlags(&def, f); err != nil {
		return err
	}
	def.ApplyDefaults(cfg.UI)

	headless := f.print || !term.IsTerminal(int(os.Stdout.Fd()))

	arg := f.source
	if arg == "" && len(args) > 0 {
		arg = args[0]
	}
	src, err := resolveSource(arg, def, !headless && isTerminal())
	if err != nil {
		return err
	}

	s := &session{name: name, def: def, src: src, pk: f.pk, title: f.name, namespace: f.namespace}
	if f.source == "" && len(args) > 1 {
		s.paths = args
	}
	if err := s.open(); err != nil {
		return err
	}
	defer s.opened.Close()

	if len(def.Selected) == 0 && f.remember && name != "" {
		if keys, err := config.LoadSelection(name); err == nil {
			s.def.Selected = keys
		}
	}

	tbl, err := s.build(s.def.Selected)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if headless {
		return printHeadless(ctx, stdout, tbl, src)
	}

	opts := ui.Options{
		Title:     titleFor(name, src),
		Reload:    s.reload,
		CellWidth: cfg.UI.CellWidth,
	}
	if f.watch && src.Type == datasource.SourceInline {
		w, err := watcher.New(src.Path)
		if err == nil && w.Start() == nil {
			defer w.Stop()
			opts.Watcher = w
		}
	}

	final, err := runTUIProgram(ui.New(tbl, opts))
	if err != nil {
		return fmt.Errorf("running table UI: %w", err)
	}

	if f.remember && name != "" {
		if err := config.SaveSelection(name, final.Table().SelectedValues()); err != nil {
			debug.Log("saving selection: %v", err)
		}
	}
	return emitValue(stdout, f, hooks.OutputContext{
		Table:     name,
		Source:    src.Location(),
		Value:     final.Value(),
		Count:     len(final.Table().SelectedKeys()),
		Timestamp: time.Now(),
	})
}

// emitValue prints the confirmed selection between the pre- and post-output
// hooks. A failing pre-output hook suppresses the output.
func emitValue(w io.Writer, f flags, hctx hooks.OutputContext) error {
	cwd, _ := os.Getwd()
	exec, err := hooks.RunHooks(cwd, hctx, f.noHooks)
	if err != nil {
		return fmt.Errorf("loading hooks: %w", err)
	}
	if exec != nil {
		defer func() {
			if s := exec.Summary(); s != "" {
				debug.Log("%s", s)
			}
		}()
		if err := exec.RunPreOutput(); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, hctx.Value)
	if exec != nil {
		if err := exec.RunPostOutput(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return nil
}

// applyFlags overlays command-line overrides on the definition.
func applyFlags(def *config.TableDef, f flags) error {
	if f.selected != "" {
		var keys []any
		if err := json.Unmarshal([]byte(f.selected), &keys); err != nil {
			return fmt.Errorf("--selected must be a JSON array: %w", err)
		}
		def.Selected = keys
	}
	if f.query != "" {
		def.QueryParams = f.query
	}
	if f.nestKey != "" {
		def.NestKey = f.nestKey
	}
	if f.pageSize > 0 {
		def.PageSize = f.pageSize
	}
	if f.threshold > 0 {
		def.ScrollThreshold = f.threshold
	}
	if f.reject != "" {
		def.RejectPolicy = f.reject
	}
	return nil
}

func (s *session) open() error {
	if len(s.paths) > 1 {
		return s.openWorkspace()
	}
	opened, err := datasource.Open(s.src, datasource.OpenOptions{
		PrimaryKey: s.pk,
		TitleField: s.title,
		NestKey:    s.def.NestKey,
	})
	if err != nil {
		return err
	}
	s.opened = opened
	return nil
}

func (s *session) openWorkspace() error {
	pk, title := s.pk, s.title
	if pk == "" {
		pk = column.DefaultPrimaryKey
	}
	if title == "" {
		title = column.DefaultTitleField
	}
	l := workspace.NewAggregateLoader(workspace.FromPaths(s.paths), pk)
	l.SetNamespace(s.namespace)
	if debug.Enabled() {
		l.SetLogger(log.New(os.Stderr, "workspace: ", 0))
	}
	recs, _, err := l.LoadAll(context.Background())
	if err != nil {
		return err
	}
	s.opened = &datasource.Opened{
		Source:  s.src,
		Records: recs,
		Columns: datasource.InferColumns(recs, pk, title),
	}
	return nil
}

func (s *session) build(selected []any) (*table.Table, error) {
	cols := s.def.Columns
	if len(cols) == 0 {
		cols = s.opened.Columns
	}
	raw, params := s.def.Params()
	return table.New(table.Options{
		Columns:         cols,
		Records:         s.opened.Records,
		Provider:        s.opened.Provider,
		Selected:        selected,
		QueryParams:     raw,
		Query:           params,
		NestKey:         s.def.NestKey,
		PageSize:        s.def.PageSize,
		Height:          float64(s.def.Height * ui.RowHeight),
		ScrollThreshold: float64(s.def.ScrollThreshold),
		RejectPolicy:    fetch.ParseRejectPolicy(s.def.RejectPolicy),
	})
}

// reload re-reads the source and rebuilds the table, carrying the current
// selection over as preselection.
func (s *session) reload(selected []any) (*table.Table, error) {
	old := s.opened
	if err := s.open(); err != nil {
		return nil, err
	}
	old.Close()
	return s.build(selected)
}

func titleFor(name string, src datasource.Source) string {
	if name != "" {
		return name
	}
	return src.Location()
}

func runTUIProgram(m ui.Model) (ui.Model, error) {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithoutSignalHandler())

	runDone := make(chan struct{})
	defer close(runDone)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}
		p.Quit()
		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}
		p.Kill()
	}()

	// SELTABLE_TUI_AUTOCLOSE_MS quits after a delay, for smoke tests.
	if v := os.Getenv("SELTABLE_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				select {
				case <-runDone:
				case <-time.After(time.Duration(ms) * time.Millisecond):
					p.Quit()
				}
			}()
		}
	}

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, tea.ErrInterrupted) {
		return m, err
	}
	if fm, ok := final.(ui.Model); ok {
		return fm, nil
	}
	return m, nil
}
