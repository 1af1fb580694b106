// Package ui is the terminal renderer for a selectable table. It reads view
// models from pkg/table and turns key presses into table operations.
// Fetches run as tea.Cmds and are settled back on the update loop.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/seltable/pkg/debug"
	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/metrics"
	"github.com/vanderheijden86/seltable/pkg/scroll"
	"github.com/vanderheijden86/seltable/pkg/table"
	"github.com/vanderheijden86/seltable/pkg/viewmodel"
	"github.com/vanderheijden86/seltable/pkg/watcher"
)

// chromeRows is the number of lines around the table body: title, labels,
// search, header, indicator, footer and the container border.
const chromeRows = 8

// RowHeight is the pixel height of one terminal row, used to convert the
// table's configured height.
const RowHeight = 20

// Options configures the renderer.
type Options struct {
	Title string
	Theme *Theme

	// Reload rebuilds the table with the given preselection. It is called
	// when Watcher reports a change to the dataset file.
	Reload  func(selected []any) (*table.Table, error)
	Watcher *watcher.Watcher

	// Copy writes the serialized value somewhere. Defaults to the system
	// clipboard.
	Copy func(string) error

	// CellWidth caps auto-sized columns.
	CellWidth int
}

// FileChangedMsg reports a change to the watched dataset file.
type FileChangedMsg struct{}

type fetchDoneMsg struct {
	t   *table.Table
	res fetch.Result
}

// Model is the bubbletea model.
type Model struct {
	table *table.Table
	vm    viewmodel.ViewModel
	opts  Options
	theme Theme

	ctx    context.Context
	cancel context.CancelFunc

	width, height int
	cursor        int
	offset        int
	labelCursor   int

	searching bool
	search    textinput.Model
	spinner   spinner.Model
	inflight  fetch.Request

	showHelp bool
	helpText string
	status   string
	quitting bool
}

// New wraps t.
func New(t *table.Table, opts Options) Model {
	th := TestTheme()
	if opts.Theme != nil {
		th = *opts.Theme
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	if opts.CellWidth <= 0 {
		opts.CellWidth = 24
	}

	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.CharLimit = 100
	ti.Width = 30

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = th.Renderer.NewStyle().Foreground(th.Primary)

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		table:   t,
		opts:    opts,
		theme:   th,
		ctx:     ctx,
		cancel:  cancel,
		width:   80,
		height:  int(t.Height()) / RowHeight,
		search:  ti,
		spinner: sp,
	}
	if m.height < chromeRows+3 {
		m.height = chromeRows + 10
	}
	m.vm = t.View()
	return m
}

// Init starts the first page load of a remote table that has nothing yet,
// and the dataset watcher.
func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.opts.Watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.opts.Watcher))
	}
	if m.table.Remote() && m.table.Len() == 0 {
		if req, err := m.table.BeginFetch(); err == nil {
			cmds = append(cmds, m.fetchCmd(m.table, req), m.spinner.Tick)
		}
	}
	return tea.Batch(cmds...)
}

// WatchFileCmd waits for the next dataset change.
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

func (m *Model) fetchCmd(t *table.Table, req fetch.Request) tea.Cmd {
	m.inflight = req
	ctx := m.ctx
	return func() tea.Msg {
		return fetchDoneMsg{t: t, res: t.Run(ctx, req)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clamp()
		if m.showHelp {
			m.helpText = renderHelp(m.width - 4)
		}
		return m, nil

	case spinner.TickMsg:
		if m.vm.Indicator.Kind != viewmodel.IndicatorLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fetchDoneMsg:
		if msg.t != m.table {
			return m, nil
		}
		eff, err := m.table.CompleteFetch(msg.res)
		switch {
		case err != nil:
			debug.Log("ui: %v", err)
		case eff.Failure != nil:
			m.status = eff.Failure.Error()
		case eff.Rejected != nil:
			m.status = eff.Rejected.Error()
		case eff.Advanced:
			m.status = fmt.Sprintf("loaded page %d (+%d)", m.table.State().Page-1, len(eff.Merge))
		default:
			m.status = "no more data"
		}
		m.refresh()
		return m, nil

	case FileChangedMsg:
		m.reload()
		cmds := []tea.Cmd{WatchFileCmd(m.opts.Watcher)}
		if m.table.Remote() && m.table.Len() == 0 {
			if req, err := m.table.BeginFetch(); err == nil {
				cmds = append(cmds, m.fetchCmd(m.table, req), m.spinner.Tick)
			}
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()
	case key.Matches(msg, keys.Help):
		m.showHelp = true
		m.helpText = renderHelp(m.width - 4)
	case key.Matches(msg, keys.Up):
		m.move(-1)
	case key.Matches(msg, keys.Down):
		m.move(1)
		return m, m.maybeFetch()
	case key.Matches(msg, keys.PageUp):
		m.move(-m.bodyRows())
	case key.Matches(msg, keys.PageDown):
		m.move(m.bodyRows())
		return m, m.maybeFetch()
	case key.Matches(msg, keys.Home):
		m.move(-len(m.vm.Rows))
	case key.Matches(msg, keys.End):
		m.move(len(m.vm.Rows))
		return m, m.maybeFetch()
	case key.Matches(msg, keys.Toggle):
		if m.cursor < len(m.vm.Rows) {
			m.table.Toggle(m.vm.Rows[m.cursor].Key)
			m.refresh()
		}
	case key.Matches(msg, keys.ToggleAll):
		m.table.ToggleAll()
		m.refresh()
	case key.Matches(msg, keys.Search):
		m.searching = true
		m.search.SetValue(m.vm.Filter)
		return m, m.search.Focus()
	case key.Matches(msg, keys.LabelLeft):
		if m.labelCursor > 0 {
			m.labelCursor--
		}
	case key.Matches(msg, keys.LabelRight):
		if m.labelCursor < len(m.vm.Labels)-1 {
			m.labelCursor++
		}
	case key.Matches(msg, keys.Remove):
		if m.labelCursor < len(m.vm.Labels) {
			m.table.SetSelected(m.vm.Labels[m.labelCursor].Key, false)
			m.refresh()
		}
	case key.Matches(msg, keys.Yank):
		if err := m.opts.Copy(m.vm.Value); err != nil {
			m.status = "copy failed: " + err.Error()
		} else {
			m.status = "copied " + m.vm.Value
		}
	case key.Matches(msg, keys.LoadMore):
		req, err := m.table.LoadMore()
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.refresh()
		return m, tea.Batch(m.fetchCmd(m.table, req), m.spinner.Tick)
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.table.ApplyFilter("")
		m.refresh()
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.vm.Filter {
		m.table.ApplyFilter(m.search.Value())
		m.refresh()
	}
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	return m, tea.Quit
}

// maybeFetch feeds the cursor position to the scroll trigger. The cursor
// row plays the part of the scroll offset and the client height is one
// row, so the threshold is a distance in rows from the last loaded row.
func (m *Model) maybeFetch() tea.Cmd {
	req, ok := m.table.OnScroll(scroll.Geometry{
		ScrollTop:    float64(m.cursor),
		ClientHeight: 1,
		ScrollHeight: float64(len(m.vm.Rows)),
	})
	if !ok {
		return nil
	}
	m.refresh()
	return tea.Batch(m.fetchCmd(m.table, req), m.spinner.Tick)
}

func (m *Model) reload() {
	if m.opts.Reload == nil {
		return
	}
	next, err := m.opts.Reload(m.table.SelectedValues())
	if err != nil {
		m.status = "reload failed: " + err.Error()
		return
	}
	m.table = next
	if term := m.search.Value(); term != "" {
		m.table.ApplyFilter(term)
	}
	m.status = "dataset reloaded"
	m.refresh()
}

func (m *Model) refresh() {
	m.vm = m.table.View()
	m.clamp()
}

func (m *Model) move(delta int) {
	m.cursor += delta
	m.clamp()
}

func (m *Model) clamp() {
	n := len(m.vm.Rows)
	m.cursor = max(0, min(m.cursor, n-1))
	body := m.bodyRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+body {
		m.offset = m.cursor - body + 1
	}
	m.offset = max(0, min(m.offset, n-body))
	if m.labelCursor >= len(m.vm.Labels) {
		m.labelCursor = max(0, len(m.vm.Labels)-1)
	}
}

func (m Model) bodyRows() int {
	return max(1, m.height-chromeRows)
}

// Table returns the current table.
func (m Model) Table() *table.Table { return m.table }

// ViewModel returns the last snapshot rendered.
func (m Model) ViewModel() viewmodel.ViewModel { return m.vm }

// Cursor returns the focused row index.
func (m Model) Cursor() int { return m.cursor }

// Value is the serialized selection at the time of the last update.
func (m Model) Value() string { return m.vm.Value }

// Quitting reports whether the user asked to quit.
func (m Model) Quitting() bool { return m.quitting }

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.helpText
	}

	th := m.theme
	inner := max(20, m.width-2)
	var b strings.Builder

	title := m.opts.Title
	if title == "" {
		title = "seltable"
	}
	fmt.Fprintf(&b, "%s %s\n",
		th.Style(viewmodel.ElemHeader).Padding(0, 1).Render(title),
		th.Muted.Render(fmt.Sprintf("page %d · %d loaded · %d selected", m.vm.Page, m.vm.Loaded, len(m.vm.Labels))))

	b.WriteString(m.renderLabels(inner))
	b.WriteByte('\n')

	if m.searching {
		b.WriteString(m.search.View())
	} else if m.vm.Filter != "" {
		b.WriteString(th.Style(viewmodel.ElemSearch).Render("/ " + m.vm.Filter))
	} else {
		b.WriteString(th.Muted.Render("/ search"))
	}
	b.WriteByte('\n')

	widths := m.widths(inner - 4)
	b.WriteString(m.renderHeader(widths))
	b.WriteByte('\n')

	body := m.bodyRows()
	end := min(len(m.vm.Rows), m.offset+body)
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(i, widths))
		b.WriteByte('\n')
	}
	for i := end - m.offset; i < body; i++ {
		b.WriteByte('\n')
	}

	switch k := m.vm.Indicator.Kind; k {
	case viewmodel.IndicatorLoading:
		b.WriteString(m.spinner.View() + " " + th.IndicatorStyle(k).Render(m.vm.Indicator.Text))
	case viewmodel.IndicatorNone:
	default:
		b.WriteString(th.IndicatorStyle(k).Render(m.vm.Indicator.Text))
	}
	b.WriteByte('\n')

	footer := m.status
	if footer == "" {
		footer = "? help · space toggle · / search · y copy · q quit"
	}
	b.WriteString(th.Muted.Render(truncate(footer, inner)))

	return th.Style(viewmodel.ElemContainer).Width(inner).Render(b.String())
}

func (m Model) renderLabels(width int) string {
	th := m.theme
	if len(m.vm.Labels) == 0 {
		return th.Muted.Render("no selection")
	}
	parts := make([]string, 0, len(m.vm.Labels))
	used := 0
	for i, l := range m.vm.Labels {
		text := truncate(l.Title, 20)
		if l.Closable {
			text += " ×"
		}
		style := th.Style(viewmodel.ElemLabelClose)
		if i == m.labelCursor {
			style = th.ChipActive
		}
		chip := style.Render(text)
		w := lipgloss.Width(chip) + 1
		if used+w > width && len(parts) > 0 {
			parts = append(parts, th.Muted.Render(fmt.Sprintf("+%d", len(m.vm.Labels)-i)))
			break
		}
		used += w
		parts = append(parts, chip)
	}
	return th.Style(viewmodel.ElemLabels).Render(strings.Join(parts, " "))
}

func (m Model) widths(total int) []int {
	fixed := make([]int, len(m.vm.Headers))
	for i, h := range m.vm.Headers {
		fixed[i] = h.Width
	}
	ws := columnWidths(fixed, total, 4)
	for i := range ws {
		if fixed[i] == 0 {
			ws[i] = min(ws[i], m.opts.CellWidth)
		}
	}
	return ws
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) renderHeader(widths []int) string {
	th := m.theme
	cells := make([]string, len(m.vm.Headers))
	for i, h := range m.vm.Headers {
		cells[i] = fitCell(h.Title, widths[i])
	}
	all := th.Style(viewmodel.ElemCheckboxAll).Render(checkbox(m.vm.AllSelected))
	return " " + all + " " + th.Style(viewmodel.ElemHeader).Render(strings.Join(cells, " "))
}

func (m Model) renderRow(i int, widths []int) string {
	th := m.theme
	row := m.vm.Rows[i]
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		if j < len(widths) {
			cells[j] = fitCell(c, widths[j])
		}
	}
	box := th.Style(viewmodel.ElemCheckboxRow).Render(checkbox(row.Checked))
	if row.Checked {
		box = th.Checked.Render(checkbox(true))
	}
	line := box + " " + th.Style(viewmodel.ElemTable).Render(strings.Join(cells, " "))
	if i == m.cursor {
		return th.Cursor.Render(line)
	}
	return " " + line
}

// Run starts a full-screen program and returns the final model.
func Run(m Model) (Model, error) {
	start := time.Now()
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	debug.LogTiming("ui session", time.Since(start))
	if err != nil {
		return m, err
	}
	fm, ok := final.(Model)
	if !ok {
		return m, fmt.Errorf("ui: unexpected final model %T", final)
	}
	return fm, nil
}
