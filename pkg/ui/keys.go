package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Home       key.Binding
	End        key.Binding
	Toggle     key.Binding
	ToggleAll  key.Binding
	Search     key.Binding
	LabelLeft  key.Binding
	LabelRight key.Binding
	Remove     key.Binding
	Yank       key.Binding
	LoadMore   key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PageUp:     key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown:   key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Home:       key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first row")),
	End:        key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last row")),
	Toggle:     key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle row")),
	ToggleAll:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle all")),
	Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	LabelLeft:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous label")),
	LabelRight: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next label")),
	Remove:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove focused label")),
	Yank:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy value")),
	LoadMore:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) all() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.PageUp, k.PageDown, k.Home, k.End,
		k.Toggle, k.ToggleAll, k.Search, k.LabelLeft, k.LabelRight,
		k.Remove, k.Yank, k.LoadMore, k.Help, k.Quit,
	}
}
