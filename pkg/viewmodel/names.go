package viewmodel

// Element is a role a renderer addresses. The core never uses the concrete
// names; renderers resolve them through Names.
type Element int

const (
	ElemRoot Element = iota
	ElemContainer
	ElemToolPanel
	ElemLabels
	ElemLabelClose
	ElemSearch
	ElemHeader
	ElemTable
	ElemCheckboxAll
	ElemCheckboxRow
	ElemIndicator
)

var defaultNames = map[Element]string{
	ElemRoot:        "sc-table",
	ElemContainer:   "sc-table-container",
	ElemToolPanel:   "sc-table-tool-panel",
	ElemLabels:      "sc-table-labels",
	ElemLabelClose:  "sc-table-label-close",
	ElemSearch:      "sc-table-search-input",
	ElemHeader:      "sc-table-header",
	ElemTable:       "sc-table-table",
	ElemCheckboxAll: "sc-table-table-checkbox-all",
	ElemCheckboxRow: "sc-table-table-checkbox-row",
	ElemIndicator:   "sc-table-loading",
}

// Names maps element roles to renderer-specific identifiers.
type Names map[Element]string

// DefaultNames returns a fresh copy of the default naming scheme.
func DefaultNames() Names {
	n := make(Names, len(defaultNames))
	for k, v := range defaultNames {
		n[k] = v
	}
	return n
}

// WithPrefix returns default names with "sc-table" replaced by prefix.
func WithPrefix(prefix string) Names {
	n := DefaultNames()
	for k, v := range n {
		n[k] = prefix + v[len("sc-table"):]
	}
	return n
}

// Of resolves e, falling back to the default name.
func (n Names) Of(e Element) string {
	if v, ok := n[e]; ok && v != "" {
		return v
	}
	return defaultNames[e]
}
