// Package config handles loading and saving seltable configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/seltable/config.yaml
//   - State:   ~/.local/state/seltable/ (last selection per table)
//
// A table definition (columns, source, preselection, paging) lives in its
// own YAML file and is loaded with LoadTable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/seltable/pkg/column"
)

// appName names the XDG subdirectories.
const appName = "seltable"

// NamedTable registers a table definition file under a short name.
type NamedTable struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	PageSize        int    `yaml:"page_size,omitempty"`
	ScrollThreshold int    `yaml:"scroll_threshold,omitempty"` // rows from the bottom that trigger a fetch
	Height          int    `yaml:"height,omitempty"`           // viewport rows, 0 = fit terminal
	RejectPolicy    string `yaml:"reject_policy,omitempty"`    // empty | failure
	CellWidth       int    `yaml:"cell_width,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Tables    []NamedTable   `yaml:"tables,omitempty"`
	Favorites map[int]string `yaml:"favorites,omitempty"` // Number key (1-9) -> table name
	UI        UIConfig       `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Favorites: make(map[int]string),
		UI: UIConfig{
			PageSize:        10,
			ScrollThreshold: 3,
			RejectPolicy:    "empty",
			CellWidth:       24,
		},
	}
}

// ConfigDir returns the XDG config directory.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory.
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback, appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Favorites == nil {
		cfg.Favorites = make(map[int]string)
	}
	for i := range cfg.Tables {
		cfg.Tables[i].Path = expandHome(cfg.Tables[i].Path)
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	return writeYAML(cfg, path)
}

func writeYAML(v any, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// FindTable returns the table registered under name, or nil.
func (c Config) FindTable(name string) *NamedTable {
	for i := range c.Tables {
		if strings.EqualFold(c.Tables[i].Name, name) {
			return &c.Tables[i]
		}
	}
	return nil
}

// FavoriteTable returns the table assigned to number key n (1-9), or nil.
func (c Config) FavoriteTable(n int) *NamedTable {
	name, ok := c.Favorites[n]
	if !ok {
		return nil
	}
	return c.FindTable(name)
}

// SetFavorite assigns a table name to a number key (1-9).
func (c *Config) SetFavorite(n int, name string) {
	if c.Favorites == nil {
		c.Favorites = make(map[int]string)
	}
	if name == "" {
		delete(c.Favorites, n)
	} else {
		c.Favorites[n] = name
	}
}

// SourceDef describes where a table's records come from.
type SourceDef struct {
	Type      string  `yaml:"type,omitempty"` // inline | endpoint | sqlite; inferred when empty
	Path      string  `yaml:"path,omitempty"`
	URL       string  `yaml:"url,omitempty"`
	Table     string  `yaml:"table,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty"`
}

// TableDef is a table definition file.
type TableDef struct {
	Columns  []column.Spec `yaml:"columns"`
	Source   SourceDef     `yaml:"source"`
	Selected []any         `yaml:"selected,omitempty"`

	// QueryParams is either a JSON string or a YAML mapping.
	QueryParams any    `yaml:"query_params,omitempty"`
	NestKey     string `yaml:"nest_key,omitempty"`

	PageSize        int    `yaml:"page_size,omitempty"`
	Height          int    `yaml:"height,omitempty"`
	ScrollThreshold int    `yaml:"scroll_threshold,omitempty"`
	RejectPolicy    string `yaml:"reject_policy,omitempty"`
}

// Params splits QueryParams into its raw JSON or mapping form.
func (d TableDef) Params() (raw string, m map[string]any) {
	switch v := d.QueryParams.(type) {
	case string:
		return v, nil
	case map[string]any:
		return "", v
	}
	return "", nil
}

// LoadTable reads and validates a table definition. Relative source paths
// are resolved against the definition's directory.
func LoadTable(path string) (TableDef, error) {
	var def TableDef
	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("reading table definition: %w", err)
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("parsing table definition: %w", err)
	}
	if len(def.Columns) > 0 {
		if err := column.NewRegistry(def.Columns).Validate(); err != nil {
			return def, fmt.Errorf("table definition %s: %w", path, err)
		}
	}
	if p := def.Source.Path; p != "" {
		p = expandHome(p)
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		def.Source.Path = p
	}
	return def, nil
}

// SaveTable writes a table definition.
func SaveTable(def TableDef, path string) error {
	return writeYAML(def, path)
}

// ApplyDefaults fills unset paging fields from the UI config.
func (d *TableDef) ApplyDefaults(ui UIConfig) {
	if d.PageSize <= 0 {
		d.PageSize = ui.PageSize
	}
	if d.Height <= 0 {
		d.Height = ui.Height
	}
	if d.ScrollThreshold <= 0 {
		d.ScrollThreshold = ui.ScrollThreshold
	}
	if d.RejectPolicy == "" {
		d.RejectPolicy = ui.RejectPolicy
	}
}

// SelectionPath returns where the last selection of the named table is kept.
func SelectionPath(name string) string {
	dir := StateDir()
	if dir == "" || name == "" {
		return ""
	}
	return filepath.Join(dir, "selections", sanitize(name)+".yaml")
}

// SaveSelection remembers the selected key values of a table.
func SaveSelection(name string, keys []any) error {
	path := SelectionPath(name)
	if path == "" {
		return fmt.Errorf("cannot determine state directory")
	}
	return writeYAML(map[string]any{"selected": keys}, path)
}

// LoadSelection returns the remembered selection, or nil.
func LoadSelection(name string) ([]any, error) {
	path := SelectionPath(name)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading selection: %w", err)
	}
	var state struct {
		Selected []any `yaml:"selected"`
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing selection: %w", err)
	}
	return state.Selected, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
