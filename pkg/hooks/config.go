// Package hooks runs user commands around the selection output of seltable.
// Hooks are configured via .seltable/hooks.yaml and run once the user
// confirms a selection (pre-output, post-output).
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HookPhase represents when a hook runs
type HookPhase string

const (
	// PreOutput runs before the selection is printed. Failure cancels output.
	PreOutput HookPhase = "pre-output"
	// PostOutput runs after the selection is printed. Failure is logged.
	PostOutput HookPhase = "post-output"
)

// Hook defines a single hook configuration
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"` // run with sh -c
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"` // "fail" or "continue"
}

// Config holds all hook configurations
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// HooksByPhase organizes hooks by their execution phase
type HooksByPhase struct {
	PreOutput  []Hook `yaml:"pre-output,omitempty" json:"pre-output,omitempty"`
	PostOutput []Hook `yaml:"post-output,omitempty" json:"post-output,omitempty"`
}

// OutputContext is passed to hooks as environment variables.
type OutputContext struct {
	Table     string    // SELTABLE_TABLE: table definition name, may be empty
	Source    string    // SELTABLE_SOURCE: dataset path or endpoint
	Value     string    // SELTABLE_VALUE: serialized selection, e.g. [1,2]
	Count     int       // SELTABLE_COUNT: number of selected keys
	Timestamp time.Time // SELTABLE_TIMESTAMP (RFC3339)
}

// ToEnv converts the context to environment variables.
func (c OutputContext) ToEnv() []string {
	return []string{
		"SELTABLE_TABLE=" + c.Table,
		"SELTABLE_SOURCE=" + c.Source,
		"SELTABLE_VALUE=" + c.Value,
		"SELTABLE_COUNT=" + strconv.Itoa(c.Count),
		"SELTABLE_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// Loader loads hook configuration from .seltable/hooks.yaml
type Loader struct {
	projectDir string
	config     *Config
	warnings   []string
}

// LoaderOption configures the loader
type LoaderOption func(*Loader)

// WithProjectDir sets the project directory (default: current directory)
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.projectDir = dir
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.projectDir == "" {
		l.projectDir, _ = os.Getwd()
	}
	return l
}

// Load reads .seltable/hooks.yaml. A missing file means no hooks.
func (l *Loader) Load() error {
	configPath := filepath.Join(l.projectDir, ".seltable", "hooks.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.config = &Config{}
			return nil
		}
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing %s: %w", configPath, err)
	}

	config.Hooks.PreOutput, l.warnings = normalizeHooks(config.Hooks.PreOutput, PreOutput, l.warnings)
	config.Hooks.PostOutput, l.warnings = normalizeHooks(config.Hooks.PostOutput, PostOutput, l.warnings)

	l.config = &config
	return nil
}

// normalizeHooks applies defaults, drops empty commands, and accumulates warnings.
func normalizeHooks(hooks []Hook, phase HookPhase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i := range hooks {
		hook := hooks[i]
		if strings.TrimSpace(hook.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if hook.Timeout == 0 {
			hook.Timeout = DefaultTimeout
		}
		if hook.OnError == "" {
			if phase == PreOutput {
				hook.OnError = "fail"
			} else {
				hook.OnError = "continue"
			}
		}
		if hook.Name == "" {
			hook.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, hook)
	}
	return out, warnings
}

// Config returns the loaded configuration (or empty if not loaded)
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

// HasHooks returns true if any hooks are configured
func (l *Loader) HasHooks() bool {
	if l.config == nil {
		return false
	}
	return len(l.config.Hooks.PreOutput) > 0 || len(l.config.Hooks.PostOutput) > 0
}

// GetHooks returns hooks for a specific phase
func (l *Loader) GetHooks(phase HookPhase) []Hook {
	if l.config == nil {
		return nil
	}
	switch phase {
	case PreOutput:
		return l.config.Hooks.PreOutput
	case PostOutput:
		return l.config.Hooks.PostOutput
	}
	return nil
}

func (l *Loader) Warnings() []string {
	return l.warnings
}

// LoadDefault creates a loader for the current directory and loads it.
func LoadDefault() (*Loader, error) {
	loader := NewLoader()
	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// UnmarshalYAML accepts timeouts as durations ("5s") or bare seconds ("30").
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	// Must mirror Hook except for Timeout.
	type hookDTO struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}

	var dto hookDTO
	if err := node.Decode(&dto); err != nil {
		return err
	}

	h.Name = dto.Name
	h.Command = dto.Command
	h.Env = dto.Env
	h.OnError = dto.OnError

	if dto.Timeout != "" {
		d, err := time.ParseDuration(dto.Timeout)
		if err == nil {
			h.Timeout = d
		} else if seconds, scanErr := strconv.ParseFloat(dto.Timeout, 64); scanErr == nil {
			h.Timeout = time.Duration(seconds * float64(time.Second))
		} else {
			return fmt.Errorf("invalid timeout %q: %w", dto.Timeout, err)
		}
	}
	return nil
}
