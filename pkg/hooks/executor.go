package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vanderheijden86/seltable/pkg/debug"
)

// maxSummaryOutput bounds the stderr excerpt shown per failed hook.
const maxSummaryOutput = 200

// Result is the outcome of one hook run.
type Result struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Error    error
	Duration time.Duration
}

// Executor runs configured hooks and records their results.
type Executor struct {
	config  *Config
	context OutputContext
	results []Result
}

func NewExecutor(config *Config, ctx OutputContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, context: ctx}
}

// RunPreOutput runs pre-output hooks in order, stopping at the first failure
// of a hook with on_error=fail.
func (e *Executor) RunPreOutput() error {
	for _, h := range e.config.Hooks.PreOutput {
		r := e.run(h, PreOutput)
		if !r.Success && h.OnError != "continue" {
			return fmt.Errorf("pre-output hook %q failed: %w", h.Name, r.Error)
		}
	}
	return nil
}

// RunPostOutput runs every post-output hook. Failures of hooks with
// on_error=fail are joined into the returned error.
func (e *Executor) RunPostOutput() error {
	var errs []error
	for _, h := range e.config.Hooks.PostOutput {
		r := e.run(h, PostOutput)
		if !r.Success && h.OnError == "fail" {
			errs = append(errs, fmt.Errorf("post-output hook %q failed: %w", h.Name, r.Error))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) run(h Hook, phase HookPhase) Result {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	env := append(os.Environ(), e.context.ToEnv()...)
	lookup := envLookup(env)
	for k, v := range h.Env {
		env = append(env, k+"="+os.Expand(v, lookup))
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Env = env
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r := Result{
		Hook:     h,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s", timeout)
		}
		r.Error = err
	}
	debug.Log("hooks: %s %q success=%v in %s", phase, h.Name, r.Success, r.Duration)
	e.results = append(e.results, r)
	return r
}

// envLookup resolves names against env, last assignment winning.
func envLookup(env []string) func(string) string {
	return func(name string) string {
		for i := len(env) - 1; i >= 0; i-- {
			if k, v, ok := strings.Cut(env[i], "="); ok && k == name {
				return v
			}
		}
		return ""
	}
}

// Results returns the results of all hooks run so far.
func (e *Executor) Results() []Result {
	return e.results
}

// Summary describes the runs, e.g. "hooks: 1 succeeded, 1 failed".
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	var sb strings.Builder
	for _, r := range e.results {
		if r.Success {
			ok++
			continue
		}
		failed++
		fmt.Fprintf(&sb, "\n  %s %s: %v", r.Phase, r.Hook.Name, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&sb, "\n    stderr: %s", truncate(r.Stderr, maxSummaryOutput))
		}
	}
	return fmt.Sprintf("hooks: %d succeeded, %d failed", ok, failed) + sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// RunHooks loads hooks from projectDir and returns an executor, or nil when
// noHooks is set or nothing is configured.
func RunHooks(projectDir string, ctx OutputContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	loader := NewLoader(WithProjectDir(projectDir))
	if err := loader.Load(); err != nil {
		return nil, err
	}
	for _, w := range loader.Warnings() {
		debug.Log("hooks: %s", w)
	}
	if !loader.HasHooks() {
		return nil, nil
	}
	return NewExecutor(loader.Config(), ctx), nil
}
