package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeDataset(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { atomic.AddInt32(&calls, 1) })
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	d.Cancel()
	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("cancelled call still ran")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	if NewDebouncer(0).Duration() != DefaultDebounceDuration {
		t.Error("zero duration should use the default")
	}
}

func TestWatcher_PollingDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	writeDataset(t, path, `{"id":1}`+"\n")

	var changes int32
	w, err := New(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
		WithOnChange(func() { atomic.AddInt32(&changes, 1) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}
	writeDataset(t, path, `{"id":1}`+"\n"+`{"id":2}`+"\n")

	if !waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&changes) > 0 }) {
		t.Fatal("change not detected")
	}
	select {
	case <-w.Changed():
	case <-time.After(time.Second):
		t.Fatal("Changed channel did not fire")
	}
}

func TestWatcher_FsnotifyDetectsChange(t *testing.T) {
	t.Setenv(ForcePollEnvVar, "")
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeLocal }
	defer func() { detectFilesystemTypeFunc = orig }()

	path := filepath.Join(t.TempDir(), "records.jsonl")
	writeDataset(t, path, "")

	w, err := New(path, WithDebounceDuration(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeDataset(t, path, `{"id":9}`+"\n")
	select {
	case <-w.Changed():
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_EnvForcesPolling(t *testing.T) {
	t.Setenv(ForcePollEnvVar, "yes")
	w, _ := New(filepath.Join(t.TempDir(), "x.jsonl"))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if !w.IsPolling() {
		t.Error("env var should force polling")
	}
}

func TestWatcher_RemoteFilesystemPolls(t *testing.T) {
	t.Setenv(ForcePollEnvVar, "")
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	defer func() { detectFilesystemTypeFunc = orig }()

	w, _ := New(filepath.Join(t.TempDir(), "x.jsonl"))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if !w.IsPolling() || w.FilesystemType() != FSTypeNFS {
		t.Errorf("polling=%v fs=%s", w.IsPolling(), w.FilesystemType())
	}
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	writeDataset(t, path, "{}\n")

	var removed atomic.Bool
	w, _ := New(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithOnError(func(err error) {
			if errors.Is(err, ErrFileRemoved) {
				removed.Store(true)
			}
		}),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	os.Remove(path)
	if !waitFor(t, 2*time.Second, removed.Load) {
		t.Fatal("removal not reported")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, _ := New(filepath.Join(t.TempDir(), "x.jsonl"), WithForcePoll(true))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v", err)
	}
	w.Stop()
	if w.IsStarted() {
		t.Error("still started after Stop")
	}
	w.Stop()
	if err := w.Start(); err != nil {
		t.Errorf("restart failed: %v", err)
	}
	w.Stop()
}

func TestEnvBool(t *testing.T) {
	cases := map[string]bool{"": false, "1": true, "TRUE": true, " on ": true, "no": false, "2": false}
	for v, want := range cases {
		t.Setenv("SELTABLE_TEST_BOOL", v)
		if got := envBool("SELTABLE_TEST_BOOL"); got != want {
			t.Errorf("envBool(%q) = %v, want %v", v, got, want)
		}
	}
}

func TestFilesystemType(t *testing.T) {
	if DetectFilesystemType("") != FSTypeUnknown {
		t.Error("empty path should be unknown")
	}
	if FSTypeSMB.String() != "smb" || FilesystemType(99).String() != "unknown" {
		t.Error("unexpected String output")
	}
	if isRemoteFilesystem(FSTypeLocal) || !isRemoteFilesystem(FSType9P) {
		t.Error("isRemoteFilesystem misclassified")
	}
	// Real detection on the temp dir should not report a failure mode.
	_ = DetectFilesystemType(t.TempDir())
}
