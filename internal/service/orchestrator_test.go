package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/JBibu/backupone/internal/elevation"
	"github.com/JBibu/backupone/internal/poller"
	"github.com/JBibu/backupone/internal/script"
)

// fakeSCM is an in-memory service control manager.
type fakeSCM struct {
	mu      sync.Mutex
	status  ServiceStatus
	err     error
	queries int
}

func (f *fakeSCM) QueryStatus(ctx context.Context) (ServiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	return f.status, f.err
}

func (f *fakeSCM) set(st ServiceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = st
}

func (f *fakeSCM) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// fakeHost plays the elevated cmd.exe: it writes the log the script would
// produce and applies the effect to the fake SCM.
type fakeHost struct {
	builder   script.Builder
	scm       *fakeSCM
	launchErr error
	writeLog  bool
	run       script.RunFunc
	effect    func(op script.Operation) (ServiceStatus, bool)

	launches []elevation.Request
}

func (h *fakeHost) Launch(ctx context.Context, req elevation.Request) error {
	h.launches = append(h.launches, req)
	if h.launchErr != nil {
		return h.launchErr
	}

	scriptPath := strings.Trim(req.Args[len(req.Args)-1], `"`)
	var op script.Operation
	found := false
	for _, candidate := range script.Operations {
		if filepath.Base(scriptPath) == candidate.ScriptName() {
			op, found = candidate, true
		}
	}
	if !found {
		return errors.New("unexpected script " + scriptPath)
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return err
	}

	plan, err := h.builder.Build(op, script.Params{BinaryPath: "svc.exe"})
	if err != nil {
		return err
	}
	if h.writeLog {
		if err := os.WriteFile(plan.LogPath, []byte(script.Transcript(plan, h.run)), 0600); err != nil {
			return err
		}
	}
	if h.effect != nil {
		if st, ok := h.effect(op); ok {
			h.scm.set(st)
		}
	}
	return nil
}

type harness struct {
	orch    *Orchestrator
	scm     *fakeSCM
	host    *fakeHost
	tempDir string
	events  []Event
}

func newHarness(t *testing.T, initial ServiceStatus) *harness {
	t.Helper()
	tempDir := t.TempDir()
	builder := script.Builder{
		ServiceName: "C3iBackupONE",
		DisplayName: "C3i Backup ONE Service",
		Description: "Background backup service for C3i Backup ONE",
		TempDir:     tempDir,
		StopSettle:  3 * time.Second,
	}
	scm := &fakeSCM{status: initial}
	host := &fakeHost{builder: builder, scm: scm, writeLog: true}

	h := &harness{scm: scm, host: host, tempDir: tempDir}
	h.orch = NewOrchestrator(Options{
		Querier:  scm,
		Launcher: host,
		Builder:  builder,
		Poller: &poller.Poller{
			Interval: time.Millisecond,
			Attempts: 10,
			Clock:    clock.New(),
		},
		Observer: func(ev Event) { h.events = append(h.events, ev) },
	})
	return h
}

func (h *harness) states() []State {
	var out []State
	for _, ev := range h.events {
		if ev.State == StatePolling && ev.Attempt > 0 {
			continue
		}
		out = append(out, ev.State)
	}
	return out
}

func (h *harness) pollAttempts() int {
	n := 0
	for _, ev := range h.events {
		if ev.State == StatePolling && ev.Attempt > 0 {
			n++
		}
	}
	return n
}

func running() ServiceStatus {
	return ServiceStatus{Installed: true, Running: true, State: StatusRunning, StartType: StartTypePtr(StartAutomatic)}
}

func stopped() ServiceStatus {
	return ServiceStatus{Installed: true, State: StatusStopped, StartType: StartTypePtr(StartAutomatic)}
}

func assertKind(t *testing.T, err error, want Kind) *OperationError {
	t.Helper()
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("Expected *OperationError, got %T: %v", err, err)
	}
	if opErr.Kind != want {
		t.Fatalf("Kind = %v, want %v (message: %s)", opErr.Kind, want, opErr.Message)
	}
	return opErr
}

func TestStopEndToEnd(t *testing.T) {
	h := newHarness(t, running())
	h.host.effect = func(script.Operation) (ServiceStatus, bool) { return stopped(), true }

	if err := h.orch.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	want := []State{StateIdle, StateScriptWritten, StateElevating, StatePolling, StateVerifying, StateSucceeded}
	got := h.states()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if len(h.host.launches) != 1 {
		t.Fatalf("Expected 1 launch, got %d", len(h.host.launches))
	}
	req := h.host.launches[0]
	if req.Executable != "cmd.exe" || !req.Hidden {
		t.Errorf("Unexpected request: %+v", req)
	}
	if h.orch.Status(context.Background()).Running {
		t.Error("Service should be stopped")
	}
}

func TestMarkerWithoutPostconditionFails(t *testing.T) {
	h := newHarness(t, stopped())
	// Script claims success, real state never changes.

	err := h.orch.Start(context.Background())
	opErr := assertKind(t, err, KindVerificationMismatch)

	if !strings.HasPrefix(opErr.Message, "Failed to start service. Details:\n") {
		t.Errorf("Message = %q", opErr.Message)
	}
	if !strings.Contains(opErr.Message, "Service started") {
		t.Errorf("Message should embed the log: %q", opErr.Message)
	}
	if opErr.LogPath != filepath.Join(h.tempDir, "zerobyte_service_start.log") {
		t.Errorf("LogPath = %q", opErr.LogPath)
	}
	if !errors.Is(err, ErrVerificationMismatch) {
		t.Error("Expected errors.Is(err, ErrVerificationMismatch)")
	}
}

func TestNoLogExhaustsPollingThenFails(t *testing.T) {
	h := newHarness(t, NotInstalled())
	h.host.writeLog = false

	res := t.TempDir()
	os.MkdirAll(filepath.Join(res, "binaries"), 0755)
	os.WriteFile(filepath.Join(res, "binaries", "zerobyte-service.exe"), []byte("MZ"), 0755)

	err := h.orch.Install(context.Background(), res)
	opErr := assertKind(t, err, KindVerificationMismatch)

	if opErr.Message != "Service installation failed. Details:\nNo log file found" {
		t.Errorf("Message = %q", opErr.Message)
	}
	if h.pollAttempts() != 10 {
		t.Errorf("poll attempts = %d, want 10", h.pollAttempts())
	}
	if h.states()[len(h.states())-1] != StateFailed {
		t.Errorf("final state = %v", h.states()[len(h.states())-1])
	}
}

func TestElevationDeclined(t *testing.T) {
	h := newHarness(t, running())
	h.host.launchErr = elevation.ErrDeclined

	err := h.orch.Stop(context.Background())
	opErr := assertKind(t, err, KindElevationDeclined)

	if !errors.Is(err, elevation.ErrDeclined) || !errors.Is(err, ErrElevationDeclined) {
		t.Error("Expected both declined sentinels")
	}
	if !strings.HasPrefix(opErr.Message, "Failed to stop service.") {
		t.Errorf("Message = %q", opErr.Message)
	}
	for _, st := range h.states() {
		if st == StatePolling || st == StateVerifying {
			t.Errorf("Declined launch must not poll, saw %v", st)
		}
	}
}

func TestLaunchFailure(t *testing.T) {
	h := newHarness(t, running())
	h.host.launchErr = &elevation.LaunchError{Executable: "cmd.exe", Err: errors.New("bad parameters")}

	err := h.orch.Stop(context.Background())
	opErr := assertKind(t, err, KindElevationDeclined)
	if !strings.Contains(opErr.Message, "bad parameters") {
		t.Errorf("Message = %q", opErr.Message)
	}
}

func TestInstallWithoutBinaryFailsEarly(t *testing.T) {
	h := newHarness(t, NotInstalled())
	res := t.TempDir()

	err := h.orch.Install(context.Background(), res)
	opErr := assertKind(t, err, KindPrecondition)

	wantDir := filepath.Join(res, "binaries")
	if opErr.Message != "Service executable not found in: "+wantDir {
		t.Errorf("Message = %q", opErr.Message)
	}
	if len(h.host.launches) != 0 {
		t.Error("No elevation may be attempted")
	}
	entries, _ := os.ReadDir(h.tempDir)
	if len(entries) != 0 {
		t.Errorf("No script or log may be created, found %d entries", len(entries))
	}
	var nf *script.BinaryNotFoundError
	if !errors.As(err, &nf) {
		t.Error("Expected BinaryNotFoundError in chain")
	}
}

func TestInstallSuccess(t *testing.T) {
	h := newHarness(t, NotInstalled())
	h.host.effect = func(script.Operation) (ServiceStatus, bool) { return running(), true }

	res := t.TempDir()
	bin := filepath.Join(res, "binaries", "zerobyte-service-x86_64-pc-windows-msvc.exe")
	os.MkdirAll(filepath.Dir(bin), 0755)
	os.WriteFile(bin, []byte("MZ"), 0755)

	if err := h.orch.Install(context.Background(), res); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(h.tempDir, "zerobyte_install_service.bat"))
	if err != nil {
		t.Fatalf("Script not left on disk: %v", err)
	}
	if !strings.Contains(string(data), bin) {
		t.Errorf("Script does not reference the located binary:\n%s", data)
	}
}

func TestUninstallWhenNotInstalled(t *testing.T) {
	h := newHarness(t, NotInstalled())
	h.host.run = script.FailAt("sc", "delete", 1060)

	if err := h.orch.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}
	if len(h.host.launches) != 1 {
		t.Errorf("Uninstall should still run the sequence, launches = %d", len(h.host.launches))
	}
}

func TestUninstallSuccess(t *testing.T) {
	h := newHarness(t, running())
	h.host.effect = func(script.Operation) (ServiceStatus, bool) { return NotInstalled(), true }

	if err := h.orch.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}
	if h.orch.Status(context.Background()).Installed {
		t.Error("Service should be gone")
	}
}

func TestStepFailed(t *testing.T) {
	h := newHarness(t, running())
	h.host.run = script.FailAt("sc", "stop", 1061)

	err := h.orch.Stop(context.Background())
	opErr := assertKind(t, err, KindStepFailed)

	if !strings.Contains(opErr.Log, "ERROR: Failed to stop service") {
		t.Errorf("Log = %q", opErr.Log)
	}
	if !strings.HasPrefix(opErr.Message, "Failed to stop service. Details:\n[%date% %time%] Stopping service...") {
		t.Errorf("Message = %q", opErr.Message)
	}
	if h.pollAttempts() != 1 {
		t.Errorf("Polling should stop at the error line, attempts = %d", h.pollAttempts())
	}
}

func TestErrorLineButPostconditionMet(t *testing.T) {
	h := newHarness(t, NotInstalled())
	h.host.run = script.FailAt("sc", "create", 1073)
	h.host.effect = func(script.Operation) (ServiceStatus, bool) { return stopped(), true }

	res := t.TempDir()
	os.MkdirAll(filepath.Join(res, "binaries"), 0755)
	os.WriteFile(filepath.Join(res, "binaries", "zerobyte-service.exe"), []byte("MZ"), 0755)

	if err := h.orch.Install(context.Background(), res); err != nil {
		t.Errorf("Verified state wins over the log, got %v", err)
	}
}

func TestIdempotentShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		initial ServiceStatus
		call    func(*Orchestrator) error
	}{
		{"install when installed", running(), func(o *Orchestrator) error { return o.Install(context.Background(), "/nonexistent") }},
		{"start when running", running(), func(o *Orchestrator) error { return o.Start(context.Background()) }},
		{"stop when stopped", stopped(), func(o *Orchestrator) error { return o.Stop(context.Background()) }},
		{"stop when not installed", NotInstalled(), func(o *Orchestrator) error { return o.Stop(context.Background()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.initial)
			if err := tt.call(h.orch); err != nil {
				t.Errorf("Expected no-op success, got %v", err)
			}
			if len(h.host.launches) != 0 {
				t.Errorf("No elevation expected, got %d launches", len(h.host.launches))
			}
			if !h.orch.Status(context.Background()).Equal(tt.initial) {
				t.Error("State must be unchanged")
			}
		})
	}
}

func TestStartWhenNotInstalled(t *testing.T) {
	h := newHarness(t, NotInstalled())

	err := h.orch.Start(context.Background())
	assertKind(t, err, KindPrecondition)
	if len(h.host.launches) != 0 {
		t.Error("No elevation expected")
	}
}

func TestStatusQueryFailureReportsNotInstalled(t *testing.T) {
	h := newHarness(t, running())
	h.scm.err = errors.New("access denied")

	if st := h.orch.Status(context.Background()); !st.Equal(NotInstalled()) {
		t.Errorf("Status() = %+v, want NotInstalled", st)
	}
}

func TestQueryFailureBeforeLaunch(t *testing.T) {
	tests := []struct {
		name string
		call func(*Orchestrator) error
	}{
		{"install", func(o *Orchestrator) error { return o.Install(context.Background(), t.TempDir()) }},
		{"uninstall", func(o *Orchestrator) error { return o.Uninstall(context.Background()) }},
		{"start", func(o *Orchestrator) error { return o.Start(context.Background()) }},
		{"stop", func(o *Orchestrator) error { return o.Stop(context.Background()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, running())
			h.scm.fail(errors.New("access denied"))

			err := tt.call(h.orch)
			opErr := assertKind(t, err, KindStatusUnavailable)
			if !strings.Contains(opErr.Message, "access denied") {
				t.Errorf("Message = %q", opErr.Message)
			}
			if !errors.Is(err, ErrStatusUnavailable) {
				t.Error("Expected errors.Is(err, ErrStatusUnavailable)")
			}
			if len(h.host.launches) != 0 {
				t.Errorf("No elevation expected, got %d launches", len(h.host.launches))
			}
		})
	}
}

func TestStopFailsWhenVerificationQueryFails(t *testing.T) {
	h := newHarness(t, running())
	h.host.effect = func(script.Operation) (ServiceStatus, bool) {
		h.scm.fail(errors.New("access denied"))
		return ServiceStatus{}, false
	}

	err := h.orch.Stop(context.Background())
	opErr := assertKind(t, err, KindStatusUnavailable)

	if len(h.host.launches) != 1 {
		t.Errorf("launches = %d, want 1", len(h.host.launches))
	}
	if !strings.Contains(opErr.Message, "access denied") {
		t.Errorf("Message should carry the query error: %q", opErr.Message)
	}
	if !strings.Contains(opErr.Log, "Service stopped") {
		t.Errorf("Log = %q", opErr.Log)
	}
	if h.states()[len(h.states())-1] != StateFailed {
		t.Errorf("final state = %v", h.states()[len(h.states())-1])
	}
}

func TestUninstallWithoutLogFailsWhenVerificationQueryFails(t *testing.T) {
	h := newHarness(t, running())
	h.host.writeLog = false
	h.host.effect = func(script.Operation) (ServiceStatus, bool) {
		h.scm.fail(errors.New("RPC server unavailable"))
		return ServiceStatus{}, false
	}

	err := h.orch.Uninstall(context.Background())
	opErr := assertKind(t, err, KindStatusUnavailable)

	if opErr.Log != poller.NoLogMessage {
		t.Errorf("Log = %q, want %q", opErr.Log, poller.NoLogMessage)
	}
	if !strings.HasPrefix(opErr.Message, "Service uninstallation failed. Could not verify service state: RPC server unavailable.") {
		t.Errorf("Message = %q", opErr.Message)
	}
	if h.pollAttempts() != 10 {
		t.Errorf("poll attempts = %d, want 10", h.pollAttempts())
	}
}

func TestStatusRepeatable(t *testing.T) {
	h := newHarness(t, running())
	a := h.orch.Status(context.Background())
	b := h.orch.Status(context.Background())
	if !a.Equal(b) {
		t.Errorf("Consecutive queries differ: %+v vs %+v", a, b)
	}
	if h.scm.queries != 2 {
		t.Errorf("Status must query every time, queries = %d", h.scm.queries)
	}
}

func TestCancelWhilePolling(t *testing.T) {
	h := newHarness(t, running())
	h.host.writeLog = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.orch = h.orch.WithObserver(func(ev Event) {
		h.events = append(h.events, ev)
		if ev.State == StatePolling && ev.Attempt == 2 {
			cancel()
		}
	})

	err := h.orch.Stop(ctx)
	assertKind(t, err, KindCancelled)
	if !errors.Is(err, context.Canceled) {
		t.Error("Expected context.Canceled in chain")
	}
}

func TestVerifyWaitsForPendingState(t *testing.T) {
	h := newHarness(t, stopped())
	pendingQueries := 0
	h.orch.querier = QuerierFunc(func(ctx context.Context) (ServiceStatus, error) {
		st, _ := h.scm.QueryStatus(ctx)
		if st.State == StatusStartPending {
			pendingQueries++
			if pendingQueries == 3 {
				h.scm.set(running())
			}
		}
		return st, nil
	})
	h.host.effect = func(script.Operation) (ServiceStatus, bool) {
		return ServiceStatus{Installed: true, State: StatusStartPending, StartType: StartTypePtr(StartAutomatic)}, true
	}

	if err := h.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if pendingQueries != 3 {
		t.Errorf("pending queries = %d, want 3", pendingQueries)
	}
}

func TestVerifyGivesUpOnStuckPendingState(t *testing.T) {
	h := newHarness(t, stopped())
	h.host.effect = func(script.Operation) (ServiceStatus, bool) {
		return ServiceStatus{Installed: true, State: StatusStartPending}, true
	}

	err := h.orch.Start(context.Background())
	assertKind(t, err, KindVerificationMismatch)
	// one up-front query, one verification query, five settle re-queries
	if h.scm.queries != 7 {
		t.Errorf("queries = %d, want 7", h.scm.queries)
	}
}

func TestUnsupported(t *testing.T) {
	var m Manager = Unsupported{}
	ctx := context.Background()

	if m.Supported() {
		t.Error("Supported() should be false")
	}
	if !m.Status(ctx).Equal(NotInstalled()) {
		t.Error("Status() should report not installed")
	}

	calls := map[string]func() error{
		"install":   func() error { return m.Install(ctx, t.TempDir()) },
		"uninstall": func() error { return m.Uninstall(ctx) },
		"start":     func() error { return m.Start(ctx) },
		"stop":      func() error { return m.Stop(ctx) },
	}
	for name, call := range calls {
		err := call()
		if err == nil || err.Error() != "Windows Service is only supported on Windows" {
			t.Errorf("%s: error = %v", name, err)
		}
		if !errors.Is(err, ErrPlatformUnsupported) {
			t.Errorf("%s: expected ErrPlatformUnsupported", name)
		}
	}
}
