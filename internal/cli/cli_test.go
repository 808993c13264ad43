package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JBibu/backupone/internal/config"
	"github.com/JBibu/backupone/internal/progress"
	"github.com/JBibu/backupone/internal/script"
	"github.com/JBibu/backupone/internal/service"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, path := range [][]string{
		{"service", "status"},
		{"service", "install"},
		{"service", "uninstall"},
		{"service", "start"},
		{"service", "stop"},
		{"service", "health"},
		{"backend-url"},
		{"serve"},
		{"config", "show"},
		{"config", "init"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
			continue
		}
		if cmd.RunE == nil {
			t.Errorf("command %v has no RunE", path)
		}
	}

	for _, flag := range []string{"config", "verbose"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("--%s flag not found", flag)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"declined", &service.OperationError{Kind: service.KindElevationDeclined}, ExitDeclined},
		{"unsupported", &service.OperationError{Kind: service.KindPlatformUnsupported}, ExitUnsupported},
		{"cancelled op", &service.OperationError{Kind: service.KindCancelled}, ExitCancelled},
		{"context cancelled", fmt.Errorf("wrapped: %w", context.Canceled), ExitCancelled},
		{"step failed", &service.OperationError{Kind: service.KindStepFailed}, ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		ev   service.Event
		want string
	}{
		{service.Event{Op: script.Install, State: service.StateIdle}, ""},
		{service.Event{Op: script.Install, State: service.StateScriptWritten}, "Prepared install script"},
		{service.Event{Op: script.Install, State: service.StateElevating}, "Waiting for administrator approval"},
		{service.Event{Op: script.Stop, State: service.StatePolling}, "Waiting for stop to finish"},
		{service.Event{Op: script.Stop, State: service.StatePolling, Attempt: 3, MaxAttempts: 10}, "Waiting for stop to finish (3/10)"},
		{service.Event{Op: script.Start, State: service.StateVerifying}, "Verifying service state"},
		{service.Event{Op: script.Start, State: service.StateSucceeded}, ""},
		{service.Event{Op: script.Start, State: service.StateFailed}, ""},
	}
	for _, tt := range tests {
		if got := describeEvent(tt.ev); got != tt.want {
			t.Errorf("describeEvent(%s/%s) = %q, want %q", tt.ev.Op, tt.ev.State, got, tt.want)
		}
	}
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := progressObserver(progress.NewLineProgress(&buf))

	obs(service.Event{Op: script.Start, State: service.StateIdle})
	obs(service.Event{Op: script.Start, State: service.StateElevating})
	obs(service.Event{Op: script.Start, State: service.StatePolling, Attempt: 1, MaxAttempts: 10})
	obs(service.Event{Op: script.Start, State: service.StateSucceeded})

	want := "Waiting for administrator approval\nWaiting for start to finish (1/10)\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestPrintStatus(t *testing.T) {
	cfg := config.NewConfig()
	st := service.ServiceStatus{
		Installed: true,
		Running:   false,
		StartType: service.StartTypePtr(service.StartAutomatic),
		State:     service.StatusStopped,
	}

	var buf bytes.Buffer
	if err := printStatus(&buf, cfg, st, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Status:  installed, stopped") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	if err := printStatus(&buf, cfg, st, true); err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["installed"] != true || got["running"] != false {
		t.Errorf("json = %v", got)
	}
	if _, ok := got["State"]; ok {
		t.Error("raw SCM state must not appear in JSON")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yes", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "Remove?")
		if err != nil {
			t.Errorf("confirm(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if out.String() != "Remove? [y/N]: " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestBackendURLCommand(t *testing.T) {
	withConfigFile(t, t.TempDir()+"/backupone.conf")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--service"}, "http://localhost:4097"},
		{[]string{}, "http://localhost:4096"},
		{[]string{"--sidecar-port", "5123"}, "http://localhost:5123"},
	}
	for _, tt := range tests {
		cmd := newBackendURLCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(tt.args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("backend-url %v failed: %v", tt.args, err)
		}
		if got := strings.TrimSpace(out.String()); got != tt.want {
			t.Errorf("backend-url %v = %q, want %q", tt.args, got, tt.want)
		}
	}
}
