package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JBibu/backupone/internal/config"
)

// withConfigFile points the global --config flag at path for one test.
func withConfigFile(t *testing.T, path string) {
	t.Helper()
	old := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = old })
}

// TestConfigCmd tests the config command group
func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	if cmd.Use != "config" {
		t.Errorf("Expected Use='config', got '%s'", cmd.Use)
	}

	expectedSubs := []string{"init", "show", "path"}
	subcommands := cmd.Commands()
	if len(subcommands) != len(expectedSubs) {
		t.Errorf("Expected %d subcommands, got %d", len(expectedSubs), len(subcommands))
	}

	foundSubs := make(map[string]bool)
	for _, sub := range subcommands {
		foundSubs[sub.Name()] = true
		if sub.Short == "" {
			t.Errorf("Subcommand '%s' has no short description", sub.Name())
		}
	}
	for _, expected := range expectedSubs {
		if !foundSubs[expected] {
			t.Errorf("Subcommand '%s' not found", expected)
		}
	}
}

func TestConfigInitWritesAnswers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backupone.conf")
	withConfigFile(t, path)

	cmd := newConfigInitCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	// resource dir, service port, sidecar port, poll attempts, log level
	cmd.SetIn(strings.NewReader(`C:\BackupONE` + "\n\n5000\n20\ndebug\n"))
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out.String(), "Configuration saved to: "+path) {
		t.Errorf("output missing save message:\n%s", out.String())
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Service.ResourceDir != `C:\BackupONE` {
		t.Errorf("ResourceDir = %q", cfg.Service.ResourceDir)
	}
	if cfg.Service.Port != 4097 {
		t.Errorf("Port = %d, want default 4097", cfg.Service.Port)
	}
	if cfg.Backend.SidecarPort != 5000 {
		t.Errorf("SidecarPort = %d", cfg.Backend.SidecarPort)
	}
	if cfg.Elevation.PollAttempts != 20 {
		t.Errorf("PollAttempts = %d", cfg.Elevation.PollAttempts)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestConfigInitKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backupone.conf")
	if err := os.WriteFile(path, []byte("[service]\nname = Keep\n"), 0600); err != nil {
		t.Fatal(err)
	}
	withConfigFile(t, path)

	cmd := newConfigInitCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("expected existing-config notice, got:\n%s", out.String())
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "Keep") {
		t.Error("existing configuration was overwritten without --force")
	}
}

func TestConfigInitRejectsBadNumber(t *testing.T) {
	withConfigFile(t, filepath.Join(t.TempDir(), "backupone.conf"))

	cmd := newConfigInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("\nabc\n"))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "not a number") {
		t.Errorf("expected number error, got %v", err)
	}
}

func TestConfigShowAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backupone.conf")
	withConfigFile(t, path)

	show := newConfigShowCmd()
	var out bytes.Buffer
	show.SetOut(&out)
	show.SetArgs([]string{})
	if err := show.Execute(); err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"C3iBackupONE", "<next to executable>", "Poll attempts: 10"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("config show output missing %q:\n%s", want, out.String())
		}
	}

	pathCmd := newConfigPathCmd()
	out.Reset()
	pathCmd.SetOut(&out)
	pathCmd.SetArgs([]string{})
	if err := pathCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Errorf("config path = %q, want %q", out.String(), path)
	}
}

func TestConfigShowInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backupone.conf")
	if err := os.WriteFile(path, []byte("[elevation]\npoll_attempts = 0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	withConfigFile(t, path)

	show := newConfigShowCmd()
	show.SetOut(&bytes.Buffer{})
	show.SetArgs([]string{})
	if err := show.Execute(); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected validation error, got %v", err)
	}
}
