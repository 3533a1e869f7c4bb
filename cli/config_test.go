package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverConfigPathFrom_FirstMatchWins(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()

	projectConfig := filepath.Join(cwd, "shelfsync.yaml")
	if err := os.WriteFile(projectConfig, []byte("base_url: http://project\n"), 0o600); err != nil {
		t.Fatalf("WriteFile(project config) error = %v", err)
	}

	homeDir := filepath.Join(home, ".shelfsync")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("MkdirAll(home config dir) error = %v", err)
	}
	homeConfig := filepath.Join(homeDir, "config.yaml")
	if err := os.WriteFile(homeConfig, []byte("base_url: http://home\n"), 0o600); err != nil {
		t.Fatalf("WriteFile(home config) error = %v", err)
	}

	got, found, err := DiscoverConfigPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error = %v", err)
	}
	if !found {
		t.Fatal("found = false, want true")
	}
	if got != projectConfig {
		t.Fatalf("path = %q, want %q", got, projectConfig)
	}
}

func TestDiscoverConfigPathFrom_FallsBackToHome(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()

	homeDir := filepath.Join(home, ".shelfsync")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	homeConfig := filepath.Join(homeDir, "config.yaml")
	if err := os.WriteFile(homeConfig, []byte("base_url: http://home\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, found, err := DiscoverConfigPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error = %v", err)
	}
	if !found {
		t.Fatal("found = false, want true")
	}
	if got != homeConfig {
		t.Fatalf("path = %q, want %q", got, homeConfig)
	}
}

func TestDiscoverConfigPathFrom_ExplicitNotFound(t *testing.T) {
	_, found, err := DiscoverConfigPathFrom("/tmp/does-not-exist.yaml", t.TempDir(), t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
	if found {
		t.Fatal("found = true, want false")
	}
}

func TestDiscoverConfigPathFrom_NothingFound(t *testing.T) {
	_, found, err := DiscoverConfigPathFrom("", t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error = %v", err)
	}
	if found {
		t.Fatal("found = true, want false")
	}
}

func TestLoadConfig_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelfsync.yaml")
	content := "history_size: 50\notlp_endpoint: localhost:4318\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.HistorySize != 50 {
		t.Fatalf("history size = %d, want 50", cfg.HistorySize)
	}
	if cfg.OTLPEndpoint != "localhost:4318" {
		t.Fatalf("otlp endpoint = %q, want %q", cfg.OTLPEndpoint, "localhost:4318")
	}
	if cfg.BaseURL != DefaultConfig().BaseURL {
		t.Fatalf("base url = %q, want default", cfg.BaseURL)
	}
	if cfg.SocketURL != DefaultConfig().SocketURL {
		t.Fatalf("socket url = %q, want default", cfg.SocketURL)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelfsync.yaml")
	if err := os.WriteFile(path, []byte("base_url: [not, a, string\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
