package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("TODOSYNC_HOME", "/tmp/todosync-home")

	cfg := DefaultConfig()

	if cfg.DataDir != "/tmp/todosync-home" {
		t.Errorf("Expected data dir from TODOSYNC_HOME, got '%s'", cfg.DataDir)
	}
	if cfg.Remote.Debounce != 500*time.Millisecond {
		t.Errorf("Expected 500ms debounce, got %s", cfg.Remote.Debounce)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("Expected server addr ':3000', got '%s'", cfg.Server.Addr)
	}
	if cfg.DatabasePath() != filepath.Join("/tmp/todosync-home", "todosync.db") {
		t.Errorf("unexpected database path %s", cfg.DatabasePath())
	}
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Setenv("TODOSYNC_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Dashboard.Port)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("TODOSYNC_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")

	content := `
data_dir = "/srv/todo"

[remote]
url = "https://todo.example.net/api/"
debounce = "2s"

[dashboard]
port = 9090
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("TODOSYNC_DASHBOARD_PORT", "9191")
	t.Setenv("TODOSYNC_SERVER_MAGIC_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/srv/todo" {
		t.Errorf("data_dir = %s", cfg.DataDir)
	}
	if cfg.Remote.URL != "https://todo.example.net/api/" {
		t.Errorf("remote.url = %s", cfg.Remote.URL)
	}
	if cfg.Remote.Debounce != 2*time.Second {
		t.Errorf("remote.debounce = %s, want 2s", cfg.Remote.Debounce)
	}
	if cfg.Dashboard.Port != 9191 {
		t.Errorf("dashboard.port = %d, want env override 9191", cfg.Dashboard.Port)
	}
	if cfg.Server.MagicKey != "from-env" {
		t.Errorf("server.magic_key = %q, want env override", cfg.Server.MagicKey)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("server.addr = %s, want default", cfg.Server.Addr)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[dashboard]\nport = 70000\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for out-of-range port")
	}
}

func TestWriteDefault(t *testing.T) {
	t.Setenv("TODOSYNC_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault should refuse to overwrite")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of written default failed: %v", err)
	}
	want := DefaultConfig()
	if cfg.Remote.Debounce != want.Remote.Debounce || cfg.Server.Addr != want.Server.Addr || cfg.Log.MaxSizeMB != want.Log.MaxSizeMB {
		t.Errorf("round trip mismatch: got %+v", cfg)
	}
}
