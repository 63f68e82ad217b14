package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFactory_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "todosync.log")
	f, err := New(Options{File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	f.Logger("engine").Printf("hello %d", 42)
	f.Logger("store").Println("second")
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "[engine] ") || !strings.Contains(out, "hello 42") {
		t.Errorf("engine line missing from log:\n%s", out)
	}
	if !strings.Contains(out, "[store] ") || !strings.Contains(out, "second") {
		t.Errorf("store line missing from log:\n%s", out)
	}
}

func TestFactory_Quiet(t *testing.T) {
	f, err := New(Options{Quiet: true, File: filepath.Join(t.TempDir(), "unused.log")})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.Logger("x").Println("dropped")
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestFactory_UnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := New(Options{File: filepath.Join(blocker, "logs", "todosync.log")})
	if err == nil {
		_ = f.Close()
		t.Fatal("expected an error when the log directory cannot be created")
	}
	if !strings.Contains(err.Error(), "failed to create log directory") {
		t.Errorf("unexpected error: %v", err)
	}
}

func ExampleFactory_Logger() {
	f, err := New(Options{})
	if err != nil {
		panic(err)
	}
	logger := f.Logger("engine")
	logger.SetOutput(os.Stdout)
	logger.SetFlags(0)

	logger.Println("Connected to the remote store.")
	// Output:
	// [engine] Connected to the remote store.
}
