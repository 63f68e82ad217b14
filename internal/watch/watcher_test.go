package watch

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *FileWatcher {
	t.Helper()

	fw, err := NewFileWatcher(&Config{
		DebounceInterval: 50 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	t.Cleanup(func() { _ = fw.Stop() })
	return fw
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name   string
		want   Format
		wantOK bool
	}{
		{"backup.json", FormatJSON, true},
		{"backup.JSON", FormatJSON, true},
		{"backup.yaml", FormatYAML, true},
		{"backup.yml", FormatYAML, true},
		{"backup.json.imported", 0, false},
		{"notes.txt", 0, false},
	}

	for _, tt := range tests {
		got, ok := FormatOf(tt.name)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("FormatOf(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	fw := newTestWatcher(t)
	dir := filepath.Join(t.TempDir(), "inbox")

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
	if err := fw.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("import directory not created: %v", err)
	}
	if err := fw.Start(dir); err == nil {
		t.Error("Start() on a running watcher should fail")
	}
	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}

func TestFileWatcher_StopWithoutStart(t *testing.T) {
	fw, err := NewFileWatcher(nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if _, ok := <-fw.Events(); ok {
		t.Error("Events channel should be closed")
	}
}

func TestFileWatcher_ReportsSettledFile(t *testing.T) {
	fw := newTestWatcher(t)
	dir := t.TempDir()
	if err := fw.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(fw.Dir(), "backup.yaml")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("tasks: []\nprojects: []\n"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := os.WriteFile(filepath.Join(fw.Dir(), "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case ev := <-fw.Events():
		if ev.Path != path || ev.Format != FormatYAML {
			t.Errorf("event = %+v, want %s as yaml", ev, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event for settled file")
	}

	select {
	case ev := <-fw.Events():
		t.Errorf("unexpected second event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConsume_RenamesProcessedFiles(t *testing.T) {
	fw := newTestWatcher(t)
	if err := fw.Start(t.TempDir()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	good := filepath.Join(fw.Dir(), "good.json")
	bad := filepath.Join(fw.Dir(), "bad.json")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make(chan error, 2)
	apply := func(ctx context.Context, ev FileEvent) error {
		if ev.Path == bad {
			return errors.New("invalid payload")
		}
		return nil
	}
	go Consume(ctx, fw, apply, func(ev FileEvent, err error) { results <- err }, log.New(io.Discard, "", 0))

	for _, p := range []string{good, bad} {
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-ctx.Done():
			t.Fatal("imports not processed")
		}
	}

	if _, err := os.Stat(good + SuffixImported); err != nil {
		t.Errorf("good file not marked imported: %v", err)
	}
	if _, err := os.Stat(bad + SuffixFailed); err != nil {
		t.Errorf("bad file not marked failed: %v", err)
	}
}
