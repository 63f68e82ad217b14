package store

import (
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jos-todo/todosync/internal/model"
)

// openTestStore creates a store in a temporary directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "todosync.db"), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoad_EmptyStore(t *testing.T) {
	s := openTestStore(t)

	doc := s.Load()
	if !doc.Empty() {
		t.Errorf("expected empty document, got %+v", doc)
	}
	if doc.Tasks == nil || doc.Projects == nil {
		t.Error("empty document should carry non-nil sequences")
	}
}

func TestLoad_CorruptDocument(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutRaw(KeyDocument, "{not json"); err != nil {
		t.Fatalf("PutRaw() failed: %v", err)
	}

	if doc := s.Load(); !doc.Empty() {
		t.Errorf("corrupt document should load as empty, got %+v", doc)
	}
}

func TestPersistAndLoad(t *testing.T) {
	s := openTestStore(t)

	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	doc := model.Document{
		Tasks: []model.Task{{
			ID: "t1", Title: "Write report", Priority: model.PriorityHigh, CreatedAt: created,
		}},
		Projects: []model.Project{{
			ID: "p1", Title: "Q2", Status: model.StatusInProgress, SortOrder: 1000, CreatedAt: created,
		}},
	}

	written := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	if err := s.Persist(doc, written); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}

	got := s.Load()
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("loaded document mismatch (-want +got):\n%s", diff)
	}

	meta := s.ReadMetadata()
	if meta.UpdatedAt == nil || !meta.UpdatedAt.Equal(written) {
		t.Errorf("metadata updatedAt = %v, want %v", meta.UpdatedAt, written)
	}
}

func TestLoad_AppliesRetention(t *testing.T) {
	s := openTestStore(t)

	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	expired := now.AddDate(0, 0, -31)
	kept := now.AddDate(0, 0, -29)
	doc := model.Document{
		Tasks: []model.Task{
			{ID: "gone", Title: "gone", IsDeleted: true, DeletedAt: &expired},
			{ID: "kept", Title: "kept", IsDeleted: true, DeletedAt: &kept},
		},
	}
	if err := s.Persist(doc, now); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}

	got := s.Load()
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "kept" {
		t.Errorf("expected only the 29-day-old task, got %+v", got.Tasks)
	}
}

func TestModeAndCredential(t *testing.T) {
	s := openTestStore(t)

	if got := s.Mode(); got != model.ModeLocalOnly {
		t.Errorf("default mode = %q, want %q", got, model.ModeLocalOnly)
	}
	if err := s.SetMode(model.ModeRemoteAuto); err != nil {
		t.Fatalf("SetMode() failed: %v", err)
	}
	if got := s.Mode(); got != model.ModeRemoteAuto {
		t.Errorf("mode = %q, want %q", got, model.ModeRemoteAuto)
	}
	if err := s.SetMode("bogus"); err != nil {
		t.Fatalf("SetMode() failed: %v", err)
	}
	if got := s.Mode(); got != model.ModeLocalOnly {
		t.Errorf("unknown mode stored as %q, want %q", got, model.ModeLocalOnly)
	}

	if err := s.SetCredential("s3cret"); err != nil {
		t.Fatalf("SetCredential() failed: %v", err)
	}
	if got := s.Credential(); got != "s3cret" {
		t.Errorf("credential = %q, want %q", got, "s3cret")
	}
	if err := s.SetCredential(""); err != nil {
		t.Fatalf("SetCredential(\"\") failed: %v", err)
	}
	if got := s.Credential(); got != "" {
		t.Errorf("credential after clear = %q, want empty", got)
	}
}

func TestSnapshotsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if snaps := s.Snapshots(); len(snaps) != 0 {
		t.Errorf("expected no snapshots, got %d", len(snaps))
	}

	snaps := []model.Snapshot{{
		ID:        "s1",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Reason:    model.ReasonBeforeRemoteOverwriteLocal,
		State:     model.Document{Tasks: []model.Task{{ID: "t", Title: "t"}}, Projects: []model.Project{}},
	}}
	if err := s.SaveSnapshots(snaps); err != nil {
		t.Fatalf("SaveSnapshots() failed: %v", err)
	}
	if diff := cmp.Diff(snaps, s.Snapshots()); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}

	if err := s.PutRaw(KeySnapshots, "[{"); err != nil {
		t.Fatalf("PutRaw() failed: %v", err)
	}
	if got := s.Snapshots(); got != nil {
		t.Errorf("corrupt snapshots should read as nil, got %+v", got)
	}
}
