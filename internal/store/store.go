// Package store provides the durable local replica for todosync.
//
// The store is an embedded SQLite database (ncruces/go-sqlite3, WAL mode)
// holding five independently addressable records in a single key/value
// table:
//
//	document    tasks + projects as JSON
//	meta        SyncMetadata (last local write instant)
//	mode        local_only | remote_auto
//	credential  shared secret for the remote store
//	snapshots   bounded snapshot history, newest first
//
// Reads never fail the caller for bad data: a missing or corrupt document is
// logged and treated as empty.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/jos-todo/todosync/internal/model"
)

// Record keys.
const (
	KeyDocument   = "document"
	KeyMeta       = "meta"
	KeyMode       = "mode"
	KeyCredential = "credential"
	KeySnapshots  = "snapshots"
)

// Store wraps the SQLite connection holding the local replica.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
	now    func() time.Time
}

// Open creates a new store at the specified path, creating the parent
// directory and schema if needed.
//
// If logger is nil, a default logger writing to stderr is used.
//
// The caller MUST call Close() when done.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	// One logical owner writes; a single connection keeps writes ordered.
	conn.SetMaxOpenConns(1)

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
		now:    time.Now,
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.InitSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SetClock overrides the time source used by the retention filter.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// InitSchema creates the records table. It is idempotent.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the records table with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// get returns the raw value for key, or ok=false when absent.
func (s *Store) get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.conn.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) put(ctx context.Context, ex execer, key, value string) error {
	const query = `
	INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	if _, err := ex.ExecContext(ctx, query, key, value, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Load returns the stored document. It never fails: an absent or corrupt
// record yields an empty document and is logged. Normalisation and the trash
// retention filter are applied on the way out.
func (s *Store) Load() model.Document {
	return s.LoadContext(context.Background())
}

// LoadContext is Load with context support.
func (s *Store) LoadContext(ctx context.Context) model.Document {
	empty := model.Document{Tasks: []model.Task{}, Projects: []model.Project{}}

	raw, ok, err := s.get(ctx, KeyDocument)
	if err != nil {
		s.logger.Printf("Failed to load document: %v", err)
		return empty
	}
	if !ok {
		return empty
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		s.logger.Printf("Stored document is corrupt, treating as empty: %v", err)
		return empty
	}

	return Prepare(doc, s.now())
}

// Prepare normalises doc and drops trash older than the retention window.
// The same filter applies to documents from the local store and the remote.
func Prepare(doc model.Document, now time.Time) model.Document {
	doc.Normalize()
	return doc.PurgeExpired(now, model.TrashRetention)
}

// Persist atomically overwrites the stored document and its metadata.
func (s *Store) Persist(doc model.Document, updatedAt time.Time) error {
	return s.PersistContext(context.Background(), doc, updatedAt)
}

// PersistContext is Persist with context support.
func (s *Store) PersistContext(ctx context.Context, doc model.Document, updatedAt time.Time) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	stamp := updatedAt.UTC()
	metaJSON, err := json.Marshal(model.SyncMetadata{UpdatedAt: &stamp})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.put(ctx, tx, KeyDocument, string(docJSON)); err != nil {
		return err
	}
	if err := s.put(ctx, tx, KeyMeta, string(metaJSON)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReadMetadata returns the last local write instant. Missing or corrupt
// metadata yields a zero SyncMetadata.
func (s *Store) ReadMetadata() model.SyncMetadata {
	return s.ReadMetadataContext(context.Background())
}

// ReadMetadataContext is ReadMetadata with context support.
func (s *Store) ReadMetadataContext(ctx context.Context) model.SyncMetadata {
	raw, ok, err := s.get(ctx, KeyMeta)
	if err != nil {
		s.logger.Printf("Failed to read metadata: %v", err)
		return model.SyncMetadata{}
	}
	if !ok {
		return model.SyncMetadata{}
	}

	var meta model.SyncMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		s.logger.Printf("Stored metadata is corrupt: %v", err)
		return model.SyncMetadata{}
	}
	return meta
}

// Mode returns the stored sync mode, defaulting to local_only.
func (s *Store) Mode() model.Mode {
	raw, _, err := s.get(context.Background(), KeyMode)
	if err != nil {
		s.logger.Printf("Failed to read mode: %v", err)
	}
	return model.ParseMode(raw)
}

// SetMode stores the sync mode. Unknown values are stored as local_only.
func (s *Store) SetMode(mode model.Mode) error {
	return s.put(context.Background(), s.conn, KeyMode, string(model.ParseMode(string(mode))))
}

// Credential returns the stored shared secret, or "" when none is set.
func (s *Store) Credential() string {
	raw, _, err := s.get(context.Background(), KeyCredential)
	if err != nil {
		s.logger.Printf("Failed to read credential: %v", err)
	}
	return raw
}

// SetCredential stores the shared secret. An empty key removes it.
func (s *Store) SetCredential(key string) error {
	if key == "" {
		return s.remove(context.Background(), KeyCredential)
	}
	return s.put(context.Background(), s.conn, KeyCredential, key)
}

// Snapshots returns the stored snapshot list, newest first. A corrupt list
// is logged and treated as empty.
func (s *Store) Snapshots() []model.Snapshot {
	raw, ok, err := s.get(context.Background(), KeySnapshots)
	if err != nil {
		s.logger.Printf("Failed to read snapshots: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	var snaps []model.Snapshot
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		s.logger.Printf("Stored snapshots are corrupt, ignoring: %v", err)
		return nil
	}
	return snaps
}

// SaveSnapshots overwrites the stored snapshot list.
func (s *Store) SaveSnapshots(snaps []model.Snapshot) error {
	if snaps == nil {
		snaps = []model.Snapshot{}
	}
	data, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	return s.put(context.Background(), s.conn, KeySnapshots, string(data))
}

// PutRaw stores an arbitrary value under key. It exists for recovery tooling
// and tests that need to plant corrupt records.
func (s *Store) PutRaw(key, value string) error {
	return s.put(context.Background(), s.conn, key, value)
}
