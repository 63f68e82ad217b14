package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// State is the single remote document as stored by the server.
type State struct {
	Tasks     json.RawMessage `json:"tasks"`
	Projects  json.RawMessage `json:"projects"`
	UpdatedAt *string         `json:"updatedAt"`
	Empty     bool            `json:"empty"`
}

// HasData reports whether either sequence is non-empty.
func (s State) HasData() bool {
	return !isEmptyArray(s.Tasks) || !isEmptyArray(s.Projects)
}

func isEmptyArray(raw json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return true
	}
	return len(items) == 0
}

// StateDB persists the remote document in a single-row SQLite table.
type StateDB struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenStateDB opens (and creates if needed) the server's state database.
func OpenStateDB(path string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &StateDB{conn: conn, now: time.Now}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS app_state (
		id INTEGER PRIMARY KEY,
		tasks TEXT NOT NULL,
		projects TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *StateDB) Close() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Get returns the stored document, or an empty State when no row exists.
func (db *StateDB) Get(ctx context.Context) (State, error) {
	return db.get(ctx, db.conn)
}

func (db *StateDB) get(ctx context.Context, q querier) (State, error) {
	var tasks, projects, updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT tasks, projects, updated_at FROM app_state WHERE id = 1`,
	).Scan(&tasks, &projects, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return State{
			Tasks:    json.RawMessage("[]"),
			Projects: json.RawMessage("[]"),
			Empty:    true,
		}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read state: %w", err)
	}

	return State{
		Tasks:     json.RawMessage(tasks),
		Projects:  json.RawMessage(projects),
		UpdatedAt: &updatedAt,
	}, nil
}

// Upsert unconditionally replaces the stored document.
func (db *StateDB) Upsert(ctx context.Context, tasks, projects json.RawMessage) error {
	return db.upsert(ctx, db.conn, tasks, projects)
}

func (db *StateDB) upsert(ctx context.Context, q querier, tasks, projects json.RawMessage) error {
	const query = `
	INSERT INTO app_state (id, tasks, projects, updated_at) VALUES (1, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		tasks = excluded.tasks,
		projects = excluded.projects,
		updated_at = excluded.updated_at`

	stamp := db.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if _, err := q.ExecContext(ctx, query, string(tasks), string(projects), stamp); err != nil {
		return fmt.Errorf("failed to upsert state: %w", err)
	}
	return nil
}

// MigrateIfEmpty writes the document only when the stored one holds no
// tasks and no projects. The check and write share one transaction, so a
// concurrent save cannot be clobbered.
func (db *StateDB) MigrateIfEmpty(ctx context.Context, tasks, projects json.RawMessage) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := db.get(ctx, tx)
	if err != nil {
		return false, err
	}
	if current.HasData() {
		return false, nil
	}

	if err := db.upsert(ctx, tx, tasks, projects); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}
