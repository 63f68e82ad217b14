package engine

import "errors"

var (
	// ErrNoConflict is returned by ResolveConflict when nothing is pending.
	ErrNoConflict = errors.New("no conflict pending")

	// ErrConflictPending is returned by SyncNow while a conflict awaits a decision.
	ErrConflictPending = errors.New("conflict pending, resolve it first")

	// ErrSnapshotNotFound is returned by RestoreSnapshot for an unknown id.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrLocalOnly is returned by remote operations in local-only mode.
	ErrLocalOnly = errors.New("remote sync disabled in local-only mode")

	// ErrMissingCredential is returned by remote operations without a key.
	ErrMissingCredential = errors.New("missing key")

	// ErrNotStarted is returned by operations that change or upload the
	// document before Start has loaded it.
	ErrNotStarted = errors.New("controller not started")

	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("controller closed")
)
