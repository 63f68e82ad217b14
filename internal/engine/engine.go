// Package engine implements the sync controller: the single owner of the
// in-memory document, responsible for startup reconciliation with the remote
// store, debounced uploads, conflict detection and resolution, and snapshot
// restore.
//
// All mutations go through Mutate (or the helpers built on it). Each mutation
// is persisted to the local store before it is handed to the save coalescer,
// and remote I/O never runs under the controller's lock.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jos-todo/todosync/internal/canonical"
	"github.com/jos-todo/todosync/internal/coalesce"
	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/remote"
	"github.com/jos-todo/todosync/internal/snapshot"
	"github.com/jos-todo/todosync/internal/store"
)

// Remote is the remote document protocol as seen by the controller.
type Remote interface {
	Fetch(ctx context.Context) (remote.FetchResult, error)
	Save(ctx context.Context, doc model.Document) error
	Migrate(ctx context.Context, doc model.Document) (remote.MigrateResult, error)
}

// Config holds controller configuration.
type Config struct {
	// Store is the local replica (required).
	Store *store.Store

	// Remote is the remote client. Nil keeps the controller local-only
	// regardless of the stored mode.
	Remote Remote

	// Debounce is the quiet period before an automatic upload
	// (default: coalesce.DefaultDelay)
	Debounce time.Duration

	// SnapshotCapacity bounds the snapshot history (default: 5)
	SnapshotCapacity int

	// Logger for controller activity (default: stderr logger)
	Logger *log.Logger

	// Now overrides the clock (default: time.Now)
	Now func() time.Time
}

// Controller owns the document and its synchronization.
type Controller struct {
	store  *store.Store
	remote Remote
	ring   *snapshot.Ring
	saver  *coalesce.Coalescer
	logger *log.Logger
	now    func() time.Time

	mu         sync.Mutex
	doc        model.Document
	status     Status
	conflict   *Conflict
	mode       model.Mode
	credential string
	// rev counts mutations; holding is set while a remote exchange decides
	// the document, so mutations made meanwhile are uploaded afterwards.
	rev     uint64
	holding bool
	lastErr error
	started bool
	closed  bool

	subMu  sync.Mutex
	subs   map[int]chan Status
	nextID int
}

// New creates a controller over the given store. Call Start to load the
// document and reconcile with the remote.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Controller{
		store:  cfg.Store,
		remote: cfg.Remote,
		ring:   snapshot.New(cfg.Store, cfg.SnapshotCapacity),
		logger: cfg.Logger,
		now:    cfg.Now,
		doc:    model.Document{Tasks: []model.Task{}, Projects: []model.Project{}},
		subs:   make(map[int]chan Status),
	}
	c.saver = coalesce.New(cfg.Debounce, c.send, c.onSaveResult)

	c.mode = cfg.Store.Mode()
	c.credential = strings.TrimSpace(cfg.Store.Credential())
	c.status = Status{State: StateLocalOnly, Message: c.localOnlyMessageLocked(), Mode: c.mode, ChangedAt: c.now()}
	if c.remoteEnabledLocked() {
		c.status = Status{State: StateIdle, Message: msgIdle, Mode: c.mode, ChangedAt: c.now()}
	}
	return c, nil
}

// Start loads the local document and, in remote mode with a key present,
// reconciles it with the remote store. It returns the document the
// controller settled on. Remote failures never fail Start; they are reported
// through Status.
func (c *Controller) Start(ctx context.Context) model.Document {
	c.mu.Lock()
	c.doc = c.store.LoadContext(ctx)
	c.started = true
	c.conflict = nil
	c.mode = c.store.Mode()
	c.credential = strings.TrimSpace(c.store.Credential())
	c.status.Mode = c.mode

	if !c.remoteEnabledLocked() {
		c.setStatusLocked(StateLocalOnly, c.localOnlyMessageLocked())
		doc := c.doc.Clone()
		c.mu.Unlock()
		return doc
	}
	if c.credential == "" {
		c.setStatusLocked(StateLocalOnly, msgNoKey)
		doc := c.doc.Clone()
		c.mu.Unlock()
		return doc
	}

	c.holding = true
	startRev := c.rev
	c.mu.Unlock()

	fetched, err := c.remote.Fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseLocked(startRev)

	if err != nil {
		c.failStartupLocked("fetch", err)
		return c.doc.Clone()
	}

	local := c.doc.Clone()

	if fetched.Empty {
		if local.Empty() {
			return c.adoptLocked(model.Document{Tasks: []model.Task{}, Projects: []model.Project{}}, nil, msgConnected)
		}

		c.mu.Unlock()
		result, err := c.remote.Migrate(ctx, local)
		c.mu.Lock()

		if err != nil {
			c.failStartupLocked("migrate", err)
			return c.doc.Clone()
		}
		if !result.Migrated {
			c.logger.Printf("Migrate skipped (%s), keeping local copy", result.Reason)
			c.setStatusLocked(StateRemoteReady, msgMigrateSkipped)
			return c.doc.Clone()
		}
		c.logger.Printf("Migrated %d tasks and %d projects to remote", len(local.Tasks), len(local.Projects))
		c.setStatusLocked(StateRemoteReady, msgMigrated)
		return c.doc.Clone()
	}

	remoteDoc := store.Prepare(fetched.Document, c.now())

	if !local.Empty() && !remoteDoc.Empty() && !canonical.DocumentsEqual(local, remoteDoc) {
		meta := c.store.ReadMetadataContext(ctx)
		c.conflict = &Conflict{
			Local:           local,
			Remote:          remoteDoc,
			RemoteUpdatedAt: fetched.UpdatedAt,
			Summary: model.ConflictSummary{
				LocalTaskCount:     len(local.Tasks),
				LocalProjectCount:  len(local.Projects),
				RemoteTaskCount:    len(remoteDoc.Tasks),
				RemoteProjectCount: len(remoteDoc.Projects),
				LocalUpdatedAt:     meta.UpdatedAt,
				RemoteUpdatedAt:    fetched.UpdatedAt,
			},
		}
		c.logger.Printf("Conflict detected: local %d/%d, remote %d/%d (tasks/projects)",
			len(local.Tasks), len(local.Projects), len(remoteDoc.Tasks), len(remoteDoc.Projects))
		c.setStatusLocked(StateConflict, msgConflict)
		return c.doc.Clone()
	}

	if remoteDoc.Empty() {
		// The remote row exists but holds nothing after filtering; the local
		// copy stands and reaches the remote with the next upload.
		c.setStatusLocked(StateRemoteReady, msgConnected)
		return c.doc.Clone()
	}
	return c.adoptLocked(remoteDoc, fetched.UpdatedAt, msgConnected)
}

// adoptLocked replaces the document with doc, persisting it with updatedAt
// (or now when nil).
func (c *Controller) adoptLocked(doc model.Document, updatedAt *time.Time, message string) model.Document {
	stamp := c.now()
	if updatedAt != nil {
		stamp = *updatedAt
	}
	if err := c.store.Persist(doc, stamp); err != nil {
		c.logger.Printf("Failed to persist adopted document: %v", err)
	}
	c.doc = doc
	c.setStatusLocked(StateRemoteReady, message)
	return c.doc.Clone()
}

// releaseLocked ends a remote exchange begun at startRev. Mutations that
// arrived meanwhile are scheduled for upload.
func (c *Controller) releaseLocked(startRev uint64) {
	c.holding = false
	if c.rev != startRev {
		c.scheduleLocked()
	}
}

func (c *Controller) failStartupLocked(op string, err error) {
	c.logger.Printf("Failed to %s remote state: %v", op, err)
	if remote.IsAuth(err) {
		c.setStatusLocked(StateRemoteError, msgAuthStartup)
		return
	}
	c.setStatusLocked(StateRemoteError, msgTransportStartup)
}

// Document returns a copy of the current document.
func (c *Controller) Document() model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Clone()
}

// Status returns the current sync status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Conflict returns a copy of the pending conflict, or nil.
func (c *Controller) Conflict() *Conflict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conflict.clone()
}

// Snapshots returns the snapshot history, newest first.
func (c *Controller) Snapshots() []model.Snapshot {
	return c.ring.List()
}

// Mutate applies fn to a copy of the document, normalises and persists the
// result, then schedules an upload when automatic sync applies. If fn fails
// the document is unchanged.
func (c *Controller) Mutate(fn func(doc *model.Document) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.started {
		return ErrNotStarted
	}

	next := c.doc.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.Normalize()

	if err := c.store.Persist(next, c.now()); err != nil {
		return fmt.Errorf("failed to persist document: %w", err)
	}
	c.doc = next
	c.rev++
	c.scheduleLocked()
	return nil
}

// Replace swaps in doc as the whole document.
func (c *Controller) Replace(doc model.Document) error {
	return c.Mutate(func(d *model.Document) error {
		*d = doc.Clone()
		return nil
	})
}

// Import replaces the document with an externally supplied one after
// normalisation and the trash retention filter.
func (c *Controller) Import(doc model.Document) error {
	prepared := store.Prepare(doc.Clone(), c.now())
	if err := prepared.Validate(); err != nil {
		return fmt.Errorf("failed to import document: %w", err)
	}
	return c.Replace(prepared)
}

// scheduleLocked hands the current document to the coalescer when automatic
// sync applies.
func (c *Controller) scheduleLocked() {
	if c.status.State == StateConflict || c.conflict != nil || c.holding {
		return
	}
	if !c.remoteEnabledLocked() {
		if c.status.State != StateLocalOnly {
			c.setStatusLocked(StateLocalOnly, c.localOnlyMessageLocked())
		}
		return
	}
	if c.credential == "" {
		c.setStatusLocked(StateRemoteError, msgMissingKeyAuto)
		return
	}
	c.saver.Schedule(c.doc)
}

// send is the coalescer's upload function.
func (c *Controller) send(ctx context.Context, doc model.Document) error {
	return c.remote.Save(ctx, doc)
}

// onSaveResult records the outcome of every coalesced upload.
func (c *Controller) onSaveResult(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = err
	if c.status.State == StateConflict || !c.remoteEnabledLocked() {
		return
	}
	if err == nil {
		c.status.Diverged = false
		c.setStatusLocked(StateRemoteReady, msgAutoSaved)
		return
	}

	c.logger.Printf("Failed to save remote state: %v", err)
	if remote.IsAuth(err) {
		c.setStatusLocked(StateRemoteError, msgAuthAutoSave)
		return
	}
	c.setStatusLocked(StateRemoteError, msgTransportAutoSave)
}

// upload pushes the current document through the coalescer and waits for it
// to drain. It returns the outcome of the last send.
func (c *Controller) upload(ctx context.Context) error {
	c.mu.Lock()
	c.saver.Schedule(c.doc)
	c.mu.Unlock()

	if err := c.saver.Flush(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SyncNow uploads the current document immediately.
func (c *Controller) SyncNow(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if !c.remoteEnabledLocked() {
		c.setStatusLocked(StateLocalOnly, msgManualSkipped)
		c.mu.Unlock()
		return ErrLocalOnly
	}
	if c.credential == "" {
		c.setStatusLocked(StateRemoteError, msgMissingKeyManual)
		c.mu.Unlock()
		return ErrMissingCredential
	}
	if c.conflict != nil {
		c.mu.Unlock()
		return ErrConflictPending
	}
	c.mu.Unlock()

	err := c.upload(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.status.Diverged = false
		c.setStatusLocked(StateRemoteReady, msgManualSynced)
		return nil
	case remote.IsAuth(err):
		c.setStatusLocked(StateRemoteError, msgAuthManual)
	default:
		c.setStatusLocked(StateRemoteError, msgTransportManual)
	}
	return fmt.Errorf("failed to sync to remote: %w", err)
}

// ResolveConflict consumes the pending conflict.
//
// With StrategyLocal the current local document is snapshotted and
// force-written to the remote. The conflict is cleared whether or not that
// write succeeds; on failure the status becomes remote_error with Diverged
// set, and the next upload (manual or automatic) retries the overwrite.
//
// With StrategyRemote the local document is snapshotted and the remote copy
// replaces it locally without an upload.
func (c *Controller) ResolveConflict(ctx context.Context, strategy Strategy) (model.Document, error) {
	c.mu.Lock()
	if c.conflict == nil {
		c.mu.Unlock()
		return model.Document{}, ErrNoConflict
	}
	if _, ok := ParseStrategy(string(strategy)); !ok {
		c.mu.Unlock()
		return model.Document{}, fmt.Errorf("unknown strategy %q", strategy)
	}

	rec := c.conflict
	summary := rec.Summary
	local := c.doc.Clone()

	reason := model.ReasonBeforeRemoteOverwriteLocal
	if strategy == StrategyLocal {
		reason = model.ReasonBeforeLocalOverwriteRemote
	}
	if _, err := c.ring.Push(reason, local, &summary); err != nil {
		c.mu.Unlock()
		return model.Document{}, fmt.Errorf("failed to snapshot before resolving: %w", err)
	}
	c.conflict = nil

	if strategy == StrategyRemote {
		defer c.mu.Unlock()
		c.logger.Printf("Conflict resolved: adopted remote copy")
		return c.adoptLocked(rec.Remote, rec.RemoteUpdatedAt, msgAdoptedRemote), nil
	}

	c.holding = true
	startRev := c.rev
	c.mu.Unlock()

	err := c.remote.Save(ctx, local)

	c.mu.Lock()
	defer c.mu.Unlock()

	if perr := c.store.Persist(c.doc, c.now()); perr != nil {
		c.logger.Printf("Failed to persist local copy: %v", perr)
	}
	if err != nil {
		c.logger.Printf("Conflict resolved locally but remote overwrite failed: %v", err)
		c.status.Diverged = true
		c.setStatusLocked(StateRemoteError, msgKeptLocalFailed)
		c.releaseLocked(startRev)
		return c.doc.Clone(), nil
	}

	c.logger.Printf("Conflict resolved: kept local copy")
	c.status.Diverged = false
	c.setStatusLocked(StateRemoteReady, msgKeptLocal)
	c.releaseLocked(startRev)
	return c.doc.Clone(), nil
}

// RestoreSnapshot replaces the document with the snapshot's state. In remote
// mode the restored document is uploaded on a best-effort basis; a failed
// upload does not undo the restore.
func (c *Controller) RestoreSnapshot(ctx context.Context, id string) (model.Document, error) {
	snap, ok := c.ring.Get(id)
	if !ok {
		return model.Document{}, ErrSnapshotNotFound
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.Document{}, ErrClosed
	}
	if !c.started {
		c.mu.Unlock()
		return model.Document{}, ErrNotStarted
	}

	doc := store.Prepare(snap.State, c.now())
	if err := c.store.Persist(doc, c.now()); err != nil {
		c.mu.Unlock()
		return model.Document{}, fmt.Errorf("failed to persist restored snapshot: %w", err)
	}
	c.doc = doc
	c.rev++
	c.logger.Printf("Restored snapshot %s (%s)", snap.ID, snap.Reason)

	upload := c.remoteEnabledLocked() &&
		c.conflict == nil &&
		c.credential != ""
	if !upload {
		if c.status.State != StateConflict {
			c.status.Message = msgRestored
			c.broadcastLocked()
		}
		c.mu.Unlock()
		return doc.Clone(), nil
	}
	c.mu.Unlock()

	err := c.upload(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Printf("Failed to upload restored snapshot: %v", err)
		c.setStatusLocked(StateRemoteError, msgRestoredNoUpload)
	} else {
		c.setStatusLocked(StateRemoteReady, msgRestoredUploaded)
	}
	return doc.Clone(), nil
}

// Mode returns the sync mode.
func (c *Controller) Mode() model.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode persists the sync mode. Switching to local-only drops any pending
// conflict and unsent uploads.
func (c *Controller) SetMode(mode model.Mode) error {
	mode = model.ParseMode(string(mode))
	if err := c.store.SetMode(mode); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mode = mode
	c.status.Mode = mode
	if mode == model.ModeLocalOnly {
		c.saver.Cancel()
		c.conflict = nil
		c.setStatusLocked(StateLocalOnly, msgModeLocal)
		return nil
	}
	c.setStatusLocked(StateIdle, msgModeRemote)
	return nil
}

// SetCredential stores the shared secret. Surrounding whitespace is trimmed;
// a blank key clears it.
func (c *Controller) SetCredential(key string) error {
	key = strings.TrimSpace(key)
	if err := c.store.SetCredential(key); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.credential = key
	if key == "" {
		c.status.Message = msgKeyCleared
	} else {
		c.status.Message = msgKeySet
	}
	c.broadcastLocked()
	return nil
}

// ClearCredential removes the stored shared secret.
func (c *Controller) ClearCredential() error {
	return c.SetCredential("")
}

// Close delivers outstanding uploads (bounded by ctx), stops the coalescer
// and closes all subscriptions.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.saver.Flush(ctx)
	c.saver.Close()

	c.subMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to flush pending upload: %w", err)
	}
	return nil
}

func (c *Controller) remoteEnabledLocked() bool {
	return c.remote != nil && c.mode == model.ModeRemoteAuto
}

func (c *Controller) localOnlyMessageLocked() string {
	if c.remote == nil && c.mode == model.ModeRemoteAuto {
		return msgNoRemote
	}
	return msgLocalOnly
}
