package engine

import (
	"time"

	"github.com/jos-todo/todosync/internal/model"
)

// State is the controller's sync state.
type State string

const (
	// StateLocalOnly means remote sync is off by choice or for lack of a key.
	StateLocalOnly State = "local_only"
	// StateIdle means remote mode is on but nothing was attempted yet.
	StateIdle State = "idle"
	// StateRemoteReady means the last remote attempt succeeded.
	StateRemoteReady State = "remote_ready"
	// StateRemoteError means the last remote attempt failed.
	StateRemoteError State = "remote_error"
	// StateConflict means a divergence awaits an explicit decision.
	StateConflict State = "conflict"
)

// Status is the state plus a human-readable message.
type Status struct {
	State   State      `json:"state"`
	Message string     `json:"message"`
	Mode    model.Mode `json:"mode"`

	// Diverged is set when the local copy was kept over the remote but the
	// overwrite did not reach the remote. It clears on the next successful
	// upload.
	Diverged bool `json:"diverged"`

	ChangedAt time.Time `json:"changedAt"`
}

// Strategy picks the winning side of a conflict.
type Strategy string

const (
	StrategyLocal  Strategy = "local"
	StrategyRemote Strategy = "remote"
)

// ParseStrategy validates user input.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyLocal, StrategyRemote:
		return Strategy(s), true
	}
	return "", false
}

// Conflict is a detected divergence between the local and remote documents.
// It exists only until ResolveConflict consumes it.
type Conflict struct {
	Local           model.Document
	Remote          model.Document
	RemoteUpdatedAt *time.Time
	Summary         model.ConflictSummary
}

func (c *Conflict) clone() *Conflict {
	if c == nil {
		return nil
	}
	out := *c
	out.Local = c.Local.Clone()
	out.Remote = c.Remote.Clone()
	return &out
}

// Status messages.
const (
	msgLocalOnly         = "Using local storage only."
	msgNoRemote          = "No remote endpoint configured, using local storage only."
	msgNoKey             = "No key configured, using local storage only."
	msgIdle              = "Remote auto sync enabled, not synced yet."
	msgMigrated          = "Initialized the remote store from the local copy."
	msgMigrateSkipped    = "Remote already holds data, local copy kept."
	msgConnected         = "Connected to the remote store."
	msgConflict          = "Local and remote copies differ, choose which one to keep."
	msgAuthStartup       = "Invalid key, falling back to local storage."
	msgTransportStartup  = "Remote unavailable, falling back to local storage."
	msgAutoSaved         = "Automatic sync succeeded."
	msgAuthAutoSave      = "Invalid key, automatic sync paused."
	msgTransportAutoSave = "Remote save failed, changes are kept locally."
	msgMissingKeyAuto    = "Missing key, automatic sync paused."
	msgMissingKeyManual  = "Missing key, cannot sync to remote."
	msgManualSkipped     = "Local mode, remote sync skipped."
	msgManualSynced      = "Synced to remote manually."
	msgAuthManual        = "Invalid key, cannot sync."
	msgTransportManual   = "Remote sync failed."
	msgKeptLocal         = "Kept the local copy and overwrote the remote."
	msgKeptLocalFailed   = "Kept the local copy but the remote overwrite failed, run sync to retry."
	msgAdoptedRemote     = "Adopted the remote copy."
	msgRestored          = "Snapshot restored."
	msgRestoredUploaded  = "Snapshot restored and uploaded."
	msgRestoredNoUpload  = "Snapshot restored locally, upload failed."
	msgModeLocal         = "Switched to local mode."
	msgModeRemote        = "Switched to remote auto mode."
	msgKeyCleared        = "Key cleared."
	msgKeySet            = "Key saved."
)
