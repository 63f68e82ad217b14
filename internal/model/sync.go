package model

import "time"

// Mode selects whether the document is synchronized with the remote store.
type Mode string

const (
	ModeLocalOnly  Mode = "local_only"
	ModeRemoteAuto Mode = "remote_auto"
)

// ParseMode maps stored or user-supplied text to a Mode. Anything
// unrecognised falls back to ModeLocalOnly.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeRemoteAuto:
		return ModeRemoteAuto
	default:
		return ModeLocalOnly
	}
}

// SyncMetadata records when the local document was last written.
type SyncMetadata struct {
	UpdatedAt *time.Time `json:"updatedAt"`
}

// SnapshotReason names the event that caused a snapshot.
type SnapshotReason string

const (
	ReasonBeforeLocalOverwriteRemote SnapshotReason = "before_local_overwrite_remote"
	ReasonBeforeRemoteOverwriteLocal SnapshotReason = "before_remote_overwrite_local"
)

// Snapshot is an immutable point-in-time copy of the document retained for
// manual rollback.
type Snapshot struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
	Reason    SnapshotReason   `json:"reason"`
	Summary   *ConflictSummary `json:"metadata,omitempty"`
	State     Document         `json:"state"`
}

// ConflictSummary describes both sides of a divergence in terms a user can
// decide on.
type ConflictSummary struct {
	LocalTaskCount     int        `json:"localTaskCount"`
	LocalProjectCount  int        `json:"localProjectCount"`
	RemoteTaskCount    int        `json:"remoteTaskCount"`
	RemoteProjectCount int        `json:"remoteProjectCount"`
	LocalUpdatedAt     *time.Time `json:"localUpdatedAt"`
	RemoteUpdatedAt    *time.Time `json:"remoteUpdatedAt"`
}
