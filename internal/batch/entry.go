package batch

import (
	"github.com/fpang/photo-edit-sdk/internal/adjust"
	"github.com/fpang/photo-edit-sdk/internal/gateway"
)

// Status is the per-entry processing state. The only legal transitions are
// Pending → Processing → {Completed, Failed}, plus Completed → Pending when a
// reference mark invalidates a cluster-mate. Failed is terminal.
type Status int

const (
	StatusPending Status = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

var statusNames = [...]string{"pending", "processing", "completed", "failed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// entry is the registry record for one photo. All fields are guarded by the
// group mutex.
type entry struct {
	id     string
	source gateway.Source
	status Status

	// features and computed are populated by the entry's own auto-compute run.
	features adjust.Vector
	computed adjust.Partial

	// resolved is the materialized adjustment record; non-nil only for entries
	// that are (or, before invalidation, were) Completed.
	resolved adjust.Partial

	// overrides holds user-set fields; highest resolution precedence.
	overrides adjust.Partial

	isReference bool

	// err is set exactly when status is Failed and never cleared.
	err error
}

// Photo registers one entry at group construction.
type Photo struct {
	ID     string
	Source gateway.Source
}

// Snapshot is a caller-visible copy of an entry's state.
type Snapshot struct {
	ID          string
	Status      Status
	IsReference bool
	Features    adjust.Vector
	Adjustments adjust.Partial
	Err         error
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		ID:          e.id,
		Status:      e.status,
		IsReference: e.isReference,
		Features:    e.features.Clone(),
		Adjustments: e.resolved.Clone(),
		Err:         e.err,
	}
}
