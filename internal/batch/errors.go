package batch

import "errors"

// Structural misuse surfaces synchronously through these sentinels; per-entry
// compute failures never do — they land on the entry's Err and in the entry
// notification instead.
var (
	// ErrEntryNotFound reports an operation referencing an unknown entry id.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrDuplicateEntry reports registration of an id the group already holds.
	ErrDuplicateEntry = errors.New("duplicate entry id")

	// ErrInvalidStateTransition reports an operation illegal for the entry's
	// current status, e.g. marking a non-Completed entry as reference.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrPrecondition reports a group-level operation attempted before the
	// group reached the required state, e.g. SaveStyle with entries pending.
	ErrPrecondition = errors.New("precondition not met")
)
