package batch

// propagate.go resolves an entry's effective adjustments and handles the
// reference workflow: marking a Completed entry as reference invalidates its
// non-reference cluster-mates so they recompute against it.

import (
	"fmt"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
)

// MarkAsReference flags a Completed entry as the reference for its cluster.
// Every other Completed, non-reference member of that cluster is reset to
// Pending with its adjustments cleared, forcing re-resolution against the
// reference on the next processing pass. The scheduler wakes immediately when
// the group is not paused; otherwise the invalidated entries sit Pending until
// Resume.
func (g *Group) MarkAsReference(id string) error {
	g.mu.Lock()

	e, ok := g.entries[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if e.status != StatusCompleted {
		g.mu.Unlock()
		return fmt.Errorf("%w: cannot mark %s entry %q as reference", ErrInvalidStateTransition, e.status, id)
	}

	e.isReference = true
	g.invalidatePartitionLocked()

	var events []event
	for _, member := range g.partitionLocked().ClusterOf(id) {
		if member == id {
			continue
		}
		me := g.entries[member]
		if me.isReference || me.status != StatusCompleted {
			continue
		}
		me.resolved = nil
		events = append(events, g.transitionLocked(me, StatusPending))
		g.pending = append(g.pending, member)
	}

	g.signalLocked()
	g.kickLocked()
	g.mu.Unlock()

	g.notify.publish(events...)
	return nil
}

// UnmarkAsReference clears the reference flag. Cluster-mates keep their
// current adjustments; only future (re)resolution stops seeing the reference.
func (g *Group) UnmarkAsReference(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	e.isReference = false
	g.invalidatePartitionLocked()
	return nil
}

// SetAdjustments merges the partial record into the entry's manual overrides —
// field-wise, later calls overwriting earlier fields. It never changes status
// and never propagates to other entries. A Completed entry's resolved record
// is refreshed in place so the overrides are immediately visible.
func (g *Group) SetAdjustments(id string, partial adjust.Partial) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	if e.overrides == nil {
		e.overrides = adjust.Partial{}
	}
	e.overrides.Merge(partial)

	if e.status == StatusCompleted {
		e.resolved = g.resolveLocked(e)
	}
	return nil
}

// GetAdjustments returns the resolved adjustment record for a Completed
// entry. Pending, Processing, and Failed entries return (nil, nil): a
// partially resolved record is never exposed. An unknown id is an error.
func (g *Group) GetAdjustments(id string) (adjust.Partial, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if e.status != StatusCompleted {
		return nil, nil
	}
	return e.resolved.Clone(), nil
}

// filterComputedLocked keeps only the fields of kinds this group is
// configured to auto-compute.
func (g *Group) filterComputedLocked(computed adjust.Partial) adjust.Partial {
	out := adjust.Partial{}
	for _, f := range computed.Fields() {
		if g.computedFields[f] {
			out[f] = computed[f]
		}
	}
	return out
}

// resolveLocked materializes an entry's effective adjustments. Precedence,
// highest first:
//
//  1. manual overrides
//  2. the entry's own computed-kind fields (photo-specific, never copied)
//  3. the cluster reference's resolved non-computed fields
//  4. the nearest style rule's non-computed fields, when no reference applies
//  5. the field's prior value, retained unchanged
//
// Layers are applied lowest-precedence first so each higher layer overwrites.
func (g *Group) resolveLocked(e *entry) adjust.Partial {
	resolved := e.resolved.Clone()

	ref := g.referenceForLocked(e)
	switch {
	case ref == e:
		// The entry is its own cluster's reference; nothing to copy.
	case ref != nil:
		for _, f := range ref.resolved.Fields() {
			if !g.computedFields[f] {
				resolved[f] = ref.resolved[f]
			}
		}
	case g.style != nil:
		if rule := g.style.Nearest(e.features); rule != nil {
			for _, f := range rule.Delta.Fields() {
				if !g.computedFields[f] {
					resolved[f] = rule.Delta[f]
				}
			}
		}
	}

	for _, f := range e.computed.Fields() {
		resolved[f] = e.computed[f]
	}
	for _, f := range e.overrides.Fields() {
		resolved[f] = e.overrides[f]
	}
	return resolved
}

// referenceForLocked finds the active reference for an entry's cluster: the
// lexicographically smallest Completed reference among its cluster-mates.
// Entries without features never see peer references.
func (g *Group) referenceForLocked(e *entry) *entry {
	if len(e.features) == 0 {
		return nil
	}
	for _, member := range g.partitionLocked().ClusterOf(e.id) {
		me := g.entries[member]
		if me.isReference && me.status == StatusCompleted {
			return me
		}
	}
	return nil
}
