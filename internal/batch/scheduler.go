package batch

// scheduler.go drives the group's single sequential worker: a run loop that
// dequeues Pending entries in insertion order, awaits the gateway's
// auto-compute call, resolves the entry's adjustments, and emits
// notifications. Pause/Resume and failure isolation live here.

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
)

// Resume starts (or restarts) processing. It is a no-op while the run loop is
// already active. The context bounds the external auto-compute calls of the
// loop it starts; a loop that is already running keeps its original context.
func (g *Group) Resume(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = false
	g.runCtx = ctx
	g.kickLocked()
}

// Pause requests the run loop to stop after the in-flight entry finishes.
// The in-flight external call is never cancelled: auto-compute is not
// preemptible, and abandoning its result would leave external resources
// dangling. Pause is idempotent.
func (g *Group) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	log.Debug().Msg("Group pause requested")
}

// WaitUntilCompleted blocks until no entry is Pending or Processing, or the
// context is done. A group paused with work remaining never satisfies the
// condition — deliberately so; callers must Resume first and should bound the
// wait with a context deadline.
func (g *Group) WaitUntilCompleted(ctx context.Context) error {
	for {
		g.mu.Lock()
		if g.counts[StatusPending] == 0 && g.counts[StatusProcessing] == 0 {
			g.mu.Unlock()
			return nil
		}
		changed := g.changed
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// kickLocked launches the run loop when there is work and nothing stops it.
func (g *Group) kickLocked() {
	if g.running || g.paused || len(g.pending) == 0 {
		return
	}
	g.running = true
	ctx := g.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go g.run(ctx)
}

// run is the sequential worker. Exactly one instance exists per group at any
// time (guarded by g.running). The group mutex is held for every synchronous
// step and released only across the gateway await.
func (g *Group) run(ctx context.Context) {
	for {
		g.mu.Lock()
		if g.paused {
			g.stopLocked("paused")
			return
		}

		e := g.dequeueLocked()
		if e == nil {
			g.stopLocked("drained")
			return
		}

		processing := g.transitionLocked(e, StatusProcessing)
		kinds := slices.Clone(g.cfg.Kinds)
		src := e.source
		g.signalLocked()
		g.mu.Unlock()
		g.notify.publish(processing)

		// The only suspension point: one external call per entry. Everything
		// on either side is synchronous computation under the group mutex.
		result, err := g.cfg.Gateway.ComputeFeatures(ctx, src, kinds)

		g.mu.Lock()
		var done event
		if err != nil {
			// Failure isolation: this entry is terminal, the batch continues.
			e.err = fmt.Errorf("auto-compute %s: %w", e.id, err)
			done = g.transitionLocked(e, StatusFailed)
			log.Warn().Err(err).Str("entry", e.id).Msg("Auto-compute failed; continuing with next entry")
		} else {
			e.features = result.Features.Clone()
			e.computed = g.filterComputedLocked(result.Computed)
			g.invalidatePartitionLocked()
			e.resolved = g.resolveLocked(e)
			done = g.transitionLocked(e, StatusCompleted)
		}
		g.signalLocked()
		g.mu.Unlock()
		g.notify.publish(done)
	}
}

// dequeueLocked pops the next Pending entry, skipping queue positions made
// stale by invalidation re-queues.
func (g *Group) dequeueLocked() *entry {
	for len(g.pending) > 0 {
		id := g.pending[0]
		g.pending = g.pending[1:]
		if e := g.entries[id]; e != nil && e.status == StatusPending {
			return e
		}
	}
	return nil
}

// stopLocked parks the worker and releases the mutex.
func (g *Group) stopLocked(reason string) {
	g.running = false
	g.signalLocked()
	log.Debug().Str("reason", reason).Int("pending", g.counts[StatusPending]).Msg("Scheduler stopped")
	g.mu.Unlock()
}
