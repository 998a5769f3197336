// Package batch implements the auto-adjustments group: the coordinator that
// schedules per-photo auto-adjustment computation across a set of photos,
// clusters photos by feature similarity, propagates a reference photo's edits
// to its cluster-mates, and distills a processed group into a portable style.
//
// One group owns one sequential worker: at most one auto-compute call is in
// flight per group, because the underlying render pipeline is single-threaded
// per instance. Independent groups, each with their own gateway, run in
// parallel with no shared state.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
	"github.com/fpang/photo-edit-sdk/internal/cluster"
	"github.com/fpang/photo-edit-sdk/internal/gateway"
	"github.com/fpang/photo-edit-sdk/internal/style"

	"github.com/rs/zerolog/log"
)

// Config assembles a group. Kinds, the cluster threshold, and the gateway are
// required; callbacks are optional.
type Config struct {
	// Kinds are the auto-compute categories requested for every entry.
	// Fields of these kinds are always taken from the entry's own compute
	// result, never from a reference or style.
	Kinds []adjust.Kind

	// Cluster holds the similarity threshold and metric. Both are caller
	// configuration (see cluster.Config).
	Cluster cluster.Config

	// Gateway performs the external per-photo auto-compute.
	Gateway gateway.AutoCompute

	// OnQueue, if set, receives queue progress after every entry transition.
	OnQueue func(QueueProgress)

	// OnEntry, if set, receives every per-entry transition.
	OnEntry func(EntryTransition)
}

// Group is the coordinator for one photo set. All methods are safe for
// concurrent use; every mutation serializes on the group mutex and therefore
// never interleaves with the synchronous portion of a scheduler dequeue step.
//
// A new group starts paused: nothing processes before Resume.
type Group struct {
	mu sync.Mutex

	cfg            Config
	computedFields map[adjust.Field]bool

	entries map[string]*entry
	order   []string // insertion order, drives FIFO scheduling
	pending []string // dequeue order; invalidated ids are appended
	counts  [4]int   // indexed by Status

	paused  bool
	running bool
	runCtx  context.Context

	// changed is closed and replaced on every state change; WaitUntilCompleted
	// blocks on it.
	changed chan struct{}

	part      cluster.Partition
	partValid bool

	style *style.Style

	notify notifier
}

// New constructs a paused group and registers the given photos in order.
func New(cfg Config, photos ...Photo) (*Group, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("batch: gateway is required")
	}
	if len(cfg.Kinds) == 0 {
		return nil, fmt.Errorf("batch: at least one auto-compute kind is required")
	}
	if cfg.Cluster.Threshold < 0 {
		return nil, fmt.Errorf("batch: cluster threshold must not be negative")
	}

	computed := make(map[adjust.Field]bool)
	for _, kind := range cfg.Kinds {
		for _, field := range adjust.FieldsOf(kind) {
			computed[field] = true
		}
	}

	g := &Group{
		cfg:            cfg,
		computedFields: computed,
		entries:        make(map[string]*entry),
		paused:         true,
		changed:        make(chan struct{}),
		notify:         notifier{onEntry: cfg.OnEntry, onQueue: cfg.OnQueue},
	}
	for _, p := range photos {
		if err := g.Add(p.ID, p.Source); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Add registers one entry. The id must be unique within the group. When the
// group is not paused, the scheduler picks the entry up without a new Resume.
func (g *Group) Add(id string, src gateway.Source) error {
	if id == "" {
		return fmt.Errorf("batch: entry id must not be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.entries[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, id)
	}

	g.entries[id] = &entry{id: id, source: src, status: StatusPending}
	g.order = append(g.order, id)
	g.pending = append(g.pending, id)
	g.counts[StatusPending]++
	g.signalLocked()
	g.kickLocked()
	return nil
}

// Len returns the number of registered entries.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Progress returns the current queue progress.
func (g *Group) Progress() QueueProgress {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.progressLocked()
}

// Clusters returns the current similarity clusters. Each cluster lists its
// member ids sorted ascending; clusters are ordered by their smallest member.
func (g *Group) Clusters() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.partitionLocked().Clusters()
}

// Snapshot returns a copy of one entry's state.
func (g *Group) Snapshot(id string) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return e.snapshot(), nil
}

// Snapshots returns all entries in insertion order.
func (g *Group) Snapshots() []Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Snapshot, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entries[id].snapshot())
	}
	return out
}

func (g *Group) progressLocked() QueueProgress {
	return QueueProgress{
		Completed: g.counts[StatusCompleted],
		Total:     len(g.entries),
	}
}

// transitionLocked moves an entry to a new status, keeps the counters
// balanced, and builds the notification event captured at transition time.
func (g *Group) transitionLocked(e *entry, to Status) event {
	g.counts[e.status]--
	e.status = to
	g.counts[to]++
	return event{
		entry: EntryTransition{ID: e.id, Status: to, Err: e.err},
		queue: g.progressLocked(),
	}
}

// signalLocked wakes every WaitUntilCompleted call to re-check its condition.
func (g *Group) signalLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}

// invalidatePartitionLocked forces the next cluster lookup to recompute.
func (g *Group) invalidatePartitionLocked() {
	g.partValid = false
}

// partitionLocked returns the current cluster partition, recomputing it when
// features or reference marks changed. Failed entries are never clustered.
func (g *Group) partitionLocked() cluster.Partition {
	if g.partValid {
		return g.part
	}
	features := make(map[string]adjust.Vector)
	for id, e := range g.entries {
		if e.status == StatusFailed || len(e.features) == 0 {
			continue
		}
		features[id] = e.features
	}
	g.part = cluster.Compute(features, g.cfg.Cluster)
	g.partValid = true
	log.Debug().Int("clustered", len(features)).Int("clusters", len(g.part.Clusters())).Msg("Cluster partition recomputed")
	return g.part
}
