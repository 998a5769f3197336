package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
	"github.com/fpang/photo-edit-sdk/internal/cluster"
	"github.com/fpang/photo-edit-sdk/internal/gateway"
	"github.com/fpang/photo-edit-sdk/internal/style"
)

// fakeGateway returns scripted per-entry results, keyed by the entry's
// FileSource path. Unscripted entries get a one-dimensional zero vector.
type fakeGateway struct {
	results map[string]gateway.Result
	errs    map[string]error

	// started receives each call's id when non-nil.
	started chan string
	// release blocks each call until a token arrives when non-nil.
	release chan struct{}

	mu          sync.Mutex
	calls       []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeGateway) ComputeFeatures(ctx context.Context, src gateway.Source, kinds []adjust.Kind) (*gateway.Result, error) {
	id := src.(gateway.FileSource).Path

	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	if cur > f.maxInFlight.Load() {
		f.maxInFlight.Store(cur)
	}

	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- id
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := f.errs[id]; err != nil {
		return nil, err
	}
	if r, ok := f.results[id]; ok {
		return &gateway.Result{Features: r.Features.Clone(), Computed: r.Computed.Clone()}, nil
	}
	return &gateway.Result{Features: adjust.Vector{0}, Computed: adjust.Partial{}}, nil
}

func (f *fakeGateway) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func photo(id string) Photo {
	return Photo{ID: id, Source: gateway.FileSource{Path: id}}
}

func lightingConfig(gw gateway.AutoCompute, threshold float64) Config {
	return Config{
		Kinds:   []adjust.Kind{adjust.KindLighting},
		Cluster: cluster.Config{Threshold: threshold},
		Gateway: gw,
	}
}

func waitDone(t *testing.T, g *Group) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g.Resume(ctx)
	if err := g.WaitUntilCompleted(ctx); err != nil {
		t.Fatalf("WaitUntilCompleted() error = %v", err)
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestProcessAllEntries(t *testing.T) {
	gw := &fakeGateway{results: map[string]gateway.Result{
		"a.jpg": {Features: adjust.Vector{0.1}, Computed: adjust.Partial{adjust.FieldExposure: 0.1}},
		"b.jpg": {Features: adjust.Vector{0.2}, Computed: adjust.Partial{adjust.FieldExposure: 0.2}},
		"c.jpg": {Features: adjust.Vector{5.0}, Computed: adjust.Partial{adjust.FieldExposure: 0.3}},
	}}

	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"), photo("b.jpg"), photo("c.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	for id, wantExposure := range map[string]float64{"a.jpg": 0.1, "b.jpg": 0.2, "c.jpg": 0.3} {
		snap, err := g.Snapshot(id)
		if err != nil {
			t.Fatalf("Snapshot(%s) error = %v", id, err)
		}
		if snap.Status != StatusCompleted {
			t.Errorf("%s status = %s, want completed", id, snap.Status)
		}
		adj, err := g.GetAdjustments(id)
		if err != nil {
			t.Fatalf("GetAdjustments(%s) error = %v", id, err)
		}
		if adj[adjust.FieldExposure] != wantExposure {
			t.Errorf("%s exposure = %v, want %v", id, adj[adjust.FieldExposure], wantExposure)
		}
	}

	if p := g.Progress(); p.Completed != 3 || p.Total != 3 {
		t.Errorf("Progress() = %+v, want 3/3", p)
	}

	calls := gw.callList()
	want := []string{"a.jpg", "b.jpg", "c.jpg"}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s (insertion order)", i, calls[i], want[i])
			break
		}
	}
}

func TestGroupStartsPaused(t *testing.T) {
	gw := &fakeGateway{}
	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if calls := gw.callList(); len(calls) != 0 {
		t.Errorf("gateway called %d times before Resume, want 0", len(calls))
	}

	snap, _ := g.Snapshot("a.jpg")
	if snap.Status != StatusPending {
		t.Errorf("status before Resume = %s, want pending", snap.Status)
	}

	// A paused group with pending work never satisfies the wait.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := g.WaitUntilCompleted(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitUntilCompleted on paused group = %v, want DeadlineExceeded", err)
	}
}

func TestPauseFinishesInFlightEntry(t *testing.T) {
	gw := &fakeGateway{
		started: make(chan string, 8),
		release: make(chan struct{}, 8),
	}
	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"), photo("b.jpg"), photo("c.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g.Resume(ctx)

	// First call is in flight; pause, then let it finish.
	<-gw.started
	g.Pause()
	g.Pause() // idempotent
	gw.release <- struct{}{}

	eventually(t, func() bool {
		snap, _ := g.Snapshot("a.jpg")
		return snap.Status == StatusCompleted
	}, "in-flight entry did not complete after Pause")

	time.Sleep(50 * time.Millisecond)
	for _, id := range []string{"b.jpg", "c.jpg"} {
		snap, _ := g.Snapshot(id)
		if snap.Status != StatusPending {
			t.Errorf("%s status after Pause = %s, want pending", id, snap.Status)
		}
	}
	if calls := gw.callList(); len(calls) != 1 {
		t.Errorf("gateway calls after Pause = %d, want 1", len(calls))
	}

	// Resume picks the remaining entries up exactly once each.
	gw.release <- struct{}{}
	gw.release <- struct{}{}
	waitDone(t, g)

	if p := g.Progress(); p.Completed != 3 {
		t.Errorf("Progress().Completed = %d, want 3", p.Completed)
	}
	if calls := gw.callList(); len(calls) != 3 {
		t.Errorf("total gateway calls = %d, want 3", len(calls))
	}
}

func TestSingleSequentialWorker(t *testing.T) {
	gw := &fakeGateway{
		release: make(chan struct{}, 16),
	}
	for i := 0; i < 6; i++ {
		gw.release <- struct{}{}
	}

	var photos []Photo
	for i := 0; i < 6; i++ {
		photos = append(photos, photo(fmt.Sprintf("p%d.jpg", i)))
	}
	g, err := New(lightingConfig(gw, 0.5), photos...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	if got := gw.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent gateway calls = %d, want 1", got)
	}
}

func TestFailureIsolation(t *testing.T) {
	computeErr := errors.New("model rejected the image")
	gw := &fakeGateway{
		results: map[string]gateway.Result{
			"a.jpg": {Features: adjust.Vector{0.1}, Computed: adjust.Partial{adjust.FieldExposure: 0.1}},
			"c.jpg": {Features: adjust.Vector{0.3}, Computed: adjust.Partial{adjust.FieldExposure: 0.3}},
		},
		errs: map[string]error{"b.jpg": computeErr},
	}

	var failed []EntryTransition
	var mu sync.Mutex
	cfg := lightingConfig(gw, 0.5)
	cfg.OnEntry = func(tr EntryTransition) {
		if tr.Status == StatusFailed {
			mu.Lock()
			failed = append(failed, tr)
			mu.Unlock()
		}
	}

	g, err := New(cfg, photo("a.jpg"), photo("b.jpg"), photo("c.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	snap, _ := g.Snapshot("b.jpg")
	if snap.Status != StatusFailed {
		t.Errorf("b.jpg status = %s, want failed", snap.Status)
	}
	if !errors.Is(snap.Err, computeErr) {
		t.Errorf("b.jpg err = %v, want wrapped compute error", snap.Err)
	}

	// The failed entry never exposes adjustments, and the rest completed.
	adj, err := g.GetAdjustments("b.jpg")
	if err != nil || adj != nil {
		t.Errorf("GetAdjustments(failed) = (%v, %v), want (nil, nil)", adj, err)
	}
	for _, id := range []string{"a.jpg", "c.jpg"} {
		snap, _ := g.Snapshot(id)
		if snap.Status != StatusCompleted {
			t.Errorf("%s status = %s, want completed", id, snap.Status)
		}
	}
	if p := g.Progress(); p.Completed != 2 || p.Total != 3 {
		t.Errorf("Progress() = %+v, want 2/3", p)
	}

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 1
	}, "failed transition notification not delivered")
	mu.Lock()
	if failed[0].ID != "b.jpg" || !errors.Is(failed[0].Err, computeErr) {
		t.Errorf("failure notification = %+v, want b.jpg with compute error", failed[0])
	}
	mu.Unlock()
}

func TestGetAdjustmentsPendingEntry(t *testing.T) {
	g, err := New(lightingConfig(&fakeGateway{}, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	adj, err := g.GetAdjustments("a.jpg")
	if err != nil || adj != nil {
		t.Errorf("GetAdjustments(pending) = (%v, %v), want (nil, nil)", adj, err)
	}
}

func TestUnknownEntryErrors(t *testing.T) {
	g, err := New(lightingConfig(&fakeGateway{}, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := g.GetAdjustments("ghost.jpg"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("GetAdjustments(unknown) = %v, want ErrEntryNotFound", err)
	}
	if _, err := g.Snapshot("ghost.jpg"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Snapshot(unknown) = %v, want ErrEntryNotFound", err)
	}
	if err := g.MarkAsReference("ghost.jpg"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("MarkAsReference(unknown) = %v, want ErrEntryNotFound", err)
	}
	if err := g.SetAdjustments("ghost.jpg", adjust.Partial{}); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("SetAdjustments(unknown) = %v, want ErrEntryNotFound", err)
	}
}

func TestDuplicateEntryRejected(t *testing.T) {
	g, err := New(lightingConfig(&fakeGateway{}, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := g.Add("a.jpg", gateway.FileSource{Path: "a.jpg"}); !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("Add(duplicate) = %v, want ErrDuplicateEntry", err)
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestMarkAsReferenceRequiresCompleted(t *testing.T) {
	g, err := New(lightingConfig(&fakeGateway{}, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := g.MarkAsReference("a.jpg"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("MarkAsReference(pending) = %v, want ErrInvalidStateTransition", err)
	}
}

func TestReferencePropagation(t *testing.T) {
	gw := &fakeGateway{results: map[string]gateway.Result{
		"a.jpg": {Features: adjust.Vector{0.0}, Computed: adjust.Partial{adjust.FieldExposure: 0.1}},
		"b.jpg": {Features: adjust.Vector{0.1}, Computed: adjust.Partial{adjust.FieldExposure: 0.2}},
		"c.jpg": {Features: adjust.Vector{9.0}, Computed: adjust.Partial{adjust.FieldExposure: 0.3}},
	}}

	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"), photo("b.jpg"), photo("c.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	// Give the reference a manual, non-computed edit to propagate.
	if err := g.SetAdjustments("a.jpg", adjust.Partial{adjust.FieldSaturation: 0.8}); err != nil {
		t.Fatalf("SetAdjustments() error = %v", err)
	}
	if err := g.MarkAsReference("a.jpg"); err != nil {
		t.Fatalf("MarkAsReference() error = %v", err)
	}
	waitDone(t, g)

	refSnap, _ := g.Snapshot("a.jpg")
	if !refSnap.IsReference {
		t.Error("a.jpg IsReference = false, want true")
	}

	// The cluster-mate inherits the reference's non-computed field but keeps
	// its own computed exposure.
	bAdj, err := g.GetAdjustments("b.jpg")
	if err != nil {
		t.Fatalf("GetAdjustments(b.jpg) error = %v", err)
	}
	if bAdj[adjust.FieldSaturation] != 0.8 {
		t.Errorf("b.jpg saturation = %v, want 0.8 from reference", bAdj[adjust.FieldSaturation])
	}
	if bAdj[adjust.FieldExposure] != 0.2 {
		t.Errorf("b.jpg exposure = %v, want own computed 0.2", bAdj[adjust.FieldExposure])
	}

	// A different cluster is untouched.
	cAdj, _ := g.GetAdjustments("c.jpg")
	if _, ok := cAdj[adjust.FieldSaturation]; ok {
		t.Errorf("c.jpg saturation = %v, want absent (other cluster)", cAdj[adjust.FieldSaturation])
	}

	// The reference itself was reprocessed by nobody: 3 first-pass calls plus
	// one re-compute for the invalidated mate.
	if calls := gw.callList(); len(calls) != 4 || calls[3] != "b.jpg" {
		t.Errorf("gateway calls = %v, want 4 with b.jpg re-computed last", calls)
	}
}

func TestManualOverridesWinOverComputed(t *testing.T) {
	gw := &fakeGateway{results: map[string]gateway.Result{
		"a.jpg": {Features: adjust.Vector{0.1}, Computed: adjust.Partial{adjust.FieldExposure: 0.1, adjust.FieldContrast: 0.2}},
	}}
	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	if err := g.SetAdjustments("a.jpg", adjust.Partial{adjust.FieldExposure: 0.9}); err != nil {
		t.Fatalf("SetAdjustments() error = %v", err)
	}
	adj, _ := g.GetAdjustments("a.jpg")
	if adj[adjust.FieldExposure] != 0.9 {
		t.Errorf("exposure = %v, want manual 0.9 over computed", adj[adjust.FieldExposure])
	}
	if adj[adjust.FieldContrast] != 0.2 {
		t.Errorf("contrast = %v, want untouched computed 0.2", adj[adjust.FieldContrast])
	}

	// Later overrides replace earlier ones field-wise.
	g.SetAdjustments("a.jpg", adjust.Partial{adjust.FieldExposure: -0.1})
	adj, _ = g.GetAdjustments("a.jpg")
	if adj[adjust.FieldExposure] != -0.1 {
		t.Errorf("exposure after second override = %v, want -0.1", adj[adjust.FieldExposure])
	}
}

func TestAddAfterResumeIsProcessed(t *testing.T) {
	gw := &fakeGateway{results: map[string]gateway.Result{
		"late.jpg": {Features: adjust.Vector{1}, Computed: adjust.Partial{adjust.FieldExposure: 0.5}},
	}}
	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	if err := g.Add("late.jpg", gateway.FileSource{Path: "late.jpg"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.WaitUntilCompleted(ctx); err != nil {
		t.Fatalf("WaitUntilCompleted() error = %v", err)
	}
	snap, _ := g.Snapshot("late.jpg")
	if snap.Status != StatusCompleted {
		t.Errorf("late.jpg status = %s, want completed without a new Resume", snap.Status)
	}
}

func TestQueueNotifications(t *testing.T) {
	gw := &fakeGateway{}
	var mu sync.Mutex
	var progress []QueueProgress

	cfg := lightingConfig(gw, 0.5)
	cfg.OnQueue = func(p QueueProgress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	}
	// An observer panic must not take down the scheduler.
	cfg.OnEntry = func(tr EntryTransition) {
		if tr.ID == "b.jpg" {
			panic("observer bug")
		}
	}

	g, err := New(cfg, photo("a.jpg"), photo("b.jpg"), photo("c.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	// Two transitions per entry: processing and completed.
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(progress) == 6
	}, "queue notifications not fully delivered")

	mu.Lock()
	defer mu.Unlock()
	prev := -1
	for i, p := range progress {
		if p.Total != 3 {
			t.Errorf("progress[%d].Total = %d, want 3", i, p.Total)
		}
		if p.Completed < prev {
			t.Errorf("progress[%d].Completed = %d, decreased from %d", i, p.Completed, prev)
		}
		prev = p.Completed
	}
	if last := progress[len(progress)-1]; last.Completed != 3 {
		t.Errorf("final progress = %+v, want Completed=3", last)
	}
}

func TestSaveStyleRequiresCompletion(t *testing.T) {
	g, err := New(lightingConfig(&fakeGateway{}, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := g.SaveStyle(); !errors.Is(err, ErrPrecondition) {
		t.Errorf("SaveStyle() with pending entries = %v, want ErrPrecondition", err)
	}
}

func TestSaveStyleExcludesFailedEntries(t *testing.T) {
	gw := &fakeGateway{
		results: map[string]gateway.Result{
			"a.jpg": {Features: adjust.Vector{0.1}, Computed: adjust.Partial{adjust.FieldExposure: 0.1}},
		},
		errs: map[string]error{"broken.jpg": errors.New("boom")},
	}
	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"), photo("broken.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	st, err := g.SaveStyle()
	if err != nil {
		t.Fatalf("SaveStyle() error = %v", err)
	}
	if len(st.Rules) != 1 {
		t.Errorf("rule count = %d, want 1 (failed entry excluded)", len(st.Rules))
	}
}

func TestStyleRoundTripAcrossGroups(t *testing.T) {
	// First group: one cluster with a reference carrying a manual edit.
	gw1 := &fakeGateway{results: map[string]gateway.Result{
		"a.jpg": {Features: adjust.Vector{0.0}, Computed: adjust.Partial{adjust.FieldExposure: 0.1}},
		"b.jpg": {Features: adjust.Vector{0.1}, Computed: adjust.Partial{adjust.FieldExposure: 0.2}},
	}}
	g1, err := New(lightingConfig(gw1, 0.5), photo("a.jpg"), photo("b.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g1)

	if err := g1.SetAdjustments("a.jpg", adjust.Partial{adjust.FieldSaturation: 0.5}); err != nil {
		t.Fatalf("SetAdjustments() error = %v", err)
	}
	if err := g1.MarkAsReference("a.jpg"); err != nil {
		t.Fatalf("MarkAsReference() error = %v", err)
	}
	waitDone(t, g1)

	st, err := g1.SaveStyle()
	if err != nil {
		t.Fatalf("SaveStyle() error = %v", err)
	}
	if len(st.Rules) != 1 {
		t.Fatalf("rule count = %d, want 1", len(st.Rules))
	}
	if st.Rules[0].Weight != 2 {
		t.Errorf("rule weight = %d, want 2", st.Rules[0].Weight)
	}
	// Computed-kind fields never travel through a style.
	if _, ok := st.Rules[0].Delta[adjust.FieldExposure]; ok {
		t.Error("style delta carries a computed-kind field")
	}
	if st.Rules[0].Delta[adjust.FieldSaturation] != 0.5 {
		t.Errorf("style delta saturation = %v, want 0.5", st.Rules[0].Delta[adjust.FieldSaturation])
	}

	// Through the codec, into a fresh group.
	blob, err := style.Encode(st)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	loaded, err := style.Decode(blob)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	gw2 := &fakeGateway{results: map[string]gateway.Result{
		"z.jpg": {Features: adjust.Vector{0.05}, Computed: adjust.Partial{adjust.FieldExposure: 0.7}},
	}}
	g2, err := New(lightingConfig(gw2, 0.5), photo("z.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := g2.LoadStyle(loaded); err != nil {
		t.Fatalf("LoadStyle() error = %v", err)
	}
	waitDone(t, g2)

	adj, err := g2.GetAdjustments("z.jpg")
	if err != nil {
		t.Fatalf("GetAdjustments() error = %v", err)
	}
	if adj[adjust.FieldSaturation] != 0.5 {
		t.Errorf("z.jpg saturation = %v, want 0.5 from style", adj[adjust.FieldSaturation])
	}
	if adj[adjust.FieldExposure] != 0.7 {
		t.Errorf("z.jpg exposure = %v, want own computed 0.7", adj[adjust.FieldExposure])
	}
}

func TestLoadStyleRejectsWrongVersion(t *testing.T) {
	g, err := New(lightingConfig(&fakeGateway{}, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	bad := style.New("bad", nil)
	bad.Version = 99
	if err := g.LoadStyle(bad); !errors.Is(err, style.ErrVersionMismatch) {
		t.Errorf("LoadStyle(wrong version) = %v, want ErrVersionMismatch", err)
	}
}

func TestUnmarkAsReference(t *testing.T) {
	gw := &fakeGateway{results: map[string]gateway.Result{
		"a.jpg": {Features: adjust.Vector{0.0}, Computed: adjust.Partial{adjust.FieldExposure: 0.1}},
	}}
	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	if err := g.MarkAsReference("a.jpg"); err != nil {
		t.Fatalf("MarkAsReference() error = %v", err)
	}
	if err := g.UnmarkAsReference("a.jpg"); err != nil {
		t.Fatalf("UnmarkAsReference() error = %v", err)
	}
	snap, _ := g.Snapshot("a.jpg")
	if snap.IsReference {
		t.Error("IsReference = true after UnmarkAsReference")
	}
}

func TestClustersAccessor(t *testing.T) {
	gw := &fakeGateway{results: map[string]gateway.Result{
		"a.jpg": {Features: adjust.Vector{0.0}},
		"b.jpg": {Features: adjust.Vector{0.1}},
		"c.jpg": {Features: adjust.Vector{7.0}},
	}}
	g, err := New(lightingConfig(gw, 0.5), photo("a.jpg"), photo("b.jpg"), photo("c.jpg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	waitDone(t, g)

	clusters := g.Clusters()
	if len(clusters) != 2 {
		t.Fatalf("Clusters() = %v, want 2 clusters", clusters)
	}
	if len(clusters[0]) != 2 || clusters[0][0] != "a.jpg" {
		t.Errorf("first cluster = %v, want [a.jpg b.jpg]", clusters[0])
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Kinds: []adjust.Kind{adjust.KindLighting}}); err == nil {
		t.Error("New() without gateway should fail")
	}
	if _, err := New(Config{Gateway: &fakeGateway{}}); err == nil {
		t.Error("New() without kinds should fail")
	}
	cfg := lightingConfig(&fakeGateway{}, -1)
	if _, err := New(cfg); err == nil {
		t.Error("New() with negative threshold should fail")
	}
}
