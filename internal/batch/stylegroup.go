package batch

// stylegroup.go distills a processed group into a portable style and attaches
// styles for use in resolution.

import (
	"fmt"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
	"github.com/fpang/photo-edit-sdk/internal/style"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SaveStyle distills the group's clusters into an immutable style. Every
// non-Failed entry must be Completed; Failed entries are excluded from the
// computation entirely. Per cluster: the centroid is the mean member feature
// vector; the delta is the reference's resolved non-computed fields when the
// cluster has one, else the field-wise median over all members; the weight is
// the member count. Rules are ordered by each cluster's smallest member id, so
// the same group state always yields the same style.
func (g *Group) SaveStyle() (*style.Style, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		e := g.entries[id]
		if e.status != StatusCompleted && e.status != StatusFailed {
			return nil, fmt.Errorf("%w: entry %q is %s, not completed", ErrPrecondition, id, e.status)
		}
	}

	var rules []style.Rule
	for _, members := range g.partitionLocked().Clusters() {
		var vectors []adjust.Vector
		var records []adjust.Partial
		var ref *entry
		for _, id := range members {
			e := g.entries[id]
			vectors = append(vectors, e.features)
			records = append(records, g.stripComputedLocked(e.resolved))
			if e.isReference && ref == nil {
				ref = e
			}
		}

		var delta adjust.Partial
		if ref != nil {
			delta = g.stripComputedLocked(ref.resolved)
		} else {
			delta = adjust.MedianFields(records)
		}

		rules = append(rules, style.Rule{
			Centroid: adjust.Centroid(vectors),
			Delta:    delta,
			Weight:   len(members),
		})
	}

	s := style.New(uuid.NewString(), rules)
	log.Info().Str("style", s.ID).Int("rules", len(rules)).Msg("Style saved from group")
	return s, nil
}

// LoadStyle attaches a style to the group after checking its schema version.
// Loading changes no entry's status; the style takes effect the next time an
// entry's adjustments are (re)resolved. The group keeps its own deep copy.
func (g *Group) LoadStyle(s *style.Style) error {
	if err := s.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.style = s.Clone()
	log.Info().Str("style", s.ID).Int("rules", len(s.Rules)).Msg("Style loaded into group")
	return nil
}

// ReresolveCompleted re-runs resolution over every Completed entry in place,
// in insertion order — the explicit way to apply a freshly loaded style to an
// already-processed group without re-running auto-compute.
func (g *Group) ReresolveCompleted() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		e := g.entries[id]
		if e.status == StatusCompleted {
			e.resolved = g.resolveLocked(e)
		}
	}
}

// stripComputedLocked removes the group's computed-kind fields: they are
// photo-specific and never travel through a style.
func (g *Group) stripComputedLocked(p adjust.Partial) adjust.Partial {
	out := adjust.Partial{}
	for _, f := range p.Fields() {
		if !g.computedFields[f] {
			out[f] = p[f]
		}
	}
	return out
}
