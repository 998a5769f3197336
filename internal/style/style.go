// Package style implements portable adjustment styles: a distilled, versioned
// set of feature-centroid → adjustment-delta rules saved from one processed
// group and applicable to any other group.
//
// A Style is immutable once created and belongs to no single group; the same
// value may be loaded into arbitrarily many groups concurrently.
package style

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
)

// SchemaVersion is the current style blob schema. Decode rejects blobs written
// by a newer (or otherwise unknown) schema before any rule is used.
const SchemaVersion = 1

// ErrVersionMismatch is returned when a style blob's schema version is not
// supported by this build.
var ErrVersionMismatch = errors.New("unsupported style schema version")

// Rule maps one region of feature space to an adjustment delta.
type Rule struct {
	// Centroid is the mean feature vector of the cluster the rule was
	// distilled from.
	Centroid adjust.Vector `json:"centroid"`

	// Delta carries the non-computed-kind adjustment fields to apply.
	Delta adjust.Partial `json:"delta"`

	// Weight is the member count of the source cluster.
	Weight int `json:"weight"`
}

// Style is an ordered rule list with identifying metadata.
type Style struct {
	Version   int       `json:"schemaVersion"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Rules     []Rule    `json:"rules"`
}

// New builds a style at the current schema version.
func New(id string, rules []Rule) *Style {
	return &Style{
		Version:   SchemaVersion,
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Rules:     rules,
	}
}

// Validate checks the schema version, wrapping ErrVersionMismatch on failure.
func (s *Style) Validate() error {
	if s.Version != SchemaVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, s.Version, SchemaVersion)
	}
	return nil
}

// Clone returns a deep copy, so a caller-held Style can never alias group state.
func (s *Style) Clone() *Style {
	out := &Style{
		Version:   s.Version,
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Rules:     make([]Rule, len(s.Rules)),
	}
	for i, r := range s.Rules {
		out.Rules[i] = Rule{
			Centroid: r.Centroid.Clone(),
			Delta:    r.Delta.Clone(),
			Weight:   r.Weight,
		}
	}
	return out
}

// Nearest selects the rule whose centroid is closest to the given features
// under Euclidean distance, with ties broken by rule order. When the entry has
// no feature vector the heaviest rule wins — the style's dominant look — since
// no distance can be measured. Returns nil for an empty style.
func (s *Style) Nearest(features adjust.Vector) *Rule {
	if len(s.Rules) == 0 {
		return nil
	}

	if len(features) == 0 {
		best := 0
		for i := 1; i < len(s.Rules); i++ {
			if s.Rules[i].Weight > s.Rules[best].Weight {
				best = i
			}
		}
		return &s.Rules[best]
	}

	best := 0
	bestDist := math.Inf(1)
	for i := range s.Rules {
		d := adjust.Euclidean(s.Rules[i].Centroid, features)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return &s.Rules[best]
}
