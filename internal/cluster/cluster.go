// Package cluster partitions photo entries by feature-vector similarity.
//
// The partition drives reference propagation and style distillation: photos in
// one cluster are close enough that a reference photo's edits transfer to its
// cluster-mates. Clusters are ephemeral — recomputed whenever the feature set
// or reference marks change, never persisted.
package cluster

import (
	"sort"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
)

// DistanceFunc measures dissimilarity between two feature vectors.
type DistanceFunc func(a, b adjust.Vector) float64

// Config controls clustering. Both the threshold and the metric are caller
// configuration; there is no universally correct default for either.
type Config struct {
	// Threshold is the maximum distance at which two entries merge into one
	// cluster (τ). Distances exactly equal to the threshold merge.
	Threshold float64

	// Metric is the distance function. Nil selects Euclidean distance.
	Metric DistanceFunc
}

func (c Config) metric() DistanceFunc {
	if c.Metric != nil {
		return c.Metric
	}
	return adjust.Euclidean
}

// Partition is a disjoint clustering of entry ids. It covers only the ids that
// had a populated feature vector at compute time.
type Partition struct {
	// members maps every covered id to its cluster's sorted member list.
	// All ids of one cluster share the same backing slice.
	members map[string][]string
}

// Compute partitions the given features with union-find: every id pair is
// visited in ascending lexicographic order and merged iff the distance is
// within the threshold. The result depends only on the ids and their vectors,
// not on map iteration or insertion order.
func Compute(features map[string]adjust.Vector, cfg Config) Partition {
	ids := make([]string, 0, len(features))
	for id, v := range features {
		if len(v) == 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parent := make(map[string]string, len(ids))
	for _, id := range ids {
		parent[id] = id
	}

	var find func(id string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}

	// Union roots with the lexicographically smaller id as the new root so the
	// structure is canonical regardless of merge order.
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	metric := cfg.metric()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if metric(features[ids[i]], features[ids[j]]) <= cfg.Threshold {
				union(ids[i], ids[j])
			}
		}
	}

	byRoot := make(map[string][]string)
	for _, id := range ids {
		root := find(id)
		byRoot[root] = append(byRoot[root], id)
	}

	members := make(map[string][]string, len(ids))
	for _, group := range byRoot {
		sort.Strings(group)
		for _, id := range group {
			members[id] = group
		}
	}
	return Partition{members: members}
}

// Contains reports whether the partition covers the id.
func (p Partition) Contains(id string) bool {
	_, ok := p.members[id]
	return ok
}

// ClusterOf returns the sorted member ids of the cluster containing id,
// including id itself. Returns nil for ids the partition does not cover.
func (p Partition) ClusterOf(id string) []string {
	return p.members[id]
}

// Clusters returns all clusters ordered by their smallest member id.
func (p Partition) Clusters() [][]string {
	seen := make(map[string]bool)
	var out [][]string
	for _, group := range p.members {
		if seen[group[0]] {
			continue
		}
		seen[group[0]] = true
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
