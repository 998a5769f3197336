package adjust

import "math"

// Vector is a photo feature vector produced by the auto-compute gateway.
// Dimensionality and the metric applied to it are caller configuration;
// the coordinator never assumes a fixed layout.
type Vector []float64

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Euclidean is the default distance metric. Vectors of different lengths are
// treated as infinitely far apart so they can never end up in one cluster.
func Euclidean(a, b Vector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Centroid returns the arithmetic mean of the given vectors. All vectors must
// share the length of the first; shorter or longer ones are skipped. Returns
// nil when no usable vector is present.
func Centroid(vs []Vector) Vector {
	var out Vector
	count := 0
	for _, v := range vs {
		if len(v) == 0 {
			continue
		}
		if out == nil {
			out = make(Vector, len(v))
		}
		if len(v) != len(out) {
			continue
		}
		for i := range v {
			out[i] += v[i]
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for i := range out {
		out[i] /= float64(count)
	}
	return out
}
