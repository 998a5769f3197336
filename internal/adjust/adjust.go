// Package adjust defines the adjustment record model shared by the batch
// coordinator: typed adjustment fields, the auto-compute kinds they belong to,
// and sparse partial records with a defined field-wise merge.
//
// The coordinator treats every field value as an opaque float — the numeric
// meaning (stops, degrees, percentages) belongs to the renderer, not here.
package adjust

import (
	"fmt"
	"sort"
	"strings"
)

// Field identifies a single adjustment parameter.
type Field string

// Adjustment fields, grouped by the kind that computes them.
const (
	// Lighting fields.
	FieldExposure   Field = "exposure"
	FieldContrast   Field = "contrast"
	FieldHighlights Field = "highlights"
	FieldShadows    Field = "shadows"

	// Color fields.
	FieldTemperature Field = "temperature"
	FieldTint        Field = "tint"
	FieldSaturation  Field = "saturation"
	FieldVibrance    Field = "vibrance"

	// Geometry.
	FieldStraightenAngle Field = "straightenAngle"

	// Detail.
	FieldDenoiseStrength Field = "denoiseStrength"
	FieldSharpness       Field = "sharpness"
)

// Kind is a category of adjustment fields computed together per photo.
// Fields of a kind the group auto-computes are intrinsically photo-specific
// and are never copied from a reference photo or a style.
type Kind int

const (
	KindLighting Kind = iota
	KindColor
	KindStraighten
	KindDenoise
)

var kindNames = map[Kind]string{
	KindLighting:   "lighting",
	KindColor:      "color",
	KindStraighten: "straighten",
	KindDenoise:    "denoise",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a kind name ("lighting", "color", ...) to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown adjustment kind %q", s)
}

// ParseKinds converts a list of kind names, rejecting the first unknown one.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// fieldKinds maps every field to the kind that computes it.
var fieldKinds = map[Field]Kind{
	FieldExposure:        KindLighting,
	FieldContrast:        KindLighting,
	FieldHighlights:      KindLighting,
	FieldShadows:         KindLighting,
	FieldTemperature:     KindColor,
	FieldTint:            KindColor,
	FieldSaturation:      KindColor,
	FieldVibrance:        KindColor,
	FieldStraightenAngle: KindStraighten,
	FieldDenoiseStrength: KindDenoise,
	FieldSharpness:       KindDenoise,
}

// KindOf returns the kind a field belongs to. The second return is false for
// fields this build does not know about (e.g. from a newer style blob).
func KindOf(f Field) (Kind, bool) {
	k, ok := fieldKinds[f]
	return k, ok
}

// FieldsOf returns the fields of a kind in deterministic (sorted) order.
func FieldsOf(k Kind) []Field {
	var fields []Field
	for f, fk := range fieldKinds {
		if fk == k {
			fields = append(fields, f)
		}
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Partial is a sparse adjustment record: only the fields present carry a value.
// The zero value is usable; a nil Partial reads as empty.
type Partial map[Field]float64

// Merge copies every field of other into p, overwriting fields already present.
// Later merges win; this is the single merge semantics used for manual
// overrides and all resolution layers.
func (p Partial) Merge(other Partial) {
	for f, v := range other {
		p[f] = v
	}
}

// Clone returns an independent copy. A nil receiver clones to an empty record.
func (p Partial) Clone() Partial {
	out := make(Partial, len(p))
	for f, v := range p {
		out[f] = v
	}
	return out
}

// Fields returns the present fields in sorted order for deterministic iteration.
func (p Partial) Fields() []Field {
	fields := make([]Field, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// MedianFields computes the field-wise median over a set of partial records.
// A field contributes only from records that define it. An even number of
// values averages the middle pair, keeping the result deterministic.
func MedianFields(records []Partial) Partial {
	values := make(map[Field][]float64)
	for _, r := range records {
		for f, v := range r {
			values[f] = append(values[f], v)
		}
	}

	out := make(Partial, len(values))
	for f, vs := range values {
		sort.Float64s(vs)
		n := len(vs)
		if n%2 == 1 {
			out[f] = vs[n/2]
		} else {
			out[f] = (vs[n/2-1] + vs[n/2]) / 2
		}
	}
	return out
}
