package jsonutil

import (
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"leading whitespace", "  ```json\n{}\n```  ", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "object with surrounding prose",
			in:   `Here is the analysis you asked for: {"features": [1, 2]} Hope that helps!`,
			want: `{"features": [1, 2]}`,
		},
		{
			name: "nested object",
			in:   `{"a": {"b": {"c": 1}}}`,
			want: `{"a": {"b": {"c": 1}}}`,
		},
		{
			name: "braces inside strings ignored",
			in:   `{"note": "curly } inside \" a string"}`,
			want: `{"note": "curly } inside \" a string"}`,
		},
		{
			name: "array",
			in:   `the vector: [0.1, 0.2, 0.3]`,
			want: `[0.1, 0.2, 0.3]`,
		},
		{
			name:    "no json",
			in:      "sorry, I cannot help with that",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			in:      `{"a": [1, 2`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Extract() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	type analysis struct {
		Features    []float64          `json:"features"`
		Adjustments map[string]float64 `json:"adjustments"`
	}

	text := "```json\n{\"features\": [0.5, 0.25], \"adjustments\": {\"exposure\": -0.3}}\n```"
	got, err := Parse[analysis](text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got.Features) != 2 || got.Features[0] != 0.5 {
		t.Errorf("Features = %v, want [0.5 0.25]", got.Features)
	}
	if got.Adjustments["exposure"] != -0.3 {
		t.Errorf("Adjustments[exposure] = %v, want -0.3", got.Adjustments["exposure"])
	}

	if _, err := Parse[analysis](`{"features": "not an array"}`); err == nil {
		t.Error("Parse() with mismatched shape should fail")
	}
}
