package gateway

// gemini.go implements auto-compute on top of the Gemini API. The model sees
// the photo inline and replies with a JSON payload holding the feature vector
// and the adjustment fields for the requested kinds.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
	"github.com/fpang/photo-edit-sdk/internal/jsonutil"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultGeminiModel balances analysis quality against per-photo latency.
const DefaultGeminiModel = "gemini-3-flash-preview"

// geminiSystemInstruction pins the response contract. The feature vector must
// be stable for near-identical photos so clustering stays meaningful.
const geminiSystemInstruction = `You are a photo analysis engine inside an editing SDK.
For each photo you receive, respond with ONLY a JSON object, no prose:
{
  "features": [8 floats in 0..1 describing overall brightness, contrast, warmth,
               saturation, scene complexity, sky fraction, subject fraction, noise],
  "adjustments": { "<field>": <float>, ... }
}
Near-identical photos (same scene, same lighting) must produce near-identical
feature vectors. Only include the adjustment fields you were asked for.`

// NewGeminiClient creates a Gemini API client for the given key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiAnalyzer computes features and adjustments with one Gemini call per
// photo. The S3 client is optional and only needed for ObjectSource entries.
type GeminiAnalyzer struct {
	Client *genai.Client
	Model  string
	S3     *s3.Client
}

var _ AutoCompute = (*GeminiAnalyzer)(nil)

// geminiAnalysis is the expected response payload.
type geminiAnalysis struct {
	Features    []float64          `json:"features"`
	Adjustments map[string]float64 `json:"adjustments"`
}

// ComputeFeatures implements AutoCompute.
func (a *GeminiAnalyzer) ComputeFeatures(ctx context.Context, src Source, kinds []adjust.Kind) (*Result, error) {
	data, mime, err := readSource(ctx, a.S3, src)
	if err != nil {
		return nil, err
	}

	model := a.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	prompt := buildAnalysisPrompt(kinds)
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
			{Text: prompt},
		},
	}}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: geminiSystemInstruction}},
		},
	}

	start := time.Now()
	resp, err := a.Client.Models.GenerateContent(ctx, model, contents, config)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("Gemini analysis: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("Gemini analysis: empty response")
	}

	analysis, err := jsonutil.Parse[geminiAnalysis](text)
	if err != nil {
		log.Warn().Err(err).Str("raw", truncate(text, 300)).Msg("Unparseable Gemini analysis")
		return nil, fmt.Errorf("Gemini analysis parse: %w", err)
	}

	result := &Result{
		Features: adjust.Vector(analysis.Features),
		Computed: adjust.Partial{},
	}
	requested := make(map[adjust.Kind]bool, len(kinds))
	for _, k := range kinds {
		requested[k] = true
	}
	for name, value := range analysis.Adjustments {
		field := adjust.Field(name)
		if kind, ok := adjust.KindOf(field); ok && requested[kind] {
			result.Computed[field] = value
		}
	}

	log.Debug().
		Str("model", model).
		Dur("elapsed", elapsed).
		Int("feature_dim", len(result.Features)).
		Int("computed_fields", len(result.Computed)).
		Msg("Gemini analysis complete")
	return result, nil
}

// buildAnalysisPrompt lists the exact fields the model may return.
func buildAnalysisPrompt(kinds []adjust.Kind) string {
	var b strings.Builder
	b.WriteString("Analyze this photo and compute auto-adjustments.\n")
	b.WriteString("Requested adjustment fields:\n")
	for _, kind := range kinds {
		for _, field := range adjust.FieldsOf(kind) {
			fmt.Fprintf(&b, "- %s (%s)\n", field, kind)
		}
	}
	b.WriteString("Respond with the JSON object only.")
	return b.String()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
