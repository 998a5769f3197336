package gateway

// local.go implements a pure-Go auto-compute analyzer. It derives the feature
// vector from a downsampled luminance/chroma histogram and the computed
// adjustment fields from simple tone statistics plus EXIF hints. It exists so
// the CLI and tests can run a full batch without any network dependency; the
// Gemini analyzer produces richer adjustments from the same contract.

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/fpang/photo-edit-sdk/internal/adjust"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// analysisMaxDimension caps the downsampled image used for statistics.
// 128px keeps analysis under a millisecond per photo while the tone statistics
// stay stable against the full-resolution values.
const analysisMaxDimension = 128

// localFeatureDim is the feature vector layout produced by this analyzer:
// mean R, mean G, mean B, mean luminance, luminance spread, mid-tone contrast.
const localFeatureDim = 6

// LocalAnalyzer computes features and adjustments from pixel statistics
// without calling any external model. The S3 client is optional and only
// needed for ObjectSource entries.
type LocalAnalyzer struct {
	S3 *s3.Client
}

var _ AutoCompute = (*LocalAnalyzer)(nil)

// ComputeFeatures implements AutoCompute.
func (a *LocalAnalyzer) ComputeFeatures(ctx context.Context, src Source, kinds []adjust.Kind) (*Result, error) {
	data, mime, err := readSource(ctx, a.S3, src)
	if err != nil {
		return nil, err
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", mime, err)
	}

	stats := analyze(downsample(img))
	meta := readEXIF(data)

	result := &Result{
		Features: stats.featureVector(),
		Computed: adjust.Partial{},
	}
	for _, kind := range kinds {
		switch kind {
		case adjust.KindLighting:
			result.Computed.Merge(stats.lighting())
		case adjust.KindColor:
			result.Computed.Merge(stats.color())
		case adjust.KindStraighten:
			// No horizon detection in the local analyzer; a neutral angle still
			// counts as this photo's own computed value.
			result.Computed[adjust.FieldStraightenAngle] = 0
		case adjust.KindDenoise:
			result.Computed.Merge(meta.denoise())
		}
	}

	log.Debug().
		Int("feature_dim", len(result.Features)).
		Int("computed_fields", len(result.Computed)).
		Msg("Local analysis complete")
	return result, nil
}

// decodeImage tries JPEG first, then PNG.
func decodeImage(data []byte) (image.Image, error) {
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := png.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("not a decodable JPEG or PNG")
}

// downsample scales the image so its longest side is analysisMaxDimension.
func downsample(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= analysisMaxDimension && h <= analysisMaxDimension {
		return img
	}

	scale := float64(analysisMaxDimension) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))

	resized := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

// toneStats carries the per-image statistics the heuristics run on.
// All channel values are normalized to [0, 1].
type toneStats struct {
	meanR, meanG, meanB float64
	meanLum             float64
	stdLum              float64
	darkFrac            float64 // pixels with luminance < 0.2
	brightFrac          float64 // pixels with luminance > 0.8
	meanChroma          float64 // mean max-min channel spread
}

// analyze performs one pass over the pixels.
func analyze(img image.Image) toneStats {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return toneStats{}
	}

	var s toneStats
	var sumLum, sumLumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r := float64(r16) / 65535
			g := float64(g16) / 65535
			b := float64(b16) / 65535

			s.meanR += r
			s.meanG += g
			s.meanB += b

			lum := 0.2126*r + 0.7152*g + 0.0722*b
			sumLum += lum
			sumLumSq += lum * lum
			if lum < 0.2 {
				s.darkFrac++
			}
			if lum > 0.8 {
				s.brightFrac++
			}

			s.meanChroma += max(r, max(g, b)) - min(r, min(g, b))
		}
	}

	s.meanR /= n
	s.meanG /= n
	s.meanB /= n
	s.meanLum = sumLum / n
	s.stdLum = math.Sqrt(math.Max(0, sumLumSq/n-s.meanLum*s.meanLum))
	s.darkFrac /= n
	s.brightFrac /= n
	s.meanChroma /= n
	return s
}

func (s toneStats) featureVector() adjust.Vector {
	return adjust.Vector{s.meanR, s.meanG, s.meanB, s.meanLum, s.stdLum, s.meanChroma}
}

// lighting derives exposure/contrast/highlight/shadow corrections that pull
// the tone distribution toward a mid-gray target.
func (s toneStats) lighting() adjust.Partial {
	return adjust.Partial{
		adjust.FieldExposure:   clamp((0.45-s.meanLum)*2, -1, 1),
		adjust.FieldContrast:   clamp((0.22-s.stdLum)*1.5, -0.5, 0.5),
		adjust.FieldHighlights: clamp(-s.brightFrac*1.2, -1, 0),
		adjust.FieldShadows:    clamp(s.darkFrac*1.2, 0, 1),
	}
}

// color derives white-balance and saturation corrections from channel balance.
func (s toneStats) color() adjust.Partial {
	return adjust.Partial{
		adjust.FieldTemperature: clamp((s.meanB-s.meanR)*1.5, -1, 1),
		adjust.FieldTint:        clamp((s.meanR+s.meanB)/2-s.meanG, -1, 1),
		adjust.FieldSaturation:  clamp((0.25-s.meanChroma)*1.2, -0.5, 0.5),
		adjust.FieldVibrance:    clamp((0.3-s.meanChroma)*0.8, -0.3, 0.3),
	}
}

// exifHints carries the EXIF-derived inputs for detail heuristics.
type exifHints struct {
	iso uint32
}

// readEXIF extracts best-effort hints; a photo without EXIF yields zero hints.
func readEXIF(data []byte) exifHints {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata available")
		return exifHints{}
	}
	return exifHints{iso: exifData.ISOSpeed}
}

// denoise scales noise reduction with ISO: each doubling above ISO 100 adds
// roughly a sixth of full strength, saturating at ISO 6400.
func (h exifHints) denoise() adjust.Partial {
	strength := 0.0
	if h.iso > 100 {
		strength = clamp(math.Log2(float64(h.iso)/100)/6, 0, 1)
	}
	return adjust.Partial{
		adjust.FieldDenoiseStrength: strength,
		adjust.FieldSharpness:       clamp(0.3-strength*0.2, 0, 0.3),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
