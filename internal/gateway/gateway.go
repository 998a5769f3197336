// Package gateway declares the external contracts the batch coordinator
// depends on — per-photo auto-compute and final render — plus the analyzer
// implementations shipped with the SDK.
//
// The coordinator treats auto-compute as an opaque async operation: one call
// per entry per processing step, no automatic retry, failure terminal for that
// entry. Rendering is invoked by the caller after GetAdjustments, never by the
// coordinator.
package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
	"github.com/fpang/photo-edit-sdk/internal/s3util"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source is an opaque handle to a photo's image data. The coordinator never
// copies or inspects it; analyzers switch on the concrete variant. Exactly one
// payload shape exists per variant.
type Source interface {
	isSource()
}

// FileSource points at an image on the local filesystem.
type FileSource struct {
	Path string
}

// BlobSource carries image bytes already in memory.
type BlobSource struct {
	Data []byte
	MIME string
}

// ObjectSource points at an image object in S3.
type ObjectSource struct {
	Bucket string
	Key    string
}

func (FileSource) isSource()   {}
func (BlobSource) isSource()   {}
func (ObjectSource) isSource() {}

// Result is the outcome of one auto-compute call.
type Result struct {
	// Features is the photo's feature vector used for similarity clustering.
	Features adjust.Vector

	// Computed holds the adjustment fields for the requested kinds.
	Computed adjust.Partial
}

// AutoCompute is the per-photo auto-adjustment computation contract.
// Implementations must be safe for use from one group goroutine at a time;
// independent groups may each hold their own instance.
type AutoCompute interface {
	// ComputeFeatures analyzes the photo and returns its feature vector plus
	// the computed adjustment fields for the requested kinds.
	ComputeFeatures(ctx context.Context, src Source, kinds []adjust.Kind) (*Result, error)
}

// Renderer consumes a resolved adjustment record and a photo's source data to
// produce output bytes. The caller invokes it after GetAdjustments; the
// coordinator itself never renders.
type Renderer interface {
	Render(ctx context.Context, src Source, adjustments adjust.Partial) ([]byte, error)
}

// readSource materializes a source's bytes and a best-effort MIME type.
// The S3 client may be nil when ObjectSource is not in play.
func readSource(ctx context.Context, s3Client *s3.Client, src Source) ([]byte, string, error) {
	switch s := src.(type) {
	case FileSource:
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return nil, "", fmt.Errorf("read source file: %w", err)
		}
		return data, mimeByExt(s.Path), nil
	case BlobSource:
		return s.Data, s.MIME, nil
	case ObjectSource:
		if s3Client == nil {
			return nil, "", fmt.Errorf("S3 source %s/%s but no S3 client configured", s.Bucket, s.Key)
		}
		data, err := s3util.DownloadObject(ctx, s3Client, s.Bucket, s.Key)
		if err != nil {
			return nil, "", err
		}
		return data, mimeByExt(s.Key), nil
	default:
		return nil, "", fmt.Errorf("unsupported source type %T", src)
	}
}

// mimeByExt guesses an image MIME type from a path extension.
func mimeByExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic", ".heif":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
