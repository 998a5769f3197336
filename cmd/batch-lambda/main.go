// Package main provides the Lambda entry point for batch auto-adjustment
// processing.
//
// One invocation processes one photo set: it computes auto-adjustments for
// every S3 object in the event, optionally applies a stored style or marks a
// reference photo, and returns the resolved adjustments per photo. Styles can
// be distilled from the processed set and persisted to DynamoDB for later
// invocations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
	"github.com/fpang/photo-edit-sdk/internal/batch"
	"github.com/fpang/photo-edit-sdk/internal/cluster"
	"github.com/fpang/photo-edit-sdk/internal/gateway"
	"github.com/fpang/photo-edit-sdk/internal/lambdaboot"
	"github.com/fpang/photo-edit-sdk/internal/logging"
	"github.com/fpang/photo-edit-sdk/internal/metrics"
	"github.com/fpang/photo-edit-sdk/internal/s3util"
	"github.com/fpang/photo-edit-sdk/internal/style"
	"github.com/fpang/photo-edit-sdk/internal/styledb"
	"google.golang.org/genai"
)

// defaultThreshold is used when the event does not set one. Feature vectors
// are normalized to [0,1] per component, so 0.5 groups broadly similar scenes.
const defaultThreshold = 0.5

// styleURLTTL bounds how long a returned style download link stays valid.
const styleURLTTL = 15 * time.Minute

// AWS clients and configuration initialized at cold start.
var (
	s3Client     *s3.Client
	s3Presigner  *s3.PresignClient
	photoBucket  string
	styleStore   *styledb.DynamoStore
	geminiClient *genai.Client
	geminiModel  string
)

var coldStart = true

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(aws.Config, "PHOTO_BUCKET_NAME")
	s3Client = s3s.Client
	s3Presigner = s3s.Presigner
	photoBucket = s3s.Bucket
	styleStore = lambdaboot.InitStyleStoreOptional(aws.Config, "STYLE_TABLE_NAME")
	lambdaboot.LoadGeminiKey(aws.SSM)

	var err error
	geminiClient, err = gateway.NewGeminiClient(context.Background(), os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	geminiModel = logging.EnvOrDefault("GEMINI_MODEL", gateway.DefaultGeminiModel)

	lambdaboot.StartupLog("batch-lambda", initStart).
		S3Bucket("photoBucket", photoBucket).
		DynamoTable("styles", os.Getenv("STYLE_TABLE_NAME")).
		SSMParam("geminiApiKey", logging.EnvOrDefault("SSM_API_KEY_PARAM", "/photo-edit-sdk/prod/gemini-api-key")).
		Config("model", geminiModel).
		Log()
}

// BatchEvent is the invocation payload.
type BatchEvent struct {
	// Bucket overrides the default photo bucket when set.
	Bucket string `json:"bucket,omitempty"`

	// Keys are the S3 object keys to process, in order. The key doubles as
	// the photo id in the response.
	Keys []string `json:"keys"`

	// Kinds are the auto-compute kind names. Defaults to lighting and color.
	Kinds []string `json:"kinds,omitempty"`

	// Threshold is the cluster similarity threshold.
	Threshold float64 `json:"threshold,omitempty"`

	// StyleID, when set, loads that style from DynamoDB before processing.
	StyleID string `json:"styleId,omitempty"`

	// Reference, when set, marks that key as cluster reference once the
	// first pass completes and waits for the re-processing pass.
	Reference string `json:"reference,omitempty"`

	// SaveStyle distills the finished batch into a style and persists it.
	SaveStyle bool `json:"saveStyle,omitempty"`
}

// PhotoResult is one photo's outcome in the response.
type PhotoResult struct {
	Key         string             `json:"key"`
	Status      string             `json:"status"`
	IsReference bool               `json:"isReference,omitempty"`
	Adjustments map[string]float64 `json:"adjustments,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// BatchResult is the invocation response.
type BatchResult struct {
	Photos       []PhotoResult `json:"photos"`
	Completed    int           `json:"completed"`
	Failed       int           `json:"failed"`
	Clusters     [][]string    `json:"clusters"`
	SavedStyleID string        `json:"savedStyleId,omitempty"`

	// SavedStyleURL is a presigned link to the style blob uploaded to S3,
	// so browser clients can fetch it without AWS credentials.
	SavedStyleURL string `json:"savedStyleUrl,omitempty"`
}

func handler(ctx context.Context, event BatchEvent) (*BatchResult, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "batch-lambda").Msg("Cold start — first invocation")
	}
	start := time.Now()

	if len(event.Keys) == 0 {
		return nil, fmt.Errorf("event must list at least one key")
	}

	bucket := event.Bucket
	if bucket == "" {
		bucket = photoBucket
	}
	kindNames := event.Kinds
	if len(kindNames) == 0 {
		kindNames = []string{"lighting", "color"}
	}
	kinds, err := adjust.ParseKinds(kindNames)
	if err != nil {
		return nil, fmt.Errorf("invalid kinds: %w", err)
	}
	threshold := event.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}

	log.Info().
		Str("bucket", bucket).
		Int("photos", len(event.Keys)).
		Strs("kinds", kindNames).
		Float64("threshold", threshold).
		Str("styleId", event.StyleID).
		Str("reference", event.Reference).
		Msg("Starting batch")

	photos := make([]batch.Photo, 0, len(event.Keys))
	for _, key := range event.Keys {
		photos = append(photos, batch.Photo{
			ID:     key,
			Source: gateway.ObjectSource{Bucket: bucket, Key: key},
		})
	}

	group, err := batch.New(batch.Config{
		Kinds:   kinds,
		Cluster: cluster.Config{Threshold: threshold},
		Gateway: &gateway.GeminiAnalyzer{Client: geminiClient, Model: geminiModel, S3: s3Client},
		OnEntry: func(t batch.EntryTransition) {
			if t.Status == batch.StatusFailed {
				log.Warn().Str("photo", t.ID).Err(t.Err).Msg("Photo failed to process")
			}
		},
	}, photos...)
	if err != nil {
		return nil, fmt.Errorf("build group: %w", err)
	}

	if event.StyleID != "" {
		if styleStore == nil {
			return nil, fmt.Errorf("styleId set but STYLE_TABLE_NAME is not configured")
		}
		st, err := styleStore.GetStyle(ctx, event.StyleID)
		if err != nil {
			return nil, fmt.Errorf("load style %s: %w", event.StyleID, err)
		}
		if st == nil {
			return nil, fmt.Errorf("style %s not found", event.StyleID)
		}
		if err := group.LoadStyle(st); err != nil {
			return nil, fmt.Errorf("apply style %s: %w", event.StyleID, err)
		}
	}

	group.Resume(ctx)
	if err := group.WaitUntilCompleted(ctx); err != nil {
		return nil, fmt.Errorf("batch did not complete: %w", err)
	}

	if event.Reference != "" {
		if err := group.MarkAsReference(event.Reference); err != nil {
			return nil, fmt.Errorf("mark reference %s: %w", event.Reference, err)
		}
		if err := group.WaitUntilCompleted(ctx); err != nil {
			return nil, fmt.Errorf("cluster re-processing did not complete: %w", err)
		}
	}

	result := buildResult(group)

	if event.SaveStyle {
		if styleStore == nil {
			return nil, fmt.Errorf("saveStyle set but STYLE_TABLE_NAME is not configured")
		}
		st, err := group.SaveStyle()
		if err != nil {
			return nil, fmt.Errorf("distill style: %w", err)
		}
		if err := styleStore.PutStyle(ctx, st); err != nil {
			return nil, fmt.Errorf("persist style: %w", err)
		}
		result.SavedStyleID = st.ID

		// Mirror the portable blob to S3 and hand back a presigned link.
		blob, err := style.EncodeCompressed(st)
		if err != nil {
			return nil, fmt.Errorf("encode style blob: %w", err)
		}
		styleKey := "styles/" + st.ID + ".style"
		if err := s3util.UploadObject(ctx, s3Client, photoBucket, styleKey, blob, "application/zstd"); err != nil {
			return nil, fmt.Errorf("upload style blob: %w", err)
		}
		url, err := s3util.PresignGet(ctx, s3Presigner, photoBucket, styleKey, styleURLTTL)
		if err != nil {
			return nil, fmt.Errorf("presign style blob: %w", err)
		}
		result.SavedStyleURL = url
		log.Info().Str("styleId", st.ID).Int("rules", len(st.Rules)).Str("key", styleKey).Msg("Style persisted")
	}

	metrics.EmitBatch(metrics.BatchResult{
		GroupID:   fmt.Sprintf("%s/%d", bucket, start.UnixMilli()),
		Completed: result.Completed,
		Failed:    result.Failed,
		Clusters:  len(result.Clusters),
		Duration:  time.Since(start),
	})

	log.Info().
		Int("completed", result.Completed).
		Int("failed", result.Failed).
		Int("clusters", len(result.Clusters)).
		Dur("elapsed", time.Since(start)).
		Msg("Batch finished")
	return result, nil
}

// buildResult converts the group's final state into the response shape.
func buildResult(group *batch.Group) *BatchResult {
	result := &BatchResult{Clusters: group.Clusters()}
	for _, snap := range group.Snapshots() {
		pr := PhotoResult{
			Key:         snap.ID,
			Status:      snap.Status.String(),
			IsReference: snap.IsReference,
		}
		switch snap.Status {
		case batch.StatusCompleted:
			result.Completed++
			pr.Adjustments = make(map[string]float64, len(snap.Adjustments))
			for f, v := range snap.Adjustments {
				pr.Adjustments[string(f)] = v
			}
		case batch.StatusFailed:
			result.Failed++
			if snap.Err != nil {
				pr.Error = snap.Err.Error()
			}
		}
		result.Photos = append(result.Photos, pr)
	}
	return result
}

func main() {
	lambda.Start(handler)
}
