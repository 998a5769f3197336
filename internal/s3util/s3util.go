// Package s3util provides the small set of S3 helpers the SDK needs: whole
// object download/upload for photo sources and style blobs, plus presigned
// GET links for handing results back to a browser.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DownloadObject fetches an entire S3 object into memory. Photo sources in
// this SDK are single images, small enough that streaming to disk buys nothing.
func DownloadObject(ctx context.Context, client *s3.Client, bucket, key string) ([]byte, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Downloading from S3")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("S3 read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// UploadObject writes bytes to S3 under the given key.
func UploadObject(ctx context.Context, client *s3.Client, bucket, key string, data []byte, contentType string) error {
	log.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("Uploading to S3")
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PresignGet returns a presigned GET URL for the object, valid for ttl.
func PresignGet(ctx context.Context, presigner *s3.PresignClient, bucket, key string, ttl time.Duration) (string, error) {
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}
