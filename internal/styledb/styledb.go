// Package styledb persists portable styles in DynamoDB so that a style
// saved from one batch can be applied to later batches.
package styledb

import (
	"context"
	"time"

	"github.com/fpang/photo-edit-sdk/internal/style"
)

// StyleStore is the persistence interface for portable styles.
// GetStyle returns (nil, nil) when the style does not exist.
type StyleStore interface {
	PutStyle(ctx context.Context, st *style.Style) error
	GetStyle(ctx context.Context, styleID string) (*style.Style, error)
	DeleteStyle(ctx context.Context, styleID string) error
	ListStyles(ctx context.Context) ([]StyleSummary, error)
}

// StyleSummary is the listing view of a stored style.
type StyleSummary struct {
	ID        string    `dynamodbav:"-"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
	RuleCount int       `dynamodbav:"ruleCount"`
}
