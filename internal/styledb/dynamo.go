package styledb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-edit-sdk/internal/style"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "STYLE#"
	skMeta   = "META"
)

// record is the DynamoDB item shape for a stored style. The style body is
// kept as its versioned codec payload so the schema version travels with it.
type record struct {
	Payload   []byte    `dynamodbav:"payload"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
	RuleCount int       `dynamodbav:"ruleCount"`
	Version   int       `dynamodbav:"schemaVersion"`
}

// DynamoStore implements StyleStore using AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface check.
var _ StyleStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// stylePK returns the partition key for a style.
func stylePK(styleID string) string {
	return pkPrefix + styleID
}

func (s *DynamoStore) PutStyle(ctx context.Context, st *style.Style) error {
	payload, err := style.EncodeCompressed(st)
	if err != nil {
		return fmt.Errorf("encode style %s: %w", st.ID, err)
	}

	item, err := attributevalue.MarshalMap(record{
		Payload:   payload,
		CreatedAt: st.CreatedAt,
		RuleCount: len(st.Rules),
		Version:   st.Version,
	})
	if err != nil {
		return fmt.Errorf("marshal style %s: %w", st.ID, err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: stylePK(st.ID)}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put style %s: %w", st.ID, err)
	}

	log.Debug().Str("styleId", st.ID).Int("rules", len(st.Rules)).Msg("Style persisted to DynamoDB")
	return nil
}

func (s *DynamoStore) GetStyle(ctx context.Context, styleID string) (*style.Style, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: stylePK(styleID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get style %s: %w", styleID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var rec record
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal style %s: %w", styleID, err)
	}

	st, err := style.DecodeCompressed(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode style %s: %w", styleID, err)
	}
	return st, nil
}

func (s *DynamoStore) DeleteStyle(ctx context.Context, styleID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: stylePK(styleID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return fmt.Errorf("delete style %s: %w", styleID, err)
	}

	log.Debug().Str("styleId", styleID).Msg("Style deleted from DynamoDB")
	return nil
}

func (s *DynamoStore) ListStyles(ctx context.Context) ([]StyleSummary, error) {
	input := &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("begins_with(PK, :p) AND SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":  &types.AttributeValueMemberS{Value: pkPrefix},
			":sk": &types.AttributeValueMemberS{Value: skMeta},
		},
	}

	var summaries []StyleSummary

	// Handle pagination — DynamoDB returns up to 1MB per Scan call.
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan styles: %w", err)
		}

		for _, item := range result.Items {
			var sum StyleSummary
			if err := attributevalue.UnmarshalMap(item, &sum); err != nil {
				log.Warn().Err(err).Msg("Failed to unmarshal style summary, skipping")
				continue
			}
			if pkAttr, ok := item["PK"].(*types.AttributeValueMemberS); ok {
				sum.ID = strings.TrimPrefix(pkAttr.Value, pkPrefix)
			}
			summaries = append(summaries, sum)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return summaries, nil
}
