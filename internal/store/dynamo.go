package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// byOriginalKeyIndex is the metadata table GSI keyed on OriginalKey alone,
// used to find an image without knowing its album partition.
const byOriginalKeyIndex = "byOriginalKey"

// DynamoStore implements AlbumStore on two DynamoDB tables: the per-image
// metadata table (PK AlbumID, SK OriginalKey) and the per-user stats table
// (PK UserID). One client serves both so the ingestion transaction can span
// them.
type DynamoStore struct {
	client        *dynamodb.Client
	metadataTable string
	statsTable    string
}

// Compile-time interface check.
var _ AlbumStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given tables.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, metadataTable, statsTable string) *DynamoStore {
	return &DynamoStore{
		client:        client,
		metadataTable: metadataTable,
		statsTable:    statsTable,
	}
}

// Client exposes the underlying DynamoDB client for callers that need to
// share it (e.g. additional stores built on the same connection).
func (s *DynamoStore) Client() *dynamodb.Client {
	return s.client
}

func (s *DynamoStore) GetStats(ctx context.Context, userID string) (*UserStats, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.statsTable,
		Key: map[string]types.AttributeValue{
			"UserID": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get stats for %s: %w", userID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var stats UserStats
	if err := attributevalue.UnmarshalMap(result.Item, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats for %s: %w", userID, err)
	}
	stats.UserID = userID
	return &stats, nil
}

func (s *DynamoStore) GetImageByOriginalKey(ctx context.Context, originalKey string) (*ImageRecord, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.metadataTable,
		IndexName:              aws.String(byOriginalKeyIndex),
		KeyConditionExpression: aws.String("OriginalKey = :okey"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":okey": &types.AttributeValueMemberS{Value: originalKey},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s by original key %s: %w", byOriginalKeyIndex, originalKey, err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var rec ImageRecord
	if err := attributevalue.UnmarshalMap(result.Items[0], &rec); err != nil {
		return nil, fmt.Errorf("unmarshal image record %s: %w", originalKey, err)
	}
	return &rec, nil
}

func (s *DynamoStore) QueryByAlbum(ctx context.Context, albumID string) ([]*ImageRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.metadataTable,
		KeyConditionExpression: aws.String("AlbumID = :album"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":album": &types.AttributeValueMemberS{Value: albumID},
		},
	}

	var records []*ImageRecord

	// Handle pagination; DynamoDB returns up to 1MB per Query call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query album %s: %w", albumID, err)
		}
		for _, item := range result.Items {
			var rec ImageRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				log.Warn().Err(err).Str("albumId", albumID).Msg("Failed to unmarshal image record, skipping")
				continue
			}
			records = append(records, &rec)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return records, nil
}

func (s *DynamoStore) CreateImage(ctx context.Context, rec *ImageRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal image record %s: %w", rec.OriginalKey, err)
	}

	// Insert and stats bump commit together or not at all. The condition on
	// the Put makes a racing double-create fail the whole transaction instead
	// of counting the image twice.
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.metadataTable,
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(OriginalKey)"),
				},
			},
			{
				Update: &types.Update{
					TableName: &s.statsTable,
					Key: map[string]types.AttributeValue{
						"UserID": &types.AttributeValueMemberS{Value: rec.UserID},
					},
					UpdateExpression: aws.String("SET SortStatus = :status ADD ImageCount :inc, PendingImageKeys :newKey"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":status": &types.AttributeValueMemberS{Value: SortStatusNeedsUpdate},
						":inc":    &types.AttributeValueMemberN{Value: "1"},
						":newKey": &types.AttributeValueMemberSS{Value: []string{rec.OriginalKey}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create image %s: %w", rec.OriginalKey, err)
	}

	log.Debug().
		Str("userId", rec.UserID).
		Str("albumId", rec.AlbumID).
		Str("originalKey", rec.OriginalKey).
		Msg("Image record created, stats incremented")
	return nil
}

func (s *DynamoStore) UpdateImage(ctx context.Context, rec *ImageRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal image record %s: %w", rec.OriginalKey, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.metadataTable,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("update image %s: %w", rec.OriginalKey, err)
	}

	log.Debug().
		Str("userId", rec.UserID).
		Str("originalKey", rec.OriginalKey).
		Msg("Image record updated")
	return nil
}

func (s *DynamoStore) SettleSort(ctx context.Context, userID string, result *SortedData, snapshotKeys []string, completedAt time.Time) error {
	// SortedData is only written when a pass produced a result; a zero-image
	// settle keeps the prior result in place.
	updateExpr := "SET SortStatus = :status, LastSortedAt = :time"
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: SortStatusUpdated},
		":time":   &types.AttributeValueMemberS{Value: Timestamp(completedAt)},
	}

	if result != nil {
		data, err := attributevalue.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal sorted data for %s: %w", userID, err)
		}
		updateExpr = "SET SortedData = :data, SortStatus = :status, LastSortedAt = :time"
		values[":data"] = data
	}

	// Only the snapshot keys that fed this pass are removed from the pending
	// set. Keys ingested after the snapshot was taken stay pending instead of
	// being wiped by an unconditional clear.
	if len(snapshotKeys) > 0 {
		updateExpr += " DELETE PendingImageKeys :snapshot"
		values[":snapshot"] = &types.AttributeValueMemberSS{Value: snapshotKeys}
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.statsTable,
		Key: map[string]types.AttributeValue{
			"UserID": &types.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return fmt.Errorf("settle sort for %s: %w", userID, err)
	}

	// Keys that raced past the snapshot survive the DELETE above. Flip the
	// status back so the next trigger sees them; losing this follow-up write
	// is recoverable because the keys themselves are still pending.
	leftover := leftoverPendingKeys(out.Attributes)
	if len(leftover) > 0 {
		log.Info().
			Str("userId", userID).
			Int("leftover", len(leftover)).
			Msg("Pending keys arrived during sort pass; re-marking stats for update")

		_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: &s.statsTable,
			Key: map[string]types.AttributeValue{
				"UserID": &types.AttributeValueMemberS{Value: userID},
			},
			UpdateExpression: aws.String("SET SortStatus = :status"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: SortStatusNeedsUpdate},
			},
		})
		if err != nil {
			return fmt.Errorf("re-mark stats for %s after settle: %w", userID, err)
		}
	}

	log.Info().
		Str("userId", userID).
		Bool("hasResult", result != nil).
		Int("snapshotCleared", len(snapshotKeys)).
		Int("leftoverPending", len(leftover)).
		Msg("Sort pass settled")
	return nil
}

// leftoverPendingKeys extracts PendingImageKeys from the post-update item
// attributes, if any survived the snapshot DELETE.
func leftoverPendingKeys(attrs map[string]types.AttributeValue) []string {
	pending, ok := attrs["PendingImageKeys"].(*types.AttributeValueMemberSS)
	if !ok {
		return nil
	}
	return pending.Value
}
