package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/brandpulse/internal/models"
)

const (
	RUN_LEDGER_TABLE_NAME = "BrandRuns"
	RUN_LEDGER_TTL        = 30 * 24 * time.Hour
)

// LedgerAPI is the slice of the DynamoDB client the ledger uses.
type LedgerAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// RunLedger keeps one item per brand run, keyed by brand_id and started_at.
// Items expire through the table's TTL on expires_at.
type RunLedger struct {
	client LedgerAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
}

func NewRunLedger(client LedgerAPI, table string) *RunLedger {
	if table == "" {
		table = RUN_LEDGER_TABLE_NAME
	}
	return &RunLedger{client: client, table: table, ttl: RUN_LEDGER_TTL, now: time.Now}
}

// runItem adds the sort key and ttl attributes on top of the summary.
type runItem struct {
	models.RunSummary
	StartedKey string `dynamodbav:"started_key"`
	ExpiresAt  int64  `dynamodbav:"expires_at"`
}

func (l *RunLedger) Record(ctx context.Context, summary models.RunSummary) error {
	item, err := attributevalue.MarshalMap(runItem{
		RunSummary: summary,
		StartedKey: summary.StartedAt.UTC().Format(time.RFC3339Nano) + "#" + summary.RunID,
		ExpiresAt:  l.now().Add(l.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to marshal run summary: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to record run %s: %w", summary.RunID, err)
	}

	slog.Debug("[DynamoDB] Run recorded",
		slog.String("run_id", summary.RunID),
		slog.String("brand", summary.BrandID))
	return nil
}

// RecentRuns returns up to limit runs of a brand, newest first.
func (l *RunLedger) RecentRuns(ctx context.Context, brandID string, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.table),
		KeyConditionExpression: aws.String("brand_id = :brand"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":brand": &types.AttributeValueMemberS{Value: brandID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] query for runs failed: %w", err)
	}

	var items []runItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		slog.Error("[DynamoDB] Unable to unmarshal run page", slog.String("error", err.Error()))
		return nil, err
	}
	runs := make([]models.RunSummary, len(items))
	for i, item := range items {
		runs[i] = item.RunSummary
	}
	slog.Info("[DynamoDB] Retrieved runs",
		slog.String("brand", brandID),
		slog.Int("count", len(runs)))
	return runs, nil
}
