package db

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedgerAPI struct {
	puts  []*dynamodb.PutItemInput
	query *dynamodb.QueryInput
}

func (f *fakeLedgerAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeLedgerAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.query = in
	items := make([]map[string]types.AttributeValue, 0, len(f.puts))
	for i := len(f.puts) - 1; i >= 0; i-- {
		items = append(items, f.puts[i].Item)
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestRunLedger_RecordAndRead(t *testing.T) {
	api := &fakeLedgerAPI{}
	ledger := NewRunLedger(api, "")
	ledger.now = func() time.Time { return fixedNow }

	summary := models.NewRunSummary("run-1", "acme")
	summary.StartedAt = fixedNow
	summary.FinishedAt = fixedNow.Add(time.Minute)
	summary.Fetched = 2
	summary.PerPlatform[models.PlatformYouTube] = 2
	summary.PerPlatform[models.PlatformReddit] = 0
	summary.Saved = 2

	require.NoError(t, ledger.Record(context.Background(), summary))
	require.Len(t, api.puts, 1)
	assert.Equal(t, RUN_LEDGER_TABLE_NAME, aws.ToString(api.puts[0].TableName))

	var expires int64
	require.NoError(t, attributevalue.Unmarshal(api.puts[0].Item["expires_at"], &expires))
	assert.Equal(t, fixedNow.Add(RUN_LEDGER_TTL).Unix(), expires)
	assert.Contains(t, api.puts[0].Item, "brand_id")
	assert.Contains(t, api.puts[0].Item, "started_key")

	runs, err := ledger.RecentRuns(context.Background(), "acme", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 2, runs[0].PerPlatform[models.PlatformYouTube])
	assert.Equal(t, int32(20), aws.ToInt32(api.query.Limit))
	assert.False(t, aws.ToBool(api.query.ScanIndexForward))
}
