package scoring

import (
	"context"
	"testing"

	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaderBackend_Predict(t *testing.T) {
	v := NewVaderBackend()

	preds := v.Predict(context.Background(), []string{
		"I love this rocket, it is absolutely great!",
		"This anvil is terrible and I hate it.",
		"The package arrived on Tuesday.",
		"   ",
	})
	require.Len(t, preds, 4)

	assert.Equal(t, models.SentimentPositive, preds[0].Label)
	assert.Greater(t, preds[0].Score, 0.6)
	assert.Greater(t, preds[0].Confidence, 0.2)

	assert.Equal(t, models.SentimentNegative, preds[1].Label)
	assert.Less(t, preds[1].Score, 0.4)

	assert.Equal(t, models.SentimentNeutral, preds[2].Label)
	assert.Equal(t, 0.5, preds[2].Score)
	assert.Equal(t, 0.0, preds[2].Confidence)

	assert.Equal(t, NeutralFallback(), preds[3])
}

func TestVaderBackend_ScoresPlainTextOfMarkdown(t *testing.T) {
	v := NewVaderBackend()
	md := v.Predict(context.Background(), []string{"**Great** product, [read more](https://example.com/awful)"})
	plain := v.Predict(context.Background(), []string{"Great product, read more"})
	assert.Equal(t, plain, md)
}

func TestVaderBackend_Info(t *testing.T) {
	info := NewVaderBackend().Info()
	assert.Equal(t, "vader", info.ModelType)
	assert.Equal(t, "vader", info.Source)
	assert.False(t, info.APIConfigured)
}
