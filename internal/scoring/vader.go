package scoring

import (
	"context"
	"math"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/spacesedan/brandpulse/internal/sentiment"
)

const (
	VADER_POSITIVE_THRESHOLD = 0.20
	VADER_NEGATIVE_THRESHOLD = -0.20
)

// VaderBackend scores locally with the VADER lexicon. It needs no network
// and is always loaded.
type VaderBackend struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderBackend() *VaderBackend {
	return &VaderBackend{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderBackend) Info() Info {
	return Info{ModelType: "vader", Provider: "local", ModelName: "vader", Source: "vader"}
}

func (v *VaderBackend) Predict(_ context.Context, texts []string) []Prediction {
	out := make([]Prediction, len(texts))
	for i, text := range texts {
		out[i] = v.score(text)
	}
	return out
}

// score maps the compound polarity in [-1, 1] onto the 0..1 scale used by the
// rest of the pipeline. Confidence is the compound magnitude.
func (v *VaderBackend) score(text string) Prediction {
	plain := sentiment.ConvertMarkdownToText(text)
	if strings.TrimSpace(plain) == "" {
		return NeutralFallback()
	}

	compound := v.analyzer.PolarityScores(plain).Compound

	label := models.SentimentNeutral
	if compound >= VADER_POSITIVE_THRESHOLD {
		label = models.SentimentPositive
	} else if compound <= VADER_NEGATIVE_THRESHOLD {
		label = models.SentimentNegative
	}

	return Prediction{
		Label:      label,
		Score:      round3(clamp01((compound + 1) / 2)),
		Confidence: round3(math.Abs(compound)),
	}
}
