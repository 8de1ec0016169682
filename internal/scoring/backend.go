// Package scoring is the sentiment scoring service the collector supervises.
// A Backend labels plain texts; Server exposes it over /health and /analyze.
package scoring

import (
	"context"
	"math"

	"github.com/spacesedan/brandpulse/internal/models"
)

type Prediction struct {
	Label      models.SentimentLabel
	Score      float64
	Confidence float64
}

// Info is what /health reports about the loaded backend.
type Info struct {
	ModelType     string
	Provider      string
	ModelName     string
	APIConfigured bool
	// Source is stamped on every result as sentimentSource.
	Source string
}

// Backend scores texts. Predict returns exactly one prediction per text, in
// order, and never fails as a whole: texts it cannot score come back as
// NeutralFallback.
type Backend interface {
	Predict(ctx context.Context, texts []string) []Prediction
	Info() Info
}

// NeutralFallback is used for empty texts and for texts the backend could not
// score.
func NeutralFallback() Prediction {
	return Prediction{Label: models.SentimentNeutral, Score: 0.5, Confidence: 0}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
