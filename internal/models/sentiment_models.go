package models

import "time"

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	default:
		return false
	}
}

// ErrorKind is why a post carries no sentiment label.
type ErrorKind string

const (
	ErrorKindTransport  ErrorKind = "TRANSPORT"
	ErrorKindValidation ErrorKind = "VALIDATION"
	ErrorKindNoText     ErrorKind = "NO_TEXT"
	ErrorKindNoService  ErrorKind = "NO_SERVICE"
)

const (
	SentimentSourceError  = "error"
	SentimentSourceNoText = "no_text"
	SentimentSourceManual = "manual"
)

// SentimentOutcome is produced exactly once per post. Either Sentiment is set
// with a score, or Error is set.
type SentimentOutcome struct {
	Sentiment           *SentimentLabel `json:"sentiment"`
	SentimentScore      *float64        `json:"sentimentScore"`
	SentimentConfidence *float64        `json:"sentimentConfidence"`
	SentimentSource     string          `json:"sentimentSource"`
	SentimentAnalyzedAt *time.Time      `json:"sentimentAnalyzedAt"`
	Error               ErrorKind       `json:"sentimentError,omitempty"`
}

func (o SentimentOutcome) Succeeded() bool {
	return o.Sentiment != nil && o.SentimentScore != nil && o.Error == ""
}

func LabeledOutcome(label SentimentLabel, score, confidence float64, source string, at time.Time) SentimentOutcome {
	return SentimentOutcome{
		Sentiment:           &label,
		SentimentScore:      &score,
		SentimentConfidence: &confidence,
		SentimentSource:     source,
		SentimentAnalyzedAt: &at,
	}
}

func FailedOutcome(kind ErrorKind) SentimentOutcome {
	source := SentimentSourceError
	if kind == ErrorKindNoText {
		source = SentimentSourceNoText
	}
	return SentimentOutcome{
		SentimentSource: source,
		Error:           kind,
	}
}

// SentimentChange is an immutable change-log row written by manual overrides.
type SentimentChange struct {
	ID                string          `json:"id"`
	PostID            string          `json:"postId"`
	PreviousSentiment *SentimentLabel `json:"previousSentiment"`
	NewSentiment      SentimentLabel  `json:"newSentiment"`
	Actor             string          `json:"actor"`
	Reason            string          `json:"reason,omitempty"`
	ChangedAt         time.Time       `json:"changedAt"`
}
