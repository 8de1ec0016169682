package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spacesedan/brandpulse/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	LLM_MAX_CONCURRENCY = 10
	LLM_MAX_ATTEMPTS    = 3
	LLM_TEMPERATURE     = 0.1
)

var (
	ErrMissingAPIKey = errors.New("llm api key is not configured")
	ErrMissingModel  = errors.New("llm model name is not configured")
)

// providerDefaults holds the OpenAI compatible endpoint and default model of
// each known provider.
var providerDefaults = map[string]struct{ baseURL, model string }{
	"openai":    {"https://api.openai.com/v1", "gpt-3.5-turbo"},
	"deepseek":  {"https://api.deepseek.com/v1", "deepseek-chat"},
	"anthropic": {"https://api.anthropic.com/v1/", "claude-3-haiku-20240307"},
	"google":    {"https://generativelanguage.googleapis.com/v1beta/openai/", "gemini-2.5-flash-lite"},
}

type LLMConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string

	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Resolve fills the provider's endpoint and model where they are unset. An
// unknown provider must name both itself.
func (c LLMConfig) Resolve() (LLMConfig, error) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if d, ok := providerDefaults[c.Provider]; ok {
		if c.BaseURL == "" {
			c.BaseURL = d.baseURL
		}
		if c.Model == "" {
			c.Model = d.model
		}
	}
	if c.APIKey == "" {
		return c, ErrMissingAPIKey
	}
	if c.Model == "" {
		return c, ErrMissingModel
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = 10 * time.Second
	}
	return c, nil
}

// ChatCompleter is the part of *openai.Client the backend calls.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMBackend asks a chat model for a JSON verdict per text.
type LLMBackend struct {
	client ChatCompleter
	cfg    LLMConfig
	policy retrypolicy.RetryPolicy[openai.ChatCompletionResponse]
}

// NewLLMBackend expects a resolved config.
func NewLLMBackend(client ChatCompleter, cfg LLMConfig) *LLMBackend {
	policy := retrypolicy.NewBuilder[openai.ChatCompletionResponse]().
		HandleIf(func(_ openai.ChatCompletionResponse, err error) bool {
			return isNetworkError(err)
		}).
		WithBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay).
		WithMaxRetries(LLM_MAX_ATTEMPTS - 1).
		Build()
	return &LLMBackend{client: client, cfg: cfg, policy: policy}
}

func (l *LLMBackend) Info() Info {
	return Info{
		ModelType:     "llm",
		Provider:      l.cfg.Provider,
		ModelName:     l.cfg.Model,
		APIConfigured: l.cfg.APIKey != "",
		Source:        "llm_" + l.cfg.Provider,
	}
}

// Predict scores texts concurrently, at most LLM_MAX_CONCURRENCY calls in
// flight.
func (l *LLMBackend) Predict(ctx context.Context, texts []string) []Prediction {
	out := make([]Prediction, len(texts))
	eg := new(errgroup.Group)
	eg.SetLimit(LLM_MAX_CONCURRENCY)
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			out[i] = NeutralFallback()
			continue
		}
		eg.Go(func() error {
			out[i] = l.analyze(ctx, text)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

type llmVerdict struct {
	Sentiment      string   `json:"sentiment"`
	SentimentScore *float64 `json:"sentimentScore"`
	Confidence     *float64 `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
}

func (l *LLMBackend) analyze(ctx context.Context, text string) Prediction {
	resp, err := failsafe.With(l.policy).WithContext(ctx).Get(func() (openai.ChatCompletionResponse, error) {
		return l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: l.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildPrompt(text)},
			},
			Temperature: LLM_TEMPERATURE,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
	})
	if err != nil {
		slog.Warn("[LLMBackend] Completion failed, falling back to neutral",
			slog.String("provider", l.cfg.Provider),
			slog.String("error", err.Error()))
		return NeutralFallback()
	}
	if len(resp.Choices) == 0 {
		slog.Warn("[LLMBackend] Completion had no choices, falling back to neutral",
			slog.String("provider", l.cfg.Provider))
		return NeutralFallback()
	}

	pred, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("[LLMBackend] Unusable verdict, falling back to neutral",
			slog.String("error", err.Error()),
			slog.String("raw", preview(resp.Choices[0].Message.Content, 200)))
		return NeutralFallback()
	}
	slog.Debug("[LLMBackend] Scored",
		slog.String("text", preview(text, 60)),
		slog.String("sentiment", string(pred.Label)),
		slog.Float64("score", pred.Score),
		slog.Float64("confidence", pred.Confidence))
	return pred
}

func parseVerdict(content string) (Prediction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var v llmVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &v); err != nil {
		return Prediction{}, fmt.Errorf("invalid json: %w", err)
	}
	label := models.SentimentLabel(strings.ToLower(strings.TrimSpace(v.Sentiment)))
	if !label.Valid() {
		return Prediction{}, fmt.Errorf("invalid sentiment %q", v.Sentiment)
	}
	if v.SentimentScore == nil || *v.SentimentScore < 0 || *v.SentimentScore > 1 {
		return Prediction{}, errors.New("sentimentScore missing or outside 0..1")
	}
	if v.Confidence == nil || *v.Confidence < 0 || *v.Confidence > 1 {
		return Prediction{}, errors.New("confidence missing or outside 0..1")
	}
	return Prediction{
		Label:      label,
		Score:      round3(*v.SentimentScore),
		Confidence: round3(*v.Confidence),
	}, nil
}

// isNetworkError is true for failures that never produced an HTTP status.
// Provider error responses are not retried.
func isNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	return !errors.As(err, &apiErr) && !errors.As(err, &reqErr)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

const systemPrompt = "You are a sentiment analysis expert. Always respond with valid JSON only."

func buildPrompt(text string) string {
	return "Analyze the sentiment of the social media text delimited by triple backticks.\n" +
		"Respond ONLY with a raw JSON object. Do not include markdown formatting, explanations, or any text outside the JSON.\n\n" +
		"### Text to analyze:\n```" + text + "```\n\n" +
		"### Instructions:\n" +
		"1. Interpret emojis, slang and code-mixed language in context.\n" +
		"2. ALL CAPS and repeated punctuation push sentimentScore further toward 0.0 or 1.0.\n" +
		"3. Positive words used to deliver a negative critique are \"negative\".\n" +
		"4. For mixed sentiment, sentimentScore follows the dominant emotion and confidence is lowered.\n\n" +
		"### Response Schema:\n" +
		"{\"sentiment\": \"positive\" | \"neutral\" | \"negative\", \"sentimentScore\": float (0.0 to 1.0), " +
		"\"confidence\": float (0.0 to 1.0), \"reasoning\": \"one sentence\"}\n\n" +
		"JSON Response:"
}
