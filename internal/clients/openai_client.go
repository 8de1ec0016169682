package clients

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const openAIRequestTimeout = 60 * time.Second

// NewOpenAIClient builds a chat client. baseURL is optional and lets the same
// client talk to OpenAI compatible providers such as DeepSeek.
func NewOpenAIClient(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("[OpenAIClient] missing API key")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{
		Timeout: openAIRequestTimeout,
	}

	slog.Info("[OpenAIClient] OpenAI client initialized",
		slog.String("base_url", config.BaseURL),
		slog.Duration("timeout", openAIRequestTimeout))
	return openai.NewClientWithConfig(config), nil
}
