package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spacesedan/brandpulse/internal/models"
)

// ErrDecode marks a 2xx response whose body could not be parsed.
var ErrDecode = errors.New("failed to decode response")

// SentimentClient talks to the scoring service. It makes exactly one attempt
// per call; callers own retry policy.
type SentimentClient struct {
	BaseURL string
	Client  *http.Client
}

func NewSentimentClient(baseURL string, timeout time.Duration) *SentimentClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	slog.Info("[SentimentClient] Initializing Client",
		slog.String("base_url", baseURL),
		slog.Duration("timeout", timeout))
	return &SentimentClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (c *SentimentClient) Analyze(ctx context.Context, input models.AnalyzeRequest) (models.AnalyzeResponse, error) {
	var result models.AnalyzeResponse
	start := time.Now()

	if err := c.postJSON(ctx, c.BaseURL+"/analyze", input, &result); err != nil {
		slog.Debug("[SentimentClient] Analyze request failed",
			slog.Int("posts", len(input.Posts)),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return result, err
	}

	slog.Debug("[SentimentClient] Analyze request successful",
		slog.Int("posts", len(input.Posts)),
		slog.Int("results", len(result.Results)),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Health returns the decoded health document. A non-2xx status is returned
// as *StatusError together with whatever body could be decoded.
func (c *SentimentClient) Health(ctx context.Context) (models.HealthResponse, error) {
	var result models.HealthResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return result, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := c.Client.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("failed to read response: %w", err)
	}
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK {
		return result, &StatusError{StatusCode: resp.StatusCode, Body: preview(body)}
	}
	return result, nil
}

func (c *SentimentClient) postJSON(ctx context.Context, endpoint string, input interface{}, output interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: preview(respBody)}
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[SentimentClient] Failed to unmarshal response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			slog.String("raw_response", preview(respBody)),
			slog.Int("raw_response_length", len(respBody)))
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func preview(body []byte) string {
	raw := string(body)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return raw
}
