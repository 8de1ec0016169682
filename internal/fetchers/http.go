package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/spacesedan/brandpulse/internal/clients"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	maxFetchRetries    = 2
)

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func defaultPolicy() retrypolicy.RetryPolicy[*http.Response] {
	return clients.NewRetryPolicy[*http.Response](maxFetchRetries, 500*time.Millisecond, 4*time.Second)
}

// getJSON performs a GET with transient retry and decodes the JSON body.
func getJSON(ctx context.Context, client *http.Client, policy retrypolicy.RetryPolicy[*http.Response], url string, header http.Header, out interface{}) error {
	resp, err := clients.DoWithRetry(ctx, client, policy, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
