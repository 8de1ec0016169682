package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// StatusError is returned for any non-2xx response. The body preview is kept
// for logs only.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

type requestBuildError struct{ err error }

func (e *requestBuildError) Error() string { return e.err.Error() }
func (e *requestBuildError) Unwrap() error { return e.err }

// IsTransient reports whether err is worth retrying: network failures,
// timeouts and 5xx responses. Cancellation by the caller is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var buildErr *requestBuildError
	if errors.As(err, &buildErr) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}

// NewRetryPolicy retries transient failures with doubling backoff.
func NewRetryPolicy[R any](maxRetries int, base, max time.Duration) retrypolicy.RetryPolicy[R] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if base <= 0 {
		base = INITIAL_BACKOFF
	}
	if max < base {
		max = base
	}
	return retrypolicy.NewBuilder[R]().
		HandleIf(func(_ R, err error) bool {
			return IsTransient(err)
		}).
		WithBackoff(base, max).
		WithMaxRetries(maxRetries).
		Build()
}

// DoWithRetry executes the request built by newReq under policy. Responses
// with status >= 300 are converted to *StatusError after the body is drained.
// On success the caller owns resp.Body.
func DoWithRetry(ctx context.Context, client *http.Client, policy retrypolicy.RetryPolicy[*http.Response], newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	attempt := 0
	resp, err := failsafe.With(policy).WithContext(ctx).Get(func() (*http.Response, error) {
		attempt++
		if lastErr != nil {
			slog.Warn("[HTTPClient] Request failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()))
		}
		req, err := newReq(ctx)
		if err != nil {
			lastErr = &requestBuildError{err: err}
			return nil, lastErr
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", USER_AGENT)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			return nil, err
		}
		if resp.StatusCode >= 300 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: readPreview(resp.Body)}
			resp.Body.Close()
			return nil, lastErr
		}
		lastErr = nil
		return resp, nil
	})
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return resp, nil
}

func readPreview(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 512))
	preview := string(raw)
	if len(preview) > 120 {
		preview = preview[:120]
	}
	return preview
}
