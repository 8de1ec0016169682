package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetry_RetriesServerErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	policy := NewRetryPolicy[*http.Response](2, time.Millisecond, time.Millisecond)
	resp, err := DoWithRetry(context.Background(), srv.Client(), policy, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestDoWithRetry_DoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"quota"}`))
	}))
	defer srv.Close()

	policy := NewRetryPolicy[*http.Response](3, time.Millisecond, time.Millisecond)
	_, err := DoWithRetry(context.Background(), srv.Client(), policy, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(&StatusError{StatusCode: 404}))
	assert.True(t, IsTransient(&StatusError{StatusCode: 503}))
	assert.True(t, IsTransient(errors.New("connection refused")))
	assert.False(t, IsTransient(&requestBuildError{err: errors.New("bad url")}))
}
