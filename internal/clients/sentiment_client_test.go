package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentimentClient_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req models.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Posts, 1)

		_ = json.NewEncoder(w).Encode(models.AnalyzeResponse{Results: []models.AnalyzeResult{{
			ID:             req.Posts[0].ID,
			Sentiment:      "positive",
			SentimentScore: 0.9,
		}}})
	}))
	defer srv.Close()

	c := NewSentimentClient(srv.URL+"/", time.Second)
	resp, err := c.Analyze(context.Background(), models.AnalyzeRequest{Posts: []models.AnalyzeRequestPost{{ID: "0", Text: "great"}}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "positive", resp.Results[0].Sentiment)
}

func TestSentimentClient_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			},
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrDecode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewSentimentClient(srv.URL, time.Second)
			_, err := c.Analyze(context.Background(), models.AnalyzeRequest{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSentimentClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(models.HealthResponse{Status: "not_ready"})
	}))
	defer srv.Close()

	c := NewSentimentClient(srv.URL, time.Second)
	health, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, "not_ready", health.Status)
	assert.False(t, health.ModelLoaded)
}
