package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Retry:   RetryConfig{MaxAttempts: 3, BackoffUnit: 5 * time.Millisecond},
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Logger: zap.NewNop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL is required")

	_, err = NewClient(Config{BaseURL: "http://localhost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger is required")
}

func TestPost_DecodesTypedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","value":42}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var out struct {
		Status string `json:"status"`
		Value  int    `json:"value"`
	}
	err := client.Post(context.Background(), "/info", map[string]any{"type": "meta"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, 42, out.Value)
}

func TestDo_Retries5xxUpToBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.Post(context.Background(), "/exchange", map[string]any{}, nil)
	require.Error(t, err)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindHTTPStatus, terr.Kind)
	assert.Equal(t, http.StatusInternalServerError, terr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_Never4xxRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.Post(context.Background(), "/missing", map[string]any{}, nil)
	require.Error(t, err)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindHTTPStatus, terr.Kind)
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)
	assert.False(t, terr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_RecoversAfterTransient5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var out struct {
		Status string `json:"status"`
	}
	err := client.Post(context.Background(), "/exchange", map[string]any{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_DecodeErrorDistinctAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var out map[string]any
	err := client.Post(context.Background(), "/info", map[string]any{}, &out)
	require.Error(t, err)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindDecode, terr.Kind)
	assert.False(t, terr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_NetworkErrorRetried(t *testing.T) {
	// Point at a server that is already closed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.Post(context.Background(), "/info", map[string]any{}, nil)
	require.Error(t, err)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindNetwork, terr.Kind)
	assert.True(t, terr.Retryable())
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
		Retry:   RetryConfig{MaxAttempts: 2, BackoffUnit: time.Millisecond},
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)

	err = client.Post(context.Background(), "/slow", map[string]any{}, nil)
	require.Error(t, err)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindTimeout, terr.Kind)
}

func TestErrorKind_Retryable(t *testing.T) {
	tests := []struct {
		name      string
		err       Error
		retryable bool
	}{
		{name: "network", err: Error{Kind: KindNetwork}, retryable: true},
		{name: "timeout", err: Error{Kind: KindTimeout}, retryable: true},
		{name: "500", err: Error{Kind: KindHTTPStatus, StatusCode: 500}, retryable: true},
		{name: "503", err: Error{Kind: KindHTTPStatus, StatusCode: 503}, retryable: true},
		{name: "404", err: Error{Kind: KindHTTPStatus, StatusCode: 404}, retryable: false},
		{name: "400", err: Error{Kind: KindHTTPStatus, StatusCode: 400}, retryable: false},
		{name: "decode", err: Error{Kind: KindDecode}, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable())
		})
	}
}
