package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenai/warden-oss/pkg/domain"
)

func TestHTTPModelClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "trace-1", r.Header.Get("X-Trace-Id"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(generateResponse{Response: "hello", EvalCount: 42})
	}))
	defer srv.Close()

	c := NewHTTPModelClient(srv.URL, "llama3", 5*time.Second)
	out, err := c.Complete(context.Background(), "hi", PrincipalContext{TraceID: "trace-1"})
	require.NoError(t, err)

	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, int64(42), out.TokenCount)
}

func TestHTTPModelClient_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPModelClient(srv.URL, "llama3", 5*time.Second)
	_, err := c.Complete(context.Background(), "hi", PrincipalContext{})

	require.Error(t, err)
	assert.True(t, domain.IsUpstream(err))
	assert.False(t, domain.IsUpstreamTimeout(err))
}

func TestHTTPModelClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(generateResponse{Response: "late"})
	}))
	defer srv.Close()

	c := NewHTTPModelClient(srv.URL, "llama3", 20*time.Millisecond)
	_, err := c.Complete(context.Background(), "hi", PrincipalContext{})

	require.Error(t, err)
	assert.True(t, domain.IsUpstreamTimeout(err))
}
