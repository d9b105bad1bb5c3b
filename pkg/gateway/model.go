package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// PrincipalContext carries the principal metadata a model backend may use
// for routing or accounting. It never carries the allowlist or policy
// state.
type PrincipalContext struct {
	PrincipalID string `json:"principal_id"`
	Actor       string `json:"actor,omitempty"`
	TraceID     string `json:"trace_id"`
}

// Completion is a model backend's response to a prompt.
type Completion struct {
	Text       string `json:"text"`
	TokenCount int64  `json:"token_count"`
}

// ModelClient dispatches a prompt to the generative backend. Failures are
// reported as *domain.UpstreamError; the pipeline never retries them.
type ModelClient interface {
	Complete(ctx context.Context, prompt string, pctx PrincipalContext) (Completion, error)
}

// HTTPModelClient talks to an Ollama-style generate endpoint.
type HTTPModelClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPModelClient creates a client for the backend at baseURL using the
// named model. A zero timeout defaults to 60 seconds.
func NewHTTPModelClient(baseURL, model string, timeout time.Duration) *HTTPModelClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPModelClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response  string `json:"response"`
	EvalCount int64  `json:"eval_count"`
}

// Complete posts the prompt to the generate endpoint and returns the
// completion text with its token count. Timeouts and transport failures
// come back as typed upstream errors.
func (c *HTTPModelClient) Complete(ctx context.Context, prompt string, pctx PrincipalContext) (Completion, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return Completion{}, &domain.UpstreamError{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Completion{}, &domain.UpstreamError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if pctx.TraceID != "" {
		req.Header.Set("X-Trace-Id", pctx.TraceID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Completion{}, &domain.UpstreamError{Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Completion{}, &domain.UpstreamError{
			Err: fmt.Errorf("model backend returned %d: %s", resp.StatusCode, payload),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Completion{}, &domain.UpstreamError{Err: fmt.Errorf("decode response: %w", err)}
	}

	return Completion{Text: out.Response, TokenCount: out.EvalCount}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
