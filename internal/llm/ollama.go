package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campusnerd/internal/logging"
)

// =============================================================================
// OLLAMA NATIVE CLIENT
// =============================================================================

// Ollama generates completions using a local Ollama server.
type Ollama struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllama creates a new Ollama client.
func NewOllama(endpoint, model string, timeout time.Duration) *Ollama {
	if model == "" {
		model = "mistral"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Ollama{
		endpoint: NormalizeEndpoint(endpoint),
		model:    model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Model returns the model identifier.
func (o *Ollama) Model() string {
	return o.model
}

// Endpoint returns the normalized base URL.
func (o *Ollama) Endpoint() string {
	return o.endpoint
}

// Complete runs a non-streaming /api/generate call.
func (o *Ollama) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			Stop:        req.Stop,
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result ollamaGenerateResponse
	if err := o.do(ctx, http.MethodPost, "/api/generate", body, &result); err != nil {
		return Response{}, err
	}

	resp := Response{
		Text:             truncateAtStop(result.Response, req.Stop),
		Model:            result.Model,
		PromptTokens:     result.PromptEvalCount,
		CompletionTokens: result.EvalCount,
		Duration:         time.Since(start),
	}
	logging.APIDebug("ollama %s: %d prompt / %d completion tokens in %v",
		o.model, resp.PromptTokens, resp.CompletionTokens, resp.Duration)
	return resp, nil
}

// ModelInfo describes a locally available model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Models lists locally available models via /api/tags.
func (o *Ollama) Models(ctx context.Context) ([]ModelInfo, error) {
	var result struct {
		Models []ModelInfo `json:"models"`
	}
	if err := o.do(ctx, http.MethodGet, "/api/tags", nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// Ping checks that the server answers.
func (o *Ollama) Ping(ctx context.Context) error {
	return o.do(ctx, http.MethodGet, "/", nil, nil)
}

func (o *Ollama) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, o.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: ollama request failed: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logging.APIWarn("ollama %s %s: status %d", method, path, resp.StatusCode)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: ollama returned status %d: %s", ErrBackend, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%w: ollama returned status %d: %s", ErrBackend, resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrBackend, err)
	}
	return nil
}

// =============================================================================
// OLLAMA API TYPES
// =============================================================================

type ollamaOptions struct {
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}
