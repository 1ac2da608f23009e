// Package llm is the boundary to the language model: an opaque text-in,
// text-out completion service reachable over HTTP.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultEndpoint is where a local Ollama listens.
const DefaultEndpoint = "http://localhost:11434"

// ErrBackend wraps every failure reported by the completion service.
var ErrBackend = errors.New("llm backend error")

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Stop        []string
	Temperature float64
}

// Response is a completion result.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// Client produces completions for a fixed model.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Model() string
}

// NormalizeEndpoint accepts the forms OLLAMA_HOST allows ("host:port",
// "0.0.0.0", full URLs) and returns a base URL without trailing slash.
func NormalizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultEndpoint
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	raw = strings.TrimRight(raw, "/")

	// A bare host gets Ollama's default port.
	hostPart := raw[strings.Index(raw, "://")+3:]
	if !strings.Contains(hostPart, ":") && !strings.Contains(hostPart, "/") {
		raw += ":11434"
	}
	return strings.Replace(raw, "://0.0.0.0", "://127.0.0.1", 1)
}

// truncateAtStop cuts text at the first stop sequence. Some backends return
// the stop sequence itself or ignore it entirely.
func truncateAtStop(text string, stop []string) string {
	cut := len(text)
	for _, s := range stop {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && i < cut {
			cut = i
		}
	}
	return text[:cut]
}
