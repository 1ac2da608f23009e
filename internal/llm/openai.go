package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campusnerd/internal/logging"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const maxStopSequences = 4

// OpenAI talks to any OpenAI-compatible chat completions endpoint, including
// Ollama's /v1 API.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates a client. Endpoints without a /v1 suffix get one.
func NewOpenAI(endpoint, apiKey, model string, timeout time.Duration) *OpenAI {
	if apiKey == "" {
		apiKey = "-"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	baseURL := NormalizeEndpoint(endpoint)
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL+"/"),
	)

	return &OpenAI{client: client, model: model, timeout: timeout}
}

// Model returns the model identifier.
func (c *OpenAI) Model() string {
	return c.model
}

// Complete sends the system and user prompt as a two-message chat.
func (c *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(req.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
	}
	if len(req.Stop) > 0 {
		// The API accepts at most four sequences; the rest are cut client-side.
		stop := req.Stop
		if len(stop) > maxStopSequences {
			stop = stop[:maxStopSequences]
		}
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfChatCompletionNewsStopArray: stop}
	}

	completion, err := c.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("%w: chat completion failed: %v", ErrBackend, err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: chat completion returned no choices", ErrBackend)
	}

	resp := Response{
		Text:             truncateAtStop(completion.Choices[0].Message.Content, req.Stop),
		Model:            completion.Model,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		Duration:         time.Since(start),
	}
	logging.APIDebug("openai %s: %d prompt / %d completion tokens in %v",
		c.model, resp.PromptTokens, resp.CompletionTokens, resp.Duration)
	return resp, nil
}
