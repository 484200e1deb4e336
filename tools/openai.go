package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/openai/openai-go/v3"
)

// CompletionClient calls the OpenAI chat completions endpoint.
type CompletionClient struct {
	rest    *resty.Client
	model   string
	timeout time.Duration
}

func NewCompletionClient(apiKey, baseURL, model string, timeout time.Duration) *CompletionClient {
	return &CompletionClient{
		rest:    newBearerClient(baseURL, apiKey),
		model:   model,
		timeout: timeout,
	}
}

// Complete sends the instruction as the system message and text as the user
// message. It returns the first choice's content, or "" when the provider
// returned no choice. A non-2xx answer is returned as *APIError with the body
// untouched.
func (c *CompletionClient) Complete(ctx context.Context, instruction, text string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruction),
			openai.UserMessage(text),
		},
	}

	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("openai encode: %w", err)
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(b).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}

	if !isSuccess(resp) {
		return "", &APIError{Provider: "openai", StatusCode: resp.StatusCode(), Body: resp.Body()}
	}

	var parsed openai.ChatCompletion
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("openai decode: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
