package cleanup

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompleter talks to an OpenAI-compatible chat endpoint. Ollama serves
// one under /v1.
type OpenAICompleter struct {
	baseURL        string
	apiKey         string
	model          string
	connectTimeout time.Duration
	requestTimeout time.Duration
}

// NewOpenAICompleter builds a completer for host:port/v1.
func NewOpenAICompleter(host string, port int, model, apiKey string, connectTimeout, requestTimeout time.Duration) *OpenAICompleter {
	return &OpenAICompleter{
		baseURL:        BaseURL(host, port) + "/v1",
		apiKey:         apiKey,
		model:          model,
		connectTimeout: connectTimeout,
		requestTimeout: requestTimeout,
	}
}

// BaseURL joins host and port, adding an http scheme when host has none.
func BaseURL(host string, port int) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	if port > 0 {
		return fmt.Sprintf("%s:%d", host, port)
	}
	return host
}

func (c *OpenAICompleter) Name() string { return "openai" }

func (c *OpenAICompleter) Complete(ctx context.Context, system, input string) (string, error) {
	oc := openai.DefaultConfig(c.apiKey)
	oc.BaseURL = c.baseURL
	oc.HTTPClient = newAttemptClient(c.connectTimeout, c.requestTimeout)
	client := openai.NewClientWithConfig(oc)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
