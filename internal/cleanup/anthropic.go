package cleanup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// AnthropicCompleter sends the transcript to the Anthropic Messages API.
type AnthropicCompleter struct {
	apiKey         string
	baseURL        string
	model          string
	connectTimeout time.Duration
	requestTimeout time.Duration
}

// NewAnthropicCompleter creates a completer. An empty baseURL uses the SDK default.
func NewAnthropicCompleter(apiKey, baseURL, model string, connectTimeout, requestTimeout time.Duration) *AnthropicCompleter {
	return &AnthropicCompleter{
		apiKey:         apiKey,
		baseURL:        baseURL,
		model:          model,
		connectTimeout: connectTimeout,
		requestTimeout: requestTimeout,
	}
}

func (c *AnthropicCompleter) Name() string { return "anthropic" }

func (c *AnthropicCompleter) Complete(ctx context.Context, system, input string) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithHTTPClient(newAttemptClient(c.connectTimeout, c.requestTimeout)),
		option.WithMaxRetries(0),
	}
	if c.requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.requestTimeout))
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := anthropic.NewClient(opts...)

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(input))},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
