package asr

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ptt/internal/config"
)

// OpenAIEngine calls an OpenAI-compatible /audio/transcriptions endpoint.
type OpenAIEngine struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
	language   string
	prompt     string
}

// NewOpenAIEngine creates an engine. cfg.Endpoint is the API base URL; a
// trailing /audio/transcriptions is tolerated.
func NewOpenAIEngine(cfg config.EngineConfig, httpClient *http.Client) *OpenAIEngine {
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}
	oc := openai.DefaultConfig(cfg.Token)
	if base := strings.TrimSuffix(strings.TrimRight(cfg.Endpoint, "/"), "/audio/transcriptions"); base != "" {
		oc.BaseURL = base
	}
	oc.HTTPClient = httpClient

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIEngine{
		client:     openai.NewClientWithConfig(oc),
		httpClient: httpClient,
		model:      model,
		language:   cfg.Language,
		prompt:     cfg.Prompt,
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Transcribe(ctx context.Context, path string) (Transcript, error) {
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: path,
		Language: e.language,
		Prompt:   e.prompt,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{
		Text:     resp.Text,
		Language: resp.Language,
		Audio:    time.Duration(resp.Duration * float64(time.Second)),
	}, nil
}

func (e *OpenAIEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}
