package asr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/net/http2"

	"ptt/internal/config"
)

const userAgent = "ptt-go-client/1.0"

// HTTPEngine uploads artifacts as multipart forms to a transcription
// endpoint and extracts the text with a JSON path.
type HTTPEngine struct {
	cfg            config.EngineConfig
	httpClient     *http.Client
	extraConfigMap map[string]interface{}
	textPath       string
}

// NewHTTPEngine creates an engine and parses ExtraConfig.
func NewHTTPEngine(cfg config.EngineConfig, httpClient *http.Client) (*HTTPEngine, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("API endpoint is empty")
	}
	e := &HTTPEngine{cfg: cfg, httpClient: httpClient, textPath: gjsonPath(cfg.TextPath)}
	if e.httpClient == nil {
		e.httpClient = NewHTTPClient(cfg)
	}
	if cfg.ExtraConfig != "" {
		e.extraConfigMap = make(map[string]interface{})
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &e.extraConfigMap); err != nil {
			return nil, fmt.Errorf("invalid extra-config JSON: %w", err)
		}
	}
	return e, nil
}

// NewHTTPClient builds the upload client.
func NewHTTPClient(cfg config.EngineConfig) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !cfg.VerifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.EnableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	return &http.Client{
		Transport: tr,
		Timeout:   cfg.RequestTimeout,
	}
}

func (e *HTTPEngine) Name() string { return "http" }

// Transcribe uploads the audio and returns the extracted text and raw JSON.
func (e *HTTPEngine) Transcribe(ctx context.Context, path string) (Transcript, error) {
	body, err := e.doUpload(ctx, path)
	if err != nil {
		return Transcript{Raw: body}, err
	}

	text, ok := extractText(body, e.textPath)
	if !ok {
		return Transcript{Raw: body}, fmt.Errorf("text path %q not found in response: %s", e.cfg.TextPath, formatResponse(body))
	}
	t := Transcript{
		Text:     text,
		Language: gjson.GetBytes(body, "language").String(),
		Raw:      body,
	}
	if d := gjson.GetBytes(body, "duration"); d.Exists() {
		t.Audio = time.Duration(d.Float() * float64(time.Second))
	}
	return t, nil
}

// Close drops idle upload connections.
func (e *HTTPEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

func (e *HTTPEngine) doUpload(ctx context.Context, filePath string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}

	for k, v := range e.formFields() {
		switch val := v.(type) {
		case string:
			_ = writer.WriteField(k, val)
		case bool, float64, int:
			_ = writer.WriteField(k, fmt.Sprintf("%v", val))
		default:
			if b, err := json.Marshal(val); err == nil {
				_ = writer.WriteField(k, string(b))
			} else {
				_ = writer.WriteField(k, fmt.Sprintf("%v", val))
			}
		}
	}
	_ = writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if e.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Token)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return respBody, fmt.Errorf("status %d: %s", resp.StatusCode, formatResponse(respBody))
	}
	return respBody, nil
}

func (e *HTTPEngine) formFields() map[string]interface{} {
	base := make(map[string]interface{})
	if e.cfg.Model != "" {
		base["model"] = e.cfg.Model
	}
	if e.cfg.Language != "" {
		base["language"] = e.cfg.Language
	}
	if e.cfg.Prompt != "" {
		base["prompt"] = e.cfg.Prompt
	}
	for k, v := range e.extraConfigMap {
		base[k] = v
	}
	return base
}

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// gjsonPath converts "results[0].alternatives[0].transcript" into gjson's
// "results.0.alternatives.0.transcript".
func gjsonPath(p string) string {
	return indexPattern.ReplaceAllString(p, ".$1")
}

// extractText reads path from body, falling back to a top-level "text" field.
func extractText(body []byte, path string) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	if path != "" {
		if r := gjson.GetBytes(body, path); r.Exists() {
			return r.String(), true
		}
	}
	if r := gjson.GetBytes(body, "text"); r.Exists() {
		return r.String(), true
	}
	return "", false
}

func formatResponse(b []byte) string {
	const limit = 512
	if !utf8.Valid(b) {
		return fmt.Sprintf("<%d bytes of binary data>", len(b))
	}
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
