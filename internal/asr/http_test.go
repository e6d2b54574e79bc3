package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ptt/internal/config"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "RecordTemp_test.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func testEngineConfig(url string) config.EngineConfig {
	cfg := config.DefaultConfig().Engine
	cfg.Endpoint = url
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}

func TestHTTPEngineUploadsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("model") != "base" || r.FormValue("language") != "en" || r.FormValue("temperature") != "0" {
			t.Errorf("unexpected form values: %v", r.MultipartForm.Value)
		}
		if _, hdr, err := r.FormFile("file"); err != nil || hdr.Filename != "RecordTemp_test.wav" {
			t.Errorf("missing file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"hello there"}]}],"language":"en","duration":1.5}`))
	}))
	defer server.Close()

	cfg := testEngineConfig(server.URL)
	cfg.Token = "secret"
	cfg.Model = "base"
	cfg.Language = "en"
	cfg.TextPath = "results[0].alternatives[0].transcript"
	cfg.ExtraConfig = `{"temperature":0}`

	eng, err := NewHTTPEngine(cfg, &http.Client{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPEngine failed: %v", err)
	}
	got, err := eng.Transcribe(context.Background(), writeArtifact(t))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got.Text != "hello there" || got.Language != "en" || got.Audio != 1500*time.Millisecond {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if len(got.Raw) == 0 {
		t.Fatalf("expected raw response to be kept")
	}
}

func TestHTTPEngineNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("fail"))
	}))
	defer server.Close()

	eng, err := NewHTTPEngine(testEngineConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("NewHTTPEngine failed: %v", err)
	}
	_, err = eng.Transcribe(context.Background(), writeArtifact(t))
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestHTTPEngineMissingTextPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"x"}`))
	}))
	defer server.Close()

	cfg := testEngineConfig(server.URL)
	cfg.TextPath = "data.text"
	eng, err := NewHTTPEngine(cfg, nil)
	if err != nil {
		t.Fatalf("NewHTTPEngine failed: %v", err)
	}
	if _, err := eng.Transcribe(context.Background(), writeArtifact(t)); err == nil {
		t.Fatalf("expected error for missing text path")
	}
}

func TestHTTPEngineRejectsBadExtraConfig(t *testing.T) {
	cfg := testEngineConfig("http://localhost")
	cfg.ExtraConfig = "{not json"
	if _, err := NewHTTPEngine(cfg, nil); err == nil {
		t.Fatalf("expected extra-config error")
	}
}

func TestExtractText(t *testing.T) {
	body := []byte(`{"text":"fallback","data":{"items":[{"value":"a"},{"value":"b"}]}}`)
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{gjsonPath("data.items[1].value"), "b", true},
		{gjsonPath("data.items[9].value"), "fallback", true},
		{"", "fallback", true},
	}
	for _, tc := range cases {
		got, ok := extractText(body, tc.path)
		if got != tc.want || ok != tc.ok {
			t.Errorf("path %q: expected %q/%v, got %q/%v", tc.path, tc.want, tc.ok, got, ok)
		}
	}
	if _, ok := extractText([]byte("not json"), "text"); ok {
		t.Errorf("expected invalid JSON to fail")
	}
}

func TestGJSONPath(t *testing.T) {
	if got := gjsonPath("foo[0][1].bar"); got != "foo.0.1.bar" {
		t.Fatalf("unexpected path %q", got)
	}
}
