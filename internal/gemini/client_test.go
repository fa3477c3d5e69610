package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
)

func answer(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + quote(text) + `}]}}]}`
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "test-model",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
		Backoff:    time.Millisecond,
	}, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGenerateJSON(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/test-model:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		body, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, answer("```json\n{\"name\": \"golem\"}\n```"))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL, 0).GenerateJSON(context.Background(), "make a golem", "you are an expert")
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(out, "name").String(); got != "golem" {
		t.Errorf("name = %q", got)
	}

	req := gjson.ParseBytes(body)
	if !strings.HasPrefix(req.Get("contents.0.parts.0.text").String(), "make a golem") {
		t.Errorf("prompt not sent: %s", body)
	}
	if !strings.Contains(req.Get("contents.0.parts.0.text").String(), "CRITICAL INSTRUCTIONS") {
		t.Error("json instructions missing from prompt")
	}
	if got := req.Get("systemInstruction.parts.0.text").String(); got != "you are an expert" {
		t.Errorf("system = %q", got)
	}
	if got := req.Get("generationConfig.maxOutputTokens").Int(); got != 16384 {
		t.Errorf("maxOutputTokens = %d", got)
	}
	if got := len(req.Get("safetySettings").Array()); got != 4 {
		t.Errorf("safety settings = %d", got)
	}
}

func TestGenerateJSONRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"quota"}}`)
			return
		}
		_, _ = io.WriteString(w, answer(`{"ok":true}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL, 3).GenerateJSON(context.Background(), "p", "")
	if err != nil {
		t.Fatal(err)
	}
	if !gjson.GetBytes(out, "ok").Bool() {
		t.Errorf("out = %s", out)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestGenerateJSONGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 2).GenerateJSON(context.Background(), "p", "")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestGenerateJSONNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad prompt"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).GenerateJSON(context.Background(), "p", "")
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "bad prompt" {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestGenerateJSONInvalidAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, answer("I cannot help with that"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 0).GenerateJSON(context.Background(), "p", "")
	if !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v", err)
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`, false},
		{"no object", "nothing here", "", true},
		{"broken", `{"a":}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanJSON(tt.in)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
