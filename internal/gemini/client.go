// Package gemini talks to the generateContent endpoint of the Gemini API and
// returns the model's answer as a cleaned JSON document.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrMissingAPIKey = errors.New("gemini: api key not configured")
	// ErrInvalidJSON is returned when the model answer holds no parseable
	// JSON object.
	ErrInvalidJSON = errors.New("gemini: response is not valid JSON")
	ErrEmptyAnswer = errors.New("gemini: empty answer")
)

const jsonInstructions = `

CRITICAL INSTRUCTIONS:
1. Respond ONLY with valid JSON - no markdown, no code blocks, no explanations
2. Do not include ` + "```json or ```" + ` markers
3. Ensure all JSON keys and string values are properly quoted
4. Do not add any text before or after the JSON object`

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

var safetySettings = []safetySetting{
	{"HARM_CATEGORY_HARASSMENT", "BLOCK_ONLY_HIGH"},
	{"HARM_CATEGORY_HATE_SPEECH", "BLOCK_ONLY_HIGH"},
	{"HARM_CATEGORY_SEXUALLY_EXPLICIT", "BLOCK_MEDIUM_AND_ABOVE"},
	{"HARM_CATEGORY_DANGEROUS_CONTENT", "BLOCK_ONLY_HIGH"},
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry delay; it doubles on every attempt.
	Backoff time.Duration
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.Code, e.Message)
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Client struct {
	cfg    Config
	client *http.Client
	logger *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

func (c *Client) Model() string {
	return c.cfg.Model
}

// GenerateJSON asks the model for a JSON answer to prompt under the given
// system instruction. Rate limiting and server errors are retried.
func (c *Client) GenerateJSON(ctx context.Context, prompt, system string) (json.RawMessage, error) {
	body, err := requestBody(prompt+jsonInstructions, system)
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.Backoff << (attempt - 1)
			c.logger.Warn("retrying generation", "attempt", attempt, "wait", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		text, err := c.generate(ctx, body)
		if err != nil {
			lastErr = err
			var se *StatusError
			if errors.As(err, &se) && se.retryable() {
				continue
			}
			return nil, err
		}
		c.logger.Debug("generation answer", "model", c.cfg.Model, "length", len(text))
		return CleanJSON(text)
	}
	return nil, fmt.Errorf("gemini: giving up after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) generate(ctx context.Context, body []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "err", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if reason := gjson.GetBytes(data, "promptFeedback.blockReason").String(); reason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", reason)
	}
	var text strings.Builder
	for _, part := range gjson.GetBytes(data, "candidates.0.content.parts").Array() {
		text.WriteString(part.Get("text").String())
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyAnswer
	}
	return text.String(), nil
}

func requestBody(prompt, system string) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	body := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			body, err = sjson.SetBytes(body, path, v)
		}
	}
	set("contents", []content{{Role: "user", Parts: []part{{Text: prompt}}}})
	if system != "" {
		set("systemInstruction", content{Parts: []part{{Text: system}}})
	}
	set("generationConfig.temperature", 0.3)
	set("generationConfig.topP", 0.9)
	set("generationConfig.topK", 30)
	set("generationConfig.maxOutputTokens", 16384)
	set("generationConfig.responseMimeType", "application/json")
	set("safetySettings", safetySettings)
	return body, err
}

// CleanJSON strips markdown fences and surrounding prose from a model answer
// and returns the outermost JSON object.
func CleanJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no object in answer", ErrInvalidJSON)
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(s), nil
}
