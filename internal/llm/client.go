package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/cinequery/internal/domain/pipeline"
)

const (
	DefaultModel      = "gemini-2.5-flash"
	DefaultEndpoint   = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultMaxRetries = 4
	DefaultBaseDelay  = time.Second

	maxBackoff      = 8 * time.Second
	maxErrorBodyLen = 300
)

var (
	// ErrMissingAPIKey is returned before any call when no key is configured.
	ErrMissingAPIKey = errors.New("gemini API key not configured")
	// ErrEmptyResponse indicates a response without candidate text.
	ErrEmptyResponse = errors.New("gemini returned no text")
)

// StatusError is a non-200 answer from the Gemini API.
type StatusError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini API returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the call may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Config holds Gemini client configuration.
type Config struct {
	APIKey     string
	Model      string // empty = DefaultModel
	Endpoint   string // empty = DefaultEndpoint
	MaxRetries int    // retries after the first attempt; negative disables
	BaseDelay  time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a new Gemini client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Per-call deadlines come from the caller's context.
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Request is one generateContent call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	// ResponseSchema switches the call to JSON mode when set.
	ResponseSchema map[string]any
}

// Generate returns the text of the first candidate. Transport failures,
// timeouts and exhausted 429/5xx retries are wrapped with pipeline.ErrNetwork.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	body, err := json.Marshal(buildPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt, lastErr)
			c.logger.Warn("gemini request failed, retrying", "attempt", attempt, "delay", delay, "error", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return "", networkError(lastErr)
			}
		}

		text, err := c.do(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return "", networkError(lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", c.cfg.Endpoint, c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pipeline.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", pipeline.ErrNetwork, err)
	}

	var parsed generateResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: truncate(strings.TrimSpace(string(data)), maxErrorBodyLen)}
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			statusErr.Message = parsed.Error.Message
		}
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			statusErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return "", statusErr
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to parse gemini response: %w", decodeErr)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	delay := c.cfg.BaseDelay << (attempt - 1)
	var statusErr *StatusError
	if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > delay {
		delay = statusErr.RetryAfter
	}
	return min(delay, maxBackoff)
}

func retryable(err error) bool {
	if errors.Is(err, pipeline.ErrNetwork) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Temporary()
}

// networkError marks errors that mean the service could not serve us.
func networkError(err error) error {
	if err == nil || errors.Is(err, pipeline.ErrNetwork) {
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Temporary() {
		return fmt.Errorf("%w: %w", pipeline.ErrNetwork, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", pipeline.ErrNetwork, err)
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64        `json:"temperature"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func buildPayload(req Request) generateRequest {
	payload := generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{Temperature: req.Temperature},
	}
	if req.System != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.ResponseSchema != nil {
		payload.GenerationConfig.ResponseMimeType = "application/json"
		payload.GenerationConfig.ResponseSchema = req.ResponseSchema
	}
	return payload
}
