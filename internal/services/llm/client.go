package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"buildvault/internal/services"
)

const (
	// DefaultBaseURL is the OpenAI chat completions endpoint.
	DefaultBaseURL = "https://api.openai.com/v1/chat/completions"
	// DefaultModel mirrors the model the prompts were tuned against.
	DefaultModel = "gpt-4"

	jsonResponseType      = "json_object"
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5
)

// Config captures the runtime settings required to talk to the provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps a chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default attempt count (defaults to 5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithModel returns a copy of cfg using model when it is non-empty.
func (cfg Config) WithModel(model string) Config {
	if model = strings.TrimSpace(model); model != "" {
		cfg.Model = model
	}
	return cfg
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = DefaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = DefaultModel
	}
	return client
}

// Model returns the configured model name for logging.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete issues a free-text completion capped at maxTokens (0 = provider default).
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	payload, err := c.buildRequest("llm complete", systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	if maxTokens > 0 {
		payload.MaxTokens = maxTokens
	}
	payload.Temperature = 0.3
	return c.completeWithRetry(ctx, payload, "llm complete")
}

// CompleteJSON issues a JSON-only completion and returns the raw JSON payload.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload, err := c.buildRequest("llm complete json", systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	payload.ResponseFormat = &responseFormat{Type: jsonResponseType}
	return c.completeWithRetry(ctx, payload, "llm complete json")
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrParse, "llm", "health", "decode payload", err)
	}
	if !parsed.OK {
		return services.Wrap(services.ErrCompletion, "llm", "health", "unexpected response", nil)
	}
	return nil
}

func (c *Client) buildRequest(op, systemPrompt, userPrompt string) (chatRequest, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return chatRequest{}, services.Wrap(services.ErrValidation, "llm", op, "system prompt required", nil)
	case userPrompt == "":
		return chatRequest{}, services.Wrap(services.ErrValidation, "llm", op, "user prompt required", nil)
	case c.cfg.APIKey == "":
		return chatRequest{}, services.Wrap(services.ErrConfiguration, "llm", op, "api key required", nil)
	}
	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatResponseMessage `json:"message"`
		// Some gateways return the streaming shape even when stream=false.
		Delta        chatResponseMessage `json:"delta"`
		Text         string              `json:"text"`
		FinishReason string              `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatResponseMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function struct {
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

// content returns the first usable text from the response plus the finish reason.
func (r chatResponse) content() (string, string) {
	var finish string
	for _, choice := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(choice.FinishReason)
		}
		if text := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); text != "" {
			return text, finish
		}
		for _, call := range choice.Message.ToolCalls {
			if args := strings.TrimSpace(call.Function.Arguments); args != "" {
				return args, finish
			}
		}
	}
	return "", finish
}

func (r chatResponse) refusal() string {
	for _, choice := range r.Choices {
		if refusal := firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, snippet(e.Body))
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
	Body         string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("empty content (finish_reason=%q, refusal=%q, response_snippet=%s)", e.FinishReason, e.Refusal, snippet(e.Body))
}

func (c *Client) send(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", errors.New("api error: " + strings.TrimSpace(parsed.Error.Message))
	}
	text, finish := parsed.content()
	if text == "" {
		if len(parsed.Choices) == 0 {
			return "", errors.New("empty choices")
		}
		return "", &emptyContentError{FinishReason: finish, Refusal: parsed.refusal(), Body: string(body)}
	}
	return text, nil
}
