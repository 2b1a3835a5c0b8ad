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
)

const defaultBaseURL = "https://api.aimlapi.com/v1/chat/completions"

// Config describes an OpenAI-compatible chat completion endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	// Temperature applies to CompleteJSON as given; zero is not defaulted.
	Temperature float64
	MaxTokens   int
}

func (cfg Config) normalized() Config {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return cfg
}

func (cfg Config) timeout() time.Duration {
	if cfg.TimeoutSeconds > 0 {
		return time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return time.Minute
}

// Client generates page copy through a chat completion API such as AIML API
// or OpenRouter. Every request asks for a JSON object response.
type Client struct {
	cfg     Config
	http    *http.Client
	retry   retryPolicy
	sleeper func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryMaxAttempts sets how many times a request is sent before giving
// up. Callers that own their retry policy pass 1.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the first retry delay and the ceiling it doubles up to.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.ceiling = maxDelay
	}
}

// WithSleeper replaces the timer used between attempts.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.sleeper = sleeper }
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.normalized()
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.timeout()},
		retry: defaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompleteJSON sends one system and one user prompt and returns the model's
// raw reply. Decode it with DecodeLLMJSON.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "llm complete"
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", errors.New(op + ": system prompt required")
	case userPrompt == "":
		return "", errors.New(op + ": user prompt required")
	}
	return c.complete(ctx, op, c.newRequest(systemPrompt, userPrompt, c.cfg.Temperature, c.cfg.MaxTokens))
}

// HealthCheck asks the model for {"ok":true} to prove the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "llm health"
	reply, err := c.complete(ctx, op, c.newRequest("You must respond with JSON only.", `Respond with {"ok":true}`, 0, 0))
	if err != nil {
		return err
	}
	var ack struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(reply, &ack); err != nil {
		return fmt.Errorf("%s: parse payload: %w", op, err)
	}
	if !ack.OK {
		return errors.New(op + ": unexpected response")
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) newRequest(system, user string, temperature float64, maxTokens int) chatCompletionRequest {
	return chatCompletionRequest{
		Model:          c.cfg.Model,
		Messages:       []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}},
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
		Refusal string `json:"refusal"`
	} `json:"message"`
	// Text is the completion-style field some gateways still return.
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// content returns the first non-empty choice body. When none has one, the
// first finish reason and refusal explain why.
func (r chatCompletionResponse) content() (body, finishReason, refusal string) {
	for _, choice := range r.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = strings.TrimSpace(choice.Message.Refusal)
		}
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, finishReason, ""
		}
		if text := strings.TrimSpace(choice.Text); text != "" {
			return text, finishReason, ""
		}
	}
	return "", finishReason, refusal
}

// complete sends payload under the retry policy and returns the first
// non-empty reply.
func (c *Client) complete(ctx context.Context, op string, payload chatCompletionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New(op + ": api key required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}
	attempts := max(c.retry.attempts, 1)
	for attempt := 1; ; attempt++ {
		reply, err := c.post(ctx, op, body)
		if err == nil {
			return reply, nil
		}
		wait, again := c.retryDelay(ctx, err, attempt, attempts)
		if !again {
			return "", err
		}
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

// post performs a single round trip.
func (c *Client) post(ctx context.Context, op string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if ref := c.cfg.Referer; ref != "" {
		req.Header.Set("HTTP-Referer", ref)
		req.Header.Set("Referer", ref)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: http error (timeout=%s): %w", op, c.http.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw)), RetryAfter: wait}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", op)
	}
	reply, finish, refusal := completion.content()
	if reply == "" {
		return "", &emptyContentError{Op: op, FinishReason: finish, Refusal: refusal, Snippet: summarizePayloadSnippet(string(raw))}
	}
	return reply, nil
}
