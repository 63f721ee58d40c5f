// Package evaluator talks to an OpenAI-compatible chat-completions endpoint
// (Ollama, LM Studio, vLLM, hosted APIs) to draft practice tasks and to
// award per-criterion scores for writing and speaking.
package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/ielts-practice/internal/metrics"
	"github.com/mind-engage/ielts-practice/pkg/logger"
)

type Config struct {
	URL     string // e.g. "http://localhost:11434"
	Model   string
	APIKey  string // sent as a bearer token when set
	Timeout time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics
	log     logger.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option  { return func(c *Client) { c.http = h } }
func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }
func WithLogger(l logger.Logger) Option     { return func(c *Client) { c.log = l } }

func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EvalError is returned when the model could not be reached or never
// produced a usable reply.
type EvalError struct {
	Op      string
	Reason  string
	Wrapped error
}

func (e *EvalError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("evaluator %s: %s: %v", e.Op, e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("evaluator %s: %s", e.Op, e.Reason)
}

func (e *EvalError) Unwrap() error { return e.Wrapped }

// small models sometimes need a second try
const maxRetries = 2

// complete sends prompt and hands the first JSON object of the reply to
// decode. Unparsable or rejected replies are retried.
func (c *Client) complete(ctx context.Context, op, system, prompt string, decode func([]byte) error) (err error) {
	started := time.Now()
	defer func() { c.metrics.ObserveEvaluator(op, started, err) }()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if ctx.Err() != nil {
			return &EvalError{Op: op, Reason: "cancelled", Wrapped: ctx.Err()}
		}
		reply, err := c.chat(ctx, system, prompt)
		if err != nil {
			lastErr = err
			c.log.Warn(ctx, "model call failed", logger.String("op", op), logger.Int("attempt", attempt+1), logger.Error(err))
			continue
		}
		raw := extractJSON(reply)
		if raw == "" {
			lastErr = &EvalError{Op: op, Reason: "no JSON object in reply"}
			continue
		}
		if err := decode([]byte(raw)); err != nil {
			lastErr = &EvalError{Op: op, Reason: "unusable reply", Wrapped: err}
			c.log.Debug(ctx, "model reply rejected", logger.String("op", op), logger.Error(err))
			continue
		}
		return nil
	}
	return &EvalError{
		Op:      op,
		Reason:  fmt.Sprintf("failed after %d attempts", maxRetries),
		Wrapped: lastErr,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chat sends a single request and returns the raw text of the first choice.
func (c *Client) chat(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &EvalError{Op: "chat", Reason: "request failed", Wrapped: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &EvalError{Op: "chat", Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion")
	}
	return out.Choices[0].Message.Content, nil
}

// extractJSON finds the outermost JSON object in s, skipping braces inside
// quoted strings. Markdown fences around the object are ignored.
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' && start != -1 {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
