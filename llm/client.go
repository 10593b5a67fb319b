// Package llm is a minimal client for OpenAI-compatible chat
// completions endpoints (vLLM, OpenAI, Ollama's compat layer). The
// crawler treats the model as a synchronous request/response capability
// with a short timeout; retries are the caller's business.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config configures a Client.
type Config struct {
	// BaseURL of the endpoint, without the /v1/chat/completions suffix.
	BaseURL string

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	// Timeout bounds each completion call. Default: 30s.
	Timeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client calls a chat completions endpoint.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a Client. BaseURL must be set.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete sends one chat completions request and returns the full
// response. Non-2xx statuses and empty choice lists are errors.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	c.cfg.Logger.Debug("llm: sending completion request",
		"model", req.Model,
		"messages", len(req.Messages),
		"payload_size", len(reqJSON))

	startTime := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(startTime)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.cfg.Logger.Error("llm: endpoint error",
			"status", resp.StatusCode,
			"body", string(body),
			"duration", duration)
		return nil, fmt.Errorf("llm: endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("llm: response has no choices")
	}

	c.cfg.Logger.Debug("llm: completion received",
		"duration", duration,
		"tokens", out.Usage.TotalTokens,
		"finish_reason", out.Choices[0].FinishReason)

	return &out, nil
}

// CompleteText is Complete narrowed to the first choice's content.
func (c *Client) CompleteText(ctx context.Context, req Request) (string, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}
