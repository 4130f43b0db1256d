package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/pmt-assistant/internal/llm"
)

const apiVersion = "2023-06-01"

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Client completes prompts against the Anthropic Messages API. It does not
// embed; retrieval always goes through an OpenAI-compatible embedder.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-3-5-sonnet-latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "llm.anthropic"),
	}
}

func (c *Client) Model() string {
	return c.cfg.Model
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing API key for anthropic", llm.ErrUnavailable)
	}
	userText := strings.TrimSpace(prompt.User)
	if userText == "" {
		return "", nil
	}

	request := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    joinSystem(c.cfg.SystemPrompt, prompt.System),
		Messages:  []message{{Role: "user", Content: userText}},
	}
	if c.cfg.Temperature > 0 {
		temperature := c.cfg.Temperature
		request.Temperature = &temperature
	}

	var response messagesResponse
	if err := c.post(ctx, request, &response); err != nil {
		return "", err
	}
	c.logger.Debug("anthropic completion",
		"stop_reason", response.StopReason,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
	)
	if response.StopReason == "max_tokens" {
		c.logger.Warn("anthropic reply truncated", "max_tokens", c.cfg.MaxTokens)
	}

	var parts []string
	for _, block := range response.Content {
		if text := strings.TrimSpace(block.Text); block.Type == "text" && text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("no text content in anthropic response")
	}
	return strings.Join(parts, "\n\n"), nil
}

func (c *Client) post(ctx context.Context, payload messagesRequest, out *messagesResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal anthropic request: %w", err)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return c.statusError(res.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode anthropic response: %w", err)
	}
	return nil
}

// statusError maps rate limiting, overload and server faults to
// llm.ErrUnavailable; anything else is a request problem.
func (c *Client) statusError(status int, raw []byte) error {
	var apiErr errorResponse
	_ = json.Unmarshal(raw, &apiErr)
	kind := apiErr.Error.Type
	detail := strings.TrimSpace(apiErr.Error.Message)
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}
	c.logger.Error("anthropic request failed", "status", status, "type", kind, "message", detail)

	if status == http.StatusTooManyRequests || status >= 500 || kind == "overloaded_error" {
		return fmt.Errorf("%w: anthropic status %d %s", llm.ErrUnavailable, status, kind)
	}
	return fmt.Errorf("anthropic failed with status %d: %s", status, detail)
}

func joinSystem(base, extra string) string {
	base = strings.TrimSpace(base)
	extra = strings.TrimSpace(extra)
	switch {
	case base == "":
		return extra
	case extra == "":
		return base
	default:
		return base + "\n\n" + extra
	}
}
