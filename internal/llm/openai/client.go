package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/pmt-assistant/internal/llm"
)

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbedModel     string
	Timeout        time.Duration
	SystemPrompt   string
	ReadyTimeout   time.Duration
	ReadyPollEvery time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	readyMu sync.Mutex
	ready   bool
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "llama3"
	}
	if strings.TrimSpace(cfg.EmbedModel) == "" {
		cfg.EmbedModel = "all-minilm"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ReadyPollEvery <= 0 {
		cfg.ReadyPollEvery = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "llm.openai"),
	}
}

func (c *Client) Model() string {
	return c.cfg.Model
}

func (c *Client) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	if requiresAPIKey(c.cfg.BaseURL) && strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing API key for %s", llm.ErrUnavailable, c.cfg.BaseURL)
	}
	userText := strings.TrimSpace(prompt.User)
	if userText == "" {
		return "", nil
	}
	if err := c.WaitReady(ctx); err != nil {
		return "", err
	}

	messages := []map[string]string{}
	systemPrompt := strings.TrimSpace(c.cfg.SystemPrompt)
	if strings.TrimSpace(prompt.System) != "" {
		if systemPrompt != "" {
			systemPrompt += "\n\n"
		}
		systemPrompt += strings.TrimSpace(prompt.System)
	}
	if systemPrompt != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": systemPrompt,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": userText,
	})

	payload := map[string]any{
		"model":    c.cfg.Model,
		"messages": messages,
		"stream":   false,
	}
	var response chatCompletionResponse
	if err := c.postJSON(ctx, "/chat/completions", payload, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai response returned no choices")
	}
	return sanitizeModelReply(response.Choices[0].Message.Content), nil
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if requiresAPIKey(c.cfg.BaseURL) && strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing API key for %s", llm.ErrUnavailable, c.cfg.BaseURL)
	}
	payload := map[string]any{
		"model": c.cfg.EmbedModel,
		"input": texts,
	}
	var response embeddingsResponse
	if err := c.postJSON(ctx, "/embeddings", payload, &response); err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings returned %d vectors for %d inputs", len(response.Data), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for position, item := range response.Data {
		index := item.Index
		if index < 0 || index >= len(texts) || vectors[index] != nil {
			index = position
		}
		vectors[index] = item.Embedding
	}
	return vectors, nil
}

// WaitReady polls GET {base}/models until the server answers or the ready
// timeout elapses. A zero ReadyTimeout skips the wait. Success is cached.
func (c *Client) WaitReady(ctx context.Context) error {
	if c.cfg.ReadyTimeout <= 0 {
		return nil
	}
	c.readyMu.Lock()
	defer c.readyMu.Unlock()
	if c.ready {
		return nil
	}

	deadline := time.Now().Add(c.cfg.ReadyTimeout)
	ticker := time.NewTicker(c.cfg.ReadyPollEvery)
	defer ticker.Stop()
	attempt := 0
	for {
		attempt++
		err := c.ping(ctx)
		if err == nil {
			c.ready = true
			c.logger.Info("model server ready", "attempts", attempt)
			return nil
		}
		c.logger.Debug("model server not ready", "attempt", attempt, "error", err)
		if time.Now().Add(c.cfg.ReadyPollEvery).After(deadline) {
			return fmt.Errorf("%w: model server at %s not ready after %s", llm.ErrUnavailable, c.cfg.BaseURL, c.cfg.ReadyTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", llm.ErrUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) ping(ctx context.Context) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if apiKey := strings.TrimSpace(c.cfg.APIKey); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("models endpoint returned status %d", res.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal openai request: %w", err)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if apiKey := strings.TrimSpace(c.cfg.APIKey); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("openai request failed", "path", path, "status", res.StatusCode, "body", strings.TrimSpace(string(respBody)))
		return fmt.Errorf("openai %s failed with status %d", path, res.StatusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode openai response: %w", err)
	}
	return nil
}

var (
	thinkBlockPattern = regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think>`)
	thinkFencePattern = regexp.MustCompile("(?is)```think\\s*.*?```")
)

func sanitizeModelReply(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	trimmed = thinkBlockPattern.ReplaceAllString(trimmed, "")
	trimmed = thinkFencePattern.ReplaceAllString(trimmed, "")
	trimmed = strings.ReplaceAll(trimmed, "<think>", "")
	trimmed = strings.ReplaceAll(trimmed, "</think>", "")
	return strings.TrimSpace(trimmed)
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// requiresAPIKey exempts local model servers.
func requiresAPIKey(baseURL string) bool {
	lower := strings.ToLower(baseURL)
	if strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") || strings.Contains(lower, "ollama") {
		return false
	}
	return true
}
