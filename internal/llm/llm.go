// Package llm provides chat-completion access to an OpenAI-compatible
// language model. vaultrag uses it only for short structured classification
// calls, so responses are returned as raw text for the caller to parse.
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
	"sync"
	"time"

	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/pkg/types"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second

	providerName = "openai-chat"
)

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("llm returned no choices")

// Message is one chat turn.
type Message struct {
	Role    string // system, user or assistant
	Content string
}

// CompleteOptions tunes a single completion.
type CompleteOptions struct {
	MaxTokens   int
	Temperature float64
	JSON        bool // Request a JSON object response
}

// ChatProvider completes a conversation.
type ChatProvider interface {
	Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error)
	Model() string
}

// Config holds configuration for the OpenAI chat client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIChat talks to POST {base_url}/chat/completions.
type OpenAIChat struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
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

// NewOpenAIChat creates a chat client.
func NewOpenAIChat(cfg Config) (*OpenAIChat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: %w", embedder.ErrNoProviderEnabled)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OpenAIChat{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIChat) Model() string { return c.model }

// Complete sends messages and returns the first choice's content.
func (c *OpenAIChat) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    make([]chatMessage, len(messages)),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for i, m := range messages {
		reqBody.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	if opts.JSON {
		reqBody.ResponseFormat = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &types.ProviderError{Provider: providerName, Message: err.Error(), Kind: types.ErrProviderUnavailable}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &types.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			RetryAfter: embedder.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Message:    strings.TrimSpace(string(body)),
			Kind:       types.ClassifyStatus(resp.StatusCode),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// Handle holds the active ChatProvider and is rebound on credential change.
type Handle struct {
	mu      sync.RWMutex
	current ChatProvider
}

// NewHandle wraps p, which may be nil when no credentials are configured.
func NewHandle(p ChatProvider) *Handle {
	return &Handle{current: p}
}

// Rebind swaps in a new provider.
func (h *Handle) Rebind(p ChatProvider) {
	h.mu.Lock()
	h.current = p
	h.mu.Unlock()
}

// Complete delegates to the active provider.
func (h *Handle) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	h.mu.RLock()
	p := h.current
	h.mu.RUnlock()
	if p == nil {
		return "", fmt.Errorf("llm: %w", embedder.ErrNoProviderEnabled)
	}
	return p.Complete(ctx, messages, opts)
}

// Model returns the active provider's model, or "" when unset.
func (h *Handle) Model() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return ""
	}
	return h.current.Model()
}
