package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIChatComplete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"type\":\"none\"}\n"}}]}`))
	}))
	defer server.Close()

	c, err := NewOpenAIChat(Config{APIKey: "key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, CompleteOptions{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"none"}`, out)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hi", got.Messages[0].Content)
}

func TestOpenAIChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, types.ErrAuth},
		{"rate limited", http.StatusTooManyRequests, `{}`, types.ErrRateLimited},
		{"server error", http.StatusBadGateway, `{}`, types.ErrProviderUnavailable},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, err := NewOpenAIChat(Config{APIKey: "key", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = c.Complete(context.Background(), nil, CompleteOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewOpenAIChatRequiresKey(t *testing.T) {
	_, err := NewOpenAIChat(Config{})
	assert.ErrorIs(t, err, embedder.ErrNoProviderEnabled)
}

type staticChat string

func (s staticChat) Complete(context.Context, []Message, CompleteOptions) (string, error) {
	return string(s), nil
}

func (s staticChat) Model() string { return "static" }

func TestHandle(t *testing.T) {
	h := NewHandle(nil)
	_, err := h.Complete(context.Background(), nil, CompleteOptions{})
	assert.ErrorIs(t, err, embedder.ErrNoProviderEnabled)
	assert.Equal(t, "", h.Model())

	h.Rebind(staticChat("ok"))
	out, err := h.Complete(context.Background(), nil, CompleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "static", h.Model())
}
