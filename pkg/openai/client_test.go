package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-assistant/pkg/client"
)

func TestNewClientRequiresKeyOrBaseURL(t *testing.T) {
	_, err := NewClient("", "", 0)
	assert.Error(t, err)

	_, err = NewClient("", "http://localhost:8080/v1", 0)
	assert.NoError(t, err)
}

func TestComplete(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"一隻橘貓"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient("sk-test", srv.URL+"/v1/", time.Second)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), client.CompletionRequest{
		Model:     "gpt-4o",
		System:    "system prompt",
		Prompt:    "user prompt",
		MaxTokens: 200,
	})
	require.NoError(t, err)
	assert.Equal(t, "一隻橘貓", out)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 200, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "system prompt", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient("sk-test", srv.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), client.CompletionRequest{Model: "gpt-3.5-turbo"})
	assert.EqualError(t, err, "no choices in response")
}
