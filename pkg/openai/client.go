package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/menta2k/image-assistant/pkg/client"
)

// DefaultTimeout bounds a completion when the caller set no deadline
const DefaultTimeout = 60 * time.Second

// Client is a chat completion backend for OpenAI and compatible servers
// such as llama.cpp's /v1/chat/completions.
type Client struct {
	client  *goopenai.Client
	timeout time.Duration
}

// NewClient creates a client. baseURL may be empty for the public OpenAI API.
func NewClient(apiKey, baseURL string, timeout time.Duration) (*Client, error) {
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("openai: api key is required when no base url is set")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client:  goopenai.NewClientWithConfig(cfg),
		timeout: timeout,
	}, nil
}

// Complete sends one chat completion request and returns the first choice
func (c *Client) Complete(ctx context.Context, req client.CompletionRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
