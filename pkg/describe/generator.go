// Package describe turns structured vision results into a short caption
// through a chat completion backend.
package describe

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/menta2k/image-assistant/pkg/client"
)

// MaxTokens is the output ceiling for every description request
const MaxTokens = 200

const (
	premiumSystemPrompt = "你是專業圖片描述生成助手,以繁體中文回答,請確實地描述圖片狀況,不要用記錄呈現的文字回答"
	freeSystemPrompt    = "你是專業圖片描述生成助手，以繁體中文回答，並且作簡短回覆就好，不要用記錄呈現的文字回答"
	userPromptPrefix    = "根據以下辨識結果生成一段描述："
)

// Config selects the model per tier
type Config struct {
	PremiumModel string
	FreeModel    string
	// Display names shown to the user for each tier
	PremiumName string
	FreeName    string
}

// DefaultConfig matches the public OpenAI models
func DefaultConfig() Config {
	return Config{
		PremiumModel: "gpt-4o",
		FreeModel:    "gpt-3.5-turbo",
		PremiumName:  "GPT-4o",
		FreeName:     "GPT-3.5",
	}
}

// Generator produces descriptions
type Generator struct {
	client client.Completer
	config Config
	logger *zap.Logger
}

// New creates a generator
func New(c client.Completer, config Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: c, config: config, logger: logger}
}

// Describe sends exactly one completion request. Failures come back as a
// user-visible message rather than an error.
func (g *Generator) Describe(ctx context.Context, result string, premium bool) string {
	req := g.request(result, premium)
	g.logger.Info("generating description", zap.String("model", req.Model), zap.Bool("premium", premium))

	text, err := g.client.Complete(ctx, req)
	if err != nil {
		g.logger.Error("description failed", zap.String("model", req.Model), zap.Error(err))
		return fmt.Sprintf("生成描述失敗: %v", err)
	}
	return text
}

// ModelName is the display name of the model used for the tier
func (g *Generator) ModelName(premium bool) string {
	if premium {
		return g.config.PremiumName
	}
	return g.config.FreeName
}

func (g *Generator) request(result string, premium bool) client.CompletionRequest {
	req := client.CompletionRequest{
		Model:     g.config.FreeModel,
		System:    freeSystemPrompt,
		Prompt:    userPromptPrefix + result,
		MaxTokens: MaxTokens,
	}
	if premium {
		req.Model = g.config.PremiumModel
		req.System = premiumSystemPrompt
	}
	return req
}
