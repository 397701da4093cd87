package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
)

type openaiGenerator struct {
	client openai.Client
	model  string
	cfg    Config
}

func newOpenAIGenerator(cfg Config) *openaiGenerator {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openaiGenerator{
		client: openai.NewClient(openAIOptions(cfg)...),
		model:  model,
		cfg:    cfg,
	}
}

func (g *openaiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		MaxTokens: openai.Int(int64(pickTokens(req.MaxTokens, g.cfg.MaxTokens, 256))),
	}
	if t := pickTemp(req.Temperature, g.cfg.Temperature); t != nil {
		params.Temperature = openai.Float(*t)
	}

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}

	slog.DebugContext(ctx, "llm generate completed",
		"provider", ProviderOpenAI,
		"model", g.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func (g *openaiGenerator) Model() string {
	return g.model
}
