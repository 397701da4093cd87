package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// Client performs structured chat calls whose output must match a JSON schema.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

// Response carries token usage of a structured call.
type Response struct {
	PromptTokens     int
	CompletionTokens int
}

type structuredClient struct {
	api   openai.Client
	model string
	cfg   Config
}

// New creates a structured-output client against an OpenAI-compatible
// endpoint. Strict JSON schema responses are not offered by the other
// provider, so cfg.Provider is not consulted.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	return &structuredClient{
		api:   openai.NewClient(openAIOptions(cfg)...),
		model: cfg.Model,
		cfg:   cfg,
	}, nil
}

// openAIOptions disables SDK retries; callers decide with IsRetryable.
func openAIOptions(cfg Config) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts
}

func (c *structuredClient) params(req Request) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		MaxTokens: openai.Int(int64(pickTokens(req.MaxTokens, c.cfg.MaxTokens, 1000))),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if t := pickTemp(req.Temperature, c.cfg.Temperature); t != nil {
		p.Temperature = openai.Float(*t)
	}
	return p
}

func (c *structuredClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	began := time.Now()
	completion, err := c.api.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}

	usage := &Response{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	}
	slog.DebugContext(ctx, "llm structured call finished",
		"model", c.model,
		"schema", req.SchemaName,
		"duration_ms", time.Since(began).Milliseconds(),
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens)

	if err := decodeFirstChoice(completion, result); err != nil {
		return nil, err
	}
	return usage, nil
}

func decodeFirstChoice(completion *openai.ChatCompletion, result any) error {
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return ErrEmptyCompletion
	}
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), result); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	return nil
}

func (c *structuredClient) Model() string {
	return c.model
}

// IsRetryable reports whether another attempt could succeed. Throttling,
// provider 5xx, empty completions and transport failures qualify.
// Cancellation and other 4xx responses do not.
func IsRetryable(ctx context.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrEmptyCompletion):
		return true
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		slog.WarnContext(ctx, "llm transport error", "error", err)
		return true
	}

	retry := apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	slog.WarnContext(ctx, "llm provider error",
		"status_code", apiErr.StatusCode,
		"error_code", apiErr.Code,
		"retryable", retry)
	return retry
}
