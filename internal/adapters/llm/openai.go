package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAILLMAdapter implements ports.LLMService over the chat completions API.
type OpenAILLMAdapter struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAILLMAdapter creates the adapter. An empty base URL uses the public API.
func NewOpenAILLMAdapter(cfg OpenAIConfig, logger *zap.Logger) *OpenAILLMAdapter {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAILLMAdapter{
		client: openai.NewClient(clientOptions(cfg)...),
		model:  cfg.Model,
		logger: logger.With(zap.String("component", "openai_llm"), zap.String("model", cfg.Model)),
	}
}

func clientOptions(cfg OpenAIConfig) []option.RequestOption {
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return opts
}

// Generate produces a completion for the prompt.
func (a *OpenAILLMAdapter) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxOutputTokens))
	}
	if opts.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	a.logger.Debug("chat completion finished", zap.Int64("total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return statusError("OpenAI", apiErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("calling OpenAI: %w: %w", ports.ErrUpstreamUnavailable, err)
}
