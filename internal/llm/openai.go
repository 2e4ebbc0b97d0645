package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/pkg/logger"
)

// errorBodyLimit caps how much of an upstream error body is surfaced.
const errorBodyLimit = 500

// OpenAIClient speaks the chat-completions API of any OpenAI-compatible
// server (LM Studio, llama.cpp, vLLM and friends).
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	logger      *logger.Logger
}

func NewOpenAIClient(cfg config.LLMConfig, log *logger.Logger) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(
			option.WithBaseURL(cfg.BaseURL),
			option.WithAPIKey(cfg.APIKey),
			option.WithRequestTimeout(cfg.Timeout()),
		),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		logger:      log.Named("llm"),
	}
}

// Chat implements Provider, sending the full message history and returning
// the first choice.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (*Completion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, toCompletionParam(m))
	}

	c.logger.Debugf("chat request with %d messages", len(messages))

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    converted,
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			detail := apierr.RawJSON()
			if detail == "" {
				detail = apierr.Message
			}
			if len(detail) > errorBodyLimit {
				detail = detail[:errorBodyLimit]
			}
			c.logger.Errorf("model API error (status %d): %s", apierr.StatusCode, detail)
			return nil, fmt.Errorf("model API returned status %d: %s", apierr.StatusCode, detail)
		}
		return nil, fmt.Errorf("send request: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("response carried no choices")
	}

	return &Completion{
		ID:      completion.ID,
		Content: completion.Choices[0].Message.Content,
	}, nil
}

func toCompletionParam(m Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case "system":
		return openai.SystemMessage(m.Content)
	case "assistant":
		return openai.AssistantMessage(m.Content)
	}
	return openai.UserMessage(m.Content)
}
