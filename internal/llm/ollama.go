package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/presbrey/ollamafarm"

	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/pkg/logger"
)

// OllamaProvider drives a pool of ollama servers through ollamafarm, picking
// the first online one per request.
type OllamaProvider struct {
	farm   *ollamafarm.Farm
	model  string
	logger *logger.Logger
}

func NewOllamaProvider(cfg config.LLMConfig, log *logger.Logger) *OllamaProvider {
	farm := ollamafarm.New()

	for _, u := range strings.Split(cfg.BaseURL, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if err := farm.RegisterURL(u, nil); err != nil {
			log.Warnf("registering ollama server %s: %v", u, err)
		}
	}

	return &OllamaProvider{
		farm:   farm,
		model:  cfg.Model,
		logger: log.Named("ollama"),
	}
}

// Chat implements Provider. Ollama responses carry no completion id, so one
// is synthesized to keep new-chat initialization working.
func (o *OllamaProvider) Chat(ctx context.Context, messages []Message) (*Completion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	ollama := o.farm.First(&ollamafarm.Where{Offline: false})
	if ollama == nil {
		return nil, fmt.Errorf("no online ollama server for model %s", o.model)
	}

	apiMessages := make([]api.Message, len(messages))
	for i, m := range messages {
		apiMessages[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	stream := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: apiMessages,
		Stream:   &stream,
	}

	var content strings.Builder
	err := ollama.Client().Chat(ctx, &req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	return &Completion{
		ID:      "ollama-" + uuid.NewString(),
		Content: content.String(),
	}, nil
}
