package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxd/voxd/internal/llm"
	"github.com/voxd/voxd/pkg/logger"
)

// analyzePrompt opens a document-seeded conversation.
const analyzePrompt = "Please analyze the provided document and summarize its key points."

// Voice speaks a chat response. The implementation decides about streaming,
// saving and text optimization; a nil Voice means a text-only session.
type Voice interface {
	Speak(ctx context.Context, text string) error
}

var exitPhrases = map[string]struct{}{
	"exit": {},
	"quit": {},
	"stop": {},
}

// Handler runs the conversational turn protocol on top of a History and a
// model provider.
type Handler struct {
	history  *History
	provider llm.Provider
	saver    *llm.ResponseSaver
	voice    Voice
	logger   *logger.Logger
}

func NewHandler(history *History, provider llm.Provider, saver *llm.ResponseSaver, voice Voice, log *logger.Logger) *Handler {
	return &Handler{
		history:  history,
		provider: provider,
		saver:    saver,
		voice:    voice,
		logger:   log.Named("chat"),
	}
}

// ChatID is empty until the first persisted exchange.
func (h *Handler) ChatID() string {
	return h.history.ChatID()
}

// LoadExisting resumes a stored conversation; ErrChatNotFound passes through
// for the HTTP layer to map.
func (h *Handler) LoadExisting(chatID string) error {
	return h.history.Load(chatID)
}

// SeedDocument puts the document into the conversation as a system message.
// It is persisted with the first exchange.
func (h *Handler) SeedDocument(content string) {
	h.history.SeedSystem(fmt.Sprintf(
		"<<DOCUMENT CONTEXT>>\n%s\n<<END DOCUMENT CONTEXT>>\n\n"+
			"Consider the above document context when responding to queries. "+
			"You can reference specific parts when relevant.",
		content,
	))
}

// AnalyzeDocument runs the opening turn of a document-seeded conversation so
// the chat id exists before the caller returns.
func (h *Handler) AnalyzeDocument(ctx context.Context) (string, error) {
	return h.turn(ctx, analyzePrompt)
}

// Process handles one user message. The boolean reports whether the session
// should continue: an exit phrase ends it before any model call. A failed
// model turn keeps the session alive and persists nothing.
func (h *Handler) Process(ctx context.Context, text string) (bool, string) {
	if _, ok := exitPhrases[strings.ToLower(strings.TrimSpace(text))]; ok {
		h.logger.Info("exit command received in chat")
		return false, ""
	}

	response, err := h.turn(ctx, text)
	if err != nil {
		h.logger.Errorf("chat turn failed: %v", err)
		return true, ""
	}

	if h.voice != nil {
		if err := h.voice.Speak(ctx, response); err != nil {
			h.logger.Errorf("voicing chat response: %v", err)
		}
	}

	return true, response
}

func (h *Handler) turn(ctx context.Context, text string) (string, error) {
	messages := make([]llm.Message, 0, len(h.history.Messages())+1)
	for _, m := range h.history.OrderedMessages() {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: RoleUser, Content: text})

	completion, err := h.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	if h.saver != nil {
		h.saver.Save(completion.Content)
	}

	if h.history.ChatID() != "" {
		if err := h.history.Add(RoleUser, text); err != nil {
			h.logger.Errorf("persisting user message: %v", err)
		}
		if err := h.history.Add(RoleAssistant, completion.Content); err != nil {
			h.logger.Errorf("persisting assistant message: %v", err)
		}
	} else if err := h.history.InitializeFromCompletion(completion.ID, text, completion.Content); err != nil {
		h.logger.Errorf("initializing chat history: %v", err)
	}

	return completion.Content, nil
}
