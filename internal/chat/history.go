package chat

import (
	"errors"
	"fmt"

	"github.com/voxd/voxd/pkg/logger"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrChatNotFound is returned when a chat id resolves to no stored session.
var ErrChatNotFound = errors.New("chat session not found")

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is a persisted conversation.
type Session struct {
	ChatID   string    `json:"chat_id"`
	Messages []Message `json:"messages"`
}

// Store persists chat sessions.
type Store interface {
	Load(chatID string) (*Session, error)
	Save(session *Session) error
}

// History is the in-memory view of one conversation backed by a Store. Every
// mutation appends in memory first and then persists, so the live session is
// never behind what a restarted process would load.
type History struct {
	store    Store
	logger   *logger.Logger
	chatID   string
	messages []Message
}

func NewHistory(store Store, log *logger.Logger) *History {
	return &History{
		store:  store,
		logger: log.Named("chat"),
	}
}

// ChatID is empty until the conversation is persisted for the first time.
func (h *History) ChatID() string {
	return h.chatID
}

// Load replaces the in-memory state with a stored session.
func (h *History) Load(chatID string) error {
	session, err := h.store.Load(chatID)
	if err != nil {
		return fmt.Errorf("load chat %s: %w", chatID, err)
	}
	h.chatID = session.ChatID
	h.messages = session.Messages
	h.logger.Infof("loaded chat history for id: %s", chatID)
	return nil
}

// Messages returns a copy of the conversation in stored order.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// OrderedMessages returns the conversation with every system message strictly
// before the rest, each group keeping its relative order. This is the shape
// sent to the model.
func (h *History) OrderedMessages() []Message {
	out := make([]Message, 0, len(h.messages))
	for _, m := range h.messages {
		if m.Role == RoleSystem {
			out = append(out, m)
		}
	}
	for _, m := range h.messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// SeedSystem appends a system message to a conversation that has not been
// persisted yet. It takes effect on the next initialization.
func (h *History) SeedSystem(content string) {
	h.messages = append(h.messages, Message{Role: RoleSystem, Content: content})
}

// Add appends a message and persists the session. The conversation must have
// been initialized or loaded first.
func (h *History) Add(role, content string) error {
	if h.chatID == "" {
		return fmt.Errorf("no current chat id set")
	}
	h.messages = append(h.messages, Message{Role: role, Content: content})
	if err := h.save(); err != nil {
		return err
	}
	h.logger.Debugf("added %s message to chat %s", role, h.chatID)
	return nil
}

// InitializeFromCompletion starts a persisted conversation from its first
// model exchange, adopting the completion id as the chat id. Previously
// seeded system messages are kept in front of the opening exchange.
func (h *History) InitializeFromCompletion(completionID, userMessage, assistantContent string) error {
	if completionID == "" {
		return fmt.Errorf("completion carried no id")
	}

	var system []Message
	for _, m := range h.messages {
		if m.Role == RoleSystem {
			system = append(system, m)
		}
	}

	h.chatID = completionID
	h.messages = append(system,
		Message{Role: RoleUser, Content: userMessage},
		Message{Role: RoleAssistant, Content: assistantContent},
	)

	if err := h.save(); err != nil {
		return err
	}
	h.logger.Infof("initialized new chat history with id: %s", h.chatID)
	return nil
}

func (h *History) save() error {
	session := &Session{ChatID: h.chatID, Messages: h.messages}
	if err := h.store.Save(session); err != nil {
		return fmt.Errorf("save chat %s: %w", h.chatID, err)
	}
	return nil
}
