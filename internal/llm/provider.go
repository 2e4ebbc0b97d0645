package llm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxd/voxd/pkg/logger"
)

// Message is one turn in the wire format language-model backends expect.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is a model response. ID doubles as the chat id when a new
// conversation is initialized from its first completion.
type Completion struct {
	ID      string
	Content string
}

// Provider is a language-model backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (*Completion, error)
}

// ResponseSaver appends model responses to a running output file.
type ResponseSaver struct {
	path   string
	logger *logger.Logger
}

func NewResponseSaver(path string, log *logger.Logger) *ResponseSaver {
	return &ResponseSaver{path: path, logger: log}
}

// Save appends one response. A disabled saver (empty path) and write failures
// are both non-fatal; the response has already been delivered.
func (s *ResponseSaver) Save(text string) {
	if s.path == "" {
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Errorf("creating response output dir: %v", err)
			return
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Errorf("opening response output file: %v", err)
		return
	}
	defer f.Close()

	entry := fmt.Sprintf("\nResponse: %s\n%s\n", text, strings.Repeat("-", 50))
	if _, err := f.WriteString(entry); err != nil {
		s.logger.Errorf("saving response: %v", err)
		return
	}
	s.logger.Infof("response saved to: %s", s.path)
}
