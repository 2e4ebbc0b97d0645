package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxd/voxd/pkg/logger"
)

// FileStore keeps one JSON file per chat id under a history directory.
type FileStore struct {
	dir    string
	logger *logger.Logger
}

func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chat history dir: %w", err)
	}
	return &FileStore{dir: dir, logger: log}, nil
}

// path validates the chat id before touching the filesystem; ids come in from
// query parameters.
func (s *FileStore) path(chatID string) (string, error) {
	if chatID == "" ||
		strings.ContainsAny(chatID, `/\`) ||
		strings.Contains(chatID, "..") {
		return "", fmt.Errorf("invalid chat id: %q", chatID)
	}
	return filepath.Join(s.dir, chatID+".json"), nil
}

func (s *FileStore) Load(chatID string) (*Session, error) {
	path, err := s.path(chatID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("read chat file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse chat file: %w", err)
	}
	if session.ChatID == "" {
		session.ChatID = chatID
	}
	return &session, nil
}

func (s *FileStore) Save(session *Session) error {
	path, err := s.path(session.ChatID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chat session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chat file: %w", err)
	}
	s.logger.Infof("saved chat history to: %s", path)
	return nil
}
