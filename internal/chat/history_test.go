package chat

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/voxd/voxd/pkg/logger"
)

type memStore struct {
	sessions map[string]*Session
	saves    int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*Session)}
}

func (m *memStore) Load(chatID string) (*Session, error) {
	s, ok := m.sessions[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	return &cp, nil
}

func (m *memStore) Save(session *Session) error {
	m.saves++
	cp := *session
	cp.Messages = append([]Message(nil), session.Messages...)
	m.sessions[session.ChatID] = &cp
	return nil
}

func TestHistoryAddPersistsEveryMutation(t *testing.T) {
	store := newMemStore()
	h := NewHistory(store, logger.New(true))

	if err := h.InitializeFromCompletion("chat-1", "hello", "hi"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := h.Add(RoleUser, "how are you"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if store.saves != 2 {
		t.Fatalf("saves = %d, want one per mutation", store.saves)
	}
	stored := store.sessions["chat-1"]
	if len(stored.Messages) != 3 {
		t.Fatalf("stored messages = %d, want 3", len(stored.Messages))
	}
}

func TestHistoryAddWithoutChatID(t *testing.T) {
	h := NewHistory(newMemStore(), logger.New(true))
	if err := h.Add(RoleUser, "orphan"); err == nil {
		t.Fatal("adding without a chat id must fail")
	}
}

func TestInitializePreservesSystemMessages(t *testing.T) {
	store := newMemStore()
	h := NewHistory(store, logger.New(true))
	h.SeedSystem("doc context")

	if err := h.InitializeFromCompletion("chat-2", "summarize", "summary"); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	msgs := h.Messages()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want system + user + assistant", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != "doc context" {
		t.Fatalf("system message not preserved first: %+v", msgs[0])
	}
	if msgs[1].Role != RoleUser || msgs[2].Role != RoleAssistant {
		t.Fatalf("opening exchange out of order: %+v", msgs)
	}
}

func TestInitializeRequiresCompletionID(t *testing.T) {
	h := NewHistory(newMemStore(), logger.New(true))
	if err := h.InitializeFromCompletion("", "hello", "hi"); err == nil {
		t.Fatal("empty completion id must fail")
	}
}

func TestOrderedMessagesSystemFirst(t *testing.T) {
	store := newMemStore()
	store.sessions["chat-3"] = &Session{
		ChatID: "chat-3",
		Messages: []Message{
			{Role: RoleUser, Content: "u1"},
			{Role: RoleSystem, Content: "s1"},
			{Role: RoleAssistant, Content: "a1"},
			{Role: RoleSystem, Content: "s2"},
		},
	}

	h := NewHistory(store, logger.New(true))
	if err := h.Load("chat-3"); err != nil {
		t.Fatalf("load: %v", err)
	}

	ordered := h.OrderedMessages()
	want := []string{"s1", "s2", "u1", "a1"}
	for i, content := range want {
		if ordered[i].Content != content {
			t.Fatalf("ordered[%d] = %+v, want content %q", i, ordered[i], content)
		}
	}
}

func TestHistoryLoadMissing(t *testing.T) {
	h := NewHistory(newMemStore(), logger.New(true))
	if err := h.Load("nope"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("Load = %v, want ErrChatNotFound", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "chats"), logger.New(true))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	session := &Session{
		ChatID: "chat-file",
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi"},
		},
	}
	if err := store.Save(session); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("chat-file")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ChatID != "chat-file" || len(loaded.Messages) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Messages[0].Content != "hello" {
		t.Fatalf("message order lost: %+v", loaded.Messages)
	}
}

func TestFileStoreMissingIsNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), logger.New(true))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Load("ghost"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("Load = %v, want ErrChatNotFound", err)
	}
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), logger.New(true))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, id := range []string{"../escape", "a/b", `a\b`, ""} {
		if _, err := store.Load(id); err == nil {
			t.Fatalf("Load(%q) should be rejected", id)
		}
	}
}
