package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/internal/chat"
	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/internal/llm"
	"github.com/voxd/voxd/internal/session"
	"github.com/voxd/voxd/internal/transcribe"
	"github.com/voxd/voxd/pkg/logger"
)

type loopStream struct {
	stops int32
}

func (*loopStream) Start() error { return nil }
func (*loopStream) Close() error { return nil }

func (s *loopStream) Stop() error {
	atomic.AddInt32(&s.stops, 1)
	return nil
}

// Read yields silence so any recording ends quickly.
func (*loopStream) Read() (audio.Frame, error) {
	return make(audio.Frame, 4), nil
}

type fixedTranscriber struct {
	text string
}

func (f *fixedTranscriber) Transcribe(_ context.Context, _ audio.Utterance) (*transcribe.Result, error) {
	return &transcribe.Result{Text: f.text}, nil
}

type fixedProvider struct {
	id      string
	content string
}

func (f *fixedProvider) Chat(_ context.Context, _ []llm.Message) (*llm.Completion, error) {
	return &llm.Completion{ID: f.id, Content: f.content}, nil
}

type nopClipboard struct{}

func (nopClipboard) Copy(string) error { return nil }

type memStore struct {
	sessions map[string]*chat.Session
}

func (m *memStore) Load(chatID string) (*chat.Session, error) {
	s, ok := m.sessions[chatID]
	if !ok {
		return nil, chat.ErrChatNotFound
	}
	return s, nil
}

func (m *memStore) Save(s *chat.Session) error {
	m.sessions[s.ChatID] = s
	return nil
}

type nopSynth struct{}

func (nopSynth) Synthesize(_ context.Context, _, _ string) ([]byte, error) {
	return []byte{0, 0}, nil
}

type nopPlayer struct{}

func (nopPlayer) Play(_ context.Context, _ []byte) error { return nil }

func testSettings() *config.Settings {
	return &config.Settings{
		Audio: config.AudioConfig{
			SampleRate:              16000,
			ChunkSize:               4,
			SilenceChunks:           3,
			CalibrationFrames:       2,
			CalibrationBuffer:       50,
			DefaultSilenceThreshold: 500,
		},
		STT: config.STTConfig{
			MinWords:             2,
			LowConfidencePhrases: []string{"ok"},
		},
		Status: config.StatusConfig{KeepaliveSecs: 1},
		Debug:  true,
	}
}

func newTestRouter(t *testing.T, transcript string) (*gin.Engine, *session.Registry, *memStore, *loopStream) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New(true)
	registry := session.NewRegistry(log)
	store := &memStore{sessions: make(map[string]*chat.Session)}
	stream := &loopStream{}

	h := New(context.Background(), Deps{
		Settings:    testSettings(),
		Registry:    registry,
		Stream:      stream,
		Transcriber: &fixedTranscriber{text: transcript},
		Provider:    &fixedProvider{id: "chatcmpl-t", content: "model says hi"},
		Clip:        nopClipboard{},
		Store:       store,
		Synth:       nopSynth{},
		Player:      nopPlayer{},
		Logger:      log,
	})

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ws/status/:session_id", h.StatusWebSocket)
	r.POST("/connect/copy/start", h.StartCopy)
	r.POST("/connect/chat/start", h.StartChat)
	r.GET("/connect/status/:session_id", h.StreamStatus)
	r.GET("/connect/status/current/:session_id", h.CurrentStatus)
	return r, registry, store, stream
}

func doRequest(r *gin.Engine, method, target string) (*httptest.ResponseRecorder, Envelope) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	var env Envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func waitForTerminal(t *testing.T, registry *session.Registry, sessionID string) session.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := registry.LastEvent(sessionID); ok && ev.Status.Terminal() {
			return ev
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session never reached a terminal status")
	return session.Event{}
}

func TestHealth(t *testing.T) {
	r, _, _, _ := newTestRouter(t, "hello world")
	w, env := doRequest(r, http.MethodGet, "/health")
	if w.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("health = %d %+v", w.Code, env)
	}
}

func TestStartChatInvalidMode(t *testing.T) {
	r, registry, _, _ := newTestRouter(t, "hello world")
	w, env := doRequest(r, http.MethodPost, "/connect/chat/start?mode=yodel")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
	if env.Error == nil || env.Error.Type != ErrTypeInvalidParameter {
		t.Fatalf("error = %+v", env.Error)
	}
	if registry.Live() != 0 {
		t.Fatalf("live sessions = %d after rejected start", registry.Live())
	}
}

func TestStartChatUnknownChatID(t *testing.T) {
	r, registry, _, _ := newTestRouter(t, "hello world")
	w, env := doRequest(r, http.MethodPost, "/connect/chat/start?chat_id=ghost")

	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d", w.Code)
	}
	if env.Error == nil || env.Error.Type != ErrTypeChatError {
		t.Fatalf("error = %+v", env.Error)
	}
	if registry.Live() != 0 {
		t.Fatalf("live sessions = %d after rejected start", registry.Live())
	}
}

func TestStartChatBadDocument(t *testing.T) {
	r, registry, _, _ := newTestRouter(t, "hello world")
	w, env := doRequest(r, http.MethodPost, "/connect/chat/start?doc=/does/not/exist.txt")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
	if env.Error == nil || env.Error.Type != ErrTypeDocumentError {
		t.Fatalf("error = %+v", env.Error)
	}
	if registry.Live() != 0 {
		t.Fatalf("live sessions = %d after rejected start", registry.Live())
	}
}

func TestStartCopyRunsToCompletion(t *testing.T) {
	r, registry, _, _ := newTestRouter(t, "copy this text")
	w, env := doRequest(r, http.MethodPost, "/connect/copy/start")

	if w.Code != http.StatusAccepted {
		t.Fatalf("code = %d", w.Code)
	}
	sessionID, _ := env.Data["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("data = %+v", env.Data)
	}

	ev := waitForTerminal(t, registry, sessionID)
	if ev.Status != session.StatusComplete {
		t.Fatalf("terminal = %+v", ev)
	}
}

func TestStartChatNewRunsChatTurn(t *testing.T) {
	r, registry, store, _ := newTestRouter(t, "tell me a story")
	w, env := doRequest(r, http.MethodPost, "/connect/chat/start?mode=chat")

	if w.Code != http.StatusAccepted {
		t.Fatalf("code = %d: %+v", w.Code, env)
	}
	sessionID := env.Data["session_id"].(string)
	if _, ok := env.Data["chat_id"]; ok {
		t.Fatal("plain new chats have no chat id at start time")
	}

	ev := waitForTerminal(t, registry, sessionID)
	if ev.Status != session.StatusComplete {
		t.Fatalf("terminal = %+v", ev)
	}
	// the turn was persisted under the completion id
	if _, ok := store.sessions["chatcmpl-t"]; !ok {
		t.Fatalf("chat not persisted, store = %v", store.sessions)
	}
}

func TestSessionReleasesAudioStream(t *testing.T) {
	r, registry, _, stream := newTestRouter(t, "copy this text")
	_, env := doRequest(r, http.MethodPost, "/connect/copy/start")
	sessionID := env.Data["session_id"].(string)

	waitForTerminal(t, registry, sessionID)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&stream.stops) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("audio stream still held after the session ended")
}

func TestStartChatBadDocumentWithChatID(t *testing.T) {
	r, registry, _, _ := newTestRouter(t, "hello world")
	w, env := doRequest(r, http.MethodPost, "/connect/chat/start?chat_id=ghost&doc=/does/not/exist.txt")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
	if env.Error == nil || env.Error.Type != ErrTypeDocumentError {
		t.Fatalf("error = %+v, want the document rejected before the chat lookup", env.Error)
	}
	if registry.Live() != 0 {
		t.Fatalf("live sessions = %d after rejected start", registry.Live())
	}
}

func TestStartChatExistingWithDocument(t *testing.T) {
	r, registry, store, _ := newTestRouter(t, "what does it say")
	store.sessions["c9"] = &chat.Session{ChatID: "c9", Messages: []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}}

	docPath := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(docPath, []byte("quarterly numbers"), 0o644); err != nil {
		t.Fatalf("writing doc: %v", err)
	}

	w, env := doRequest(r, http.MethodPost,
		"/connect/chat/start?mode=chat&chat_id=c9&doc="+url.QueryEscape(docPath))
	if w.Code != http.StatusAccepted {
		t.Fatalf("code = %d: %+v", w.Code, env)
	}
	if id, _ := env.Data["chat_id"].(string); id != "c9" {
		t.Fatalf("chat_id = %v, want the resumed chat's id", env.Data["chat_id"])
	}

	sessionID := env.Data["session_id"].(string)
	waitForTerminal(t, registry, sessionID)

	// the document joined the resumed conversation as a system message
	found := false
	for _, m := range store.sessions["c9"].Messages {
		if m.Role == chat.RoleSystem && strings.Contains(m.Content, "quarterly numbers") {
			found = true
		}
	}
	if !found {
		t.Fatalf("document context not persisted, messages = %+v", store.sessions["c9"].Messages)
	}
}

func TestCurrentStatusUnknownSession(t *testing.T) {
	r, _, _, _ := newTestRouter(t, "hello world")
	w, _ := doRequest(r, http.MethodGet, "/connect/status/current/ghost")
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestCurrentStatusReflectsLastEvent(t *testing.T) {
	r, registry, _, _ := newTestRouter(t, "hello world")
	registry.Open("s1")
	registry.Publish(session.Event{SessionID: "s1", Status: session.StatusRecording, Message: "Recording..."})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/connect/status/current/s1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var ev session.Event
	json.Unmarshal(w.Body.Bytes(), &ev)
	if ev.Status != session.StatusRecording {
		t.Fatalf("event = %+v", ev)
	}
}

func TestStreamStatusUnknownSession(t *testing.T) {
	r, _, _, _ := newTestRouter(t, "hello world")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/connect/status/ghost", nil)
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "Session not found") {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestStreamStatusDeliversEventsAndTerminates(t *testing.T) {
	r, registry, _, _ := newTestRouter(t, "hello world")
	srv := httptest.NewServer(r)
	defer srv.Close()

	registry.Open("live")
	go func() {
		time.Sleep(50 * time.Millisecond)
		registry.Publish(session.Event{SessionID: "live", Status: session.StatusRecording, Message: "Recording..."})
		registry.Publish(session.Event{SessionID: "live", Status: session.StatusComplete, Message: "done"})
	}()

	resp, err := http.Get(srv.URL + "/connect/status/live")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		t.Fatalf("scan: %v", err)
	}

	body := strings.Join(lines, "\n")
	if !strings.Contains(body, "retry:") {
		t.Fatalf("missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event:recording") && !strings.Contains(body, "event: recording") {
		t.Fatalf("missing recording event: %q", body)
	}
	if !strings.Contains(body, "termination") {
		t.Fatalf("missing termination event: %q", body)
	}
	if registry.Live() != 0 {
		t.Fatalf("live = %d, session should be cleaned up", registry.Live())
	}
}
