package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/internal/chat"
	"github.com/voxd/voxd/internal/clipboard"
	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/internal/document"
	"github.com/voxd/voxd/internal/llm"
	"github.com/voxd/voxd/internal/orchestrator"
	"github.com/voxd/voxd/internal/session"
	"github.com/voxd/voxd/internal/transcribe"
	"github.com/voxd/voxd/internal/tts"
	"github.com/voxd/voxd/pkg/logger"
)

// Deps bundles everything the HTTP surface needs to assemble a session
// pipeline.
type Deps struct {
	Settings    *config.Settings
	Registry    *session.Registry
	Stream      audio.InputStream
	Transcriber transcribe.Transcriber
	Provider    llm.Provider
	Saver       *llm.ResponseSaver
	Clip        clipboard.Writer
	Store       chat.Store
	Synth       tts.Synthesizer
	Player      tts.Player
	Logger      *logger.Logger
}

// Handler serves the session endpoints. The microphone is a single shared
// device, so pipeline goroutines serialize on mic.
type Handler struct {
	deps    Deps
	baseCtx context.Context
	mic     sync.Mutex
}

func New(baseCtx context.Context, deps Deps) *Handler {
	return &Handler{deps: deps, baseCtx: baseCtx}
}

// Health is the liveness endpoint.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse("ok", map[string]any{
		"live_sessions": h.deps.Registry.Live(),
	}))
}

// StartCopy launches a single-shot transcribe-to-clipboard session.
//
// POST /connect/copy/start
func (h *Handler) StartCopy(c *gin.Context) {
	sessionID := uuid.NewString()
	h.deps.Registry.Open(sessionID)

	go h.runSession(sessionID, orchestrator.Options{CopyToClipboard: true})

	c.JSON(http.StatusAccepted, successResponse("Copy session started", map[string]any{
		"session_id": sessionID,
		"mode":       "copy",
	}))
}

// StartChat launches a chat session.
//
// POST /connect/chat/start?mode=chat|voice|voice-save&optimize=&chat_id=&doc=
func (h *Handler) StartChat(c *gin.Context) {
	mode := c.DefaultQuery("mode", "chat")
	optimize := c.Query("optimize") == "true"
	chatID := c.Query("chat_id")
	docPath := c.Query("doc")

	if mode != "chat" && mode != "voice" && mode != "voice-save" {
		c.JSON(http.StatusBadRequest, errorResponse(
			"Invalid mode. Must be 'chat', 'voice', or 'voice-save'",
			ErrTypeInvalidParameter, "Invalid mode parameter"))
		return
	}

	sessionID := uuid.NewString()
	h.deps.Registry.Open(sessionID)
	notify := h.deps.Registry.Notifier(sessionID)

	chatHandler := h.buildChatHandler(mode, optimize, notify)

	// the document is validated before the chat branch so a bad path fails
	// the request no matter what else it carries
	var docContent string
	if docPath != "" {
		notify(session.StatusDocLoading, "Loading document context", nil)
		content, err := document.SafeRead(docPath)
		if err != nil {
			h.deps.Registry.Cleanup(sessionID)
			c.JSON(http.StatusBadRequest, errorResponse(
				"Invalid document path",
				ErrTypeDocumentError, err.Error()))
			return
		}
		docContent = content
	}

	if chatID != "" {
		if err := chatHandler.LoadExisting(chatID); err != nil {
			h.deps.Registry.Cleanup(sessionID)
			if errors.Is(err, chat.ErrChatNotFound) {
				c.JSON(http.StatusNotFound, errorResponse(
					"Failed to load chat session: "+chatID,
					ErrTypeChatError, "Chat session not found"))
				return
			}
			c.JSON(http.StatusInternalServerError, errorResponse(
				"Failed to load chat session",
				ErrTypeServerError, err.Error()))
			return
		}
	}

	if docContent != "" {
		chatHandler.SeedDocument(docContent)
		notify(session.StatusDocProcessing, "Processing with document context", nil)

		// new chats analyze before replying so the chat id exists; resumed
		// chats already have one, the document just joins their context
		if chatHandler.ChatID() == "" {
			if _, err := chatHandler.AnalyzeDocument(c.Request.Context()); err != nil {
				h.deps.Registry.Cleanup(sessionID)
				c.JSON(http.StatusInternalServerError, errorResponse(
					"Failed to analyze document",
					ErrTypeChatError, err.Error()))
				return
			}
		}
	}

	go h.runSession(sessionID, orchestrator.Options{Chat: chatHandler})

	data := map[string]any{
		"session_id": sessionID,
		"mode":       mode,
		"optimize":   optimize,
	}
	if id := chatHandler.ChatID(); id != "" {
		data["chat_id"] = id
	}
	if docPath != "" {
		data["doc_path"] = docPath
	}
	c.JSON(http.StatusAccepted, successResponse("Chat session started", data))
}

// buildChatHandler wires a chat pipeline for one session. Voice modes attach
// a speech output following the mode's plan.
func (h *Handler) buildChatHandler(mode string, optimize bool, notify session.Notifier) *chat.Handler {
	history := chat.NewHistory(h.deps.Store, h.deps.Logger)

	var voice chat.Voice
	if mode == "voice" || mode == "voice-save" {
		plan := tts.NewPlan(true, mode == "voice-save")
		voice = tts.NewOutput(
			h.deps.Synth, h.deps.Player, plan, optimize,
			h.deps.Settings.TTS.OutputFile, notify, h.deps.Logger,
		)
	}

	return chat.NewHandler(history, h.deps.Provider, h.deps.Saver, voice, h.deps.Logger)
}

// runSession executes one pipeline cycle on a background goroutine. A panic
// is reported as a terminal error and the session is torn down; otherwise the
// terminal event is published and the channel left for the observer to drain.
func (h *Handler) runSession(sessionID string, opts orchestrator.Options) {
	notify := h.deps.Registry.Notifier(sessionID)

	defer func() {
		if r := recover(); r != nil {
			h.deps.Logger.Errorf("session %s panicked: %v", sessionID, r)
			notify(session.StatusError, "Internal server error", nil)
			h.deps.Registry.Cleanup(sessionID)
		}
	}()

	h.mic.Lock()
	defer h.mic.Unlock()

	// release the device so the next session starts from live audio
	defer func() {
		if err := h.deps.Stream.Stop(); err != nil {
			h.deps.Logger.Warnf("stopping audio stream after session %s: %v", sessionID, err)
		}
	}()

	cfg := h.deps.Settings
	recorder := audio.NewRecorder(h.deps.Stream, cfg.Audio, notify, h.deps.Logger)
	stage := transcribe.NewStage(h.deps.Transcriber, cfg.STT, h.deps.Logger)
	orch := orchestrator.New(
		recorder, stage, h.deps.Provider, h.deps.Saver, h.deps.Clip, notify, h.deps.Logger,
	)

	outcome := orch.Cycle(h.baseCtx, opts)
	if outcome.Err != "" {
		// the cycle already published its error status
		return
	}

	message := "Session complete"
	if response, ok := outcome.Data["response"].(string); ok && response != "" {
		message = response
	}
	notify(session.StatusComplete, message, nil)
}
