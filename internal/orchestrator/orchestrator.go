package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/internal/chat"
	"github.com/voxd/voxd/internal/clipboard"
	"github.com/voxd/voxd/internal/llm"
	"github.com/voxd/voxd/internal/session"
	"github.com/voxd/voxd/internal/transcribe"
	"github.com/voxd/voxd/pkg/logger"
)

// Options selects the side effects for one session.
type Options struct {
	// Chat switches the cycle into conversational mode; everything below it
	// only applies to single-shot sessions.
	Chat *chat.Handler

	CopyToClipboard bool
	OutputFile      string
	UseLLM          bool
	Voice           chat.Voice
}

// Outcome is the tri-state result of one cycle: continue, stop cleanly, or
// stop with an error already reported on the status feed.
type Outcome struct {
	Continue bool
	Err      string
	Data     map[string]any
}

// Orchestrator runs the record → transcribe → respond pipeline for one
// session.
type Orchestrator struct {
	recorder *audio.Recorder
	stage    *transcribe.Stage
	provider llm.Provider
	saver    *llm.ResponseSaver
	clip     clipboard.Writer
	notify   session.Notifier
	logger   *logger.Logger
}

func New(
	recorder *audio.Recorder,
	stage *transcribe.Stage,
	provider llm.Provider,
	saver *llm.ResponseSaver,
	clip clipboard.Writer,
	notify session.Notifier,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		recorder: recorder,
		stage:    stage,
		provider: provider,
		saver:    saver,
		clip:     clip,
		notify:   notify,
		logger:   log.Named("pipeline"),
	}
}

// Cycle runs one full pipeline pass. Recoverable failures keep Continue true
// so an outer loop records again; every failure is reported as exactly one
// error status. Panics are contained here and never cross into the caller.
func (o *Orchestrator) Cycle(ctx context.Context, opts Options) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorf("pipeline panic: %v", r)
			msg := fmt.Sprintf("internal pipeline failure: %v", r)
			o.notify(session.StatusError, msg, nil)
			outcome = Outcome{Continue: false, Err: msg}
		}
	}()

	o.recorder.Calibrate(ctx)
	o.logger.Debugf("recording with silence threshold %.1f", o.recorder.Threshold())

	utt, ok := o.recorder.Record(ctx)
	if !ok || utt.Empty() {
		o.logger.Error("failed to record audio")
		o.notify(session.StatusError, "Failed to record audio", nil)
		return Outcome{Continue: true, Err: "failed to record audio"}
	}

	o.notify(session.StatusProcessing, "Processing audio...", nil)

	text, err := o.stage.Process(ctx, utt)
	if err != nil {
		msg := "Transcription failed"
		switch {
		case errors.Is(err, transcribe.ErrLowConfidence):
			msg = "Low confidence transcription discarded"
		case errors.Is(err, transcribe.ErrTooShort):
			msg = "Transcription too short"
		}
		o.logger.Errorf("%s: %v", msg, err)
		o.notify(session.StatusError, msg, nil)
		return Outcome{Continue: true, Err: msg}
	}

	if opts.Chat != nil {
		return o.chatTurn(ctx, opts.Chat, text)
	}
	return o.singleShot(ctx, opts, text)
}

// Run cycles until a stop is requested or the context ends. Cycle-local
// failures do not end the loop.
func (o *Orchestrator) Run(ctx context.Context, opts Options) {
	for {
		outcome := o.Cycle(ctx, opts)
		if !outcome.Continue || ctx.Err() != nil {
			return
		}
	}
}

func (o *Orchestrator) chatTurn(ctx context.Context, handler *chat.Handler, text string) Outcome {
	cont, response := handler.Process(ctx, text)
	data := map[string]any{
		"transcription": text,
	}
	if id := handler.ChatID(); id != "" {
		data["chat_id"] = id
	}
	if response != "" {
		data["response"] = response
	}
	return Outcome{Continue: cont, Data: data}
}

// singleShot applies side effects in a fixed order: clipboard, transcript
// file, exit check, model pass-through, voice.
func (o *Orchestrator) singleShot(ctx context.Context, opts Options, text string) Outcome {
	data := map[string]any{"transcription": text}

	if opts.CopyToClipboard {
		if err := o.clip.Copy(text); err != nil {
			o.logger.Errorf("failed to copy to clipboard: %v", err)
		} else {
			o.logger.Info("text copied to clipboard")
		}
	}

	if opts.OutputFile != "" {
		if err := SaveTranscription(text, opts.OutputFile); err != nil {
			o.logger.Errorf("saving transcription: %v", err)
		}
	}

	if transcribe.IsExitCommand(text) {
		o.logger.Info("exit command received")
		return Outcome{Continue: false, Data: data}
	}

	if opts.UseLLM {
		completion, err := o.provider.Chat(ctx, []llm.Message{{Role: "user", Content: text}})
		if err != nil {
			o.logger.Errorf("model processing failed: %v", err)
		} else {
			if o.saver != nil {
				o.saver.Save(completion.Content)
			}
			if opts.OutputFile != "" {
				if err := SaveTranscription(completion.Content, opts.OutputFile); err != nil {
					o.logger.Errorf("saving model response: %v", err)
				}
			}
			data["response"] = completion.Content
		}
	}

	if opts.Voice != nil {
		if err := opts.Voice.Speak(ctx, text); err != nil {
			o.logger.Errorf("voicing transcript: %v", err)
		}
	}

	return Outcome{Continue: true, Data: data}
}

// SaveTranscription writes text to a file, creating parent directories.
func SaveTranscription(text, path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write transcription: %w", err)
	}
	return nil
}
