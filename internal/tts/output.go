package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/internal/session"
	"github.com/voxd/voxd/pkg/logger"
)

// kokoroPCMRate is the sample rate Kokoro's raw PCM stream uses.
const kokoroPCMRate = 24000

// Output voices a response according to its plan: one synthesis call, fanned
// out to the speaker and/or a file.
type Output struct {
	synth      Synthesizer
	player     Player
	plan       Plan
	optimize   bool
	outputFile string
	notify     session.Notifier
	logger     *logger.Logger
}

func NewOutput(synth Synthesizer, player Player, plan Plan, optimize bool, outputFile string, notify session.Notifier, log *logger.Logger) *Output {
	return &Output{
		synth:      synth,
		player:     player,
		plan:       plan,
		optimize:   optimize,
		outputFile: outputFile,
		notify:     notify,
		logger:     log.Named("tts"),
	}
}

// Speak synthesizes the text once and delivers it to every active sink.
func (o *Output) Speak(ctx context.Context, text string) error {
	if o.plan.Silent() || text == "" {
		return nil
	}

	if o.optimize {
		text = Optimize(text)
	}

	data, err := o.synth.Synthesize(ctx, text, o.plan.Format)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	if o.plan.ToSpeakers {
		if o.notify != nil {
			o.notify(session.StatusStreaming, "Streaming audio response", nil)
		}
		if err := o.player.Play(ctx, data); err != nil {
			return fmt.Errorf("play: %w", err)
		}
	}

	if o.plan.ToFile {
		if err := o.saveAudio(data); err != nil {
			return err
		}
	}

	return nil
}

// saveAudio writes the synthesized audio; raw PCM gets a WAV header so the
// file is playable on its own.
func (o *Output) saveAudio(data []byte) error {
	path := o.outputFile
	payload := data
	if o.plan.Format == FormatPCM {
		payload = audio.WAVFromPCM(data, kokoroPCMRate)
		if ext := filepath.Ext(path); ext != ".wav" {
			path = path[:len(path)-len(ext)] + ".wav"
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audio output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}

	o.logger.Infof("speech output saved to: %s", path)
	return nil
}
