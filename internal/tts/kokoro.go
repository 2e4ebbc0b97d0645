package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/pkg/logger"
)

// Synthesizer turns text into audio bytes in the requested format.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, format string) ([]byte, error)
}

// Kokoro drives a Kokoro TTS server through its OpenAI-compatible speech
// endpoint.
type Kokoro struct {
	client openai.Client
	model  string
	voice  string
	speed  float64
	logger *logger.Logger
}

func NewKokoro(cfg config.TTSConfig, log *logger.Logger) *Kokoro {
	return &Kokoro{
		client: openai.NewClient(
			option.WithBaseURL(cfg.BaseURL),
			option.WithAPIKey(cfg.APIKey),
		),
		model:  cfg.Model,
		voice:  cfg.Voice,
		speed:  cfg.Speed,
		logger: log.Named("kokoro"),
	}
}

// Synthesize implements Synthesizer.
func (k *Kokoro) Synthesize(ctx context.Context, text, format string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("no text to synthesize")
	}

	resp, err := k.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(k.model),
		Voice:          openai.AudioSpeechNewParamsVoice(k.voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(format),
		Speed:          openai.Float(k.speed),
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}

	k.logger.Debugf("synthesized %d bytes of %s audio", len(data), format)
	return data, nil
}
