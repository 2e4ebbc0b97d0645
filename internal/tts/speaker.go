package tts

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/pkg/logger"
)

// Player plays raw 16-bit mono PCM.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

// Speaker is the portaudio output sink.
type Speaker struct {
	sampleRate int
	chunkSize  int
	logger     *logger.Logger
}

// NewSpeaker plays at the synthesis service's PCM rate, not the recording
// rate.
func NewSpeaker(sampleRate, chunkSize int, log *logger.Logger) *Speaker {
	return &Speaker{
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		logger:     log.Named("speaker"),
	}
}

// Play implements Player, blocking until the audio finishes or the context is
// cancelled.
func (s *Speaker) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	buf := make([]int16, s.chunkSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(s.sampleRate), s.chunkSize, buf)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer stream.Stop()

	samples := audio.FrameFromBytes(pcm)
	for offset := 0; offset < len(samples); offset += s.chunkSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		end := offset + s.chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(buf, samples[offset:end])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}

		if err := stream.Write(); err != nil {
			return fmt.Errorf("write audio chunk: %w", err)
		}
	}

	s.logger.Debugf("played %d samples", len(samples))
	return nil
}
