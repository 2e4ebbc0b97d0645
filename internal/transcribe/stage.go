package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/pkg/logger"
)

var (
	// ErrLowConfidence marks a transcript that matches a known filler phrase
	// whisper tends to hallucinate on silence.
	ErrLowConfidence = errors.New("low confidence transcription")
	// ErrTooShort marks a transcript below the minimum word count.
	ErrTooShort = errors.New("transcription too short")
)

// Stage transcribes an utterance and validates the transcript before it is
// allowed to trigger any downstream side effect.
type Stage struct {
	transcriber   Transcriber
	minWords      int
	lowConfidence map[string]struct{}
	logger        *logger.Logger
}

func NewStage(transcriber Transcriber, cfg config.STTConfig, log *logger.Logger) *Stage {
	low := make(map[string]struct{}, len(cfg.LowConfidencePhrases))
	for _, p := range cfg.LowConfidencePhrases {
		low[Normalize(p)] = struct{}{}
	}
	return &Stage{
		transcriber:   transcriber,
		minWords:      cfg.MinWords,
		lowConfidence: low,
		logger:        log.Named("stt"),
	}
}

// Normalize trims surrounding whitespace and lowercases the transcript.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Validate checks a normalized transcript. Filler phrases are rejected before
// the word-count check so a bare "ok" reads as low confidence, not as short.
func (s *Stage) Validate(normalized string) error {
	if normalized == "" {
		return ErrTooShort
	}
	if _, ok := s.lowConfidence[normalized]; ok {
		return fmt.Errorf("%w: %q", ErrLowConfidence, normalized)
	}
	if len(strings.Fields(normalized)) < s.minWords {
		return fmt.Errorf("%w: %q has fewer than %d words", ErrTooShort, normalized, s.minWords)
	}
	return nil
}

// Process runs transcription and validation on one utterance, returning the
// normalized transcript.
func (s *Stage) Process(ctx context.Context, utt audio.Utterance) (string, error) {
	result, err := s.transcriber.Transcribe(ctx, utt)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	normalized := Normalize(result.Text)
	if err := s.Validate(normalized); err != nil {
		s.logger.Infof("discarding transcript %q: %v", normalized, err)
		return "", err
	}

	s.logger.Infof("transcription: %s", normalized)
	return normalized, nil
}

// IsExitCommand reports whether a normalized transcript is the spoken exit
// command ending a session.
func IsExitCommand(normalized string) bool {
	return normalized == "exit"
}
