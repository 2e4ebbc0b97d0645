package transcribe

import (
	"context"
	"errors"
	"testing"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/pkg/logger"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ audio.Utterance) (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Text: f.text}, nil
}

func testSTTConfig() config.STTConfig {
	return config.STTConfig{
		MinWords: 2,
		LowConfidencePhrases: []string{
			"thank you", "thanks", "ok", "okay", "yes", "bye", "you", ".",
		},
	}
}

func testUtterance() audio.Utterance {
	return audio.Utterance{Frames: []audio.Frame{make(audio.Frame, 4)}, SampleRate: 16000}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Hello World \n"); got != "hello world" {
		t.Fatalf("Normalize = %q", got)
	}
}

func TestValidateLowConfidenceBeatsWordCount(t *testing.T) {
	stage := NewStage(nil, testSTTConfig(), logger.New(true))

	// "ok" is both a filler phrase and below the word minimum; the filler
	// classification wins
	err := stage.Validate("ok")
	if !errors.Is(err, ErrLowConfidence) {
		t.Fatalf("Validate(ok) = %v, want ErrLowConfidence", err)
	}
}

func TestValidateTooShort(t *testing.T) {
	stage := NewStage(nil, testSTTConfig(), logger.New(true))

	if err := stage.Validate("hello"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("Validate(hello) = %v, want ErrTooShort", err)
	}
	if err := stage.Validate(""); !errors.Is(err, ErrTooShort) {
		t.Fatalf("Validate(\"\") = %v, want ErrTooShort", err)
	}
}

func TestValidateAcceptsRealSpeech(t *testing.T) {
	stage := NewStage(nil, testSTTConfig(), logger.New(true))

	if err := stage.Validate("open the window"); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
}

func TestValidateIdempotentOnNormalizedText(t *testing.T) {
	stage := NewStage(nil, testSTTConfig(), logger.New(true))

	for _, text := range []string{"ok", "hello", "open the window"} {
		first := stage.Validate(Normalize(text))
		second := stage.Validate(Normalize(Normalize(text)))
		if (first == nil) != (second == nil) {
			t.Fatalf("validation of %q not stable: %v vs %v", text, first, second)
		}
		if first != nil && !errors.Is(second, errors.Unwrap(first)) && first.Error() != second.Error() {
			t.Fatalf("validation of %q changed reason: %v vs %v", text, first, second)
		}
	}
}

func TestProcessNormalizesBeforeValidation(t *testing.T) {
	stage := NewStage(&fakeTranscriber{text: "  Thank You. \n"}, testSTTConfig(), logger.New(true))

	// "thank you." is not in the phrase set, but two words pass the count
	got, err := stage.Process(context.Background(), testUtterance())
	if err != nil {
		t.Fatalf("Process = %v", err)
	}
	if got != "thank you." {
		t.Fatalf("Process text = %q", got)
	}
}

func TestProcessRejectsFiller(t *testing.T) {
	stage := NewStage(&fakeTranscriber{text: " OKAY "}, testSTTConfig(), logger.New(true))

	if _, err := stage.Process(context.Background(), testUtterance()); !errors.Is(err, ErrLowConfidence) {
		t.Fatalf("Process = %v, want ErrLowConfidence", err)
	}
}

func TestProcessSurfacesTranscriberError(t *testing.T) {
	boom := errors.New("service down")
	stage := NewStage(&fakeTranscriber{err: boom}, testSTTConfig(), logger.New(true))

	if _, err := stage.Process(context.Background(), testUtterance()); !errors.Is(err, boom) {
		t.Fatalf("Process = %v, want wrapped transcriber error", err)
	}
}

func TestIsExitCommand(t *testing.T) {
	if !IsExitCommand("exit") {
		t.Fatal("exit should be the exit command")
	}
	for _, text := range []string{"exit now", "please exit", "quit", ""} {
		if IsExitCommand(text) {
			t.Fatalf("%q should not be the exit command", text)
		}
	}
}
