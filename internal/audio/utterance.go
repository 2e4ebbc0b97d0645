package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Utterance is one complete recording, trailing silence included.
type Utterance struct {
	Frames     []Frame
	SampleRate int
}

// Empty reports whether nothing was captured.
func (u Utterance) Empty() bool {
	return len(u.Frames) == 0
}

// Duration is the captured audio length.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate == 0 {
		return 0
	}
	samples := 0
	for _, f := range u.Frames {
		samples += len(f)
	}
	return time.Duration(samples) * time.Second / time.Duration(u.SampleRate)
}

// PCM flattens the frames into little-endian 16-bit samples.
func (u Utterance) PCM() []byte {
	var buf bytes.Buffer
	for _, f := range u.Frames {
		buf.Write(f.Bytes())
	}
	return buf.Bytes()
}

// WAV wraps the PCM data in a mono 16-bit RIFF container.
func (u Utterance) WAV() []byte {
	return WAVFromPCM(u.PCM(), u.SampleRate)
}

// WAVFromPCM wraps raw little-endian 16-bit mono samples in a RIFF container.
func WAVFromPCM(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// Save writes the utterance as a WAV file, creating parent directories as
// needed.
func (u Utterance) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audio dir: %w", err)
		}
	}
	if err := os.WriteFile(path, u.WAV(), 0o644); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}
