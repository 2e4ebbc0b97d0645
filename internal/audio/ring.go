package audio

import (
	"io"

	"github.com/smallnest/ringbuffer"
)

// RingStream decouples a push-style capture source (the portaudio callback
// goroutine) from the recorder's pull loop. Samples are staged as raw PCM
// bytes in a blocking ring buffer sized for several seconds of audio.
type RingStream struct {
	rb        *ringbuffer.RingBuffer
	chunkSize int
}

// NewRingStream stages up to capacity frames of chunkSize samples each.
func NewRingStream(chunkSize, capacity int) *RingStream {
	return &RingStream{
		rb:        ringbuffer.New(chunkSize * 2 * capacity).SetBlocking(true),
		chunkSize: chunkSize,
	}
}

// Push stages captured samples for the reader. It blocks when the buffer is
// full rather than dropping audio mid-utterance.
func (r *RingStream) Push(samples Frame) error {
	_, err := r.rb.Write(samples.Bytes())
	return err
}

// ReadFrame blocks until a full frame is available. After CloseWriter it
// drains the remaining staged audio and then reports io.EOF.
func (r *RingStream) ReadFrame() (Frame, error) {
	buf := make([]byte, r.chunkSize*2)
	read := 0
	for read < len(buf) {
		n, err := r.rb.Read(buf[read:])
		read += n
		if err != nil {
			if err == io.EOF && read > 0 {
				return FrameFromBytes(buf[:read]), nil
			}
			return nil, err
		}
	}
	return FrameFromBytes(buf), nil
}

// CloseWriter signals the reader that no further audio is coming.
func (r *RingStream) CloseWriter() {
	r.rb.CloseWriter()
}
