package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/voxd/voxd/pkg/logger"
)

// ringFrames is how many frames the capture ring can stage ahead of the
// recorder loop (~8s of audio at 16kHz with 1024-sample chunks).
const ringFrames = 128

// Mic is the portaudio-backed input stream: a capture goroutine pulls from the
// device and stages frames on a RingStream the recorder reads from.
type Mic struct {
	sampleRate int
	chunkSize  int
	logger     *logger.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	ring    *RingStream
	running bool
	done    chan struct{}
}

func NewMic(sampleRate, chunkSize int, log *logger.Logger) (*Mic, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &Mic{
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		logger:     log,
		buf:        make([]int16, chunkSize),
	}, nil
}

// Start implements InputStream. Calling it on an open stream is a no-op.
func (m *Mic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.chunkSize, m.buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	m.stream = stream
	m.ring = NewRingStream(m.chunkSize, ringFrames)
	m.running = true
	m.done = make(chan struct{})

	go m.captureLoop()

	m.logger.Info("audio stream started")
	return nil
}

func (m *Mic) captureLoop() {
	defer close(m.done)

	for {
		m.mu.Lock()
		running := m.running
		stream := m.stream
		ring := m.ring
		m.mu.Unlock()

		if !running || stream == nil {
			return
		}

		if err := stream.Read(); err != nil {
			if running {
				m.logger.Warnf("mic read failed: %v", err)
			}
			ring.CloseWriter()
			return
		}

		frame := make(Frame, len(m.buf))
		copy(frame, m.buf)
		if err := ring.Push(frame); err != nil {
			return
		}
	}
}

// Read implements InputStream, blocking for the next staged frame.
func (m *Mic) Read() (Frame, error) {
	m.mu.Lock()
	ring := m.ring
	m.mu.Unlock()

	if ring == nil {
		return nil, fmt.Errorf("stream not started")
	}
	return ring.ReadFrame()
}

// Stop implements InputStream.
func (m *Mic) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stream := m.stream
	ring := m.ring
	m.stream = nil
	done := m.done
	m.mu.Unlock()

	ring.CloseWriter()
	err := stream.Stop()
	stream.Close()
	<-done

	m.logger.Info("audio stream stopped")
	return err
}

// Close implements InputStream, releasing the device.
func (m *Mic) Close() error {
	if err := m.Stop(); err != nil {
		m.logger.Warnf("stopping stream during close: %v", err)
	}
	return portaudio.Terminate()
}
