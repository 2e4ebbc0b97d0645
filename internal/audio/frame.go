package audio

import "encoding/binary"

// Frame is one fixed-size read of signed 16-bit PCM samples from the input
// stream. Frames are ephemeral: they belong to the in-progress recording and
// are discarded once folded into an Utterance.
type Frame []int16

// Peak returns the maximum absolute amplitude in the frame.
func (f Frame) Peak() float64 {
	var peak int32
	for _, s := range f {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float64(peak)
}

// Bytes encodes the frame as little-endian 16-bit PCM.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f)*2)
	for i, s := range f {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// FrameFromBytes decodes little-endian 16-bit PCM into a frame.
func FrameFromBytes(data []byte) Frame {
	f := make(Frame, len(data)/2)
	for i := range f {
		f[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return f
}

// InputStream abstracts the microphone. A single open stream is exclusively
// owned by one recorder at a time; concurrent recording cycles must not share
// it.
type InputStream interface {
	// Start opens the stream if it is not already open.
	Start() error
	// Read blocks for the next frame.
	Read() (Frame, error)
	// Stop halts capture but keeps the device claimed.
	Stop() error
	// Close releases the device.
	Close() error
}
