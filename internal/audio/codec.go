package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedInput indicates transport text that is not valid encoded audio.
var ErrMalformedInput = errors.New("malformed transport encoding")

// ErrInvalidAudioData indicates a PCM payload whose length does not match the
// declared sample layout.
var ErrInvalidAudioData = errors.New("invalid audio data")

// EncodeBytes converts a raw byte buffer into its transport-safe text form.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBytes is the inverse of EncodeBytes.
func DecodeBytes(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return b, nil
}

// BufferFromPCM16 interprets b as interleaved little-endian signed 16-bit
// samples and produces a normalized float buffer of len(b)/(2*channels) frames.
func BufferFromPCM16(b []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d, channels %d", ErrInvalidAudioData, sampleRate, channels)
	}
	if len(b)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrInvalidAudioData, len(b), channels)
	}

	frames := len(b) / (2 * channels)
	buf := &Buffer{SampleRate: sampleRate, Data: make([][]float32, channels)}
	for ch := range buf.Data {
		buf.Data[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			raw := int16(binary.LittleEndian.Uint16(b[2*(i*channels+ch):]))
			buf.Data[ch][i] = float32(raw) / 32768.0
		}
	}
	return buf, nil
}

// Int16Bytes serializes floating samples in [-1.0, 1.0] as little-endian
// signed 16-bit integers, saturating at the boundaries.
func Int16Bytes(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := int32(s * 32768.0)
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// EncodeFrames converts captured floating samples straight to the outbound
// transport form.
func EncodeFrames(samples []float32) string {
	return EncodeBytes(Int16Bytes(samples))
}
