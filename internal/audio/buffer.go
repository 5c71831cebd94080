package audio

import "time"

// Buffer holds decoded multi-channel floating-point audio.
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// Channels returns the channel count.
func (b *Buffer) Channels() int { return len(b.Data) }

// Frames returns the number of frames per channel.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Seconds returns the playback length in seconds.
func (b *Buffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}
