package speech

import (
	"context"
	"errors"
)

// ErrTransient marks a server-side failure worth one retry. Synthesizer
// implementations wrap 5xx-equivalent conditions with it.
var ErrTransient = errors.New("transient synthesis failure")

// Synthesizer is the contract for the text-to-speech backend. It returns a
// transport-encoded single-channel PCM payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}
