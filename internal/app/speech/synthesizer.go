// Package speech provides the speech engine: synthesis through a chain of
// providers followed by blocking, cancellable playback.
package speech

import (
	"context"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error)
	// Name returns the engine name (used in config).
	Name() string
}

// Player plays audio, blocking until done or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, a *speech.Audio) error
}
