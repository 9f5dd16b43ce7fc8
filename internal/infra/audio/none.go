package audio

import (
	"context"
	"time"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// NonePlayer plays nothing. It blocks for the utterance's duration so that
// narration keeps its pace on machines without an audio device.
type NonePlayer struct{}

// NewNonePlayer creates a silent player.
func NewNonePlayer() *NonePlayer {
	return &NonePlayer{}
}

// Name returns the backend name.
func (p *NonePlayer) Name() string {
	return BackendNone
}

// Play waits for the duration of a or until ctx is cancelled.
func (p *NonePlayer) Play(ctx context.Context, a *speech.Audio) error {
	if a == nil || len(a.Data) == 0 {
		return ErrNoAudio
	}

	timer := time.NewTimer(duration(a))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is a no-op.
func (p *NonePlayer) Close() error {
	return nil
}
