// Package audio plays synthesized speech through the system audio output.
package audio

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// Backend names.
const (
	BackendBeep      = "beep"
	BackendPortAudio = "portaudio"
	BackendNone      = "none"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoAudio           = errors.New("no audio data")
)

// Player plays one utterance at a time. Play blocks until the audio has been
// played in full or ctx is cancelled, in which case playback stops at once.
type Player interface {
	Play(ctx context.Context, a *speech.Audio) error
	Name() string
	Close() error
}

// Config holds player configuration.
type Config struct {
	SampleRate int // Output rate for mixing backends (Hz)
	BufferMs   int // Output buffer length
}

// New creates the player for the given backend.
func New(backend string, cfg Config) (Player, error) {
	zlog.Debug().Msgf("audio: creating player: backend=%s sample_rate=%d buffer_ms=%d", backend, cfg.SampleRate, cfg.BufferMs)
	switch backend {
	case BackendBeep:
		return NewBeepPlayer(cfg), nil
	case BackendPortAudio:
		return NewPortAudioPlayer(cfg)
	case BackendNone:
		return NewNonePlayer(), nil
	default:
		return nil, errors.Newf("unsupported audio backend: %s", backend)
	}
}
