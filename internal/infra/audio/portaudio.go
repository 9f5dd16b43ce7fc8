package audio

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gordonklaus/portaudio"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/domain/speech"
)

const defaultFramesPerBuffer = 1024

// PortAudioPlayer writes decoded PCM to the default output device through a
// blocking PortAudio stream, one buffer at a time.
type PortAudioPlayer struct {
	mu              sync.Mutex
	framesPerBuffer int
}

// NewPortAudioPlayer initializes PortAudio and creates a player.
func NewPortAudioPlayer(cfg Config) (*PortAudioPlayer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize portaudio")
	}
	frames := defaultFramesPerBuffer
	if cfg.SampleRate > 0 && cfg.BufferMs > 0 {
		frames = cfg.SampleRate * cfg.BufferMs / 1000
	}
	return &PortAudioPlayer{framesPerBuffer: frames}, nil
}

// Name returns the backend name.
func (p *PortAudioPlayer) Name() string {
	return BackendPortAudio
}

// Play plays a until it ends or ctx is cancelled. Cancellation is observed
// between buffers.
func (p *PortAudioPlayer) Play(ctx context.Context, a *speech.Audio) error {
	pcm, err := decodePCM16(a)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]int16, p.framesPerBuffer*pcm.Channels)
	stream, err := portaudio.OpenDefaultStream(0, pcm.Channels, float64(pcm.SampleRate), p.framesPerBuffer, buf)
	if err != nil {
		return errors.Wrap(err, "failed to open output stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return errors.Wrap(err, "failed to start output stream")
	}
	defer stream.Stop()

	zlog.Debug().Msgf("portaudio: playing: rate=%d channels=%d duration=%v", pcm.SampleRate, pcm.Channels, pcm.Duration())

	for off := 0; off < len(pcm.Samples); off += len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, pcm.Samples[off:])
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			return errors.Wrap(err, "failed to write output stream")
		}
	}
	return nil
}

// Close terminates PortAudio.
func (p *PortAudioPlayer) Close() error {
	return portaudio.Terminate()
}
