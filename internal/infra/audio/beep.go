package audio

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/domain/speech"
)

const resampleQuality = 4

// BeepPlayer plays audio through the beep speaker. The speaker is a process
// wide mixer initialised once at a fixed rate; utterances at other rates are
// resampled.
type BeepPlayer struct {
	mu       sync.Mutex // one utterance at a time
	rate     beep.SampleRate
	buffer   time.Duration
	initOnce sync.Once
	initErr  error
}

// NewBeepPlayer creates a beep player.
func NewBeepPlayer(cfg Config) *BeepPlayer {
	return &BeepPlayer{
		rate:   beep.SampleRate(cfg.SampleRate),
		buffer: time.Duration(cfg.BufferMs) * time.Millisecond,
	}
}

// Name returns the backend name.
func (p *BeepPlayer) Name() string {
	return BackendBeep
}

func (p *BeepPlayer) init() error {
	p.initOnce.Do(func() {
		if err := speaker.Init(p.rate, p.rate.N(p.buffer)); err != nil {
			p.initErr = errors.Wrap(err, "failed to initialize speaker")
			return
		}
		zlog.Debug().Msgf("beep: speaker initialized: rate=%d buffer=%v", p.rate, p.buffer)
	})
	return p.initErr
}

// Play plays a until it ends or ctx is cancelled.
func (p *BeepPlayer) Play(ctx context.Context, a *speech.Audio) error {
	if err := p.init(); err != nil {
		return err
	}

	streamer, format, err := decodeBeep(a)
	if err != nil {
		return err
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != p.rate {
		s = beep.Resample(resampleQuality, format.SampleRate, p.rate, streamer)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return streamer.Err()
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Close stops anything still playing.
func (p *BeepPlayer) Close() error {
	if p.initErr == nil {
		speaker.Clear()
	}
	return nil
}

func decodeBeep(a *speech.Audio) (beep.StreamSeekCloser, beep.Format, error) {
	if a == nil || len(a.Data) == 0 {
		return nil, beep.Format{}, ErrNoAudio
	}
	switch a.Format {
	case speech.FormatWAV, "":
		s, f, err := wav.Decode(bytes.NewReader(a.Data))
		return s, f, errors.Wrap(err, "failed to decode wav")
	case speech.FormatMP3:
		s, f, err := mp3.Decode(io.NopCloser(bytes.NewReader(a.Data)))
		return s, f, errors.Wrap(err, "failed to decode mp3")
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", a.Format)
	}
}
