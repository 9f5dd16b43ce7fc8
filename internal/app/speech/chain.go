package speech

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// SynthesizerWithMetadata wraps a synthesizer with its display name.
type SynthesizerWithMetadata struct {
	Synthesizer Synthesizer
	DisplayName string
}

// Chain tries synthesizers in order until one produces audio.
type Chain struct {
	synthesizers []SynthesizerWithMetadata
}

// NewChain creates a new synthesizer chain.
func NewChain(synthesizers []SynthesizerWithMetadata) *Chain {
	return &Chain{
		synthesizers: synthesizers,
	}
}

// Synthesize returns audio from the first synthesizer that succeeds.
func (c *Chain) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	var errs error
	for i, sm := range c.synthesizers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		zlog.Debug().Msgf("trying synthesizer: index=%d total=%d name=%s engine=%s",
			i+1, len(c.synthesizers), sm.DisplayName, sm.Synthesizer.Name())

		audio, err := sm.Synthesizer.Synthesize(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zlog.Warn().Msgf("synthesizer failed, trying next: name=%s error=%v", sm.DisplayName, err)
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "%s", sm.DisplayName))
			continue
		}
		return audio, nil
	}

	if errs == nil {
		return nil, errors.New("no synthesizers configured")
	}
	return nil, errors.Wrap(errs, "all synthesizers failed")
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "synthesizer_chain"
}

// Synthesizers returns the configured synthesizers in order.
func (c *Chain) Synthesizers() []SynthesizerWithMetadata {
	return c.synthesizers
}

// Close releases synthesizers that hold resources such as connections.
func (c *Chain) Close() error {
	var errs error
	for _, sm := range c.synthesizers {
		errs = errors.CombineErrors(errs, closeSynthesizer(sm.Synthesizer))
	}
	return errs
}

func closeSynthesizer(s Synthesizer) error {
	if closer, ok := s.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
