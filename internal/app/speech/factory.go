package speech

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/infra/config"
	"github.com/osa030/readaloud/internal/infra/tts"
)

// ProviderStatus describes whether a configured provider could be created.
type ProviderStatus struct {
	Index       int
	Type        string
	DisplayName string
	Engine      string
	Err         error
}

// Available reports whether the provider was created successfully.
func (s ProviderStatus) Available() bool {
	return s.Err == nil
}

// NewChainFromConfig creates a synthesizer chain from configuration.
// Providers that fail to initialize are skipped with a warning; the chain
// fails only when none of them can be created.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	if len(cfg.Speech.Providers) == 0 {
		return nil, errors.New("no speech providers configured")
	}

	var (
		synthesizers []SynthesizerWithMetadata
		errs         error
	)
	for i, pcfg := range cfg.Speech.Providers {
		zlog.Debug().Msgf("creating speech provider: index=%d type=%s", i+1, pcfg.Type)

		synth, err := newSynthesizer(pcfg)
		if err != nil {
			err = errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
			zlog.Warn().Msgf("speech provider unavailable: index=%d type=%s error=%v", i+1, pcfg.Type, err)
			errs = errors.CombineErrors(errs, err)
			continue
		}

		synthesizers = append(synthesizers, SynthesizerWithMetadata{
			Synthesizer: synth,
			DisplayName: pcfg.DisplayName,
		})
		zlog.Info().Msgf("registered speech provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	if len(synthesizers) == 0 {
		return nil, errors.Wrap(errs, "no speech provider could be created")
	}
	return NewChain(synthesizers), nil
}

// ProbeProviders tries to create every configured provider and reports the
// outcome of each. Created synthesizers are closed again.
func ProbeProviders(cfg *config.Config) []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(cfg.Speech.Providers))
	for i, pcfg := range cfg.Speech.Providers {
		status := ProviderStatus{
			Index:       i + 1,
			Type:        pcfg.Type,
			DisplayName: pcfg.DisplayName,
		}
		synth, err := newSynthesizer(pcfg)
		if err != nil {
			status.Err = err
		} else {
			status.Engine = synth.Name()
			_ = closeSynthesizer(synth)
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func newSynthesizer(pcfg config.ProviderConfig) (Synthesizer, error) {
	switch pcfg.Type {
	case "espeak":
		return tts.NewEspeak(pcfg.Settings)
	case "piper":
		return tts.NewPiper(pcfg.Settings)
	case "yandex":
		return tts.NewYandex(pcfg.Settings)
	default:
		return nil, errors.Newf("unsupported provider type: %s", pcfg.Type)
	}
}
