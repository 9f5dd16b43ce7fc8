package tts

import (
	"context"
	"strconv"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// PiperConfig holds Piper settings. Piper writes raw 16-bit mono PCM.
type PiperConfig struct {
	BinaryPath string `mapstructure:"binary_path" default:"piper"`
	ModelPath  string `mapstructure:"model_path" validate:"required"`
	Speaker    string `mapstructure:"speaker"`
	SampleRate int    `mapstructure:"sample_rate" default:"22050" validate:"gt=0"`
}

// Piper synthesizes speech with a local Piper binary.
type Piper struct {
	binary string
	config PiperConfig
}

// NewPiper creates a Piper synthesizer from provider settings.
func NewPiper(settings map[string]any) (*Piper, error) {
	var cfg PiperConfig
	if err := decodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	binary, err := lookBinary(cfg.BinaryPath)
	if err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("piper: config: %+v", cfg)
	return &Piper{binary: binary, config: cfg}, nil
}

// Name returns the engine identifier.
func (p *Piper) Name() string {
	return "piper"
}

// Synthesize converts text to WAV audio.
func (p *Piper) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	pcm, err := runEngine(ctx, p.binary, p.args(req), req.Text)
	if err != nil {
		return nil, err
	}

	zlog.Debug().Msgf("piper: synthesized: rate=%d pcm_bytes=%d", req.Rate, len(pcm))
	return &speech.Audio{
		Data:       speech.WrapPCM(pcm, p.config.SampleRate, 1, 16),
		Format:     speech.FormatWAV,
		SampleRate: p.config.SampleRate,
		Channels:   1,
		Duration:   speech.PCMDuration(len(pcm), p.config.SampleRate, 1, 16),
		Engine:     p.Name(),
	}, nil
}

// args builds the command line. Piper's length scale is inverse to speed.
func (p *Piper) args(req speech.Request) []string {
	args := []string{
		"--model", p.config.ModelPath,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(1/req.SpeedFactor(), 'f', 3, 64),
	}
	speaker := req.Voice
	if speaker == "" {
		speaker = p.config.Speaker
	}
	if speaker != "" {
		args = append(args, "--speaker", speaker)
	}
	return args
}
