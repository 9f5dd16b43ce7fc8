package tts

import (
	"context"
	"strconv"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// EspeakConfig holds espeak / espeak-ng settings.
type EspeakConfig struct {
	BinaryPath string `mapstructure:"binary_path" default:"espeak"`
	Voice      string `mapstructure:"voice"`
	Pitch      int    `mapstructure:"pitch" default:"50" validate:"gte=0,lte=99"`
	Amplitude  int    `mapstructure:"amplitude" default:"100" validate:"gte=0,lte=200"`
}

// Espeak synthesizes speech with a local espeak binary. espeak takes the
// reading rate directly in words per minute.
type Espeak struct {
	binary string
	config EspeakConfig
}

// NewEspeak creates an espeak synthesizer from provider settings.
func NewEspeak(settings map[string]any) (*Espeak, error) {
	var cfg EspeakConfig
	if err := decodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	binary, err := lookBinary(cfg.BinaryPath)
	if err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("espeak: config: %+v", cfg)
	return &Espeak{binary: binary, config: cfg}, nil
}

// Name returns the engine identifier.
func (e *Espeak) Name() string {
	return "espeak"
}

// Synthesize converts text to WAV audio.
func (e *Espeak) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	data, err := runEngine(ctx, e.binary, e.args(req), req.Text)
	if err != nil {
		return nil, err
	}

	zlog.Debug().Msgf("espeak: synthesized: rate=%d bytes=%d", req.Rate, len(data))
	return &speech.Audio{
		Data:   data,
		Format: speech.FormatWAV,
		Engine: e.Name(),
	}, nil
}

func (e *Espeak) args(req speech.Request) []string {
	args := []string{"--stdout", "--stdin",
		"-p", strconv.Itoa(e.config.Pitch),
		"-a", strconv.Itoa(e.config.Amplitude),
	}
	if req.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(req.Rate))
	}
	voice := req.Voice
	if voice == "" {
		voice = e.config.Voice
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return args
}
