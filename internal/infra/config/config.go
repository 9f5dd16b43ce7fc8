// Package config provides configuration loading from YAML files.
package config

import (
	"io/fs"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// Config represents the application configuration.
type Config struct {
	Speech   SpeechConfig   `yaml:"speech"`
	Audio    AudioConfig    `yaml:"audio"`
	Document DocumentConfig `yaml:"document"`
	Log      LogConfig      `yaml:"log"`

	Filters map[string]FilterConfig `yaml:"filters"`
}

// SpeechConfig represents reading rate and synthesizer configuration.
type SpeechConfig struct {
	Rate          int              `yaml:"rate" default:"300" validate:"gtefield=MinRate,ltefield=MaxRate"`
	MinRate       int              `yaml:"min_rate" default:"50" validate:"gt=0"`
	MaxRate       int              `yaml:"max_rate" default:"500" validate:"gtfield=MinRate"`
	RateStep      int              `yaml:"rate_step" default:"50" validate:"gt=0"`
	Voice         string           `yaml:"voice"`
	MaxChunkChars int              `yaml:"max_chunk_chars" default:"1000" validate:"gte=0"`
	Providers     []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single speech synthesizer configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=espeak piper yandex"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// AudioConfig represents audio output configuration.
type AudioConfig struct {
	Backend    string `yaml:"backend" default:"beep" validate:"oneof=beep portaudio none"`
	SampleRate int    `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int    `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
}

// DocumentConfig represents document selection configuration.
type DocumentConfig struct {
	Extension string `yaml:"extension" default:".pdf" validate:"startswith=."`
	Watch     bool   `yaml:"watch"`
	StartDir  string `yaml:"start_dir" default:"."`
}

// FilterConfig represents page text filter configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File  string `yaml:"file" default:"readaloud.log"`
}

var defaultProvider = ProviderConfig{Type: "espeak", DisplayName: "eSpeak"}

// defaultFilters are enabled when the config has no filters section.
func defaultFilters() map[string]FilterConfig {
	return map[string]FilterConfig{
		"ligature_filter":    {Enabled: true},
		"page_number_filter": {Enabled: true},
		"dehyphenate_filter": {Enabled: true},
		"join_lines_filter":  {Enabled: true},
	}
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads configuration from a YAML file. A missing file yields the
// default configuration. Environment variables take precedence over file
// values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish applies environment overrides and defaults, then validates.
func (c *Config) finish() error {
	if len(c.Speech.Providers) == 0 {
		c.Speech.Providers = []ProviderConfig{defaultProvider}
	}
	if c.Filters == nil {
		c.Filters = defaultFilters()
	}
	c.overrideFromEnv()

	if err := defaults.Set(c); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("YANDEX_API_KEY"); v != "" {
		c.setProviderSetting("yandex", "api_key", v)
	}
	if v := os.Getenv("YANDEX_FOLDER_ID"); v != "" {
		c.setProviderSetting("yandex", "folder_id", v)
	}
	if v := os.Getenv("READALOUD_AUDIO_BACKEND"); v != "" {
		c.Audio.Backend = v
	}
}

func (c *Config) setProviderSetting(providerType, key, value string) {
	for i := range c.Speech.Providers {
		if c.Speech.Providers[i].Type != providerType {
			continue
		}
		if c.Speech.Providers[i].Settings == nil {
			c.Speech.Providers[i].Settings = make(map[string]any)
		}
		c.Speech.Providers[i].Settings[key] = value
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if (c.Speech.MaxRate-c.Speech.MinRate)%c.Speech.RateStep != 0 {
		return errors.Newf("rate range [%d, %d] is not a multiple of rate_step %d",
			c.Speech.MinRate, c.Speech.MaxRate, c.Speech.RateStep)
	}
	return nil
}

// RateRange returns the reading rate bounds.
func (c *Config) RateRange() speech.RateRange {
	return speech.RateRange{
		Min:  c.Speech.MinRate,
		Max:  c.Speech.MaxRate,
		Step: c.Speech.RateStep,
	}
}

// AcceptsDocument reports whether path has the configured document extension.
func (c *Config) AcceptsDocument(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), strings.ToLower(c.Document.Extension))
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(name string) bool {
	if fc, ok := c.Filters[name]; ok {
		return fc.Enabled
	}
	return false
}
