package filter

import (
	"sort"
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// ReplaceConfig represents the configuration for ReplaceFilter.
type ReplaceConfig struct {
	Replacements map[string]string `yaml:"replacements" mapstructure:"replacements" validate:"required,min=1,dive,keys,required,endkeys"`
}

// ReplaceFilter substitutes configured words, e.g. to expand abbreviations
// the engine mispronounces.
type ReplaceFilter struct {
	replacer *strings.Replacer
}

func (f *ReplaceFilter) Name() string {
	return "replace_filter"
}

func (f *ReplaceFilter) Description() string {
	return "Replaces configured strings (settings.replacements)"
}

func (f *ReplaceFilter) ValidateConfig(settings map[string]any) error {
	var config ReplaceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	// Longest first so "e.g." wins over "e.".
	keys := make([]string, 0, len(config.Replacements))
	for k := range config.Replacements {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, config.Replacements[k])
	}
	f.replacer = strings.NewReplacer(pairs...)
	zlog.Debug().Msgf("replace filter config: replacements=%d", len(keys))
	return nil
}

func (f *ReplaceFilter) Apply(text string) string {
	if f.replacer == nil {
		return text
	}
	return f.replacer.Replace(text)
}

func init() {
	Register("replace_filter", 50, func() Filter {
		return &ReplaceFilter{}
	})
}
