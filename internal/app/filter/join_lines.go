package filter

import (
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// JoinLinesConfig represents the configuration for JoinLinesFilter.
type JoinLinesConfig struct {
	Flatten bool `yaml:"flatten" mapstructure:"flatten"` // Join paragraphs too
}

// JoinLinesFilter joins the lines of a paragraph so engines do not pause at
// every layout line break.
type JoinLinesFilter struct {
	config JoinLinesConfig
}

func (f *JoinLinesFilter) Name() string {
	return "join_lines_filter"
}

func (f *JoinLinesFilter) Description() string {
	return "Joins wrapped lines into paragraphs"
}

func (f *JoinLinesFilter) ValidateConfig(settings map[string]any) error {
	var config JoinLinesConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = config
	zlog.Debug().Msgf("join lines filter config: %+v", config)
	return nil
}

func (f *JoinLinesFilter) Apply(text string) string {
	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	sep := "\n\n"
	if f.config.Flatten {
		sep = " "
	}
	return strings.Join(paragraphs, sep)
}

func init() {
	Register("join_lines_filter", 40, func() Filter {
		return &JoinLinesFilter{}
	})
}
