// Package filter provides the text filter chain applied to page text before
// it is shown and spoken.
package filter

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Filter rewrites page text.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Apply returns the rewritten text.
	Apply(text string) string
}

type registration struct {
	order   int
	factory func() Filter
}

// registry holds registered filter factories.
var registry = make(map[string]registration)

// Register registers a filter factory. Filters run in ascending order.
func Register(name string, order int, factory func() Filter) {
	registry[name] = registration{order: order, factory: factory}
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	out := make(map[string]func() Filter, len(registry))
	for name, r := range registry {
		out[name] = r.factory
	}
	return out
}

// Names returns the registered filter names in execution order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return registry[names[i]].order < registry[names[j]].order
	})
	return names
}

// decodeSettings decodes settings into cfg, applies defaults and validates.
func decodeSettings(settings map[string]any, cfg any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  cfg,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(cfg); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
