package filter

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Apply runs all filters in sequence.
func (c *Chain) Apply(text string) string {
	for _, f := range c.filters {
		text = f.Apply(text)
	}
	return text
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// NewChainFromConfig creates a chain of the enabled filters in execution
// order. Unknown filter names and invalid settings are errors.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	for name, fc := range cfg.Filters {
		if _, ok := registry[name]; !ok && fc.Enabled {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}

	chain := NewChain()
	for _, name := range Names() {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f := registry[name].factory()
		if err := f.ValidateConfig(cfg.Filters[name].Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
		zlog.Debug().Msgf("registered text filter: name=%s", name)
	}
	return chain, nil
}
