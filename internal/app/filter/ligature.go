package filter

import "strings"

var ligatures = strings.NewReplacer(
	"ﬀ", "ff",
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬅ", "st",
	"ﬆ", "st",
	"\u00ad", "", // soft hyphen
)

// LigatureFilter expands typographic ligatures that speech engines spell out.
type LigatureFilter struct{}

func (f *LigatureFilter) Name() string {
	return "ligature_filter"
}

func (f *LigatureFilter) Description() string {
	return "Expands ligatures such as ﬁ and removes soft hyphens"
}

func (f *LigatureFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *LigatureFilter) Apply(text string) string {
	return ligatures.Replace(text)
}

func init() {
	Register("ligature_filter", 10, func() Filter {
		return &LigatureFilter{}
	})
}
