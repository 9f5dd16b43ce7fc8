package filter

import "regexp"

var hyphenBreak = regexp.MustCompile(`(\p{L})-[ \t]*\n[ \t]*(\p{Ll})`)

// DehyphenateFilter joins words split across lines ("narra-\ntion").
type DehyphenateFilter struct{}

func (f *DehyphenateFilter) Name() string {
	return "dehyphenate_filter"
}

func (f *DehyphenateFilter) Description() string {
	return "Joins words hyphenated at the end of a line"
}

func (f *DehyphenateFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *DehyphenateFilter) Apply(text string) string {
	return hyphenBreak.ReplaceAllString(text, "$1$2")
}

func init() {
	Register("dehyphenate_filter", 30, func() Filter {
		return &DehyphenateFilter{}
	})
}
