package filter

import (
	"regexp"
	"strings"
)

var pageNumberLine = regexp.MustCompile(`(?i)^\s*(page\s+)?[-\x{2013}\x{2014}]?\s*\d{1,5}\s*[-\x{2013}\x{2014}]?\s*((of|/)\s*\d{1,5})?\s*$`)

// PageNumberFilter drops lines that hold nothing but a page number.
type PageNumberFilter struct{}

func (f *PageNumberFilter) Name() string {
	return "page_number_filter"
}

func (f *PageNumberFilter) Description() string {
	return "Removes lines such as \"12\", \"- 12 -\" or \"Page 3 of 10\""
}

func (f *PageNumberFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PageNumberFilter) Apply(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if pageNumberLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func init() {
	Register("page_number_filter", 20, func() Filter {
		return &PageNumberFilter{}
	})
}
