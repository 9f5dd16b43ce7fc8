package pdf

import (
	"math"
	"strings"

	"rsc.io/pdf"
)

const (
	lineThreshold      = 0.5  // Baseline shift, in font sizes, that starts a new line
	paragraphThreshold = 2.2  // Baseline shift that leaves a blank line
	spaceThreshold     = 0.15 // Horizontal gap, in font sizes, that inserts a space
)

// assembleText joins glyph runs into lines of text in content order.
func assembleText(runs []pdf.Text) string {
	var b strings.Builder
	var prev *pdf.Text

	for i := range runs {
		t := &runs[i]
		if t.S == "" {
			continue
		}
		if prev != nil {
			size := t.FontSize
			if size <= 0 {
				size = 1
			}
			shift := math.Abs(t.Y - prev.Y)
			switch {
			case shift > size*paragraphThreshold:
				b.WriteString("\n\n")
			case shift > size*lineThreshold:
				b.WriteByte('\n')
			case t.X-(prev.X+prev.W) > size*spaceThreshold && !endsWithSpace(prev.S) && !strings.HasPrefix(t.S, " "):
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		prev = t
	}

	return strings.TrimSpace(b.String())
}

func endsWithSpace(s string) bool {
	return strings.HasSuffix(s, " ")
}
