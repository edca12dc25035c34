package ui

import (
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/internal/words"
)

// takeView is what renderTakes needs to know about the session.
type takeView struct {
	Takes       []take.Take
	Current     int
	Word        int  // Highlighted word of the current take, -1 for none
	Generating  int  // Take being synthesized, -1 for none
	Numbers     bool // Prefix takes with their label
	Width       int  // Column width
	Margin      int  // Left margin
	LineSpacing int  // Blank lines between wrapped lines
}

// renderTakes lays out every take and reports the line at which the
// current take starts.
func renderTakes(v takeView, spin string) (string, int) {
	width := max(v.Width, 10)

	var (
		out       strings.Builder
		line      int
		startLine int
	)
	for i, t := range v.Takes {
		if i > 0 {
			out.WriteString("\n")
			line++
			// A new paragraph gets an extra gap.
			if t.Block != v.Takes[i-1].Block {
				out.WriteString("\n")
				line++
			}
		}
		if i == v.Current {
			startLine = line
		}

		var body string
		switch {
		case t.Empty():
			body = ""
		case i == v.Current:
			body = wordwrap.String(highlightWords(t.Display, v.Word), width)
		default:
			body = otherTakeStyle(wordwrap.String(t.Display, width))
		}
		if v.LineSpacing > 0 && body != "" {
			body = strings.ReplaceAll(body, "\n", strings.Repeat("\n", v.LineSpacing+1))
		}

		var prefix string
		if v.Numbers {
			prefix = takeLabelStyle(t.Name()) + "\n"
		}
		if i == v.Generating && spin != "" {
			prefix = spin + " " + prefix
			if !v.Numbers {
				prefix += "\n"
			}
		}

		block := prefix + body
		out.WriteString(block)
		line += strings.Count(block, "\n")
	}

	s := out.String()
	if v.Margin > 0 {
		s = indent.String(s, uint(v.Margin)) //nolint:gosec
	}
	return s, startLine
}

// highlightWords joins the tokens of text and marks token i.
func highlightWords(text string, i int) string {
	tokens := words.Weigh(text)
	if len(tokens) == 0 {
		return text
	}

	parts := make([]string, len(tokens))
	for j, tok := range tokens {
		if j == i {
			parts[j] = wordStyle(tok.Text)
			continue
		}
		parts[j] = tok.Text
	}
	return strings.Join(parts, " ")
}
