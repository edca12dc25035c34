package take

import (
	"regexp"
	"strings"
)

// escape matches the inline form SHOWN::SPOKEN:: . Anything after the second
// "::" is ordinary text and is kept by both renderings.
var escape = regexp.MustCompile(`([^:\s]*)::([^:\s]*)::`)

// DisplayText renders every escape as the text shown to the reader.
func DisplayText(raw string) string {
	return rewrite(raw, 2)
}

// SynthesisText renders every escape as the text sent for synthesis.
func SynthesisText(raw string) string {
	return rewrite(raw, 4)
}

// rewrite replaces each escape with its submatch starting at group offset g.
// Matches are applied from the last to the first so earlier offsets stay
// valid.
func rewrite(raw string, g int) string {
	matches := escape.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	out := raw
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		var b strings.Builder
		b.Grow(len(out))
		b.WriteString(out[:m[0]])
		b.WriteString(raw[m[g]:m[g+1]])
		b.WriteString(out[m[1]:])
		out = b.String()
	}

	return out
}
