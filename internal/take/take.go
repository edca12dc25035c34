// Package take splits input text into bounded-length takes, the unit of
// speech synthesis and playback.
package take

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength is the take length used when none is configured.
const DefaultMaxLength = 200

// blockSplit matches two or more consecutive blank lines.
var blockSplit = regexp.MustCompile(`(?:[ \t]*\r?\n){2,}`)

// Take is one playable segment of the input.
type Take struct {
	Index int // Position in the sequence (0-based)
	Block int // Paragraph the take came from (0-based)

	Raw       string // Trimmed source text, empty for a paragraph gap
	Display   string // Raw with escapes rendered for the reader
	Synthesis string // Raw with escapes rendered for the speech service
}

// Name returns the human-facing take label.
func (t Take) Name() string {
	return fmt.Sprintf("Take_%d", t.Index+1)
}

// Empty reports whether the take is a paragraph-gap placeholder.
func (t Take) Empty() bool {
	return t.Raw == ""
}

// Len returns the take length in characters.
func (t Take) Len() int {
	return len([]rune(t.Raw))
}

func newTake(index, block int, raw string) Take {
	return Take{
		Index:     index,
		Block:     block,
		Raw:       raw,
		Display:   DisplayText(raw),
		Synthesis: SynthesisText(raw),
	}
}

// Segment splits text into takes of at most maxLength characters.
//
// Paragraphs (separated by two or more blank lines) are segmented
// independently; an empty paragraph yields one empty take. Inside a
// paragraph a take ends after the last sentence mark that fits, else at the
// last whitespace that fits, else exactly at maxLength.
func Segment(text string, maxLength int) []Take {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var takes []Take
	for block, chunk := range blockSplit.Split(text, -1) {
		rest := []rune(strings.TrimSpace(chunk))
		if len(rest) == 0 {
			takes = append(takes, newTake(len(takes), block, ""))
			continue
		}

		for len(rest) > 0 {
			if len(rest) <= maxLength {
				takes = append(takes, newTake(len(takes), block, string(rest)))
				break
			}

			cut := cutPoint(rest, maxLength)
			piece := strings.TrimSpace(string(rest[:cut]))
			rest = []rune(strings.TrimSpace(string(rest[cut:])))

			takes = append(takes, newTake(len(takes), block, piece))
		}
	}

	return takes
}

// cutPoint returns where to cut r, which is longer than limit. The result is
// always in [1, limit].
func cutPoint(r []rune, limit int) int {
	for i := limit - 1; i > 0; i-- {
		if isSentenceMark(r[i]) {
			return i + 1
		}
	}

	for i := limit; i > 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}

	return limit
}

func isSentenceMark(r rune) bool {
	switch r {
	case '.', '!', '?', '~':
		return true
	}
	return false
}
