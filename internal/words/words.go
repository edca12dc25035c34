// Package words splits display text into highlightable tokens and assigns
// each a synthetic duration weight.
package words

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Weight bonuses for trailing punctuation, in characters.
const (
	FullStopBonus = 11
	ClauseBonus   = 7
)

// tokenPattern matches a word with one optional trailing mark, or a lone mark.
var tokenPattern = regexp.MustCompile(`[^\s.,!?]+[.,!?]?|[.,!?]`)

// Token is one highlightable word.
type Token struct {
	Text   string
	Weight int
}

// Weigh tokenizes text and weights every token. The result depends only on
// text.
func Weigh(text string) []Token {
	matches := tokenPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	tokens := make([]Token, len(matches))
	for i, m := range matches {
		tokens[i] = Token{Text: m}
		tokens[i].Weight = weight(tokens[i])
	}
	return tokens
}

// weight is the character count without the trailing mark, plus a bonus
// for that mark.
func weight(t Token) int {
	w := utf8.RuneCountInString(strings.TrimRight(t.Text, ".,!?"))

	switch {
	case EndsSentence(t):
		w += FullStopBonus
	case strings.HasSuffix(t.Text, ","),
		strings.HasSuffix(t.Text, "!"),
		strings.HasSuffix(t.Text, "?"):
		w += ClauseBonus
	}

	return w
}

// Total returns the summed weight of tokens.
func Total(tokens []Token) int {
	total := 0
	for _, t := range tokens {
		total += t.Weight
	}
	return total
}

// EndsSentence reports whether the token closes a sentence.
func EndsSentence(t Token) bool {
	return strings.HasSuffix(t.Text, ".")
}
