// Package highlight maps playback time within a take to the word being
// spoken.
package highlight

import (
	"time"

	"github.com/dgnsrekt/readaloud/internal/words"
)

// DefaultPad is added to a take's duration before it is spread across its
// words, so the last word stays lit until the audio is over.
const DefaultPad = time.Second

// CurrentWordIndex returns the token spoken elapsed seconds into a take of
// total seconds, using DefaultPad.
func CurrentWordIndex(elapsed, total float64, tokens []words.Token) int {
	return index(elapsed, total, DefaultPad.Seconds(), tokens)
}

// IndexAt is CurrentWordIndex for durations with an explicit pad.
func IndexAt(elapsed, total, pad time.Duration, tokens []words.Token) int {
	return index(elapsed.Seconds(), total.Seconds(), pad.Seconds(), tokens)
}

// index allocates total+pad across tokens in proportion to their weights and
// returns the first token whose cumulative share exceeds elapsed. It keeps
// no state, so it recovers immediately after a seek.
func index(elapsed, total, pad float64, tokens []words.Token) int {
	if len(tokens) == 0 || total <= 0 {
		return 0
	}

	budget := total + pad
	perWeight := 0.0
	if w := words.Total(tokens); w > 0 {
		perWeight = budget / float64(w)
	}

	acc := 0.0
	for i, t := range tokens {
		acc += float64(t.Weight) * perWeight
		if elapsed < acc {
			return i
		}
	}

	return len(tokens) - 1
}
