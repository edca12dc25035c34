package highlight

import (
	"context"
	"time"

	"github.com/dgnsrekt/readaloud/internal/words"
)

// Clock reports where playback is inside the current take.
type Clock interface {
	Position() time.Duration
	Duration() time.Duration
}

// Tracker polls a Clock and reports word changes.
type Tracker struct {
	updateRate time.Duration
	pad        time.Duration
}

// NewTracker creates a tracker polling every updateRate.
func NewTracker(updateRate, pad time.Duration) *Tracker {
	if updateRate <= 0 {
		updateRate = 100 * time.Millisecond
	}
	if pad < 0 {
		pad = 0
	}
	return &Tracker{updateRate: updateRate, pad: pad}
}

// Index returns the word index for the clock's current position.
func (t *Tracker) Index(clock Clock, tokens []words.Token) int {
	return IndexAt(clock.Position(), clock.Duration(), t.pad, tokens)
}

// Run calls onChange whenever the spoken word changes, until ctx is done.
// The index is recomputed from scratch on every tick.
func (t *Tracker) Run(ctx context.Context, clock Clock, tokens []words.Token, onChange func(int)) {
	ticker := time.NewTicker(t.updateRate)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			idx := t.Index(clock, tokens)
			if idx != last {
				last = idx
				onChange(idx)
			}
		}
	}
}
