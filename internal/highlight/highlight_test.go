package highlight

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/words"
)

func TestCurrentWordIndex(t *testing.T) {
	// "Hello, world." weighs 12 + 16 = 28. With a 6s take the budget is 7s,
	// so "Hello," owns [0, 3) and "world." owns [3, 7).
	tokens := words.Weigh("Hello, world.")

	tests := []struct {
		name    string
		elapsed float64
		total   float64
		want    int
	}{
		{"start", 0, 6, 0},
		{"inside first", 2.9, 6, 0},
		{"boundary", 3, 6, 1},
		{"inside last", 6, 6, 1},
		{"past the end", 100, 6, 1},
		{"zero duration", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CurrentWordIndex(tt.elapsed, tt.total, tokens); got != tt.want {
				t.Errorf("CurrentWordIndex(%v, %v) = %d, want %d", tt.elapsed, tt.total, got, tt.want)
			}
		})
	}
}

func TestCurrentWordIndexNoTokens(t *testing.T) {
	if got := CurrentWordIndex(3, 10, nil); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestCurrentWordIndexMonotonic(t *testing.T) {
	tokens := words.Weigh("It was the best of times, it was the worst of times. Really!")
	total := 7.5

	prev := 0
	for e := 0.0; e <= total; e += 0.05 {
		idx := CurrentWordIndex(e, total, tokens)
		if idx < prev {
			t.Fatalf("index went backwards at %.2fs: %d after %d", e, idx, prev)
		}
		prev = idx
	}
}

func TestCurrentWordIndexBoundaries(t *testing.T) {
	tokens := words.Weigh("one two three, four.")
	for _, total := range []float64{0.5, 3, 12} {
		if got := CurrentWordIndex(0, total, tokens); got != 0 {
			t.Errorf("total %v: index at 0 = %d", total, got)
		}
		if got := CurrentWordIndex(total+1, total, tokens); got != len(tokens)-1 {
			t.Errorf("total %v: index at end = %d, want %d", total, got, len(tokens)-1)
		}
	}
}

func TestIndexAtPad(t *testing.T) {
	tokens := []words.Token{{Text: "a", Weight: 1}, {Text: "b", Weight: 1}}

	// Without pad the halfway point of a 2s take is the second word.
	if got := IndexAt(time.Second, 2*time.Second, 0, tokens); got != 1 {
		t.Errorf("no pad: got %d, want 1", got)
	}
	// With a 2s pad each word owns 2s.
	if got := IndexAt(time.Second, 2*time.Second, 2*time.Second, tokens); got != 0 {
		t.Errorf("with pad: got %d, want 0", got)
	}
}

type fakeClock struct {
	mu       sync.Mutex
	position time.Duration
	duration time.Duration
}

func (c *fakeClock) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *fakeClock) Duration() time.Duration {
	return c.duration
}

func (c *fakeClock) set(d time.Duration) {
	c.mu.Lock()
	c.position = d
	c.mu.Unlock()
}

func TestTrackerReportsChanges(t *testing.T) {
	tokens := []words.Token{{Text: "a", Weight: 1}, {Text: "b", Weight: 1}}
	clock := &fakeClock{duration: 2 * time.Second}
	tracker := NewTracker(time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx, clock, tokens, func(i int) { changes <- i })
		close(done)
	}()

	expect := func(want int) {
		t.Helper()
		select {
		case got := <-changes:
			if got != want {
				t.Fatalf("change = %d, want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("no change to %d reported", want)
		}
	}

	expect(0)
	clock.set(1500 * time.Millisecond)
	expect(1)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
