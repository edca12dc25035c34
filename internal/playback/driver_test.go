package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/prefetch"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) add(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLog) all() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func newTestDriver(t *testing.T, s synth.Synthesizer, opts Options) (*Driver, *audio.MockOutput, *prefetch.Buffer, *errorLog) {
	t.Helper()
	out := audio.NewMockOutput(audio.MockCallbacks{})
	buf := prefetch.New(s, nil)
	if opts.TickInterval == 0 {
		opts.TickInterval = 5 * time.Millisecond
	}
	d := NewDriver(out, buf, opts)

	errs := &errorLog{}
	d.OnError(errs.add)
	t.Cleanup(func() { _ = d.Close() })
	return d, out, buf, errs
}

func threeTakes() []take.Take {
	return take.Segment("First take.\n\nSecond one here.\n\nAnd the third.", 200)
}

func playing(out *audio.MockOutput) func() bool {
	return func() bool { return out.State() == audio.StatePlaying }
}

func TestDriver_PlaysTakesInOrder(t *testing.T) {
	d, out, buf, errs := newTestDriver(t, synth.NewMock(), Options{})

	takes := threeTakes()
	if len(takes) != 3 {
		t.Fatalf("got %d takes, want 3", len(takes))
	}
	if err := d.Start(takes, 0, "v"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var order []int
	for i := 0; i < len(takes); i++ {
		waitFor(t, "take to play", playing(out))
		order = append(order, d.Snapshot().CurrentTake)
		out.Finish()
	}
	waitFor(t, "end of reading", func() bool { return d.State() == StateEnded })

	for i, n := range order {
		if n != i {
			t.Fatalf("play order = %v, want [0 1 2]", order)
		}
	}

	snap := d.Snapshot()
	if snap.CurrentTake != 0 || snap.CurrentWord != 0 {
		t.Errorf("ended at take %d word %d, want 0/0", snap.CurrentTake, snap.CurrentWord)
	}
	if snap.Playing || snap.Paused {
		t.Error("ended session still reports playing or paused")
	}
	if buf.Len() != 0 {
		t.Errorf("buffer holds %d entries after the end", buf.Len())
	}
	if len(errs.all()) != 0 {
		t.Errorf("unexpected errors: %v", errs.all())
	}
}

func TestDriver_EmptyInputStaysIdle(t *testing.T) {
	d, out, _, _ := newTestDriver(t, synth.NewMock(), Options{})

	if err := d.Start(nil, 0, "v"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if d.State() != StateIdle {
		t.Errorf("state = %v, want idle", d.State())
	}
	if out.GetMetrics().LoadCount != 0 {
		t.Error("empty input loaded audio")
	}
}

func TestDriver_StartOutOfRange(t *testing.T) {
	d, _, _, _ := newTestDriver(t, synth.NewMock(), Options{})
	if err := d.Start(threeTakes(), 3, "v"); !errors.Is(err, ErrNoSuchTake) {
		t.Errorf("Start() error = %v, want ErrNoSuchTake", err)
	}
	if err := d.JumpTo(0); !errors.Is(err, ErrNoSuchTake) {
		t.Errorf("JumpTo() without takes error = %v, want ErrNoSuchTake", err)
	}
}

func TestDriver_EmptyTakePlaysSilently(t *testing.T) {
	m := synth.NewMock()
	d, out, _, _ := newTestDriver(t, m, Options{})

	// An ideographic space survives the block split but trims to nothing.
	takes := take.Segment("One.\n\n\u3000\n\nTwo.", 200)
	if len(takes) != 3 || !takes[1].Empty() {
		t.Fatalf("expected an empty take in the middle, got %+v", takes)
	}
	_ = d.Start(takes, 0, "v")

	waitFor(t, "first take", playing(out))
	out.Finish()
	// The empty take ends as soon as it starts.
	waitFor(t, "last take", func() bool {
		return d.Snapshot().CurrentTake == len(takes)-1 && out.State() == audio.StatePlaying
	})

	for _, c := range m.Calls() {
		if c.Text == "" {
			t.Error("empty take reached the synthesizer")
		}
	}
}

func TestDriver_SupersededSessionNeverPlays(t *testing.T) {
	var loads sync.Map
	out := audio.NewMockOutput(audio.MockCallbacks{
		OnLoad: func(c *audio.Clip) { loads.Store(len(c.PCM), true) },
	})

	// Takes of the first session block until their context is cancelled.
	s := synth.SynthesizerFunc(func(ctx context.Context, tk take.Take, voiceID string) (*synth.Handle, error) {
		if voiceID == "old" {
			<-ctx.Done()
			return nil, ttypes.Cancelled("test", ctx.Err())
		}
		clip := &audio.Clip{PCM: make([]byte, 2*(tk.Index+1)), SampleRate: 1000, Channels: 1}
		return synth.NewHandle(nil, clip), nil
	})

	buf := prefetch.New(s, nil)
	d := NewDriver(out, buf, Options{TickInterval: 5 * time.Millisecond})
	defer d.Close()

	var errs errorLog
	d.OnError(errs.add)

	_ = d.Start(threeTakes(), 0, "old")
	waitFor(t, "generating", func() bool { return d.State() == StateGenerating })

	_ = d.Start(threeTakes(), 2, "new")
	waitFor(t, "new session to play", playing(out))

	if got := d.Snapshot(); got.CurrentTake != 2 || got.VoiceID != "new" {
		t.Errorf("playing take %d voice %q, want take 2 voice new", got.CurrentTake, got.VoiceID)
	}
	n := 0
	loads.Range(func(any, any) bool { n++; return true })
	if n != 1 {
		t.Errorf("%d clips loaded, want only the new session's", n)
	}
	if len(errs.all()) != 0 {
		t.Errorf("cancellation reported as error: %v", errs.all())
	}
}

func TestDriver_PauseWhileGenerating(t *testing.T) {
	gate := make(chan struct{})
	m := synth.NewMock()
	m.SetGate(gate)
	d, out, _, _ := newTestDriver(t, m, Options{})

	_ = d.Start(threeTakes(), 0, "v")
	waitFor(t, "generating", func() bool { return d.State() == StateGenerating })

	d.Pause()
	if d.State() != StatePaused {
		t.Fatalf("state = %v, want paused", d.State())
	}

	close(gate)
	waitFor(t, "take to be primed", func() bool { return out.GetMetrics().LoadCount == 1 })
	if out.State() != audio.StatePaused {
		t.Errorf("output state = %v, want primed (paused)", out.State())
	}
	if d.State() != StatePaused {
		t.Errorf("driver state = %v, want paused", d.State())
	}

	d.Resume()
	waitFor(t, "playback", playing(out))
	if d.State() != StatePlaying {
		t.Errorf("state = %v, want playing", d.State())
	}
}

func TestDriver_ResumeWhileStillGenerating(t *testing.T) {
	gate := make(chan struct{})
	m := synth.NewMock()
	m.SetGate(gate)
	d, out, _, _ := newTestDriver(t, m, Options{})

	_ = d.Start(threeTakes(), 0, "v")
	d.Pause()
	d.Resume()
	if d.State() != StateGenerating {
		t.Fatalf("state = %v, want generating", d.State())
	}

	close(gate)
	waitFor(t, "playback", playing(out))
}

func TestDriver_PauseMidTake(t *testing.T) {
	d, out, _, _ := newTestDriver(t, synth.NewMock(), Options{})

	_ = d.Start(threeTakes(), 0, "v")
	waitFor(t, "playback", playing(out))

	if !d.Toggle() {
		t.Fatal("Toggle() = false on a playing session")
	}
	if out.State() != audio.StatePaused || !d.Snapshot().Paused {
		t.Fatal("toggle did not pause")
	}

	// A finished clip is not reported while paused.
	if out.Finish() {
		t.Error("paused output finished")
	}

	d.Toggle()
	waitFor(t, "resume", playing(out))
	if d.Snapshot().CurrentTake != 0 {
		t.Error("resume moved to another take")
	}
}

func TestDriver_PauseDuringDelayPrimesNextTake(t *testing.T) {
	d, out, _, _ := newTestDriver(t, synth.NewMock(), Options{InterTakeDelay: time.Hour})

	_ = d.Start(threeTakes(), 0, "v")
	waitFor(t, "playback", playing(out))
	out.Finish()
	waitFor(t, "inter-take delay", func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.inDelay
	})

	d.Pause()
	waitFor(t, "next take primed", func() bool { return out.GetMetrics().LoadCount == 2 })

	snap := d.Snapshot()
	if snap.CurrentTake != 1 || !snap.Paused {
		t.Errorf("snapshot = take %d paused %v, want take 1 paused", snap.CurrentTake, snap.Paused)
	}
	if out.State() != audio.StatePaused {
		t.Errorf("output state = %v, want primed", out.State())
	}

	d.Resume()
	waitFor(t, "next take to play", playing(out))
}

func TestDriver_FirstTakeFailure(t *testing.T) {
	m := synth.NewMock()
	m.FailTake(0, errors.New("503"))
	d, _, buf, errs := newTestDriver(t, m, Options{})

	_ = d.Start(threeTakes(), 0, "v")
	waitFor(t, "failure", func() bool { return len(errs.all()) == 1 })

	var f *Failure
	if !errors.As(errs.all()[0], &f) {
		t.Fatalf("error %T is not a *Failure", errs.all()[0])
	}
	if !f.First || f.Take != 0 {
		t.Errorf("failure = %+v, want first take", f)
	}
	if f.Kind() != ttypes.KindSynthesisFailed {
		t.Errorf("Kind() = %v, want synthesis_failed", f.Kind())
	}
	waitFor(t, "idle", func() bool { return d.State() == StateIdle })
	if _, ok := buf.Generating(); ok {
		t.Error("generating marker left after failure")
	}
}

func TestDriver_LaterTakeFailure(t *testing.T) {
	m := synth.NewMock()
	m.FailTake(1, errors.New("503"))
	d, out, _, errs := newTestDriver(t, m, Options{})

	_ = d.Start(threeTakes(), 0, "v")
	waitFor(t, "playback", playing(out))

	// The failed prefetch of take 1 is not reported while take 0 plays.
	time.Sleep(20 * time.Millisecond)
	if len(errs.all()) != 0 {
		t.Fatalf("prefetch failure reported early: %v", errs.all())
	}

	out.Finish()
	waitFor(t, "failure", func() bool { return len(errs.all()) == 1 })

	var f *Failure
	if !errors.As(errs.all()[0], &f) || f.Take != 1 || f.First {
		t.Errorf("failure = %v, want take 1, not first", errs.all()[0])
	}
	if d.State() != StateIdle {
		t.Errorf("state = %v, want idle", d.State())
	}
}

func TestDriver_StopIsSilent(t *testing.T) {
	gate := make(chan struct{})
	m := synth.NewMock()
	m.SetGate(gate)
	d, out, _, errs := newTestDriver(t, m, Options{})

	_ = d.Start(threeTakes(), 0, "v")
	d.Stop()
	close(gate)

	time.Sleep(20 * time.Millisecond)
	if d.State() != StateIdle {
		t.Errorf("state = %v, want idle", d.State())
	}
	if out.GetMetrics().LoadCount != 0 {
		t.Error("stopped session loaded audio")
	}
	if len(errs.all()) != 0 {
		t.Errorf("stop reported errors: %v", errs.all())
	}
}

func TestDriver_JumpTo(t *testing.T) {
	d, out, _, _ := newTestDriver(t, synth.NewMock(), Options{})

	_ = d.Start(threeTakes(), 0, "v")
	waitFor(t, "playback", playing(out))

	if err := d.JumpTo(2); err != nil {
		t.Fatalf("JumpTo() error = %v", err)
	}
	waitFor(t, "take 2", func() bool {
		return d.Snapshot().CurrentTake == 2 && out.State() == audio.StatePlaying
	})

	out.Finish()
	waitFor(t, "end", func() bool { return d.State() == StateEnded })
}

func TestDriver_WordHighlight(t *testing.T) {
	d, out, _, _ := newTestDriver(t, synth.NewMock(), Options{HighlightPad: -1})

	_ = d.Start(threeTakes(), 1, "v") // "Second one here."
	waitFor(t, "playback", playing(out))

	out.SetPosition(out.Duration())
	waitFor(t, "last word", func() bool { return d.Snapshot().CurrentWord == 2 })
}

func TestDriver_OnChange(t *testing.T) {
	d, out, _, _ := newTestDriver(t, synth.NewMock(), Options{})

	states := make(chan State, 64)
	d.OnChange(func(s Snapshot) {
		select {
		case states <- s.State:
		default:
		}
	})

	_ = d.Start(threeTakes(), 0, "v")
	waitFor(t, "playback", playing(out))

	seen := map[State]bool{}
	timeout := time.After(time.Second)
	for !seen[StatePlaying] {
		select {
		case s := <-states:
			seen[s] = true
		case <-timeout:
			t.Fatal("no playing snapshot delivered")
		}
	}
	if !seen[StateGenerating] {
		t.Error("no generating snapshot delivered")
	}
}

func TestDriver_SlowListenerNeverSeesStaleState(t *testing.T) {
	for run := 0; run < 10; run++ {
		d, out, _, _ := newTestDriver(t, synth.NewMock(), Options{TickInterval: time.Millisecond})

		var (
			mu    sync.Mutex
			last  Snapshot
			order []uint64
		)
		d.OnChange(func(s Snapshot) {
			if s.State == StatePlaying {
				time.Sleep(3 * time.Millisecond)
			}
			mu.Lock()
			defer mu.Unlock()
			last = s
			order = append(order, s.Seq)
		})
		lastState := func() State {
			mu.Lock()
			defer mu.Unlock()
			return last.State
		}

		_ = d.Start(take.Segment("Only take.", 200), 0, "v")
		waitFor(t, "playback", playing(out))
		out.SetPosition(50 * time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		out.Finish()

		waitFor(t, "end of reading", func() bool { return d.State() == StateEnded })
		waitFor(t, "ended snapshot", func() bool { return lastState() == StateEnded })
		time.Sleep(20 * time.Millisecond)
		if got := lastState(); got != StateEnded {
			t.Fatalf("run %d: last delivered state = %v after the end", run, got)
		}

		mu.Lock()
		for i := 1; i < len(order); i++ {
			if order[i] <= order[i-1] {
				t.Errorf("run %d: snapshot %d delivered after %d", run, order[i], order[i-1])
			}
		}
		mu.Unlock()
		_ = d.Close()
	}
}
