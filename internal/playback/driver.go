// Package playback plays takes in order through one audio output, keeping
// the next take's audio one step ahead.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/highlight"
	"github.com/dgnsrekt/readaloud/internal/prefetch"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
	"github.com/dgnsrekt/readaloud/internal/words"
)

// ErrNoSuchTake is returned when a take index is out of range.
var ErrNoSuchTake = errors.New("no such take")

// Options configure a Driver.
type Options struct {
	// InterTakeDelay is the silence between two takes
	InterTakeDelay time.Duration

	// TickInterval is how often the spoken word is recomputed
	TickInterval time.Duration

	// HighlightPad is added to each take's duration for word timing
	HighlightPad time.Duration

	Logger *log.Logger
}

// DefaultOptions returns the stock timing.
func DefaultOptions() Options {
	return Options{
		InterTakeDelay: time.Second,
		TickInterval:   100 * time.Millisecond,
		HighlightPad:   highlight.DefaultPad,
	}
}

// Snapshot is a read-only view of the driver. Seq grows with every
// snapshot taken, so a larger Seq is always the more recent view.
type Snapshot struct {
	Seq         uint64
	SessionID   string
	State       State
	Takes       []take.Take
	VoiceID     string
	CurrentTake int
	CurrentWord int
	Playing     bool // Session running and not paused
	Paused      bool
	Generating  int // Take being synthesized, -1 when none
	Position    time.Duration
	Duration    time.Duration
}

// Failure reports a take that could not be played. The session has been
// unwound to StateIdle.
type Failure struct {
	Take  int
	First bool // The take the session started at
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("take %d: %v", f.Take+1, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Kind returns the error kind of the failure.
func (f *Failure) Kind() ttypes.Kind { return ttypes.KindOf(f.Err) }

// Driver sequences takes through an audio.Output.
//
// Every session owns a context and the prefetch epoch it was started with.
// Goroutines spawned for a session re-check the epoch under the driver
// mutex before they change anything, so a superseded session never plays.
type Driver struct {
	out     audio.Output
	buf     *prefetch.Buffer
	opts    Options
	logger  *log.Logger
	tracker *highlight.Tracker

	mu      sync.Mutex
	sm      *StateMachine
	takes   []take.Take
	tokens  [][]words.Token
	voiceID string
	start   int
	current int
	word    int

	epoch   uint64
	session string
	ctx     context.Context
	cancel  context.CancelFunc

	takeCancel context.CancelFunc // Watcher and tracker of the audible take
	handle     *synth.Handle      // Audio loaded into out
	loaded     bool
	waiting    bool // Current take has no audio yet
	delay      *time.Timer
	inDelay    bool
	closed     bool

	onChange []func(Snapshot)
	onError  []func(error)
	failures []error // Reported by the next notify
	seq      uint64

	deliverMu sync.Mutex // Held while listeners run
	delivered uint64     // Seq of the last snapshot handed to listeners
}

// NewDriver creates a driver. The driver owns out from here on.
func NewDriver(out audio.Output, buf *prefetch.Buffer, opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.InterTakeDelay < 0 {
		opts.InterTakeDelay = 0
	}

	d := &Driver{
		out:     out,
		buf:     buf,
		opts:    opts,
		logger:  opts.Logger.WithPrefix("playback"),
		tracker: highlight.NewTracker(opts.TickInterval, opts.HighlightPad),
		sm:      NewStateMachine(),
		ctx:     context.Background(),
		cancel:  func() {},
	}

	d.sm.OnEnter(StateEnded, func() {
		d.logger.Info("reading finished", "session", d.session, "takes", len(d.takes))
	})
	buf.OnReady(d.ready)

	return d
}

// OnChange registers a listener called after every visible change.
// Listeners run one at a time and never see an older snapshot after a newer
// one. They must not call back into Start, Stop, Pause or Resume.
func (d *Driver) OnChange(fn func(Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = append(d.onChange, fn)
}

// OnError registers a listener for session failures. Cancellations are
// never reported.
func (d *Driver) OnError(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = append(d.onError, fn)
}

// Start supersedes any running session and begins playing takes at
// startIndex. With no takes the driver stays idle.
func (d *Driver) Start(takes []take.Take, startIndex int, voiceID string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("driver is closed")
	}
	if len(takes) > 0 && (startIndex < 0 || startIndex >= len(takes)) {
		d.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchTake, startIndex)
	}

	d.teardownLocked()
	d.takes = takes
	d.tokens = make([][]words.Token, len(takes))
	for i, t := range takes {
		d.tokens[i] = words.Weigh(t.Display)
	}
	d.voiceID = voiceID
	d.start = startIndex
	d.current = startIndex
	d.word = 0

	if len(takes) == 0 {
		d.current = 0
		d.mu.Unlock()
		d.notify()
		return nil
	}

	d.epoch = d.buf.Reset(takes)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.session = uuid.NewString()
	d.logger.Debug("session started", "session", d.session, "takes", len(takes), "at", startIndex, "voice", voiceID)

	d.playTakeLocked(startIndex)
	d.mu.Unlock()
	d.notify()
	return nil
}

// JumpTo restarts the session at take n with the same takes and voice.
func (d *Driver) JumpTo(n int) error {
	d.mu.Lock()
	takes, voice := d.takes, d.voiceID
	d.mu.Unlock()

	if n < 0 || n >= len(takes) {
		return fmt.Errorf("%w: %d", ErrNoSuchTake, n)
	}
	return d.Start(takes, n, voice)
}

// Pause holds playback. Paused while waiting for audio or between takes,
// the upcoming take is primed so Resume starts it immediately.
func (d *Driver) Pause() {
	d.mu.Lock()
	switch d.sm.Current() {
	case StateGenerating:
		d.setStateLocked(StatePaused)

	case StatePlaying:
		if !d.inDelay && d.loaded && isDone(d.out.Done()) {
			// The take ended before its watcher got the lock.
			d.takeEndedLocked()
			if d.sm.Current() == StateEnded {
				break
			}
		}
		if d.inDelay {
			d.stopDelayLocked()
			d.setStateLocked(StatePaused)
			d.playTakeLocked(d.current + 1)
			break
		}
		if err := d.out.Pause(); err != nil {
			d.logger.Warn("pause failed", "err", err)
		}
		d.stopTakeLocked()
		d.setStateLocked(StatePaused)

	default:
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	d.notify()
}

// Resume continues a paused session.
func (d *Driver) Resume() {
	d.mu.Lock()
	if d.sm.Current() != StatePaused {
		d.mu.Unlock()
		return
	}

	switch {
	case d.waiting:
		d.setStateLocked(StateGenerating)
	case d.loaded:
		d.beginPlaybackLocked()
	}
	d.mu.Unlock()
	d.notify()
}

// Toggle pauses a running session or resumes a paused one. It reports
// false when no session is active.
func (d *Driver) Toggle() bool {
	switch d.State() {
	case StatePlaying, StateGenerating:
		d.Pause()
	case StatePaused:
		d.Resume()
	default:
		return false
	}
	return true
}

// Stop ends the session and returns to StateIdle.
func (d *Driver) Stop() {
	d.mu.Lock()
	d.teardownLocked()
	d.word = 0
	d.mu.Unlock()
	d.notify()
}

// Close stops the session and releases the audio output.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.teardownLocked()
	d.closed = true
	d.mu.Unlock()
	return d.out.Close()
}

// State returns the current state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sm.Current()
}

// Snapshot returns the current view.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Driver) snapshotLocked() Snapshot {
	state := d.sm.Current()
	gen := -1
	if i, ok := d.buf.Generating(); ok && state.Active() {
		gen = i
	}

	d.seq++
	s := Snapshot{
		Seq:         d.seq,
		SessionID:   d.session,
		State:       state,
		Takes:       d.takes,
		VoiceID:     d.voiceID,
		CurrentTake: d.current,
		CurrentWord: d.word,
		Playing:     state == StatePlaying || state == StateGenerating,
		Paused:      state == StatePaused,
		Generating:  gen,
	}
	if d.loaded {
		s.Position = d.out.Position()
		s.Duration = d.out.Duration()
	}
	return s
}

// playTakeLocked makes n the current take and plays it, or waits for its
// audio when it is not buffered yet.
func (d *Driver) playTakeLocked(n int) {
	d.current = n
	d.word = 0
	d.loaded = false

	h, ok, needsPrepare := d.buf.ConsumeOrDefer(n)
	if ok {
		d.startHandleLocked(n, h)
		return
	}

	d.waiting = true
	if d.sm.Current() != StatePaused {
		d.setStateLocked(StateGenerating)
	}
	if needsPrepare {
		go d.prepare(d.ctx, d.epoch, n, d.voiceID)
	}
}

// startHandleLocked loads h for take n and plays it unless the session is
// paused, in which case the take stays primed.
func (d *Driver) startHandleLocked(n int, h *synth.Handle) {
	d.waiting = false
	d.releaseHandleLocked()
	d.handle = h

	if err := d.out.Load(h.Clip()); err != nil {
		d.failLocked(n, ttypes.NewError(ttypes.KindSynthesisFailed, "load", err))
		return
	}
	d.loaded = true

	if d.sm.Current() == StatePaused {
		d.logger.Debug("take primed", "take", n+1)
		return
	}
	d.beginPlaybackLocked()
}

// beginPlaybackLocked starts the loaded take along with its end watcher,
// word tracker, and the prefetch of the following take.
func (d *Driver) beginPlaybackLocked() {
	if err := d.out.Play(); err != nil {
		d.failLocked(d.current, ttypes.NewError(ttypes.KindSynthesisFailed, "play", err))
		return
	}
	d.setStateLocked(StatePlaying)

	ctx, cancel := context.WithCancel(d.ctx)
	d.stopTakeLocked()
	d.takeCancel = cancel

	epoch, n := d.epoch, d.current
	go d.watch(ctx, epoch, n, d.out.Done())
	go d.tracker.Run(ctx, d.out, d.tokens[n], func(i int) { d.setWord(epoch, n, i) })

	if n+1 < len(d.takes) {
		go d.prepare(d.ctx, epoch, n+1, d.voiceID)
	}
}

// prepare fetches take n. A failure of the take the session is waiting on
// ends the session; a failed prefetch is only logged and retried when the
// take comes up.
func (d *Driver) prepare(ctx context.Context, epoch uint64, n int, voiceID string) {
	err := d.buf.Prepare(ctx, n, voiceID)
	if err == nil || ttypes.IsCancelled(err) {
		return
	}

	d.mu.Lock()
	if d.epoch != epoch {
		d.mu.Unlock()
		return
	}
	if n != d.current || !d.waiting {
		d.mu.Unlock()
		d.logger.Warn("prefetch failed", "take", n+1, "err", err)
		return
	}

	d.failLocked(n, err)
	d.mu.Unlock()
	d.notify()
}

// ready runs when a take the driver was waiting on has been buffered.
func (d *Driver) ready(epoch uint64, n int) {
	d.mu.Lock()
	if epoch != d.epoch || n != d.current || !d.waiting {
		d.mu.Unlock()
		return
	}
	h, ok := d.buf.Consume(n)
	if !ok {
		d.mu.Unlock()
		return
	}
	d.startHandleLocked(n, h)
	d.mu.Unlock()
	d.notify()
}

// watch waits for take n to finish playing.
func (d *Driver) watch(ctx context.Context, epoch uint64, n int, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case <-done:
	}

	d.mu.Lock()
	if epoch != d.epoch || n != d.current || d.sm.Current() != StatePlaying || d.inDelay {
		d.mu.Unlock()
		return
	}
	d.takeEndedLocked()
	d.mu.Unlock()
	d.notify()
}

func (d *Driver) takeEndedLocked() {
	n := d.current
	d.stopTakeLocked()
	d.releaseHandleLocked()
	d.buf.Release(n)
	d.loaded = false
	if tokens := d.tokens[n]; len(tokens) > 0 {
		d.word = len(tokens) - 1
	}

	if n+1 >= len(d.takes) {
		d.endLocked()
		return
	}

	d.inDelay = true
	epoch := d.epoch
	d.delay = time.AfterFunc(d.opts.InterTakeDelay, func() { d.afterDelay(epoch, n+1) })
}

func (d *Driver) afterDelay(epoch uint64, next int) {
	d.mu.Lock()
	if epoch != d.epoch || !d.inDelay {
		d.mu.Unlock()
		return
	}
	d.inDelay = false
	d.delay = nil
	d.playTakeLocked(next)
	d.mu.Unlock()
	d.notify()
}

func (d *Driver) setWord(epoch uint64, n, i int) {
	d.mu.Lock()
	if epoch != d.epoch || n != d.current || d.word == i {
		d.mu.Unlock()
		return
	}
	d.word = i
	d.mu.Unlock()
	d.notify()
}

// endLocked finishes the session after its last take.
func (d *Driver) endLocked() {
	d.cancel()
	d.epoch = d.buf.Reset(d.takes)
	d.setStateLocked(StateEnded)
	d.current = 0
	d.word = 0
}

// failLocked unwinds the session and queues the failure for listeners.
func (d *Driver) failLocked(n int, err error) {
	d.logger.Error("take failed", "session", d.session, "take", n+1, "err", err)
	d.failures = append(d.failures, &Failure{Take: n, First: n == d.start, Err: err})
	d.teardownLocked()
}

// teardownLocked cancels the running session and returns to StateIdle.
func (d *Driver) teardownLocked() {
	d.cancel()
	d.stopDelayLocked()
	d.stopTakeLocked()
	if d.loaded || d.sm.Current().Active() {
		if err := d.out.Stop(); err != nil {
			d.logger.Debug("stop failed", "err", err)
		}
	}
	d.releaseHandleLocked()
	d.loaded = false
	d.waiting = false
	d.epoch = d.buf.Reset(nil)
	d.setStateLocked(StateIdle)
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (d *Driver) stopTakeLocked() {
	if d.takeCancel != nil {
		d.takeCancel()
		d.takeCancel = nil
	}
}

func (d *Driver) stopDelayLocked() {
	if d.delay != nil {
		d.delay.Stop()
		d.delay = nil
	}
	d.inDelay = false
}

func (d *Driver) releaseHandleLocked() {
	if d.handle != nil {
		_ = d.handle.Release()
		d.handle = nil
	}
}

func (d *Driver) setStateLocked(s State) {
	if !d.sm.Transition(s) {
		d.logger.Error("invalid state transition", "from", d.sm.Current(), "to", s)
	}
}

// notify reports queued failures, then the current snapshot. It must be
// called without the lock held. A snapshot that lost the race to a newer
// one is dropped.
func (d *Driver) notify() {
	d.mu.Lock()
	failures := d.failures
	d.failures = nil
	snap := d.snapshotLocked()
	errListeners := slices.Clone(d.onError)
	listeners := slices.Clone(d.onChange)
	d.mu.Unlock()

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	for _, err := range failures {
		for _, fn := range errListeners {
			fn(err)
		}
	}
	if snap.Seq < d.delivered {
		return
	}
	d.delivered = snap.Seq
	for _, fn := range listeners {
		fn(snap)
	}
}
