// Package prefetch keeps synthesized audio for upcoming takes so the next
// take can start as soon as the current one ends.
package prefetch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// ReadyFunc is called when a take that was waited on becomes available.
type ReadyFunc func(epoch uint64, index int)

// marker identifies the take being generated and the epoch that owns it.
type marker struct {
	epoch uint64
	index int
}

// Buffer maps take indexes to synthesized audio for one epoch at a time.
// An epoch begins with Reset; results that arrive for an older epoch are
// discarded.
type Buffer struct {
	synth  synth.Synthesizer
	logger *log.Logger
	group  singleflight.Group

	mu         sync.Mutex
	epoch      uint64
	takes      []take.Take
	entries    map[int]*synth.Handle
	inflight   map[int]bool
	consumed   map[int]bool
	generating *marker
	pending    int // Index waiting for auto-play, -1 when none
	onReady    ReadyFunc
}

// New creates an empty buffer. A nil logger discards log output.
func New(s synth.Synthesizer, logger *log.Logger) *Buffer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Buffer{
		synth:    s,
		logger:   logger.WithPrefix("prefetch"),
		entries:  make(map[int]*synth.Handle),
		inflight: make(map[int]bool),
		consumed: make(map[int]bool),
		pending:  -1,
	}
}

// OnReady registers the auto-play callback.
func (b *Buffer) OnReady(fn ReadyFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReady = fn
}

// Reset releases everything and starts a new epoch over takes.
func (b *Buffer) Reset(takes []take.Take) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseAllLocked()
	b.epoch++
	b.takes = takes
	b.inflight = make(map[int]bool)
	b.consumed = make(map[int]bool)
	return b.epoch
}

// Epoch returns the current epoch.
func (b *Buffer) Epoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}

// Prepare synthesizes take index unless it is out of range, already
// buffered, or already played this epoch. Concurrent calls for the same take
// share one request.
//
// Cancellation and stale results leave the buffer untouched and return an
// error matching ttypes.ErrCancelled. A synthesis failure clears the
// generating marker (if it still points here) and is returned.
func (b *Buffer) Prepare(ctx context.Context, index int, voiceID string) error {
	b.mu.Lock()
	if index < 0 || index >= len(b.takes) || b.entries[index] != nil || b.consumed[index] {
		b.mu.Unlock()
		return nil
	}

	epoch := b.epoch
	t := b.takes[index]

	if t.Empty() {
		b.entries[index] = synth.SilentHandle()
		fire := b.takePendingLocked(index)
		b.mu.Unlock()
		fire(epoch)
		return nil
	}

	b.inflight[index] = true
	b.generating = &marker{epoch: epoch, index: index}
	b.mu.Unlock()

	key := fmt.Sprintf("%d:%d:%s", epoch, index, voiceID)
	_, err, _ := b.group.Do(key, func() (any, error) {
		return nil, b.generate(ctx, epoch, t, voiceID)
	})
	return err
}

// generate runs once per flight and stores the result. A flight that
// starts after an earlier one for the same take has already stored or
// handed out its audio does nothing.
func (b *Buffer) generate(ctx context.Context, epoch uint64, t take.Take, voiceID string) error {
	const op = "prefetch"

	b.mu.Lock()
	if b.epoch == epoch && b.settledLocked(t.Index) {
		b.finishFlightLocked(epoch, t.Index)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	h, err := b.synth.Synthesize(ctx, t, voiceID)

	b.mu.Lock()
	stale := b.epoch != epoch
	if !stale {
		delete(b.inflight, t.Index)
	}

	switch {
	case err != nil && ttypes.IsCancelled(err):
		b.mu.Unlock()
		return err

	case err != nil:
		if !stale {
			b.clearMarkerLocked(epoch, t.Index)
		}
		b.mu.Unlock()
		b.logger.Debug("synthesis failed", "take", t.Name(), "err", err)
		return err

	case stale || ctx.Err() != nil:
		b.mu.Unlock()
		_ = h.Release()
		return ttypes.Cancelled(op, context.Canceled)
	}

	if b.settledLocked(t.Index) {
		b.clearMarkerLocked(epoch, t.Index)
		b.mu.Unlock()
		_ = h.Release()
		return nil
	}

	b.entries[t.Index] = h
	b.clearMarkerLocked(epoch, t.Index)
	fire := b.takePendingLocked(t.Index)
	b.mu.Unlock()

	b.logger.Debug("buffered", "take", t.Name())
	fire(epoch)
	return nil
}

// Consume removes and returns the audio for index.
func (b *Buffer) Consume(index int) (*synth.Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumeLocked(index)
}

// ConsumeOrDefer consumes index if it is buffered. Otherwise it marks index
// as awaiting auto-play and reports whether a request for it still has to
// be started.
func (b *Buffer) ConsumeOrDefer(index int) (h *synth.Handle, ok bool, needsPrepare bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.consumeLocked(index); ok {
		return h, true, false
	}
	b.pending = index
	return nil, false, !b.inflight[index]
}

// Release drops and frees the entry for index.
func (b *Buffer) Release(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.entries[index]; ok {
		_ = h.Release()
		delete(b.entries, index)
	}
}

// ReleaseAll frees every entry and clears both markers.
func (b *Buffer) ReleaseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseAllLocked()
}

// Generating returns the take currently being synthesized for this epoch.
func (b *Buffer) Generating() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generating == nil || b.generating.epoch != b.epoch {
		return -1, false
	}
	return b.generating.index, true
}

// AutoPlayPending returns the take waiting to auto-play.
func (b *Buffer) AutoPlayPending() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending, b.pending >= 0
}

// Has reports whether index is buffered.
func (b *Buffer) Has(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[index] != nil
}

// Len returns the number of buffered takes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) consumeLocked(index int) (*synth.Handle, bool) {
	h, ok := b.entries[index]
	if !ok {
		return nil, false
	}
	delete(b.entries, index)
	b.consumed[index] = true
	if b.pending == index {
		b.pending = -1
	}
	return h, true
}

// settledLocked reports whether index is buffered or was already played.
func (b *Buffer) settledLocked(index int) bool {
	return b.entries[index] != nil || b.consumed[index]
}

func (b *Buffer) finishFlightLocked(epoch uint64, index int) {
	delete(b.inflight, index)
	b.clearMarkerLocked(epoch, index)
}

func (b *Buffer) clearMarkerLocked(epoch uint64, index int) {
	if b.generating != nil && b.generating.epoch == epoch && b.generating.index == index {
		b.generating = nil
	}
}

// takePendingLocked clears the auto-play marker if it points at index and
// returns the notification to run once the lock is released.
func (b *Buffer) takePendingLocked(index int) func(uint64) {
	if b.pending != index {
		return func(uint64) {}
	}
	b.pending = -1
	fn := b.onReady
	if fn == nil {
		return func(uint64) {}
	}
	return func(epoch uint64) { fn(epoch, index) }
}

func (b *Buffer) releaseAllLocked() {
	for i, h := range b.entries {
		_ = h.Release()
		delete(b.entries, i)
	}
	b.generating = nil
	b.pending = -1
}
