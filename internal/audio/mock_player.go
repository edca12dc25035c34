package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockOutput implements Output without producing sound. Position only moves
// when a test calls SetPosition or Finish, unless Realtime is enabled.
type MockOutput struct {
	mu sync.Mutex

	state    PlayerState
	clip     *Clip
	position time.Duration
	done     *doneSignal

	// Realtime makes the mock advance with the wall clock and finish on its
	// own; headless dry runs use it.
	realtime  bool
	resumedAt time.Time
	seq       uint64 // bumped by Play and Pause

	callbacks MockCallbacks

	loadCount  atomic.Int64
	playCount  atomic.Int64
	pauseCount atomic.Int64
	stopCount  atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnLoad  func(clip *Clip)
	OnPlay  func()
	OnPause func()
	OnStop  func()
}

// MockPlayerMetrics counts calls made on a MockOutput.
type MockPlayerMetrics struct {
	LoadCount  int64
	PlayCount  int64
	PauseCount int64
	StopCount  int64
}

// NewMockOutput creates a stopped mock output.
func NewMockOutput(callbacks MockCallbacks) *MockOutput {
	return &MockOutput{
		state:     StateStopped,
		done:      newDoneSignal(),
		callbacks: callbacks,
	}
}

// NewRealtimeMockOutput creates a mock that plays clips in real time.
func NewRealtimeMockOutput() *MockOutput {
	m := NewMockOutput(MockCallbacks{})
	m.realtime = true
	return m
}

// Load primes clip at position zero.
func (m *MockOutput) Load(clip *Clip) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return errors.New("player is closed")
	}

	m.clip = clip
	m.position = 0
	m.done = newDoneSignal()
	m.state = StatePaused
	m.loadCount.Add(1)
	cb := m.callbacks.OnLoad
	m.mu.Unlock()

	if cb != nil {
		cb(clip)
	}
	return nil
}

// Play starts or resumes the loaded clip.
func (m *MockOutput) Play() error {
	m.mu.Lock()
	switch m.state {
	case StatePlaying:
		m.mu.Unlock()
		return nil
	case StatePaused:
	default:
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("cannot play: player is %s", state)
	}

	m.state = StatePlaying
	m.playCount.Add(1)
	m.resumedAt = time.Now()
	m.seq++

	if m.clip.Empty() {
		m.state = StateStopped
		m.done.fire()
	} else if m.realtime {
		go m.runRealtime(m.done, m.seq, m.clip.Duration()-m.position)
	}
	cb := m.callbacks.OnPlay
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func (m *MockOutput) runRealtime(done *doneSignal, seq uint64, remaining time.Duration) {
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	for {
		select {
		case <-done.ch:
			return
		case <-timer.C:
			m.mu.Lock()
			if m.done != done || m.seq != seq || m.state != StatePlaying {
				// Reloaded, paused or resumed; a newer timer owns the clip.
				m.mu.Unlock()
				return
			}
			m.finishLocked()
			m.mu.Unlock()
			return
		}
	}
}

// Pause holds the current position.
func (m *MockOutput) Pause() error {
	m.mu.Lock()
	if m.state != StatePlaying {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("cannot pause: player is %s", state)
	}

	m.position = m.positionLocked()
	m.state = StatePaused
	m.seq++
	m.pauseCount.Add(1)
	cb := m.callbacks.OnPause
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Stop halts playback and unloads the clip.
func (m *MockOutput) Stop() error {
	m.mu.Lock()
	if m.state != StateClosed {
		m.state = StateStopped
	}
	m.clip = nil
	m.position = 0
	m.stopCount.Add(1)
	cb := m.callbacks.OnStop
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Position returns the playback position.
func (m *MockOutput) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked()
}

func (m *MockOutput) positionLocked() time.Duration {
	if m.realtime && m.state == StatePlaying {
		pos := m.position + time.Since(m.resumedAt)
		if d := m.clip.Duration(); pos > d {
			pos = d
		}
		return pos
	}
	return m.position
}

// Duration returns the loaded clip's length.
func (m *MockOutput) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clip.Duration()
}

// Done is closed when the loaded clip finishes.
func (m *MockOutput) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done.ch
}

// Close marks the output closed.
func (m *MockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateClosed
	m.clip = nil
	return nil
}

// Test helper methods

// SetPosition moves the playback position.
func (m *MockOutput) SetPosition(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = d
	m.resumedAt = time.Now()
}

// Finish plays the loaded clip to its end. It reports false when nothing is
// playing.
func (m *MockOutput) Finish() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePlaying {
		return false
	}
	m.finishLocked()
	return true
}

func (m *MockOutput) finishLocked() {
	m.position = m.clip.Duration()
	m.state = StateStopped
	m.done.fire()
}

// State returns the current player state.
func (m *MockOutput) State() PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Clip returns the loaded clip.
func (m *MockOutput) Clip() *Clip {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clip
}

// GetMetrics returns call counts.
func (m *MockOutput) GetMetrics() MockPlayerMetrics {
	return MockPlayerMetrics{
		LoadCount:  m.loadCount.Load(),
		PlayCount:  m.playCount.Load(),
		PauseCount: m.pauseCount.Load(),
		StopCount:  m.stopCount.Load(),
	}
}

var _ Output = (*MockOutput)(nil)
