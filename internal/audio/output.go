package audio

import "time"

// Output is the one audio sink of a reading session. Only the playback
// driver calls it.
type Output interface {
	// Load stops whatever is playing and primes clip at position zero
	// without starting it.
	Load(clip *Clip) error

	// Play starts or resumes the loaded clip.
	Play() error

	// Pause holds the current position.
	Pause() error

	// Stop halts playback and unloads the clip.
	Stop() error

	// Position returns the playback position inside the loaded clip.
	Position() time.Duration

	// Duration returns the length of the loaded clip.
	Duration() time.Duration

	// Done is closed when the clip loaded by the latest Load has played to
	// its end. Each Load returns a fresh channel.
	Done() <-chan struct{}

	// Close releases the audio device.
	Close() error
}

// PlayerState represents the current state of an Output.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateClosed
)

// String returns a string representation of the player state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// doneSignal is a close-once channel.
type doneSignal struct {
	ch     chan struct{}
	closed bool
}

func newDoneSignal() *doneSignal {
	return &doneSignal{ch: make(chan struct{})}
}

// fire closes the channel; callers hold the owning mutex.
func (d *doneSignal) fire() {
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
}
