package synth

import (
	"errors"
	"sync"

	"github.com/dgnsrekt/readaloud/internal/audio"
)

// ErrReleased is returned when a handle is released twice.
var ErrReleased = errors.New("audio handle already released")

// Handle owns the audio for one take until it is released.
type Handle struct {
	mu       sync.Mutex
	data     []byte
	clip     *audio.Clip
	silent   bool
	released bool
}

// NewHandle wraps decoded audio. data is the encoded form kept for caching.
func NewHandle(data []byte, clip *audio.Clip) *Handle {
	return &Handle{data: data, clip: clip}
}

// SilentHandle returns a handle with no audio, used for empty takes.
func SilentHandle() *Handle {
	return &Handle{clip: &audio.Clip{}, silent: true}
}

// Bytes returns the encoded audio, or nil once released.
func (h *Handle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	return h.data
}

// Clip returns the decoded audio, or nil once released.
func (h *Handle) Clip() *audio.Clip {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	return h.clip
}

// Silent reports whether the handle was made for an empty take.
func (h *Handle) Silent() bool {
	return h.silent
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Release drops the audio. Only the first call succeeds.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return ErrReleased
	}
	h.released = true
	h.data = nil
	h.clip = nil
	return nil
}
