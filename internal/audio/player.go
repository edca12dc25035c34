package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoOutput plays clips on the system audio device using oto.
// Clips are converted to the device format when loaded.
type OtoOutput struct {
	// OTO context - one per process
	context *oto.Context

	player *oto.Player
	stream *stream
	done   *doneSignal

	state  atomic.Int32  // PlayerState
	volume atomic.Uint64 // volume * 1e6

	// Position is offset plus the time since resumedAt while playing.
	offset    time.Duration
	resumedAt time.Time

	mu sync.Mutex

	sampleRate int
	channels   int
	pollRate   time.Duration
}

// stream keeps converted PCM reachable while oto reads from it.
type stream struct {
	data     []byte
	reader   *bytes.Reader
	duration time.Duration
}

// PlayerConfig contains configuration for the audio device.
type PlayerConfig struct {
	SampleRate int           // 44100 or 48000 Hz only
	Channels   int           // 1 = mono, 2 = stereo
	BufferSize time.Duration // Device buffer length
	PollRate   time.Duration // How often end-of-clip is checked
}

// DefaultPlayerConfig returns the default device configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   1,
		BufferSize: 100 * time.Millisecond,
		PollRate:   20 * time.Millisecond,
	}
}

// NewOtoOutput opens the audio device.
func NewOtoOutput(config PlayerConfig) (*OtoOutput, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	o := &OtoOutput{
		context:    ctx,
		done:       newDoneSignal(),
		sampleRate: config.SampleRate,
		channels:   config.Channels,
		pollRate:   config.PollRate,
	}
	if o.pollRate <= 0 {
		o.pollRate = 20 * time.Millisecond
	}
	o.state.Store(int32(StateStopped))
	_ = o.SetVolume(1.0)

	return o, nil
}

func validateConfig(config PlayerConfig) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}

	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}

	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}

	return nil
}

// Load primes clip at position zero.
func (o *OtoOutput) Load(clip *Clip) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if PlayerState(o.state.Load()) == StateClosed {
		return errors.New("player is closed")
	}

	o.stopLocked()

	pcm := clip.Convert(o.sampleRate, o.channels)
	s := &stream{
		data:     pcm,
		reader:   bytes.NewReader(pcm),
		duration: clip.Duration(),
	}

	o.stream = s
	o.done = newDoneSignal()
	o.offset = 0

	if len(pcm) > 0 {
		o.player = o.context.NewPlayer(s.reader)
		o.player.SetVolume(o.getVolume())
	}

	o.state.Store(int32(StatePaused))
	return nil
}

// Play starts or resumes the loaded clip.
func (o *OtoOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := PlayerState(o.state.Load())
	switch state {
	case StatePlaying:
		return nil
	case StatePaused:
	default:
		return fmt.Errorf("cannot play: player is %s", state)
	}

	// An empty clip is over as soon as it starts.
	if o.player == nil {
		o.state.Store(int32(StateStopped))
		o.done.fire()
		return nil
	}

	o.resumedAt = time.Now()
	o.player.Play()
	o.state.Store(int32(StatePlaying))

	go o.watch(o.player, o.done)

	return nil
}

// watch closes done once oto has drained the player.
func (o *OtoOutput) watch(p *oto.Player, done *doneSignal) {
	ticker := time.NewTicker(o.pollRate)
	defer ticker.Stop()

	for range ticker.C {
		o.mu.Lock()
		if o.player != p || done.closed {
			o.mu.Unlock()
			return
		}
		if PlayerState(o.state.Load()) != StatePlaying {
			// Paused; a later Play starts a new watcher.
			o.mu.Unlock()
			return
		}
		if !p.IsPlaying() && p.BufferedSize() == 0 {
			o.offset = o.stream.duration
			o.state.Store(int32(StateStopped))
			done.fire()
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()
	}
}

// Pause holds the current position.
func (o *OtoOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := PlayerState(o.state.Load())
	if state != StatePlaying {
		return fmt.Errorf("cannot pause: player is %s", state)
	}

	o.offset = o.positionLocked()
	if o.player != nil {
		o.player.Pause()
	}
	o.state.Store(int32(StatePaused))

	return nil
}

// Stop halts playback and unloads the clip.
func (o *OtoOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopLocked()
	return nil
}

func (o *OtoOutput) stopLocked() {
	if o.player != nil {
		o.player.Pause()
		_ = o.player.Close()
		o.player = nil
	}
	o.stream = nil
	o.offset = 0

	if PlayerState(o.state.Load()) != StateClosed {
		o.state.Store(int32(StateStopped))
	}
}

// Position returns the playback position inside the loaded clip.
func (o *OtoOutput) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.positionLocked()
}

func (o *OtoOutput) positionLocked() time.Duration {
	if o.stream == nil {
		return 0
	}

	switch PlayerState(o.state.Load()) {
	case StatePlaying:
		elapsed := o.offset + time.Since(o.resumedAt)
		if elapsed > o.stream.duration {
			elapsed = o.stream.duration
		}
		return elapsed
	default:
		return o.offset
	}
}

// Duration returns the length of the loaded clip.
func (o *OtoOutput) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream == nil {
		return 0
	}
	return o.stream.duration
}

// Done is closed when the loaded clip finishes.
func (o *OtoOutput) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.done.ch
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (o *OtoOutput) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	o.volume.Store(uint64(volume * 1000000))

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.SetVolume(volume)
	}
	return nil
}

func (o *OtoOutput) getVolume() float64 {
	return float64(o.volume.Load()) / 1000000.0
}

// State returns the current player state.
func (o *OtoOutput) State() PlayerState {
	return PlayerState(o.state.Load())
}

// Close releases the audio device.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopLocked()
	// oto.Context has no Close in v3; dropping it lets the device go idle.
	o.context = nil
	o.state.Store(int32(StateClosed))

	return nil
}

var _ Output = (*OtoOutput)(nil)
