package synth

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// MockSampleRate is the rate of audio produced by Mock.
const MockSampleRate = 22050

// Mock synthesizes offline: a quiet tone (or silence) whose length follows
// the text. It backs --engine mock and the engine tests.
type Mock struct {
	mu sync.Mutex

	delay   time.Duration // Simulated request latency
	perRune time.Duration // Audio length per character
	tone    bool

	gate     <-chan struct{}
	failures map[int]error
	failAll  error

	calls []Call
}

// Call records one Synthesize invocation.
type Call struct {
	Index   int
	Text    string
	VoiceID string
}

// NewMock creates a mock synthesizer producing 60ms of audio per character.
func NewMock() *Mock {
	return &Mock{
		perRune:  60 * time.Millisecond,
		failures: make(map[int]error),
	}
}

// Synthesize returns generated audio after the configured delay.
func (m *Mock) Synthesize(ctx context.Context, t take.Take, voiceID string) (*Handle, error) {
	const op = "mock synthesize"

	m.mu.Lock()
	m.calls = append(m.calls, Call{Index: t.Index, Text: t.Synthesis, VoiceID: voiceID})
	delay, gate := m.delay, m.gate
	fail := m.failAll
	if err, ok := m.failures[t.Index]; ok {
		fail = err
	}
	perRune, tone := m.perRune, m.tone
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ttypes.Cancelled(op, ctx.Err())
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ttypes.Cancelled(op, ctx.Err())
		}
	}
	if ctx.Err() != nil {
		return nil, ttypes.Cancelled(op, ctx.Err())
	}

	if fail != nil {
		return nil, ttypes.NewError(ttypes.KindSynthesisFailed, op, fail)
	}
	if t.Empty() {
		return SilentHandle(), nil
	}

	d := time.Duration(len([]rune(t.Synthesis))) * perRune
	pcm := generate(d, tone)
	clip := &audio.Clip{PCM: pcm, SampleRate: MockSampleRate, Channels: 1}
	return NewHandle(audio.EncodeWAV(pcm, MockSampleRate, 1), clip), nil
}

// SetDelay sets the simulated request latency.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetPerRune sets how much audio each character produces.
func (m *Mock) SetPerRune(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perRune = d
}

// SetTone switches between an audible tone and silence.
func (m *Mock) SetTone(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tone = on
}

// SetGate makes every call block until gate is closed (or ctx is done).
func (m *Mock) SetGate(gate <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// FailTake makes calls for take index fail with err.
func (m *Mock) FailTake(index int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[index] = err
}

// SetFailure makes every call fail with err; nil clears it.
func (m *Mock) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// Calls returns the recorded calls in order.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns the number of Synthesize calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func generate(d time.Duration, tone bool) []byte {
	frames := int(d * MockSampleRate / time.Second)
	pcm := make([]byte, 2*frames)
	if !tone {
		return pcm
	}

	const (
		freq      = 440.0
		amplitude = 3000.0
	)
	for i := 0; i < frames; i++ {
		s := int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/MockSampleRate))
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	return pcm
}

var _ Synthesizer = (*Mock)(nil)
