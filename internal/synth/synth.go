// Package synth turns takes into audio through the remote speech service.
package synth

import (
	"context"

	"github.com/dgnsrekt/readaloud/internal/take"
)

// Synthesizer produces audio for a take spoken by a voice.
//
// Implementations return an error matching ttypes.ErrCancelled when ctx is
// done and ttypes.ErrSynthesisFailed for everything else.
type Synthesizer interface {
	Synthesize(ctx context.Context, t take.Take, voiceID string) (*Handle, error)
}

// SynthesizerFunc adapts a function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, t take.Take, voiceID string) (*Handle, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, t take.Take, voiceID string) (*Handle, error) {
	return f(ctx, t, voiceID)
}
