// Package ttypes contains the error taxonomy shared by the take, synthesis,
// prefetch and playback packages. It exists to break import cycles between
// them.
package ttypes

// Kind classifies an engine failure by how the user should see it.
type Kind int

const (
	// KindUnknown is any error the engine does not classify.
	KindUnknown Kind = iota

	// KindCancelled means the work was superseded by a newer session.
	KindCancelled

	// KindSynthesisFailed means the remote TTS call failed.
	KindSynthesisFailed

	// KindTitleGenerationFailed means no title could be generated.
	KindTitleGenerationFailed

	// KindInvalidVoiceID means a custom voice id failed local validation.
	KindInvalidVoiceID

	// KindClipboardUnavailable means the clipboard could not be read or written.
	KindClipboardUnavailable
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindSynthesisFailed:
		return "synthesis_failed"
	case KindTitleGenerationFailed:
		return "title_generation_failed"
	case KindInvalidVoiceID:
		return "invalid_voice_id"
	case KindClipboardUnavailable:
		return "clipboard_unavailable"
	default:
		return "unknown"
	}
}

// Silent reports whether errors of this kind are never shown to the user.
func (k Kind) Silent() bool {
	return k == KindCancelled
}

// Fatal reports whether the kind unwinds the reading session.
func (k Kind) Fatal() bool {
	return k == KindSynthesisFailed
}

// UserMessage returns the notice shown for a kind. Raw transport errors are
// never shown; this text is.
func UserMessage(k Kind) string {
	switch k {
	case KindCancelled:
		return ""
	case KindSynthesisFailed:
		return "Conversion failed. Pick another voice and try again."
	case KindTitleGenerationFailed:
		return FallbackTitle
	case KindInvalidVoiceID:
		return "Voice ids are exactly 22 letters or digits."
	case KindClipboardUnavailable:
		return "Could not access the clipboard."
	default:
		return "Something went wrong."
	}
}

// FallbackTitle is shown when title generation fails.
const FallbackTitle = "Untitled reading"
