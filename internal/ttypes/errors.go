package ttypes

import (
	"context"
	"errors"
	"fmt"
)

// Engine errors
var (
	// ErrCancelled indicates the work belonged to a superseded session
	ErrCancelled = errors.New("operation cancelled")

	// ErrSynthesisFailed indicates the speech service did not return audio
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrTitleGenerationFailed indicates the title service did not return a title
	ErrTitleGenerationFailed = errors.New("title generation failed")

	// ErrInvalidVoiceID indicates a custom voice id failed validation
	ErrInvalidVoiceID = errors.New("invalid voice id")

	// ErrClipboardUnavailable indicates the system clipboard could not be used
	ErrClipboardUnavailable = errors.New("clipboard unavailable")
)

// Error carries the failing operation alongside its kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the sentinel for its kind.
func (e *Error) Is(target error) bool {
	return sentinel(e.Kind) == target && target != nil
}

// NewError wraps err as an engine error of the given kind.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Cancelled wraps err so that it matches ErrCancelled.
func Cancelled(op string, err error) error {
	return NewError(KindCancelled, op, err)
}

// KindOf classifies err. Context cancellation counts as KindCancelled.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrSynthesisFailed):
		return KindSynthesisFailed
	case errors.Is(err, ErrTitleGenerationFailed):
		return KindTitleGenerationFailed
	case errors.Is(err, ErrInvalidVoiceID):
		return KindInvalidVoiceID
	case errors.Is(err, ErrClipboardUnavailable):
		return KindClipboardUnavailable
	default:
		return KindUnknown
	}
}

// IsCancelled reports whether err should be dropped silently.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

func sentinel(k Kind) error {
	switch k {
	case KindCancelled:
		return ErrCancelled
	case KindSynthesisFailed:
		return ErrSynthesisFailed
	case KindTitleGenerationFailed:
		return ErrTitleGenerationFailed
	case KindInvalidVoiceID:
		return ErrInvalidVoiceID
	case KindClipboardUnavailable:
		return ErrClipboardUnavailable
	default:
		return nil
	}
}
