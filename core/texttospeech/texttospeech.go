// Package texttospeech defines the synthesis contract for sentence chunks
// and the error kinds the orchestration layer dispatches on.
package texttospeech

import (
	"context"
	"errors"

	"github.com/fablevoice/fable-core/core/audio"
)

// Synthesizer turns one text chunk into audio. Implementations are stateless
// between calls and safe for concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...SynthesisOption) ([]byte, error)
	Name() string
}

// ErrorKind classifies a synthesis failure.
type ErrorKind string

const (
	ErrorKindUnreachable      ErrorKind = "unreachable"
	ErrorKindTimeout          ErrorKind = "timeout"
	ErrorKindUnsupportedVoice ErrorKind = "unsupported_voice"
)

// Error wraps a synthesis failure with its kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the error kind, or "" when err is not a synthesis error.
func KindOf(err error) ErrorKind {
	var synthesisErr *Error
	if errors.As(err, &synthesisErr) {
		return synthesisErr.Kind
	}
	return ""
}

// Retryable reports whether the failure may succeed on a retry. An
// unsupported voice will not fix itself.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrorKindUnreachable, ErrorKindTimeout:
		return true
	}
	return false
}

type SynthesisOptions struct {
	Voice        string
	Speed        float64
	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.Voice = voice
	}
}

func WithSpeed(speed float64) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.Speed = speed
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}
