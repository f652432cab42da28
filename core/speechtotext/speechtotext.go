// Package speechtotext defines the transcription contract for closed
// utterances and the error kinds the orchestration layer dispatches on.
package speechtotext

import (
	"context"
	"errors"

	"github.com/fablevoice/fable-core/core/audio"
)

// Transcriber turns one closed utterance into text. Implementations are
// stateless between calls and safe for concurrent use.
type Transcriber interface {
	Transcribe(ctx context.Context, utterance audio.Utterance, opts ...TranscriptionOption) (string, error)
}

// ErrorKind classifies a transcription failure.
type ErrorKind string

const (
	ErrorKindUnreachable ErrorKind = "unreachable"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindUnsupported ErrorKind = "unsupported"
	ErrorKindEmptyAudio  ErrorKind = "empty_audio"
)

// Error wraps a transcription failure with its kind.
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

// KindOf extracts the error kind, or "" when err is not a transcription error.
func KindOf(err error) ErrorKind {
	var transcriptionErr *Error
	if errors.As(err, &transcriptionErr) {
		return transcriptionErr.Kind
	}
	return ""
}

// Retryable reports whether the failure may succeed on a retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrorKindUnreachable, ErrorKindTimeout:
		return true
	}
	return false
}

type TranscriptionOptions struct {
	Language     string
	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
