package orchestration

import (
	"errors"
	"fmt"
)

var (
	// ErrLLMNotConfigured is returned when a turn needs a response but no
	// streaming LLM client was provided.
	ErrLLMNotConfigured = errors.New("llm not configured")
	// ErrTranscriberNotConfigured is returned when an utterance closes but no
	// transcriber was provided.
	ErrTranscriberNotConfigured = errors.New("transcriber not configured")
	// ErrSessionClosed is returned on operations against a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// ReasoningError marks a turn that failed terminally after the model retry
// budget was exhausted.
type ReasoningError struct {
	Err error
}

func (e *ReasoningError) Error() string {
	return fmt.Sprintf("reasoning failed: %v", e.Err)
}

func (e *ReasoningError) Unwrap() error {
	return e.Err
}
