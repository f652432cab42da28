package events

// KindSessionError identifies a non-fatal session-scoped error.
const KindSessionError Kind = "session.error"

// SessionError surfaces a recoverable error to the client. ErrorKind is one of
// the orchestration error taxonomy kinds (transcription, reasoning, tool,
// synthesis).
type SessionError struct {
	Base
	ErrorKind string
	Message   string
}

// NewSessionError creates a session error event.
func NewSessionError(errorKind, message string) SessionError {
	return SessionError{Base: NewBase(KindSessionError), ErrorKind: errorKind, Message: message}
}
