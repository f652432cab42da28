package events

const (
	// KindTurnStarted identifies the start of turn processing.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnCompleted identifies a fully drained turn.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnCancelled identifies a turn cancelled mid-flight.
	KindTurnCancelled Kind = "turn_state.cancelled"
	// KindTurnFailed identifies a turn that ended with a terminal error.
	KindTurnFailed Kind = "turn_state.failed"
)

// TurnStarted marks the start of processing for a turn.
type TurnStarted struct {
	Base
	TurnID string
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(turnID string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), TurnID: turnID}
}

// TurnCompleted marks a turn whose events have all been delivered.
type TurnCompleted struct {
	Base
	TurnID string
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(turnID string) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), TurnID: turnID}
}

// TurnCancelled marks a turn cancelled before completion. It is the terminal
// event for the cancelled turn.
type TurnCancelled struct {
	Base
	TurnID string
}

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled(turnID string) TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled), TurnID: turnID}
}

// TurnFailed marks a turn that ended with a terminal error, for example when
// the model retry budget was exhausted.
type TurnFailed struct {
	Base
	TurnID string
	Reason string
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(turnID, reason string) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), TurnID: turnID, Reason: reason}
}
