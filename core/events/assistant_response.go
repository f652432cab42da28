package events

// KindAssistantResponseSegment identifies a streamed response token.
const KindAssistantResponseSegment Kind = "assistant_response.segment"

// AssistantResponseSegment carries one streamed response token. Segments are
// append-only and arrive in generation order.
type AssistantResponseSegment struct {
	Base
	TurnID string
	Text   string
}

// NewAssistantResponseSegment creates a response segment event.
func NewAssistantResponseSegment(turnID, text string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), TurnID: turnID, Text: text}
}
