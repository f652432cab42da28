package events

const (
	// KindAssistantSpeechChunk identifies synthesized audio for one sentence chunk.
	KindAssistantSpeechChunk Kind = "assistant_speech.chunk"
	// KindSynthesisUnavailable identifies a chunk whose synthesis failed after retries.
	KindSynthesisUnavailable Kind = "assistant_speech.unavailable"
)

// AssistantSpeechChunk carries synthesized audio for the sentence chunk at
// Index. Chunks are delivered in index order.
type AssistantSpeechChunk struct {
	Base
	TurnID string
	Index  int
	Audio  []byte
}

// NewAssistantSpeechChunk creates an assistant speech chunk event.
func NewAssistantSpeechChunk(turnID string, index int, audio []byte) AssistantSpeechChunk {
	return AssistantSpeechChunk{Base: NewBase(KindAssistantSpeechChunk), TurnID: turnID, Index: index, Audio: audio}
}

// SynthesisUnavailable marks a sentence chunk that could not be synthesized.
// It occupies the chunk's slot in the delivery order.
type SynthesisUnavailable struct {
	Base
	TurnID string
	Index  int
	Reason string
}

// NewSynthesisUnavailable creates a synthesis unavailable event.
func NewSynthesisUnavailable(turnID string, index int, reason string) SynthesisUnavailable {
	return SynthesisUnavailable{Base: NewBase(KindSynthesisUnavailable), TurnID: turnID, Index: index, Reason: reason}
}
