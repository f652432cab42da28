package events

const (
	// KindUserSpeechStarted identifies the start of detected user speech.
	KindUserSpeechStarted Kind = "user_input.speech_started"
	// KindUserSpeechEnded identifies the end of detected user speech.
	KindUserSpeechEnded Kind = "user_input.speech_ended"
	// KindUserTranscript identifies the final transcript of an utterance.
	KindUserTranscript Kind = "user_input.transcript"
)

// UserSpeechStarted marks the opening of an utterance by the segmenter.
type UserSpeechStarted struct {
	Base
	UtteranceID string
}

// NewUserSpeechStarted creates a user speech started event.
func NewUserSpeechStarted(utteranceID string) UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted), UtteranceID: utteranceID}
}

// UserSpeechEnded marks the closing of an utterance. Reason is the utterance
// close reason (silence, max-length, override, disconnect).
type UserSpeechEnded struct {
	Base
	UtteranceID string
	Reason      string
}

// NewUserSpeechEnded creates a user speech ended event.
func NewUserSpeechEnded(utteranceID, reason string) UserSpeechEnded {
	return UserSpeechEnded{Base: NewBase(KindUserSpeechEnded), UtteranceID: utteranceID, Reason: reason}
}

// UserTranscript carries the final transcript produced for an utterance, or
// the text the user submitted directly.
type UserTranscript struct {
	Base
	UtteranceID string
	Text        string
}

// NewUserTranscript creates a user transcript event.
func NewUserTranscript(utteranceID, text string) UserTranscript {
	return UserTranscript{Base: NewBase(KindUserTranscript), UtteranceID: utteranceID, Text: text}
}
