package orchestration

import (
	"context"
	"fmt"

	"github.com/fablevoice/fable-core/core/llms/openai"
)

// IntentKind classifies what the user is asking for.
type IntentKind string

const (
	// IntentChat covers everything that needs the full reasoning loop.
	IntentChat IntentKind = "chat"
	// IntentStory asks for a named or unnamed story.
	IntentStory IntentKind = "story"
	// IntentSong asks for a named or unnamed song.
	IntentSong IntentKind = "song"
)

// Intent is the detected request category with the requested content name, if
// the user gave one.
type Intent struct {
	Kind IntentKind `json:"kind" jsonschema:"enum=chat,enum=story,enum=song"`
	Name string     `json:"name,omitempty" jsonschema_description:"The requested story or song title, empty when the user did not name one."`
}

// IntentDetector classifies a transcript before the reasoning loop runs, so
// straightforward content requests can skip it.
type IntentDetector interface {
	DetectIntent(ctx context.Context, transcript string) (Intent, error)
}

const intentSystemPrompt = "Classify the user's request for a children's voice assistant. " +
	"Answer with kind 'story' when they ask to hear a story, 'song' when they ask for a song or music, " +
	"and 'chat' for everything else. Include the requested title in name only when the user said one."

type llmIntentDetector struct {
	client *openai.Client
}

// NewLLMIntentDetector classifies transcripts with a structured model call.
func NewLLMIntentDetector(client *openai.Client) IntentDetector {
	return &llmIntentDetector{client: client}
}

func (d *llmIntentDetector) DetectIntent(ctx context.Context, transcript string) (Intent, error) {
	intent, err := openai.PromptJSONSchema(ctx, d.client, transcript, intentSystemPrompt, Intent{})
	if err != nil {
		return Intent{Kind: IntentChat}, fmt.Errorf("failed to detect intent: %w", err)
	}

	switch intent.Kind {
	case IntentStory, IntentSong, IntentChat:
	default:
		intent.Kind = IntentChat
	}
	return *intent, nil
}
