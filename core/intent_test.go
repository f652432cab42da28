package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fablevoice/fable-core/core/events"
	"github.com/fablevoice/fable-core/core/store"
)

type intentStub struct {
	intent Intent
	err    error
	calls  int
}

func (s *intentStub) DetectIntent(_ context.Context, _ string) (Intent, error) {
	s.calls++
	return s.intent, s.err
}

func storyLibrary(t *testing.T) store.Store {
	t.Helper()
	library := store.NewDirStore(t.TempDir())
	err := library.Write(context.Background(), "stories", store.Document{
		ID:      "ember-the-dragon",
		Title:   "Ember the Dragon",
		Content: "Ember was a small dragon.\nShe loved to sing.",
	})
	if err != nil {
		t.Fatalf("failed to seed library: %v", err)
	}
	return library
}

func TestOrchestratorServesStoryIntentDirectly(t *testing.T) {
	llm := &llmStub{}
	intents := &intentStub{intent: Intent{Kind: IntentStory, Name: "ember"}}
	orchestrator := NewOrchestrator(
		WithStreamingLLM(llm),
		WithIntentDetection(intents, storyLibrary(t)),
	)
	go orchestrator.Run(context.Background())

	orchestrator.SendPrompt("tell me the story about ember")
	collected := collectUntil(t, orchestrator.Events(), events.KindTurnCompleted)
	orchestrator.Close()

	if intents.calls != 1 {
		t.Fatalf("expected one intent detection, got %d", intents.calls)
	}
	if llm.calls != 0 {
		t.Errorf("expected the story to bypass the model, got %d calls", llm.calls)
	}

	var response strings.Builder
	for _, event := range collected {
		if segment, ok := event.(events.AssistantResponseSegment); ok {
			response.WriteString(segment.Text)
		}
	}
	if !strings.Contains(response.String(), "Ember was a small dragon.") {
		t.Errorf("expected the stored story to stream, got %q", response.String())
	}
}

func TestOrchestratorUnknownStoryFallsBackToReasoning(t *testing.T) {
	llm := &llmStub{streams: []stubStream{contentStream("I do not know that one.")}}
	intents := &intentStub{intent: Intent{Kind: IntentStory, Name: "the moon rabbit"}}
	orchestrator := NewOrchestrator(
		WithStreamingLLM(llm),
		WithIntentDetection(intents, storyLibrary(t)),
	)
	go orchestrator.Run(context.Background())

	orchestrator.SendPrompt("tell me the moon rabbit story")
	collectUntil(t, orchestrator.Events(), events.KindTurnCompleted)
	orchestrator.Close()

	if llm.calls != 1 {
		t.Errorf("expected the reasoning loop to take over, got %d calls", llm.calls)
	}
}

func TestOrchestratorIntentErrorFallsBackToReasoning(t *testing.T) {
	llm := &llmStub{streams: []stubStream{contentStream("Happy to chat.")}}
	intents := &intentStub{err: errors.New("classifier unavailable")}
	orchestrator := NewOrchestrator(
		WithStreamingLLM(llm),
		WithIntentDetection(intents, storyLibrary(t)),
	)
	go orchestrator.Run(context.Background())

	orchestrator.SendPrompt("hello")
	collectUntil(t, orchestrator.Events(), events.KindTurnCompleted)
	orchestrator.Close()

	if llm.calls != 1 {
		t.Errorf("expected the reasoning loop on detection failure, got %d calls", llm.calls)
	}
}
