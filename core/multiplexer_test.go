package orchestration

import (
	"testing"
	"time"

	"github.com/fablevoice/fable-core/core/events"
)

func TestMultiplexerDrainsTurnBeforeNext(t *testing.T) {
	mux := newStreamMultiplexer(16)

	first := mux.BeginTurn("turn-1")
	first.Publish(events.NewAssistantResponseSegment("turn-1", "hello"))
	first.Done()

	second := mux.BeginTurn("turn-2")
	second.Publish(events.NewAssistantResponseSegment("turn-2", "again"))
	second.Done()
	mux.Close()

	var kinds []events.Kind
	var turnIDs []string
	for event := range mux.Events() {
		kinds = append(kinds, event.Kind())
		switch e := event.(type) {
		case events.TurnStarted:
			turnIDs = append(turnIDs, e.TurnID)
		case events.AssistantResponseSegment:
			turnIDs = append(turnIDs, e.TurnID)
		case events.TurnCompleted:
			turnIDs = append(turnIDs, e.TurnID)
		}
	}

	expectedKinds := []events.Kind{
		events.KindTurnStarted, events.KindAssistantResponseSegment, events.KindTurnCompleted,
		events.KindTurnStarted, events.KindAssistantResponseSegment, events.KindTurnCompleted,
	}
	if len(kinds) != len(expectedKinds) {
		t.Fatalf("expected %d events, got %d: %v", len(expectedKinds), len(kinds), kinds)
	}
	for i := range expectedKinds {
		if kinds[i] != expectedKinds[i] {
			t.Errorf("expected event %d to be %s, got %s", i, expectedKinds[i], kinds[i])
		}
	}
	for i, turnID := range turnIDs[:3] {
		if turnID != "turn-1" {
			t.Errorf("expected event %d to belong to turn-1, got %s", i, turnID)
		}
	}
	for i, turnID := range turnIDs[3:] {
		if turnID != "turn-2" {
			t.Errorf("expected event %d of second turn to belong to turn-2, got %s", i, turnID)
		}
	}
}

func TestMultiplexerBeginTurnBlocksUntilPreviousReleased(t *testing.T) {
	mux := newStreamMultiplexer(16)

	first := mux.BeginTurn("turn-1")

	acquired := make(chan struct{})
	go func() {
		mux.BeginTurn("turn-2")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second turn must not start while the first holds the gate")
	case <-time.After(50 * time.Millisecond):
	}

	first.Done()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second turn should start after the first finished")
	}
}

func TestMultiplexerPublisherBlocksOnFullChannel(t *testing.T) {
	mux := newStreamMultiplexer(1)
	stream := mux.BeginTurn("turn-1")
	// TurnStarted occupies the single slot.

	published := make(chan struct{})
	go func() {
		stream.Publish(events.NewAssistantResponseSegment("turn-1", "hello"))
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("publish should block while the channel is full")
	case <-time.After(50 * time.Millisecond):
	}

	<-mux.Events()
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish should complete once the consumer drained")
	}
}

func TestMultiplexerDiscardsEventsAfterCancel(t *testing.T) {
	mux := newStreamMultiplexer(16)
	stream := mux.BeginTurn("turn-1")

	stream.Publish(events.NewAssistantResponseSegment("turn-1", "partial"))
	stream.Cancel()

	// A late tool result of the cancelled turn must disappear.
	if stream.Publish(events.NewToolCallCompleted("call-1", "tell_story", "too late")) {
		t.Error("expected publish after cancel to be discarded")
	}
	stream.Done()
	mux.Close()

	var kinds []events.Kind
	for event := range mux.Events() {
		kinds = append(kinds, event.Kind())
	}

	expected := []events.Kind{events.KindTurnStarted, events.KindAssistantResponseSegment, events.KindTurnCancelled}
	if len(kinds) != len(expected) {
		t.Fatalf("expected %d events, got %d: %v", len(expected), len(kinds), kinds)
	}
	if kinds[len(kinds)-1] != events.KindTurnCancelled {
		t.Errorf("expected terminal event to be turn cancelled, got %s", kinds[len(kinds)-1])
	}
}

func TestMultiplexerCloseUnblocksPendingPublish(t *testing.T) {
	mux := newStreamMultiplexer(0)

	published := make(chan bool, 1)
	go func() {
		published <- mux.Publish(events.NewUserSpeechStarted("utterance-1"))
	}()

	select {
	case <-published:
		t.Fatal("publish should block without a consumer")
	case <-time.After(50 * time.Millisecond):
	}

	mux.Close()

	select {
	case ok := <-published:
		if ok {
			t.Error("expected the pending publish to report the event as discarded")
		}
	case <-time.After(time.Second):
		t.Fatal("publish should unblock when the multiplexer closes")
	}

	if _, open := <-mux.Events(); open {
		t.Error("expected the event stream to be closed")
	}
}

func TestMultiplexerSessionEventsBypassGate(t *testing.T) {
	mux := newStreamMultiplexer(16)

	if !mux.Publish(events.NewUserSpeechStarted("utterance-1")) {
		t.Fatal("expected session event to publish without an open turn")
	}
	mux.Close()

	event, ok := <-mux.Events()
	if !ok {
		t.Fatal("expected one event before close")
	}
	if event.Kind() != events.KindUserSpeechStarted {
		t.Errorf("expected speech started event, got %s", event.Kind())
	}
}
