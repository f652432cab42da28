package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/events"
	"github.com/fablevoice/fable-core/core/llms"
	"github.com/fablevoice/fable-core/core/speechtotext"
)

func collectUntil(t *testing.T, stream <-chan events.Event, kind events.Kind) []events.Event {
	t.Helper()
	var collected []events.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-stream:
			if !ok {
				t.Fatalf("event channel closed before %s, got %v", kind, collectedKinds(collected))
			}
			collected = append(collected, event)
			if event.Kind() == kind {
				return collected
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, got %v", kind, collectedKinds(collected))
		}
	}
}

func drain(stream <-chan events.Event) []events.Event {
	var collected []events.Event
	for event := range stream {
		collected = append(collected, event)
	}
	return collected
}

func collectedKinds(collected []events.Event) []events.Kind {
	kinds := make([]events.Kind, len(collected))
	for i, event := range collected {
		kinds[i] = event.Kind()
	}
	return kinds
}

func findKind[E events.Event](t *testing.T, collected []events.Event) E {
	t.Helper()
	for _, event := range collected {
		if match, ok := event.(E); ok {
			return match
		}
	}
	var zero E
	t.Fatalf("expected a %T event, got %v", zero, collectedKinds(collected))
	return zero
}

func TestOrchestratorTextPromptProducesFullTurn(t *testing.T) {
	llm := &llmStub{streams: []stubStream{contentStream("Hello there, friend!")}}
	orchestrator := NewOrchestrator(
		WithStreamingLLM(llm),
		WithSynthesizer(&synthesizerStub{}),
	)
	go orchestrator.Run(context.Background())

	orchestrator.SendPrompt("hi")
	collected := collectUntil(t, orchestrator.Events(), events.KindTurnCompleted)
	orchestrator.Close()

	if collected[0].Kind() != events.KindUserTranscript {
		t.Errorf("expected the transcript first, got %s", collected[0].Kind())
	}
	findKind[events.TurnStarted](t, collected)
	segment := findKind[events.AssistantResponseSegment](t, collected)
	if segment.Text != "Hello there, friend!" {
		t.Errorf("unexpected response segment %q", segment.Text)
	}
	chunk := findKind[events.AssistantSpeechChunk](t, collected)
	if string(chunk.Audio) != "Hello there, friend!" {
		t.Errorf("unexpected speech chunk %q", chunk.Audio)
	}

	turns := orchestrator.Conversation()
	if len(turns) != 1 || turns[0].Response != "Hello there, friend!" {
		t.Errorf("expected the turn in the history, got %+v", turns)
	}
}

func TestOrchestratorAudioUtteranceFlow(t *testing.T) {
	detector := &scriptedDetector{probabilities: speechThen(5, 4)}
	transcriber := &transcriberStub{transcripts: []string{"tell me a story"}}
	llm := &llmStub{streams: []stubStream{contentStream("Once upon a time.")}}

	orchestrator := NewOrchestrator(
		WithStreamingLLM(llm),
		WithTranscriber(transcriber),
		WithDetector(detector),
		WithSegmenterConfig(SegmenterConfig{
			MinSpeech:    40 * time.Millisecond,
			MinSilence:   60 * time.Millisecond,
			MaxUtterance: 400 * time.Millisecond,
		}),
	)
	go orchestrator.Run(context.Background())

	for _, frame := range testFrames(9, 0) {
		// The frames carry speech according to the scripted detector, the
		// content is irrelevant apart from not being silent.
		for i := range frame.PCM {
			frame.PCM[i] = byte(i)
		}
		if err := orchestrator.ProcessAudio(context.Background(), frame); err != nil {
			t.Fatalf("unexpected process audio error: %v", err)
		}
	}

	collected := collectUntil(t, orchestrator.Events(), events.KindTurnCompleted)
	orchestrator.Close()

	started := findKind[events.UserSpeechStarted](t, collected)
	ended := findKind[events.UserSpeechEnded](t, collected)
	if started.UtteranceID != ended.UtteranceID {
		t.Errorf("expected matching utterance ids, got %s and %s", started.UtteranceID, ended.UtteranceID)
	}
	if ended.Reason != string(audio.CloseReasonSilence) {
		t.Errorf("expected a silence close, got %s", ended.Reason)
	}
	transcript := findKind[events.UserTranscript](t, collected)
	if transcript.Text != "tell me a story" {
		t.Errorf("unexpected transcript %q", transcript.Text)
	}
	findKind[events.AssistantResponseSegment](t, collected)
}

func TestOrchestratorTranscriptionFailureYieldsSyntheticTurn(t *testing.T) {
	unreachable := speechtotext.NewError(speechtotext.ErrorKindUnreachable, errors.New("connection refused"))
	transcriber := &transcriberStub{errs: []error{unreachable, unreachable}}
	detector := &scriptedDetector{probabilities: speechThen(5, 4)}
	llm := &llmStub{streams: []stubStream{contentStream("Could you say that again for me?")}}

	orchestrator := NewOrchestrator(
		WithStreamingLLM(llm),
		WithTranscriber(transcriber),
		WithDetector(detector),
		WithSegmenterConfig(SegmenterConfig{
			MinSpeech:    40 * time.Millisecond,
			MinSilence:   60 * time.Millisecond,
			MaxUtterance: 400 * time.Millisecond,
		}),
	)
	go orchestrator.Run(context.Background())

	for _, frame := range testFrames(9, 0) {
		for i := range frame.PCM {
			frame.PCM[i] = byte(i)
		}
		orchestrator.ProcessAudio(context.Background(), frame)
	}

	collected := collectUntil(t, orchestrator.Events(), events.KindTurnCompleted)
	orchestrator.Close()

	sessionErr := findKind[events.SessionError](t, collected)
	if sessionErr.ErrorKind != "transcription" {
		t.Errorf("expected a transcription session error, got %s", sessionErr.ErrorKind)
	}

	// The synthetic turn is answered by the model, not a canned line.
	segment := findKind[events.AssistantResponseSegment](t, collected)
	if segment.Text != "Could you say that again for me?" {
		t.Errorf("expected the model's response, got %q", segment.Text)
	}
	if llm.calls != 1 {
		t.Fatalf("expected one model call, got %d", llm.calls)
	}
	prompted := llm.messages[0]
	if len(prompted) == 0 || prompted[len(prompted)-1].Content != syntheticTranscriptPrompt {
		t.Errorf("expected the synthetic prompt as the user turn, got %+v", prompted)
	}

	turns := orchestrator.Conversation()
	if len(turns) != 1 || !turns[0].Synthetic {
		t.Errorf("expected one synthetic turn, got %+v", turns)
	}
}

func TestOrchestratorSyntheticTurnFallsBackWhenModelIsSilent(t *testing.T) {
	unreachable := speechtotext.NewError(speechtotext.ErrorKindUnreachable, errors.New("connection refused"))
	transcriber := &transcriberStub{errs: []error{unreachable, unreachable}}
	detector := &scriptedDetector{probabilities: speechThen(5, 4)}

	orchestrator := NewOrchestrator(
		WithStreamingLLM(&llmStub{}),
		WithTranscriber(transcriber),
		WithDetector(detector),
		WithSegmenterConfig(SegmenterConfig{
			MinSpeech:    40 * time.Millisecond,
			MinSilence:   60 * time.Millisecond,
			MaxUtterance: 400 * time.Millisecond,
		}),
	)
	go orchestrator.Run(context.Background())

	for _, frame := range testFrames(9, 0) {
		for i := range frame.PCM {
			frame.PCM[i] = byte(i)
		}
		orchestrator.ProcessAudio(context.Background(), frame)
	}

	collected := collectUntil(t, orchestrator.Events(), events.KindTurnCompleted)
	orchestrator.Close()

	segment := findKind[events.AssistantResponseSegment](t, collected)
	if segment.Text != fallbackTranscriptionResponse {
		t.Errorf("expected the canned fallback from a silent model, got %q", segment.Text)
	}
}

type blockingLLM struct {
	started chan struct{}
}

func (l *blockingLLM) PromptWithStream(_ context.Context, _ *string, _ ...llms.PromptOption) llms.Stream {
	return &blockingLLMStream{started: l.started}
}

type blockingLLMStream struct {
	started chan struct{}
}

func (s *blockingLLMStream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		if !yield(stubContentChunk("Let me think."), nil) {
			return
		}
		close(s.started)
		<-ctx.Done()
		yield(nil, ctx.Err())
	}
}

func TestOrchestratorCancelTurn(t *testing.T) {
	llm := &blockingLLM{started: make(chan struct{})}
	orchestrator := NewOrchestrator(WithStreamingLLM(llm))
	go orchestrator.Run(context.Background())

	orchestrator.SendPrompt("hi")
	select {
	case <-llm.started:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the model stream to start")
	}
	orchestrator.CancelTurn()

	collected := collectUntil(t, orchestrator.Events(), events.KindTurnCancelled)
	orchestrator.Close()

	if collected[len(collected)-1].Kind() != events.KindTurnCancelled {
		t.Errorf("expected the cancellation to end the turn, got %v", collectedKinds(collected))
	}

	turns := orchestrator.Conversation()
	if len(turns) != 1 || !turns[0].Cancelled {
		t.Errorf("expected a cancelled turn in the history, got %+v", turns)
	}
}

func TestOrchestratorDropsEmptyUtterance(t *testing.T) {
	detector := &scriptedDetector{probabilities: speechThen(5, 4)}
	transcriber := &transcriberStub{}

	orchestrator := NewOrchestrator(
		WithStreamingLLM(&llmStub{}),
		WithTranscriber(transcriber),
		WithDetector(detector),
		WithSegmenterConfig(SegmenterConfig{
			MinSpeech:    40 * time.Millisecond,
			MinSilence:   60 * time.Millisecond,
			MaxUtterance: 400 * time.Millisecond,
		}),
	)
	go orchestrator.Run(context.Background())

	// All-zero frames: the detector scripts speech, but the audio is silence.
	for _, frame := range testFrames(9, 0) {
		orchestrator.ProcessAudio(context.Background(), frame)
	}
	orchestrator.Close()
	collected := drain(orchestrator.Events())

	for _, event := range collected {
		if event.Kind() == events.KindTurnStarted {
			t.Fatalf("expected no turn for an empty utterance, got %v", collectedKinds(collected))
		}
	}
	if transcriber.calls != 0 {
		t.Errorf("expected the transcriber to never be called, got %d calls", transcriber.calls)
	}
}

func TestOrchestratorProcessAudioAfterClose(t *testing.T) {
	orchestrator := NewOrchestrator(WithStreamingLLM(&llmStub{}))
	go orchestrator.Run(context.Background())
	orchestrator.Close()

	err := orchestrator.ProcessAudio(context.Background(), testFrames(1, 0)[0])
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}
