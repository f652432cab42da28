package texttospeech

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type synthesizerStub struct {
	name  string
	audio []byte
	err   error
	calls int
}

func (s *synthesizerStub) Synthesize(_ context.Context, _ string, _ ...SynthesisOption) ([]byte, error) {
	s.calls++
	return s.audio, s.err
}

func (s *synthesizerStub) Name() string {
	return s.name
}

func TestChainUsesFirstSuccessfulSynthesizer(t *testing.T) {
	primary := &synthesizerStub{name: "primary", audio: []byte{0x01}}
	fallback := &synthesizerStub{name: "fallback", audio: []byte{0x02}}
	chain := NewChain(primary, fallback)

	audio, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio[0] != 0x01 {
		t.Errorf("expected audio from primary, got %v", audio)
	}
	if fallback.calls != 0 {
		t.Errorf("expected fallback to stay idle, got %d calls", fallback.calls)
	}
}

func TestChainFallsBackInOrder(t *testing.T) {
	primary := &synthesizerStub{name: "primary", err: NewError(ErrorKindUnreachable, fmt.Errorf("connection refused"))}
	fallback := &synthesizerStub{name: "fallback", audio: []byte{0x02}}
	chain := NewChain(primary, fallback)

	audio, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio[0] != 0x02 {
		t.Errorf("expected audio from fallback, got %v", audio)
	}
	if primary.calls != 1 {
		t.Errorf("expected primary to be tried first, got %d calls", primary.calls)
	}
}

func TestChainAggregatesAllFailures(t *testing.T) {
	primary := &synthesizerStub{name: "primary", err: NewError(ErrorKindTimeout, fmt.Errorf("deadline exceeded"))}
	fallback := &synthesizerStub{name: "fallback", err: NewError(ErrorKindUnreachable, fmt.Errorf("connection refused"))}
	chain := NewChain(primary, fallback)

	_, err := chain.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected an error when all synthesizers fail")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("expected 2 aggregated errors, got %d", len(chainErr.Errors))
	}
}

func TestChainStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &synthesizerStub{name: "primary", audio: []byte{0x01}}
	chain := NewChain(primary)

	if _, err := chain.Synthesize(ctx, "hello"); err == nil {
		t.Fatal("expected context error")
	}
	if primary.calls != 0 {
		t.Errorf("expected no synthesis after cancellation, got %d calls", primary.calls)
	}
}
