package orchestration

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fablevoice/fable-core/core/events"
	"github.com/fablevoice/fable-core/core/texttospeech"
)

type eventSink interface {
	Publish(event events.Event) bool
}

type synthesisResult struct {
	audio []byte
	err   error
}

// synthesisPipeline synthesizes sentence chunks concurrently but delivers
// them in sentence order. A chunk that fails after retries gives up its slot
// with an unavailability marker instead of stalling the turn.
type synthesisPipeline struct {
	synthesizer texttospeech.Synthesizer
	voice       string
	speed       float64

	retries      int
	retryBackoff time.Duration
	callTimeout  time.Duration
	concurrency  int
}

func newSynthesisPipeline(synthesizer texttospeech.Synthesizer) *synthesisPipeline {
	return &synthesisPipeline{
		synthesizer:  synthesizer,
		retries:      1,
		retryBackoff: 250 * time.Millisecond,
		callTimeout:  15 * time.Second,
		concurrency:  3,
	}
}

// run drains the sentence iterator and publishes one speech chunk event per
// sentence to sink. It returns once every sentence has been delivered or the
// context was cancelled.
func (p *synthesisPipeline) run(ctx context.Context, turnID string, sentences func(func(string) bool), sink eventSink) {
	ctx, span := tracer.Start(ctx, "synthesize turn")
	defer span.End()
	span.SetAttributes(attribute.String("turn.id", turnID))

	pending := make(chan chan synthesisResult, p.concurrency)
	var wg sync.WaitGroup

	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		index := 0
		for result := range pending {
			outcome := <-result
			if outcome.err != nil {
				sink.Publish(events.NewSynthesisUnavailable(turnID, index, outcome.err.Error()))
			} else {
				sink.Publish(events.NewAssistantSpeechChunk(turnID, index, outcome.audio))
			}
			index++
		}
		span.SetAttributes(attribute.Int("chunks", index))
	}()

	count := 0
	for sentence := range sentences {
		result := make(chan synthesisResult, 1)
		select {
		case pending <- result:
		case <-ctx.Done():
			result = nil
		}
		if result == nil {
			break
		}

		count++
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			audio, err := p.synthesize(ctx, text)
			result <- synthesisResult{audio: audio, err: err}
		}(sentence)
	}

	close(pending)
	<-delivered
	wg.Wait()
	span.SetAttributes(attribute.Int("sentences", count))
}

func (p *synthesisPipeline) synthesize(ctx context.Context, text string) ([]byte, error) {
	var opts []texttospeech.SynthesisOption
	if p.voice != "" {
		opts = append(opts, texttospeech.WithVoice(p.voice))
	}
	if p.speed != 0 {
		opts = append(opts, texttospeech.WithSpeed(p.speed))
	}

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		audio, err := p.synthesizer.Synthesize(callCtx, text, opts...)
		cancel()
		if err == nil {
			return audio, nil
		}

		lastErr = err
		if !texttospeech.Retryable(err) {
			break
		}
	}
	return nil, lastErr
}
