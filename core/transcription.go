package orchestration

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/speechtotext"
)

// Near-silence utterances below this normalised RMS never reach the
// transcriber.
const defaultEmptyAudioRMSFloor = 0.0025

type transcriptionGateway struct {
	client speechtotext.Transcriber

	retries       int
	retryBackoff  time.Duration
	callTimeout   time.Duration
	emptyRMSFloor float64
}

func newTranscriptionGateway(client speechtotext.Transcriber) *transcriptionGateway {
	return &transcriptionGateway{
		client:        client,
		retries:       1,
		retryBackoff:  250 * time.Millisecond,
		callTimeout:   10 * time.Second,
		emptyRMSFloor: defaultEmptyAudioRMSFloor,
	}
}

// transcribe turns a closed utterance into text. Empty audio short-circuits
// without a network call; Timeout and Unreachable failures are retried with
// a fixed backoff until the retry budget is spent.
func (g *transcriptionGateway) transcribe(ctx context.Context, utterance audio.Utterance) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe utterance")
	defer span.End()
	span.SetAttributes(attribute.String("utterance.id", utterance.ID))
	span.SetAttributes(attribute.String("utterance.close_reason", string(utterance.Reason)))

	if g.client == nil {
		span.RecordError(ErrTranscriberNotConfigured)
		span.SetStatus(codes.Error, ErrTranscriberNotConfigured.Error())
		return "", ErrTranscriberNotConfigured
	}

	if len(utterance.PCM) == 0 || utterance.RMS() < g.emptyRMSFloor {
		span.AddEvent("empty audio short-circuit")
		return "", speechtotext.NewError(speechtotext.ErrorKindEmptyAudio, nil)
	}

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			span.AddEvent("retrying transcription")
			select {
			case <-time.After(g.retryBackoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		transcript, err := g.client.Transcribe(callCtx, utterance)
		cancel()
		if err == nil {
			span.SetAttributes(attribute.Int("transcript.length", len(transcript)))
			return transcript, nil
		}

		lastErr = err
		span.RecordError(err)
		if !speechtotext.Retryable(err) {
			break
		}
	}

	span.SetStatus(codes.Error, lastErr.Error())
	return "", lastErr
}
