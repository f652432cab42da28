package orchestration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fablevoice/fable-core/core/audio"
)

type scriptedDetector struct {
	probabilities []float64
	err           error
	calls         int
}

func (d *scriptedDetector) SpeechProbability(_ context.Context, _ []byte) (float64, error) {
	if d.err != nil {
		return 0, d.err
	}
	probability := 0.0
	if d.calls < len(d.probabilities) {
		probability = d.probabilities[d.calls]
	}
	d.calls++
	return probability, nil
}

func (d *scriptedDetector) Backend() string { return "scripted" }
func (d *scriptedDetector) Close() error    { return nil }

// 20 ms frames at the default 16 kHz linear16 encoding.
func testFrames(count int, firstSequence uint64) []audio.Frame {
	frames := make([]audio.Frame, count)
	for i := range frames {
		frames[i] = audio.Frame{
			Sequence: firstSequence + uint64(i),
			PCM:      make([]byte, 640),
			Encoding: audio.GetDefaultEncodingInfo(),
		}
	}
	return frames
}

func testSegmenter(detector *scriptedDetector) (*audioSegmenter, *[]string, *[]audio.Utterance) {
	var started []string
	var closed []audio.Utterance
	segmenter := newAudioSegmenter(detector, SegmenterConfig{
		Threshold:    0.5,
		MinSpeech:    40 * time.Millisecond,
		MinSilence:   60 * time.Millisecond,
		MaxUtterance: 400 * time.Millisecond,
	}, func(id string) {
		started = append(started, id)
	}, func(utterance audio.Utterance) {
		closed = append(closed, utterance)
	})
	return segmenter, &started, &closed
}

func feed(segmenter *audioSegmenter, frames []audio.Frame) {
	for _, frame := range frames {
		segmenter.ProcessFrame(context.Background(), frame)
	}
}

func speechThen(speech, silence int) []float64 {
	probabilities := make([]float64, 0, speech+silence)
	for range speech {
		probabilities = append(probabilities, 0.9)
	}
	for range silence {
		probabilities = append(probabilities, 0.1)
	}
	return probabilities
}

func TestSegmenterShortBlipDoesNotOpen(t *testing.T) {
	detector := &scriptedDetector{probabilities: speechThen(1, 5)}
	segmenter, started, _ := testSegmenter(detector)

	feed(segmenter, testFrames(6, 0))

	if len(*started) != 0 {
		t.Errorf("expected a single speech frame to stay below hysteresis, got %d utterances", len(*started))
	}
}

func TestSegmenterOpensAndClosesOnSilence(t *testing.T) {
	// 5 speech frames (100 ms) then 4 silence frames (80 ms).
	detector := &scriptedDetector{probabilities: speechThen(5, 4)}
	segmenter, started, closed := testSegmenter(detector)

	feed(segmenter, testFrames(9, 10))

	if len(*started) != 1 {
		t.Fatalf("expected 1 utterance start, got %d", len(*started))
	}
	if len(*closed) != 1 {
		t.Fatalf("expected 1 closed utterance, got %d", len(*closed))
	}

	utterance := (*closed)[0]
	if utterance.Reason != audio.CloseReasonSilence {
		t.Errorf("expected silence close reason, got %s", utterance.Reason)
	}
	if utterance.ID != (*started)[0] {
		t.Errorf("expected matching utterance ids, got %s and %s", utterance.ID, (*started)[0])
	}
	// The opening speech run belongs to the utterance.
	if utterance.StartSequence != 10 {
		t.Errorf("expected utterance to start at sequence 10, got %d", utterance.StartSequence)
	}
	if utterance.Duration() < 100*time.Millisecond {
		t.Errorf("expected utterance to span the speech run, got %s", utterance.Duration())
	}
}

func TestSegmenterBriefSilenceDoesNotClose(t *testing.T) {
	// Speech, a 40 ms dip (below the 60 ms close), then more speech.
	probabilities := append(speechThen(5, 2), speechThen(3, 0)...)
	detector := &scriptedDetector{probabilities: probabilities}
	segmenter, _, closed := testSegmenter(detector)

	feed(segmenter, testFrames(10, 0))

	if len(*closed) != 0 {
		t.Errorf("expected brief silence to keep the utterance open, got %d closes", len(*closed))
	}
}

func TestSegmenterForceClosesAtMaxLength(t *testing.T) {
	// 25 frames of continuous speech: the utterance hits the 400 ms cap at
	// frame 19 and the frames after it open the next utterance.
	detector := &scriptedDetector{probabilities: speechThen(25, 0)}
	segmenter, started, closed := testSegmenter(detector)

	feed(segmenter, testFrames(25, 0))

	if len(*closed) != 1 {
		t.Fatalf("expected one max-length close, got %d closes", len(*closed))
	}
	if (*closed)[0].Reason != audio.CloseReasonMaxLength {
		t.Errorf("expected max-length close reason, got %s", (*closed)[0].Reason)
	}
	if (*closed)[0].EndSequence != 19 {
		t.Errorf("expected the cap to cut at frame 19, got %d", (*closed)[0].EndSequence)
	}
	if len(*started) != 2 {
		t.Errorf("expected the remaining speech to open a second utterance, got %d starts", len(*started))
	}
}

func TestSegmenterDetectorErrorIsSilence(t *testing.T) {
	detector := &scriptedDetector{err: fmt.Errorf("backend gone")}
	segmenter, started, closed := testSegmenter(detector)

	feed(segmenter, testFrames(10, 0))

	if len(*started) != 0 || len(*closed) != 0 {
		t.Error("expected detector errors to be absorbed as silence")
	}
}

func TestSegmenterForceCloseOverride(t *testing.T) {
	detector := &scriptedDetector{probabilities: speechThen(5, 0)}
	segmenter, _, closed := testSegmenter(detector)

	segmenter.ForceClose(audio.CloseReasonOverride)
	if len(*closed) != 0 {
		t.Fatal("expected force close without an open utterance to be a no-op")
	}

	feed(segmenter, testFrames(5, 0))
	segmenter.ForceClose(audio.CloseReasonOverride)

	if len(*closed) != 1 {
		t.Fatalf("expected 1 closed utterance, got %d", len(*closed))
	}
	if (*closed)[0].Reason != audio.CloseReasonOverride {
		t.Errorf("expected override close reason, got %s", (*closed)[0].Reason)
	}
}

func TestSegmenterPostCloseFramesStartNextUtterance(t *testing.T) {
	probabilities := append(speechThen(5, 4), speechThen(5, 4)...)
	detector := &scriptedDetector{probabilities: probabilities}
	segmenter, started, closed := testSegmenter(detector)

	feed(segmenter, testFrames(18, 0))

	if len(*started) != 2 || len(*closed) != 2 {
		t.Fatalf("expected 2 utterances, got %d starts and %d closes", len(*started), len(*closed))
	}
	if (*closed)[0].EndSequence >= (*closed)[1].StartSequence {
		t.Errorf("expected second utterance to start after the first ended, got %d and %d",
			(*closed)[0].EndSequence, (*closed)[1].StartSequence)
	}
}

func TestSegmenterDetectorSwapMidStream(t *testing.T) {
	detector := &scriptedDetector{probabilities: speechThen(5, 0)}
	segmenter, started, closed := testSegmenter(detector)

	feed(segmenter, testFrames(5, 0))
	if len(*started) != 1 {
		t.Fatalf("expected utterance to open, got %d starts", len(*started))
	}

	replacement := &scriptedDetector{probabilities: speechThen(0, 4)}
	segmenter.SetDetector(replacement)
	feed(segmenter, testFrames(4, 5))

	if len(*closed) != 1 {
		t.Fatalf("expected the open utterance to close under the new detector, got %d", len(*closed))
	}
	if replacement.calls != 4 {
		t.Errorf("expected replacement detector to score the frames, got %d calls", replacement.calls)
	}
}
