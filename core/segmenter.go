package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/vad"
)

// SegmenterConfig tunes the utterance boundary hysteresis.
type SegmenterConfig struct {
	// Threshold is the speech probability above which a frame counts as
	// speech.
	Threshold float64
	// MinSpeech is the consecutive speech needed to open an utterance.
	MinSpeech time.Duration
	// MinSilence is the consecutive silence needed to close an utterance.
	MinSilence time.Duration
	// MaxUtterance force-closes an utterance that never goes silent.
	MaxUtterance time.Duration
}

func defaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		Threshold:    0.5,
		MinSpeech:    250 * time.Millisecond,
		MinSilence:   500 * time.Millisecond,
		MaxUtterance: 30 * time.Second,
	}
}

// audioSegmenter turns the per-frame detector decisions into bounded
// utterances. A detector error is treated as non-speech and logged, it never
// surfaces to the session.
type audioSegmenter struct {
	mu       sync.Mutex
	detector vad.Detector
	cfg      SegmenterConfig

	open       bool
	speechRun  time.Duration
	silenceRun time.Duration
	prefix     []audio.Frame
	frames     []audio.Frame
	duration   time.Duration

	utteranceID string
	startedAt   time.Time

	onUtteranceStarted func(utteranceID string)
	onUtteranceClosed  func(utterance audio.Utterance)
}

func newAudioSegmenter(detector vad.Detector, cfg SegmenterConfig, onStarted func(string), onClosed func(audio.Utterance)) *audioSegmenter {
	if onStarted == nil {
		onStarted = func(string) {}
	}
	if onClosed == nil {
		onClosed = func(audio.Utterance) {}
	}
	return &audioSegmenter{
		detector:           detector,
		cfg:                cfg,
		onUtteranceStarted: onStarted,
		onUtteranceClosed:  onClosed,
	}
}

// SetDetector swaps the active backend. The open utterance, if any, carries
// on under the new detector.
func (s *audioSegmenter) SetDetector(detector vad.Detector) vad.Detector {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.detector
	s.detector = detector
	return previous
}

func (s *audioSegmenter) Detector() vad.Detector {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.detector
}

// ProcessFrame consumes one frame. Frames that arrive after a close are
// attributed to the next utterance.
func (s *audioSegmenter) ProcessFrame(ctx context.Context, frame audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	probability := 0.0
	if s.detector != nil {
		var err error
		probability, err = s.detector.SpeechProbability(ctx, frame.PCM)
		if err != nil {
			logger.WarnContext(ctx, "speech detection failed, treating frame as silence",
				"backend", s.detector.Backend(), "error", err)
			probability = 0
		}
	}
	isSpeech := probability >= s.cfg.Threshold

	if !s.open {
		if !isSpeech {
			s.speechRun = 0
			s.prefix = nil
			return
		}

		s.prefix = append(s.prefix, frame)
		s.speechRun += frame.Duration()
		if s.speechRun >= s.cfg.MinSpeech {
			s.openUtterance()
		}
		return
	}

	s.frames = append(s.frames, frame)
	s.duration += frame.Duration()

	if isSpeech {
		s.silenceRun = 0
	} else {
		s.silenceRun += frame.Duration()
		if s.silenceRun >= s.cfg.MinSilence {
			s.closeUtterance(audio.CloseReasonSilence)
			return
		}
	}

	if s.duration >= s.cfg.MaxUtterance {
		s.closeUtterance(audio.CloseReasonMaxLength)
	}
}

// ForceClose closes the open utterance regardless of hysteresis. It is a
// no-op when no utterance is open.
func (s *audioSegmenter) ForceClose(reason audio.CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return
	}
	s.closeUtterance(reason)
}

// openUtterance must be called with mu held.
func (s *audioSegmenter) openUtterance() {
	s.open = true
	s.frames = s.prefix
	s.prefix = nil
	s.silenceRun = 0
	s.duration = 0
	for _, frame := range s.frames {
		s.duration += frame.Duration()
	}
	s.utteranceID = uuid.NewString()
	s.startedAt = time.Now()

	s.onUtteranceStarted(s.utteranceID)
}

// closeUtterance must be called with mu held.
func (s *audioSegmenter) closeUtterance(reason audio.CloseReason) {
	frames := s.frames
	utterance := audio.Utterance{
		ID:        s.utteranceID,
		Reason:    reason,
		StartedAt: s.startedAt,
		ClosedAt:  time.Now(),
	}
	if len(frames) > 0 {
		utterance.StartSequence = frames[0].Sequence
		utterance.EndSequence = frames[len(frames)-1].Sequence
		utterance.Encoding = frames[0].Encoding
		size := 0
		for _, frame := range frames {
			size += len(frame.PCM)
		}
		pcm := make([]byte, 0, size)
		for _, frame := range frames {
			pcm = append(pcm, frame.PCM...)
		}
		utterance.PCM = pcm
	}

	s.open = false
	s.frames = nil
	s.prefix = nil
	s.speechRun = 0
	s.silenceRun = 0
	s.duration = 0
	s.utteranceID = ""

	s.onUtteranceClosed(utterance)
}
