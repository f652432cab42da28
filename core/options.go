package orchestration

import (
	"time"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/llms"
	"github.com/fablevoice/fable-core/core/skills"
	"github.com/fablevoice/fable-core/core/speechtotext"
	"github.com/fablevoice/fable-core/core/store"
	"github.com/fablevoice/fable-core/core/texttospeech"
	"github.com/fablevoice/fable-core/core/vad"
)

// orchestratorBuilder collects option state that is only applied once all
// options ran, so option order does not matter.
type orchestratorBuilder struct {
	orchestrator *Orchestrator

	detector        vad.Detector
	segmenterConfig *SegmenterConfig
	eventBuffer     *int
	voice           string
	speed           float64
}

type OrchestratorOption func(*orchestratorBuilder)

// WithStreamingLLM sets the model client used by the reasoning loop.
func WithStreamingLLM(client LLMWithStream) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.orchestrator.reasoning.llm = client
	}
}

// WithTranscriber sets the speech-to-text client used for closed utterances.
func WithTranscriber(client speechtotext.Transcriber) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.orchestrator.transcription.client = client
	}
}

// WithSynthesizer enables speech synthesis for assistant responses.
func WithSynthesizer(client texttospeech.Synthesizer) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.orchestrator.synthesis = newSynthesisPipeline(client)
	}
}

// WithVoice selects the synthesis voice.
func WithVoice(voice string) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.voice = voice
	}
}

// WithSpeechSpeed adjusts the synthesis speaking rate.
func WithSpeechSpeed(speed float64) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.speed = speed
	}
}

// WithSkillRegistry exposes the registry's skills to the reasoning loop as
// tools.
func WithSkillRegistry(registry *skills.Registry) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.orchestrator.reasoning.registry = registry
	}
}

// WithTools adds tools beyond the skill registry.
func WithTools(tools ...llms.Tool) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.orchestrator.reasoning.extraTools = append(b.orchestrator.reasoning.extraTools, tools...)
	}
}

// WithDetector sets the initial speech detection backend.
func WithDetector(detector vad.Detector) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.detector = detector
	}
}

// WithAssistantName names the assistant in the default system prompt.
func WithAssistantName(name string) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		if name != "" {
			b.orchestrator.assistantName = name
		}
	}
}

// WithSystemPrompt replaces the default system prompt entirely.
func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.orchestrator.systemPrompt = prompt
	}
}

// WithIntentDetection short-circuits plain story and song requests, serving
// them straight from the content library instead of the reasoning loop.
func WithIntentDetection(detector IntentDetector, library store.Store) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		b.orchestrator.intents = detector
		b.orchestrator.library = library
	}
}

// WithSegmenterConfig tunes the utterance boundary hysteresis. Zero fields
// keep their defaults.
func WithSegmenterConfig(cfg SegmenterConfig) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		if cfg.Threshold > 0 {
			b.segmenterConfig.Threshold = cfg.Threshold
		}
		if cfg.MinSpeech > 0 {
			b.segmenterConfig.MinSpeech = cfg.MinSpeech
		}
		if cfg.MinSilence > 0 {
			b.segmenterConfig.MinSilence = cfg.MinSilence
		}
		if cfg.MaxUtterance > 0 {
			b.segmenterConfig.MaxUtterance = cfg.MaxUtterance
		}
	}
}

// WithMaxToolIterations caps the reasoning loop's tool iterations before the
// model is forced to answer in plain text.
func WithMaxToolIterations(iterations int) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		if iterations > 0 {
			b.orchestrator.reasoning.maxToolIterations = iterations
		}
	}
}

// WithTranscriptionTimeout bounds a single transcription call.
func WithTranscriptionTimeout(timeout time.Duration) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		if timeout > 0 {
			b.orchestrator.transcription.callTimeout = timeout
		}
	}
}

// WithTranscriptionRetries sets how many times a retryable transcription
// failure is retried before the turn falls back to a synthetic response.
func WithTranscriptionRetries(retries int) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		if retries >= 0 {
			b.orchestrator.transcription.retries = retries
		}
	}
}

// WithEventBuffer sets the event channel capacity. Publishers block once it
// is full.
func WithEventBuffer(size int) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		if size > 0 {
			*b.eventBuffer = size
		}
	}
}

// WithEncodingInfo sets the encoding assumed for frames that do not carry
// their own.
func WithEncodingInfo(encoding audio.EncodingInfo) OrchestratorOption {
	return func(b *orchestratorBuilder) {
		if !encoding.IsZero() {
			b.orchestrator.encoding = encoding
		}
	}
}
