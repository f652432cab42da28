// Package vad defines the speech-activity detection contract shared by the
// interchangeable backends.
package vad

import "context"

// Backend identifiers accepted by the orchestrator's detector selection.
const (
	BackendEnergy   = "energy"
	BackendSilero   = "silero"
	BackendDeepgram = "deepgram"
)

// Backends lists the known backend identifiers in preference order.
func Backends() []string {
	return []string{BackendEnergy, BackendSilero, BackendDeepgram}
}

// Detector scores a single audio frame for speech activity.
//
// SpeechProbability returns the probability in [0, 1] that the frame contains
// speech. Implementations may keep per-stream state; a detector instance
// belongs to one session and is not safe for concurrent use.
type Detector interface {
	SpeechProbability(ctx context.Context, pcm []byte) (float64, error)
	Backend() string
	Close() error
}

// Health reports whether a backend is currently usable.
type Health struct {
	Backend string
	Ready   bool
	Detail  string
}

// HealthReporter is implemented by every detector. Backends with an external
// service probe it, local backends report ready.
type HealthReporter interface {
	Health(ctx context.Context) Health
}
