// Package energy implements a local speech-activity detector built on frame
// energy and zero-crossing rate. It needs no external service and serves as
// the always-available fallback backend.
package energy

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/fablevoice/fable-core/core/vad"
)

const (
	defaultNoiseFloor = 0.004

	// Zero-crossing rates above this band are dominated by fricatives or
	// broadband noise and are discounted.
	unvoicedZCRThreshold = 0.35

	noiseFloorAdaptation = 0.05
)

type Detector struct {
	noiseFloor float64
}

type Option func(*Detector)

// WithNoiseFloor overrides the initial noise floor estimate (normalised RMS).
func WithNoiseFloor(floor float64) Option {
	return func(d *Detector) {
		if floor > 0 {
			d.noiseFloor = floor
		}
	}
}

func NewDetector(opts ...Option) *Detector {
	detector := &Detector{noiseFloor: defaultNoiseFloor}
	for _, opt := range opts {
		opt(detector)
	}
	return detector
}

func (d *Detector) SpeechProbability(_ context.Context, pcm []byte) (float64, error) {
	if len(pcm) < 2 {
		return 0, nil
	}

	rms, zcr := frameStats(pcm)

	probability := rms / (4 * d.noiseFloor)
	if probability > 1 {
		probability = 1
	}
	if zcr > unvoicedZCRThreshold {
		probability *= 0.5
	}

	// Track the noise floor only through quiet frames so speech does not
	// raise it.
	if probability < 0.5 {
		d.noiseFloor = (1-noiseFloorAdaptation)*d.noiseFloor + noiseFloorAdaptation*rms
		if d.noiseFloor < defaultNoiseFloor/4 {
			d.noiseFloor = defaultNoiseFloor / 4
		}
	}

	return probability, nil
}

func (d *Detector) Backend() string {
	return vad.BackendEnergy
}

// Health reports ready unconditionally, the detector has no external
// dependency.
func (d *Detector) Health(_ context.Context) vad.Health {
	return vad.Health{Backend: vad.BackendEnergy, Ready: true}
}

func (d *Detector) Close() error {
	return nil
}

func frameStats(pcm []byte) (rms, zcr float64) {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0, 0
	}

	var sum float64
	var crossings int
	var previous int16
	for i := 0; i < samples; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		v := float64(sample) / math.MaxInt16
		sum += v * v
		if i > 0 && (sample >= 0) != (previous >= 0) {
			crossings++
		}
		previous = sample
	}

	rms = math.Sqrt(sum / float64(samples))
	zcr = float64(crossings) / float64(samples)
	return rms, zcr
}
