package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Frame is a fixed-duration slice of PCM audio tagged with a monotonically
// increasing sequence number. Each frame is consumed exactly once by the
// segmenter that receives it.
type Frame struct {
	Sequence uint64
	PCM      []byte
	Encoding EncodingInfo
}

// Duration returns the play time of the frame's PCM payload.
func (f Frame) Duration() time.Duration {
	return pcmDuration(len(f.PCM), f.Encoding)
}

// CloseReason describes why an utterance was closed.
type CloseReason string

const (
	CloseReasonSilence    CloseReason = "silence"
	CloseReasonMaxLength  CloseReason = "max-length"
	CloseReasonOverride   CloseReason = "override"
	CloseReasonDisconnect CloseReason = "disconnect"
)

// Utterance is a bounded span of speech frames. It is immutable once closed
// and handed off to transcription exactly once.
type Utterance struct {
	ID            string
	StartSequence uint64
	EndSequence   uint64
	PCM           []byte
	Encoding      EncodingInfo
	Reason        CloseReason
	StartedAt     time.Time
	ClosedAt      time.Time
}

// Duration returns the play time of the utterance's PCM payload.
func (u Utterance) Duration() time.Duration {
	return pcmDuration(len(u.PCM), u.Encoding)
}

// RMS returns the root mean square amplitude of the utterance normalised to
// [0, 1]. Only linear16 payloads carry a meaningful value; other encodings
// report 1 so they are never mistaken for silence.
func (u Utterance) RMS() float64 {
	return RMS(u.PCM, u.Encoding)
}

// RMS returns the normalised root mean square amplitude of a linear16 PCM
// payload.
func RMS(pcm []byte, encoding EncodingInfo) float64 {
	if encoding.Format != EncodingLinear16 || len(pcm) < 2 {
		return 1
	}

	var sum float64
	samples := len(pcm) / 2
	for i := 0; i < samples; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		v := float64(sample) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}

func pcmDuration(byteLen int, encoding EncodingInfo) time.Duration {
	if encoding.IsZero() {
		encoding = GetDefaultEncodingInfo()
	}
	bytesPerSecond := encoding.SampleRate * encoding.Format.ByteSize()
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(byteLen) / float64(bytesPerSecond) * float64(time.Second))
}
