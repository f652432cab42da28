package audio

// Defaults assumed whenever a session does not announce its encoding.
const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

type encodingFormat string

const (
	EncodingLinear16 encodingFormat = "linear16"
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
)

func (e encodingFormat) Name() string {
	return string(e)
}

// ByteSize returns the bytes per sample, or -1 for an unknown format.
func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	case EncodingMulaw, EncodingALaw:
		return 1
	}
	return -1
}

// EncodingInfo describes the sample layout of a PCM byte stream.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: EncodingLinear16}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// SilenceValue is the byte that encodes digital silence in the format.
func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingMulaw:
		return 0xFF
	case EncodingALaw:
		return 0x55
	}
	return 0
}
