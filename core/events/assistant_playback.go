package events

// KindPlaybackControl identifies a client-side playback command.
const KindPlaybackControl Kind = "assistant_playback.control"

// PlaybackControl instructs the client to act on its media playback. Track is
// set for "play", empty otherwise.
type PlaybackControl struct {
	Base
	Action string
	Track  string
}

// NewPlaybackControl creates a playback control event.
func NewPlaybackControl(action, track string) PlaybackControl {
	return PlaybackControl{Base: NewBase(KindPlaybackControl), Action: action, Track: track}
}
