// Package transport carries a session over a websocket: binary messages in
// are sequenced audio frames, text messages in are control commands, and
// text messages out are the session's event stream.
package transport

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/events"
)

// frameHeaderSize is the big-endian uint32 sequence number prefixing each
// binary audio message.
const frameHeaderSize = 4

// DecodeFrame parses a binary audio message into a frame. The encoding is
// the session's negotiated one, frames do not carry it on the wire.
func DecodeFrame(payload []byte, encoding audio.EncodingInfo) (audio.Frame, error) {
	if len(payload) < frameHeaderSize {
		return audio.Frame{}, fmt.Errorf("audio message too short: %d bytes", len(payload))
	}

	return audio.Frame{
		Sequence: uint64(binary.BigEndian.Uint32(payload)),
		PCM:      payload[frameHeaderSize:],
		Encoding: encoding,
	}, nil
}

// EncodeFrame renders a frame as a binary audio message, for clients.
func EncodeFrame(frame audio.Frame) []byte {
	payload := make([]byte, frameHeaderSize+len(frame.PCM))
	binary.BigEndian.PutUint32(payload, uint32(frame.Sequence))
	copy(payload[frameHeaderSize:], frame.PCM)
	return payload
}

// Command is a client control message.
type Command struct {
	Type string `json:"type"`
	// Text carries the prompt for "prompt" commands.
	Text string `json:"text,omitempty"`
	// Backend names the speech detection backend for "set_detector" commands.
	Backend string `json:"backend,omitempty"`
}

const (
	CommandPrompt            = "prompt"
	CommandCancelTurn        = "cancel_turn"
	CommandUtteranceOverride = "utterance_override"
	CommandSetDetector       = "set_detector"
	CommandDisconnect        = "disconnect"
)

// Envelope is the wire form of a session event.
type Envelope struct {
	Kind      events.Kind `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// EncodeEvent renders a session event as its wire envelope.
func EncodeEvent(event events.Event) Envelope {
	envelope := Envelope{Kind: event.Kind(), Timestamp: event.Timestamp()}

	switch e := event.(type) {
	case events.UserSpeechStarted:
		envelope.Payload = struct {
			UtteranceID string `json:"utterance_id"`
		}{e.UtteranceID}
	case events.UserSpeechEnded:
		envelope.Payload = struct {
			UtteranceID string `json:"utterance_id"`
			Reason      string `json:"reason"`
		}{e.UtteranceID, e.Reason}
	case events.UserTranscript:
		envelope.Payload = struct {
			UtteranceID string `json:"utterance_id,omitempty"`
			Text        string `json:"text"`
		}{e.UtteranceID, e.Text}
	case events.TurnStarted:
		envelope.Payload = turnPayload{e.TurnID}
	case events.TurnCompleted:
		envelope.Payload = turnPayload{e.TurnID}
	case events.TurnCancelled:
		envelope.Payload = turnPayload{e.TurnID}
	case events.TurnFailed:
		envelope.Payload = struct {
			TurnID string `json:"turn_id"`
			Reason string `json:"reason"`
		}{e.TurnID, e.Reason}
	case events.AssistantResponseSegment:
		envelope.Payload = struct {
			TurnID string `json:"turn_id"`
			Text   string `json:"text"`
		}{e.TurnID, e.Text}
	case events.AssistantSpeechChunk:
		envelope.Payload = struct {
			TurnID string `json:"turn_id"`
			Index  int    `json:"index"`
			Audio  []byte `json:"audio"`
		}{e.TurnID, e.Index, e.Audio}
	case events.SynthesisUnavailable:
		envelope.Payload = struct {
			TurnID string `json:"turn_id"`
			Index  int    `json:"index"`
			Reason string `json:"reason"`
		}{e.TurnID, e.Index, e.Reason}
	case events.ToolCallStarted:
		envelope.Payload = struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		}{e.ID, e.Name, e.Arguments}
	case events.ToolCallCompleted:
		envelope.Payload = struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Response string `json:"response"`
		}{e.ID, e.Name, e.Response}
	case events.ToolCallFailed:
		envelope.Payload = struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Error string `json:"error"`
		}{e.ID, e.Name, e.Error}
	case events.PlaybackControl:
		envelope.Payload = struct {
			Action string `json:"action"`
			Track  string `json:"track,omitempty"`
		}{e.Action, e.Track}
	case events.SessionError:
		envelope.Payload = struct {
			ErrorKind string `json:"error_kind"`
			Message   string `json:"message"`
		}{e.ErrorKind, e.Message}
	}

	return envelope
}

type turnPayload struct {
	TurnID string `json:"turn_id"`
}
