// Package events defines the typed orchestration event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - tool_call.*
//   - assistant_speech.*
//   - assistant_playback.*
//   - turn_state.*
//   - session.*
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): speech activity began.
//   - UserSpeechEnded (user_input.speech_ended): speech activity ended; carries
//     the utterance close reason.
//   - UserTranscript (user_input.transcript): final transcript for the closed
//     utterance.
//
// assistant_response events
//
//   - AssistantResponseSegment (assistant_response.segment): streamed response
//     token, emitted in generation order.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): tool execution started.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed.
//
// assistant_speech events
//
//   - AssistantSpeechChunk (assistant_speech.chunk): synthesized audio for one
//     sentence chunk, delivered in chunk order.
//   - SynthesisUnavailable (assistant_speech.unavailable): synthesis of one
//     chunk failed after retries; the text stream is unaffected.
//
// assistant_playback events
//
//   - PlaybackControl (assistant_playback.control): client-side playback
//     command produced by a skill (play/pause/resume/stop/next).
//
// turn_state events
//
//   - TurnStarted (turn_state.started): turn processing started.
//   - TurnCompleted (turn_state.completed): turn drained successfully.
//   - TurnCancelled (turn_state.cancelled): turn was cancelled mid-flight.
//   - TurnFailed (turn_state.failed): turn ended with a terminal error.
//
// session events
//
//   - SessionError (session.error): non-fatal session-scoped error surfaced to
//     the client.
package events
