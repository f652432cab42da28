package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	orchestration "github.com/fablevoice/fable-core/core"
	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/vad"
)

// DetectorFactory builds a speech detection backend by name, for the
// set_detector command.
type DetectorFactory func(backend string) (vad.Detector, error)

// Session pumps one websocket connection through an orchestrator: inbound
// audio and commands on the read side, the ordered event stream on the write
// side.
type Session struct {
	conn         *websocket.Conn
	orchestrator *orchestration.Orchestrator

	encoding  audio.EncodingInfo
	detectors DetectorFactory
}

type SessionOption func(*Session)

// WithDetectorFactory enables the set_detector command.
func WithDetectorFactory(factory DetectorFactory) SessionOption {
	return func(s *Session) {
		s.detectors = factory
	}
}

// WithEncoding sets the encoding assumed for inbound audio frames.
func WithEncoding(encoding audio.EncodingInfo) SessionOption {
	return func(s *Session) {
		if !encoding.IsZero() {
			s.encoding = encoding
		}
	}
}

func NewSession(conn *websocket.Conn, orchestrator *orchestration.Orchestrator, opts ...SessionOption) *Session {
	session := &Session{
		conn:         conn,
		orchestrator: orchestrator,
		encoding:     audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(session)
	}
	return session
}

// Serve runs the session until the client disconnects or ctx is cancelled.
// It owns the orchestrator lifecycle and closes it on the way out.
func (s *Session) Serve(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "serve session")
	defer span.End()
	span.SetAttributes(attribute.String("client.address", s.conn.RemoteAddr().String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.orchestrator.Run(ctx)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		writeFailed := false
		for event := range s.orchestrator.Events() {
			if writeFailed {
				continue
			}
			if err := s.conn.WriteJSON(EncodeEvent(event)); err != nil {
				logger.WarnContext(ctx, "failed to write event, draining the rest", "error", err)
				// Keep draining so the orchestrator never blocks on us.
				writeFailed = true
			}
		}
	}()

	err := s.readLoop(ctx)
	s.orchestrator.Close()
	<-writeDone

	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			frame, err := DecodeFrame(payload, s.encoding)
			if err != nil {
				logger.WarnContext(ctx, "dropping malformed audio message", "error", err)
				continue
			}
			if err := s.orchestrator.ProcessAudio(ctx, frame); err != nil {
				return err
			}
		case websocket.TextMessage:
			var command Command
			if err := json.Unmarshal(payload, &command); err != nil {
				logger.WarnContext(ctx, "dropping malformed command", "error", err)
				continue
			}
			if done := s.handleCommand(ctx, command); done {
				return nil
			}
		}
	}
}

// handleCommand reports true when the session should end.
func (s *Session) handleCommand(ctx context.Context, command Command) bool {
	switch command.Type {
	case CommandPrompt:
		s.orchestrator.SendPrompt(command.Text)
	case CommandCancelTurn:
		s.orchestrator.CancelTurn()
	case CommandUtteranceOverride:
		s.orchestrator.StartUtteranceOverride()
	case CommandSetDetector:
		s.switchDetector(ctx, command.Backend)
	case CommandDisconnect:
		return true
	default:
		logger.WarnContext(ctx, "ignoring unknown command", "type", command.Type)
	}
	return false
}

func (s *Session) switchDetector(ctx context.Context, backend string) {
	if s.detectors == nil {
		logger.WarnContext(ctx, "detector switching not configured", "backend", backend)
		return
	}

	detector, err := s.detectors(backend)
	if err != nil {
		logger.WarnContext(ctx, "failed to build detector, keeping the current one",
			"backend", backend, "error", err)
		return
	}

	if previous := s.orchestrator.SetDetector(detector); previous != nil {
		if err := previous.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close replaced detector",
				"backend", previous.Backend(), "error", err)
		}
	}
}
