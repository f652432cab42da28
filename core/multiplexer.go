package orchestration

import (
	"sync"

	"github.com/fablevoice/fable-core/core/events"
)

// streamMultiplexer owns the single ordered event channel of a session.
// Turn-scoped events flow through a turnStream acquired with BeginTurn; one
// turn holds the gate at a time, so turn N is fully drained (its terminal
// event sent) before any event of turn N+1. The channel is bounded and
// publishers block on a slow consumer, they never drop.
type streamMultiplexer struct {
	out    chan events.Event
	gate   chan struct{}
	closed chan struct{}

	// mu guards out against closing while a send is in flight. Senders hold
	// the read side, Close holds the write side before closing the channel.
	mu        sync.RWMutex
	closeOnce sync.Once
}

func newStreamMultiplexer(buffer int) *streamMultiplexer {
	mux := &streamMultiplexer{
		out:    make(chan events.Event, buffer),
		gate:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	mux.gate <- struct{}{}
	return mux
}

func (m *streamMultiplexer) Events() <-chan events.Event {
	return m.out
}

// Publish sends a session-scoped event outside any turn (speech activity,
// transcripts, session errors).
func (m *streamMultiplexer) Publish(event events.Event) bool {
	return m.send(event)
}

// BeginTurn blocks until the previous turn released the gate, then opens the
// stream for a new turn. Returns nil when the multiplexer is closed.
func (m *streamMultiplexer) BeginTurn(turnID string) *turnStream {
	select {
	case <-m.gate:
	case <-m.closed:
		return nil
	}

	stream := &turnStream{mux: m, turnID: turnID}
	m.send(events.NewTurnStarted(turnID))
	return stream
}

// Close stops accepting events and ends the consumer's stream. Publishers
// blocked in send are released and report false.
func (m *streamMultiplexer) Close() {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.mu.Lock()
		close(m.out)
		m.mu.Unlock()
	})
}

func (m *streamMultiplexer) send(event events.Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	select {
	case <-m.closed:
		return false
	default:
	}

	select {
	case m.out <- event:
		return true
	case <-m.closed:
		return false
	}
}

type turnStreamState int

const (
	turnStreamActive turnStreamState = iota
	turnStreamCancelled
	turnStreamDone
)

// turnStream publishes the events of one turn in generation order. After the
// terminal event (Done, Cancel or Fail) further publishes are discarded,
// which is how late tool results of a cancelled turn disappear.
type turnStream struct {
	mux    *streamMultiplexer
	turnID string

	sendMu      sync.Mutex
	state       turnStreamState
	releaseOnce sync.Once
}

func (t *turnStream) TurnID() string {
	return t.turnID
}

// Publish sends a turn-scoped event. It reports false when the turn already
// reached a terminal state and the event was discarded.
func (t *turnStream) Publish(event events.Event) bool {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if t.state != turnStreamActive {
		return false
	}
	return t.mux.send(event)
}

// Done marks the turn fully drained and releases the gate.
func (t *turnStream) Done() {
	t.finish(turnStreamDone, events.NewTurnCompleted(t.turnID))
}

// Cancel emits the terminal cancellation event and releases the gate.
func (t *turnStream) Cancel() {
	t.finish(turnStreamCancelled, events.NewTurnCancelled(t.turnID))
}

// Fail emits the terminal failure event and releases the gate.
func (t *turnStream) Fail(reason string) {
	t.finish(turnStreamDone, events.NewTurnFailed(t.turnID, reason))
}

func (t *turnStream) finish(state turnStreamState, terminal events.Event) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if t.state != turnStreamActive {
		return
	}
	t.state = state
	t.mux.send(terminal)
	t.releaseOnce.Do(func() {
		select {
		case t.mux.gate <- struct{}{}:
		case <-t.mux.closed:
		}
	})
}
