// Package silero scores frames with a Silero model served by an external
// inference process. Frames go out as binary PCM over a persistent websocket
// and scores come back as JSON.
package silero

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fablevoice/fable-core/core/vad"
)

const (
	defaultURL         = "ws://localhost:8721/v1/score"
	defaultCallTimeout = 200 * time.Millisecond
)

type Detector struct {
	url         string
	callTimeout time.Duration

	connMu sync.Mutex
	conn   *websocket.Conn
}

type Option func(*Detector)

// WithURL points the detector at a different inference server.
func WithURL(url string) Option {
	return func(d *Detector) {
		d.url = url
	}
}

// WithCallTimeout bounds a single score round trip.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		d.callTimeout = timeout
	}
}

func NewDetector(opts ...Option) *Detector {
	detector := &Detector{
		url:         defaultURL,
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(detector)
	}
	return detector
}

func (d *Detector) SpeechProbability(ctx context.Context, pcm []byte) (float64, error) {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	conn, err := d.ensureConnection(ctx)
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(d.callTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		d.dropConnection()
		return 0, fmt.Errorf("failed to send frame to silero server: %w", err)
	}

	conn.SetReadDeadline(deadline)
	var score struct {
		Probability float64 `json:"probability"`
	}
	if err := conn.ReadJSON(&score); err != nil {
		d.dropConnection()
		return 0, fmt.Errorf("failed to read score from silero server: %w", err)
	}

	return score.Probability, nil
}

func (d *Detector) Backend() string {
	return vad.BackendSilero
}

// Health dials the inference server if no connection is open.
func (d *Detector) Health(ctx context.Context) vad.Health {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if _, err := d.ensureConnection(ctx); err != nil {
		return vad.Health{Backend: vad.BackendSilero, Ready: false, Detail: err.Error()}
	}
	return vad.Health{Backend: vad.BackendSilero, Ready: true}
}

func (d *Detector) Close() error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// ensureConnection must be called with connMu held.
func (d *Detector) ensureConnection(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to silero server: %w", err)
	}
	d.conn = conn
	return conn, nil
}

// dropConnection must be called with connMu held.
func (d *Detector) dropConnection() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}
