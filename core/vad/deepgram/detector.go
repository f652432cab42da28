// Package deepgram treats Deepgram's listen socket as a dedicated
// speech-activity service. Frames are forwarded to the socket and the
// SpeechStarted / UtteranceEnd responses drive a binary speaking flag that is
// reported back as the frame probability.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/vad"
)

const listenURL = "wss://api.deepgram.com/v1/listen"

type Detector struct {
	encoding audio.EncodingInfo

	connMu    sync.Mutex
	conn      *websocket.Conn
	lastMsgTs time.Time

	speaking atomic.Bool
	closed   atomic.Bool
}

type Option func(*Detector)

// WithEncoding overrides the audio encoding announced to the socket.
func WithEncoding(encoding audio.EncodingInfo) Option {
	return func(d *Detector) {
		d.encoding = encoding
	}
}

// NewDetector opens the listen socket and starts consuming its responses.
func NewDetector(ctx context.Context, opts ...Option) (*Detector, error) {
	detector := &Detector{encoding: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(detector)
	}

	conn, err := connectWebsocket(detector.encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}
	detector.conn = conn
	detector.lastMsgTs = time.Now()

	go detector.readAndProcessMessages(ctx, conn)
	go detector.keepAlive(ctx)

	return detector, nil
}

func (d *Detector) SpeechProbability(_ context.Context, pcm []byte) (float64, error) {
	d.connMu.Lock()
	conn := d.conn
	if conn == nil {
		d.connMu.Unlock()
		return 0, fmt.Errorf("deepgram connection closed")
	}
	d.lastMsgTs = time.Now()
	err := conn.WriteMessage(websocket.BinaryMessage, pcm)
	d.connMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to write to deepgram client: %w", err)
	}

	if d.speaking.Load() {
		return 1, nil
	}
	return 0, nil
}

func (d *Detector) Backend() string {
	return vad.BackendDeepgram
}

// Health reflects the state of the listen socket.
func (d *Detector) Health(_ context.Context) vad.Health {
	if d.closed.Load() {
		return vad.Health{Backend: vad.BackendDeepgram, Ready: false, Detail: "stream closed"}
	}

	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.conn == nil {
		return vad.Health{Backend: vad.BackendDeepgram, Ready: false, Detail: "socket not connected"}
	}
	return vad.Health{Backend: vad.BackendDeepgram, Ready: true}
}

func (d *Detector) Close() error {
	d.closed.Store(true)

	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.conn == nil {
		return nil
	}
	if err := d.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		log.Println("Failed to close deepgram stream", "error", err)
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func connectWebsocket(encoding audio.EncodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenUrl, _ := url.Parse(listenURL)
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("vad_events", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (d *Detector) readAndProcessMessages(_ context.Context, conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !d.closed.Load() && err.Error() != "websocket: close 1000 (normal)" {
				log.Println("Failed to read deepgram websocket message", "error", err)
			}

			d.connMu.Lock()
			d.conn = nil
			d.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			log.Println("Failed to unmarshal deepgram message", "error", err)
			continue
		}

		switch api.TypeResponse(parsedMsg.Type) {
		case api.TypeSpeechStartedResponse:
			d.speaking.Store(true)
		case api.TypeUtteranceEndResponse:
			d.speaking.Store(false)
		case api.TypeMessageResponse:
			var msgResp api.MessageResponse
			if err := json.Unmarshal(msg, &msgResp); err != nil {
				log.Println("Failed to unmarshal deepgram message", err)
				continue
			}
			if msgResp.IsFinal && msgResp.SpeechFinal {
				d.speaking.Store(false)
			}
		}
	}
}

func (d *Detector) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.connMu.Lock()
			if d.conn == nil {
				d.connMu.Unlock()
				return
			}
			if time.Since(d.lastMsgTs) > 5*time.Second {
				if err := d.conn.WriteJSON(struct {
					Type string `json:"type"`
				}{Type: "KeepAlive"}); err != nil {
					log.Println("Failed to write to deepgram client", "error", err)
				}
			}
			d.connMu.Unlock()
		}
	}
}
