// Package siliconflow synthesizes speech with SiliconFlow's hosted IndexTTS-2
// model through the OpenAI-style speech endpoint.
package siliconflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/texttospeech"
)

const (
	defaultBaseURL = "https://api.siliconflow.cn/v1"
	defaultModel   = "IndexTeam/IndexTTS-2"
	defaultVoice   = "IndexTeam/IndexTTS-2:alex"
)

type Client struct {
	apiKey  string
	baseURL string
	model   string
	voice   string

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithBaseURL points the client at an alternative endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithModel overrides the default synthesis model.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithVoice overrides the default voice.
func WithVoice(voice string) ClientOption {
	return func(c *Client) {
		c.voice = voice
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		voice:   defaultVoice,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize chunk")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))
	span.SetAttributes(attribute.Int("request.text_length", len(text)))

	options := &texttospeech.SynthesisOptions{
		Voice:        c.voice,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(options)
	}

	reqBody := struct {
		Model          string  `json:"model"`
		Input          string  `json:"input"`
		Voice          string  `json:"voice"`
		ResponseFormat string  `json:"response_format"`
		SampleRate     int     `json:"sample_rate"`
		Speed          float64 `json:"speed,omitempty"`
	}{
		Model:          c.model,
		Input:          text,
		Voice:          options.Voice,
		ResponseFormat: "pcm",
		SampleRate:     options.EncodingInfo.SampleRate,
		Speed:          options.Speed,
	}
	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/audio/speech", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := texttospeech.ErrorKindUnreachable
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			kind = texttospeech.ErrorKindTimeout
		}
		err = texttospeech.NewError(kind, err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		span.SetAttributes(attribute.String("response.error", string(errorBody)))

		kind := texttospeech.ErrorKindUnreachable
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
			kind = texttospeech.ErrorKindUnsupportedVoice
		}
		err := texttospeech.NewError(kind, fmt.Errorf("non-OK HTTP status: %s", resp.Status))
		span.RecordError(err)
		return nil, err
	}

	speech, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	span.SetAttributes(attribute.Int("response.audio_bytes", len(speech)))
	return speech, nil
}

func (c *Client) Name() string {
	return "siliconflow"
}
