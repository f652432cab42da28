// Package siliconflow transcribes utterances with SiliconFlow's hosted
// SenseVoice model through the OpenAI-style audio transcription endpoint.
package siliconflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/speechtotext"
)

const (
	defaultBaseURL = "https://api.siliconflow.cn/v1"
	defaultModel   = "FunAudioLLM/SenseVoiceSmall"
)

type Client struct {
	apiKey  string
	baseURL string
	model   string

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithBaseURL points the client at an alternative endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithModel overrides the default transcription model.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Transcribe(ctx context.Context, utterance audio.Utterance, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe utterance")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))
	span.SetAttributes(attribute.Float64("request.audio_duration", utterance.Duration().Seconds()))

	options := &speechtotext.TranscriptionOptions{EncodingInfo: utterance.Encoding}
	for _, opt := range opts {
		opt(options)
	}

	wav, err := audio.EncodeWAV(utterance.PCM, options.EncodingInfo)
	if err != nil {
		err = speechtotext.NewError(speechtotext.ErrorKindUnsupported, err)
		span.RecordError(err)
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("error building multipart body: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("error writing audio payload: %w", err)
	}
	writer.WriteField("model", c.model)
	if options.Language != "" {
		writer.WriteField("language", options.Language)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("error finalising multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = speechtotext.NewError(classifyTransportError(err), err)
		span.RecordError(err)
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		span.SetAttributes(attribute.String("response.error", string(errorBody)))
		err := speechtotext.NewError(classifyStatus(resp.StatusCode),
			fmt.Errorf("non-OK HTTP status: %s", resp.Status))
		span.RecordError(err)
		return "", err
	}

	var responseBody struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return "", fmt.Errorf("error unmarshalling response: %w", err)
	}

	return responseBody.Text, nil
}

func classifyTransportError(err error) speechtotext.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return speechtotext.ErrorKindTimeout
	}
	return speechtotext.ErrorKindUnreachable
}

func classifyStatus(statusCode int) speechtotext.ErrorKind {
	switch {
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return speechtotext.ErrorKindTimeout
	case statusCode >= 400 && statusCode < 500:
		return speechtotext.ErrorKindUnsupported
	}
	return speechtotext.ErrorKindUnreachable
}
