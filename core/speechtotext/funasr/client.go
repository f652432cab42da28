// Package funasr transcribes utterances with a self-hosted FunASR service.
// It is the on-premise fallback when the hosted provider is unavailable.
package funasr

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
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/speechtotext"
)

const defaultBaseURL = "http://localhost:10095"

type Client struct {
	baseURL string

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithBaseURL points the client at a different FunASR deployment.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		baseURL: defaultBaseURL,
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
	options := &speechtotext.TranscriptionOptions{EncodingInfo: utterance.Encoding}
	for _, opt := range opts {
		opt(options)
	}

	wav, err := audio.EncodeWAV(utterance.PCM, options.EncodingInfo)
	if err != nil {
		return "", speechtotext.NewError(speechtotext.ErrorKindUnsupported, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("error building multipart body: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("error writing audio payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("error finalising multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/asr", &body)
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := speechtotext.ErrorKindUnreachable
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			kind = speechtotext.ErrorKindTimeout
		}
		return "", speechtotext.NewError(kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", speechtotext.NewError(speechtotext.ErrorKindUnreachable,
			fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	var responseBody struct {
		Result []struct {
			Text string `json:"text"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return "", fmt.Errorf("error unmarshalling response: %w", err)
	}

	var transcript strings.Builder
	for _, segment := range responseBody.Result {
		transcript.WriteString(segment.Text)
	}
	return transcript.String(), nil
}
