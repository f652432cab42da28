// Package deepgram synthesizes speech with Deepgram's speak REST endpoint.
// It serves as the fallback provider in the synthesis chain.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/texttospeech"
)

const speakURL = "https://api.deepgram.com/v1/speak"

type deepgramVoice = string

const (
	VoiceAuraAsteria deepgramVoice = "aura-2-asteria-en"
	VoiceAuraLuna    deepgramVoice = "aura-2-luna-en"
	VoiceAuraOrion   deepgramVoice = "aura-2-orion-en"

	defaultVoice = VoiceAuraAsteria
)

// GetAvailableVoices lists the voices the client accepts.
func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceAuraAsteria, VoiceAuraLuna, VoiceAuraOrion}
}

type Client struct {
	apiKey string
	voice  deepgramVoice

	httpClient *http.Client
}

func NewClient(voice deepgramVoice) (*Client, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice")
	}

	return &Client{
		apiKey: apiKey,
		voice:  voice,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	options := &texttospeech.SynthesisOptions{
		Voice:        c.voice,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(options)
	}
	voice := c.voice
	if slices.Contains(GetAvailableVoices(), options.Voice) {
		voice = options.Voice
	}

	speakUrl, _ := url.Parse(speakURL)
	queryParams := speakUrl.Query()
	queryParams.Set("model", voice)
	queryParams.Set("encoding", options.EncodingInfo.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	queryParams.Set("container", "none")
	speakUrl.RawQuery = queryParams.Encode()

	reqBody, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", speakUrl.String(), bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := texttospeech.ErrorKindUnreachable
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			kind = texttospeech.ErrorKindTimeout
		}
		return nil, texttospeech.NewError(kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)

		kind := texttospeech.ErrorKindUnreachable
		if resp.StatusCode == http.StatusBadRequest {
			kind = texttospeech.ErrorKindUnsupportedVoice
		}
		return nil, texttospeech.NewError(kind, fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	speech, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return speech, nil
}

func (c *Client) Name() string {
	return "deepgram"
}
