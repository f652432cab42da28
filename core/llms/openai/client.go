package openai

import (
	"context"

	"github.com/fablevoice/fable-core/core/llms"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

// Client talks to an OpenAI-compatible chat-completions endpoint. The base
// URL is configurable so the same client serves hosted lookalikes
// (SiliconFlow, local gateways).
type Client struct {
	apiKey  string
	baseURL string
	model   string
}

type ClientOption func(*Client)

// WithBaseURL points the client at an alternative OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithModel overrides the default model.
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
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// PromptWithStream prepares a streaming completion request. The request is
// not sent until the returned stream's chunks are consumed.
func (c *Client) PromptWithStream(_ context.Context, prompt *string, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	messages := toMessages(options.Instructions, options.Messages)
	if prompt != nil {
		messages = append(messages, message{
			Role:    messageRoleUser,
			Content: *prompt,
		})
	}

	return &Stream{
		client:          c,
		messages:        messages,
		tools:           toTools(options.Tools),
		forcedToolsCall: options.ForcedToolsCall,
	}
}
