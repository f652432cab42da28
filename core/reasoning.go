package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fablevoice/fable-core/core/events"
	"github.com/fablevoice/fable-core/core/llms"
	"github.com/fablevoice/fable-core/core/skills"
)

const defaultMaxToolIterations = 4

// reasoningLoop drives the model through tool calls until it produces a plain
// response. Tool results feed back as observations; after the iteration cap
// the model is prompted once more without tools and any tool calls it still
// produces are discarded, so no turn executes more than the configured number
// of tool rounds.
type reasoningLoop struct {
	llm        LLMWithStream
	registry   *skills.Registry
	extraTools []llms.Tool

	maxToolIterations int
	modelRetries      int
	retryBackoff      time.Duration
}

func newReasoningLoop(llm LLMWithStream, registry *skills.Registry, extraTools []llms.Tool) *reasoningLoop {
	return &reasoningLoop{
		llm:               llm,
		registry:          registry,
		extraTools:        extraTools,
		maxToolIterations: defaultMaxToolIterations,
		modelRetries:      1,
		retryBackoff:      250 * time.Millisecond,
	}
}

func (l *reasoningLoop) run(ctx context.Context, turnID, systemPrompt string, convo *conversation, sink eventSink, buffer *sentenceBuffer) error {
	ctx, span := tracer.Start(ctx, "reasoning loop")
	defer span.End()
	span.SetAttributes(attribute.String("turn.id", turnID))

	if l.llm == nil {
		return ErrLLMNotConfigured
	}

	tools := append(registryTools(l.registry), l.extraTools...)
	messages := convo.messages()

	for iteration := 0; ; iteration++ {
		callTools := tools
		if iteration >= l.maxToolIterations {
			span.AddEvent("tool iteration cap reached")
			callTools = nil
		}

		content, toolCalls, err := l.streamResponse(ctx, turnID, systemPrompt, messages, callTools, convo, sink, buffer)
		if err != nil {
			return &ReasoningError{Err: err}
		}

		if len(toolCalls) == 0 {
			span.SetAttributes(attribute.Int("iterations", iteration+1))
			return nil
		}
		if callTools == nil {
			// The model asked for tools even though none were offered. The
			// calls are not executed; the turn ends with whatever was
			// streamed.
			span.AddEvent("discarding tool calls past the cap")
			span.SetAttributes(attribute.Int("iterations", iteration+1))
			return nil
		}

		messages = append(messages, llms.Message{
			Role:      llms.MessageRoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})
		for i := range toolCalls {
			call := &toolCalls[i]
			sink.Publish(events.NewToolCallStarted(call.ID, call.Name, call.Arguments))

			response, err := l.executeTool(ctx, *call)
			if err != nil {
				response = err.Error()
				sink.Publish(events.NewToolCallFailed(call.ID, call.Name, err.Error()))
			} else {
				sink.Publish(events.NewToolCallCompleted(call.ID, call.Name, response))
			}

			call.Response = response
			convo.recordToolCall(*call)
			messages = append(messages, llms.Message{
				Role:       llms.MessageRoleTool,
				Content:    response,
				ToolCallID: call.ID,
			})
		}
	}
}

// streamResponse performs one model call, publishing content tokens as they
// arrive. Failures before the first published token are retried; once tokens
// reached the session the call is not repeated.
func (l *reasoningLoop) streamResponse(
	ctx context.Context,
	turnID, systemPrompt string,
	messages []llms.Message,
	tools []llms.Tool,
	convo *conversation,
	sink eventSink,
	buffer *sentenceBuffer,
) (string, []llms.ToolCall, error) {
	var lastErr error
	for attempt := 0; attempt <= l.modelRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(l.retryBackoff):
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}
		}

		content, toolCalls, emitted, err := l.consumeStream(ctx, turnID, systemPrompt, messages, tools, convo, sink, buffer)
		if err == nil {
			return content, toolCalls, nil
		}

		lastErr = err
		if emitted {
			break
		}
	}
	return "", nil, lastErr
}

func (l *reasoningLoop) consumeStream(
	ctx context.Context,
	turnID, systemPrompt string,
	messages []llms.Message,
	tools []llms.Tool,
	convo *conversation,
	sink eventSink,
	buffer *sentenceBuffer,
) (string, []llms.ToolCall, bool, error) {
	opts := []llms.PromptOption{
		llms.WithSystemPrompt(systemPrompt),
		llms.WithMessages(messages...),
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools...))
	}
	stream := l.llm.PromptWithStream(ctx, nil, opts...)

	var content strings.Builder
	var toolCalls []llms.ToolCall
	emitted := false

	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return content.String(), toolCalls, emitted, err
		}

		switch c := chunk.(type) {
		case llms.StreamContentChunk:
			token := c.Content()
			content.WriteString(token)
			convo.appendResponse(token)
			buffer.AddToken(token)
			sink.Publish(events.NewAssistantResponseSegment(turnID, token))
			emitted = true
		case llms.StreamToolCallChunk:
			call := c.ToolCall()
			// Fragments without an ID continue the previous call.
			if call.ID != "" || len(toolCalls) == 0 {
				toolCalls = append(toolCalls, call)
			} else {
				last := &toolCalls[len(toolCalls)-1]
				last.Name += call.Name
				last.Arguments += call.Arguments
			}
		}
	}

	return content.String(), toolCalls, emitted, ctx.Err()
}

func (l *reasoningLoop) executeTool(ctx context.Context, call llms.ToolCall) (string, error) {
	if l.registry != nil {
		if _, ok := l.registry.Get(call.Name); ok {
			return l.registry.Invoke(ctx, call.Name, call.Arguments)
		}
	}
	for _, tool := range l.extraTools {
		if tool.Function.Name == call.Name {
			return tool.Execute(call.Arguments)
		}
	}
	return "", fmt.Errorf("tool not found: %s", call.Name)
}
