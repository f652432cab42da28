package openai

import (
	"testing"

	"github.com/fablevoice/fable-core/core/llms"
)

func TestToMessagesPrependsSystemPrompt(t *testing.T) {
	messages := toMessages("be brief", []llms.Message{
		{Role: llms.MessageRoleUser, Content: "hello"},
	})

	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != messageRoleSystem || messages[0].Content != "be brief" {
		t.Errorf("expected leading system message, got %+v", messages[0])
	}
	if messages[1].Role != messageRoleUser || messages[1].Content != "hello" {
		t.Errorf("expected user message, got %+v", messages[1])
	}
}

func TestToMessagesCarriesToolCallsAndResults(t *testing.T) {
	messages := toMessages("", []llms.Message{
		{Role: llms.MessageRoleUser, Content: "tell me a story"},
		{Role: llms.MessageRoleAssistant, ToolCalls: []llms.ToolCall{
			{ID: "call-1", Name: "tell_story", Arguments: `{"story_name":"dragon"}`},
		}},
		{Role: llms.MessageRoleTool, ToolCallID: "call-1", Content: "Once upon a time..."},
	})

	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}

	assistant := messages[1]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].Type != "function" {
		t.Errorf("expected tool call type function, got %q", assistant.ToolCalls[0].Type)
	}
	if assistant.ToolCalls[0].Function.Name != "tell_story" {
		t.Errorf("expected tool call name tell_story, got %q", assistant.ToolCalls[0].Function.Name)
	}

	result := messages[2]
	if result.Role != messageRoleTool || result.ToolCallID != "call-1" {
		t.Errorf("expected tool result linked to call-1, got %+v", result)
	}
}

func TestToToolsCopiesSchemas(t *testing.T) {
	tools := toTools([]llms.Tool{
		llms.NewTool("list_stories", "List available stories", map[string]llms.ParameterBase{}, func(struct{}) (string, error) {
			return "", nil
		}),
	})

	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].Function.Name != "list_stories" {
		t.Errorf("expected tool name list_stories, got %q", tools[0].Function.Name)
	}
}
