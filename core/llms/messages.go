package llms

// Response is a single response from an LLM.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Message is a single message in a provider conversation payload.
type Message struct {
	Role    MessageRole
	Content string

	// ToolCalls carries the calls requested by an assistant message.
	ToolCalls []ToolCall
	// ToolCallID is set on tool-role messages to link the result to the call
	// it answers.
	ToolCallID string
}

// ToolCall is a single tool invocation requested by the model. Response is
// filled in once the tool has executed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}

// MessageRole describes who a message is from.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)
