package events

const (
	KindToolCallStarted   Kind = "tool_call.started"
	KindToolCallCompleted Kind = "tool_call.completed"
	KindToolCallFailed    Kind = "tool_call.failed"
)

// ToolCallStarted announces that the reasoning loop began executing a tool
// the model asked for.
type ToolCallStarted struct {
	Base
	ID        string
	Name      string
	Arguments string
}

func NewToolCallStarted(id, name, arguments string) ToolCallStarted {
	return ToolCallStarted{Base: NewBase(KindToolCallStarted), ID: id, Name: name, Arguments: arguments}
}

// ToolCallCompleted carries the observation a finished tool produced.
type ToolCallCompleted struct {
	Base
	ID       string
	Name     string
	Response string
}

func NewToolCallCompleted(id, name, response string) ToolCallCompleted {
	return ToolCallCompleted{Base: NewBase(KindToolCallCompleted), ID: id, Name: name, Response: response}
}

// ToolCallFailed carries the error of a tool that did not finish. The failure
// is an observation for the model, not a session error.
type ToolCallFailed struct {
	Base
	ID    string
	Name  string
	Error string
}

func NewToolCallFailed(id, name, err string) ToolCallFailed {
	return ToolCallFailed{Base: NewBase(KindToolCallFailed), ID: id, Name: name, Error: err}
}
