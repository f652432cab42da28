package orchestration

import (
	"sync"
	"time"

	"github.com/fablevoice/fable-core/core/llms"
)

// Turn is one prompt/response exchange. Synthetic turns are produced by the
// orchestrator itself, for example when transcription keeps failing.
type Turn struct {
	ID          string
	Prompt      string
	Synthetic   bool
	Response    string
	ToolCalls   []llms.ToolCall
	StartedAt   time.Time
	FinalisedAt time.Time
	Cancelled   bool
	Failed      bool
}

// conversation collects the turn history and the turn currently being
// processed.
type conversation struct {
	mu     sync.Mutex
	turns  []Turn
	active *Turn
}

func newConversation() *conversation {
	return &conversation{}
}

func (c *conversation) begin(turnID, prompt string, synthetic bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = &Turn{
		ID:        turnID,
		Prompt:    prompt,
		Synthetic: synthetic,
		StartedAt: time.Now(),
	}
}

func (c *conversation) appendResponse(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}
	c.active.Response += text
}

func (c *conversation) recordToolCall(call llms.ToolCall) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}
	c.active.ToolCalls = append(c.active.ToolCalls, call)
}

// finalize moves the active turn into the history.
func (c *conversation) finalize(cancelled, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}
	c.active.Cancelled = cancelled
	c.active.Failed = failed
	c.active.FinalisedAt = time.Now()
	c.turns = append(c.turns, *c.active)
	c.active = nil
}

// activeResponse returns the text streamed so far for the turn in progress.
func (c *conversation) activeResponse() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ""
	}
	return c.active.Response
}

func (c *conversation) history() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := make([]Turn, len(c.turns))
	copy(turns, c.turns)
	return turns
}

// messages renders the history as model messages, including the active turn's
// prompt. Responses of cancelled or failed turns are not replayed to the
// model.
func (c *conversation) messages() []llms.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]llms.Message, 0, 2*len(c.turns)+1)
	for _, turn := range c.turns {
		messages = append(messages, llms.Message{Role: llms.MessageRoleUser, Content: turn.Prompt})
		if turn.Cancelled || turn.Failed || turn.Response == "" {
			continue
		}
		messages = append(messages, llms.Message{Role: llms.MessageRoleAssistant, Content: turn.Response})
	}
	if c.active != nil {
		messages = append(messages, llms.Message{Role: llms.MessageRoleUser, Content: c.active.Prompt})
	}
	return messages
}
