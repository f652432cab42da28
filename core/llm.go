package orchestration

import (
	"context"

	"github.com/fablevoice/fable-core/core/llms"
)

// LLMWithStream is a language model that streams its response.
type LLMWithStream interface {
	PromptWithStream(ctx context.Context, prompt *string, opts ...llms.PromptOption) llms.Stream
}
