package texttospeech

import (
	"context"
	"fmt"
	"strings"
)

// Chain tries a list of synthesizers in order and returns the first
// successful result. A chunk only fails when every provider fails.
type Chain struct {
	synthesizers []Synthesizer
}

func NewChain(synthesizers ...Synthesizer) *Chain {
	return &Chain{synthesizers: synthesizers}
}

func (c *Chain) Synthesize(ctx context.Context, text string, opts ...SynthesisOption) ([]byte, error) {
	if len(c.synthesizers) == 0 {
		return nil, NewError(ErrorKindUnreachable, fmt.Errorf("no synthesizers configured"))
	}

	chainErr := &ChainError{}
	for _, synthesizer := range c.synthesizers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		audio, err := synthesizer.Synthesize(ctx, text, opts...)
		if err == nil {
			return audio, nil
		}
		chainErr.Errors = append(chainErr.Errors,
			fmt.Errorf("%s: %w", synthesizer.Name(), err))
	}
	return nil, chainErr
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.synthesizers))
	for _, synthesizer := range c.synthesizers {
		names = append(names, synthesizer.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// ChainError aggregates the per-provider failures of one chunk.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}
	return "all synthesizers failed: " + strings.Join(messages, "; ")
}

func (e *ChainError) Unwrap() []error {
	return e.Errors
}
