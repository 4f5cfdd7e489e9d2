package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model produced no usable content
var ErrEmptyResponse = errors.New("empty LLM response")

// Completer sends a single prompt to a language model and returns its reply
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

// Complete calls f
func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}
