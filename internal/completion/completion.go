package completion

import "context"

// Completer sends one prompt to a text-completion service and returns the raw
// reply. Implementations make exactly one outbound call per invocation and
// report failures as *domain.Error values.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	// MaxTokens caps the length of every reply.
	MaxTokens = 1000
	// Temperature is the sampling temperature used for every prompt.
	Temperature = 0.7
)
