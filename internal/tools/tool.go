package tools

import "context"

// Tool executes one directive kind
type Tool interface {
	Name() string
	Kind() DirectiveKind
	// FailurePrefix starts the text injected into the conversation when Execute fails.
	FailurePrefix() string
	Execute(ctx context.Context, arg string) (string, error)
}
