package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/logger"
)

// Registry maps directive kinds to the tools that serve them
type Registry struct {
	tools map[DirectiveKind]Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[DirectiveKind]Tool),
	}
}

// Register registers a tool
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := tool.Kind()
	if kind == PlainReply {
		return fmt.Errorf("tool %s does not serve a directive", tool.Name())
	}
	if existing, exists := r.tools[kind]; exists {
		return fmt.Errorf("%s directive already served by %s", kind, existing.Name())
	}

	r.tools[kind] = tool
	return nil
}

// Get gets the tool for a directive kind
func (r *Registry) Get(kind DirectiveKind) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[kind]
	return tool, exists
}

// Run executes the tool for d. Failures are captured as text so the
// conversation always has something to continue with.
func (r *Registry) Run(ctx context.Context, d Directive) (string, bool) {
	tool, exists := r.Get(d.Kind)
	if !exists {
		return "", false
	}

	out, err := tool.Execute(ctx, d.Arg)
	if err != nil {
		logger.Error("%s tool failed for %q: %v", tool.Name(), d.Arg, err)
		return fmt.Sprintf("%s: %v", tool.FailurePrefix(), err), true
	}
	return out, true
}

// NewDefaultRegistry creates and registers the search and fetch tools
func NewDefaultRegistry(cfg *config.Config) *Registry {
	registry := NewRegistry()

	tools := []Tool{
		NewWebSearchTool(cfg),
		NewFetchURLTool(cfg),
	}

	for _, tool := range tools {
		_ = registry.Register(tool) // kinds are distinct
	}

	return registry
}
