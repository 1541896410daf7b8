package tools

import (
	"context"
	"strings"
	"time"

	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/websearch"
)

// WebSearchTool searches the web using a configured provider.
type WebSearchTool struct {
	provider     websearch.Provider
	relatedLimit int
}

// NewWebSearchTool creates a web search tool from config.
func NewWebSearchTool(cfg *config.Config) *WebSearchTool {
	providerName := "duckduckgo"
	relatedLimit := 3
	baseURL := ""
	userAgent := ""
	timeout := 10 * time.Second
	if cfg != nil {
		if strings.TrimSpace(cfg.Tools.SearchProvider) != "" {
			providerName = cfg.Tools.SearchProvider
		}
		relatedLimit = cfg.Tools.RelatedLimit
		baseURL = cfg.Tools.SearchBaseURL
		userAgent = cfg.Tools.UserAgent
		if cfg.Tools.SearchTimeoutSeconds > 0 {
			timeout = time.Duration(cfg.Tools.SearchTimeoutSeconds) * time.Second
		}
	}

	var provider websearch.Provider
	switch strings.ToLower(strings.TrimSpace(providerName)) {
	case "searxng":
		provider = websearch.NewSearXNGProvider(baseURL, userAgent, timeout)
	default:
		provider = websearch.NewDuckDuckGoProvider(baseURL, userAgent, timeout)
	}

	return NewWebSearchToolWithProvider(provider, relatedLimit)
}

// NewWebSearchToolWithProvider wraps an existing provider.
func NewWebSearchToolWithProvider(provider websearch.Provider, relatedLimit int) *WebSearchTool {
	return &WebSearchTool{
		provider:     provider,
		relatedLimit: relatedLimit,
	}
}

func (t *WebSearchTool) Name() string {
	return "search_web"
}

func (t *WebSearchTool) Kind() DirectiveKind {
	return SearchDirective
}

func (t *WebSearchTool) FailurePrefix() string {
	return "Search error"
}

// Execute returns the provider's digest for query.
func (t *WebSearchTool) Execute(ctx context.Context, query string) (string, error) {
	resp, err := t.provider.Search(ctx, query, t.relatedLimit)
	if err != nil {
		return "", err
	}
	return resp.Digest(t.relatedLimit), nil
}
