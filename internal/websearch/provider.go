package websearch

import (
	"context"
	"errors"
	"strings"
)

// NoResults is the digest returned when a search yields nothing usable.
const NoResults = "No search results found."

var errEmptyQuery = errors.New("query cannot be empty")

// Result is a single related entry.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Response is a normalized search response.
type Response struct {
	Query     string   `json:"query"`
	Provider  string   `json:"provider"`
	Summary   string   `json:"summary,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
	Results   []Result `json:"results"`
}

// Provider performs web searches.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) (Response, error)
}

// Digest renders a response as the short text block handed to the model:
// summary, source link, then up to limit related snippets.
func (r Response) Digest(limit int) string {
	var lines []string
	if r.Summary != "" {
		lines = append(lines, "Summary: "+r.Summary)
	}
	if r.SourceURL != "" {
		lines = append(lines, "Source: "+r.SourceURL)
	}
	for i, res := range r.Results {
		if i >= limit {
			break
		}
		text := res.Snippet
		if text == "" {
			text = res.Title
		}
		if text == "" {
			continue
		}
		lines = append(lines, "- "+text)
	}

	if len(lines) == 0 {
		return NoResults
	}
	return strings.Join(lines, "\n")
}
