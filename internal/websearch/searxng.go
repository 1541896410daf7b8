package websearch

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// SearXNGProvider searches a self-hosted SearXNG instance.
type SearXNGProvider struct {
	api jsonClient
}

func NewSearXNGProvider(baseURL, userAgent string, timeout time.Duration) *SearXNGProvider {
	return &SearXNGProvider{api: newJSONClient(baseURL, userAgent, timeout)}
}

func (p *SearXNGProvider) Name() string {
	return "searxng"
}

type searxngHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Search promotes the top hit to the summary and source link; up to limit
// further hits become related results.
func (p *SearXNGProvider) Search(ctx context.Context, query string, limit int) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, errEmptyQuery
	}

	var payload struct {
		Results []searxngHit `json:"results"`
	}
	params := url.Values{"q": {query}, "format": {"json"}}
	if err := p.api.get(ctx, "/search", params, &payload); err != nil {
		return Response{}, err
	}

	out := Response{Query: query, Provider: p.Name()}
	hits := payload.Results
	if len(hits) > 0 {
		out.Summary = strings.TrimSpace(hits[0].Content)
		out.SourceURL = strings.TrimSpace(hits[0].URL)
		hits = hits[1:]
	}
	for _, hit := range hits {
		if limit > 0 && len(out.Results) >= limit {
			break
		}
		out.Results = append(out.Results, Result{
			Title:   strings.TrimSpace(hit.Title),
			URL:     strings.TrimSpace(hit.URL),
			Snippet: strings.TrimSpace(hit.Content),
			Source:  p.Name(),
		})
	}
	return out, nil
}
