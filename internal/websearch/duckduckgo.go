package websearch

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// DuckDuckGoProvider queries the DuckDuckGo instant answer API.
type DuckDuckGoProvider struct {
	api jsonClient
}

func NewDuckDuckGoProvider(baseURL, userAgent string, timeout time.Duration) *DuckDuckGoProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.duckduckgo.com"
	}
	return &DuckDuckGoProvider{api: newJSONClient(baseURL, userAgent, timeout)}
}

func (p *DuckDuckGoProvider) Name() string {
	return "duckduckgo"
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Search queries the instant answer API. The abstract becomes the summary
// and related topics fill Results, flattened in document order.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, limit int) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, errEmptyQuery
	}
	if limit <= 0 {
		limit = 3
	}

	var payload ddgResponse
	params := url.Values{"q": {query}, "format": {"json"}, "no_html": {"1"}}
	if err := p.api.get(ctx, "", params, &payload); err != nil {
		return Response{}, err
	}

	results := make([]Result, 0, limit)
	var walkTopics func(topics []ddgTopic)
	walkTopics = func(topics []ddgTopic) {
		for _, topic := range topics {
			if len(results) >= limit {
				return
			}
			if len(topic.Topics) > 0 {
				walkTopics(topic.Topics)
				continue
			}
			text := strings.TrimSpace(topic.Text)
			if text == "" {
				continue
			}
			results = append(results, Result{
				Title:   text,
				URL:     strings.TrimSpace(topic.FirstURL),
				Snippet: text,
				Source:  p.Name(),
			})
		}
	}
	walkTopics(payload.RelatedTopics)

	return Response{
		Query:     query,
		Provider:  p.Name(),
		Summary:   strings.TrimSpace(payload.AbstractText),
		SourceURL: strings.TrimSpace(payload.AbstractURL),
		Results:   results,
	}, nil
}
