package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hession/chatbridge/internal/config"
	"golang.org/x/net/html"
)

const defaultFetchMaxChars = 5000

// FetchURLTool retrieves a URL and returns the head of its body.
type FetchURLTool struct {
	userAgent string
	maxChars  int
	stripHTML bool
	client    *http.Client
}

// NewFetchURLTool creates a URL fetch tool from config.
func NewFetchURLTool(cfg *config.Config) *FetchURLTool {
	userAgent := "ChatBridge/0.1"
	timeout := 15 * time.Second
	maxChars := defaultFetchMaxChars
	stripHTML := false
	if cfg != nil {
		if strings.TrimSpace(cfg.Tools.UserAgent) != "" {
			userAgent = cfg.Tools.UserAgent
		}
		if cfg.Tools.FetchTimeoutSeconds > 0 {
			timeout = time.Duration(cfg.Tools.FetchTimeoutSeconds) * time.Second
		}
		if cfg.Tools.FetchMaxChars > 0 {
			maxChars = cfg.Tools.FetchMaxChars
		}
		stripHTML = cfg.Tools.StripHTML
	}
	return &FetchURLTool{
		userAgent: userAgent,
		maxChars:  maxChars,
		stripHTML: stripHTML,
		client:    &http.Client{Timeout: timeout},
	}
}

func (t *FetchURLTool) Name() string {
	return "fetch_url"
}

func (t *FetchURLTool) Kind() DirectiveKind {
	return FetchDirective
}

func (t *FetchURLTool) FailurePrefix() string {
	return "Failed to fetch URL"
}

// Execute GETs rawURL, following redirects, and returns at most maxChars
// characters of the body.
func (t *FetchURLTool) Execute(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" {
		return "", fmt.Errorf("invalid url: %s", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	// utf8.UTFMax bytes per character is enough to cover maxChars runes
	limit := int64(t.maxChars) * utf8.UTFMax
	if t.stripHTML {
		limit *= 4
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	content := string(body)
	if t.stripHTML && strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		content = extractText(content)
	}

	return fmt.Sprintf("Content from %s:\n\n%s", parsed.String(), truncateRunes(content, t.maxChars)), nil
}

// truncateRunes keeps the first n characters of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// extractText returns the visible text of an HTML document.
func extractText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isHiddenTag(name []byte) bool {
	switch string(name) {
	case "script", "style", "noscript":
		return true
	}
	return false
}
