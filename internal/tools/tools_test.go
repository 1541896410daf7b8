package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	resp  websearch.Response
	err   error
	query string
	limit int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(_ context.Context, query string, limit int) (websearch.Response, error) {
	p.query = query
	p.limit = limit
	return p.resp, p.err
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	search := NewWebSearchToolWithProvider(&stubProvider{}, 3)
	require.NoError(t, registry.Register(search))
	assert.Error(t, registry.Register(search), "duplicate kind should be rejected")

	got, exists := registry.Get(SearchDirective)
	require.True(t, exists)
	assert.Equal(t, "search_web", got.Name())

	_, exists = registry.Get(FetchDirective)
	assert.False(t, exists)

	_, ran := registry.Run(context.Background(), Directive{Kind: FetchDirective, Arg: "http://x"})
	assert.False(t, ran)
}

func TestRegistry_RunCapturesFailure(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewWebSearchToolWithProvider(&stubProvider{err: errors.New("timeout")}, 3)))

	out, ran := registry.Run(context.Background(), Directive{Kind: SearchDirective, Arg: "cats"})
	assert.True(t, ran)
	assert.Equal(t, "Search error: timeout", out)
}

func TestNewDefaultRegistry(t *testing.T) {
	registry := NewDefaultRegistry(config.DefaultConfig())

	search, ok := registry.Get(SearchDirective)
	require.True(t, ok)
	assert.Equal(t, "search_web", search.Name())

	fetch, ok := registry.Get(FetchDirective)
	require.True(t, ok)
	assert.Equal(t, "fetch_url", fetch.Name())
}

func TestWebSearchTool_Execute(t *testing.T) {
	provider := &stubProvider{resp: websearch.Response{
		Summary:   "Felines.",
		SourceURL: "https://example.org/cats",
		Results:   []websearch.Result{{Snippet: "one"}, {Snippet: "two"}, {Snippet: "three"}, {Snippet: "four"}},
	}}
	tool := NewWebSearchToolWithProvider(provider, 3)

	out, err := tool.Execute(context.Background(), "cats")
	require.NoError(t, err)
	assert.Equal(t, "cats", provider.query)
	assert.Equal(t, 3, provider.limit)
	assert.Equal(t, "Summary: Felines.\nSource: https://example.org/cats\n- one\n- two\n- three", out)
}

func TestFetchURLTool_Execute(t *testing.T) {
	body := strings.Repeat("a", 6000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/page", http.StatusFound)
			return
		}
		assert.Equal(t, "ChatBridge/0.1", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	tool := NewFetchURLTool(config.DefaultConfig())

	out, err := tool.Execute(context.Background(), server.URL+"/redirect")
	require.NoError(t, err)

	prefix := "Content from " + server.URL + "/redirect:\n\n"
	require.True(t, strings.HasPrefix(out, prefix))
	assert.Equal(t, 5000, len(strings.TrimPrefix(out, prefix)))
}

func TestFetchURLTool_TruncatesCharactersNotBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("é", 10)))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Tools.FetchMaxChars = 4
	out, err := NewFetchURLTool(cfg).Execute(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "\n\néééé"))
}

func TestFetchURLTool_StripHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><style>p{}</style><script>var x=1;</script></head>
<body><h1>Title</h1><p>Hello &amp; welcome</p></body></html>`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Tools.StripHTML = true
	out, err := NewFetchURLTool(cfg).Execute(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "\n\nTitle Hello & welcome"), out)
}

func TestFetchURLTool_Errors(t *testing.T) {
	tool := NewFetchURLTool(config.DefaultConfig())

	_, err := tool.Execute(context.Background(), "not a url")
	assert.Error(t, err)

	_, err = tool.Execute(context.Background(), "ftp://example.org/file")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported url scheme")
}

func TestFetchURLTool_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	tool := NewFetchURLTool(config.DefaultConfig())
	tool.client.Timeout = 20 * time.Millisecond

	registry := NewRegistry()
	require.NoError(t, registry.Register(tool))

	out, ran := registry.Run(context.Background(), Directive{Kind: FetchDirective, Arg: server.URL})
	assert.True(t, ran)
	assert.True(t, strings.HasPrefix(out, "Failed to fetch URL: "), out)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "hi", truncateRunes("hi", 4))
	assert.Equal(t, "", truncateRunes("hi", 0))
}
