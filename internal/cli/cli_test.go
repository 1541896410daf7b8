package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/hession/chatbridge/internal/agent"
	"github.com/hession/chatbridge/internal/bot"
	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/llm"
	"github.com/hession/chatbridge/internal/memory"
	"github.com/hession/chatbridge/internal/session"
	"github.com/hession/chatbridge/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoLLM struct {
	inputs []string
}

func (e *echoLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	last := messages[len(messages)-1].Content
	e.inputs = append(e.inputs, last)
	return "echo: " + last, nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func newTestApp(t *testing.T, store memory.Store) (*App, *echoLLM) {
	t.Helper()
	cfg := config.DefaultConfig()
	model := &echoLLM{}
	app := &App{
		Config:    cfg,
		Store:     store,
		Retriever: memory.NewRetriever(store, constEmbedder{}, 3),
		Persister: memory.NewPersister(store, constEmbedder{}, 4),
		Sessions:  session.NewManager(),
	}
	ag, err := agent.New(cfg, model, app.Sessions, app.Retriever, app.Persister, tools.NewRegistry(),
		agent.WithPromptConfig(config.DefaultPromptConfig()))
	require.NoError(t, err)
	app.Agent = ag
	app.Router = bot.NewRouter(ag, "new")
	return app, model
}

func TestVersion(t *testing.T) {
	if Version != "0.1.0" {
		t.Errorf("Expected Version to be '0.1.0', got '%s'", Version)
	}
}

func TestTruncateForDisplay(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{
			name:     "short text",
			text:     "Hello",
			maxLen:   10,
			expected: "Hello",
		},
		{
			name:     "exact length",
			text:     "Hello",
			maxLen:   5,
			expected: "Hello",
		},
		{
			name:     "truncate",
			text:     "Hello World",
			maxLen:   5,
			expected: "Hello...",
		},
		{
			name:     "with newlines",
			text:     "Hello\nWorld",
			maxLen:   20,
			expected: "Hello World",
		},
		{
			name:     "with carriage return",
			text:     "Hello\r\nWorld",
			maxLen:   20,
			expected: "Hello World",
		},
		{
			name:     "multibyte characters",
			text:     "héllo wörld",
			maxLen:   5,
			expected: "héllo...",
		},
		{
			name:     "empty string",
			text:     "",
			maxLen:   10,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateForDisplay(tt.text, tt.maxLen)
			if got != tt.expected {
				t.Errorf("truncateForDisplay(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestFormatRecall(t *testing.T) {
	assert.Equal(t, "No related exchanges found.", FormatRecall(nil))

	out := FormatRecall([]memory.Exchange{
		{SessionID: "0123456789", Message: "my dog is Rex", Response: "Nice!", Timestamp: time.Now()},
		{SessionID: "abc", Message: "line one\nline two", Response: "ok"},
	})
	assert.True(t, strings.HasPrefix(out, "Found 2 related exchanges:\n"))
	assert.Contains(t, out, "session 01234567\n")
	assert.Contains(t, out, "   User: my dog is Rex\n")
	assert.Contains(t, out, "[unknown time] session abc")
	assert.Contains(t, out, "   User: line one line two\n")
}

func TestCommandSuggestions(t *testing.T) {
	var texts []string
	for _, s := range CommandSuggestions("bbb") {
		texts = append(texts, s.Text)
	}
	assert.Contains(t, texts, "/bbb")
	assert.Contains(t, texts, "/memory")
	assert.Contains(t, texts, "/exit")
}

func TestConsole_ChatAndCommands(t *testing.T) {
	app, model := newTestApp(t, nil)
	var out bytes.Buffer
	c := NewConsole(context.Background(), app, 5, &out)

	c.Execute("  hello  ")
	assert.Equal(t, []string{"hello"}, model.inputs)
	assert.Contains(t, out.String(), "echo: hello")

	out.Reset()
	c.Execute("/new")
	assert.Contains(t, out.String(), "New chat session created!")
	assert.Equal(t, 0, app.Sessions.GetOrCreate(5).Len())

	out.Reset()
	c.Execute("/help")
	assert.Contains(t, out.String(), "AI Chatbot Help")

	out.Reset()
	c.Execute("/memory dogs")
	assert.Contains(t, out.String(), "Long-term memory is disabled.")

	out.Reset()
	c.Execute("/config")
	assert.Contains(t, out.String(), "ChatBridge Configuration:")

	c.Execute("")
	assert.Len(t, model.inputs, 1, "blank lines are ignored")

	c.Execute("/exit")
	assert.True(t, c.Exited())
	c.Execute("after exit")
	assert.Len(t, model.inputs, 1)
}

func TestConsole_MultiLine(t *testing.T) {
	app, model := newTestApp(t, nil)
	c := NewConsole(context.Background(), app, 5, &bytes.Buffer{})

	c.Execute("first line\\")
	prefix, _ := c.livePrefix()
	assert.Equal(t, "...  ", prefix)

	c.Execute("second line")
	assert.Empty(t, model.inputs)
	c.Execute("")

	require.Len(t, model.inputs, 1)
	assert.Equal(t, "first line\nsecond line", model.inputs[0])
	prefix, _ = c.livePrefix()
	assert.Equal(t, "You: ", prefix)
}

func TestConsole_MemoryRecall(t *testing.T) {
	store := memory.NewInMemoryStore(4)
	app, _ := newTestApp(t, store)
	require.NoError(t, app.Persister.Persist(context.Background(), memory.Exchange{
		UserID: 5, SessionID: "sess-1234567", Message: "favourite colour is green", Response: "Noted.",
	}))

	var out bytes.Buffer
	c := NewConsole(context.Background(), app, 5, &out)
	c.Execute("/memory colour")
	assert.Contains(t, out.String(), "Found 1 related exchanges:")
	assert.Contains(t, out.String(), "favourite colour is green")

	out.Reset()
	c.Execute("/memory")
	assert.Contains(t, out.String(), "Usage: /memory <query>")
}

func TestConsole_Complete(t *testing.T) {
	app, _ := newTestApp(t, nil)
	c := NewConsole(context.Background(), app, 5, &bytes.Buffer{})

	buf := prompt.NewBuffer()
	buf.InsertText("/he", false, true)
	got := c.Complete(*buf.Document())
	require.Len(t, got, 1)
	assert.Equal(t, "/help", got[0].Text)

	buf = prompt.NewBuffer()
	buf.InsertText("hello", false, true)
	assert.Empty(t, c.Complete(*buf.Document()))
}

func TestLoadHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	var sb strings.Builder
	for i := 0; i < historyLimit+5; i++ {
		sb.WriteString("line\n")
	}
	sb.WriteString("\nlast\n")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))

	lines := loadHistory(path)
	assert.Len(t, lines, historyLimit)
	assert.Equal(t, "last", lines[len(lines)-1])
	assert.Nil(t, loadHistory(filepath.Join(t.TempDir(), "missing")))
}

func TestBuild_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Memory.Backend = "memory"

	app, err := Build(context.Background(), cfg, agent.WithPromptConfig(config.DefaultPromptConfig()))
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Store)
	assert.True(t, app.Retriever.Enabled())
	assert.True(t, app.Persister.Enabled())
	assert.Equal(t, "new", app.Router.NewSessionCommand())

	cfg.Memory.Backend = "none"
	app2, err := Build(context.Background(), cfg, agent.WithPromptConfig(config.DefaultPromptConfig()))
	require.NoError(t, err)
	defer app2.Close()
	assert.False(t, app2.Retriever.Enabled())
}

func TestBuild_UnreachableQdrantRunsWithoutMemory(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cfg := config.DefaultConfig()
	cfg.Memory.Backend = "qdrant"
	cfg.Memory.QdrantURL = url
	cfg.Memory.QdrantAPIKey = "key"

	app, err := Build(context.Background(), cfg, agent.WithPromptConfig(config.DefaultPromptConfig()))
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Store)
	assert.False(t, app.Retriever.Enabled())
	assert.False(t, app.Persister.Enabled())
}

type scriptedLLM struct {
	replies []string
}

func (s *scriptedLLM) Complete(context.Context, []llm.Message) (string, error) {
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

type cannedSearch struct{}

func (cannedSearch) Name() string {
	return "web_search"
}

func (cannedSearch) Kind() tools.DirectiveKind {
	return tools.SearchDirective
}

func (cannedSearch) FailurePrefix() string {
	return "Search error"
}

func (cannedSearch) Execute(context.Context, string) (string, error) {
	return "Summary: cats", nil
}

func TestToolCallPrinter(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(cannedSearch{}))

	var out bytes.Buffer
	cfg := config.DefaultConfig()
	ag, err := agent.New(cfg, &scriptedLLM{replies: []string{"[SEARCH: cats]", "Cats purr."}},
		session.NewManager(), memory.NewRetriever(nil, nil, 3), memory.NewPersister(nil, nil, 1), reg,
		agent.WithPromptConfig(config.DefaultPromptConfig()), ToolCallPrinter(&out))
	require.NoError(t, err)

	assert.Equal(t, "Cats purr.", ag.HandleTurn(context.Background(), 1, "cats?"))
	assert.Contains(t, out.String(), "[search] cats (13 chars)")
}
