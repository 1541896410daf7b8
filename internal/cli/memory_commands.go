package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/hession/chatbridge/internal/memory"
)

// CommandSuggestion command completion entry
type CommandSuggestion struct {
	Text        string
	Description string
}

// CommandSuggestions lists console commands for completion
func CommandSuggestions(newSessionCmd string) []CommandSuggestion {
	return []CommandSuggestion{
		{Text: "/start", Description: "Start over with a welcome message"},
		{Text: "/" + newSessionCmd, Description: "Start a new chat session"},
		{Text: "/help", Description: "Show help message"},
		{Text: "/memory", Description: "Recall past exchanges: /memory <query>"},
		{Text: "/config", Description: "Show current configuration"},
		{Text: "/exit", Description: "Exit program"},
	}
}

// MemoryCommands answers recall queries against long-term memory
type MemoryCommands struct {
	retriever *memory.Retriever
}

// NewMemoryCommands creates a memory command handler
func NewMemoryCommands(retriever *memory.Retriever) *MemoryCommands {
	return &MemoryCommands{retriever: retriever}
}

// HandleCommand handles "/memory <query>".
// Returns: (whether the command was handled, output)
func (c *MemoryCommands) HandleCommand(ctx context.Context, userID int64, cmd string) (bool, string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 || strings.ToLower(parts[0]) != "/memory" {
		return false, ""
	}
	query := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cmd), parts[0]))
	if query == "" {
		return true, "Usage: /memory <query>"
	}
	return true, c.Search(ctx, userID, query)
}

// Search recalls exchanges similar to query and formats them
func (c *MemoryCommands) Search(ctx context.Context, userID int64, query string) string {
	if !c.retriever.Enabled() {
		return "Long-term memory is disabled."
	}
	return FormatRecall(c.retriever.FetchContext(ctx, userID, query))
}

// FormatRecall renders recalled exchanges, best match first
func FormatRecall(exchanges []memory.Exchange) string {
	if len(exchanges) == 0 {
		return "No related exchanges found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d related exchanges:\n", len(exchanges))
	for i, ex := range exchanges {
		when := "unknown time"
		if !ex.Timestamp.IsZero() {
			when = ex.Timestamp.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&sb, "\n%d. [%s] session %s\n", i+1, when, shortID(ex.SessionID))
		fmt.Fprintf(&sb, "   User: %s\n", truncateForDisplay(ex.Message, 80))
		fmt.Fprintf(&sb, "   Assistant: %s\n", truncateForDisplay(ex.Response, 80))
	}
	return sb.String()
}

// truncateForDisplay flattens text to one line and cuts it to maxLen characters
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
