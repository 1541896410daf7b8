package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/hession/chatbridge/internal/agent"
	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/logger"
	"github.com/hession/chatbridge/internal/tools"
)

const (
	Version = "0.1.0"

	historyLimit = 1000

	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Console is a terminal transport over the same command routing the
// Telegram bot uses.
type Console struct {
	ctx    context.Context
	app    *App
	memory *MemoryCommands
	userID int64
	out    io.Writer

	history     *os.File
	multiLine   strings.Builder
	inMultiLine bool
	exited      bool
}

// NewConsole creates a console chatting as userID
func NewConsole(ctx context.Context, app *App, userID int64, out io.Writer) *Console {
	return &Console{
		ctx:    ctx,
		app:    app,
		memory: NewMemoryCommands(app.Retriever),
		userID: userID,
		out:    out,
	}
}

// ToolCallPrinter reports each tool run on out while the console waits
// for the follow-up reply.
func ToolCallPrinter(out io.Writer) agent.Option {
	return agent.WithToolCallHandler(func(d tools.Directive, result string) {
		fmt.Fprintf(out, "%s[%s] %s (%d chars)%s\n", colorGray, d.Kind, d.Arg, len([]rune(result)), colorReset)
	})
}

// Run starts the interactive console
func Run(ctx context.Context, app *App, userID int64) error {
	c := NewConsole(ctx, app, userID, os.Stdout)
	c.printWelcome()

	history := loadHistory(historyFilePath())
	if f, err := os.OpenFile(historyFilePath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
		c.history = f
		defer f.Close()
	}

	p := prompt.New(
		c.Execute,
		c.Complete,
		prompt.OptionTitle("chatbridge"),
		prompt.OptionLivePrefix(c.livePrefix),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionHistory(history),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return c.exited }),
	)
	p.Run()
	return nil
}

// Execute handles one line of input
func (c *Console) Execute(line string) {
	if c.exited {
		return
	}

	// Handle multi-line input
	if c.inMultiLine {
		if line == "" {
			// Empty line ends multi-line input
			c.inMultiLine = false
			input := strings.TrimSpace(c.multiLine.String())
			c.multiLine.Reset()
			if input != "" {
				c.process(input)
			}
			return
		}
		c.multiLine.WriteString(line)
		c.multiLine.WriteString("\n")
		return
	}

	input := strings.TrimSpace(line)
	if input == "" {
		return
	}
	c.saveHistory(input)

	// Trailing backslash starts multi-line mode
	if strings.HasSuffix(input, "\\") {
		c.inMultiLine = true
		c.multiLine.WriteString(strings.TrimSuffix(input, "\\"))
		c.multiLine.WriteString("\n")
		fmt.Fprintf(c.out, "%s(Multi-line mode: press Enter on an empty line to submit)%s\n", colorGray, colorReset)
		return
	}

	c.process(input)
}

// Exited reports whether the user asked to quit
func (c *Console) Exited() bool {
	return c.exited
}

// process answers console-only commands and routes everything else
func (c *Console) process(input string) {
	if strings.HasPrefix(input, "/") {
		switch strings.ToLower(strings.Fields(input)[0]) {
		case "/exit", "/quit", "/q":
			fmt.Fprintf(c.out, "%sGoodbye!%s\n", colorCyan, colorReset)
			c.exited = true
			return
		case "/config":
			fmt.Fprintln(c.out, c.app.Config.String())
			return
		}
		if handled, out := c.memory.HandleCommand(c.ctx, c.userID, input); handled {
			fmt.Fprintln(c.out, out)
			return
		}
	}

	reply := c.app.Router.Reply(c.ctx, c.userID, input)
	fmt.Fprintf(c.out, "\n%sBot:%s %s\n\n", colorBlue, colorReset, reply)
}

// Complete suggests commands while a slash command is being typed
func (c *Console) Complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	if !strings.HasPrefix(text, "/") || strings.Contains(text, " ") {
		return nil
	}
	var suggests []prompt.Suggest
	for _, s := range CommandSuggestions(c.app.Router.NewSessionCommand()) {
		suggests = append(suggests, prompt.Suggest{Text: s.Text, Description: s.Description})
	}
	return prompt.FilterHasPrefix(suggests, text, true)
}

func (c *Console) livePrefix() (string, bool) {
	if c.inMultiLine {
		return "...  ", true
	}
	return "You: ", true
}

func (c *Console) printWelcome() {
	fmt.Fprintf(c.out, "\n%sChatBridge v%s%s - console session for user %d\n", colorCyan, Version, colorReset, c.userID)
	fmt.Fprintf(c.out, "%sType /help for help, /exit to quit%s\n", colorGray, colorReset)
	if !c.app.Retriever.Enabled() {
		fmt.Fprintf(c.out, "%sLong-term memory is disabled%s\n", colorYellow, colorReset)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) saveHistory(input string) {
	if c.history == nil || strings.Contains(input, "\n") {
		return
	}
	if _, err := fmt.Fprintln(c.history, input); err != nil {
		logger.Debug("failed to write history: %v", err)
	}
}

// historyFilePath returns the history file path
func historyFilePath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "chatbridge_history")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return filepath.Join(os.TempDir(), "chatbridge_history")
	}
	return filepath.Join(dir, "history")
}

// loadHistory reads the last historyLimit lines of path
func loadHistory(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > historyLimit {
		lines = lines[len(lines)-historyLimit:]
	}
	return lines
}
