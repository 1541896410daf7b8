package bot

import (
	"context"
	"strings"

	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/session"
)

// legacyNewSessionCmd is still accepted for users used to the old name
const legacyNewSessionCmd = "bbb"

// Conversation is what the transports need from the orchestrator
type Conversation interface {
	HandleTurn(ctx context.Context, userID int64, text string) string
	NewSession(userID int64) *session.Session
	Prompts() *config.PromptConfig
}

// Router turns inbound text into a reply, answering commands locally and
// handing everything else to the conversation.
type Router struct {
	conv          Conversation
	newSessionCmd string
}

// NewRouter creates a router; newSessionCmd is the command name without
// the leading slash.
func NewRouter(conv Conversation, newSessionCmd string) *Router {
	newSessionCmd = strings.TrimPrefix(strings.TrimSpace(newSessionCmd), "/")
	if newSessionCmd == "" {
		newSessionCmd = "new"
	}
	return &Router{conv: conv, newSessionCmd: newSessionCmd}
}

// ParseCommand splits "/cmd@botname args" into its lowercase name and
// arguments. ok is false for plain text.
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// IsCommand reports whether text is a command this router answers
func (r *Router) IsCommand(text string) bool {
	name, _, ok := ParseCommand(text)
	if !ok {
		return false
	}
	switch name {
	case "start", "help", r.newSessionCmd, legacyNewSessionCmd:
		return true
	}
	return false
}

// Reply answers text for userID. Unknown commands go to the model like any
// other message. A blank model reply is replaced with the empty-reply text
// so every message gets an answer.
func (r *Router) Reply(ctx context.Context, userID int64, text string) string {
	prompts := r.conv.Prompts()
	if name, _, ok := ParseCommand(text); ok {
		switch name {
		case "start":
			r.conv.NewSession(userID)
			return prompts.WelcomeText(r.newSessionCmd)
		case r.newSessionCmd, legacyNewSessionCmd:
			s := r.conv.NewSession(userID)
			return prompts.NewSessionText(s.ShortID())
		case "help":
			return prompts.HelpText(r.newSessionCmd)
		}
	}
	reply := r.conv.HandleTurn(ctx, userID, text)
	if strings.TrimSpace(reply) == "" {
		return prompts.EmptyReply
	}
	return reply
}

// NewSessionCommand returns the configured command name
func (r *Router) NewSessionCommand() string {
	return r.newSessionCmd
}
