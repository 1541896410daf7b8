package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/llm"
	"github.com/hession/chatbridge/internal/logger"
	"github.com/hession/chatbridge/internal/memory"
	"github.com/hession/chatbridge/internal/session"
	"github.com/hession/chatbridge/internal/tools"
	"go.uber.org/zap"
)

const (
	// DefaultHistoryWindow is how many transcript entries go into a prompt
	DefaultHistoryWindow = 10

	PreambleDiscard  = "discard"
	PreamblePreserve = "preserve"
)

// Completer produces a reply for a message list
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Agent conversation orchestrator
type Agent struct {
	promptConfig    *config.PromptConfig
	llm             Completer
	sessions        *session.Manager
	retriever       *memory.Retriever
	persister       *memory.Persister
	registry        *tools.Registry
	historyWindow   int
	preamble        string
	toolCallHandler func(d tools.Directive, result string)
}

// Option agent configuration option
type Option func(*Agent)

// WithPromptConfig overrides the prompt templates
func WithPromptConfig(p *config.PromptConfig) Option {
	return func(a *Agent) {
		a.promptConfig = p
	}
}

// WithToolCallHandler sets a callback invoked after every tool run
func WithToolCallHandler(handler func(d tools.Directive, result string)) Option {
	return func(a *Agent) {
		a.toolCallHandler = handler
	}
}

// New creates a new Agent instance. retriever and persister may be disabled
// (nil store), in which case long-term memory is skipped.
func New(cfg *config.Config, completer Completer, sessions *session.Manager, retriever *memory.Retriever, persister *memory.Persister, reg *tools.Registry, opts ...Option) (*Agent, error) {
	agent := &Agent{
		llm:           completer,
		sessions:      sessions,
		retriever:     retriever,
		persister:     persister,
		registry:      reg,
		historyWindow: cfg.Memory.HistoryWindow,
		preamble:      strings.ToLower(cfg.Tools.Preamble),
	}
	if agent.historyWindow <= 0 {
		agent.historyWindow = DefaultHistoryWindow
	}
	if agent.sessions == nil {
		agent.sessions = session.NewManager()
	}

	for _, opt := range opts {
		opt(agent)
	}

	if agent.promptConfig == nil {
		promptCfg, err := config.LoadPromptConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt config: %w", err)
		}
		agent.promptConfig = promptCfg
	}

	return agent, nil
}

// HandleTurn answers one user message. It never fails: errors from the
// completion API come back as a user-visible error text.
func (a *Agent) HandleTurn(ctx context.Context, userID int64, userText string) string {
	sess := a.sessions.GetOrCreate(userID)

	related := a.retriever.FetchContext(ctx, userID, userText)
	messages := a.buildMessages(sess, related, userText)

	reply, err := a.llm.Complete(ctx, messages)
	if err != nil {
		return a.fail(userID, err)
	}

	if d := tools.ParseDirective(reply); d.Kind != tools.PlainReply {
		reply, err = a.resolveDirective(ctx, messages, reply, d)
		if err != nil {
			return a.fail(userID, err)
		}
	}

	sess.AppendTurn(userText, reply)

	if err := a.persister.Enqueue(memory.Exchange{
		UserID:    userID,
		SessionID: sess.ID,
		Message:   userText,
		Response:  reply,
	}); err != nil {
		logger.Warn("exchange for user %d not persisted: %v", userID, err)
	}

	return reply
}

// NewSession discards the user's transcript and returns the new session.
func (a *Agent) NewSession(userID int64) *session.Session {
	s := a.sessions.Reset(userID)
	logger.Info("new session %s for user %d", s.ID, userID)
	return s
}

// Session returns the user's current session
func (a *Agent) Session(userID int64) *session.Session {
	return a.sessions.GetOrCreate(userID)
}

// Prompts returns the active prompt templates
func (a *Agent) Prompts() *config.PromptConfig {
	return a.promptConfig
}

// resolveDirective runs the tool named by d and asks the model once more
// with its result. The follow-up reply is never parsed for directives.
func (a *Agent) resolveDirective(ctx context.Context, messages []llm.Message, reply string, d tools.Directive) (string, error) {
	result, ran := a.registry.Run(ctx, d)
	if !ran {
		logger.Warn("no tool registered for %s directive", d.Kind)
		return reply, nil
	}
	if a.toolCallHandler != nil {
		a.toolCallHandler(d, result)
	}

	var followUp string
	switch d.Kind {
	case tools.SearchDirective:
		followUp = a.promptConfig.SearchFollowUp(d.Arg, result)
	case tools.FetchDirective:
		followUp = a.promptConfig.FetchFollowUp(d.Arg, result)
	}

	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: reply},
		llm.Message{Role: llm.RoleUser, Content: followUp},
	)

	final, err := a.llm.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	if a.preamble == PreamblePreserve {
		if pre := d.Preamble(); pre != "" {
			final = pre + "\n\n" + final
		}
	}
	return final, nil
}

// buildMessages builds the prompt: system text with recalled exchanges,
// the recent transcript window and the new user message.
func (a *Agent) buildMessages(sess *session.Session, related []memory.Exchange, userText string) []llm.Message {
	var sb strings.Builder
	sb.WriteString(a.promptConfig.System)
	if len(related) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(a.promptConfig.MemoryContext)
		sb.WriteString("\n")
		for _, ex := range related {
			sb.WriteString(ex.Text())
			sb.WriteString("\n")
		}
	}

	window := sess.Window(a.historyWindow)
	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sb.String()})
	for _, e := range window {
		messages = append(messages, llm.Message{Role: string(e.Role), Content: e.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userText})
	return messages
}

func (a *Agent) fail(userID int64, err error) string {
	logger.L().Error("AI chat error", zap.Int64("user_id", userID), zap.Error(err))
	return a.promptConfig.ErrorText(err)
}
