package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hession/chatbridge/internal/agent"
	"github.com/hession/chatbridge/internal/bot"
	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/llm"
	"github.com/hession/chatbridge/internal/logger"
	"github.com/hession/chatbridge/internal/memory"
	"github.com/hession/chatbridge/internal/session"
	"github.com/hession/chatbridge/internal/tools"
)

// App holds the components shared by every transport
type App struct {
	Config    *config.Config
	LLM       *llm.Client
	Store     memory.Store
	Retriever *memory.Retriever
	Persister *memory.Persister
	Sessions  *session.Manager
	Agent     *agent.Agent
	Router    *bot.Router
}

// Build wires the orchestrator from cfg. The caller must run
// App.Persister.Run and call Close when done.
func Build(ctx context.Context, cfg *config.Config, opts ...agent.Option) (*App, error) {
	var llmOpts []llm.Option
	if cfg.Model.TimeoutSeconds > 0 {
		llmOpts = append(llmOpts, llm.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		}))
	}
	llmClient := llm.New(
		cfg.Model.APIKey,
		cfg.Model.BaseURL,
		cfg.Model.Model,
		cfg.Model.EmbeddingModel,
		cfg.Model.Temperature,
		cfg.Model.MaxTokens,
		llmOpts...,
	)

	store, err := memory.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory store: %w", err)
	}

	app := &App{
		Config:    cfg,
		LLM:       llmClient,
		Store:     store,
		Retriever: memory.NewRetriever(store, llmClient, cfg.Memory.ContextLimit),
		Persister: memory.NewPersister(store, llmClient, cfg.Memory.PersistQueue),
		Sessions:  session.NewManager(),
	}

	ag, err := agent.New(cfg, llmClient, app.Sessions, app.Retriever, app.Persister,
		tools.NewDefaultRegistry(cfg), opts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize Agent: %w", err)
	}
	app.Agent = ag
	app.Router = bot.NewRouter(ag, cfg.Telegram.NewSessionCmd)

	logger.Info("model %s via %s", cfg.Model.Model, cfg.Model.BaseURL)
	return app, nil
}

// Close stops the persister and releases the store.
func (a *App) Close() {
	a.Persister.Close()
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.Warn("failed to close memory store: %v", err)
		}
	}
}
