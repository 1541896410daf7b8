package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hession/chatbridge/internal/bot"
	"github.com/hession/chatbridge/internal/cli"
	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	version = "0.1.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "chatbridge",
		Short: "ChatBridge - Telegram AI chat bot",
		Long: `ChatBridge relays Telegram messages to an OpenAI-compatible model.

It can:
  • Keep a rolling per-user conversation
  • Recall similar past exchanges from a vector store
  • Search the web and fetch URLs when the model asks for it

Without a subcommand it serves the webhook when TELEGRAM_WEBHOOK_URL is set
and long-polls otherwise.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			defer logger.Close()

			if cfg.Telegram.WebhookURL != "" {
				return runServe(cmd.Context(), cfg)
			}
			return runPoll(cmd.Context(), cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ./config)")

	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Receive Telegram updates by long polling",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			defer logger.Close()
			return runPoll(cmd.Context(), cfg)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Telegram webhook and health endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			defer logger.Close()
			return runServe(cmd.Context(), cfg)
		},
	}

	var chatUser int64
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal without Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer logger.Close()
			return runChat(cmd.Context(), cfg, chatUser)
		},
	}
	chatCmd.Flags().Int64Var(&chatUser, "user", 1, "user id to chat as")

	memoryCmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect long-term memory",
	}
	var searchUser int64
	memorySearchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Recall the exchanges most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer logger.Close()

			app, err := cli.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cli.NewMemoryCommands(app.Retriever).Search(cmd.Context(), searchUser, strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	memorySearchCmd.Flags().Int64Var(&searchUser, "user", 0, "user id whose memory is searched")
	_ = memorySearchCmd.MarkFlagRequired("user")
	memoryCmd.AddCommand(memorySearchCmd)

	// config subcommand
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())

			path, _ := config.ConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "\nConfig file path: %s\n", path)
			return nil
		},
	}

	var force bool
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			}
			if err := config.Save(config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	configInitCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)

	// version subcommand
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ChatBridge v%s\n", version)
		},
	}

	rootCmd.AddCommand(pollCmd, serveCmd, chatCmd, memoryCmd, configCmd, versionCmd)
	return rootCmd
}

// loadConfig loads configuration and starts the logger. console controls
// whether log lines also go to stdout.
func loadConfig(console bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		LogDir:     cfg.Log.Dir,
		Level:      logger.ParseLevel(cfg.Log.Level),
		MaxDays:    cfg.Log.MaxDays,
		ConsoleOut: console && cfg.Log.Console,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logConfigInfo(cfg)
	return cfg, nil
}

// logConfigInfo logs the effective configuration without secrets
func logConfigInfo(cfg *config.Config) {
	logger.Info("model: %s (embeddings: %s) at %s", cfg.Model.Model, cfg.Model.EmbeddingModel, cfg.Model.BaseURL)
	logger.Info("model api key: %s", maskKey(cfg.Model.APIKey))
	logger.Info("memory backend: %s, collection: %s, dimension: %d",
		cfg.MemoryBackend(), cfg.Memory.Collection, cfg.Memory.Dimension)
	logger.Info("search provider: %s, preamble: %s", cfg.Tools.SearchProvider, cfg.Tools.Preamble)
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "****" + key[len(key)-4:]
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runPoll(parent context.Context, cfg *config.Config) error {
	if err := cfg.RequireBotToken(); err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	api, err := bot.Connect(cfg.Telegram.BotToken)
	if err != nil {
		return err
	}
	app, err := cli.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := bot.DeleteWebhook(api); err != nil {
		logger.Warn("%v", err)
	}
	b := bot.New(api, app.Router, cfg.Telegram.MaxMessageSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Persister.Run(gctx)
	})
	g.Go(func() error {
		defer app.Persister.Close()
		return b.Poll(gctx, api, cfg.Telegram.PollTimeout)
	})
	return g.Wait()
}

func runServe(parent context.Context, cfg *config.Config) error {
	if err := cfg.RequireBotToken(); err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	api, err := bot.Connect(cfg.Telegram.BotToken)
	if err != nil {
		return err
	}
	app, err := cli.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Telegram.WebhookURL != "" {
		if err := bot.RegisterWebhook(api, cfg.Telegram.WebhookURL); err != nil {
			return err
		}
	} else {
		logger.Warn("TELEGRAM_WEBHOOK_URL not set; expecting the webhook to be registered already")
	}

	gin.SetMode(gin.ReleaseMode)
	handler := bot.NewServer(bot.New(api, app.Router, cfg.Telegram.MaxMessageSize), cfg.Telegram.WebhookPath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Persister.Run(gctx)
	})
	g.Go(func() error {
		defer app.Persister.Close()
		return bot.Serve(gctx, handler, cfg.Server.Port)
	})
	return g.Wait()
}

func runChat(parent context.Context, cfg *config.Config, userID int64) error {
	ctx, stop := signalContext(parent)
	defer stop()

	app, err := cli.Build(ctx, cfg, cli.ToolCallPrinter(os.Stdout))
	if err != nil {
		return err
	}
	defer app.Close()

	done := make(chan error, 1)
	go func() { done <- app.Persister.Run(ctx) }()

	runErr := cli.Run(ctx, app, userID)
	app.Persister.Close()
	return errors.Join(runErr, <-done)
}
