package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// ErrNoBotToken is returned when a Telegram transport is started without a token.
var ErrNoBotToken = errors.New("TELEGRAM_BOT_TOKEN not provided")

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Model    ModelConfig    `yaml:"model"`
	Memory   MemoryConfig   `yaml:"memory"`
	Tools    ToolsConfig    `yaml:"tools"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// TelegramConfig messaging transport configuration
type TelegramConfig struct {
	BotToken       string `yaml:"bot_token"`
	WebhookURL     string `yaml:"webhook_url"`
	WebhookPath    string `yaml:"webhook_path"`
	PollTimeout    int    `yaml:"poll_timeout"`
	NewSessionCmd  string `yaml:"new_session_command"`
	MaxMessageSize int    `yaml:"max_message_size"`
}

// ModelConfig completion and embedding model configuration
type ModelConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"` // 0 means no timeout
}

// MemoryConfig long-term memory configuration
type MemoryConfig struct {
	Backend       string `yaml:"backend"` // qdrant | sqlite | memory | none
	QdrantURL     string `yaml:"qdrant_url"`
	QdrantAPIKey  string `yaml:"qdrant_api_key"`
	Collection    string `yaml:"collection"`
	Dimension     int    `yaml:"dimension"`
	DBPath        string `yaml:"db_path"`
	HistoryWindow int    `yaml:"history_window"`
	ContextLimit  int    `yaml:"context_limit"`
	PersistQueue  int    `yaml:"persist_queue"`
}

// ToolsConfig search and fetch directive configuration
type ToolsConfig struct {
	SearchProvider       string `yaml:"search_provider"`
	SearchBaseURL        string `yaml:"search_base_url"`
	SearchTimeoutSeconds int    `yaml:"search_timeout_seconds"`
	FetchTimeoutSeconds  int    `yaml:"fetch_timeout_seconds"`
	FetchMaxChars        int    `yaml:"fetch_max_chars"`
	RelatedLimit         int    `yaml:"related_limit"`
	UserAgent            string `yaml:"user_agent"`
	StripHTML            bool   `yaml:"strip_html"`
	Preamble             string `yaml:"preamble"` // discard | preserve
}

// ServerConfig webhook server configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig logging configuration
type LogConfig struct {
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
	MaxDays int    `yaml:"max_days"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			WebhookPath:    "/webhook",
			PollTimeout:    60,
			NewSessionCmd:  "new",
			MaxMessageSize: 4096,
		},
		Model: ModelConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-ada-002",
			Temperature:    0.7,
			MaxTokens:      2048,
		},
		Memory: MemoryConfig{
			Backend:       "qdrant",
			Collection:    "telegram_chatbot",
			Dimension:     1536,
			DBPath:        filepath.Join("data", "memory.db"),
			HistoryWindow: 10,
			ContextLimit:  3,
			PersistQueue:  64,
		},
		Tools: ToolsConfig{
			SearchProvider:       "duckduckgo",
			SearchBaseURL:        "https://api.duckduckgo.com",
			SearchTimeoutSeconds: 10,
			FetchTimeoutSeconds:  15,
			FetchMaxChars:        5000,
			RelatedLimit:         3,
			UserAgent:            "ChatBridge/0.1",
			Preamble:             "discard",
		},
		Server: ServerConfig{
			Port: 5000,
		},
		Log: LogConfig{
			Level:   "info",
			MaxDays: 7,
			Console: true,
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds the configuration from defaults, the optional YAML file,
// dotenv/secrets files and the process environment, in that order.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Log.Dir == "" {
		cfg.Log.Dir = LogDir()
	}

	return cfg, nil
}

// applySecrets overlays values from dotenv files and the environment.
// Process environment wins over files.
func (c *Config) applySecrets(s *Secrets) {
	str := func(dst *string, key string) {
		if v := s.Get(key); v != "" {
			*dst = v
		}
	}
	str(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	str(&c.Telegram.WebhookURL, "TELEGRAM_WEBHOOK_URL")
	str(&c.Model.APIKey, "OPENAI_API_KEY")
	str(&c.Model.BaseURL, "OPENAI_BASE_URL")
	str(&c.Model.Model, "MODEL_ID")
	str(&c.Model.EmbeddingModel, "EMBEDDING_MODEL_ID")
	str(&c.Memory.QdrantURL, "QDRANT_URL")
	str(&c.Memory.QdrantAPIKey, "QDRANT_API_KEY")
	str(&c.Log.Level, "LOG_LEVEL")

	if v := s.Get("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# ChatBridge Configuration File\n# Secrets belong in config/.secrets or the environment\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Model.BaseURL == "" {
		return fmt.Errorf("config error: model.base_url cannot be empty")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("config error: model.model cannot be empty")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("config error: model.temperature must be between 0 and 2")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config error: model.max_tokens must be greater than 0")
	}
	if c.Model.TimeoutSeconds < 0 {
		return fmt.Errorf("config error: model.timeout_seconds cannot be negative")
	}

	switch c.MemoryBackend() {
	case "qdrant", "none", "memory":
	case "sqlite":
		if c.Memory.DBPath == "" {
			return fmt.Errorf("config error: memory.db_path cannot be empty for sqlite backend")
		}
	default:
		return fmt.Errorf("config error: unknown memory.backend %q", c.Memory.Backend)
	}
	if c.Memory.Collection == "" {
		return fmt.Errorf("config error: memory.collection cannot be empty")
	}
	if c.Memory.Dimension <= 0 {
		return fmt.Errorf("config error: memory.dimension must be greater than 0")
	}
	if c.Memory.HistoryWindow <= 0 {
		return fmt.Errorf("config error: memory.history_window must be greater than 0")
	}
	if c.Memory.ContextLimit <= 0 {
		return fmt.Errorf("config error: memory.context_limit must be greater than 0")
	}
	if c.Memory.PersistQueue <= 0 {
		return fmt.Errorf("config error: memory.persist_queue must be greater than 0")
	}

	provider := strings.ToLower(strings.TrimSpace(c.Tools.SearchProvider))
	if provider == "searxng" && strings.TrimSpace(c.Tools.SearchBaseURL) == "" {
		return fmt.Errorf("config error: tools.search_base_url cannot be empty for searxng provider")
	}
	if c.Tools.SearchTimeoutSeconds <= 0 {
		return fmt.Errorf("config error: tools.search_timeout_seconds must be greater than 0")
	}
	if c.Tools.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("config error: tools.fetch_timeout_seconds must be greater than 0")
	}
	if c.Tools.FetchMaxChars <= 0 {
		return fmt.Errorf("config error: tools.fetch_max_chars must be greater than 0")
	}
	if c.Tools.RelatedLimit < 0 {
		return fmt.Errorf("config error: tools.related_limit cannot be negative")
	}
	switch strings.ToLower(c.Tools.Preamble) {
	case "", "discard", "preserve":
	default:
		return fmt.Errorf("config error: tools.preamble must be discard or preserve")
	}

	if c.Telegram.MaxMessageSize <= 0 {
		return fmt.Errorf("config error: telegram.max_message_size must be greater than 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: server.port must be between 1 and 65535")
	}

	return nil
}

// RequireBotToken fails when no Telegram token is configured.
func (c *Config) RequireBotToken() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return ErrNoBotToken
	}
	return nil
}

// MemoryBackend returns the normalized backend name.
func (c *Config) MemoryBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Memory.Backend))
	if backend == "" {
		return "qdrant"
	}
	return backend
}

// QdrantConfigured reports whether Qdrant credentials are present.
func (c *Config) QdrantConfigured() bool {
	return c.Memory.QdrantURL != "" && c.Memory.QdrantAPIKey != ""
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`ChatBridge Configuration:
  Telegram:
    Bot Token: %s
    Webhook URL: %s
    Webhook Path: %s
  Model:
    API Key: %s
    Base URL: %s
    Model: %s
    Embedding Model: %s
    Temperature: %.1f
    Max Tokens: %d
  Memory:
    Backend: %s
    Qdrant URL: %s
    Qdrant API Key: %s
    Collection: %s (dim %d)
    DB Path: %s
    History Window: %d
    Context Limit: %d
  Tools:
    Search Provider: %s
    Search Base URL: %s
    Search Timeout: %ds
    Fetch Timeout: %ds
    Fetch Max Chars: %d
    Preamble: %s
  Server:
    Port: %d`,
		redactAPIKey(c.Telegram.BotToken),
		c.Telegram.WebhookURL,
		c.Telegram.WebhookPath,
		redactAPIKey(c.Model.APIKey),
		c.Model.BaseURL,
		c.Model.Model,
		c.Model.EmbeddingModel,
		c.Model.Temperature,
		c.Model.MaxTokens,
		c.MemoryBackend(),
		c.Memory.QdrantURL,
		redactAPIKey(c.Memory.QdrantAPIKey),
		c.Memory.Collection,
		c.Memory.Dimension,
		c.Memory.DBPath,
		c.Memory.HistoryWindow,
		c.Memory.ContextLimit,
		c.Tools.SearchProvider,
		c.Tools.SearchBaseURL,
		c.Tools.SearchTimeoutSeconds,
		c.Tools.FetchTimeoutSeconds,
		c.Tools.FetchMaxChars,
		c.Tools.Preamble,
		c.Server.Port,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
