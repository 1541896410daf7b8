package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "text-embedding-ada-002", cfg.Model.EmbeddingModel)
	assert.Equal(t, 0.7, cfg.Model.Temperature)
	assert.Equal(t, 2048, cfg.Model.MaxTokens)
	assert.Equal(t, "telegram_chatbot", cfg.Memory.Collection)
	assert.Equal(t, 1536, cfg.Memory.Dimension)
	assert.Equal(t, 10, cfg.Memory.HistoryWindow)
	assert.Equal(t, 3, cfg.Memory.ContextLimit)
	assert.Equal(t, 5000, cfg.Tools.FetchMaxChars)
	assert.Equal(t, 4096, cfg.Telegram.MaxMessageSize)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "empty BaseURL", mutate: func(c *Config) { c.Model.BaseURL = "" }, wantErr: true},
		{name: "invalid Temperature", mutate: func(c *Config) { c.Model.Temperature = 3.0 }, wantErr: true},
		{name: "zero max tokens", mutate: func(c *Config) { c.Model.MaxTokens = 0 }, wantErr: true},
		{name: "negative model timeout", mutate: func(c *Config) { c.Model.TimeoutSeconds = -1 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Memory.Backend = "redis" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) {
			c.Memory.Backend = "sqlite"
			c.Memory.DBPath = ""
		}, wantErr: true},
		{name: "zero dimension", mutate: func(c *Config) { c.Memory.Dimension = 0 }, wantErr: true},
		{name: "searxng without base url", mutate: func(c *Config) {
			c.Tools.SearchProvider = "searxng"
			c.Tools.SearchBaseURL = ""
		}, wantErr: true},
		{name: "bad preamble policy", mutate: func(c *Config) { c.Tools.Preamble = "keep" }, wantErr: true},
		{name: "preserve preamble", mutate: func(c *Config) { c.Tools.Preamble = "preserve" }},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	configTestDir := filepath.Join(t.TempDir(), "config")
	SetConfigDir(configTestDir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MODEL_ID", "")

	cfg := DefaultConfig()
	cfg.Model.APIKey = "test-api-key"
	cfg.Model.Model = "minimax-m2.5-free"

	require.NoError(t, Save(cfg))
	_, err := os.Stat(filepath.Join(configTestDir, "config.yaml"))
	require.NoError(t, err, "config file not created")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Model.APIKey, loaded.Model.APIKey)
	assert.Equal(t, cfg.Model.Model, loaded.Model.Model)
	assert.Equal(t, filepath.Join(configTestDir, "logs"), loaded.Log.Dir)
}

func TestLoad_SecretsAndEnvironment(t *testing.T) {
	configTestDir := filepath.Join(t.TempDir(), "config")
	SetConfigDir(configTestDir)
	require.NoError(t, os.MkdirAll(configTestDir, 0755))

	secrets := "# comment\nTELEGRAM_BOT_TOKEN=file-token\nQDRANT_URL=http://qdrant:6333\nPORT=8081\n"
	require.NoError(t, os.WriteFile(filepath.Join(configTestDir, ".secrets"), []byte(secrets), 0600))

	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("QDRANT_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("QDRANT_API_KEY", "env-qdrant-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Telegram.BotToken)
	assert.Equal(t, "http://qdrant:6333", cfg.Memory.QdrantURL)
	assert.Equal(t, "env-qdrant-key", cfg.Memory.QdrantAPIKey)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.True(t, cfg.QdrantConfigured())

	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken, "environment must override files")
}

func TestRequireBotToken(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, errors.Is(cfg.RequireBotToken(), ErrNoBotToken))

	cfg.Telegram.BotToken = "123:abc"
	assert.NoError(t, cfg.RequireBotToken())
}

func TestConfigString_RedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.BotToken = "1234567890:telegram-secret"
	cfg.Model.APIKey = "sk-verylongsecret"
	cfg.Memory.QdrantAPIKey = "short"

	out := cfg.String()
	assert.NotContains(t, out, "telegram-secret")
	assert.NotContains(t, out, "verylongsecret")
	assert.Contains(t, out, "sk-veryl...")
	assert.Contains(t, out, "***")
}

func TestPromptConfig_Render(t *testing.T) {
	p := DefaultPromptConfig()

	assert.Contains(t, p.WelcomeText("bbb"), "/bbb - Start a new chat session")
	assert.Contains(t, p.HelpText("new"), "/new - Start a new chat session")
	assert.Equal(t,
		"New chat session created!\nSession ID: 1234abcd...\n\nYour previous conversation context has been cleared.",
		p.NewSessionText("1234abcd"))
	assert.Equal(t,
		"Search results for 'cats':\nSummary: meow\n\nPlease provide a helpful response based on these results.",
		p.SearchFollowUp("cats", "Summary: meow"))
	assert.Equal(t, "Error communicating with AI: boom", p.ErrorText(errors.New("boom")))
}

func TestLoadPromptConfig_Override(t *testing.T) {
	configTestDir := filepath.Join(t.TempDir(), "config")
	SetConfigDir(configTestDir)
	require.NoError(t, os.MkdirAll(configTestDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configTestDir, "prompt.yaml"),
		[]byte("error_prefix: \"AI unavailable\"\n"), 0644))

	p, err := LoadPromptConfig()
	require.NoError(t, err)
	assert.Equal(t, "AI unavailable", p.ErrorPrefix)
	assert.Equal(t, DefaultPromptConfig().System, p.System)
}
