package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds every model-facing and user-facing text template.
type PromptConfig struct {
	System        string `yaml:"system"`
	MemoryContext string `yaml:"memory_context"`
	SearchFollow  string `yaml:"search_followup"`
	FetchFollow   string `yaml:"fetch_followup"`
	ErrorPrefix   string `yaml:"error_prefix"`
	Welcome       string `yaml:"welcome"`
	Help          string `yaml:"help"`
	NewSession    string `yaml:"new_session"`
	EmptyReply    string `yaml:"empty_reply"`
}

// DefaultPromptConfig returns default prompt configuration
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		System: `You are a helpful AI assistant with access to web search and URL fetching capabilities.

When the user asks you to search the web, respond with: [SEARCH: query]
When the user asks you to fetch a URL, respond with: [FETCH: url]

You can also search automatically when you need current information.

Be helpful, concise, and accurate.`,
		MemoryContext: "Relevant past conversations:",
		SearchFollow:  "Search results for '%s':\n%s\n\nPlease provide a helpful response based on these results.",
		FetchFollow:   "Content fetched from %s:\n%s\n\nPlease summarize or answer based on this content.",
		ErrorPrefix:   "Error communicating with AI",
		Welcome: "Welcome to AI Chatbot!\n\n" +
			"Commands:\n" +
			"/start - Start the bot\n" +
			"/%[1]s - Start a new chat session\n" +
			"/help - Show help message\n\n" +
			"I can search the web and fetch URLs for you!",
		Help: "AI Chatbot Help\n\n" +
			"Commands:\n" +
			"/start - Start the bot\n" +
			"/%[1]s - Start a new chat session\n" +
			"/help - Show this help message\n\n" +
			"Features:\n" +
			"- AI-powered conversations\n" +
			"- Web search capability\n" +
			"- URL fetching and summarization\n" +
			"- Persistent memory using a vector store\n",
		NewSession: "New chat session created!\nSession ID: %s...\n\n" +
			"Your previous conversation context has been cleared.",
		EmptyReply: "Sorry, I couldn't come up with a reply. Please try again.",
	}
}

// PromptConfigPath returns the prompt config file path
func PromptConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompt.yaml"), nil
}

// LoadPromptConfig loads prompt configuration from file, falling back to defaults
func LoadPromptConfig() (*PromptConfig, error) {
	configPath, err := PromptConfigPath()
	if err != nil {
		return DefaultPromptConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultPromptConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	cfg := DefaultPromptConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}

	return cfg, nil
}

// WelcomeText renders the /start reply.
func (p *PromptConfig) WelcomeText(newSessionCmd string) string {
	return fmt.Sprintf(p.Welcome, newSessionCmd)
}

// HelpText renders the /help reply.
func (p *PromptConfig) HelpText(newSessionCmd string) string {
	return fmt.Sprintf(p.Help, newSessionCmd)
}

// NewSessionText renders the reset confirmation for a shortened session id.
func (p *PromptConfig) NewSessionText(shortID string) string {
	return fmt.Sprintf(p.NewSession, shortID)
}

// SearchFollowUp renders the user turn that carries a search digest.
func (p *PromptConfig) SearchFollowUp(query, digest string) string {
	return fmt.Sprintf(p.SearchFollow, query, digest)
}

// FetchFollowUp renders the user turn that carries fetched page content.
func (p *PromptConfig) FetchFollowUp(url, content string) string {
	return fmt.Sprintf(p.FetchFollow, url, content)
}

// ErrorText renders the user-visible completion failure message.
func (p *PromptConfig) ErrorText(err error) string {
	return fmt.Sprintf("%s: %v", p.ErrorPrefix, err)
}
