package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Secrets sensitive configuration loaded from dotenv files and the environment
type Secrets struct {
	values map[string]string
	lookup func(string) (string, bool)
}

// NewSecrets creates a new Secrets instance
func NewSecrets() *Secrets {
	return &Secrets{
		values: make(map[string]string),
		lookup: os.LookupEnv,
	}
}

// SecretsPath returns the secrets file path
func SecretsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".secrets"), nil
}

// LoadSecrets reads ./.env and config/.secrets. Later files override
// earlier ones; missing files are ignored.
func LoadSecrets() (*Secrets, error) {
	secrets := NewSecrets()

	paths := []string{".env"}
	if p, err := SecretsPath(); err == nil {
		paths = append(paths, p)
	}

	for _, path := range paths {
		if err := secrets.readFile(path); err != nil {
			return secrets, err
		}
	}

	return secrets, nil
}

func (s *Secrets) readFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

// Get returns the value for a key; the process environment takes precedence.
func (s *Secrets) Get(key string) string {
	if s == nil {
		return ""
	}
	if s.lookup != nil {
		if v, ok := s.lookup(key); ok && v != "" {
			return v
		}
	}
	return s.values[key]
}

// GetOrDefault returns the value for a key, or the default value if not found
func (s *Secrets) GetOrDefault(key, defaultValue string) string {
	if v := s.Get(key); v != "" {
		return v
	}
	return defaultValue
}

// Has checks if a key exists
func (s *Secrets) Has(key string) bool {
	return s.Get(key) != ""
}
