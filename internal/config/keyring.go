package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "vaultrag"
	keyringAPIKey  = "api_key"
)

// API key sources reported in Config.APISource.
const (
	SourceConfig  = "config"
	SourceEnv     = "env"
	SourceKeyring = "keyring"
)

// StoreAPIKey saves key in the OS keyring.
func StoreAPIKey(key string) error {
	if err := keyring.Set(keyringService, keyringAPIKey, key); err != nil {
		return fmt.Errorf("failed to store API key in keyring: %w", err)
	}
	return nil
}

// KeyringAPIKey returns the stored key, or "" when none is stored or the
// keyring is unavailable.
func KeyringAPIKey() string {
	val, err := keyring.Get(keyringService, keyringAPIKey)
	if err != nil {
		return ""
	}
	return val
}

// DeleteAPIKey removes the stored key. A missing key is not an error.
func DeleteAPIKey() error {
	err := keyring.Delete(keyringService, keyringAPIKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete API key from keyring: %w", err)
	}
	return nil
}

// ResolveAPIKey fills cfg.Embedding.APIKey from, in order, the config file,
// VAULTRAG_API_KEY, OPENAI_API_KEY and the OS keyring. A key still holding
// an unexpanded ${...} reference counts as unset.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	if key := cfg.Embedding.APIKey; key != "" && !isEnvReference(key) {
		cfg.APISource = SourceConfig
		logger.Debug("API key loaded from config")
		return
	}
	cfg.Embedding.APIKey = ""
	cfg.APISource = ""

	for _, name := range []string{EnvAPIKey, EnvOpenAI} {
		if key := os.Getenv(name); key != "" {
			cfg.Embedding.APIKey = key
			cfg.APISource = SourceEnv
			logger.Debug("API key loaded from environment", "var", name)
			return
		}
	}

	if key := KeyringAPIKey(); key != "" {
		cfg.Embedding.APIKey = key
		cfg.APISource = SourceKeyring
		logger.Debug("API key loaded from OS keyring")
		return
	}

	logger.Info("no API key found, using the local embedder", "hint", "vaultrag auth set")
}

func isEnvReference(s string) bool {
	return envVarPattern.MatchString(s)
}
