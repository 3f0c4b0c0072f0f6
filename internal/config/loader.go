package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Load reads the config file at path, or the first file FindConfigFile
// locates when path is empty. No file at all yields the defaults. .env files
// in the working directory and next to the config file are loaded first and
// never overwrite variables already set.
func Load(path string) (*Config, error) {
	if path == "" {
		path = FindConfigFile()
	}

	envDirs := []string{"."}
	if path != "" {
		envDirs = append(envDirs, filepath.Dir(path))
	}
	loadEnvFiles(envDirs...)

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Parse expands environment references in data and overlays it on the
// defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns the first existing file among ./vaultrag.yaml,
// ./vaultrag.yml and ~/.config/vaultrag/config.yaml, or "".
func FindConfigFile() string {
	candidates := []string{"vaultrag.yaml", "vaultrag.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "vaultrag", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ExpandEnv replaces ${VAR} with its value and ${VAR:-default} with the value
// or, when VAR is unset or empty, the default. Unset references without a
// default are left in place.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, hasDefault := m[1], strings.Contains(match, ":-")
		if val, ok := os.LookupEnv(name); ok && (val != "" || !hasDefault) {
			return val
		}
		if hasDefault {
			return m[2]
		}
		return match
	})
}

func loadEnvFiles(dirs ...string) {
	seen := make(map[string]bool)
	for _, dir := range dirs {
		for _, name := range []string{".env", ".env.local"} {
			p := filepath.Clean(filepath.Join(dir, name))
			if seen[p] {
				continue
			}
			seen[p] = true
			// godotenv.Load does not overwrite variables already set.
			_ = godotenv.Load(p)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvVault); v != "" {
		cfg.Vault.Path = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Database.Path = v
	}
}
