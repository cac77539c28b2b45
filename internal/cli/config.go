package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the selected profile.
const (
	EnvBaseURL = "CHAMPONG_BASE_URL"
	EnvAPIKey  = "CHAMPONG_API_KEY"
)

// Profile is one admin API the CLI can talk to.
type Profile struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// MaskedKey shows the first four characters of the key at most.
func (p Profile) MaskedKey() string {
	if len(p.APIKey) > 4 {
		return p.APIKey[:4] + "***"
	}
	return "***"
}

// Config is the content of ~/.champong/config.yaml.
type Config struct {
	DefaultEnv   string             `yaml:"default_env"`
	Environments map[string]Profile `yaml:"environments"`
}

// DefaultConfig is what `config init` writes.
func DefaultConfig() *Config {
	return &Config{
		DefaultEnv: "dev",
		Environments: map[string]Profile{
			"dev":  {BaseURL: "http://localhost:8080", APIKey: "admin-123"},
			"prod": {BaseURL: "https://admin.champong.example.com", APIKey: "change-me"},
		},
	}
}

// Names lists the profiles alphabetically.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set assigns a dotted key: "default_env", "<env>.base_url" or
// "<env>.api_key". Unknown profiles are created.
func (c *Config) Set(key, value string) error {
	if key == "default_env" {
		c.DefaultEnv = value
		return nil
	}
	envName, field, ok := strings.Cut(key, ".")
	if !ok || envName == "" {
		return fmt.Errorf("invalid key %q, expected 'env.key' (e.g. 'dev.base_url')", key)
	}
	p := c.Environments[envName]
	switch field {
	case "base_url":
		p.BaseURL = strings.TrimRight(value, "/")
	case "api_key":
		p.APIKey = value
	default:
		return fmt.Errorf("unknown key %q, valid keys: base_url, api_key", field)
	}
	if c.Environments == nil {
		c.Environments = make(map[string]Profile)
	}
	c.Environments[envName] = p
	return nil
}

// Resolve picks the profile envName (the default when empty) and applies
// overrides. Flags win over environment variables, which win over the file.
// Reads need no API key, so only the base URL is required.
func (c *Config) Resolve(envName, baseURLFlag, apiKeyFlag string) (Profile, error) {
	if envName == "" {
		envName = c.DefaultEnv
	}
	p := c.Environments[envName]
	p.BaseURL = firstNonEmpty(baseURLFlag, os.Getenv(EnvBaseURL), p.BaseURL)
	p.APIKey = firstNonEmpty(apiKeyFlag, os.Getenv(EnvAPIKey), p.APIKey)
	if p.BaseURL == "" {
		return Profile{}, fmt.Errorf("base_url must be configured for environment '%s' (or pass --base-url)", envName)
	}
	return p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ConfigFile reads and writes a Config at Path.
type ConfigFile struct {
	Path string
}

// DefaultConfigFile is ~/.champong/config.yaml.
func DefaultConfigFile() (ConfigFile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigFile{}, fmt.Errorf("failed to get home directory: %w", err)
	}
	return ConfigFile{Path: filepath.Join(home, ".champong", "config.yaml")}, nil
}

// Load returns an empty config defaulting to "dev" when the file is missing.
func (f ConfigFile) Load() (*Config, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{DefaultEnv: "dev", Environments: make(map[string]Profile)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	if cfg.Environments == nil {
		cfg.Environments = make(map[string]Profile)
	}
	return &cfg, nil
}

// Save writes cfg with owner-only permissions since it holds API keys.
func (f ConfigFile) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
