// Package config loads mrpilot configuration from global and local JSON
// files plus environment variables, validating the result before any
// workflow stage runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Configuration is the full mrpilot configuration.
type Configuration struct {
	GitLabURL   string `koanf:"gitlab_url" validate:"required,url"`
	GitLabToken string `koanf:"gitlab_token" validate:"required"`

	LLMBaseURL   string  `koanf:"llm_base_url" validate:"omitempty,url"`
	LLMAPIKey    string  `koanf:"llm_api_key" validate:"required"`
	LLMModel     string  `koanf:"llm_model" validate:"required"`
	LLMMaxTokens int     `koanf:"llm_max_tokens" validate:"min=1"`
	Temperature  float64 `koanf:"llm_temperature" validate:"min=0,max=2"`

	Remote        string `koanf:"remote" validate:"required"`
	DefaultTicket string `koanf:"default_ticket"`

	// ProtectedBranches are production and integration branches on which
	// direct commits are disallowed.
	ProtectedBranches []string `koanf:"protected_branches" validate:"min=1"`

	MaxInlineComments   int `koanf:"max_inline_comments" validate:"min=0,max=20"`
	ChangesPollAttempts int `koanf:"changes_poll_attempts" validate:"min=1,max=20"`
	ChangesPollDelaySec int `koanf:"changes_poll_delay_seconds" validate:"min=0,max=60"`

	LLMTimeoutSec    int `koanf:"llm_timeout_seconds" validate:"min=1,max=3600"`
	GitLabTimeoutSec int `koanf:"gitlab_timeout_seconds" validate:"min=1,max=600"`

	CIConfigPath      string `koanf:"ci_config_path"`
	ContextPath       string `koanf:"context_path"`
	SkipConfirmations bool   `koanf:"skip_confirmations"`
}

// GlobalPath returns the location of the global config file.
func GlobalPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".mrpilot", "config.json")
}

// Load loads configuration from global, local, and environment sources.
// Priority: environment variables > local config > global config > defaults.
func Load(localConfigPath string) (*Configuration, error) {
	k := koanf.New(".")

	for key, value := range GetDefaults() {
		k.Set(key, value)
	}

	if globalPath := GlobalPath(); globalPath != "" {
		if _, err := os.Stat(globalPath); err == nil {
			if err := k.Load(file.Provider(globalPath), koanfjson.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load global config: %w", err)
			}
		}
	}

	if localConfigPath != "" {
		if _, err := os.Stat(localConfigPath); err == nil {
			if err := k.Load(file.Provider(localConfigPath), koanfjson.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load local config: %w", err)
			}
		}
	}

	k.Load(env.Provider("MRPILOT_", ".", envTransform), nil)

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if os.Getenv("MRPILOT_YES") != "" {
		cfg.SkipConfirmations = true
	}

	return &cfg, nil
}

// Save writes values into the global config file, merging with any existing
// content. Used by the configure command.
func Save(path string, values map[string]any) error {
	if path == "" {
		path = GlobalPath()
	}
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}

	existing := make(map[string]any)
	if data, err := os.ReadFile(path); err == nil {
		// Best effort; a corrupt file is overwritten.
		json.Unmarshal(data, &existing)
	}
	for key, value := range values {
		existing[key] = value
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename config: %w", err)
	}
	return nil
}

// IsProtected reports whether branch is in the protected set.
func (c *Configuration) IsProtected(branch string) bool {
	for _, p := range c.ProtectedBranches {
		if p == branch {
			return true
		}
	}
	return false
}

// envTransform converts environment variable names to config keys.
// Example: MRPILOT_GITLAB_TOKEN -> gitlab_token
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "MRPILOT_"))
}
