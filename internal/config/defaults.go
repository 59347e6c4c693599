package config

// GetDefaults returns the default configuration values.
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"gitlab_url":                 "https://gitlab.com",
		"gitlab_token":               "",
		"llm_base_url":               "",
		"llm_api_key":                "",
		"llm_model":                  "gpt-4o",
		"llm_max_tokens":             2048,
		"llm_temperature":            0.2,
		"remote":                     "origin",
		"default_ticket":             "TASK-0",
		"protected_branches":         []string{"main", "master", "develop", "development"},
		"max_inline_comments":        5,
		"changes_poll_attempts":      5,
		"changes_poll_delay_seconds": 2,
		"llm_timeout_seconds":        180,
		"gitlab_timeout_seconds":     30,
		"ci_config_path":             ".gitlab-ci.yml",
		"context_path":               ".mrpilot/context.md",
		"skip_confirmations":         false,
	}
}
