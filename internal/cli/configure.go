package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devflowkit/mrpilot/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store credentials and backend settings",
	Long: `Interactively collect the GitLab URL, the GitLab token, and the model
backend settings, and store them in the global config file. Tokens are read
without echo and written with user-only file permissions.`,
	Example: `  mrpilot configure`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runConfigure()
	},
}

func runConfigure() error {
	values := make(map[string]any)

	var gitlabURL string
	if err := survey.AskOne(&survey.Input{
		Message: "GitLab URL:",
		Default: "https://gitlab.com",
	}, &gitlabURL); err != nil {
		return err
	}
	values["gitlab_url"] = strings.TrimRight(gitlabURL, "/")

	token, err := readSecret("GitLab token: ")
	if err != nil {
		return err
	}
	if token != "" {
		values["gitlab_token"] = token
	}

	var model string
	if err := survey.AskOne(&survey.Input{
		Message: "Model name:",
		Default: config.GetDefaults()["llm_model"].(string),
	}, &model); err != nil {
		return err
	}
	values["llm_model"] = model

	var baseURL string
	if err := survey.AskOne(&survey.Input{
		Message: "Model API base URL (empty for the default):",
	}, &baseURL); err != nil {
		return err
	}
	if baseURL != "" {
		values["llm_base_url"] = baseURL
	}

	apiKey, err := readSecret("Model API key: ")
	if err != nil {
		return err
	}
	if apiKey != "" {
		values["llm_api_key"] = apiKey
	}

	if err := config.Save("", values); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", config.GlobalPath())
	return nil
}

// readSecret reads a line from the terminal without echo. An empty answer
// keeps the currently stored value.
func readSecret(promptText string) (string, error) {
	fmt.Print(promptText)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	configureCmd.GroupID = GroupConfiguration
	rootCmd.AddCommand(configureCmd)
}
