// Package cli provides the Cobra-based commands for the mrpilot tool.
// It defines the full workflow command (flow), individual stages (branch,
// commit, push, review), and configuration management (configure).
package cli

import (
	"github.com/spf13/cobra"
)

// Command group IDs for organizing help output.
const (
	GroupWorkflows     = "workflows"
	GroupStages        = "stages"
	GroupConfiguration = "configuration"
)

var (
	flagConfig string
	flagYes    bool
)

var rootCmd = &cobra.Command{
	Use:   "mrpilot",
	Short: "GitLab merge request automation",
	Long: `mrpilot automates the branch, commit, push, merge request, and review
workflow on GitLab. Branch names and commit messages are generated from your
changes and normalized against the naming rules found in the project's CI
configuration.`,
	Example: `  # Full workflow: branch, commit, push, merge request, review
  mrpilot flow --ticket ABC-123

  # Individual stages
  mrpilot branch --ticket ABC-123
  mrpilot commit
  mrpilot push
  mrpilot review

  # Store credentials
  mrpilot configure`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: GroupWorkflows, Title: "Workflows:"})
	rootCmd.AddGroup(&cobra.Group{ID: GroupStages, Title: "Stages:"})
	rootCmd.AddGroup(&cobra.Group{ID: GroupConfiguration, Title: "Configuration:"})
	rootCmd.SetHelpCommandGroupID(GroupConfiguration)
	rootCmd.SetCompletionCommandGroupID(GroupConfiguration)

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", ".mrpilot/config.json", "Path to local config file")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "Skip confirmation prompts")
}
