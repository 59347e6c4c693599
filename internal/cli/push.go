package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/devflowkit/mrpilot/internal/workflow"
)

var pushTarget string

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the current branch and ensure a merge request",
	Long: `Push the current branch and ensure an open merge request exists for it.
When no merge request exists, the target branch is selected from the branch
name, the repository's branch layout, and recent merge request history.`,
	Example: `  mrpilot push
  mrpilot push --target develop`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		o, err := buildOrchestrator()
		if err != nil {
			return err
		}
		run := workflow.NewRun()
		if err := o.Prepare(cmd.Context(), run, workflow.RunOptions{}); err != nil {
			return err
		}
		if err := o.PushBranch(cmd.Context(), run); err != nil {
			return err
		}
		err = o.EnsureMergeRequest(cmd.Context(), run, workflow.RunOptions{TargetBranch: pushTarget})
		if errors.Is(err, workflow.ErrCancelled) {
			return nil
		}
		return err
	},
}

func init() {
	pushCmd.GroupID = GroupStages
	pushCmd.Flags().StringVar(&pushTarget, "target", "", "Target branch override")
	rootCmd.AddCommand(pushCmd)
}
