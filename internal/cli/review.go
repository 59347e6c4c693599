package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/devflowkit/mrpilot/internal/workflow"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review the merge request for the current branch",
	Long: `Review the open merge request for the current branch and post the findings:
a summary note with the overall assessment and score, plus inline comments on
the most severe issues. Without an open merge request one is created first.`,
	Example: `  mrpilot review`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		o, err := buildOrchestrator()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		run := workflow.NewRun()
		if err := o.Prepare(ctx, run, workflow.RunOptions{}); err != nil {
			return err
		}
		current, err := o.Git.CurrentBranch()
		if err != nil {
			return err
		}
		run.Branch = current
		if err := o.EnsureMergeRequest(ctx, run, workflow.RunOptions{}); err != nil {
			if errors.Is(err, workflow.ErrCancelled) {
				return nil
			}
			return err
		}
		return o.ReviewMergeRequest(ctx, run)
	},
}

func init() {
	reviewCmd.GroupID = GroupStages
	rootCmd.AddCommand(reviewCmd)
}
