package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/devflowkit/mrpilot/internal/workflow"
)

var branchTicket string

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Create a branch with a generated name",
	Long: `Generate a branch name from the uncommitted changes and create the branch.
On a branch that is not protected this is a no-op: the current branch is kept.`,
	Example: `  mrpilot branch --ticket ABC-123`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		o, err := buildOrchestrator()
		if err != nil {
			return err
		}
		run := workflow.NewRun()
		if err := o.Prepare(cmd.Context(), run, workflow.RunOptions{Ticket: branchTicket}); err != nil {
			return err
		}
		err = o.EnsureBranch(cmd.Context(), run)
		if errors.Is(err, workflow.ErrCancelled) || errors.Is(err, workflow.ErrNoChanges) {
			return nil
		}
		return err
	},
}

func init() {
	branchCmd.GroupID = GroupStages
	branchCmd.Flags().StringVarP(&branchTicket, "ticket", "t", "", "Issue reference, e.g. ABC-123")
	rootCmd.AddCommand(branchCmd)
}
