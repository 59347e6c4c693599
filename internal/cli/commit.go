package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/devflowkit/mrpilot/internal/workflow"
)

var commitTicket string

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Stage everything and commit with a generated message",
	Long: `Stage all changes and commit them with a message generated from the staged
diff. The message is normalized to the conventional commit grammar, or to the
commit pattern found in the project's CI configuration. Commits on protected
branches are refused; run "mrpilot branch" first.`,
	Example: `  mrpilot commit --ticket ABC-123`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		o, err := buildOrchestrator()
		if err != nil {
			return err
		}
		run := workflow.NewRun()
		if err := o.Prepare(cmd.Context(), run, workflow.RunOptions{Ticket: commitTicket}); err != nil {
			return err
		}
		if err := o.EnsureBranch(cmd.Context(), run); err != nil {
			if errors.Is(err, workflow.ErrCancelled) || errors.Is(err, workflow.ErrNoChanges) {
				return nil
			}
			return err
		}
		err = o.CommitChanges(cmd.Context(), run)
		if errors.Is(err, workflow.ErrCancelled) || errors.Is(err, workflow.ErrNoChanges) {
			return nil
		}
		return err
	},
}

func init() {
	commitCmd.GroupID = GroupStages
	commitCmd.Flags().StringVarP(&commitTicket, "ticket", "t", "", "Issue reference, e.g. ABC-123")
	rootCmd.AddCommand(commitCmd)
}
