package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/devflowkit/mrpilot/internal/workflow"
)

var (
	flowTicket     string
	flowTarget     string
	flowSkipReview bool
)

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Run the full workflow: branch, commit, push, merge request, review",
	Long: `Run the complete pipeline. On a protected branch a new branch is created
with a generated name; changes are committed with a generated message, pushed,
and a merge request is opened against the selected target branch. The merge
request is then reviewed and the findings are posted as comments.`,
	Example: `  mrpilot flow --ticket ABC-123
  mrpilot flow --target develop --skip-review`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		o, err := buildOrchestrator()
		if err != nil {
			return err
		}
		_, err = o.Execute(cmd.Context(), workflow.RunOptions{
			Ticket:       flowTicket,
			TargetBranch: flowTarget,
			SkipReview:   flowSkipReview,
		})
		if errors.Is(err, workflow.ErrCancelled) {
			return nil
		}
		return err
	},
}

func init() {
	flowCmd.GroupID = GroupWorkflows
	flowCmd.Flags().StringVarP(&flowTicket, "ticket", "t", "", "Issue reference, e.g. ABC-123")
	flowCmd.Flags().StringVar(&flowTarget, "target", "", "Target branch override")
	flowCmd.Flags().BoolVar(&flowSkipReview, "skip-review", false, "Stop after the merge request exists")
	rootCmd.AddCommand(flowCmd)
}
