package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mrpilot version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mrpilot %s\n", Version)
	},
}

func init() {
	versionCmd.GroupID = GroupConfiguration
	rootCmd.AddCommand(versionCmd)
}
