package commands

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"pkgdeploy-cli/utils/colors"
)

// NewRollbackVerifyCommand creates the rollback-verify command
func NewRollbackVerifyCommand(provider ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback-verify <rollback-id>",
		Short: "Check what a rollback actually changed on each registry",
		Long: `Re-query each attempted platform's public metadata API and report
whether the rolled-back version is gone or yanked. The post-rollback
snapshot on the transaction record is refreshed with what was found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := provider()
			outcomes, err := c.Rollback.VerifyRollback(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Platform", "Reverted", "Detail")
			allReverted := true
			for _, outcome := range outcomes {
				reverted := colors.Red("no")
				if outcome.Reverted {
					reverted = colors.Green("yes")
				} else {
					allReverted = false
				}
				table.Append([]string{outcome.Platform, reverted, outcome.Detail})
			}
			table.Render()

			if allReverted {
				colors.PrintSuccess("all attempted platforms are reverted")
			} else {
				colors.PrintWarning("some platforms still serve the rolled-back version")
			}
			return nil
		},
	}
}
