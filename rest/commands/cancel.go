package commands

import (
	"github.com/spf13/cobra"

	"pkgdeploy-cli/utils/colors"
)

// NewCancelCommand creates the cancel command
func NewCancelCommand(provider ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "cancel <transaction-id>",
		Aliases: []string{"deploy-cancel"},
		Short:   "Request cancellation of an in-progress deployment",
		Long: `Request cooperative cancellation of an in-progress deployment.

A platform deploy that has already started runs to completion so the
registry is never left mid-publish; targets that have not started are
skipped and the transaction ends as cancelled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := provider()
			if err := c.Deployment.Cancel(args[0]); err != nil {
				return err
			}
			colors.PrintWarning("cancellation requested for " + args[0])
			return nil
		},
	}
}
