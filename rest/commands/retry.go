package commands

import (
	"github.com/spf13/cobra"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/utils/colors"
)

// NewRetryCommand creates the retry command
func NewRetryCommand(provider ContainerProvider) *cobra.Command {
	var workDir string
	var targets string

	cmd := &cobra.Command{
		Use:     "retry <transaction-id>",
		Aliases: []string{"deploy-retry"},
		Short:   "Re-run the platforms that did not complete in a failed deployment",
		Long: `Open a fresh transaction covering only the platforms that failed or
were skipped in an earlier deployment. Platforms that already published
are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := provider()

			opts := domain.NewDeploymentOptions()
			if c.Config.Concurrency > 0 {
				opts.Concurrency = c.Config.Concurrency
			}
			if c.Config.VerifyCap > 0 {
				opts.VerifyCap = c.Config.VerifyCap
			}
			opts.StagingTargets = c.Config.StagingTargets

			tx, err := c.Deployment.Retry(cmd.Context(), args[0], splitTargets(targets), workDir, opts)
			if tx != nil {
				printDeploymentSummary(tx)
			}
			if err != nil {
				colors.PrintError("retry failed: " + err.Error())
				return err
			}
			colors.PrintSuccess("retry completed")
			return nil
		},
	}

	cmd.Flags().StringVarP(&workDir, "dir", "C", ".", "Package working tree")
	cmd.Flags().StringVarP(&targets, "platforms", "p", "", "Only retry these platforms (default: all that did not complete)")
	return cmd
}
