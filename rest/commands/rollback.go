package commands

import (
	"github.com/spf13/cobra"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/usecase/recovery_usecase"
	"pkgdeploy-cli/utils/colors"
)

// RollbackCommand represents the rollback command
type RollbackCommand struct {
	provider ContainerProvider

	targets         string
	previousVersion string
	mode            string
	confirm         bool
	keepStaging     bool
}

// NewRollbackCommand creates a new rollback command
func NewRollbackCommand(provider ContainerProvider) *cobra.Command {
	rollbackCmd := &RollbackCommand{provider: provider}

	cmd := &cobra.Command{
		Use:   "rollback <transaction-id>",
		Short: "Roll back the published platforms of a deployment",
		Long: `Roll back the published platforms of a failed or completed deployment.

A rollback is its own transaction, linked to the deployment it reverses.
Registry state is snapshotted before and after so the record shows what
actually changed. Platforms whose registry cannot undo a release are
reported for manual intervention instead of failing the run.

Manual rollbacks may use confirmation-gated methods (npm deprecate,
pypi yank); pass --confirm to allow them from scripts.`,
		Args: cobra.ExactArgs(1),
		RunE: rollbackCmd.run,
	}

	cmd.Flags().StringVarP(&rollbackCmd.targets, "platforms", "p", "", "Only roll back these platforms (default: all published)")
	cmd.Flags().StringVar(&rollbackCmd.previousVersion, "previous-version", "", "Override the restore point derived from the registry history")
	cmd.Flags().StringVar(&rollbackCmd.mode, "mode", "manual", "Rollback mode: automated or manual")
	cmd.Flags().BoolVar(&rollbackCmd.confirm, "confirm", false, "Permit confirmation-gated rollback methods")
	cmd.Flags().BoolVar(&rollbackCmd.keepStaging, "keep-staging", false, "Leave staging targets of a staged pipeline published")
	return cmd
}

func (r *RollbackCommand) run(cmd *cobra.Command, args []string) error {
	c := r.provider()

	mode, err := domain.ParseRollbackMode(r.mode)
	if err != nil {
		return err
	}

	opts := &recovery_usecase.RollbackOptions{
		Targets:         splitTargets(r.targets),
		PreviousVersion: r.previousVersion,
		Confirm:         r.confirm,
		KeepStaging:     r.keepStaging,
		StagingTargets:  c.Config.StagingTargets,
	}

	rb, err := c.Rollback.Rollback(cmd.Context(), args[0], domain.ReasonManualTrigger, mode, opts)
	if rb != nil {
		printRollbackSummary(rb)
	}
	if err != nil {
		colors.PrintError("rollback failed: " + err.Error())
		return err
	}
	colors.PrintSuccess("rollback completed")
	return nil
}
