package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewRollbackStatusCommand creates the rollback-status command
func NewRollbackStatusCommand(provider ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback-status <rollback-id>",
		Short: "Show the full record of a rollback transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := provider()
			rb, err := c.Rollback.Status(args[0])
			if err != nil {
				return err
			}

			printRollbackSummary(rb)

			if len(rb.StateBefore) > 0 {
				fmt.Println("\nRegistry state before:")
				for _, target := range rb.Targets {
					snap := rb.StateBefore[target]
					fmt.Printf("  %-12s latest=%s target_present=%t\n", target, snap.LatestVersion, snap.TargetPresent)
				}
			}
			if len(rb.StateAfter) > 0 {
				fmt.Println("\nRegistry state after:")
				for _, target := range rb.Targets {
					snap := rb.StateAfter[target]
					fmt.Printf("  %-12s latest=%s target_present=%t\n", target, snap.LatestVersion, snap.TargetPresent)
				}
			}

			fmt.Println("\nStage log:")
			for _, entry := range rb.Stages {
				fmt.Printf("  %s  %-12s %s\n", entry.Timestamp.Format(time.RFC3339), entry.Stage, entry.State)
			}
			if len(rb.Errors) > 0 {
				fmt.Println("\nErrors:")
				for _, msg := range rb.Errors {
					fmt.Printf("  - %s\n", msg)
				}
			}
			return nil
		},
	}
}
