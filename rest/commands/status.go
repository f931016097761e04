package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the deploy-status command
func NewStatusCommand(provider ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "status <transaction-id>",
		Aliases: []string{"deploy-status"},
		Short:   "Show the full record of a deployment transaction",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := provider()
			tx, err := c.Deployment.Status(args[0])
			if err != nil {
				return err
			}

			printDeploymentSummary(tx)

			fmt.Println("\nStage log:")
			for _, entry := range tx.Stages {
				fmt.Printf("  %s  %-12s %s\n", entry.Timestamp.Format(time.RFC3339), entry.Stage, entry.State)
			}
			if len(tx.Errors) > 0 {
				fmt.Println("\nErrors:")
				for _, msg := range tx.Errors {
					fmt.Printf("  - %s\n", msg)
				}
			}
			return nil
		},
	}
}
