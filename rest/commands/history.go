package commands

import (
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/port/transaction_port"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand(provider ContainerProvider) *cobra.Command {
	var limit int
	var pkg string
	var status string

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"deploy-history"},
		Short:   "List recent deployment transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := provider()

			filter := transaction_port.TransactionFilter{
				Package: pkg,
				Status:  domain.TransactionStatus(status),
			}
			transactions, err := c.Deployment.History(limit, filter)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("ID", "Package", "Version", "Pipeline", "Status", "Started")
			for _, tx := range transactions {
				table.Append([]string{
					tx.ID,
					tx.Package,
					tx.Version,
					string(tx.Pipeline),
					statusColor(tx.Status),
					tx.StartedAt.Format(time.RFC3339),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of transactions to list")
	cmd.Flags().StringVar(&pkg, "package", "", "Only show transactions for this package")
	cmd.Flags().StringVar(&status, "status", "", "Only show transactions with this status")
	return cmd
}
