package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/infrastructure/container"
	"pkgdeploy-cli/utils/colors"
)

// ContainerProvider hands a command the wired dependency container. The
// container is built once by the root command after global flags are parsed.
type ContainerProvider func() *container.Container

// statusColor renders a transaction status with the conventional color
func statusColor(status domain.TransactionStatus) string {
	switch status {
	case domain.StatusCompleted:
		return colors.Green(string(status))
	case domain.StatusFailed:
		return colors.Red(string(status))
	case domain.StatusRolledBack:
		return colors.YellowBold(string(status))
	case domain.StatusCancelled:
		return colors.Yellow(string(status))
	default:
		return colors.Cyan(string(status))
	}
}

// platformStateColor renders a per-platform state with the conventional color
func platformStateColor(state domain.PlatformState) string {
	switch state {
	case domain.PlatformCompleted:
		return colors.Green(string(state))
	case domain.PlatformFailed:
		return colors.Red(string(state))
	case domain.PlatformSkipped:
		return colors.Yellow(string(state))
	default:
		return colors.Cyan(string(state))
	}
}

// printDeploymentSummary renders one transaction's platform table
func printDeploymentSummary(tx *domain.DeploymentTransaction) {
	fmt.Printf("\n%s  %s@%s  [%s pipeline]  %s\n",
		tx.ID, tx.Package, tx.Version, tx.Pipeline, statusColor(tx.Status))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Platform", "State", "Completed At", "Detail")
	for _, target := range tx.Targets {
		status := tx.Platforms[target]
		completedAt := ""
		if status.CompletedAt != nil {
			completedAt = status.CompletedAt.Format(time.RFC3339)
		}
		detail := status.RegistryURL
		if status.ErrorMessage != "" {
			detail = status.ErrorMessage
		}
		table.Append([]string{target, platformStateColor(status.State), completedAt, detail})
	}
	table.Render()

	if tx.RollbackTransactionID != "" {
		colors.PrintWarning(fmt.Sprintf("rollback transaction: %s", tx.RollbackTransactionID))
	}
}

// printRollbackSummary renders one rollback transaction's platform table
func printRollbackSummary(rb *domain.RollbackTransaction) {
	fmt.Printf("\n%s  reverses %s  (%s, %s mode)  %s\n",
		rb.ID, rb.DeploymentID, rb.Reason, rb.Mode, statusColor(rb.Status))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Platform", "State", "Method", "Restored To", "Detail")
	for _, target := range rb.Targets {
		status := rb.Platforms[target]
		table.Append([]string{
			target,
			platformStateColor(status.State),
			status.MethodUsed,
			status.PreviousVersion,
			status.ErrorMessage,
		})
	}
	table.Render()
}

// splitTargets parses a comma-separated platform list
func splitTargets(raw string) []string {
	if raw == "" {
		return nil
	}
	var targets []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			targets = append(targets, part)
		}
	}
	return targets
}
