package commands

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/utils/colors"
)

// NewPlatformsCommand creates the platforms command
func NewPlatformsCommand(provider ContainerProvider) *cobra.Command {
	var checkHealth bool
	var validate string

	cmd := &cobra.Command{
		Use:   "platforms",
		Short: "List the configured platform descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := provider()

			if validate != "" {
				if err := c.Platforms.ValidateDescriptor(validate); err != nil {
					colors.PrintError("descriptor invalid: " + err.Error())
					return err
				}
				colors.PrintSuccess("descriptor " + validate + " is valid")
				return nil
			}

			descriptors := c.Platforms.List()

			var health map[string]*domain.HealthStatus
			if checkHealth {
				health = make(map[string]*domain.HealthStatus, len(descriptors))
				statuses, err := c.Platforms.HealthCheck(cmd.Context(), c.Platforms.Names())
				if err != nil {
					return err
				}
				for _, status := range statuses {
					health[status.Platform] = status
				}
			}

			table := tablewriter.NewWriter(os.Stdout)
			if checkHealth {
				table.Header("Name", "Ecosystem", "Tool", "Auth", "Rollback", "Health")
			} else {
				table.Header("Name", "Ecosystem", "Tool", "Auth", "Rollback")
			}
			for _, desc := range descriptors {
				row := []string{
					desc.Name,
					desc.Ecosystem,
					desc.Tool,
					string(desc.AuthScheme),
					string(desc.RollbackCapability),
				}
				if checkHealth {
					row = append(row, healthColor(health[desc.Name]))
				}
				table.Append(row)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkHealth, "health", false, "Probe each registry's endpoint")
	cmd.Flags().StringVar(&validate, "validate", "", "Re-read and validate one platform's descriptor file")
	return cmd
}

func healthColor(status *domain.HealthStatus) string {
	if status == nil {
		return ""
	}
	switch status.State {
	case domain.HealthOK:
		return colors.Green(string(status.State))
	case domain.HealthDegraded:
		return colors.Yellow(string(status.State))
	default:
		return colors.Red(string(status.State))
	}
}
