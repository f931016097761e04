package rest

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pkgdeploy-cli/infrastructure/config"
	"pkgdeploy-cli/infrastructure/container"
	"pkgdeploy-cli/rest/commands"
)

// CLI represents the command line interface
type CLI struct {
	rootCmd   *cobra.Command
	container *container.Container

	configFile string
	verbose    bool
	noColor    bool
}

// NewCLI creates a new CLI instance
func NewCLI() *CLI {
	cli := &CLI{}

	cli.rootCmd = &cobra.Command{
		Use:   "pkgdeploy",
		Short: "Multi-platform package deployment orchestrator",
		Long: `pkgdeploy publishes package releases to multiple registries (npm, PyPI,
crates.io, Docker Hub and others) under durable transaction records, with
verification against each registry's public metadata API and rollback when
a release has to come back out.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.setupGlobalFlags()
	cli.setupCommands()

	return cli
}

// Execute runs the CLI
func (c *CLI) Execute(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

// setupCommands registers all CLI commands
func (c *CLI) setupCommands() {
	provider := func() *container.Container { return c.container }

	c.rootCmd.AddCommand(commands.NewDeployCommand(provider))
	c.rootCmd.AddCommand(commands.NewStatusCommand(provider))
	c.rootCmd.AddCommand(commands.NewHistoryCommand(provider))
	c.rootCmd.AddCommand(commands.NewCancelCommand(provider))
	c.rootCmd.AddCommand(commands.NewRetryCommand(provider))
	c.rootCmd.AddCommand(commands.NewRollbackCommand(provider))
	c.rootCmd.AddCommand(commands.NewRollbackStatusCommand(provider))
	c.rootCmd.AddCommand(commands.NewRollbackVerifyCommand(provider))
	c.rootCmd.AddCommand(commands.NewPlatformsCommand(provider))

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pkgdeploy version %s\n", c.rootCmd.Version)
		},
	}
	c.rootCmd.AddCommand(versionCmd)
}

// setupGlobalFlags sets up global flags and builds the container once the
// flags are known
func (c *CLI) setupGlobalFlags() {
	c.rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "Config file (default: ./pkgdeploy.yaml)")
	c.rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	c.rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	c.rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(c.configFile)
		if err != nil {
			return err
		}
		if c.verbose {
			cfg.LogLevel = "debug"
		}
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			cfg.NoColor = true
		}

		built, err := container.Build(cfg)
		if err != nil {
			return err
		}
		c.container = built
		return nil
	}
}

// SetArgs sets the command line arguments (useful for testing)
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output writer (useful for testing)
func (c *CLI) SetOutput(output *os.File) {
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(output)
}
