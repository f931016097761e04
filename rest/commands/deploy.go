package commands

import (
	"time"

	"github.com/spf13/cobra"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/infrastructure/container"
	"pkgdeploy-cli/utils/colors"
)

// DeployCommand represents the deploy command
type DeployCommand struct {
	provider ContainerProvider

	platforms    string
	pipeline     string
	version      string
	workDir      string
	staging      string
	dryRun       bool
	failFast     bool
	strictHealth bool
	noRollback   bool
	keepStaging  bool
	concurrency  int
	verifyCap    time.Duration
}

// NewDeployCommand creates a new deploy command
func NewDeployCommand(provider ContainerProvider) *cobra.Command {
	deployCmd := &DeployCommand{provider: provider}

	cmd := &cobra.Command{
		Use:   "deploy <package>",
		Short: "Deploy a package release to one or more registries",
		Long: `Deploy a package release to one or more registries under a single
durable transaction.

The pipeline validates every target before any platform deploys, builds all
artifacts up front, publishes per the chosen topology and verifies each
release against the registry's public metadata API. On failure, platforms
that already published are rolled back automatically unless disabled.

Topologies:
  standard  deploy targets one at a time, stop on first failure
  parallel  deploy all targets concurrently
  staged    deploy the staging subset first, gate production on its verify

Examples:
  # Publish to npm and PyPI in parallel
  pkgdeploy deploy my-lib --platforms npm,pypi --pipeline parallel

  # Staged rollout with npm as the canary
  pkgdeploy deploy my-lib --platforms npm,cargo,pypi --pipeline staged --staging npm

  # Preview without publishing
  pkgdeploy deploy my-lib --platforms npm --version 1.4.0 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: deployCmd.run,
	}

	cmd.Flags().StringVarP(&deployCmd.platforms, "platforms", "p", "", "Comma-separated target platforms (required)")
	cmd.Flags().StringVar(&deployCmd.pipeline, "pipeline", "standard", "Deployment topology: standard, parallel, or staged")
	cmd.Flags().StringVar(&deployCmd.version, "version", "", "Version to publish (default: read from the manifest)")
	cmd.Flags().StringVarP(&deployCmd.workDir, "dir", "C", ".", "Package working tree")
	cmd.Flags().StringVar(&deployCmd.staging, "staging", "", "Staging subset for the staged pipeline")
	cmd.Flags().BoolVarP(&deployCmd.dryRun, "dry-run", "d", false, "Validate and plan without publishing")
	cmd.Flags().BoolVar(&deployCmd.failFast, "fail-fast", false, "Cancel remaining parallel targets on first failure")
	cmd.Flags().BoolVar(&deployCmd.strictHealth, "strict-health", false, "Treat a down registry as a blocking validation failure")
	cmd.Flags().BoolVar(&deployCmd.noRollback, "no-auto-rollback", false, "Do not roll back published platforms on failure")
	cmd.Flags().BoolVar(&deployCmd.keepStaging, "keep-staging", false, "Leave staging targets published when an automated rollback runs")
	cmd.Flags().IntVar(&deployCmd.concurrency, "concurrency", 0, "Maximum concurrent platform deploys (default from config)")
	cmd.Flags().DurationVar(&deployCmd.verifyCap, "verify-cap", 0, "Maximum time to wait for registry propagation (default from config)")
	cmd.MarkFlagRequired("platforms")

	return cmd
}

func (d *DeployCommand) run(cmd *cobra.Command, args []string) error {
	c := d.provider()

	pipeline, err := domain.ParsePipelineType(d.pipeline)
	if err != nil {
		return err
	}

	req := &domain.DeployRequest{
		Package:  args[0],
		Version:  d.version,
		Pipeline: pipeline,
		Targets:  splitTargets(d.platforms),
	}

	opts := d.options(c)
	colors.PrintInfo("starting deployment of " + req.Package)

	tx, err := c.Deployment.Deploy(cmd.Context(), req, d.workDir, opts)
	if tx != nil {
		printDeploymentSummary(tx)
	}
	if err != nil {
		colors.PrintError("deployment failed: " + err.Error())
		return err
	}
	if d.dryRun {
		colors.PrintSuccess("dry run complete, nothing published")
		return nil
	}
	colors.PrintSuccess("deployment completed")
	return nil
}

// options merges command flags over the configured defaults
func (d *DeployCommand) options(c *container.Container) *domain.DeploymentOptions {
	opts := domain.NewDeploymentOptions()
	opts.DryRun = d.dryRun
	opts.FailFast = d.failFast
	opts.StrictHealth = d.strictHealth
	opts.AutoRollback = !d.noRollback
	opts.KeepStaging = d.keepStaging
	if d.concurrency > 0 {
		opts.Concurrency = d.concurrency
	} else if c.Config.Concurrency > 0 {
		opts.Concurrency = c.Config.Concurrency
	}
	if d.verifyCap > 0 {
		opts.VerifyCap = d.verifyCap
	} else if c.Config.VerifyCap > 0 {
		opts.VerifyCap = c.Config.VerifyCap
	}
	if staging := splitTargets(d.staging); len(staging) > 0 {
		opts.StagingTargets = staging
	} else {
		opts.StagingTargets = c.Config.StagingTargets
	}
	return opts
}
