package recovery_usecase

import (
	"context"
	"fmt"
	"time"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/gateway/command_gateway"
	"pkgdeploy-cli/port/adapter_port"
	"pkgdeploy-cli/port/credential_port"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/registry_port"
	"pkgdeploy-cli/port/transaction_port"
	"pkgdeploy-cli/usecase/platform_usecase"
)

// RollbackEngine undoes published releases. A rollback is its own
// transaction, linked to the deployment it reverses, with registry snapshots
// taken before and after so the operator can audit what actually changed.
type RollbackEngine struct {
	store       transaction_port.TransactionStore
	factory     adapter_port.AdapterFactory
	platforms   *platform_usecase.PlatformRegistry
	credentials credential_port.CredentialResolver
	registry    registry_port.RegistryPort
	commands    *command_gateway.CommandGateway
	logger      logger_port.LoggerPort
}

// NewRollbackEngine creates a rollback engine
func NewRollbackEngine(
	store transaction_port.TransactionStore,
	factory adapter_port.AdapterFactory,
	platforms *platform_usecase.PlatformRegistry,
	credentials credential_port.CredentialResolver,
	registry registry_port.RegistryPort,
	commands *command_gateway.CommandGateway,
	logger logger_port.LoggerPort,
) *RollbackEngine {
	return &RollbackEngine{
		store:       store,
		factory:     factory,
		platforms:   platforms,
		credentials: credentials,
		registry:    registry,
		commands:    commands,
		logger:      logger,
	}
}

// RollbackOptions tunes one rollback run
type RollbackOptions struct {
	// Targets restricts the rollback to a subset of the deployment's
	// published platforms. Empty means all of them.
	Targets []string

	// PreviousVersion overrides the restore point derived from the
	// registry's version history
	PreviousVersion string

	// Confirm permits confirmation-gated methods in automated mode
	Confirm bool

	// KeepStaging excludes the staging targets from an automated rollback
	// of a staged pipeline
	KeepStaging bool

	// StagingTargets names the staging subset, for KeepStaging
	StagingTargets []string
}

// TriggerAutomated opens an automated rollback for a failed deployment.
// It is the hook the deployment pipeline calls on failure.
func (e *RollbackEngine) TriggerAutomated(ctx context.Context, deploymentID string, reason domain.RollbackReason, opts *domain.DeploymentOptions) (*domain.RollbackTransaction, error) {
	rbOpts := &RollbackOptions{}
	if opts != nil {
		rbOpts.KeepStaging = opts.KeepStaging
		rbOpts.StagingTargets = opts.StagingTargets
	}
	return e.Rollback(ctx, deploymentID, reason, domain.RollbackAutomated, rbOpts)
}

// Rollback runs a full rollback of a deployment's published platforms.
// Only failed or completed deployments can be rolled back; an in-progress
// deployment must be cancelled first.
func (e *RollbackEngine) Rollback(ctx context.Context, deploymentID string, reason domain.RollbackReason, mode domain.RollbackMode, opts *RollbackOptions) (*domain.RollbackTransaction, error) {
	if opts == nil {
		opts = &RollbackOptions{}
	}

	deployment, err := e.store.Get(deploymentID)
	if err != nil {
		return nil, err
	}
	switch deployment.Status {
	case domain.StatusFailed, domain.StatusCompleted:
	case domain.StatusRolledBack:
		return nil, domain.NewUsageError(fmt.Sprintf("deployment %s is already rolled back (see %s)",
			deploymentID, deployment.RollbackTransactionID))
	default:
		return nil, domain.NewUsageError(fmt.Sprintf("deployment %s is %s, only failed or completed deployments can be rolled back",
			deploymentID, deployment.Status))
	}

	targets := e.selectTargets(deployment, opts)
	if len(targets) == 0 {
		return nil, domain.NewUsageError(fmt.Sprintf("deployment %s has no published platforms to roll back", deploymentID))
	}

	rb, err := e.store.CreateRollback(deploymentID, reason, mode, targets)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetRollbackLink(deploymentID, rb.ID); err != nil {
		return nil, err
	}
	e.logger.InfoWithContext("rollback started", map[string]interface{}{
		"id":         rb.ID,
		"deployment": deploymentID,
		"reason":     string(reason),
		"mode":       string(mode),
		"targets":    targets,
	})

	rollbackErr := e.run(ctx, rb, deployment, targets, mode, opts)

	final, getErr := e.store.GetRollback(rb.ID)
	if getErr != nil {
		return nil, getErr
	}
	return final, rollbackErr
}

// selectTargets picks the platforms to undo: those the deployment actually
// published, optionally narrowed by the caller and by the keep-staging policy.
// Platforms whose deploy never succeeded have nothing live to undo and are
// not selected.
func (e *RollbackEngine) selectTargets(deployment *domain.DeploymentTransaction, opts *RollbackOptions) []string {
	published := deployment.PublishedPlatforms()

	if len(opts.Targets) > 0 {
		requested := make(map[string]bool, len(opts.Targets))
		for _, t := range opts.Targets {
			requested[t] = true
		}
		var narrowed []string
		for _, t := range published {
			if requested[t] {
				narrowed = append(narrowed, t)
			}
		}
		published = narrowed
	}

	if opts.KeepStaging && deployment.Pipeline == domain.PipelineStaged {
		staging := make(map[string]bool, len(opts.StagingTargets))
		for _, t := range opts.StagingTargets {
			staging[t] = true
		}
		var kept []string
		for _, t := range published {
			if !staging[t] {
				kept = append(kept, t)
			}
		}
		published = kept
	}

	return published
}

// run executes the rollback transaction body: snapshot, per-target undo,
// recovery actions, snapshot again, finalize
func (e *RollbackEngine) run(ctx context.Context, rb *domain.RollbackTransaction, deployment *domain.DeploymentTransaction, targets []string, mode domain.RollbackMode, opts *RollbackOptions) error {
	before := e.snapshot(ctx, deployment.Package, deployment.Version, targets)
	if err := e.store.SetRollbackSnapshot(rb.ID, false, before); err != nil {
		return err
	}

	if err := e.store.AppendRollbackStage(rb.ID, domain.StageRollback, domain.StageStarted); err != nil {
		return err
	}

	allowConfirmation := mode == domain.RollbackManual || opts.Confirm

	var firstErr error
	for _, target := range targets {
		err := e.rollbackOne(ctx, rb, deployment, target, before[target], allowConfirmation, opts.PreviousVersion)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// A rollback where every platform was skipped undid nothing; that is a
	// failure the operator must act on, not a success
	if firstErr == nil {
		current, err := e.store.GetRollback(rb.ID)
		if err != nil {
			return err
		}
		undone := 0
		for _, status := range current.Platforms {
			if status.State == domain.PlatformCompleted {
				undone++
			}
		}
		if undone == 0 {
			firstErr = domain.NewAdapterError("", "rollback", domain.CodeManualOnly,
				"no platform could be rolled back automatically", nil)
		}
	}

	if firstErr != nil {
		e.store.AppendRollbackStage(rb.ID, domain.StageRollback, domain.StageFailed)
	} else {
		e.store.AppendRollbackStage(rb.ID, domain.StageRollback, domain.StageCompleted)
	}

	after := e.snapshot(ctx, deployment.Package, deployment.Version, targets)
	if err := e.store.SetRollbackSnapshot(rb.ID, true, after); err != nil {
		return err
	}

	if firstErr != nil {
		e.store.AppendRollbackError(rb.ID, firstErr.Error())
		if err := e.store.FinalizeRollback(rb.ID, domain.StatusFailed); err != nil {
			return err
		}
		return firstErr
	}

	if err := e.store.FinalizeRollback(rb.ID, domain.StatusCompleted); err != nil {
		return err
	}
	if err := e.store.MarkRolledBack(deployment.ID); err != nil {
		e.logger.WarnWithContext("could not mark deployment rolled back", map[string]interface{}{
			"deployment": deployment.ID,
			"error":      err.Error(),
		})
	}
	e.logger.InfoWithContext("rollback completed", map[string]interface{}{
		"id":         rb.ID,
		"deployment": deployment.ID,
	})
	return nil
}

// rollbackOne undoes a single platform and runs its recovery actions
func (e *RollbackEngine) rollbackOne(ctx context.Context, rb *domain.RollbackTransaction, deployment *domain.DeploymentTransaction, target string, before domain.PlatformSnapshot, allowConfirmation bool, previousOverride string) error {
	desc, err := e.platforms.Get(target)
	if err != nil {
		e.markFailed(rb.ID, target, err)
		return err
	}
	adapter, err := e.factory.AdapterFor(desc)
	if err != nil {
		e.markFailed(rb.ID, target, err)
		return err
	}
	cred, err := e.credentials.Resolve(ctx, desc)
	if err != nil {
		e.markFailed(rb.ID, target, err)
		return err
	}
	if err := adapter.Init(ctx, cred); err != nil {
		e.markFailed(rb.ID, target, err)
		return err
	}

	if err := e.store.UpdateRollbackPlatform(rb.ID, target, domain.StatePatch(domain.PlatformRunning)); err != nil {
		return err
	}

	previous := previousOverride
	if previous == "" {
		previous = restorePoint(before, deployment.Version)
	}

	req := &domain.RollbackRequest{
		Package:           deployment.Package,
		Version:           deployment.Version,
		PreviousVersion:   previous,
		AllowConfirmation: allowConfirmation,
	}
	result, err := adapter.Rollback(ctx, req)
	if err != nil {
		if domain.KindOf(err) == domain.ErrKindRollbackUnsupported {
			e.markSkippedUnsupported(rb.ID, target, err)
			return nil
		}
		e.markFailed(rb.ID, target, err)
		return err
	}

	e.runRecoveryActions(ctx, rb.ID, desc, deployment.Package, deployment.Version, previous)

	now := time.Now().UTC()
	patch := domain.StatePatch(domain.PlatformCompleted)
	patch.CompletedAt = &now
	patch.MethodUsed = &result.MethodUsed
	patch.PreviousVersion = &previous
	if result.AlreadyRolledBack {
		already := "already rolled back"
		patch.MethodUsed = &already
	}
	return e.store.UpdateRollbackPlatform(rb.ID, target, patch)
}

// runRecoveryActions runs the descriptor's post-rollback hooks best-effort.
// A failed hook is recorded but never fails the rollback.
func (e *RollbackEngine) runRecoveryActions(ctx context.Context, rbID string, desc *domain.PlatformDescriptor, pkg, version, previous string) {
	if len(desc.RecoveryActions) == 0 {
		return
	}
	if previous == "" {
		e.store.AppendRollbackError(rbID, fmt.Sprintf("%s: skipping recovery actions, no previous version known", desc.Name))
		return
	}

	e.store.AppendRollbackStage(rbID, domain.StageRecovery, domain.StageStarted)
	vars := map[string]string{
		"package":          pkg,
		"version":          version,
		"previous_version": previous,
		"registry":         desc.RegistryBaseURL,
	}
	failed := false
	for _, action := range desc.RecoveryActions {
		result, err := e.commands.RunTemplate(ctx, "", nil, action.Timeout, action.Command, vars)
		if err != nil || result.ExitCode != 0 {
			failed = true
			detail := "command failed"
			if err != nil {
				detail = err.Error()
			}
			e.store.AppendRollbackError(rbID, fmt.Sprintf("%s: recovery action %s failed: %s", desc.Name, action.Name, detail))
			continue
		}
		e.logger.InfoWithContext("recovery action completed", map[string]interface{}{
			"platform": desc.Name,
			"action":   action.Name,
		})
	}
	if failed {
		e.store.AppendRollbackStage(rbID, domain.StageRecovery, domain.StageFailed)
		return
	}
	e.store.AppendRollbackStage(rbID, domain.StageRecovery, domain.StageCompleted)
}

// snapshot captures the registry view of every target
func (e *RollbackEngine) snapshot(ctx context.Context, pkg, version string, targets []string) map[string]domain.PlatformSnapshot {
	snapshots := make(map[string]domain.PlatformSnapshot, len(targets))
	for _, target := range targets {
		desc, err := e.platforms.Get(target)
		if err != nil {
			snapshots[target] = domain.PlatformSnapshot{Platform: target, Error: err.Error(), CapturedAt: time.Now().UTC()}
			continue
		}
		snapshots[target] = e.registry.Snapshot(ctx, desc, pkg, version)
	}
	return snapshots
}

// Status returns a rollback transaction by id
func (e *RollbackEngine) Status(id string) (*domain.RollbackTransaction, error) {
	return e.store.GetRollback(id)
}

func (e *RollbackEngine) markFailed(rbID, target string, cause error) {
	msg := cause.Error()
	patch := domain.StatePatch(domain.PlatformFailed)
	patch.ErrorMessage = &msg
	if err := e.store.UpdateRollbackPlatform(rbID, target, patch); err != nil {
		e.logger.ErrorWithContext("failed to record rollback failure", map[string]interface{}{
			"id":       rbID,
			"platform": target,
			"error":    err.Error(),
		})
	}
	e.store.AppendRollbackError(rbID, fmt.Sprintf("%s: %s", target, msg))
}

// markSkippedUnsupported records a platform whose registry cannot undo a
// release. Unsupported platforms do not fail the rollback; they are
// surfaced to the operator instead.
func (e *RollbackEngine) markSkippedUnsupported(rbID, target string, cause error) {
	msg := cause.Error()
	patch := domain.StatePatch(domain.PlatformSkipped)
	patch.ErrorMessage = &msg
	e.store.UpdateRollbackPlatform(rbID, target, patch)
	e.store.AppendRollbackError(rbID, fmt.Sprintf("%s: manual intervention required: %s", target, msg))
	e.logger.WarnWithContext("platform cannot be rolled back automatically", map[string]interface{}{
		"platform": target,
		"detail":   msg,
	})
}

// restorePoint derives the version to restore from the pre-rollback
// snapshot: the newest version that is not the one being removed
func restorePoint(snapshot domain.PlatformSnapshot, removing string) string {
	for i := len(snapshot.Versions) - 1; i >= 0; i-- {
		if snapshot.Versions[i] != removing {
			return snapshot.Versions[i]
		}
	}
	return ""
}
