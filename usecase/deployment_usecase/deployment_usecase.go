package deployment_usecase

import (
	"context"
	"fmt"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/notification_port"
	"pkgdeploy-cli/port/transaction_port"
)

// RollbackTrigger is the hook the deployment flow uses to open an automated
// rollback when a failed transaction left platforms published
type RollbackTrigger interface {
	TriggerAutomated(ctx context.Context, deploymentID string, reason domain.RollbackReason, opts *domain.DeploymentOptions) (*domain.RollbackTransaction, error)
}

// DeploymentUsecase is the entry point for deployment operations
type DeploymentUsecase struct {
	store    transaction_port.TransactionStore
	executor *PipelineExecutor
	rollback RollbackTrigger
	notifier notification_port.NotificationPort
	cancels  *CancelRegistry
	logger   logger_port.LoggerPort
}

// NewDeploymentUsecase creates a deployment usecase
func NewDeploymentUsecase(
	store transaction_port.TransactionStore,
	executor *PipelineExecutor,
	rollback RollbackTrigger,
	notifier notification_port.NotificationPort,
	cancels *CancelRegistry,
	logger logger_port.LoggerPort,
) *DeploymentUsecase {
	return &DeploymentUsecase{
		store:    store,
		executor: executor,
		rollback: rollback,
		notifier: notifier,
		cancels:  cancels,
		logger:   logger,
	}
}

// Deploy opens a transaction and runs the full pipeline. On failure with
// auto-rollback enabled, platforms that completed are rolled back under the
// same flow before the call returns.
func (u *DeploymentUsecase) Deploy(ctx context.Context, req *domain.DeployRequest, workTree string, opts *domain.DeploymentOptions) (*domain.DeploymentTransaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	tx, err := u.store.Create(req)
	if err != nil {
		return nil, err
	}
	u.logger.InfoWithContext("deployment started", map[string]interface{}{
		"id":       tx.ID,
		"package":  tx.Package,
		"pipeline": string(tx.Pipeline),
		"targets":  len(tx.Targets),
	})

	execErr := u.executor.Execute(ctx, tx, workTree, opts)

	final, getErr := u.store.Get(tx.ID)
	if getErr != nil {
		return nil, getErr
	}

	if execErr != nil && u.shouldAutoRollback(final, opts) {
		final = u.runAutoRollback(ctx, final, opts)
	}

	u.notifyTerminal(ctx, final)
	return final, execErr
}

// shouldAutoRollback decides whether a failed deployment triggers an
// automated rollback: only when at least one platform actually published
func (u *DeploymentUsecase) shouldAutoRollback(tx *domain.DeploymentTransaction, opts *domain.DeploymentOptions) bool {
	return opts.AutoRollback &&
		u.rollback != nil &&
		tx.Status == domain.StatusFailed &&
		len(tx.PublishedPlatforms()) > 0
}

// runAutoRollback opens and runs the automated rollback, then reloads the
// deployment so the caller sees the rolled_back status and back-link
func (u *DeploymentUsecase) runAutoRollback(ctx context.Context, tx *domain.DeploymentTransaction, opts *domain.DeploymentOptions) *domain.DeploymentTransaction {
	reason := domain.ReasonStageFailed
	if tx.StageFailed(domain.StageVerify) {
		reason = domain.ReasonVerificationFailed
	}

	u.logger.WarnWithContext("deployment failed with published platforms, rolling back", map[string]interface{}{
		"id":        tx.ID,
		"published": tx.PublishedPlatforms(),
		"reason":    string(reason),
	})

	rb, err := u.rollback.TriggerAutomated(ctx, tx.ID, reason, opts)
	if err != nil {
		u.logger.ErrorWithContext("automated rollback failed", map[string]interface{}{
			"id":    tx.ID,
			"error": err.Error(),
		})
		u.store.AppendLog(tx.ID, fmt.Sprintf("automated rollback failed: %s", err))
	} else if rb != nil {
		u.notifyRollback(ctx, rb)
	}

	reloaded, getErr := u.store.Get(tx.ID)
	if getErr != nil {
		return tx
	}
	return reloaded
}

// Status returns a deployment transaction by id
func (u *DeploymentUsecase) Status(id string) (*domain.DeploymentTransaction, error) {
	return u.store.Get(id)
}

// History returns the most recent deployments matching the filter
func (u *DeploymentUsecase) History(n int, filter transaction_port.TransactionFilter) ([]*domain.DeploymentTransaction, error) {
	if n <= 0 {
		n = 20
	}
	return u.store.ListRecent(n, filter)
}

// Cancel requests cooperative cancellation of an in-progress deployment.
// A platform deploy that already started runs to completion; targets that
// have not started are skipped.
func (u *DeploymentUsecase) Cancel(id string) error {
	tx, err := u.store.Get(id)
	if err != nil {
		return err
	}
	if tx.Status.IsTerminal() {
		return domain.NewUsageError(fmt.Sprintf("deployment %s is already %s", id, tx.Status))
	}

	u.cancels.RequestCancel(id)
	u.store.AppendLog(id, "cancellation requested")
	u.logger.InfoWithContext("cancellation requested", map[string]interface{}{"id": id})
	return nil
}

// Retry opens a fresh transaction covering only the platforms that did not
// complete in a failed deployment, optionally narrowed to the given targets
func (u *DeploymentUsecase) Retry(ctx context.Context, id string, targets []string, workTree string, opts *domain.DeploymentOptions) (*domain.DeploymentTransaction, error) {
	prev, err := u.store.Get(id)
	if err != nil {
		return nil, err
	}
	if prev.Status != domain.StatusFailed {
		return nil, domain.NewUsageError(fmt.Sprintf("deployment %s is %s, only failed deployments can be retried", id, prev.Status))
	}

	requested := make(map[string]bool, len(targets))
	for _, target := range targets {
		requested[target] = true
	}

	var remaining []string
	for _, target := range prev.Targets {
		if status, ok := prev.Platforms[target]; ok && status.State == domain.PlatformCompleted {
			continue
		}
		if len(requested) > 0 && !requested[target] {
			continue
		}
		remaining = append(remaining, target)
	}
	if len(remaining) == 0 {
		return nil, domain.NewUsageError(fmt.Sprintf("deployment %s has no platforms left to retry", id))
	}

	req := &domain.DeployRequest{
		Package:  prev.Package,
		Version:  prev.Version,
		Pipeline: prev.Pipeline,
		Targets:  remaining,
	}
	u.logger.InfoWithContext("retrying failed deployment", map[string]interface{}{
		"previous": id,
		"targets":  remaining,
	})
	return u.Deploy(ctx, req, workTree, opts)
}

func (u *DeploymentUsecase) notifyTerminal(ctx context.Context, tx *domain.DeploymentTransaction) {
	if u.notifier == nil || !tx.Status.IsTerminal() {
		return
	}
	if err := u.notifier.NotifyTerminal(ctx, domain.PayloadForDeployment(tx)); err != nil {
		u.logger.WarnWithContext("notification failed", map[string]interface{}{
			"id":    tx.ID,
			"error": err.Error(),
		})
	}
}

func (u *DeploymentUsecase) notifyRollback(ctx context.Context, rb *domain.RollbackTransaction) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.NotifyTerminal(ctx, domain.PayloadForRollback(rb)); err != nil {
		u.logger.WarnWithContext("notification failed", map[string]interface{}{
			"id":    rb.ID,
			"error": err.Error(),
		})
	}
}
