package deployment_usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/port/adapter_port"
	"pkgdeploy-cli/port/credential_port"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/transaction_port"
	"pkgdeploy-cli/usecase/platform_usecase"
	"pkgdeploy-cli/usecase/validation_usecase"
)

// preparedTarget is one platform ready to deploy: descriptor, initialized
// adapter and built artifact
type preparedTarget struct {
	desc     *domain.PlatformDescriptor
	adapter  adapter_port.PlatformAdapter
	artifact *domain.ArtifactDescriptor
}

// PipelineExecutor runs one deployment transaction through its stages:
// validation, pre_deploy, deploy, post_deploy, verify. Every state change
// is written to the transaction store before the pipeline moves on.
type PipelineExecutor struct {
	store       transaction_port.TransactionStore
	factory     adapter_port.AdapterFactory
	platforms   *platform_usecase.PlatformRegistry
	credentials credential_port.CredentialResolver
	validator   *validation_usecase.Validator
	logger      logger_port.LoggerPort
	retry       domain.RetrySchedule
	cancels     *CancelRegistry
}

// NewPipelineExecutor creates a pipeline executor
func NewPipelineExecutor(
	store transaction_port.TransactionStore,
	factory adapter_port.AdapterFactory,
	platforms *platform_usecase.PlatformRegistry,
	credentials credential_port.CredentialResolver,
	validator *validation_usecase.Validator,
	logger logger_port.LoggerPort,
	cancels *CancelRegistry,
) *PipelineExecutor {
	return &PipelineExecutor{
		store:       store,
		factory:     factory,
		platforms:   platforms,
		credentials: credentials,
		validator:   validator,
		logger:      logger,
		retry:       domain.DefaultRetrySchedule(),
		cancels:     cancels,
	}
}

// Execute runs the pipeline for an already-created transaction. On return
// the transaction is terminal.
func (e *PipelineExecutor) Execute(ctx context.Context, tx *domain.DeploymentTransaction, workTree string, opts *domain.DeploymentOptions) error {
	targets, err := e.validationStage(ctx, tx, workTree, opts)
	if err != nil {
		return e.failPipeline(tx.ID, domain.StageValidation, err)
	}

	if opts.DryRun {
		return e.dryRun(tx, targets)
	}

	if err := e.preDeployStage(ctx, tx, workTree, targets); err != nil {
		return e.failPipeline(tx.ID, domain.StagePreDeploy, err)
	}

	deployErr := e.deployTopology(ctx, tx, workTree, targets, opts)
	return e.finishPipeline(tx.ID, deployErr)
}

// validationStage resolves credentials, initializes adapters, runs the
// pre-deploy gate and settles the version. All targets validate before any
// deploys.
func (e *PipelineExecutor) validationStage(ctx context.Context, tx *domain.DeploymentTransaction, workTree string, opts *domain.DeploymentOptions) ([]*preparedTarget, error) {
	if err := e.store.AppendStage(tx.ID, domain.StageValidation, domain.StageStarted); err != nil {
		return nil, err
	}

	report := &domain.ValidationReport{}
	targets := make([]*preparedTarget, 0, len(tx.Targets))

	for _, name := range tx.Targets {
		desc, err := e.platforms.Get(name)
		if err != nil {
			return nil, err
		}
		adapter, err := e.factory.AdapterFor(desc)
		if err != nil {
			return nil, err
		}

		cred, err := e.credentials.Resolve(ctx, desc)
		if err != nil {
			return nil, err
		}
		if err := adapter.Init(ctx, cred); err != nil {
			return nil, err
		}

		e.validator.ValidateTarget(ctx, report, desc, adapter, workTree, opts)
		targets = append(targets, &preparedTarget{desc: desc, adapter: adapter})
	}

	for _, warning := range report.Warnings() {
		e.store.AppendLog(tx.ID, fmt.Sprintf("warning: %s %s: %s", warning.Platform, warning.Name, warning.Detail))
	}
	if report.HasBlockingFailure() {
		failure := report.FirstFailure()
		return nil, domain.NewValidationError(fmt.Sprintf("%s %s: %s", failure.Platform, failure.Name, failure.Detail))
	}

	version, err := e.settleVersion(ctx, tx, workTree, targets)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetVersion(tx.ID, version); err != nil {
		return nil, err
	}
	tx.Version = version

	return targets, e.store.AppendStage(tx.ID, domain.StageValidation, domain.StageCompleted)
}

// settleVersion runs adapter Validate sequentially in target order. The
// first resolved version becomes authoritative; later manifests are
// rewritten to agree with it.
func (e *PipelineExecutor) settleVersion(ctx context.Context, tx *domain.DeploymentTransaction, workTree string, targets []*preparedTarget) (string, error) {
	version := tx.Version
	for _, t := range targets {
		result, err := t.adapter.Validate(ctx, workTree, version)
		if err != nil {
			return "", err
		}
		if version == "" {
			version = result.ResolvedVersion
		}
		if result.ManifestUpdated {
			e.store.AppendLog(tx.ID, fmt.Sprintf("%s: manifest updated to version %s", t.desc.Name, version))
		}
	}
	if version == "" {
		return "", domain.NewValidationError("could not resolve a version from any manifest")
	}
	return version, nil
}

// preDeployStage builds artifacts for every target before any deploy starts
func (e *PipelineExecutor) preDeployStage(ctx context.Context, tx *domain.DeploymentTransaction, workTree string, targets []*preparedTarget) error {
	if err := e.store.AppendStage(tx.ID, domain.StagePreDeploy, domain.StageStarted); err != nil {
		return err
	}

	for _, t := range targets {
		artifact, err := t.adapter.Build(ctx, workTree, tx.Version)
		if err != nil {
			return err
		}
		artifact.Package = tx.Package
		t.artifact = artifact
		e.store.AppendLog(tx.ID, fmt.Sprintf("%s: built %d artifact(s)", t.desc.Name, len(artifact.Paths)))
	}

	return e.store.AppendStage(tx.ID, domain.StagePreDeploy, domain.StageCompleted)
}

// stageRun brackets the deploy fan-out stages. A staged pipeline runs the
// deploy/verify cycle once per batch, but the record must show each stage
// started and settled exactly once, so the terminal entries are held back
// until every batch has run.
type stageRun struct {
	store  transaction_port.TransactionStore
	id     string
	opened []domain.StageName
	failed map[domain.StageName]bool
}

func newStageRun(store transaction_port.TransactionStore, id string) *stageRun {
	return &stageRun{store: store, id: id, failed: make(map[domain.StageName]bool)}
}

// enter appends the stage's started entry the first time the stage is reached
func (r *stageRun) enter(stage domain.StageName) {
	for _, opened := range r.opened {
		if opened == stage {
			return
		}
	}
	r.opened = append(r.opened, stage)
	r.store.AppendStage(r.id, stage, domain.StageStarted)
}

func (r *stageRun) fail(stage domain.StageName) {
	r.failed[stage] = true
}

// finish settles every opened stage. A clean deploy also records the
// post_deploy checkpoint between deploy and verify.
func (r *stageRun) finish() {
	for _, stage := range r.opened {
		state := domain.StageCompleted
		if r.failed[stage] {
			state = domain.StageFailed
		}
		r.store.AppendStage(r.id, stage, state)
		if stage == domain.StageDeploy && state == domain.StageCompleted {
			r.store.AppendStage(r.id, domain.StagePostDeploy, domain.StageStarted)
			r.store.AppendStage(r.id, domain.StagePostDeploy, domain.StageCompleted)
		}
	}
}

// deployTopology dispatches on the pipeline type
func (e *PipelineExecutor) deployTopology(ctx context.Context, tx *domain.DeploymentTransaction, workTree string, targets []*preparedTarget, opts *domain.DeploymentOptions) error {
	run := newStageRun(e.store, tx.ID)
	var err error
	switch tx.Pipeline {
	case domain.PipelineStandard:
		err = e.runBatch(ctx, run, tx, workTree, targets, opts, false)
	case domain.PipelineParallel:
		err = e.runBatch(ctx, run, tx, workTree, targets, opts, true)
	case domain.PipelineStaged:
		err = e.runStaged(ctx, run, tx, workTree, targets, opts)
	default:
		return domain.NewUsageError(fmt.Sprintf("invalid pipeline: %s", tx.Pipeline))
	}
	run.finish()
	return err
}

// runStaged deploys the staging subset first; production targets only start
// once every staging target has deployed and verified
func (e *PipelineExecutor) runStaged(ctx context.Context, run *stageRun, tx *domain.DeploymentTransaction, workTree string, targets []*preparedTarget, opts *domain.DeploymentOptions) error {
	stagingNames, _ := opts.SplitStaged(tx.Targets)
	stagingSet := make(map[string]bool, len(stagingNames))
	for _, name := range stagingNames {
		stagingSet[name] = true
	}

	var staging, production []*preparedTarget
	for _, t := range targets {
		if stagingSet[t.desc.Name] {
			staging = append(staging, t)
		} else {
			production = append(production, t)
		}
	}
	// Without an explicit staging policy the first target is the canary
	if len(staging) == 0 {
		staging, production = targets[:1], targets[1:]
	}

	e.store.AppendLog(tx.ID, fmt.Sprintf("staged pipeline: %d staging target(s), %d production target(s)",
		len(staging), len(production)))

	if err := e.runBatch(ctx, run, tx, workTree, staging, opts, true); err != nil {
		e.skipTargets(tx.ID, production, "staging gate failed")
		return err
	}
	return e.runBatch(ctx, run, tx, workTree, production, opts, true)
}

// runBatch deploys then verifies one batch of targets
func (e *PipelineExecutor) runBatch(ctx context.Context, run *stageRun, tx *domain.DeploymentTransaction, workTree string, batch []*preparedTarget, opts *domain.DeploymentOptions, parallel bool) error {
	if len(batch) == 0 {
		return nil
	}
	run.enter(domain.StageDeploy)

	var deployErr error
	if parallel {
		deployErr = e.deployParallel(ctx, tx, workTree, batch, opts)
	} else {
		deployErr = e.deploySequential(ctx, tx, workTree, batch, opts)
	}
	if deployErr != nil {
		run.fail(domain.StageDeploy)
	}

	// Platforms that published before a sibling failed still get verified
	// so the record reflects what is actually live on each registry
	verifyErr := e.verifyBatch(ctx, run, tx, batch, opts)
	if deployErr != nil {
		return deployErr
	}
	return verifyErr
}

// deploySequential publishes targets one at a time in declared order. By
// default every target runs to its own outcome so the operator sees the
// full picture; with fail-fast the remainder is skipped after a failure.
func (e *PipelineExecutor) deploySequential(ctx context.Context, tx *domain.DeploymentTransaction, workTree string, batch []*preparedTarget, opts *domain.DeploymentOptions) error {
	var firstErr error
	for i, t := range batch {
		if e.cancelRequested(tx.ID) {
			e.skipTargets(tx.ID, batch[i:], "cancelled")
			if firstErr == nil {
				firstErr = fmt.Errorf("deployment %s cancelled", tx.ID)
			}
			return firstErr
		}
		if err := e.deployOne(ctx, tx, workTree, t); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if opts.FailFast {
				e.skipTargets(tx.ID, batch[i+1:], "earlier platform failed")
				return firstErr
			}
		}
	}
	return firstErr
}

// deployParallel publishes targets concurrently, bounded by the concurrency
// option. Without fail-fast, every target runs to its own outcome and the
// first error is reported.
func (e *PipelineExecutor) deployParallel(ctx context.Context, tx *domain.DeploymentTransaction, workTree string, batch []*preparedTarget, opts *domain.DeploymentOptions) error {
	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	group, groupCtx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var firstErr error

	for _, t := range batch {
		t := t
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				e.markSkipped(tx.ID, t, "cancelled before start")
				return nil
			}
			defer sem.Release(1)

			if e.cancelRequested(tx.ID) {
				e.markSkipped(tx.ID, t, "cancelled")
				return nil
			}

			err := e.deployOne(ctx, tx, workTree, t)
			if err == nil {
				return nil
			}
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			if opts.FailFast {
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return firstErr
}

// deployOne publishes a single platform; the platform stays in running
// state until verify confirms visibility
func (e *PipelineExecutor) deployOne(ctx context.Context, tx *domain.DeploymentTransaction, workTree string, t *preparedTarget) error {
	if err := e.store.UpdatePlatform(tx.ID, t.desc.Name, domain.StatePatch(domain.PlatformRunning)); err != nil {
		return err
	}
	e.store.AppendLog(tx.ID, fmt.Sprintf("%s: deploying %s@%s", t.desc.Name, tx.Package, tx.Version))

	result, err := e.deployWithRetry(ctx, tx.ID, t, workTree)
	if err != nil {
		e.markFailed(tx.ID, t, err)
		return err
	}

	patch := domain.StatePatch(domain.PlatformRunning)
	patch.RegistryURL = &result.RegistryURL
	if err := e.store.UpdatePlatform(tx.ID, t.desc.Name, patch); err != nil {
		return err
	}
	e.store.AppendLog(tx.ID, fmt.Sprintf("%s: published %s", t.desc.Name, result.Coordinates))
	return nil
}

// verifyBatch confirms registry visibility for every running target in the
// batch. Verification is what moves a platform to completed.
func (e *PipelineExecutor) verifyBatch(ctx context.Context, run *stageRun, tx *domain.DeploymentTransaction, batch []*preparedTarget, opts *domain.DeploymentOptions) error {
	run.enter(domain.StageVerify)

	var firstErr error
	for _, t := range batch {
		current, err := e.store.Get(tx.ID)
		if err != nil {
			return err
		}
		if current.Platforms[t.desc.Name].State != domain.PlatformRunning {
			continue
		}

		if _, err := e.verifyUntilVisible(ctx, tx.ID, t, tx.Package, tx.Version, opts.VerifyCap); err != nil {
			e.markFailed(tx.ID, t, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		now := time.Now().UTC()
		patch := domain.StatePatch(domain.PlatformCompleted)
		patch.CompletedAt = &now
		if err := e.store.UpdatePlatform(tx.ID, t.desc.Name, patch); err != nil {
			return err
		}
		e.store.AppendLog(tx.ID, fmt.Sprintf("%s: verified %s@%s visible", t.desc.Name, tx.Package, tx.Version))
	}

	if firstErr != nil {
		run.fail(domain.StageVerify)
	}
	return firstErr
}

// dryRun records the plan without deploying anything
func (e *PipelineExecutor) dryRun(tx *domain.DeploymentTransaction, targets []*preparedTarget) error {
	for _, t := range targets {
		e.markSkipped(tx.ID, t, "dry run")
		e.store.AppendLog(tx.ID, fmt.Sprintf("dry run: would deploy %s@%s to %s", tx.Package, tx.Version, t.desc.Name))
	}
	return e.store.Finalize(tx.ID, domain.StatusCompleted)
}

// finishPipeline settles the terminal status from the platform outcomes
func (e *PipelineExecutor) finishPipeline(id string, deployErr error) error {
	final, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if final.Status.IsTerminal() {
		// Cancelled out from under us by a concurrent cancel
		return deployErr
	}

	// A cancelled run can look completable because its unstarted targets
	// were skipped; the cancel request wins over that
	if e.cancels.IsCancelled(id) {
		if err := e.store.Finalize(id, domain.StatusCancelled); err != nil {
			return err
		}
		if deployErr == nil {
			deployErr = fmt.Errorf("deployment %s cancelled", id)
		}
		return deployErr
	}

	if deployErr == nil && final.CanComplete() {
		if err := e.store.Finalize(id, domain.StatusCompleted); err != nil {
			return err
		}
		return nil
	}

	if deployErr != nil {
		e.store.AppendError(id, deployErr.Error())
	}
	if err := e.store.Finalize(id, domain.StatusFailed); err != nil {
		return err
	}
	if deployErr == nil {
		deployErr = fmt.Errorf("deployment %s did not complete all targets", id)
	}
	return deployErr
}

// failPipeline records a stage failure and finalizes the transaction
func (e *PipelineExecutor) failPipeline(id string, stage domain.StageName, cause error) error {
	e.store.AppendStage(id, stage, domain.StageFailed)
	e.store.AppendError(id, cause.Error())
	if err := e.store.Finalize(id, domain.StatusFailed); err != nil {
		e.logger.ErrorWithContext("failed to finalize transaction", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	}
	return cause
}

// cancelRequested checks both the in-process cancel registry and the durable
// record, so a cancel issued from another process is honored too
func (e *PipelineExecutor) cancelRequested(id string) bool {
	if e.cancels.IsCancelled(id) {
		return true
	}
	tx, err := e.store.Get(id)
	return err == nil && tx.Status == domain.StatusCancelled
}

func (e *PipelineExecutor) markFailed(id string, t *preparedTarget, cause error) {
	msg := cause.Error()
	patch := domain.StatePatch(domain.PlatformFailed)
	patch.ErrorMessage = &msg
	if err := e.store.UpdatePlatform(id, t.desc.Name, patch); err != nil {
		e.logger.ErrorWithContext("failed to record platform failure", map[string]interface{}{
			"id":       id,
			"platform": t.desc.Name,
			"error":    err.Error(),
		})
	}
	e.store.AppendError(id, fmt.Sprintf("%s: %s", t.desc.Name, msg))
}

func (e *PipelineExecutor) markSkipped(id string, t *preparedTarget, reason string) {
	patch := domain.StatePatch(domain.PlatformSkipped)
	patch.ErrorMessage = &reason
	if err := e.store.UpdatePlatform(id, t.desc.Name, patch); err != nil {
		e.logger.DebugWithContext("skip not recorded", map[string]interface{}{
			"id":       id,
			"platform": t.desc.Name,
			"error":    err.Error(),
		})
	}
}

func (e *PipelineExecutor) skipTargets(id string, targets []*preparedTarget, reason string) {
	for _, t := range targets {
		e.markSkipped(id, t, reason)
	}
}
