package deployment_usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/utils/logger"
)

// fakeTrigger records automated rollback requests
type fakeTrigger struct {
	calls  int
	reason domain.RollbackReason
}

func (f *fakeTrigger) TriggerAutomated(ctx context.Context, deploymentID string, reason domain.RollbackReason, opts *domain.DeploymentOptions) (*domain.RollbackTransaction, error) {
	f.calls++
	f.reason = reason
	return nil, nil
}

func newUsecase(env *executorEnv, trigger RollbackTrigger) *DeploymentUsecase {
	return NewDeploymentUsecase(env.store, env.executor, trigger, nil, env.cancels, logger.NewLogger())
}

func TestDeploymentUsecase_AutoRollbackAfterVerifyFailure(t *testing.T) {
	env := newExecutorEnv(t, "npm")
	env.adapters["npm"].verifyErr = domain.NewAdapterError("npm", "verify", domain.CodeMismatch,
		"registry reports a different version", nil)
	trigger := &fakeTrigger{}
	usecase := newUsecase(env, trigger)

	opts := fastOptions()
	opts.AutoRollback = true
	_, err := usecase.Deploy(context.Background(), &domain.DeployRequest{
		Package:  "my-lib",
		Pipeline: domain.PipelineStandard,
		Targets:  []string{"npm"},
	}, env.workTree, opts)
	require.Error(t, err)

	assert.Equal(t, 1, trigger.calls, "a release that published but failed verification is live and must be rolled back")
	assert.Equal(t, domain.ReasonVerificationFailed, trigger.reason)
}

func TestDeploymentUsecase_NoAutoRollbackWithoutPublish(t *testing.T) {
	env := newExecutorEnv(t, "npm")
	env.adapters["npm"].deployErrs = []error{
		domain.NewAdapterError("npm", "deploy", domain.CodeRejected, "artifact rejected", nil),
	}
	trigger := &fakeTrigger{}
	usecase := newUsecase(env, trigger)

	opts := fastOptions()
	opts.AutoRollback = true
	_, err := usecase.Deploy(context.Background(), &domain.DeployRequest{
		Package:  "my-lib",
		Pipeline: domain.PipelineStandard,
		Targets:  []string{"npm"},
	}, env.workTree, opts)
	require.Error(t, err)

	assert.Zero(t, trigger.calls, "nothing published, nothing to undo")
}

func TestDeploymentUsecase_RetryNarrowsTargets(t *testing.T) {
	env := newExecutorEnv(t, "npm", "pypi")
	usecase := newUsecase(env, nil)

	prev := env.newTransaction(t, domain.PipelineParallel, "npm", "pypi")
	require.NoError(t, env.store.UpdatePlatform(prev.ID, "npm", domain.StatePatch(domain.PlatformFailed)))
	require.NoError(t, env.store.UpdatePlatform(prev.ID, "pypi", domain.StatePatch(domain.PlatformFailed)))
	require.NoError(t, env.store.Finalize(prev.ID, domain.StatusFailed))

	tx, err := usecase.Retry(context.Background(), prev.ID, []string{"npm"}, env.workTree, fastOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"npm"}, tx.Targets)
	assert.Equal(t, domain.StatusCompleted, tx.Status)
	assert.Equal(t, 0, env.adapters["pypi"].deployCalls)
}

func TestDeploymentUsecase_RetryExcludesCompleted(t *testing.T) {
	env := newExecutorEnv(t, "npm", "pypi")
	usecase := newUsecase(env, nil)

	prev := env.newTransaction(t, domain.PipelineParallel, "npm", "pypi")
	require.NoError(t, env.store.UpdatePlatform(prev.ID, "npm", domain.StatePatch(domain.PlatformFailed)))
	require.NoError(t, env.store.UpdatePlatform(prev.ID, "pypi", domain.StatePatch(domain.PlatformCompleted)))
	require.NoError(t, env.store.Finalize(prev.ID, domain.StatusFailed))

	tx, err := usecase.Retry(context.Background(), prev.ID, []string{"npm", "pypi"}, env.workTree, fastOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"npm"}, tx.Targets, "a platform that already published is never retried")

	// Narrowing to only the completed platform leaves nothing to do
	_, err = usecase.Retry(context.Background(), prev.ID, []string{"pypi"}, env.workTree, fastOptions())
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindUsage, domain.KindOf(err))
}
