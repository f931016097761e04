package deployment_usecase

import (
	"context"
	"fmt"
	"time"

	"pkgdeploy-cli/domain"
)

// deployWithRetry publishes one platform with the transient retry schedule.
// Only transient failures are retried; conflicts and rejections surface
// immediately.
func (e *PipelineExecutor) deployWithRetry(ctx context.Context, txID string, t *preparedTarget, workTree string) (*domain.DeployResult, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		result, err := t.adapter.Deploy(ctx, workTree, t.artifact)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !domain.IsRetryable(err) || attempt == e.retry.MaxAttempts {
			return nil, err
		}

		delay := e.retry.DelayFor(attempt)
		e.store.AppendLog(txID, fmt.Sprintf("%s deploy attempt %d failed (%s), retrying in %s",
			t.desc.Name, attempt, err, delay))
		if storeErr := e.store.UpdatePlatform(txID, t.desc.Name, domain.StatePatch(domain.PlatformRetrying)); storeErr != nil {
			return nil, storeErr
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// verifyUntilVisible polls the registry until the release is visible,
// backing off on propagation delay up to the verify cap. Any failure other
// than propagation delay stops the poll immediately.
func (e *PipelineExecutor) verifyUntilVisible(ctx context.Context, txID string, t *preparedTarget, pkg, version string, cap time.Duration) (*domain.VerifyResult, error) {
	deadline := time.Now().Add(cap)
	attempt := 1
	for {
		result, err := t.adapter.Verify(ctx, pkg, version)
		if err == nil {
			return result, nil
		}
		if !domain.IsPropagationPending(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, domain.NewAdapterError(t.desc.Name, "verify", domain.CodeNotFound,
				fmt.Sprintf("%s@%s still not visible after %s", pkg, version, cap), err)
		}

		delay := e.retry.DelayFor(attempt)
		e.store.AppendLog(txID, fmt.Sprintf("%s: release not yet visible, polling again in %s", t.desc.Name, delay))
		attempt++

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
