package recovery_usecase

import (
	"context"
	"fmt"
	"time"

	"pkgdeploy-cli/domain"
)

// VerifyOutcome is the per-platform result of checking what a rollback
// actually changed on the registry
type VerifyOutcome struct {
	Platform string `json:"platform"`
	Reverted bool   `json:"reverted"`
	Detail   string `json:"detail,omitempty"`
}

// VerifyRollback re-queries each attempted platform and reports whether the
// rolled-back version is gone (or yanked) from the registry's public view
func (e *RollbackEngine) VerifyRollback(ctx context.Context, rollbackID string) ([]VerifyOutcome, error) {
	rb, err := e.store.GetRollback(rollbackID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]VerifyOutcome, 0, len(rb.Targets))
	for _, target := range rb.Targets {
		outcome := VerifyOutcome{Platform: target}

		status, ok := rb.Platforms[target]
		if ok && status.State == domain.PlatformSkipped {
			outcome.Detail = "not attempted: " + status.ErrorMessage
			outcomes = append(outcomes, outcome)
			continue
		}

		desc, err := e.platforms.Get(target)
		if err != nil {
			outcome.Detail = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}

		result, err := e.registry.FetchMetadata(ctx, desc, rb.Package, rb.Version)
		switch {
		case err != nil:
			outcome.Detail = fmt.Sprintf("registry check failed: %s", err)
		case !result.Present:
			outcome.Reverted = true
			outcome.Detail = fmt.Sprintf("%s@%s no longer visible", rb.Package, rb.Version)
		case result.Yanked:
			outcome.Reverted = true
			outcome.Detail = fmt.Sprintf("%s@%s is yanked", rb.Package, rb.Version)
		default:
			outcome.Detail = fmt.Sprintf("%s@%s is still live", rb.Package, rb.Version)
		}
		outcomes = append(outcomes, outcome)
	}

	snapshots := e.snapshot(ctx, rb.Package, rb.Version, rb.Targets)
	for name, snap := range snapshots {
		snap.CapturedAt = time.Now().UTC()
		snapshots[name] = snap
	}
	if err := e.store.SetRollbackSnapshot(rollbackID, true, snapshots); err != nil {
		e.logger.WarnWithContext("could not refresh post-rollback snapshot", map[string]interface{}{
			"id":    rollbackID,
			"error": err.Error(),
		})
	}

	return outcomes, nil
}
