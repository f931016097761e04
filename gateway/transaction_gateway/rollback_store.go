package transaction_gateway

import (
	"fmt"
	"time"

	"pkgdeploy-cli/domain"
)

// CreateRollback opens a rollback transaction linked to a deployment.
// The referenced deployment must exist; its status gate (failed, rolled_back,
// or manual rollback of a completed deployment) is enforced by the rollback
// engine, which also sets the back-link.
func (s *TransactionStore) CreateRollback(deploymentID string, reason domain.RollbackReason, mode domain.RollbackMode, targets []string) (*domain.RollbackTransaction, error) {
	deployment, err := s.Get(deploymentID)
	if err != nil {
		return nil, err
	}

	rb := &domain.RollbackTransaction{
		ID:           newID("rb"),
		DeploymentID: deployment.ID,
		Package:      deployment.Package,
		Version:      deployment.Version,
		Reason:       reason,
		Mode:         mode,
		Targets:      append([]string(nil), targets...),
		StartedAt:    time.Now().UTC(),
		Status:       domain.StatusInProgress,
		Platforms:    make(map[string]domain.PlatformStatus, len(targets)),
	}
	for _, target := range targets {
		rb.Platforms[target] = domain.PlatformStatus{State: domain.PlatformPending}
	}

	if err := s.save(s.rollbackPath(rb.ID), rb); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext("rollback transaction created", map[string]interface{}{
		"id":            rb.ID,
		"deployment_id": rb.DeploymentID,
		"reason":        string(rb.Reason),
		"mode":          string(rb.Mode),
	})
	return rb, nil
}

// GetRollback returns a rollback transaction by id
func (s *TransactionStore) GetRollback(id string) (*domain.RollbackTransaction, error) {
	var rb domain.RollbackTransaction
	if err := s.load(s.rollbackPath(id), &rb); err != nil {
		return nil, err
	}
	return &rb, nil
}

// AppendRollbackStage appends a stage entry to a rollback transaction
func (s *TransactionStore) AppendRollbackStage(id string, stage domain.StageName, state domain.StageState) error {
	return s.updateRollback(id, func(rb *domain.RollbackTransaction) error {
		if rb.Status.IsTerminal() {
			return fmt.Errorf("rollback %s is terminal (%s): stage writes rejected", id, rb.Status)
		}
		rb.Stages = append(rb.Stages, domain.StageEntry{
			Stage:     stage,
			State:     state,
			Timestamp: time.Now().UTC(),
		})
		return nil
	})
}

// UpdateRollbackPlatform merges a patch into a rollback platform entry
func (s *TransactionStore) UpdateRollbackPlatform(id string, platform string, patch domain.PlatformPatch) error {
	return s.updateRollback(id, func(rb *domain.RollbackTransaction) error {
		if rb.Status.IsTerminal() {
			return fmt.Errorf("rollback %s is terminal (%s): platform writes rejected", id, rb.Status)
		}
		status, ok := rb.Platforms[platform]
		if !ok {
			return fmt.Errorf("rollback %s has no platform %s", id, platform)
		}
		patch.Apply(&status)
		rb.Platforms[platform] = status
		return nil
	})
}

// AppendRollbackError records a diagnostic line on a rollback transaction
func (s *TransactionStore) AppendRollbackError(id string, message string) error {
	return s.updateRollback(id, func(rb *domain.RollbackTransaction) error {
		if rb.Status.IsTerminal() {
			return fmt.Errorf("rollback %s is terminal (%s): error writes rejected", id, rb.Status)
		}
		rb.Errors = append(rb.Errors, message)
		return nil
	})
}

// SetRollbackSnapshot stores the before (after=false) or after (after=true)
// registry snapshots
func (s *TransactionStore) SetRollbackSnapshot(id string, after bool, snapshots map[string]domain.PlatformSnapshot) error {
	return s.updateRollback(id, func(rb *domain.RollbackTransaction) error {
		if after {
			rb.StateAfter = snapshots
		} else {
			rb.StateBefore = snapshots
		}
		return nil
	})
}

// FinalizeRollback sets a terminal status on a rollback transaction with the
// same idempotency law as deployment finalize
func (s *TransactionStore) FinalizeRollback(id string, status domain.TransactionStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize requires a terminal status, got %s", status)
	}
	return s.updateRollback(id, func(rb *domain.RollbackTransaction) error {
		if rb.Status.IsTerminal() {
			if rb.Status == status {
				return nil
			}
			return fmt.Errorf("rollback %s already finalized as %s, cannot finalize as %s", id, rb.Status, status)
		}
		now := time.Now().UTC()
		rb.Status = status
		rb.CompletedAt = &now
		return nil
	})
}

// updateRollback applies a mutation under the id's lock and persists atomically
func (s *TransactionStore) updateRollback(id string, mutate func(*domain.RollbackTransaction) error) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rb, err := s.GetRollback(id)
	if err != nil {
		return err
	}
	if err := mutate(rb); err != nil {
		return err
	}
	return s.save(s.rollbackPath(id), rb)
}
