package transaction_port

import (
	"pkgdeploy-cli/domain"
)

// TransactionFilter narrows ListRecent results. Zero values match everything.
type TransactionFilter struct {
	Package string
	Status  domain.TransactionStatus
}

// TransactionStore owns every transaction record for its entire life.
// Writes to the same id are serialized; writes to different ids proceed in
// parallel. Every write is flushed before the call returns.
type TransactionStore interface {
	// Create writes the initial deployment record and assigns a
	// time-ordered unique id
	Create(req *domain.DeployRequest) (*domain.DeploymentTransaction, error)

	// Get returns a deployment transaction by id
	Get(id string) (*domain.DeploymentTransaction, error)

	// AppendStage appends a stage log entry; rejected once the
	// transaction is terminal
	AppendStage(id string, stage domain.StageName, state domain.StageState) error

	// UpdatePlatform merges a patch into the named platform entry
	UpdatePlatform(id string, platform string, patch domain.PlatformPatch) error

	// AppendError records a diagnostic line; rejected once the
	// transaction is terminal
	AppendError(id string, message string) error

	// SetVersion records the resolved version once Validate has run
	SetVersion(id string, version string) error

	// Finalize sets a terminal status and completed_at. Idempotent for the
	// same terminal status; a different terminal status is rejected.
	Finalize(id string, status domain.TransactionStatus) error

	// MarkRolledBack transitions a failed or completed deployment to
	// rolled_back after a successful rollback
	MarkRolledBack(id string) error

	// SetRollbackLink records the back-link to a rollback transaction.
	// Permitted on terminal records; it is the only post-terminal write.
	SetRollbackLink(id string, rollbackID string) error

	// ListRecent returns up to n most recent transactions matching filter
	ListRecent(n int, filter TransactionFilter) ([]*domain.DeploymentTransaction, error)

	// FindLatestForPackage returns the most recent transaction for a package
	FindLatestForPackage(pkg string) (*domain.DeploymentTransaction, error)

	// AppendLog appends a free-form line to the transaction's stage log file
	AppendLog(id string, line string)

	// CreateRollback opens a rollback transaction linked to a deployment
	CreateRollback(deploymentID string, reason domain.RollbackReason, mode domain.RollbackMode, targets []string) (*domain.RollbackTransaction, error)

	// GetRollback returns a rollback transaction by id
	GetRollback(id string) (*domain.RollbackTransaction, error)

	// AppendRollbackStage appends a stage entry to a rollback transaction
	AppendRollbackStage(id string, stage domain.StageName, state domain.StageState) error

	// UpdateRollbackPlatform merges a patch into a rollback platform entry
	UpdateRollbackPlatform(id string, platform string, patch domain.PlatformPatch) error

	// AppendRollbackError records a diagnostic line on a rollback
	// transaction; rejected once it is terminal
	AppendRollbackError(id string, message string) error

	// SetRollbackSnapshot stores the before or after registry snapshots
	SetRollbackSnapshot(id string, after bool, snapshots map[string]domain.PlatformSnapshot) error

	// FinalizeRollback sets a terminal status on a rollback transaction
	FinalizeRollback(id string, status domain.TransactionStatus) error
}
