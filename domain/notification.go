package domain

import (
	"time"
)

// NotificationPayload is emitted to the notifier sink when a transaction
// reaches a terminal status. Delivery is at-least-once attempted.
type NotificationPayload struct {
	ID          string            `json:"id"`
	Package     string            `json:"package"`
	Version     string            `json:"version,omitempty"`
	Status      TransactionStatus `json:"status"`
	Targets     []string          `json:"targets"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	RollbackID  string            `json:"rollback_id,omitempty"`
}

// PayloadForDeployment builds the terminal notification for a deployment
func PayloadForDeployment(tx *DeploymentTransaction) *NotificationPayload {
	return &NotificationPayload{
		ID:          tx.ID,
		Package:     tx.Package,
		Version:     tx.Version,
		Status:      tx.Status,
		Targets:     tx.Targets,
		StartedAt:   tx.StartedAt,
		CompletedAt: tx.CompletedAt,
		RollbackID:  tx.RollbackTransactionID,
	}
}

// PayloadForRollback builds the terminal notification for a rollback
func PayloadForRollback(rb *RollbackTransaction) *NotificationPayload {
	return &NotificationPayload{
		ID:          rb.ID,
		Package:     rb.Package,
		Version:     rb.Version,
		Status:      rb.Status,
		Targets:     rb.Targets,
		StartedAt:   rb.StartedAt,
		CompletedAt: rb.CompletedAt,
		RollbackID:  rb.ID,
	}
}
