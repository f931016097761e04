package domain

import (
	"fmt"
	"strings"
	"time"
)

// RollbackReason explains why a rollback transaction was opened
type RollbackReason string

const (
	ReasonManualTrigger      RollbackReason = "manual_trigger"
	ReasonVerificationFailed RollbackReason = "post_deploy_verification_failed"
	ReasonStageFailed        RollbackReason = "stage_failed"
	ReasonOperatorDecision   RollbackReason = "operator_decision"
)

// RollbackMode controls how confirmation-gated methods are handled
type RollbackMode string

const (
	RollbackAutomated RollbackMode = "automated"
	RollbackManual    RollbackMode = "manual"
)

// IsValid checks if the rollback mode is valid
func (m RollbackMode) IsValid() bool {
	return m == RollbackAutomated || m == RollbackManual
}

// ParseRollbackMode parses a string to RollbackMode
func ParseRollbackMode(s string) (RollbackMode, error) {
	m := RollbackMode(strings.ToLower(s))
	if !m.IsValid() {
		return "", NewUsageError(fmt.Sprintf("invalid rollback mode: %s (must be automated or manual)", s))
	}
	return m, nil
}

// PlatformSnapshot captures what a registry's public metadata API reported
// about a package at one point in time. Snapshots are for auditability only.
type PlatformSnapshot struct {
	Platform      string    `json:"platform"`
	LatestVersion string    `json:"latest_version,omitempty"`
	Versions      []string  `json:"versions,omitempty"`
	TargetPresent bool      `json:"target_present"`
	CapturedAt    time.Time `json:"captured_at"`
	Error         string    `json:"error,omitempty"`
}

// RollbackTransaction is the durable record of one rollback attempt.
// It mirrors the deployment transaction and links back to it.
type RollbackTransaction struct {
	ID           string                      `json:"id"`
	DeploymentID string                      `json:"deployment_id"`
	Package      string                      `json:"package"`
	Version      string                      `json:"version,omitempty"`
	Reason       RollbackReason              `json:"reason"`
	Mode         RollbackMode                `json:"mode"`
	Targets      []string                    `json:"targets"`
	StartedAt    time.Time                   `json:"started_at"`
	CompletedAt  *time.Time                  `json:"completed_at,omitempty"`
	Status       TransactionStatus           `json:"status"`
	Stages       []StageEntry                `json:"stages"`
	Platforms    map[string]PlatformStatus   `json:"platforms"`
	StateBefore  map[string]PlatformSnapshot `json:"state_before,omitempty"`
	StateAfter   map[string]PlatformSnapshot `json:"state_after,omitempty"`
	Errors       []string                    `json:"errors,omitempty"`
}

// AttemptedSucceeded reports whether every attempted platform (everything
// not skipped) completed its rollback
func (r *RollbackTransaction) AttemptedSucceeded() bool {
	for _, target := range r.Targets {
		status, ok := r.Platforms[target]
		if !ok {
			return false
		}
		switch status.State {
		case PlatformCompleted, PlatformSkipped:
		default:
			return false
		}
	}
	return true
}
