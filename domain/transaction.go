package domain

import (
	"fmt"
	"strings"
	"time"
)

// PipelineType represents the deployment topology
type PipelineType string

const (
	PipelineStandard PipelineType = "standard"
	PipelineParallel PipelineType = "parallel"
	PipelineStaged   PipelineType = "staged"
)

// String returns the string representation of the pipeline type
func (p PipelineType) String() string {
	return string(p)
}

// IsValid checks if the pipeline type is valid
func (p PipelineType) IsValid() bool {
	switch p {
	case PipelineStandard, PipelineParallel, PipelineStaged:
		return true
	default:
		return false
	}
}

// ParsePipelineType parses a string to PipelineType
func ParsePipelineType(s string) (PipelineType, error) {
	p := PipelineType(strings.ToLower(s))
	if !p.IsValid() {
		return "", NewUsageError(fmt.Sprintf("invalid pipeline: %s (must be standard, parallel, or staged)", s))
	}
	return p, nil
}

// TransactionStatus represents the status of a deployment or rollback transaction
type TransactionStatus string

const (
	StatusInProgress TransactionStatus = "in_progress"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusCancelled  TransactionStatus = "cancelled"
	StatusRolledBack TransactionStatus = "rolled_back"
)

// IsTerminal returns true once the status permits no further stage or platform writes
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRolledBack:
		return true
	default:
		return false
	}
}

// StageName identifies a pipeline checkpoint
type StageName string

const (
	StageValidation StageName = "validation"
	StagePreDeploy  StageName = "pre_deploy"
	StageDeploy     StageName = "deploy"
	StagePostDeploy StageName = "post_deploy"
	StageVerify     StageName = "verify"
	StageRollback   StageName = "rollback"
	StageRecovery   StageName = "recovery"
)

// StageState represents the state of a stage log entry
type StageState string

const (
	StageStarted   StageState = "started"
	StageCompleted StageState = "completed"
	StageFailed    StageState = "failed"
	StageSkipped   StageState = "skipped"
)

// StageEntry is one append-only record in a transaction's stage log
type StageEntry struct {
	Stage     StageName  `json:"stage"`
	State     StageState `json:"state"`
	Timestamp time.Time  `json:"ts"`
}

// PlatformState represents the per-platform deployment state
type PlatformState string

const (
	PlatformPending   PlatformState = "pending"
	PlatformRunning   PlatformState = "running"
	PlatformCompleted PlatformState = "completed"
	PlatformFailed    PlatformState = "failed"
	PlatformSkipped   PlatformState = "skipped"
	PlatformRetrying  PlatformState = "retrying"
)

// PlatformStatus is the per-platform entry inside a transaction
type PlatformStatus struct {
	State           PlatformState `json:"state"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	MethodUsed      string        `json:"method_used,omitempty"`
	PreviousVersion string        `json:"previous_version,omitempty"`
	RegistryURL     string        `json:"registry_url,omitempty"`
}

// PlatformPatch is a partial update merged into a PlatformStatus.
// Nil fields are left untouched.
type PlatformPatch struct {
	State           *PlatformState
	CompletedAt     *time.Time
	ErrorMessage    *string
	MethodUsed      *string
	PreviousVersion *string
	RegistryURL     *string
}

// Apply merges the patch into the status
func (p PlatformPatch) Apply(status *PlatformStatus) {
	if p.State != nil {
		status.State = *p.State
	}
	if p.CompletedAt != nil {
		status.CompletedAt = p.CompletedAt
	}
	if p.ErrorMessage != nil {
		status.ErrorMessage = *p.ErrorMessage
	}
	if p.MethodUsed != nil {
		status.MethodUsed = *p.MethodUsed
	}
	if p.PreviousVersion != nil {
		status.PreviousVersion = *p.PreviousVersion
	}
	if p.RegistryURL != nil {
		status.RegistryURL = *p.RegistryURL
	}
}

// StatePatch builds a patch that only moves the platform state
func StatePatch(state PlatformState) PlatformPatch {
	return PlatformPatch{State: &state}
}

// DeployRequest is the input that opens a deployment transaction
type DeployRequest struct {
	Package  string       `json:"package"`
	Version  string       `json:"version,omitempty"`
	Pipeline PipelineType `json:"pipeline"`
	Targets  []string     `json:"targets"`
}

// Validate validates the deploy request
func (r *DeployRequest) Validate() error {
	if r.Package == "" {
		return NewUsageError("package path is required")
	}
	if !r.Pipeline.IsValid() {
		return NewUsageError(fmt.Sprintf("invalid pipeline: %s", r.Pipeline))
	}
	if len(r.Targets) == 0 {
		return NewUsageError("at least one target platform is required")
	}
	seen := make(map[string]bool, len(r.Targets))
	for _, target := range r.Targets {
		if seen[target] {
			return NewUsageError(fmt.Sprintf("duplicate target platform: %s", target))
		}
		seen[target] = true
	}
	return nil
}

// DeploymentTransaction is the durable record of one deploy attempt.
// It is owned by the transaction store; everything else holds its ID only.
type DeploymentTransaction struct {
	ID                    string                    `json:"id"`
	Package               string                    `json:"package"`
	Version               string                    `json:"version,omitempty"`
	Pipeline              PipelineType              `json:"pipeline"`
	Targets               []string                  `json:"targets"`
	StartedAt             time.Time                 `json:"started_at"`
	CompletedAt           *time.Time                `json:"completed_at,omitempty"`
	Status                TransactionStatus         `json:"status"`
	Stages                []StageEntry              `json:"stages"`
	Platforms             map[string]PlatformStatus `json:"platforms"`
	Errors                []string                  `json:"errors,omitempty"`
	RollbackTransactionID string                    `json:"rollback_transaction_id,omitempty"`
}

// CanComplete reports whether every target platform is in a state that
// permits terminal status completed
func (t *DeploymentTransaction) CanComplete() bool {
	for _, target := range t.Targets {
		status, ok := t.Platforms[target]
		if !ok {
			return false
		}
		if status.State != PlatformCompleted && status.State != PlatformSkipped {
			return false
		}
	}
	return true
}

// CompletedPlatforms returns the targets that deployed and verified, in target order
func (t *DeploymentTransaction) CompletedPlatforms() []string {
	var completed []string
	for _, target := range t.Targets {
		if status, ok := t.Platforms[target]; ok && status.State == PlatformCompleted {
			completed = append(completed, target)
		}
	}
	return completed
}

// PublishedPlatforms returns the targets whose deploy was acknowledged by
// the registry, in target order. A platform that published but failed
// verification still counts: the release is live and can be rolled back.
func (t *DeploymentTransaction) PublishedPlatforms() []string {
	var published []string
	for _, target := range t.Targets {
		status, ok := t.Platforms[target]
		if !ok {
			continue
		}
		if status.State == PlatformCompleted || status.RegistryURL != "" {
			published = append(published, target)
		}
	}
	return published
}

// HasFailedPlatform returns true if any platform ended in failed state
func (t *DeploymentTransaction) HasFailedPlatform() bool {
	for _, status := range t.Platforms {
		if status.State == PlatformFailed {
			return true
		}
	}
	return false
}

// StageFailed returns true if the named stage has a failed entry
func (t *DeploymentTransaction) StageFailed(stage StageName) bool {
	for _, entry := range t.Stages {
		if entry.Stage == stage && entry.State == StageFailed {
			return true
		}
	}
	return false
}
