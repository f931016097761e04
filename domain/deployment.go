package domain

import (
	"fmt"
	"time"
)

// DeploymentOptions holds the policy knobs for one pipeline run
type DeploymentOptions struct {
	DryRun         bool
	FailFast       bool
	StrictHealth   bool
	AutoRollback   bool
	KeepStaging    bool
	Concurrency    int
	VerifyCap      time.Duration
	StagingTargets []string
}

// NewDeploymentOptions creates deployment options with defaults
func NewDeploymentOptions() *DeploymentOptions {
	return &DeploymentOptions{
		AutoRollback: true,
		Concurrency:  5,
		VerifyCap:    5 * time.Minute,
	}
}

// Validate validates the deployment options
func (o *DeploymentOptions) Validate() error {
	if o.Concurrency <= 0 {
		return NewUsageError(fmt.Sprintf("concurrency must be positive, got %d", o.Concurrency))
	}
	if o.VerifyCap <= 0 {
		return NewUsageError("verify cap must be positive")
	}
	return nil
}

// SplitStaged partitions targets into the staging set and the production set.
// Targets named in the staging policy deploy first; the rest wait for the
// staging verify gate.
func (o *DeploymentOptions) SplitStaged(targets []string) (staging, production []string) {
	stagingSet := make(map[string]bool, len(o.StagingTargets))
	for _, name := range o.StagingTargets {
		stagingSet[name] = true
	}
	for _, target := range targets {
		if stagingSet[target] {
			staging = append(staging, target)
		} else {
			production = append(production, target)
		}
	}
	return staging, production
}

// RetrySchedule is the exponential backoff policy for transient deploy
// failures and verify propagation polling
type RetrySchedule struct {
	Initial     time.Duration
	Factor      int
	Cap         time.Duration
	MaxAttempts int
}

// DefaultRetrySchedule returns the deploy retry schedule:
// 2s initial, factor 2, capped at 60s, at most 3 attempts
func DefaultRetrySchedule() RetrySchedule {
	return RetrySchedule{
		Initial:     2 * time.Second,
		Factor:      2,
		Cap:         60 * time.Second,
		MaxAttempts: 3,
	}
}

// DelayFor returns the backoff delay before the given attempt (1-based)
func (s RetrySchedule) DelayFor(attempt int) time.Duration {
	delay := s.Initial
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(s.Factor)
		if delay >= s.Cap {
			return s.Cap
		}
	}
	if delay > s.Cap {
		return s.Cap
	}
	return delay
}
