package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status TransactionStatus
		want   bool
	}{
		{
			name:   "in_progress is not terminal",
			status: StatusInProgress,
			want:   false,
		},
		{
			name:   "completed is terminal",
			status: StatusCompleted,
			want:   true,
		},
		{
			name:   "failed is terminal",
			status: StatusFailed,
			want:   true,
		},
		{
			name:   "cancelled is terminal",
			status: StatusCancelled,
			want:   true,
		},
		{
			name:   "rolled_back is terminal",
			status: StatusRolledBack,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestParsePipelineType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    PipelineType
		wantErr bool
	}{
		{
			name:  "standard",
			input: "standard",
			want:  PipelineStandard,
		},
		{
			name:  "parallel uppercase",
			input: "PARALLEL",
			want:  PipelineParallel,
		},
		{
			name:  "staged",
			input: "staged",
			want:  PipelineStaged,
		},
		{
			name:    "unknown pipeline",
			input:   "bluegreen",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePipelineType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, 2, ExitCode(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeployRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     DeployRequest
		wantErr bool
	}{
		{
			name: "valid request",
			req: DeployRequest{
				Package:  "my-lib",
				Pipeline: PipelineParallel,
				Targets:  []string{"npm", "pypi"},
			},
		},
		{
			name: "missing package",
			req: DeployRequest{
				Pipeline: PipelineStandard,
				Targets:  []string{"npm"},
			},
			wantErr: true,
		},
		{
			name: "no targets",
			req: DeployRequest{
				Package:  "my-lib",
				Pipeline: PipelineStandard,
			},
			wantErr: true,
		},
		{
			name: "duplicate targets",
			req: DeployRequest{
				Package:  "my-lib",
				Pipeline: PipelineStandard,
				Targets:  []string{"npm", "npm"},
			},
			wantErr: true,
		},
		{
			name: "invalid pipeline",
			req: DeployRequest{
				Package:  "my-lib",
				Pipeline: PipelineType("canary"),
				Targets:  []string{"npm"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDeploymentTransaction_CanComplete(t *testing.T) {
	tx := &DeploymentTransaction{
		Targets: []string{"npm", "pypi"},
		Platforms: map[string]PlatformStatus{
			"npm":  {State: PlatformCompleted},
			"pypi": {State: PlatformRunning},
		},
	}
	assert.False(t, tx.CanComplete())

	tx.Platforms["pypi"] = PlatformStatus{State: PlatformSkipped}
	assert.True(t, tx.CanComplete())
}

func TestDeploymentTransaction_CompletedPlatforms(t *testing.T) {
	tx := &DeploymentTransaction{
		Targets: []string{"npm", "pypi", "cargo"},
		Platforms: map[string]PlatformStatus{
			"npm":   {State: PlatformCompleted},
			"pypi":  {State: PlatformFailed},
			"cargo": {State: PlatformCompleted},
		},
	}
	assert.Equal(t, []string{"npm", "cargo"}, tx.CompletedPlatforms())
	assert.True(t, tx.HasFailedPlatform())
}

func TestDeploymentTransaction_PublishedPlatforms(t *testing.T) {
	tx := &DeploymentTransaction{
		Targets: []string{"npm", "pypi", "cargo"},
		Platforms: map[string]PlatformStatus{
			"npm":   {State: PlatformCompleted},
			"pypi":  {State: PlatformFailed, RegistryURL: "https://pypi.org/project/my-lib/1.2.3/"},
			"cargo": {State: PlatformFailed},
		},
	}
	// pypi published before its verification failed, so it counts
	assert.Equal(t, []string{"npm", "pypi"}, tx.PublishedPlatforms())
}

func TestPlatformPatch_Apply(t *testing.T) {
	now := time.Now()
	msg := "boom"
	status := PlatformStatus{State: PlatformRunning}

	patch := StatePatch(PlatformFailed)
	patch.CompletedAt = &now
	patch.ErrorMessage = &msg
	patch.Apply(&status)

	assert.Equal(t, PlatformFailed, status.State)
	assert.Equal(t, &now, status.CompletedAt)
	assert.Equal(t, "boom", status.ErrorMessage)

	// Nil fields leave existing values untouched
	StatePatch(PlatformCompleted).Apply(&status)
	assert.Equal(t, PlatformCompleted, status.State)
	assert.Equal(t, "boom", status.ErrorMessage)
}

func TestRetrySchedule_DelayFor(t *testing.T) {
	schedule := DefaultRetrySchedule()

	assert.Equal(t, 2*time.Second, schedule.DelayFor(1))
	assert.Equal(t, 4*time.Second, schedule.DelayFor(2))
	assert.Equal(t, 8*time.Second, schedule.DelayFor(3))
	assert.Equal(t, 60*time.Second, schedule.DelayFor(10), "delay is capped")
}

func TestDeploymentOptions_SplitStaged(t *testing.T) {
	opts := NewDeploymentOptions()
	opts.StagingTargets = []string{"npm"}

	staging, production := opts.SplitStaged([]string{"npm", "pypi", "cargo"})
	assert.Equal(t, []string{"npm"}, staging)
	assert.Equal(t, []string{"pypi", "cargo"}, production)
}
