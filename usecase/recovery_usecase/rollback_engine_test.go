package recovery_usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/driver/filesystem_driver"
	"pkgdeploy-cli/driver/system_driver"
	"pkgdeploy-cli/gateway/command_gateway"
	"pkgdeploy-cli/gateway/transaction_gateway"
	"pkgdeploy-cli/port/adapter_port"
	"pkgdeploy-cli/usecase/platform_usecase"
	"pkgdeploy-cli/utils/logger"
)

// fakeAdapter records rollback requests and returns a scripted outcome
type fakeAdapter struct {
	mu          sync.Mutex
	platform    string
	rollbackErr error
	requests    []*domain.RollbackRequest
}

func (f *fakeAdapter) Platform() string                                        { return f.platform }
func (f *fakeAdapter) Init(ctx context.Context, cred *domain.Credential) error { return nil }

func (f *fakeAdapter) Validate(ctx context.Context, workTree, requestedVersion string) (*domain.ValidateResult, error) {
	return &domain.ValidateResult{ResolvedVersion: requestedVersion}, nil
}

func (f *fakeAdapter) Build(ctx context.Context, workTree, version string) (*domain.ArtifactDescriptor, error) {
	return &domain.ArtifactDescriptor{Version: version, Checksums: map[string]string{}}, nil
}

func (f *fakeAdapter) Deploy(ctx context.Context, workTree string, artifact *domain.ArtifactDescriptor) (*domain.DeployResult, error) {
	return &domain.DeployResult{}, nil
}

func (f *fakeAdapter) Verify(ctx context.Context, pkg, version string) (*domain.VerifyResult, error) {
	return &domain.VerifyResult{Present: true, CheckedAt: time.Now()}, nil
}

func (f *fakeAdapter) Rollback(ctx context.Context, req *domain.RollbackRequest) (*domain.RollbackResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.rollbackErr != nil {
		return nil, f.rollbackErr
	}
	return &domain.RollbackResult{MethodUsed: "unpublish"}, nil
}

func (f *fakeAdapter) DependencyDryRun(ctx context.Context, workTree string) error { return nil }

type fakeFactory struct {
	adapters map[string]*fakeAdapter
}

func (f *fakeFactory) AdapterFor(desc *domain.PlatformDescriptor) (adapter_port.PlatformAdapter, error) {
	adapter, ok := f.adapters[desc.Name]
	if !ok {
		return nil, fmt.Errorf("no fake adapter for %s", desc.Name)
	}
	return adapter, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, desc *domain.PlatformDescriptor) (*domain.Credential, error) {
	return &domain.Credential{Platform: desc.Name, Token: "tok"}, nil
}

// fakeRegistry serves a fixed version history for snapshots
type fakeRegistry struct {
	versions []string
	present  bool
}

func (f *fakeRegistry) FetchMetadata(ctx context.Context, desc *domain.PlatformDescriptor, pkg, version string) (*domain.VerifyResult, error) {
	return &domain.VerifyResult{Present: f.present, CheckedAt: time.Now()}, nil
}

func (f *fakeRegistry) ListVersions(ctx context.Context, desc *domain.PlatformDescriptor, pkg string) ([]string, error) {
	return f.versions, nil
}

func (f *fakeRegistry) HealthCheck(ctx context.Context, desc *domain.PlatformDescriptor) *domain.HealthStatus {
	return &domain.HealthStatus{Platform: desc.Name, State: domain.HealthOK, CheckedAt: time.Now()}
}

func (f *fakeRegistry) Snapshot(ctx context.Context, desc *domain.PlatformDescriptor, pkg, version string) domain.PlatformSnapshot {
	latest := ""
	if len(f.versions) > 0 {
		latest = f.versions[len(f.versions)-1]
	}
	return domain.PlatformSnapshot{
		Platform:      desc.Name,
		LatestVersion: latest,
		Versions:      f.versions,
		TargetPresent: f.present,
		CapturedAt:    time.Now().UTC(),
	}
}

type engineEnv struct {
	store    *transaction_gateway.TransactionStore
	engine   *RollbackEngine
	adapters map[string]*fakeAdapter
}

func writeDescriptor(t *testing.T, dir, name string) {
	t.Helper()
	desc := &domain.PlatformDescriptor{
		Name:               name,
		Ecosystem:          "test",
		RegistryBaseURL:    "https://" + name + ".example",
		MetadataAPIURL:     "https://" + name + ".example/{package}/{version}",
		RequiredFiles:      []string{"package.json"},
		VersionLocator:     domain.VersionLocator{File: "package.json", Field: "version"},
		DeployCommand:      name + " publish",
		AuthScheme:         domain.AuthNone,
		RollbackCapability: domain.RollbackUnpublish,
		RollbackMethods: []domain.RollbackMethod{
			{Name: "unpublish", Command: name + " unpublish {package}@{version}"},
		},
	}
	data, err := json.Marshal(desc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644))
}

func newEngineEnv(t *testing.T, targets ...string) *engineEnv {
	t.Helper()
	fs := filesystem_driver.NewFileSystemDriver()
	log := logger.NewLogger()

	store, err := transaction_gateway.NewTransactionStore(t.TempDir(), fs, log)
	require.NoError(t, err)

	descDir := t.TempDir()
	adapters := make(map[string]*fakeAdapter, len(targets))
	for _, target := range targets {
		writeDescriptor(t, descDir, target)
		adapters[target] = &fakeAdapter{platform: target}
	}
	registry := &fakeRegistry{versions: []string{"1.2.2", "1.2.3"}, present: true}
	platforms := platform_usecase.NewPlatformRegistry(descDir, fs, registry, log)
	require.NoError(t, platforms.Load())

	engine := NewRollbackEngine(
		store,
		&fakeFactory{adapters: adapters},
		platforms,
		fakeResolver{},
		registry,
		command_gateway.NewCommandGateway(system_driver.NewSystemDriver(), log),
		log,
	)
	return &engineEnv{store: store, engine: engine, adapters: adapters}
}

// newFailedDeployment records a deployment whose listed platforms published
// before it was finalized failed
func (env *engineEnv) newFailedDeployment(t *testing.T, pipeline domain.PipelineType, completed []string, targets ...string) *domain.DeploymentTransaction {
	t.Helper()
	tx, err := env.store.Create(&domain.DeployRequest{
		Package:  "my-lib",
		Version:  "1.2.3",
		Pipeline: pipeline,
		Targets:  targets,
	})
	require.NoError(t, err)
	require.NoError(t, env.store.SetVersion(tx.ID, "1.2.3"))
	for _, target := range completed {
		require.NoError(t, env.store.UpdatePlatform(tx.ID, target, domain.StatePatch(domain.PlatformCompleted)))
	}
	require.NoError(t, env.store.Finalize(tx.ID, domain.StatusFailed))
	return tx
}

func TestRollbackEngine_StatusGate(t *testing.T) {
	env := newEngineEnv(t, "npm")

	inProgress, err := env.store.Create(&domain.DeployRequest{
		Package: "my-lib", Pipeline: domain.PipelineStandard, Targets: []string{"npm"},
	})
	require.NoError(t, err)

	_, err = env.engine.Rollback(context.Background(), inProgress.ID, domain.ReasonManualTrigger, domain.RollbackManual, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindUsage, domain.KindOf(err))
	assert.Contains(t, err.Error(), "in_progress")
}

func TestRollbackEngine_AlreadyRolledBack(t *testing.T) {
	env := newEngineEnv(t, "npm")
	tx := env.newFailedDeployment(t, domain.PipelineStandard, []string{"npm"}, "npm")

	first, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonManualTrigger, domain.RollbackManual, nil)
	require.NoError(t, err)

	_, err = env.engine.Rollback(context.Background(), tx.ID, domain.ReasonManualTrigger, domain.RollbackManual, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindUsage, domain.KindOf(err))
	assert.Contains(t, err.Error(), first.ID)
}

func TestRollbackEngine_SuccessfulRollback(t *testing.T) {
	env := newEngineEnv(t, "npm", "pypi")
	tx := env.newFailedDeployment(t, domain.PipelineParallel, []string{"npm"}, "npm", "pypi")

	rb, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonStageFailed, domain.RollbackManual, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, rb.Status)
	assert.Equal(t, []string{"npm"}, rb.Targets, "only published platforms are undone")
	assert.Equal(t, domain.PlatformCompleted, rb.Platforms["npm"].State)
	assert.Equal(t, "unpublish", rb.Platforms["npm"].MethodUsed)
	assert.Equal(t, "1.2.2", rb.Platforms["npm"].PreviousVersion, "restore point is the newest other version")
	assert.True(t, rb.StateBefore["npm"].TargetPresent)

	deployment, err := env.store.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRolledBack, deployment.Status)
	assert.Equal(t, rb.ID, deployment.RollbackTransactionID)

	require.Len(t, env.adapters["npm"].requests, 1)
	assert.True(t, env.adapters["npm"].requests[0].AllowConfirmation, "manual mode permits gated methods")
	assert.Empty(t, env.adapters["pypi"].requests)
}

func TestRollbackEngine_AutomatedModeBlocksConfirmation(t *testing.T) {
	env := newEngineEnv(t, "npm")
	tx := env.newFailedDeployment(t, domain.PipelineStandard, []string{"npm"}, "npm")

	_, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonVerificationFailed, domain.RollbackAutomated, nil)
	require.NoError(t, err)

	require.Len(t, env.adapters["npm"].requests, 1)
	assert.False(t, env.adapters["npm"].requests[0].AllowConfirmation)
}

func TestRollbackEngine_ConfirmFlagUpgradesAutomated(t *testing.T) {
	env := newEngineEnv(t, "npm")
	tx := env.newFailedDeployment(t, domain.PipelineStandard, []string{"npm"}, "npm")

	_, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonOperatorDecision, domain.RollbackAutomated,
		&RollbackOptions{Confirm: true})
	require.NoError(t, err)

	require.Len(t, env.adapters["npm"].requests, 1)
	assert.True(t, env.adapters["npm"].requests[0].AllowConfirmation)
}

func TestRollbackEngine_UnsupportedPlatformSkippedNotFailed(t *testing.T) {
	env := newEngineEnv(t, "npm", "maven")
	env.adapters["maven"].rollbackErr = domain.NewAdapterError("maven", "rollback", domain.CodeNotSupported,
		"maven does not support rollback", nil)
	tx := env.newFailedDeployment(t, domain.PipelineParallel, []string{"npm", "maven"}, "npm", "maven")

	rb, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonStageFailed, domain.RollbackManual, nil)
	require.NoError(t, err, "an unsupported platform must not fail the rollback")

	assert.Equal(t, domain.StatusCompleted, rb.Status)
	assert.Equal(t, domain.PlatformCompleted, rb.Platforms["npm"].State)
	assert.Equal(t, domain.PlatformSkipped, rb.Platforms["maven"].State)
	assert.NotEmpty(t, rb.Errors, "the operator is told manual intervention is needed")

	deployment, getErr := env.store.Get(tx.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusRolledBack, deployment.Status)
}

func TestRollbackEngine_AllPlatformsUnsupportedFailsRollback(t *testing.T) {
	env := newEngineEnv(t, "pypi")
	env.adapters["pypi"].rollbackErr = domain.NewAdapterError("pypi", "rollback", domain.CodeManualOnly,
		"all rollback methods for pypi require confirmation", nil)
	tx := env.newFailedDeployment(t, domain.PipelineStandard, []string{"pypi"}, "pypi")

	rb, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonVerificationFailed, domain.RollbackAutomated, nil)
	require.Error(t, err, "a rollback that undid nothing is a failure")

	assert.Equal(t, domain.StatusFailed, rb.Status)
	assert.Equal(t, domain.PlatformSkipped, rb.Platforms["pypi"].State)

	deployment, getErr := env.store.Get(tx.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusFailed, deployment.Status, "the deployment keeps its record, back-link aside")
	assert.Equal(t, rb.ID, deployment.RollbackTransactionID)
}

func TestRollbackEngine_AdapterFailureFailsRollback(t *testing.T) {
	env := newEngineEnv(t, "npm")
	env.adapters["npm"].rollbackErr = domain.NewAdapterError("npm", "rollback", domain.CodeRollbackFailed,
		"all rollback methods failed", nil)
	tx := env.newFailedDeployment(t, domain.PipelineStandard, []string{"npm"}, "npm")

	rb, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonStageFailed, domain.RollbackManual, nil)
	require.Error(t, err)

	assert.Equal(t, domain.StatusFailed, rb.Status)
	assert.Equal(t, domain.PlatformFailed, rb.Platforms["npm"].State)

	deployment, getErr := env.store.Get(tx.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusFailed, deployment.Status, "deployment keeps its status when the rollback fails")
}

func TestRollbackEngine_KeepStagingExcludesStagingTargets(t *testing.T) {
	env := newEngineEnv(t, "npm", "pypi")
	tx := env.newFailedDeployment(t, domain.PipelineStaged, []string{"npm", "pypi"}, "npm", "pypi")

	rb, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonStageFailed, domain.RollbackAutomated,
		&RollbackOptions{KeepStaging: true, StagingTargets: []string{"npm"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"pypi"}, rb.Targets)
	assert.Empty(t, env.adapters["npm"].requests, "staging targets stay published")
	assert.Len(t, env.adapters["pypi"].requests, 1)
}

func TestRollbackEngine_PreviousVersionOverride(t *testing.T) {
	env := newEngineEnv(t, "npm")
	tx := env.newFailedDeployment(t, domain.PipelineStandard, []string{"npm"}, "npm")

	rb, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonOperatorDecision, domain.RollbackManual,
		&RollbackOptions{PreviousVersion: "0.9.0"})
	require.NoError(t, err)

	require.Len(t, env.adapters["npm"].requests, 1)
	assert.Equal(t, "0.9.0", env.adapters["npm"].requests[0].PreviousVersion)
	assert.Equal(t, "0.9.0", rb.Platforms["npm"].PreviousVersion)
}

func TestRollbackEngine_VerifyFailedPlatformStillRolledBack(t *testing.T) {
	env := newEngineEnv(t, "npm", "pypi")
	tx, err := env.store.Create(&domain.DeployRequest{
		Package:  "my-lib",
		Version:  "1.2.3",
		Pipeline: domain.PipelineParallel,
		Targets:  []string{"npm", "pypi"},
	})
	require.NoError(t, err)
	require.NoError(t, env.store.UpdatePlatform(tx.ID, "pypi", domain.StatePatch(domain.PlatformCompleted)))

	// npm published but failed verification: the release is live even though
	// the platform never reached completed
	url := "https://npm.example/my-lib/1.2.3"
	patch := domain.StatePatch(domain.PlatformFailed)
	patch.RegistryURL = &url
	require.NoError(t, env.store.UpdatePlatform(tx.ID, "npm", patch))
	require.NoError(t, env.store.Finalize(tx.ID, domain.StatusFailed))

	rb, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonVerificationFailed, domain.RollbackManual, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"npm", "pypi"}, rb.Targets)
	assert.Equal(t, domain.PlatformCompleted, rb.Platforms["npm"].State)
	assert.Len(t, env.adapters["npm"].requests, 1, "a live release behind a failed verification is undone too")
}

func TestRollbackEngine_NoPublishedPlatforms(t *testing.T) {
	env := newEngineEnv(t, "npm")
	tx := env.newFailedDeployment(t, domain.PipelineStandard, nil, "npm")

	_, err := env.engine.Rollback(context.Background(), tx.ID, domain.ReasonManualTrigger, domain.RollbackManual, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindUsage, domain.KindOf(err))
	assert.Contains(t, err.Error(), "no published platforms")
}
