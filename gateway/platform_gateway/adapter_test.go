package platform_gateway

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/driver/filesystem_driver"
	"pkgdeploy-cli/gateway/command_gateway"
	"pkgdeploy-cli/port/system_port"
	"pkgdeploy-cli/utils/logger"
)

// fakeSystem scripts command outcomes by command line prefix and records
// every invocation
type fakeSystem struct {
	tools     map[string]bool
	responses map[string]*system_port.CommandResult
	calls     []string
	envSeen   [][]string
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		tools:     map[string]bool{},
		responses: map[string]*system_port.CommandResult{},
	}
}

func (f *fakeSystem) respond(prefix string, result *system_port.CommandResult) {
	f.responses[prefix] = result
}

func (f *fakeSystem) ExecuteCommand(ctx context.Context, workDir string, env []string, name string, args ...string) (*system_port.CommandResult, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, line)
	f.envSeen = append(f.envSeen, env)
	for prefix, result := range f.responses {
		if strings.HasPrefix(line, prefix) {
			return result, nil
		}
	}
	return &system_port.CommandResult{ExitCode: 0}, nil
}

func (f *fakeSystem) ExecuteCommandWithTimeout(ctx context.Context, timeout time.Duration, workDir string, env []string, name string, args ...string) (*system_port.CommandResult, error) {
	return f.ExecuteCommand(ctx, workDir, env, name, args...)
}

func (f *fakeSystem) CheckCommandExists(command string) bool {
	return f.tools[command]
}

func (f *fakeSystem) GetEnvironmentVariable(key string) string {
	return ""
}

// fakeRegistry serves scripted metadata results
type fakeRegistry struct {
	metadata map[string]*domain.VerifyResult
	versions []string
}

func (f *fakeRegistry) FetchMetadata(ctx context.Context, desc *domain.PlatformDescriptor, pkg, version string) (*domain.VerifyResult, error) {
	if result, ok := f.metadata[pkg+"@"+version]; ok {
		return result, nil
	}
	return &domain.VerifyResult{Present: false, CheckedAt: time.Now()}, nil
}

func (f *fakeRegistry) ListVersions(ctx context.Context, desc *domain.PlatformDescriptor, pkg string) ([]string, error) {
	return f.versions, nil
}

func (f *fakeRegistry) HealthCheck(ctx context.Context, desc *domain.PlatformDescriptor) *domain.HealthStatus {
	return &domain.HealthStatus{Platform: desc.Name, State: domain.HealthOK, CheckedAt: time.Now()}
}

func (f *fakeRegistry) Snapshot(ctx context.Context, desc *domain.PlatformDescriptor, pkg, version string) domain.PlatformSnapshot {
	return domain.PlatformSnapshot{Platform: desc.Name, Versions: f.versions, CapturedAt: time.Now()}
}

func testDescriptor() *domain.PlatformDescriptor {
	desc := &domain.PlatformDescriptor{
		Name:            "npm",
		Ecosystem:       "javascript",
		RegistryBaseURL: "https://registry.npmjs.org",
		MetadataAPIURL:  "https://registry.npmjs.org/{package}/{version}",
		PackageURL:      "https://www.npmjs.com/package/{package}/v/{version}",
		Tool:            "npm",
		RequiredFiles:   []string{"package.json"},
		VersionLocator: domain.VersionLocator{
			File:  "package.json",
			Field: "version",
		},
		DeployCommand:      "npm publish --access public",
		TokenEnv:           "NPM_TOKEN",
		ConflictPatterns:   []string{"cannot publish over"},
		TransientPatterns:  []string{"ETIMEDOUT"},
		AuthScheme:         domain.AuthBearerToken,
		RollbackCapability: domain.RollbackUnpublish,
		RollbackMethods: []domain.RollbackMethod{
			{Name: "unpublish", Command: "npm unpublish {package}@{version}"},
			{Name: "deprecate", Command: "npm deprecate {package}@{version} rolled-back", RequiresConfirmation: true},
		},
	}
	desc.ApplyDefaults()
	return desc
}

func newTestAdapter(t *testing.T, system *fakeSystem, registry *fakeRegistry) *RegistryAdapter {
	t.Helper()
	log := logger.NewLogger()
	commands := command_gateway.NewCommandGateway(system, log)
	return NewRegistryAdapter(testDescriptor(), commands, registry, filesystem_driver.NewFileSystemDriver(), log)
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644))
}

func TestAdapter_Init(t *testing.T) {
	tests := []struct {
		name     string
		toolOK   bool
		cred     *domain.Credential
		wantCode domain.FailureCode
	}{
		{
			name:     "tool missing",
			toolOK:   false,
			cred:     &domain.Credential{Token: "tok"},
			wantCode: domain.CodeToolMissing,
		},
		{
			name:     "credential missing",
			toolOK:   true,
			cred:     &domain.Credential{},
			wantCode: domain.CodeAuthUnavailable,
		},
		{
			name:   "ready",
			toolOK: true,
			cred:   &domain.Credential{Token: "tok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system := newFakeSystem()
			system.tools["npm"] = tt.toolOK
			adapter := newTestAdapter(t, system, &fakeRegistry{})

			err := adapter.Init(context.Background(), tt.cred)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, domain.CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAdapter_ValidateRewritesManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name": "my-lib", "version": "1.2.3"}`)
	adapter := newTestAdapter(t, newFakeSystem(), &fakeRegistry{})

	result, err := adapter.Validate(context.Background(), dir, "1.3.0")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", result.ResolvedVersion)
	assert.True(t, result.ManifestUpdated)

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "1.3.0"`)
}

func TestAdapter_ValidateReadsManifestVersion(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name": "my-lib", "version": "1.2.3"}`)
	adapter := newTestAdapter(t, newFakeSystem(), &fakeRegistry{})

	result, err := adapter.Validate(context.Background(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", result.ResolvedVersion)
	assert.False(t, result.ManifestUpdated)
}

func TestAdapter_ValidateMissingManifest(t *testing.T) {
	adapter := newTestAdapter(t, newFakeSystem(), &fakeRegistry{})
	_, err := adapter.Validate(context.Background(), t.TempDir(), "1.0.0")
	assert.Equal(t, domain.CodeManifestMissing, domain.CodeOf(err))
}

func TestAdapter_DeployClassification(t *testing.T) {
	tests := []struct {
		name     string
		result   *system_port.CommandResult
		wantCode domain.FailureCode
	}{
		{
			name:   "success",
			result: &system_port.CommandResult{ExitCode: 0, Stdout: "+ my-lib@1.3.0"},
		},
		{
			name:     "conflict on nonzero exit",
			result:   &system_port.CommandResult{ExitCode: 1, Stderr: "403 cannot publish over previously published version"},
			wantCode: domain.CodeConflict,
		},
		{
			name:     "conflict pattern on exit zero",
			result:   &system_port.CommandResult{ExitCode: 0, Stderr: "warning: cannot publish over 1.3.0"},
			wantCode: domain.CodeConflict,
		},
		{
			name:     "transient pattern",
			result:   &system_port.CommandResult{ExitCode: 1, Stderr: "request failed: ETIMEDOUT"},
			wantCode: domain.CodeTransient,
		},
		{
			name:     "plain rejection",
			result:   &system_port.CommandResult{ExitCode: 1, Stderr: "payload too large"},
			wantCode: domain.CodeRejected,
		},
		{
			name:     "timeout is transient",
			result:   &system_port.CommandResult{ExitCode: -1, TimedOut: true},
			wantCode: domain.CodeTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system := newFakeSystem()
			system.tools["npm"] = true
			system.respond("npm publish", tt.result)
			adapter := newTestAdapter(t, system, &fakeRegistry{})
			require.NoError(t, adapter.Init(context.Background(), &domain.Credential{Token: "tok"}))

			artifact := &domain.ArtifactDescriptor{Package: "my-lib", Version: "1.3.0"}
			result, err := adapter.Deploy(context.Background(), t.TempDir(), artifact)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, domain.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://www.npmjs.com/package/my-lib/v/1.3.0", result.RegistryURL)
			assert.Equal(t, "my-lib@1.3.0", result.Coordinates)
		})
	}
}

func TestAdapter_DeployPassesCredentialEnv(t *testing.T) {
	system := newFakeSystem()
	system.tools["npm"] = true
	adapter := newTestAdapter(t, system, &fakeRegistry{})
	require.NoError(t, adapter.Init(context.Background(), &domain.Credential{Token: "secret-token"}))

	_, err := adapter.Deploy(context.Background(), t.TempDir(), &domain.ArtifactDescriptor{Package: "my-lib", Version: "1.0.0"})
	require.NoError(t, err)

	require.NotEmpty(t, system.envSeen)
	assert.Contains(t, system.envSeen[0], "NPM_TOKEN=secret-token")
}

func TestAdapter_Verify(t *testing.T) {
	registry := &fakeRegistry{metadata: map[string]*domain.VerifyResult{
		"my-lib@1.3.0": {Present: true, Metadata: map[string]interface{}{"version": "1.3.0"}},
	}}
	adapter := newTestAdapter(t, newFakeSystem(), registry)

	result, err := adapter.Verify(context.Background(), "my-lib", "1.3.0")
	require.NoError(t, err)
	assert.True(t, result.Present)

	_, err = adapter.Verify(context.Background(), "my-lib", "9.9.9")
	assert.Equal(t, domain.CodeNotYet, domain.CodeOf(err))
	assert.True(t, domain.IsPropagationPending(err))
}

func TestAdapter_VerifyVersionMismatch(t *testing.T) {
	registry := &fakeRegistry{metadata: map[string]*domain.VerifyResult{
		"my-lib@1.3.0": {Present: true, Metadata: map[string]interface{}{"version": "1.2.9"}},
	}}
	adapter := newTestAdapter(t, newFakeSystem(), registry)

	_, err := adapter.Verify(context.Background(), "my-lib", "1.3.0")
	assert.Equal(t, domain.CodeMismatch, domain.CodeOf(err))
}

func TestAdapter_RollbackMethodOrder(t *testing.T) {
	system := newFakeSystem()
	system.tools["npm"] = true
	registry := &fakeRegistry{metadata: map[string]*domain.VerifyResult{
		"my-lib@1.3.0": {Present: true},
	}}
	adapter := newTestAdapter(t, system, registry)
	require.NoError(t, adapter.Init(context.Background(), &domain.Credential{Token: "tok"}))

	result, err := adapter.Rollback(context.Background(), &domain.RollbackRequest{
		Package: "my-lib", Version: "1.3.0", AllowConfirmation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "unpublish", result.MethodUsed)
	assert.Contains(t, system.calls, "npm unpublish my-lib@1.3.0")
}

func TestAdapter_RollbackFallsThroughToSecondMethod(t *testing.T) {
	system := newFakeSystem()
	system.tools["npm"] = true
	system.respond("npm unpublish", &system_port.CommandResult{ExitCode: 1, Stderr: "unpublish window expired"})
	registry := &fakeRegistry{metadata: map[string]*domain.VerifyResult{
		"my-lib@1.3.0": {Present: true},
	}}
	adapter := newTestAdapter(t, system, registry)
	require.NoError(t, adapter.Init(context.Background(), &domain.Credential{Token: "tok"}))

	result, err := adapter.Rollback(context.Background(), &domain.RollbackRequest{
		Package: "my-lib", Version: "1.3.0", AllowConfirmation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "deprecate", result.MethodUsed)
}

func TestAdapter_RollbackConfirmationDowngrade(t *testing.T) {
	// Every usable method is confirmation-gated and confirmation is not
	// allowed: the platform reports manual_only without touching the registry
	system := newFakeSystem()
	system.tools["npm"] = true
	system.respond("npm unpublish", &system_port.CommandResult{ExitCode: 1, Stderr: "unpublish window expired"})
	registry := &fakeRegistry{metadata: map[string]*domain.VerifyResult{
		"my-lib@1.3.0": {Present: true},
	}}
	adapter := newTestAdapter(t, system, registry)
	require.NoError(t, adapter.Init(context.Background(), &domain.Credential{Token: "tok"}))

	_, err := adapter.Rollback(context.Background(), &domain.RollbackRequest{
		Package: "my-lib", Version: "1.3.0", AllowConfirmation: false,
	})
	assert.Equal(t, domain.CodeRollbackFailed, domain.CodeOf(err))
	for _, call := range system.calls {
		assert.NotContains(t, call, "deprecate", "confirmation-gated method must not run")
	}
}

func TestAdapter_RollbackAllGatedIsManualOnly(t *testing.T) {
	system := newFakeSystem()
	system.tools["npm"] = true
	registry := &fakeRegistry{metadata: map[string]*domain.VerifyResult{
		"my-lib@1.3.0": {Present: true},
	}}
	adapter := newTestAdapter(t, system, registry)
	adapter.desc.RollbackMethods = []domain.RollbackMethod{
		{Name: "deprecate", Command: "npm deprecate {package}@{version} rolled-back", RequiresConfirmation: true},
	}
	require.NoError(t, adapter.Init(context.Background(), &domain.Credential{Token: "tok"}))

	_, err := adapter.Rollback(context.Background(), &domain.RollbackRequest{
		Package: "my-lib", Version: "1.3.0", AllowConfirmation: false,
	})
	assert.Equal(t, domain.CodeManualOnly, domain.CodeOf(err))
}

func TestAdapter_RollbackUnsupportedCapability(t *testing.T) {
	adapter := newTestAdapter(t, newFakeSystem(), &fakeRegistry{})
	adapter.desc.RollbackCapability = domain.RollbackNone

	_, err := adapter.Rollback(context.Background(), &domain.RollbackRequest{
		Package: "my-lib", Version: "1.3.0",
	})
	assert.Equal(t, domain.CodeNotSupported, domain.CodeOf(err))
}

func TestAdapter_RollbackAlreadyRolledBack(t *testing.T) {
	system := newFakeSystem()
	system.tools["npm"] = true
	// Version absent from the registry: nothing to undo
	adapter := newTestAdapter(t, system, &fakeRegistry{})
	require.NoError(t, adapter.Init(context.Background(), &domain.Credential{Token: "tok"}))

	result, err := adapter.Rollback(context.Background(), &domain.RollbackRequest{
		Package: "my-lib", Version: "1.3.0", AllowConfirmation: true,
	})
	require.NoError(t, err)
	assert.True(t, result.AlreadyRolledBack)
	assert.Empty(t, system.calls, "no registry command issued")
}
