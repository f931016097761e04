package adapter_port

import (
	"context"

	"pkgdeploy-cli/domain"
)

// PlatformAdapter is the uniform lifecycle every registry integration
// implements. Adapters are stateless apart from Init: they receive a working
// tree, a version and a credential, and return result values. Failures are
// classified through domain.DeployError codes, not ad-hoc error strings.
type PlatformAdapter interface {
	// Platform returns the descriptor name this adapter serves
	Platform() string

	// Init prepares the adapter: tool availability and credential checks.
	// Failure codes: tool_missing, auth_unavailable.
	Init(ctx context.Context, cred *domain.Credential) error

	// Validate resolves the version to publish. A requested version is
	// written into the manifest (the pipeline is authoritative); an empty
	// request reads the manifest's current value.
	// Failure codes: manifest_missing, manifest_malformed, version_conflict.
	Validate(ctx context.Context, workTree, requestedVersion string) (*domain.ValidateResult, error)

	// Build produces distribution artifacts from source. Pre-existing dist
	// artifacts are ignored and re-created.
	// Failure codes: build_failed, tests_failed.
	Build(ctx context.Context, workTree, version string) (*domain.ArtifactDescriptor, error)

	// Deploy publishes the artifacts. Success is the registry's
	// acknowledgement, not the exit code alone.
	// Failure codes: rejected, transient (retryable), conflict.
	Deploy(ctx context.Context, workTree string, artifact *domain.ArtifactDescriptor) (*domain.DeployResult, error)

	// Verify checks the registry's public metadata endpoint for the release.
	// Failure codes: not_yet (propagation delay), not_found, mismatch.
	Verify(ctx context.Context, pkg, version string) (*domain.VerifyResult, error)

	// Rollback undoes a published version, attempting the descriptor's
	// methods in order. A platform already in its rolled-back state is
	// detected and reported without reissuing the registry command.
	// Failure codes: not_supported, manual_only, rollback_failed.
	Rollback(ctx context.Context, req *domain.RollbackRequest) (*domain.RollbackResult, error)

	// DependencyDryRun resolves the tree's dependencies without installing;
	// used by the pre-deploy validation gate
	DependencyDryRun(ctx context.Context, workTree string) error
}

// AdapterFactory builds an adapter for a platform descriptor
type AdapterFactory interface {
	AdapterFor(desc *domain.PlatformDescriptor) (PlatformAdapter, error)
}
