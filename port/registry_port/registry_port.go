package registry_port

import (
	"context"

	"pkgdeploy-cli/domain"
)

// RegistryPort defines read-only access to a registry's public metadata API.
// It is the seam between adapters and the network.
type RegistryPort interface {
	// FetchMetadata queries the metadata endpoint for a package version.
	// A 404 is not an error: the result reports Present=false.
	FetchMetadata(ctx context.Context, desc *domain.PlatformDescriptor, pkg, version string) (*domain.VerifyResult, error)

	// ListVersions returns the published versions of a package,
	// oldest first as reported by the registry
	ListVersions(ctx context.Context, desc *domain.PlatformDescriptor, pkg string) ([]string, error)

	// HealthCheck issues a time-bounded advisory probe of the registry.
	// It is side-effect-free and never blocks a deploy.
	HealthCheck(ctx context.Context, desc *domain.PlatformDescriptor) *domain.HealthStatus

	// Snapshot captures the registry's current view of a package for
	// rollback auditing
	Snapshot(ctx context.Context, desc *domain.PlatformDescriptor, pkg, version string) domain.PlatformSnapshot
}
