package credential_port

import (
	"context"

	"pkgdeploy-cli/domain"
)

// CredentialResolver resolves an abstract credential handle to concrete
// secrets for one platform. The core does not prescribe where secrets live;
// resolvers are pluggable.
type CredentialResolver interface {
	Resolve(ctx context.Context, desc *domain.PlatformDescriptor) (*domain.Credential, error)
}
