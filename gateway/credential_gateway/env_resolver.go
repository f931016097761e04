package credential_gateway

import (
	"context"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/port/credential_port"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/system_port"
)

// EnvResolver resolves registry credentials from environment variables.
// The naming convention is derived from the platform name: NPM_TOKEN,
// DOCKERHUB_USERNAME, DOCKERHUB_PASSWORD.
type EnvResolver struct {
	system system_port.SystemPort
	logger logger_port.LoggerPort
}

// Ensure EnvResolver implements the credential port
var _ credential_port.CredentialResolver = (*EnvResolver)(nil)

// NewEnvResolver creates an environment-backed credential resolver
func NewEnvResolver(system system_port.SystemPort, logger logger_port.LoggerPort) *EnvResolver {
	return &EnvResolver{system: system, logger: logger}
}

// Resolve fetches the credential the descriptor's auth scheme requires.
// Secrets are returned to the caller and never logged; only the presence
// check is recorded.
func (r *EnvResolver) Resolve(ctx context.Context, desc *domain.PlatformDescriptor) (*domain.Credential, error) {
	cred := &domain.Credential{
		Platform: desc.Name,
		Scheme:   desc.AuthScheme,
	}
	prefix := desc.EnvPrefix()

	switch desc.AuthScheme {
	case domain.AuthBearerToken:
		cred.Token = r.system.GetEnvironmentVariable(prefix + "_TOKEN")
		if cred.Token == "" {
			return nil, domain.NewAdapterError(desc.Name, "credentials", domain.CodeAuthUnavailable,
				prefix+"_TOKEN is not set", nil)
		}
	case domain.AuthUserPass:
		cred.Username = r.system.GetEnvironmentVariable(prefix + "_USERNAME")
		cred.Password = r.system.GetEnvironmentVariable(prefix + "_PASSWORD")
		if cred.Username == "" || cred.Password == "" {
			return nil, domain.NewAdapterError(desc.Name, "credentials", domain.CodeAuthUnavailable,
				prefix+"_USERNAME and "+prefix+"_PASSWORD must both be set", nil)
		}
	case domain.AuthConfigFile, domain.AuthNone:
		// The platform tool manages its own credential store
	}

	r.logger.DebugWithContext("credentials resolved", map[string]interface{}{
		"platform": desc.Name,
		"scheme":   string(desc.AuthScheme),
	})
	return cred, nil
}
