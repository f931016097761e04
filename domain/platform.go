package domain

import (
	"fmt"
	"strings"
	"time"
)

// AuthScheme represents how an adapter authenticates against a registry
type AuthScheme string

const (
	AuthBearerToken AuthScheme = "bearer_token"
	AuthUserPass    AuthScheme = "userpass"
	AuthConfigFile  AuthScheme = "config_file"
	AuthNone        AuthScheme = "none"
)

// IsValid checks if the auth scheme is valid
func (a AuthScheme) IsValid() bool {
	switch a {
	case AuthBearerToken, AuthUserPass, AuthConfigFile, AuthNone:
		return true
	default:
		return false
	}
}

// RollbackCapability represents what kind of rollback a registry supports
type RollbackCapability string

const (
	RollbackUnpublish  RollbackCapability = "unpublish"
	RollbackYank       RollbackCapability = "yank"
	RollbackTagRewrite RollbackCapability = "tag_rewrite"
	RollbackRetagImage RollbackCapability = "retag_image"
	RollbackNone       RollbackCapability = "none"
)

// IsValid checks if the rollback capability is valid
func (c RollbackCapability) IsValid() bool {
	switch c {
	case RollbackUnpublish, RollbackYank, RollbackTagRewrite, RollbackRetagImage, RollbackNone:
		return true
	default:
		return false
	}
}

// RollbackMethod describes one way to undo a release on a registry.
// Methods are attempted in declared order; the first success wins.
type RollbackMethod struct {
	Name                 string        `json:"name" yaml:"name"`
	Command              string        `json:"command" yaml:"command"`
	Timeout              time.Duration `json:"timeout" yaml:"timeout"`
	RequiresConfirmation bool          `json:"requires_confirmation" yaml:"requires_confirmation"`
}

// RecoveryActionSpec describes a post-rollback hook (e.g. restore a dist-tag)
type RecoveryActionSpec struct {
	Name    string        `json:"name" yaml:"name"`
	Command string        `json:"command" yaml:"command"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// VersionLocator tells the adapter where a package version lives in the
// working tree. Either Field (for JSON manifests) or Pattern (a regex with a
// single capture group around the version) is set.
type VersionLocator struct {
	File    string `json:"file" yaml:"file"`
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// PlatformDescriptor is the static declarative description of one registry.
// Descriptors are immutable after load.
type PlatformDescriptor struct {
	Name            string   `json:"name" yaml:"name"`
	Ecosystem       string   `json:"ecosystem" yaml:"ecosystem"`
	RegistryBaseURL string   `json:"registry_base_url" yaml:"registry_base_url"`
	MetadataAPIURL  string   `json:"metadata_api_url" yaml:"metadata_api_url"`
	VersionsAPIURL  string   `json:"versions_api_url,omitempty" yaml:"versions_api_url,omitempty"`
	HealthURL       string   `json:"health_url,omitempty" yaml:"health_url,omitempty"`
	PackageURL      string   `json:"package_url,omitempty" yaml:"package_url,omitempty"`
	Tool            string   `json:"tool" yaml:"tool"`
	RequiredFiles   []string `json:"required_files" yaml:"required_files"`
	OptionalFiles   []string `json:"optional_files,omitempty" yaml:"optional_files,omitempty"`

	VersionLocator VersionLocator `json:"version_locator" yaml:"version_locator"`

	BuildCommand      string   `json:"build_command,omitempty" yaml:"build_command,omitempty"`
	DeployCommand     string   `json:"deploy_command" yaml:"deploy_command"`
	DependencyCommand string   `json:"dependency_command,omitempty" yaml:"dependency_command,omitempty"`
	ArtifactGlobs     []string `json:"artifact_globs,omitempty" yaml:"artifact_globs,omitempty"`

	// Environment variable names the platform tool reads credentials from
	TokenEnv    string `json:"token_env,omitempty" yaml:"token_env,omitempty"`
	UsernameEnv string `json:"username_env,omitempty" yaml:"username_env,omitempty"`
	PasswordEnv string `json:"password_env,omitempty" yaml:"password_env,omitempty"`

	// Output classification for Deploy: matched against the tool's combined
	// output when the exit code alone is ambiguous.
	ConflictPatterns  []string `json:"conflict_patterns,omitempty" yaml:"conflict_patterns,omitempty"`
	TransientPatterns []string `json:"transient_patterns,omitempty" yaml:"transient_patterns,omitempty"`

	AuthScheme         AuthScheme           `json:"auth_scheme" yaml:"auth_scheme"`
	RollbackCapability RollbackCapability   `json:"rollback_capability" yaml:"rollback_capability"`
	RollbackMethods    []RollbackMethod     `json:"rollback_methods" yaml:"rollback_methods"`
	RecoveryActions    []RecoveryActionSpec `json:"recovery_actions,omitempty" yaml:"recovery_actions,omitempty"`

	DeployTimeout   time.Duration `json:"deploy_timeout,omitempty" yaml:"deploy_timeout,omitempty"`
	VerifyTimeout   time.Duration `json:"verify_timeout,omitempty" yaml:"verify_timeout,omitempty"`
	MetadataTimeout time.Duration `json:"metadata_timeout,omitempty" yaml:"metadata_timeout,omitempty"`

	// Extra preserves unknown descriptor keys. They are never interpreted.
	Extra map[string]interface{} `json:"-" yaml:"-"`
}

// Default command timeouts applied when a descriptor leaves them unset
const (
	DefaultDeployTimeout   = 300 * time.Second
	DefaultVerifyTimeout   = 60 * time.Second
	DefaultMetadataTimeout = 30 * time.Second
)

// Validate checks that all required descriptor fields are present
func (d *PlatformDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor is missing required field: name")
	}
	if d.Ecosystem == "" {
		return fmt.Errorf("descriptor %s is missing required field: ecosystem", d.Name)
	}
	if d.RegistryBaseURL == "" {
		return fmt.Errorf("descriptor %s is missing required field: registry_base_url", d.Name)
	}
	if d.MetadataAPIURL == "" {
		return fmt.Errorf("descriptor %s is missing required field: metadata_api_url", d.Name)
	}
	if len(d.RequiredFiles) == 0 {
		return fmt.Errorf("descriptor %s is missing required field: required_files", d.Name)
	}
	if !d.AuthScheme.IsValid() {
		return fmt.Errorf("descriptor %s has invalid auth_scheme: %s", d.Name, d.AuthScheme)
	}
	if !d.RollbackCapability.IsValid() {
		return fmt.Errorf("descriptor %s has invalid rollback_capability: %s", d.Name, d.RollbackCapability)
	}
	if d.RollbackCapability != RollbackNone && len(d.RollbackMethods) == 0 {
		return fmt.Errorf("descriptor %s declares rollback_capability %s but no rollback_methods", d.Name, d.RollbackCapability)
	}
	return nil
}

// ApplyDefaults fills unset timeouts and the health endpoint
func (d *PlatformDescriptor) ApplyDefaults() {
	if d.DeployTimeout == 0 {
		d.DeployTimeout = DefaultDeployTimeout
	}
	if d.VerifyTimeout == 0 {
		d.VerifyTimeout = DefaultVerifyTimeout
	}
	if d.MetadataTimeout == 0 {
		d.MetadataTimeout = DefaultMetadataTimeout
	}
	if d.HealthURL == "" {
		d.HealthURL = d.RegistryBaseURL
	}
}

// ExpandURL renders a descriptor URL template for a package and version
func ExpandURL(template, pkg, version string) string {
	expanded := strings.ReplaceAll(template, "{package}", pkg)
	return strings.ReplaceAll(expanded, "{version}", version)
}

// MetadataURL returns the metadata endpoint for a package version
func (d *PlatformDescriptor) MetadataURL(pkg, version string) string {
	return ExpandURL(d.MetadataAPIURL, pkg, version)
}

// EnvPrefix returns the environment variable prefix for this platform,
// e.g. "dockerhub" -> "DOCKERHUB"
func (d *PlatformDescriptor) EnvPrefix() string {
	upper := strings.ToUpper(d.Name)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
}

// HealthState represents the advisory health of a registry
type HealthState string

const (
	HealthOK       HealthState = "ok"
	HealthDegraded HealthState = "degraded"
	HealthDown     HealthState = "down"
)

// HealthStatus is the result of a registry health check
type HealthStatus struct {
	Platform  string      `json:"platform"`
	State     HealthState `json:"state"`
	Detail    string      `json:"detail,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}
