package domain

import (
	"time"
)

// Credential is a resolved secret handle for one registry. Values are held
// briefly by adapters and must never be logged.
type Credential struct {
	Platform string
	Scheme   AuthScheme
	Token    string
	Username string
	Password string
}

// ValidateResult is the outcome of adapter Validate: the version the pipeline
// will publish, and whether the manifest was rewritten to carry it.
type ValidateResult struct {
	ResolvedVersion string `json:"resolved_version"`
	ManifestPath    string `json:"manifest_path"`
	ManifestUpdated bool   `json:"manifest_updated"`
}

// ArtifactDescriptor describes what Build produced. Package carries the
// registry package identifier and is filled in by the pipeline.
type ArtifactDescriptor struct {
	Package   string            `json:"package"`
	Version   string            `json:"version"`
	Paths     []string          `json:"paths"`
	Checksums map[string]string `json:"checksums,omitempty"`
	BuiltAt   time.Time         `json:"built_at"`
}

// RollbackRequest is the input to one platform rollback attempt.
// AllowConfirmation reports whether confirmation-gated methods may run:
// true in manual mode or when the caller explicitly overrode confirmation.
type RollbackRequest struct {
	Package           string
	Version           string
	PreviousVersion   string
	AllowConfirmation bool
}

// DeployResult is the registry's acknowledgement of a publish
type DeployResult struct {
	RegistryURL string `json:"registry_url,omitempty"`
	Coordinates string `json:"coordinates,omitempty"`
	Output      string `json:"output,omitempty"`
}

// VerifyResult reports what the registry's public metadata API sees
type VerifyResult struct {
	Present   bool                   `json:"present"`
	Yanked    bool                   `json:"yanked,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CheckedAt time.Time              `json:"checked_at"`
}

// RollbackResult is the outcome of one platform rollback
type RollbackResult struct {
	MethodUsed        string `json:"method_used,omitempty"`
	AlreadyRolledBack bool   `json:"already_rolled_back,omitempty"`
	Output            string `json:"output,omitempty"`
}
