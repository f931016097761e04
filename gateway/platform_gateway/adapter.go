package platform_gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/gateway/command_gateway"
	"pkgdeploy-cli/port/adapter_port"
	"pkgdeploy-cli/port/filesystem_port"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/registry_port"
)

// RegistryAdapter is the descriptor-driven implementation of the platform
// lifecycle. Per-registry quirks live in the descriptor (command templates,
// output patterns, rollback methods), not in pipeline branching.
type RegistryAdapter struct {
	desc     *domain.PlatformDescriptor
	commands *command_gateway.CommandGateway
	registry registry_port.RegistryPort
	fs       filesystem_port.FileSystemPort
	logger   logger_port.LoggerPort

	cred *domain.Credential
}

// Ensure RegistryAdapter implements the adapter lifecycle
var _ adapter_port.PlatformAdapter = (*RegistryAdapter)(nil)

// NewRegistryAdapter creates an adapter for one platform descriptor
func NewRegistryAdapter(
	desc *domain.PlatformDescriptor,
	commands *command_gateway.CommandGateway,
	registry registry_port.RegistryPort,
	fs filesystem_port.FileSystemPort,
	logger logger_port.LoggerPort,
) *RegistryAdapter {
	return &RegistryAdapter{
		desc:     desc,
		commands: commands,
		registry: registry,
		fs:       fs,
		logger:   logger.WithField("platform", desc.Name),
	}
}

// Platform returns the descriptor name this adapter serves
func (a *RegistryAdapter) Platform() string {
	return a.desc.Name
}

// Init checks tool availability and credential presence
func (a *RegistryAdapter) Init(ctx context.Context, cred *domain.Credential) error {
	if a.desc.Tool != "" && !a.commands.ToolExists(a.desc.Tool) {
		return domain.NewAdapterError(a.desc.Name, "init", domain.CodeToolMissing,
			fmt.Sprintf("required tool %q not found on PATH", a.desc.Tool), nil)
	}

	switch a.desc.AuthScheme {
	case domain.AuthBearerToken:
		if cred == nil || cred.Token == "" {
			return domain.NewAdapterError(a.desc.Name, "init", domain.CodeAuthUnavailable,
				fmt.Sprintf("no token available for %s (set %s_TOKEN)", a.desc.Name, a.desc.EnvPrefix()), nil)
		}
	case domain.AuthUserPass:
		if cred == nil || cred.Username == "" || cred.Password == "" {
			return domain.NewAdapterError(a.desc.Name, "init", domain.CodeAuthUnavailable,
				fmt.Sprintf("no credentials available for %s (set %s_USERNAME and %s_PASSWORD)",
					a.desc.Name, a.desc.EnvPrefix(), a.desc.EnvPrefix()), nil)
		}
	}

	a.cred = cred
	return nil
}

// Validate resolves the version to publish. A caller-supplied version is
// written into the manifest; the pipeline is authoritative over the tree.
func (a *RegistryAdapter) Validate(ctx context.Context, workTree, requestedVersion string) (*domain.ValidateResult, error) {
	manifestPath := filepath.Join(workTree, a.desc.VersionLocator.File)
	if !a.fs.FileExists(manifestPath) {
		return nil, domain.NewAdapterError(a.desc.Name, "validate", domain.CodeManifestMissing,
			fmt.Sprintf("manifest %s not found", a.desc.VersionLocator.File), nil)
	}

	content, err := a.fs.ReadFile(manifestPath)
	if err != nil {
		return nil, domain.NewAdapterError(a.desc.Name, "validate", domain.CodeManifestMalformed,
			fmt.Sprintf("cannot read manifest %s", a.desc.VersionLocator.File), err)
	}

	current, err := ReadVersion(a.desc.VersionLocator, content)
	if err != nil {
		return nil, domain.NewAdapterError(a.desc.Name, "validate", domain.CodeManifestMalformed, err.Error(), err)
	}

	result := &domain.ValidateResult{ManifestPath: manifestPath}

	if requestedVersion == "" {
		result.ResolvedVersion = current
		return result, nil
	}

	result.ResolvedVersion = requestedVersion
	if current != requestedVersion {
		updated, err := WriteVersion(a.desc.VersionLocator, content, requestedVersion)
		if err != nil {
			return nil, domain.NewAdapterError(a.desc.Name, "validate", domain.CodeManifestMalformed, err.Error(), err)
		}
		if err := a.fs.WriteFile(manifestPath, updated, 0o644); err != nil {
			return nil, domain.NewAdapterError(a.desc.Name, "validate", domain.CodeManifestMalformed,
				fmt.Sprintf("cannot update manifest %s", a.desc.VersionLocator.File), err)
		}
		result.ManifestUpdated = true
		a.logger.InfoWithContext("manifest version updated", map[string]interface{}{
			"manifest": a.desc.VersionLocator.File,
			"from":     current,
			"to":       requestedVersion,
		})
	}
	return result, nil
}

// Build produces distribution artifacts from source. Stale dist artifacts
// are ignored; the build command re-creates them.
func (a *RegistryAdapter) Build(ctx context.Context, workTree, version string) (*domain.ArtifactDescriptor, error) {
	artifact := &domain.ArtifactDescriptor{
		Version:   version,
		Checksums: make(map[string]string),
		BuiltAt:   time.Now().UTC(),
	}

	if a.desc.BuildCommand != "" {
		result, err := a.commands.RunTemplate(ctx, workTree, a.credEnv(), a.desc.DeployTimeout,
			a.desc.BuildCommand, a.templateVars("", version, ""))
		if err != nil {
			return nil, domain.NewAdapterError(a.desc.Name, "build", domain.CodeBuildFailed, err.Error(), err)
		}
		if result.ExitCode != 0 {
			code := domain.CodeBuildFailed
			if looksLikeTestFailure(result.Combined()) {
				code = domain.CodeTestsFailed
			}
			return nil, domain.NewAdapterError(a.desc.Name, "build", code,
				firstLine(result.Combined()), nil)
		}
	}

	for _, glob := range a.desc.ArtifactGlobs {
		matches, err := a.fs.Glob(filepath.Join(workTree, glob))
		if err != nil {
			continue
		}
		for _, path := range matches {
			artifact.Paths = append(artifact.Paths, path)
			if sum, err := a.checksum(path); err == nil {
				artifact.Checksums[path] = sum
			}
		}
	}

	return artifact, nil
}

// Deploy publishes the artifacts. Success is the registry's acknowledgement:
// the tool's output is classified even on exit code zero.
func (a *RegistryAdapter) Deploy(ctx context.Context, workTree string, artifact *domain.ArtifactDescriptor) (*domain.DeployResult, error) {
	result, err := a.commands.RunTemplate(ctx, workTree, a.credEnv(), a.desc.DeployTimeout,
		a.desc.DeployCommand, a.templateVars(artifact.Package, artifact.Version, ""))
	if err != nil {
		return nil, domain.NewAdapterError(a.desc.Name, "deploy", domain.CodeTransient, err.Error(), err)
	}

	output := result.Combined()
	switch {
	case result.TimedOut:
		return nil, domain.NewAdapterError(a.desc.Name, "deploy", domain.CodeTransient,
			fmt.Sprintf("deploy timed out after %s", a.desc.DeployTimeout), nil)
	case matchAny(output, a.desc.ConflictPatterns):
		return nil, domain.NewAdapterError(a.desc.Name, "deploy", domain.CodeConflict,
			fmt.Sprintf("version %s already published", artifact.Version), nil)
	case result.ExitCode != 0 && matchAny(output, a.desc.TransientPatterns):
		return nil, domain.NewAdapterError(a.desc.Name, "deploy", domain.CodeTransient,
			firstLine(output), nil)
	case result.ExitCode != 0:
		return nil, domain.NewAdapterError(a.desc.Name, "deploy", domain.CodeRejected,
			firstLine(output), nil)
	}

	return &domain.DeployResult{
		RegistryURL: domain.ExpandURL(a.desc.PackageURL, artifact.Package, artifact.Version),
		Coordinates: fmt.Sprintf("%s@%s", artifact.Package, artifact.Version),
		Output:      output,
	}, nil
}

// Verify consults the registry's public metadata endpoint, never the local
// tool's cache
func (a *RegistryAdapter) Verify(ctx context.Context, pkg, version string) (*domain.VerifyResult, error) {
	result, err := a.registry.FetchMetadata(ctx, a.desc, pkg, version)
	if err != nil {
		return nil, err
	}
	if !result.Present {
		return result, domain.NewAdapterError(a.desc.Name, "verify", domain.CodeNotYet,
			fmt.Sprintf("%s@%s not yet visible on %s", pkg, version, a.desc.Name), nil)
	}
	if reported, ok := result.Metadata["version"].(string); ok && reported != version {
		return result, domain.NewAdapterError(a.desc.Name, "verify", domain.CodeMismatch,
			fmt.Sprintf("registry reports version %s, expected %s", reported, version), nil)
	}
	return result, nil
}

// Rollback attempts the descriptor's rollback methods in declared order;
// the first success wins. A platform already in its rolled-back state is
// detected and returned without reissuing the registry command.
func (a *RegistryAdapter) Rollback(ctx context.Context, req *domain.RollbackRequest) (*domain.RollbackResult, error) {
	if a.desc.RollbackCapability == domain.RollbackNone {
		return nil, domain.NewAdapterError(a.desc.Name, "rollback", domain.CodeNotSupported,
			fmt.Sprintf("%s does not support rollback", a.desc.Name), nil)
	}

	if verify, err := a.registry.FetchMetadata(ctx, a.desc, req.Package, req.Version); err == nil {
		if !verify.Present || verify.Yanked {
			a.logger.InfoWithContext("platform already rolled back", map[string]interface{}{
				"package": req.Package,
				"version": req.Version,
			})
			return &domain.RollbackResult{AlreadyRolledBack: true}, nil
		}
	}

	var attempted int
	var lastOutput string
	for _, method := range a.desc.RollbackMethods {
		if method.RequiresConfirmation && !req.AllowConfirmation {
			continue
		}
		attempted++

		result, err := a.commands.RunTemplate(ctx, "", a.credEnv(), method.Timeout, method.Command,
			a.templateVars(req.Package, req.Version, req.PreviousVersion))
		if err != nil {
			lastOutput = err.Error()
			continue
		}
		lastOutput = firstLine(result.Combined())
		if result.ExitCode == 0 && !result.TimedOut {
			return &domain.RollbackResult{
				MethodUsed: method.Name,
				Output:     result.Combined(),
			}, nil
		}
	}

	if attempted == 0 {
		return nil, domain.NewAdapterError(a.desc.Name, "rollback", domain.CodeManualOnly,
			fmt.Sprintf("all rollback methods for %s require confirmation", a.desc.Name), nil)
	}
	return nil, domain.NewAdapterError(a.desc.Name, "rollback", domain.CodeRollbackFailed,
		fmt.Sprintf("all %d rollback methods failed: %s", attempted, lastOutput), nil)
}

// DependencyDryRun resolves dependencies without installing
func (a *RegistryAdapter) DependencyDryRun(ctx context.Context, workTree string) error {
	if a.desc.DependencyCommand == "" {
		return nil
	}
	result, err := a.commands.RunTemplate(ctx, workTree, a.credEnv(), a.desc.VerifyTimeout,
		a.desc.DependencyCommand, a.templateVars("", "", ""))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("dependency resolution failed: %s", firstLine(result.Combined()))
	}
	return nil
}

// templateVars builds the substitution map for descriptor command templates
func (a *RegistryAdapter) templateVars(pkg, version, previousVersion string) map[string]string {
	return map[string]string{
		"package":          pkg,
		"version":          version,
		"previous_version": previousVersion,
		"registry":         a.desc.RegistryBaseURL,
	}
}

// credEnv maps the resolved credential onto the env var names the platform
// tool reads. Values are handed to the child process only, never logged.
func (a *RegistryAdapter) credEnv() []string {
	if a.cred == nil {
		return nil
	}
	var env []string
	if a.cred.Token != "" && a.desc.TokenEnv != "" {
		env = append(env, a.desc.TokenEnv+"="+a.cred.Token)
	}
	if a.cred.Username != "" && a.desc.UsernameEnv != "" {
		env = append(env, a.desc.UsernameEnv+"="+a.cred.Username)
	}
	if a.cred.Password != "" && a.desc.PasswordEnv != "" {
		env = append(env, a.desc.PasswordEnv+"="+a.cred.Password)
	}
	return env
}

// checksum computes the sha256 of an artifact file
func (a *RegistryAdapter) checksum(path string) (string, error) {
	data, err := a.fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// matchAny reports whether output contains any of the patterns,
// case-insensitively
func matchAny(output string, patterns []string) bool {
	lower := strings.ToLower(output)
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// looksLikeTestFailure separates test failures from plain build breakage
func looksLikeTestFailure(output string) bool {
	return matchAny(output, []string{"test failed", "tests failed", "failing tests", "--- FAIL"})
}

// firstLine returns the first non-empty line of command output for
// user-facing error messages
func firstLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return "no output"
}
