package validation_usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/gateway/platform_gateway"
	"pkgdeploy-cli/port/adapter_port"
	"pkgdeploy-cli/port/filesystem_port"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/registry_port"
)

// allowedLicenses is the license identifier allow-list applied when the
// manifest declares one
var allowedLicenses = map[string]struct{}{
	"MIT": {}, "Apache-2.0": {}, "BSD-2-Clause": {}, "BSD-3-Clause": {},
	"ISC": {}, "MPL-2.0": {}, "Unlicense": {}, "LGPL-3.0": {}, "GPL-3.0": {},
}

// Validator runs the pre-deploy gate: every required check for every target
// platform must pass before any platform deploys
type Validator struct {
	fs       filesystem_port.FileSystemPort
	registry registry_port.RegistryPort
	logger   logger_port.LoggerPort
}

// NewValidator creates a pre-deploy validator
func NewValidator(fs filesystem_port.FileSystemPort, registry registry_port.RegistryPort, logger logger_port.LoggerPort) *Validator {
	return &Validator{fs: fs, registry: registry, logger: logger}
}

// ValidateTarget runs the file, manifest and dependency checks for one
// platform. The report accumulates across targets; the caller inspects
// HasBlockingFailure once all targets have run.
func (v *Validator) ValidateTarget(
	ctx context.Context,
	report *domain.ValidationReport,
	desc *domain.PlatformDescriptor,
	adapter adapter_port.PlatformAdapter,
	workTree string,
	opts *domain.DeploymentOptions,
) {
	v.checkRequiredFiles(report, desc, workTree)
	v.checkManifest(report, desc, workTree)
	v.checkDependencies(ctx, report, desc, adapter, workTree)
	v.checkHealth(ctx, report, desc, opts)
}

// checkRequiredFiles verifies the descriptor's required files exist in the
// working tree. Globs in required_files match at least one file.
func (v *Validator) checkRequiredFiles(report *domain.ValidationReport, desc *domain.PlatformDescriptor, workTree string) {
	for _, required := range desc.RequiredFiles {
		if strings.ContainsAny(required, "*?[") {
			matches, err := v.fs.Glob(filepath.Join(workTree, required))
			if err != nil || len(matches) == 0 {
				report.AddFailure("required_files", desc.Name, fmt.Sprintf("no file matches %s", required))
				continue
			}
			report.AddPass("required_files", desc.Name, required)
			continue
		}
		if !v.fs.FileExists(filepath.Join(workTree, required)) {
			report.AddFailure("required_files", desc.Name, fmt.Sprintf("%s is missing", required))
			continue
		}
		report.AddPass("required_files", desc.Name, required)
	}

	for _, optional := range desc.OptionalFiles {
		if !v.fs.FileExists(filepath.Join(workTree, optional)) {
			report.AddWarning("optional_files", desc.Name, fmt.Sprintf("%s is missing", optional))
		}
	}
}

// licenseFiles are the conventional names a license ships under when the
// manifest does not declare one
var licenseFiles = []string{"LICENSE", "LICENSE.md", "LICENSE.txt", "LICENCE", "COPYING"}

// checkManifest verifies the version manifest declares a version and, for
// JSON manifests, a package name. The license gate runs on every manifest.
func (v *Validator) checkManifest(report *domain.ValidationReport, desc *domain.PlatformDescriptor, workTree string) {
	path := filepath.Join(workTree, desc.VersionLocator.File)
	data, err := v.fs.ReadFile(path)
	if err != nil {
		report.AddFailure("manifest", desc.Name, fmt.Sprintf("cannot read %s", desc.VersionLocator.File))
		return
	}

	if _, err := platform_gateway.ReadVersion(desc.VersionLocator, data); err != nil {
		report.AddFailure("manifest", desc.Name, fmt.Sprintf("%s declares no version", desc.VersionLocator.File))
		return
	}

	declared := ""
	if strings.HasSuffix(path, ".json") {
		var manifest map[string]interface{}
		if err := json.Unmarshal(data, &manifest); err != nil {
			report.AddFailure("manifest", desc.Name, fmt.Sprintf("%s is not valid JSON", desc.VersionLocator.File))
			return
		}
		if name, _ := manifest["name"].(string); name == "" {
			report.AddFailure("manifest", desc.Name, fmt.Sprintf("%s has no name field", desc.VersionLocator.File))
			return
		}
		declared, _ = manifest["license"].(string)
	}
	report.AddPass("manifest", desc.Name, desc.VersionLocator.File)

	v.checkLicense(report, desc, workTree, declared)
}

// checkLicense requires either a declared license on the allow-list or a
// license file in the working tree
func (v *Validator) checkLicense(report *domain.ValidationReport, desc *domain.PlatformDescriptor, workTree string, declared string) {
	if declared != "" {
		if _, allowed := allowedLicenses[declared]; !allowed {
			report.AddFailure("license", desc.Name, fmt.Sprintf("license %q is not on the allow-list", declared))
			return
		}
		report.AddPass("license", desc.Name, declared)
		return
	}
	for _, name := range licenseFiles {
		if v.fs.FileExists(filepath.Join(workTree, name)) {
			report.AddPass("license", desc.Name, name)
			return
		}
	}
	report.AddFailure("license", desc.Name, "no license declared in the manifest and no license file in the working tree")
}

// checkDependencies asks the adapter to resolve dependencies without
// installing
func (v *Validator) checkDependencies(ctx context.Context, report *domain.ValidationReport, desc *domain.PlatformDescriptor, adapter adapter_port.PlatformAdapter, workTree string) {
	if desc.DependencyCommand == "" {
		return
	}
	if err := adapter.DependencyDryRun(ctx, workTree); err != nil {
		report.AddFailure("dependencies", desc.Name, err.Error())
		return
	}
	report.AddPass("dependencies", desc.Name, "resolved")
}

// checkHealth probes the registry endpoint. Health is advisory: a down
// registry is a warning unless strict health is requested.
func (v *Validator) checkHealth(ctx context.Context, report *domain.ValidationReport, desc *domain.PlatformDescriptor, opts *domain.DeploymentOptions) {
	status := v.registry.HealthCheck(ctx, desc)
	switch status.State {
	case domain.HealthOK:
		report.AddPass("registry_health", desc.Name, "ok")
	case domain.HealthDegraded:
		report.AddWarning("registry_health", desc.Name, status.Detail)
	case domain.HealthDown:
		if opts != nil && opts.StrictHealth {
			report.AddFailure("registry_health", desc.Name, status.Detail)
			return
		}
		report.AddWarning("registry_health", desc.Name, status.Detail)
		v.logger.WarnWithContext("registry appears down, proceeding anyway", map[string]interface{}{
			"platform": desc.Name,
			"detail":   status.Detail,
		})
	}
}
