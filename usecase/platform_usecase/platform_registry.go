package platform_usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/gateway/platform_gateway"
	"pkgdeploy-cli/port/filesystem_port"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/registry_port"
)

// PlatformRegistry loads and serves platform descriptors. Built-in
// descriptors are written to the descriptor directory on first run; operator
// files in the same directory override built-ins with the same name.
type PlatformRegistry struct {
	dir      string
	fs       filesystem_port.FileSystemPort
	registry registry_port.RegistryPort
	logger   logger_port.LoggerPort

	descriptors map[string]*domain.PlatformDescriptor
	sources     map[string]string
}

// NewPlatformRegistry creates a platform registry rooted at dir
func NewPlatformRegistry(
	dir string,
	fs filesystem_port.FileSystemPort,
	registry registry_port.RegistryPort,
	logger logger_port.LoggerPort,
) *PlatformRegistry {
	return &PlatformRegistry{
		dir:         dir,
		fs:          fs,
		registry:    registry,
		logger:      logger,
		descriptors: make(map[string]*domain.PlatformDescriptor),
		sources:     make(map[string]string),
	}
}

// Load reads all descriptors from the descriptor directory, seeding it with
// the built-ins first if it is empty. Duplicate platform names across files
// are rejected; loading is fail-fast so a broken descriptor surfaces before
// any deploy starts.
func (r *PlatformRegistry) Load() error {
	if err := r.seedBuiltins(); err != nil {
		return err
	}

	entries, err := r.fs.ListDirectory(r.dir)
	if err != nil {
		return domain.NewConfigurationError(fmt.Sprintf("cannot read descriptor directory %s", r.dir), err)
	}

	loaded := make(map[string]string) // name -> source file
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(r.dir, name)
		desc, err := r.loadFile(path, ext)
		if err != nil {
			return err
		}
		if prev, dup := loaded[desc.Name]; dup {
			return domain.NewConfigurationError(
				fmt.Sprintf("platform %q defined in both %s and %s", desc.Name, prev, name), nil)
		}
		loaded[desc.Name] = name
		r.descriptors[desc.Name] = desc
		r.sources[desc.Name] = path
	}

	r.logger.InfoWithContext("platform descriptors loaded", map[string]interface{}{
		"count": len(r.descriptors),
		"dir":   r.dir,
	})
	return nil
}

// loadFile parses and validates a single descriptor file
func (r *PlatformRegistry) loadFile(path, ext string) (*domain.PlatformDescriptor, error) {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigurationError(fmt.Sprintf("cannot read descriptor %s", path), err)
	}

	var desc domain.PlatformDescriptor
	var raw map[string]interface{}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &desc); err != nil {
			return nil, domain.NewConfigurationError(fmt.Sprintf("descriptor %s is not valid JSON", path), err)
		}
		_ = json.Unmarshal(data, &raw)
	default:
		if err := yaml.Unmarshal(data, &desc); err != nil {
			return nil, domain.NewConfigurationError(fmt.Sprintf("descriptor %s is not valid YAML", path), err)
		}
	}

	// Unknown top-level keys are preserved, not interpreted
	desc.Extra = unknownKeys(raw)

	if err := desc.Validate(); err != nil {
		return nil, domain.NewConfigurationError(err.Error(), nil)
	}
	desc.ApplyDefaults()
	return &desc, nil
}

// seedBuiltins writes the shipped descriptors into an empty directory
func (r *PlatformRegistry) seedBuiltins() error {
	if err := r.fs.CreateDirectory(r.dir, 0o755); err != nil {
		return domain.NewConfigurationError(fmt.Sprintf("cannot create descriptor directory %s", r.dir), err)
	}

	entries, err := r.fs.ListDirectory(r.dir)
	if err == nil && len(entries) > 0 {
		return nil
	}

	for _, desc := range platform_gateway.BuiltinDescriptors() {
		data, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode built-in descriptor %s: %w", desc.Name, err)
		}
		path := filepath.Join(r.dir, desc.Name+".json")
		if err := r.fs.WriteFileAtomic(path, data, 0o644); err != nil {
			return domain.NewConfigurationError(fmt.Sprintf("cannot write built-in descriptor %s", path), err)
		}
	}
	r.logger.Info("seeded built-in platform descriptors", "dir", r.dir)
	return nil
}

// Get returns the descriptor for a platform name
func (r *PlatformRegistry) Get(name string) (*domain.PlatformDescriptor, error) {
	desc, ok := r.descriptors[name]
	if !ok {
		return nil, domain.NewUsageError(fmt.Sprintf("unknown platform: %s (known: %s)",
			name, strings.Join(r.Names(), ", ")))
	}
	return desc, nil
}

// ValidateDescriptor re-reads and validates the descriptor file behind one
// platform name, so an operator can check an edit without starting a deploy
func (r *PlatformRegistry) ValidateDescriptor(name string) error {
	path, ok := r.sources[name]
	if !ok {
		return domain.NewUsageError(fmt.Sprintf("unknown platform: %s (known: %s)",
			name, strings.Join(r.Names(), ", ")))
	}
	_, err := r.loadFile(path, strings.ToLower(filepath.Ext(path)))
	return err
}

// List returns all loaded descriptors sorted by name
func (r *PlatformRegistry) List() []*domain.PlatformDescriptor {
	names := r.Names()
	out := make([]*domain.PlatformDescriptor, 0, len(names))
	for _, name := range names {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Names returns the sorted platform names
func (r *PlatformRegistry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheck probes the registry endpoint of each requested platform
func (r *PlatformRegistry) HealthCheck(ctx context.Context, targets []string) ([]*domain.HealthStatus, error) {
	statuses := make([]*domain.HealthStatus, 0, len(targets))
	for _, target := range targets {
		desc, err := r.Get(target)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, r.registry.HealthCheck(ctx, desc))
	}
	return statuses, nil
}

// descriptorFields are the keys the descriptor schema interprets
var descriptorFields = map[string]struct{}{
	"name": {}, "ecosystem": {}, "registry_base_url": {}, "metadata_api_url": {},
	"versions_api_url": {}, "health_url": {}, "package_url": {}, "tool": {},
	"required_files": {}, "optional_files": {}, "version_locator": {},
	"build_command": {}, "deploy_command": {}, "dependency_command": {},
	"artifact_globs": {}, "token_env": {}, "username_env": {}, "password_env": {},
	"conflict_patterns": {}, "transient_patterns": {}, "auth_scheme": {},
	"rollback_capability": {}, "rollback_methods": {}, "recovery_actions": {},
	"deploy_timeout": {}, "verify_timeout": {}, "metadata_timeout": {},
}

// unknownKeys collects top-level keys outside the descriptor schema
func unknownKeys(raw map[string]interface{}) map[string]interface{} {
	var extra map[string]interface{}
	for key, value := range raw {
		if _, known := descriptorFields[key]; known {
			continue
		}
		if extra == nil {
			extra = make(map[string]interface{})
		}
		extra[key] = value
	}
	return extra
}
