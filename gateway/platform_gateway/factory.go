package platform_gateway

import (
	"fmt"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/gateway/command_gateway"
	"pkgdeploy-cli/port/adapter_port"
	"pkgdeploy-cli/port/filesystem_port"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/registry_port"
)

// Factory builds registry adapters from descriptors
type Factory struct {
	commands *command_gateway.CommandGateway
	registry registry_port.RegistryPort
	fs       filesystem_port.FileSystemPort
	logger   logger_port.LoggerPort
}

// Ensure Factory implements the factory port
var _ adapter_port.AdapterFactory = (*Factory)(nil)

// NewFactory creates a new adapter factory
func NewFactory(
	commands *command_gateway.CommandGateway,
	registry registry_port.RegistryPort,
	fs filesystem_port.FileSystemPort,
	logger logger_port.LoggerPort,
) *Factory {
	return &Factory{
		commands: commands,
		registry: registry,
		fs:       fs,
		logger:   logger,
	}
}

// AdapterFor returns an adapter bound to the given descriptor
func (f *Factory) AdapterFor(desc *domain.PlatformDescriptor) (adapter_port.PlatformAdapter, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("cannot build adapter: %w", err)
	}
	return NewRegistryAdapter(desc, f.commands, f.registry, f.fs, f.logger), nil
}
