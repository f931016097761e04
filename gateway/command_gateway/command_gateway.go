package command_gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/system_port"
)

// CommandGateway runs descriptor-declared tool commands with contextual
// logging and per-command timeouts
type CommandGateway struct {
	system system_port.SystemPort
	logger logger_port.LoggerPort
}

// NewCommandGateway creates a new command gateway
func NewCommandGateway(system system_port.SystemPort, logger logger_port.LoggerPort) *CommandGateway {
	return &CommandGateway{
		system: system,
		logger: logger,
	}
}

// RenderTemplate expands the placeholders a descriptor command may carry:
// {package}, {version}, {previous_version} and {registry}. The rendered
// string is split on whitespace; descriptor commands do not use shell quoting.
func RenderTemplate(template string, vars map[string]string) []string {
	rendered := template
	for key, value := range vars {
		rendered = strings.ReplaceAll(rendered, "{"+key+"}", value)
	}
	return strings.Fields(rendered)
}

// Run executes a command with timeout, env injection and logging
func (g *CommandGateway) Run(ctx context.Context, workDir string, env []string, timeout time.Duration, name string, args ...string) (*system_port.CommandResult, error) {
	g.logger.DebugWithContext("executing command", map[string]interface{}{
		"command": name,
		"args":    strings.Join(args, " "),
		"workdir": workDir,
		"timeout": timeout.String(),
	})

	result, err := g.system.ExecuteCommandWithTimeout(ctx, timeout, workDir, env, name, args...)
	if err != nil {
		g.logger.ErrorWithContext("command did not start", map[string]interface{}{
			"command": name,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("command %s did not start: %w", name, err)
	}

	g.logger.DebugWithContext("command finished", map[string]interface{}{
		"command":   name,
		"exit_code": result.ExitCode,
		"timed_out": result.TimedOut,
		"duration":  result.Duration.String(),
	})

	return result, nil
}

// RunTemplate renders and executes a command template. The first field is
// the tool, the rest are its arguments.
func (g *CommandGateway) RunTemplate(ctx context.Context, workDir string, env []string, timeout time.Duration, template string, vars map[string]string) (*system_port.CommandResult, error) {
	fields := RenderTemplate(template, vars)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command template")
	}
	if timeout == 0 {
		timeout = domain.DefaultDeployTimeout
	}
	return g.Run(ctx, workDir, env, timeout, fields[0], fields[1:]...)
}

// ToolExists checks if a tool is available on PATH
func (g *CommandGateway) ToolExists(tool string) bool {
	return g.system.CheckCommandExists(tool)
}
