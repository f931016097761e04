package system_port

import (
	"context"
	"time"
)

// CommandResult captures the outcome of one external command invocation
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Combined returns stdout and stderr joined for pattern matching
func (r *CommandResult) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// SystemPort defines the interface for external command execution
type SystemPort interface {
	// ExecuteCommand runs a command in the given working directory with
	// extra environment variables appended to the inherited environment
	ExecuteCommand(ctx context.Context, workDir string, env []string, name string, args ...string) (*CommandResult, error)

	// ExecuteCommandWithTimeout runs a command under a deadline; on expiry
	// the result reports TimedOut
	ExecuteCommandWithTimeout(ctx context.Context, timeout time.Duration, workDir string, env []string, name string, args ...string) (*CommandResult, error)

	// CheckCommandExists checks if a command is on PATH
	CheckCommandExists(command string) bool

	// GetEnvironmentVariable gets an environment variable value
	GetEnvironmentVariable(key string) string
}
