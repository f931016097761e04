package system_driver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"pkgdeploy-cli/port/system_port"
)

// SystemDriver implements external command execution
type SystemDriver struct{}

// Ensure SystemDriver implements SystemPort interface
var _ system_port.SystemPort = (*SystemDriver)(nil)

// NewSystemDriver creates a new system driver
func NewSystemDriver() *SystemDriver {
	return &SystemDriver{}
}

// ExecuteCommand runs a command with working directory and extra environment
func (s *SystemDriver) ExecuteCommand(ctx context.Context, workDir string, env []string, name string, args ...string) (*system_port.CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &system_port.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// Command never started (not found, permission)
		return result, err
	}

	result.ExitCode = 0
	return result, nil
}

// ExecuteCommandWithTimeout runs a command under a deadline
func (s *SystemDriver) ExecuteCommandWithTimeout(ctx context.Context, timeout time.Duration, workDir string, env []string, name string, args ...string) (*system_port.CommandResult, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.ExecuteCommand(ctxWithTimeout, workDir, env, name, args...)
}

// CheckCommandExists checks if a command exists on PATH
func (s *SystemDriver) CheckCommandExists(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

// GetEnvironmentVariable gets an environment variable value
func (s *SystemDriver) GetEnvironmentVariable(key string) string {
	return os.Getenv(key)
}
