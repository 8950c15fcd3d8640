// Package command abstracts process execution so callers that shell
// out to system tools can be tested without running them.
package command

import (
	"context"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single system-tool invocation.
const DefaultTimeout = 10 * time.Second

// Executor creates exec.Cmd instances. This abstraction allows for
// dependency injection, enabling test-specific command creation logic
// (e.g., setting up a PATH with mock binaries) without modifying
// production code.
type Executor interface {
	// Command creates a new exec.Cmd instance for the given command and arguments.
	Command(name string, args ...string) *exec.Cmd

	// CommandContext creates a new context-aware exec.Cmd instance.
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor is the production implementation of the Executor interface,
// which uses the standard os/exec package to create commands.
type RealExecutor struct{}

// Command creates a standard exec.Cmd.
func (e *RealExecutor) Command(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

// CommandContext creates a standard context-aware exec.Cmd.
func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// Output runs a command under the executor with a bounded timeout and
// returns its stdout.
func Output(ctx context.Context, e Executor, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	return e.CommandContext(ctx, name, args...).Output()
}
