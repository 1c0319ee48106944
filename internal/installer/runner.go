package installer

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/skratchdot/open-golang/open"

	"updateclient/internal/debug"
)

// Command describes a process to start.
type Command struct {
	Name string
	Args []string
	// InheritIO connects the child to this process's stdio.
	InheritIO bool
	// Detach starts the child in its own session or process group so it
	// outlives the caller.
	Detach bool
}

// CommandRunner executes external programs.
type CommandRunner interface {
	// LookPath reports where name resolves on PATH.
	LookPath(name string) (string, error)
	// Run executes a command to completion and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches a command without waiting for it.
	Start(cmd Command) error
}

// Opener hands a file to the desktop environment's default handler.
type Opener interface {
	// Start opens path without waiting for the handler.
	Start(path string) error
	// Run opens path and waits for the helper to report success.
	Run(path string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// LookPath implements CommandRunner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	//nolint:gosec // G204: commands are fixed tool names with installer paths
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Start implements CommandRunner.
func (ExecRunner) Start(c Command) error {
	//nolint:gosec // G204: command is the downloaded installer or a fixed shell verb
	cmd := exec.Command(c.Name, c.Args...)
	if c.InheritIO {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if c.Detach {
		setDetachedProcAttr(cmd)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Name, err)
	}
	debug.Logf("installer: started %s with PID %d", cmd.String(), cmd.Process.Pid)

	// Release the process so the OS can fully detach it
	if err := cmd.Process.Release(); err != nil {
		debug.Warnf("installer: release process: %v", err)
	}
	return nil
}

// DesktopOpener opens files with the platform helper (open, xdg-open, or
// the Windows file protocol handler).
type DesktopOpener struct{}

// Start implements Opener.
func (DesktopOpener) Start(path string) error {
	return open.Start(path)
}

// Run implements Opener.
func (DesktopOpener) Run(path string) error {
	return open.Run(path)
}
