//go:build !windows

package installer

import (
	"os/exec"
	"syscall"
)

// setDetachedProcAttr runs the child in a new session, making it
// independent of the host application's process group.
func setDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
