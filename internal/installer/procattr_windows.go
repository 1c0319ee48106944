package installer

import (
	"os/exec"
	"syscall"
)

// setDetachedProcAttr runs the child detached from the host application's
// console and process group.
func setDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x00000008, // 0x00000008 is DETACHED_PROCESS
	}
}
