//go:build linux

package runtime

import (
	"os/exec"
	"syscall"
)

// setPlatformSpecificAttrs configures process attributes specifically for Linux systems.
// It uses Pdeathsig so that a relay receives SIGINT, and still sends its
// end-notices, if the directory process dies first.
func setPlatformSpecificAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGINT,
	}
}
