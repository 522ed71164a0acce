//go:build !linux && !windows

package runtime

import "os/exec"

// setPlatformSpecificAttrs has nothing to set outside Linux.
func setPlatformSpecificAttrs(_ *exec.Cmd) {}
