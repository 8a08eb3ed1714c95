//go:build windows

package git

import "os/exec"

// Process groups are a POSIX concept; on Windows the direct child is all we
// can reliably kill.
func setProcessGroup(cmd *exec.Cmd) {}

func terminateProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
