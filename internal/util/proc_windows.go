//go:build windows

package util

import (
	"os/exec"
	"syscall"
)

// configureProcess hides the console window ffmpeg would otherwise open.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
