//go:build windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func forwardedSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// forward has no process-group delivery on Windows; interrupt maps to
// killing the child.
func forward(cmd *exec.Cmd, _ os.Signal) {
	terminate(cmd)
}

func terminate(cmd *exec.Cmd) {
	if p := cmd.Process; p != nil {
		p.Kill()
	}
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return 1
}
