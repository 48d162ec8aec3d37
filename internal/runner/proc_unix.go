//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

// sysProcAttr puts the child in its own process group so signals can
// be forwarded to the whole tree.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func forwardedSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}
}

// forward relays a signal to the child's process group.
func forward(cmd *exec.Cmd, sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	if p := cmd.Process; p != nil {
		syscall.Kill(-p.Pid, s)
	}
}

// terminate asks the child's process group to stop.
func terminate(cmd *exec.Cmd) {
	if p := cmd.Process; p != nil {
		syscall.Kill(-p.Pid, syscall.SIGTERM)
	}
}

// exitStatus maps a Wait error to the shell-visible exit code. A child
// killed by a signal reports 128 plus the signal number, matching what
// shells present.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return 1
	}
	ws, ok := ee.Sys().(syscall.WaitStatus)
	if ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ee.ExitCode()
}
