// Package process provides pid liveness checks for Unix-like systems.
package process

import (
	"os"
	"syscall"
)

// IsAlive reports whether a process with the given PID is still running.
// It sends signal 0, which probes existence without delivering a signal.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// os.FindProcess never fails on Unix.
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// nil means alive with permission; EPERM means alive without
	// permission (e.g. owned by another user); ESRCH means gone.
	err = proc.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}
