//go:build windows

package daemon

import (
	"os"
	"syscall"
)

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Windows; probe with a zero signal.
	return proc.Signal(syscall.Signal(0)) == nil
}

// terminate kills outright: Windows has no catchable SIGTERM.
func terminate(pid int) error { return kill(pid) }

func kill(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
