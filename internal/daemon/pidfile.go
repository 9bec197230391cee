// Package daemon tracks a background 'forge serve' process through a PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrAlreadyRunning is returned by Acquire when a live process holds the file.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNotRunning is returned by Stop when no live process holds the file.
	ErrNotRunning = errors.New("not running")
)

// PIDFile records the PID of a background server.
type PIDFile struct {
	Path string

	// pollInterval is how often Stop checks whether the process exited.
	pollInterval time.Duration
}

// NewPIDFile creates a PIDFile for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path, pollInterval: 100 * time.Millisecond}
}

// WritePID atomically replaces the file content with pid.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID dir: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file content %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Status returns the recorded PID and whether that process is alive.
func (p *PIDFile) Status() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, alive(pid)
}

// Acquire records pid unless a live process already holds the file. A file
// left behind by a dead process is replaced.
func (p *PIDFile) Acquire(pid int) error {
	if held, running := p.Status(); running {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, held)
	}
	return p.WritePID(pid)
}

// Release removes the file if it still records pid. A missing file is not
// an error.
func (p *PIDFile) Release(pid int) error {
	held, err := p.Read()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && held != pid {
		return nil
	}
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Stop asks the recorded process to terminate, waits up to grace for it to
// exit, then kills it. The file is removed once the process is gone. A
// stale file is cleaned up and reported as ErrNotRunning.
func (p *PIDFile) Stop(grace time.Duration) (int, error) {
	pid, running := p.Status()
	if !running {
		if pid != 0 {
			_ = p.Release(pid)
		}
		return pid, ErrNotRunning
	}

	if err := terminate(pid); err != nil {
		return pid, fmt.Errorf("signal PID %d: %w", pid, err)
	}
	if !p.waitExit(pid, grace) {
		if err := kill(pid); err != nil {
			return pid, fmt.Errorf("kill PID %d: %w", pid, err)
		}
		p.waitExit(pid, grace)
	}
	return pid, p.Release(pid)
}

func (p *PIDFile) waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !alive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(p.pollInterval)
	}
}
