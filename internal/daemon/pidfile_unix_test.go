//go:build !windows

package daemon

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_Stop_TerminatesProcess(t *testing.T) {
	child := exec.Command("sleep", "30")
	require.NoError(t, child.Start())
	// Reap the child so it does not linger as a zombie after the signal.
	done := make(chan struct{})
	go func() {
		_ = child.Wait()
		close(done)
	}()

	pf := newTestPIDFile(t)
	require.NoError(t, pf.Acquire(child.Process.Pid))

	pid, err := pf.Stop(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, child.Process.Pid, pid)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}

	_, statErr := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(statErr))
}
