package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID is very unlikely to belong to a live process.
const deadPID = 999999

func newTestPIDFile(t *testing.T) *PIDFile {
	t.Helper()
	pf := NewPIDFile(filepath.Join(t.TempDir(), "run", "forge-serve.pid"))
	pf.pollInterval = 10 * time.Millisecond
	return pf
}

func TestPIDFile_WriteAndRead(t *testing.T) {
	pf := newTestPIDFile(t)

	require.NoError(t, pf.WritePID(12345))

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)

	_, err = os.Stat(pf.Path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	pf := newTestPIDFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(pf.Path), 0o755))

	for _, content := range []string{"not-a-number\n", "0\n", "-5"} {
		require.NoError(t, os.WriteFile(pf.Path, []byte(content), 0o644))
		_, err := pf.Read()
		require.Error(t, err, content)
		assert.Contains(t, err.Error(), "invalid PID file content")
	}
}

func TestPIDFile_Status(t *testing.T) {
	pf := newTestPIDFile(t)

	pid, running := pf.Status()
	assert.Equal(t, 0, pid)
	assert.False(t, running)

	require.NoError(t, pf.WritePID(os.Getpid()))
	pid, running = pf.Status()
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, running)

	require.NoError(t, pf.WritePID(deadPID))
	pid, running = pf.Status()
	assert.Equal(t, deadPID, pid)
	assert.False(t, running)
}

func TestPIDFile_Acquire(t *testing.T) {
	pf := newTestPIDFile(t)

	require.NoError(t, pf.Acquire(os.Getpid()))

	err := pf.Acquire(12345)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Contains(t, err.Error(), "already running")

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Acquire_ReplacesStaleFile(t *testing.T) {
	pf := newTestPIDFile(t)
	require.NoError(t, pf.WritePID(deadPID))

	require.NoError(t, pf.Acquire(os.Getpid()))

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Release(t *testing.T) {
	pf := newTestPIDFile(t)

	assert.NoError(t, pf.Release(1), "missing file is fine")

	require.NoError(t, pf.WritePID(42))
	require.NoError(t, pf.Release(7))
	_, err := os.Stat(pf.Path)
	assert.NoError(t, err, "file held by another PID must survive")

	require.NoError(t, pf.Release(42))
	_, err = os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFile_Stop_NotRunning(t *testing.T) {
	pf := newTestPIDFile(t)

	pid, err := pf.Stop(time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, 0, pid)
}

func TestPIDFile_Stop_StaleFileRemoved(t *testing.T) {
	pf := newTestPIDFile(t)
	require.NoError(t, pf.WritePID(deadPID))

	pid, err := pf.Stop(time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, deadPID, pid)

	_, statErr := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(statErr))
}
