package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_AcquireWritesPID(t *testing.T) {
	// Given a PID path in a directory that doesn't exist yet
	pidPath := filepath.Join(t.TempDir(), "run", "catindex.pid")
	pf := NewPIDFile(pidPath)
	t.Cleanup(func() { _ = pf.Release() })

	// When acquiring
	require.NoError(t, pf.Acquire())

	// Then the file names this process and the lock is held
	data, err := os.ReadFile(pidPath)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
	assert.True(t, pf.Held())
}

func TestPIDFile_Read(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{name: "plain", content: "12345", want: 12345},
		{name: "trailing newline", content: "12345\n", want: 12345},
		{name: "garbage", content: "not-a-number", wantErr: true},
		{name: "zero", content: "0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidPath := filepath.Join(t.TempDir(), "test.pid")
			require.NoError(t, os.WriteFile(pidPath, []byte(tt.content), 0o644))

			pid, err := NewPIDFile(pidPath).Read()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pid)
		})
	}
}

func TestPIDFile_Read_NotExists(t *testing.T) {
	_, err := NewPIDFile(filepath.Join(t.TempDir(), "missing.pid")).Read()

	assert.ErrorIs(t, err, ErrPIDFileNotFound)
}

func TestPIDFile_AcquireReplacesUnlockedFile(t *testing.T) {
	// Given a PID file left behind by an engine that crashed
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("99999"), 0o644))
	pf := NewPIDFile(pidPath)
	t.Cleanup(func() { _ = pf.Release() })

	// When acquiring
	require.NoError(t, pf.Acquire())

	// Then the file now names this process
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_AcquireRefusesHeldLock(t *testing.T) {
	// Given an engine holding the PID file
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	owner := NewPIDFile(pidPath)
	require.NoError(t, owner.Acquire())
	t.Cleanup(func() { _ = owner.Release() })

	// When a second engine tries the same path
	second := NewPIDFile(pidPath)
	err := second.Acquire()

	// Then it is refused and the owner's file is untouched
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getpid()))
	assert.False(t, second.Held())
	assert.NoError(t, second.Release())
	assert.FileExists(t, pidPath)
}

func TestPIDFile_ReleaseAllowsReacquire(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	first := NewPIDFile(pidPath)
	require.NoError(t, first.Acquire())

	require.NoError(t, first.Release())
	assert.NoFileExists(t, pidPath)
	assert.False(t, first.Held())

	next := NewPIDFile(pidPath)
	require.NoError(t, next.Acquire())
	assert.NoError(t, next.Release())
}

func TestPIDFile_ReleaseWithoutAcquire(t *testing.T) {
	// Given a PID file this process never acquired
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("12345"), 0o644))

	// Then Release leaves it alone
	assert.NoError(t, NewPIDFile(pidPath).Release())
	assert.FileExists(t, pidPath)
}
