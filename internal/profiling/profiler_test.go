package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nonEmpty(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), path)
}

func TestSession_AllProfiles(t *testing.T) {
	// Given: every profile requested
	dir := t.TempDir()
	opts := Options{
		CPU:   filepath.Join(dir, "cpu.prof"),
		Heap:  filepath.Join(dir, "heap.prof"),
		Trace: filepath.Join(dir, "trace.out"),
	}
	require.True(t, opts.Enabled())

	// When: a session runs some work and stops
	s, err := Start(opts)
	require.NoError(t, err)
	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i
	}
	_ = sum
	require.NoError(t, s.Stop())

	// Then: all three files have content and a second Stop is harmless
	nonEmpty(t, opts.CPU)
	nonEmpty(t, opts.Heap)
	nonEmpty(t, opts.Trace)
	assert.NoError(t, s.Stop())
}

func TestSession_NothingRequested(t *testing.T) {
	assert.False(t, Options{}.Enabled())

	s, err := Start(Options{})

	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}

func TestStart_BadPathStopsCPU(t *testing.T) {
	dir := t.TempDir()

	// Given: a trace path that cannot be created
	_, err := Start(Options{
		CPU:   filepath.Join(dir, "cpu.prof"),
		Trace: filepath.Join(dir, "missing", "trace.out"),
	})
	require.Error(t, err)

	// Then: CPU profiling was released and can start again
	s, err := Start(Options{CPU: filepath.Join(dir, "cpu2.prof")})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}

func TestWriteProfile(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"goroutine", "allocs", "block"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".prof")
			require.NoError(t, WriteProfile(name, path))
			nonEmpty(t, path)
		})
	}

	assert.Error(t, WriteProfile("no-such-profile", filepath.Join(dir, "x.prof")))
}
