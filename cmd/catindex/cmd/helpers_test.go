package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/config"
	"github.com/Aman-CERP/catindex/internal/engine"
)

// shortTempDir keeps socket paths under the Unix socket length limit.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "cix-")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// writeTestConfig writes an isolated configuration and returns its path.
func writeTestConfig(t *testing.T, mutate func(*config.Config)) (string, *config.Config) {
	t.Helper()
	dir := shortTempDir(t)
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := config.NewConfig()
	cfg.Worker.TickInterval = time.Millisecond
	cfg.Index.IngestPath = ""
	cfg.Index.QueryPath = ""
	cfg.Credentials.TokenFile = filepath.Join(dir, "service.token")
	cfg.Daemon.SocketPath = filepath.Join(dir, "a.sock")
	cfg.Daemon.EventsSocketPath = filepath.Join(dir, "e.sock")
	cfg.Daemon.PIDPath = filepath.Join(dir, "catindex.pid")
	cfg.Daemon.MetricsAddr = ""
	cfg.Daemon.Timeout = 5 * time.Second
	cfg.DeadLetter.Path = filepath.Join(dir, "dead.db")
	cfg.Logging.File = filepath.Join(dir, "engine.log")
	if mutate != nil {
		mutate(cfg)
	}

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))
	return path, cfg
}

// startEngine runs an engine over m until the test ends.
func startEngine(t *testing.T, cfg *config.Config, m *catalog.Memory) *engine.Engine {
	t.Helper()
	e, err := engine.New(cfg, engine.Deps{Catalog: m})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()
	<-e.Server().Ready()
	<-e.Listener().Ready()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = e.Close()
	})
	return e
}

// run executes the root command with args and returns combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}
