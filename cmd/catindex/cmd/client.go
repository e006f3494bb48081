package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Aman-CERP/catindex/internal/config"
	"github.com/Aman-CERP/catindex/internal/daemon"
)

// connect returns a client for the running engine, or an error telling the
// user how to start one.
func connect(cfg *config.Config) (*daemon.Client, error) {
	client := daemon.NewClient(daemon.FromConfig(cfg.Daemon))
	if !client.IsRunning() {
		return nil, fmt.Errorf("engine is not running on %s\nRun 'catindex serve' to start it", cfg.Daemon.SocketPath)
	}
	return client, nil
}

// withClient loads the configuration, connects and runs fn.
func withClient(ctx context.Context, fn func(context.Context, *daemon.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := connect(cfg)
	if err != nil {
		return err
	}
	return fn(ctx, client)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
