package cmd

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/config"
	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/searchindex"
)

func TestStatusCmd_NotRunning(t *testing.T) {
	// Given: a configuration whose admin socket has no engine
	path, _ := writeTestConfig(t, nil)

	// When: asking for status
	_, err := run(t, "status", "--config", path)

	// Then: the error explains how to start one
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catindex serve")
}

func TestStatusCmd_JSONAndText(t *testing.T) {
	path, cfg := writeTestConfig(t, nil)
	startEngine(t, cfg, catalog.Demo())

	out, err := run(t, "status", "--json", "--config", path)
	require.NoError(t, err)

	var st daemon.StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Running)
	assert.Equal(t, "active", st.State)

	out, err = run(t, "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Worker")
	assert.Contains(t, out, "(in-memory)")
}

func TestSubmitAndSearchCmds(t *testing.T) {
	// Given: a running engine over the demo catalog
	path, cfg := writeTestConfig(t, nil)
	startEngine(t, cfg, catalog.Demo())

	// When: the whole zone is submitted
	out, err := run(t, "submit", "subtree_added", "-f", "path=/demo", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 jobs scheduled")
	assert.Contains(t, out, "index_subtree")

	// Then: a filtered search eventually sees both reports
	require.Eventually(t, func() bool {
		out, err := run(t, "search", "--json", "--under", "/demo/home/alice/reports",
			"--kind", string(catalog.KindDataObject), "--config", path)
		if err != nil {
			return false
		}
		var res searchindex.Response
		return json.Unmarshal([]byte(out), &res) == nil && res.Total == 2
	}, 5*time.Second, 20*time.Millisecond)

	out, err = run(t, "search", "--under", "/demo/home/bob", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "/demo/home/bob/scan.tif")
	assert.Contains(t, out, "of 2 hits")
}

func TestSubmitCmd_RejectsBadInput(t *testing.T) {
	path, cfg := writeTestConfig(t, nil)
	startEngine(t, cfg, catalog.Demo())

	tests := []struct {
		name string
		args []string
	}{
		{name: "malformed field", args: []string{"submit", "item_added", "-f", "path"}},
		{name: "unknown event", args: []string{"submit", "item_exploded", "-f", "path=/demo/x"}},
		{name: "missing kind", args: []string{"submit", "item_added", "-f", "path=/demo/x"}},
		{name: "invalid over events socket", args: []string{"submit", "item_added", "--events", "-f", "path=/demo/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(tt.args, "--config", path)...)
			assert.Error(t, err)
		})
	}
}

func TestSubmitCmd_ViaEventsSocket(t *testing.T) {
	path, cfg := writeTestConfig(t, nil)
	e := startEngine(t, cfg, catalog.Demo())

	out, err := run(t, "submit", "item_added", "--events",
		"-f", "kind=data_object", "-f", "path=/demo/home/alice/notes.txt", "--config", path)

	require.NoError(t, err)
	assert.Contains(t, out, "sent to")
	require.Eventually(t, func() bool {
		return e.Bus().Published() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStateAndQueueCmds(t *testing.T) {
	// Given: an engine with its worker asleep
	path, cfg := writeTestConfig(t, nil)
	startEngine(t, cfg, catalog.Demo())

	out, err := run(t, "state", "sleep", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "active → sleep")

	out, err = run(t, "state", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "sleep\n", out)

	// When: an event is submitted
	_, err = run(t, "submit", "item_changed", "-f", "kind=data_object",
		"-f", "path=/demo/home/alice/notes.txt", "--config", path)
	require.NoError(t, err)

	// Then: the job waits in the queue
	out, err = run(t, "queue", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "queued:")
	assert.Contains(t, out, "index_item")
	assert.Contains(t, out, "/demo/home/alice/notes.txt")

	_, err = run(t, "state", "paused", "--config", path)
	assert.Error(t, err)
}

func TestReindexCmd(t *testing.T) {
	path, cfg := writeTestConfig(t, nil)
	startEngine(t, cfg, catalog.Demo())

	_, err := run(t, "reindex", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err := run(t, "reindex", "--yes", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 jobs queued for demo")
}

func TestRefreshCmd(t *testing.T) {
	path, cfg := writeTestConfig(t, nil)
	startEngine(t, cfg, catalog.Demo())

	out, err := run(t, "refresh", "--config", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Index clients refreshed")
}

func TestLeasesCmds(t *testing.T) {
	// Given: a job has leased a session for the demo zone
	path, cfg := writeTestConfig(t, nil)
	startEngine(t, cfg, catalog.Demo())
	_, err := run(t, "submit", "item_changed", "-f", "kind=data_object",
		"-f", "path=/demo/home/alice/notes.txt", "--config", path)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		out, err := run(t, "leases", "--config", path)
		return err == nil && containsZone(out, "demo")
	}, 5*time.Second, 20*time.Millisecond)

	// When: evicting without a target
	_, err = run(t, "leases", "evict", "--config", path)
	assert.Error(t, err)

	// Then: evicting all drops the lease
	out, err := run(t, "leases", "evict", "--all", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 leases evicted")

	out, err = run(t, "leases", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No cached leases")
}

func containsZone(out, zone string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, zone+" ") {
			return true
		}
	}
	return false
}

func TestDeadLettersCmd(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		path, cfg := writeTestConfig(t, nil)
		startEngine(t, cfg, catalog.Demo())

		_, err := run(t, "dead-letters", "--config", path)

		assert.Error(t, err)
	})

	t.Run("records dropped jobs", func(t *testing.T) {
		path, cfg := writeTestConfig(t, func(c *config.Config) { c.DeadLetter.Enabled = true })
		startEngine(t, cfg, catalog.Demo())

		// A job for a path the catalog does not have is dropped.
		_, err := run(t, "submit", "item_added", "-f", "kind=data_object",
			"-f", "path=/demo/home/alice/missing.csv", "--config", path)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			out, err := run(t, "dlq", "--json", "--config", path)
			if err != nil {
				return false
			}
			var res daemon.DeadLettersResult
			return json.Unmarshal([]byte(out), &res) == nil && res.Count == 1
		}, 5*time.Second, 20*time.Millisecond)

		out, err := run(t, "dead-letters", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "/demo/home/alice/missing.csv")
	})
}
