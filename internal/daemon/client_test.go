package daemon

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

func testClient(socketPath string) *Client {
	return NewClient(Config{SocketPath: socketPath, Timeout: 5 * time.Second})
}

func TestNewClient(t *testing.T) {
	cfg := DefaultConfig()
	client := NewClient(cfg)

	assert.Equal(t, cfg.SocketPath, client.socketPath)
	assert.Equal(t, cfg.Timeout, client.timeout)

	assert.Equal(t, 30*time.Second, NewClient(Config{SocketPath: "/tmp/x.sock"}).timeout)
}

func TestClient_IsRunning_NoSocket(t *testing.T) {
	client := testClient(filepath.Join(t.TempDir(), "nonexistent.sock"))

	assert.False(t, client.IsRunning())
	assert.Error(t, client.Ping(context.Background()))
}

func TestClient_IsRunning_WithSocket(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	assert.True(t, testClient(socketPath).IsRunning())
}

func TestClient_Methods(t *testing.T) {
	h := newFakeHandler()
	_, socketPath := startServer(t, h)
	client := testClient(socketPath)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 3, status.QueueLength)

	queue, err := client.Queue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, queue.Length)
	require.Len(t, queue.Sample, 1)
	assert.Equal(t, "/z/a", queue.Sample[0].Path)
	h.with(func() { assert.Equal(t, 10, h.sample) })

	st, err := client.SetState(ctx, "sleep")
	require.NoError(t, err)
	assert.Equal(t, "active", st.Previous)
	assert.Equal(t, "sleep", st.State)

	ref, err := client.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ref.Refreshes)

	re, err := client.Reindex(ctx, []string{"z", "archive"})
	require.NoError(t, err)
	assert.Equal(t, 4, re.Enqueued)
	h.with(func() { assert.Equal(t, []string{"z", "archive"}, h.zones) })

	sub, err := client.Submit(ctx, "item-added", map[string]any{"path": "/z/a", "kind": "data_object"})
	require.NoError(t, err)
	assert.Len(t, sub.Jobs, 1)
	h.with(func() {
		assert.Equal(t, "item-added", h.event)
		assert.Equal(t, "/z/a", h.fields["path"])
	})

	res, err := client.Search(ctx, SearchParams{Zone: "z", Text: "report", Users: []string{"7"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
	h.with(func() {
		assert.Equal(t, "report", h.search.Text)
		assert.Equal(t, []string{"7"}, h.search.Users)
	})

	leases, err := client.Leases(ctx)
	require.NoError(t, err)
	require.Len(t, leases.Leases, 1)
	assert.Equal(t, "abcd", leases.Leases[0].Fingerprint)

	ev, err := client.EvictLease(ctx, "z", false)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Evicted)
	h.with(func() { assert.Equal(t, "z", h.evicted) })

	dead, err := client.DeadLetters(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, dead.Count)
	assert.Equal(t, "catalog_error", dead.Entries[0].Reason)
}

func TestClient_ErrorCarriesCode(t *testing.T) {
	_, socketPath := startServer(t, newFakeHandler())

	_, err := testClient(socketPath).Submit(context.Background(), "bogus", nil)

	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeInvalidEvent, rpcErr.Code)
	require.NotNil(t, rpcErr.Data)
	assert.Equal(t, engerrors.ErrCodeInvalidEvent, rpcErr.Data.Code)
	assert.True(t, engerrors.HasCode(err, engerrors.ErrCodeInvalidEvent))
}

func TestClient_SearchValidatesLocally(t *testing.T) {
	client := testClient(filepath.Join(t.TempDir(), "unused.sock"))

	_, err := client.Search(context.Background(), SearchParams{Under: "relative"})

	assert.ErrorContains(t, err, "invalid params")
}
