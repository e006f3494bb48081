package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/catindex/internal/searchindex"
)

const defaultClientTimeout = 30 * time.Second

// Client talks to a running engine's admin socket. Every call dials a
// fresh connection, so a Client is safe for concurrent use.
type Client struct {
	socketPath string
	timeout    time.Duration
	seq        atomic.Uint64
}

// NewClient returns a client for cfg.SocketPath. A non-positive
// cfg.Timeout means 30s.
func NewClient(cfg Config) *Client {
	c := &Client{socketPath: cfg.SocketPath, timeout: cfg.Timeout}
	if c.timeout <= 0 {
		c.timeout = defaultClientTimeout
	}
	return c
}

// IsRunning reports whether something accepts connections on the socket.
func (c *Client) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	conn, err := c.dial(ctx)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (c *Client) Ping(ctx context.Context) error {
	res, err := invoke[PingResult](ctx, c, MethodPing, nil)
	if err != nil {
		return err
	}
	if !res.Pong {
		return errors.New("ping: engine answered without pong")
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	return invoke[StatusResult](ctx, c, MethodStatus, nil)
}

// Queue returns the queue length and up to sample jobs from its head.
func (c *Client) Queue(ctx context.Context, sample int) (*QueueResult, error) {
	return invoke[QueueResult](ctx, c, MethodQueue, QueueParams{Sample: sample})
}

func (c *Client) SetState(ctx context.Context, state string) (*SetStateResult, error) {
	return invoke[SetStateResult](ctx, c, MethodSetState, SetStateParams{State: state})
}

// Refresh recreates the engine's index client handles.
func (c *Client) Refresh(ctx context.Context) (*RefreshResult, error) {
	return invoke[RefreshResult](ctx, c, MethodRefresh, nil)
}

// Reindex recreates the index and enqueues a full walk of zones.
func (c *Client) Reindex(ctx context.Context, zones []string) (*ReindexResult, error) {
	return invoke[ReindexResult](ctx, c, MethodReindex, ReindexParams{Zones: zones})
}

// Submit hands a catalog event to the scheduler.
func (c *Client) Submit(ctx context.Context, event string, fields map[string]any) (*SubmitResult, error) {
	return invoke[SubmitResult](ctx, c, MethodSubmit, SubmitParams{Event: event, Fields: fields})
}

// Search queries the engine's index. Params are checked before dialing.
func (c *Client) Search(ctx context.Context, params SearchParams) (*searchindex.Response, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return invoke[searchindex.Response](ctx, c, MethodSearch, params)
}

func (c *Client) Leases(ctx context.Context) (*LeasesResult, error) {
	return invoke[LeasesResult](ctx, c, MethodLeases, nil)
}

// EvictLease drops the cached lease of zone, or every lease when all is set.
func (c *Client) EvictLease(ctx context.Context, zone string, all bool) (*EvictLeaseResult, error) {
	return invoke[EvictLeaseResult](ctx, c, MethodEvictLease, EvictLeaseParams{Zone: zone, All: all})
}

// DeadLetters lists the most recent dropped jobs.
func (c *Client) DeadLetters(ctx context.Context, limit int) (*DeadLettersResult, error) {
	return invoke[DeadLettersResult](ctx, c, MethodDeadLetters, DeadLettersParams{Limit: limit})
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to engine at %s: %w", c.socketPath, err)
	}
	return conn, nil
}

// envelope is Response with the result left undecoded.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
	ID     string          `json:"id"`
}

// invoke runs one JSON-RPC exchange on its own connection and decodes the
// result into a T. The exchange is bounded by the earlier of ctx's
// deadline and the client timeout.
func invoke[T any](ctx context.Context, c *Client, method string, params any) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	id := fmt.Sprintf("req-%d", c.seq.Add(1))
	req := Request{JSONRPC: "2.0", Method: method, Params: params, ID: id}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("%s: send: %w", method, err)
	}

	var env envelope
	if err := json.NewDecoder(conn).Decode(&env); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", method, ctxErr)
		}
		return nil, fmt.Errorf("%s: receive: %w", method, err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("%s failed: %w", method, env.Error)
	}
	if env.ID != id {
		return nil, fmt.Errorf("%s: response id %q does not match request %q", method, env.ID, id)
	}

	out := new(T)
	if len(env.Result) > 0 && string(env.Result) != "null" {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return nil, fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return out, nil
}
