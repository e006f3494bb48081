package daemon

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/catindex/internal/credential"
	"github.com/Aman-CERP/catindex/internal/deadletter"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/jobs"
	"github.com/Aman-CERP/catindex/internal/searchindex"
	"github.com/Aman-CERP/catindex/internal/worker"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing        = "ping"
	MethodStatus      = "status"
	MethodQueue       = "queue"
	MethodSetState    = "set_state"
	MethodRefresh     = "refresh"
	MethodReindex     = "reindex"
	MethodSubmit      = "submit"
	MethodSearch      = "search"
	MethodLeases      = "leases"
	MethodEvictLease  = "evict_lease"
	MethodDeadLetters = "dead_letters"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for engine errors.
const (
	ErrCodeInvalidEvent  = -32001
	ErrCodeInvalidState  = -32002
	ErrCodeSearchFailed  = -32003
	ErrCodeIndexFailed   = -32004
	ErrCodeNotConfigured = -32005
)

// Queue sample bounds.
const (
	DefaultQueueSample = 20
	MaxQueueSample     = 200
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Data describes the engine error behind Code, when there was one.
	Data *engerrors.Detail `json:"data,omitempty"`
}

// Error implements error so clients can return it directly.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// Unwrap exposes the engine error carried in Data, so engerrors.HasCode
// works on errors returned by Client.
func (e *Error) Unwrap() error {
	if e.Data == nil {
		return nil
	}
	return e.Data.Err()
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// errorCode maps an engine error onto a JSON-RPC error code.
func errorCode(err error, fallback int) int {
	switch {
	case engerrors.HasCode(err, engerrors.ErrCodeInvalidEvent):
		return ErrCodeInvalidEvent
	case engerrors.HasCode(err, engerrors.ErrCodeInvalidState):
		return ErrCodeInvalidState
	case engerrors.HasCode(err, engerrors.ErrCodeInvalidInput):
		return ErrCodeInvalidParams
	case engerrors.HasCode(err, engerrors.ErrCodeConfigInvalid):
		return ErrCodeNotConfigured
	case engerrors.HasCode(err, engerrors.ErrCodeIndexWrite),
		engerrors.HasCode(err, engerrors.ErrCodeIndexLock),
		engerrors.HasCode(err, engerrors.ErrCodeMapping):
		return ErrCodeIndexFailed
	default:
		return fallback
	}
}

// QueueParams are the parameters for the queue method.
type QueueParams struct {
	// Sample is how many head-of-queue jobs to return (default 20, max 200).
	Sample int `json:"sample,omitempty"`
}

// Normalize applies the sample bounds.
func (p *QueueParams) Normalize() {
	switch {
	case p.Sample <= 0:
		p.Sample = DefaultQueueSample
	case p.Sample > MaxQueueSample:
		p.Sample = MaxQueueSample
	}
}

// SetStateParams are the parameters for the set_state method.
type SetStateParams struct {
	State string `json:"state"`
}

// Validate checks that required fields are present.
func (p *SetStateParams) Validate() error {
	if strings.TrimSpace(p.State) == "" {
		return fmt.Errorf("state is required")
	}
	return nil
}

// ReindexParams are the parameters for the reindex method.
type ReindexParams struct {
	// Zones to enqueue after the index is recreated. Empty means every
	// zone with a cached lease.
	Zones []string `json:"zones,omitempty"`
}

// SubmitParams are the parameters for the submit method.
type SubmitParams struct {
	Event  string         `json:"event"`
	Fields map[string]any `json:"fields"`
}

// Validate checks that required fields are present.
func (p *SubmitParams) Validate() error {
	if p.Event == "" {
		return fmt.Errorf("event is required")
	}
	return nil
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	Zone   string   `json:"zone,omitempty"`
	Text   string   `json:"text,omitempty"`
	Under  string   `json:"under,omitempty"`
	Users  []string `json:"users,omitempty"`
	Groups []string `json:"groups,omitempty"`
	Kind   string   `json:"kind,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}

// Validate checks field ranges.
func (p *SearchParams) Validate() error {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must be non-negative")
	}
	if p.Under != "" && !strings.HasPrefix(p.Under, "/") {
		return fmt.Errorf("under must be an absolute path")
	}
	return nil
}

// Request converts the params into an index request.
func (p SearchParams) Request() searchindex.Request {
	return searchindex.Request{
		Zone:   p.Zone,
		Text:   p.Text,
		Under:  p.Under,
		Users:  p.Users,
		Groups: p.Groups,
		Kind:   p.Kind,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
}

// EvictLeaseParams are the parameters for the evict_lease method.
type EvictLeaseParams struct {
	Zone string `json:"zone,omitempty"`
	All  bool   `json:"all,omitempty"`
}

// Validate checks that exactly one target is named.
func (p *EvictLeaseParams) Validate() error {
	if p.Zone == "" && !p.All {
		return fmt.Errorf("zone or all is required")
	}
	if p.Zone != "" && p.All {
		return fmt.Errorf("zone and all are mutually exclusive")
	}
	return nil
}

// DeadLettersParams are the parameters for the dead_letters method.
type DeadLettersParams struct {
	Limit int `json:"limit,omitempty"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running     bool         `json:"running"`
	PID         int          `json:"pid"`
	Uptime      string       `json:"uptime"`
	State       string       `json:"state"`
	QueueLength int          `json:"queue_length"`
	Worker      worker.Stats `json:"worker"`
	Leases      int          `json:"leases"`
	Events      EventStats   `json:"events"`
	Index       IndexStatus  `json:"index"`
	DeadLetters *int         `json:"dead_letters,omitempty"`
}

// EventStats counts events seen by the engine.
type EventStats struct {
	Published uint64 `json:"published"`
	Invalid   uint64 `json:"invalid"`
}

// IndexStatus describes the index clients.
type IndexStatus struct {
	IngestPath string `json:"ingest_path"`
	QueryPath  string `json:"query_path"`
	Shared     bool   `json:"shared"`
	Documents  uint64 `json:"documents"`
	Refreshes  uint64 `json:"refreshes"`
}

// QueueResult is the response to a queue request.
type QueueResult struct {
	Length int        `json:"length"`
	Sample []jobs.Job `json:"sample"`
}

// SetStateResult is the response to a set_state request.
type SetStateResult struct {
	Previous string `json:"previous"`
	State    string `json:"state"`
}

// RefreshResult is the response to a refresh request.
type RefreshResult struct {
	Refreshes uint64 `json:"refreshes"`
}

// ReindexResult is the response to a reindex request.
type ReindexResult struct {
	Zones    []string `json:"zones"`
	Enqueued int      `json:"enqueued"`
}

// SubmitResult is the response to a submit request.
type SubmitResult struct {
	Jobs []jobs.Job `json:"jobs"`
}

// LeasesResult is the response to a leases request.
type LeasesResult struct {
	Leases []credential.LeaseInfo `json:"leases"`
}

// EvictLeaseResult is the response to an evict_lease request.
type EvictLeaseResult struct {
	Evicted int `json:"evicted"`
}

// DeadLettersResult is the response to a dead_letters request.
type DeadLettersResult struct {
	Count   int                `json:"count"`
	Entries []deadletter.Entry `json:"entries"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool      `json:"pong"`
	Time time.Time `json:"time"`
}
