package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

func TestRequest_JSON(t *testing.T) {
	req := Request{
		JSONRPC: "2.0",
		Method:  MethodQueue,
		Params:  QueueParams{Sample: 5},
		ID:      "req-1",
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"queue","params":{"sample":5},"id":"req-1"}`, string(data))
}

func TestErrorResponse_JSON(t *testing.T) {
	resp := NewErrorResponse("req-2", ErrCodeMethodNotFound, "method not found: nope")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "result")
	assert.Equal(t, "req-2", decoded["id"])
	assert.EqualError(t, resp.Error, "method not found: nope (code: -32601)")
}

func TestQueueParams_Normalize(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultQueueSample},
		{-3, DefaultQueueSample},
		{7, 7},
		{MaxQueueSample, MaxQueueSample},
		{MaxQueueSample + 1, MaxQueueSample},
	}
	for _, tt := range tests {
		p := QueueParams{Sample: tt.in}
		p.Normalize()
		assert.Equal(t, tt.want, p.Sample, "sample %d", tt.in)
	}
}

func TestParams_Validate(t *testing.T) {
	assert.Error(t, (&SetStateParams{State: " "}).Validate())
	assert.NoError(t, (&SetStateParams{State: "sleep"}).Validate())

	assert.Error(t, (&SubmitParams{}).Validate())
	assert.NoError(t, (&SubmitParams{Event: "item-added"}).Validate())

	assert.Error(t, (&EvictLeaseParams{}).Validate())
	assert.Error(t, (&EvictLeaseParams{Zone: "z", All: true}).Validate())
	assert.NoError(t, (&EvictLeaseParams{All: true}).Validate())

	p := SearchParams{Limit: -1}
	require.NoError(t, p.Validate())
	assert.Zero(t, p.Limit)
	assert.Error(t, (&SearchParams{Under: "relative/path"}).Validate())
	assert.Error(t, (&SearchParams{Offset: -1}).Validate())
}

func TestSearchParams_Request(t *testing.T) {
	p := SearchParams{Zone: "z", Text: "report", Under: "/z/home", Users: []string{"7"}, Limit: 5}

	req := p.Request()

	assert.Equal(t, "z", req.Zone)
	assert.Equal(t, "report", req.Text)
	assert.Equal(t, "/z/home", req.Under)
	assert.Equal(t, []string{"7"}, req.Users)
	assert.Equal(t, 5, req.Limit)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{engerrors.ErrCodeInvalidEvent, ErrCodeInvalidEvent},
		{engerrors.ErrCodeInvalidState, ErrCodeInvalidState},
		{engerrors.ErrCodeInvalidInput, ErrCodeInvalidParams},
		{engerrors.ErrCodeIndexWrite, ErrCodeIndexFailed},
		{engerrors.ErrCodeMapping, ErrCodeIndexFailed},
		{engerrors.ErrCodeConfigInvalid, ErrCodeNotConfigured},
		{engerrors.ErrCodeInternal, ErrCodeInternalError},
	}
	for _, tt := range tests {
		err := engerrors.New(tt.code, "boom", nil)
		assert.Equal(t, tt.want, errorCode(err, ErrCodeInternalError), tt.code)
	}
}
