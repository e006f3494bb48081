package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// FormatForCLI renders err for the terminal: message, sorted details, code.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	ee, ok := As(err)
	if !ok {
		ee = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ee.Message)
	keys := make([]string, 0, len(ee.Details))
	for k := range ee.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %s\n", k, ee.Details[k])
	}
	fmt.Fprintf(&sb, "Code: %s\n", ee.Code)
	return sb.String()
}

// Detail is the wire shape of an EngineError. The admin socket sends it as
// the JSON-RPC error data so clients can recover the code.
type Detail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Category  Category          `json:"category"`
	Severity  Severity          `json:"severity"`
	Retryable bool              `json:"retryable"`
	Details   map[string]string `json:"details,omitempty"`
	Cause     string            `json:"cause,omitempty"`
}

// DetailOf describes the first EngineError in err's chain. Errors without
// one are described as ErrCodeInternal; nil gives nil.
func DetailOf(err error) *Detail {
	if err == nil {
		return nil
	}
	ee, ok := As(err)
	if !ok {
		ee = Wrap(ErrCodeInternal, err)
	}
	d := &Detail{
		Code:      ee.Code,
		Message:   ee.Message,
		Category:  ee.Category,
		Severity:  ee.Severity,
		Retryable: ee.Retryable,
		Details:   ee.Details,
	}
	if ee.Cause != nil {
		d.Cause = ee.Cause.Error()
	}
	return d
}

// Err rebuilds the EngineError d describes. The cause survives as text only.
func (d *Detail) Err() *EngineError {
	var cause error
	if d.Cause != "" {
		cause = stderrors.New(d.Cause)
	}
	ee := New(d.Code, d.Message, cause)
	for k, v := range d.Details {
		ee.WithDetail(k, v)
	}
	return ee
}
