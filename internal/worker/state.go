package worker

import (
	"strings"

	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// State controls what the worker does on each tick. Transitions happen
// only on request, except that the one-shot flush states fall through to
// sleep or active after their flush.
type State string

const (
	// Active executes one queued job per tick.
	Active State = "active"
	// Sleep never dequeues; jobs accumulate.
	Sleep State = "sleep"
	// Flush discards the whole queue on every tick until moved out.
	Flush State = "flush"
	// FlushSleep discards the queue once, then sleeps.
	FlushSleep State = "flush_sleep"
	// FlushActive discards the queue once, then resumes.
	FlushActive State = "flush_active"
)

// States lists every worker state.
var States = []State{Active, Sleep, Flush, FlushSleep, FlushActive}

// StateNames returns States as strings.
func StateNames() []string {
	out := make([]string, len(States))
	for i, s := range States {
		out[i] = string(s)
	}
	return out
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case Active, Sleep, Flush, FlushSleep, FlushActive:
		return true
	}
	return false
}

// ParseState parses a state name, accepting dashes for underscores.
func ParseState(name string) (State, error) {
	s := State(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if !s.Valid() {
		return "", engerrors.Newf(engerrors.ErrCodeInvalidState,
			"unknown worker state %q (want one of %s)", name, strings.Join(StateNames(), ", "))
	}
	return s, nil
}

// after returns the state a one-shot flush falls through to.
func (s State) after() State {
	switch s {
	case FlushSleep:
		return Sleep
	case FlushActive:
		return Active
	}
	return s
}
