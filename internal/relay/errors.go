package relay

import (
	"errors"
	"fmt"

	"github.com/queryrelay/queryrelay/internal/query"
)

// ErrPollTimeout is returned when an execution does not reach a terminal
// state within the poller's bounds.
var ErrPollTimeout = errors.New("query execution did not reach a terminal state in time")

// ExecutionError reports an execution that ended FAILED or CANCELLED.
type ExecutionError struct {
	ExecutionID string
	State       query.State
	Reason      string
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("query failed with state %s", e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
