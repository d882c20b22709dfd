package query

import (
	"context"
	"errors"
)

var ErrExecutionNotFound = errors.New("query execution not found")

// State is the lifecycle state reported by the query service. Once an
// execution reaches a terminal state it never reports a non-terminal one.
type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

type Status struct {
	State  State
	Reason string
}

type SubmitRequest struct {
	SQL            string
	Database       string
	Catalog        string
	Workgroup      string
	OutputLocation string
}

type Column struct {
	Name string
	Type string
}

// Row maps column name to value. A nil value is SQL NULL.
type Row map[string]any

type ResultSet struct {
	Columns []Column
	Rows    []Row
	// Truncated is set when the service holds more rows than the first page.
	Truncated bool
}

type Service interface {
	Submit(ctx context.Context, request SubmitRequest) (string, error)
	Status(ctx context.Context, executionID string) (Status, error)
	Results(ctx context.Context, executionID string) (ResultSet, error)
}

// Canceler is implemented by services that can stop a running execution.
type Canceler interface {
	Cancel(ctx context.Context, executionID string) error
}
