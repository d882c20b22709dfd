package relay

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/queryrelay/queryrelay/internal/query"
	"github.com/queryrelay/queryrelay/internal/storage"
)

// Publisher writes a result set to one fixed key. Each publish overwrites
// the object left by the previous one.
type Publisher struct {
	Store  storage.ObjectStore
	Key    string
	Format Format
}

type Published struct {
	Info  storage.ObjectInfo
	Bytes int
}

func (p *Publisher) Publish(ctx context.Context, rs query.ResultSet) (Published, error) {
	if p.Store == nil {
		return Published{}, fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(p.Key) == "" {
		return Published{}, fmt.Errorf("result key is required")
	}

	body, err := Encode(p.Format, rs)
	if err != nil {
		return Published{}, fmt.Errorf("encode results: %w", err)
	}
	info, err := p.Store.Put(ctx, p.Key, bytes.NewReader(body), int64(len(body)), storage.PutOptions{ContentType: p.Format.ContentType()})
	if err != nil {
		return Published{}, fmt.Errorf("publish results: %w", err)
	}
	return Published{Info: info, Bytes: len(body)}, nil
}

// checkTerminal converts a non-successful terminal status into an
// ExecutionError.
func checkTerminal(executionID string, status query.Status) error {
	if status.State == query.StateSucceeded {
		return nil
	}
	return &ExecutionError{ExecutionID: executionID, State: status.State, Reason: status.Reason}
}
