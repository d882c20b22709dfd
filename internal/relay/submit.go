package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/queryrelay/queryrelay/internal/query"
)

// Job is the fixed query an invocation runs and where its results land.
type Job struct {
	QueryText      string
	Database       string
	Catalog        string
	Workgroup      string
	OutputLocation string
	ResultKey      string
	Format         Format
}

// Submit sends the job's query to the service once and returns the
// execution id. Errors are returned as-is to the caller.
func Submit(ctx context.Context, svc query.Service, job Job) (string, error) {
	if svc == nil {
		return "", fmt.Errorf("query service is required")
	}
	id, err := svc.Submit(ctx, query.SubmitRequest{
		SQL:            job.QueryText,
		Database:       job.Database,
		Catalog:        job.Catalog,
		Workgroup:      job.Workgroup,
		OutputLocation: job.OutputLocation,
	})
	if err != nil {
		return "", fmt.Errorf("submit query: %w", err)
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("submit query: service returned an empty execution id")
	}
	return id, nil
}
