package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/queryrelay/queryrelay/internal/observability"
	"github.com/queryrelay/queryrelay/internal/query"
	"github.com/queryrelay/queryrelay/internal/storage"
)

type PollConfig struct {
	Interval    time.Duration
	MaxWait     time.Duration
	MaxAttempts int
}

// Runner performs one submit, poll, publish cycle per Run. It holds only
// process-scoped client handles and is safe to reuse across invocations.
type Runner struct {
	Query  query.Service
	Store  storage.ObjectStore
	Job    Job
	Poll   PollConfig
	Logger *slog.Logger
	Clock  func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
}

type Outcome struct {
	ExecutionID string
	State       query.State
	Rows        int
	Key         string
	Bytes       int
	ETag        string
	Truncated   bool
}

func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	clock := r.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := observability.LoggerFromContext(ctx, r.Logger)
	start := clock()

	executionID, err := Submit(ctx, r.Query, r.Job)
	if err != nil {
		observability.ObserveRun(observability.OutcomeError, clock().Sub(start))
		return Outcome{}, err
	}
	logger = logger.With(slog.String("execution_id", executionID))
	logger.InfoContext(ctx, "query submitted", slog.String("database", r.Job.Database))

	poller := &Poller{
		Service:     r.Query,
		Interval:    r.Poll.Interval,
		MaxWait:     r.Poll.MaxWait,
		MaxAttempts: r.Poll.MaxAttempts,
		Clock:       clock,
		Sleep:       r.Sleep,
	}
	status, err := poller.Wait(ctx, executionID)
	if err != nil {
		outcome := observability.OutcomeError
		if errors.Is(err, ErrPollTimeout) {
			outcome = observability.OutcomeTimeout
			r.cancel(ctx, logger, executionID)
		}
		observability.ObserveRun(outcome, clock().Sub(start))
		return Outcome{ExecutionID: executionID, State: status.State}, err
	}

	if err := checkTerminal(executionID, status); err != nil {
		outcome := observability.OutcomeFailed
		if status.State == query.StateCancelled {
			outcome = observability.OutcomeCancelled
		}
		observability.ObserveRun(outcome, clock().Sub(start))
		logger.ErrorContext(ctx, "query did not succeed",
			slog.String("state", string(status.State)),
			slog.String("reason", status.Reason),
		)
		return Outcome{ExecutionID: executionID, State: status.State}, err
	}

	results, err := r.Query.Results(ctx, executionID)
	if err != nil {
		observability.ObserveRun(observability.OutcomeError, clock().Sub(start))
		return Outcome{ExecutionID: executionID, State: status.State}, fmt.Errorf("fetch results: %w", err)
	}
	logger.InfoContext(ctx, "query succeeded, fetched results", slog.Int("rows", len(results.Rows)))
	if results.Truncated {
		logger.WarnContext(ctx, "result set has more pages; only the first page is published")
	}

	publisher := &Publisher{Store: r.Store, Key: r.Job.ResultKey, Format: r.Job.Format}
	published, err := publisher.Publish(ctx, results)
	if err != nil {
		observability.ObserveRun(observability.OutcomeError, clock().Sub(start))
		return Outcome{ExecutionID: executionID, State: status.State}, err
	}

	observability.ObservePublish(len(results.Rows), published.Bytes, results.Truncated)
	observability.ObserveRun(observability.OutcomeSucceeded, clock().Sub(start))
	logger.InfoContext(ctx, "results published",
		slog.String("key", published.Info.Key),
		slog.Int("bytes", published.Bytes),
	)

	return Outcome{
		ExecutionID: executionID,
		State:       status.State,
		Rows:        len(results.Rows),
		Key:         published.Info.Key,
		Bytes:       published.Bytes,
		ETag:        published.Info.ETag,
		Truncated:   results.Truncated,
	}, nil
}

// cancel stops an execution the poller gave up on. Failure is logged only.
func (r *Runner) cancel(ctx context.Context, logger *slog.Logger, executionID string) {
	canceler, ok := r.Query.(query.Canceler)
	if !ok {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if err := canceler.Cancel(ctx, executionID); err != nil {
		logger.WarnContext(ctx, "cancel timed out execution failed", slog.Any("error", err))
		return
	}
	logger.InfoContext(ctx, "cancelled timed out execution")
}
