package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/queryrelay/queryrelay/internal/observability"
	"github.com/queryrelay/queryrelay/internal/query"
)

const DefaultPollInterval = time.Second

// Poller waits for an execution to reach a terminal state, checking its
// status at a fixed interval. The first check happens immediately.
type Poller struct {
	Service  query.Service
	Interval time.Duration
	// MaxWait bounds the total time spent waiting; zero disables it.
	MaxWait time.Duration
	// MaxAttempts bounds the number of status checks; zero disables it.
	MaxAttempts int
	Clock       func() time.Time
	Sleep       func(ctx context.Context, d time.Duration) error
}

func (p *Poller) Wait(ctx context.Context, executionID string) (query.Status, error) {
	p.ensureDefaults()
	if p.Service == nil {
		return query.Status{}, fmt.Errorf("query service is required")
	}

	start := p.Clock()
	for attempt := 1; ; attempt++ {
		status, err := p.Service.Status(ctx, executionID)
		if err != nil {
			return query.Status{}, fmt.Errorf("get status of execution %q: %w", executionID, err)
		}
		observability.ObserveStatusCheck()
		if status.State.Terminal() {
			return status, nil
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return status, fmt.Errorf("execution %q still %s after %d status checks: %w", executionID, status.State, attempt, ErrPollTimeout)
		}
		if p.MaxWait > 0 && p.Clock().Sub(start)+p.Interval > p.MaxWait {
			return status, fmt.Errorf("execution %q still %s after %s: %w", executionID, status.State, p.Clock().Sub(start).Round(time.Millisecond), ErrPollTimeout)
		}
		if err := p.Sleep(ctx, p.Interval); err != nil {
			return status, fmt.Errorf("wait for execution %q: %w", executionID, err)
		}
	}
}

func (p *Poller) ensureDefaults() {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
