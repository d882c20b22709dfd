package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/queryrelay/queryrelay/internal/query"
)

func TestPollerChecksUntilTerminal(t *testing.T) {
	svc := &scriptedService{executionID: "abc123", statuses: []query.Status{running(), running(), succeeded()}}
	clock := newFakeClock()
	poller := &Poller{Service: svc, Clock: clock.Now, Sleep: clock.Sleep}

	status, err := poller.Wait(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if status.State != query.StateSucceeded {
		t.Fatalf("State = %s", status.State)
	}
	if svc.statusCalls != 3 {
		t.Fatalf("status checks = %d, want 3", svc.statusCalls)
	}
	if len(clock.sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(clock.sleeps))
	}
	for _, d := range clock.sleeps {
		if d != DefaultPollInterval {
			t.Fatalf("sleep = %s, want %s", d, DefaultPollInterval)
		}
	}
}

func TestPollerFirstCheckIsImmediate(t *testing.T) {
	svc := &scriptedService{executionID: "xyz999", statuses: []query.Status{{State: query.StateFailed, Reason: "boom"}}}
	clock := newFakeClock()
	poller := &Poller{Service: svc, Clock: clock.Now, Sleep: clock.Sleep}

	status, err := poller.Wait(context.Background(), "xyz999")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if status.State != query.StateFailed || status.Reason != "boom" {
		t.Fatalf("status = %+v", status)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("sleeps = %v, want none", clock.sleeps)
	}
}

func TestPollerStopsAfterMaxAttempts(t *testing.T) {
	svc := &scriptedService{executionID: "abc123", statuses: []query.Status{running()}}
	clock := newFakeClock()
	poller := &Poller{Service: svc, MaxAttempts: 4, Clock: clock.Now, Sleep: clock.Sleep}

	status, err := poller.Wait(context.Background(), "abc123")
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Wait() error = %v, want ErrPollTimeout", err)
	}
	if status.State != query.StateRunning {
		t.Fatalf("State = %s", status.State)
	}
	if svc.statusCalls != 4 {
		t.Fatalf("status checks = %d, want 4", svc.statusCalls)
	}
}

func TestPollerStopsAfterMaxWait(t *testing.T) {
	svc := &scriptedService{executionID: "abc123", statuses: []query.Status{{State: query.StateQueued}}}
	clock := newFakeClock()
	poller := &Poller{Service: svc, Interval: time.Second, MaxWait: 5 * time.Second, Clock: clock.Now, Sleep: clock.Sleep}

	_, err := poller.Wait(context.Background(), "abc123")
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Wait() error = %v, want ErrPollTimeout", err)
	}
	if svc.statusCalls != 6 {
		t.Fatalf("status checks = %d, want 6", svc.statusCalls)
	}
	if elapsed := clock.Now().Sub(newFakeClock().Now()); elapsed > 5*time.Second {
		t.Fatalf("waited %s, beyond MaxWait", elapsed)
	}
}

func TestPollerPropagatesStatusError(t *testing.T) {
	statusErr := errors.New("throttled")
	svc := &scriptedService{executionID: "abc123", statusErr: statusErr}
	poller := &Poller{Service: svc}

	_, err := poller.Wait(context.Background(), "abc123")
	if !errors.Is(err, statusErr) {
		t.Fatalf("Wait() error = %v, want %v", err, statusErr)
	}
	if svc.statusCalls != 1 {
		t.Fatalf("status checks = %d, want 1", svc.statusCalls)
	}
}

func TestPollerHonorsContextCancellation(t *testing.T) {
	svc := &scriptedService{executionID: "abc123", statuses: []query.Status{running()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller := &Poller{Service: svc, Interval: time.Hour}
	_, err := poller.Wait(ctx, "abc123")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestSleepContextReturnsAfterDuration(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepContext() error = %v", err)
	}
}
