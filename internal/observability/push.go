package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher sends the process metrics to a Prometheus Pushgateway. A function
// instance is gone before a scrape could reach it, so metrics are pushed at
// the end of each invocation instead.
type Pusher struct {
	URL      string
	Job      string
	Gatherer prometheus.Gatherer
}

func (p *Pusher) Enabled() bool {
	return p != nil && strings.TrimSpace(p.URL) != ""
}

func (p *Pusher) Push(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	job := p.Job
	if job == "" {
		job = "queryrelay"
	}
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if err := push.New(strings.TrimSpace(p.URL), job).Gatherer(gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
