package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/queryrelay/queryrelay/internal/observability"
	"github.com/queryrelay/queryrelay/internal/relay"
)

type runner interface {
	Run(ctx context.Context) (relay.Outcome, error)
}

type metricsPusher interface {
	Push(ctx context.Context) error
}

// Handler is the function entrypoint. The invocation payload is ignored;
// every invocation runs the configured job once.
type Handler struct {
	Runner runner
	Logger *slog.Logger
	Pusher metricsPusher
}

func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (relay.Response, error) {
	h.ensureDefaults()
	if h.Runner == nil {
		return relay.Response{}, fmt.Errorf("runner is required")
	}

	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		ctx = observability.ContextWithRequestID(ctx, lc.AwsRequestID)
	}
	logger := observability.LoggerFromContext(ctx, h.Logger)
	logger.DebugContext(ctx, "invocation received", slog.Int("event_bytes", len(event)))

	outcome, err := h.Runner.Run(ctx)
	h.pushMetrics(ctx, logger)
	if err != nil {
		logger.ErrorContext(ctx, "invocation failed",
			slog.String("execution_id", outcome.ExecutionID),
			slog.Any("error", err),
		)
		return relay.Response{}, err
	}

	logger.InfoContext(ctx, "invocation completed",
		slog.String("execution_id", outcome.ExecutionID),
		slog.Int("rows", outcome.Rows),
		slog.String("key", outcome.Key),
	)
	return relay.SuccessResponse(outcome), nil
}

func (h *Handler) pushMetrics(ctx context.Context, logger *slog.Logger) {
	if h.Pusher == nil {
		return
	}
	if err := h.Pusher.Push(context.WithoutCancel(ctx)); err != nil {
		logger.WarnContext(ctx, "metrics push failed", slog.Any("error", err))
	}
}

func (h *Handler) ensureDefaults() {
	if h.Logger == nil {
		h.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}
