package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/queryrelay/queryrelay/internal/app"
	"github.com/queryrelay/queryrelay/internal/config"
	"github.com/queryrelay/queryrelay/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("queryrelay-lambda")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize relay", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	lambda.Start(a.Handler.Handle)
}
