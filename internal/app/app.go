package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/queryrelay/queryrelay/internal/config"
	"github.com/queryrelay/queryrelay/internal/handler"
	"github.com/queryrelay/queryrelay/internal/observability"
	"github.com/queryrelay/queryrelay/internal/query"
	"github.com/queryrelay/queryrelay/internal/query/athena"
	"github.com/queryrelay/queryrelay/internal/query/sqlexec"
	"github.com/queryrelay/queryrelay/internal/relay"
	"github.com/queryrelay/queryrelay/internal/storage"
	s3store "github.com/queryrelay/queryrelay/internal/storage/s3"
)

// App holds the process-scoped clients. It is built once per function
// instance and reused by every invocation.
type App struct {
	Query   query.Service
	Store   storage.ObjectStore
	Runner  *relay.Runner
	Handler *handler.Handler

	closers []func() error
}

func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	format, err := relay.ParseFormat(cfg.Result.Format)
	if err != nil {
		return nil, err
	}

	if cfg.Query.Backend == config.BackendAthena {
		if _, err := storage.ParseS3URI(cfg.Query.OutputLocation); err != nil {
			return nil, fmt.Errorf("query output location: %w", err)
		}
	}

	needAWS := cfg.Query.Backend == config.BackendAthena || cfg.ObjectStore.Provider == config.ProviderAWS
	var awsCfg aws.Config
	if needAWS {
		awsCfg, err = loadAWSConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
	}

	a := &App{}
	svc, err := a.buildQueryService(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	a.Query = svc

	store, err := s3store.New(ctx, s3store.Config{
		Provider:         cfg.ObjectStore.Provider,
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           firstNonEmpty(cfg.ObjectStore.Region, cfg.AWS.Region),
		Bucket:           cfg.Result.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		AWS:              awsCfg,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("initialize object store: %w", err)
	}
	a.Store = store

	a.Runner = &relay.Runner{
		Query: svc,
		Store: store,
		Job: relay.Job{
			QueryText:      cfg.Query.Text,
			Database:       cfg.Query.Database,
			Catalog:        cfg.Query.Catalog,
			Workgroup:      cfg.Query.Workgroup,
			OutputLocation: cfg.Query.OutputLocation,
			ResultKey:      cfg.Result.Key,
			Format:         format,
		},
		Poll: relay.PollConfig{
			Interval:    cfg.Poll.Interval,
			MaxWait:     cfg.Poll.MaxWait,
			MaxAttempts: cfg.Poll.MaxAttempts,
		},
		Logger: logger,
	}
	a.Handler = &handler.Handler{
		Runner: a.Runner,
		Logger: logger,
		Pusher: &observability.Pusher{
			URL:      cfg.Observability.PushgatewayURL,
			Job:      cfg.Observability.PushJob,
			Gatherer: prometheus.DefaultGatherer,
		},
	}

	logger.Info("relay initialized",
		slog.String("backend", cfg.Query.Backend),
		slog.String("object_store", cfg.ObjectStore.Provider),
		slog.String("bucket", cfg.Result.Bucket),
		slog.String("key", cfg.Result.Key),
	)
	return a, nil
}

func (a *App) buildQueryService(ctx context.Context, cfg config.Config, awsCfg aws.Config) (query.Service, error) {
	switch cfg.Query.Backend {
	case config.BackendAthena:
		return athena.New(awsCfg), nil
	case config.BackendSQL:
		svc, err := sqlexec.Open(ctx, sqlexec.Config{
			Driver:       cfg.SQL.Driver,
			DSN:          cfg.SQL.DSN,
			MaxOpenConns: cfg.SQL.MaxOpenConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open sql backend: %w", err)
		}
		a.closers = append(a.closers, svc.Close)
		return svc, nil
	default:
		return nil, fmt.Errorf("unsupported query backend %q", cfg.Query.Backend)
	}
}

func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
