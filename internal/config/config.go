package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	BackendAthena = "athena"
	BackendSQL    = "sql"

	ProviderAWS   = "aws"
	ProviderMinio = "minio"

	FormatJSON    = "json"
	FormatParquet = "parquet"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Query         QueryConfig
	SQL           SQLConfig
	Result        ResultConfig
	Poll          PollConfig
	ObjectStore   ObjectStoreConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

// QueryConfig describes the single query an invocation submits.
type QueryConfig struct {
	Backend        string
	Text           string
	Database       string
	Catalog        string
	Workgroup      string
	OutputLocation string
}

type SQLConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

type ResultConfig struct {
	Bucket string
	Key    string
	Format string
}

// PollConfig bounds the completion wait. MaxWait and MaxAttempts of zero
// leave that bound disabled.
type PollConfig struct {
	Interval    time.Duration
	MaxWait     time.Duration
	MaxAttempts int
}

type ObjectStoreConfig struct {
	Provider         string
	Endpoint         string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type AWSConfig struct {
	Region string
}

type ObservabilityConfig struct {
	LogLevel       slog.Level
	LogJSON        bool
	PushgatewayURL string
	PushJob        string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("QUERYRELAY_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid QUERYRELAY_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "QUERYRELAY_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_QUERY_BACKEND", &cfg.Query.Backend); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_QUERY_TEXT", &cfg.Query.Text); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_QUERY_DATABASE", &cfg.Query.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_QUERY_CATALOG", &cfg.Query.Catalog); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_QUERY_WORKGROUP", &cfg.Query.Workgroup); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_QUERY_OUTPUT_LOCATION", &cfg.Query.OutputLocation); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_SQL_DRIVER", &cfg.SQL.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_SQL_DSN", &cfg.SQL.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QUERYRELAY_SQL_MAX_OPEN_CONNS", &cfg.SQL.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_RESULT_BUCKET", &cfg.Result.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_RESULT_KEY", &cfg.Result.Key); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_RESULT_FORMAT", &cfg.Result.Format); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYRELAY_POLL_INTERVAL", &cfg.Poll.Interval); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYRELAY_POLL_MAX_WAIT", &cfg.Poll.MaxWait); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QUERYRELAY_POLL_MAX_ATTEMPTS", &cfg.Poll.MaxAttempts); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_OBJECTSTORE_PROVIDER", &cfg.ObjectStore.Provider); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "QUERYRELAY_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "QUERYRELAY_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_AWS_REGION", &cfg.AWS.Region); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "QUERYRELAY_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "QUERYRELAY_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_PUSHGATEWAY_URL", &cfg.Observability.PushgatewayURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYRELAY_PUSH_JOB", &cfg.Observability.PushJob); err != nil {
		return Config{}, err
	}

	if cfg.Query.OutputLocation == "" && cfg.Result.Bucket != "" {
		cfg.Query.OutputLocation = "s3://" + cfg.Result.Bucket + "/"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that would make an invocation fail
// before it reaches the query service.
func (c Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	switch c.Query.Backend {
	case BackendAthena:
		if c.Query.Database == "" {
			return fmt.Errorf("QUERYRELAY_QUERY_DATABASE is required for the athena backend")
		}
		if c.Query.OutputLocation == "" {
			return fmt.Errorf("QUERYRELAY_QUERY_OUTPUT_LOCATION is required for the athena backend")
		}
	case BackendSQL:
		if c.SQL.Driver == "" {
			return fmt.Errorf("QUERYRELAY_SQL_DRIVER is required for the sql backend")
		}
	default:
		return fmt.Errorf("invalid QUERYRELAY_QUERY_BACKEND: %q", c.Query.Backend)
	}
	if c.Query.Text == "" {
		return fmt.Errorf("QUERYRELAY_QUERY_TEXT is required")
	}
	if c.Result.Bucket == "" {
		return fmt.Errorf("QUERYRELAY_RESULT_BUCKET is required")
	}
	if c.Result.Key == "" {
		return fmt.Errorf("QUERYRELAY_RESULT_KEY is required")
	}
	switch c.Result.Format {
	case FormatJSON, FormatParquet:
	default:
		return fmt.Errorf("invalid QUERYRELAY_RESULT_FORMAT: %q", c.Result.Format)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("QUERYRELAY_POLL_INTERVAL must be > 0")
	}
	if c.Poll.MaxWait < 0 {
		return fmt.Errorf("QUERYRELAY_POLL_MAX_WAIT must be >= 0")
	}
	if c.Poll.MaxAttempts < 0 {
		return fmt.Errorf("QUERYRELAY_POLL_MAX_ATTEMPTS must be >= 0")
	}
	switch c.ObjectStore.Provider {
	case ProviderAWS:
	case ProviderMinio:
		if c.ObjectStore.Endpoint == "" {
			return fmt.Errorf("QUERYRELAY_OBJECTSTORE_ENDPOINT is required for the minio provider")
		}
	default:
		return fmt.Errorf("invalid QUERYRELAY_OBJECTSTORE_PROVIDER: %q", c.ObjectStore.Provider)
	}
	return nil
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	if c.ObjectStore.SecretAccessKey != "" {
		c.ObjectStore.SecretAccessKey = "***"
	}
	if c.SQL.DSN != "" {
		c.SQL.DSN = "***"
	}
	return c
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "queryrelay"},
		Query: QueryConfig{
			Backend:  BackendSQL,
			Text:     `SELECT * FROM "my_glue_catalog_database"."my_csv_data101" LIMIT 10`,
			Database: "my_glue_catalog_database",
		},
		SQL: SQLConfig{
			Driver:       "duckdb",
			DSN:          "",
			MaxOpenConns: 1,
		},
		Result: ResultConfig{
			Bucket: "athena-query-results201",
			Key:    "athena-query-results.json",
			Format: FormatJSON,
		},
		Poll: PollConfig{
			Interval:    time.Second,
			MaxWait:     14 * time.Minute,
			MaxAttempts: 0,
		},
		ObjectStore: ObjectStoreConfig{
			Provider:         ProviderMinio,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
			PushJob:  "queryrelay",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Poll.Interval = 10 * time.Millisecond
		cfg.Poll.MaxWait = 30 * time.Second
	case ProfileProd:
		cfg.Query.Backend = BackendAthena
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore = ObjectStoreConfig{
			Provider: ProviderAWS,
			UseSSL:   true,
		}
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
