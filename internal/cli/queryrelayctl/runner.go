package queryrelayctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/queryrelay/queryrelay/internal/app"
	"github.com/queryrelay/queryrelay/internal/config"
	"github.com/queryrelay/queryrelay/internal/observability"
	"github.com/queryrelay/queryrelay/internal/storage"
)

type BuildFunc func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error)

type Options struct {
	Lookup  config.LookupFunc
	Build   BuildFunc
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("queryrelayctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	queryText := fs.String("query", "", "SQL text to submit instead of the configured query")
	database := fs.String("database", "", "database the query runs against")
	outputLocation := fs.String("output-location", "", "s3:// staging location for query service output")
	bucket := fs.String("bucket", "", "bucket the results are written to")
	key := fs.String("key", "", "object key the results are written to")
	format := fs.String("format", "", "result format (json or parquet)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 15*time.Minute), "overall timeout for the command (e.g. 5m)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "run", "config", "show":
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	lookup := defaults.Lookup
	if lookup == nil {
		return fail(stderr, errors.New("config lookup is required"))
	}
	cfg, err := config.Load("queryrelayctl", lookup)
	if err != nil {
		return fail(stderr, fmt.Errorf("load config: %w", err))
	}
	applyOverride(&cfg.Query.Text, *queryText)
	applyOverride(&cfg.Query.Database, *database)
	applyOverride(&cfg.Query.OutputLocation, *outputLocation)
	applyOverride(&cfg.Result.Bucket, *bucket)
	applyOverride(&cfg.Result.Key, *key)
	applyOverride(&cfg.Result.Format, *format)
	if err := cfg.Validate(); err != nil {
		return fail(stderr, err)
	}

	if command == "config" {
		return writeJSON(stdout, stderr, cfg.Redacted())
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	build := defaults.Build
	if build == nil {
		build = app.Build
	}
	a, err := build(ctx, cfg, observability.NewLogger(cfg, stderr))
	if err != nil {
		return fail(stderr, err)
	}
	defer func() { _ = a.Close() }()

	switch command {
	case "run":
		resp, err := a.Handler.Handle(ctx, nil)
		if err != nil {
			return fail(stderr, err)
		}
		return writeJSON(stdout, stderr, resp)
	default:
		return show(ctx, a.Store, cfg.Result.Key, stdout, stderr)
	}
}

// show prints the object left by the last successful run.
func show(ctx context.Context, store storage.ObjectStore, key string, stdout, stderr io.Writer) int {
	info, err := store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fail(stderr, fmt.Errorf("no results published at %q yet", key))
		}
		return fail(stderr, err)
	}
	reader, err := store.Get(ctx, key)
	if err != nil {
		return fail(stderr, err)
	}
	defer func() { _ = reader.Close() }()
	body, err := io.ReadAll(reader)
	if err != nil {
		return fail(stderr, fmt.Errorf("read %q: %w", key, err))
	}

	location := info.Key
	if b, ok := store.(interface{ Bucket() string }); ok {
		location = storage.S3URI{Bucket: b.Bucket(), Key: info.Key}.String()
	}
	_, _ = fmt.Fprintf(stderr, "%s: %d bytes, etag %s, modified %s\n", location, info.Size, info.ETag, info.LastModified.Format(time.RFC3339))
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	_, _ = stdout.Write(body)
	return 0
}

func writeJSON(stdout, stderr io.Writer, value any) int {
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fail(stderr, err)
	}
	_, _ = fmt.Fprintln(stdout, string(formatted))
	return 0
}

func fail(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: queryrelayctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  run      submit the query, wait for it and publish the results")
	_, _ = fmt.Fprintln(w, "  config   print the effective configuration with secrets redacted")
	_, _ = fmt.Fprintln(w, "  show     print the most recently published results")
}

func applyOverride(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = strings.TrimSpace(value)
	}
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
