package queryrelayctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/queryrelay/queryrelay/internal/app"
	"github.com/queryrelay/queryrelay/internal/config"
	"github.com/queryrelay/queryrelay/internal/storage"
)

func TestRunCommandPublishesResults(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	build := func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error) {
		a, err := app.Build(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.Runner.Store = store
		return a, nil
	}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-query", "SELECT 'a' AS col1",
		"-key", "adhoc.json",
		"run",
	}, Options{Lookup: testLookup(), Build: build, Stdout: &stdout, Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}

	var resp struct {
		StatusCode int    `json:"statusCode"`
		Body       string `json:"body"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, stdout=%s", err, stdout.String())
	}
	if resp.StatusCode != 200 || resp.Body != "query executed successfully" {
		t.Fatalf("response = %+v", resp)
	}
	if got := string(store.objects["adhoc.json"]); got != `[{"col1":"a"}]` {
		t.Fatalf("object = %s", got)
	}
}

func TestRunCommandFailsOnQueryError(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	build := func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error) {
		a, err := app.Build(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.Runner.Store = store
		return a, nil
	}

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-query", "SELECT * FROM missing_table", "run"}, Options{
		Lookup: testLookup(),
		Build:  build,
		Stderr: &stderr,
	})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "FAILED") {
		t.Fatalf("stderr = %s", stderr.String())
	}
	if len(store.objects) != 0 {
		t.Fatalf("objects = %v, want none", store.objects)
	}
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"config"}, Options{Lookup: testLookup(), Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.Contains(stdout.String(), "miniostorage") {
		t.Fatalf("secret leaked: %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "athena-query-results.json") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestShowCommandPrintsPublishedObject(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{"athena-query-results.json": []byte(`[{"col1":"a"}]`)}}
	build := func(context.Context, config.Config, *slog.Logger) (*app.App, error) {
		return &app.App{Store: store}, nil
	}

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"show"}, Options{Lookup: testLookup(), Build: build, Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), `"col1": "a"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestShowCommandMissingObject(t *testing.T) {
	build := func(context.Context, config.Config, *slog.Logger) (*app.App, error) {
		return &app.App{Store: &memoryStore{objects: map[string][]byte{}}}, nil
	}
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"show"}, Options{Lookup: testLookup(), Build: build, Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "no results published") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"unknown"}, Options{Lookup: testLookup(), Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage output")
	}
}

func TestRunRejectsInvalidFormatOverride(t *testing.T) {
	code := Run(context.Background(), []string{"-format", "csv", "config"}, Options{Lookup: testLookup()})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
}

func testLookup() config.LookupFunc {
	values := map[string]string{
		"QUERYRELAY_PROFILE":                        "test",
		"QUERYRELAY_OBJECTSTORE_AUTO_CREATE_BUCKET": "false",
	}
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Unix(0, 0).UTC()}, nil
}
