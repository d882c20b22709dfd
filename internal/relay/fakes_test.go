package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/queryrelay/queryrelay/internal/query"
	"github.com/queryrelay/queryrelay/internal/storage"
)

type scriptedService struct {
	mu sync.Mutex

	executionID string
	submitErr   error
	statuses    []query.Status
	statusErr   error
	results     query.ResultSet
	resultsErr  error

	submits      []query.SubmitRequest
	statusCalls  int
	resultsCalls int
}

func (s *scriptedService) Submit(_ context.Context, request query.SubmitRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits = append(s.submits, request)
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return s.executionID, nil
}

// Status replays the scripted states; the last one repeats forever.
func (s *scriptedService) Status(_ context.Context, executionID string) (query.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.statusErr != nil {
		return query.Status{}, s.statusErr
	}
	if executionID != s.executionID {
		return query.Status{}, fmt.Errorf("execution %q: %w", executionID, query.ErrExecutionNotFound)
	}
	if len(s.statuses) == 0 {
		return query.Status{State: query.StateSucceeded}, nil
	}
	idx := s.statusCalls - 1
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	return s.statuses[idx], nil
}

func (s *scriptedService) Results(_ context.Context, _ string) (query.ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultsCalls++
	if s.resultsErr != nil {
		return query.ResultSet{}, s.resultsErr
	}
	return s.results, nil
}

type cancelingService struct {
	*scriptedService
	cancelled []string
	cancelErr error
}

func (c *cancelingService) Cancel(_ context.Context, executionID string) error {
	c.cancelled = append(c.cancelled, executionID)
	return c.cancelErr
}

type putCall struct {
	key         string
	body        []byte
	contentType string
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []putCall
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return storage.ObjectInfo{}, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	m.puts = append(m.puts, putCall{key: key, body: data, contentType: opts.ContentType})
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ETag: fmt.Sprintf("etag-%d", len(m.puts))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func running() query.Status   { return query.Status{State: query.StateRunning} }
func succeeded() query.Status { return query.Status{State: query.StateSucceeded} }
