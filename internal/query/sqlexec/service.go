package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/queryrelay/queryrelay/internal/query"
)

var _ query.Service = (*Service)(nil)

type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Service emulates an asynchronous query service on top of database/sql.
// Submit runs the statement to completion and records the outcome, so the
// first status check already reports a terminal state.
type Service struct {
	db    *sql.DB
	newID func() string

	mu         sync.Mutex
	executions map[string]execution
}

type execution struct {
	status query.Status
	result query.ResultSet
}

func Open(ctx context.Context, cfg Config) (*Service, error) {
	driver := strings.TrimSpace(cfg.Driver)
	switch driver {
	case "duckdb", "pgx":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return New(db)
}

func New(db *sql.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Service{
		db:         db,
		newID:      uuid.NewString,
		executions: map[string]execution{},
	}, nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

func (s *Service) Submit(ctx context.Context, request query.SubmitRequest) (string, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return "", fmt.Errorf("sql is required")
	}

	record := execution{status: query.Status{State: query.StateSucceeded}}
	result, err := s.run(ctx, sqlText)
	if err != nil {
		record.status = query.Status{State: query.StateFailed, Reason: err.Error()}
	} else {
		record.result = result
	}

	id := s.newID()
	s.mu.Lock()
	s.executions[id] = record
	s.mu.Unlock()
	return id, nil
}

func (s *Service) Status(_ context.Context, executionID string) (query.Status, error) {
	record, err := s.lookup(executionID)
	if err != nil {
		return query.Status{}, err
	}
	return record.status, nil
}

func (s *Service) Results(_ context.Context, executionID string) (query.ResultSet, error) {
	record, err := s.lookup(executionID)
	if err != nil {
		return query.ResultSet{}, err
	}
	if record.status.State != query.StateSucceeded {
		return query.ResultSet{}, fmt.Errorf("execution %q is %s", executionID, record.status.State)
	}
	return record.result, nil
}

func (s *Service) lookup(executionID string) (execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.executions[executionID]
	if !ok {
		return execution{}, fmt.Errorf("execution %q: %w", executionID, query.ErrExecutionNotFound)
	}
	return record, nil
}

func (s *Service) run(ctx context.Context, sqlText string) (query.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.ResultSet{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return query.ResultSet{}, fmt.Errorf("query columns: %w", err)
	}
	columns := make([]query.Column, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = query.Column{Name: ct.Name(), Type: strings.ToLower(ct.DatabaseTypeName())}
	}

	resultRows := make([]query.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(query.Row, len(columns))
		for i, value := range values {
			row[columns[i].Name] = normalizeValue(value)
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return query.ResultSet{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.ResultSet{Columns: columns, Rows: resultRows}, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
