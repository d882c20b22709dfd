package athena

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/smithy-go"

	"github.com/queryrelay/queryrelay/internal/query"
)

var (
	_ query.Service  = (*Service)(nil)
	_ query.Canceler = (*Service)(nil)
)

type client interface {
	StartQueryExecution(ctx context.Context, params *awsathena.StartQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *awsathena.GetQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *awsathena.GetQueryResultsInput, optFns ...func(*awsathena.Options)) (*awsathena.GetQueryResultsOutput, error)
	StopQueryExecution(ctx context.Context, params *awsathena.StopQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.StopQueryExecutionOutput, error)
}

// Service runs queries on Amazon Athena.
type Service struct {
	client client
}

func New(cfg aws.Config) *Service {
	return &Service{client: awsathena.NewFromConfig(cfg)}
}

func NewWithClient(c client) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	return &Service{client: c}, nil
}

func (s *Service) Submit(ctx context.Context, request query.SubmitRequest) (string, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return "", fmt.Errorf("sql is required")
	}

	input := &awsathena.StartQueryExecutionInput{
		QueryString: aws.String(request.SQL),
	}
	if request.Database != "" || request.Catalog != "" {
		input.QueryExecutionContext = &types.QueryExecutionContext{}
		if request.Database != "" {
			input.QueryExecutionContext.Database = aws.String(request.Database)
		}
		if request.Catalog != "" {
			input.QueryExecutionContext.Catalog = aws.String(request.Catalog)
		}
	}
	if request.OutputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{OutputLocation: aws.String(request.OutputLocation)}
	}
	if request.Workgroup != "" {
		input.WorkGroup = aws.String(request.Workgroup)
	}

	out, err := s.client.StartQueryExecution(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start query execution: %w", err)
	}
	id := aws.ToString(out.QueryExecutionId)
	if id == "" {
		return "", fmt.Errorf("start query execution: empty execution id")
	}
	return id, nil
}

func (s *Service) Status(ctx context.Context, executionID string) (query.Status, error) {
	out, err := s.client.GetQueryExecution(ctx, &awsathena.GetQueryExecutionInput{QueryExecutionId: aws.String(executionID)})
	if err != nil {
		return query.Status{}, fmt.Errorf("get query execution %q: %w", executionID, mapAthenaErr(err))
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return query.Status{}, fmt.Errorf("get query execution %q: missing status", executionID)
	}
	status := out.QueryExecution.Status
	return query.Status{
		State:  query.State(status.State),
		Reason: aws.ToString(status.StateChangeReason),
	}, nil
}

// Results returns the first page of results. Further pages are not fetched;
// their presence is reported through ResultSet.Truncated.
func (s *Service) Results(ctx context.Context, executionID string) (query.ResultSet, error) {
	out, err := s.client.GetQueryResults(ctx, &awsathena.GetQueryResultsInput{QueryExecutionId: aws.String(executionID)})
	if err != nil {
		return query.ResultSet{}, fmt.Errorf("get query results %q: %w", executionID, mapAthenaErr(err))
	}
	result := convertResultSet(out.ResultSet)
	result.Truncated = aws.ToString(out.NextToken) != ""
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, executionID string) error {
	if _, err := s.client.StopQueryExecution(ctx, &awsathena.StopQueryExecutionInput{QueryExecutionId: aws.String(executionID)}); err != nil {
		return fmt.Errorf("stop query execution %q: %w", executionID, mapAthenaErr(err))
	}
	return nil
}

func convertResultSet(rs *types.ResultSet) query.ResultSet {
	if rs == nil {
		return query.ResultSet{Rows: []query.Row{}}
	}

	var columns []query.Column
	if rs.ResultSetMetadata != nil {
		columns = make([]query.Column, 0, len(rs.ResultSetMetadata.ColumnInfo))
		for _, info := range rs.ResultSetMetadata.ColumnInfo {
			columns = append(columns, query.Column{Name: aws.ToString(info.Name), Type: aws.ToString(info.Type)})
		}
	}

	rows := rs.Rows
	if len(rows) > 0 && isHeaderRow(rows[0], columns) {
		rows = rows[1:]
	}

	converted := make([]query.Row, 0, len(rows))
	for _, row := range rows {
		out := make(query.Row, len(columns))
		for i, column := range columns {
			if i >= len(row.Data) || row.Data[i].VarCharValue == nil {
				out[column.Name] = nil
				continue
			}
			out[column.Name] = *row.Data[i].VarCharValue
		}
		converted = append(converted, out)
	}
	return query.ResultSet{Columns: columns, Rows: converted}
}

// Athena repeats the column names as the first row of the first page for
// SELECT statements.
func isHeaderRow(row types.Row, columns []query.Column) bool {
	if len(columns) == 0 || len(row.Data) != len(columns) {
		return false
	}
	for i, datum := range row.Data {
		if datum.VarCharValue == nil || *datum.VarCharValue != columns[i].Name {
			return false
		}
	}
	return true
}

func mapAthenaErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "InvalidRequestException" && strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "not found") {
			return fmt.Errorf("%w: %s", query.ErrExecutionNotFound, apiErr.ErrorMessage())
		}
	}
	return err
}
