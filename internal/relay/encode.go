package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/queryrelay/queryrelay/internal/query"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported result format %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "application/json"
}

// Encode serializes the result rows in the given format.
func Encode(format Format, rs query.ResultSet) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		return encodeJSON(rs)
	case FormatParquet:
		return encodeParquet(rs)
	default:
		return nil, fmt.Errorf("unsupported result format %q", format)
	}
}

func encodeJSON(rs query.ResultSet) ([]byte, error) {
	rows := rs.Rows
	if rows == nil {
		rows = []query.Row{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal result rows: %w", err)
	}
	return data, nil
}

// encodeParquet writes every column as an optional UTF-8 string; non-string
// values are formatted with fmt and NULL stays NULL.
func encodeParquet(rs query.ResultSet) ([]byte, error) {
	names := columnNames(rs)
	if len(names) == 0 {
		return nil, fmt.Errorf("parquet output needs at least one column")
	}

	group := parquet.Group{}
	for _, name := range names {
		if _, dup := group[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		group[name] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("result", group)

	// Leaf order in the schema is not the result order.
	leaves := schema.Columns()
	rows := make([]parquet.Row, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		out := make(parquet.Row, len(leaves))
		for i, path := range leaves {
			value, ok := row[path[0]]
			if !ok || value == nil {
				out[i] = parquet.NullValue().Level(0, 0, i)
				continue
			}
			out[i] = parquet.ByteArrayValue([]byte(stringify(value))).Level(0, 1, i)
		}
		rows = append(rows, out)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewWriter(buf, schema)
	if _, err := writer.WriteRows(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func columnNames(rs query.ResultSet) []string {
	if len(rs.Columns) > 0 {
		names := make([]string, 0, len(rs.Columns))
		for _, column := range rs.Columns {
			names = append(names, column.Name)
		}
		return names
	}
	seen := map[string]struct{}{}
	for _, row := range rs.Rows {
		for name := range row {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(typed)
	}
}
