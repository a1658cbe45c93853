package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
)

const payloadSeparator = "|"

// ColumnType is the type tag of one column of an inline payload.
type ColumnType string

// Column type tags understood by the decoder. Unknown tags pass values
// through as text.
const (
	TypeString     ColumnType = "String"
	TypeDatetime   ColumnType = "Datetime"
	TypeInt        ColumnType = "Int"
	TypeBooleanInt ColumnType = "BooleanInt"
)

// Batch is a typed bulk insert: the insert statement plus its rows in
// column order.
type Batch struct {
	Query string
	Types []ColumnType
	Rows  [][]any
}

// Validate checks that every row has one value per column type.
func (b *Batch) Validate() error {
	if strings.TrimSpace(b.Query) == "" {
		return errors.New("batch has no insert statement")
	}
	if len(b.Types) == 0 {
		return nil
	}
	for i, row := range b.Rows {
		if len(row) != len(b.Types) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(b.Types))
		}
	}
	return nil
}

// DecodeInlinePayload decodes a pipe-delimited bulk insert:
//
//	[marker|]insert_query|row_count|column_count|type_1|...|type_N|v(0,0)|...
//
// Values are read in row-major chunks of column_count and coerced by their
// column's type tag.
func DecodeInlinePayload(payload string) (*Batch, error) {
	fields := strings.Split(payload, payloadSeparator)
	if len(fields) > 0 && strings.Contains(fields[0], config.InlinePayloadMarker) {
		fields = fields[1:]
	}
	if len(fields) < 3 {
		return nil, fmt.Errorf("inline payload has %d header fields, want at least 3", len(fields))
	}

	rowCount, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid row count %q: %w", fields[1], err)
	}
	columnCount, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil || columnCount < 0 {
		return nil, fmt.Errorf("invalid column count %q", fields[2])
	}
	if len(fields) < 3+columnCount {
		return nil, fmt.Errorf("inline payload declares %d columns but has %d type tags",
			columnCount, len(fields)-3)
	}

	batch := &Batch{Query: fields[0], Types: make([]ColumnType, columnCount)}
	for i := range batch.Types {
		batch.Types[i] = ColumnType(fields[3+i])
	}
	if columnCount == 0 {
		return batch, nil
	}

	values := fields[3+columnCount:]
	if len(values)%columnCount != 0 {
		return nil, fmt.Errorf("inline payload has %d values, not a multiple of %d columns",
			len(values), columnCount)
	}
	if got := len(values) / columnCount; got != rowCount {
		return nil, fmt.Errorf("inline payload declares %d rows but carries %d", rowCount, got)
	}

	batch.Rows = make([][]any, 0, rowCount)
	for start := 0; start < len(values); start += columnCount {
		row := make([]any, columnCount)
		for j := range row {
			v, err := Coerce(batch.Types[j], values[start+j])
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", start/columnCount, j, err)
			}
			row[j] = v
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

// Coerce converts one payload value by its type tag.
func Coerce(typ ColumnType, raw string) (any, error) {
	switch typ {
	case TypeString:
		return raw, nil
	case TypeDatetime:
		t, err := dateparse.ParseAny(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid Datetime %q: %w", raw, err)
		}
		return t, nil
	case TypeInt:
		s := strings.TrimSpace(raw)
		if s == "None" {
			return int64(0), nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid Int %q: %w", raw, err)
		}
		return n, nil
	case TypeBooleanInt:
		if strings.ToUpper(raw) == "TRUE" {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return raw, nil
	}
}

// EncodeInlinePayload renders b in the pipe-delimited form that
// DecodeInlinePayload reads, prefixed with the payload marker.
func EncodeInlinePayload(b *Batch) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	if strings.Contains(b.Query, payloadSeparator) {
		return "", errors.New("insert statement contains the payload separator")
	}

	fields := make([]string, 0, 4+len(b.Types)+len(b.Rows)*len(b.Types))
	fields = append(fields,
		config.InlinePayloadMarker,
		b.Query,
		strconv.Itoa(len(b.Rows)),
		strconv.Itoa(len(b.Types)))
	for _, t := range b.Types {
		fields = append(fields, string(t))
	}
	for i, row := range b.Rows {
		for j, v := range row {
			s := formatPayloadValue(v)
			if strings.Contains(s, payloadSeparator) {
				return "", fmt.Errorf("row %d column %d contains the payload separator", i, j)
			}
			fields = append(fields, s)
		}
	}
	return strings.Join(fields, payloadSeparator), nil
}

func formatPayloadValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05.999999999")
	default:
		return fmt.Sprint(x)
	}
}
