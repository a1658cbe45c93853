package adapter

import (
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/query"
)

// ColumnKind is the inferred type of a seed column on the host side.
type ColumnKind int

// Seed column kinds.
const (
	KindText ColumnKind = iota
	KindNumber
	KindBoolean
	KindDateTime
	KindDate
	KindTime
)

// Server type names used for seed columns.
const (
	TypeString   = "String"
	TypeFloat32  = "Float32"
	TypeInt32    = "Int32"
	TypeDateTime = "DateTime"
	TypeDate     = "Date"
)

// payloadNotImplemented is the tag written for kinds the payload decoder
// has no coercion for. Their values travel as text.
const payloadNotImplemented query.ColumnType = "NotImplemented"

// TypeMapper maps seed column kinds to server column types and to inline
// payload type tags.
type TypeMapper struct {
	columnTypes  map[ColumnKind]string
	payloadTypes map[ColumnKind]query.ColumnType
}

// NewTypeMapper creates a new type mapper with default mappings.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{
		columnTypes: map[ColumnKind]string{
			KindText:     TypeString,
			KindNumber:   TypeInt32,
			KindBoolean:  TypeInt32,
			KindDateTime: TypeDateTime,
			KindDate:     TypeDate,
		},
		payloadTypes: map[ColumnKind]query.ColumnType{
			KindText:     query.TypeString,
			KindNumber:   query.TypeInt,
			KindBoolean:  query.TypeBooleanInt,
			KindDateTime: query.TypeDatetime,
		},
	}
}

// ColumnType returns the server type for a seed column. Numbers with
// decimals become Float32. Time-of-day columns have no server type.
func (m *TypeMapper) ColumnType(kind ColumnKind, hasDecimals bool) (string, error) {
	if kind == KindNumber && hasDecimals {
		return TypeFloat32, nil
	}
	if t, ok := m.columnTypes[kind]; ok {
		return t, nil
	}
	return "", dberror.NewUnsupportedError("time column conversion")
}

// PayloadType returns the inline payload tag for a seed column.
func (m *TypeMapper) PayloadType(kind ColumnKind) query.ColumnType {
	if t, ok := m.payloadTypes[kind]; ok {
		return t
	}
	return payloadNotImplemented
}

// defaultTypeMapper is the package-level type mapper instance.
var defaultTypeMapper = NewTypeMapper()

// ConvertType is a convenience function using the default mapper.
func ConvertType(kind ColumnKind, hasDecimals bool) (string, error) {
	return defaultTypeMapper.ColumnType(kind, hasDecimals)
}

// SeedPayload encodes rows as an inline bulk-insert payload for insert.
// The result is sent through Execute like any other statement.
func SeedPayload(insert string, kinds []ColumnKind, rows [][]any) (string, error) {
	types := make([]query.ColumnType, len(kinds))
	for i, k := range kinds {
		types[i] = defaultTypeMapper.PayloadType(k)
	}
	return query.EncodeInlinePayload(&query.Batch{Query: insert, Types: types, Rows: rows})
}
