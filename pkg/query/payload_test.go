package query

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeInlinePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *Batch
	}{
		{
			name:    "MixedTypes",
			payload: "insert|2|3|String|Int|BooleanInt|a|1|TRUE|b|2|FALSE",
			want: &Batch{
				Query: "insert",
				Types: []ColumnType{TypeString, TypeInt, TypeBooleanInt},
				Rows:  [][]any{{"a", int64(1), int64(1)}, {"b", int64(2), int64(0)}},
			},
		},
		{
			name:    "MarkerFieldSkipped",
			payload: "ByteHouseCustomCSV|INSERT INTO dbt.seed VALUES|1|2|Int|BooleanInt|None|true",
			want: &Batch{
				Query: "INSERT INTO dbt.seed VALUES",
				Types: []ColumnType{TypeInt, TypeBooleanInt},
				Rows:  [][]any{{int64(0), int64(1)}},
			},
		},
		{
			name:    "Datetime",
			payload: "q|1|1|Datetime|2023-04-05 06:07:08",
			want: &Batch{
				Query: "q",
				Types: []ColumnType{TypeDatetime},
				Rows:  [][]any{{time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)}},
			},
		},
		{
			name:    "UnknownTagPassesThrough",
			payload: "q|1|1|Float|1.5",
			want: &Batch{
				Query: "q",
				Types: []ColumnType{"Float"},
				Rows:  [][]any{{"1.5"}},
			},
		},
		{
			name:    "NoRows",
			payload: "q|0|2|String|Int",
			want: &Batch{
				Query: "q",
				Types: []ColumnType{TypeString, TypeInt},
				Rows:  [][]any{},
			},
		},
		{
			name:    "ZeroColumns",
			payload: "q|0|0",
			want:    &Batch{Query: "q", Types: []ColumnType{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInlinePayload(tt.payload)
			if err != nil {
				t.Fatalf("DecodeInlinePayload() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeInlinePayload() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeInlinePayload_Errors(t *testing.T) {
	tests := map[string]string{
		"TooFewFields":     "q|1",
		"BadRowCount":      "q|x|1|String|a",
		"BadColumnCount":   "q|1|-1",
		"MissingTypeTags":  "q|1|3|String",
		"RaggedValues":     "q|1|2|String|Int|a|1|b",
		"RowCountMismatch": "q|3|1|String|a|b",
		"BadInt":           "q|1|1|Int|one",
		"BadDatetime":      "q|1|1|Datetime|not a date",
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeInlinePayload(payload); err == nil {
				t.Errorf("DecodeInlinePayload(%q) expected error", payload)
			}
		})
	}
}

func TestCoerce_BooleanInt(t *testing.T) {
	for raw, want := range map[string]int64{"TRUE": 1, "true": 1, "True": 1, "FALSE": 0, "1": 0, "": 0} {
		got, err := Coerce(TypeBooleanInt, raw)
		if err != nil {
			t.Fatalf("Coerce(%q) error = %v", raw, err)
		}
		if got != want {
			t.Errorf("Coerce(BooleanInt, %q) = %v, want %d", raw, got, want)
		}
	}
}

func TestEncodeInlinePayload(t *testing.T) {
	batch := &Batch{
		Query: "INSERT INTO dbt.seed VALUES",
		Types: []ColumnType{TypeString, TypeInt, TypeBooleanInt, TypeDatetime},
		Rows: [][]any{
			{"a", int64(1), true, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
			{"b", nil, false, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		},
	}

	encoded, err := EncodeInlinePayload(batch)
	if err != nil {
		t.Fatalf("EncodeInlinePayload() error = %v", err)
	}
	want := "ByteHouseCustomCSV|INSERT INTO dbt.seed VALUES|2|4|String|Int|BooleanInt|Datetime|" +
		"a|1|TRUE|2024-01-02 03:04:05|b|None|FALSE|2024-01-02 03:04:05"
	if encoded != want {
		t.Fatalf("EncodeInlinePayload() = %q, want %q", encoded, want)
	}
	if !IsInlinePayload(encoded) {
		t.Error("encoded payload is not recognized as a payload")
	}

	decoded, err := DecodeInlinePayload(encoded)
	if err != nil {
		t.Fatalf("DecodeInlinePayload() error = %v", err)
	}
	wantRows := [][]any{
		{"a", int64(1), int64(1), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"b", int64(0), int64(0), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	if diff := cmp.Diff(wantRows, decoded.Rows); diff != "" {
		t.Errorf("decoded rows mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeInlinePayload_RejectsSeparator(t *testing.T) {
	tests := map[string]*Batch{
		"InValue": {Query: "q", Types: []ColumnType{TypeString}, Rows: [][]any{{"a|b"}}},
		"InQuery": {Query: "q|x", Types: []ColumnType{TypeString}},
		"Ragged":  {Query: "q", Types: []ColumnType{TypeString}, Rows: [][]any{{"a", "b"}}},
		"NoQuery": {Types: []ColumnType{TypeString}},
	}
	for name, batch := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := EncodeInlinePayload(batch); err == nil {
				t.Error("EncodeInlinePayload() expected error")
			}
		})
	}
}
