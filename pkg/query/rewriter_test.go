package query

import (
	"testing"
)

func TestRewriter_Rewrite(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "EngineSubstitution",
			input: "CREATE TABLE dbt.t (id Int64) ENGINE = MergeTree() ORDER BY id",
			want:  "CREATE TABLE dbt.t (id Int64) ENGINE = CnchMergeTree() ORDER BY id",
		},
		{
			name:  "AlreadyClusterEngine",
			input: "CREATE TABLE dbt.t (id Int64) ENGINE = CnchMergeTree() ORDER BY id",
			want:  "CREATE TABLE dbt.t (id Int64) ENGINE = CnchMergeTree() ORDER BY id",
		},
		{
			name:  "LongerEngineNameUntouched",
			input: "ENGINE = ReplicatedMergeTree('/p', 'r')",
			want:  "ENGINE = ReplicatedMergeTree('/p', 'r')",
		},
		{
			name:  "LiteralAndCommentUntouched",
			input: "-- MergeTree\nselect 'MergeTree' as e, `MergeTree` from t",
			want:  "-- MergeTree\nselect 'MergeTree' as e, `MergeTree` from t",
		},
		{
			name:  "EngineAtStart",
			input: "MergeTree",
			want:  "CnchMergeTree",
		},
		{
			name:  "SettingsStripped",
			input: "ENGINE = MergeTree() ORDER BY id SETTINGS  allow_nullable_key=1",
			want:  "ENGINE = CnchMergeTree() ORDER BY id ",
		},
		{
			name:  "SettingsWithSingleSpaceKept",
			input: "ORDER BY id SETTINGS allow_nullable_key=1",
			want:  "ORDER BY id SETTINGS allow_nullable_key=1",
		},
		{
			name:  "NoChange",
			input: "select 1",
			want:  "select 1",
		},
	}

	r := NewRewriter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Rewrite(tt.input)
			if got != tt.want {
				t.Errorf("Rewrite() = %q, want %q", got, tt.want)
			}
			if again := r.Rewrite(got); again != got {
				t.Errorf("Rewrite() is not idempotent: %q then %q", got, again)
			}
		})
	}
}
