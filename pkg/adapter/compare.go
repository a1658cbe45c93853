package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/sqltoken"
)

const rowsDifferentTemplate = `SELECT
    row_count_diff.difference as row_count_difference,
    diff_count.num_missing as num_mismatched
FROM (
    SELECT
        1 as id,
        (SELECT COUNT(*) as num_rows FROM {relation_a}) -
        (SELECT COUNT(*) as num_rows FROM {relation_b}) as difference
    ) as row_count_diff
INNER JOIN (
    SELECT
        1 as id,
        COUNT(*) as num_missing FROM (
            SELECT
                {columns_a}
            FROM {relation_a} as {alias_a}
            LEFT OUTER JOIN {relation_b} as {alias_b}
                ON {join_condition}
            WHERE {alias_b}.{first_column} IS NULL
            UNION ALL
            SELECT
                {columns_b}
            FROM {relation_b} as {alias_b}
            LEFT OUTER JOIN {relation_a} as {alias_a}
                ON {join_condition}
            WHERE {alias_a}.{first_column} IS NULL
        ) as missing
    ) as diff_count ON row_count_diff.id = diff_count.id`

// RowsDifferentSQL renders a query comparing two relations row by row on
// columns. The engine has no EXCEPT, so missing rows are found with outer
// joins in both directions.
func RowsDifferentSQL(relationA, relationB string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", errors.New("no columns to compare")
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quoteColumn(c)
	}
	sort.Strings(names)

	const aliasA, aliasB = "ta", "tb"
	colsA := make([]string, len(names))
	colsB := make([]string, len(names))
	join := make([]string, len(names))
	for i, n := range names {
		colsA[i] = aliasA + "." + n
		colsB[i] = aliasB + "." + n
		join[i] = fmt.Sprintf("%s.%s = %s.%s", aliasA, n, aliasB, n)
	}

	return strings.NewReplacer(
		"{relation_a}", relationA,
		"{relation_b}", relationB,
		"{columns_a}", strings.Join(colsA, ", "),
		"{columns_b}", strings.Join(colsB, ", "),
		"{alias_a}", aliasA,
		"{alias_b}", aliasB,
		"{join_condition}", strings.Join(join, " AND "),
		"{first_column}", names[0],
	).Replace(rowsDifferentTemplate), nil
}

// RowsDifferentSQL renders the comparison query, reading the column list
// of relationA from the server when columns is empty.
func (m *ConnectionManager) RowsDifferentSQL(ctx context.Context, relationA, relationB string, columns []string) (string, error) {
	if len(columns) == 0 {
		var err error
		if columns, err = m.ColumnsInRelation(ctx, relationA); err != nil {
			return "", err
		}
	}
	return RowsDifferentSQL(relationA, relationB, columns)
}

// ColumnsInRelation returns the column names of relation in order.
func (m *ConnectionManager) ColumnsInRelation(ctx context.Context, relation string) ([]string, error) {
	d, err := m.current()
	if err != nil {
		return nil, err
	}
	name, _, ok := sqltoken.ReadName(sqltoken.Code(relation), 0)
	if !ok {
		return nil, fmt.Errorf("invalid relation %q", relation)
	}
	table, err := d.Query(ctx, "DESCRIBE TABLE "+name.Quoted())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if len(row) == 0 {
			continue
		}
		if s, ok := row[0].(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}
