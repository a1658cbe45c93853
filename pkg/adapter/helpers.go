package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/session"
)

// RelationTable is the relation type that can take part in an exchange.
const RelationTable = "table"

// IsBeforeVersion reports whether the server is older than version.
// Without an open session it reports false.
func (m *ConnectionManager) IsBeforeVersion(version string) (bool, error) {
	sess := m.Session()
	if sess == nil {
		return false, nil
	}
	cmp, err := session.CompareVersions(version, sess.ServerVersion())
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

// SupportsAtomicExchange reports whether the open session confirmed
// EXCHANGE TABLES.
func (m *ConnectionManager) SupportsAtomicExchange() bool {
	sess := m.Session()
	return sess != nil && sess.AtomicExchange()
}

// CanExchange reports whether a relation of relType in schema can be
// swapped with EXCHANGE TABLES. A failed database lookup reports false.
func (m *ConnectionManager) CanExchange(ctx context.Context, schema, relType string) bool {
	if relType != RelationTable || schema == "" || !m.SupportsAtomicExchange() {
		return false
	}
	d, err := m.current()
	if err != nil {
		return false
	}
	table, err := d.Query(ctx, fmt.Sprintf(
		"SELECT name, engine, comment FROM system.databases WHERE name = '%s'", quoteLiteral(schema)))
	if err != nil {
		m.logger.Debug("database lookup failed", slog.String("schema", schema), slog.String("error", err.Error()))
		return false
	}
	for _, rec := range table.Records() {
		engine, _ := rec["engine"].(string)
		return engine == config.EngineAtomic || engine == config.EngineReplicated
	}
	return false
}

// DatabaseEngineClause returns the ENGINE clause for CREATE DATABASE, or ""
// when no database engine is configured.
func (m *ConnectionManager) DatabaseEngineClause() string {
	if m.creds.DatabaseEngine == "" {
		return ""
	}
	return "ENGINE " + m.creds.DatabaseEngine
}

// ClusterName returns the configured cluster double-quoted, or "".
func (m *ConnectionManager) ClusterName() string {
	if m.creds.Cluster == "" {
		return ""
	}
	return `"` + m.creds.Cluster + `"`
}

// ModelSettingsClause renders model settings as a SETTINGS clause with
// keys in sorted order, or "" when there are none.
func ModelSettingsClause(settings map[string]any) string {
	if len(settings) == 0 {
		return ""
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(" %s=%v", k, settings[k])
	}
	return "SETTINGS " + strings.Join(parts, ", ") + "\n"
}

// UpdateColumnSQL renders an ALTER TABLE ... UPDATE mutation. An empty
// where clause updates every row.
func UpdateColumnSQL(dst, column, clause, where string) string {
	sql := fmt.Sprintf("alter table %s update %s = %s", dst, column, clause)
	if where != "" {
		sql += " where " + where
	}
	return sql
}

func quoteLiteral(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func quoteColumn(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
