// Package config provides configuration constants and connection credentials for the ByteHouse bridge.
package config

// Metadata snapshot schema. The scratch database is rebuilt on demand and is
// not a stable catalog callers may rely on across calls.
const (
	MetadataDatabase       = "system_meta"
	MetadataDatabasesTable = "databases"
	MetadataTablesTable    = "tables"
	MetadataColumnsTable   = "columns"

	// DatabasePrefix filters SHOW DATABASES before it is materialized.
	DatabasePrefix = "dbt"
)

// Storage engines. LocalEngine is what the templating layer emits and
// ClusterEngine is the distributed-capable equivalent the server accepts.
const (
	LocalEngine   = "MergeTree"
	ClusterEngine = "CnchMergeTree"
)

// IncompatibleSettings is an inline settings fragment that is valid in the
// source dialect but rejected by the server. It is removed verbatim.
const IncompatibleSettings = "SETTINGS  allow_nullable_key=1"

// InlinePayloadMarker identifies a statement that carries a pipe-delimited
// bulk-insert payload in its text.
const InlinePayloadMarker = "ByteHouseCustomCSV"

// Positions of the fields the bridge reads from introspection results.
// They follow the server's SHOW/DESCRIBE output layout.
const (
	ShowDatabasesNameIndex    = 0
	ShowDatabasesCommentIndex = 7
	ShowDatabasesEngineIndex  = 8

	ShowTablesNameIndex    = 0
	ShowTablesCommentIndex = 7
	ShowTablesKindIndex    = 8

	DescribeNameIndex    = 0
	DescribeTypeIndex    = 1
	DescribeCommentIndex = 4

	ShowWarehousesNameIndex  = 1
	ShowWarehousesStateIndex = 6
)

// ViewKind is the table kind SHOW TABLES reports for views.
const ViewKind = "VIEW"

// Database engines that support EXCHANGE TABLES.
const (
	EngineAtomic     = "Atomic"
	EngineReplicated = "Replicated"
)

// ClientName is reported to the server as the client product.
const ClientName = "bytehouse-bridge"

// Version of the bridge.
const Version = "0.3.0"
