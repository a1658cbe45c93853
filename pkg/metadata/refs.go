// Package metadata materializes a scratch catalog of databases, tables and
// columns so that metadata lookups can run as ordinary SQL.
package metadata

import (
	"github.com/blastrain/vitess-sqlparser/sqlparser"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/sqltoken"
)

// Refs records which scratch relations a statement reads.
// Tables implies Databases and Columns implies Tables, because each
// relation is populated from the one before it.
type Refs struct {
	Databases bool
	Tables    bool
	Columns   bool
}

// Any reports whether the statement touches the scratch schema at all.
func (r Refs) Any() bool {
	return r.Databases || r.Tables || r.Columns
}

func (r *Refs) add(table string) {
	r.Databases = true
	switch table {
	case config.MetadataTablesTable:
		r.Tables = true
	case config.MetadataColumnsTable:
		r.Tables = true
		r.Columns = true
	}
}

// References reports which scratch relations sql refers to.
//
// Statements the parser understands are resolved from their table
// references. Anything else, including engine-specific syntax the parser
// rejects, falls back to a token scan that ignores literals and comments.
func References(sql string) Refs {
	scanned := scannedReferences(sql)
	if !scanned.Any() {
		return scanned
	}
	if refs, ok := parsedReferences(sql); ok {
		return refs
	}
	return scanned
}

// parsedReferences walks the table names of a parsed statement. It reports
// false when the statement does not parse or names no tables. The parser
// panics on some SHOW forms; those report false as well.
func parsedReferences(sql string) (refs Refs, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			refs, ok = Refs{}, false
		}
	}()

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return Refs{}, false
	}

	found := false
	visit := func(qualifier, name string) {
		if name == "" {
			return
		}
		found = true
		switch {
		case qualifier == config.MetadataDatabase:
			refs.add(name)
		case qualifier == "" && name == config.MetadataDatabase:
			// SHOW ... FROM system_meta parses the schema as a bare name.
			refs.add("")
		}
	}
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case sqlparser.TableName:
			visit(n.Qualifier.String(), n.Name.String())
		case *sqlparser.TableName:
			visit(n.Qualifier.String(), n.Name.String())
		}
		return true, nil
	}, stmt)
	return refs, found
}

func scannedReferences(sql string) Refs {
	var refs Refs
	tokens := sqltoken.Code(sql)
	for i, tok := range tokens {
		if !tok.IsName() || tok.Value() != config.MetadataDatabase {
			continue
		}
		table := ""
		if i+2 < len(tokens) && tokens[i+1].IsPunct('.') && tokens[i+2].IsName() {
			table = tokens[i+2].Value()
		}
		refs.add(table)
	}
	return refs
}
