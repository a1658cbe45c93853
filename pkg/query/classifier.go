// Package query rewrites statements for the server, decomposes the ones
// that have no direct equivalent and dispatches them over a connection.
package query

import (
	"strings"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/sqltoken"
)

// Kind is the dispatch path of a statement.
type Kind int

// Statement kinds.
const (
	KindPlain      Kind = iota // executed as rewritten
	KindRename                 // RENAME TABLE, may target a view
	KindDrop                   // DROP TABLE, may target a view
	KindBulkInsert             // inline pipe-delimited payload
)

func (k Kind) String() string {
	switch k {
	case KindRename:
		return "rename"
	case KindDrop:
		return "drop"
	case KindBulkInsert:
		return "bulk-insert"
	default:
		return "plain"
	}
}

// Statement is a classified statement. Names carry byte spans into SQL.
type Statement struct {
	SQL   string
	Kind  Kind
	IsDDL bool

	// From and To are set for KindRename. They are the first pair;
	// Renames holds every pair in statement order.
	From    sqltoken.Name
	To      sqltoken.Name
	Renames []RenamePair

	// Target and TableKeyword are set for KindDrop.
	Target       sqltoken.Name
	TableKeyword sqltoken.Token
}

// Classifier tags statements by lexing them. Literals and comments never
// trigger a path.
type Classifier struct{}

// NewClassifier creates a new classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify analyzes sql and returns its classification.
func (c *Classifier) Classify(sql string) Statement {
	stmt := Statement{SQL: sql}
	if IsInlinePayload(sql) {
		stmt.Kind = KindBulkInsert
		return stmt
	}
	tokens := sqltoken.Code(sql)
	if len(tokens) == 0 {
		return stmt
	}
	stmt.IsDDL = tokens[0].Is("CREATE") || tokens[0].Is("DROP") || tokens[0].Is("ALTER")

	if i := sqltoken.FindKeywords(tokens, "RENAME", "TABLE"); i >= 0 {
		if pairs := renamePairs(tokens, i+2); len(pairs) > 0 {
			stmt.Kind = KindRename
			stmt.From = pairs[0].From
			stmt.To = pairs[0].To
			stmt.Renames = pairs
			return stmt
		}
	}

	if i := sqltoken.FindKeywords(tokens, "DROP", "TABLE"); i >= 0 {
		next := sqltoken.SkipKeywords(tokens, i+2, "IF", "EXISTS")
		if target, _, ok := sqltoken.ReadName(tokens, next); ok {
			stmt.Kind = KindDrop
			stmt.Target = target
			stmt.TableKeyword = tokens[i+1]
			return stmt
		}
	}
	return stmt
}

// RenamePair is one "old TO new" clause of a RENAME TABLE statement.
type RenamePair struct {
	From sqltoken.Name
	To   sqltoken.Name
}

// renamePairs reads comma-separated "old TO new" clauses starting at i.
func renamePairs(tokens []sqltoken.Token, i int) []RenamePair {
	var pairs []RenamePair
	for {
		from, next, ok := sqltoken.ReadName(tokens, i)
		if !ok || next >= len(tokens) || !tokens[next].Is("TO") {
			return pairs
		}
		to, next, ok := sqltoken.ReadName(tokens, next+1)
		if !ok {
			return pairs
		}
		pairs = append(pairs, RenamePair{From: from, To: to})
		if next >= len(tokens) || !tokens[next].IsPunct(',') {
			return pairs
		}
		i = next + 1
	}
}

// IsInlinePayload reports whether sql is a pipe-delimited bulk-insert
// payload: its first field starts with the payload marker.
func IsInlinePayload(sql string) bool {
	first, _, _ := strings.Cut(sql, payloadSeparator)
	tokens := sqltoken.Code(first)
	return len(tokens) > 0 && tokens[0].Kind == sqltoken.Word && tokens[0].Text == config.InlinePayloadMarker
}

// DefaultClassifier is the default classifier instance.
var DefaultClassifier = NewClassifier()

// Classify is a convenience function using the default classifier.
func Classify(sql string) Statement {
	return DefaultClassifier.Classify(sql)
}

// IsDDL reports whether sql starts with CREATE, DROP or ALTER. DDL responses
// on a cluster are not row-shaped, so callers skip fetching for them.
func IsDDL(sql string) bool {
	return DefaultClassifier.Classify(sql).IsDDL
}
