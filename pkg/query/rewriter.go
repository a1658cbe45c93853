package query

import (
	"strings"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/sqltoken"
)

// Rewriter turns statements in the source dialect into statements the
// server accepts. It is pure and safe for concurrent use.
type Rewriter struct {
	engines  map[string]string
	stripped []string
}

// NewRewriter creates a rewriter with the default engine substitution and
// settings stripping.
func NewRewriter() *Rewriter {
	return &Rewriter{
		engines:  map[string]string{config.LocalEngine: config.ClusterEngine},
		stripped: []string{config.IncompatibleSettings},
	}
}

// Rewrite substitutes storage engine names and removes incompatible settings.
//
// Engine names are replaced only where they form a whole word outside
// literals and comments, so an already rewritten statement is unchanged
// by a second pass.
func (r *Rewriter) Rewrite(sql string) string {
	var b strings.Builder
	last := 0
	for _, tok := range sqltoken.Scan(sql) {
		if tok.Kind != sqltoken.Word {
			continue
		}
		repl, ok := r.engines[tok.Text]
		if !ok {
			continue
		}
		b.WriteString(sql[last:tok.Start])
		b.WriteString(repl)
		last = tok.End
	}
	if last > 0 {
		b.WriteString(sql[last:])
		sql = b.String()
	}

	for _, fragment := range r.stripped {
		sql = strings.ReplaceAll(sql, fragment, "")
	}
	return sql
}

// DefaultRewriter is the rewriter used when none is configured.
var DefaultRewriter = NewRewriter()

// Rewrite is a convenience function using the default rewriter.
func Rewrite(sql string) string {
	return DefaultRewriter.Rewrite(sql)
}
