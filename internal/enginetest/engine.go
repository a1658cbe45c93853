// Package enginetest provides a scripted engine for package tests.
package enginetest

import (
	"context"
	"strings"
	"sync"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
)

// Op is the kind of physical call recorded by Engine.
type Op string

// Recorded operations.
const (
	OpExec   Op = "exec"
	OpQuery  Op = "query"
	OpInsert Op = "insert"
)

// Call is one physical statement seen by Engine.
type Call struct {
	Op   Op
	SQL  string
	Rows [][]any
}

type rule struct {
	prefix string
	result *connection.Result
	err    error
}

// Engine is a scripted connection.Conn. Statements are matched against
// registered prefixes in registration order; unmatched queries return an
// empty result and unmatched execs succeed.
type Engine struct {
	mu     sync.Mutex
	rules  []rule
	calls  []Call
	closed bool
}

// New returns an Engine with no rules.
func New() *Engine {
	return &Engine{}
}

// OnQuery makes statements starting with prefix return res.
func (e *Engine) OnQuery(prefix string, res *connection.Result) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule{prefix: prefix, result: res})
	return e
}

// OnError makes statements starting with prefix fail with err.
func (e *Engine) OnError(prefix string, err error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule{prefix: prefix, err: err})
	return e
}

// Exec implements connection.Executor.
func (e *Engine) Exec(_ context.Context, sql string) error {
	_, err := e.record(Call{Op: OpExec, SQL: sql})
	return err
}

// Query implements connection.Executor.
func (e *Engine) Query(_ context.Context, sql string) (*connection.Result, error) {
	return e.record(Call{Op: OpQuery, SQL: sql})
}

// InsertBatch implements connection.Executor.
func (e *Engine) InsertBatch(_ context.Context, sql string, rows [][]any) error {
	_, err := e.record(Call{Op: OpInsert, SQL: sql, Rows: rows})
	return err
}

// Close implements connection.Conn.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Calls returns a copy of every recorded call.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// SQL returns the text of every recorded call in order.
func (e *Engine) SQL() []string {
	calls := e.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.SQL
	}
	return out
}

// Count returns how many recorded statements start with prefix.
func (e *Engine) Count(prefix string) int {
	n := 0
	for _, c := range e.Calls() {
		if strings.HasPrefix(c.SQL, prefix) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls but keeps the rules.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func (e *Engine) record(c Call) (*connection.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
	for _, r := range e.rules {
		if strings.HasPrefix(c.SQL, r.prefix) {
			if r.err != nil {
				return nil, r.err
			}
			return r.result, nil
		}
	}
	return &connection.Result{}, nil
}

// Rows builds a result with untyped columns.
func Rows(columns []string, rows ...[]any) *connection.Result {
	res := &connection.Result{Columns: make([]connection.Column, len(columns)), Rows: rows}
	for i, c := range columns {
		res.Columns[i] = connection.Column{Name: c}
	}
	return res
}

// Row pads values to width with empty strings, for positional SHOW results.
func Row(width int, cells map[int]any) []any {
	row := make([]any, width)
	for i := range row {
		row[i] = ""
	}
	for i, v := range cells {
		row[i] = v
	}
	return row
}

var _ connection.Conn = (*Engine)(nil)
