package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/metadata"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/sqltoken"
)

// Dispatcher realizes one logical statement as one or more physical
// statements on a single connection, in order.
//
// A Dispatcher holds no lock. It must be used by one goroutine at a time,
// like the connection it wraps.
type Dispatcher struct {
	exec       connection.Executor
	database   string
	rewriter   SQLRewriter
	classifier StatementClassifier
	snapshots  *metadata.Builder
	views      *ViewCache
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDatabase sets the database used to qualify bare identifiers.
func WithDatabase(database string) Option {
	return func(d *Dispatcher) {
		d.database = database
	}
}

// WithViewCache enables caching of view lookups for ttl. Drops forget their
// target; a completed rename moves the answer to the new identifier.
func WithViewCache(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.views = NewViewCache(ttl)
	}
}

// WithRewriter replaces the default rewriter.
func WithRewriter(r SQLRewriter) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.rewriter = r
		}
	}
}

// NewDispatcher creates a dispatcher over exec.
func NewDispatcher(exec connection.Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		exec:       exec,
		rewriter:   DefaultRewriter,
		classifier: DefaultClassifier,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.snapshots = metadata.NewBuilder(d.logger)
	return d
}

// ViewCache returns the view cache, or nil when caching is off.
func (d *Dispatcher) ViewCache() *ViewCache {
	return d.views
}

// Dispatch runs sql and normalizes the response. In command mode DDL is
// sent without reading rows and the table is empty.
func (d *Dispatcher) Dispatch(ctx context.Context, sql string, fetch bool) (*Table, error) {
	res, err := d.run(ctx, sql, fetch)
	if err != nil {
		return nil, err
	}
	return Normalize(res), nil
}

// Query runs sql in fetch mode.
func (d *Dispatcher) Query(ctx context.Context, sql string) (*Table, error) {
	return d.Dispatch(ctx, sql, true)
}

// Command runs sql in command mode and returns the first cell of the first
// row, or nil when there is none.
func (d *Dispatcher) Command(ctx context.Context, sql string) (any, error) {
	res, err := d.run(ctx, sql, false)
	if err != nil {
		return nil, err
	}
	cell, _ := res.FirstCell()
	return cell, nil
}

// Insert sends a typed batch as one bulk insert. The insert statement is
// rewritten; the values are not.
func (d *Dispatcher) Insert(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return dberror.NewStatementError("", errors.New("nil batch"))
	}
	if err := batch.Validate(); err != nil {
		return dberror.NewStatementError(batch.Query, err)
	}
	return d.exec.InsertBatch(ctx, d.rewriter.Rewrite(batch.Query), batch.Rows)
}

func (d *Dispatcher) run(ctx context.Context, sql string, fetch bool) (*connection.Result, error) {
	start := time.Now()

	if IsInlinePayload(sql) {
		batch, err := DecodeInlinePayload(sql)
		if err != nil {
			return nil, dberror.NewStatementError(sql, err)
		}
		if err := d.Insert(ctx, batch); err != nil {
			return nil, err
		}
		d.logDispatch(KindBulkInsert, start)
		return &connection.Result{}, nil
	}

	if refs := metadata.References(sql); refs.Any() {
		if err := d.snapshots.Ensure(ctx, d.Raw(), refs); err != nil {
			return nil, err
		}
	}

	stmt := d.classifier.Classify(d.rewriter.Rewrite(sql))
	if stmt.Kind == KindRename && len(stmt.Renames) > 1 {
		return d.renameEach(ctx, stmt, fetch, start)
	}
	physical := stmt.SQL
	var (
		renamedView bool
		err         error
	)
	switch stmt.Kind {
	case KindRename:
		physical, renamedView, err = d.rename(ctx, stmt)
	case KindDrop:
		physical, err = d.drop(ctx, stmt)
	}
	if err != nil {
		return nil, err
	}

	res, err := d.execute(ctx, physical, fetch)
	if err != nil {
		return nil, err
	}
	if stmt.Kind == KindRename && d.views != nil {
		d.views.Put(stmt.To.Qualify(d.database).String(), renamedView)
	}
	d.logDispatch(stmt.Kind, start)
	return res, nil
}

// execute sends the final physical statement of a dispatch.
func (d *Dispatcher) execute(ctx context.Context, sql string, fetch bool) (*connection.Result, error) {
	if !fetch && IsDDL(sql) {
		if err := d.exec.Exec(ctx, sql); err != nil {
			return nil, err
		}
		return &connection.Result{}, nil
	}
	return d.exec.Query(ctx, sql)
}

// rename returns the physical statement that realizes a RENAME TABLE and
// whether the renamed relation is a view. A view cannot be renamed on the
// server, so it is recreated under the new name from its definition and
// the old view is dropped first.
func (d *Dispatcher) rename(ctx context.Context, stmt Statement) (string, bool, error) {
	from := stmt.From.Qualify(d.database)
	to := stmt.To.Qualify(d.database)
	defer d.invalidate(from, to)

	view, err := d.isView(ctx, from)
	if err != nil {
		return "", false, err
	}
	if !view {
		return stmt.SQL, false, nil
	}

	show := "SHOW CREATE TABLE " + from.Quoted()
	res, err := d.exec.Query(ctx, show)
	if err != nil {
		return "", true, err
	}
	cell, ok := res.FirstCell()
	if !ok {
		return "", true, dberror.NewStatementError(show, fmt.Errorf("no definition returned for view %s", from))
	}
	definition := cellString(cell)

	create, err := renameViewDefinition(definition, stmt.SQL[stmt.To.Start:stmt.To.End])
	if err != nil {
		return "", true, dberror.NewStatementError(show, err)
	}

	drop := "DROP VIEW IF EXISTS " + from.Quoted()
	if err := d.exec.Exec(ctx, drop); err != nil {
		return "", true, err
	}
	return create, true, nil
}

// renameEach realizes a RENAME TABLE with several pairs. Without views the
// statement runs verbatim. Otherwise each pair is dispatched as its own
// rename in statement order, and a failure leaves the earlier pairs renamed.
func (d *Dispatcher) renameEach(ctx context.Context, stmt Statement, fetch bool, start time.Time) (*connection.Result, error) {
	anyView := false
	for _, p := range stmt.Renames {
		view, err := d.isView(ctx, p.From.Qualify(d.database))
		if err != nil {
			return nil, err
		}
		if view {
			anyView = true
			break
		}
	}

	if !anyView {
		for _, p := range stmt.Renames {
			d.invalidate(p.From.Qualify(d.database), p.To.Qualify(d.database))
		}
		res, err := d.execute(ctx, stmt.SQL, fetch)
		if err != nil {
			return nil, err
		}
		if d.views != nil {
			for _, p := range stmt.Renames {
				d.views.Put(p.To.Qualify(d.database).String(), false)
			}
		}
		d.logDispatch(KindRename, start)
		return res, nil
	}

	d.logger.Debug("splitting rename", slog.Int("pairs", len(stmt.Renames)))
	var res *connection.Result
	for _, p := range stmt.Renames {
		single := "RENAME TABLE " + stmt.SQL[p.From.Start:p.From.End] + " TO " + stmt.SQL[p.To.Start:p.To.End]
		var err error
		if res, err = d.run(ctx, single, fetch); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// renameViewDefinition replaces the defined name of a CREATE VIEW
// statement with newName.
func renameViewDefinition(definition, newName string) (string, error) {
	tokens := sqltoken.Code(definition)
	i := sqltoken.SkipKeywords(tokens, 0, "CREATE")
	if i == 0 {
		return "", errors.New("view definition does not start with CREATE")
	}
	i = sqltoken.SkipKeywords(tokens, i, "OR", "REPLACE")
	i = sqltoken.SkipKeywords(tokens, i, "MATERIALIZED")
	next := sqltoken.SkipKeywords(tokens, i, "VIEW")
	if next == i {
		return "", errors.New("view definition has no VIEW keyword")
	}
	next = sqltoken.SkipKeywords(tokens, next, "IF", "NOT", "EXISTS")
	name, _, ok := sqltoken.ReadName(tokens, next)
	if !ok {
		return "", errors.New("view definition has no name")
	}
	return sqltoken.Splice(definition, name.Start, name.End, newName), nil
}

// drop returns the physical statement for DROP TABLE, which the server
// rejects for views.
func (d *Dispatcher) drop(ctx context.Context, stmt Statement) (string, error) {
	target := stmt.Target.Qualify(d.database)
	defer d.invalidate(target)

	view, err := d.isView(ctx, target)
	if err != nil || !view {
		return stmt.SQL, err
	}
	kw := stmt.TableKeyword
	return sqltoken.Splice(stmt.SQL, kw.Start, kw.End, "view"), nil
}

func (d *Dispatcher) isView(ctx context.Context, name sqltoken.Name) (bool, error) {
	key := name.String()
	if d.views != nil {
		if view, ok := d.views.Get(key); ok {
			return view, nil
		}
	}
	view, err := isView(ctx, d.exec, name)
	if err != nil {
		return false, err
	}
	if d.views != nil {
		d.views.Put(key, view)
	}
	return view, nil
}

func (d *Dispatcher) invalidate(names ...sqltoken.Name) {
	if d.views == nil {
		return
	}
	for _, n := range names {
		d.views.Invalidate(n.String())
	}
}

func (d *Dispatcher) logDispatch(kind Kind, start time.Time) {
	d.logger.Debug("statement dispatched",
		slog.String("kind", kind.String()),
		slog.Duration("elapsed", time.Since(start)))
}

// Raw returns an executor that applies the rewriter but no decomposition.
// The snapshot builder uses it to issue its own statements without
// re-entering dispatch.
func (d *Dispatcher) Raw() connection.Executor {
	return rawExecutor{exec: d.exec, rewriter: d.rewriter}
}

type rawExecutor struct {
	exec     connection.Executor
	rewriter SQLRewriter
}

func (r rawExecutor) Exec(ctx context.Context, sql string) error {
	return r.exec.Exec(ctx, r.rewriter.Rewrite(sql))
}

func (r rawExecutor) Query(ctx context.Context, sql string) (*connection.Result, error) {
	return r.exec.Query(ctx, r.rewriter.Rewrite(sql))
}

func (r rawExecutor) InsertBatch(ctx context.Context, sql string, rows [][]any) error {
	return r.exec.InsertBatch(ctx, r.rewriter.Rewrite(sql), rows)
}

var _ StatementDispatcher = (*Dispatcher)(nil)
