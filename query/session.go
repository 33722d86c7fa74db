package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/vegasq/pxcat/logging"
	"github.com/vegasq/pxcat/metrics"
	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/reader"
	"github.com/vegasq/pxcat/value"
)

// SessionOptions configures a session
type SessionOptions struct {
	// Locale drives UPPER and LOWER; defaults to language.Und
	Locale language.Tag
	// MaxRows caps every statement; 0 means unlimited
	MaxRows int64
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Tracer defaults to the global otel tracer provider
	Tracer trace.Tracer
	// Functions defaults to DefaultRegistry()
	Functions *FunctionRegistry
	// Clock defaults to time.Now
	Clock func() time.Time
}

// Session prepares and runs statements against one catalog
type Session struct {
	catalog   *reader.Catalog
	functions *FunctionRegistry
	opts      SessionOptions
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewSession creates a session over catalog
func NewSession(catalog *reader.Catalog, opts *SessionOptions) *Session {
	s := &Session{catalog: catalog}
	if opts != nil {
		s.opts = *opts
	}
	s.functions = s.opts.Functions
	if s.functions == nil {
		s.functions = DefaultRegistry()
	}
	if s.opts.Clock == nil {
		s.opts.Clock = time.Now
	}
	s.logger = logging.OrDiscard(s.opts.Logger)
	s.tracer = s.opts.Tracer
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/vegasq/pxcat/query")
	}
	return s
}

// Catalog returns the catalog the session reads
func (s *Session) Catalog() *reader.Catalog {
	return s.catalog
}

// Prepare parses and binds a statement
func (s *Session) Prepare(sql string) (*Statement, error) {
	stmt, err := Parse(sql)
	if err != nil {
		s.logger.Debug("parse failed", "error", err)
		return nil, err
	}
	plan, err := Bind(stmt, s.catalog, s.functions)
	if err != nil {
		s.logger.Debug("bind failed", "error", err)
		return nil, err
	}
	st := &Statement{ID: uuid.New(), SQL: sql, session: s, plan: plan}
	s.logger.Debug("statement prepared", "statement", st.ID, "columns", len(plan.Columns), "params", plan.Params)
	return st, nil
}

// Query prepares and runs a statement in one step
func (s *Session) Query(ctx context.Context, sql string, params ...interface{}) (*Rows, error) {
	st, err := s.Prepare(sql)
	if err != nil {
		return nil, err
	}
	return st.Query(ctx, params...)
}

// Statement is a prepared statement. It may be executed any number of times.
type Statement struct {
	ID  uuid.UUID
	SQL string

	session *Session
	plan    *Plan
}

// Columns describes the result columns in output order
func (st *Statement) Columns() []Column {
	return st.plan.Columns
}

// NumInput returns the number of positional parameters
func (st *Statement) NumInput() int {
	return st.plan.Params
}

// Plan returns the bound plan
func (st *Statement) Plan() *Plan {
	return st.plan
}

// Query starts an execution and returns a cursor positioned before the first row
func (st *Statement) Query(ctx context.Context, params ...interface{}) (*Rows, error) {
	if len(params) != st.plan.Params {
		return nil, pxerr.ParameterCount(st.plan.Params, len(params))
	}
	vals := make([]value.Value, len(params))
	for i, p := range params {
		v, err := value.FromNative(p)
		if err != nil {
			return nil, pxerr.Type("parameter %d: %v", i+1, err)
		}
		vals[i] = v
	}

	s := st.session
	ctx, span := s.tracer.Start(ctx, "pxcat.query",
		trace.WithAttributes(
			attribute.String("statement.id", st.ID.String()),
			attribute.String("db.statement", st.SQL),
		))

	x := newExecution(ctx, NewEvalContext(s.opts.Locale, s.opts.Clock()), vals)
	it, err := x.open(st.plan, nil, effectiveLimit(s.opts.MaxRows, st.plan.Limit))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		span.End()
		return nil, err
	}
	return &Rows{stmt: st, x: x, it: it, span: span, started: time.Now()}, nil
}

// effectiveLimit combines the session cap with LIMIT, taking the smaller bound
func effectiveLimit(maxRows, limit int64) int64 {
	switch {
	case maxRows <= 0:
		return limit
	case limit < 0 || maxRows < limit:
		return maxRows
	}
	return limit
}

// Rows is a forward-only cursor over a statement's result
type Rows struct {
	stmt *Statement
	x    *execution
	it   rowIter

	cur   []value.Value
	state atomic.Int32
	err   error
	rows  int64

	span    trace.Span
	started time.Time
	closed  bool
}

// Columns describes the result columns
func (r *Rows) Columns() []Column {
	return r.stmt.plan.Columns
}

// State returns the current lifecycle state
func (r *Rows) State() State {
	return State(r.state.Load())
}

// Next advances to the next row. It returns false at the end of the result,
// after an error, or once the statement is cancelled.
func (r *Rows) Next() bool {
	switch r.State() {
	case StateExhausted, StateCancelled, StateFailed:
		return false
	}
	if err := r.x.check(); err != nil {
		r.fail(err)
		return false
	}

	row, err := r.it.next()
	if err != nil {
		r.fail(err)
		return false
	}
	if row == nil {
		r.state.Store(int32(StateExhausted))
		r.finish()
		return false
	}
	r.cur = row[:r.stmt.plan.Visible()]
	r.rows++
	r.state.Store(int32(StateStreaming))
	r.stmt.session.opts.Metrics.RowEmitted()
	return true
}

// Values returns the current row; large objects are left unresolved
func (r *Rows) Values() []value.Value {
	return r.cur
}

// Err returns the error that ended iteration, if any
func (r *Rows) Err() error {
	return r.err
}

// Cancel requests cancellation; safe to call from any goroutine. The next
// call to Next observes it and fails with the cancelled code.
func (r *Rows) Cancel() {
	r.x.cancelled.Store(true)
}

// Close releases the scan resources; it is safe to call more than once
func (r *Rows) Close() error {
	if r.State() == StateOpened || r.State() == StateStreaming {
		r.state.Store(int32(StateExhausted))
	}
	r.finish()
	return nil
}

func (r *Rows) fail(err error) {
	r.err = err
	if pxerr.CodeOf(err) == pxerr.CodeCancelled {
		r.state.Store(int32(StateCancelled))
	} else {
		r.state.Store(int32(StateFailed))
	}
	r.finish()
}

// finish closes the pipeline and records the outcome once
func (r *Rows) finish() {
	if r.closed {
		return
	}
	r.closed = true
	closeErr := r.it.close()
	r.cur = nil

	state := r.State()
	elapsed := time.Since(r.started)
	s := r.stmt.session
	s.opts.Metrics.StatementFinished(state.String(), elapsed)

	r.span.SetAttributes(
		attribute.Int64("rows", r.rows),
		attribute.String("state", state.String()),
	)
	switch {
	case r.err != nil:
		r.span.SetStatus(codes.Error, r.err.Error())
		r.span.RecordError(r.err)
	case closeErr != nil:
		r.span.SetStatus(codes.Error, closeErr.Error())
	default:
		r.span.SetStatus(codes.Ok, "")
	}
	r.span.End()

	attrs := []any{"statement", r.stmt.ID, "rows", r.rows, "duration", elapsed}
	switch state {
	case StateCancelled:
		s.logger.Warn("statement cancelled", attrs...)
	case StateFailed:
		s.logger.Error("statement failed", append(attrs, "error", r.err)...)
	default:
		s.logger.Debug("statement finished", attrs...)
	}
	if closeErr != nil {
		s.logger.Warn("close scan", "statement", r.stmt.ID, "error", fmt.Errorf("release: %w", closeErr))
	}
}
