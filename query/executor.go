package query

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/reader"
	"github.com/vegasq/pxcat/value"
)

// State is the lifecycle state of a cursor
type State int32

const (
	StateOpened State = iota
	StateStreaming
	StateExhausted
	StateCancelled
	StateFailed
)

var stateNames = [...]string{"opened", "streaming", "exhausted", "cancelled", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// rowIter is one stage of the execution pipeline. next returns a nil row at the end.
type rowIter interface {
	next() ([]value.Value, error)
	close() error
}

// execution holds the state shared by every plan of one running statement,
// subqueries included
type execution struct {
	ctx       context.Context
	cancelled atomic.Bool
	ev        *evaluator
	// existsCache remembers the result of uncorrelated EXISTS subqueries
	existsCache map[*Plan]bool
}

func newExecution(ctx context.Context, fctx *EvalContext, params []value.Value) *execution {
	x := &execution{ctx: ctx, existsCache: make(map[*Plan]bool)}
	x.ev = newEvaluator(fctx, params)
	x.ev.exists = x.exists
	return x
}

// check reports a cancellation requested through Cancel or the context
func (x *execution) check() error {
	if x.cancelled.Load() {
		return pxerr.Cancelled(context.Canceled)
	}
	if err := x.ctx.Err(); err != nil {
		return pxerr.Cancelled(err)
	}
	return nil
}

// open builds the iterator pipeline of a plan. limit caps the rows produced; -1 means no cap.
func (x *execution) open(plan *Plan, outer *env, limit int64) (rowIter, error) {
	it, err := x.sources(plan, outer)
	if err != nil {
		return nil, err
	}
	if plan.Filter != nil {
		it = &filterIter{x: x, in: it, pred: plan.Filter, outer: outer}
	}

	if plan.Grouped {
		in := it
		it = &deferredIter{in: in, build: func() ([][]value.Value, error) {
			return x.group(plan, in, outer)
		}}
	} else {
		it = &projectIter{x: x, in: it, exprs: plan.Project, outer: outer}
	}

	if plan.Distinct {
		it = &distinctIter{in: it, width: plan.Visible(), seen: make(map[string]struct{})}
	}
	if len(plan.OrderBy) > 0 {
		in := it
		it = &deferredIter{in: in, build: func() ([][]value.Value, error) {
			return x.sort(plan, in)
		}}
	}

	if plan.Offset > 0 || limit >= 0 {
		it = &limitIter{in: it, skip: plan.Offset, left: limit}
	}
	return it, nil
}

// sources yields combined rows for the FROM clause
func (x *execution) sources(plan *Plan, outer *env) (rowIter, error) {
	if len(plan.Sources) == 0 {
		return &sliceIter{rows: [][]value.Value{{}}}, nil
	}

	first := plan.Sources[0]
	var it rowIter = &scanIter{x: x, table: first.Table, width: plan.Width}
	for _, src := range plan.Sources[1:] {
		right, err := x.materialize(src.Table)
		if err != nil {
			it.close()
			return nil, err
		}
		it = &joinIter{x: x, left: it, right: right, src: src, outer: outer}
	}
	return it, nil
}

// materialize reads every row of a table, used for the inner side of joins
func (x *execution) materialize(t *reader.Table) ([][]value.Value, error) {
	stream, err := t.Scan()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var rows [][]value.Value
	for stream.Next() {
		if err := x.check(); err != nil {
			return nil, err
		}
		rows = append(rows, stream.Values())
	}
	return rows, stream.Err()
}

// group consumes every filtered row, folds it into its group and projects
// one row per group in first-appearance order
func (x *execution) group(plan *Plan, in rowIter, outer *env) ([][]value.Value, error) {
	type group struct {
		keys  []value.Value
		first []value.Value
		accs  []Accumulator
	}
	newGroup := func(keys, first []value.Value) *group {
		g := &group{keys: keys, first: first, accs: make([]Accumulator, len(plan.Aggregates))}
		for i, spec := range plan.Aggregates {
			acc := spec.Func.New()
			if spec.Distinct {
				acc = newDistinct(acc)
			}
			g.accs[i] = acc
		}
		return g
	}

	var groups []*group
	index := make(map[string]*group)
	for {
		row, err := in.next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		en := &env{row: row, outer: outer}

		keys := make([]value.Value, len(plan.GroupBy))
		for i, g := range plan.GroupBy {
			if keys[i], err = x.ev.eval(g, en); err != nil {
				return nil, err
			}
		}
		key, err := value.RowKey(keys)
		if err != nil {
			return nil, err
		}
		g, ok := index[key]
		if !ok {
			g = newGroup(keys, row)
			index[key] = g
			groups = append(groups, g)
		}

		for i, spec := range plan.Aggregates {
			arg := value.Bool(true)
			if spec.Arg != nil {
				if arg, err = x.ev.eval(spec.Arg, en); err != nil {
					return nil, err
				}
			}
			if err := g.accs[i].Add(arg); err != nil {
				return nil, err
			}
		}
	}

	// aggregates without GROUP BY describe the whole input, even when it is empty
	if len(groups) == 0 && len(plan.GroupBy) == 0 {
		groups = append(groups, newGroup(nil, make([]value.Value, plan.Width)))
	}

	var out [][]value.Value
	for _, g := range groups {
		en := &env{row: g.first, groups: g.keys, aggs: make([]value.Value, len(g.accs)), outer: outer}
		for i, acc := range g.accs {
			v, err := acc.Result()
			if err != nil {
				return nil, err
			}
			en.aggs[i] = v
		}
		if plan.Having != nil {
			ok, err := x.ev.predicate(plan.Having, en)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		row, err := x.project(plan.Project, en)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (x *execution) project(exprs []*BoundExpr, en *env) ([]value.Value, error) {
	row := make([]value.Value, len(exprs))
	for i, e := range exprs {
		v, err := x.ev.eval(e, en)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// sort orders projected rows stably; NULL is the smallest value
func (x *execution) sort(plan *Plan, in rowIter) ([][]value.Value, error) {
	var rows [][]value.Value
	for {
		row, err := in.next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range plan.OrderBy {
			c, err := value.Compare(rows[i][key.Index], rows[j][key.Index])
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return false
			}
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return rows, nil
}

// exists runs a subquery until its first row
func (x *execution) exists(sub *Plan, outer *env) (bool, error) {
	if !sub.Correlated {
		if found, ok := x.existsCache[sub]; ok {
			return found, nil
		}
	}
	it, err := x.open(sub, outer, 1)
	if err != nil {
		return false, err
	}
	defer it.close()
	row, err := it.next()
	if err != nil {
		return false, err
	}
	found := row != nil
	if !sub.Correlated {
		x.existsCache[sub] = found
	}
	return found, nil
}

// scanIter streams a table, placing each record at the start of a combined row
type scanIter struct {
	x      *execution
	table  *reader.Table
	width  int
	stream *reader.RowStream
	done   bool
}

func (s *scanIter) next() ([]value.Value, error) {
	if s.done {
		return nil, nil
	}
	if s.stream == nil {
		stream, err := s.table.Scan()
		if err != nil {
			return nil, err
		}
		s.stream = stream
	}
	if err := s.x.check(); err != nil {
		return nil, err
	}
	if !s.stream.Next() {
		s.done = true
		return nil, s.stream.Err()
	}
	vals := s.stream.Values()
	if len(vals) == s.width {
		return vals, nil
	}
	row := make([]value.Value, s.width)
	copy(row, vals)
	return row, nil
}

func (s *scanIter) close() error {
	s.done = true
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

// joinIter pairs every left row with the materialized rows of one more source.
// LEFT joins keep unmatched left rows with NULLs for the new source.
type joinIter struct {
	x     *execution
	left  rowIter
	right [][]value.Value
	src   Source
	outer *env

	cur     []value.Value
	pos     int
	matched bool
}

func (j *joinIter) next() ([]value.Value, error) {
	for {
		if j.cur == nil {
			row, err := j.left.next()
			if err != nil || row == nil {
				return nil, err
			}
			j.cur, j.pos, j.matched = row, 0, false
		}

		for j.pos < len(j.right) {
			if err := j.x.check(); err != nil {
				return nil, err
			}
			row := make([]value.Value, len(j.cur))
			copy(row, j.cur)
			copy(row[j.src.Base:], j.right[j.pos])
			j.pos++

			if j.src.On != nil {
				ok, err := j.x.ev.predicate(j.src.On, &env{row: row, outer: j.outer})
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			j.matched = true
			return row, nil
		}

		cur := j.cur
		j.cur = nil
		if j.src.Join == JoinLeft && !j.matched {
			return cur, nil
		}
	}
}

func (j *joinIter) close() error {
	return j.left.close()
}

type filterIter struct {
	x     *execution
	in    rowIter
	pred  *BoundExpr
	outer *env
}

func (f *filterIter) next() ([]value.Value, error) {
	for {
		row, err := f.in.next()
		if err != nil || row == nil {
			return nil, err
		}
		ok, err := f.x.ev.predicate(f.pred, &env{row: row, outer: f.outer})
		if err != nil {
			return nil, err
		}
		if ok {
			return row, nil
		}
	}
}

func (f *filterIter) close() error {
	return f.in.close()
}

type projectIter struct {
	x     *execution
	in    rowIter
	exprs []*BoundExpr
	outer *env
}

func (p *projectIter) next() ([]value.Value, error) {
	row, err := p.in.next()
	if err != nil || row == nil {
		return nil, err
	}
	return p.x.project(p.exprs, &env{row: row, outer: p.outer})
}

func (p *projectIter) close() error {
	return p.in.close()
}

// distinctIter drops rows whose visible columns repeat an earlier row
type distinctIter struct {
	in    rowIter
	width int
	seen  map[string]struct{}
}

func (d *distinctIter) next() ([]value.Value, error) {
	for {
		row, err := d.in.next()
		if err != nil || row == nil {
			return nil, err
		}
		key, err := value.RowKey(row[:d.width])
		if err != nil {
			return nil, err
		}
		if _, dup := d.seen[key]; dup {
			continue
		}
		d.seen[key] = struct{}{}
		return row, nil
	}
}

func (d *distinctIter) close() error {
	return d.in.close()
}

// limitIter skips the first skip rows and stops after left rows; -1 means unbounded
type limitIter struct {
	in   rowIter
	skip int64
	left int64
}

func (l *limitIter) next() ([]value.Value, error) {
	for l.skip > 0 {
		row, err := l.in.next()
		if err != nil || row == nil {
			return nil, err
		}
		l.skip--
	}
	if l.left == 0 {
		return nil, nil
	}
	row, err := l.in.next()
	if err != nil || row == nil {
		return nil, err
	}
	if l.left > 0 {
		l.left--
	}
	return row, nil
}

func (l *limitIter) close() error {
	return l.in.close()
}

type sliceIter struct {
	rows [][]value.Value
	pos  int
}

func (s *sliceIter) next() ([]value.Value, error) {
	if s.pos >= len(s.rows) {
		return nil, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sliceIter) close() error {
	s.rows = nil
	return nil
}

// deferredIter materializes its input on the first call to next, for stages
// that need every row before producing one
type deferredIter struct {
	in    rowIter
	build func() ([][]value.Value, error)
	rows  *sliceIter
}

func (d *deferredIter) next() ([]value.Value, error) {
	if d.rows == nil {
		rows, err := d.build()
		if err != nil {
			return nil, err
		}
		d.rows = &sliceIter{rows: rows}
	}
	return d.rows.next()
}

func (d *deferredIter) close() error {
	if d.rows != nil {
		d.rows.close()
	}
	return d.in.close()
}
