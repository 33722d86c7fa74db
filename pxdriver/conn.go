package pxdriver

import (
	"context"
	"database/sql/driver"
	"io"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/query"
	"github.com/vegasq/pxcat/value"
)

var (
	_ driver.QueryerContext                 = (*conn)(nil)
	_ driver.ExecerContext                  = (*conn)(nil)
	_ driver.ConnPrepareContext             = (*conn)(nil)
	_ driver.NamedValueChecker              = (*conn)(nil)
	_ driver.StmtQueryContext               = (*stmt)(nil)
	_ driver.RowsColumnTypeScanType         = (*rows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*rows)(nil)
)

type conn struct {
	session *query.Session
}

func (c *conn) Prepare(sql string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), sql)
}

func (c *conn) PrepareContext(_ context.Context, sql string) (driver.Stmt, error) {
	st, err := c.session.Prepare(sql)
	if err != nil {
		return nil, err
	}
	return &stmt{st: st}, nil
}

func (c *conn) QueryContext(ctx context.Context, sql string, args []driver.NamedValue) (driver.Rows, error) {
	st, err := c.session.Prepare(sql)
	if err != nil {
		return nil, err
	}
	return (&stmt{st: st}).QueryContext(ctx, args)
}

func (c *conn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return nil, pxerr.Unsupported("statements that modify data")
}

func (c *conn) Begin() (driver.Tx, error) {
	return nil, pxerr.Unsupported("transactions")
}

func (c *conn) Close() error {
	return nil
}

// CheckNamedValue accepts every Go type a statement parameter can carry
func (c *conn) CheckNamedValue(nv *driver.NamedValue) error {
	if nv.Name != "" {
		return pxerr.Unsupported("named parameter %s", nv.Name)
	}
	switch nv.Value.(type) {
	case decimal.Decimal, time.Duration, int, int8, int16, int32, uint8, uint16, uint32, float32:
		return nil
	}
	return driver.ErrSkip
}

type stmt struct {
	st *query.Statement
}

func (s *stmt) Close() error {
	return nil
}

func (s *stmt) NumInput() int {
	return s.st.NumInput()
}

func (s *stmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, pxerr.Unsupported("statements that modify data")
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	named := make([]driver.NamedValue, len(args))
	for i, a := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: a}
	}
	return s.QueryContext(context.Background(), named)
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	params := make([]interface{}, len(args))
	for i, a := range args {
		params[i] = a.Value
	}
	r, err := s.st.Query(ctx, params...)
	if err != nil {
		return nil, err
	}
	cols := r.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return &rows{r: r, cols: cols, names: names, stop: context.AfterFunc(ctx, r.Cancel)}, nil
}

type rows struct {
	r     *query.Rows
	cols  []query.Column
	names []string
	stop  func() bool
}

func (r *rows) Columns() []string {
	return r.names
}

func (r *rows) Close() error {
	r.stop()
	return r.r.Close()
}

func (r *rows) Next(dest []driver.Value) error {
	if !r.r.Next() {
		if err := r.r.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	for i, v := range r.r.Values() {
		dv, err := driverValue(v)
		if err != nil {
			return err
		}
		dest[i] = dv
	}
	return nil
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.cols[index].Type.String()
}

func (r *rows) ColumnTypeNullable(int) (bool, bool) {
	return true, true
}

var (
	scanBool   = reflect.TypeOf(false)
	scanInt    = reflect.TypeOf(int64(0))
	scanFloat  = reflect.TypeOf(float64(0))
	scanTime   = reflect.TypeOf(time.Time{})
	scanString = reflect.TypeOf("")
	scanBytes  = reflect.TypeOf([]byte(nil))
	scanAny    = reflect.TypeOf((*interface{})(nil)).Elem()
)

func (r *rows) ColumnTypeScanType(index int) reflect.Type {
	switch r.cols[index].Type {
	case value.TypeBoolean:
		return scanBool
	case value.TypeInteger, value.TypeLong:
		return scanInt
	case value.TypeDouble:
		return scanFloat
	case value.TypeDate, value.TypeTimestamp:
		return scanTime
	case value.TypeDecimal, value.TypeTime, value.TypeString:
		return scanString
	case value.TypeBinary:
		return scanBytes
	}
	return scanAny
}

// driverValue converts a result value to one of the types database/sql
// accepts. LOBs are read in full; decimals and times of day become strings.
func driverValue(v value.Value) (driver.Value, error) {
	v, err := v.Resolve()
	if err != nil {
		return nil, err
	}
	switch v.Type() {
	case value.TypeNull:
		return nil, nil
	case value.TypeBoolean:
		return v.AsBool(), nil
	case value.TypeInteger, value.TypeLong:
		return v.AsInt(), nil
	case value.TypeDouble:
		return v.AsFloat(), nil
	case value.TypeDate, value.TypeTimestamp:
		return v.AsTime(), nil
	case value.TypeString:
		return v.AsString(), nil
	case value.TypeBinary:
		return v.AsBytes(), nil
	}
	return v.String(), nil
}
