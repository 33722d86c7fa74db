// Package output renders query results as JSON, CSV, ASCII tables or
// Parquet files.
//
// Formatters consume a Result row by row, so a *query.Rows can be written
// without buffering it first:
//
//	rows, err := session.Query(ctx, "SELECT * FROM areacodes")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rows.Close()
//
//	f, err := output.New("csv", os.Stdout, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := f.Format(rows); err != nil {
//	    log.Fatal(err)
//	}
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vegasq/pxcat/query"
	"github.com/vegasq/pxcat/value"
)

// Result is a stream of rows with a fixed column list. *query.Rows satisfies it.
type Result interface {
	Columns() []query.Column
	Next() bool
	Values() []value.Value
	Err() error
}

var _ Result = (*query.Rows)(nil)

// Formatter defines the interface for output formatters.
//
// Implementers must provide Format to write a result in the target format
// and SetOutput to change the output destination.
type Formatter interface {
	// Format drains r and writes every row
	Format(r Result) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// Options tunes the formatters created by New
type Options struct {
	// Compression names the parquet codec: none, snappy, gzip, zstd, lz4
	Compression string
}

// Formats lists the names accepted by New
var Formats = []string{"jsonl", "json", "csv", "table", "parquet"}

// New returns the formatter registered under format
func New(format string, w io.Writer, opts *Options) (Formatter, error) {
	if opts == nil {
		opts = &Options{}
	}
	switch strings.ToLower(format) {
	case "jsonl", "":
		return NewJSONFormatter(w), nil
	case "json":
		return NewJSONArrayFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "table":
		return NewTableFormatter(w), nil
	case "parquet":
		return NewParquetFormatter(w, opts.Compression)
	}
	return nil, fmt.Errorf("unsupported format %q (supported: %s)", format, strings.Join(Formats, ", "))
}

// next advances r and returns the current row with LOBs materialized
func next(r Result) ([]value.Value, bool, error) {
	if !r.Next() {
		return nil, false, r.Err()
	}
	vals := r.Values()
	out := make([]value.Value, len(vals))
	for i, v := range vals {
		res, err := v.Resolve()
		if err != nil {
			return nil, false, err
		}
		out[i] = res
	}
	return out, true, nil
}

// uniqueNames returns the column names with repeats suffixed _2, _3, ...
func uniqueNames(cols []query.Column) []string {
	names := make([]string, len(cols))
	seen := make(map[string]int, len(cols))
	for i, c := range cols {
		name := c.Name
		key := strings.ToLower(name)
		if n := seen[key]; n > 0 {
			for {
				n++
				candidate := name + "_" + strconv.Itoa(n)
				if seen[strings.ToLower(candidate)] == 0 {
					seen[key] = n
					name = candidate
					key = strings.ToLower(candidate)
					break
				}
			}
		}
		seen[key]++
		names[i] = name
	}
	return names
}

// Static is an in-memory Result
type Static struct {
	cols []query.Column
	rows [][]value.Value
	pos  int
}

// NewStatic returns a Result over rows
func NewStatic(cols []query.Column, rows [][]value.Value) *Static {
	return &Static{cols: cols, rows: rows, pos: -1}
}

func (s *Static) Columns() []query.Column { return s.cols }

func (s *Static) Next() bool {
	if s.pos+1 >= len(s.rows) {
		s.pos = len(s.rows)
		return false
	}
	s.pos++
	return true
}

func (s *Static) Values() []value.Value {
	if s.pos < 0 || s.pos >= len(s.rows) {
		return nil
	}
	return s.rows[s.pos]
}

func (s *Static) Err() error { return nil }
