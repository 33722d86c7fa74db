package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"github.com/segmentio/parquet-go/compress"

	"github.com/vegasq/pxcat/query"
	"github.com/vegasq/pxcat/value"
)

const parquetBatchSize = 512

const secondsPerDay = 24 * 60 * 60

// ParquetFormatter exports rows as a Parquet file. Every column is an
// optional leaf typed after the column's static type; decimals are stored
// as UTF-8 strings to keep their exact digits.
type ParquetFormatter struct {
	writer io.Writer
	codec  compress.Codec
}

// NewParquetFormatter creates a parquet formatter using the named codec
func NewParquetFormatter(w io.Writer, compression string) (*ParquetFormatter, error) {
	codec, err := parquetCodec(compression)
	if err != nil {
		return nil, err
	}
	return &ParquetFormatter{writer: w, codec: codec}, nil
}

func parquetCodec(name string) (compress.Codec, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "lz4":
		return &parquet.Lz4Raw, nil
	}
	return nil, fmt.Errorf("unsupported parquet compression %q", name)
}

// SetOutput sets the output writer
func (p *ParquetFormatter) SetOutput(w io.Writer) {
	p.writer = w
}

// Format writes the schema derived from the result columns, then the rows in batches
func (p *ParquetFormatter) Format(r Result) error {
	cols := r.Columns()
	names := uniqueNames(cols)

	types := make([]value.Type, len(cols))
	group := make(parquet.Group, len(cols))
	for i, col := range cols {
		types[i] = storedType(col)
		group[names[i]] = parquet.Optional(parquetNode(types[i]))
	}
	schema := parquet.NewSchema("pxcat", group)

	// leaves are ordered by name, not by column position
	leaf := make([]int, len(cols))
	index := make(map[string]int, len(cols))
	for i, path := range schema.Columns() {
		index[path[0]] = i
	}
	for i, name := range names {
		leaf[i] = index[name]
	}

	w := parquet.NewWriter(p.writer, schema, parquet.Compression(p.codec))
	batch := make([]parquet.Row, 0, parquetBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := w.WriteRows(batch); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		vals, ok, err := next(r)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row := make(parquet.Row, len(cols))
		for i, v := range vals {
			pv, err := parquetValue(v, types[i])
			if err != nil {
				return fmt.Errorf("column %s: %w", names[i], err)
			}
			def := 1
			if pv.IsNull() {
				def = 0
			}
			row[leaf[i]] = pv.Level(0, def, leaf[i])
		}
		batch = append(batch, row)
		if len(batch) == parquetBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return w.Close()
}

// storedType is the column type after LOB resolution
func storedType(col query.Column) value.Type {
	if col.Type != value.TypeLOB {
		return col.Type
	}
	if col.Field != nil && !col.Field.Type.IsTextLOB() {
		return value.TypeBinary
	}
	return value.TypeString
}

func parquetNode(t value.Type) parquet.Node {
	switch t {
	case value.TypeBoolean:
		return parquet.Leaf(parquet.BooleanType)
	case value.TypeInteger, value.TypeLong:
		return parquet.Int(64)
	case value.TypeDouble:
		return parquet.Leaf(parquet.DoubleType)
	case value.TypeDate:
		return parquet.Date()
	case value.TypeTime:
		return parquet.Time(parquet.Millisecond)
	case value.TypeTimestamp:
		return parquet.Timestamp(parquet.Millisecond)
	case value.TypeBinary:
		return parquet.Leaf(parquet.ByteArrayType)
	}
	// strings, decimals, text LOBs and untyped NULL columns
	return parquet.String()
}

// parquetValue converts v to the physical representation of a column of type t
func parquetValue(v value.Value, t value.Type) (parquet.Value, error) {
	if v.IsNull() {
		return parquet.NullValue(), nil
	}
	switch t {
	case value.TypeBoolean, value.TypeInteger, value.TypeLong, value.TypeDouble,
		value.TypeDate, value.TypeTime, value.TypeTimestamp:
		if v.Type() != t {
			cv, err := value.Convert(v, t)
			if err != nil {
				return parquet.Value{}, err
			}
			v = cv
		}
	}
	switch t {
	case value.TypeBoolean:
		return parquet.BooleanValue(v.AsBool()), nil
	case value.TypeInteger, value.TypeLong:
		return parquet.Int64Value(v.AsInt()), nil
	case value.TypeDouble:
		return parquet.DoubleValue(v.AsFloat()), nil
	case value.TypeDate:
		days := v.AsTime().Unix() / secondsPerDay
		if v.AsTime().Unix()%secondsPerDay < 0 {
			days--
		}
		return parquet.Int32Value(int32(days)), nil
	case value.TypeTime:
		return parquet.Int32Value(int32(v.AsDuration() / time.Millisecond)), nil
	case value.TypeTimestamp:
		return parquet.Int64Value(v.AsTime().UnixMilli()), nil
	case value.TypeBinary:
		if v.Type() == value.TypeBinary {
			return parquet.ByteArrayValue(v.AsBytes()), nil
		}
	}
	return parquet.ByteArrayValue([]byte(v.String())), nil
}
