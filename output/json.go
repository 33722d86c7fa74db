package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"math"

	"github.com/vegasq/pxcat/value"
)

// JSONFormatter outputs rows as JSON Lines format
type JSONFormatter struct {
	writer io.Writer
	array  bool
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// NewJSONArrayFormatter creates a formatter writing a single JSON array of objects
func NewJSONArrayFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w, array: true}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per row. Keys follow the column order.
func (j *JSONFormatter) Format(r Result) error {
	bw := bufio.NewWriter(j.writer)
	names := uniqueNames(r.Columns())
	keys := make([][]byte, len(names))
	for i, name := range names {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	if j.array {
		bw.WriteByte('[')
	}
	var buf bytes.Buffer
	for n := 0; ; n++ {
		vals, ok, err := next(r)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		buf.Reset()
		if j.array && n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i, v := range vals {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[i])
			buf.WriteByte(':')
			if err := writeJSONValue(&buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		if !j.array {
			buf.WriteByte('\n')
		}
		if _, err := bw.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	if j.array {
		bw.WriteString("]\n")
	}
	return bw.Flush()
}

// writeJSONValue encodes numbers and booleans natively; decimals keep their
// exact digits; temporal and binary values use their display form.
func writeJSONValue(buf *bytes.Buffer, v value.Value) error {
	var x interface{}
	switch v.Type() {
	case value.TypeNull:
		buf.WriteString("null")
		return nil
	case value.TypeBoolean:
		x = v.AsBool()
	case value.TypeInteger, value.TypeLong:
		x = v.AsInt()
	case value.TypeDouble:
		f := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			x = v.String()
		} else {
			x = f
		}
	case value.TypeDecimal:
		buf.WriteString(v.AsDecimal().String())
		return nil
	default:
		x = v.String()
	}
	b, err := json.Marshal(x)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
