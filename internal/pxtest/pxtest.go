// Package pxtest writes table, index and blob files for tests.
//
// The writer mirrors the on-disk layout the reader decodes: a little-endian
// header with field descriptors, a chain of fixed-size record blocks holding
// big-endian sign-flipped numbers, and a companion .MB file for large objects
// that do not fit in their leader.
package pxtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// Field type codes
const (
	Alpha     byte = 0x01
	Date      byte = 0x02
	Short     byte = 0x03
	Long      byte = 0x04
	Currency  byte = 0x05
	Number    byte = 0x06
	Logical   byte = 0x09
	Memo      byte = 0x0C
	Blob      byte = 0x0D
	FmtMemo   byte = 0x0E
	OLE       byte = 0x0F
	Graphic   byte = 0x10
	Time      byte = 0x14
	Timestamp byte = 0x15
	AutoInc   byte = 0x16
	BCD       byte = 0x17
	Bytes     byte = 0x18
)

// File type bytes
const (
	TypeKeyed     byte = 0x00
	TypePrimary   byte = 0x01
	TypeUnkeyed   byte = 0x02
	TypeSecondary byte = 0x03
)

const (
	epochDays    = 719163
	millisPerDay = 86400000
	mbBlockSize  = 4096
	// sub-allocated payloads start after the 64-entry pointer table
	subDataStart = 336
)

// Field declares one column
type Field struct {
	Name string
	Type byte
	Size int
}

// A is shorthand for an alpha field
func A(name string, size int) Field { return Field{Name: name, Type: Alpha, Size: size} }

// F declares a fixed-width field
func F(name string, typ byte) Field { return Field{Name: name, Type: typ} }

// Table describes a table file to write
type Table struct {
	Name    string
	Version byte
	// FileType defaults to keyed when KeyFields > 0, unkeyed otherwise
	FileType             *byte
	BlockSizeCode        byte
	CodePage             uint16
	Fields               []Field
	KeyFields            int
	Rows                 [][]interface{}
	WriteProtected       bool
	AutoIncrement        uint32
	ReferentialIntegrity byte
	SortOrder            string
	// LeadingEmptyBlock chains an empty block in front of the data blocks
	LeadingEmptyBlock bool
}

// Width returns the record bytes used by a field
func Width(f Field) int {
	switch f.Type {
	case Short:
		return 2
	case Date, Long, Time, AutoInc:
		return 4
	case Currency, Number, Timestamp:
		return 8
	case Logical:
		return 1
	case BCD:
		return 17
	}
	return f.Size
}

func (t *Table) defaults() {
	if t.Version == 0 {
		t.Version = 0x0C
	}
	if t.BlockSizeCode == 0 {
		t.BlockSizeCode = 1
	}
	if t.SortOrder == "" {
		t.SortOrder = "ascii"
	}
}

func (t *Table) fileType() byte {
	if t.FileType != nil {
		return *t.FileType
	}
	if t.KeyFields > 0 {
		return TypeKeyed
	}
	return TypeUnkeyed
}

// RecordSize returns the sum of field widths
func (t *Table) RecordSize() int {
	n := 0
	for _, f := range t.Fields {
		n += Width(f)
	}
	return n
}

// Files holds the encoded bytes of a table and its blob file
type Files struct {
	DB []byte
	MB []byte
}

type header struct {
	recordSize   int
	fileType     byte
	blockCode    byte
	rows         int
	usedBlocks   int
	totalBlocks  int
	firstBlock   int
	lastBlock    int
	keyFields    int
	protected    bool
	version      byte
	autoInc      uint32
	ri           byte
	codePage     uint16
	tableName    string
	fields       []Field
	withNames    bool
	fieldNumbers []int
	sortOrder    string
}

func (h *header) encode() []byte {
	var tail bytes.Buffer
	le := binary.LittleEndian
	for _, f := range h.fields {
		tail.WriteByte(f.Type)
		tail.WriteByte(byte(f.Size))
	}
	binary.Write(&tail, le, uint32(0))
	for range h.fields {
		binary.Write(&tail, le, uint32(0))
	}
	nameLen := 79
	if h.version == 0x0C {
		nameLen = 261
	}
	name := make([]byte, nameLen)
	copy(name, h.tableName)
	tail.Write(name)
	if h.withNames {
		for _, f := range h.fields {
			tail.WriteString(f.Name)
			tail.WriteByte(0)
		}
	}
	for _, n := range h.fieldNumbers {
		binary.Write(&tail, le, uint16(n))
	}
	tail.WriteString(h.sortOrder)
	tail.WriteByte(0)

	base := 0x58
	if h.version > 4 {
		base = 0x78
	}
	size := base + tail.Len()
	size = (size + 0x7FF) &^ 0x7FF

	buf := make([]byte, size)
	le.PutUint16(buf[0x00:], uint16(h.recordSize))
	le.PutUint16(buf[0x02:], uint16(size))
	buf[0x04] = h.fileType
	buf[0x05] = h.blockCode
	le.PutUint32(buf[0x06:], uint32(h.rows))
	le.PutUint16(buf[0x0A:], uint16(h.usedBlocks))
	le.PutUint16(buf[0x0C:], uint16(h.totalBlocks))
	le.PutUint16(buf[0x0E:], uint16(h.firstBlock))
	le.PutUint16(buf[0x10:], uint16(h.lastBlock))
	le.PutUint16(buf[0x21:], uint16(len(h.fields)))
	le.PutUint16(buf[0x23:], uint16(h.keyFields))
	if h.protected {
		buf[0x38] = 1
	}
	buf[0x39] = h.version
	le.PutUint32(buf[0x49:], h.autoInc)
	buf[0x55] = h.ri
	if h.version > 4 {
		le.PutUint16(buf[0x6A:], h.codePage)
	}
	copy(buf[base:], tail.Bytes())
	return buf
}

// Encode builds the table and blob file contents
func Encode(t Table) (*Files, error) {
	t.defaults()
	blockSize := int(t.BlockSizeCode) * 1024
	recSize := t.RecordSize()
	perBlock := (blockSize - 6) / recSize
	if perBlock == 0 {
		return nil, fmt.Errorf("record size %d exceeds block size %d", recSize, blockSize)
	}

	enc := encoderFor(t.CodePage)
	mb := newBlobWriter()

	var records [][]byte
	for r, row := range t.Rows {
		if len(row) != len(t.Fields) {
			return nil, fmt.Errorf("row %d has %d values, want %d", r, len(row), len(t.Fields))
		}
		rec := make([]byte, 0, recSize)
		for i, f := range t.Fields {
			b, err := encodeField(f, row[i], enc, mb)
			if err != nil {
				return nil, fmt.Errorf("row %d field %s: %w", r, f.Name, err)
			}
			rec = append(rec, b...)
		}
		records = append(records, rec)
	}

	var blocks [][]byte
	if t.LeadingEmptyBlock {
		blocks = append(blocks, nil)
	}
	for start := 0; start < len(records); start += perBlock {
		end := start + perBlock
		if end > len(records) {
			end = len(records)
		}
		var data []byte
		for _, rec := range records[start:end] {
			data = append(data, rec...)
		}
		blocks = append(blocks, data)
	}

	h := &header{
		recordSize:  recSize,
		fileType:    t.fileType(),
		blockCode:   t.BlockSizeCode,
		rows:        len(records),
		usedBlocks:  len(blocks),
		totalBlocks: len(blocks),
		keyFields:   t.KeyFields,
		protected:   t.WriteProtected,
		version:     t.Version,
		autoInc:     t.AutoIncrement,
		ri:          t.ReferentialIntegrity,
		codePage:    t.CodePage,
		tableName:   t.Name + ".DB",
		fields:      t.Fields,
		withNames:   true,
		sortOrder:   t.SortOrder,
	}
	for i := range t.Fields {
		h.fieldNumbers = append(h.fieldNumbers, i+1)
	}
	if len(blocks) > 0 {
		h.firstBlock = 1
		h.lastBlock = len(blocks)
	}

	out := bytes.NewBuffer(h.encode())
	for i, data := range blocks {
		block := make([]byte, blockSize)
		next := i + 2
		if i == len(blocks)-1 {
			next = 0
		}
		binary.LittleEndian.PutUint16(block[0:], uint16(next))
		binary.LittleEndian.PutUint16(block[2:], uint16(i))
		addDataSize := len(data) - recSize
		binary.LittleEndian.PutUint16(block[4:], uint16(int16(addDataSize)))
		copy(block[6:], data)
		out.Write(block)
	}

	files := &Files{DB: out.Bytes()}
	if mb.used {
		files.MB = mb.bytes()
	}
	return files, nil
}

// WriteTable writes NAME.DB (and NAME.MB when needed) into dir and returns the table path
func WriteTable(tb testing.TB, dir string, t Table) string {
	tb.Helper()
	files, err := Encode(t)
	if err != nil {
		tb.Fatalf("encode table %s: %v", t.Name, err)
	}
	path := filepath.Join(dir, t.Name+".DB")
	if err := os.WriteFile(path, files.DB, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	if files.MB != nil {
		mbPath := filepath.Join(dir, t.Name+".MB")
		if err := os.WriteFile(mbPath, files.MB, 0o644); err != nil {
			tb.Fatalf("write %s: %v", mbPath, err)
		}
	}
	return path
}

// Index describes a primary or secondary index file
type Index struct {
	// Ext is PX for the primary key or Xnn/XGn for secondary indexes
	Ext                  string
	FileType             byte
	Fields               []Field
	FieldNumbers         []int
	ReferentialIntegrity byte
	Version              byte
	SortOrder            string
}

// WriteIndex writes an index file for table name into dir and returns its path
func WriteIndex(tb testing.TB, dir, table string, idx Index) string {
	tb.Helper()
	if idx.Version == 0 {
		idx.Version = 0x0C
	}
	if idx.SortOrder == "" {
		idx.SortOrder = "ascii"
	}
	primary := strings.EqualFold(idx.Ext, "PX")
	if primary && idx.FileType == 0 {
		idx.FileType = TypePrimary
	}
	if !primary && idx.FileType == 0 {
		idx.FileType = TypeSecondary
	}
	numbers := idx.FieldNumbers
	if numbers == nil {
		for i := range idx.Fields {
			numbers = append(numbers, i+1)
		}
	}
	rec := 0
	for _, f := range idx.Fields {
		rec += Width(f)
	}
	h := &header{
		recordSize:   rec + 6,
		fileType:     idx.FileType,
		blockCode:    1,
		version:      idx.Version,
		ri:           idx.ReferentialIntegrity,
		tableName:    table + ".DB",
		fields:       idx.Fields,
		withNames:    !primary,
		fieldNumbers: numbers,
		sortOrder:    idx.SortOrder,
	}
	path := filepath.Join(dir, table+"."+idx.Ext)
	if err := os.WriteFile(path, h.encode(), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

func encoderFor(cp uint16) *charmap.Charmap {
	switch cp {
	case 850:
		return charmap.CodePage850
	case 866:
		return charmap.CodePage866
	case 1251:
		return charmap.Windows1251
	case 1252:
		return charmap.Windows1252
	}
	return charmap.CodePage437
}

func signFlip16(v int64) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(int16(v))^0x8000)
	return b
}

func signFlip32(v int64) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(int32(v))^0x80000000)
	return b
}

func encodeDouble(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)
	return b
}

func toInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return 0, fmt.Errorf("want integer, got %T", v)
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return 0, err
		}
		f, _ := d.Float64()
		return f, nil
	}
	return 0, fmt.Errorf("want number, got %T", v)
}

func encodeField(f Field, v interface{}, enc *charmap.Charmap, mb *blobWriter) ([]byte, error) {
	width := Width(f)
	if v == nil {
		return make([]byte, width), nil
	}
	switch f.Type {
	case Alpha:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		b, err := enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, err
		}
		out := make([]byte, width)
		copy(out, b)
		return out, nil
	case Short:
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return signFlip16(n), nil
	case Long, AutoInc:
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return signFlip32(n), nil
	case Date:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("want time.Time, got %T", v)
		}
		days := t.UTC().Unix()/86400 + epochDays
		return signFlip32(days), nil
	case Time:
		d, ok := v.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("want time.Duration, got %T", v)
		}
		return signFlip32(d.Milliseconds()), nil
	case Number, Currency:
		n, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return encodeDouble(n), nil
	case Timestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("want time.Time, got %T", v)
		}
		return encodeDouble(float64(t.UnixMilli()) + float64(epochDays)*millisPerDay), nil
	case Logical:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		if b {
			return []byte{0x81}, nil
		}
		return []byte{0x80}, nil
	case BCD:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want decimal string, got %T", v)
		}
		return encodeBCD(s, f.Size)
	case Bytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("want []byte, got %T", v)
		}
		out := make([]byte, width)
		copy(out, b)
		return out, nil
	case Memo, FmtMemo, Blob, OLE, Graphic:
		var payload []byte
		switch p := v.(type) {
		case string:
			b, err := enc.NewEncoder().Bytes([]byte(p))
			if err != nil {
				return nil, err
			}
			payload = b
		case []byte:
			payload = p
		default:
			return nil, fmt.Errorf("want string or []byte, got %T", v)
		}
		return mb.descriptor(payload, width-10), nil
	}
	return nil, fmt.Errorf("unsupported field type 0x%02x", f.Type)
}

func encodeBCD(s string, scale int) ([]byte, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	positive := d.Sign() >= 0
	digits := d.Abs().Shift(int32(scale)).Truncate(0).String()
	if len(digits) > 32 {
		return nil, fmt.Errorf("%s has too many digits", s)
	}
	digits = strings.Repeat("0", 32-len(digits)) + digits

	out := make([]byte, 17)
	out[0] = byte(scale) & 0x3F
	if positive {
		out[0] |= 0x80
	}
	for i := 0; i < 16; i++ {
		hi, lo := digits[2*i]-'0', digits[2*i+1]-'0'
		if !positive {
			hi, lo = 0x0F-hi, 0x0F-lo
		}
		out[1+i] = hi<<4 | lo
	}
	return out, nil
}

// blobWriter accumulates the .MB file
type blobWriter struct {
	buf  []byte
	used bool
	mod  uint16
	// current sub-allocated block
	subOffset int
	subIndex  int
	subFree   int
}

func newBlobWriter() *blobWriter {
	// block 0 is the file header
	return &blobWriter{buf: make([]byte, mbBlockSize), subOffset: -1}
}

func (w *blobWriter) bytes() []byte {
	return w.buf
}

func (w *blobWriter) descriptor(payload []byte, leaderLen int) []byte {
	out := make([]byte, leaderLen+10)
	w.mod++
	tail := out[leaderLen:]
	if len(payload) <= leaderLen {
		copy(out, payload)
		binary.LittleEndian.PutUint32(tail[4:], uint32(len(payload)))
		binary.LittleEndian.PutUint16(tail[8:], w.mod)
		return out
	}

	copy(out, payload[:leaderLen])
	w.used = true
	var offset uint32
	if len(payload) <= 256 {
		offset = w.writeSub(payload)
	} else {
		offset = w.writeSingle(payload)
	}
	binary.LittleEndian.PutUint32(tail[0:], offset)
	binary.LittleEndian.PutUint32(tail[4:], uint32(len(payload)))
	binary.LittleEndian.PutUint16(tail[8:], w.mod)
	return out
}

func (w *blobWriter) writeSingle(payload []byte) uint32 {
	count := (9 + len(payload) + mbBlockSize - 1) / mbBlockSize
	offset := len(w.buf)
	chunk := make([]byte, count*mbBlockSize)
	chunk[0] = 0x02
	binary.LittleEndian.PutUint16(chunk[1:], uint16(count))
	binary.LittleEndian.PutUint32(chunk[3:], uint32(len(payload)))
	binary.LittleEndian.PutUint16(chunk[7:], w.mod)
	copy(chunk[9:], payload)
	w.buf = append(w.buf, chunk...)
	return uint32(offset) | 0xFF
}

func (w *blobWriter) writeSub(payload []byte) uint32 {
	len16 := (len(payload) + 15) / 16
	if w.subOffset < 0 || w.subIndex >= 64 || w.subFree+len16*16 > mbBlockSize {
		w.subOffset = len(w.buf)
		block := make([]byte, mbBlockSize)
		block[0] = 0x03
		binary.LittleEndian.PutUint16(block[1:], 1)
		w.buf = append(w.buf, block...)
		w.subIndex = 0
		w.subFree = subDataStart
	}
	block := w.buf[w.subOffset : w.subOffset+mbBlockSize]
	idx := w.subIndex
	p := block[12+idx*5:]
	p[0] = byte(w.subFree / 16)
	p[1] = byte(len16)
	binary.LittleEndian.PutUint16(p[2:], w.mod)
	p[4] = byte(len(payload) - (len16-1)*16)
	copy(block[w.subFree:], payload)
	w.subFree += len16 * 16
	w.subIndex++
	return uint32(w.subOffset) | uint32(idx)
}
