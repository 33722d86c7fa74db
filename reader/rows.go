package reader

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// RowStream lazily walks the block chain of a table, decoding one record at a time
type RowStream struct {
	table *Table
	file  *os.File

	block   []byte
	next    int
	inBlock int
	pos     int
	visited map[int]bool
	rows    int

	row    []value.Value
	err    error
	closed bool
}

// Scan opens the table file and returns a stream positioned before the first record.
// The caller must Close the stream.
func (t *Table) Scan() (*RowStream, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "open table"), "%s", t.Path)
	}
	return &RowStream{
		table:   t,
		file:    f,
		block:   make([]byte, t.Header.BlockSize),
		next:    t.Header.FirstBlock,
		visited: make(map[int]bool),
	}, nil
}

// Next advances to the next record
func (s *RowStream) Next() bool {
	if s.err != nil || s.closed {
		return false
	}
	for s.pos >= s.inBlock {
		if s.next == 0 {
			return false
		}
		if err := s.loadBlock(s.next); err != nil {
			s.fail(err)
			return false
		}
	}

	h := s.table.Header
	s.rows++
	if s.rows > h.RowCount {
		s.fail(pxerr.Decode(nil, "%s: block chain holds more than %d declared rows", s.table.Path, h.RowCount))
		return false
	}

	start := blockHeaderSize + s.pos*h.RecordSize
	record := s.block[start : start+h.RecordSize]
	s.pos++

	row := make([]value.Value, len(s.table.Fields))
	for i, f := range s.table.Fields {
		v, err := s.table.decodeValue(f, record[f.offset:f.offset+f.width], s.table.Charset)
		if err != nil {
			s.fail(pxerr.Decode(err, "%s: row %d field %s", s.table.Path, s.rows, f.Name))
			return false
		}
		row[i] = v
	}
	s.row = row
	s.table.opts.Metrics.RowScanned()
	return true
}

func (s *RowStream) loadBlock(n int) error {
	h := s.table.Header
	if n < 1 || n > h.TotalBlocks {
		return pxerr.Decode(nil, "%s: block pointer %d outside 1..%d", s.table.Path, n, h.TotalBlocks)
	}
	if s.visited[n] {
		return pxerr.Decode(nil, "%s: block chain revisits block %d", s.table.Path, n)
	}
	s.visited[n] = true

	off := int64(h.HeaderSize) + int64(n-1)*int64(h.BlockSize)
	if _, err := s.file.ReadAt(s.block, off); err != nil {
		return pxerr.Decode(errors.Wrapf(err, "read block %d", n), "%s", s.table.Path)
	}

	s.next = int(binary.LittleEndian.Uint16(s.block[0:2]))
	addDataSize := int(int16(binary.LittleEndian.Uint16(s.block[4:6])))
	s.pos = 0
	if addDataSize < 0 {
		s.inBlock = 0
		return nil
	}
	s.inBlock = addDataSize/h.RecordSize + 1
	if s.inBlock > h.RecordsPerBlock() {
		return pxerr.Decode(nil, "%s: block %d claims %d records, capacity %d", s.table.Path, n, s.inBlock, h.RecordsPerBlock())
	}
	return nil
}

func (s *RowStream) fail(err error) {
	s.err = err
	s.table.opts.Metrics.DecodeError()
	s.table.opts.Logger.Error("decode failed", "table", s.table.Name, "error", err)
}

// Values returns the current record; the slice is not reused between calls to Next
func (s *RowStream) Values() []value.Value {
	return s.row
}

// Err returns the first error encountered while streaming
func (s *RowStream) Err() error {
	return s.err
}

// Close releases the table file handle
func (s *RowStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
