package reader

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// Large object file layout
const (
	mbBlockSize      = 4096
	mbSingleBlob     = 0x02
	mbSubAllocated   = 0x03
	mbSingleHeader   = 9
	mbPointerTable   = 12
	mbPointerSize    = 5
	mbPointerEntries = 64
)

// LOBDescriptor references a large object value. Payloads at most as long as
// the leader are held inline; longer ones live in the table's .MB file and are
// read when first requested.
type LOBDescriptor struct {
	table   *Table
	field   *Field
	charset *Charset

	inline []byte
	offset uint32
	index  byte
	length uint32
	mod    uint16
}

// decodeLOB parses the leader and 10-byte descriptor tail of a large object field
func (t *Table) decodeLOB(f *Field, raw []byte, cs *Charset) (value.Value, error) {
	if allZero(raw) {
		return value.Null, nil
	}

	leader := raw[:len(raw)-lobTailSize]
	tail := raw[len(raw)-lobTailSize:]
	offset := binary.LittleEndian.Uint32(tail[0:4])
	d := &LOBDescriptor{
		table:   t,
		field:   f,
		charset: cs,
		index:   byte(offset & 0xFF),
		offset:  offset &^ 0xFF,
		length:  binary.LittleEndian.Uint32(tail[4:8]),
		mod:     binary.LittleEndian.Uint16(tail[8:10]),
	}

	if int(d.length) <= len(leader) {
		d.inline = make([]byte, d.length)
		copy(d.inline, leader[:d.length])
	}
	return value.FromLOB(d), nil
}

// Len returns the declared payload length
func (d *LOBDescriptor) Len() int64 { return int64(d.length) }

// IsText reports whether the payload is character data
func (d *LOBDescriptor) IsText() bool { return d.field.Type.IsTextLOB() }

// Inline reports whether the payload is stored entirely in the record
func (d *LOBDescriptor) Inline() bool { return d.inline != nil }

// Text resolves the payload and decodes it with the table charset
func (d *LOBDescriptor) Text() (string, error) {
	b, err := d.Bytes()
	if err != nil {
		return "", err
	}
	return d.charset.Decode(cBytes(b))
}

// Bytes resolves the payload
func (d *LOBDescriptor) Bytes() ([]byte, error) {
	m := d.table.opts.Metrics
	if d.inline != nil {
		m.LOBResolved("inline")
		return d.inline, nil
	}

	path := d.table.LOBPath
	if path == "" {
		path = d.table.stemPath() + ".MB"
	}
	st, err := os.Stat(path)
	if err != nil {
		m.DecodeError()
		return nil, pxerr.MissingLOBFile(path, err)
	}

	key := fmt.Sprintf("%s|%d|%d|%d|%d", path, st.ModTime().UnixNano(), d.offset, d.index, d.mod)
	if b, ok := d.table.opts.LOBCache.Get(key); ok {
		m.LOBResolved("cache")
		return b, nil
	}

	b, err := d.readExternal(path)
	if err != nil {
		m.DecodeError()
		return nil, err
	}
	d.table.opts.LOBCache.Set(key, b)
	m.LOBResolved("file")
	return b, nil
}

func (d *LOBDescriptor) readExternal(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pxerr.MissingLOBFile(path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "stat"), "%s", path)
	}
	if int64(d.offset)+mbBlockSize > st.Size() {
		return nil, pxerr.Decode(nil, "%s: block offset %d beyond end of file", path, d.offset)
	}

	block := make([]byte, mbBlockSize)
	if _, err := f.ReadAt(block, int64(d.offset)); err != nil {
		return nil, pxerr.Decode(errors.Wrapf(err, "read block at %d", d.offset), "%s", path)
	}

	var start int64
	var size uint32
	switch block[0] {
	case mbSingleBlob:
		count := int64(binary.LittleEndian.Uint16(block[1:3]))
		size = binary.LittleEndian.Uint32(block[3:7])
		mod := binary.LittleEndian.Uint16(block[7:9])
		if mod != d.mod {
			return nil, pxerr.Decode(nil, "%s: modificator %d does not match descriptor %d", path, mod, d.mod)
		}
		if int64(size)+mbSingleHeader > count*mbBlockSize || int64(d.offset)+count*mbBlockSize > st.Size() {
			return nil, pxerr.Decode(nil, "%s: blob of %d bytes overruns its %d block chain", path, size, count)
		}
		start = int64(d.offset) + mbSingleHeader
	case mbSubAllocated:
		if int(d.index) >= mbPointerEntries {
			return nil, pxerr.Decode(nil, "%s: sub-block index %d out of range", path, d.index)
		}
		p := block[mbPointerTable+int(d.index)*mbPointerSize:]
		off16, len16 := int64(p[0]), uint32(p[1])
		mod := binary.LittleEndian.Uint16(p[2:4])
		rem := uint32(p[4])
		if len16 == 0 {
			return nil, pxerr.Decode(nil, "%s: sub-block %d is empty", path, d.index)
		}
		if mod != d.mod {
			return nil, pxerr.Decode(nil, "%s: modificator %d does not match descriptor %d", path, mod, d.mod)
		}
		size = (len16-1)*16 + rem
		start = int64(d.offset) + off16*16
		if start+int64(size) > int64(d.offset)+mbBlockSize {
			return nil, pxerr.Decode(nil, "%s: sub-block %d overruns its block", path, d.index)
		}
	default:
		return nil, pxerr.Decode(nil, "%s: unexpected block type 0x%02x at %d", path, block[0], d.offset)
	}

	if size != d.length {
		return nil, pxerr.Decode(nil, "%s: stored length %d does not match descriptor %d", path, size, d.length)
	}

	payload := make([]byte, size)
	if _, err := f.ReadAt(payload, start); err != nil {
		return nil, pxerr.Decode(errors.Wrapf(err, "read %d bytes at %d", size, start), "%s", path)
	}
	return payload, nil
}
