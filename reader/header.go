package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/vegasq/pxcat/pxerr"
)

// FileType is the format/type byte at offset 0x04
type FileType byte

const (
	FileKeyedTable    FileType = 0x00
	FilePrimaryIndex  FileType = 0x01
	FileUnkeyedTable  FileType = 0x02
	FileSecondaryNInc FileType = 0x03
	FileSecondaryG    FileType = 0x05
	FileSecondaryInc  FileType = 0x06
	FileSecondaryGInc FileType = 0x08
)

// IsTable reports whether the type byte marks a data table
func (t FileType) IsTable() bool {
	return t == FileKeyedTable || t == FileUnkeyedTable
}

// IsPrimaryIndex reports whether the type byte marks a primary key file
func (t FileType) IsPrimaryIndex() bool {
	return t == FilePrimaryIndex
}

// IsSecondaryIndex reports whether the type byte marks a secondary index file
func (t FileType) IsSecondaryIndex() bool {
	switch t {
	case FileSecondaryNInc, FileSecondaryG, FileSecondaryInc, FileSecondaryGInc:
		return true
	}
	return false
}

// Header layout offsets
const (
	offRecordSize     = 0x00
	offHeaderSize     = 0x02
	offFileType       = 0x04
	offBlockSize      = 0x05
	offRowCount       = 0x06
	offUsedBlocks     = 0x0A
	offTotalBlocks    = 0x0C
	offFirstBlock     = 0x0E
	offLastBlock      = 0x10
	offFieldCount     = 0x21
	offPrimaryKeys    = 0x23
	offWriteProtected = 0x38
	offVersion        = 0x39
	offAutoIncrement  = 0x49
	offFirstFreeBlock = 0x4D
	offReferential    = 0x55
	offCodePage       = 0x6A
	fieldInfoBase     = 0x58
	fieldInfoExtended = 0x78
	blockHeaderSize   = 6
	tableNameLen      = 79
	tableNameLenV7    = 261
	versionV7         = 0x0C
	defaultCodePage   = 437
)

// Header holds the decoded fixed header of a table or index file
type Header struct {
	RecordSize           int
	HeaderSize           int
	FileType             FileType
	BlockSize            int
	RowCount             int
	UsedBlocks           int
	TotalBlocks          int
	FirstBlock           int
	LastBlock            int
	FieldCount           int
	PrimaryKeyFields     int
	WriteProtected       bool
	Version              int
	AutoIncrement        uint32
	FirstFreeBlock       int
	ReferentialIntegrity byte
	CodePage             int
	TableName            string
	SortOrder            string
	// Fields are the raw descriptors in declaration order
	Fields []FieldDescriptor
	// FieldNumbers is the field-order list (1-based table ordinals)
	FieldNumbers []int
}

// FieldDescriptor is a raw field declaration
type FieldDescriptor struct {
	Name string
	Type FieldType
	Size int
}

// Descending reports whether an index built from this header sorts descending
func (h *Header) Descending() bool {
	switch h.ReferentialIntegrity {
	case 0x10, 0x11, 0x30:
		return true
	}
	return false
}

// RecordsPerBlock returns how many records fit in one data block
func (h *Header) RecordsPerBlock() int {
	if h.RecordSize <= 0 {
		return 0
	}
	return (h.BlockSize - blockHeaderSize) / h.RecordSize
}

// DataSize returns the number of bytes the header says the file occupies
func (h *Header) DataSize() int64 {
	return int64(h.HeaderSize) + int64(h.TotalBlocks)*int64(h.BlockSize)
}

// headerReader walks a header buffer with bounds checks
type headerReader struct {
	buf []byte
	pos int
	err error
}

func (r *headerReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("header truncated at offset 0x%x", r.pos)
		return false
	}
	return true
}

func (r *headerReader) u8() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *headerReader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *headerReader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *headerReader) fixed(n int) string {
	if !r.need(n) {
		return ""
	}
	s := cString(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s
}

func (r *headerReader) cstring() string {
	if r.err != nil {
		return ""
	}
	end := bytes.IndexByte(r.buf[r.pos:], 0)
	if end < 0 {
		r.err = fmt.Errorf("unterminated string at offset 0x%x", r.pos)
		return ""
	}
	s := string(r.buf[r.pos : r.pos+end])
	r.pos += end + 1
	return s
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// ReadHeader decodes the header of a table or index file of the given size
func ReadHeader(ra io.ReaderAt, size int64, path string) (*Header, error) {
	if size < fieldInfoBase {
		return nil, pxerr.Decode(nil, "%s: file too small for a header (%d bytes)", path, size)
	}

	prefix := make([]byte, fieldInfoBase)
	if _, err := ra.ReadAt(prefix, 0); err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "read header prefix"), "%s", path)
	}

	h := &Header{
		RecordSize:           int(binary.LittleEndian.Uint16(prefix[offRecordSize:])),
		HeaderSize:           int(binary.LittleEndian.Uint16(prefix[offHeaderSize:])),
		FileType:             FileType(prefix[offFileType]),
		BlockSize:            int(prefix[offBlockSize]) * 1024,
		RowCount:             int(binary.LittleEndian.Uint32(prefix[offRowCount:])),
		UsedBlocks:           int(binary.LittleEndian.Uint16(prefix[offUsedBlocks:])),
		TotalBlocks:          int(binary.LittleEndian.Uint16(prefix[offTotalBlocks:])),
		FirstBlock:           int(binary.LittleEndian.Uint16(prefix[offFirstBlock:])),
		LastBlock:            int(binary.LittleEndian.Uint16(prefix[offLastBlock:])),
		FieldCount:           int(binary.LittleEndian.Uint16(prefix[offFieldCount:])),
		PrimaryKeyFields:     int(binary.LittleEndian.Uint16(prefix[offPrimaryKeys:])),
		WriteProtected:       prefix[offWriteProtected] != 0,
		Version:              int(prefix[offVersion]),
		AutoIncrement:        binary.LittleEndian.Uint32(prefix[offAutoIncrement:]),
		FirstFreeBlock:       int(binary.LittleEndian.Uint16(prefix[offFirstFreeBlock:])),
		ReferentialIntegrity: prefix[offReferential],
		CodePage:             defaultCodePage,
	}

	if !h.FileType.IsTable() && !h.FileType.IsPrimaryIndex() && !h.FileType.IsSecondaryIndex() {
		return nil, pxerr.UnrecognizedFile(path, byte(h.FileType))
	}
	if h.HeaderSize < fieldInfoBase || int64(h.HeaderSize) > size {
		return nil, pxerr.Decode(nil, "%s: header size %d inconsistent with file size %d", path, h.HeaderSize, size)
	}
	if h.BlockSize == 0 {
		return nil, pxerr.Decode(nil, "%s: zero block size", path)
	}
	if h.FieldCount == 0 {
		return nil, pxerr.Decode(nil, "%s: no fields declared", path)
	}
	if h.UsedBlocks > h.TotalBlocks {
		return nil, pxerr.Decode(nil, "%s: %d used blocks exceed %d total", path, h.UsedBlocks, h.TotalBlocks)
	}
	if h.DataSize() > size {
		return nil, pxerr.Decode(nil, "%s: %d blocks of %d bytes do not fit in %d bytes", path, h.TotalBlocks, h.BlockSize, size)
	}

	buf := make([]byte, h.HeaderSize)
	if _, err := ra.ReadAt(buf, 0); err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "read header"), "%s", path)
	}

	r := &headerReader{buf: buf, pos: fieldInfoBase}
	if h.Version > 4 {
		if h.HeaderSize < fieldInfoExtended {
			return nil, pxerr.Decode(nil, "%s: header size %d too small for version %d", path, h.HeaderSize, h.Version)
		}
		if cp := int(binary.LittleEndian.Uint16(buf[offCodePage:])); cp != 0 {
			h.CodePage = cp
		}
		r.pos = fieldInfoExtended
	}

	h.Fields = make([]FieldDescriptor, h.FieldCount)
	for i := range h.Fields {
		h.Fields[i].Type = FieldType(r.u8())
		h.Fields[i].Size = int(r.u8())
	}

	r.u32() // table name pointer
	for i := 0; i < h.FieldCount; i++ {
		r.u32() // field name pointers
	}

	nameLen := tableNameLen
	if h.Version == versionV7 {
		nameLen = tableNameLenV7
	}
	h.TableName = r.fixed(nameLen)

	// Primary key files carry no field names; their fields are the leading table fields.
	if !h.FileType.IsPrimaryIndex() {
		for i := range h.Fields {
			h.Fields[i].Name = r.cstring()
		}
	}

	h.FieldNumbers = make([]int, h.FieldCount)
	for i := range h.FieldNumbers {
		h.FieldNumbers[i] = int(r.u16())
	}
	h.SortOrder = r.cstring()

	if r.err != nil {
		return nil, pxerr.Decode(r.err, "%s", path)
	}

	if h.FileType.IsTable() {
		width := 0
		for _, f := range h.Fields {
			w, err := f.Type.Width(f.Size)
			if err != nil {
				return nil, pxerr.Decode(err, "%s: field %q", path, f.Name)
			}
			width += w
		}
		if width != h.RecordSize {
			return nil, pxerr.Decode(nil, "%s: record size %d does not match field widths %d", path, h.RecordSize, width)
		}
		if h.RecordsPerBlock() == 0 {
			return nil, pxerr.Decode(nil, "%s: record size %d exceeds block size %d", path, h.RecordSize, h.BlockSize)
		}
		if h.RowCount > h.UsedBlocks*h.RecordsPerBlock() {
			return nil, pxerr.Decode(nil, "%s: %d rows cannot fit in %d used blocks", path, h.RowCount, h.UsedBlocks)
		}
	}

	return h, nil
}
