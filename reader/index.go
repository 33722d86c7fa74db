package reader

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vegasq/pxcat/pxerr"
)

// Index is the metadata of a primary key or secondary index file.
// Indexes are never used for lookups; every query scans the table.
type Index struct {
	Name       string
	Path       string
	Primary    bool
	Unique     bool
	Descending bool
	// Fields are the indexed table fields in key order
	Fields    []*Field
	SortOrder string
	// Parent is the table name recorded in the index header
	Parent string
	Header *Header
}

// OpenIndex decodes an index file belonging to t
func OpenIndex(path string, t *Table, primary bool) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "open index"), "%s", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "stat index"), "%s", path)
	}

	h, err := ReadHeader(f, st.Size(), path)
	if err != nil {
		return nil, err
	}
	if primary && !h.FileType.IsPrimaryIndex() || !primary && !h.FileType.IsSecondaryIndex() {
		return nil, pxerr.UnrecognizedFile(path, byte(h.FileType))
	}

	idx := &Index{
		Name:       filepath.Base(path),
		Path:       path,
		Primary:    primary,
		Unique:     primary,
		Descending: h.Descending(),
		SortOrder:  h.SortOrder,
		Parent:     h.TableName,
		Header:     h,
	}

	if primary {
		if h.FieldCount > len(t.Fields) {
			return nil, pxerr.Decode(nil, "%s: %d key fields exceed %d table fields", path, h.FieldCount, len(t.Fields))
		}
		idx.Fields = append(idx.Fields, t.Fields[:h.FieldCount]...)
		return idx, nil
	}

	for i, d := range h.Fields {
		field, ok := resolveIndexField(t, d, h.FieldNumbers[i])
		if !ok {
			return nil, pxerr.Decode(nil, "%s: index field %q not in table %s", path, d.Name, t.Name)
		}
		idx.Fields = append(idx.Fields, field)
	}
	return idx, nil
}

func resolveIndexField(t *Table, d FieldDescriptor, number int) (*Field, bool) {
	if number >= 1 && number <= len(t.Fields) {
		return t.Fields[number-1], true
	}
	return t.FieldByName(d.Name)
}

// FieldNames returns the indexed field names in key order
func (i *Index) FieldNames() []string {
	names := make([]string, len(i.Fields))
	for n, f := range i.Fields {
		names[n] = f.Name
	}
	return names
}
