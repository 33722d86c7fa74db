package reader

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vegasq/pxcat/pxerr"
)

// Table is the decoded metadata of a table file
type Table struct {
	// Name is the file name without extension, as found on disk
	Name string
	// Schema is the name of the owning schema
	Schema  string
	Path    string
	LOBPath string
	ModTime time.Time
	Header  *Header
	Fields  []*Field
	Charset *Charset
	// PrimaryKey is nil for unkeyed tables or when no .PX file exists
	PrimaryKey *Index
	Indexes    []*Index

	opts *Options
}

// OpenTable decodes the header and field declarations of a table file
func OpenTable(path string, opts *Options) (*Table, error) {
	opts = opts.withDefaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "open table"), "%s", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "stat table"), "%s", path)
	}

	h, err := ReadHeader(f, st.Size(), path)
	if err != nil {
		opts.Metrics.DecodeError()
		return nil, err
	}
	if !h.FileType.IsTable() {
		opts.Metrics.DecodeError()
		return nil, pxerr.UnrecognizedFile(path, byte(h.FileType))
	}

	t := &Table{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:    path,
		ModTime: st.ModTime(),
		Header:  h,
		opts:    opts,
	}

	offset := 0
	t.Fields = make([]*Field, len(h.Fields))
	for i, d := range h.Fields {
		w, err := d.Type.Width(d.Size)
		if err != nil {
			return nil, pxerr.Decode(err, "%s: field %d", path, i+1)
		}
		t.Fields[i] = &Field{
			Name:    d.Name,
			Type:    d.Type,
			Size:    d.Size,
			Ordinal: i,
			offset:  offset,
			width:   w,
			Table:   t,
		}
		offset += w
	}

	t.Charset, err = t.resolveCharset()
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Table) resolveCharset() (*Charset, error) {
	if t.opts.Charset != "" {
		cs, err := LookupCharset(t.opts.Charset)
		if err != nil {
			return nil, pxerr.Decode(err, "%s", t.Path)
		}
		return cs, nil
	}
	cs, err := CharsetForCodePage(t.Header.CodePage)
	if err != nil {
		t.opts.Logger.Warn("unsupported code page, using default",
			"table", t.Name, "codePage", t.Header.CodePage)
		return CharsetForCodePage(defaultCodePage)
	}
	return cs, nil
}

// RowCount returns the row count declared in the header
func (t *Table) RowCount() int {
	return t.Header.RowCount
}

// FieldByName finds a field case-insensitively
func (t *Table) FieldByName(name string) (*Field, bool) {
	for _, f := range t.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return nil, false
}

func (t *Table) stemPath() string {
	return strings.TrimSuffix(t.Path, filepath.Ext(t.Path))
}
