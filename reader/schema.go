package reader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/vegasq/pxcat/pxerr"
)

// Schema is one directory of table, index and blob files. Decoded tables are
// cached by upper-cased name; a cached entry is reused only while its
// recorded modification time is not older than the file's.
type Schema struct {
	Name string
	Dir  string

	opts *Options

	mu     sync.RWMutex
	tables map[string]*Table
}

// NewSchema creates a schema over dir
func NewSchema(name, dir string, opts *Options) *Schema {
	return &Schema{
		Name:   name,
		Dir:    dir,
		opts:   opts.withDefaults(),
		tables: make(map[string]*Table),
	}
}

// TableNames lists the tables of the schema in name order
func (s *Schema) TableNames() ([]string, error) {
	entries, err := s.opts.Lister.List(s.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Kind == KindTable {
			names = append(names, e.Stem())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToUpper(names[i]) < strings.ToUpper(names[j])
	})
	return names, nil
}

// Tables decodes every table of the schema
func (s *Schema) Tables() ([]*Table, error) {
	names, err := s.TableNames()
	if err != nil {
		return nil, err
	}
	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		t, err := s.Table(name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// HasTables reports whether the directory contains at least one table file
func (s *Schema) HasTables() bool {
	names, err := s.TableNames()
	return err == nil && len(names) > 0
}

// Table returns the named table, decoding it on a cache miss
func (s *Schema) Table(name string) (*Table, error) {
	key := strings.ToUpper(name)

	files, err := s.opts.Lister.List(s.Dir)
	if err != nil {
		return nil, err
	}
	var tableFile *FileEntry
	for i := range files {
		if files[i].Kind == KindTable && strings.EqualFold(files[i].Stem(), name) {
			tableFile = &files[i]
			break
		}
	}
	if tableFile == nil {
		return nil, pxerr.TableNotFound(name)
	}

	st, err := os.Stat(tableFile.Path)
	if err != nil {
		return nil, pxerr.Decode(errors.Wrap(err, "stat table"), "%s", tableFile.Path)
	}

	s.mu.RLock()
	cached, ok := s.tables[key]
	s.mu.RUnlock()
	if ok && !cached.ModTime.Before(st.ModTime()) {
		s.opts.Metrics.CacheLookup("hit")
		return cached, nil
	}
	if ok {
		s.opts.Metrics.CacheLookup("stale")
		s.opts.Logger.Debug("table cache entry stale", "schema", s.Name, "table", name)
	} else {
		s.opts.Metrics.CacheLookup("miss")
	}

	t, err := s.load(tableFile.Path, files)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Keep whichever entry is newer if another statement loaded the table concurrently.
	if cur, ok := s.tables[key]; !ok || !cur.ModTime.After(t.ModTime) {
		s.tables[key] = t
	} else {
		t = cur
	}
	s.mu.Unlock()

	s.opts.Logger.Debug("table decoded", "schema", s.Name, "table", t.Name,
		"rows", t.RowCount(), "fields", len(t.Fields))
	return t, nil
}

func (s *Schema) load(path string, files []FileEntry) (*Table, error) {
	t, err := OpenTable(path, s.opts)
	if err != nil {
		return nil, err
	}
	t.Schema = s.Name

	for _, e := range files {
		if !strings.EqualFold(e.Stem(), t.Name) {
			continue
		}
		switch e.Kind {
		case KindLOB:
			t.LOBPath = e.Path
		case KindPrimaryIndex:
			idx, err := OpenIndex(e.Path, t, true)
			if err != nil {
				return nil, err
			}
			t.PrimaryKey = idx
		case KindSecondaryIndex:
			if ext := strings.ToUpper(filepath.Ext(e.Name)); !strings.HasPrefix(ext, ".X") {
				continue
			}
			idx, err := OpenIndex(e.Path, t, false)
			if err != nil {
				return nil, err
			}
			t.Indexes = append(t.Indexes, idx)
		}
	}
	sort.Slice(t.Indexes, func(i, j int) bool { return t.Indexes[i].Name < t.Indexes[j].Name })
	return t, nil
}

// Invalidate drops a cached table; an empty name drops every entry
func (s *Schema) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		s.tables = make(map[string]*Table)
		return
	}
	if _, ok := s.tables[strings.ToUpper(name)]; ok {
		delete(s.tables, strings.ToUpper(name))
		s.opts.Metrics.CacheLookup("invalidated")
		s.opts.Logger.Debug("table cache entry invalidated", "schema", s.Name, "table", name)
	}
}

// Cached reports whether a table is currently cached
func (s *Schema) Cached(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[strings.ToUpper(name)]
	return ok
}
