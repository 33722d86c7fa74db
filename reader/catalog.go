package reader

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/vegasq/pxcat/pxerr"
)

// Catalog is a root directory of schemas: the root itself when it holds
// tables, plus every sub-directory that holds tables
type Catalog struct {
	Root string

	opts    *Options
	schemas []*Schema
	byName  map[string]*Schema
	def     *Schema
}

// OpenCatalog discovers the schemas under root
func OpenCatalog(root string, opts *Options) (*Catalog, error) {
	opts = opts.withDefaults()
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}

	c := &Catalog{Root: abs, opts: opts, byName: make(map[string]*Schema)}

	rootSchema := NewSchema(filepath.Base(abs), abs, opts)
	if _, err := opts.Lister.List(abs); err != nil {
		return nil, err
	}
	if rootSchema.HasTables() {
		c.add(rootSchema)
	}

	subdirs, err := opts.Lister.Subdirs(abs)
	if err != nil {
		return nil, err
	}
	sort.Strings(subdirs)
	for _, dir := range subdirs {
		s := NewSchema(filepath.Base(dir), dir, opts)
		if s.HasTables() {
			c.add(s)
		}
	}

	c.def = rootSchema
	if !rootSchema.HasTables() && len(c.schemas) > 0 {
		c.def = c.schemas[0]
	}
	return c, nil
}

func (c *Catalog) add(s *Schema) {
	c.schemas = append(c.schemas, s)
	c.byName[strings.ToUpper(s.Name)] = s
}

// Schemas returns the discovered schemas
func (c *Catalog) Schemas() []*Schema {
	return c.schemas
}

// Default returns the schema used for unqualified table names
func (c *Catalog) Default() *Schema {
	return c.def
}

// Schema finds a schema by name, case-insensitively
func (c *Catalog) Schema(name string) (*Schema, bool) {
	s, ok := c.byName[strings.ToUpper(name)]
	return s, ok
}

// Table resolves a table in the named schema, or in the default schema when schema is empty
func (c *Catalog) Table(schema, name string) (*Table, error) {
	s := c.def
	if schema != "" {
		var ok bool
		if s, ok = c.Schema(schema); !ok {
			return nil, pxerr.TableNotFound(schema + "." + name)
		}
	}
	t, err := s.Table(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}
