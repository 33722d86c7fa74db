package reader

// ColumnInfo describes one column of a table for catalog listings
type ColumnInfo struct {
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	Name      string `json:"name"`
	Ordinal   int    `json:"ordinal"`
	Type      string `json:"type"`
	FieldType string `json:"field_type"`
	Size      int    `json:"size"`
	Precision int    `json:"precision"`
	Scale     int    `json:"scale"`
	Key       bool   `json:"key"`
}

// IndexInfo describes one index for catalog listings
type IndexInfo struct {
	Schema     string   `json:"schema"`
	Table      string   `json:"table"`
	Name       string   `json:"name"`
	Primary    bool     `json:"primary"`
	Unique     bool     `json:"unique"`
	Descending bool     `json:"descending"`
	Fields     []string `json:"fields"`
}

// TableInfo describes a table for catalog listings
type TableInfo struct {
	Schema    string       `json:"schema"`
	Name      string       `json:"name"`
	Rows      int          `json:"rows"`
	Version   int          `json:"version"`
	CodePage  int          `json:"code_page"`
	Charset   string       `json:"charset"`
	Protected bool         `json:"write_protected"`
	Columns   []ColumnInfo `json:"columns"`
	Indexes   []IndexInfo  `json:"indexes"`
}

// Describe extracts catalog information from a decoded table
func Describe(t *Table) TableInfo {
	info := TableInfo{
		Schema:    t.Schema,
		Name:      t.Name,
		Rows:      t.RowCount(),
		Version:   t.Header.Version,
		CodePage:  t.Header.CodePage,
		Protected: t.Header.WriteProtected,
	}
	if t.Charset != nil {
		info.Charset = t.Charset.Name
	}

	keys := make(map[*Field]bool)
	if t.PrimaryKey != nil {
		for _, f := range t.PrimaryKey.Fields {
			keys[f] = true
		}
	}

	for _, f := range t.Fields {
		info.Columns = append(info.Columns, ColumnInfo{
			Schema:    t.Schema,
			Table:     t.Name,
			Name:      f.Name,
			Ordinal:   f.Ordinal + 1,
			Type:      f.ValueType().String(),
			FieldType: f.Type.String(),
			Size:      f.Size,
			Precision: f.Precision(),
			Scale:     f.Scale(),
			Key:       keys[f],
		})
	}

	indexes := t.Indexes
	if t.PrimaryKey != nil {
		indexes = append([]*Index{t.PrimaryKey}, indexes...)
	}
	for _, idx := range indexes {
		info.Indexes = append(info.Indexes, IndexInfo{
			Schema:     t.Schema,
			Table:      t.Name,
			Name:       idx.Name,
			Primary:    idx.Primary,
			Unique:     idx.Unique,
			Descending: idx.Descending,
			Fields:     idx.FieldNames(),
		})
	}
	return info
}

// DescribeCatalog lists every table of every schema
func DescribeCatalog(c *Catalog) ([]TableInfo, error) {
	var out []TableInfo
	for _, s := range c.Schemas() {
		tables, err := s.Tables()
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			out = append(out, Describe(t))
		}
	}
	return out, nil
}
