package reader

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/pxcat/internal/pxtest"
	"github.com/vegasq/pxcat/pxerr"
)

func TestSchemaCache(t *testing.T) {
	dir := t.TempDir()
	path := pxtest.WriteTable(t, dir, areaCodes())
	s := NewSchema("db", dir, nil)

	first, err := s.Table("areacodes")
	require.NoError(t, err)
	second, err := s.Table("AREACODES")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.True(t, s.Cached("AreaCodes"))

	// Rewrite with one more row and a newer modification time.
	spec := areaCodes()
	spec.Rows = append(spec.Rows, []interface{}{"999", "ZZ", "Nowhere"})
	pxtest.WriteTable(t, dir, spec)
	later := first.ModTime.Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	third, err := s.Table("AREACODES")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 8, third.RowCount())

	s.Invalidate("areacodes")
	assert.False(t, s.Cached("AREACODES"))
}

func TestSchemaTableNotFound(t *testing.T) {
	dir := t.TempDir()
	pxtest.WriteTable(t, dir, areaCodes())

	_, err := NewSchema("db", dir, nil).Table("MISSING")
	assert.ErrorIs(t, err, pxerr.ErrTableNotFound)
}

func TestSchemaConcurrentLoads(t *testing.T) {
	dir := t.TempDir()
	pxtest.WriteTable(t, dir, areaCodes())
	s := NewSchema("db", dir, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := s.Table("AREACODES")
			if err == nil && tbl.RowCount() != 7 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestIndexes(t *testing.T) {
	dir := t.TempDir()
	spec := areaCodes()
	spec.KeyFields = 1
	pxtest.WriteTable(t, dir, spec)
	pxtest.WriteIndex(t, dir, "AREACODES", pxtest.Index{
		Ext:    "PX",
		Fields: []pxtest.Field{pxtest.A("", 3)},
	})
	pxtest.WriteIndex(t, dir, "AREACODES", pxtest.Index{
		Ext:                  "X02",
		Fields:               []pxtest.Field{pxtest.A("STATE", 2)},
		FieldNumbers:         []int{2},
		ReferentialIntegrity: 0x10,
	})
	pxtest.WriteIndex(t, dir, "AREACODES", pxtest.Index{
		Ext:          "XG0",
		FileType:     0x05,
		Fields:       []pxtest.Field{pxtest.A("STATE", 2), pxtest.A("AC", 3)},
		FieldNumbers: []int{2, 1},
	})

	tbl, err := NewSchema("db", dir, nil).Table("AREACODES")
	require.NoError(t, err)
	assert.Equal(t, FileKeyedTable, tbl.Header.FileType)

	require.NotNil(t, tbl.PrimaryKey)
	assert.True(t, tbl.PrimaryKey.Primary)
	assert.True(t, tbl.PrimaryKey.Unique)
	assert.Equal(t, []string{"AC"}, tbl.PrimaryKey.FieldNames())

	require.Len(t, tbl.Indexes, 2)
	x02 := tbl.Indexes[0]
	assert.Equal(t, "AREACODES.X02", x02.Name)
	assert.True(t, x02.Descending)
	assert.Equal(t, []string{"STATE"}, x02.FieldNames())
	assert.Equal(t, "AREACODES.DB", x02.Parent)

	xg0 := tbl.Indexes[1]
	assert.False(t, xg0.Descending)
	assert.Equal(t, []string{"STATE", "AC"}, xg0.FieldNames())

	info := Describe(tbl)
	assert.True(t, info.Columns[0].Key)
	assert.False(t, info.Columns[1].Key)
	assert.Len(t, info.Indexes, 3)
}

func TestIndexInvalidType(t *testing.T) {
	dir := t.TempDir()
	pxtest.WriteTable(t, dir, areaCodes())
	pxtest.WriteIndex(t, dir, "AREACODES", pxtest.Index{
		Ext:      "X01",
		FileType: 0x04,
		Fields:   []pxtest.Field{pxtest.A("STATE", 2)},
	})

	_, err := NewSchema("db", dir, nil).Table("AREACODES")
	assert.ErrorIs(t, err, pxerr.ErrUnrecognizedFile)
}

func TestCatalog(t *testing.T) {
	root := t.TempDir()
	pxtest.WriteTable(t, root, areaCodes())
	sales := filepath.Join(root, "sales")
	require.NoError(t, os.Mkdir(sales, 0o755))
	pxtest.WriteTable(t, sales, pxtest.Table{
		Name:   "ORDERS",
		Fields: []pxtest.Field{pxtest.F("ID", pxtest.Long)},
		Rows:   [][]interface{}{{1}, {2}},
	})
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))

	c, err := OpenCatalog(root, nil)
	require.NoError(t, err)
	require.Len(t, c.Schemas(), 2)
	assert.Equal(t, filepath.Base(root), c.Default().Name)

	_, ok := c.Schema("SALES")
	assert.True(t, ok)
	_, ok = c.Schema("empty")
	assert.False(t, ok)

	orders, err := c.Table("sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, "sales", orders.Schema)

	_, err = c.Table("", "ORDERS")
	assert.ErrorIs(t, err, pxerr.ErrTableNotFound)
	_, err = c.Table("nope", "ORDERS")
	assert.ErrorIs(t, err, pxerr.ErrTableNotFound)

	infos, err := DescribeCatalog(c)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "AREACODES", infos[0].Name)
	assert.Equal(t, 3, len(infos[0].Columns))
	assert.Equal(t, "ORDERS", infos[1].Name)
}

func TestWatcherInvalidates(t *testing.T) {
	dir := t.TempDir()
	pxtest.WriteTable(t, dir, areaCodes())
	s := NewSchema("db", dir, nil)
	_, err := s.Table("AREACODES")
	require.NoError(t, err)

	w, err := Watch(nil, s)
	require.NoError(t, err)
	defer w.Close()

	pxtest.WriteTable(t, dir, areaCodes())

	select {
	case name := <-w.Events:
		assert.Equal(t, "AREACODES", name)
	case <-time.After(5 * time.Second):
		t.Fatal("no invalidation event")
	}
	assert.False(t, s.Cached("AREACODES"))
}
