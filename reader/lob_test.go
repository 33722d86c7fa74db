package reader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/pxcat/internal/pxtest"
	"github.com/vegasq/pxcat/metrics"
	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

func notesTable(rows ...[]interface{}) pxtest.Table {
	return pxtest.Table{
		Name: "NOTES",
		Fields: []pxtest.Field{
			pxtest.F("ID", pxtest.Long),
			{Name: "BODY", Type: pxtest.Memo, Size: 30},
			{Name: "IMAGE", Type: pxtest.Blob, Size: 11},
		},
		Rows: rows,
	}
}

func TestLOBResolution(t *testing.T) {
	dir := t.TempDir()
	short := "inline memo"
	medium := strings.Repeat("sub-allocated ", 8)
	long := strings.Repeat("single blob payload ", 400)
	img := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}

	spec := notesTable(
		[]interface{}{1, short, nil},
		[]interface{}{2, medium, img},
		[]interface{}{3, long, []byte{7}},
	)
	pxtest.WriteTable(t, dir, spec)

	schema := NewSchema("db", dir, nil)
	tbl, err := schema.Table("notes")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "NOTES.MB"), tbl.LOBPath)

	rows := scanAll(t, tbl)
	require.Len(t, rows, 3)

	assert.Equal(t, value.TypeLOB, rows[0][1].Type())
	d := rows[0][1].AsLOB().(*LOBDescriptor)
	assert.True(t, d.Inline())
	assert.True(t, rows[0][2].IsNull())

	want := []string{short, medium, long}
	for i, row := range rows {
		lob := row[1].AsLOB()
		assert.True(t, lob.IsText())
		assert.Equal(t, int64(len(want[i])), lob.Len())
		text, err := lob.Text()
		require.NoError(t, err)
		assert.Equal(t, want[i], text)
	}

	b, err := rows[1][2].AsLOB().Bytes()
	require.NoError(t, err)
	assert.Equal(t, img, b)
	assert.False(t, rows[1][2].AsLOB().IsText())

	resolved, err := rows[2][1].Resolve()
	require.NoError(t, err)
	assert.Equal(t, value.TypeString, resolved.Type())
}

func TestLOBMissingFile(t *testing.T) {
	dir := t.TempDir()
	pxtest.WriteTable(t, dir, notesTable([]interface{}{1, strings.Repeat("x", 100), nil}))
	require.NoError(t, os.Remove(filepath.Join(dir, "NOTES.MB")))

	tbl, err := NewSchema("db", dir, nil).Table("NOTES")
	require.NoError(t, err)
	rows := scanAll(t, tbl)

	_, err = rows[0][1].AsLOB().Text()
	require.Error(t, err)
	assert.ErrorIs(t, err, pxerr.ErrMissingLOBFile)
}

func TestLOBModificatorMismatch(t *testing.T) {
	dir := t.TempDir()
	payload := strings.Repeat("y", 5000)
	pxtest.WriteTable(t, dir, notesTable([]interface{}{1, payload, nil}))

	mbPath := filepath.Join(dir, "NOTES.MB")
	mb, err := os.ReadFile(mbPath)
	require.NoError(t, err)
	// The single blob block starts right after the header block.
	binary.LittleEndian.PutUint16(mb[4096+7:], 999)
	require.NoError(t, os.WriteFile(mbPath, mb, 0o644))

	tbl, err := NewSchema("db", dir, nil).Table("NOTES")
	require.NoError(t, err)
	rows := scanAll(t, tbl)

	_, err = rows[0][1].AsLOB().Bytes()
	assert.ErrorIs(t, err, pxerr.ErrDecode)
}

func TestLOBCache(t *testing.T) {
	dir := t.TempDir()
	pxtest.WriteTable(t, dir, notesTable([]interface{}{1, strings.Repeat("z", 300), nil}))

	cache := NewLOBCache(1 << 20)
	m := metrics.New("lobtest")
	tbl, err := NewSchema("db", dir, &Options{LOBCache: cache, Metrics: m}).Table("NOTES")
	require.NoError(t, err)
	rows := scanAll(t, tbl)

	first, err := rows[0][1].AsLOB().Bytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1), cache.EntryCount())

	second, err := rows[0][1].AsLOB().Bytes()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), cache.HitCount())

	var nilCache *LOBCache
	_, ok := nilCache.Get("k")
	assert.False(t, ok)
	nilCache.Set("k", []byte("v"))
}
