package pxdriver

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/pxcat/internal/pxtest"
	"github.com/vegasq/pxcat/pxerr"
)

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pxtest.WriteTable(t, dir, pxtest.Table{
		Name:   "AREACODES",
		Fields: []pxtest.Field{pxtest.A("AC", 3), pxtest.A("STATE", 2)},
		Rows: [][]interface{}{
			{"201", "NJ"},
			{"203", "CT"},
			{"212", "NY"},
			{"860", "CT"},
		},
	})
	pxtest.WriteTable(t, dir, pxtest.Table{
		Name:   "SCORES",
		Fields: []pxtest.Field{pxtest.F("ID", pxtest.Long), pxtest.F("AMOUNT", pxtest.Long), pxtest.F("RATIO", pxtest.Number)},
		Rows: [][]interface{}{
			{1, 10, 0.5},
			{2, nil, 1.5},
			{3, 30, nil},
			{4, 20, 2.5},
		},
	})
	return dir
}

func openDB(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverName, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestQueryWithParameters(t *testing.T) {
	db := openDB(t, fixtureDir(t))

	rows, err := db.Query("SELECT ac, state FROM areacodes WHERE state = ? ORDER BY ac", "CT")
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"AC", "STATE"}, cols)

	var got []string
	for rows.Next() {
		var ac, state string
		require.NoError(t, rows.Scan(&ac, &state))
		got = append(got, ac+"/"+state)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"203/CT", "860/CT"}, got)
}

func TestScanTypes(t *testing.T) {
	db := openDB(t, fixtureDir(t))

	rows, err := db.Query("SELECT id, amount, ratio FROM scores ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	types, err := rows.ColumnTypes()
	require.NoError(t, err)
	assert.Equal(t, "LONG", types[0].DatabaseTypeName())
	assert.Equal(t, "DOUBLE", types[2].DatabaseTypeName())
	nullable, ok := types[1].Nullable()
	assert.True(t, ok)
	assert.True(t, nullable)

	var ids []int64
	var amounts []sql.NullInt64
	var ratios []sql.NullFloat64
	for rows.Next() {
		var id int64
		var amount sql.NullInt64
		var ratio sql.NullFloat64
		require.NoError(t, rows.Scan(&id, &amount, &ratio))
		ids = append(ids, id)
		amounts = append(amounts, amount)
		ratios = append(ratios, ratio)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2, 3, 4}, ids)
	assert.False(t, amounts[1].Valid)
	assert.Equal(t, int64(30), amounts[2].Int64)
	assert.False(t, ratios[2].Valid)
	assert.Equal(t, 2.5, ratios[3].Float64)
}

func TestDecimalScansAsString(t *testing.T) {
	db := openDB(t, fixtureDir(t))

	var avg string
	require.NoError(t, db.QueryRow("SELECT AVG(amount) FROM scores").Scan(&avg))
	assert.Equal(t, "20", avg)
}

func TestMaxRowsFromDSN(t *testing.T) {
	db := openDB(t, fixtureDir(t)+"?maxrows=2")

	var n int
	rows, err := db.Query("SELECT * FROM areacodes")
	require.NoError(t, err)
	for rows.Next() {
		n++
	}
	require.NoError(t, rows.Err())
	rows.Close()
	assert.Equal(t, 2, n)
}

func TestUnsupportedOperations(t *testing.T) {
	db := openDB(t, fixtureDir(t))

	_, err := db.Exec("DELETE FROM areacodes")
	require.Error(t, err)
	assert.Equal(t, pxerr.CodeUnsupported, pxerr.CodeOf(err))

	_, err = db.Begin()
	require.Error(t, err)
	assert.Equal(t, pxerr.CodeUnsupported, pxerr.CodeOf(err))

	_, err = db.Query("SELECT ac FROM areacodes WHERE state = :s", sql.Named("s", "NJ"))
	require.Error(t, err)
}

func TestPrepareErrors(t *testing.T) {
	db := openDB(t, fixtureDir(t))

	_, err := db.Prepare("SELECT * FROM nowhere")
	require.Error(t, err)
	assert.Equal(t, pxerr.CodeTableNotFound, pxerr.CodeOf(err))

	st, err := db.Prepare("SELECT ac FROM areacodes WHERE state = ?")
	require.NoError(t, err)
	defer st.Close()
	_, err = st.Query()
	assert.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	db := openDB(t, fixtureDir(t))

	ctx, cancel := context.WithCancel(context.Background())
	rows, err := db.QueryContext(ctx, "SELECT ac FROM areacodes")
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	cancel()
	for rows.Next() {
	}
	assert.Error(t, rows.Err())
}

func TestParseDSN(t *testing.T) {
	dir, cfg, err := ParseDSN("/data/px?charset=cp1251&locale=tr&maxrows=10&lobcache=0&watch=false")
	require.NoError(t, err)
	assert.Equal(t, "/data/px", dir)
	assert.Equal(t, "cp1251", cfg.Charset)
	assert.Equal(t, "tr", cfg.Locale)
	assert.Equal(t, int64(10), cfg.MaxRows)
	assert.Equal(t, 0, cfg.LOBCacheSize)

	dir, cfg, err = ParseDSN("/data/px")
	require.NoError(t, err)
	assert.Equal(t, "/data/px", dir)
	assert.Equal(t, int64(0), cfg.MaxRows)

	for _, dsn := range []string{
		"",
		"?maxrows=1",
		"/data?maxrows=ten",
		"/data?maxrows=-1",
		"/data?locale=not+a+locale",
		"/data?colour=red",
		"/data?watch=maybe",
		"/data?%zz",
	} {
		_, _, err := ParseDSN(dsn)
		assert.Error(t, err, dsn)
	}
}

func TestParseDSNConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pxcat.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_rows = 5\nlocale = \"de\"\n"), 0o644))

	_, cfg, err := ParseDSN("/data?config=" + path + "&maxrows=7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.MaxRows)
	assert.Equal(t, "de", cfg.Locale)
}

func TestConnector(t *testing.T) {
	c, err := NewConnector(fixtureDir(t), nil, nil)
	require.NoError(t, err)
	db := sql.OpenDB(c)
	defer db.Close()

	var n int64
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM areacodes").Scan(&n))
	assert.Equal(t, int64(4), n)
	assert.NotNil(t, c.Session().Catalog())
}
