package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/pxcat/internal/pxtest"
)

// createTestCatalog writes a small area code table into a temporary directory
func createTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pxtest.WriteTable(t, dir, pxtest.Table{
		Name:      "AREACODES",
		Fields:    []pxtest.Field{pxtest.A("AC", 3), pxtest.A("STATE", 2)},
		KeyFields: 1,
		Rows: [][]interface{}{
			{"201", "NJ"},
			{"203", "CT"},
			{"860", "CT"},
		},
	})
	pxtest.WriteIndex(t, dir, "AREACODES", pxtest.Index{
		Ext:    "PX",
		Fields: []pxtest.Field{pxtest.A("", 3)},
	})
	pxtest.WriteIndex(t, dir, "AREACODES", pxtest.Index{
		Ext:          "X02",
		Fields:       []pxtest.Field{pxtest.A("STATE", 2)},
		FieldNumbers: []int{2},
	})
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestMain_BasicQuery(t *testing.T) {
	dir := createTestCatalog(t)

	code, out, errOut := runCLI(t, "-q", "SELECT ac FROM areacodes WHERE state = 'CT' ORDER BY ac", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, "{\"AC\":\"203\"}\n{\"AC\":\"860\"}\n", out)
}

func TestMain_CSVWithLimit(t *testing.T) {
	dir := createTestCatalog(t)

	code, out, errOut := runCLI(t, "-f", "csv", "-limit", "1", "-q", "SELECT ac, state FROM areacodes", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, "AC,STATE\n201,NJ\n", out)
}

func TestMain_ListTables(t *testing.T) {
	dir := createTestCatalog(t)

	code, out, errOut := runCLI(t, "-f", "csv", dir)
	require.Equal(t, exitOK, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "schema,table,rows,columns,indexes,version,charset,write_protected", lines[0])
	assert.Contains(t, lines[1], ",AREACODES,3,2,2,")
}

func TestMain_SchemaMode(t *testing.T) {
	dir := createTestCatalog(t)

	code, out, errOut := runCLI(t, "-schema", "-f", "csv", dir)
	require.Equal(t, exitOK, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "schema,table,name,ordinal,type"))
	assert.Contains(t, lines[1], ",AREACODES,AC,1,VARCHAR,")
	assert.Contains(t, lines[1], ",true,AREACODES.PX")
	assert.Contains(t, lines[2], ",AREACODES,STATE,2,VARCHAR,")
	assert.Contains(t, lines[2], ",false,AREACODES.X02")
}

func TestMain_ParquetOutput(t *testing.T) {
	dir := createTestCatalog(t)
	target := filepath.Join(t.TempDir(), "out.parquet")

	code, _, errOut := runCLI(t, "-f", "parquet", "-q", "SELECT * FROM areacodes", dir)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "requires -o")

	code, out, errOut := runCLI(t, "-f", "parquet", "-o", target, "-q", "SELECT * FROM areacodes", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PAR1")))
}

func TestMain_ConfigFile(t *testing.T) {
	dir := createTestCatalog(t)
	cfg := filepath.Join(t.TempDir(), "pxcat.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("max_rows = 2\n[output]\nformat = \"csv\"\n"), 0o644))

	code, out, errOut := runCLI(t, "-config", cfg, "-q", "SELECT ac FROM areacodes", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, "AC\n201\n203\n", out)

	// flags win over the file
	code, out, errOut = runCLI(t, "-config", cfg, "-f", "jsonl", "-q", "SELECT ac FROM areacodes", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, "{\"AC\":\"201\"}\n{\"AC\":\"203\"}\n", out)
}

func TestMain_Stats(t *testing.T) {
	dir := createTestCatalog(t)

	code, _, errOut := runCLI(t, "-stats", "-q", "SELECT ac FROM areacodes", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, errOut, "pxcat_rows_scanned_total 3")
	assert.Contains(t, errOut, "pxcat_rows_emitted_total 3")
	assert.Contains(t, errOut, `pxcat_statements_total{status="exhausted"} 1`)
}

func TestMain_Errors(t *testing.T) {
	dir := createTestCatalog(t)

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"unknown table", []string{"-q", "SELECT * FROM nowhere", dir}, exitError, "42P01"},
		{"runtime error", []string{"-q", "SELECT 1 / 0 FROM areacodes", dir}, exitError, "22P02"},
		{"missing directory", []string{"-q", "SELECT 1"}, exitUsage, "directory"},
		{"schema with query", []string{"-schema", "-q", "SELECT 1", dir}, exitUsage, "cannot be used together"},
		{"negative limit", []string{"-limit", "-1", dir}, exitUsage, "non-negative"},
		{"unknown format", []string{"-f", "xml", dir}, exitUsage, "xml"},
		{"bad locale", []string{"-locale", "not a locale", dir}, exitUsage, "invalid config"},
		{"unknown flag", []string{"-nope", dir}, exitUsage, "nope"},
		{"nonexistent directory", []string{filepath.Join(dir, "absent")}, exitError, "absent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, tt.code, code, errOut)
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestMain_Cancelled(t *testing.T) {
	dir := createTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-q", "SELECT ac FROM areacodes", dir}, &stdout, &stderr)
	assert.Equal(t, exitCancelled, code, stderr.String())
	assert.Contains(t, stderr.String(), "57014")
}
