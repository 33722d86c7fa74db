package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

func TestBindErrors(t *testing.T) {
	s := newTestSession(t, nil)

	tests := []struct {
		name string
		sql  string
		code string
	}{
		{"unknown table", "SELECT * FROM nowhere", pxerr.CodeTableNotFound},
		{"unknown schema", "SELECT * FROM other.areacodes", pxerr.CodeTableNotFound},
		{"unknown star qualifier", "SELECT x.* FROM areacodes", pxerr.CodeTableNotFound},
		{"unknown column", "SELECT zip FROM areacodes", pxerr.CodeColumnNotFound},
		{"qualified column missing", "SELECT a.name FROM areacodes a, states s", pxerr.CodeColumnNotFound},
		{"ambiguous column", "SELECT state FROM areacodes a, areacodes b", pxerr.CodeColumnAmbiguous},
		{"duplicate alias", "SELECT 1 FROM areacodes x, states X", pxerr.CodeDuplicateAlias},
		{"duplicate table", "SELECT 1 FROM areacodes, areacodes", pxerr.CodeDuplicateAlias},
		{"ungrouped column", "SELECT ac, COUNT(*) FROM areacodes GROUP BY state", pxerr.CodeColumnNotGrouped},
		{"ungrouped star", "SELECT *, COUNT(*) FROM areacodes", pxerr.CodeColumnNotGrouped},
		{"ungrouped having", "SELECT state FROM areacodes GROUP BY state HAVING ac > '0'", pxerr.CodeColumnNotGrouped},
		{"ungrouped operand", "SELECT state || ac FROM areacodes GROUP BY state", pxerr.CodeColumnNotGrouped},
		{"unknown function", "SELECT frobnicate(ac) FROM areacodes", pxerr.CodeFunctionNotFound},
		{"too few arguments", "SELECT SUBSTRING(ac) FROM areacodes", pxerr.CodeInvalidArity},
		{"too many arguments", "SELECT UPPER(ac, state) FROM areacodes", pxerr.CodeInvalidArity},
		{"aggregate arity", "SELECT SUM(ac, state) FROM areacodes", pxerr.CodeInvalidArity},
		{"aggregate in where", "SELECT ac FROM areacodes WHERE COUNT(*) > 1", pxerr.CodeSyntax},
		{"aggregate in group by", "SELECT COUNT(*) FROM areacodes GROUP BY COUNT(*)", pxerr.CodeSyntax},
		{"nested aggregate", "SELECT MAX(COUNT(*)) FROM areacodes", pxerr.CodeSyntax},
		{"star outside count", "SELECT SUM(*) FROM areacodes", pxerr.CodeSyntax},
		{"star in scalar", "SELECT UPPER(*) FROM areacodes", pxerr.CodeSyntax},
		{"distinct in scalar", "SELECT UPPER(DISTINCT ac) FROM areacodes", pxerr.CodeSyntax},
		{"ordinal out of range", "SELECT ac FROM areacodes ORDER BY 2", pxerr.CodeSyntax},
		{"ordinal zero", "SELECT ac FROM areacodes ORDER BY 0", pxerr.CodeSyntax},
		{"inconsistent coalesce", "SELECT COALESCE(ac, 1) FROM areacodes", pxerr.CodeInconsistentTypes},
		{"on sees later table", "SELECT 1 FROM areacodes a JOIN states s ON a.state = t.code JOIN states t ON t.code = a.state", pxerr.CodeColumnNotFound},
		{"unknown column in subquery", "SELECT 1 FROM states WHERE EXISTS (SELECT 1 FROM areacodes WHERE nope = 1)", pxerr.CodeColumnNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Prepare(tt.sql)
			require.Error(t, err)
			assert.Equal(t, tt.code, pxerr.CodeOf(err), "%v", err)
		})
	}
}

func TestBindResolution(t *testing.T) {
	s := newTestSession(t, nil)

	t.Run("case insensitive names", func(t *testing.T) {
		st, err := s.Prepare("SELECT Ac, a.STATE FROM AreaCodes A")
		require.NoError(t, err)
		cols := st.Columns()
		assert.Equal(t, "AC", cols[0].Name)
		assert.Equal(t, "STATE", cols[1].Name)
		require.NotNil(t, cols[1].Field)
		assert.Equal(t, 1, cols[1].Field.Ordinal)
	})

	t.Run("qualified disambiguates", func(t *testing.T) {
		st, err := s.Prepare("SELECT a.state, b.state FROM areacodes a, areacodes b")
		require.NoError(t, err)
		plan := st.Plan()
		assert.Equal(t, 6, plan.Width)
		assert.Equal(t, 1, plan.Project[0].Index)
		assert.Equal(t, 4, plan.Project[1].Index)
	})

	t.Run("real table name without alias", func(t *testing.T) {
		_, err := s.Prepare("SELECT areacodes.ac, states.name FROM areacodes JOIN states ON areacodes.state = states.code")
		require.NoError(t, err)
	})

	t.Run("schema qualified table", func(t *testing.T) {
		root := s.Catalog().Default().Name
		_, err := s.Prepare(`SELECT ac FROM "` + root + `".areacodes`)
		require.NoError(t, err)
	})

	t.Run("static types", func(t *testing.T) {
		st, err := s.Prepare(`SELECT id, ratio, amount + 1, amount * ratio, ac || 'x', COUNT(*), AVG(amount), id > 1
			FROM scores, areacodes GROUP BY id, ratio, amount, ac`)
		require.NoError(t, err)
		var types []value.Type
		for _, c := range st.Columns() {
			types = append(types, c.Type)
		}
		assert.Equal(t, []value.Type{
			value.TypeLong, value.TypeDouble, value.TypeLong, value.TypeDouble,
			value.TypeString, value.TypeLong, value.TypeDecimal, value.TypeBoolean,
		}, types)
	})

	t.Run("column names", func(t *testing.T) {
		st, err := s.Prepare("SELECT ac AS code, upper(state), COUNT(*) FROM areacodes GROUP BY ac, state")
		require.NoError(t, err)
		cols := st.Columns()
		assert.Equal(t, "code", cols[0].Name)
		assert.Equal(t, "UPPER(state)", cols[1].Name)
		assert.Equal(t, "COUNT(*)", cols[2].Name)
		assert.Nil(t, cols[1].Field)
	})

	t.Run("order by reuses projection", func(t *testing.T) {
		st, err := s.Prepare("SELECT ac AS code, state FROM areacodes ORDER BY state, code, cities")
		require.NoError(t, err)
		plan := st.Plan()
		require.Len(t, plan.OrderBy, 3)
		assert.Equal(t, 1, plan.OrderBy[0].Index)
		assert.Equal(t, 0, plan.OrderBy[1].Index)
		assert.Equal(t, 2, plan.OrderBy[2].Index)
		assert.Len(t, plan.Project, 3)
		assert.Equal(t, 2, plan.Visible())
	})

	t.Run("correlation", func(t *testing.T) {
		st, err := s.Prepare(`SELECT code FROM states s WHERE EXISTS (SELECT 1 FROM areacodes a WHERE a.state = s.code)
			AND EXISTS (SELECT 1 FROM scores)`)
		require.NoError(t, err)
		plan := st.Plan()
		assert.False(t, plan.Correlated)

		and := plan.Filter
		require.Equal(t, BoundBinary, and.Kind)
		correlated, plain := and.Args[0], and.Args[1]
		require.Equal(t, BoundExists, correlated.Kind)
		assert.True(t, correlated.Sub.Correlated)
		assert.False(t, plain.Sub.Correlated)
	})

	t.Run("implicit grouping", func(t *testing.T) {
		st, err := s.Prepare("SELECT COUNT(*) FROM areacodes ORDER BY 1")
		require.NoError(t, err)
		assert.True(t, st.Plan().Grouped)

		st, err = s.Prepare("SELECT ac FROM areacodes")
		require.NoError(t, err)
		assert.False(t, st.Plan().Grouped)
		assert.Equal(t, int64(-1), st.Plan().Limit)
	})
}

func TestBindEmptyColumnList(t *testing.T) {
	s := newTestSession(t, nil)

	// the parser never yields an empty select list, so build the tree directly
	stmt := &Select{From: []TableRef{{Name: "areacodes"}}}
	_, err := Bind(stmt, s.Catalog(), DefaultRegistry())
	require.Error(t, err)
	assert.Equal(t, pxerr.CodeEmptyColumnList, pxerr.CodeOf(err))
}
