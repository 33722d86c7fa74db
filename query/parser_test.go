package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

func TestParser_FullStatement(t *testing.T) {
	sql := `SELECT DISTINCT a AS x, t.* FROM s.t AS q LEFT OUTER JOIN u ON q.a = u.a
		WHERE a > -1 GROUP BY a HAVING COUNT(*) > 1 ORDER BY 1 DESC, x LIMIT 5 OFFSET 2;`
	stmt, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !stmt.Distinct {
		t.Error("Distinct = false, want true")
	}
	if len(stmt.Columns) != 2 {
		t.Fatalf("got %d columns, want 2", len(stmt.Columns))
	}
	if stmt.Columns[0].Alias != "x" {
		t.Errorf("alias = %q, want x", stmt.Columns[0].Alias)
	}
	if !stmt.Columns[1].Star || stmt.Columns[1].Table != "t" {
		t.Errorf("second item = %+v, want t.*", stmt.Columns[1])
	}

	if len(stmt.From) != 2 {
		t.Fatalf("got %d FROM entries, want 2", len(stmt.From))
	}
	if got := stmt.From[0]; got.Schema != "s" || got.Name != "t" || got.Alias != "q" {
		t.Errorf("first table = %+v", got)
	}
	if got := stmt.From[1]; got.Join != JoinLeft || got.On == nil {
		t.Errorf("second table = %+v, want LEFT JOIN with ON", got)
	}

	if stmt.Where.Kind != ExprBinary || stmt.Where.Op != OpGt {
		t.Fatalf("WHERE = %s", FormatExpr(stmt.Where))
	}
	if lit := stmt.Where.Args[1]; lit.Kind != ExprLiteral || lit.Value.AsInt() != -1 {
		t.Errorf("negative literal not folded: %s", FormatExpr(lit))
	}
	if len(stmt.GroupBy) != 1 || stmt.Having == nil {
		t.Errorf("GROUP BY/HAVING not parsed")
	}
	if len(stmt.OrderBy) != 2 || !stmt.OrderBy[0].Desc || stmt.OrderBy[1].Desc {
		t.Errorf("ORDER BY = %+v", stmt.OrderBy)
	}
	if stmt.Limit == nil || *stmt.Limit != 5 {
		t.Errorf("LIMIT = %v, want 5", stmt.Limit)
	}
	if stmt.Offset == nil || *stmt.Offset != 2 {
		t.Errorf("OFFSET = %v, want 2", stmt.Offset)
	}
}

func TestParser_Precedence(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"a OR b AND c", "a OR (b AND c)"},
		{"a XOR b OR c", "(a XOR b) OR c"},
		{"NOT a = b", "NOT (a = b)"},
		{"1 + 2 * 3", "1 + (2 * 3)"},
		{"(1 + 2) * 3", "(1 + 2) * 3"},
		{"a || 'x' = b", "(a || 'x') = b"},
		{"a NOT BETWEEN 1 AND 2 AND b", "(a NOT BETWEEN 1 AND 2) AND b"},
		{"a IS NOT NULL OR b IN (1, 2)", "(a IS NOT NULL) OR (b IN (1, 2))"},
		{"name LIKE 'a!%%' ESCAPE '!'", "name LIKE 'a!%%' ESCAPE '!'"},
		{"-a", "-a"},
		{"CAST(a AS varchar(10))", "CAST(a AS VARCHAR)"},
		{"current_date", "CURRENT_DATE"},
		{"count(DISTINCT state)", "COUNT(DISTINCT state)"},
		{"s.t.col", "s.t.col"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			stmt, err := Parse("SELECT " + tt.expr)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := FormatExpr(stmt.Columns[0].Expr); got != tt.want {
				t.Errorf("FormatExpr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParser_Literals(t *testing.T) {
	tests := []struct {
		literal string
		typ     value.Type
		text    string
	}{
		{"42", value.TypeLong, "42"},
		{"3.14", value.TypeDecimal, "3.14"},
		{"1e3", value.TypeDouble, "1000"},
		{"99999999999999999999", value.TypeDecimal, "99999999999999999999"},
		{"'abc'", value.TypeString, "abc"},
		{"TRUE", value.TypeBoolean, "true"},
		{"NULL", value.TypeNull, "NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			stmt, err := Parse("SELECT " + tt.literal)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			v := stmt.Columns[0].Expr.Value
			if v.Type() != tt.typ {
				t.Errorf("type = %v, want %v", v.Type(), tt.typ)
			}
			if v.String() != tt.text {
				t.Errorf("value = %q, want %q", v.String(), tt.text)
			}
		})
	}
}

func TestParser_Parameters(t *testing.T) {
	stmt, err := Parse("SELECT ? FROM t WHERE a = ? AND EXISTS (SELECT 1 FROM u WHERE b = ?)")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if stmt.Params != 3 {
		t.Errorf("Params = %d, want 3", stmt.Params)
	}
	if idx := stmt.Columns[0].Expr.Index; idx != 0 {
		t.Errorf("first placeholder index = %d, want 0", idx)
	}
	if idx := stmt.Where.Args[0].Args[1].Index; idx != 1 {
		t.Errorf("second placeholder index = %d, want 1", idx)
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  string
		pos   int // -1 when not checked
	}{
		{"missing select list", "SELECT FROM t", pxerr.CodeSyntax, 7},
		{"missing table", "SELECT a FROM", pxerr.CodeSyntax, 13},
		{"dangling where", "SELECT a FROM t WHERE", pxerr.CodeSyntax, 21},
		{"trailing tokens", "SELECT a b c FROM t", pxerr.CodeSyntax, 11},
		{"malformed number", "SELECT 1.2.3", pxerr.CodeSyntax, 7},
		{"embedded NUL", "SELECT a FROM t\x00 WHERE 1 = 2", pxerr.CodeSyntax, 15},
		{"negative limit", "SELECT a FROM t LIMIT -1", pxerr.CodeSyntax, 22},
		{"second statement", "SELECT a FROM t; SELECT b", pxerr.CodeSyntax, 17},
		{"missing ON", "SELECT a FROM t JOIN u", pxerr.CodeSyntax, 22},
		{"unknown cast type", "SELECT CAST(a AS widget)", pxerr.CodeSyntax, 17},
		{"insert", "INSERT INTO t VALUES (1)", pxerr.CodeUnsupported, -1},
		{"delete", "delete from t", pxerr.CodeUnsupported, -1},
		{"right join", "SELECT a FROM t RIGHT JOIN u ON t.a = u.a", pxerr.CodeUnsupported, -1},
		{"full join", "SELECT a FROM t FULL JOIN u ON t.a = u.a", pxerr.CodeUnsupported, -1},
		{"scalar subquery", "SELECT (SELECT 1)", pxerr.CodeUnsupported, -1},
		{"in subquery", "SELECT a FROM t WHERE a IN (SELECT b FROM u)", pxerr.CodeUnsupported, -1},
		{"derived table", "SELECT a FROM (SELECT 1)", pxerr.CodeUnsupported, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if code := pxerr.CodeOf(err); code != tt.code {
				t.Errorf("code = %s, want %s (%v)", code, tt.code, err)
			}
			if tt.pos < 0 {
				return
			}
			var pe *pxerr.Error
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not *pxerr.Error", err)
			}
			if pe.Pos != tt.pos {
				t.Errorf("pos = %d, want %d (%v)", pe.Pos, tt.pos, err)
			}
		})
	}
}

func TestParser_Limits(t *testing.T) {
	t.Run("query too long", func(t *testing.T) {
		_, err := Parse("SELECT '" + strings.Repeat("x", MaxQueryLength) + "'")
		if !errors.Is(err, ErrQueryTooLong) {
			t.Errorf("error = %v, want ErrQueryTooLong", err)
		}
	})

	t.Run("expression too deep", func(t *testing.T) {
		sql := "SELECT " + strings.Repeat("(", MaxExpressionDepth+1) + "1" + strings.Repeat(")", MaxExpressionDepth+1)
		_, err := Parse(sql)
		if !errors.Is(err, ErrExpressionTooDeep) {
			t.Errorf("error = %v, want ErrExpressionTooDeep", err)
		}
	})

	t.Run("identifier too long", func(t *testing.T) {
		_, err := Parse("SELECT " + strings.Repeat("a", MaxIdentifierLength+1))
		if !errors.Is(err, ErrIdentifierTooLong) {
			t.Errorf("error = %v, want ErrIdentifierTooLong", err)
		}
	})
}
