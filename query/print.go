package query

import (
	"strings"

	"github.com/vegasq/pxcat/value"
)

// FormatExpr renders an expression as SQL text. It is used for default
// column labels and error messages.
func FormatExpr(e *Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e *Expr) {
	switch e.Kind {
	case ExprLiteral:
		writeLiteral(sb, e.Value)
	case ExprColumn:
		if e.Table != "" {
			sb.WriteString(e.Table)
			sb.WriteByte('.')
		}
		sb.WriteString(e.Name)
	case ExprParam:
		sb.WriteByte('?')
	case ExprFunc:
		sb.WriteString(strings.ToUpper(e.Name))
		if niladic[strings.ToUpper(e.Name)] && len(e.Args) == 0 && !e.Star {
			return
		}
		sb.WriteByte('(')
		if e.Distinct {
			sb.WriteString("DISTINCT ")
		}
		if e.Star {
			sb.WriteByte('*')
		}
		writeList(sb, e.Args)
		sb.WriteByte(')')
	case ExprBinary:
		writeOperand(sb, e.Args[0])
		sb.WriteByte(' ')
		sb.WriteString(e.Op.String())
		sb.WriteByte(' ')
		writeOperand(sb, e.Args[1])
	case ExprUnary:
		sb.WriteString(e.Op.String())
		if e.Op == OpNot {
			sb.WriteByte(' ')
		}
		writeOperand(sb, e.Args[0])
	case ExprBetween:
		writeOperand(sb, e.Args[0])
		writeNot(sb, e.Not)
		sb.WriteString(" BETWEEN ")
		writeOperand(sb, e.Args[1])
		sb.WriteString(" AND ")
		writeOperand(sb, e.Args[2])
	case ExprIsNull:
		writeOperand(sb, e.Args[0])
		if e.Not {
			sb.WriteString(" IS NOT NULL")
		} else {
			sb.WriteString(" IS NULL")
		}
	case ExprIn:
		writeOperand(sb, e.Args[0])
		writeNot(sb, e.Not)
		sb.WriteString(" IN (")
		writeList(sb, e.Args[1:])
		sb.WriteByte(')')
	case ExprLike:
		writeOperand(sb, e.Args[0])
		writeNot(sb, e.Not)
		sb.WriteString(" LIKE ")
		writeOperand(sb, e.Args[1])
		if len(e.Args) > 2 {
			sb.WriteString(" ESCAPE ")
			writeOperand(sb, e.Args[2])
		}
	case ExprExists:
		if e.Not {
			sb.WriteString("NOT ")
		}
		sb.WriteString("EXISTS (SELECT ...)")
	case ExprCast:
		sb.WriteString("CAST(")
		writeExpr(sb, e.Args[0])
		sb.WriteString(" AS ")
		sb.WriteString(e.CastType.String())
		sb.WriteByte(')')
	}
}

func writeNot(sb *strings.Builder, not bool) {
	if not {
		sb.WriteString(" NOT")
	}
}

func writeList(sb *strings.Builder, list []*Expr) {
	for i, arg := range list {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, arg)
	}
}

// writeOperand parenthesizes compound operands
func writeOperand(sb *strings.Builder, e *Expr) {
	switch e.Kind {
	case ExprBinary, ExprBetween, ExprIn, ExprLike, ExprIsNull:
		sb.WriteByte('(')
		writeExpr(sb, e)
		sb.WriteByte(')')
	default:
		writeExpr(sb, e)
	}
}

func writeLiteral(sb *strings.Builder, v value.Value) {
	switch v.Type() {
	case value.TypeString:
		sb.WriteByte('\'')
		sb.WriteString(strings.ReplaceAll(v.AsString(), "'", "''"))
		sb.WriteByte('\'')
	case value.TypeBoolean:
		sb.WriteString(strings.ToUpper(v.String()))
	default:
		sb.WriteString(v.String())
	}
}
