package formula

import (
	"fmt"
	"strconv"
	"strings"
)

var binaryOpText = map[string]string{
	OpAnd:     "AND",
	OpOr:      "OR",
	OpEq:      "=",
	OpLike:    "LIKE",
	OpNotLike: "NOT LIKE",
	OpIn:      "IN",
	OpNotIn:   "NOT IN",
}

var postfixOpText = map[string]string{
	OpIsNull:     "IS NULL",
	OpIsNotNull:  "IS NOT NULL",
	OpIsTrue:     "IS TRUE",
	OpIsNotTrue:  "IS NOT TRUE",
	OpIsFalse:    "IS FALSE",
	OpIsNotFalse: "IS NOT FALSE",
}

// Render prints a node in canonical formula syntax.
// Keywords and function names are upper case, strings are double quoted
// and window calls always name their grouping.
func Render(n Node) string {
	var sb strings.Builder
	render(&sb, n)
	return sb.String()
}

func precedence(n Node) int {
	switch v := n.(type) {
	case *Binary:
		if p, ok := binaryPrecedence[v.Op]; ok {
			return p
		}
	case *Unary:
		switch v.Op {
		case OpNot:
			return precNot
		case OpNeg:
			return precUnary
		default:
			return precComparison
		}
	case *Ternary:
		return precComparison
	case *LiteralInteger:
		if v.Value < 0 {
			return precUnary
		}
	case *LiteralFloat:
		if v.Value < 0 {
			return precUnary
		}
	}
	return precPrimary
}

func renderChild(sb *strings.Builder, child Node, minPrec int) {
	if precedence(child) < minPrec {
		sb.WriteByte('(')
		render(sb, child)
		sb.WriteByte(')')
		return
	}
	render(sb, child)
}

func render(sb *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Field:
		sb.WriteString(QuoteField(v.Name))
	case *Null:
		sb.WriteString("NULL")
	case *LiteralInteger:
		sb.WriteString(strconv.FormatInt(v.Value, 10))
	case *LiteralFloat:
		sb.WriteString(FormatFloat(v.Value))
	case *LiteralString:
		sb.WriteString(QuoteString(v.Value))
	case *LiteralBoolean:
		if v.Value {
			sb.WriteString("TRUE")
		} else {
			sb.WriteString("FALSE")
		}
	case *LiteralDate:
		sb.WriteString("#" + v.Value.Format("2006-01-02") + "#")
	case *LiteralDatetime:
		sb.WriteString("#" + v.Value.Format("2006-01-02 15:04:05") + "#")
	case *LiteralGeopoint:
		sb.WriteString(fmt.Sprintf("GEOPOINT(%s, %s)", FormatFloat(v.Lat), FormatFloat(v.Lon)))
	case *LiteralGeopolygon:
		points := make([]string, len(v.Points))
		for i, pt := range v.Points {
			points[i] = fmt.Sprintf("[%s,%s]", FormatFloat(pt[0]), FormatFloat(pt[1]))
		}
		sb.WriteString(fmt.Sprintf("GEOPOLYGON(%s)", QuoteString("["+strings.Join(points, ",")+"]")))
	case *LiteralUUID:
		sb.WriteString("UUID(" + QuoteString(v.Value.String()) + ")")
	case *FuncCall:
		renderCall(sb, v.Name, v.Args, func(parts []string) []string {
			if len(v.Ignore.Dims) > 0 {
				parts = append(parts, Render(v.Ignore))
			}
			if v.Lod.Kind != LodDefault && v.Lod.Kind != LodInherited {
				parts = append(parts, Render(v.Lod))
			}
			if !v.BFB.Empty() {
				parts = append(parts, Render(v.BFB))
			}
			return parts
		})
	case *WindowFuncCall:
		renderCall(sb, v.Name, v.Args, func(parts []string) []string {
			parts = append(parts, Render(v.Grouping))
			if len(v.Ordering.Items) > 0 {
				parts = append(parts, Render(v.Ordering))
			}
			if !v.BFB.Empty() {
				parts = append(parts, Render(v.BFB))
			}
			return parts
		})
	case *Binary:
		p := precedence(v)
		leftPrec, rightPrec := p, p+1
		if v.Op == OpPow {
			leftPrec, rightPrec = p+1, precUnary
		}
		renderChild(sb, v.Left, leftPrec)
		text, ok := binaryOpText[v.Op]
		if !ok {
			text = v.Op
		}
		sb.WriteString(" " + text + " ")
		renderChild(sb, v.Right, rightPrec)
	case *Unary:
		switch v.Op {
		case OpNot:
			sb.WriteString("NOT ")
			renderChild(sb, v.Operand, precNot)
		case OpNeg:
			sb.WriteByte('-')
			if precedence(v.Operand) <= precUnary {
				sb.WriteByte('(')
				render(sb, v.Operand)
				sb.WriteByte(')')
			} else {
				render(sb, v.Operand)
			}
		default:
			renderChild(sb, v.Operand, precComparison)
			sb.WriteString(" " + postfixOpText[v.Op])
		}
	case *Ternary:
		renderChild(sb, v.First, precComparison)
		if v.Op == OpNotBetween {
			sb.WriteString(" NOT BETWEEN ")
		} else {
			sb.WriteString(" BETWEEN ")
		}
		renderChild(sb, v.Second, precAdditive)
		sb.WriteString(" AND ")
		renderChild(sb, v.Third, precAdditive)
	case *IfBlock:
		for i := range v.Conditions {
			if i == 0 {
				sb.WriteString("IF ")
			} else {
				sb.WriteString(" ELSEIF ")
			}
			render(sb, v.Conditions[i])
			sb.WriteString(" THEN ")
			render(sb, v.Results[i])
		}
		if v.Else != nil {
			sb.WriteString(" ELSE ")
			render(sb, v.Else)
		}
		sb.WriteString(" END")
	case *CaseBlock:
		sb.WriteString("CASE ")
		render(sb, v.Subject)
		for i := range v.Whens {
			sb.WriteString(" WHEN ")
			render(sb, v.Whens[i])
			sb.WriteString(" THEN ")
			render(sb, v.Thens[i])
		}
		if v.Else != nil {
			sb.WriteString(" ELSE ")
			render(sb, v.Else)
		}
		sb.WriteString(" END")
	case *Parenthesized:
		sb.WriteByte('(')
		render(sb, v.Expr)
		sb.WriteByte(')')
	case *ExpressionList:
		sb.WriteByte('(')
		renderList(sb, v.Items)
		sb.WriteByte(')')
	case *QueryFork:
		sb.WriteString("FORK(")
		render(sb, v.Result)
		if len(v.Dims) > 0 {
			sb.WriteString(" BY ")
			renderList(sb, v.Dims)
		}
		if !v.BFB.Empty() {
			sb.WriteString(" " + Render(v.BFB))
		}
		sb.WriteByte(')')
	case *LodSpecifier:
		sb.WriteString(v.Kind.String())
		if len(v.Dims) > 0 {
			sb.WriteByte(' ')
			renderList(sb, v.Dims)
		}
	case *BeforeFilterBy:
		sb.WriteString("BEFORE FILTER BY ")
		for i, name := range v.FieldNames {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(QuoteField(name))
		}
	case *IgnoreDimensions:
		sb.WriteString("IGNORE DIMENSIONS ")
		renderList(sb, v.Dims)
	case *WindowGrouping:
		sb.WriteString(v.Kind.String())
		if v.Kind != GroupingTotal && len(v.Dims) > 0 {
			sb.WriteByte(' ')
			renderList(sb, v.Dims)
		}
	case *Ordering:
		sb.WriteString("ORDER BY ")
		for i, item := range v.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			render(sb, item)
		}
	case *OrderItem:
		render(sb, v.Expr)
		if v.Desc {
			sb.WriteString(" DESC")
		}
	}
}

func renderCall(sb *strings.Builder, name string, args []Node, clauses func([]string) []string) {
	sb.WriteString(strings.ToUpper(name))
	sb.WriteByte('(')
	var parts []string
	if len(args) > 0 {
		var argSb strings.Builder
		renderList(&argSb, args)
		parts = append(parts, argSb.String())
	}
	parts = clauses(parts)
	sb.WriteString(strings.Join(parts, " "))
	sb.WriteByte(')')
}

func renderList(sb *strings.Builder, items []Node) {
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		render(sb, item)
	}
}

// QuoteField renders a field reference with escaping
func QuoteField(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `]`, `\]`).Replace(name)
	return "[" + escaped + "]"
}

// QuoteString renders a double quoted string literal
func QuoteString(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`).Replace(s)
	return `"` + escaped + `"`
}

// FormatFloat formats a float so that it is always lexed as a float
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}
