package functions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/rulego/dlquery/exc"
)

// Fn renders NAME(arg, ...).
func Fn(name string) TranslateFunc {
	return func(c *Call) (string, error) {
		return name + "(" + strings.Join(c.Args, ", ") + ")", nil
	}
}

// Tmpl renders a template with {0}, {1}, ... placeholders.
func Tmpl(template string) TranslateFunc {
	return func(c *Call) (string, error) {
		return expand(template, c.Args)
	}
}

func expand(template string, args []string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(template); i++ {
		ch := template[i]
		if ch != '{' {
			sb.WriteByte(ch)
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			sb.WriteString(template[i:])
			break
		}
		idx, err := strconv.Atoi(template[i+1 : i+end])
		if err != nil {
			sb.WriteString(template[i : i+end+1])
		} else if idx >= len(args) {
			return "", exc.ErrTranslation.New(fmt.Sprintf("template %q needs argument %d, got %d", template, idx, len(args)))
		} else {
			sb.WriteString(args[idx])
		}
		i += end
	}
	return sb.String(), nil
}

// BinOp renders (a op b).
func BinOp(op string) TranslateFunc {
	return Tmpl("({0} " + op + " {1})")
}

// Postfix renders (a op).
func Postfix(op string) TranslateFunc {
	return Tmpl("({0} " + op + ")")
}

// Chain folds a variadic call left to right: (a op b op c).
func Chain(op string) TranslateFunc {
	return func(c *Call) (string, error) {
		return "(" + strings.Join(c.Args, " "+op+" ") + ")", nil
	}
}

// ByArity picks a translation by the number of arguments.
func ByArity(byCount map[int]TranslateFunc) TranslateFunc {
	return func(c *Call) (string, error) {
		fn, ok := byCount[len(c.Args)]
		if !ok {
			return "", exc.ErrTranslation.New(fmt.Sprintf("%s does not accept %d arguments", strings.ToUpper(c.Name), len(c.Args)))
		}
		return fn(c)
	}
}

// SQLIf renders CASE WHEN for IF blocks: cond, result, ..., [else].
func SQLIf(c *Call) (string, error) {
	var sb strings.Builder
	sb.WriteString("CASE")
	n := len(c.Args)
	for i := 0; i+1 < n; i += 2 {
		sb.WriteString(" WHEN " + c.Args[i] + " THEN " + c.Args[i+1])
	}
	if n%2 == 1 {
		sb.WriteString(" ELSE " + c.Args[n-1])
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

// SQLCase renders CASE subject WHEN ... : subject, when, then, ..., [else].
func SQLCase(c *Call) (string, error) {
	if len(c.Args) < 3 {
		return "", exc.ErrTranslation.New("CASE needs at least one WHEN branch")
	}
	var sb strings.Builder
	sb.WriteString("CASE " + c.Args[0])
	rest := c.Args[1:]
	for i := 0; i+1 < len(rest); i += 2 {
		sb.WriteString(" WHEN " + rest[i] + " THEN " + rest[i+1])
	}
	if len(rest)%2 == 1 {
		sb.WriteString(" ELSE " + rest[len(rest)-1])
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

// 窗口帧
const (
	FrameRunning = "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"
	FrameAll     = "ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING"
)

// OverClause renders OVER (PARTITION BY ... ORDER BY ... frame).
func OverClause(c *Call, frame string) string {
	var parts []string
	if len(c.PartitionBy) > 0 {
		parts = append(parts, "PARTITION BY "+strings.Join(c.PartitionBy, ", "))
	}
	if len(c.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(c.OrderBy, ", "))
	}
	if frame != "" {
		parts = append(parts, frame)
	}
	return "OVER (" + strings.Join(parts, " ") + ")"
}

// Over appends an OVER clause to inner.
func Over(inner TranslateFunc, frame string) TranslateFunc {
	return func(c *Call) (string, error) {
		s, err := inner(c)
		if err != nil {
			return "", err
		}
		return s + " " + OverClause(c, frame), nil
	}
}

// MovingFrame builds the frame of M* functions from the literal row count
// in argument 1. Positive counts look back, negative ones look ahead.
func MovingFrame(c *Call) (string, error) {
	v, ok := c.Const(1)
	if !ok {
		return "", exc.ErrTranslation.New(strings.ToUpper(c.Name) + " needs a constant row count")
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return "", exc.ErrTranslation.New(fmt.Sprintf("invalid row count %v for %s", v, strings.ToUpper(c.Name)))
	}
	if n >= 0 {
		return fmt.Sprintf("ROWS BETWEEN %d PRECEDING AND CURRENT ROW", n), nil
	}
	return fmt.Sprintf("ROWS BETWEEN CURRENT ROW AND %d FOLLOWING", -n), nil
}

// Moving renders AGG(x) OVER (... moving frame).
func Moving(agg string) TranslateFunc {
	return func(c *Call) (string, error) {
		frame, err := MovingFrame(c)
		if err != nil {
			return "", err
		}
		return agg + "(" + c.Args[0] + ") " + OverClause(c, frame), nil
	}
}

// Running renders AGG(x) OVER (... running frame).
func Running(agg string) TranslateFunc {
	return func(c *Call) (string, error) {
		return agg + "(" + c.Args[0] + ") " + OverClause(c, FrameRunning), nil
	}
}

// RankDirection reads the optional "asc"/"desc" literal of rank functions.
func RankDirection(c *Call) string {
	if v, ok := c.Const(1); ok && strings.EqualFold(cast.ToString(v), "asc") {
		return "ASC"
	}
	return "DESC"
}

// Rank renders NAME() ranked by the first argument.
func Rank(name string) TranslateFunc {
	return func(c *Call) (string, error) {
		ranked := *c
		ranked.OrderBy = []string{c.Args[0] + " " + RankDirection(c)}
		return name + "() " + OverClause(&ranked, ""), nil
	}
}

// LagOffset returns the literal offset of LAG, 1 by default.
func LagOffset(c *Call) int {
	if v, ok := c.Const(1); ok {
		return cast.ToInt(v)
	}
	return 1
}

func itoa(i int) string { return strconv.Itoa(i) }
