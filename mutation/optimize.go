package mutation

import (
	"math"
	"strings"
	"time"

	"github.com/rulego/dlquery/formula"
)

// 常量折叠

// OptimizeConstComparison folds comparisons of two literals.
type OptimizeConstComparison struct{}

func (OptimizeConstComparison) Name() string { return "optimize_const_comparison" }

func (OptimizeConstComparison) Mutate(node formula.Node) (formula.Node, error) {
	b, ok := node.(*formula.Binary)
	if !ok || !formula.IsComparisonOp(b.Op) {
		return node, nil
	}
	cmp, ok := compareLiterals(unwrap(b.Left), unwrap(b.Right))
	if !ok {
		return node, nil
	}
	var result bool
	switch b.Op {
	case formula.OpEq:
		result = cmp == 0
	case formula.OpNe:
		result = cmp != 0
	case formula.OpLt:
		result = cmp < 0
	case formula.OpLte:
		result = cmp <= 0
	case formula.OpGt:
		result = cmp > 0
	case formula.OpGte:
		result = cmp >= 0
	}
	return formula.NewBoolean(result), nil
}

// OptimizeConstMath folds arithmetic over numeric literals and string concatenation.
type OptimizeConstMath struct{}

func (OptimizeConstMath) Name() string { return "optimize_const_math" }

func (OptimizeConstMath) Mutate(node formula.Node) (formula.Node, error) {
	switch n := node.(type) {
	case *formula.Unary:
		if n.Op != formula.OpNeg {
			return node, nil
		}
		switch v := unwrap(n.Operand).(type) {
		case *formula.LiteralInteger:
			return formula.NewInteger(-v.Value), nil
		case *formula.LiteralFloat:
			return formula.NewFloat(-v.Value), nil
		}
	case *formula.Binary:
		left, right := unwrap(n.Left), unwrap(n.Right)
		if ls, ok := left.(*formula.LiteralString); ok && n.Op == formula.OpAdd {
			if rs, ok := right.(*formula.LiteralString); ok {
				return formula.NewString(ls.Value + rs.Value), nil
			}
			return node, nil
		}
		li, lInt := left.(*formula.LiteralInteger)
		ri, rInt := right.(*formula.LiteralInteger)
		if lInt && rInt {
			switch n.Op {
			case formula.OpAdd:
				return formula.NewInteger(li.Value + ri.Value), nil
			case formula.OpSub:
				return formula.NewInteger(li.Value - ri.Value), nil
			case formula.OpMul:
				return formula.NewInteger(li.Value * ri.Value), nil
			}
		}
		lf, lok := numericLiteral(left)
		rf, rok := numericLiteral(right)
		if !lok || !rok {
			return node, nil
		}
		switch n.Op {
		case formula.OpAdd:
			return formula.NewFloat(lf + rf), nil
		case formula.OpSub:
			return formula.NewFloat(lf - rf), nil
		case formula.OpMul:
			return formula.NewFloat(lf * rf), nil
		case formula.OpDiv:
			if rf != 0 {
				return formula.NewFloat(lf / rf), nil
			}
		case formula.OpPow:
			return formula.NewFloat(math.Pow(lf, rf)), nil
		}
	}
	return node, nil
}

// OptimizeConstAndOr simplifies AND/OR/NOT with a boolean literal operand.
type OptimizeConstAndOr struct{}

func (OptimizeConstAndOr) Name() string { return "optimize_const_and_or" }

func (OptimizeConstAndOr) Mutate(node formula.Node) (formula.Node, error) {
	switch n := node.(type) {
	case *formula.Unary:
		if n.Op == formula.OpNot {
			if v, ok := unwrap(n.Operand).(*formula.LiteralBoolean); ok {
				return formula.NewBoolean(!v.Value), nil
			}
		}
	case *formula.Binary:
		if n.Op != formula.OpAnd && n.Op != formula.OpOr {
			return node, nil
		}
		for _, pair := range [][2]formula.Node{{n.Left, n.Right}, {n.Right, n.Left}} {
			lit, ok := unwrap(pair[0]).(*formula.LiteralBoolean)
			if !ok {
				continue
			}
			// TRUE AND x = x, FALSE AND x = FALSE, TRUE OR x = TRUE, FALSE OR x = x
			if (n.Op == formula.OpAnd) == lit.Value {
				return pair[1], nil
			}
			return formula.NewBoolean(lit.Value), nil
		}
	}
	return node, nil
}

// OptimizeBinaryOperatorComparison turns NOT (a < b) into a >= b.
type OptimizeBinaryOperatorComparison struct{}

func (OptimizeBinaryOperatorComparison) Name() string { return "optimize_binary_operator_comparison" }

func (OptimizeBinaryOperatorComparison) Mutate(node formula.Node) (formula.Node, error) {
	u, ok := node.(*formula.Unary)
	if !ok || u.Op != formula.OpNot {
		return node, nil
	}
	b, ok := unwrap(u.Operand).(*formula.Binary)
	if !ok {
		return node, nil
	}
	inverted, ok := formula.InvertComparison(b.Op)
	if !ok {
		return node, nil
	}
	return formula.NewBinary(inverted, b.Left, b.Right), nil
}

// Optimizations returns the optimizer passes in application order.
func Optimizations() []Mutation {
	return []Mutation{
		OptimizeConstMath{},
		OptimizeConstComparison{},
		OptimizeBinaryOperatorComparison{},
		OptimizeConstAndOr{},
	}
}

func unwrap(n formula.Node) formula.Node {
	for {
		p, ok := n.(*formula.Parenthesized)
		if !ok {
			return n
		}
		n = p.Expr
	}
}

func numericLiteral(n formula.Node) (float64, bool) {
	switch v := n.(type) {
	case *formula.LiteralInteger:
		return float64(v.Value), true
	case *formula.LiteralFloat:
		return v.Value, true
	}
	return 0, false
}

func compareLiterals(a, b formula.Node) (int, bool) {
	if af, ok := numericLiteral(a); ok {
		bf, ok := numericLiteral(b)
		if !ok {
			return 0, false
		}
		return compareFloat(af, bf), true
	}
	switch av := a.(type) {
	case *formula.LiteralString:
		bv, ok := b.(*formula.LiteralString)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *formula.LiteralBoolean:
		bv, ok := b.(*formula.LiteralBoolean)
		if !ok {
			return 0, false
		}
		return compareFloat(boolNum(av.Value), boolNum(bv.Value)), true
	case *formula.LiteralDate:
		if t, ok := temporal(b); ok {
			return compareTime(av.Value, t), true
		}
	case *formula.LiteralDatetime:
		if t, ok := temporal(b); ok {
			return compareTime(av.Value, t), true
		}
	}
	return 0, false
}

func temporal(n formula.Node) (time.Time, bool) {
	switch v := n.(type) {
	case *formula.LiteralDate:
		return v.Value, true
	case *formula.LiteralDatetime:
		return v.Value, true
	}
	return time.Time{}, false
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
