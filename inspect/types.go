package inspect

import (
	"fmt"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
)

// InferDataType resolves the data type of node bottom-up.
func InferDataType(node formula.Node, env *Environment) (formula.DataType, error) {
	types := make(map[formula.Node]formula.DataType)
	_, err := formula.Transform(node, func(n formula.Node) (formula.Node, error) {
		t, err := inferNode(n, types, env)
		if err != nil {
			return nil, err
		}
		types[n] = t
		return n, nil
	})
	if err != nil {
		return formula.TypeUnsupported, err
	}
	return types[node], nil
}

func childTypes(nodes []formula.Node, types map[formula.Node]formula.DataType) []formula.DataType {
	out := make([]formula.DataType, len(nodes))
	for i, n := range nodes {
		out[i] = types[n]
	}
	return out
}

func allConst(ts []formula.DataType) bool {
	for _, t := range ts {
		if !t.IsConst() && t != formula.TypeNull {
			return false
		}
	}
	return true
}

func inferNode(n formula.Node, types map[formula.Node]formula.DataType, env *Environment) (formula.DataType, error) {
	switch v := n.(type) {
	case *formula.Field:
		if env != nil {
			if t, ok := env.FieldTypes[v.Name]; ok {
				return t, nil
			}
		}
		return formula.TypeUnsupported, exc.ErrUnknownField.New(v.Name)
	case *formula.Null:
		return formula.TypeNull, nil
	case *formula.LiteralInteger:
		return formula.TypeConstInteger, nil
	case *formula.LiteralFloat:
		return formula.TypeConstFloat, nil
	case *formula.LiteralString:
		return formula.TypeConstString, nil
	case *formula.LiteralBoolean:
		return formula.TypeConstBoolean, nil
	case *formula.LiteralDate:
		return formula.TypeConstDate, nil
	case *formula.LiteralDatetime:
		return formula.TypeConstDatetime, nil
	case *formula.LiteralGeopoint:
		return formula.TypeConstGeopoint, nil
	case *formula.LiteralGeopolygon:
		return formula.TypeConstGeopolygon, nil
	case *formula.LiteralUUID:
		return formula.TypeConstUUID, nil
	case *formula.Parenthesized:
		return types[v.Expr], nil
	case *formula.QueryFork:
		return types[v.Result].NonConst(), nil
	case *formula.ExpressionList:
		return commonOf("list", childTypes(v.Items, types))
	case *formula.Binary:
		return inferBinary(v.Op, types[v.Left], types[v.Right])
	case *formula.Unary:
		operand := types[v.Operand]
		if v.Op == formula.OpNeg {
			if !operand.IsNumeric() && operand != formula.TypeNull {
				return formula.TypeUnsupported, exc.ErrTypeMismatch.New("-", operand.String())
			}
			return operand, nil
		}
		return constIf(formula.TypeBoolean, operand.IsConst()), nil
	case *formula.Ternary:
		ts := []formula.DataType{types[v.First], types[v.Second], types[v.Third]}
		if _, err := commonOf(v.Op, ts); err != nil {
			return formula.TypeUnsupported, err
		}
		return constIf(formula.TypeBoolean, allConst(ts)), nil
	case *formula.IfBlock:
		results := childTypes(v.Results, types)
		if v.Else != nil {
			results = append(results, types[v.Else])
		}
		return commonOf("if", results)
	case *formula.CaseBlock:
		results := childTypes(v.Thens, types)
		if v.Else != nil {
			results = append(results, types[v.Else])
		}
		return commonOf("case", results)
	case *formula.FuncCall:
		return inferCall(v.Name, childTypes(v.Args, types), env)
	case *formula.WindowFuncCall:
		t, err := inferCall(v.Name, childTypes(v.Args, types), env)
		return t.NonConst(), err
	case *formula.LodSpecifier, *formula.BeforeFilterBy, *formula.IgnoreDimensions,
		*formula.WindowGrouping, *formula.Ordering, *formula.OrderItem:
		return formula.TypeUnsupported, nil
	}
	return formula.TypeUnsupported, fmt.Errorf("unsupported node %T", n)
}

func inferCall(name string, args []formula.DataType, env *Environment) (formula.DataType, error) {
	catalog := env.catalog()
	t, err := catalog.ReturnType(name, args)
	if err != nil {
		return formula.TypeUnsupported, err
	}
	class, _ := catalog.Classify(name)
	if class == ClassScalar && len(args) > 0 && allConst(args) {
		return t.Const(), nil
	}
	return t.NonConst(), nil
}

func constIf(t formula.DataType, c bool) formula.DataType {
	if c {
		return t.Const()
	}
	return t
}

func commonOf(what string, ts []formula.DataType) (formula.DataType, error) {
	if len(ts) == 0 {
		return formula.TypeNull, nil
	}
	result := ts[0]
	for _, t := range ts[1:] {
		common, ok := formula.CommonType(result, t)
		if !ok {
			return formula.TypeUnsupported, exc.ErrTypeMismatch.New(what, fmt.Sprintf("%s and %s", result, t))
		}
		result = common
	}
	return result, nil
}

func inferBinary(op string, l, r formula.DataType) (formula.DataType, error) {
	isConst := (l.IsConst() || l == formula.TypeNull) && (r.IsConst() || r == formula.TypeNull)
	lb, rb := l.NonConst(), r.NonConst()
	mismatch := func() (formula.DataType, error) {
		return formula.TypeUnsupported, exc.ErrTypeMismatch.New(op, fmt.Sprintf("%s and %s", l, r))
	}
	nullOr := func(t formula.DataType, want func(formula.DataType) bool) bool {
		return t == formula.TypeNull || want(t)
	}
	isNum := func(t formula.DataType) bool { return t.IsNumeric() }
	switch op {
	case formula.OpAnd, formula.OpOr:
		return constIf(formula.TypeBoolean, isConst), nil
	case formula.OpEq, formula.OpNe, formula.OpLt, formula.OpLte, formula.OpGt, formula.OpGte,
		formula.OpLike, formula.OpNotLike, formula.OpIn, formula.OpNotIn:
		if _, ok := formula.CommonType(l, r); !ok && !(lb.IsNumeric() && rb.IsNumeric()) {
			return mismatch()
		}
		return constIf(formula.TypeBoolean, isConst), nil
	case formula.OpAdd:
		switch {
		case nullOr(l, isNum) && nullOr(r, isNum):
			return constIf(numericResult(lb, rb), isConst), nil
		case lb == formula.TypeString && rb == formula.TypeString:
			return constIf(formula.TypeString, isConst), nil
		case lb.IsTemporal() && nullOr(r, isNum):
			return constIf(lb, isConst), nil
		case rb.IsTemporal() && nullOr(l, isNum):
			return constIf(rb, isConst), nil
		}
		return mismatch()
	case formula.OpSub:
		switch {
		case nullOr(l, isNum) && nullOr(r, isNum):
			return constIf(numericResult(lb, rb), isConst), nil
		case lb.IsTemporal() && rb.IsTemporal():
			return constIf(formula.TypeFloat, isConst), nil
		case lb.IsTemporal() && nullOr(r, isNum):
			return constIf(lb, isConst), nil
		}
		return mismatch()
	case formula.OpMul, formula.OpMod:
		if nullOr(l, isNum) && nullOr(r, isNum) {
			return constIf(numericResult(lb, rb), isConst), nil
		}
		return mismatch()
	case formula.OpDiv, formula.OpPow:
		if nullOr(l, isNum) && nullOr(r, isNum) {
			return constIf(formula.TypeFloat, isConst), nil
		}
		return mismatch()
	}
	return formula.TypeUnsupported, exc.ErrUnknownFunction.New(op)
}

func numericResult(l, r formula.DataType) formula.DataType {
	if (l == formula.TypeInteger || l == formula.TypeNull) && (r == formula.TypeInteger || r == formula.TypeNull) {
		return formula.TypeInteger
	}
	return formula.TypeFloat
}
