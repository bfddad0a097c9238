// Package compeng registers the in-memory computation engine dialect.
//
// Scalar expressions are rendered as expr-lang programs where every
// operator and function is a call into the runtime function table, so
// NULL propagation follows SQL rules. Aggregations and window functions
// are not rendered: their variants return the name of the in-memory
// aggregator that evaluates them.
package compeng

import (
	"strconv"

	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
)

// FunctionName is the runtime name of a scalar function or operator.
func FunctionName(name string) string {
	return "_" + name
}

// 运算符到运行时函数名
var operatorNames = map[string]string{
	formula.OpAdd:        "add",
	formula.OpSub:        "sub",
	formula.OpMul:        "mul",
	formula.OpDiv:        "div",
	formula.OpMod:        "mod",
	formula.OpPow:        "pow",
	formula.OpNeg:        "neg",
	formula.OpAnd:        "and",
	formula.OpOr:         "or",
	formula.OpNot:        "not",
	formula.OpEq:         "eq",
	formula.OpNe:         "ne",
	formula.OpLt:         "lt",
	formula.OpLte:        "lte",
	formula.OpGt:         "gt",
	formula.OpGte:        "gte",
	formula.OpLike:       "like",
	formula.OpNotLike:    "notlike",
	formula.OpIn:         "in",
	formula.OpNotIn:      "notin",
	formula.OpBetween:    "between",
	formula.OpNotBetween: "notbetween",
	formula.OpIsNull:     "isnull",
	formula.OpIsNotNull:  "isnotnull",
	formula.OpIsTrue:     "istrue",
	formula.OpIsNotTrue:  "isnottrue",
	formula.OpIsFalse:    "isfalse",
	formula.OpIsNotFalse: "isnotfalse",

	functions.OpNullSafeEq: "dneq",
	functions.OpIf:         "if",
	functions.OpCase:       "case",
}

// OperatorFunction returns the runtime name of an operator.
func OperatorFunction(op string) (string, bool) {
	name, ok := operatorNames[op]
	if !ok {
		return "", false
	}
	return FunctionName(name), true
}

// RuntimeOperators lists the runtime names of all operators.
func RuntimeOperators() map[string]string {
	out := make(map[string]string, len(operatorNames))
	for op, name := range operatorNames {
		out[op] = FunctionName(name)
	}
	return out
}

// Style of compeng literals, expr-lang syntax.
func Style() *functions.Style {
	return &functions.Style{
		Name:           "compeng",
		TrueLiteral:    "true",
		FalseLiteral:   "false",
		NullLiteral:    "nil",
		DateFormat:     `_date("%s")`,
		DatetimeFormat: `_datetime("%s")`,
		ListOpen:       "[",
		ListClose:      "]",
		StringLiteral:  strconv.Quote,
	}
}

func aggregatorName(c *functions.Call) (string, error) {
	return c.Name, nil
}

// Definitions maps every generic definition onto the runtime.
func Definitions() []*functions.OperationDefinition {
	var out []*functions.OperationDefinition
	for _, def := range functions.OperatorDefinitions() {
		name, ok := OperatorFunction(def.Name)
		if !ok {
			continue
		}
		out = append(out, functions.Def(def.Name, def.Kind, nil, functions.V(dialect.Compeng, functions.Fn(name))))
	}
	for _, def := range functions.ScalarDefinitions() {
		out = append(out, functions.Def(def.Name, def.Kind, nil,
			functions.V(dialect.Compeng, functions.Fn(FunctionName(def.Name)))))
	}
	for _, def := range functions.AggregateDefinitions() {
		out = append(out, functions.Def(def.Name, def.Kind, nil, functions.V(dialect.Compeng, aggregatorName)))
	}
	for _, def := range functions.WindowDefinitions() {
		out = append(out, functions.Def(def.Name, def.Kind, nil, functions.V(dialect.Compeng, aggregatorName)))
	}
	return out
}

// Connector compeng 连接器
func Connector() *connectors.Connector {
	return &connectors.Connector{
		Backend:        dialect.BackendCompeng,
		Dialects:       dialect.Compeng,
		DefaultDialect: dialect.CompengV1,
		Definitions:    Definitions(),
		Style:          Style(),
	}
}
