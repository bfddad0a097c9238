// Package clickhouse registers ClickHouse dialects.
package clickhouse

import (
	"strconv"

	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
)

// Style of ClickHouse literals
func Style() *functions.Style {
	s := functions.ANSIStyle()
	s.Name = "clickhouse"
	s.IdentQuote = "`"
	s.TrueLiteral = "true"
	s.FalseLiteral = "false"
	s.DateFormat = "toDate('%s')"
	s.DatetimeFormat = "toDateTime('%s', 'UTC')"
	s.BackslashEscapes = true
	return s
}

// Definitions overrides the generic tables where ClickHouse differs.
func Definitions() []*functions.OperationDefinition {
	ch := dialect.ClickHouse
	agg := func(name, fn string) *functions.OperationDefinition {
		return functions.Def(name, functions.KindAggregate, nil, functions.V(ch, functions.Fn(fn)))
	}
	scalar := func(name string, translate functions.TranslateFunc) *functions.OperationDefinition {
		return functions.Def(name, functions.KindScalar, nil, functions.V(ch, translate))
	}
	op := func(name string, translate functions.TranslateFunc) *functions.OperationDefinition {
		return functions.Def(name, functions.KindOperator, nil, functions.V(ch, translate))
	}
	return []*functions.OperationDefinition{
		op(formula.OpPow, functions.Fn("pow")),
		op(formula.OpIsTrue, functions.Tmpl("(ifNull({0}, false) = true)")),
		op(formula.OpIsNotTrue, functions.Tmpl("(ifNull({0}, false) != true)")),
		op(formula.OpIsFalse, functions.Tmpl("(ifNull({0}, true) = false)")),
		op(formula.OpIsNotFalse, functions.Tmpl("(ifNull({0}, true) != false)")),
		op(functions.OpNullSafeEq, functions.Tmpl("(({0} = {1}) OR ({0} IS NULL AND {1} IS NULL))")),

		scalar("len", functions.Fn("lengthUTF8")),
		scalar("contains", functions.Tmpl("(positionUTF8({0}, {1}) > 0)")),
		scalar("startswith", functions.Fn("startsWith")),
		scalar("endswith", functions.Fn("endsWith")),
		scalar("substr", functions.Fn("substringUTF8")),
		scalar("left", functions.Tmpl("substringUTF8({0}, 1, {1})")),
		scalar("right", functions.Tmpl("substringUTF8({0}, -toInt64({1}))")),
		scalar("trim", functions.Tmpl("trimBoth({0})")),
		scalar("str", functions.Fn("toString")),
		scalar("int", functions.Fn("toInt64")),
		scalar("float", functions.Fn("toFloat64")),
		scalar("date", functions.Fn("toDate")),
		scalar("year", functions.Fn("toYear")),
		scalar("month", functions.Fn("toMonth")),
		scalar("day", functions.Fn("toDayOfMonth")),
		scalar("now", functions.Tmpl("now()")),
		scalar("today", functions.Tmpl("today()")),
		scalar("ceiling", functions.Fn("ceil")),

		agg("countd", "uniqExact"),
		agg("any", "any"),
		agg("stdev", "stddevSamp"),
		agg("stdevp", "stddevPop"),
		agg("var", "varSamp"),
		agg("varp", "varPop"),
		agg("sum_if", "sumIf"),
		agg("avg_if", "avgIf"),
		agg("count_if", "countIf"),
		agg("countd_if", "uniqExactIf"),
		functions.Def("median", functions.KindAggregate, nil, functions.V(ch, functions.Tmpl("quantileExact(0.5)({0})"))),

		functions.Def("lag", functions.KindWindow, nil, functions.V(ch, func(c *functions.Call) (string, error) {
			return "lagInFrame(" + c.Args[0] + ", " + strconv.Itoa(functions.LagOffset(c)) + ") " + functions.OverClause(c, functions.FrameRunning), nil
		})),
	}
}

// Connector ClickHouse 连接器，窗口函数由 compeng 计算
func Connector() *connectors.Connector {
	return &connectors.Connector{
		Backend:        dialect.BackendClickHouse,
		Dialects:       dialect.ClickHouse,
		DefaultDialect: dialect.Latest(dialect.BackendClickHouse),
		Definitions:    Definitions(),
		Style:          Style(),
	}
}
