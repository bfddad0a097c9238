package functions

import (
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
)

var (
	intResult   = Returns(formula.TypeInteger)
	floatResult = Returns(formula.TypeFloat)
	strResult   = Returns(formula.TypeString)
)

// ScalarDefinitions 标量函数的通用 SQL 翻译，各连接器覆盖差异部分
func ScalarDefinitions() []*OperationDefinition {
	sql := dialect.SQL
	noSQLite := sql &^ dialect.SQLite
	return []*OperationDefinition{
		Def("abs", KindScalar, Sigs(Sig(SameAsArg(0), Numeric)), V(sql, Fn("ABS"))),
		Def("round", KindScalar, Sigs(
			Sig(SameAsArg(0), Numeric),
			Sig(Returns(formula.TypeFloat), Numeric, Integer),
		), V(sql, Fn("ROUND"))),
		Def("floor", KindScalar, Sigs(Sig(SameAsArg(0), Numeric)), V(noSQLite, Fn("FLOOR"))),
		Def("ceiling", KindScalar, Sigs(Sig(SameAsArg(0), Numeric)), V(noSQLite, Fn("CEILING"))),
		Def("sqrt", KindScalar, Sigs(Sig(floatResult, Numeric)), V(noSQLite, Fn("SQRT"))),
		Def("greatest", KindScalar, Sigs(VarSig(CommonOfArgs(), Comparable)), V(sql, Fn("GREATEST"))),
		Def("least", KindScalar, Sigs(VarSig(CommonOfArgs(), Comparable)), V(sql, Fn("LEAST"))),

		Def("upper", KindScalar, Sigs(Sig(strResult, String)), V(sql, Fn("UPPER"))),
		Def("lower", KindScalar, Sigs(Sig(strResult, String)), V(sql, Fn("LOWER"))),
		Def("len", KindScalar, Sigs(Sig(intResult, String)), V(sql, Fn("LENGTH"))),
		Def("trim", KindScalar, Sigs(Sig(strResult, String)), V(sql, Fn("TRIM"))),
		Def("replace", KindScalar, Sigs(Sig(strResult, String, String, String)), V(sql, Fn("REPLACE"))),
		Def("concat", KindScalar, Sigs(VarSig(strResult, AnyType)), V(sql, Fn("CONCAT"))),
		Def("substr", KindScalar, Sigs(
			Sig(strResult, String, Integer),
			Sig(strResult, String, Integer, Integer),
		), V(sql, Fn("SUBSTR"))),
		Def("left", KindScalar, Sigs(Sig(strResult, String, Integer)), V(sql, Fn("LEFT"))),
		Def("right", KindScalar, Sigs(Sig(strResult, String, Integer)), V(sql, Fn("RIGHT"))),
		Def("contains", KindScalar, Sigs(Sig(boolResult, String, String)), V(sql, Tmpl("(STRPOS({0}, {1}) > 0)"))),
		Def("startswith", KindScalar, Sigs(Sig(boolResult, String, String)),
			V(sql, Tmpl("(SUBSTR({0}, 1, LENGTH({1})) = {1})"))),
		Def("endswith", KindScalar, Sigs(Sig(boolResult, String, String)),
			V(sql, Tmpl("(RIGHT({0}, LENGTH({1})) = {1})"))),

		Def("str", KindScalar, Sigs(Sig(strResult, AnyType)), V(sql, Tmpl("CAST({0} AS TEXT)"))),
		Def("int", KindScalar, Sigs(Sig(intResult, AnyType)), V(sql, Tmpl("CAST({0} AS BIGINT)"))),
		Def("float", KindScalar, Sigs(Sig(floatResult, AnyType)), V(sql, Tmpl("CAST({0} AS DOUBLE PRECISION)"))),
		Def("date", KindScalar, Sigs(Sig(Returns(formula.TypeDate), AnyType)), V(sql, Tmpl("CAST({0} AS DATE)"))),
		Def("year", KindScalar, Sigs(Sig(intResult, Temporal)), V(sql, Tmpl("CAST(EXTRACT(YEAR FROM {0}) AS INTEGER)"))),
		Def("month", KindScalar, Sigs(Sig(intResult, Temporal)), V(sql, Tmpl("CAST(EXTRACT(MONTH FROM {0}) AS INTEGER)"))),
		Def("day", KindScalar, Sigs(Sig(intResult, Temporal)), V(sql, Tmpl("CAST(EXTRACT(DAY FROM {0}) AS INTEGER)"))),
		Def("now", KindScalar, Sigs(Sig(Returns(formula.TypeDatetime))), V(sql, Tmpl("CURRENT_TIMESTAMP"))),
		Def("today", KindScalar, Sigs(Sig(Returns(formula.TypeDate))), V(sql, Tmpl("CURRENT_DATE"))),

		Def("ifnull", KindScalar, Sigs(Sig(CommonOfArgs(), AnyType, AnyType)), V(sql, Fn("COALESCE"))),
		Def("zn", KindScalar, Sigs(Sig(SameAsArg(0), Numeric)), V(sql, Tmpl("COALESCE({0}, 0)"))),
	}
}

// AggregateDefinitions 聚合函数
func AggregateDefinitions() []*OperationDefinition {
	sql := dialect.SQL
	noSQLite := sql &^ dialect.SQLite
	return []*OperationDefinition{
		Def("sum", KindAggregate, Sigs(Sig(SameAsArg(0), Numeric)), V(sql, Fn("SUM"))),
		Def("avg", KindAggregate, Sigs(Sig(floatResult, Numeric)), V(sql, Fn("AVG"))),
		Def("min", KindAggregate, Sigs(Sig(SameAsArg(0), Comparable)), V(sql, Fn("MIN"))),
		Def("max", KindAggregate, Sigs(Sig(SameAsArg(0), Comparable)), V(sql, Fn("MAX"))),
		Def("count", KindAggregate, Sigs(Sig(intResult), Sig(intResult, AnyType)), V(sql, ByArity(map[int]TranslateFunc{
			0: Tmpl("COUNT(*)"),
			1: Fn("COUNT"),
		}))),
		Def("countd", KindAggregate, Sigs(Sig(intResult, AnyType)), V(sql, Tmpl("COUNT(DISTINCT {0})"))),
		Def("any", KindAggregate, Sigs(Sig(SameAsArg(0), AnyType)), V(sql, Fn("MAX"))),
		Def("median", KindAggregate, Sigs(Sig(SameAsArg(0), Numeric))),
		Def("stdev", KindAggregate, Sigs(Sig(floatResult, Numeric)), V(noSQLite, Fn("STDDEV_SAMP"))),
		Def("stdevp", KindAggregate, Sigs(Sig(floatResult, Numeric)), V(noSQLite, Fn("STDDEV_POP"))),
		Def("var", KindAggregate, Sigs(Sig(floatResult, Numeric)), V(noSQLite, Fn("VAR_SAMP"))),
		Def("varp", KindAggregate, Sigs(Sig(floatResult, Numeric)), V(noSQLite, Fn("VAR_POP"))),
		Def("sum_if", KindAggregate, Sigs(Sig(SameAsArg(0), Numeric, Boolean)),
			V(sql, Tmpl("SUM(CASE WHEN {1} THEN {0} END)"))),
		Def("avg_if", KindAggregate, Sigs(Sig(floatResult, Numeric, Boolean)),
			V(sql, Tmpl("AVG(CASE WHEN {1} THEN {0} END)"))),
		Def("count_if", KindAggregate, Sigs(Sig(intResult, Boolean)),
			V(sql, Tmpl("COUNT(CASE WHEN {0} THEN 1 END)"))),
		Def("countd_if", KindAggregate, Sigs(Sig(intResult, AnyType, Boolean)),
			V(sql, Tmpl("COUNT(DISTINCT CASE WHEN {1} THEN {0} END)"))),
	}
}

// WindowDefinitions 窗口函数，只有支持 OVER 的方言才有翻译
func WindowDefinitions() []*OperationDefinition {
	w := windowDialects
	num := Sigs(Sig(SameAsArg(0), Numeric))
	moving := Sigs(Sig(SameAsArg(0), Numeric, Integer))
	movingF := Sigs(Sig(floatResult, Numeric, Integer))
	rank := Sigs(Sig(intResult, Comparable), Sig(intResult, Comparable, String))
	return []*OperationDefinition{
		Def("rsum", KindWindow, num, V(w, Running("SUM"))).Ordered(),
		Def("rcount", KindWindow, Sigs(Sig(intResult, AnyType)), V(w, Running("COUNT"))).Ordered(),
		Def("rmin", KindWindow, num, V(w, Running("MIN"))).Ordered(),
		Def("rmax", KindWindow, num, V(w, Running("MAX"))).Ordered(),
		Def("ravg", KindWindow, Sigs(Sig(floatResult, Numeric)), V(w, Running("AVG"))).Ordered(),
		Def("msum", KindWindow, moving, V(w, Moving("SUM"))).Ordered(),
		Def("mcount", KindWindow, Sigs(Sig(intResult, AnyType, Integer)), V(w, Moving("COUNT"))).Ordered(),
		Def("mmin", KindWindow, moving, V(w, Moving("MIN"))).Ordered(),
		Def("mmax", KindWindow, moving, V(w, Moving("MAX"))).Ordered(),
		Def("mavg", KindWindow, movingF, V(w, Moving("AVG"))).Ordered(),
		Def("rank", KindWindow, rank, V(w, Rank("RANK"))),
		Def("rank_dense", KindWindow, rank, V(w, Rank("DENSE_RANK"))),
		Def("rank_unique", KindWindow, rank, V(w, Rank("ROW_NUMBER"))),
		Def("rank_percentile", KindWindow, Sigs(Sig(floatResult, Comparable), Sig(floatResult, Comparable, String)),
			V(w, Rank("PERCENT_RANK"))),
		Def("lag", KindWindow, Sigs(Sig(SameAsArg(0), AnyType), Sig(SameAsArg(0), AnyType, Integer)),
			V(w, func(c *Call) (string, error) {
				return "LAG(" + c.Args[0] + ", " + itoa(LagOffset(c)) + ") " + OverClause(c, ""), nil
			})).Ordered(),
		Def("first", KindWindow, Sigs(Sig(SameAsArg(0), AnyType)), V(w, func(c *Call) (string, error) {
			return "FIRST_VALUE(" + c.Args[0] + ") " + OverClause(c, FrameAll), nil
		})).Ordered(),
		Def("last", KindWindow, Sigs(Sig(SameAsArg(0), AnyType)), V(w, func(c *Call) (string, error) {
			return "LAST_VALUE(" + c.Args[0] + ") " + OverClause(c, FrameAll), nil
		})).Ordered(),
	}
}

// LookupDefinitions are classified only, no dialect translates them.
func LookupDefinitions() []*OperationDefinition {
	return []*OperationDefinition{
		Def("ago", KindLookup, Sigs(Sig(SameAsArg(0), AnyType, Temporal), Sig(SameAsArg(0), AnyType, Temporal, String, Integer))),
		Def("at_date", KindLookup, Sigs(Sig(SameAsArg(0), AnyType, Temporal, AnyType))),
	}
}

// BaseDefinitions returns every generic definition.
func BaseDefinitions() []*OperationDefinition {
	var out []*OperationDefinition
	out = append(out, OperatorDefinitions()...)
	out = append(out, ScalarDefinitions()...)
	out = append(out, AggregateDefinitions()...)
	out = append(out, WindowDefinitions()...)
	out = append(out, LookupDefinitions()...)
	return out
}
