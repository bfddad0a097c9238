package functions

import (
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
)

// Internal operator names that have no formula syntax.
const (
	// OpNullSafeEq compares two values treating NULLs as equal, used in joins
	OpNullSafeEq = "_dneq"
	// OpIf and OpCase are the translation keys of IF and CASE blocks
	OpIf   = "if"
	OpCase = "case"
	// OpOver is the OVER clause of aggregations used as windows
	OpOver = "over"
)

var (
	boolResult = Returns(formula.TypeBoolean)
	anyPair    = Sig(boolResult, AnyType, AnyType)
)

func plusSQL(c *Call) (string, error) {
	if len(c.ArgTypes) == 2 && c.ArgTypes[0].NonConst() == formula.TypeString && c.ArgTypes[1].NonConst() == formula.TypeString {
		return Tmpl("({0} || {1})")(c)
	}
	return BinOp("+")(c)
}

func numericSig() []Signature {
	return Sigs(
		Sig(Returns(formula.TypeInteger), Integer, Integer),
		Sig(Returns(formula.TypeFloat), Numeric, Numeric),
	)
}

// OperatorDefinitions 运算符的通用 SQL 翻译
func OperatorDefinitions() []*OperationDefinition {
	sql := dialect.SQL
	return []*OperationDefinition{
		Def(formula.OpAdd, KindOperator, append(numericSig(),
			Sig(Returns(formula.TypeString), String, String),
			Sig(SameAsArg(0), Temporal, Numeric),
		), V(sql, plusSQL)),
		Def(formula.OpSub, KindOperator, append(numericSig(),
			Sig(Returns(formula.TypeFloat), Temporal, Temporal),
			Sig(SameAsArg(0), Temporal, Numeric),
		), V(sql, BinOp("-"))),
		Def(formula.OpMul, KindOperator, numericSig(), V(sql, BinOp("*"))),
		Def(formula.OpDiv, KindOperator, Sigs(Sig(Returns(formula.TypeFloat), Numeric, Numeric)), V(sql, BinOp("/"))),
		Def(formula.OpMod, KindOperator, numericSig(), V(sql, BinOp("%"))),
		Def(formula.OpPow, KindOperator, Sigs(Sig(Returns(formula.TypeFloat), Numeric, Numeric)),
			V(sql&^dialect.SQLite, Fn("POWER"))),
		Def(formula.OpNeg, KindOperator, Sigs(Sig(SameAsArg(0), Numeric)), V(sql, Tmpl("(-{0})"))),

		Def(formula.OpAnd, KindOperator, Sigs(anyPair), V(sql, BinOp("AND"))),
		Def(formula.OpOr, KindOperator, Sigs(anyPair), V(sql, BinOp("OR"))),
		Def(formula.OpNot, KindOperator, Sigs(Sig(boolResult, AnyType)), V(sql, Tmpl("(NOT {0})"))),

		Def(formula.OpEq, KindOperator, Sigs(anyPair), V(sql, BinOp("="))),
		Def(formula.OpNe, KindOperator, Sigs(anyPair), V(sql, BinOp("!="))),
		Def(formula.OpLt, KindOperator, Sigs(anyPair), V(sql, BinOp("<"))),
		Def(formula.OpLte, KindOperator, Sigs(anyPair), V(sql, BinOp("<="))),
		Def(formula.OpGt, KindOperator, Sigs(anyPair), V(sql, BinOp(">"))),
		Def(formula.OpGte, KindOperator, Sigs(anyPair), V(sql, BinOp(">="))),
		Def(formula.OpLike, KindOperator, Sigs(Sig(boolResult, String, String)), V(sql, BinOp("LIKE"))),
		Def(formula.OpNotLike, KindOperator, Sigs(Sig(boolResult, String, String)), V(sql, BinOp("NOT LIKE"))),
		Def(formula.OpIn, KindOperator, Sigs(anyPair), V(sql, BinOp("IN"))),
		Def(formula.OpNotIn, KindOperator, Sigs(anyPair), V(sql, BinOp("NOT IN"))),
		Def(formula.OpBetween, KindOperator, Sigs(Sig(boolResult, AnyType, AnyType, AnyType)),
			V(sql, Tmpl("({0} BETWEEN {1} AND {2})"))),
		Def(formula.OpNotBetween, KindOperator, Sigs(Sig(boolResult, AnyType, AnyType, AnyType)),
			V(sql, Tmpl("({0} NOT BETWEEN {1} AND {2})"))),

		Def(formula.OpIsNull, KindOperator, Sigs(Sig(boolResult, AnyType)), V(sql, Postfix("IS NULL"))),
		Def(formula.OpIsNotNull, KindOperator, Sigs(Sig(boolResult, AnyType)), V(sql, Postfix("IS NOT NULL"))),
		Def(formula.OpIsTrue, KindOperator, Sigs(Sig(boolResult, AnyType)), V(sql, Postfix("IS TRUE"))),
		Def(formula.OpIsNotTrue, KindOperator, Sigs(Sig(boolResult, AnyType)), V(sql, Postfix("IS NOT TRUE"))),
		Def(formula.OpIsFalse, KindOperator, Sigs(Sig(boolResult, AnyType)), V(sql, Postfix("IS FALSE"))),
		Def(formula.OpIsNotFalse, KindOperator, Sigs(Sig(boolResult, AnyType)), V(sql, Postfix("IS NOT FALSE"))),

		Def(OpNullSafeEq, KindOperator, Sigs(anyPair), V(sql, BinOp("IS NOT DISTINCT FROM"))),
		Def(OpIf, KindOperator, Sigs(VarSig(CommonOfArgs(), AnyType)), V(sql, SQLIf)),
		Def(OpCase, KindOperator, Sigs(VarSig(CommonOfArgs(), AnyType)), V(sql, SQLCase)),
		Def(OpOver, KindOperator, nil, V(windowDialects, func(c *Call) (string, error) {
			return OverClause(c, ""), nil
		})),
	}
}

// windowDialects support OVER (...) natively.
var windowDialects = dialect.PostgreSQL | dialect.SQLite | dialect.MySQL8_0_12 | dialect.ClickHouse

// WindowDialects returns the dialects with native window functions.
func WindowDialects() dialect.DialectCombo { return windowDialects }
