// Package mysql registers MySQL dialects.
package mysql

import (
	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
)

// maxLimit is written when a query has OFFSET without LIMIT
const maxLimit = "18446744073709551615"

// Style of MySQL literals
func Style() *functions.Style {
	s := functions.ANSIStyle()
	s.Name = "mysql"
	s.IdentQuote = "`"
	s.BackslashEscapes = true
	s.OffsetNeedsLimit = maxLimit
	return s
}

func plus(c *functions.Call) (string, error) {
	if len(c.ArgTypes) == 2 && c.ArgTypes[0].NonConst() == formula.TypeString && c.ArgTypes[1].NonConst() == formula.TypeString {
		return functions.Fn("CONCAT")(c)
	}
	return functions.BinOp("+")(c)
}

// Definitions overrides the generic tables where MySQL differs.
func Definitions() []*functions.OperationDefinition {
	my := dialect.MySQL
	scalar := func(name string, translate functions.TranslateFunc) *functions.OperationDefinition {
		return functions.Def(name, functions.KindScalar, nil, functions.V(my, translate))
	}
	return []*functions.OperationDefinition{
		functions.Def(formula.OpAdd, functions.KindOperator, nil, functions.V(my, plus)),
		functions.Def(functions.OpNullSafeEq, functions.KindOperator, nil, functions.V(my, functions.BinOp("<=>"))),

		scalar("len", functions.Fn("CHAR_LENGTH")),
		scalar("contains", functions.Tmpl("(LOCATE({1}, {0}) > 0)")),
		scalar("str", functions.Tmpl("CAST({0} AS CHAR)")),
		scalar("int", functions.Tmpl("CAST({0} AS SIGNED)")),
		scalar("float", functions.Tmpl("({0} + 0.0)")),
		scalar("date", functions.Fn("DATE")),
		scalar("year", functions.Fn("YEAR")),
		scalar("month", functions.Fn("MONTH")),
		scalar("day", functions.Fn("DAYOFMONTH")),
		scalar("now", functions.Tmpl("NOW()")),
		scalar("today", functions.Tmpl("CURDATE()")),
	}
}

// Connector MySQL 连接器，8.0.12 起支持窗口函数
func Connector() *connectors.Connector {
	return &connectors.Connector{
		Backend:              dialect.BackendMySQL,
		Dialects:             dialect.MySQL,
		DefaultDialect:       dialect.Latest(dialect.BackendMySQL),
		Definitions:          Definitions(),
		Style:                Style(),
		NativeWindowDialects: dialect.MySQL8_0_12,
		DriverName:           "mysql",
	}
}
