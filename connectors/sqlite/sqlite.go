// Package sqlite registers the SQLite dialect.
package sqlite

import (
	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
)

// Style of SQLite literals. Dates are stored as ISO text.
func Style() *functions.Style {
	s := functions.ANSIStyle()
	s.Name = "sqlite"
	s.DateFormat = "'%s'"
	s.DatetimeFormat = "'%s'"
	s.OffsetNeedsLimit = "-1"
	return s
}

// Definitions overrides the generic tables where SQLite differs.
func Definitions() []*functions.OperationDefinition {
	lite := dialect.SQLite
	scalar := func(name string, translate functions.TranslateFunc) *functions.OperationDefinition {
		return functions.Def(name, functions.KindScalar, nil, functions.V(lite, translate))
	}
	return []*functions.OperationDefinition{
		functions.Def(formula.OpDiv, functions.KindOperator, nil,
			functions.V(lite, functions.Tmpl("(CAST({0} AS REAL) / {1})"))),
		functions.Def(functions.OpNullSafeEq, functions.KindOperator, nil, functions.V(lite, functions.BinOp("IS"))),

		scalar("concat", functions.Chain("||")),
		scalar("contains", functions.Tmpl("(INSTR({0}, {1}) > 0)")),
		scalar("endswith", functions.Tmpl("(SUBSTR({0}, -LENGTH({1})) = {1})")),
		scalar("left", functions.Tmpl("SUBSTR({0}, 1, {1})")),
		scalar("right", functions.Tmpl("SUBSTR({0}, -({1}))")),
		scalar("greatest", functions.Fn("MAX")),
		scalar("least", functions.Fn("MIN")),
		scalar("int", functions.Tmpl("CAST({0} AS INTEGER)")),
		scalar("float", functions.Tmpl("CAST({0} AS REAL)")),
		scalar("date", functions.Fn("DATE")),
		scalar("year", functions.Tmpl("CAST(STRFTIME('%Y', {0}) AS INTEGER)")),
		scalar("month", functions.Tmpl("CAST(STRFTIME('%m', {0}) AS INTEGER)")),
		scalar("day", functions.Tmpl("CAST(STRFTIME('%d', {0}) AS INTEGER)")),
		scalar("now", functions.Tmpl("DATETIME('now')")),
		scalar("today", functions.Tmpl("DATE('now')")),
	}
}

// Connector SQLite 连接器
func Connector() *connectors.Connector {
	return &connectors.Connector{
		Backend:              dialect.BackendSQLite,
		Dialects:             dialect.SQLite,
		DefaultDialect:       dialect.SQLite3,
		Definitions:          Definitions(),
		Style:                Style(),
		NativeWindowDialects: dialect.SQLite,
		DriverName:           "sqlite3",
	}
}
