// Package postgresql registers PostgreSQL dialects.
package postgresql

import (
	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
)

// Style of PostgreSQL literals
func Style() *functions.Style {
	s := functions.ANSIStyle()
	s.Name = "postgresql"
	return s
}

// Definitions overrides the generic tables where PostgreSQL differs.
// Aggregate FILTER and ordered-set aggregates appear in 9.4.
func Definitions() []*functions.OperationDefinition {
	pg := dialect.PostgreSQL
	pg94 := dialect.PostgreSQL9_4.AndAbove()
	return []*functions.OperationDefinition{
		functions.Def(formula.OpDiv, functions.KindOperator, nil,
			functions.V(pg, functions.Tmpl("(CAST({0} AS DOUBLE PRECISION) / {1})"))),
		functions.Def("median", functions.KindAggregate, nil,
			functions.V(pg94, functions.Tmpl("percentile_cont(0.5) WITHIN GROUP (ORDER BY {0})"))),
		functions.Def("sum_if", functions.KindAggregate, nil,
			functions.V(pg94, functions.Tmpl("SUM({0}) FILTER (WHERE {1})"))),
		functions.Def("avg_if", functions.KindAggregate, nil,
			functions.V(pg94, functions.Tmpl("AVG({0}) FILTER (WHERE {1})"))),
		functions.Def("count_if", functions.KindAggregate, nil,
			functions.V(pg94, functions.Tmpl("COUNT(*) FILTER (WHERE {0})"))),
		functions.Def("any", functions.KindAggregate, nil,
			functions.V(pg, functions.Tmpl("(ARRAY_AGG({0}))[1]"))),
	}
}

// Connector PostgreSQL 连接器，窗口函数在数据库中计算
func Connector() *connectors.Connector {
	return &connectors.Connector{
		Backend:              dialect.BackendPostgreSQL,
		Dialects:             dialect.PostgreSQL,
		DefaultDialect:       dialect.Latest(dialect.BackendPostgreSQL),
		Definitions:          Definitions(),
		Style:                Style(),
		NativeWindowDialects: dialect.PostgreSQL,
		DriverName:           "postgres",
	}
}
