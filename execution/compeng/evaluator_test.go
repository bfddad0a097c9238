package compeng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/connectors/all"
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/translation"
)

func evaluator(t *testing.T) *Evaluator {
	t.Helper()
	reg, err := all.Registry()
	require.NoError(t, err)
	return NewEvaluator(reg, logger.NewDiscardLogger())
}

func citiesRows() *dataset.Rows {
	rows := dataset.NewRows(dataset.Schema{
		{Name: "country", DataType: formula.TypeString},
		{Name: "city", DataType: formula.TypeString},
		{Name: "pop", DataType: formula.TypeInteger},
	})
	rows.AddRow(dataset.Row{"A", "a1", int64(10)})
	rows.AddRow(dataset.Row{"A", "a2", int64(20)})
	rows.AddRow(dataset.Row{"B", "b1", int64(5)})
	rows.AddRow(dataset.Row{"C", "c1", nil})
	rows.AddRow(dataset.Row{"B", "b2", int64(15)})
	return rows
}

func subquery(id string, columns ...string) *compilation.FromObject {
	from := &compilation.FromObject{ID: id, Alias: id, QueryID: id}
	for _, c := range columns {
		from.Columns = append(from.Columns, compilation.FromColumn{ID: c, Name: c})
	}
	return from
}

func info(alias string, expr formula.Node) *compilation.CompiledFormulaInfo {
	return &compilation.CompiledFormulaInfo{Alias: alias, Expr: expr}
}

func field(name string) formula.Node { return formula.NewField(name) }

func sumOf(name string) formula.Node { return formula.NewFuncCall("sum", field(name)) }

func intPtr(v int) *int { return &v }

func translated(q *compilation.CompiledQuery, columns dataset.Schema) *translation.TranslatedQuery {
	return &translation.TranslatedQuery{ID: q.ID, Level: compilation.LevelCompeng, Query: q, Columns: columns}
}

func TestEvaluateGroupedWithRunningTotal(t *testing.T) {
	rsum := formula.NewWindowFuncCall("rsum", []formula.Node{sumOf("pop")}, nil,
		formula.NewOrdering(formula.NewOrderItem(field("country"), false)))
	q := &compilation.CompiledQuery{
		ID:         "q1",
		Level:      compilation.LevelCompeng,
		JoinedFrom: compilation.JoinedFromObject{RootFromID: "q2", Froms: []*compilation.FromObject{subquery("q2", "country", "city", "pop")}},
		Select:     []*compilation.CompiledFormulaInfo{info("e1", field("country")), info("e2", sumOf("pop")), info("e3", rsum)},
		GroupBy:    []*compilation.CompiledFormulaInfo{info("e1", field("country"))},
		Filters:    []*compilation.CompiledFormulaInfo{info("f1", formula.NewBinary(formula.OpNe, field("city"), formula.NewString("b2")))},
		OrderBy: []*compilation.CompiledOrderByFormulaInfo{{
			CompiledFormulaInfo: *info("e1", field("country")),
			Direction:           legend.Asc,
		}},
	}
	columns := dataset.Schema{
		{Name: "e1", DataType: formula.TypeString},
		{Name: "e2", DataType: formula.TypeInteger},
		{Name: "e3", DataType: formula.TypeInteger},
	}
	out, err := evaluator(t).Evaluate(context.Background(), translated(q, columns), map[string]*dataset.Rows{"q2": citiesRows()})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{
		{"A", int64(30), int64(30)},
		{"B", int64(5), int64(35)},
		{"C", nil, int64(35)},
	}, out.Rows)
	assert.Equal(t, []string{"e1", "e2", "e3"}, out.Schema.Names())
}

func TestEvaluateHavingRankAndLimit(t *testing.T) {
	rank := formula.NewWindowFuncCall("rank", []formula.Node{sumOf("pop")}, nil, nil)
	q := &compilation.CompiledQuery{
		ID:         "q1",
		Level:      compilation.LevelCompeng,
		JoinedFrom: compilation.JoinedFromObject{RootFromID: "q2", Froms: []*compilation.FromObject{subquery("q2", "country", "city", "pop")}},
		Select:     []*compilation.CompiledFormulaInfo{info("e1", field("country")), info("e2", rank)},
		GroupBy:    []*compilation.CompiledFormulaInfo{info("e1", field("country"))},
		Filters:    []*compilation.CompiledFormulaInfo{info("f1", formula.NewBinary(formula.OpGt, sumOf("pop"), formula.NewInteger(1)))},
		OrderBy: []*compilation.CompiledOrderByFormulaInfo{{
			CompiledFormulaInfo: *info("o1", sumOf("pop")),
			Direction:           legend.Desc,
		}},
		Limit: intPtr(1),
	}
	columns := dataset.Schema{{Name: "e1", DataType: formula.TypeString}, {Name: "e2", DataType: formula.TypeInteger}}
	out, err := evaluator(t).Evaluate(context.Background(), translated(q, columns), map[string]*dataset.Rows{"q2": citiesRows()})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{{"A", int64(1)}}, out.Rows)
}

func TestEvaluateAggregateWithoutDimensions(t *testing.T) {
	q := &compilation.CompiledQuery{
		ID:         "q1",
		Level:      compilation.LevelCompeng,
		JoinedFrom: compilation.JoinedFromObject{RootFromID: "q2", Froms: []*compilation.FromObject{subquery("q2", "country", "city", "pop")}},
		Select: []*compilation.CompiledFormulaInfo{
			info("e1", formula.NewFuncCall("count")),
			info("e2", formula.NewFuncCall("countd", field("country"))),
			info("e3", formula.NewFuncCall("avg", field("pop"))),
		},
	}
	columns := dataset.Schema{
		{Name: "e1", DataType: formula.TypeInteger},
		{Name: "e2", DataType: formula.TypeInteger},
		{Name: "e3", DataType: formula.TypeFloat},
	}
	e := evaluator(t)
	out, err := e.Evaluate(context.Background(), translated(q, columns), map[string]*dataset.Rows{"q2": citiesRows()})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{{int64(5), int64(3), 12.5}}, out.Rows)

	empty := dataset.NewRows(citiesRows().Schema)
	out, err = e.Evaluate(context.Background(), translated(q, columns), map[string]*dataset.Rows{"q2": empty})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{{int64(0), int64(0), nil}}, out.Rows)
}

func TestEvaluateLeftJoin(t *testing.T) {
	totals := dataset.NewRows(dataset.Schema{{Name: "c2", DataType: formula.TypeString}, {Name: "total", DataType: formula.TypeInteger}})
	totals.AddRow(dataset.Row{"A", int64(30)})
	totals.AddRow(dataset.Row{"B", int64(20)})
	totals.AddRow(dataset.Row{nil, int64(1)})
	countries := dataset.NewRows(dataset.Schema{{Name: "c1", DataType: formula.TypeString}})
	countries.AddRow(dataset.Row{"A"})
	countries.AddRow(dataset.Row{"C"})
	countries.AddRow(dataset.Row{nil})

	q := &compilation.CompiledQuery{
		ID:    "q1",
		Level: compilation.LevelCompeng,
		JoinedFrom: compilation.JoinedFromObject{RootFromID: "q2", Froms: []*compilation.FromObject{
			subquery("q2", "c1"), subquery("q3", "c2", "total"),
		}},
		Select: []*compilation.CompiledFormulaInfo{info("e1", field("c1")), info("e2", field("total"))},
		JoinOn: []*compilation.CompiledJoinOnFormulaInfo{{
			CompiledFormulaInfo: *info("j1", formula.NewBinary(functions.OpNullSafeEq, field("c1"), field("c2"))),
			LeftID:              "q2",
			RightID:             "q3",
			JoinType:            compilation.JoinLeft,
		}},
	}
	columns := dataset.Schema{{Name: "e1", DataType: formula.TypeString}, {Name: "e2", DataType: formula.TypeInteger}}
	out, err := evaluator(t).Evaluate(context.Background(), translated(q, columns),
		map[string]*dataset.Rows{"q2": countries, "q3": totals})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{{"A", int64(30)}, {"C", nil}, {nil, int64(1)}}, out.Rows)
}

func TestEvaluateDistinctOffset(t *testing.T) {
	q := &compilation.CompiledQuery{
		ID:         "q1",
		Level:      compilation.LevelCompeng,
		JoinedFrom: compilation.JoinedFromObject{RootFromID: "q2", Froms: []*compilation.FromObject{subquery("q2", "country", "city", "pop")}},
		Select:     []*compilation.CompiledFormulaInfo{info("e1", formula.NewFuncCall("lower", field("country")))},
		OrderBy: []*compilation.CompiledOrderByFormulaInfo{{
			CompiledFormulaInfo: *info("e1", field("country")),
			Direction:           legend.Desc,
		}},
		Offset: intPtr(1),
		Meta:   compilation.QueryMeta{Distinct: true},
	}
	columns := dataset.Schema{{Name: "e1", DataType: formula.TypeString}}
	out, err := evaluator(t).Evaluate(context.Background(), translated(q, columns), map[string]*dataset.Rows{"q2": citiesRows()})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{{"b"}, {"a"}}, out.Rows)
}

func TestEvaluateWindowFilter(t *testing.T) {
	share := formula.NewBinary(formula.OpDiv, field("pop"), formula.NewWindowFuncCall("sum", []formula.Node{field("pop")},
		formula.NewGrouping(formula.GroupingWithin, field("country")), nil))
	q := &compilation.CompiledQuery{
		ID:         "q1",
		Level:      compilation.LevelCompeng,
		JoinedFrom: compilation.JoinedFromObject{RootFromID: "q2", Froms: []*compilation.FromObject{subquery("q2", "country", "city", "pop")}},
		Select:     []*compilation.CompiledFormulaInfo{info("e1", field("city")), info("e2", share)},
		Filters:    []*compilation.CompiledFormulaInfo{info("f1", formula.NewBinary(formula.OpGte, share, formula.NewFloat(0.5)))},
		OrderBy: []*compilation.CompiledOrderByFormulaInfo{{
			CompiledFormulaInfo: *info("e1", field("city")),
			Direction:           legend.Asc,
		}},
	}
	columns := dataset.Schema{{Name: "e1", DataType: formula.TypeString}, {Name: "e2", DataType: formula.TypeFloat}}
	out, err := evaluator(t).Evaluate(context.Background(), translated(q, columns), map[string]*dataset.Rows{"q2": citiesRows()})
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "a2", out.Rows[0][0])
	assert.InDelta(t, 2.0/3, out.Rows[0][1], 1e-9)
	assert.Equal(t, dataset.Row{"b2", 0.75}, out.Rows[1])
}

func TestEvaluateErrors(t *testing.T) {
	q := &compilation.CompiledQuery{
		ID:         "q1",
		Level:      compilation.LevelCompeng,
		JoinedFrom: compilation.JoinedFromObject{RootFromID: "q2", Froms: []*compilation.FromObject{subquery("q2", "missing")}},
		Select:     []*compilation.CompiledFormulaInfo{info("e1", field("missing"))},
	}
	columns := dataset.Schema{{Name: "e1", DataType: formula.TypeString}}
	e := evaluator(t)
	_, err := e.Evaluate(context.Background(), translated(q, columns), map[string]*dataset.Rows{"q2": citiesRows()})
	assert.True(t, exc.ErrCompeng.Is(err))

	_, err = e.Evaluate(context.Background(), translated(q, columns), map[string]*dataset.Rows{})
	assert.True(t, exc.ErrPlanningDependency.Is(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.JoinedFrom.Froms = []*compilation.FromObject{subquery("q2", "country")}
	q.Select = []*compilation.CompiledFormulaInfo{info("e1", field("country"))}
	_, err = e.Evaluate(ctx, translated(q, columns), map[string]*dataset.Rows{"q2": citiesRows()})
	assert.True(t, exc.ErrExecutionCancelled.Is(err))
}
