package multiquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/connectors/all"
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
)

type fixture struct {
	compiler *compilation.Compiler
	env      *inspect.Environment
}

func newFixture(t *testing.T, extra ...*dataset.Field) *fixture {
	t.Helper()
	fields := []*dataset.Field{
		{ID: "city", Title: "City", TypeName: "string"},
		{ID: "country", Title: "Country", TypeName: "string"},
		{ID: "population", Title: "Population", TypeName: "integer", Aggregation: dataset.AggSum},
		{ID: "area", Title: "Area", Source: "area_km2", TypeName: "float"},
	}
	ds, err := dataset.New("cities", "cities", append(fields, extra...)...)
	require.NoError(t, err)
	reg, err := all.Registry()
	require.NoError(t, err)
	c := compilation.NewCompiler(ds, reg, compilation.WithLogger(logger.NewDiscardLogger()))
	return &fixture{compiler: c, env: inspect.NewEnvironment(reg, nil)}
}

func (f *fixture) compile(t *testing.T, items ...*legend.Item) *compilation.CompiledMultiQuery {
	t.Helper()
	mq, err := f.compiler.Compile(&legend.BlockLegend{Blocks: []*legend.BlockSpec{{
		Placement: &legend.RootPlacement{},
		Legend:    legend.New(items...),
	}}})
	require.NoError(t, err)
	return mq
}

func (f *fixture) split(t *testing.T, factory Factory, mq *compilation.CompiledMultiQuery) *compilation.CompiledMultiQuery {
	t.Helper()
	out, err := factory.NewMutator(f.env, WithLogger(logger.NewDiscardLogger())).Mutate(mq)
	require.NoError(t, err)
	return out
}

func row(id string, legendID int) *legend.Item {
	return &legend.Item{LegendItemID: legendID, ID: id, Role: legend.RoleRow}
}

func measure(id string, legendID int) *legend.Item {
	return &legend.Item{LegendItemID: legendID, ID: id, Role: legend.RoleMeasure}
}

func query(t *testing.T, mq *compilation.CompiledMultiQuery, id string) *compilation.CompiledQuery {
	t.Helper()
	q, ok := mq.QueryByID(id)
	require.True(t, ok, "query %s not found in\n%s", id, mq.Dump())
	return q
}

// assertReadsSubqueryColumns checks that every query reading other queries
// sees all of their select aliases and only references columns it can see.
func assertReadsSubqueryColumns(t *testing.T, mq *compilation.CompiledMultiQuery) {
	t.Helper()
	for _, q := range mq.Queries() {
		var froms []*compilation.FromObject
		for _, from := range q.JoinedFrom.Froms {
			if !from.IsSubquery() {
				continue
			}
			froms = append(froms, from)
			sub := query(t, mq, from.QueryID)
			var aliases, columns []string
			for _, s := range sub.Select {
				aliases = append(aliases, s.Alias)
			}
			for _, c := range from.Columns {
				columns = append(columns, c.Name)
			}
			assert.Equal(t, aliases, columns, "%s reads %s", q.ID, sub.ID)
		}
		if len(froms) == 0 || len(froms) != len(q.JoinedFrom.Froms) {
			continue
		}
		for _, f := range q.AllFormulas() {
			formula.Walk(f.Expr, func(n formula.Node, _ []formula.Node) bool {
				field, ok := n.(*formula.Field)
				if !ok {
					return true
				}
				found := false
				for _, from := range froms {
					found = found || from.HasColumn(field.Name)
				}
				assert.True(t, found, "%s references unknown column %s", q.ID, field.Name)
				return true
			})
		}
	}
}

// loopingSplitter always asks for another change, as a splitter that never
// reaches its fixpoint would.
type loopingSplitter struct{}

func (loopingSplitter) Name() string { return "looping" }

func (loopingSplitter) Split(_ *Context, q *compilation.CompiledQuery, _ []*compilation.CompiledQuery) (*compilation.Patch, error) {
	return &compilation.Patch{Replace: []*compilation.CompiledQuery{q.Clone()}}, nil
}

// resurrectingSplitter re-adds the first query it accepted.
type resurrectingSplitter struct{ seen string }

func (s *resurrectingSplitter) Name() string { return "resurrecting" }

func (s *resurrectingSplitter) Split(_ *Context, q *compilation.CompiledQuery, _ []*compilation.CompiledQuery) (*compilation.Patch, error) {
	if s.seen == "" {
		s.seen = q.ID
		return nil, nil
	}
	return &compilation.Patch{Replace: []*compilation.CompiledQuery{{ID: s.seen}}}, nil
}

func twoQueries(t *testing.T) *compilation.CompiledMultiQuery {
	t.Helper()
	mq, err := compilation.NewCompiledMultiQuery([]*compilation.CompiledQuery{
		{ID: "q1", Level: compilation.LevelSourceDB},
		{ID: "q2", Level: compilation.LevelSourceDB},
	}, nil)
	require.NoError(t, err)
	return mq
}

func TestMutatorBudget(t *testing.T) {
	m := &SplitterMultiQueryMutator{
		Splitters:     []Splitter{loopingSplitter{}},
		MaxIterations: 25,
		Logger:        logger.NewDiscardLogger(),
	}
	_, err := m.Mutate(twoQueries(t))
	require.Error(t, err)
	assert.True(t, exc.ErrPlanningBudgetExceeded.Is(err), "got %v", err)
	assert.Equal(t, "ERR.DS_API.PLANNING.BUDGET_EXCEEDED", exc.Code(err))
	assert.Contains(t, err.Error(), "(25)")
}

func TestMutatorRejectsPatchOnSkippedQuery(t *testing.T) {
	m := &SplitterMultiQueryMutator{Splitters: []Splitter{&resurrectingSplitter{}}, Logger: logger.NewDiscardLogger()}
	_, err := m.Mutate(twoQueries(t))
	assert.True(t, exc.ErrInvalidPatch.Is(err), "got %v", err)
}

func TestMutatorWithoutChanges(t *testing.T) {
	f := newFixture(t)
	mq := f.compile(t, row("city", 0), measure("population", 1))
	out := f.split(t, DefaultFactory{}, mq)
	assert.Equal(t, 1, out.Len())
	assert.Same(t, mq.Queries()[0], out.Queries()[0])
}

func TestFactoryFor(t *testing.T) {
	f, err := FactoryFor(connectors.FactoryCompeng)
	require.NoError(t, err)
	assert.IsType(t, DefaultFactory{}, f)

	f, err = FactoryFor(connectors.FactoryNativeWindow)
	require.NoError(t, err)
	assert.Equal(t, connectors.FactoryNativeWindow, f.Kind())

	_, err = FactoryFor("quantum")
	assert.True(t, exc.ErrUnknownMutatorFactory.Is(err), "got %v", err)
}

func TestQueryForkSplitterJoin(t *testing.T) {
	f := newFixture(t, &dataset.Field{ID: "country_area", Title: "CountryArea", CalcMode: dataset.CalcFormula, Formula: "SUM([Area] FIXED [Country])"})
	mq := f.compile(t, row("country", 0), row("city", 1), measure("country_area", 2), measure("population", 3))
	out := f.split(t, DefaultFactory{}, mq)
	require.Equal(t, 3, out.Len(), out.Dump())

	top := query(t, out, "q1")
	assert.Equal(t, []*compilation.CompiledQuery{top}, out.TopQueries())
	assert.Empty(t, top.GroupBy)
	assert.Equal(t, []string{"q2", "q3"}, top.SubqueryIDs())
	require.Len(t, top.JoinOn, 1)
	assert.Equal(t, compilation.JoinLeft, top.JoinOn[0].JoinType)
	assert.Equal(t, "q3", top.JoinOn[0].RightID)

	base := query(t, out, "q2")
	assert.Len(t, base.GroupBy, 2)
	assert.Equal(t, "SUM([population])", formula.Render(base.Select[len(base.Select)-1].Expr))

	fork := query(t, out, "q3")
	require.Len(t, fork.GroupBy, 1)
	assert.Equal(t, "[country]", formula.Render(fork.GroupBy[0].Expr))
	result := fork.Select[len(fork.Select)-1]
	assert.Equal(t, "SUM([area_km2])", formula.Render(result.Expr))

	// 顶层查询直接引用分叉子查询的结果列
	ref, ok := top.Select[2].Expr.(*formula.Field)
	require.True(t, ok)
	assert.Equal(t, result.Alias, ref.Name)
	for _, s := range top.Select {
		assert.IsType(t, &formula.Field{}, s.Expr)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, top.Meta.LegendItemIDs)
	assertReadsSubqueryColumns(t, out)
}

func TestQueryForkSplitterLift(t *testing.T) {
	f := newFixture(t, &dataset.Field{ID: "avg_city", Title: "AvgCity", CalcMode: dataset.CalcFormula, Formula: "AVG(SUM([Area] INCLUDE [City]))"})
	mq := f.compile(t, row("country", 0), measure("avg_city", 1))
	out := f.split(t, DefaultFactory{}, mq)
	require.Equal(t, 4, out.Len(), out.Dump())

	top := query(t, out, "q1")
	require.Len(t, top.JoinOn, 1)
	outerFork := query(t, out, top.JoinOn[0].RightID)
	require.Len(t, outerFork.SubqueryIDs(), 1)
	inner := query(t, out, outerFork.SubqueryIDs()[0])

	assert.Len(t, inner.GroupBy, 2)
	innerResult := inner.Select[len(inner.Select)-1]
	assert.Equal(t, "SUM([area_km2])", formula.Render(innerResult.Expr))

	avg, ok := outerFork.Select[len(outerFork.Select)-1].Expr.(*formula.FuncCall)
	require.True(t, ok)
	assert.Equal(t, "avg", avg.Name)
	arg, ok := avg.Args[0].(*formula.Field)
	require.True(t, ok)
	assert.Equal(t, innerResult.Alias, arg.Name)

	// 外层分叉按国家分组，引用内层查询的列
	require.Len(t, outerFork.GroupBy, 1)
	_, isField := outerFork.GroupBy[0].Expr.(*formula.Field)
	assert.True(t, isField)
	for _, q := range out.Queries() {
		for _, s := range q.AllFormulas() {
			assert.False(t, containsFork(s.Expr), "fork left in %s", q.ID)
		}
	}
	assertReadsSubqueryColumns(t, out)
}

func TestQueryForkSplitterIncompatibleNestedForks(t *testing.T) {
	f := newFixture(t, &dataset.Field{
		ID: "mixed", Title: "Mixed", CalcMode: dataset.CalcFormula,
		Formula: "AVG(SUM([Area] INCLUDE [City]) + MAX([Area] INCLUDE [Area]))",
	})
	mq, err := f.compiler.Compile(&legend.BlockLegend{Blocks: []*legend.BlockSpec{{
		Placement: &legend.RootPlacement{},
		Legend:    legend.New(row("country", 0), measure("mixed", 1)),
	}}})
	require.NoError(t, err)
	_, err = DefaultFactory{}.NewMutator(f.env, WithLogger(logger.NewDiscardLogger())).Mutate(mq)
	assert.True(t, exc.ErrLodIncompatibleDimensions.Is(err), "got %v", err)
}

func TestWindowSplitterCompeng(t *testing.T) {
	f := newFixture(t, &dataset.Field{ID: "running", Title: "Running", CalcMode: dataset.CalcFormula, Formula: "RSUM([Population])"})
	mq := f.compile(t, row("city", 0), measure("running", 1))
	out := f.split(t, DefaultFactory{}, mq)
	require.Equal(t, 2, out.Len(), out.Dump())

	top := query(t, out, "q1")
	assert.Equal(t, compilation.LevelCompeng, top.Level)
	assert.Empty(t, top.GroupBy)
	win, ok := top.Select[1].Expr.(*formula.WindowFuncCall)
	require.True(t, ok)
	_, argIsField := win.Args[0].(*formula.Field)
	assert.True(t, argIsField)

	inner := query(t, out, "q2")
	assert.Equal(t, compilation.LevelSourceDB, inner.Level)
	assert.Len(t, inner.GroupBy, 1)
	assert.False(t, hasWindows(inner))
	assertReadsSubqueryColumns(t, out)
}

func TestWindowSplitterOuterReadsExtractedColumns(t *testing.T) {
	f := newFixture(t,
		&dataset.Field{ID: "running", Title: "Running", CalcMode: dataset.CalcFormula, Formula: "RSUM([Population])"},
		&dataset.Field{ID: "share", Title: "Share", CalcMode: dataset.CalcFormula, Formula: "[Population] / SUM([Population] TOTAL)"},
	)
	items := []*legend.Item{
		row("country", 0), measure("running", 1), measure("share", 2),
		{LegendItemID: 3, ID: "population", Role: legend.RoleOrderBy, RoleSpec: &legend.OrderByRoleSpec{Direction: legend.Desc}},
	}
	for _, factory := range []Factory{DefaultFactory{}, NativeWindowFactory{}} {
		out := f.split(t, factory, f.compile(t, items...))
		require.Greater(t, out.Len(), 1, out.Dump())
		top := query(t, out, "q1")
		require.Len(t, top.JoinedFrom.Froms, 1)
		inner := query(t, out, top.JoinedFrom.Froms[0].QueryID)
		// 外层读取的列在所有改写完成之后生成，包含被提取的聚合
		assert.Len(t, top.JoinedFrom.Froms[0].Columns, len(inner.Select))
		assertReadsSubqueryColumns(t, out)
	}
}

func TestWindowSplitterNative(t *testing.T) {
	f := newFixture(t, &dataset.Field{
		ID: "running", Title: "Running", CalcMode: dataset.CalcFormula,
		Formula: "RSUM([Population] BEFORE FILTER BY [Country])",
	})
	items := []*legend.Item{
		row("country", 0), row("city", 1), measure("running", 2),
		{LegendItemID: 3, ID: "country", Role: legend.RoleFilter, RoleSpec: &legend.FilterRoleSpec{Operation: legend.FilterEq, Values: []interface{}{"RU"}}},
	}

	out := f.split(t, NativeWindowFactory{}, f.compile(t, items...))
	require.Equal(t, 3, out.Len(), out.Dump())
	for _, q := range out.Queries() {
		assert.Equal(t, compilation.LevelSourceDB, q.Level)
	}
	top := query(t, out, "q1")
	require.Len(t, top.Filters, 1)
	assert.False(t, hasWindows(top))
	assert.Equal(t, "country", top.Filters[0].OriginalFieldID)

	grouped := 0
	for _, q := range out.Queries() {
		if len(q.GroupBy) > 0 {
			grouped++
			assert.Empty(t, q.Filters, "filter %s must apply after the window", q.ID)
		}
	}
	assert.Equal(t, 1, grouped)

	// 内存计算模式下过滤保留在窗口之上的一层
	out = f.split(t, DefaultFactory{}, f.compile(t, items...))
	require.Equal(t, 2, out.Len(), out.Dump())
	top = query(t, out, "q1")
	assert.Equal(t, compilation.LevelCompeng, top.Level)
	assert.Len(t, top.Filters, 1)
	assertReadsSubqueryColumns(t, out)
}

func TestWindowSplitterKeepsPlainFiltersInside(t *testing.T) {
	f := newFixture(t, &dataset.Field{ID: "running", Title: "Running", CalcMode: dataset.CalcFormula, Formula: "RSUM([Population])"})
	out := f.split(t, DefaultFactory{}, f.compile(t,
		row("city", 0), measure("running", 1),
		&legend.Item{LegendItemID: 2, ID: "country", Role: legend.RoleFilter, RoleSpec: &legend.FilterRoleSpec{Operation: legend.FilterEq, Values: []interface{}{"RU"}}},
	))
	assert.Empty(t, query(t, out, "q1").Filters)
	assert.Len(t, query(t, out, "q2").Filters, 1)
}

func TestGroupByNormalizer(t *testing.T) {
	f := newFixture(t)
	ids := []string{"cities"}
	info := func(alias string, expr formula.Node) *compilation.CompiledFormulaInfo {
		return &compilation.CompiledFormulaInfo{Expr: expr, Alias: alias, FromIDs: ids}
	}
	city := info("e1", formula.NewField("city"))
	q := &compilation.CompiledQuery{
		ID:    "q1",
		Level: compilation.LevelSourceDB,
		Select: []*compilation.CompiledFormulaInfo{
			city,
			info("e2", formula.NewFuncCall("upper", formula.NewField("country"))),
			info("e3", formula.NewFuncCall("sum", formula.NewField("population"))),
			info("e4", formula.NewInteger(1)),
		},
		GroupBy: []*compilation.CompiledFormulaInfo{city},
	}
	mq, err := compilation.NewCompiledMultiQuery([]*compilation.CompiledQuery{q}, nil)
	require.NoError(t, err)

	m := &SplitterMultiQueryMutator{Env: f.env, Splitters: []Splitter{GroupByNormalizer{}}, Logger: logger.NewDiscardLogger()}
	out, err := m.Mutate(mq)
	require.NoError(t, err)
	nq := query(t, out, "q1")
	require.Len(t, nq.GroupBy, 2)
	assert.Equal(t, "e2", nq.GroupBy[1].Alias)
	assert.Empty(t, UngroupedSelect(nq, f.env))
	// 原查询不受影响
	assert.Len(t, q.GroupBy, 1)
}

func TestLevelPropagator(t *testing.T) {
	mq, err := compilation.NewCompiledMultiQuery([]*compilation.CompiledQuery{
		{ID: "q3", Level: compilation.LevelCompeng},
		{ID: "q1", Level: compilation.LevelSourceDB, JoinedFrom: compilation.JoinedFromObject{
			RootFromID: "q2", Froms: []*compilation.FromObject{{ID: "q2", QueryID: "q2"}},
		}},
		{ID: "q2", Level: compilation.LevelSourceDB, JoinedFrom: compilation.JoinedFromObject{
			RootFromID: "q3", Froms: []*compilation.FromObject{{ID: "q3", QueryID: "q3"}},
		}},
	}, nil)
	require.NoError(t, err)
	m := &SplitterMultiQueryMutator{Splitters: []Splitter{LevelPropagator{}}, Logger: logger.NewDiscardLogger()}
	out, err := m.Mutate(mq)
	require.NoError(t, err)
	for _, q := range out.Queries() {
		assert.Equal(t, compilation.LevelCompeng, q.Level, q.ID)
	}
}
