package compilation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/connectors/all"
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
)

func citiesDataset(t *testing.T, extra ...*dataset.Field) *dataset.Dataset {
	t.Helper()
	fields := []*dataset.Field{
		{ID: "city", Title: "City", TypeName: "string"},
		{ID: "country", Title: "Country", TypeName: "string"},
		{ID: "population", Title: "Population", TypeName: "integer", Aggregation: dataset.AggSum},
		{ID: "area", Title: "Area", Source: "area_km2", TypeName: "float"},
		{ID: "density", Title: "Density", CalcMode: dataset.CalcFormula, Formula: "[Population] / SUM([Area])"},
		{ID: "mult", Title: "Mult", CalcMode: dataset.CalcParameter, TypeName: "integer", DefaultValue: 2},
	}
	ds, err := dataset.New("cities", "cities", append(fields, extra...)...)
	require.NoError(t, err)
	return ds
}

func newTestCompiler(t *testing.T, ds *dataset.Dataset) *Compiler {
	t.Helper()
	reg, err := all.Registry()
	require.NoError(t, err)
	return NewCompiler(ds, reg, WithLogger(logger.NewDiscardLogger()))
}

func singleBlock(items ...*legend.Item) *legend.BlockLegend {
	return &legend.BlockLegend{Blocks: []*legend.BlockSpec{{
		BlockID:   0,
		Placement: &legend.RootPlacement{},
		Legend:    legend.New(items...),
	}}}
}

func compileOne(t *testing.T, c *Compiler, bl *legend.BlockLegend) *CompiledQuery {
	t.Helper()
	mq, err := c.Compile(bl)
	require.NoError(t, err)
	require.Equal(t, 1, mq.Len())
	return mq.Queries()[0]
}

func TestCompileSelectAndGroupBy(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	q := compileOne(t, c, singleBlock(
		&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "population", Role: legend.RoleMeasure},
		&legend.Item{LegendItemID: 2, ID: "population", Role: legend.RoleOrderBy, RoleSpec: &legend.OrderByRoleSpec{Direction: legend.Desc}},
	))

	assert.Equal(t, "q1", q.ID)
	assert.Equal(t, LevelSourceDB, q.Level)
	require.Len(t, q.Select, 2)
	assert.Equal(t, "[city]", formula.Render(q.Select[0].Expr))
	assert.Equal(t, "SUM([population])", formula.Render(q.Select[1].Expr))
	assert.Equal(t, []string{"cities"}, q.Select[0].FromIDs)
	assert.Equal(t, []int{0, 1}, q.Meta.LegendItemIDs)

	require.Len(t, q.GroupBy, 1)
	assert.Equal(t, q.Select[0].Alias, q.GroupBy[0].Alias)

	require.Len(t, q.OrderBy, 1)
	assert.Equal(t, legend.Desc, q.OrderBy[0].Direction)
	assert.Equal(t, q.Select[1].Alias, q.OrderBy[0].Alias)

	from, ok := q.JoinedFrom.From("cities")
	require.True(t, ok)
	assert.Equal(t, "cities", from.Table)
	assert.True(t, from.HasColumn("area_km2"))
}

func TestCompileWithoutAggregatesHasNoGroupBy(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	q := compileOne(t, c, singleBlock(
		&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "area", Role: legend.RoleRow},
	))
	assert.Empty(t, q.GroupBy)
	assert.Equal(t, "[area_km2]", formula.Render(q.Select[1].Expr))
}

func TestCompileFormulaAndParameters(t *testing.T) {
	ds := citiesDataset(t, &dataset.Field{ID: "scaled", Title: "Scaled", CalcMode: dataset.CalcFormula, Formula: "[Population] * [Mult]"})
	c := newTestCompiler(t, ds)

	q := compileOne(t, c, singleBlock(&legend.Item{LegendItemID: 0, ID: "scaled", Role: legend.RoleMeasure}))
	assert.Equal(t, "SUM([population]) * 2", formula.Render(q.Select[0].Expr))

	q = compileOne(t, c, singleBlock(
		&legend.Item{LegendItemID: 0, ID: "scaled", Role: legend.RoleMeasure},
		&legend.Item{LegendItemID: 1, ID: "mult", Role: legend.RoleParameter, RoleSpec: &legend.ParameterRoleSpec{Value: "3"}},
	))
	assert.Equal(t, "SUM([population]) * 3", formula.Render(q.Select[0].Expr))

	_, err := c.Compile(singleBlock(
		&legend.Item{LegendItemID: 0, ID: "scaled", Role: legend.RoleMeasure},
		&legend.Item{LegendItemID: 1, ID: "mult", Role: legend.RoleParameter, RoleSpec: &legend.ParameterRoleSpec{Value: "three"}},
	))
	assert.True(t, exc.ErrParameterValue.Is(err), "got %v", err)
}

func TestCompileFieldErrors(t *testing.T) {
	ds := citiesDataset(t,
		&dataset.Field{ID: "a", Title: "A", CalcMode: dataset.CalcFormula, Formula: "[B] + 1"},
		&dataset.Field{ID: "b", Title: "B", CalcMode: dataset.CalcFormula, Formula: "[A] * 2"},
		&dataset.Field{ID: "ghost", Title: "Ghost", CalcMode: dataset.CalcFormula, Formula: "[nowhere] + 1"},
	)
	c := newTestCompiler(t, ds)

	_, err := c.Compile(singleBlock(&legend.Item{LegendItemID: 0, ID: "a", Role: legend.RoleRow}))
	require.Error(t, err)
	assert.True(t, exc.ErrFieldRecursion.Is(err), "got %v", err)

	_, err = c.Compile(singleBlock(&legend.Item{LegendItemID: 0, ID: "ghost", Role: legend.RoleRow}))
	assert.True(t, exc.ErrUnknownField.Is(err), "got %v", err)

	_, err = c.Compile(singleBlock(&legend.Item{LegendItemID: 0, ID: "missing", Role: legend.RoleRow}))
	assert.True(t, exc.ErrFieldNotFound.Is(err), "got %v", err)
}

func TestCompileFilters(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	filter := func(id string, op legend.FilterOp, values ...interface{}) *legend.Item {
		return &legend.Item{LegendItemID: 9, ID: id, Role: legend.RoleFilter, RoleSpec: &legend.FilterRoleSpec{Operation: op, Values: values}}
	}
	row := &legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow}

	tests := []struct {
		name   string
		filter *legend.Item
		want   string
		kind   *exc.Kind
	}{
		{name: "eq", filter: filter("country", legend.FilterEq, "RU"), want: `[country] = "RU"`},
		{name: "gt coerces", filter: filter("area", legend.FilterGt, "10.5"), want: `[area_km2] > 10.5`},
		{name: "in", filter: filter("country", legend.FilterIn, "RU", "KZ"), want: `[country] IN ("RU", "KZ")`},
		{name: "isnull", filter: filter("country", legend.FilterIsNull), want: `[country] IS NULL`},
		{name: "startswith", filter: filter("city", legend.FilterStartsWith, "Mo"), want: `STARTSWITH([city], "Mo")`},
		{name: "between", filter: filter("area", legend.FilterBetween, 1, 100), want: `[area_km2] BETWEEN 1.0 AND 100.0`},
		{name: "measure", filter: filter("population", legend.FilterGte, 1000), want: `SUM([population]) >= 1000`},
		{name: "eq without value", filter: filter("country", legend.FilterEq), kind: exc.ErrFilterArgumentCount},
		{name: "between with one value", filter: filter("area", legend.FilterBetween, 1), kind: exc.ErrFilterArgumentCount},
		{name: "bad value", filter: filter("area", legend.FilterGt, "wide"), kind: exc.ErrFilterValue},
		{name: "unknown field", filter: filter("nope", legend.FilterEq, 1), kind: exc.ErrFieldNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mq, err := c.Compile(singleBlock(row, tt.filter))
			if tt.kind != nil {
				assert.True(t, tt.kind.Is(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			q := mq.Queries()[0]
			require.Len(t, q.Filters, 1)
			assert.Equal(t, tt.want, formula.Render(q.Filters[0].Expr))
		})
	}
}

func TestCompileIgnoresNonexistentFilters(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	bl := singleBlock(
		&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "nope", Role: legend.RoleFilter, RoleSpec: &legend.FilterRoleSpec{Operation: legend.FilterEq, Values: []interface{}{1}}},
	)
	bl.Blocks[0].IgnoreNonexistentFilters = true
	q := compileOne(t, c, bl)
	assert.Empty(t, q.Filters)
}

func TestCompileMeasureFilterUnsupported(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	_, err := c.Compile(singleBlock(
		&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleDistinct},
		&legend.Item{LegendItemID: 1, ID: "population", Role: legend.RoleFilter, RoleSpec: &legend.FilterRoleSpec{Operation: legend.FilterGt, Values: []interface{}{1}}},
	))
	assert.True(t, exc.ErrMeasureFilterUnsupported.Is(err), "got %v", err)
}

func TestCompileGroupByPolicy(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	items := []*legend.Item{
		{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
		{LegendItemID: 1, ID: "population", Role: legend.RoleMeasure},
	}

	bl := singleBlock(items...)
	bl.Blocks[0].GroupByPolicy = legend.GroupByDisable
	_, err := c.Compile(bl)
	assert.True(t, exc.ErrInvalidGroupByConfiguration.Is(err), "got %v", err)

	bl = singleBlock(items[0])
	bl.Blocks[0].GroupByPolicy = legend.GroupByForce
	q := compileOne(t, c, bl)
	assert.Len(t, q.GroupBy, 1)

	bl = singleBlock(&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleDistinct})
	q = compileOne(t, c, bl)
	assert.True(t, q.Meta.Distinct)
	assert.Empty(t, q.GroupBy)
}

func TestCompileEmptyQuery(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	filterOnly := &legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleFilter, RoleSpec: &legend.FilterRoleSpec{Operation: legend.FilterEq, Values: []interface{}{"x"}}}

	_, err := c.Compile(singleBlock(filterOnly))
	assert.True(t, exc.ErrEmptyQuery.Is(err), "got %v", err)

	bl := singleBlock(filterOnly)
	bl.Blocks[0].EmptyQueryMode = legend.EmptyQueryEmptyRow
	q := compileOne(t, c, bl)
	assert.Empty(t, q.Select)
	assert.Len(t, q.Filters, 1)
}

func TestCompileRangeAndTemplate(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	q := compileOne(t, c, singleBlock(
		&legend.Item{LegendItemID: 0, ID: "area", Role: legend.RoleRange, RoleSpec: &legend.RangeRoleSpec{RangeType: legend.RangeMax}},
		&legend.Item{LegendItemID: 1, Role: legend.RoleTemplate, RoleSpec: &legend.TemplateRoleSpec{Template: "Total: {Population}"}},
	))
	require.Len(t, q.Select, 2)
	assert.Equal(t, "MAX([area_km2])", formula.Render(q.Select[0].Expr))
	assert.Equal(t, `CONCAT("Total: ", STR(SUM([population])))`, formula.Render(q.Select[1].Expr))
}

func TestCompileWindowValidation(t *testing.T) {
	ds := citiesDataset(t,
		&dataset.Field{ID: "running", Title: "Running", CalcMode: dataset.CalcFormula, Formula: "RSUM([Population])"},
		&dataset.Field{ID: "bad_running", Title: "BadRunning", CalcMode: dataset.CalcFormula, Formula: "RSUM([Area])"},
	)
	c := newTestCompiler(t, ds)

	q := compileOne(t, c, singleBlock(
		&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "running", Role: legend.RoleMeasure},
	))
	win, ok := q.Select[1].Expr.(*formula.WindowFuncCall)
	require.True(t, ok)
	// 默认按维度排序
	require.Len(t, win.Ordering.Items, 1)
	assert.Equal(t, "[city]", formula.Render(win.Ordering.Items[0].Expr))

	_, err := c.Compile(singleBlock(
		&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "bad_running", Role: legend.RoleMeasure},
	))
	assert.True(t, exc.ErrWindowFunctionWOAggregation.Is(err), "got %v", err)
}

func TestCompileLodForks(t *testing.T) {
	ds := citiesDataset(t,
		&dataset.Field{ID: "country_total", Title: "CountryTotal", CalcMode: dataset.CalcFormula, Formula: "SUM([Area] FIXED [Country])"},
		&dataset.Field{ID: "avg_city", Title: "AvgCity", CalcMode: dataset.CalcFormula, Formula: "AVG(SUM([Area] INCLUDE [City]))"},
	)
	c := newTestCompiler(t, ds)

	_, err := c.Compile(singleBlock(
		&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "country_total", Role: legend.RoleMeasure},
	))
	assert.True(t, exc.ErrLodInvalidTopLevelDimensions.Is(err), "got %v", err)

	q := compileOne(t, c, singleBlock(
		&legend.Item{LegendItemID: 0, ID: "country", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "city", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 2, ID: "country_total", Role: legend.RoleMeasure},
	))
	fork, ok := q.Select[2].Expr.(*formula.QueryFork)
	require.True(t, ok)
	assert.Len(t, fork.Dims, 1)
	assert.Equal(t, "SUM([area_km2])", formula.Render(fork.Result))

	q = compileOne(t, c, singleBlock(
		&legend.Item{LegendItemID: 0, ID: "country", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "avg_city", Role: legend.RoleMeasure},
	))
	outer, ok := q.Select[1].Expr.(*formula.QueryFork)
	require.True(t, ok)
	assert.Len(t, outer.Dims, 1)
	avg, ok := outer.Result.(*formula.FuncCall)
	require.True(t, ok)
	inner, ok := avg.Args[0].(*formula.QueryFork)
	require.True(t, ok)
	assert.Len(t, inner.Dims, 2)
}

func TestCompileTotals(t *testing.T) {
	ds := citiesDataset(t, &dataset.Field{ID: "running", Title: "Running", CalcMode: dataset.CalcFormula, Formula: "RSUM([Population]) + 1"})
	c := newTestCompiler(t, ds)
	q := compileOne(t, c, singleBlock(
		&legend.Item{LegendItemID: 0, ID: "running", Role: legend.RoleTotal},
		&legend.Item{LegendItemID: 1, ID: "population", Role: legend.RoleTotal},
	))
	assert.Equal(t, "NULL + 1", formula.Render(q.Select[0].Expr))
	assert.Equal(t, "SUM([population])", formula.Render(q.Select[1].Expr))
}

func TestCompileMultipleBlocks(t *testing.T) {
	c := newTestCompiler(t, citiesDataset(t))
	l := legend.New(
		&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
		&legend.Item{LegendItemID: 1, ID: "population", Role: legend.RoleMeasure},
		&legend.Item{LegendItemID: 2, ID: "population", Role: legend.RoleTotal},
	)
	root := 0
	limit := 5
	mq, err := c.Compile(&legend.BlockLegend{Blocks: []*legend.BlockSpec{
		{BlockID: 0, Placement: &legend.RootPlacement{}, Legend: l, LegendItemIDs: []int{0, 1}, Limit: &limit},
		{BlockID: 1, ParentBlockID: &root, Placement: &legend.AfterPlacement{}, Legend: l, LegendItemIDs: []int{2}},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, mq.Len())
	require.Len(t, mq.Blocks, 2)

	b, ok := mq.BlockForQuery("q2")
	require.True(t, ok)
	assert.Equal(t, 1, b.BlockID)
	assert.Equal(t, []int{2}, b.LegendItemIDs)

	q1, _ := mq.QueryByID("q1")
	q2, _ := mq.QueryByID("q2")
	assert.Equal(t, &limit, q1.Limit)
	assert.Empty(t, q2.GroupBy)
	assert.NotEqual(t, q1.Select[0].Alias, q2.Select[0].Alias)
	assert.Equal(t, "q3", mq.QueryIDs.Next())
}

func TestLiteralFor(t *testing.T) {
	n, err := LiteralFor("42", formula.TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n.(*formula.LiteralInteger).Value)

	n, err = LiteralFor("2024-03-01", formula.TypeDate)
	require.NoError(t, err)
	assert.IsType(t, &formula.LiteralDate{}, n)

	n, err = LiteralFor(nil, formula.TypeString)
	require.NoError(t, err)
	assert.IsType(t, &formula.Null{}, n)

	_, err = LiteralFor("nope", formula.TypeUUID)
	assert.Error(t, err)
}
