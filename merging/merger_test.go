package merging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/execution"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/translation"
)

func intPtr(v int) *int { return &v }

func rows(data ...dataset.Row) *dataset.Rows {
	return &dataset.Rows{Rows: data}
}

func data(s *MergedQueryDataStream) [][]interface{} {
	out := make([][]interface{}, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Data
	}
	return out
}

func TestMergeSingleBlock(t *testing.T) {
	m := NewMerger(logger.NewDiscardLogger())
	s, err := m.Merge(&QueryUnion{
		Blocks: []*BlockResult{{
			BlockID:             0,
			Placement:           &legend.RootPlacement{},
			LegendItemIDs:       []int{1, 2},
			Rows:                rows(dataset.Row{"a", int64(1)}, dataset.Row{"b", int64(2)}),
			QueryType:           legend.QueryTypeInternal,
			DebugQuery:          "SELECT 1",
			TargetConnectionIDs: []string{"conn1"},
		}},
		Limit: intPtr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, s.LegendItemIDs)
	assert.Equal(t, [][]interface{}{{"a", int64(1)}, {"b", int64(2)}}, data(s))
	assert.Equal(t, []int{1, 2}, s.Rows[0].LegendItemIDs)
	assert.Equal(t, 10, *s.Meta.Limit)
	assert.Nil(t, s.Meta.Offset)
	assert.Equal(t, []string{"conn1"}, s.Meta.TargetConnectionIDs)
	assert.Equal(t, []BlockMetaInfo{{BlockID: 0, QueryType: legend.QueryTypeInternal, DebugQuery: "SELECT 1"}}, s.Meta.Blocks)
}

func TestMergeAfterWithTotals(t *testing.T) {
	m := NewMerger(logger.NewDiscardLogger())
	s, err := m.Merge(&QueryUnion{Blocks: []*BlockResult{
		{
			BlockID:             0,
			Placement:           &legend.RootPlacement{},
			LegendItemIDs:       []int{1, 2},
			Rows:                rows(dataset.Row{"a", int64(1)}, dataset.Row{"b", int64(2)}),
			TargetConnectionIDs: []string{"conn1"},
		},
		{
			BlockID:       1,
			ParentBlockID: intPtr(0),
			Placement: &legend.AfterPlacement{DimensionValues: []legend.DimensionValueSpec{
				{LegendItemID: 1, Value: "Total"},
			}},
			LegendItemIDs:       []int{2},
			Rows:                rows(dataset.Row{int64(3)}),
			TargetConnectionIDs: []string{"conn1", "conn2"},
		},
	}})
	require.NoError(t, err)
	assert.Nil(t, s.LegendItemIDs)
	assert.Equal(t, [][]interface{}{{"a", int64(1)}, {"b", int64(2)}, {int64(3), "Total"}}, data(s))
	assert.Equal(t, []int{2, 1}, s.Rows[2].LegendItemIDs)
	v, ok := s.Rows[2].Get(1)
	assert.True(t, ok)
	assert.Equal(t, "Total", v)
	assert.Equal(t, []string{"conn1", "conn2"}, s.Meta.TargetConnectionIDs)
	assert.Len(t, s.Meta.Blocks, 2)
}

func TestMergeDispersedAfter(t *testing.T) {
	m := NewMerger(logger.NewDiscardLogger())
	s, err := m.Merge(&QueryUnion{Blocks: []*BlockResult{
		{
			BlockID:       0,
			Placement:     &legend.RootPlacement{},
			LegendItemIDs: []int{1, 2, 3},
			Rows: rows(
				dataset.Row{"A", "a1", int64(10)},
				dataset.Row{"A", "a2", int64(20)},
				dataset.Row{"B", "b1", int64(5)},
			),
		},
		{
			BlockID:       1,
			ParentBlockID: intPtr(0),
			Placement:     &legend.DispersedAfterPlacement{ParentDimensions: []int{1}, ChildDimensions: []int{4}},
			LegendItemIDs: []int{4, 5},
			Rows: rows(
				dataset.Row{"B", int64(5)},
				dataset.Row{"A", int64(30)},
				dataset.Row{"C", int64(0)},
			),
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{"A", "a1", int64(10)},
		{"A", "a2", int64(20)},
		{"A", int64(30)},
		{"B", "b1", int64(5)},
		{"B", int64(5)},
		{"C", int64(0)},
	}, data(s))
}

func TestMergeRootErrors(t *testing.T) {
	m := NewMerger(logger.NewDiscardLogger())
	_, err := m.Merge(&QueryUnion{Blocks: []*BlockResult{{BlockID: 0, Placement: &legend.AfterPlacement{}}}})
	assert.True(t, exc.ErrNoRootBlock.Is(err))

	_, err = m.Merge(&QueryUnion{Blocks: []*BlockResult{
		{BlockID: 0, Placement: &legend.RootPlacement{}},
		{BlockID: 1, Placement: &legend.RootPlacement{}},
	}})
	assert.True(t, exc.ErrMultipleRootBlocks.Is(err))
}

func TestEvolveCopies(t *testing.T) {
	s := &MergedQueryDataStream{
		Rows:          []MergedQueryDataRow{{Data: []interface{}{1}, LegendItemIDs: []int{1}}},
		LegendItemIDs: []int{1},
		Meta:          MergedQueryMetaInfo{Limit: intPtr(1), TargetConnectionIDs: []string{"c"}},
	}
	out := s.Evolve(nil, func(m *MergedQueryMetaInfo) {
		m.Limit = nil
		m.TargetConnectionIDs[0] = "x"
	})
	assert.Equal(t, 0, out.Len())
	assert.Nil(t, out.Meta.Limit)
	assert.Equal(t, 1, *s.Meta.Limit)
	assert.Equal(t, "c", s.Meta.TargetConnectionIDs[0])
	assert.Equal(t, 1, s.Len())
}

func TestCollect(t *testing.T) {
	source := &translation.TranslatedQuery{ID: "q2", SQL: "SELECT x"}
	top := &translation.TranslatedQuery{
		ID:        "q1",
		Level:     compilation.LevelCompeng,
		SQL:       "COMPENG SELECT x FROM q2",
		DependsOn: []string{"q2"},
		Query:     &compilation.CompiledQuery{Meta: compilation.QueryMeta{QueryType: legend.QueryTypeExternal}},
	}
	tmq := translation.NewTranslatedMultiQuery([]*translation.TranslatedQuery{source, top}, []*compilation.CompiledBlock{
		{BlockID: 7, QueryID: "q1", Placement: &legend.RootPlacement{}, LegendItemIDs: []int{1}},
	})
	results := execution.Results{
		"q1": rows(dataset.Row{int64(1)}),
		"q2": rows(dataset.Row{int64(1)}),
	}
	u, err := Collect(tmq, results, legend.BlockLegendMeta{Offset: intPtr(2)}, "conn")
	require.NoError(t, err)
	require.Len(t, u.Blocks, 1)
	b := u.Blocks[0]
	assert.Equal(t, 7, b.BlockID)
	assert.Equal(t, legend.QueryTypeExternal, b.QueryType)
	assert.Equal(t, "-- q2\nSELECT x\n-- q1\nCOMPENG SELECT x FROM q2", b.DebugQuery)
	assert.Equal(t, []string{"conn"}, b.TargetConnectionIDs)
	assert.Equal(t, 2, *u.Offset)

	_, err = Collect(tmq, execution.Results{}, legend.BlockLegendMeta{})
	assert.True(t, exc.ErrPlanningDependency.Is(err))
}
