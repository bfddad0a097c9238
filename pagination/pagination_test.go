package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/merging"
)

func twoBlocks(meta legend.BlockLegendMeta) *legend.BlockLegend {
	return &legend.BlockLegend{
		Meta: meta,
		Blocks: []*legend.BlockSpec{
			{BlockID: 0, Placement: &legend.RootPlacement{}},
			{BlockID: 1, ParentBlockID: intPtr(0), Placement: &legend.AfterPlacement{}, Limit: intPtr(3)},
		},
	}
}

func TestPrePaginateSingleBlock(t *testing.T) {
	bl := &legend.BlockLegend{
		Meta:   legend.BlockLegendMeta{Limit: intPtr(10), Offset: intPtr(5)},
		Blocks: []*legend.BlockSpec{{BlockID: 0, Placement: &legend.RootPlacement{}}},
	}
	out := PrePaginate(bl)
	assert.Equal(t, 10, *out.Blocks[0].Limit)
	assert.Equal(t, 5, *out.Blocks[0].Offset)
	assert.Nil(t, out.Meta.Limit)
	assert.Nil(t, out.Meta.Offset)
	// 原对象不变
	assert.Nil(t, bl.Blocks[0].Limit)
	assert.Equal(t, 10, *bl.Meta.Limit)

	again := PrePaginate(out)
	assert.Equal(t, 10, *again.Blocks[0].Limit)
	assert.Nil(t, again.Meta.Limit)
}

func TestPrePaginateSingleBlockWithOwnLimit(t *testing.T) {
	bl := &legend.BlockLegend{
		Meta:   legend.BlockLegendMeta{Limit: intPtr(10)},
		Blocks: []*legend.BlockSpec{{BlockID: 0, Placement: &legend.RootPlacement{}, Limit: intPtr(100)}},
	}
	out := PrePaginate(bl)
	assert.Equal(t, 100, *out.Blocks[0].Limit)
	assert.Equal(t, 10, *out.Meta.Limit)
}

func TestPrePaginateMultipleBlocks(t *testing.T) {
	out := PrePaginate(twoBlocks(legend.BlockLegendMeta{Limit: intPtr(10), Offset: intPtr(5)}))
	assert.Equal(t, 15, *out.Blocks[0].Limit)
	assert.Nil(t, out.Blocks[0].Offset)
	assert.Equal(t, 3, *out.Blocks[1].Limit)
	assert.Equal(t, 10, *out.Meta.Limit)
	assert.Equal(t, 5, *out.Meta.Offset)

	out = PrePaginate(twoBlocks(legend.BlockLegendMeta{Offset: intPtr(5)}))
	assert.Nil(t, out.Blocks[0].Limit)
	assert.Equal(t, 5, *out.Meta.Offset)
}

func stream(n int, offset, limit *int) *merging.MergedQueryDataStream {
	rows := make([]merging.MergedQueryDataRow, n)
	for i := range rows {
		rows[i] = merging.MergedQueryDataRow{Data: []interface{}{i}, LegendItemIDs: []int{1}}
	}
	return &merging.MergedQueryDataStream{Rows: rows, Meta: merging.MergedQueryMetaInfo{Offset: offset, Limit: limit}}
}

func first(s *merging.MergedQueryDataStream) []int {
	out := make([]int, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Data[0].(int)
	}
	return out
}

func TestPostPaginateExact(t *testing.T) {
	const n = 30
	all := first(stream(n, nil, nil))
	cases := []struct {
		offset, limit *int
	}{
		{nil, intPtr(10)},
		{intPtr(0), intPtr(10)},
		{intPtr(5), intPtr(10)},
		{intPtr(25), intPtr(10)},
		{intPtr(30), intPtr(10)},
		{intPtr(40), intPtr(10)},
		{intPtr(5), nil},
		{intPtr(3), intPtr(0)},
	}
	for _, tc := range cases {
		got := PostPaginate(stream(n, tc.offset, tc.limit))
		start := 0
		if tc.offset != nil {
			start = *tc.offset
		}
		if start > n {
			start = n
		}
		end := n
		if tc.limit != nil && start+*tc.limit < n {
			end = start + *tc.limit
		}
		assert.Equal(t, all[start:end], first(got))
		assert.Nil(t, got.Meta.Offset)
		assert.Nil(t, got.Meta.Limit)
		assert.Equal(t, first(got), first(PostPaginate(got)))
	}
}

func TestPostPaginateNoop(t *testing.T) {
	s := stream(3, nil, nil)
	assert.Same(t, s, PostPaginate(s))
}
