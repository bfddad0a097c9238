package compeng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/exc"
)

func aggregate(t *testing.T, name string, rows ...[]interface{}) interface{} {
	t.Helper()
	argc := 0
	if len(rows) > 0 {
		argc = len(rows[0])
	}
	spec, err := LookupAggregation(name, argc)
	require.NoError(t, err)
	agg := spec.Aggregator.New()
	for _, r := range rows {
		spec.Feed(agg, r)
	}
	return agg.Result()
}

func values(vs ...interface{}) [][]interface{} {
	out := make([][]interface{}, len(vs))
	for i, v := range vs {
		out[i] = []interface{}{v}
	}
	return out
}

func TestAggregators(t *testing.T) {
	tests := []struct {
		name string
		in   [][]interface{}
		want interface{}
	}{
		{"sum", values(int64(1), 2, nil), int64(3)},
		{"sum", values(int64(1), 2.5), 3.5},
		{"sum", values(nil, nil), nil},
		{"avg", values(1, 2, nil), 1.5},
		{"min", values("b", nil, "a"), "a"},
		{"max", values(int64(3), int64(7), nil), int64(7)},
		{"count", values(1, nil, 3), int64(2)},
		{"countd", values("a", "b", "a", nil), int64(2)},
		{"countd", values(int64(1), 1.0), int64(1)},
		{"median", values(4, 1, 3, 2), 2.5},
		{"median", values(5, 1, 3), 3.0},
		{"varp", values(1, 3), 1.0},
		{"var", values(1, 3), 2.0},
		{"stdevp", values(1, 3), 1.0},
		{"stdev", values(5), nil},
		{"sum_if", [][]interface{}{{1, true}, {2, false}, {4, nil}, {8, true}}, int64(9)},
		{"count_if", [][]interface{}{{true}, {false}, {nil}, {true}}, int64(2)},
		{"countd_if", [][]interface{}{{"a", true}, {"b", false}, {"a", true}}, int64(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aggregate(t, tt.name, tt.in...))
		})
	}
}

func TestCountRows(t *testing.T) {
	assert.Equal(t, int64(3), aggregate(t, "count", []interface{}{}, []interface{}{}, []interface{}{}))
	assert.Equal(t, int64(0), aggregate(t, "count"))
}

func TestUnknownAggregation(t *testing.T) {
	_, err := LookupAggregation("percentile", 1)
	assert.True(t, exc.ErrCompeng.Is(err))
}

func TestRank(t *testing.T) {
	vals := values(int64(10), int64(30), int64(10), int64(20))
	assert.Equal(t, []interface{}{int64(3), int64(1), int64(3), int64(2)}, rank("rank", vals))
	assert.Equal(t, []interface{}{int64(3), int64(1), int64(3), int64(2)}, rank("rank_dense", vals))
	assert.Equal(t, []interface{}{int64(3), int64(1), int64(4), int64(2)}, rank("rank_unique", vals))

	asc := [][]interface{}{{int64(10), "asc"}, {int64(30), "asc"}, {int64(20), "asc"}}
	assert.Equal(t, []interface{}{0.0, 1.0, 0.5}, rank("rank_percentile", asc))
}

func TestMoving(t *testing.T) {
	vals := [][]interface{}{{int64(1), 1}, {int64(2), 1}, {int64(3), 1}, {int64(4), 1}}
	out, err := moving("sum", vals)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(3), int64(5), int64(7)}, out)

	for i := range vals {
		vals[i][1] = -1
	}
	out, err = moving("sum", vals)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(3), int64(5), int64(7), int64(4)}, out)
}
