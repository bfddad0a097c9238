package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/formula"
)

func parse(t *testing.T, text string) formula.Node {
	t.Helper()
	node, err := formula.Parse(text)
	require.NoError(t, err)
	return node
}

func fields(names ...string) []formula.Node {
	out := make([]formula.Node, len(names))
	for i, name := range names {
		out[i] = formula.NewField(name)
	}
	return out
}

func assertSameTree(t *testing.T, want string, got formula.Node) {
	t.Helper()
	expected := parse(t, want)
	assert.True(t, formula.Equal(expected, got), "want %s, got %s", formula.Render(expected), formula.Render(got))
}

func TestMutationsAreIdempotent(t *testing.T) {
	global := fields("a", "b", "c")
	tests := []struct {
		name     string
		mutation Mutation
		input    string
		want     string
	}{
		{
			name:     "among to within",
			mutation: AmongToWithinGrouping{GlobalDimensions: global},
			input:    `RSUM(SUM([x]) AMONG [b])`,
			want:     `RSUM(SUM([x]) WITHIN [a], [c])`,
		},
		{
			name:     "among everything",
			mutation: AmongToWithinGrouping{GlobalDimensions: global},
			input:    `RSUM(SUM([x]) AMONG [a], [b], [c])`,
			want:     `RSUM(SUM([x]) TOTAL)`,
		},
		{
			name:     "ignore extra within",
			mutation: IgnoreExtraWithinGrouping{GlobalDimensions: global},
			input:    `RANK(SUM([x]) WITHIN [z], [a])`,
			want:     `RANK(SUM([x]) WITHIN [a])`,
		},
		{
			name:     "ignore every within",
			mutation: IgnoreExtraWithinGrouping{GlobalDimensions: global},
			input:    `RANK(SUM([x]) WITHIN [z])`,
			want:     `RANK(SUM([x]) TOTAL)`,
		},
		{
			name:     "default ordering",
			mutation: DefaultWindowOrdering{DefaultOrderBy: []*formula.OrderItem{formula.NewOrderItem(formula.NewField("d"), false)}},
			input:    `RSUM(SUM([x]) TOTAL ORDER BY [y] DESC)`,
			want:     `RSUM(SUM([x]) TOTAL ORDER BY [y] DESC, [d])`,
		},
		{
			name:     "bfb remap",
			mutation: RemapBfb{NameMapping: map[string]string{"old": "new"}},
			input:    `SUM([x] BEFORE FILTER BY [old], [keep])`,
			want:     `SUM([x] BEFORE FILTER BY [new], [keep])`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once, err := Apply(parse(t, tt.input), tt.mutation)
			require.NoError(t, err)
			assertSameTree(t, tt.want, once)

			twice, err := Apply(once, tt.mutation)
			require.NoError(t, err)
			assert.True(t, formula.Equal(once, twice))
		})
	}
}

func TestDefaultOrderingSkipsUnorderedWindows(t *testing.T) {
	m := DefaultWindowOrdering{DefaultOrderBy: []*formula.OrderItem{formula.NewOrderItem(formula.NewField("d"), false)}}
	node := parse(t, `RANK(SUM([x]) TOTAL)`)
	out, err := Apply(node, m)
	require.NoError(t, err)
	assert.True(t, out == node)

	// 已存在的排序项不重复
	node = parse(t, `MSUM(SUM([x]), 2 TOTAL ORDER BY [d] DESC)`)
	out, err = Apply(node, m)
	require.NoError(t, err)
	assert.True(t, out == node)
}

func TestRemapBfbNested(t *testing.T) {
	node := parse(t, `RSUM(SUM([x] BEFORE FILTER BY [f]) TOTAL BEFORE FILTER BY [f], [g])`)
	out, err := Apply(node, RemapBfb{NameMapping: map[string]string{"f": "f2", "g": "g2"}})
	require.NoError(t, err)
	assertSameTree(t, `RSUM(SUM([x] BEFORE FILTER BY [f2]) TOTAL BEFORE FILTER BY [f2], [g2])`, out)
}

func TestReplaceAllOutermost(t *testing.T) {
	node := parse(t, `SUM([a]) + SUM(SUM([a]) FIXED [b])`)
	out, err := ReplaceAll(node,
		Replacement{Original: parse(t, `SUM([a])`), Replacement: formula.NewField("s")},
		Replacement{Original: parse(t, `SUM(SUM([a]) FIXED [b])`), Replacement: formula.NewField("t")},
	)
	require.NoError(t, err)
	assertSameTree(t, `[s] + [t]`, out)

	same, err := ReplaceAll(node)
	require.NoError(t, err)
	assert.True(t, same == node)
}

func TestReplacementMutation(t *testing.T) {
	node := parse(t, `[a] * 2 + [a]`)
	out, err := Apply(node, Replacement{Original: formula.NewField("a"), Replacement: formula.NewField("z")})
	require.NoError(t, err)
	assertSameTree(t, `[z] * 2 + [z]`, out)
}

func TestOptimizations(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`1 + 2 * 3`, `7`},
		{`1.5 + 1`, `2.5`},
		{`-(3)`, `-3`},
		{`'a' + 'b'`, `'ab'`},
		{`[x] + 1 * 2`, `[x] + 2`},
		{`2 > 1`, `TRUE`},
		{`'b' < 'a'`, `FALSE`},
		{`#2024-01-01# < #2024-02-01#`, `TRUE`},
		{`NOT [a] < [b]`, `[a] >= [b]`},
		{`NOT ([a] == [b])`, `[a] != [b]`},
		{`TRUE AND [a] > 1`, `[a] > 1`},
		{`[a] > 1 AND FALSE`, `FALSE`},
		{`[a] > 1 OR TRUE`, `TRUE`},
		{`FALSE OR [a]`, `[a]`},
		{`NOT (1 > 2)`, `TRUE`},
		{`IF 1 = 1 AND [c] THEN [a] ELSE [b] END`, `IF [c] THEN [a] ELSE [b] END`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out, err := Apply(parse(t, tt.input), Optimizations()...)
			require.NoError(t, err)
			assertSameTree(t, tt.want, out)
		})
	}
}

func TestOptimizeKeepsDivisionByZero(t *testing.T) {
	node := parse(t, `1 / 0`)
	out, err := Apply(node, OptimizeConstMath{})
	require.NoError(t, err)
	assert.True(t, out == node)
}
