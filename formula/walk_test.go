package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string) Node {
	t.Helper()
	node, err := Parse(text)
	require.NoError(t, err)
	return node
}

func TestWalkPreOrderWithParents(t *testing.T) {
	node := mustParse(t, `[a] + SUM([b])`)
	var names []string
	var depthOfB int
	Walk(node, func(n Node, parents []Node) bool {
		names = append(names, NodeName(n))
		if f, ok := n.(*Field); ok && f.Name == "b" {
			depthOfB = len(parents)
		}
		return true
	})
	assert.Equal(t, []string{"+", "field", "sum", "field", "lod", "before_filter_by", "ignore_dimensions"}, names)
	assert.Equal(t, 2, depthOfB)
}

func TestWalkSkipChildren(t *testing.T) {
	node := mustParse(t, `SUM([a]) + [b]`)
	var fields []string
	Walk(node, func(n Node, _ []Node) bool {
		if f, ok := n.(*Field); ok {
			fields = append(fields, f.Name)
		}
		_, isCall := n.(*FuncCall)
		return !isCall
	})
	assert.Equal(t, []string{"b"}, fields)
}

func TestTransformKeepsIdentity(t *testing.T) {
	node := mustParse(t, `IF [a] > 1 THEN SUM([b] FIXED [c]) ELSE 0 END`)
	same, err := Transform(node, func(n Node) (Node, error) { return n, nil })
	require.NoError(t, err)
	assert.True(t, same == node)
}

func TestTransformReplacesAndShares(t *testing.T) {
	node := mustParse(t, `[a] + ([b] * [c])`)
	renamed, err := Transform(node, func(n Node) (Node, error) {
		if f, ok := n.(*Field); ok && f.Name == "a" {
			return NewField("z"), nil
		}
		return n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, `[z] + ([b] * [c])`, Render(renamed))
	assert.Equal(t, `[a] + ([b] * [c])`, Render(node))
	// untouched right subtree is shared
	assert.True(t, renamed.(*Binary).Right == node.(*Binary).Right)
}

func TestAutonomousChildren(t *testing.T) {
	node := mustParse(t, `SUM([x] FIXED [a] BEFORE FILTER BY [f])`)
	children := AutonomousChildren(node)
	require.Len(t, children, 2)
	assert.Equal(t, "x", children[0].(*Field).Name)
	assert.Equal(t, "a", children[1].(*Field).Name)

	win := mustParse(t, `RSUM(SUM([x]) WITHIN [r] ORDER BY [d] DESC)`)
	children = AutonomousChildren(win)
	require.Len(t, children, 3)
	assert.IsType(t, &FuncCall{}, children[0])
	assert.Equal(t, "r", children[1].(*Field).Name)
	assert.Equal(t, "d", children[2].(*Field).Name)
}

func TestNodeAtAndReplaceAt(t *testing.T) {
	node := mustParse(t, `[a] + SUM([b])`)
	paths := Find(node, func(n Node) bool {
		f, ok := n.(*Field)
		return ok && f.Name == "b"
	})
	require.Len(t, paths, 1)
	assert.Equal(t, Path{1, 0}, paths[0])

	found, err := NodeAt(node, paths[0])
	require.NoError(t, err)
	assert.Equal(t, "b", found.(*Field).Name)

	replaced, err := ReplaceAt(node, paths[0], NewField("c"))
	require.NoError(t, err)
	assert.Equal(t, `[a] + SUM([c])`, Render(replaced))
	assert.Equal(t, `[a] + SUM([b])`, Render(node))

	_, err = NodeAt(node, Path{5})
	assert.Error(t, err)
}

func TestExtractIgnoresPositions(t *testing.T) {
	a := mustParse(t, `[a]+1`)
	b := mustParse(t, `  [a]   +   1`)
	assert.NotEqual(t, a.Meta(), b.Meta())
	assert.True(t, Equal(a, b))
	assert.Equal(t, Hash(a), Hash(b))

	c := mustParse(t, `[a] + 2`)
	assert.False(t, Equal(a, c))

	bfb1 := mustParse(t, `SUM([x] BEFORE FILTER BY [a], [b])`)
	bfb2 := mustParse(t, `SUM([x] BEFORE FILTER BY [b], [a])`)
	assert.True(t, Equal(bfb1, bfb2))
}

func TestNodeSet(t *testing.T) {
	set := NewNodeSet(NewField("a"), NewField("b"))
	assert.False(t, set.Add(NewField("a")))
	assert.True(t, set.Add(NewField("c")))
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, 1, set.IndexOf(NewField("b")))
	assert.Equal(t, -1, set.IndexOf(NewField("z")))

	other := NewNodeSet(NewField("c"), NewField("b"), NewField("a"))
	assert.True(t, set.Equals(other))
	assert.True(t, NewNodeSet(NewField("a")).IsSubsetOf(set))
	assert.False(t, set.IsSubsetOf(NewNodeSet(NewField("a"))))
}

func TestDataTypeCasts(t *testing.T) {
	assert.True(t, TypeConstInteger.CastableTo(TypeInteger))
	assert.True(t, TypeInteger.CastableTo(TypeFloat))
	assert.True(t, TypeNull.CastableTo(TypeDate))
	assert.False(t, TypeString.CastableTo(TypeInteger))
	assert.False(t, TypeInteger.CastableTo(TypeConstInteger))

	common, ok := CommonType(TypeConstInteger, TypeConstFloat)
	assert.True(t, ok)
	assert.Equal(t, TypeConstFloat, common)

	common, ok = CommonType(TypeInteger, TypeNull)
	assert.True(t, ok)
	assert.Equal(t, TypeInteger, common)

	_, ok = CommonType(TypeString, TypeDate)
	assert.False(t, ok)

	parsed, ok := ParseDataType("const_string")
	assert.True(t, ok)
	assert.Equal(t, TypeConstString, parsed)
}
