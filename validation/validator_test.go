package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
)

func parse(t *testing.T, text string) formula.Node {
	t.Helper()
	node, err := formula.Parse(text)
	require.NoError(t, err)
	return node
}

func codes(err error) []string {
	var v *Errors
	if !errors.As(err, &v) {
		return nil
	}
	out := make([]string, 0, v.Len())
	for _, e := range v.Unwrap() {
		out = append(out, exc.Code(e))
	}
	return out
}

func TestWindowFunctionChecker(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		checker *WindowFunctionChecker
		want    []string
	}{
		{
			name:    "valid",
			formula: `RSUM(SUM([x]) TOTAL ORDER BY [d])`,
			checker: &WindowFunctionChecker{},
		},
		{
			name:    "no aggregation",
			formula: `RSUM([x])`,
			checker: &WindowFunctionChecker{},
			want:    []string{exc.ErrWindowFunctionWOAggregation.Code},
		},
		{
			name:    "nested",
			formula: `RSUM(RSUM(SUM([x])))`,
			checker: &WindowFunctionChecker{},
			want:    []string{exc.ErrNestedWindowFunction.Code},
		},
		{
			name:    "nested allowed",
			formula: `RSUM(RSUM(SUM([x])))`,
			checker: &WindowFunctionChecker{AllowNested: true},
		},
		{
			name:    "bfb on unselected filtered dimension",
			formula: `RSUM(SUM([x]) BEFORE FILTER BY [city])`,
			checker: &WindowFunctionChecker{
				UnselectedDimensionIDs: map[string]bool{"city": true},
				FilterIDs:              map[string]bool{"city": true},
			},
			want: []string{exc.ErrWindowFunctionUnselectedDimension.Code},
		},
		{
			name:    "bfb on selected dimension",
			formula: `RSUM(SUM([x]) BEFORE FILTER BY [city])`,
			checker: &WindowFunctionChecker{FilterIDs: map[string]bool{"city": true}},
		},
		{
			name:    "independent errors are collected",
			formula: `RSUM([x]) + MSUM([y], 2) + RSUM(RSUM(SUM([z])))`,
			checker: &WindowFunctionChecker{},
			want: []string{
				exc.ErrWindowFunctionWOAggregation.Code,
				exc.ErrWindowFunctionWOAggregation.Code,
				exc.ErrNestedWindowFunction.Code,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(parse(t, tt.formula), nil, []Checker{tt.checker}, true)
			if len(tt.want) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, codes(err))
		})
	}
}

type visit struct {
	node    formula.Node
	parents int
}

// recordingChecker 记录检查顺序和祖先链长度
type recordingChecker struct {
	visits []visit
}

func (c *recordingChecker) CheckNode(_ *Validator, node formula.Node, parents []formula.Node) error {
	if len(parents) > 0 {
		if _, ok := parents[len(parents)-1].(*formula.Binary); !ok {
			return errors.New("unexpected parent")
		}
	}
	c.visits = append(c.visits, visit{node: node, parents: len(parents)})
	return nil
}

func TestValidateChildrenFirst(t *testing.T) {
	node := parse(t, `[a] + [b] * 2`)
	rec := &recordingChecker{}
	require.NoError(t, Validate(node, nil, []Checker{rec}, false))

	var got []string
	var depths []int
	for _, v := range rec.visits {
		got = append(got, formula.Render(v.node))
		depths = append(depths, v.parents)
	}
	assert.Equal(t, []string{"[a]", "[b]", "2", "[b] * 2", "[a] + [b] * 2"}, got)
	assert.Equal(t, []int{1, 2, 2, 1, 0}, depths)
}

func TestValidateDeepTree(t *testing.T) {
	const depth = 100000
	var node formula.Node = formula.NewInteger(0)
	for i := 0; i < depth; i++ {
		node = formula.NewBinary(formula.OpAdd, node, formula.NewInteger(1))
	}
	rec := &recordingChecker{}
	require.NoError(t, Validate(node, nil, []Checker{rec}, false))
	require.Len(t, rec.visits, 2*depth+1)
	assert.Equal(t, depth, rec.visits[0].parents)
	assert.Same(t, node, rec.visits[len(rec.visits)-1].node)
}

func TestFailFast(t *testing.T) {
	err := Validate(parse(t, `RSUM([x]) + RSUM([y])`), nil, []Checker{&WindowFunctionChecker{}}, false)
	require.Error(t, err)
	assert.Len(t, codes(err), 1)
	assert.True(t, exc.ErrWindowFunctionWOAggregation.Is(err))
}

func TestErrorCarriesPosition(t *testing.T) {
	err := Validate(parse(t, `1 + RSUM([x])`), nil, []Checker{&WindowFunctionChecker{}}, true)
	require.Error(t, err)
	e := exc.Find(err)
	require.NotNil(t, e)
	pos, ok := e.Detail("position")
	require.True(t, ok)
	assert.Equal(t, 4, pos)
}

func TestAggregationChecker(t *testing.T) {
	dims := []formula.Node{
		parse(t, `[dim]`),
		parse(t, `[other] + DIM_FUNC([third])`),
	}
	tests := []struct {
		formula string
		want    []string
	}{
		{`[other] + DIM_FUNC([third]) + 1.1`, nil},
		{`SUM([some])`, nil},
		{`SUM('qwerty')`, nil},
		{`SUM([barley] + [other])`, nil},
		{`FUNC(SUM([other] + 1.1), [dim])`, nil},
		{`FUNC(TRUE, SUM([x]))`, nil},
		{`[dim] + SUM([x])`, nil},
		{`8 + SUM([x] FIXED [dim])`, nil},
		{`8 + SUM(AVG([barley] FIXED [dim]))`, nil},
		{`8 + SUM(AVG([barley]))`, []string{exc.ErrDoubleAggregation.Code}},
		{`8 + SUM(AVG([barley]) TOTAL)`, nil},
		{`RANK(SUM([some]) WITHIN [dim])`, nil},
		{`SUM([some]) + [rye]`, []string{exc.ErrInconsistentAggregation.Code}},
		{`SUM(RSUM(SUM([x])))`, []string{exc.ErrAggregationOverWindow.Code}},
		{
			`DO_SOMETHING(SUM(AVG([em])), MAX(MIN([gold])), SUM(AVG([em])), MIN([gold]), [gold])`,
			[]string{
				exc.ErrDoubleAggregation.Code,
				exc.ErrDoubleAggregation.Code,
				exc.ErrDoubleAggregation.Code,
				exc.ErrInconsistentAggregation.Code,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			checker := &AggregationChecker{GlobalDimensions: dims}
			err := Validate(parse(t, tt.formula), nil, []Checker{checker}, true)
			if len(tt.want) == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, codes(err))
		})
	}
}

func TestErrorsMessage(t *testing.T) {
	err := Validate(parse(t, `RSUM([x]) + RSUM([y])`), nil, []Checker{&WindowFunctionChecker{}}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 validation errors")
	assert.Equal(t, exc.ErrWindowFunctionWOAggregation.Code, exc.Code(err))
}
