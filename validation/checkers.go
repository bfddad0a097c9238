package validation

import (
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
)

// WindowFunctionChecker enforces the structure of window calls.
type WindowFunctionChecker struct {
	AllowNested bool
	// UnselectedDimensionIDs are dimensions of the dataset missing from GROUP BY
	UnselectedDimensionIDs map[string]bool
	// FilterIDs are the fields filtered by the query
	FilterIDs map[string]bool
}

func (c *WindowFunctionChecker) CheckNode(v *Validator, node formula.Node, parents []formula.Node) error {
	win, ok := node.(*formula.WindowFuncCall)
	if !ok {
		return nil
	}
	if !c.AllowNested {
		for _, p := range parents {
			if _, nested := p.(*formula.WindowFuncCall); nested {
				return exc.ErrNestedWindowFunction.New(formula.Render(node))
			}
		}
	}
	hasAgg := false
	for _, arg := range win.Args {
		if inspect.IsAggregateExpression(arg, v.Env()) || inspect.IsWindowExpression(arg, v.Env()) {
			hasAgg = true
			break
		}
	}
	if !hasAgg {
		return exc.ErrWindowFunctionWOAggregation.New(formula.Render(node))
	}
	for _, name := range win.BFB.FieldNames {
		if c.UnselectedDimensionIDs[name] && c.FilterIDs[name] {
			return exc.ErrWindowFunctionUnselectedDimension.New(name).With("field_id", name)
		}
	}
	return nil
}

// AggregationChecker reports double aggregations, aggregations over windows
// and expressions mixing aggregated and non-aggregated operands.
type AggregationChecker struct {
	GlobalDimensions []formula.Node

	dims *formula.NodeSet
}

func (c *AggregationChecker) CheckNode(v *Validator, node formula.Node, parents []formula.Node) error {
	if c.dims == nil {
		c.dims = formula.NewNodeSet(c.GlobalDimensions...)
	}
	env := v.Env()
	if call, ok := node.(*formula.FuncCall); ok && inspect.IsAggregateFunction(env, call) {
		for _, arg := range call.Args {
			if inspect.IsWindowExpression(arg, env) {
				return exc.ErrAggregationOverWindow.New(formula.Render(node))
			}
		}
		if inspect.IsExplicitLod(call.Lod) {
			return nil
		}
		for i := len(parents) - 1; i >= 0; i-- {
			if _, isWin := parents[i].(*formula.WindowFuncCall); isWin {
				break
			}
			if inspect.IsAggregateNode(parents[i], env) {
				return exc.ErrDoubleAggregation.New(formula.Render(parents[i]))
			}
		}
		return nil
	}
	if !node.Autonomous() || c.dims.Contains(node) || !c.mixesOperands(node, env) {
		return nil
	}
	switch node.(type) {
	case *formula.WindowFuncCall, *formula.QueryFork:
		return nil
	}
	return exc.ErrInconsistentAggregation.New(formula.Render(node))
}

// mixesOperands reports whether some operands of node are aggregated while
// others depend on rows outside the global dimensions.
func (c *AggregationChecker) mixesOperands(node formula.Node, env *inspect.Environment) bool {
	children := formula.AutonomousChildren(node)
	aggregated, rowLevel := false, false
	for _, child := range children {
		switch {
		case inspect.IsAggregateExpression(child, env) || inspect.IsWindowExpression(child, env):
			aggregated = true
		case !c.dimensionLike(child, env):
			rowLevel = true
		}
	}
	return aggregated && rowLevel
}

// dimensionLike reports whether node is constant or built only from global
// dimensions, so it can stand next to aggregations.
func (c *AggregationChecker) dimensionLike(node formula.Node, env *inspect.Environment) bool {
	if inspect.IsConstantExpression(node, env) || c.dims.Contains(node) {
		return true
	}
	if _, isField := node.(*formula.Field); isField {
		return false
	}
	children := formula.AutonomousChildren(node)
	if len(children) == 0 {
		return false
	}
	for _, child := range children {
		if !c.dimensionLike(child, env) {
			return false
		}
	}
	return true
}
