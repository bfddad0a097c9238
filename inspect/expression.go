package inspect

import (
	"github.com/rulego/dlquery/formula"
)

// IsAggregateFunction reports whether call is an aggregation.
func IsAggregateFunction(env *Environment, call *formula.FuncCall) bool {
	return ClassifyFunction(env, call.Name) == ClassAggregate
}

// IsAggregateExpression reports whether node aggregates its input.
// A window call is never an aggregate, even when its arguments are.
func IsAggregateExpression(node formula.Node, env *Environment) bool {
	switch n := node.(type) {
	case *formula.WindowFuncCall:
		return false
	case *formula.QueryFork:
		return true
	case *formula.FuncCall:
		if IsAggregateFunction(env, n) {
			return true
		}
	}
	for _, child := range formula.AutonomousChildren(node) {
		if IsAggregateExpression(child, env) {
			return true
		}
	}
	return false
}

// IsWindowExpression reports whether node contains a window call.
func IsWindowExpression(node formula.Node, env *Environment) bool {
	return containsNode(node, func(n formula.Node) bool {
		_, ok := n.(*formula.WindowFuncCall)
		return ok
	})
}

// IsLookupExpression reports whether node contains a lookup call such as AGO.
func IsLookupExpression(node formula.Node, env *Environment) bool {
	return containsNode(node, func(n formula.Node) bool {
		call, ok := n.(*formula.FuncCall)
		return ok && ClassifyFunction(env, call.Name) == ClassLookup
	})
}

// IsConstantExpression reports whether node evaluates to the same value for
// every row: no field references, no aggregation, no window.
func IsConstantExpression(node formula.Node, env *Environment) bool {
	if len(UsedFields(node)) > 0 {
		return false
	}
	return !IsAggregateExpression(node, env) && !IsWindowExpression(node, env)
}

// UsedFields returns distinct field references in pre-order.
func UsedFields(node formula.Node) []*formula.Field {
	var out []*formula.Field
	seen := make(map[string]bool)
	formula.Walk(node, func(n formula.Node, _ []formula.Node) bool {
		if f, ok := n.(*formula.Field); ok && !seen[f.Name] {
			seen[f.Name] = true
			out = append(out, f)
		}
		return true
	})
	return out
}

// UsedFieldNames returns the names of UsedFields.
func UsedFieldNames(node formula.Node) []string {
	fields := UsedFields(node)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// IsBoundOnlyTo reports whether node references no fields outside names.
func IsBoundOnlyTo(node formula.Node, names []string) bool {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	for _, f := range UsedFields(node) {
		if !allowed[f.Name] {
			return false
		}
	}
	return true
}

// HasNonDefaultLodDimensions reports whether any call carries FIXED, INCLUDE
// or EXCLUDE.
func HasNonDefaultLodDimensions(node formula.Node) bool {
	return containsNode(node, func(n formula.Node) bool {
		lod, ok := n.(*formula.LodSpecifier)
		return ok && isExplicitLod(lod)
	})
}

// ContainsExtendedAggregations reports whether node holds aggregations that
// cannot be computed at the level of the enclosing query: LOD aggregations,
// aggregations with BEFORE FILTER BY and already forked sub-queries.
func ContainsExtendedAggregations(node formula.Node, env *Environment) bool {
	return containsNode(node, func(n formula.Node) bool {
		switch v := n.(type) {
		case *formula.QueryFork:
			return true
		case *formula.FuncCall:
			if !IsAggregateFunction(env, v) {
				return false
			}
			return isExplicitLod(v.Lod) || !v.BFB.Empty()
		}
		return false
	})
}

// IsDoubleAggregated reports whether an aggregation without an explicit LOD
// is nested inside another aggregation.
func IsDoubleAggregated(node formula.Node, env *Environment) bool {
	return len(DoubleAggregations(node, env)) > 0
}

// DoubleAggregations returns the inner aggregations that violate the rule
// of IsDoubleAggregated.
func DoubleAggregations(node formula.Node, env *Environment) []formula.Node {
	var out []formula.Node
	formula.Walk(node, func(n formula.Node, parents []formula.Node) bool {
		call, ok := n.(*formula.FuncCall)
		if !ok || !IsAggregateFunction(env, call) || isExplicitLod(call.Lod) {
			return true
		}
		for i := len(parents) - 1; i >= 0; i-- {
			if _, isWin := parents[i].(*formula.WindowFuncCall); isWin {
				break
			}
			if isAggregateNode(parents[i], env) {
				out = append(out, n)
				break
			}
		}
		return true
	})
	return out
}

// IterTopLevelAggregations returns aggregations that are not nested inside
// other aggregations. Window calls are looked through.
func IterTopLevelAggregations(node formula.Node, env *Environment) []formula.Node {
	var out []formula.Node
	formula.Walk(node, func(n formula.Node, _ []formula.Node) bool {
		if isAggregateNode(n, env) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// ResolveLodDimensions returns the dimensions an aggregation is computed over
// given the dimensions of its parent scope.
func ResolveLodDimensions(lod *formula.LodSpecifier, parent []formula.Node) []formula.Node {
	if lod == nil {
		return parent
	}
	switch lod.Kind {
	case formula.LodFixed:
		return dedupe(lod.Dims)
	case formula.LodInclude:
		set := formula.NewNodeSet(parent...)
		for _, d := range lod.Dims {
			set.Add(d)
		}
		return set.Items()
	case formula.LodExclude:
		excluded := formula.NewNodeSet(lod.Dims...)
		out := make([]formula.Node, 0, len(parent))
		for _, d := range parent {
			if !excluded.Contains(d) {
				out = append(out, d)
			}
		}
		return out
	default:
		return parent
	}
}

func dedupe(nodes []formula.Node) []formula.Node {
	return formula.NewNodeSet(nodes...).Items()
}

func isExplicitLod(lod *formula.LodSpecifier) bool {
	if lod == nil {
		return false
	}
	switch lod.Kind {
	case formula.LodFixed, formula.LodInclude, formula.LodExclude:
		return true
	}
	return false
}

// IsExplicitLod reports whether lod is FIXED, INCLUDE or EXCLUDE.
func IsExplicitLod(lod *formula.LodSpecifier) bool { return isExplicitLod(lod) }

func isAggregateNode(n formula.Node, env *Environment) bool {
	switch v := n.(type) {
	case *formula.QueryFork:
		return true
	case *formula.FuncCall:
		return IsAggregateFunction(env, v)
	}
	return false
}

// IsAggregateNode reports whether the node itself, not its subtree, aggregates.
func IsAggregateNode(n formula.Node, env *Environment) bool { return isAggregateNode(n, env) }

func containsNode(root formula.Node, pred func(formula.Node) bool) bool {
	found := false
	formula.Walk(root, func(n formula.Node, _ []formula.Node) bool {
		if found {
			return false
		}
		if pred(n) {
			found = true
			return false
		}
		return true
	})
	return found
}

// ContainsNode reports whether any node of the tree matches pred.
func ContainsNode(root formula.Node, pred func(formula.Node) bool) bool {
	return containsNode(root, pred)
}
