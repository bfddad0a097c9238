package compilation

import (
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/mutation"
	"github.com/rulego/dlquery/validation"
)

// pipeline validates and rewrites the formulas of one query.
type pipeline struct {
	env        *inspect.Environment
	globalDims []formula.Node
	checkers   func() []validation.Checker
	mutations  []mutation.Mutation
	cache      map[uint64][]processed
}

type processed struct {
	in, out formula.Node
	total   bool
}

func (b *blockCompiler) newPipeline(globalDims []formula.Node, orderBy, filters []compiledItem) *pipeline {
	selectedDims := formula.NewNodeSet(globalDims...)
	unselected := make(map[string]bool)
	for _, f := range b.c.Dataset.Fields {
		if f.CalcMode == dataset.CalcParameter || f.HasAggregation() {
			continue
		}
		expr, err := b.resolveField(f)
		if err != nil || inspect.IsAggregateExpression(expr, b.env) || inspect.IsWindowExpression(expr, b.env) {
			continue
		}
		if !selectedDims.Contains(expr) {
			unselected[f.ID] = true
		}
	}
	filterIDs := make(map[string]bool, len(filters))
	for _, ci := range filters {
		if f, err := b.c.Dataset.Lookup(ci.item.ID); err == nil {
			filterIDs[f.ID] = true
		}
	}

	// 窗口函数默认按块的排序项排序，没有排序项时按维度升序
	var defaultOrder []*formula.OrderItem
	for _, ci := range orderBy {
		desc := false
		if spec, ok := ci.item.RoleSpec.(*legend.OrderByRoleSpec); ok {
			desc = spec.Direction == legend.Desc
		}
		defaultOrder = append(defaultOrder, formula.NewOrderItem(ci.expr, desc))
	}
	if len(defaultOrder) == 0 {
		for _, d := range globalDims {
			defaultOrder = append(defaultOrder, formula.NewOrderItem(d, false))
		}
	}

	muts := []mutation.Mutation{
		mutation.AmongToWithinGrouping{GlobalDimensions: globalDims},
		mutation.IgnoreExtraWithinGrouping{GlobalDimensions: globalDims},
		mutation.DefaultWindowOrdering{DefaultOrderBy: defaultOrder, Env: b.env},
	}
	muts = append(muts, mutation.Optimizations()...)

	allowNested := b.c.AllowNestedWindows
	return &pipeline{
		env:        b.env,
		globalDims: globalDims,
		checkers: func() []validation.Checker {
			return []validation.Checker{
				&validation.WindowFunctionChecker{
					AllowNested:            allowNested,
					UnselectedDimensionIDs: unselected,
					FilterIDs:              filterIDs,
				},
				&validation.AggregationChecker{GlobalDimensions: globalDims},
			}
		},
		mutations: muts,
		cache:     make(map[uint64][]processed),
	}
}

// process runs validation, mutations, total nullification and fork wrapping.
func (p *pipeline) process(ci compiledItem) (formula.Node, error) {
	total := ci.item.Role == legend.RoleTotal
	h := formula.Hash(ci.expr)
	for _, pr := range p.cache[h] {
		if pr.total == total && formula.Equal(pr.in, ci.expr) {
			return pr.out, nil
		}
	}
	if err := validation.Validate(ci.expr, p.env, p.checkers(), true); err != nil {
		return nil, err
	}
	expr, err := mutation.Apply(ci.expr, p.mutations...)
	if err != nil {
		return nil, err
	}
	if total {
		if expr, err = nullifyForTotals(expr, p.env); err != nil {
			return nil, err
		}
	}
	expr, err = wrapForks(expr, p.globalDims, false, p.env)
	if err != nil {
		return nil, err
	}
	p.cache[h] = append(p.cache[h], processed{in: ci.expr, out: expr, total: total})
	return expr, nil
}

// nullifyForTotals replaces window calls and extended aggregations with NULL,
// they have no meaning in a totals row.
func nullifyForTotals(expr formula.Node, env *inspect.Environment) (formula.Node, error) {
	return formula.Replace(expr, func(n formula.Node) (formula.Node, bool) {
		switch v := n.(type) {
		case *formula.WindowFuncCall:
			return formula.NewNull(), true
		case *formula.FuncCall:
			if inspect.IsAggregateFunction(env, v) && (inspect.IsExplicitLod(v.Lod) || !v.BFB.Empty()) {
				return formula.NewNull(), true
			}
		}
		return nil, false
	})
}

// wrapForks turns aggregations that cannot be computed at the grain of their
// scope into query forks. parentDims is the grain of the enclosing scope.
func wrapForks(node formula.Node, parentDims []formula.Node, nested bool, env *inspect.Environment) (formula.Node, error) {
	if _, isFork := node.(*formula.QueryFork); isFork {
		return node, nil
	}
	call, ok := node.(*formula.FuncCall)
	if !ok || !inspect.IsAggregateFunction(env, call) {
		children := node.Children()
		if len(children) == 0 {
			return node, nil
		}
		out := make([]formula.Node, len(children))
		changed := false
		for i, child := range children {
			c, err := wrapForks(child, parentDims, nested, env)
			if err != nil {
				return nil, err
			}
			out[i] = c
			changed = changed || c != child
		}
		if !changed {
			return node, nil
		}
		return node.WithChildren(out), nil
	}

	dims := inspect.ResolveLodDimensions(call.Lod, parentDims)
	explicit := inspect.IsExplicitLod(call.Lod)
	if explicit {
		dimSet, parentSet := formula.NewNodeSet(dims...), formula.NewNodeSet(parentDims...)
		if !nested && !dimSet.IsSubsetOf(parentSet) {
			return nil, exc.ErrLodInvalidTopLevelDimensions.New(formula.Render(call))
		}
		if nested && !parentSet.IsSubsetOf(dimSet) {
			return nil, exc.ErrLodIncompatibleDimensions.New(formula.Render(call))
		}
	}

	args := make([]formula.Node, len(call.Args))
	nestedFork := false
	for i, arg := range call.Args {
		a, err := wrapForks(arg, dims, true, env)
		if err != nil {
			return nil, err
		}
		args[i] = a
		nestedFork = nestedFork || inspect.ContainsNode(a, func(n formula.Node) bool {
			_, ok := n.(*formula.QueryFork)
			return ok
		})
	}
	result := *call
	result.Args = args
	if !explicit && call.BFB.Empty() && !nestedFork {
		return &result, nil
	}
	result.Lod = formula.NewLod(formula.LodDefault)
	result.BFB = formula.NewBeforeFilterBy()
	return formula.NewQueryFork(&result, dims, call.BFB), nil
}
