package multiquery

import (
	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
	"github.com/rulego/dlquery/inspect"
)

// QueryForkSplitter computes query forks, the aggregations with their own
// level of detail, in sub-queries.
//
// Forks found outside of aggregations are joined back: the query becomes a
// top query reading a base sub-query, which keeps the original grouping,
// and one sub-query per fork grouped by the fork dimensions, joined on the
// shared dimensions. Forks nested in aggregations are lifted: the query is
// rewritten to read a sub-query grouped by the finer fork dimensions.
type QueryForkSplitter struct{}

func (QueryForkSplitter) Name() string { return "query_fork" }

func (s QueryForkSplitter) Split(ctx *Context, q *compilation.CompiledQuery, _ []*compilation.CompiledQuery) (*compilation.Patch, error) {
	top, nested := collectForks(q, ctx.Env)
	switch {
	case len(top) > 0 && len(nested) > 0:
		return nil, exc.ErrInvalidQueryStructure.New("query " + q.ID + " mixes joined and nested forks")
	case len(top) > 0:
		return s.join(ctx, q, top)
	case len(nested) > 0:
		return s.lift(ctx, q, nested)
	}
	return nil, nil
}

// collectForks returns the distinct outermost forks of q, split by whether
// they are nested in an aggregation.
func collectForks(q *compilation.CompiledQuery, env *inspect.Environment) (top, nested []*formula.QueryFork) {
	seenTop, seenNested := formula.NewNodeSet(), formula.NewNodeSet()
	for _, f := range q.AllFormulas() {
		formula.Walk(f.Expr, func(n formula.Node, parents []formula.Node) bool {
			fork, ok := n.(*formula.QueryFork)
			if !ok {
				return true
			}
			inAggregation := false
			for _, p := range parents {
				if inspect.IsAggregateNode(p, env) {
					inAggregation = true
					break
				}
			}
			if inAggregation {
				if seenNested.Add(fork) {
					nested = append(nested, fork)
				}
			} else if seenTop.Add(fork) {
				top = append(top, fork)
			}
			return false
		})
	}
	return top, nested
}

type forkQuery struct {
	fork        *formula.QueryFork
	query       *compilation.CompiledQuery
	resultAlias string
	dimAliases  []string
}

func (s QueryForkSplitter) join(ctx *Context, q *compilation.CompiledQuery, forks []*formula.QueryFork) (*compilation.Patch, error) {
	env := ctx.Env
	grouped := isGrouped(q, env)
	dims := groupByDims(q)

	base := innerQuery(q, ctx.QueryIDs.Next())
	fqs := make([]*forkQuery, 0, len(forks))
	for _, fork := range forks {
		fq, err := s.forkQuery(ctx, q, fork)
		if err != nil {
			return nil, err
		}
		fqs = append(fqs, fq)
	}
	forkAlias := func(n formula.Node) (formula.Node, bool) {
		if _, ok := n.(*formula.QueryFork); !ok {
			return nil, false
		}
		for _, fq := range fqs {
			if formula.Equal(fq.fork, n) {
				return formula.NewField(fq.resultAlias), true
			}
		}
		return nil, false
	}
	x := newExtractor(base, ctx.ExprIDs, groupedPart(env, dims, grouped, containsFork))
	x.replace = forkAlias

	for _, g := range q.GroupBy {
		ref := x.ref(g.Expr)
		base.GroupBy = append(base.GroupBy, &compilation.CompiledFormulaInfo{
			Expr:            g.Expr,
			Alias:           ref.Name,
			FromIDs:         fromIDs(base),
			OriginalFieldID: g.OriginalFieldID,
		})
	}

	top := q.Clone()
	subs := []*compilation.CompiledQuery{base}
	for _, fq := range fqs {
		subs = append(subs, fq.query)
	}
	top.GroupBy = nil
	top.Filters = nil
	top.JoinOn = nil
	outerIDs := queryIDs(subs...)

	for _, f := range q.Filters {
		if !containsFork(f.Expr) {
			base.Filters = append(base.Filters, f)
			continue
		}
		rf, err := x.rewriteInfo(f, outerIDs)
		if err != nil {
			return nil, err
		}
		top.Filters = append(top.Filters, rf)
	}
	for i, f := range q.Select {
		rf, err := x.rewriteInfo(f, outerIDs)
		if err != nil {
			return nil, err
		}
		top.Select[i] = rf
	}
	for i, o := range q.OrderBy {
		ro, err := x.rewriteOrderBy(o, outerIDs)
		if err != nil {
			return nil, err
		}
		top.OrderBy[i] = ro
	}

	for _, fq := range fqs {
		var cond formula.Node
		for i, d := range fq.fork.Dims {
			eq := formula.NewBinary(functions.OpNullSafeEq, x.ref(d), formula.NewField(fq.dimAliases[i]))
			if cond == nil {
				cond = eq
			} else {
				cond = formula.NewBinary(formula.OpAnd, cond, eq)
			}
		}
		if cond == nil {
			cond = formula.NewBoolean(true)
		}
		top.JoinOn = append(top.JoinOn, &compilation.CompiledJoinOnFormulaInfo{
			CompiledFormulaInfo: compilation.CompiledFormulaInfo{
				Expr:    cond,
				Alias:   ctx.ExprIDs.Next(),
				FromIDs: []string{base.ID, fq.query.ID},
			},
			LeftID:   base.ID,
			RightID:  fq.query.ID,
			JoinType: compilation.JoinLeft,
		})
	}
	if len(base.Select) == 0 {
		// 顶层查询只读取分叉结果时基础查询仍需输出一列
		x.ref(formula.NewInteger(1))
	}
	top.JoinedFrom = readSubqueries(subs...)

	return &compilation.Patch{Add: subs, Replace: []*compilation.CompiledQuery{top}}, nil
}

// forkQuery builds the sub-query computing one fork. Filters on the fields
// listed in the fork BEFORE FILTER BY clause and filters on aggregations
// are left out.
func (s QueryForkSplitter) forkQuery(ctx *Context, q *compilation.CompiledQuery, fork *formula.QueryFork) (*forkQuery, error) {
	fq := &forkQuery{fork: fork, query: innerQuery(q, ctx.QueryIDs.Next())}
	ids := fromIDs(fq.query)
	for _, f := range q.Filters {
		if containsFork(f.Expr) || containsWindow(f.Expr) || inspect.IsAggregateExpression(f.Expr, ctx.Env) {
			continue
		}
		if fork.BFB.Contains(fieldIDOf(f)) {
			continue
		}
		fq.query.Filters = append(fq.query.Filters, f)
	}
	for _, d := range fork.Dims {
		info := &compilation.CompiledFormulaInfo{Expr: d, Alias: ctx.ExprIDs.Next(), FromIDs: ids}
		fq.query.Select = append(fq.query.Select, info)
		fq.query.GroupBy = append(fq.query.GroupBy, info)
		fq.dimAliases = append(fq.dimAliases, info.Alias)
	}
	fq.resultAlias = ctx.ExprIDs.Next()
	fq.query.Select = append(fq.query.Select, &compilation.CompiledFormulaInfo{
		Expr:    fork.Result,
		Alias:   fq.resultAlias,
		FromIDs: ids,
	})
	return fq, nil
}

// lift computes the nested forks of q in a sub-query grouped by their
// dimensions, q then aggregates the sub-query rows. Every nested fork of
// q must share dimensions and BEFORE FILTER BY fields, and q must not read
// fields outside of those dimensions.
func (s QueryForkSplitter) lift(ctx *Context, q *compilation.CompiledQuery, forks []*formula.QueryFork) (*compilation.Patch, error) {
	fineDims := formula.NewNodeSet(forks[0].Dims...)
	bfb := forks[0].BFB
	for _, f := range forks[1:] {
		if !formula.NewNodeSet(f.Dims...).Equals(fineDims) || !formula.Equal(f.BFB, bfb) {
			return nil, exc.ErrLodIncompatibleDimensions.New(formula.Render(f))
		}
	}
	if !groupByDims(q).IsSubsetOf(fineDims) {
		return nil, exc.ErrLodIncompatibleDimensions.New(formula.Render(forks[0]))
	}

	inner := innerQuery(q, ctx.QueryIDs.Next())
	innerIDs := fromIDs(inner)
	x := newExtractor(inner, ctx.ExprIDs, fineDims.Contains)
	for _, d := range fineDims.Items() {
		ref := x.ref(d)
		inner.GroupBy = append(inner.GroupBy, &compilation.CompiledFormulaInfo{Expr: d, Alias: ref.Name, FromIDs: innerIDs})
	}
	results := make(map[int]string, len(forks))
	for i, f := range forks {
		results[i] = ctx.ExprIDs.Next()
		inner.Select = append(inner.Select, &compilation.CompiledFormulaInfo{Expr: f.Result, Alias: results[i], FromIDs: innerIDs})
	}

	var stray formula.Node
	x.replace = func(n formula.Node) (formula.Node, bool) {
		switch v := n.(type) {
		case *formula.QueryFork:
			for i, f := range forks {
				if formula.Equal(f, v) {
					return formula.NewField(results[i]), true
				}
			}
		case *formula.Field:
			if !fineDims.Contains(v) && stray == nil {
				stray = v
			}
		}
		return nil, false
	}

	outer := q.Clone()
	outer.JoinOn = nil
	outer.Filters = nil
	outerIDs := queryIDs(inner)
	for _, f := range q.Filters {
		aggregated := inspect.IsAggregateExpression(f.Expr, ctx.Env)
		if !aggregated && !bfb.Contains(fieldIDOf(f)) {
			inner.Filters = append(inner.Filters, f)
			continue
		}
		rf, err := x.rewriteInfo(f, outerIDs)
		if err != nil {
			return nil, err
		}
		outer.Filters = append(outer.Filters, rf)
	}
	for i, g := range q.GroupBy {
		rg, err := x.rewriteInfo(g, outerIDs)
		if err != nil {
			return nil, err
		}
		outer.GroupBy[i] = rg
	}
	for i, f := range q.Select {
		rf, err := x.rewriteInfo(f, outerIDs)
		if err != nil {
			return nil, err
		}
		outer.Select[i] = rf
	}
	for i, o := range q.OrderBy {
		ro, err := x.rewriteOrderBy(o, outerIDs)
		if err != nil {
			return nil, err
		}
		outer.OrderBy[i] = ro
	}
	if stray != nil {
		return nil, exc.ErrLodIncompatibleDimensions.New(formula.Render(stray))
	}
	outer.JoinedFrom = readSubqueries(inner)
	return &compilation.Patch{Add: []*compilation.CompiledQuery{inner}, Replace: []*compilation.CompiledQuery{outer}}, nil
}
