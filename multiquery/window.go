package multiquery

import (
	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/formula"
)

// WindowFunctionSplitter moves window functions above the level computing
// their arguments.
//
// Aggregations, grouping and the filters that apply before windows go to
// an inner query, the windows and the filters that apply after them stay
// in the outer query. Filters on fields listed in BEFORE FILTER BY of a
// window apply after it.
//
// With WindowLevel LevelCompeng the outer query is evaluated in memory,
// with LevelSourceDB it stays in the database and nested windows, window
// filters and BEFORE FILTER BY filters are lifted one level at a time.
type WindowFunctionSplitter struct {
	WindowLevel compilation.Level
}

func (s WindowFunctionSplitter) Name() string { return "window_function_" + string(s.WindowLevel) }

func (s WindowFunctionSplitter) Split(ctx *Context, q *compilation.CompiledQuery, _ []*compilation.CompiledQuery) (*compilation.Patch, error) {
	if !hasWindows(q) {
		return nil, nil
	}
	grouped := isGrouped(q, ctx.Env)
	if s.WindowLevel == compilation.LevelCompeng {
		if q.Level == compilation.LevelCompeng {
			return nil, nil
		}
		return s.split(ctx, q, grouped, compilation.LevelCompeng)
	}
	if grouped {
		return s.split(ctx, q, true, q.Level)
	}
	if !hasNestedWindows(q) && !hasLateFilters(q) {
		return nil, nil
	}
	return s.splitNested(ctx, q)
}

// split puts everything below the windows into an inner query at the
// level of q and evaluates the rest at outerLevel.
func (s WindowFunctionSplitter) split(ctx *Context, q *compilation.CompiledQuery, grouped bool, outerLevel compilation.Level) (*compilation.Patch, error) {
	inner := innerQuery(q, ctx.QueryIDs.Next())
	x := newExtractor(inner, ctx.ExprIDs, groupedPart(ctx.Env, groupByDims(q), grouped, containsWindow))
	for _, g := range q.GroupBy {
		ref := x.ref(g.Expr)
		inner.GroupBy = append(inner.GroupBy, &compilation.CompiledFormulaInfo{
			Expr:            g.Expr,
			Alias:           ref.Name,
			FromIDs:         fromIDs(inner),
			OriginalFieldID: g.OriginalFieldID,
		})
	}
	return s.finish(q, inner, x, outerLevel)
}

// splitNested moves the innermost windows and plain field references of an
// ungrouped query into an inner query.
func (s WindowFunctionSplitter) splitNested(ctx *Context, q *compilation.CompiledQuery) (*compilation.Patch, error) {
	inner := innerQuery(q, ctx.QueryIDs.Next())
	x := newExtractor(inner, ctx.ExprIDs, func(n formula.Node) bool {
		if w, ok := n.(*formula.WindowFuncCall); ok {
			return !windowInside(w)
		}
		if containsWindow(n) {
			return false
		}
		_, isField := n.(*formula.Field)
		return isField
	})
	return s.finish(q, inner, x, q.Level)
}

func (s WindowFunctionSplitter) finish(q, inner *compilation.CompiledQuery, x *extractor, outerLevel compilation.Level) (*compilation.Patch, error) {
	outer := q.Clone()
	outer.Level = outerLevel
	outer.JoinOn = nil
	outer.GroupBy = nil
	outer.Filters = nil
	outerIDs := queryIDs(inner)

	late := lateFilterFields(q)
	for _, f := range q.Filters {
		if !containsWindow(f.Expr) && !late[fieldIDOf(f)] {
			inner.Filters = append(inner.Filters, f)
			continue
		}
		rf, err := x.rewriteInfo(f, outerIDs)
		if err != nil {
			return nil, err
		}
		outer.Filters = append(outer.Filters, rf)
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
	if len(inner.Select) == 0 {
		x.ref(formula.NewInteger(1))
	}
	// 改写会向内层查询追加列，读取列表在改写之后生成
	outer.JoinedFrom = readSubqueries(inner)
	return &compilation.Patch{Add: []*compilation.CompiledQuery{inner}, Replace: []*compilation.CompiledQuery{outer}}, nil
}

func hasWindows(q *compilation.CompiledQuery) bool {
	for _, f := range q.AllFormulas() {
		if containsWindow(f.Expr) {
			return true
		}
	}
	return false
}

// windowInside reports whether a window call has another window below it.
func windowInside(w *formula.WindowFuncCall) bool {
	for _, c := range w.Children() {
		if containsWindow(c) {
			return true
		}
	}
	return false
}

func hasNestedWindows(q *compilation.CompiledQuery) bool {
	for _, f := range q.AllFormulas() {
		nested := inspectWindows(f.Expr, func(w *formula.WindowFuncCall) bool { return windowInside(w) })
		if nested {
			return true
		}
	}
	return false
}

// hasLateFilters reports whether q has filters that must apply after its
// windows: filters on windows and filters named in BEFORE FILTER BY.
func hasLateFilters(q *compilation.CompiledQuery) bool {
	late := lateFilterFields(q)
	for _, f := range q.Filters {
		if containsWindow(f.Expr) || late[fieldIDOf(f)] {
			return true
		}
	}
	return false
}

// lateFilterFields collects the BEFORE FILTER BY fields of the windows of q.
func lateFilterFields(q *compilation.CompiledQuery) map[string]bool {
	out := make(map[string]bool)
	for _, f := range q.AllFormulas() {
		inspectWindows(f.Expr, func(w *formula.WindowFuncCall) bool {
			for _, name := range w.BFB.FieldNames {
				out[name] = true
			}
			return false
		})
	}
	return out
}

// inspectWindows calls fn for the window calls of a tree until it returns true.
func inspectWindows(root formula.Node, fn func(*formula.WindowFuncCall) bool) bool {
	found := false
	formula.Walk(root, func(n formula.Node, _ []formula.Node) bool {
		if found {
			return false
		}
		if w, ok := n.(*formula.WindowFuncCall); ok && fn(w) {
			found = true
			return false
		}
		return true
	})
	return found
}
