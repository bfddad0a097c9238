package multiquery

import (
	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
)

// extractor moves parts of expressions into a sub-query and rewrites the
// expressions over the sub-query columns.
type extractor struct {
	sub    *compilation.CompiledQuery
	ids    *compilation.PrefixedIDGen
	isPart func(formula.Node) bool
	// replace is consulted before isPart
	replace func(formula.Node) (formula.Node, bool)
	parts   []*compilation.CompiledFormulaInfo
}

func newExtractor(sub *compilation.CompiledQuery, ids *compilation.PrefixedIDGen, isPart func(formula.Node) bool) *extractor {
	return &extractor{sub: sub, ids: ids, isPart: isPart}
}

// ref returns a reference to the sub-query column computing n, adding the
// column when needed.
func (x *extractor) ref(n formula.Node) *formula.Field {
	for _, p := range x.parts {
		if formula.Equal(p.Expr, n) {
			return formula.NewField(p.Alias)
		}
	}
	info := &compilation.CompiledFormulaInfo{
		Expr:    n,
		Alias:   x.ids.Next(),
		FromIDs: fromIDs(x.sub),
	}
	x.parts = append(x.parts, info)
	x.sub.Select = append(x.sub.Select, info)
	return formula.NewField(info.Alias)
}

func (x *extractor) rewrite(expr formula.Node) (formula.Node, error) {
	return formula.Replace(expr, func(n formula.Node) (formula.Node, bool) {
		if x.replace != nil {
			if r, ok := x.replace(n); ok {
				return r, true
			}
		}
		if x.isPart(n) {
			return x.ref(n), true
		}
		return nil, false
	})
}

func (x *extractor) rewriteInfo(f *compilation.CompiledFormulaInfo, outerFromIDs []string) (*compilation.CompiledFormulaInfo, error) {
	expr, err := x.rewrite(f.Expr)
	if err != nil {
		return nil, err
	}
	c := f.WithExpr(expr)
	c.FromIDs = outerFromIDs
	return c, nil
}

func (x *extractor) rewriteOrderBy(o *compilation.CompiledOrderByFormulaInfo, outerFromIDs []string) (*compilation.CompiledOrderByFormulaInfo, error) {
	expr, err := x.rewrite(o.Expr)
	if err != nil {
		return nil, err
	}
	c := o.WithExpr(expr)
	c.FromIDs = outerFromIDs
	return c, nil
}

// groupedPart selects what a grouped sub-query can compute: aggregations
// and the grouping expressions themselves. Without grouping only plain
// field references go down.
func groupedPart(env *inspect.Environment, dims *formula.NodeSet, grouped bool, keep func(formula.Node) bool) func(formula.Node) bool {
	return func(n formula.Node) bool {
		if keep(n) {
			return false
		}
		if grouped {
			if dims.Contains(n) {
				return true
			}
			if inspect.IsAggregateExpression(n, env) {
				return true
			}
		}
		_, isField := n.(*formula.Field)
		return isField
	}
}

// innerQuery starts a sub-query reading the same sources as q.
func innerQuery(q *compilation.CompiledQuery, id string) *compilation.CompiledQuery {
	return &compilation.CompiledQuery{
		ID:         id,
		Level:      q.Level,
		JoinedFrom: q.JoinedFrom,
		JoinOn:     q.JoinOn,
		Meta: compilation.QueryMeta{
			BlockID:   q.Meta.BlockID,
			QueryType: q.Meta.QueryType,
		},
	}
}

// readSubqueries makes the from list of a query reading subs, the first
// one being the root.
func readSubqueries(subs ...*compilation.CompiledQuery) compilation.JoinedFromObject {
	j := compilation.JoinedFromObject{RootFromID: subs[0].ID}
	for _, s := range subs {
		j.Froms = append(j.Froms, compilation.SubqueryFrom(s))
	}
	return j
}

// queryIDs lists the from ids of a query reading subs.
func queryIDs(subs ...*compilation.CompiledQuery) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID
	}
	return out
}

func fromIDs(q *compilation.CompiledQuery) []string {
	out := make([]string, 0, len(q.JoinedFrom.Froms))
	for _, f := range q.JoinedFrom.Froms {
		out = append(out, f.ID)
	}
	return out
}

func groupByDims(q *compilation.CompiledQuery) *formula.NodeSet {
	dims := formula.NewNodeSet()
	for _, g := range q.GroupBy {
		dims.Add(g.Expr)
	}
	return dims
}

// isGrouped reports whether q aggregates its rows.
func isGrouped(q *compilation.CompiledQuery, env *inspect.Environment) bool {
	if len(q.GroupBy) > 0 {
		return true
	}
	for _, f := range q.AllFormulas() {
		if inspect.IsAggregateExpression(f.Expr, env) {
			return true
		}
	}
	return false
}

func containsWindow(n formula.Node) bool {
	return inspect.ContainsNode(n, func(c formula.Node) bool {
		_, ok := c.(*formula.WindowFuncCall)
		return ok
	})
}

func containsFork(n formula.Node) bool {
	return inspect.ContainsNode(n, func(c formula.Node) bool {
		_, ok := c.(*formula.QueryFork)
		return ok
	})
}

// fieldIDOf returns the dataset field a filter was built for.
func fieldIDOf(f *compilation.CompiledFormulaInfo) string {
	return f.OriginalFieldID
}
