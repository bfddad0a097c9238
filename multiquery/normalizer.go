package multiquery

import (
	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
)

// GroupByNormalizer adds to GROUP BY every selected expression of a grouped
// query that is neither grouped already, nor an aggregation, nor free of
// field references.
type GroupByNormalizer struct{}

func (GroupByNormalizer) Name() string { return "group_by_normalizer" }

func (GroupByNormalizer) Split(ctx *Context, q *compilation.CompiledQuery, _ []*compilation.CompiledQuery) (*compilation.Patch, error) {
	if len(q.GroupBy) == 0 {
		return nil, nil
	}
	missing := UngroupedSelect(q, ctx.Env)
	if len(missing) == 0 {
		return nil, nil
	}
	nq := q.Clone()
	for _, f := range missing {
		nq.GroupBy = append(nq.GroupBy, &compilation.CompiledFormulaInfo{
			Expr:            f.Expr,
			Alias:           f.Alias,
			FromIDs:         f.FromIDs,
			OriginalFieldID: f.OriginalFieldID,
		})
	}
	return &compilation.Patch{Replace: []*compilation.CompiledQuery{nq}}, nil
}

// UngroupedSelect returns the select items of q that violate grouping.
func UngroupedSelect(q *compilation.CompiledQuery, env *inspect.Environment) []*compilation.CompiledFormulaInfo {
	aliases := make(map[string]bool, len(q.GroupBy))
	exprs := formula.NewNodeSet()
	for _, g := range q.GroupBy {
		aliases[g.Alias] = true
		exprs.Add(g.Expr)
	}
	var out []*compilation.CompiledFormulaInfo
	for _, f := range q.Select {
		if aliases[f.Alias] || exprs.Contains(f.Expr) {
			continue
		}
		if inspect.IsAggregateExpression(f.Expr, env) || len(inspect.UsedFields(f.Expr)) == 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// LevelPropagator moves queries reading in-memory results, directly or
// through other queries, to the in-memory level.
type LevelPropagator struct{}

func (LevelPropagator) Name() string { return "level_propagator" }

func (LevelPropagator) Split(_ *Context, q *compilation.CompiledQuery, subtree []*compilation.CompiledQuery) (*compilation.Patch, error) {
	if q.Level == compilation.LevelCompeng {
		return nil, nil
	}
	for _, sub := range subtree {
		if sub.ID != q.ID && sub.Level == compilation.LevelCompeng {
			nq := q.Clone()
			nq.Level = compilation.LevelCompeng
			return &compilation.Patch{Replace: []*compilation.CompiledQuery{nq}}, nil
		}
	}
	return nil, nil
}
