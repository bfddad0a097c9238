/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package compeng evaluates compeng-level queries in memory over the
// results of the queries they read.
//
// Scalar expressions are translated with the compeng dialect into expr-lang
// programs calling the runtime function table. Aggregations and window
// functions are computed by the engine itself into synthetic columns that
// the programs read like any other column.
//
// Evaluation order of one query:
//
//	join inputs -> plain filters -> group and aggregate -> aggregate filters
//	-> windows -> window filters -> select -> distinct -> order -> offset/limit
package compeng

import (
	"context"
	"sort"
	"strconv"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/translation"
	"github.com/rulego/dlquery/utils/cast"
)

// Evaluator evaluates compeng queries.
type Evaluator struct {
	registry *functions.Registry
	options  []expr.Option
	logger   logger.Logger
}

// NewEvaluator creates an evaluator using the compeng variants of reg.
func NewEvaluator(reg *functions.Registry, log logger.Logger) *Evaluator {
	return &Evaluator{registry: reg, options: ExprOptions(), logger: logger.OrDefault(log)}
}

// scalar is a compiled row expression.
type scalar struct {
	text    string
	program *vm.Program
}

func (s *scalar) eval(env map[string]interface{}) (interface{}, error) {
	v, err := expr.Run(s.program, env)
	if err != nil {
		return nil, exc.ErrCompeng.Wrap(err, "evaluation of "+s.text+" failed")
	}
	if n, ok := toNumber(v); ok {
		return numberValue(n), nil
	}
	return v, nil
}

func evalAll(scalars []*scalar, env map[string]interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(scalars))
	for i, s := range scalars {
		v, err := s.eval(env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func rowEnv(vars []string, row dataset.Row) map[string]interface{} {
	env := make(map[string]interface{}, len(vars))
	for i, name := range vars {
		env[name] = row.Get(i)
	}
	return env
}

type source struct {
	from    *compilation.FromObject
	rows    *dataset.Rows
	offset  int
	columns []int
}

type aggSlot struct {
	call *formula.FuncCall
	spec *AggregationSpec
	slot int
	args []*scalar
}

// plan is one query prepared for evaluation.
type plan struct {
	e       *Evaluator
	query   *compilation.CompiledQuery
	env     *inspect.Environment
	tr      *translation.Translator
	slots   map[string]int
	vars    []string
	sources []*source
	aggs    []*aggSlot
	windows []*windowSlot
}

func (e *Evaluator) newPlan(q *compilation.CompiledQuery, inputs map[string]*dataset.Rows) (*plan, error) {
	p := &plan{
		e:     e,
		query: q,
		env:   inspect.NewEnvironment(e.registry, nil),
		slots: make(map[string]int),
	}
	tr, err := translation.NewTranslator(e.registry, dialect.CompengV1, nil)
	if err != nil {
		return nil, err
	}
	tr.FieldRenderer = func(f *formula.Field) (string, error) {
		idx, ok := p.slots[f.Name]
		if !ok {
			return "", exc.ErrUnknownField.New(f.Name)
		}
		return p.vars[idx], nil
	}
	p.tr = tr

	root, ok := q.JoinedFrom.From(q.JoinedFrom.RootFromID)
	if !ok {
		return nil, exc.ErrInvalidQueryStructure.New("query " + q.ID + " has no root from " + q.JoinedFrom.RootFromID)
	}
	froms := []*compilation.FromObject{root}
	for _, f := range q.JoinedFrom.Froms {
		if f.ID != root.ID {
			froms = append(froms, f)
		}
	}
	for _, from := range froms {
		if !from.IsSubquery() {
			return nil, exc.ErrInvalidQueryStructure.New("in-memory query " + q.ID + " reads table " + from.Table)
		}
		rows, ok := inputs[from.QueryID]
		if !ok {
			return nil, exc.ErrPlanningDependency.New("no result for query " + from.QueryID)
		}
		s := &source{from: from, rows: rows, offset: len(p.vars)}
		for _, c := range from.Columns {
			idx := rows.Schema.Index(c.Name)
			if idx < 0 {
				return nil, exc.ErrCompeng.New("column " + c.Name + " is missing in the result of " + from.QueryID)
			}
			s.columns = append(s.columns, idx)
			p.addSlot(c.Name)
		}
		p.sources = append(p.sources, s)
	}
	return p, nil
}

func (p *plan) addSlot(name string) int {
	idx := len(p.vars)
	p.slots[name] = idx
	p.vars = append(p.vars, "c"+strconv.Itoa(idx))
	return idx
}

func (p *plan) compile(n formula.Node) (*scalar, error) {
	text, err := p.tr.Translate(n)
	if err != nil {
		return nil, err
	}
	program, err := expr.Compile(text, p.e.options...)
	if err != nil {
		return nil, exc.ErrCompeng.Wrap(err, "cannot compile "+text)
	}
	return &scalar{text: text, program: program}, nil
}

func (p *plan) compileAll(nodes []formula.Node) ([]*scalar, error) {
	out := make([]*scalar, len(nodes))
	for i, n := range nodes {
		s, err := p.compile(n)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// extract replaces the outermost aggregations, then the window calls
// innermost first, with synthetic columns.
func (p *plan) extract(n formula.Node) (formula.Node, error) {
	var failed error
	n, err := formula.Replace(n, func(node formula.Node) (formula.Node, bool) {
		call, ok := node.(*formula.FuncCall)
		if !ok || !inspect.IsAggregateFunction(p.env, call) {
			return nil, false
		}
		for _, a := range p.aggs {
			if formula.Equal(a.call, call) {
				return formula.NewField(p.nameOf(a.slot)), true
			}
		}
		spec, err := LookupAggregation(call.Name, len(call.Args))
		if err != nil {
			failed = err
			return nil, false
		}
		name := "__agg" + strconv.Itoa(len(p.aggs))
		p.aggs = append(p.aggs, &aggSlot{call: call, spec: spec, slot: p.addSlot(name)})
		return formula.NewField(name), true
	})
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return nil, failed
	}
	return formula.Transform(n, func(node formula.Node) (formula.Node, error) {
		w, ok := node.(*formula.WindowFuncCall)
		if !ok {
			return node, nil
		}
		for _, ws := range p.windows {
			if formula.Equal(ws.call, w) {
				return formula.NewField(p.nameOf(ws.slot)), nil
			}
		}
		class, _ := p.e.registry.Classify(w.Name)
		name := "__win" + strconv.Itoa(len(p.windows))
		p.windows = append(p.windows, &windowSlot{call: w, class: class, slot: p.addSlot(name)})
		return formula.NewField(name), nil
	})
}

func (p *plan) nameOf(slot int) string {
	for name, idx := range p.slots {
		if idx == slot {
			return name
		}
	}
	return ""
}

// compileSynthetic compiles the arguments of extracted aggregations and windows.
func (p *plan) compileSynthetic() error {
	var err error
	for _, a := range p.aggs {
		if a.args, err = p.compileAll(a.call.Args); err != nil {
			return err
		}
	}
	for _, w := range p.windows {
		if w.args, err = p.compileAll(w.call.Args); err != nil {
			return err
		}
		if w.call.Grouping.Kind == formula.GroupingAmong {
			return exc.ErrCompeng.New("AMONG of " + w.call.Name + " must be resolved to WITHIN")
		}
		if w.call.Grouping.Kind == formula.GroupingWithin {
			if w.partition, err = p.compileAll(w.call.Grouping.Dims); err != nil {
				return err
			}
		}
		for _, item := range w.call.Ordering.Items {
			s, err := p.compile(item.Expr)
			if err != nil {
				return err
			}
			w.order = append(w.order, s)
			w.desc = append(w.desc, item.Desc)
		}
	}
	return nil
}

// join builds the cross product of the inputs restricted by the join
// conditions. Rows of an unmatched left join keep NULLs on the right.
func (p *plan) join() ([]dataset.Row, error) {
	conds := make(map[string]*compilation.CompiledJoinOnFormulaInfo)
	for _, j := range p.query.JoinOn {
		conds[j.RightID] = j
	}
	width := len(p.vars)
	fill := func(s *source, in dataset.Row, out dataset.Row) {
		for k, idx := range s.columns {
			out[s.offset+k] = in.Get(idx)
		}
	}
	root := p.sources[0]
	joined := make([]dataset.Row, 0, root.rows.Len())
	for _, r := range root.rows.Rows {
		row := make(dataset.Row, width)
		fill(root, r, row)
		joined = append(joined, row)
	}
	for _, s := range p.sources[1:] {
		var cond *scalar
		left := false
		if j, ok := conds[s.from.ID]; ok {
			var err error
			if cond, err = p.compile(j.Expr); err != nil {
				return nil, err
			}
			left = j.JoinType == compilation.JoinLeft
		}
		var next []dataset.Row
		for _, l := range joined {
			matched := false
			for _, r := range s.rows.Rows {
				row := append(dataset.Row(nil), l...)
				fill(s, r, row)
				if cond != nil {
					v, err := cond.eval(rowEnv(p.vars, row))
					if err != nil {
						return nil, err
					}
					if !isTrue(v) {
						continue
					}
				}
				matched = true
				next = append(next, row)
			}
			if !matched && left {
				next = append(next, l)
			}
		}
		joined = next
	}
	return joined, nil
}

func (p *plan) filter(rows []dataset.Row, filters []*scalar) ([]dataset.Row, error) {
	if len(filters) == 0 {
		return rows, nil
	}
	out := rows[:0:0]
	for _, row := range rows {
		env := rowEnv(p.vars, row)
		keep := true
		for _, f := range filters {
			v, err := f.eval(env)
			if err != nil {
				return nil, err
			}
			if !isTrue(v) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

// group collapses rows by the group-by values. A query aggregating without
// dimensions returns one row even for empty input.
func (p *plan) group(rows []dataset.Row, groupBy []*scalar) ([]dataset.Row, error) {
	var (
		order   []string
		members = make(map[string][]dataset.Row)
	)
	for _, row := range rows {
		values, err := evalAll(groupBy, rowEnv(p.vars, row))
		if err != nil {
			return nil, err
		}
		key := groupKey(values)
		if _, ok := members[key]; !ok {
			order = append(order, key)
		}
		members[key] = append(members[key], row)
	}
	if len(order) == 0 && len(groupBy) == 0 {
		order = append(order, "")
		members[""] = nil
	}
	out := make([]dataset.Row, 0, len(order))
	for _, key := range order {
		group := members[key]
		result := make(dataset.Row, len(p.vars))
		if len(group) > 0 {
			copy(result, group[0])
		}
		for _, a := range p.aggs {
			agg := a.spec.Aggregator.New()
			for _, row := range group {
				args, err := evalAll(a.args, rowEnv(p.vars, row))
				if err != nil {
					return nil, err
				}
				a.spec.Feed(agg, args)
			}
			result[a.slot] = agg.Result()
		}
		out = append(out, result)
	}
	return out, nil
}

type projected struct {
	values dataset.Row
	order  []interface{}
}

// Evaluate computes q over the results of its sub-queries, keyed by query ID.
// The result columns follow q.Columns, values coerced to their types.
func (e *Evaluator) Evaluate(ctx context.Context, tq *translation.TranslatedQuery, inputs map[string]*dataset.Rows) (*dataset.Rows, error) {
	q := tq.Query
	p, err := e.newPlan(q, inputs)
	if err != nil {
		return nil, err
	}
	rows, err := p.join()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, exc.ErrExecutionCancelled.Wrap(err)
	}
	inputCount := len(rows)

	var plainFilters, aggFilters, windowFilters []formula.Node
	for _, f := range q.Filters {
		switch {
		case inspect.IsWindowExpression(f.Expr, p.env):
			windowFilters = append(windowFilters, f.Expr)
		case inspect.IsAggregateExpression(f.Expr, p.env):
			aggFilters = append(aggFilters, f.Expr)
		default:
			plainFilters = append(plainFilters, f.Expr)
		}
	}
	plain, err := p.compileAll(plainFilters)
	if err != nil {
		return nil, err
	}
	groupBy := make([]formula.Node, len(q.GroupBy))
	for i, g := range q.GroupBy {
		groupBy[i] = g.Expr
	}
	groupScalars, err := p.compileAll(groupBy)
	if err != nil {
		return nil, err
	}

	rewrite := func(nodes []formula.Node) ([]formula.Node, error) {
		out := make([]formula.Node, len(nodes))
		for i, n := range nodes {
			r, err := p.extract(n)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	selects := make([]formula.Node, len(q.Select))
	for i, f := range q.Select {
		selects[i] = f.Expr
	}
	orders := make([]formula.Node, len(q.OrderBy))
	desc := make([]bool, len(q.OrderBy))
	for i, o := range q.OrderBy {
		orders[i] = o.Expr
		desc[i] = o.Direction == legend.Desc
	}
	if selects, err = rewrite(selects); err != nil {
		return nil, err
	}
	if orders, err = rewrite(orders); err != nil {
		return nil, err
	}
	if aggFilters, err = rewrite(aggFilters); err != nil {
		return nil, err
	}
	if windowFilters, err = rewrite(windowFilters); err != nil {
		return nil, err
	}
	if err := p.compileSynthetic(); err != nil {
		return nil, err
	}

	if rows, err = p.filter(rows, plain); err != nil {
		return nil, err
	}
	if len(q.GroupBy) > 0 || len(p.aggs) > 0 {
		if rows, err = p.group(rows, groupScalars); err != nil {
			return nil, err
		}
	}
	having, err := p.compileAll(aggFilters)
	if err != nil {
		return nil, err
	}
	if rows, err = p.filter(rows, having); err != nil {
		return nil, err
	}
	// 合成列在 join 之后才分配，窗口写入前补齐行宽
	for i, row := range rows {
		if len(row) < len(p.vars) {
			rows[i] = append(row, make(dataset.Row, len(p.vars)-len(row))...)
		}
	}
	for _, w := range p.windows {
		if err := ctx.Err(); err != nil {
			return nil, exc.ErrExecutionCancelled.Wrap(err)
		}
		if err := w.compute(rows, p.vars); err != nil {
			return nil, err
		}
	}
	late, err := p.compileAll(windowFilters)
	if err != nil {
		return nil, err
	}
	if rows, err = p.filter(rows, late); err != nil {
		return nil, err
	}

	selectScalars, err := p.compileAll(selects)
	if err != nil {
		return nil, err
	}
	orderScalars, err := p.compileAll(orders)
	if err != nil {
		return nil, err
	}
	results := make([]projected, 0, len(rows))
	seen := make(map[string]struct{})
	for _, row := range rows {
		env := rowEnv(p.vars, row)
		values, err := evalAll(selectScalars, env)
		if err != nil {
			return nil, err
		}
		if q.Meta.Distinct {
			key := groupKey(values)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		order, err := evalAll(orderScalars, env)
		if err != nil {
			return nil, err
		}
		results = append(results, projected{values: values, order: order})
	}
	if len(orderScalars) > 0 {
		sort.SliceStable(results, func(a, b int) bool {
			return compareTuples(results[a].order, results[b].order, desc) < 0
		})
	}
	results = page(results, q.Offset, q.Limit)

	out := dataset.NewRows(tq.Columns)
	for _, r := range results {
		for i, c := range tq.Columns {
			if v, err := cast.Coerce(r.values[i], c.DataType); err == nil {
				r.values[i] = v
			}
		}
		out.AddRow(r.values)
	}
	e.logger.Debug("compeng query %s: %d input rows, %d result rows", q.ID, inputCount, out.Len())
	return out, nil
}

func page[T any](items []T, offset, limit *int) []T {
	if offset != nil {
		if *offset >= len(items) {
			return items[:0]
		}
		items = items[*offset:]
	}
	if limit != nil && *limit < len(items) {
		items = items[:*limit]
	}
	return items
}
