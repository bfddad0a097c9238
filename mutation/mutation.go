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

// Package mutation holds tree rewrites applied to formulas before they
// are compiled. Every mutation is a pure function of the node it gets and
// returns the node itself when there is nothing to change.
package mutation

import (
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
)

// Mutation 单个节点的改写规则，按后序遍历调用
type Mutation interface {
	Name() string
	Mutate(node formula.Node) (formula.Node, error)
}

// Apply runs every mutation as its own bottom-up pass, in order.
func Apply(tree formula.Node, mutations ...Mutation) (formula.Node, error) {
	var err error
	for _, m := range mutations {
		tree, err = formula.Transform(tree, m.Mutate)
		if err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// AmongToWithinGrouping turns AMONG dims into WITHIN (global dims - among dims),
// keeping the order of the global dimensions. AMONG over every global
// dimension becomes TOTAL.
type AmongToWithinGrouping struct {
	GlobalDimensions []formula.Node
}

func (m AmongToWithinGrouping) Name() string { return "among_to_within_grouping" }

func (m AmongToWithinGrouping) Mutate(node formula.Node) (formula.Node, error) {
	g, ok := node.(*formula.WindowGrouping)
	if !ok || g.Kind != formula.GroupingAmong {
		return node, nil
	}
	among := formula.NewNodeSet(g.Dims...)
	within := make([]formula.Node, 0, len(m.GlobalDimensions))
	for _, d := range formula.NewNodeSet(m.GlobalDimensions...).Items() {
		if !among.Contains(d) {
			within = append(within, d)
		}
	}
	return withinOrTotal(within), nil
}

// withinOrTotal 空的 WITHIN 与 TOTAL 等价，统一写成 TOTAL
func withinOrTotal(dims []formula.Node) *formula.WindowGrouping {
	if len(dims) == 0 {
		return formula.NewGrouping(formula.GroupingTotal)
	}
	return formula.NewGrouping(formula.GroupingWithin, dims...)
}

// IgnoreExtraWithinGrouping drops WITHIN dimensions that are not global dimensions.
type IgnoreExtraWithinGrouping struct {
	GlobalDimensions []formula.Node
}

func (m IgnoreExtraWithinGrouping) Name() string { return "ignore_extra_within_grouping" }

func (m IgnoreExtraWithinGrouping) Mutate(node formula.Node) (formula.Node, error) {
	g, ok := node.(*formula.WindowGrouping)
	if !ok || g.Kind != formula.GroupingWithin {
		return node, nil
	}
	global := formula.NewNodeSet(m.GlobalDimensions...)
	kept := make([]formula.Node, 0, len(g.Dims))
	for _, d := range g.Dims {
		if global.Contains(d) {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(g.Dims) {
		return node, nil
	}
	return withinOrTotal(kept), nil
}

// DefaultWindowOrdering appends the default ORDER BY items missing from
// windows that need ordering. User items stay first.
type DefaultWindowOrdering struct {
	DefaultOrderBy []*formula.OrderItem
	Env            *inspect.Environment
}

func (m DefaultWindowOrdering) Name() string { return "default_window_ordering" }

func (m DefaultWindowOrdering) Mutate(node formula.Node) (formula.Node, error) {
	w, ok := node.(*formula.WindowFuncCall)
	if !ok || len(m.DefaultOrderBy) == 0 || !inspect.RequiresOrdering(m.Env, w.Name) {
		return node, nil
	}
	present := formula.NewNodeSet()
	for _, item := range w.Ordering.Items {
		present.Add(item.Expr)
	}
	items := append([]*formula.OrderItem(nil), w.Ordering.Items...)
	for _, item := range m.DefaultOrderBy {
		if present.Add(item.Expr) {
			items = append(items, item)
		}
	}
	if len(items) == len(w.Ordering.Items) {
		return node, nil
	}
	c := *w
	c.Ordering = formula.NewOrdering(items...)
	return &c, nil
}

// RemapBfb renames BEFORE FILTER BY field references everywhere in the tree.
type RemapBfb struct {
	NameMapping map[string]string
}

func (m RemapBfb) Name() string { return "remap_bfb" }

func (m RemapBfb) Mutate(node formula.Node) (formula.Node, error) {
	bfb, ok := node.(*formula.BeforeFilterBy)
	if !ok || bfb.Empty() {
		return node, nil
	}
	changed := false
	names := make([]string, len(bfb.FieldNames))
	for i, name := range bfb.FieldNames {
		if mapped, ok := m.NameMapping[name]; ok && mapped != name {
			name = mapped
			changed = true
		}
		names[i] = name
	}
	if !changed {
		return node, nil
	}
	return formula.NewBeforeFilterBy(names...), nil
}

// Replacement swaps every occurrence of Original by Replacement.
// Use ReplaceAll for several pairs or outermost-only semantics.
type Replacement struct {
	Original    formula.Node
	Replacement formula.Node
}

func (m Replacement) Name() string { return "replacement" }

func (m Replacement) Mutate(node formula.Node) (formula.Node, error) {
	if formula.Equal(node, m.Original) {
		return m.Replacement, nil
	}
	return node, nil
}

// ReplaceAll substitutes the outermost subtrees equal to one of the
// originals. Subtrees inside a replaced node are not visited.
func ReplaceAll(tree formula.Node, replacements ...Replacement) (formula.Node, error) {
	if len(replacements) == 0 {
		return tree, nil
	}
	byHash := make(map[uint64][]Replacement, len(replacements))
	for _, r := range replacements {
		h := formula.Hash(r.Original)
		byHash[h] = append(byHash[h], r)
	}
	return formula.Replace(tree, func(n formula.Node) (formula.Node, bool) {
		for _, r := range byHash[formula.Hash(n)] {
			if formula.Equal(n, r.Original) {
				return r.Replacement, true
			}
		}
		return nil, false
	})
}
