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

// Package compilation turns block legends into compiled multi-queries: a
// DAG of flat queries whose formulas reference either source table columns
// or the columns of other queries of the same DAG.
package compilation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/legend"
)

// Level 查询执行层级
type Level string

const (
	// LevelSourceDB queries are translated to SQL of the source database
	LevelSourceDB Level = "source_db"
	// LevelCompeng queries are evaluated in memory
	LevelCompeng Level = "compeng"
)

// CompiledFormulaInfo is one compiled expression of a query.
type CompiledFormulaInfo struct {
	Expr  formula.Node
	Alias string
	// FromIDs are the ids of the from objects the expression reads
	FromIDs         []string
	OriginalFieldID string
}

// WithExpr returns a copy carrying expr.
func (f *CompiledFormulaInfo) WithExpr(expr formula.Node) *CompiledFormulaInfo {
	c := *f
	c.Expr = expr
	return &c
}

// CompiledOrderByFormulaInfo is an ORDER BY item.
type CompiledOrderByFormulaInfo struct {
	CompiledFormulaInfo
	Direction legend.Direction
}

// WithExpr returns a copy carrying expr.
func (f *CompiledOrderByFormulaInfo) WithExpr(expr formula.Node) *CompiledOrderByFormulaInfo {
	c := *f
	c.Expr = expr
	return &c
}

// JoinType 连接类型
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
)

// CompiledJoinOnFormulaInfo joins RightID onto the already joined froms.
type CompiledJoinOnFormulaInfo struct {
	CompiledFormulaInfo
	LeftID   string
	RightID  string
	JoinType JoinType
}

// FromColumn is a column exposed by a from object.
type FromColumn struct {
	ID   string
	Name string
}

// FromObject is a source table or a sub-query read by a query.
type FromObject struct {
	ID      string
	Alias   string
	Columns []FromColumn
	// Table is set for source tables
	Table string
	// QueryID is set for sub-queries
	QueryID string
}

// IsSubquery reports whether the object reads another query.
func (f *FromObject) IsSubquery() bool {
	return f.QueryID != ""
}

// HasColumn reports whether the object exposes a column named name.
func (f *FromObject) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// SubqueryFrom builds the from object reading q.
func SubqueryFrom(q *CompiledQuery) *FromObject {
	cols := make([]FromColumn, 0, len(q.Select))
	for _, f := range q.Select {
		cols = append(cols, FromColumn{ID: f.Alias, Name: f.Alias})
	}
	return &FromObject{ID: q.ID, Alias: q.ID, Columns: cols, QueryID: q.ID}
}

// JoinedFromObject lists the from objects of a query, the first one being
// the root of the joins.
type JoinedFromObject struct {
	RootFromID string
	Froms      []*FromObject
}

// From returns the from object with id.
func (j JoinedFromObject) From(id string) (*FromObject, bool) {
	for _, f := range j.Froms {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// FromForColumn returns the from object exposing column name.
func (j JoinedFromObject) FromForColumn(name string) (*FromObject, bool) {
	for _, f := range j.Froms {
		if f.HasColumn(name) {
			return f, true
		}
	}
	return nil, false
}

// QueryMeta carries request settings through splitting.
type QueryMeta struct {
	BlockID           int
	QueryType         legend.QueryType
	RowCountHardLimit *int
	EmptyQueryMode    legend.EmptyQueryMode
	Distinct          bool
	// LegendItemIDs is aligned with Select of top queries
	LegendItemIDs []int
}

// CompiledQuery is one flat query of a multi-query.
type CompiledQuery struct {
	ID         string
	Level      Level
	Select     []*CompiledFormulaInfo
	GroupBy    []*CompiledFormulaInfo
	Filters    []*CompiledFormulaInfo
	OrderBy    []*CompiledOrderByFormulaInfo
	JoinOn     []*CompiledJoinOnFormulaInfo
	JoinedFrom JoinedFromObject
	Limit      *int
	Offset     *int
	Meta       QueryMeta
}

// Clone returns a copy with its own slices. Formula infos are shared, they
// are replaced and never modified in place.
func (q *CompiledQuery) Clone() *CompiledQuery {
	c := *q
	c.Select = append([]*CompiledFormulaInfo(nil), q.Select...)
	c.GroupBy = append([]*CompiledFormulaInfo(nil), q.GroupBy...)
	c.Filters = append([]*CompiledFormulaInfo(nil), q.Filters...)
	c.OrderBy = append([]*CompiledOrderByFormulaInfo(nil), q.OrderBy...)
	c.JoinOn = append([]*CompiledJoinOnFormulaInfo(nil), q.JoinOn...)
	c.JoinedFrom.Froms = append([]*FromObject(nil), q.JoinedFrom.Froms...)
	c.Meta.LegendItemIDs = append([]int(nil), q.Meta.LegendItemIDs...)
	return &c
}

// SubqueryIDs returns the ids of the queries read by q.
func (q *CompiledQuery) SubqueryIDs() []string {
	var ids []string
	for _, f := range q.JoinedFrom.Froms {
		if f.IsSubquery() {
			ids = append(ids, f.QueryID)
		}
	}
	return ids
}

// AllFormulas returns select, group by, filter, order by and join formulas.
func (q *CompiledQuery) AllFormulas() []*CompiledFormulaInfo {
	out := make([]*CompiledFormulaInfo, 0, len(q.Select)+len(q.GroupBy)+len(q.Filters)+len(q.OrderBy)+len(q.JoinOn))
	out = append(out, q.Select...)
	out = append(out, q.GroupBy...)
	out = append(out, q.Filters...)
	for _, o := range q.OrderBy {
		out = append(out, &o.CompiledFormulaInfo)
	}
	for _, j := range q.JoinOn {
		out = append(out, &j.CompiledFormulaInfo)
	}
	return out
}

// SelectByAlias returns the select item labelled alias.
func (q *CompiledQuery) SelectByAlias(alias string) (*CompiledFormulaInfo, bool) {
	for _, f := range q.Select {
		if f.Alias == alias {
			return f, true
		}
	}
	return nil, false
}

func (q *CompiledQuery) String() string {
	return fmt.Sprintf("%s[%s] select=%d group_by=%d filters=%d from=%v",
		q.ID, q.Level, len(q.Select), len(q.GroupBy), len(q.Filters), q.SubqueryIDs())
}

// CompiledBlock links a block to the top query computing its rows.
type CompiledBlock struct {
	BlockID       int
	QueryID       string
	ParentBlockID *int
	Placement     legend.Placement
	LegendItemIDs []int
	Limit         *int
	Offset        *int
}

// PrefixedIDGen 带前缀的自增 id 生成器，单次编译内共享
type PrefixedIDGen struct {
	prefix string
	last   int
}

// NewPrefixedIDGen creates a generator producing prefix1, prefix2, ...
func NewPrefixedIDGen(prefix string) *PrefixedIDGen {
	return &PrefixedIDGen{prefix: prefix}
}

// Next returns a new id.
func (g *PrefixedIDGen) Next() string {
	g.last++
	return g.prefix + strconv.Itoa(g.last)
}

// Observe makes sure later ids do not collide with id.
func (g *PrefixedIDGen) Observe(id string) {
	if !strings.HasPrefix(id, g.prefix) {
		return
	}
	if n, err := strconv.Atoi(id[len(g.prefix):]); err == nil && n > g.last {
		g.last = n
	}
}

// Patch describes a change to a multi-query: Replace holds new versions of
// existing queries (matched by id), Add holds new queries.
type Patch struct {
	Add     []*CompiledQuery
	Replace []*CompiledQuery
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p == nil || (len(p.Add) == 0 && len(p.Replace) == 0)
}

// CompiledMultiQuery is an immutable DAG of compiled queries. Patches
// produce new values sharing the unchanged queries.
type CompiledMultiQuery struct {
	queries []*CompiledQuery
	byID    map[string]*CompiledQuery
	Blocks  []*CompiledBlock
	// QueryIDs and ExprIDs are shared by every pass over this multi-query
	QueryIDs *PrefixedIDGen
	ExprIDs  *PrefixedIDGen
}

// NewCompiledMultiQuery indexes queries. Duplicate ids are rejected.
func NewCompiledMultiQuery(queries []*CompiledQuery, blocks []*CompiledBlock) (*CompiledMultiQuery, error) {
	mq := &CompiledMultiQuery{
		byID:     make(map[string]*CompiledQuery, len(queries)),
		Blocks:   blocks,
		QueryIDs: NewPrefixedIDGen("q"),
		ExprIDs:  NewPrefixedIDGen("e"),
	}
	for _, q := range queries {
		if _, dup := mq.byID[q.ID]; dup {
			return nil, exc.ErrPlanningDependency.New("duplicate query id " + q.ID)
		}
		mq.byID[q.ID] = q
		mq.queries = append(mq.queries, q)
		mq.QueryIDs.Observe(q.ID)
		for _, f := range q.AllFormulas() {
			mq.ExprIDs.Observe(f.Alias)
		}
	}
	return mq, nil
}

// Queries returns the queries in insertion order.
func (mq *CompiledMultiQuery) Queries() []*CompiledQuery {
	return append([]*CompiledQuery(nil), mq.queries...)
}

// Len returns the number of queries.
func (mq *CompiledMultiQuery) Len() int { return len(mq.queries) }

// QueryByID returns a query by id.
func (mq *CompiledMultiQuery) QueryByID(id string) (*CompiledQuery, bool) {
	q, ok := mq.byID[id]
	return q, ok
}

// TopQueries returns the queries no other query reads, in insertion order.
func (mq *CompiledMultiQuery) TopQueries() []*CompiledQuery {
	referenced := make(map[string]bool)
	for _, q := range mq.queries {
		for _, id := range q.SubqueryIDs() {
			referenced[id] = true
		}
	}
	var out []*CompiledQuery
	for _, q := range mq.queries {
		if !referenced[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

// ForLevel returns the queries of a level.
func (mq *CompiledMultiQuery) ForLevel(level Level) []*CompiledQuery {
	var out []*CompiledQuery
	for _, q := range mq.queries {
		if q.Level == level {
			out = append(out, q)
		}
	}
	return out
}

// RequirementSubtree returns the ids of id and every query it depends on,
// transitively, in insertion order.
func (mq *CompiledMultiQuery) RequirementSubtree(id string) []string {
	seen := map[string]bool{}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if q, ok := mq.byID[cur]; ok {
			stack = append(stack, q.SubqueryIDs()...)
		}
	}
	var out []string
	for _, q := range mq.queries {
		if seen[q.ID] {
			out = append(out, q.ID)
		}
	}
	return out
}

// ApplyPatch returns a new multi-query with the patch applied. Added ids
// must be new, replaced ids must exist.
func (mq *CompiledMultiQuery) ApplyPatch(p *Patch) (*CompiledMultiQuery, error) {
	if p.IsEmpty() {
		return mq, nil
	}
	replaced := make(map[string]*CompiledQuery, len(p.Replace))
	for _, q := range p.Replace {
		if _, ok := mq.byID[q.ID]; !ok {
			return nil, exc.ErrInvalidPatch.New("replaced query " + q.ID + " does not exist")
		}
		replaced[q.ID] = q
	}
	out := &CompiledMultiQuery{
		byID:     make(map[string]*CompiledQuery, len(mq.queries)+len(p.Add)),
		Blocks:   mq.Blocks,
		QueryIDs: mq.QueryIDs,
		ExprIDs:  mq.ExprIDs,
	}
	// 新增的子查询排在被替换查询之前，保证插入顺序接近依赖顺序
	added := make(map[string]bool, len(p.Add))
	for _, q := range p.Add {
		if _, exists := mq.byID[q.ID]; exists || added[q.ID] {
			return nil, exc.ErrInvalidPatch.New("added query " + q.ID + " already exists")
		}
		added[q.ID] = true
	}
	pending := p.Add
	for _, q := range mq.queries {
		if r, ok := replaced[q.ID]; ok {
			for _, a := range pending {
				out.push(a)
			}
			pending = nil
			q = r
		}
		out.push(q)
	}
	for _, a := range pending {
		out.push(a)
	}
	return out, out.Validate()
}

func (mq *CompiledMultiQuery) push(q *CompiledQuery) {
	mq.byID[q.ID] = q
	mq.queries = append(mq.queries, q)
	mq.QueryIDs.Observe(q.ID)
}

// Validate checks that every referenced query exists and that the graph
// has no cycles.
func (mq *CompiledMultiQuery) Validate() error {
	_, err := mq.TopologicalOrder()
	return err
}

// TopologicalOrder returns the queries ordered so that every query comes
// after the queries it reads.
func (mq *CompiledMultiQuery) TopologicalOrder() ([]*CompiledQuery, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(mq.queries))
	out := make([]*CompiledQuery, 0, len(mq.queries))
	var visit func(q *CompiledQuery, path []string) error
	visit = func(q *CompiledQuery, path []string) error {
		switch state[q.ID] {
		case done:
			return nil
		case visiting:
			return exc.ErrPlanningDependency.New("cycle " + strings.Join(append(path, q.ID), " -> "))
		}
		state[q.ID] = visiting
		for _, id := range q.SubqueryIDs() {
			sub, ok := mq.byID[id]
			if !ok {
				return exc.ErrPlanningDependency.New(fmt.Sprintf("query %s reads unknown query %s", q.ID, id))
			}
			if err := visit(sub, append(path, q.ID)); err != nil {
				return err
			}
		}
		state[q.ID] = done
		out = append(out, q)
		return nil
	}
	for _, q := range mq.queries {
		if err := visit(q, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BlockForQuery returns the block computed by a top query.
func (mq *CompiledMultiQuery) BlockForQuery(id string) (*CompiledBlock, bool) {
	for _, b := range mq.Blocks {
		if b.QueryID == id {
			return b, true
		}
	}
	return nil, false
}

// Dump renders the multi-query for debugging, one query per line.
func (mq *CompiledMultiQuery) Dump() string {
	lines := make([]string, 0, len(mq.queries))
	for _, q := range mq.queries {
		var sel []string
		for _, f := range q.Select {
			sel = append(sel, f.Alias+"="+formula.Render(f.Expr))
		}
		lines = append(lines, q.String()+" "+strings.Join(sel, ", "))
	}
	return strings.Join(lines, "\n")
}
