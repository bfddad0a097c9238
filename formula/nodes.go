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

package formula

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Position 节点在公式文本中的位置（字节偏移，左闭右开）
type Position struct {
	Start int
	End   int
}

// Meta 节点的元信息，不参与结构比较
type Meta struct {
	Position Position
	Text     string
}

// Node is a formula AST node.
// The interface is sealed: only types of this package implement it.
// Nodes are never modified after construction, WithChildren returns a copy.
type Node interface {
	// Children returns direct children in a fixed order
	Children() []Node
	// WithChildren returns a copy of the node with the given children,
	// in the same order and count as returned by Children
	WithChildren(children []Node) Node
	// Meta returns source position information
	Meta() Meta
	// Autonomous reports whether the node is a standalone expression.
	// Sub-clauses (LOD, grouping, ordering...) are not autonomous.
	Autonomous() bool
	sealed()
}

type base struct {
	meta Meta
}

func (b base) Meta() Meta       { return b.meta }
func (b base) Autonomous() bool { return true }
func (b base) sealed()          {}

type leaf struct{ base }

func (leaf) Children() []Node { return nil }

type clause struct{ base }

func (clause) Autonomous() bool { return false }

type metaSetter interface {
	setMeta(Meta)
}

func (b *base) setMeta(m Meta) { b.meta = m }

// at attaches source information to a freshly built node.
func at(n Node, m Meta) Node {
	if s, ok := n.(metaSetter); ok {
		s.setMeta(m)
	}
	return n
}

// Field 字段引用 [Name]
type Field struct {
	leaf
	Name string
}

// NewField creates a field reference
func NewField(name string) *Field { return &Field{Name: name} }

func (n *Field) WithChildren([]Node) Node { return n }

// Literal is implemented by every constant node.
type Literal interface {
	Node
	LiteralValue() interface{}
}

// Null NULL 字面量
type Null struct{ leaf }

func NewNull() *Null                        { return &Null{} }
func (n *Null) WithChildren([]Node) Node    { return n }
func (n *Null) LiteralValue() interface{}   { return nil }

// LiteralInteger 整数字面量
type LiteralInteger struct {
	leaf
	Value int64
}

func NewInteger(v int64) *LiteralInteger             { return &LiteralInteger{Value: v} }
func (n *LiteralInteger) WithChildren([]Node) Node  { return n }
func (n *LiteralInteger) LiteralValue() interface{} { return n.Value }

// LiteralFloat 浮点字面量
type LiteralFloat struct {
	leaf
	Value float64
}

func NewFloat(v float64) *LiteralFloat             { return &LiteralFloat{Value: v} }
func (n *LiteralFloat) WithChildren([]Node) Node  { return n }
func (n *LiteralFloat) LiteralValue() interface{} { return n.Value }

// LiteralString 字符串字面量
type LiteralString struct {
	leaf
	Value string
}

func NewString(v string) *LiteralString             { return &LiteralString{Value: v} }
func (n *LiteralString) WithChildren([]Node) Node  { return n }
func (n *LiteralString) LiteralValue() interface{} { return n.Value }

// LiteralBoolean 布尔字面量
type LiteralBoolean struct {
	leaf
	Value bool
}

func NewBoolean(v bool) *LiteralBoolean             { return &LiteralBoolean{Value: v} }
func (n *LiteralBoolean) WithChildren([]Node) Node  { return n }
func (n *LiteralBoolean) LiteralValue() interface{} { return n.Value }

// LiteralDate 日期字面量 #2020-01-01#
type LiteralDate struct {
	leaf
	Value time.Time
}

func NewDate(v time.Time) *LiteralDate           { return &LiteralDate{Value: v} }
func (n *LiteralDate) WithChildren([]Node) Node  { return n }
func (n *LiteralDate) LiteralValue() interface{} { return n.Value }

// LiteralDatetime 日期时间字面量 #2020-01-01 10:00:00#
type LiteralDatetime struct {
	leaf
	Value time.Time
}

func NewDatetime(v time.Time) *LiteralDatetime       { return &LiteralDatetime{Value: v} }
func (n *LiteralDatetime) WithChildren([]Node) Node  { return n }
func (n *LiteralDatetime) LiteralValue() interface{} { return n.Value }

// LiteralGeopoint 地理坐标点
type LiteralGeopoint struct {
	leaf
	Lat float64
	Lon float64
}

func NewGeopoint(lat, lon float64) *LiteralGeopoint  { return &LiteralGeopoint{Lat: lat, Lon: lon} }
func (n *LiteralGeopoint) WithChildren([]Node) Node  { return n }
func (n *LiteralGeopoint) LiteralValue() interface{} { return [2]float64{n.Lat, n.Lon} }

// LiteralGeopolygon 地理多边形
type LiteralGeopolygon struct {
	leaf
	Points [][2]float64
}

func NewGeopolygon(points [][2]float64) *LiteralGeopolygon {
	return &LiteralGeopolygon{Points: append([][2]float64(nil), points...)}
}
func (n *LiteralGeopolygon) WithChildren([]Node) Node  { return n }
func (n *LiteralGeopolygon) LiteralValue() interface{} { return n.Points }

// LiteralUUID UUID 字面量
type LiteralUUID struct {
	leaf
	Value uuid.UUID
}

func NewUUID(v uuid.UUID) *LiteralUUID           { return &LiteralUUID{Value: v} }
func (n *LiteralUUID) WithChildren([]Node) Node  { return n }
func (n *LiteralUUID) LiteralValue() interface{} { return n.Value.String() }

// FuncCall 普通函数或聚合函数调用
// Children: Args..., Lod, BFB, Ignore
type FuncCall struct {
	base
	Name   string
	Args   []Node
	Lod    *LodSpecifier
	BFB    *BeforeFilterBy
	Ignore *IgnoreDimensions
}

// NewFuncCall creates a call with default LOD and empty clauses.
func NewFuncCall(name string, args ...Node) *FuncCall {
	return &FuncCall{
		Name:   strings.ToLower(name),
		Args:   args,
		Lod:    &LodSpecifier{Kind: LodDefault},
		BFB:    &BeforeFilterBy{},
		Ignore: &IgnoreDimensions{},
	}
}

func (n *FuncCall) Children() []Node {
	out := make([]Node, 0, len(n.Args)+3)
	out = append(out, n.Args...)
	return append(out, n.Lod, n.BFB, n.Ignore)
}

func (n *FuncCall) WithChildren(children []Node) Node {
	k := len(children) - 3
	c := *n
	c.Args = append([]Node(nil), children[:k]...)
	c.Lod = children[k].(*LodSpecifier)
	c.BFB = children[k+1].(*BeforeFilterBy)
	c.Ignore = children[k+2].(*IgnoreDimensions)
	return &c
}

// WithLod returns a copy with another LOD specifier
func (n *FuncCall) WithLod(lod *LodSpecifier) *FuncCall {
	c := *n
	c.Lod = lod
	return &c
}

// WindowFuncCall 窗口函数调用
// Children: Args..., Grouping, Ordering, BFB
type WindowFuncCall struct {
	base
	Name     string
	Args     []Node
	Grouping *WindowGrouping
	Ordering *Ordering
	BFB      *BeforeFilterBy
}

// NewWindowFuncCall creates a window call, TOTAL grouping when grouping is nil.
func NewWindowFuncCall(name string, args []Node, grouping *WindowGrouping, ordering *Ordering) *WindowFuncCall {
	if grouping == nil {
		grouping = &WindowGrouping{Kind: GroupingTotal}
	}
	if ordering == nil {
		ordering = &Ordering{}
	}
	return &WindowFuncCall{
		Name:     strings.ToLower(name),
		Args:     args,
		Grouping: grouping,
		Ordering: ordering,
		BFB:      &BeforeFilterBy{},
	}
}

func (n *WindowFuncCall) Children() []Node {
	out := make([]Node, 0, len(n.Args)+3)
	out = append(out, n.Args...)
	return append(out, n.Grouping, n.Ordering, n.BFB)
}

func (n *WindowFuncCall) WithChildren(children []Node) Node {
	k := len(children) - 3
	c := *n
	c.Args = append([]Node(nil), children[:k]...)
	c.Grouping = children[k].(*WindowGrouping)
	c.Ordering = children[k+1].(*Ordering)
	c.BFB = children[k+2].(*BeforeFilterBy)
	return &c
}

// Binary 二元运算
type Binary struct {
	base
	Op    string
	Left  Node
	Right Node
}

func NewBinary(op string, left, right Node) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

func (n *Binary) Children() []Node { return []Node{n.Left, n.Right} }

func (n *Binary) WithChildren(children []Node) Node {
	c := *n
	c.Left, c.Right = children[0], children[1]
	return &c
}

// Unary 一元运算
type Unary struct {
	base
	Op      string
	Operand Node
}

func NewUnary(op string, operand Node) *Unary { return &Unary{Op: op, Operand: operand} }

func (n *Unary) Children() []Node { return []Node{n.Operand} }

func (n *Unary) WithChildren(children []Node) Node {
	c := *n
	c.Operand = children[0]
	return &c
}

// Ternary 三元运算 (BETWEEN)
type Ternary struct {
	base
	Op     string
	First  Node
	Second Node
	Third  Node
}

func NewTernary(op string, first, second, third Node) *Ternary {
	return &Ternary{Op: op, First: first, Second: second, Third: third}
}

func (n *Ternary) Children() []Node { return []Node{n.First, n.Second, n.Third} }

func (n *Ternary) WithChildren(children []Node) Node {
	c := *n
	c.First, c.Second, c.Third = children[0], children[1], children[2]
	return &c
}

// IfBlock IF ... THEN ... ELSEIF ... ELSE ... END
// Children: cond1, result1, cond2, result2, ..., [else]
type IfBlock struct {
	base
	Conditions []Node
	Results    []Node
	Else       Node
}

func NewIfBlock(conditions, results []Node, elseExpr Node) *IfBlock {
	return &IfBlock{Conditions: conditions, Results: results, Else: elseExpr}
}

func (n *IfBlock) Children() []Node {
	out := make([]Node, 0, 2*len(n.Conditions)+1)
	for i := range n.Conditions {
		out = append(out, n.Conditions[i], n.Results[i])
	}
	if n.Else != nil {
		out = append(out, n.Else)
	}
	return out
}

func (n *IfBlock) WithChildren(children []Node) Node {
	c := *n
	pairs := len(children) / 2
	c.Conditions = make([]Node, pairs)
	c.Results = make([]Node, pairs)
	for i := 0; i < pairs; i++ {
		c.Conditions[i] = children[2*i]
		c.Results[i] = children[2*i+1]
	}
	c.Else = nil
	if len(children)%2 == 1 {
		c.Else = children[len(children)-1]
	}
	return &c
}

// CaseBlock CASE x WHEN ... THEN ... ELSE ... END
// Children: subject, when1, then1, ..., [else]
type CaseBlock struct {
	base
	Subject Node
	Whens   []Node
	Thens   []Node
	Else    Node
}

func NewCaseBlock(subject Node, whens, thens []Node, elseExpr Node) *CaseBlock {
	return &CaseBlock{Subject: subject, Whens: whens, Thens: thens, Else: elseExpr}
}

func (n *CaseBlock) Children() []Node {
	out := make([]Node, 0, 2*len(n.Whens)+2)
	out = append(out, n.Subject)
	for i := range n.Whens {
		out = append(out, n.Whens[i], n.Thens[i])
	}
	if n.Else != nil {
		out = append(out, n.Else)
	}
	return out
}

func (n *CaseBlock) WithChildren(children []Node) Node {
	c := *n
	c.Subject = children[0]
	rest := children[1:]
	pairs := len(rest) / 2
	c.Whens = make([]Node, pairs)
	c.Thens = make([]Node, pairs)
	for i := 0; i < pairs; i++ {
		c.Whens[i] = rest[2*i]
		c.Thens[i] = rest[2*i+1]
	}
	c.Else = nil
	if len(rest)%2 == 1 {
		c.Else = rest[len(rest)-1]
	}
	return &c
}

// Parenthesized 括号表达式
type Parenthesized struct {
	base
	Expr Node
}

func NewParenthesized(expr Node) *Parenthesized { return &Parenthesized{Expr: expr} }

func (n *Parenthesized) Children() []Node { return []Node{n.Expr} }

func (n *Parenthesized) WithChildren(children []Node) Node {
	c := *n
	c.Expr = children[0]
	return &c
}

// ExpressionList 值列表，IN 运算符的右操作数
type ExpressionList struct {
	base
	Items []Node
}

func NewExpressionList(items ...Node) *ExpressionList { return &ExpressionList{Items: items} }

func (n *ExpressionList) Children() []Node { return append([]Node(nil), n.Items...) }

func (n *ExpressionList) WithChildren(children []Node) Node {
	c := *n
	c.Items = append([]Node(nil), children...)
	return &c
}

// QueryFork marks an aggregation that has to be computed in a separate
// sub-query grouped by Dims and joined back to the enclosing query.
// Children: Result, Dims..., BFB
type QueryFork struct {
	base
	Result Node
	Dims   []Node
	BFB    *BeforeFilterBy
}

func NewQueryFork(result Node, dims []Node, bfb *BeforeFilterBy) *QueryFork {
	if bfb == nil {
		bfb = &BeforeFilterBy{}
	}
	return &QueryFork{Result: result, Dims: dims, BFB: bfb}
}

func (n *QueryFork) Children() []Node {
	out := make([]Node, 0, len(n.Dims)+2)
	out = append(out, n.Result)
	out = append(out, n.Dims...)
	return append(out, n.BFB)
}

func (n *QueryFork) WithChildren(children []Node) Node {
	c := *n
	c.Result = children[0]
	c.Dims = append([]Node(nil), children[1:len(children)-1]...)
	c.BFB = children[len(children)-1].(*BeforeFilterBy)
	return &c
}

// LodKind 细节级别类型
type LodKind int

const (
	LodDefault LodKind = iota
	LodFixed
	LodInclude
	LodExclude
	LodInherited
)

func (k LodKind) String() string {
	switch k {
	case LodFixed:
		return "FIXED"
	case LodInclude:
		return "INCLUDE"
	case LodExclude:
		return "EXCLUDE"
	case LodInherited:
		return "INHERITED"
	default:
		return "DEFAULT"
	}
}

// LodSpecifier FIXED / INCLUDE / EXCLUDE 子句
type LodSpecifier struct {
	clause
	Kind LodKind
	Dims []Node
}

func NewLod(kind LodKind, dims ...Node) *LodSpecifier { return &LodSpecifier{Kind: kind, Dims: dims} }

func (n *LodSpecifier) Children() []Node { return append([]Node(nil), n.Dims...) }

func (n *LodSpecifier) WithChildren(children []Node) Node {
	c := *n
	c.Dims = append([]Node(nil), children...)
	return &c
}

// BeforeFilterBy BEFORE FILTER BY 子句，保存字段名
type BeforeFilterBy struct {
	clause
	FieldNames []string
}

func NewBeforeFilterBy(names ...string) *BeforeFilterBy {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return &BeforeFilterBy{FieldNames: out}
}

func (n *BeforeFilterBy) Children() []Node              { return nil }
func (n *BeforeFilterBy) WithChildren([]Node) Node     { return n }
func (n *BeforeFilterBy) Empty() bool                   { return len(n.FieldNames) == 0 }
func (n *BeforeFilterBy) Contains(name string) bool {
	for _, f := range n.FieldNames {
		if f == name {
			return true
		}
	}
	return false
}

// IgnoreDimensions IGNORE DIMENSIONS 子句
type IgnoreDimensions struct {
	clause
	Dims []Node
}

func (n *IgnoreDimensions) Children() []Node { return append([]Node(nil), n.Dims...) }

func (n *IgnoreDimensions) WithChildren(children []Node) Node {
	c := *n
	c.Dims = append([]Node(nil), children...)
	return &c
}

// GroupingKind 窗口分组方式
type GroupingKind int

const (
	GroupingTotal GroupingKind = iota
	GroupingWithin
	GroupingAmong
)

func (k GroupingKind) String() string {
	switch k {
	case GroupingWithin:
		return "WITHIN"
	case GroupingAmong:
		return "AMONG"
	default:
		return "TOTAL"
	}
}

// WindowGrouping TOTAL / WITHIN / AMONG 子句
type WindowGrouping struct {
	clause
	Kind GroupingKind
	Dims []Node
}

func NewGrouping(kind GroupingKind, dims ...Node) *WindowGrouping {
	return &WindowGrouping{Kind: kind, Dims: dims}
}

func (n *WindowGrouping) Children() []Node { return append([]Node(nil), n.Dims...) }

func (n *WindowGrouping) WithChildren(children []Node) Node {
	c := *n
	c.Dims = append([]Node(nil), children...)
	return &c
}

// Ordering ORDER BY 子句
type Ordering struct {
	clause
	Items []*OrderItem
}

func NewOrdering(items ...*OrderItem) *Ordering { return &Ordering{Items: items} }

func (n *Ordering) Children() []Node {
	out := make([]Node, len(n.Items))
	for i, item := range n.Items {
		out[i] = item
	}
	return out
}

func (n *Ordering) WithChildren(children []Node) Node {
	c := *n
	c.Items = make([]*OrderItem, len(children))
	for i, child := range children {
		c.Items[i] = child.(*OrderItem)
	}
	return &c
}

// OrderItem 排序项
type OrderItem struct {
	clause
	Expr Node
	Desc bool
}

func NewOrderItem(expr Node, desc bool) *OrderItem { return &OrderItem{Expr: expr, Desc: desc} }

func (n *OrderItem) Children() []Node { return []Node{n.Expr} }

func (n *OrderItem) WithChildren(children []Node) Node {
	c := *n
	c.Expr = children[0]
	return &c
}

// NodeName returns a short name of the node variant used in messages.
func NodeName(n Node) string {
	switch v := n.(type) {
	case *Field:
		return "field"
	case *Null:
		return "null"
	case *LiteralInteger, *LiteralFloat, *LiteralString, *LiteralBoolean,
		*LiteralDate, *LiteralDatetime, *LiteralGeopoint, *LiteralGeopolygon, *LiteralUUID:
		return "literal"
	case *FuncCall:
		return v.Name
	case *WindowFuncCall:
		return v.Name
	case *Binary:
		return v.Op
	case *Unary:
		return v.Op
	case *Ternary:
		return v.Op
	case *IfBlock:
		return "if"
	case *CaseBlock:
		return "case"
	case *Parenthesized:
		return "()"
	case *ExpressionList:
		return "list"
	case *QueryFork:
		return "fork"
	case *LodSpecifier:
		return "lod"
	case *BeforeFilterBy:
		return "before_filter_by"
	case *IgnoreDimensions:
		return "ignore_dimensions"
	case *WindowGrouping:
		return "grouping"
	case *Ordering:
		return "ordering"
	case *OrderItem:
		return "order_item"
	}
	return "unknown"
}
