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

// Package translation renders formula trees and compiled queries as text of
// a single dialect: SQL for databases, expr-lang programs for the in-memory
// engine.
package translation

import (
	"strings"

	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
	"github.com/rulego/dlquery/inspect"
)

// FieldRenderer renders a field reference.
type FieldRenderer func(f *formula.Field) (string, error)

// WindowRenderer renders a window call from its translated arguments,
// partitions and ordering.
type WindowRenderer func(w *formula.WindowFuncCall, c *functions.Call) (string, error)

// Translator translates formula nodes for one dialect.
type Translator struct {
	Registry *functions.Registry
	Dialect  dialect.DialectCombo
	// FieldRenderer defaults to the quoted field name
	FieldRenderer FieldRenderer
	// WindowRenderer defaults to the registry variant of the window function
	WindowRenderer WindowRenderer
	// Env types the arguments passed to translation variants, may be nil
	Env *inspect.Environment
}

// NewTranslator creates a translator for a single dialect.
func NewTranslator(reg *functions.Registry, d dialect.DialectCombo, env *inspect.Environment) (*Translator, error) {
	if !d.IsSingle() {
		return nil, exc.ErrTranslation.New("dialect " + d.String() + " is not a single dialect version")
	}
	return &Translator{Registry: reg, Dialect: d, Env: env}, nil
}

// Style returns the literal style of the dialect.
func (t *Translator) Style() *functions.Style {
	return t.Registry.Style(t.Dialect)
}

// Translate renders node.
func (t *Translator) Translate(node formula.Node) (string, error) {
	s := t.Style()
	switch v := node.(type) {
	case *formula.Field:
		if t.FieldRenderer != nil {
			return t.FieldRenderer(v)
		}
		return s.QuoteIdent(v.Name), nil
	case *formula.Null:
		return s.Null(), nil
	case *formula.LiteralInteger:
		return s.Integer(v.Value), nil
	case *formula.LiteralFloat:
		return s.Float(v.Value), nil
	case *formula.LiteralString:
		return s.String(v.Value), nil
	case *formula.LiteralBoolean:
		return s.Bool(v.Value), nil
	case *formula.LiteralDate:
		return s.Date(v.Value), nil
	case *formula.LiteralDatetime:
		return s.Datetime(v.Value), nil
	case *formula.LiteralUUID:
		return s.String(v.Value.String()), nil
	case *formula.LiteralGeopoint, *formula.LiteralGeopolygon:
		return "", exc.ErrTranslation.New("geo literals are not supported by " + t.Dialect.String())
	case *formula.Parenthesized:
		inner, err := t.Translate(v.Expr)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *formula.ExpressionList:
		items := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			text, err := t.Translate(item)
			if err != nil {
				return "", err
			}
			items = append(items, text)
		}
		return s.List(items), nil
	case *formula.Binary:
		return t.call(v.Op, v.Left, v.Right)
	case *formula.Unary:
		return t.call(v.Op, v.Operand)
	case *formula.Ternary:
		return t.call(v.Op, v.First, v.Second, v.Third)
	case *formula.IfBlock:
		return t.call(functions.OpIf, v.Children()...)
	case *formula.CaseBlock:
		return t.call(functions.OpCase, v.Children()...)
	case *formula.FuncCall:
		return t.call(v.Name, v.Args...)
	case *formula.WindowFuncCall:
		return t.window(v)
	case *formula.QueryFork:
		return "", exc.ErrTranslation.New("query fork " + formula.Render(v) + " must be computed in a sub-query")
	}
	return "", exc.ErrTranslation.New("cannot translate " + formula.NodeName(node))
}

// NewCall translates args into a translation call of name.
func (t *Translator) NewCall(name string, args ...formula.Node) (*functions.Call, error) {
	c := &functions.Call{
		Name:     name,
		Args:     make([]string, 0, len(args)),
		ArgTypes: make([]formula.DataType, 0, len(args)),
		Consts:   make([]interface{}, 0, len(args)),
		Dialect:  t.Dialect,
		Style:    t.Style(),
	}
	for _, a := range args {
		text, err := t.Translate(a)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, text)
		c.ArgTypes = append(c.ArgTypes, t.argType(a))
		c.Consts = append(c.Consts, constValue(a))
	}
	return c, nil
}

func (t *Translator) call(name string, args ...formula.Node) (string, error) {
	fn, err := t.Registry.Resolve(name, t.Dialect)
	if err != nil {
		return "", err
	}
	c, err := t.NewCall(name, args...)
	if err != nil {
		return "", err
	}
	return fn(c)
}

func (t *Translator) window(w *formula.WindowFuncCall) (string, error) {
	c, err := t.NewCall(w.Name, w.Args...)
	if err != nil {
		return "", err
	}
	switch w.Grouping.Kind {
	case formula.GroupingAmong:
		return "", exc.ErrTranslation.New("AMONG of " + strings.ToUpper(w.Name) + " must be resolved to WITHIN before translation")
	case formula.GroupingWithin:
		for _, d := range w.Grouping.Dims {
			text, err := t.Translate(d)
			if err != nil {
				return "", err
			}
			c.PartitionBy = append(c.PartitionBy, text)
		}
	}
	for _, item := range w.Ordering.Items {
		text, err := t.Translate(item.Expr)
		if err != nil {
			return "", err
		}
		c.OrderBy = append(c.OrderBy, text+direction(item.Desc))
	}
	if t.WindowRenderer != nil {
		return t.WindowRenderer(w, c)
	}

	fn, err := t.Registry.Resolve(w.Name, t.Dialect)
	if err != nil {
		return "", err
	}
	if cls, _ := t.Registry.Classify(w.Name); cls != inspect.ClassAggregate {
		return fn(c)
	}
	// 聚合函数作窗口使用：整个分区参与计算，排序无意义
	c.OrderBy = nil
	text, err := fn(c)
	if err != nil {
		return "", err
	}
	over, err := t.Registry.Resolve(functions.OpOver, t.Dialect)
	if err != nil {
		return "", exc.ErrUnsupportedFunctionForDialect.New(strings.ToUpper(w.Name), t.Dialect.String())
	}
	clause, err := over(c)
	if err != nil {
		return "", err
	}
	return text + " " + clause, nil
}

func (t *Translator) argType(n formula.Node) formula.DataType {
	if t.Env == nil {
		return formula.TypeUnsupported
	}
	typ, err := inspect.InferDataType(n, t.Env)
	if err != nil {
		return formula.TypeUnsupported
	}
	return typ
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}

// constValue returns the value of literal arguments, negated numbers included.
func constValue(n formula.Node) interface{} {
	switch v := n.(type) {
	case *formula.LiteralInteger:
		return v.Value
	case *formula.LiteralFloat:
		return v.Value
	case formula.Literal:
		return v.LiteralValue()
	case *formula.Parenthesized:
		return constValue(v.Expr)
	case *formula.Unary:
		if v.Op != formula.OpNeg {
			return nil
		}
		switch x := constValue(v.Operand).(type) {
		case int64:
			return -x
		case float64:
			return -x
		}
	}
	return nil
}
