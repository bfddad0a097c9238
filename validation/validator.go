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

// Package validation checks semantic rules of formulas that the parser
// cannot enforce: window function structure and aggregation consistency.
package validation

import (
	"fmt"
	"strings"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
)

// Checker 语义检查器，每个节点调用一次
type Checker interface {
	CheckNode(v *Validator, node formula.Node, parents []formula.Node) error
}

// Validator 验证器，子节点先于父节点检查
type Validator struct {
	env      *inspect.Environment
	checkers []Checker
	collect  bool
	errors   []error
}

// NewValidator creates a validator. With collect set, errors are gathered
// instead of stopping the pass at the first one.
func NewValidator(env *inspect.Environment, collect bool, checkers ...Checker) *Validator {
	return &Validator{
		env:      env,
		checkers: checkers,
		collect:  collect,
	}
}

// Env returns the inspection environment of the pass.
func (v *Validator) Env() *inspect.Environment {
	return v.env
}

type validateFrame struct {
	node     formula.Node
	depth    int
	expanded bool
}

// ValidateNode checks node and its subtree, children before their parent.
// parents are the ancestors of node, outermost first. The tree is walked
// with an explicit stack so deep formulas do not grow the goroutine stack.
func (v *Validator) ValidateNode(node formula.Node, parents []formula.Node) error {
	if node == nil {
		return nil
	}
	path := append([]formula.Node(nil), parents...)
	stack := []validateFrame{{node: node, depth: len(parents)}}
	for len(stack) > 0 {
		top := len(stack) - 1
		frame := stack[top]
		if !frame.expanded {
			stack[top].expanded = true
			path = append(path[:frame.depth], frame.node)
			children := frame.node.Children()
			for i := len(children) - 1; i >= 0; i-- {
				if children[i] != nil {
					stack = append(stack, validateFrame{node: children[i], depth: frame.depth + 1})
				}
			}
			continue
		}
		stack = stack[:top]
		// path[:depth] 仍是当前节点的祖先链
		ancestors := path[:frame.depth:frame.depth]
		for _, c := range v.checkers {
			c := c
			if err := v.HandleError(frame.node, func() error { return c.CheckNode(v, frame.node, ancestors) }); err != nil {
				return err
			}
		}
	}
	return nil
}

// HandleError runs fn for node. In collecting mode the error is recorded
// with the node position and nil is returned.
func (v *Validator) HandleError(node formula.Node, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	err = withPosition(err, node)
	if !v.collect {
		return err
	}
	v.errors = append(v.errors, err)
	return nil
}

// HasErrors 是否收集到错误
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the collected errors, nil when there are none.
func (v *Validator) Errors() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &Errors{errs: append([]error(nil), v.errors...)}
}

// Validate runs checkers over node. Collected errors are returned as *Errors.
func Validate(node formula.Node, env *inspect.Environment, checkers []Checker, collect bool) error {
	v := NewValidator(env, collect, checkers...)
	if err := v.ValidateNode(node, nil); err != nil {
		return &Errors{errs: []error{err}}
	}
	return v.Errors()
}

func withPosition(err error, node formula.Node) error {
	e, ok := err.(*exc.Error)
	if !ok {
		return err
	}
	meta := node.Meta()
	return e.With("position", meta.Position.Start).
		With("end", meta.Position.End).
		With("token", tokenOf(node))
}

func tokenOf(node formula.Node) string {
	if text := node.Meta().Text; text != "" {
		return text
	}
	return formula.Render(node)
}

// Errors 一次验证收集到的所有错误
type Errors struct {
	errs []error
}

func (e *Errors) Error() string {
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e.errs), strings.Join(msgs, "; "))
}

// Unwrap exposes every collected error.
func (e *Errors) Unwrap() []error {
	return e.errs
}

// Len 错误数量
func (e *Errors) Len() int {
	return len(e.errs)
}
