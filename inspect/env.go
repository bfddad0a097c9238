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

// Package inspect classifies formula trees and infers their data types.
// Every function here is a pure walk over an immutable tree.
package inspect

import (
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
)

// FunctionClass 函数分类
type FunctionClass int

const (
	ClassScalar FunctionClass = iota
	ClassAggregate
	ClassWindow
	ClassLookup
)

func (c FunctionClass) String() string {
	switch c {
	case ClassScalar:
		return "scalar"
	case ClassAggregate:
		return "aggregate"
	case ClassWindow:
		return "window"
	case ClassLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// FunctionCatalog describes the functions known to the inspector.
// The function registry implements it.
type FunctionCatalog interface {
	// Classify returns the class of a function by its lower case name
	Classify(name string) (FunctionClass, bool)
	// ReturnType resolves the result type for the given argument types
	ReturnType(name string, args []formula.DataType) (formula.DataType, error)
	// RequiresOrdering reports whether a window function needs ORDER BY
	RequiresOrdering(name string) bool
}

// Environment is the context of an inspection: known functions and the
// types of the fields a formula may reference.
type Environment struct {
	Catalog    FunctionCatalog
	FieldTypes map[string]formula.DataType
}

// NewEnvironment creates an environment
func NewEnvironment(catalog FunctionCatalog, fieldTypes map[string]formula.DataType) *Environment {
	if fieldTypes == nil {
		fieldTypes = make(map[string]formula.DataType)
	}
	return &Environment{Catalog: catalog, FieldTypes: fieldTypes}
}

// WithFields returns a copy of env with extra field types
func (e *Environment) WithFields(fieldTypes map[string]formula.DataType) *Environment {
	merged := make(map[string]formula.DataType, len(fieldTypes))
	var catalog FunctionCatalog
	if e != nil {
		catalog = e.Catalog
		for k, v := range e.FieldTypes {
			merged[k] = v
		}
	}
	for k, v := range fieldTypes {
		merged[k] = v
	}
	return &Environment{Catalog: catalog, FieldTypes: merged}
}

func (e *Environment) catalog() FunctionCatalog {
	if e == nil || e.Catalog == nil {
		return defaultCatalog{}
	}
	return e.Catalog
}

// 默认函数分类，在没有注册表时使用
var (
	defaultAggregates = map[string]bool{
		"sum": true, "avg": true, "min": true, "max": true, "count": true, "countd": true,
		"median": true, "any": true, "stdev": true, "stdevp": true, "var": true, "varp": true,
		"sum_if": true, "avg_if": true, "count_if": true, "countd_if": true, "attr": true,
	}
	defaultLookups = map[string]bool{
		"ago": true, "at_date": true,
	}
	orderedWindows = map[string]bool{
		"rsum": true, "rcount": true, "rmin": true, "rmax": true, "ravg": true,
		"msum": true, "mcount": true, "mmin": true, "mmax": true, "mavg": true,
		"lag": true, "first": true, "last": true,
	}
)

type defaultCatalog struct{}

func (defaultCatalog) Classify(name string) (FunctionClass, bool) {
	switch {
	case defaultAggregates[name]:
		return ClassAggregate, true
	case defaultLookups[name]:
		return ClassLookup, true
	case formula.WindowOnlyFunctions[name]:
		return ClassWindow, true
	}
	return ClassScalar, false
}

func (defaultCatalog) ReturnType(name string, args []formula.DataType) (formula.DataType, error) {
	first := formula.TypeNull
	if len(args) > 0 {
		first = args[0].NonConst()
	}
	switch name {
	case "count", "countd", "count_if", "countd_if", "rcount", "mcount",
		"rank", "rank_dense", "rank_unique":
		return formula.TypeInteger, nil
	case "avg", "avg_if", "ravg", "mavg", "stdev", "stdevp", "var", "varp", "rank_percentile":
		return formula.TypeFloat, nil
	case "sum", "sum_if", "min", "max", "any", "median", "attr",
		"rsum", "rmin", "rmax", "msum", "mmin", "mmax", "lag", "first", "last", "ago", "at_date":
		return first, nil
	}
	return formula.TypeUnsupported, exc.ErrUnknownFunction.New(name)
}

func (defaultCatalog) RequiresOrdering(name string) bool {
	return orderedWindows[name]
}

// ClassifyFunction returns the class of a function in env.
func ClassifyFunction(env *Environment, name string) FunctionClass {
	class, _ := env.catalog().Classify(name)
	return class
}

// RequiresOrdering reports whether the window function name needs ORDER BY.
func RequiresOrdering(env *Environment, name string) bool {
	return env.catalog().RequiresOrdering(name)
}
