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

package functions

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
)

// Builder 注册表构建器，收集各连接器的定义，Build 之后冻结
type Builder struct {
	mu     sync.Mutex
	defs   map[string]*OperationDefinition
	order  []string
	styles map[dialect.Backend]*Style
	built  bool
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		defs:   make(map[string]*OperationDefinition),
		styles: make(map[dialect.Backend]*Style),
	}
}

// Register adds definitions. Definitions with the same name are merged:
// kinds must agree, variants accumulate, the first non-empty signature
// list wins.
func (b *Builder) Register(defs ...*OperationDefinition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, def := range defs {
		if b.built {
			return exc.ErrRegistryFrozen.New(def.Name)
		}
		name := strings.ToLower(def.Name)
		existing, ok := b.defs[name]
		if !ok {
			c := *def
			c.Name = name
			c.Variants = append([]Variant(nil), def.Variants...)
			b.defs[name] = &c
			b.order = append(b.order, name)
			continue
		}
		if existing.Kind != def.Kind {
			return exc.ErrConflictingDefinition.New(name, fmt.Sprintf("kind %s vs %s", existing.Kind, def.Kind))
		}
		if len(existing.Signatures) == 0 {
			existing.Signatures = def.Signatures
		}
		if existing.Description == "" {
			existing.Description = def.Description
		}
		existing.UsesDefaultOrdering = existing.UsesDefaultOrdering || def.UsesDefaultOrdering
		existing.Variants = append(existing.Variants, def.Variants...)
	}
	return nil
}

// MustRegister panics on error, for static tables
func (b *Builder) MustRegister(defs ...*OperationDefinition) {
	if err := b.Register(defs...); err != nil {
		panic(err)
	}
}

// RegisterStyle sets the literal and quoting style of a backend.
func (b *Builder) RegisterStyle(backend dialect.Backend, style *Style) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return exc.ErrRegistryFrozen.New("style " + string(backend))
	}
	b.styles[backend] = style
	return nil
}

// Build freezes the builder and precomputes, for every single dialect,
// the most specific variant of every definition.
func (b *Builder) Build() (*Registry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return nil, exc.ErrRegistryFrozen.New("registry")
	}

	r := &Registry{
		defs:     make(map[string]*OperationDefinition, len(b.defs)),
		names:    append([]string(nil), b.order...),
		variants: make(map[dialect.DialectCombo]map[string]TranslateFunc),
		styles:   make(map[dialect.Backend]*Style, len(b.styles)),
	}
	for k, v := range b.styles {
		r.styles[k] = v
	}
	sort.Strings(r.names)

	for _, d := range dialect.Any.ToList() {
		table := make(map[string]TranslateFunc)
		for _, name := range r.names {
			def := b.defs[name]
			best, err := mostSpecific(def, d)
			if err != nil {
				return nil, err
			}
			if best != nil {
				table[name] = best.Translate
			}
		}
		r.variants[d] = table
	}
	for name, def := range b.defs {
		r.defs[name] = def
	}
	b.built = true
	return r, nil
}

// mostSpecific picks the variant whose dialect set is contained in every
// other matching set. Overlapping sets without such a variant are ambiguous.
func mostSpecific(def *OperationDefinition, d dialect.DialectCombo) (*Variant, error) {
	var matching []*Variant
	for i := range def.Variants {
		if def.Variants[i].Dialects.Contains(d) {
			matching = append(matching, &def.Variants[i])
		}
	}
	if len(matching) == 0 {
		return nil, nil
	}
	for _, candidate := range matching {
		narrowest := true
		for _, other := range matching {
			if other == candidate {
				continue
			}
			if !other.Dialects.Contains(candidate.Dialects) || other.Dialects == candidate.Dialects {
				narrowest = false
				break
			}
		}
		if narrowest {
			return candidate, nil
		}
	}
	sets := make([]string, len(matching))
	for i, v := range matching {
		sets[i] = v.Dialects.String()
	}
	return nil, exc.ErrAmbiguousVariant.New(def.Name, d.String(), strings.Join(sets, ", "))
}

// Registry 不可变的函数注册表，可并发读取
type Registry struct {
	defs     map[string]*OperationDefinition
	names    []string
	variants map[dialect.DialectCombo]map[string]TranslateFunc
	styles   map[dialect.Backend]*Style
}

var _ inspect.FunctionCatalog = (*Registry)(nil)

// Resolve returns the translation of name for a single dialect.
func (r *Registry) Resolve(name string, d dialect.DialectCombo) (TranslateFunc, error) {
	name = strings.ToLower(name)
	if _, ok := r.defs[name]; !ok {
		return nil, exc.ErrUnknownFunction.New(name)
	}
	if !d.IsSingle() {
		return nil, exc.ErrTranslation.New(fmt.Sprintf("dialect %s is not a single dialect version", d))
	}
	fn, ok := r.variants[d][name]
	if !ok {
		return nil, exc.ErrUnsupportedFunctionForDialect.New(strings.ToUpper(name), d.String())
	}
	return fn, nil
}

// Supports reports whether name has a variant for d.
func (r *Registry) Supports(name string, d dialect.DialectCombo) bool {
	_, err := r.Resolve(name, d)
	return err == nil
}

// Definition returns the merged definition of name.
func (r *Registry) Definition(name string) (*OperationDefinition, bool) {
	def, ok := r.defs[strings.ToLower(name)]
	return def, ok
}

// Names lists every registered name in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Style returns the style of the backend of d.
func (r *Registry) Style(d dialect.DialectCombo) *Style {
	if s, ok := r.styles[d.Backend()]; ok {
		return s
	}
	return ANSIStyle()
}

func (r *Registry) Classify(name string) (inspect.FunctionClass, bool) {
	def, ok := r.defs[strings.ToLower(name)]
	if !ok {
		return inspect.ClassScalar, false
	}
	return def.Kind.Class(), true
}

func (r *Registry) ReturnType(name string, args []formula.DataType) (formula.DataType, error) {
	def, ok := r.defs[strings.ToLower(name)]
	if !ok {
		return formula.TypeUnsupported, exc.ErrUnknownFunction.New(name)
	}
	for _, sig := range def.Signatures {
		if sig.matches(args) {
			t := sig.Result(args)
			if t == formula.TypeUnsupported {
				break
			}
			return t, nil
		}
	}
	names := make([]string, len(args))
	for i, t := range args {
		names[i] = t.String()
	}
	return formula.TypeUnsupported, exc.ErrTypeMismatch.New(strings.ToUpper(name), "("+strings.Join(names, ", ")+")")
}

func (r *Registry) RequiresOrdering(name string) bool {
	def, ok := r.defs[strings.ToLower(name)]
	return ok && def.UsesDefaultOrdering
}
