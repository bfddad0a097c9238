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

// Package connectors describes backends: their dialect versions, function
// tables, literal style and how multi-queries are split for them.
package connectors

import (
	"fmt"

	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/functions"
)

// FactoryKind 多查询拆分方式
type FactoryKind string

const (
	// FactoryCompeng evaluates window functions in memory
	FactoryCompeng FactoryKind = "compeng"
	// FactoryNativeWindow leaves window functions to the database
	FactoryNativeWindow FactoryKind = "native_window"
)

// Connector is the registration record of one backend.
type Connector struct {
	Backend        dialect.Backend
	Dialects       dialect.DialectCombo
	DefaultDialect dialect.DialectCombo
	Definitions    []*functions.OperationDefinition
	Style          *functions.Style
	// NativeWindowDialects run window functions in the database
	NativeWindowDialects dialect.DialectCombo
	// DriverName is the database/sql driver, empty for in-memory backends
	DriverName string
}

// FactoryFor returns the multi-query factory kind used for d.
func (c *Connector) FactoryFor(d dialect.DialectCombo) FactoryKind {
	if c.NativeWindowDialects.Contains(d) {
		return FactoryNativeWindow
	}
	return FactoryCompeng
}

// Validate checks that the connector only declares its own dialects.
func (c *Connector) Validate() error {
	if c.Dialects.Backend() != c.Backend {
		return exc.ErrConflictingDefinition.New(string(c.Backend), fmt.Sprintf("dialects %s belong to another backend", c.Dialects))
	}
	if !c.Dialects.Contains(c.DefaultDialect) || !c.DefaultDialect.IsSingle() {
		return exc.ErrConflictingDefinition.New(string(c.Backend), fmt.Sprintf("default dialect %s", c.DefaultDialect))
	}
	for _, def := range c.Definitions {
		for _, v := range def.Variants {
			if !c.Dialects.Contains(v.Dialects) {
				return exc.ErrConflictingDefinition.New(def.Name, fmt.Sprintf("variant for %s registered by %s", v.Dialects, c.Backend))
			}
		}
	}
	return nil
}

// Set 已注册的连接器
type Set struct {
	byBackend map[dialect.Backend]*Connector
	ordered   []*Connector
}

// NewSet validates and indexes connectors.
func NewSet(conns ...*Connector) (*Set, error) {
	s := &Set{byBackend: make(map[dialect.Backend]*Connector, len(conns))}
	for _, c := range conns {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byBackend[c.Backend]; dup {
			return nil, exc.ErrConflictingDefinition.New(string(c.Backend), "connector registered twice")
		}
		s.byBackend[c.Backend] = c
		s.ordered = append(s.ordered, c)
	}
	return s, nil
}

// Get returns the connector of a backend.
func (s *Set) Get(backend dialect.Backend) (*Connector, bool) {
	c, ok := s.byBackend[backend]
	return c, ok
}

// ForDialect returns the connector owning a single dialect.
func (s *Set) ForDialect(d dialect.DialectCombo) (*Connector, error) {
	c, ok := s.byBackend[d.Backend()]
	if !ok || !c.Dialects.Contains(d) {
		return nil, exc.ErrUnknownDialect.New(d.String())
	}
	return c, nil
}

// List returns connectors in registration order.
func (s *Set) List() []*Connector {
	return append([]*Connector(nil), s.ordered...)
}

// BuildRegistry registers the generic definitions followed by every
// connector's own tables and styles, then freezes the registry.
func (s *Set) BuildRegistry() (*functions.Registry, error) {
	b := functions.NewBuilder()
	if err := b.Register(functions.BaseDefinitions()...); err != nil {
		return nil, err
	}
	for _, c := range s.ordered {
		if err := b.Register(c.Definitions...); err != nil {
			return nil, err
		}
		if c.Style != nil {
			if err := b.RegisterStyle(c.Backend, c.Style); err != nil {
				return nil, err
			}
		}
	}
	return b.Build()
}

// BuildRegistry is a shorthand for NewSet(conns...).BuildRegistry().
func BuildRegistry(conns ...*Connector) (*functions.Registry, error) {
	s, err := NewSet(conns...)
	if err != nil {
		return nil, err
	}
	return s.BuildRegistry()
}
