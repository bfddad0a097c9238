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

// Package multiquery splits compiled queries that a single SQL statement
// cannot express into DAGs of simpler queries.
//
// Splitting is a fixpoint: every splitter is asked about every query until
// none of them needs a change. Each accepted change is a compilation.Patch
// applied to the immutable multi-query, so a failed pass leaves the input
// untouched.
package multiquery

import (
	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/logger"
)

// DefaultMaxIterations 每个拆分器的默认迭代上限
const DefaultMaxIterations = 1000

// Context is handed to splitters. It carries the function environment and
// the id generators of the multi-query being split.
type Context struct {
	Env      *inspect.Environment
	QueryIDs *compilation.PrefixedIDGen
	ExprIDs  *compilation.PrefixedIDGen
	// MultiQuery is the current state, read only
	MultiQuery *compilation.CompiledMultiQuery
}

// Splitter decides whether a query has to be split. A nil or empty patch
// means the query is fine as it is. subtree holds q and the queries it
// depends on, transitively.
type Splitter interface {
	Name() string
	Split(ctx *Context, q *compilation.CompiledQuery, subtree []*compilation.CompiledQuery) (*compilation.Patch, error)
}

// Mutator rewrites a whole multi-query.
type Mutator interface {
	Mutate(mq *compilation.CompiledMultiQuery) (*compilation.CompiledMultiQuery, error)
}

// SplitterMultiQueryMutator runs splitters to a fixpoint, one splitter at
// a time, in order.
type SplitterMultiQueryMutator struct {
	Env       *inspect.Environment
	Splitters []Splitter
	// MaxIterations bounds the scans of one splitter
	MaxIterations int
	Logger        logger.Logger
}

// Mutate splits mq. The input is never modified.
func (m *SplitterMultiQueryMutator) Mutate(mq *compilation.CompiledMultiQuery) (*compilation.CompiledMultiQuery, error) {
	log := logger.OrDefault(m.Logger)
	var err error
	for _, s := range m.Splitters {
		if mq, err = m.runSplitter(mq, s, log); err != nil {
			return nil, err
		}
	}
	return mq, mq.Validate()
}

func (m *SplitterMultiQueryMutator) maxIterations() int {
	if m.MaxIterations > 0 {
		return m.MaxIterations
	}
	return DefaultMaxIterations
}

// runSplitter 不断扫描未跳过的查询，每应用一个补丁就重新开始扫描
func (m *SplitterMultiQueryMutator) runSplitter(mq *compilation.CompiledMultiQuery, s Splitter, log logger.Logger) (*compilation.CompiledMultiQuery, error) {
	skip := make(map[string]bool)
	limit := m.maxIterations()
	for iteration := 1; ; iteration++ {
		if iteration > limit {
			log.Error("splitter %s exceeded %d iterations", s.Name(), limit)
			return nil, exc.ErrPlanningBudgetExceeded.New(limit, s.Name())
		}
		ctx := &Context{Env: m.Env, QueryIDs: mq.QueryIDs, ExprIDs: mq.ExprIDs, MultiQuery: mq}
		var applied bool
		for _, q := range mq.Queries() {
			if skip[q.ID] {
				continue
			}
			subtree := queriesByID(mq, mq.RequirementSubtree(q.ID))
			patch, err := s.Split(ctx, q, subtree)
			if err != nil {
				return nil, err
			}
			if patch.IsEmpty() {
				skip[q.ID] = true
				continue
			}
			if err := checkPatch(patch, skip); err != nil {
				return nil, err
			}
			log.Debug("splitter %s split %s into %d new queries", s.Name(), q.ID, len(patch.Add))
			if mq, err = mq.ApplyPatch(patch); err != nil {
				return nil, err
			}
			applied = true
			break
		}
		if !applied {
			return mq, nil
		}
	}
}

// checkPatch rejects patches touching queries the splitter already
// accepted as final.
func checkPatch(p *compilation.Patch, skip map[string]bool) error {
	for _, q := range p.Add {
		if skip[q.ID] {
			return exc.ErrInvalidPatch.New("patch reintroduces skipped query " + q.ID)
		}
	}
	for _, q := range p.Replace {
		if skip[q.ID] {
			return exc.ErrInvalidPatch.New("patch replaces skipped query " + q.ID)
		}
	}
	return nil
}

func queriesByID(mq *compilation.CompiledMultiQuery, ids []string) []*compilation.CompiledQuery {
	out := make([]*compilation.CompiledQuery, 0, len(ids))
	for _, id := range ids {
		if q, ok := mq.QueryByID(id); ok {
			out = append(out, q)
		}
	}
	return out
}
