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

// Package merging recombines the row sets of the blocks of a request into
// one ordered stream.
//
// The root block goes first. Every other block is merged into the running
// stream in declaration order according to its placement:
//
//	After           rows are appended, pinned dimension values are added
//	DispersedAfter  each row follows the last parent row with equal
//	                correlated dimension values
package merging

import (
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/legend"
)

// MergedQueryDataRow is one merged row: values aligned with the legend items
// they belong to.
type MergedQueryDataRow struct {
	Data          []interface{}
	LegendItemIDs []int
}

// Get returns the value of a legend item.
func (r MergedQueryDataRow) Get(legendItemID int) (interface{}, bool) {
	for i, id := range r.LegendItemIDs {
		if id == legendItemID {
			return r.Data[i], true
		}
	}
	return nil, false
}

// BlockMetaInfo describes how one block was computed.
type BlockMetaInfo struct {
	BlockID    int              `json:"block_id"`
	QueryType  legend.QueryType `json:"query_type"`
	DebugQuery string           `json:"debug_query"`
}

// MergedQueryMetaInfo carries request metadata next to the merged rows.
// Offset and Limit are the pagination still to be applied after merging.
type MergedQueryMetaInfo struct {
	Blocks              []BlockMetaInfo `json:"blocks"`
	Offset              *int            `json:"offset,omitempty"`
	Limit               *int            `json:"limit,omitempty"`
	TargetConnectionIDs []string        `json:"target_connection_ids"`
}

// MergedQueryDataStream is the merged result of a request. It is never
// modified in place, Evolve returns a modified copy.
type MergedQueryDataStream struct {
	Rows []MergedQueryDataRow
	// LegendItemIDs is set when every row has the same legend items
	LegendItemIDs []int
	Meta          MergedQueryMetaInfo
}

// Evolve returns a copy of s with rows replaced and meta changed by fn.
func (s *MergedQueryDataStream) Evolve(rows []MergedQueryDataRow, fn func(meta *MergedQueryMetaInfo)) *MergedQueryDataStream {
	out := &MergedQueryDataStream{
		Rows:          rows,
		LegendItemIDs: s.LegendItemIDs,
		Meta:          s.Meta,
	}
	out.Meta.Blocks = append([]BlockMetaInfo(nil), s.Meta.Blocks...)
	out.Meta.TargetConnectionIDs = append([]string(nil), s.Meta.TargetConnectionIDs...)
	if fn != nil {
		fn(&out.Meta)
	}
	return out
}

// Len returns the number of rows.
func (s *MergedQueryDataStream) Len() int { return len(s.Rows) }

// BlockResult is the executed result of one block.
type BlockResult struct {
	BlockID       int
	ParentBlockID *int
	Placement     legend.Placement
	LegendItemIDs []int
	Rows          *dataset.Rows
	QueryType     legend.QueryType
	DebugQuery    string
	// TargetConnectionIDs are the connections the block read from
	TargetConnectionIDs []string
}

// QueryUnion is the input of the merger: block results in declaration order
// plus the request pagination.
type QueryUnion struct {
	Blocks []*BlockResult
	Offset *int
	Limit  *int
}
