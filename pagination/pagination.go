// Package pagination applies request limit and offset around execution.
//
// PrePaginate moves pagination into the block queries where the database can
// do it, PostPaginate trims the merged stream to what is left.
package pagination

import (
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/merging"
)

// PrePaginate returns a copy of bl with pagination pushed down.
//
// With a single block the request limit and offset move onto the block when
// it has none of its own, and are cleared from the meta. With several blocks
// an offset cannot be pushed, since it may consume one block completely and
// continue into the next, so every block only gets limit+offset as an upper
// bound and the meta is kept for PostPaginate.
func PrePaginate(bl *legend.BlockLegend) *legend.BlockLegend {
	out := &legend.BlockLegend{Meta: bl.Meta, Blocks: make([]*legend.BlockSpec, len(bl.Blocks))}
	for i, b := range bl.Blocks {
		c := *b
		out.Blocks[i] = &c
	}
	meta := &out.Meta
	if meta.Limit == nil && meta.Offset == nil {
		return out
	}

	if len(out.Blocks) == 1 {
		b := out.Blocks[0]
		if b.Limit == nil && b.Offset == nil {
			b.Limit, b.Offset = meta.Limit, meta.Offset
			meta.Limit, meta.Offset = nil, nil
		}
		return out
	}

	if meta.Limit == nil {
		return out
	}
	bound := *meta.Limit
	if meta.Offset != nil {
		bound += *meta.Offset
	}
	for _, b := range out.Blocks {
		if b.Limit == nil || *b.Limit > bound {
			b.Limit = intPtr(bound)
		}
	}
	return out
}

// PostPaginate returns s trimmed to rows [offset, offset+limit) of its meta.
// The result has no pagination left in its meta, so applying it again does
// nothing.
func PostPaginate(s *merging.MergedQueryDataStream) *merging.MergedQueryDataStream {
	if s.Meta.Offset == nil && s.Meta.Limit == nil {
		return s
	}
	rows := Window(s.Rows, s.Meta.Offset, s.Meta.Limit)
	return s.Evolve(rows, func(m *merging.MergedQueryMetaInfo) {
		m.Offset, m.Limit = nil, nil
	})
}

// Window returns items[offset:offset+limit] clamped to the slice bounds.
func Window[T any](items []T, offset, limit *int) []T {
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if limit != nil && *limit >= 0 && start+*limit < end {
		end = start + *limit
	}
	return items[start:end]
}

func intPtr(v int) *int { return &v }
