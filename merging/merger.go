package merging

import (
	"fmt"
	"strings"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/execution"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/translation"
)

// Merger merges block results into one stream.
type Merger struct {
	Logger logger.Logger
}

// NewMerger creates a merger, a nil logger uses the default one.
func NewMerger(log logger.Logger) *Merger {
	return &Merger{Logger: logger.OrDefault(log)}
}

// Collect builds the merger input from executed queries. Blocks keep the
// order of tmq.Blocks.
func Collect(tmq *translation.TranslatedMultiQuery, results execution.Results, meta legend.BlockLegendMeta,
	targetConnectionIDs ...string) (*QueryUnion, error) {
	u := &QueryUnion{Offset: meta.Offset, Limit: meta.Limit}
	for _, b := range tmq.Blocks {
		tq, ok := tmq.BlockQuery(b.BlockID)
		if !ok {
			return nil, exc.ErrPlanningDependency.New(fmt.Sprintf("block %d has no executable query %s", b.BlockID, b.QueryID))
		}
		rows, ok := results[tq.ID]
		if !ok {
			return nil, exc.ErrPlanningDependency.New(fmt.Sprintf("query %s of block %d was not executed", tq.ID, b.BlockID))
		}
		qt := legend.QueryTypeInternal
		if tq.Query != nil && tq.Query.Meta.QueryType != "" {
			qt = tq.Query.Meta.QueryType
		}
		u.Blocks = append(u.Blocks, &BlockResult{
			BlockID:             b.BlockID,
			ParentBlockID:       b.ParentBlockID,
			Placement:           b.Placement,
			LegendItemIDs:       b.LegendItemIDs,
			Rows:                rows,
			QueryType:           qt,
			DebugQuery:          debugQuery(tmq, tq),
			TargetConnectionIDs: targetConnectionIDs,
		})
	}
	return u, nil
}

// debugQuery lists the statements computing a block, dependencies first.
func debugQuery(tmq *translation.TranslatedMultiQuery, top *translation.TranslatedQuery) string {
	if !top.IsCompeng() {
		return top.SQL
	}
	var parts []string
	seen := make(map[string]bool)
	var visit func(q *translation.TranslatedQuery)
	visit = func(q *translation.TranslatedQuery) {
		if seen[q.ID] {
			return
		}
		seen[q.ID] = true
		for _, id := range q.DependsOn {
			if dep, ok := tmq.QueryByID(id); ok {
				visit(dep)
			}
		}
		parts = append(parts, "-- "+q.ID+"\n"+q.SQL)
	}
	visit(top)
	return strings.Join(parts, "\n")
}

// taggedRow remembers the block a running-stream row came from.
type taggedRow struct {
	MergedQueryDataRow
	blockID int
}

// Merge merges u. The single root block goes first, the others follow their
// placement in declaration order.
func (m *Merger) Merge(u *QueryUnion) (*MergedQueryDataStream, error) {
	log := logger.OrDefault(m.Logger)
	root, err := rootBlock(u.Blocks)
	if err != nil {
		return nil, err
	}
	out := &MergedQueryDataStream{Meta: meta(u)}

	if len(u.Blocks) == 1 {
		out.LegendItemIDs = append([]int(nil), root.LegendItemIDs...)
		out.Rows = normalize(root, nil)
		log.Debug("merged single block %d: %d rows", root.BlockID, len(out.Rows))
		return out, nil
	}

	running := tag(root.BlockID, normalize(root, nil))
	for _, b := range u.Blocks {
		if b == root {
			continue
		}
		switch p := b.Placement.(type) {
		case *legend.AfterPlacement:
			running = mergeAfter(running, b, p)
		case *legend.DispersedAfterPlacement:
			running = mergeDispersed(running, b, p)
		default:
			return nil, exc.ErrInvalidRequest.New(fmt.Sprintf("unsupported placement %T of block %d", b.Placement, b.BlockID))
		}
	}
	out.Rows = make([]MergedQueryDataRow, len(running))
	for i, r := range running {
		out.Rows[i] = r.MergedQueryDataRow
	}
	log.Debug("merged %d blocks: %d rows", len(u.Blocks), len(out.Rows))
	return out, nil
}

func rootBlock(blocks []*BlockResult) (*BlockResult, error) {
	var root *BlockResult
	for _, b := range blocks {
		if _, ok := b.Placement.(*legend.RootPlacement); !ok {
			continue
		}
		if root != nil {
			return nil, exc.ErrMultipleRootBlocks.New()
		}
		root = b
	}
	if root == nil {
		return nil, exc.ErrNoRootBlock.New()
	}
	return root, nil
}

func meta(u *QueryUnion) MergedQueryMetaInfo {
	m := MergedQueryMetaInfo{Offset: u.Offset, Limit: u.Limit, TargetConnectionIDs: []string{}}
	seen := make(map[string]bool)
	for _, b := range u.Blocks {
		m.Blocks = append(m.Blocks, BlockMetaInfo{BlockID: b.BlockID, QueryType: b.QueryType, DebugQuery: b.DebugQuery})
		for _, id := range b.TargetConnectionIDs {
			if !seen[id] {
				seen[id] = true
				m.TargetConnectionIDs = append(m.TargetConnectionIDs, id)
			}
		}
	}
	return m
}

// normalize turns block rows into merged rows, extra values are appended to
// every row.
func normalize(b *BlockResult, extra []legend.DimensionValueSpec) []MergedQueryDataRow {
	if b.Rows == nil {
		return nil
	}
	ids := append([]int(nil), b.LegendItemIDs...)
	for _, dv := range extra {
		ids = append(ids, dv.LegendItemID)
	}
	out := make([]MergedQueryDataRow, 0, b.Rows.Len())
	for _, row := range b.Rows.Rows {
		data := make([]interface{}, 0, len(ids))
		data = append(data, row...)
		for _, dv := range extra {
			data = append(data, dv.Value)
		}
		out = append(out, MergedQueryDataRow{Data: data, LegendItemIDs: ids})
	}
	return out
}

func tag(blockID int, rows []MergedQueryDataRow) []taggedRow {
	out := make([]taggedRow, len(rows))
	for i, r := range rows {
		out[i] = taggedRow{MergedQueryDataRow: r, blockID: blockID}
	}
	return out
}

func mergeAfter(running []taggedRow, b *BlockResult, p *legend.AfterPlacement) []taggedRow {
	return append(running, tag(b.BlockID, normalize(b, p.DimensionValues))...)
}

// mergeDispersed puts each child row right after the last parent row with
// the same correlated values. Rows without a parent go last.
func mergeDispersed(running []taggedRow, b *BlockResult, p *legend.DispersedAfterPlacement) []taggedRow {
	lastParent := make(map[string]int)
	for i, r := range running {
		if b.ParentBlockID != nil && r.blockID != *b.ParentBlockID {
			continue
		}
		if key, ok := dimensionKey(r.MergedQueryDataRow, p.ParentDimensions); ok {
			lastParent[key] = i
		}
	}
	attached := make(map[int][]taggedRow)
	var orphans []taggedRow
	children := tag(b.BlockID, normalize(b, nil))
	for _, r := range children {
		key, ok := dimensionKey(r.MergedQueryDataRow, p.ChildDimensions)
		idx, found := lastParent[key]
		if !ok || !found {
			orphans = append(orphans, r)
			continue
		}
		attached[idx] = append(attached[idx], r)
	}
	out := make([]taggedRow, 0, len(running)+len(children))
	for i, r := range running {
		out = append(out, r)
		out = append(out, attached[i]...)
	}
	return append(out, orphans...)
}

func dimensionKey(r MergedQueryDataRow, legendItemIDs []int) (string, bool) {
	var sb strings.Builder
	for _, id := range legendItemIDs {
		v, ok := r.Get(id)
		if !ok {
			return "", false
		}
		fmt.Fprintf(&sb, "%T:%v\x1f", v, v)
	}
	return sb.String(), true
}
