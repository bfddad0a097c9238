package legend

import (
	"github.com/rulego/dlquery/exc"
)

// Placement tells where the rows of a block go in the merged result.
type Placement interface {
	placement()
}

// RootPlacement marks the block whose rows come first.
type RootPlacement struct{}

// AfterPlacement appends the block rows after the parent block rows.
type AfterPlacement struct {
	DimensionValues []DimensionValueSpec
}

// DispersedAfterPlacement interleaves the block rows with the parent rows:
// each child row goes right after the last parent row whose ParentDimensions
// values equal its ChildDimensions values.
type DispersedAfterPlacement struct {
	ParentDimensions []int
	ChildDimensions  []int
}

func (*RootPlacement) placement()           {}
func (*AfterPlacement) placement()          {}
func (*DispersedAfterPlacement) placement() {}

// GroupByPolicy 分组策略
type GroupByPolicy string

const (
	// GroupByIfMeasures groups only when the query has aggregations
	GroupByIfMeasures GroupByPolicy = "if_measures"
	GroupByForce      GroupByPolicy = "force"
	GroupByDisable    GroupByPolicy = "disable"
)

// EmptyQueryMode decides what a block without selected items returns.
type EmptyQueryMode string

const (
	EmptyQueryError    EmptyQueryMode = "error"
	EmptyQueryEmptyRow EmptyQueryMode = "empty_row"
	EmptyQueryEmpty    EmptyQueryMode = "empty"
)

// QueryType 查询类型
type QueryType string

const (
	QueryTypeInternal QueryType = "internal"
	QueryTypeExternal QueryType = "external"
)

// BlockSpec is one block of a block legend, compiled into one top query.
type BlockSpec struct {
	BlockID       int
	ParentBlockID *int
	Placement     Placement
	LegendItemIDs []int
	Legend        *Legend

	GroupByPolicy            GroupByPolicy
	Limit                    *int
	Offset                   *int
	RowCountHardLimit        *int
	QueryType                QueryType
	DisableRLS               bool
	IgnoreNonexistentFilters bool
	AllowMeasureFields       bool
	EmptyQueryMode           EmptyQueryMode
}

// IsRoot 是否根块
func (b *BlockSpec) IsRoot() bool {
	_, ok := b.Placement.(*RootPlacement)
	return ok
}

// BlockLegendMeta holds request wide pagination settings.
type BlockLegendMeta struct {
	Limit             *int
	Offset            *int
	RowCountHardLimit *int
}

// BlockLegend is the ordered list of blocks of a request.
type BlockLegend struct {
	Blocks []*BlockSpec
	Meta   BlockLegendMeta
}

// Root returns the root block.
func (bl *BlockLegend) Root() (*BlockSpec, error) {
	var root *BlockSpec
	for _, b := range bl.Blocks {
		if !b.IsRoot() {
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

// Block returns a block by id, nil when absent.
func (bl *BlockLegend) Block(id int) *BlockSpec {
	for _, b := range bl.Blocks {
		if b.BlockID == id {
			return b
		}
	}
	return nil
}

// Validate checks the block invariants: one root, unique ids, parents
// declared before their children, and every legend valid.
func (bl *BlockLegend) Validate() error {
	if _, err := bl.Root(); err != nil {
		return err
	}
	seen := make(map[int]bool, len(bl.Blocks))
	for _, b := range bl.Blocks {
		if seen[b.BlockID] {
			return exc.ErrNonUniqueBlockIDs.New(b.BlockID)
		}
		if b.ParentBlockID != nil && !seen[*b.ParentBlockID] {
			return exc.ErrBlockParentReference.New(b.BlockID, *b.ParentBlockID)
		}
		if !b.IsRoot() && b.ParentBlockID == nil {
			return exc.ErrBlockParentReference.New(b.BlockID, -1)
		}
		seen[b.BlockID] = true
		if b.Legend == nil {
			continue
		}
		if err := b.Legend.Validate(); err != nil {
			return err
		}
		for _, id := range b.LegendItemIDs {
			if _, err := b.Legend.Get(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Items returns the legend items of the block.
func (b *BlockSpec) Items() []*Item {
	if b.Legend == nil {
		return nil
	}
	if len(b.LegendItemIDs) == 0 {
		return b.Legend.Items
	}
	return b.Legend.Subset(b.LegendItemIDs).Items
}
