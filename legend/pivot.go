package legend

import (
	"github.com/rulego/dlquery/exc"
)

// PivotRole 透视表角色
type PivotRole string

const (
	PivotRow        PivotRole = "pivot_row"
	PivotColumn     PivotRole = "pivot_column"
	PivotMeasure    PivotRole = "pivot_measure"
	PivotAnnotation PivotRole = "pivot_annotation"
	PivotInfo       PivotRole = "pivot_info"
)

// PivotItemType distinguishes stream items from pseudo dimensions.
type PivotItemType string

const (
	PivotStreamItem    PivotItemType = "stream_item"
	PivotMeasureName   PivotItemType = "measure_name"
	PivotDimensionName PivotItemType = "dimension_name"
)

// HeaderRole marks data or total headers.
type HeaderRole string

const (
	HeaderData  HeaderRole = "data"
	HeaderTotal HeaderRole = "total"
)

// PivotRoleSpec carries pivot role settings.
type PivotRoleSpec interface {
	PivotRole() PivotRole
	pivotRoleSpec()
}

// DimensionPivotRoleSpec is the spec of row and column items.
type DimensionPivotRoleSpec struct {
	R         PivotRole
	Direction Direction
}

func (s *DimensionPivotRoleSpec) PivotRole() PivotRole { return s.R }
func (*DimensionPivotRoleSpec) pivotRoleSpec()         {}

// MeasureSortingSettings sorts headers by the measure values found in the
// row or column identified by HeaderValues.
type MeasureSortingSettings struct {
	HeaderValues []string
	Direction    Direction
	Role         HeaderRole
}

// MeasureSorting 按度量排序
type MeasureSorting struct {
	Column *MeasureSortingSettings
	Row    *MeasureSortingSettings
}

// MeasurePivotRoleSpec is the spec of measure items.
type MeasurePivotRoleSpec struct {
	Sorting *MeasureSorting
}

func (*MeasurePivotRoleSpec) PivotRole() PivotRole { return PivotMeasure }
func (*MeasurePivotRoleSpec) pivotRoleSpec()       {}

// AnnotationPivotRoleSpec attaches an annotation to target measures, all
// measures when TargetLegendItemIDs is empty.
type AnnotationPivotRoleSpec struct {
	AnnotationType      string
	TargetLegendItemIDs []int
}

func (*AnnotationPivotRoleSpec) PivotRole() PivotRole { return PivotAnnotation }
func (*AnnotationPivotRoleSpec) pivotRoleSpec()       {}

// InfoPivotRoleSpec 仅展示
type InfoPivotRoleSpec struct{}

func (*InfoPivotRoleSpec) PivotRole() PivotRole { return PivotInfo }
func (*InfoPivotRoleSpec) pivotRoleSpec()       {}

// PivotItem is one item of a pivot legend. Several legend items may back a
// single pivot item (one per block).
type PivotItem struct {
	PivotItemID   int
	LegendItemIDs []int
	RoleSpec      PivotRoleSpec
	Title         string
	ItemType      PivotItemType
}

// Role returns the pivot role of the item.
func (p *PivotItem) Role() PivotRole {
	return p.RoleSpec.PivotRole()
}

// Pagination of pivot rows.
type Pagination struct {
	OffsetRows *int
	LimitRows  *int
}

// PivotLegend maps legend items onto the pivot layout.
type PivotLegend struct {
	Items      []*PivotItem
	Pagination *Pagination

	byID       map[int]*PivotItem
	legToPivot map[int][]int
}

// NewPivotLegend creates a pivot legend and builds its indices.
func NewPivotLegend(items ...*PivotItem) *PivotLegend {
	p := &PivotLegend{Items: items}
	p.rebuild()
	return p
}

func (p *PivotLegend) rebuild() {
	p.byID = make(map[int]*PivotItem, len(p.Items))
	p.legToPivot = make(map[int][]int)
	for _, item := range p.Items {
		p.byID[item.PivotItemID] = item
		for _, legID := range item.LegendItemIDs {
			p.legToPivot[legID] = append(p.legToPivot[legID], item.PivotItemID)
		}
	}
}

// GetItem returns a pivot item by id.
func (p *PivotLegend) GetItem(pivotItemID int) (*PivotItem, error) {
	if p.byID == nil {
		p.rebuild()
	}
	item, ok := p.byID[pivotItemID]
	if !ok {
		return nil, exc.ErrPivotLegendItemReference.New(pivotItemID)
	}
	return item, nil
}

// LegItemIDToPivotItemIDList returns the pivot items backed by a legend item.
func (p *PivotLegend) LegItemIDToPivotItemIDList(legendItemID int) []int {
	if p.legToPivot == nil {
		p.rebuild()
	}
	return p.legToPivot[legendItemID]
}

// AddItem appends an item and rebuilds the indices. A zero PivotItemID is
// replaced by the next free id.
func (p *PivotLegend) AddItem(item *PivotItem) *PivotItem {
	if item.PivotItemID == 0 {
		maxID := 0
		for _, existing := range p.Items {
			if existing.PivotItemID > maxID {
				maxID = existing.PivotItemID
			}
		}
		item.PivotItemID = maxID + 1
	}
	p.Items = append(p.Items, item)
	p.rebuild()
	return item
}

// ListForRole returns items of a pivot role.
func (p *PivotLegend) ListForRole(role PivotRole) []*PivotItem {
	var out []*PivotItem
	for _, item := range p.Items {
		if item.Role() == role {
			out = append(out, item)
		}
	}
	return out
}
