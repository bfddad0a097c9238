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

// Package legend describes what a data request asks for: legend items with
// their roles, the blocks they are grouped into and the pivot layout.
package legend

import (
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
)

// Role 图例项角色
type Role string

const (
	RoleRow       Role = "row"
	RoleMeasure   Role = "measure"
	RoleInfo      Role = "info"
	RoleOrderBy   Role = "order_by"
	RoleFilter    Role = "filter"
	RoleParameter Role = "parameter"
	RoleDistinct  Role = "distinct"
	RoleRange     Role = "range"
	RoleTotal     Role = "total"
	RoleTemplate  Role = "template"
	RoleTree      Role = "tree"
)

// IsSelectable reports whether items of the role produce result columns.
func (r Role) IsSelectable() bool {
	switch r {
	case RoleOrderBy, RoleFilter, RoleParameter:
		return false
	}
	return true
}

// ItemType distinguishes real fields from pseudo items.
type ItemType string

const (
	ItemField         ItemType = "field"
	ItemMeasureName   ItemType = "measure_name"
	ItemDimensionName ItemType = "dimension_name"
)

// Direction 排序方向
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// RangeType selects the bound computed by a range item.
type RangeType string

const (
	RangeMin RangeType = "min"
	RangeMax RangeType = "max"
)

// FilterOp is a filter operation of a filter item.
type FilterOp string

const (
	FilterEq         FilterOp = "eq"
	FilterNe         FilterOp = "ne"
	FilterGt         FilterOp = "gt"
	FilterGte        FilterOp = "gte"
	FilterLt         FilterOp = "lt"
	FilterLte        FilterOp = "lte"
	FilterIn         FilterOp = "in"
	FilterNotIn      FilterOp = "nin"
	FilterIsNull     FilterOp = "isnull"
	FilterIsNotNull  FilterOp = "isnotnull"
	FilterStartsWith FilterOp = "startswith"
	FilterEndsWith   FilterOp = "endswith"
	FilterContains   FilterOp = "contains"
	FilterBetween    FilterOp = "between"
)

// RoleSpec carries role specific settings. Implementations are the
// *RoleSpec types of this package.
type RoleSpec interface {
	Role() Role
	roleSpec()
}

// SimpleRoleSpec is used by roles without settings: row, measure, info,
// distinct and total.
type SimpleRoleSpec struct {
	R Role
}

func (s *SimpleRoleSpec) Role() Role { return s.R }
func (*SimpleRoleSpec) roleSpec()    {}

// OrderByRoleSpec orders the query by the item.
type OrderByRoleSpec struct {
	Direction Direction
}

func (*OrderByRoleSpec) Role() Role { return RoleOrderBy }
func (*OrderByRoleSpec) roleSpec()  {}

// FilterRoleSpec filters the query by the item.
type FilterRoleSpec struct {
	Operation FilterOp
	Values    []interface{}
}

func (*FilterRoleSpec) Role() Role { return RoleFilter }
func (*FilterRoleSpec) roleSpec()  {}

// ParameterRoleSpec overrides the value of a parameter field.
type ParameterRoleSpec struct {
	Value interface{}
}

func (*ParameterRoleSpec) Role() Role { return RoleParameter }
func (*ParameterRoleSpec) roleSpec()  {}

// RangeRoleSpec selects the minimum or maximum of the item.
type RangeRoleSpec struct {
	RangeType RangeType
}

func (*RangeRoleSpec) Role() Role { return RoleRange }
func (*RangeRoleSpec) roleSpec()  {}

// TemplateRoleSpec 模板文本，{field} 占位
type TemplateRoleSpec struct {
	Template string
}

func (*TemplateRoleSpec) Role() Role { return RoleTemplate }
func (*TemplateRoleSpec) roleSpec()  {}

// TreeRoleSpec selects one level of a tree dimension.
type TreeRoleSpec struct {
	Level           int
	Prefix          string
	DimensionValues []DimensionValueSpec
}

func (*TreeRoleSpec) Role() Role { return RoleTree }
func (*TreeRoleSpec) roleSpec()  {}

// Spec returns the settings-free spec of role.
func Spec(role Role) RoleSpec {
	return &SimpleRoleSpec{R: role}
}

// DimensionValueSpec pins a dimension item to a value.
type DimensionValueSpec struct {
	LegendItemID int
	Value        interface{}
}

// Item is one legend item.
type Item struct {
	LegendItemID int
	// ID is the dataset field id
	ID        string
	Title     string
	Role      Role
	RoleSpec  RoleSpec
	DataType  formula.DataType
	FieldType dataset.FieldType
	ItemType  ItemType
	BlockID   int
}

// Legend 图例，legend_item_id 唯一
type Legend struct {
	Items []*Item
}

// New creates a legend.
func New(items ...*Item) *Legend {
	return &Legend{Items: items}
}

// ListForRole returns items of role in legend order.
func (l *Legend) ListForRole(role Role) []*Item {
	var out []*Item
	for _, item := range l.Items {
		if item.Role == role {
			out = append(out, item)
		}
	}
	return out
}

// ListSelectable returns items that produce result columns.
func (l *Legend) ListSelectable() []*Item {
	var out []*Item
	for _, item := range l.Items {
		if item.Role.IsSelectable() {
			out = append(out, item)
		}
	}
	return out
}

// Get returns the item by legend item id.
func (l *Legend) Get(legendItemID int) (*Item, error) {
	for _, item := range l.Items {
		if item.LegendItemID == legendItemID {
			return item, nil
		}
	}
	return nil, exc.ErrLegendItemReference.New(legendItemID)
}

// Subset returns a legend holding only the given items, in legend order.
func (l *Legend) Subset(legendItemIDs []int) *Legend {
	wanted := make(map[int]bool, len(legendItemIDs))
	for _, id := range legendItemIDs {
		wanted[id] = true
	}
	out := &Legend{}
	for _, item := range l.Items {
		if wanted[item.LegendItemID] {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

// IDs returns the legend item ids in order.
func (l *Legend) IDs() []int {
	out := make([]int, len(l.Items))
	for i, item := range l.Items {
		out[i] = item.LegendItemID
	}
	return out
}

// Validate checks id uniqueness and role spec consistency.
func (l *Legend) Validate() error {
	seen := make(map[int]bool, len(l.Items))
	for _, item := range l.Items {
		if seen[item.LegendItemID] {
			return exc.ErrNonUniqueLegendIDs.New(item.LegendItemID)
		}
		seen[item.LegendItemID] = true
		if item.RoleSpec == nil {
			item.RoleSpec = Spec(item.Role)
		}
		if item.RoleSpec.Role() != item.Role {
			return exc.ErrUnsupportedRoleInLegend.New(item.RoleSpec.Role(), item.Role)
		}
	}
	return nil
}
