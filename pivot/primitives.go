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

// Package pivot reshapes a merged row stream into a pivot table: row headers
// by column headers, each cell holding a measure value with its annotations.
//
// When several measures are pivoted together a measure-name pseudo dimension
// tells them apart; it must be placed on the rows or the columns.
package pivot

import (
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/utils/cast"
)

// DataCell is one value of the stream tagged with its legend and pivot items.
type DataCell struct {
	Value        interface{}
	LegendItemID int
	PivotItemID  int
}

// DataCellVector is a measure cell followed by its annotation cells.
type DataCellVector []DataCell

// Main returns the measure value, nil for an empty vector.
func (v DataCellVector) Main() interface{} {
	if len(v) == 0 {
		return nil
	}
	return v[0].Value
}

// MeasureNameValue is the value of the measure-name pseudo dimension.
type MeasureNameValue struct {
	Title string
	// Index is the position of the measure in the pivot legend
	Index       int
	PivotItemID int
}

func (m MeasureNameValue) String() string { return m.Title }

// Header is a row or column header, one cell per dimension.
type Header struct {
	Values []DataCell
	Role   legend.HeaderRole
}

// IsTotal reports whether a dimension of the header was aggregated away.
func (h Header) IsTotal() bool { return h.Role == legend.HeaderTotal }

// Strings renders the header values, a total value renders as "".
func (h Header) Strings() []string {
	out := make([]string, len(h.Values))
	for i, c := range h.Values {
		switch v := c.Value.(type) {
		case nil:
		case MeasureNameValue:
			out[i] = v.Title
		default:
			out[i] = cast.ToString(v)
		}
	}
	return out
}

// DataRow is a row header with one vector per column, nil where the row and
// column have no value.
type DataRow struct {
	Header Header
	Values []DataCellVector
}

// DataFrame is a pivot table.
type DataFrame struct {
	Columns []Header
	Rows    []DataRow
	// RowItems and ColumnItems are the pivot item ids of the header cells
	RowItems    []int
	ColumnItems []int
}

// Shape returns the number of rows and columns.
func (df *DataFrame) Shape() (int, int) {
	return len(df.Rows), len(df.Columns)
}

// Cell returns the vector at row i, column j.
func (df *DataFrame) Cell(i, j int) DataCellVector {
	return df.Rows[i].Values[j]
}
