/*
 * Copyright 2024 The RuleGo Authors.
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

package dataset

import "github.com/rulego/dlquery/formula"

// Column describes one result column.
type Column struct {
	Name     string
	DataType formula.DataType
}

// Schema is the ordered column list of a row stream.
type Schema []Column

// Index returns the position of a column, -1 when absent.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names 列名列表
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Row holds column values in schema order.
type Row []interface{}

// Get returns the value at i, nil out of range.
func (r Row) Get(i int) interface{} {
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

// Project builds a row from the given column positions.
func (r Row) Project(indexes []int) Row {
	out := make(Row, len(indexes))
	for i, idx := range indexes {
		out[i] = r.Get(idx)
	}
	return out
}

// Rows 按列名访问的行集合
type Rows struct {
	Schema Schema
	Rows   []Row
}

// NewRows creates an empty row set with the given schema.
func NewRows(schema Schema) *Rows {
	return &Rows{Schema: schema}
}

// AddRow appends a row, ignoring nil.
func (r *Rows) AddRow(row Row) {
	if row == nil {
		return
	}
	r.Rows = append(r.Rows, row)
}

// GetColumn returns the value of column name in row i.
func (r *Rows) GetColumn(i int, name string) (interface{}, bool) {
	idx := r.Schema.Index(name)
	if idx < 0 || i < 0 || i >= len(r.Rows) {
		return nil, false
	}
	return r.Rows[i].Get(idx), true
}

// Len 行数
func (r *Rows) Len() int {
	return len(r.Rows)
}

// Maps converts the rows to column name maps.
func (r *Rows) Maps() []map[string]interface{} {
	out := make([]map[string]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]interface{}, len(r.Schema))
		for j, c := range r.Schema {
			m[c.Name] = row.Get(j)
		}
		out[i] = m
	}
	return out
}
