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

package table

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/merging"
	"github.com/rulego/dlquery/pivot"
)

// TestPrint 测试表格打印功能
func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, []string{"city", "n"}, [][]interface{}{{"Moscow", int64(10)}, {"Paris", nil}})
	want := "" +
		"+--------+------+\n" +
		"| city   | n    |\n" +
		"+--------+------+\n" +
		"| Moscow | 10   |\n" +
		"| Paris  | NULL |\n" +
		"+--------+------+\n" +
		"(2 rows)\n"
	assert.Equal(t, want, buf.String())

	// 空数据
	buf.Reset()
	Print(&buf, nil, nil)
	assert.Equal(t, "+\n|\n+\n+\n(0 rows)\n", buf.String())
}

func TestPrintStream(t *testing.T) {
	s := &merging.MergedQueryDataStream{
		LegendItemIDs: []int{0, 1},
		Rows: []merging.MergedQueryDataRow{
			{Data: []interface{}{"Moscow", 10}, LegendItemIDs: []int{0, 1}},
			{Data: []interface{}{30}, LegendItemIDs: []int{3}},
		},
	}
	var buf bytes.Buffer
	PrintStream(&buf, s, map[int]string{0: "City", 1: "Sales"})
	out := buf.String()
	assert.Contains(t, out, "| City   | Sales | #3   |")
	assert.Contains(t, out, "| Moscow | 10    | NULL |")
	assert.Contains(t, out, "| NULL   | NULL  | 30   |")
}

func TestPrintPivot(t *testing.T) {
	df := &pivot.DataFrame{
		RowItems:    []int{10},
		ColumnItems: []int{20},
		Columns: []pivot.Header{
			{Values: []pivot.DataCell{{Value: "Furniture"}}, Role: legend.HeaderData},
		},
		Rows: []pivot.DataRow{{
			Header: pivot.Header{Values: []pivot.DataCell{{Value: "Detroit"}}, Role: legend.HeaderData},
			Values: []pivot.DataCellVector{{{Value: 100}}},
		}},
	}
	var buf bytes.Buffer
	PrintPivot(&buf, df)
	assert.Contains(t, buf.String(), "|         | Furniture |")
	assert.Contains(t, buf.String(), "| Detroit | 100       |")
}
