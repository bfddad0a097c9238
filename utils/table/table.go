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

// Package table prints query results as text tables.
package table

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/rulego/dlquery/merging"
	"github.com/rulego/dlquery/pivot"
)

// Print writes a bordered table and a row count line.
func Print(w io.Writer, columns []string, rows [][]interface{}) {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = max(utf8.RuneCountInString(col), 4)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i := range columns {
			var s string
			if i < len(row) {
				s = format(row[i])
			}
			cells[r][i] = s
			widths[i] = max(widths[i], utf8.RuneCountInString(s))
		}
	}

	border(w, widths)
	line(w, widths, columns)
	border(w, widths)
	for _, row := range cells {
		line(w, widths, row)
	}
	border(w, widths)
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

// PrintStream prints a merged stream. Rows of blocks with other legend items
// are aligned by legend item id, titles names the columns.
func PrintStream(w io.Writer, s *merging.MergedQueryDataStream, titles map[int]string) {
	var ids []int
	seen := make(map[int]bool)
	add := func(list []int) {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	add(s.LegendItemIDs)
	for _, r := range s.Rows {
		add(r.LegendItemIDs)
	}

	columns := make([]string, len(ids))
	for i, id := range ids {
		if t, ok := titles[id]; ok {
			columns[i] = t
		} else {
			columns[i] = fmt.Sprintf("#%d", id)
		}
	}
	rows := make([][]interface{}, len(s.Rows))
	for r, row := range s.Rows {
		rows[r] = make([]interface{}, len(ids))
		for i, id := range ids {
			if v, ok := row.Get(id); ok {
				rows[r][i] = v
			}
		}
	}
	Print(w, columns, rows)
}

// PrintPivot prints a pivot table, row headers first.
func PrintPivot(w io.Writer, df *pivot.DataFrame) {
	var columns []string
	for range df.RowItems {
		columns = append(columns, "")
	}
	for _, h := range df.Columns {
		columns = append(columns, strings.Join(h.Strings(), " / "))
	}
	rows := make([][]interface{}, len(df.Rows))
	for r, dr := range df.Rows {
		var row []interface{}
		for _, s := range dr.Header.Strings() {
			row = append(row, s)
		}
		for _, v := range dr.Values {
			row = append(row, v.Main())
		}
		rows[r] = row
	}
	Print(w, columns, rows)
}

func format(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}

func border(w io.Writer, widths []int) {
	var sb strings.Builder
	sb.WriteString("+")
	for _, width := range widths {
		sb.WriteString(strings.Repeat("-", width+2))
		sb.WriteString("+")
	}
	fmt.Fprintln(w, sb.String())
}

func line(w io.Writer, widths []int, cells []string) {
	var sb strings.Builder
	sb.WriteString("|")
	for i, c := range cells {
		sb.WriteString(" ")
		sb.WriteString(c)
		sb.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c)))
		sb.WriteString(" |")
	}
	fmt.Fprintln(w, sb.String())
}
