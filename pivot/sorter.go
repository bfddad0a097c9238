package pivot

import (
	"slices"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"golang.org/x/text/collate"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/utils/cast"
)

// sorter orders headers. Collators keep state, one sorter serves one
// Transform call.
type sorter struct {
	collator *collate.Collator
	natural  bool
}

func (t *Transformer) newSorter() *sorter {
	return &sorter{collator: collate.New(t.lang), natural: t.natural}
}

// compareValues orders header values: numbers numerically, times
// chronologically, strings by collation or naturally, measure names by the
// legend order of their measures.
func (s *sorter) compareValues(a, b interface{}) int {
	if ma, ok := a.(MeasureNameValue); ok {
		if mb, ok := b.(MeasureNameValue); ok {
			return ma.Index - mb.Index
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if !okA || !okB {
		return cast.Compare(a, b)
	}
	if s.natural {
		switch {
		case sa == sb:
			return 0
		case natsort.Compare(sa, sb):
			return -1
		}
		return 1
	}
	if c := s.collator.CompareString(sa, sb); c != 0 {
		return c
	}
	return strings.Compare(sa, sb)
}

// compareHeaders orders two headers dimension by dimension. A total value
// goes after data values whatever the direction.
func (s *sorter) compareHeaders(a, b Header, items []*legend.PivotItem) int {
	for k := range a.Values {
		va, vb := a.Values[k].Value, b.Values[k].Value
		switch {
		case va == nil && vb == nil:
			continue
		case va == nil:
			return 1
		case vb == nil:
			return -1
		}
		c := s.compareValues(va, vb)
		if c == 0 {
			continue
		}
		if k < len(items) && direction(items[k]) == legend.Desc {
			return -c
		}
		return c
	}
	return 0
}

func direction(item *legend.PivotItem) legend.Direction {
	if spec, ok := item.RoleSpec.(*legend.DimensionPivotRoleSpec); ok && spec.Direction != "" {
		return spec.Direction
	}
	return legend.Asc
}

func (t *Transformer) arrange(l *layout, rows, columns []Header, values map[[2]int]DataCellVector) ([]int, []int, error) {
	s := t.newSorter()
	rowOrder := identity(len(rows))
	colOrder := identity(len(columns))
	sort.SliceStable(rowOrder, func(i, j int) bool {
		return s.compareHeaders(rows[rowOrder[i]], rows[rowOrder[j]], l.rows) < 0
	})
	sort.SliceStable(colOrder, func(i, j int) bool {
		return s.compareHeaders(columns[colOrder[i]], columns[colOrder[j]], l.columns) < 0
	})

	for _, m := range l.measures {
		spec, ok := m.RoleSpec.(*legend.MeasurePivotRoleSpec)
		if !ok || spec.Sorting == nil {
			continue
		}
		if c := spec.Sorting.Column; c != nil {
			// 按某一列的度量值对行排序
			if len(l.measures) > 1 && !l.measureNameInColumns {
				return nil, nil, exc.ErrPivotSortingMeasures.New()
			}
			j, err := findHeader(columns, colOrder, c)
			if err != nil {
				return nil, nil, err
			}
			sortByMeasure(rowOrder, rows, c.Direction, func(i int) interface{} {
				return values[[2]int{i, j}].Main()
			})
		}
		if r := spec.Sorting.Row; r != nil {
			if len(l.measures) > 1 && !l.measureNameInRows {
				return nil, nil, exc.ErrPivotSortingMeasures.New()
			}
			i, err := findHeader(rows, rowOrder, r)
			if err != nil {
				return nil, nil, err
			}
			sortByMeasure(colOrder, columns, r.Direction, func(j int) interface{} {
				return values[[2]int{i, j}].Main()
			})
		}
	}
	return rowOrder, colOrder, nil
}

// findHeader returns the index of the header matching settings.
func findHeader(headers []Header, order []int, settings *legend.MeasureSortingSettings) (int, error) {
	wantTotal := settings.Role == legend.HeaderTotal
	for _, i := range order {
		h := headers[i]
		if h.IsTotal() != wantTotal {
			continue
		}
		if wantTotal && len(settings.HeaderValues) == 0 {
			return i, nil
		}
		if slices.Equal(h.Strings(), settings.HeaderValues) {
			return i, nil
		}
	}
	return 0, exc.ErrPivotSortingNotFound.New()
}

// sortByMeasure reorders the data headers of order by the measure values of
// value, NULLs last. Total headers keep their place at the end.
func sortByMeasure(order []int, headers []Header, dir legend.Direction, value func(int) interface{}) {
	sort.SliceStable(order, func(a, b int) bool {
		ha, hb := headers[order[a]], headers[order[b]]
		if ha.IsTotal() || hb.IsTotal() {
			return !ha.IsTotal() && hb.IsTotal()
		}
		va, vb := value(order[a]), value(order[b])
		switch {
		case va == nil:
			return false
		case vb == nil:
			return true
		}
		c := cast.Compare(va, vb)
		if dir == legend.Desc {
			return c > 0
		}
		return c < 0
	})
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
