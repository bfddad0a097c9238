package pivot

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/language"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/merging"
	"github.com/rulego/dlquery/utils/cast"
)

// Transformer builds pivot tables for one pivot legend.
type Transformer struct {
	legend  *legend.PivotLegend
	lang    language.Tag
	natural bool
	logger  logger.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithLanguage sets the collation language of string headers.
func WithLanguage(tag language.Tag) Option {
	return func(t *Transformer) { t.lang = tag }
}

// WithNaturalOrder orders string headers naturally ("a2" before "a10")
// instead of by collation.
func WithNaturalOrder() Option {
	return func(t *Transformer) { t.natural = true }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Transformer) { t.logger = l }
}

// NewTransformer creates a transformer for pl.
func NewTransformer(pl *legend.PivotLegend, opts ...Option) *Transformer {
	t := &Transformer{legend: pl, lang: language.Und}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logger.OrDefault(t.logger)
	return t
}

// Transform pivots s with the default options.
func Transform(s *merging.MergedQueryDataStream, pl *legend.PivotLegend) (*DataFrame, error) {
	return NewTransformer(pl).Transform(s)
}

// headerIndex deduplicates headers by an xxhash of their values.
type headerIndex struct {
	digest  *xxhash.Digest
	buckets map[uint64][]int
	headers []Header
}

func newHeaderIndex() *headerIndex {
	return &headerIndex{digest: xxhash.New(), buckets: make(map[uint64][]int)}
}

func (x *headerIndex) add(h Header) int {
	x.digest.Reset()
	for _, c := range h.Values {
		fmt.Fprintf(x.digest, "%d:%T:%v\x00", c.PivotItemID, c.Value, c.Value)
	}
	key := x.digest.Sum64()
	for _, i := range x.buckets[key] {
		if sameHeader(x.headers[i], h) {
			return i
		}
	}
	x.headers = append(x.headers, h)
	x.buckets[key] = append(x.buckets[key], len(x.headers)-1)
	return len(x.headers) - 1
}

func sameHeader(a, b Header) bool {
	if len(a.Values) != len(b.Values) || a.Role != b.Role {
		return false
	}
	for i := range a.Values {
		if a.Values[i].PivotItemID != b.Values[i].PivotItemID || cast.Compare(a.Values[i].Value, b.Values[i].Value) != 0 {
			return false
		}
		if am, ok := a.Values[i].Value.(MeasureNameValue); ok && am != b.Values[i].Value {
			return false
		}
	}
	return true
}

type layout struct {
	rows, columns []*legend.PivotItem
	measures      []*legend.PivotItem
	measureIndex  map[int]int
	annotations   map[int][]int // measure pivot item id -> annotation pivot item ids

	measureNameInRows    bool
	measureNameInColumns bool
}

func (t *Transformer) layout() (*layout, error) {
	pl := t.legend
	l := &layout{
		rows:         pl.ListForRole(legend.PivotRow),
		columns:      pl.ListForRole(legend.PivotColumn),
		measures:     pl.ListForRole(legend.PivotMeasure),
		measureIndex: make(map[int]int),
		annotations:  make(map[int][]int),
	}
	for _, item := range l.rows {
		if item.ItemType == legend.PivotMeasureName {
			l.measureNameInRows = true
		}
	}
	for _, item := range l.columns {
		if item.ItemType == legend.PivotMeasureName {
			l.measureNameInColumns = true
		}
	}
	if len(l.measures) > 1 && !l.measureNameInRows && !l.measureNameInColumns {
		return nil, exc.ErrPivotMeasureNameRequired.New()
	}
	annos := pl.ListForRole(legend.PivotAnnotation)
	for i, m := range l.measures {
		l.measureIndex[m.PivotItemID] = i
		for _, a := range annos {
			spec, _ := a.RoleSpec.(*legend.AnnotationPivotRoleSpec)
			if spec == nil || len(spec.TargetLegendItemIDs) == 0 || intersects(spec.TargetLegendItemIDs, m.LegendItemIDs) {
				l.annotations[m.PivotItemID] = append(l.annotations[m.PivotItemID], a.PivotItemID)
			}
		}
	}
	return l, nil
}

// Transform builds the sorted pivot table of s. Several legend items may
// back one pivot item (one per block), their cells are merged under the
// first legend item of the pivot item.
func (t *Transformer) Transform(s *merging.MergedQueryDataStream) (*DataFrame, error) {
	l, err := t.layout()
	if err != nil {
		return nil, err
	}
	rowIdx, colIdx := newHeaderIndex(), newHeaderIndex()
	values := make(map[[2]int]DataCellVector)

	for _, row := range s.Rows {
		cells, err := t.cells(row)
		if err != nil {
			return nil, err
		}
		if len(l.measures) == 0 {
			rowIdx.add(header(l.rows, cells, nil, l))
			colIdx.add(header(l.columns, cells, nil, l))
			continue
		}
		for _, m := range l.measures {
			mc, ok := cells[m.PivotItemID]
			if !ok {
				continue
			}
			vec := DataCellVector{mc}
			for _, a := range l.annotations[m.PivotItemID] {
				if ac, ok := cells[a]; ok {
					vec = append(vec, ac)
				}
			}
			i := rowIdx.add(header(l.rows, cells, m, l))
			j := colIdx.add(header(l.columns, cells, m, l))
			values[[2]int{i, j}] = vec
		}
	}

	rowOrder, colOrder, err := t.arrange(l, rowIdx.headers, colIdx.headers, values)
	if err != nil {
		return nil, err
	}
	df := &DataFrame{RowItems: itemIDs(l.rows), ColumnItems: itemIDs(l.columns)}
	for _, j := range colOrder {
		df.Columns = append(df.Columns, colIdx.headers[j])
	}
	for _, i := range rowOrder {
		dr := DataRow{Header: rowIdx.headers[i], Values: make([]DataCellVector, len(colOrder))}
		for k, j := range colOrder {
			dr.Values[k] = values[[2]int{i, j}]
		}
		df.Rows = append(df.Rows, dr)
	}
	t.logger.Debug("pivot table %dx%d from %d rows", len(df.Rows), len(df.Columns), len(s.Rows))
	return df, nil
}

// cells maps pivot item ids to the cells of one merged row.
func (t *Transformer) cells(row merging.MergedQueryDataRow) (map[int]DataCell, error) {
	out := make(map[int]DataCell, len(row.Data))
	for i, liid := range row.LegendItemIDs {
		for _, piid := range t.legend.LegItemIDToPivotItemIDList(liid) {
			item, err := t.legend.GetItem(piid)
			if err != nil {
				return nil, err
			}
			canonical := liid
			if len(item.LegendItemIDs) > 0 {
				canonical = item.LegendItemIDs[0]
			}
			out[piid] = DataCell{Value: row.Data[i], LegendItemID: canonical, PivotItemID: piid}
		}
	}
	return out, nil
}

// header builds the header of items for measure m. A dimension missing from
// the row makes a total header.
func header(items []*legend.PivotItem, cells map[int]DataCell, m *legend.PivotItem, l *layout) Header {
	h := Header{Values: make([]DataCell, 0, len(items)), Role: legend.HeaderData}
	for _, item := range items {
		if item.ItemType == legend.PivotMeasureName {
			c := DataCell{PivotItemID: item.PivotItemID}
			if len(item.LegendItemIDs) > 0 {
				c.LegendItemID = item.LegendItemIDs[0]
			}
			if m != nil {
				c.Value = MeasureNameValue{Title: m.Title, Index: l.measureIndex[m.PivotItemID], PivotItemID: m.PivotItemID}
			}
			h.Values = append(h.Values, c)
			continue
		}
		c, ok := cells[item.PivotItemID]
		if !ok {
			h.Role = legend.HeaderTotal
			c = DataCell{PivotItemID: item.PivotItemID}
			if len(item.LegendItemIDs) > 0 {
				c.LegendItemID = item.LegendItemIDs[0]
			}
		}
		h.Values = append(h.Values, c)
	}
	return h
}

func itemIDs(items []*legend.PivotItem) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.PivotItemID
	}
	return out
}

func intersects(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Pivot transforms s and applies the pagination of the pivot legend.
func (t *Transformer) Pivot(s *merging.MergedQueryDataStream) (*DataFrame, error) {
	df, err := t.Transform(s)
	if err != nil {
		return nil, err
	}
	return Paginate(df, t.legend.Pagination)
}
