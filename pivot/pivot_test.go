package pivot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/merging"
)

const (
	liidCity, liidCategory, liidSales, liidProfit, liidNote = 0, 1, 2, 3, 4
	piidCity, piidCategory, piidSales, piidProfit, piidNote = 10, 20, 30, 40, 60
	piidMeasureName                                         = 50
)

func intPtr(v int) *int { return &v }

func stream(ids []int, data ...[]interface{}) *merging.MergedQueryDataStream {
	s := &merging.MergedQueryDataStream{LegendItemIDs: ids}
	for _, d := range data {
		s.Rows = append(s.Rows, merging.MergedQueryDataRow{Data: d, LegendItemIDs: ids})
	}
	return s
}

func salesStream() *merging.MergedQueryDataStream {
	return stream([]int{liidCity, liidCategory, liidSales},
		[]interface{}{"Detroit", "Furniture", int64(100)},
		[]interface{}{"San Francisco", "Furniture", int64(200)},
		[]interface{}{"Moscow", "Office Supplies", int64(300)},
		[]interface{}{"Detroit", "Office Supplies", int64(400)},
	)
}

func dim(piid, liid int, role legend.PivotRole, title string) *legend.PivotItem {
	return &legend.PivotItem{
		PivotItemID:   piid,
		LegendItemIDs: []int{liid},
		RoleSpec:      &legend.DimensionPivotRoleSpec{R: role},
		Title:         title,
		ItemType:      legend.PivotStreamItem,
	}
}

func measure(piid, liid int, title string) *legend.PivotItem {
	return &legend.PivotItem{
		PivotItemID:   piid,
		LegendItemIDs: []int{liid},
		RoleSpec:      &legend.MeasurePivotRoleSpec{},
		Title:         title,
		ItemType:      legend.PivotStreamItem,
	}
}

func salesLegend() *legend.PivotLegend {
	return legend.NewPivotLegend(
		dim(piidCategory, liidCategory, legend.PivotColumn, "Category"),
		dim(piidCity, liidCity, legend.PivotRow, "City"),
		measure(piidSales, liidSales, "Sales"),
	)
}

func cell(v interface{}, liid, piid int) DataCell {
	return DataCell{Value: v, LegendItemID: liid, PivotItemID: piid}
}

func rowNames(df *DataFrame) []string {
	out := make([]string, len(df.Rows))
	for i, r := range df.Rows {
		out[i] = r.Header.Strings()[0]
	}
	return out
}

func TestPivotSingleMeasure(t *testing.T) {
	df, err := Transform(salesStream(), salesLegend())
	require.NoError(t, err)

	city := func(name string) Header {
		return Header{Values: []DataCell{cell(name, liidCity, piidCity)}, Role: legend.HeaderData}
	}
	sales := func(v int64) DataCellVector {
		return DataCellVector{cell(v, liidSales, piidSales)}
	}
	want := &DataFrame{
		Columns: []Header{
			{Values: []DataCell{cell("Furniture", liidCategory, piidCategory)}, Role: legend.HeaderData},
			{Values: []DataCell{cell("Office Supplies", liidCategory, piidCategory)}, Role: legend.HeaderData},
		},
		Rows: []DataRow{
			{Header: city("Detroit"), Values: []DataCellVector{sales(100), sales(400)}},
			{Header: city("Moscow"), Values: []DataCellVector{nil, sales(300)}},
			{Header: city("San Francisco"), Values: []DataCellVector{sales(200), nil}},
		},
		RowItems:    []int{piidCity},
		ColumnItems: []int{piidCategory},
	}
	if diff := cmp.Diff(want, df); diff != "" {
		t.Errorf("pivot table mismatch (-want +got):\n%s", diff)
	}
	rows, cols := df.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
}

func TestPivotMultipleMeasures(t *testing.T) {
	s := stream([]int{liidCity, liidSales, liidProfit},
		[]interface{}{"Rome", int64(1), int64(10)},
		[]interface{}{"Oslo", int64(2), int64(20)},
	)
	pl := legend.NewPivotLegend(
		dim(piidCity, liidCity, legend.PivotRow, "City"),
		measure(piidSales, liidSales, "Sales"),
		measure(piidProfit, liidProfit, "Profit"),
	)
	_, err := Transform(s, pl)
	assert.True(t, exc.ErrPivotMeasureNameRequired.Is(err))

	pl.AddItem(&legend.PivotItem{
		PivotItemID: piidMeasureName,
		RoleSpec:    &legend.DimensionPivotRoleSpec{R: legend.PivotColumn},
		Title:       "Measure Names",
		ItemType:    legend.PivotMeasureName,
	})
	df, err := Transform(s, pl)
	require.NoError(t, err)
	require.Len(t, df.Columns, 2)
	assert.Equal(t, []string{"Sales"}, df.Columns[0].Strings())
	assert.Equal(t, []string{"Profit"}, df.Columns[1].Strings())
	assert.Equal(t, []string{"Oslo", "Rome"}, rowNames(df))
	assert.Equal(t, int64(2), df.Cell(0, 0).Main())
	assert.Equal(t, int64(20), df.Cell(0, 1).Main())
}

func TestPivotAnnotations(t *testing.T) {
	s := stream([]int{liidCity, liidSales, liidNote},
		[]interface{}{"Rome", int64(1), "low"},
	)
	pl := legend.NewPivotLegend(
		dim(piidCity, liidCity, legend.PivotRow, "City"),
		measure(piidSales, liidSales, "Sales"),
		&legend.PivotItem{
			PivotItemID:   piidNote,
			LegendItemIDs: []int{liidNote},
			RoleSpec:      &legend.AnnotationPivotRoleSpec{AnnotationType: "color", TargetLegendItemIDs: []int{liidSales}},
		},
	)
	df, err := Transform(s, pl)
	require.NoError(t, err)
	assert.Equal(t, DataCellVector{cell(int64(1), liidSales, piidSales), cell("low", liidNote, piidNote)}, df.Cell(0, 0))
}

func TestPivotTotalsGoLast(t *testing.T) {
	s := salesStream()
	// 合计行没有城市
	s.Rows = append(s.Rows, merging.MergedQueryDataRow{
		Data:          []interface{}{"Furniture", int64(300)},
		LegendItemIDs: []int{liidCategory, liidSales},
	})
	pl := salesLegend()
	pl.Items[1].RoleSpec = &legend.DimensionPivotRoleSpec{R: legend.PivotRow, Direction: legend.Desc}
	df, err := Transform(s, pl)
	require.NoError(t, err)
	assert.Equal(t, []string{"San Francisco", "Moscow", "Detroit", ""}, rowNames(df))
	assert.True(t, df.Rows[3].Header.IsTotal())
	assert.Equal(t, int64(300), df.Cell(3, 0).Main())
	assert.Nil(t, df.Cell(3, 1))
}

func TestPivotStringOrder(t *testing.T) {
	s := stream([]int{liidCity, liidSales},
		[]interface{}{"item10", int64(1)},
		[]interface{}{"item2", int64(2)},
	)
	pl := legend.NewPivotLegend(dim(piidCity, liidCity, legend.PivotRow, "City"), measure(piidSales, liidSales, "Sales"))

	df, err := Transform(s, pl)
	require.NoError(t, err)
	assert.Equal(t, []string{"item10", "item2"}, rowNames(df))

	df, err = NewTransformer(pl, WithNaturalOrder()).Transform(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"item2", "item10"}, rowNames(df))
}

func TestPivotMeasureSorting(t *testing.T) {
	pl := salesLegend()
	pl.Items[2].RoleSpec = &legend.MeasurePivotRoleSpec{Sorting: &legend.MeasureSorting{
		Column: &legend.MeasureSortingSettings{HeaderValues: []string{"Office Supplies"}, Direction: legend.Asc},
	}}
	df, err := Transform(salesStream(), pl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Moscow", "Detroit", "San Francisco"}, rowNames(df))

	pl.Items[2].RoleSpec = &legend.MeasurePivotRoleSpec{Sorting: &legend.MeasureSorting{
		Row: &legend.MeasureSortingSettings{HeaderValues: []string{"Detroit"}, Direction: legend.Desc},
	}}
	df, err = Transform(salesStream(), pl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Office Supplies"}, df.Columns[0].Strings())

	pl.Items[2].RoleSpec = &legend.MeasurePivotRoleSpec{Sorting: &legend.MeasureSorting{
		Column: &legend.MeasureSortingSettings{HeaderValues: []string{"Toys"}},
	}}
	_, err = Transform(salesStream(), pl)
	assert.True(t, exc.ErrPivotSortingNotFound.Is(err))
	assert.Equal(t, "ERR.DS_API.PIVOT.SORTING.ROW_OR_COLUMN_NOT_FOUND", exc.Code(err))
}

func TestPivotMeasureSortingAgainstMultipleMeasures(t *testing.T) {
	s := stream([]int{liidCity, liidSales, liidProfit}, []interface{}{"Rome", int64(1), int64(10)})
	sales := measure(piidSales, liidSales, "Sales")
	sales.RoleSpec = &legend.MeasurePivotRoleSpec{Sorting: &legend.MeasureSorting{
		Column: &legend.MeasureSortingSettings{HeaderValues: []string{"Sales"}},
	}}
	pl := legend.NewPivotLegend(
		dim(piidCity, liidCity, legend.PivotColumn, "City"),
		&legend.PivotItem{PivotItemID: piidMeasureName, RoleSpec: &legend.DimensionPivotRoleSpec{R: legend.PivotRow}, ItemType: legend.PivotMeasureName},
		sales,
		measure(piidProfit, liidProfit, "Profit"),
	)
	_, err := Transform(s, pl)
	assert.True(t, exc.ErrPivotSortingMeasures.Is(err))
}

func TestPaginators(t *testing.T) {
	df, err := Transform(salesStream(), salesLegend())
	require.NoError(t, err)
	assert.IsType(t, DataFramePaginator{}, NewPaginator(df))

	page, err := Paginate(df, &legend.Pagination{OffsetRows: intPtr(1), LimitRows: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Moscow"}, rowNames(page))
	assert.Len(t, df.Rows, 3)

	_, err = Paginate(df, &legend.Pagination{LimitRows: intPtr(0)})
	assert.True(t, exc.ErrPivotPagination.Is(err))
	_, err = Paginate(df, &legend.Pagination{OffsetRows: intPtr(-1)})
	assert.True(t, exc.ErrPivotPagination.Is(err))

	vertical := legend.NewPivotLegend(dim(piidCity, liidCity, legend.PivotRow, "City"), measure(piidSales, liidSales, "Sales"))
	vdf, err := Transform(salesStream(), vertical)
	require.NoError(t, err)
	assert.IsType(t, VSeriesPaginator{}, NewPaginator(vdf))
	page, err = NewPaginator(vdf).Paginate(vdf, intPtr(2), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Detroit", "Moscow"}, rowNames(page))

	horizontal := legend.NewPivotLegend(dim(piidCategory, liidCategory, legend.PivotColumn, "Category"), measure(piidSales, liidSales, "Sales"))
	hdf, err := Transform(salesStream(), horizontal)
	require.NoError(t, err)
	require.Len(t, hdf.Rows, 1)
	p := NewPaginator(hdf)
	assert.IsType(t, HSeriesPaginator{}, p)
	page, err = p.Paginate(hdf, intPtr(5), nil)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 1)
	page, err = p.Paginate(hdf, nil, intPtr(1))
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	_, err = p.Paginate(hdf, intPtr(1), nil)
	assert.True(t, exc.ErrPivotPagination.Is(err))
}

func TestPivotAppliesLegendPagination(t *testing.T) {
	pl := salesLegend()
	pl.Pagination = &legend.Pagination{LimitRows: intPtr(2)}
	df, err := NewTransformer(pl).Pivot(salesStream())
	require.NoError(t, err)
	assert.Equal(t, []string{"Detroit", "Moscow"}, rowNames(df))
}
