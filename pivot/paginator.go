package pivot

import (
	"fmt"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/pagination"
)

// Paginator trims the rows of a pivot table.
type Paginator interface {
	Paginate(df *DataFrame, limitRows, offsetRows *int) (*DataFrame, error)
}

// NewPaginator picks the paginator matching the shape of df: a horizontal
// series without row dimensions, a vertical series without column
// dimensions, a table otherwise.
func NewPaginator(df *DataFrame) Paginator {
	switch {
	case len(df.RowItems) == 0 && len(df.ColumnItems) > 0:
		return HSeriesPaginator{}
	case len(df.ColumnItems) == 0 && len(df.RowItems) > 0:
		return VSeriesPaginator{}
	}
	return DataFramePaginator{}
}

// Paginate applies the pagination of pl to df.
func Paginate(df *DataFrame, p *legend.Pagination) (*DataFrame, error) {
	if p == nil {
		return df, nil
	}
	return NewPaginator(df).Paginate(df, p.LimitRows, p.OffsetRows)
}

func checkPagination(limitRows, offsetRows *int, minLimit int) error {
	if offsetRows != nil && *offsetRows < 0 {
		return exc.ErrPivotPagination.New(fmt.Sprintf("offset_rows must be positive, got %d", *offsetRows))
	}
	if limitRows != nil && *limitRows < minLimit {
		return exc.ErrPivotPagination.New(fmt.Sprintf("limit_rows must be at least %d, got %d", minLimit, *limitRows))
	}
	return nil
}

func withRows(df *DataFrame, rows []DataRow) *DataFrame {
	out := *df
	out.Rows = rows
	return &out
}

// DataFramePaginator keeps rows [offset, offset+limit) of a table.
type DataFramePaginator struct{}

func (DataFramePaginator) Paginate(df *DataFrame, limitRows, offsetRows *int) (*DataFrame, error) {
	if err := checkPagination(limitRows, offsetRows, 1); err != nil {
		return nil, err
	}
	return withRows(df, pagination.Window(df.Rows, offsetRows, limitRows)), nil
}

// VSeriesPaginator pages a single-column table along its rows.
type VSeriesPaginator struct{}

func (VSeriesPaginator) Paginate(df *DataFrame, limitRows, offsetRows *int) (*DataFrame, error) {
	return DataFramePaginator{}.Paginate(df, limitRows, offsetRows)
}

// HSeriesPaginator pages a single-row table. A limit keeps the row, any
// offset removes it.
type HSeriesPaginator struct{}

func (HSeriesPaginator) Paginate(df *DataFrame, limitRows, offsetRows *int) (*DataFrame, error) {
	if err := checkPagination(limitRows, offsetRows, 2); err != nil {
		return nil, err
	}
	if offsetRows != nil && *offsetRows > 0 {
		return withRows(df, nil), nil
	}
	return df, nil
}
