package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
)

const citiesYAML = `
id: cities
source_table: cities
fields:
  - id: city
    title: City
    type: string
  - id: population
    title: Population
    type: integer
    aggregation: sum
  - id: density
    title: Density
    calc_mode: formula
    formula: "[population] / [area]"
  - id: area
    title: Area
    source: area_km2
    type: float
`

func TestLoad(t *testing.T) {
	ds, err := Load(strings.NewReader(citiesYAML))
	require.NoError(t, err)
	assert.Equal(t, "cities", ds.SourceTable)

	f, err := ds.FieldByID("population")
	require.NoError(t, err)
	assert.Equal(t, formula.TypeInteger, f.DataType)
	assert.True(t, f.HasAggregation())
	assert.Equal(t, "population", f.Source)

	f, err = ds.FieldByTitle("area")
	require.NoError(t, err)
	assert.Equal(t, "area_km2", f.Source)

	f, err = ds.Lookup("Density")
	require.NoError(t, err)
	assert.Equal(t, CalcFormula, f.CalcMode)
	assert.False(t, f.HasAggregation())

	_, err = ds.FieldByID("nope")
	assert.True(t, exc.ErrFieldNotFound.Is(err))
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New("d", "t", &Field{ID: "a"}, &Field{ID: "a"})
	assert.True(t, exc.ErrInvalidRequest.Is(err))

	_, err = New("d", "t", &Field{ID: "a", TypeName: "nonsense"})
	assert.True(t, exc.ErrInvalidRequest.Is(err))
}

func TestAggregationFunctionName(t *testing.T) {
	assert.Equal(t, "countd", AggCountUnique.FunctionName())
	assert.Equal(t, "sum", AggSum.FunctionName())
	assert.Equal(t, "", AggNone.FunctionName())
}

func TestRows(t *testing.T) {
	rows := NewRows(Schema{{Name: "a"}, {Name: "b"}})
	rows.AddRow(Row{1, "x"})
	rows.AddRow(nil)
	assert.Equal(t, 1, rows.Len())

	v, ok := rows.GetColumn(0, "b")
	require.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = rows.GetColumn(0, "c")
	assert.False(t, ok)

	assert.Equal(t, []map[string]interface{}{{"a": 1, "b": "x"}}, rows.Maps())
	assert.Equal(t, Row{"x", nil}, Row{1, "x"}.Project([]int{1, 5}))
}
