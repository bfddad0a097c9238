package exc

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Codes exposed to API clients must never change.
func TestStabilizedCodes(t *testing.T) {
	expected := map[string]string{
		"DoubleAggregationError":                 "ERR.DS_API.VALIDATION.AGG.DOUBLE",
		"InconsistentAggregationError":           "ERR.DS_API.FORMULA.VALIDATION.AGG.INCONSISTENT",
		"WindowFunctionWOAggregationError":       "ERR.DS_API.VALIDATION.WIN_FUNC.NO_AGG",
		"NestedWindowFunctionError":              "ERR.DS_API.VALIDATION.WIN_FUNC.NESTED",
		"WindowFunctionUnselectedDimensionError": "ERR.DS_API.FORMULA.VALIDATION.WIN_FUNC.BFB_UNSELECTED_DIMENSION",
		"LodIncompatibleDimensionsError":         "ERR.DS_API.FORMULA.VALIDATION.LOD.INCOMPATIBLE_DIMENSIONS",
		"LodInvalidTopLevelDimensionsError":      "ERR.DS_API.FORMULA.VALIDATION.LOD.INVALID_TOPLEVEL_DIMENSIONS",
		"UnsupportedFunctionForDialect":          "ERR.DS_API.FORMULA.TRANSLATION.UNSUPPORTED_FUNCTION",
		"ResultRowCountLimitExceeded":            "ERR.DS_API.ROW_COUNT_LIMIT",
		"PivotLegendItemReferenceError":          "ERR.DS_API.PIVOT.LEGEND.ITEM_REFERENCE",
		"PivotMeasureNameRequired":               "ERR.DS_API.PIVOT.MEASURE_NAME.REQUIRED",
		"EmptyQuery":                             "ERR.DS_API.EMPTY_QUERY",
		"InvalidGroupByConfiguration":            "ERR.DS_API.INVALID_GROUP_BY_CONFIGURATION",
		"NoRootBlockError":                       "ERR.DS_API.BLOCK.NO_ROOT",
		"MultipleRootBlockError":                 "ERR.DS_API.BLOCK.MULTIPLE_ROOTS",
		"UnknownFieldInFormulaError":             "ERR.DS_API.FORMULA.UNKNOWN_FIELD",
		"PlanningBudgetExceeded":                 "ERR.DS_API.PLANNING.BUDGET_EXCEEDED",
	}
	codes := StabilizedCodes()
	for name, code := range expected {
		assert.Equal(t, code, codes[name], name)
	}
}

func TestCodesAreUnique(t *testing.T) {
	seen := map[string]string{}
	for name, code := range StabilizedCodes() {
		other, dup := seen[code]
		assert.False(t, dup, "%s and %s share code %s", name, other, code)
		seen[code] = name
	}
}

func TestErrorMessageAndCode(t *testing.T) {
	err := ErrResultRowCountLimitExceeded.New(20)
	assert.Equal(t, "received too many result data rows (limit 20)", err.Error())
	assert.Equal(t, "ERR.DS_API.ROW_COUNT_LIMIT", err.Code())
	assert.Equal(t, ClassExecution, ClassOf(err))
	assert.True(t, ErrResultRowCountLimitExceeded.Is(err))
	assert.False(t, ErrEmptyQuery.Is(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrSourceQuery.Wrap(cause, "q1")
	assert.Equal(t, "query q1 failed: connection reset", err.Error())
	assert.True(t, errors.Is(err, cause))

	wrapped := pkgerrors.Wrap(err, "execute")
	assert.Equal(t, "ERR.DS_API.DB", Code(wrapped))
	assert.True(t, ErrSourceQuery.Is(wrapped))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, DefaultCode, Code(fmt.Errorf("plain")))
	assert.Equal(t, ClassInternal, ClassOf(fmt.Errorf("plain")))
	assert.Nil(t, Find(nil))
}

func TestJoinedErrors(t *testing.T) {
	err := errors.Join(ErrNestedWindowFunction.New("RSUM"), ErrDoubleAggregation.New("SUM(SUM([x]))"))
	assert.Equal(t, []string{"ERR.DS_API.VALIDATION.WIN_FUNC.NESTED", "ERR.DS_API.VALIDATION.AGG.DOUBLE"}, Codes(err))
	assert.True(t, ErrDoubleAggregation.Is(err))
}

func TestDetails(t *testing.T) {
	base := ErrFieldNotFound.New("Sales")
	withID := base.With("field_id", 7)
	_, ok := base.Detail("field_id")
	assert.False(t, ok)
	v, ok := withID.Detail("field_id")
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, `field "Sales" not found in dataset`, withID.Error())
}

func TestLookupKind(t *testing.T) {
	k, ok := LookupKind("EmptyQuery")
	require.True(t, ok)
	assert.Equal(t, ErrEmptyQuery, k)
	assert.Equal(t, []string{"ERR", "DS_API", "EMPTY_QUERY"}, SplitCode(k.Code))
	assert.Contains(t, KindNames(), "EmptyQuery")
}
