package compeng

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	compengdialect "github.com/rulego/dlquery/connectors/compeng"
	"github.com/rulego/dlquery/functions"
)

func call(t *testing.T, name string, args ...interface{}) interface{} {
	t.Helper()
	fn, ok := RuntimeFunctions()[name]
	require.True(t, ok, name)
	v, err := fn(args...)
	require.NoError(t, err)
	return v
}

func TestRuntimeCoversDialect(t *testing.T) {
	fns := RuntimeFunctions()
	for op, name := range compengdialect.RuntimeOperators() {
		assert.Contains(t, fns, name, "operator %s", op)
	}
	for _, def := range functions.ScalarDefinitions() {
		assert.Contains(t, fns, compengdialect.FunctionName(def.Name))
	}
	assert.Contains(t, fns, "_date")
	assert.Contains(t, fns, "_datetime")
}

func TestRuntimeArithmetic(t *testing.T) {
	assert.Equal(t, int64(3), call(t, "_add", int64(1), 2))
	assert.Equal(t, 1.5, call(t, "_div", int64(3), int64(2)))
	assert.Nil(t, call(t, "_div", 1, 0))
	assert.Nil(t, call(t, "_mod", int64(5), int64(0)))
	assert.Equal(t, int64(1), call(t, "_mod", int64(5), int64(2)))
	assert.Equal(t, 8.0, call(t, "_pow", 2, 3))
	assert.Equal(t, "ab", call(t, "_add", "a", "b"))
	assert.Nil(t, call(t, "_add", nil, 1))
	assert.Equal(t, int64(-4), call(t, "_neg", int64(4)))

	day := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), call(t, "_add", day, 2))
	assert.Equal(t, 30.0, call(t, "_sub", day, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err := RuntimeFunctions()["_mul"]("a", 2)
	assert.Error(t, err)
}

func TestRuntimeThreeValuedLogic(t *testing.T) {
	assert.Equal(t, false, call(t, "_and", nil, false))
	assert.Nil(t, call(t, "_and", nil, true))
	assert.Equal(t, true, call(t, "_or", nil, true))
	assert.Nil(t, call(t, "_or", nil, false))
	assert.Nil(t, call(t, "_not", nil))
	assert.Nil(t, call(t, "_eq", nil, 1))
	assert.Equal(t, true, call(t, "_dneq", nil, nil))
	assert.Equal(t, false, call(t, "_dneq", nil, 1))
	assert.Equal(t, true, call(t, "_dneq", int64(1), 1))

	assert.Equal(t, true, call(t, "_in", int64(2), []interface{}{1, 2}))
	assert.Nil(t, call(t, "_in", int64(3), []interface{}{1, nil}))
	assert.Nil(t, call(t, "_notin", int64(3), []interface{}{1, nil}))
	assert.Equal(t, true, call(t, "_notin", int64(3), []interface{}{1, 2}))
	assert.Nil(t, call(t, "_in", nil, []interface{}{1}))

	assert.Equal(t, true, call(t, "_between", 5, 1, 10))
	assert.Equal(t, false, call(t, "_notbetween", 5, 1, 10))
	assert.Equal(t, true, call(t, "_isnotfalse", nil))
	assert.Equal(t, false, call(t, "_isfalse", nil))
	assert.Equal(t, true, call(t, "_isnottrue", nil))
}

func TestRuntimeBlocks(t *testing.T) {
	assert.Equal(t, "b", call(t, "_if", false, "a", true, "b", "c"))
	assert.Equal(t, "c", call(t, "_if", nil, "a", "c"))
	assert.Nil(t, call(t, "_if", false, "a"))
	assert.Equal(t, "two", call(t, "_case", int64(2), 1, "one", 2, "two", "other"))
	assert.Equal(t, "other", call(t, "_case", nil, 1, "one", "other"))
}

func TestRuntimeStrings(t *testing.T) {
	assert.Equal(t, true, call(t, "_like", "hello", "h%o"))
	assert.Equal(t, false, call(t, "_like", "hello", "h_o"))
	assert.Equal(t, true, call(t, "_like", "a.c", "a.c"))
	assert.Equal(t, false, call(t, "_like", "abc", "a.c"))
	assert.Equal(t, true, call(t, "_notlike", "abc", "x%"))
	assert.Nil(t, call(t, "_like", nil, "x%"))

	assert.Equal(t, "ell", call(t, "_substr", "hello", 2, 3))
	assert.Equal(t, "llo", call(t, "_substr", "hello", 3))
	assert.Equal(t, "he", call(t, "_left", "hello", 2))
	assert.Equal(t, "lo", call(t, "_right", "hello", 2))
	assert.Equal(t, int64(5), call(t, "_len", "héllo"))
	assert.Equal(t, "ab", call(t, "_concat", "a", nil, "b"))
	assert.Equal(t, true, call(t, "_contains", "hello", "ll"))
	assert.Equal(t, "HI", call(t, "_upper", "hi"))
}

func TestRuntimeConversions(t *testing.T) {
	assert.Equal(t, int64(3), call(t, "_int", 3.7))
	assert.Equal(t, int64(12), call(t, "_int", "12"))
	assert.Equal(t, 2.0, call(t, "_float", int64(2)))
	assert.Equal(t, "1.5", call(t, "_str", 1.5))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), call(t, "_date", "2024-03-05 10:11:12"))
	assert.Equal(t, int64(3), call(t, "_month", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(0), call(t, "_zn", nil))
	assert.Equal(t, "x", call(t, "_ifnull", nil, "x"))
	assert.Nil(t, call(t, "_greatest", 1, nil))
	assert.Equal(t, 3, call(t, "_greatest", 1, 3, 2))
	assert.Equal(t, 2.35, call(t, "_round", 2.346, 2))
	assert.Equal(t, int64(2), call(t, "_floor", int64(2)))

	saved := nowFunc
	defer func() { nowFunc = saved }()
	nowFunc = func() time.Time { return time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC) }
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), call(t, "_today"))
}
