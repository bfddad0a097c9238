package compilation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/utils/cast"
)

// LiteralFor coerces a request value to t and wraps it in a literal node.
// Unknown types keep the Go type of the value.
func LiteralFor(v interface{}, t formula.DataType) (formula.Node, error) {
	coerced, err := cast.Coerce(v, t)
	if err != nil {
		return nil, err
	}
	if t.NonConst() == formula.TypeUUID {
		if s, ok := coerced.(string); ok {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, err
			}
			return formula.NewUUID(id), nil
		}
	}
	switch x := coerced.(type) {
	case nil:
		return formula.NewNull(), nil
	case int64:
		return formula.NewInteger(x), nil
	case int:
		return formula.NewInteger(int64(x)), nil
	case float64:
		return formula.NewFloat(x), nil
	case bool:
		return formula.NewBoolean(x), nil
	case string:
		return formula.NewString(x), nil
	case time.Time:
		if t.NonConst() == formula.TypeDate {
			return formula.NewDate(x), nil
		}
		return formula.NewDatetime(x), nil
	}
	return nil, fmt.Errorf("unsupported literal value %v (%T)", v, v)
}
