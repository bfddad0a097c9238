package compeng

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	spfcast "github.com/spf13/cast"

	"github.com/rulego/dlquery/utils/cast"
)

// Func is a runtime function called from compiled expr-lang programs.
type Func func(args ...interface{}) (interface{}, error)

type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

// toNumber accepts Go numeric types only; strings are never parsed.
func toNumber(v interface{}) (number, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return number{i: spfcast.ToInt64(x)}, true
	case float32:
		return number{f: float64(x), isFloat: true}, true
	case float64:
		return number{f: x, isFloat: true}, true
	}
	return number{}, false
}

func numberValue(n number) interface{} {
	if n.isFloat {
		return n.f
	}
	return n.i
}

// isTrue reports whether v is a non-NULL true value.
func isTrue(v interface{}) bool {
	if v == nil {
		return false
	}
	if n, ok := toNumber(v); ok {
		return n.float() != 0
	}
	b, err := spfcast.ToBoolE(v)
	return err == nil && b
}

func anyNil(args []interface{}) bool {
	for _, a := range args {
		if a == nil {
			return true
		}
	}
	return false
}

func arity(name string, args []interface{}, min, max int) error {
	if len(args) < min || max >= 0 && len(args) > max {
		return fmt.Errorf("%s: unexpected number of arguments %d", name, len(args))
	}
	return nil
}

// strict wraps fn so that a NULL argument gives NULL.
func strict(fn Func) Func {
	return func(args ...interface{}) (interface{}, error) {
		if anyNil(args) {
			return nil, nil
		}
		return fn(args...)
	}
}

func arithmetic(op string) Func {
	return strict(func(args ...interface{}) (interface{}, error) {
		if err := arity(op, args, 2, 2); err != nil {
			return nil, err
		}
		a, b := args[0], args[1]
		if op == "add" {
			if sa, ok := a.(string); ok {
				return sa + cast.ToString(b), nil
			}
		}
		if ta, ok := a.(time.Time); ok {
			return dateArithmetic(op, ta, b)
		}
		na, okA := toNumber(a)
		nb, okB := toNumber(b)
		if !okA || !okB {
			return nil, fmt.Errorf("%s: non-numeric operands %T and %T", op, a, b)
		}
		if op == "div" || op == "pow" || na.isFloat || nb.isFloat {
			x, y := na.float(), nb.float()
			switch op {
			case "add":
				return x + y, nil
			case "sub":
				return x - y, nil
			case "mul":
				return x * y, nil
			case "div":
				if y == 0 {
					return nil, nil
				}
				return x / y, nil
			case "mod":
				if y == 0 {
					return nil, nil
				}
				return math.Mod(x, y), nil
			}
			return math.Pow(x, y), nil
		}
		x, y := na.i, nb.i
		switch op {
		case "add":
			return x + y, nil
		case "sub":
			return x - y, nil
		case "mul":
			return x * y, nil
		}
		if y == 0 {
			return nil, nil
		}
		return x % y, nil
	})
}

// dateArithmetic adds or subtracts days, or returns the difference of two
// dates in days.
func dateArithmetic(op string, t time.Time, v interface{}) (interface{}, error) {
	if tv, ok := v.(time.Time); ok && op == "sub" {
		return t.Sub(tv).Hours() / 24, nil
	}
	n, ok := toNumber(v)
	if !ok || op != "add" && op != "sub" {
		return nil, fmt.Errorf("%s: unsupported date operand %T", op, v)
	}
	sign := 1.0
	if op == "sub" {
		sign = -1
	}
	if !n.isFloat {
		return t.AddDate(0, 0, int(sign)*int(n.i)), nil
	}
	return t.Add(time.Duration(sign * n.f * float64(24*time.Hour))), nil
}

func comparison(op string) Func {
	return strict(func(args ...interface{}) (interface{}, error) {
		if err := arity(op, args, 2, 2); err != nil {
			return nil, err
		}
		c := cast.Compare(args[0], args[1])
		switch op {
		case "eq":
			return c == 0, nil
		case "ne":
			return c != 0, nil
		case "lt":
			return c < 0, nil
		case "lte":
			return c <= 0, nil
		case "gt":
			return c > 0, nil
		}
		return c >= 0, nil
	})
}

// and/or use three-valued logic.
func and(args ...interface{}) (interface{}, error) {
	null := false
	for _, a := range args {
		if a == nil {
			null = true
		} else if !isTrue(a) {
			return false, nil
		}
	}
	if null {
		return nil, nil
	}
	return true, nil
}

func or(args ...interface{}) (interface{}, error) {
	null := false
	for _, a := range args {
		if a == nil {
			null = true
		} else if isTrue(a) {
			return true, nil
		}
	}
	if null {
		return nil, nil
	}
	return false, nil
}

func not(args ...interface{}) (interface{}, error) {
	if err := arity("not", args, 1, 1); err != nil {
		return nil, err
	}
	if args[0] == nil {
		return nil, nil
	}
	return !isTrue(args[0]), nil
}

var likeCache sync.Map

// likePattern compiles a SQL LIKE pattern into an anchored regexp.
func likePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := likeCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	likeCache.Store(pattern, re)
	return re, nil
}

func like(args ...interface{}) (interface{}, error) {
	if err := arity("like", args, 2, 2); err != nil {
		return nil, err
	}
	re, err := likePattern(cast.ToString(args[1]))
	if err != nil {
		return nil, err
	}
	return re.MatchString(cast.ToString(args[0])), nil
}

func in(args ...interface{}) (interface{}, error) {
	if err := arity("in", args, 2, 2); err != nil {
		return nil, err
	}
	if args[0] == nil {
		return nil, nil
	}
	list, ok := args[1].([]interface{})
	if !ok {
		list = []interface{}{args[1]}
	}
	null := false
	for _, item := range list {
		if item == nil {
			null = true
			continue
		}
		if cast.Compare(args[0], item) == 0 {
			return true, nil
		}
	}
	if null {
		return nil, nil
	}
	return false, nil
}

func between(args ...interface{}) (interface{}, error) {
	if err := arity("between", args, 3, 3); err != nil {
		return nil, err
	}
	if anyNil(args) {
		return nil, nil
	}
	return cast.Compare(args[0], args[1]) >= 0 && cast.Compare(args[0], args[2]) <= 0, nil
}

// negate wraps a boolean function, NULL stays NULL.
func negate(fn Func) Func {
	return func(args ...interface{}) (interface{}, error) {
		v, err := fn(args...)
		if err != nil || v == nil {
			return v, err
		}
		return !isTrue(v), nil
	}
}

func unaryCheck(name string, check func(v interface{}) bool) Func {
	return func(args ...interface{}) (interface{}, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		return check(args[0]), nil
	}
}

func nullSafeEq(args ...interface{}) (interface{}, error) {
	if err := arity("dneq", args, 2, 2); err != nil {
		return nil, err
	}
	if args[0] == nil || args[1] == nil {
		return args[0] == nil && args[1] == nil, nil
	}
	return cast.Compare(args[0], args[1]) == 0, nil
}

// ifBlock takes condition/result pairs followed by an optional else value.
func ifBlock(args ...interface{}) (interface{}, error) {
	for i := 0; i+1 < len(args); i += 2 {
		if isTrue(args[i]) {
			return args[i+1], nil
		}
	}
	if len(args)%2 == 1 {
		return args[len(args)-1], nil
	}
	return nil, nil
}

// caseBlock takes the subject, when/then pairs and an optional else value.
func caseBlock(args ...interface{}) (interface{}, error) {
	if err := arity("case", args, 1, -1); err != nil {
		return nil, err
	}
	subject, rest := args[0], args[1:]
	for i := 0; i+1 < len(rest); i += 2 {
		if subject != nil && rest[i] != nil && cast.Compare(subject, rest[i]) == 0 {
			return rest[i+1], nil
		}
	}
	if len(rest)%2 == 1 {
		return rest[len(rest)-1], nil
	}
	return nil, nil
}

func neg(args ...interface{}) (interface{}, error) {
	if err := arity("neg", args, 1, 1); err != nil {
		return nil, err
	}
	if args[0] == nil {
		return nil, nil
	}
	n, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("neg: non-numeric operand %T", args[0])
	}
	if n.isFloat {
		return -n.f, nil
	}
	return -n.i, nil
}

func numeric(name string, fn func(n number) interface{}) Func {
	return strict(func(args ...interface{}) (interface{}, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		n, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: non-numeric argument %T", name, args[0])
		}
		return fn(n), nil
	})
}

func round(args ...interface{}) (interface{}, error) {
	if err := arity("round", args, 1, 2); err != nil {
		return nil, err
	}
	if anyNil(args) {
		return nil, nil
	}
	n, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("round: non-numeric argument %T", args[0])
	}
	if len(args) == 1 {
		if !n.isFloat {
			return n.i, nil
		}
		return math.Round(n.f), nil
	}
	scale := math.Pow(10, float64(spfcast.ToInt(args[1])))
	return math.Round(n.float()*scale) / scale, nil
}

// extremum returns NULL when any argument is NULL.
func extremum(sign int) Func {
	return strict(func(args ...interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, nil
		}
		best := args[0]
		for _, a := range args[1:] {
			if cast.Compare(a, best)*sign > 0 {
				best = a
			}
		}
		return best, nil
	})
}

func stringFunc(name string, min, max int, fn func(s string, args []interface{}) interface{}) Func {
	return strict(func(args ...interface{}) (interface{}, error) {
		if err := arity(name, args, min, max); err != nil {
			return nil, err
		}
		return fn(cast.ToString(args[0]), args[1:]), nil
	})
}

// substr uses 1-based positions.
func substr(s string, start, length int) string {
	runes := []rune(s)
	from := start - 1
	if from < 0 {
		length += from
		from = 0
	}
	if from >= len(runes) || length <= 0 {
		return ""
	}
	to := from + length
	if to > len(runes) {
		to = len(runes)
	}
	return string(runes[from:to])
}

// concat skips NULL arguments.
func concat(args ...interface{}) (interface{}, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(cast.ToString(a))
	}
	return sb.String(), nil
}

func toDate(args ...interface{}) (interface{}, error) {
	if err := arity("date", args, 1, 1); err != nil {
		return nil, err
	}
	if args[0] == nil {
		return nil, nil
	}
	t, err := cast.ToTimeE(args[0])
	if err != nil {
		return nil, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func toDatetime(args ...interface{}) (interface{}, error) {
	if err := arity("datetime", args, 1, 1); err != nil {
		return nil, err
	}
	if args[0] == nil {
		return nil, nil
	}
	return cast.ToTimeE(args[0])
}

func datePart(name string, part func(t time.Time) int) Func {
	return strict(func(args ...interface{}) (interface{}, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		t, err := cast.ToTimeE(args[0])
		if err != nil {
			return nil, err
		}
		return int64(part(t)), nil
	})
}

func conversion(name string, conv func(v interface{}) (interface{}, error)) Func {
	return strict(func(args ...interface{}) (interface{}, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		return conv(args[0])
	})
}

// nowFunc is replaced in tests.
var nowFunc = time.Now

// RuntimeFunctions returns the function table keyed by runtime name.
func RuntimeFunctions() map[string]Func {
	fns := map[string]Func{
		"add": arithmetic("add"),
		"sub": arithmetic("sub"),
		"mul": arithmetic("mul"),
		"div": arithmetic("div"),
		"mod": arithmetic("mod"),
		"pow": arithmetic("pow"),
		"neg": neg,
		"and": and,
		"or":  or,
		"not": not,
		"eq":  comparison("eq"),
		"ne":  comparison("ne"),
		"lt":  comparison("lt"),
		"lte": comparison("lte"),
		"gt":  comparison("gt"),
		"gte": comparison("gte"),

		"like":       strict(like),
		"notlike":    negate(strict(like)),
		"in":         in,
		"notin":      negate(in),
		"between":    between,
		"notbetween": negate(between),
		"isnull":     unaryCheck("isnull", func(v interface{}) bool { return v == nil }),
		"isnotnull":  unaryCheck("isnotnull", func(v interface{}) bool { return v != nil }),
		"istrue":     unaryCheck("istrue", isTrue),
		"isnottrue":  unaryCheck("isnottrue", func(v interface{}) bool { return !isTrue(v) }),
		"isfalse":    unaryCheck("isfalse", func(v interface{}) bool { return v != nil && !isTrue(v) }),
		"isnotfalse": unaryCheck("isnotfalse", func(v interface{}) bool { return v == nil || isTrue(v) }),
		"dneq":       nullSafeEq,
		"if":         ifBlock,
		"case":       caseBlock,

		"abs": numeric("abs", func(n number) interface{} {
			if n.isFloat {
				return math.Abs(n.f)
			}
			if n.i < 0 {
				return -n.i
			}
			return n.i
		}),
		"round": round,
		"floor": numeric("floor", func(n number) interface{} {
			if n.isFloat {
				return math.Floor(n.f)
			}
			return n.i
		}),
		"ceiling": numeric("ceiling", func(n number) interface{} {
			if n.isFloat {
				return math.Ceil(n.f)
			}
			return n.i
		}),
		"sqrt": numeric("sqrt", func(n number) interface{} {
			if n.float() < 0 {
				return nil
			}
			return math.Sqrt(n.float())
		}),
		"greatest": extremum(1),
		"least":    extremum(-1),

		"upper": stringFunc("upper", 1, 1, func(s string, _ []interface{}) interface{} { return strings.ToUpper(s) }),
		"lower": stringFunc("lower", 1, 1, func(s string, _ []interface{}) interface{} { return strings.ToLower(s) }),
		"len": stringFunc("len", 1, 1, func(s string, _ []interface{}) interface{} {
			return int64(utf8.RuneCountInString(s))
		}),
		"trim": stringFunc("trim", 1, 1, func(s string, _ []interface{}) interface{} { return strings.TrimSpace(s) }),
		"replace": stringFunc("replace", 3, 3, func(s string, a []interface{}) interface{} {
			return strings.ReplaceAll(s, cast.ToString(a[0]), cast.ToString(a[1]))
		}),
		"concat": concat,
		"substr": stringFunc("substr", 2, 3, func(s string, a []interface{}) interface{} {
			length := utf8.RuneCountInString(s)
			if len(a) == 2 {
				length = spfcast.ToInt(a[1])
			}
			return substr(s, spfcast.ToInt(a[0]), length)
		}),
		"left": stringFunc("left", 2, 2, func(s string, a []interface{}) interface{} {
			return substr(s, 1, spfcast.ToInt(a[0]))
		}),
		"right": stringFunc("right", 2, 2, func(s string, a []interface{}) interface{} {
			n := spfcast.ToInt(a[0])
			return substr(s, utf8.RuneCountInString(s)-n+1, n)
		}),
		"contains": stringFunc("contains", 2, 2, func(s string, a []interface{}) interface{} {
			return strings.Contains(s, cast.ToString(a[0]))
		}),
		"startswith": stringFunc("startswith", 2, 2, func(s string, a []interface{}) interface{} {
			return strings.HasPrefix(s, cast.ToString(a[0]))
		}),
		"endswith": stringFunc("endswith", 2, 2, func(s string, a []interface{}) interface{} {
			return strings.HasSuffix(s, cast.ToString(a[0]))
		}),

		"str": conversion("str", func(v interface{}) (interface{}, error) { return cast.ToString(v), nil }),
		"int": conversion("int", func(v interface{}) (interface{}, error) {
			if n, ok := toNumber(v); ok && n.isFloat {
				return int64(n.f), nil
			}
			return spfcast.ToInt64E(v)
		}),
		"float": conversion("float", func(v interface{}) (interface{}, error) {
			return spfcast.ToFloat64E(v)
		}),
		"date":     toDate,
		"datetime": toDatetime,
		"year":     datePart("year", func(t time.Time) int { return t.Year() }),
		"month":    datePart("month", func(t time.Time) int { return int(t.Month()) }),
		"day":      datePart("day", func(t time.Time) int { return t.Day() }),
		"now": func(args ...interface{}) (interface{}, error) {
			return nowFunc().UTC(), nil
		},
		"today": func(args ...interface{}) (interface{}, error) {
			t := nowFunc().UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		},
		"ifnull": func(args ...interface{}) (interface{}, error) {
			for _, a := range args {
				if a != nil {
					return a, nil
				}
			}
			return nil, nil
		},
		"zn": func(args ...interface{}) (interface{}, error) {
			if err := arity("zn", args, 1, 1); err != nil {
				return nil, err
			}
			if args[0] == nil {
				return int64(0), nil
			}
			return args[0], nil
		},
	}
	out := make(map[string]Func, len(fns))
	for name, fn := range fns {
		out["_"+name] = fn
	}
	return out
}

// ExprOptions registers the runtime functions with expr-lang.
func ExprOptions() []expr.Option {
	fns := RuntimeFunctions()
	opts := make([]expr.Option, 0, len(fns))
	for name, fn := range fns {
		fn := fn
		opts = append(opts, expr.Function(name, func(params ...any) (any, error) {
			return fn(params...)
		}))
	}
	return opts
}
