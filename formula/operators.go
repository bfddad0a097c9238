package formula

// 运算符名称
const (
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	OpMod = "%"
	OpPow = "^"

	OpAnd = "and"
	OpOr  = "or"

	OpEq      = "=="
	OpNe      = "!="
	OpLt      = "<"
	OpLte     = "<="
	OpGt      = ">"
	OpGte     = ">="
	OpLike    = "like"
	OpNotLike = "notlike"
	OpIn      = "in"
	OpNotIn   = "notin"

	OpNot        = "not"
	OpNeg        = "neg"
	OpIsNull     = "isnull"
	OpIsNotNull  = "isnotnull"
	OpIsTrue     = "istrue"
	OpIsNotTrue  = "isnottrue"
	OpIsFalse    = "isfalse"
	OpIsNotFalse = "isnotfalse"

	OpBetween    = "between"
	OpNotBetween = "notbetween"
)

// 运算符优先级，数值越大结合越紧
const (
	precOr = iota + 1
	precAnd
	precNot
	precComparison
	precAdditive
	precMultiplicative
	precUnary
	precPower
	precPrimary
)

var binaryPrecedence = map[string]int{
	OpOr:      precOr,
	OpAnd:     precAnd,
	OpEq:      precComparison,
	OpNe:      precComparison,
	OpLt:      precComparison,
	OpLte:     precComparison,
	OpGt:      precComparison,
	OpGte:     precComparison,
	OpLike:    precComparison,
	OpNotLike: precComparison,
	OpIn:      precComparison,
	OpNotIn:   precComparison,
	OpAdd:     precAdditive,
	OpSub:     precAdditive,
	OpMul:     precMultiplicative,
	OpDiv:     precMultiplicative,
	OpMod:     precMultiplicative,
	OpPow:     precPower,
}

// IsComparisonOp reports whether op yields a boolean from two comparable operands.
func IsComparisonOp(op string) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// InvertComparison returns the negated comparison, e.g. < for >=.
func InvertComparison(op string) (string, bool) {
	switch op {
	case OpEq:
		return OpNe, true
	case OpNe:
		return OpEq, true
	case OpLt:
		return OpGte, true
	case OpLte:
		return OpGt, true
	case OpGt:
		return OpLte, true
	case OpGte:
		return OpLt, true
	case OpLike:
		return OpNotLike, true
	case OpNotLike:
		return OpLike, true
	case OpIn:
		return OpNotIn, true
	case OpNotIn:
		return OpIn, true
	}
	return "", false
}

// WindowOnlyFunctions are always parsed as window calls
var WindowOnlyFunctions = map[string]bool{
	"rsum":            true,
	"rcount":          true,
	"rmin":            true,
	"rmax":            true,
	"ravg":            true,
	"msum":            true,
	"mcount":          true,
	"mmin":            true,
	"mmax":            true,
	"mavg":            true,
	"rank":            true,
	"rank_dense":      true,
	"rank_unique":     true,
	"rank_percentile": true,
	"lag":             true,
	"first":           true,
	"last":            true,
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "like": true, "between": true,
	"is": true, "null": true, "true": true, "false": true,
	"if": true, "then": true, "elseif": true, "else": true, "end": true,
	"case": true, "when": true,
	"total": true, "within": true, "among": true, "order": true, "by": true,
	"asc": true, "desc": true, "before": true, "filter": true,
	"fixed": true, "include": true, "exclude": true, "ignore": true, "dimensions": true,
}

var clauseKeywords = map[string]bool{
	"total": true, "within": true, "among": true, "order": true,
	"before": true, "fixed": true, "include": true, "exclude": true, "ignore": true,
}
