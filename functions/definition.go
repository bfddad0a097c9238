package functions

import (
	"strings"

	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
)

// Kind 操作类型
type Kind int

const (
	KindScalar Kind = iota
	KindAggregate
	KindWindow
	KindLookup
	KindOperator
)

func (k Kind) String() string {
	switch k {
	case KindAggregate:
		return "aggregate"
	case KindWindow:
		return "window"
	case KindLookup:
		return "lookup"
	case KindOperator:
		return "operator"
	default:
		return "scalar"
	}
}

// Class maps the kind onto the inspector classification.
func (k Kind) Class() inspect.FunctionClass {
	switch k {
	case KindAggregate:
		return inspect.ClassAggregate
	case KindWindow:
		return inspect.ClassWindow
	case KindLookup:
		return inspect.ClassLookup
	default:
		return inspect.ClassScalar
	}
}

// TypeSet lists the types accepted by one argument, nil accepts anything.
type TypeSet []formula.DataType

var (
	AnyType  TypeSet
	Numeric  = TypeSet{formula.TypeInteger, formula.TypeFloat}
	Integer  = TypeSet{formula.TypeInteger}
	String   = TypeSet{formula.TypeString}
	Boolean  = TypeSet{formula.TypeBoolean}
	Temporal = TypeSet{formula.TypeDate, formula.TypeDatetime, formula.TypeDatetimeTZ}
	// Comparable values can be ordered.
	Comparable = TypeSet{
		formula.TypeInteger, formula.TypeFloat, formula.TypeString, formula.TypeBoolean,
		formula.TypeDate, formula.TypeDatetime, formula.TypeDatetimeTZ, formula.TypeUUID,
	}
)

func (s TypeSet) accepts(t formula.DataType) bool {
	if s == nil || t == formula.TypeNull {
		return true
	}
	for _, want := range s {
		if t.CastableTo(want) {
			return true
		}
	}
	return false
}

// ResultFunc computes the result type from argument types.
type ResultFunc func(args []formula.DataType) formula.DataType

// Returns always yields t.
func Returns(t formula.DataType) ResultFunc {
	return func([]formula.DataType) formula.DataType { return t }
}

// SameAsArg yields the non-const type of argument i.
func SameAsArg(i int) ResultFunc {
	return func(args []formula.DataType) formula.DataType {
		if i >= len(args) {
			return formula.TypeNull
		}
		return args[i].NonConst()
	}
}

// CommonOfArgs yields the common type of the given arguments, all when none given.
func CommonOfArgs(idx ...int) ResultFunc {
	return func(args []formula.DataType) formula.DataType {
		picked := args
		if len(idx) > 0 {
			picked = make([]formula.DataType, 0, len(idx))
			for _, i := range idx {
				if i < len(args) {
					picked = append(picked, args[i])
				}
			}
		}
		result := formula.TypeNull
		for _, t := range picked {
			common, ok := formula.CommonType(result, t)
			if !ok {
				return formula.TypeUnsupported
			}
			result = common
		}
		return result.NonConst()
	}
}

// Signature 函数签名。Variadic 时最后一个参数类型可以重复。
type Signature struct {
	Args     []TypeSet
	Variadic bool
	Result   ResultFunc
}

// Sig is a shorthand constructor.
func Sig(result ResultFunc, args ...TypeSet) Signature {
	return Signature{Args: args, Result: result}
}

// VarSig is a variadic Sig.
func VarSig(result ResultFunc, args ...TypeSet) Signature {
	return Signature{Args: args, Variadic: true, Result: result}
}

func (s Signature) matches(args []formula.DataType) bool {
	if s.Variadic {
		if len(s.Args) == 0 || len(args) < len(s.Args)-1 {
			return false
		}
	} else if len(args) != len(s.Args) {
		return false
	}
	for i, t := range args {
		j := i
		if j >= len(s.Args) {
			j = len(s.Args) - 1
		}
		if !s.Args[j].accepts(t) {
			return false
		}
	}
	return true
}

// Call carries rendered arguments into a translation.
type Call struct {
	Name     string
	Args     []string
	ArgTypes []formula.DataType
	// Consts holds literal argument values, nil for non-literal arguments
	Consts []interface{}
	// 窗口函数
	PartitionBy []string
	OrderBy     []string
	Dialect     dialect.DialectCombo
	Style       *Style
}

// Const returns the literal value of argument i.
func (c *Call) Const(i int) (interface{}, bool) {
	if i >= len(c.Consts) || c.Consts[i] == nil {
		return nil, false
	}
	return c.Consts[i], true
}

// TranslateFunc renders a call into dialect text.
type TranslateFunc func(c *Call) (string, error)

// Variant binds a translation to the dialects it serves.
type Variant struct {
	Dialects  dialect.DialectCombo
	Translate TranslateFunc
}

// V is a shorthand Variant constructor.
func V(dialects dialect.DialectCombo, translate TranslateFunc) Variant {
	return Variant{Dialects: dialects, Translate: translate}
}

// OperationDefinition describes one function or operator: its kind,
// accepted signatures and translation variants.
type OperationDefinition struct {
	Name        string
	Kind        Kind
	Signatures  []Signature
	Variants    []Variant
	Description string
	// UsesDefaultOrdering marks windows that need ORDER BY
	UsesDefaultOrdering bool
}

// Def creates a definition, the name is normalized to lower case.
func Def(name string, kind Kind, signatures []Signature, variants ...Variant) *OperationDefinition {
	return &OperationDefinition{
		Name:       strings.ToLower(name),
		Kind:       kind,
		Signatures: signatures,
		Variants:   variants,
	}
}

// Ordered marks the definition as requiring ordering.
func (d *OperationDefinition) Ordered() *OperationDefinition {
	d.UsesDefaultOrdering = true
	return d
}

// Describe sets the description.
func (d *OperationDefinition) Describe(text string) *OperationDefinition {
	d.Description = text
	return d
}

// Sigs is a shorthand for a signature list.
func Sigs(s ...Signature) []Signature { return s }
