package parser

import (
	"fmt"
	"strings"
)

// Kind is the kind of a datatype
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindUint
	KindInt
	KindFloat
	KindString
	KindArray
	KindTuple
	KindStruct
	KindEnum
	KindEnumClass
	KindClass
	KindNull
	KindTclass
	KindFuncptr
	KindFunction
	KindModint
)

var kindNames = [...]string{
	KindNone:      "none",
	KindBool:      "bool",
	KindUint:      "uint",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindArray:     "array",
	KindTuple:     "tuple",
	KindStruct:    "struct",
	KindEnum:      "enum",
	KindEnumClass: "enumclass",
	KindClass:     "class",
	KindNull:      "null",
	KindTclass:    "tclass",
	KindFuncptr:   "funcptr",
	KindFunction:  "function",
	KindModint:    "modint",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Datatype is a fully bound datatype
type Datatype struct {
	Kind   Kind
	Width  uint32
	Secret bool
	// Elem is the element type of arrays and strings.
	Elem *Datatype
	// Types holds tuple elements, struct fields and funcptr parameters.
	Types    []*Datatype
	Ret      *Datatype
	Class    *Class
	Function *Function
	Modulus  *Expr
}

var (
	noneType   = &Datatype{Kind: KindNone}
	boolType   = &Datatype{Kind: KindBool, Width: 1}
	stringType = &Datatype{Kind: KindString, Elem: &Datatype{Kind: KindUint, Width: 8}}
)

func NoneType() *Datatype   { return noneType }
func BoolType() *Datatype   { return boolType }
func StringType() *Datatype { return stringType }

func UintType(width uint32) *Datatype {
	return &Datatype{Kind: KindUint, Width: width}
}

func IntType(width uint32) *Datatype {
	return &Datatype{Kind: KindInt, Width: width}
}

func FloatType(width uint32) *Datatype {
	return &Datatype{Kind: KindFloat, Width: width}
}

func ArrayType(elem *Datatype) *Datatype {
	return &Datatype{Kind: KindArray, Elem: elem}
}

func TupleType(types ...*Datatype) *Datatype {
	return &Datatype{Kind: KindTuple, Types: types}
}

func ClassType(class *Class) *Datatype {
	return &Datatype{Kind: KindClass, Class: class, Width: class.RefWidth}
}

func NullType(class *Class) *Datatype {
	return &Datatype{Kind: KindNull, Class: class, Width: class.RefWidth}
}

func FuncptrType(ret *Datatype, params ...*Datatype) *Datatype {
	return &Datatype{Kind: KindFuncptr, Ret: ret, Types: params}
}

func FunctionType(fn *Function) *Datatype {
	return &Datatype{Kind: KindFunction, Function: fn}
}

func ModintType(width uint32, modulus *Expr) *Datatype {
	return &Datatype{Kind: KindModint, Width: width, Modulus: modulus}
}

// IsInteger reports whether the datatype is a uint or an int.
func (d *Datatype) IsInteger() bool {
	return d.Kind == KindUint || d.Kind == KindInt
}

// IsBigint reports whether the datatype is an integer wider than a machine word.
func (d *Datatype) IsBigint() bool {
	return (d.IsInteger() || d.Kind == KindModint) && d.Width > WordWidth
}

// IsArray reports whether values of the datatype are runtime arrays.
func (d *Datatype) IsArray() bool {
	return d.Kind == KindArray || d.Kind == KindString || d.IsBigint()
}

// Signed reports whether the datatype is a signed integer.
func (d *Datatype) Signed() bool {
	return d.Kind == KindInt
}

// ContainsArray reports whether freeing a value of the datatype must free a runtime array.
func (d *Datatype) ContainsArray() bool {
	switch d.Kind {
	case KindArray, KindString:
		return true
	case KindUint, KindInt, KindModint:
		return d.Width > WordWidth
	case KindTuple, KindStruct:
		for _, t := range d.Types {
			if t.ContainsArray() {
				return true
			}
		}
	}
	return false
}

// PassedByReference reports whether values of the datatype travel as pointers.
func (d *Datatype) PassedByReference() bool {
	return d.Kind == KindTuple || d.Kind == KindStruct || d.ContainsArray()
}

// ArrayDepth is the nesting depth of arrays, 0 for non-arrays.
func (d *Datatype) ArrayDepth() uint32 {
	depth := uint32(0)
	for d.Kind == KindArray {
		depth++
		d = d.Elem
	}
	return depth
}

// BaseType strips every array level.
func (d *Datatype) BaseType() *Datatype {
	for d.Kind == KindArray {
		d = d.Elem
	}
	return d
}

// WithSecret returns a copy marked secret or not.
func (d *Datatype) WithSecret(secret bool) *Datatype {
	if d.Secret == secret {
		return d
	}
	c := *d
	c.Secret = secret
	return &c
}

// WithKind returns a copy with a different kind and the same width, as used by
// the signed and unsigned casts.
func (d *Datatype) WithKind(kind Kind) *Datatype {
	c := *d
	c.Kind = kind
	return &c
}

// Equal compares datatypes structurally.
func (d *Datatype) Equal(o *Datatype) bool {
	return d.String() == o.String()
}

func (d *Datatype) String() string {
	var b strings.Builder
	d.write(&b)
	return b.String()
}

func (d *Datatype) write(b *strings.Builder) {
	if d.Secret {
		b.WriteString("secret(")
		defer b.WriteString(")")
	}
	switch d.Kind {
	case KindUint:
		fmt.Fprintf(b, "u%d", d.Width)
	case KindInt:
		fmt.Fprintf(b, "i%d", d.Width)
	case KindFloat:
		fmt.Fprintf(b, "f%d", d.Width)
	case KindArray:
		b.WriteString("[")
		d.Elem.write(b)
		b.WriteString("]")
	case KindTuple:
		b.WriteString("(")
		for i, t := range d.Types {
			if i > 0 {
				b.WriteString(", ")
			}
			t.write(b)
		}
		b.WriteString(")")
	case KindStruct, KindEnum, KindEnumClass, KindFunction:
		b.WriteString(d.Function.Name)
	case KindClass:
		b.WriteString(d.Class.Name)
	case KindNull:
		fmt.Fprintf(b, "null(%s)", d.Class.Name)
	case KindFuncptr:
		b.WriteString("func(")
		for i, t := range d.Types {
			if i > 0 {
				b.WriteString(", ")
			}
			t.write(b)
		}
		b.WriteString(")")
		if d.Ret.Kind != KindNone {
			b.WriteString(" -> ")
			d.Ret.write(b)
		}
	case KindModint:
		fmt.Fprintf(b, "u%d mod %s", d.Width, d.Modulus)
	default:
		b.WriteString(d.Kind.String())
	}
}
