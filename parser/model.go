package parser

import (
	"math/big"

	"github.com/alecthomas/participle/lexer"
)

// WordWidth is the machine word width. Integers wider than this are big
// integers backed by runtime arrays.
const WordWidth = 64

// Filepath is a source file the program was compiled from
type Filepath struct {
	Name      string
	Directory string
	Package   bool
	Parent    *Filepath
}

// Line is a source line
type Line struct {
	File *Filepath
	Num  uint32
}

// FuncKind is the kind of a function
type FuncKind int

const (
	FuncPlain FuncKind = iota
	FuncModule
	FuncPackage
	FuncConstructor
	FuncDestructor
	FuncMethod
	FuncOperator
	FuncStruct
	FuncEnum
	FuncIterator
	FuncFinal
	FuncBuiltin
)

// Builtin identifies a builtin method of a builtin type
type Builtin int

const (
	BuiltinNone Builtin = iota
	BuiltinLength
	BuiltinResize
	BuiltinAppend
	BuiltinConcat
	BuiltinReverse
	BuiltinToUintBE
	BuiltinToUintLE
	BuiltinToStringBE
	BuiltinToStringLE
	BuiltinToHex
	BuiltinFromHex
	BuiltinFind
	BuiltinRfind
	BuiltinToString
)

var builtinNames = map[string]Builtin{
	"length":     BuiltinLength,
	"resize":     BuiltinResize,
	"append":     BuiltinAppend,
	"concat":     BuiltinConcat,
	"reverse":    BuiltinReverse,
	"toUintBE":   BuiltinToUintBE,
	"toUintLE":   BuiltinToUintLE,
	"toStringBE": BuiltinToStringBE,
	"toStringLE": BuiltinToStringLE,
	"toHex":      BuiltinToHex,
	"fromHex":    BuiltinFromHex,
	"find":       BuiltinFind,
	"rfind":      BuiltinRfind,
	"toString":   BuiltinToString,
}

// LookupBuiltin returns the builtin method with the given name
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtinNames[name]
	return b, ok
}

// Function is a function, module, struct, enum or builtin method
type Function struct {
	Name     string
	Path     string
	Kind     FuncKind
	Exported bool
	Extern   bool
	Builtin  Builtin
	Class    *Class
	Block    *Block
	Line     *Line
}

// Block is a lexical scope: variables first (parameters leading), then statements
type Block struct {
	Owner      *Function
	Variables  []*Variable
	Statements []*Statement
	File       *Filepath
	Line       *Line
}

// Params returns the leading parameter variables of the block.
func (b *Block) Params() []*Variable {
	n := 0
	for n < len(b.Variables) && b.Variables[n].Kind == VarParam {
		n++
	}
	return b.Variables[:n]
}

// Lookup finds a variable by name
func (b *Block) Lookup(name string) *Variable {
	for _, v := range b.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// VarKind separates parameters from locals
type VarKind int

const (
	VarLocal VarKind = iota
	VarParam
)

// Variable is a parameter, a local, a global or an enum entry
type Variable struct {
	Name         string
	Kind         VarKind
	Const        bool
	Instantiated bool
	Generated    bool
	Type         *Datatype
	Initializer  *Expr
	EntryValue   uint32
	Block        *Block
	Line         *Line
	// ArrayVar is the per-class global array that holds this member for every object.
	ArrayVar *Variable
}

// IsLocal reports whether the variable lives in a function frame rather than in a module.
func (v *Variable) IsLocal() bool {
	if v.Kind == VarParam {
		return true
	}
	owner := v.Block.Owner
	return owner == nil || (owner.Kind != FuncModule && owner.Kind != FuncPackage)
}

// Class is a class with its tclass properties folded in
type Class struct {
	Name         string
	Path         string
	RefWidth     uint32
	RefCounted   bool
	Instantiated bool
	Members      []*Variable
	Methods      map[string]*Function
	Block        *Block
	Line         *Line
}

// Signature is a monomorphized callable
type Signature struct {
	Function        *Function
	Path            string
	Block           *Block
	Instantiated    []bool
	ReturnType      *Datatype
	CalledByFuncPtr bool
	Line            *Line
}

// ParamInstantiated reports whether parameter i is used.
func (s *Signature) ParamInstantiated(i int) bool {
	if i < 0 || i >= len(s.Instantiated) {
		return true
	}
	return s.Instantiated[i]
}

// ExprKind is the kind of an expression
type ExprKind int

const (
	ExprInteger ExprKind = iota
	ExprFloat
	ExprBool
	ExprString
	ExprIdent
	ExprArray
	ExprModint
	ExprAdd
	ExprSub
	ExprMul
	ExprDiv
	ExprMod
	ExprExp
	ExprAddTrunc
	ExprSubTrunc
	ExprMulTrunc
	ExprAnd
	ExprOr
	ExprXor
	ExprBitAnd
	ExprBitOr
	ExprBitXor
	ExprShl
	ExprShr
	ExprRotl
	ExprRotr
	ExprNot
	ExprBitNot
	ExprLt
	ExprLe
	ExprGt
	ExprGe
	ExprEqual
	ExprNotEqual
	ExprNegate
	ExprNegateTrunc
	ExprSigned
	ExprUnsigned
	ExprCast
	ExprCastTrunc
	ExprSelect
	ExprCall
	ExprIndex
	ExprSlice
	ExprSecret
	ExprReveal
	ExprAssign
	ExprAddEquals
	ExprSubEquals
	ExprMulEquals
	ExprDivEquals
	ExprModEquals
	ExprExpEquals
	ExprAddTruncEquals
	ExprSubTruncEquals
	ExprMulTruncEquals
	ExprAndEquals
	ExprOrEquals
	ExprXorEquals
	ExprBitAndEquals
	ExprBitOrEquals
	ExprBitXorEquals
	ExprShlEquals
	ExprShrEquals
	ExprRotlEquals
	ExprRotrEquals
	ExprDot
	ExprTuple
	ExprNull
	ExprNotNull
	ExprIsNull
	ExprTypeOf
	ExprArrayOf
	ExprUintType
	ExprIntType
	ExprFloatType
	ExprStringType
	ExprBoolType
	ExprFuncAddr
	ExprWidthOf
	ExprRandUint
	ExprIn
	ExprNamedParam
	ExprList
)

var opEquals = map[ExprKind]ExprKind{
	ExprAddEquals:      ExprAdd,
	ExprSubEquals:      ExprSub,
	ExprMulEquals:      ExprMul,
	ExprDivEquals:      ExprDiv,
	ExprModEquals:      ExprMod,
	ExprExpEquals:      ExprExp,
	ExprAddTruncEquals: ExprAddTrunc,
	ExprSubTruncEquals: ExprSubTrunc,
	ExprMulTruncEquals: ExprMulTrunc,
	ExprAndEquals:      ExprAnd,
	ExprOrEquals:       ExprOr,
	ExprXorEquals:      ExprXor,
	ExprBitAndEquals:   ExprBitAnd,
	ExprBitOrEquals:    ExprBitOr,
	ExprBitXorEquals:   ExprBitXor,
	ExprShlEquals:      ExprShl,
	ExprShrEquals:      ExprShr,
	ExprRotlEquals:     ExprRotl,
	ExprRotrEquals:     ExprRotr,
}

// AssignOp returns the operator of an op-assign kind like +=.
func (k ExprKind) AssignOp() (ExprKind, bool) {
	op, ok := opEquals[k]
	return op, ok
}

// IsTypeExpr reports whether the kind only denotes a type.
func (k ExprKind) IsTypeExpr() bool {
	switch k {
	case ExprTypeOf, ExprArrayOf, ExprUintType, ExprIntType, ExprFloatType, ExprStringType, ExprBoolType:
		return true
	}
	return false
}

// Expr is a bound expression
type Expr struct {
	Kind     ExprKind
	Type     *Datatype
	Children []*Expr
	Pos      lexer.Position

	Int   *big.Int
	Float float64
	Bool  bool
	Text  string
	Name  string

	Variable  *Variable
	Function  *Function
	Signature *Signature
	// Safe marks an index proven in bounds upstream.
	Safe bool
}

// Child returns the i'th sub-expression or nil.
func (e *Expr) Child(i int) *Expr {
	if i < len(e.Children) {
		return e.Children[i]
	}
	return nil
}

// IsType reports whether the expression denotes a type rather than a value.
func (e *Expr) IsType() bool {
	return e.Kind.IsTypeExpr()
}

// StmtKind is the kind of a statement
type StmtKind int

const (
	StmtIf StmtKind = iota
	StmtElseIf
	StmtElse
	StmtSwitch
	StmtTypeSwitch
	StmtCase
	StmtDefault
	StmtDo
	StmtWhile
	StmtFor
	StmtAssign
	StmtCall
	StmtPrint
	StmtThrow
	StmtReturn
	StmtRef
	StmtUnref
)

// Statement is a bound statement
type Statement struct {
	Kind            StmtKind
	Expr            *Expr
	Block           *Block
	Line            *Line
	Instantiated    bool
	Generated       bool
	FirstAssignment bool
}

// Program is the whole bound program handed to the code generator
type Program struct {
	Name       string
	Files      []*Filepath
	Root       *Block
	Classes    []*Class
	Signatures []*Signature
	Externs    []*Signature
}

// Main returns the function owning the root block.
func (p *Program) Main() *Function {
	return p.Root.Owner
}
