package parser

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// scope binds names inside one function
type scope struct {
	r     *reader
	fn    *Function
	block *Block
}

var (
	intLiteral   = regexp.MustCompile(`^(-?)(0x[0-9a-fA-F]+|[0-9]+)([ui][0-9]+)?$`)
	floatLiteral = regexp.MustCompile(`^-?[0-9]+(\.[0-9]*)?([eE][-+]?[0-9]+)?(f32|f64)?$`)
)

var binaryOps = map[string]ExprKind{
	"add":      ExprAdd,
	"sub":      ExprSub,
	"mul":      ExprMul,
	"div":      ExprDiv,
	"mod":      ExprMod,
	"exp":      ExprExp,
	"addtrunc": ExprAddTrunc,
	"subtrunc": ExprSubTrunc,
	"multrunc": ExprMulTrunc,
	"xor":      ExprXor,
	"bitand":   ExprBitAnd,
	"bitor":    ExprBitOr,
	"bitxor":   ExprBitXor,
	"shl":      ExprShl,
	"shr":      ExprShr,
	"rotl":     ExprRotl,
	"rotr":     ExprRotr,
}

var compareOps = map[string]ExprKind{
	"lt": ExprLt,
	"le": ExprLe,
	"gt": ExprGt,
	"ge": ExprGe,
	"eq": ExprEqual,
	"ne": ExprNotEqual,
}

var assignOps = map[string]ExprKind{
	"=":    ExprAssign,
	"+=":   ExprAddEquals,
	"-=":   ExprSubEquals,
	"*=":   ExprMulEquals,
	"/=":   ExprDivEquals,
	"%=":   ExprModEquals,
	"**=":  ExprExpEquals,
	"!+=":  ExprAddTruncEquals,
	"!-=":  ExprSubTruncEquals,
	"!*=":  ExprMulTruncEquals,
	"&&=":  ExprAndEquals,
	"||=":  ExprOrEquals,
	"^^=":  ExprXorEquals,
	"&=":   ExprBitAndEquals,
	"|=":   ExprBitOrEquals,
	"^=":   ExprBitXorEquals,
	"<<=":  ExprShlEquals,
	">>=":  ExprShrEquals,
	"<<<=": ExprRotlEquals,
	">>>=": ExprRotrEquals,
}

var unaryOps = map[string]ExprKind{
	"not":      ExprNot,
	"bitnot":   ExprBitNot,
	"neg":      ExprNegate,
	"negtrunc": ExprNegateTrunc,
}

// opNames maps an operator kind back to its listing name, used to find overloads.
var opNames = map[ExprKind]string{}

func init() {
	for _, m := range []map[string]ExprKind{binaryOps, compareOps, unaryOps} {
		for name, kind := range m {
			opNames[kind] = name
		}
	}
	opNames[ExprAnd] = "and"
	opNames[ExprOr] = "or"
	opNames[ExprIn] = "in"
}

func (sc *scope) expr(n *Node) *Expr {
	e := sc.bind(n)
	e.Pos = n.Pos
	return e
}

func (sc *scope) bind(n *Node) *Expr {
	if n.Str != nil {
		return &Expr{Kind: ExprString, Text: unquote(n), Type: StringType()}
	}
	if n.Atom != nil {
		return sc.atom(n, *n.Atom)
	}
	head := n.Head()
	args := n.Args()
	if kind, ok := binaryOps[head]; ok {
		sc.arity(n, 2)
		return sc.binary(kind, sc.expr(args[0]), sc.expr(args[1]))
	}
	if kind, ok := compareOps[head]; ok {
		sc.arity(n, 2)
		e := sc.binary(kind, sc.expr(args[0]), sc.expr(args[1]))
		if e.Signature == nil {
			e.Type = BoolType().WithSecret(e.Children[0].Type.Secret || e.Children[1].Type.Secret)
		}
		return e
	}
	if kind, ok := assignOps[head]; ok {
		sc.arity(n, 2)
		left, right := sc.expr(args[0]), sc.expr(args[1])
		if kind == ExprShlEquals || kind == ExprShrEquals || kind == ExprRotlEquals || kind == ExprRotrEquals {
			sc.adopt(right, UintType(32))
		} else {
			sc.adopt(right, left.Type)
		}
		e := &Expr{Kind: kind, Type: left.Type, Children: []*Expr{left, right}}
		if op, ok := kind.AssignOp(); ok {
			e.Signature = sc.overload(op, left, right)
		}
		return e
	}
	if kind, ok := unaryOps[head]; ok {
		sc.arity(n, 1)
		child := sc.expr(args[0])
		e := &Expr{Kind: kind, Type: child.Type, Children: []*Expr{child}}
		if kind == ExprNot && child.Type.Kind == KindBool {
			return e
		}
		if sig := sc.overload(kind, child); sig != nil {
			e.Signature, e.Type = sig, sig.ReturnType
		}
		return e
	}
	switch head {
	case "and", "or":
		sc.arity(n, 2)
		kind := ExprAnd
		if head == "or" {
			kind = ExprOr
		}
		left, right := sc.expr(args[0]), sc.expr(args[1])
		e := &Expr{Kind: kind, Children: []*Expr{left, right}}
		e.Type = BoolType().WithSecret(left.Type.Secret || right.Type.Secret)
		if sig := sc.overload(kind, left, right); sig != nil {
			e.Signature, e.Type = sig, sig.ReturnType
		}
		return e
	case "in":
		sc.arity(n, 2)
		left, right := sc.expr(args[0]), sc.expr(args[1])
		e := &Expr{Kind: ExprIn, Children: []*Expr{left, right}, Type: BoolType()}
		e.Signature = sc.overload(ExprIn, left, right)
		if e.Signature == nil {
			fail(n, "no operator in for %s and %s", left.Type, right.Type)
		}
		e.Type = e.Signature.ReturnType
		return e
	case "signed", "unsigned":
		sc.arity(n, 1)
		child := sc.expr(args[0])
		if !child.Type.IsInteger() {
			fail(n, "%s needs an integer", head)
		}
		if head == "signed" {
			return &Expr{Kind: ExprSigned, Type: child.Type.WithKind(KindInt), Children: []*Expr{child}}
		}
		return &Expr{Kind: ExprUnsigned, Type: child.Type.WithKind(KindUint), Children: []*Expr{child}}
	case "cast", "casttrunc":
		sc.arity(n, 2)
		t := sc.typeExpr(args[0])
		value := sc.expr(args[1])
		kind := ExprCast
		if head == "casttrunc" {
			kind = ExprCastTrunc
		}
		if t.Type.IsInteger() {
			sc.adopt(value, t.Type)
		}
		return &Expr{Kind: kind, Type: t.Type, Children: []*Expr{t, value}}
	case "select":
		sc.arity(n, 3)
		cond, a, b := sc.expr(args[0]), sc.expr(args[1]), sc.expr(args[2])
		sc.pair(a, b)
		return &Expr{Kind: ExprSelect, Type: a.Type, Children: []*Expr{cond, a, b}}
	case "call":
		if len(args) == 0 {
			fail(n, "call needs a callee")
		}
		return sc.call(n, sc.expr(args[0]), args[1:])
	case "index":
		sc.arity(n, 2)
		return sc.index(n, sc.expr(args[0]), sc.expr(args[1]))
	case "slice":
		sc.arity(n, 3)
		a, lo, hi := sc.expr(args[0]), sc.expr(args[1]), sc.expr(args[2])
		sc.adopt(lo, UintType(64))
		sc.adopt(hi, UintType(64))
		if !a.Type.IsArray() {
			fail(n, "cannot slice %s", a.Type)
		}
		return &Expr{Kind: ExprSlice, Type: a.Type, Children: []*Expr{a, lo, hi}}
	case "secret", "reveal":
		sc.arity(n, 1)
		child := sc.expr(args[0])
		if head == "secret" {
			return &Expr{Kind: ExprSecret, Type: child.Type.WithSecret(true), Children: []*Expr{child}}
		}
		return &Expr{Kind: ExprReveal, Type: child.Type.WithSecret(false), Children: []*Expr{child}}
	case "dot":
		sc.arity(n, 2)
		if args[1].Atom == nil {
			fail(n, "dot takes an expression and a name")
		}
		return sc.dot(n, sc.expr(args[0]), *args[1].Atom)
	case "tuple":
		e := &Expr{Kind: ExprTuple}
		var types []*Datatype
		for _, a := range args {
			child := sc.expr(a)
			e.Children = append(e.Children, child)
			types = append(types, child.Type)
		}
		e.Type = TupleType(types...)
		return e
	case "array":
		if len(args) == 0 {
			fail(n, "array literal needs an element")
		}
		e := &Expr{Kind: ExprArray}
		for _, a := range args {
			e.Children = append(e.Children, sc.expr(a))
		}
		elem := e.Children[0].Type
		for _, c := range e.Children {
			if !sc.r.untyped[c] {
				elem = c.Type
				break
			}
		}
		for _, c := range e.Children {
			sc.adopt(c, elem)
		}
		e.Type = ArrayType(elem)
		return e
	case "null":
		sc.arity(n, 1)
		t := sc.r.datatype(classForm(args[0]), sc)
		return &Expr{Kind: ExprNull, Type: NullType(t.Class)}
	case "notnull":
		sc.arity(n, 1)
		child := sc.expr(args[0])
		t := child.Type
		if t.Kind == KindNull {
			t = ClassType(t.Class)
		}
		return &Expr{Kind: ExprNotNull, Type: t, Children: []*Expr{child}}
	case "isnull":
		sc.arity(n, 1)
		child := sc.expr(args[0])
		return &Expr{Kind: ExprIsNull, Type: BoolType(), Children: []*Expr{child}}
	case "typeof":
		sc.arity(n, 1)
		child := sc.expr(args[0])
		return &Expr{Kind: ExprTypeOf, Type: child.Type, Children: []*Expr{child}}
	case "arrayof":
		sc.arity(n, 1)
		t := sc.typeExpr(args[0])
		return &Expr{Kind: ExprArrayOf, Type: ArrayType(t.Type), Children: []*Expr{t}}
	case "widthof":
		sc.arity(n, 1)
		child := sc.typeOrValue(args[0])
		return &Expr{Kind: ExprWidthOf, Type: UintType(32), Children: []*Expr{child}}
	case "randuint":
		sc.arity(n, 1)
		t := sc.r.datatype(args[0], sc)
		if t.Kind != KindUint {
			fail(n, "randuint needs a uint type")
		}
		return &Expr{Kind: ExprRandUint, Type: t}
	case "funcaddr":
		sc.arity(n, 1)
		child := sc.expr(args[0])
		if child.Function == nil {
			fail(n, "funcaddr needs a function")
		}
		sig := sc.r.sigs[child.Function]
		if sig == nil {
			fail(n, "%s has no signature", child.Function.Name)
		}
		var params []*Datatype
		for i, v := range sig.Block.Params() {
			if sig.ParamInstantiated(i) {
				params = append(params, v.Type)
			}
		}
		return &Expr{Kind: ExprFuncAddr, Type: FuncptrType(sig.ReturnType, params...),
			Children: []*Expr{child}, Signature: sig}
	case "modint":
		sc.arity(n, 2)
		value, modulus := sc.expr(args[0]), sc.expr(args[1])
		sc.adopt(modulus, UintType(64))
		sc.adopt(value, modulus.Type)
		t := modulus.Type.WithSecret(value.Type.Secret || modulus.Type.Secret)
		return &Expr{Kind: ExprModint, Type: t, Children: []*Expr{value, modulus}}
	case "named":
		sc.arity(n, 2)
		if args[0].Atom == nil {
			fail(n, "named takes a parameter name")
		}
		value := sc.expr(args[1])
		name := &Expr{Kind: ExprIdent, Name: *args[0].Atom, Type: value.Type, Pos: args[0].Pos}
		return &Expr{Kind: ExprNamedParam, Name: name.Name, Type: value.Type, Children: []*Expr{name, value}}
	case "the":
		sc.arity(n, 2)
		t := sc.r.datatype(args[0], sc)
		e := sc.expr(args[1])
		if !sc.adopt(e, t) {
			e.Type = t
		}
		return e
	}
	fail(n, "unknown expression form %q", head)
	return nil
}

func classForm(n *Node) *Node {
	if n.Atom == nil {
		return n
	}
	return &Node{Pos: n.Pos, List: &List{Items: []*Node{{Pos: n.Pos, Atom: strPtr("class")}, n}}}
}

func strPtr(s string) *string { return &s }

func (sc *scope) arity(n *Node, count int) {
	if len(n.Args()) != count {
		fail(n, "%s takes %d operands", n.Head(), count)
	}
}

func (sc *scope) atom(n *Node, s string) *Expr {
	switch s {
	case "true", "false":
		return &Expr{Kind: ExprBool, Bool: s == "true", Type: BoolType()}
	}
	if m := intLiteral.FindStringSubmatch(s); m != nil {
		digits := m[2]
		base := 10
		if strings.HasPrefix(digits, "0x") {
			digits, base = digits[2:], 16
		}
		v, ok := new(big.Int).SetString(digits, base)
		if !ok {
			fail(n, "bad integer %q", s)
		}
		if m[1] == "-" {
			v.Neg(v)
		}
		e := &Expr{Kind: ExprInteger, Int: v}
		if m[3] != "" {
			e.Type, _ = parseIntType(m[3])
		} else {
			e.Type = UintType(64)
			if v.Sign() < 0 {
				e.Type = IntType(64)
			}
			sc.r.untyped[e] = true
		}
		return e
	}
	if floatLiteral.MatchString(s) {
		width := uint32(64)
		text := s
		if strings.HasSuffix(s, "f32") || strings.HasSuffix(s, "f64") {
			if strings.HasSuffix(s, "f32") {
				width = 32
			}
			text = s[:len(s)-3]
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			fail(n, "bad float %q", s)
		}
		return &Expr{Kind: ExprFloat, Float: v, Type: FloatType(width)}
	}
	if t, ok := parseIntType(s); ok {
		kind := ExprUintType
		if t.Kind == KindInt {
			kind = ExprIntType
		}
		return &Expr{Kind: kind, Type: t}
	}
	switch s {
	case "f32", "f64":
		return &Expr{Kind: ExprFloatType, Type: scalarTypes[s]}
	case "string":
		return &Expr{Kind: ExprStringType, Type: StringType()}
	case "bool":
		return &Expr{Kind: ExprBoolType, Type: BoolType()}
	}
	return sc.ident(n, s)
}

func (sc *scope) ident(n *Node, name string) *Expr {
	r := sc.r
	for _, b := range []*Block{sc.block, r.prog.Root} {
		if v := b.Lookup(name); v != nil {
			return &Expr{Kind: ExprIdent, Name: name, Variable: v, Type: v.Type}
		}
	}
	if fn := r.funcs[name]; fn != nil {
		return &Expr{Kind: ExprIdent, Name: name, Function: fn, Type: FunctionType(fn)}
	}
	if fn := r.structs[name]; fn != nil {
		return &Expr{Kind: ExprIdent, Name: name, Function: fn, Type: FunctionType(fn)}
	}
	if fn := r.enums[name]; fn != nil {
		return &Expr{Kind: ExprIdent, Name: name, Function: fn, Type: &Datatype{Kind: KindEnumClass, Function: fn}}
	}
	fail(n, "undefined identifier %q", name)
	return nil
}

// typeExpr reads a type in expression position.
func (sc *scope) typeExpr(n *Node) *Expr {
	t := sc.r.datatype(n, sc)
	kind := ExprTypeOf
	switch t.Kind {
	case KindUint:
		kind = ExprUintType
	case KindInt:
		kind = ExprIntType
	case KindFloat:
		kind = ExprFloatType
	case KindString:
		kind = ExprStringType
	case KindBool:
		kind = ExprBoolType
	case KindArray:
		kind = ExprArrayOf
	}
	return &Expr{Kind: kind, Type: t, Pos: n.Pos}
}

func (sc *scope) typeOrValue(n *Node) *Expr {
	if n.Atom != nil {
		if _, ok := parseIntType(*n.Atom); ok {
			return sc.typeExpr(n)
		}
	}
	return sc.expr(n)
}

// adopt gives an unsuffixed integer literal the datatype its context expects.
func (sc *scope) adopt(e *Expr, t *Datatype) bool {
	if !sc.r.untyped[e] {
		if e.Kind == ExprNegate && len(e.Children) == 1 && sc.adopt(e.Children[0], t) {
			e.Type = e.Children[0].Type
			return true
		}
		return false
	}
	switch t.Kind {
	case KindUint, KindInt:
		e.Type = t
	case KindModint:
		e.Type = UintType(t.Width).WithSecret(t.Secret)
	default:
		return false
	}
	delete(sc.r.untyped, e)
	return true
}

// pair makes an untyped literal on either side take the other side's datatype.
func (sc *scope) pair(a, b *Expr) {
	if !sc.adopt(a, b.Type) {
		sc.adopt(b, a.Type)
	}
}

func (sc *scope) binary(kind ExprKind, left, right *Expr) *Expr {
	switch kind {
	case ExprShl, ExprShr, ExprRotl, ExprRotr, ExprExp:
		sc.adopt(right, UintType(32))
	default:
		sc.pair(left, right)
	}
	e := &Expr{Kind: kind, Type: left.Type, Children: []*Expr{left, right}}
	if kind == ExprXor && left.Type.Kind == KindBool {
		e.Type = BoolType().WithSecret(left.Type.Secret || right.Type.Secret)
	}
	if sig := sc.overload(kind, left, right); sig != nil {
		e.Signature, e.Type = sig, sig.ReturnType
	}
	return e
}

// overload finds an operator function whose parameters match the operands.
func (sc *scope) overload(kind ExprKind, operands ...*Expr) *Signature {
	name, ok := opNames[kind]
	if !ok {
		return nil
	}
next:
	for _, sig := range sc.r.operators[name] {
		params := sig.Block.Params()
		if len(params) != len(operands) {
			continue
		}
		for i, p := range params {
			if !p.Type.WithSecret(false).Equal(operands[i].Type.WithSecret(false)) {
				continue next
			}
		}
		return sig
	}
	return nil
}

func (sc *scope) index(n *Node, a, i *Expr) *Expr {
	e := &Expr{Kind: ExprIndex, Children: []*Expr{a, i}}
	switch a.Type.Kind {
	case KindArray:
		sc.adopt(i, UintType(64))
		e.Type = a.Type.Elem
	case KindString:
		sc.adopt(i, UintType(64))
		e.Type = UintType(8).WithSecret(a.Type.Secret)
	case KindTuple, KindStruct:
		if i.Kind != ExprInteger || !i.Int.IsUint64() || i.Int.Uint64() >= uint64(len(a.Type.Types)) {
			fail(n, "tuple index must be a constant in range")
		}
		sc.adopt(i, UintType(64))
		e.Type = a.Type.Types[i.Int.Uint64()]
	default:
		fail(n, "cannot index %s", a.Type)
	}
	return e
}

func (sc *scope) builtin(b Builtin, name string) *Function {
	fn := sc.r.builtins[b]
	if fn == nil {
		fn = &Function{Name: name, Path: name, Kind: FuncBuiltin, Builtin: b}
		sc.r.builtins[b] = fn
	}
	return fn
}

func (sc *scope) dot(n *Node, left *Expr, name string) *Expr {
	e := &Expr{Kind: ExprDot, Name: name}
	var right *Expr
	t := left.Type
	switch t.Kind {
	case KindClass, KindNull:
		for _, m := range t.Class.Members {
			if m.Name == name {
				right = &Expr{Kind: ExprIdent, Name: name, Variable: m, Type: m.Type}
			}
		}
		if m := t.Class.Methods[name]; right == nil && m != nil {
			right = &Expr{Kind: ExprIdent, Name: name, Function: m, Type: FunctionType(m)}
		}
	case KindStruct:
		for i, v := range t.Function.Block.Params() {
			if v.Name == name {
				right = &Expr{Kind: ExprIdent, Name: name, Variable: v, Type: t.Types[i]}
			}
		}
	case KindEnumClass:
		if v := t.Function.Block.Lookup(name); v != nil {
			right = &Expr{Kind: ExprIdent, Name: name, Variable: v, Type: v.Type}
		}
	case KindBool, KindString, KindUint, KindInt, KindModint, KindFloat, KindArray, KindTuple, KindEnum:
		if b, ok := LookupBuiltin(name); ok {
			fn := sc.builtin(b, name)
			right = &Expr{Kind: ExprIdent, Name: name, Function: fn, Type: FunctionType(fn)}
		}
	}
	if right == nil {
		fail(n, "%s has no member %q", t, name)
	}
	right.Pos = n.Pos
	e.Children = []*Expr{left, right}
	e.Type = right.Type
	return e
}

// IsMethodCall reports whether the callee passes its receiver as the first argument.
func (e *Expr) IsMethodCall() bool {
	if e.Kind != ExprDot {
		return false
	}
	fn := e.Children[1].Function
	return fn != nil && (fn.Kind == FuncMethod || fn.Kind == FuncBuiltin || fn.Kind == FuncFinal ||
		fn.Kind == FuncDestructor)
}

func (sc *scope) call(n *Node, callee *Expr, argNodes []*Node) *Expr {
	e := &Expr{Kind: ExprCall, Children: []*Expr{callee}}
	var args []*Expr
	for _, a := range argNodes {
		args = append(args, sc.expr(a))
	}
	e.Children = append(e.Children, args...)
	t := callee.Type
	switch t.Kind {
	case KindFuncptr:
		for i, a := range args {
			if i < len(t.Types) {
				sc.adopt(a, t.Types[i])
			}
		}
		e.Type = t.Ret
		return e
	case KindFunction:
	default:
		fail(n, "cannot call %s", t)
	}
	fn := t.Function
	switch fn.Kind {
	case FuncBuiltin:
		e.Type = sc.builtinType(n, fn.Builtin, callee.Children[0], args)
		return e
	case FuncStruct:
		e.Type = structType(fn)
		sc.adoptParams(fn.Block.Params(), args)
		return e
	case FuncEnum, FuncModule, FuncPackage:
		fail(n, "cannot call %s", fn.Name)
	}
	sig := sc.r.sigs[fn]
	if sig == nil {
		fail(n, "%s has no signature", fn.Name)
	}
	e.Signature = sig
	e.Type = sig.ReturnType
	params := sig.Block.Params()
	if (fn.Kind == FuncConstructor || callee.IsMethodCall()) && len(params) > 0 {
		params = params[1:]
	}
	sc.adoptParams(params, args)
	return e
}

func (sc *scope) adoptParams(params []*Variable, args []*Expr) {
	for i, a := range args {
		if a.Kind == ExprNamedParam {
			for _, p := range params {
				if p.Name == a.Name {
					sc.adopt(a.Children[1], p.Type)
					a.Type = a.Children[1].Type
				}
			}
			continue
		}
		if i < len(params) {
			sc.adopt(a, params[i].Type)
		}
	}
}

func (sc *scope) builtinType(n *Node, b Builtin, receiver *Expr, args []*Expr) *Datatype {
	rt := receiver.Type
	switch b {
	case BuiltinLength:
		return UintType(64)
	case BuiltinResize:
		if len(args) != 1 {
			fail(n, "resize takes a length")
		}
		sc.adopt(args[0], UintType(64))
		return rt
	case BuiltinAppend, BuiltinConcat:
		if len(args) != 1 {
			fail(n, "%s takes one argument", receiver.Name)
		}
		if b == BuiltinAppend && rt.Kind == KindArray {
			sc.adopt(args[0], rt.Elem)
		}
		return NoneType()
	case BuiltinReverse:
		return NoneType()
	case BuiltinToUintBE, BuiltinToUintLE:
		if len(args) != 1 || !args[0].IsType() || args[0].Type.Kind != KindUint {
			fail(n, "toUint takes a uint type")
		}
		return args[0].Type.WithSecret(rt.Secret)
	case BuiltinFind, BuiltinRfind:
		if len(args) == 2 {
			sc.adopt(args[1], UintType(64))
		}
		return IntType(64)
	case BuiltinToString:
		if len(args) == 1 {
			sc.adopt(args[0], UintType(32))
		}
		return StringType()
	}
	return StringType().WithSecret(rt.Secret)
}
