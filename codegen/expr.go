package codegen

import (
	"math/big"

	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Comparison codes understood by runtime_compareArrays and runtime_compareBigints.
const (
	compareLT uint32 = iota
	compareLE
	compareGT
	compareGE
	compareEqual
	compareNotEqual
)

// Element kinds understood by runtime_compareArrays.
const (
	runtimeUint uint32 = iota
	runtimeInt
)

var compareCodes = map[parser.ExprKind]uint32{
	parser.ExprLt:       compareLT,
	parser.ExprLe:       compareLE,
	parser.ExprGt:       compareGT,
	parser.ExprGe:       compareGE,
	parser.ExprEqual:    compareEqual,
	parser.ExprNotEqual: compareNotEqual,
}

var bigintOps = map[parser.ExprKind]string{
	parser.ExprAdd:      "runtime_bigintAdd",
	parser.ExprSub:      "runtime_bigintSub",
	parser.ExprMul:      "runtime_bigintMul",
	parser.ExprDiv:      "runtime_bigintDiv",
	parser.ExprMod:      "runtime_bigintMod",
	parser.ExprAddTrunc: "runtime_bigintAddTrunc",
	parser.ExprSubTrunc: "runtime_bigintSubTrunc",
	parser.ExprMulTrunc: "runtime_bigintMulTrunc",
	parser.ExprBitAnd:   "runtime_bigintBitwiseAnd",
	parser.ExprBitOr:    "runtime_bigintBitwiseOr",
	parser.ExprBitXor:   "runtime_bigintBitwiseXor",
	parser.ExprShl:      "runtime_bigintShl",
	parser.ExprShr:      "runtime_bigintShr",
	parser.ExprRotl:     "runtime_bigintRotl",
	parser.ExprRotr:     "runtime_bigintRotr",
}

func (cg *CodeGen) genExpr(e *parser.Expr) {
	if e.Signature != nil && e.Kind != parser.ExprCall && e.Kind != parser.ExprFuncAddr {
		if _, ok := e.Kind.AssignOp(); !ok && e.Kind != parser.ExprAssign {
			cg.callSignature(e.Signature, nil, e.Children)
			return
		}
	}
	if e.Type != nil && e.Type.Kind == parser.KindModint && e.Type.Modulus != nil && isModularOp(e.Kind) {
		cg.genModular(e, e.Type.Modulus)
		return
	}
	switch e.Kind {
	case parser.ExprInteger:
		cg.genInteger(e)
	case parser.ExprFloat:
		typ := types.Double
		if e.Type.Width == 32 {
			typ = types.Float
		}
		cg.pushValue(e.Type, constant.NewFloat(typ, e.Float), false)
	case parser.ExprBool:
		cg.pushValue(e.Type, constant.NewBool(e.Bool), false)
	case parser.ExprString:
		cg.push(element{typ: e.Type, val: cg.stringConst(e.Text), isConst: true})
	case parser.ExprIdent:
		cg.genIdent(e)
	case parser.ExprArray:
		cg.genArrayLiteral(e)
	case parser.ExprTuple:
		cg.genTupleLiteral(e)
	case parser.ExprModint:
		cg.genModintExpr(e)
	case parser.ExprAdd, parser.ExprSub, parser.ExprMul, parser.ExprDiv, parser.ExprMod,
		parser.ExprAddTrunc, parser.ExprSubTrunc, parser.ExprMulTrunc:
		cg.genArithmetic(e)
	case parser.ExprExp:
		cg.genExp(e)
	case parser.ExprAnd, parser.ExprOr:
		cg.genLogical(e)
	case parser.ExprXor, parser.ExprBitAnd, parser.ExprBitOr, parser.ExprBitXor:
		cg.genBitwise(e)
	case parser.ExprShl, parser.ExprShr, parser.ExprRotl, parser.ExprRotr:
		cg.genShift(e)
	case parser.ExprNot, parser.ExprBitNot:
		cg.genComplement(e)
	case parser.ExprLt, parser.ExprLe, parser.ExprGt, parser.ExprGe, parser.ExprEqual, parser.ExprNotEqual:
		cg.genRelational(e)
	case parser.ExprNegate, parser.ExprNegateTrunc:
		cg.genNegate(e)
	case parser.ExprSigned, parser.ExprUnsigned:
		cg.genExpr(e.Children[0])
		cg.resignTop(e.Type)
	case parser.ExprCast, parser.ExprCastTrunc:
		cg.genCast(e)
	case parser.ExprSelect:
		cg.genSelect(e)
	case parser.ExprCall:
		cg.genCall(e)
	case parser.ExprIndex:
		cg.genIndex(e)
	case parser.ExprSlice:
		cg.genExpr(e.Children[0])
		cg.genExpr(e.Children[1])
		cg.genExpr(e.Children[2])
		hi := cg.pop(true)
		lo := cg.pop(true)
		cg.sliceArray(cg.pop(false), lo, hi)
	case parser.ExprSecret, parser.ExprReveal, parser.ExprNotNull:
		cg.genExpr(e.Children[0])
		cg.top().typ = e.Type
	case parser.ExprIsNull:
		cg.genExpr(e.Children[0])
		v := cg.pop(true)
		cg.pushValue(parser.BoolType(), cg.icmp(enum.IPredEQ, v.val, intConst(v.typ.Width, -1)), false)
	case parser.ExprDot:
		cg.genDot(e)
	case parser.ExprNull:
		cg.push(element{typ: e.Type, val: intConst(e.Type.Width, -1), isNull: true})
	case parser.ExprTypeOf, parser.ExprArrayOf, parser.ExprUintType, parser.ExprIntType,
		parser.ExprFloatType, parser.ExprStringType, parser.ExprBoolType:
		cg.pushDefaultValue(e.Type)
	case parser.ExprFuncAddr:
		cg.pushValue(e.Type, cg.funcRef(e.Signature.Path), false)
	case parser.ExprWidthOf:
		cg.pushValue(e.Type, intConst(e.Type.Width, int64(widthOf(e.Children[0].Type))), false)
	case parser.ExprRandUint:
		cg.genRandUint(e.Type)
	case parser.ExprNamedParam:
		cg.genExpr(e.Children[1])
	case parser.ExprIn:
		cg.fail("Operator in needs an overload")
	default:
		if _, ok := e.Kind.AssignOp(); ok || e.Kind == parser.ExprAssign {
			cg.genAssign(e)
			return
		}
		cg.fail("Unexpected expression %s", e)
	}
}

func widthOf(t *parser.Datatype) uint32 {
	if t.Kind == parser.KindBool {
		return 1
	}
	return t.Width
}

func (cg *CodeGen) genInteger(e *parser.Expr) {
	if e.Type.IsBigint() {
		cg.push(element{typ: e.Type, val: cg.bigintConst(e.Int, e.Type), isConst: true})
		return
	}
	typ := types.NewInt(uint64(e.Type.Width))
	cg.pushValue(e.Type, &constant.Int{Typ: typ, X: new(big.Int).Set(e.Int)}, false)
}

// varValue is the storage of a variable: a parameter or alloca of the
// current function, or a global.
func (cg *CodeGen) varValue(v *parser.Variable) value.Value {
	if v.IsLocal() {
		if x, ok := cg.fn.vars[v]; ok {
			return x
		}
	} else if g, ok := cg.globals[v]; ok {
		return g
	}
	cg.fail("Variable %s has no storage", v.Name)
	return nil
}

// globalName names module variables by their owner's path.
func (cg *CodeGen) globalName(v *parser.Variable) string {
	if v.Block == cg.prog.Root || v.Block.Owner == nil {
		return v.Name
	}
	return v.Block.Owner.Path + "_" + v.Name
}

func (cg *CodeGen) genIdent(e *parser.Expr) {
	if v := e.Variable; v != nil {
		if v.Block != nil && v.Block.Owner != nil && v.Block.Owner.Kind == parser.FuncEnum {
			cg.pushValue(v.Type, intConst(v.Type.Width, int64(v.EntryValue)), false)
			return
		}
		isRef := v.Kind != parser.VarParam || !v.Const || v.Type.PassedByReference()
		cg.pushValue(v.Type, cg.varValue(v), isRef)
		return
	}
	if e.Function != nil {
		cg.pushValue(e.Type, cg.funcRef(e.Function.Path), false)
		return
	}
	cg.fail("Tried to generate an undefined identifier %s", e.Name)
}

// pushDefaultValue pushes the zero value of a datatype.
func (cg *CodeGen) pushDefaultValue(t *parser.Datatype) {
	switch {
	case t.PassedByReference():
		e := cg.tempValue(t)
		e.isConst = true
		cg.push(e)
	case t.Kind == parser.KindClass || t.Kind == parser.KindNull:
		cg.push(element{typ: t, val: intConst(t.Width, -1), isNull: true})
	default:
		cg.pushValue(t, cg.zeroValue(t), false)
	}
}

func (cg *CodeGen) genArrayLiteral(e *parser.Expr) {
	if isConstArray(e) {
		cg.push(element{typ: e.Type, val: cg.primitiveArrayConst(e), isConst: true})
		return
	}
	arr := cg.allocArray(e.Type, i64(int64(len(e.Children))))
	elem := e.Type.Elem
	for i, c := range e.Children {
		cg.genExpr(c)
		v := cg.pop(false)
		slot := cg.indexArray(arr, element{typ: sizeT, val: i64(int64(i))}, false)
		if elem.ContainsArray() || isRefCounted(elem) || elem.PassedByReference() {
			cg.copyOrMoveElement(slot, v, false)
		} else {
			cg.storeValue(slot, cg.deref(v))
		}
	}
	cg.push(arr)
}

func (cg *CodeGen) genTupleLiteral(e *parser.Expr) {
	tuple := cg.tempValue(e.Type)
	for i, c := range e.Children {
		cg.genExpr(c)
		v := cg.pop(false)
		cg.copyOrMoveElement(cg.indexTuple(tuple, i), v, false)
	}
	cg.push(tuple)
}

// genArithmetic lowers + - * / % and their truncating forms.
func (cg *CodeGen) genArithmetic(e *parser.Expr) {
	t := e.Type
	if e.Kind == parser.ExprMod && e.Children[0].Type.Kind == parser.KindString {
		cg.genFormat(e)
		return
	}
	cg.genExpr(e.Children[0])
	cg.genExpr(e.Children[1])
	right := cg.pop(true)
	left := cg.pop(true)
	switch {
	case t.Kind == parser.KindFloat:
		ops := map[parser.ExprKind]string{
			parser.ExprAdd: "fadd", parser.ExprSub: "fsub", parser.ExprMul: "fmul",
			parser.ExprDiv: "fdiv", parser.ExprMod: "frem",
		}
		op, ok := ops[e.Kind]
		if !ok {
			cg.fail("Unexpected float operator in %s", e)
		}
		cg.pushValue(t, cg.binop(op, left.val, right.val), false)
	case (t.Kind == parser.KindString || t.Kind == parser.KindArray) && e.Kind == parser.ExprAdd:
		cg.concatArrays(t, left, right)
	case t.IsBigint():
		cg.bigintBinary(bigintOps[e.Kind], t, left, right)
	case e.Kind == parser.ExprDiv || e.Kind == parser.ExprMod:
		fn := "runtime_smallnumDiv"
		if e.Kind == parser.ExprMod {
			fn = "runtime_smallnumMod"
		}
		v := cg.call(fn, cg.widen(left), cg.widen(right), i1(t.Signed()), i1(t.Secret))
		cg.push(cg.resizeSmallInteger(element{typ: intOf(t.Kind, parser.WordWidth, t.Secret), val: v}, t, true))
	default:
		ops := map[parser.ExprKind]string{
			parser.ExprAdd: "add", parser.ExprSub: "sub", parser.ExprMul: "mul",
			parser.ExprAddTrunc: "add", parser.ExprSubTrunc: "sub", parser.ExprMulTrunc: "mul",
		}
		op := ops[e.Kind]
		trunc := e.Kind == parser.ExprAddTrunc || e.Kind == parser.ExprSubTrunc || e.Kind == parser.ExprMulTrunc
		if trunc || cg.cfg.Unsafe {
			cg.pushValue(t, cg.binop(op, left.val, right.val), false)
			return
		}
		cg.pushValue(t, cg.checkedOp(op, t, left.val, right.val), false)
	}
}

// checkedOp emits an overflow checked add, sub or mul.
func (cg *CodeGen) checkedOp(op string, t *parser.Datatype, left, right value.Value) value.Value {
	prefix := "u"
	if t.Signed() {
		prefix = "s"
	}
	result := cg.callFunc(cg.overflowIntrinsic(prefix+op, t.Width), left, right)
	sum := cg.extract(result, 0)
	overflow := cg.extract(result, 1)
	failed := cg.overflowFailedLabel()
	passed := cg.newLabel("overflowCheckPassed")
	cg.branch(overflow, failed, passed)
	cg.label(passed)
	return sum
}

// bigintBinary pushes fn(dest, left, right) into a new big integer.
func (cg *CodeGen) bigintBinary(fn string, t *parser.Datatype, left, right element) {
	if fn == "" {
		cg.fail("Unexpected big integer operator")
	}
	dest := cg.tempValue(t)
	cg.call(fn, dest.val, left.val, right.val)
	cg.push(dest)
}

func (cg *CodeGen) genExp(e *parser.Expr) {
	t := e.Type
	cg.genExpr(e.Children[0])
	cg.genExpr(e.Children[1])
	exp := cg.resizeInteger(cg.pop(true), parser.UintType(32), false)
	base := cg.pop(true)
	switch {
	case t.IsBigint():
		dest := cg.tempValue(t)
		cg.call("runtime_bigintExp", dest.val, base.val, exp.val)
		cg.push(dest)
	case t.IsInteger():
		v := cg.call("runtime_smallnumExp", cg.widen(base), exp.val, i1(t.Signed()), i1(t.Secret))
		cg.push(cg.resizeSmallInteger(element{typ: intOf(t.Kind, parser.WordWidth, t.Secret), val: v}, t, false))
	default:
		cg.fail("Cannot raise %s to a power", t)
	}
}

// genLogical lowers && and || with a short circuit, or bitwise when secret.
func (cg *CodeGen) genLogical(e *parser.Expr) {
	op := "and"
	if e.Kind == parser.ExprOr {
		op = "or"
	}
	if e.Type.Secret {
		cg.genExpr(e.Children[0])
		cg.genExpr(e.Children[1])
		right := cg.pop(true)
		left := cg.pop(true)
		cg.pushValue(e.Type, cg.binop(op, left.val, right.val), false)
		return
	}
	cg.genExpr(e.Children[0])
	left := cg.pop(true)
	taken := cg.newLabel(op + "ShortcutTaken")
	notTaken := cg.newLabel(op + "ShortcutNotTaken")
	from := cg.block()
	if e.Kind == parser.ExprOr {
		cg.branch(left.val, taken, notTaken)
	} else {
		cg.branch(left.val, notTaken, taken)
	}
	cg.label(notTaken)
	cg.genExpr(e.Children[1])
	right := cg.pop(true)
	last := cg.block()
	cg.jump(taken)
	cg.label(taken)
	shortcut := e.Kind == parser.ExprOr
	v := cg.phi(ir.NewIncoming(constant.NewBool(shortcut), from), ir.NewIncoming(right.val, last))
	cg.pushValue(e.Type, v, false)
}

func (cg *CodeGen) genBitwise(e *parser.Expr) {
	t := e.Type
	cg.genExpr(e.Children[0])
	cg.genExpr(e.Children[1])
	right := cg.pop(true)
	left := cg.pop(true)
	switch {
	case t.Kind == parser.KindString && e.Kind == parser.ExprBitXor:
		dest := cg.tempValue(t)
		cg.call("runtime_xorStrings", dest.val, left.val, right.val)
		cg.push(dest)
	case t.IsBigint():
		fn := bigintOps[e.Kind]
		if e.Kind == parser.ExprXor {
			fn = bigintOps[parser.ExprBitXor]
		}
		cg.bigintBinary(fn, t, left, right)
	default:
		op := map[parser.ExprKind]string{
			parser.ExprXor: "xor", parser.ExprBitXor: "xor", parser.ExprBitAnd: "and", parser.ExprBitOr: "or",
		}[e.Kind]
		cg.pushValue(t, cg.binop(op, left.val, right.val), false)
	}
}

// genShift lowers shifts and rotates. Amounts that are not constants are
// checked against the value width.
func (cg *CodeGen) genShift(e *parser.Expr) {
	t := e.Type
	operand, amountExpr := e.Children[0], e.Children[1]
	width := operand.Type.Width
	isConst := amountExpr.Kind == parser.ExprInteger
	if isConst && (amountExpr.Int.Sign() < 0 || !amountExpr.Int.IsUint64() || amountExpr.Int.Uint64() >= uint64(width)) {
		cg.fail("Shift or rotate by more than integer width")
	}
	cg.genExpr(operand)
	cg.genExpr(amountExpr)
	amount := cg.pop(true)
	v := cg.pop(true)
	if amount.typ.IsBigint() {
		amount = cg.bigintToSmall(amount, parser.UintType(32), false)
	}
	if !isConst {
		cg.limitCheck(amount, width)
	}
	if t.IsBigint() {
		amount = cg.resizeSmallInteger(amount, parser.UintType(32), true)
		dest := cg.tempValue(t)
		cg.call(bigintOps[e.Kind], dest.val, v.val, amount.val)
		cg.push(dest)
		return
	}
	amount = cg.resizeSmallInteger(amount, parser.UintType(width), true)
	var r value.Value
	switch e.Kind {
	case parser.ExprShl:
		r = cg.binop("shl", v.val, amount.val)
	case parser.ExprShr:
		op := "lshr"
		if t.Signed() {
			op = "ashr"
		}
		r = cg.binop(op, v.val, amount.val)
	default:
		op := "fshl"
		if e.Kind == parser.ExprRotr {
			op = "fshr"
		}
		r = cg.callFunc(cg.funnelShift(op, width), v.val, v.val, amount.val)
	}
	cg.pushValue(t, r, false)
}

func (cg *CodeGen) genComplement(e *parser.Expr) {
	t := e.Type
	cg.genExpr(e.Children[0])
	v := cg.pop(true)
	switch {
	case t.IsBigint():
		dest := cg.tempValue(t)
		cg.call("runtime_bigintComplement", dest.val, v.val)
		cg.push(dest)
	case t.Kind == parser.KindBool:
		cg.pushValue(t, cg.binop("xor", v.val, constant.True), false)
	default:
		cg.pushValue(t, cg.binop("xor", v.val, intConst(t.Width, -1)), false)
	}
}

func (cg *CodeGen) genNegate(e *parser.Expr) {
	t := e.Type
	cg.genExpr(e.Children[0])
	v := cg.pop(true)
	trunc := e.Kind == parser.ExprNegateTrunc
	switch {
	case t.Kind == parser.KindFloat:
		cg.pushValue(t, cg.fneg(v.val), false)
	case t.IsBigint():
		fn := "runtime_bigintNegate"
		if trunc && !cg.cfg.Unsafe {
			fn = "runtime_bigintNegateTrunc"
		}
		dest := cg.tempValue(t)
		cg.call(fn, dest.val, v.val)
		cg.push(dest)
	case !trunc && !cg.cfg.Unsafe:
		cg.pushValue(t, cg.checkedOp("sub", t, intConst(t.Width, 0), v.val), false)
	default:
		cg.pushValue(t, cg.binop("sub", intConst(t.Width, 0), v.val), false)
	}
}

// icmpPred and fcmpPred map comparison operators to predicates.
func icmpPred(kind parser.ExprKind, signed bool) enum.IPred {
	switch kind {
	case parser.ExprLt:
		if signed {
			return enum.IPredSLT
		}
		return enum.IPredULT
	case parser.ExprLe:
		if signed {
			return enum.IPredSLE
		}
		return enum.IPredULE
	case parser.ExprGt:
		if signed {
			return enum.IPredSGT
		}
		return enum.IPredUGT
	case parser.ExprGe:
		if signed {
			return enum.IPredSGE
		}
		return enum.IPredUGE
	case parser.ExprEqual:
		return enum.IPredEQ
	}
	return enum.IPredNE
}

func fcmpPred(kind parser.ExprKind) enum.FPred {
	return map[parser.ExprKind]enum.FPred{
		parser.ExprLt:       enum.FPredOLT,
		parser.ExprLe:       enum.FPredOLE,
		parser.ExprGt:       enum.FPredOGT,
		parser.ExprGe:       enum.FPredOGE,
		parser.ExprEqual:    enum.FPredOEQ,
		parser.ExprNotEqual: enum.FPredONE,
	}[kind]
}

func (cg *CodeGen) genRelational(e *parser.Expr) {
	cg.genExpr(e.Children[0])
	cg.genExpr(e.Children[1])
	right := cg.pop(true)
	left := cg.pop(true)
	cg.pushValue(e.Type, cg.compare(e.Kind, left, right), false)
}

// compare emits a comparison of two dereferenced elements and returns the i1 result.
func (cg *CodeGen) compare(kind parser.ExprKind, left, right element) value.Value {
	t := left.typ
	switch {
	case t.IsBigint():
		return cg.call("runtime_compareBigints", i32(compareCodes[kind]), left.val, right.val)
	case t.IsArray():
		return cg.compareArrays(kind, left, right)
	case t.Kind == parser.KindFloat:
		return cg.fcmp(fcmpPred(kind), left.val, right.val)
	}
	return cg.icmp(icmpPred(kind, t.Signed()), left.val, right.val)
}

// compareArrays calls runtime_compareArrays with the base element kind.
func (cg *CodeGen) compareArrays(kind parser.ExprKind, left, right element) value.Value {
	t := left.typ
	base := t.BaseType()
	if base.Kind == parser.KindString {
		base = parser.UintType(8)
	}
	prim := runtimeUint
	if base.Kind == parser.KindInt {
		prim = runtimeInt
	}
	secret := t.Secret || right.typ.Secret
	return cg.call("runtime_compareArrays", i32(compareCodes[kind]), i32(prim),
		left.val, right.val, cg.elemSize(t), i1(hasSubArrays(t)), i1(secret))
}

// intView is the integer datatype a cast sees for enums, classes and bools.
func intView(t *parser.Datatype) (*parser.Datatype, bool) {
	switch t.Kind {
	case parser.KindUint, parser.KindInt:
		return t, true
	case parser.KindEnum, parser.KindClass, parser.KindNull:
		return intOf(parser.KindUint, t.Width, t.Secret), true
	case parser.KindModint:
		return intOf(parser.KindUint, t.Width, t.Secret), true
	}
	return nil, false
}

func (cg *CodeGen) genCast(e *parser.Expr) {
	to := e.Type
	src := e.Children[1]
	truncate := e.Kind == parser.ExprCastTrunc
	cg.genExpr(src)
	from := src.Type
	if to.WithSecret(false).Equal(from.WithSecret(false)) {
		cg.top().typ = to
		return
	}
	fi, fromInt := intView(from)
	ti, toInt := intView(to)
	if fromInt && toInt {
		v := cg.pop(true)
		v.typ = fi
		r := cg.resizeInteger(v, ti, truncate)
		r.typ = to
		cg.push(r)
		return
	}
	if from.Kind == parser.KindClass || to.Kind == parser.KindClass ||
		from.Kind == parser.KindString || to.Kind == parser.KindString || to.Kind == parser.KindArray {
		cg.top().typ = to
		return
	}
	v := cg.pop(true)
	switch {
	case from.Kind == parser.KindFloat && toInt:
		op := "fptoui"
		if ti.Signed() {
			op = "fptosi"
		}
		word := intOf(ti.Kind, parser.WordWidth, to.Secret)
		r := element{typ: word, val: cg.cast(op, v.val, sizeType)}
		r = cg.resizeInteger(r, ti, truncate)
		r.typ = to
		cg.push(r)
	case fromInt && to.Kind == parser.KindFloat:
		if fi.IsBigint() {
			v = cg.bigintToSmall(v, intOf(fi.Kind, parser.WordWidth, fi.Secret), truncate)
			fi = v.typ
		}
		op := "uitofp"
		if fi.Signed() {
			op = "sitofp"
		}
		cg.pushValue(to, cg.cast(op, v.val, cg.llType(to)), false)
	case from.Kind == parser.KindFloat && to.Kind == parser.KindFloat:
		op := "fpext"
		if to.Width < from.Width {
			op = "fptrunc"
		}
		cg.pushValue(to, cg.cast(op, v.val, cg.llType(to)), false)
	case from.Kind == parser.KindBool && toInt:
		r := element{typ: parser.UintType(1), val: v.val}
		r = cg.resizeInteger(r, ti, truncate)
		r.typ = to
		cg.push(r)
	default:
		cg.fail("Cannot cast %s to %s", from, to)
	}
}

// genSelect lowers c ? a : b to a select instruction. Not constant time
// when c is secret.
func (cg *CodeGen) genSelect(e *parser.Expr) {
	cg.genExpr(e.Children[0])
	cg.genExpr(e.Children[1])
	cg.genExpr(e.Children[2])
	b := cg.pop(true)
	a := cg.pop(true)
	c := cg.pop(true)
	cg.push(element{typ: e.Type, val: cg.selectValue(c.val, a.val, b.val), isRef: a.isRef})
}

func (cg *CodeGen) genIndex(e *parser.Expr) {
	a, i := e.Children[0], e.Children[1]
	if a.Type.Kind == parser.KindTuple || a.Type.Kind == parser.KindStruct {
		cg.genExpr(a)
		t := cg.pop(false)
		cg.push(cg.indexTuple(t, int(i.Int.Int64())))
		return
	}
	cg.genExpr(a)
	cg.genExpr(i)
	idx := cg.pop(true)
	arr := cg.pop(false)
	if idx.typ.IsBigint() {
		idx = cg.bigintToSmall(idx, sizeT, false)
	}
	cg.push(cg.indexArray(arr, idx, !e.Safe))
}

// genDot lowers member access. Methods leave the receiver below a delegate.
func (cg *CodeGen) genDot(e *parser.Expr) {
	left, right := e.Children[0], e.Children[1]
	switch left.Type.Kind {
	case parser.KindClass, parser.KindNull:
		if v := right.Variable; v != nil {
			cg.genExpr(left)
			obj := cg.pop(true)
			arrayVar := v.ArrayVar
			arr := element{typ: arrayVar.Type, val: cg.varValue(arrayVar), isRef: true}
			cg.push(cg.indexArray(arr, obj, true))
			return
		}
		fn := right.Function
		if fn.Kind == parser.FuncConstructor {
			cg.pushValue(right.Type, cg.funcRef(fn.Path), false)
			return
		}
		cg.genExpr(left)
		cg.push(element{typ: right.Type, val: cg.funcRef(fn.Path), isDelegate: true})
	case parser.KindStruct:
		cg.genExpr(left)
		s := cg.pop(false)
		for i, p := range left.Type.Function.Block.Params() {
			if p == right.Variable {
				cg.push(cg.indexTuple(s, i))
				return
			}
		}
		cg.fail("Struct %s has no field %s", left.Type, right.Name)
	case parser.KindEnumClass:
		cg.genIdent(right)
	default:
		cg.fail("Builtin method %s must be called", right.Name)
	}
}

func (cg *CodeGen) genRandUint(t *parser.Datatype) {
	if t.IsBigint() {
		dest := cg.tempValue(t)
		cg.call("runtime_generateTrueRandomBigint", dest.val, i32(t.Width))
		cg.push(dest)
		return
	}
	v := cg.call("runtime_generateTrueRandomValue", i32(t.Width))
	cg.push(cg.resizeSmallInteger(element{typ: intOf(parser.KindUint, parser.WordWidth, t.Secret), val: v}, t, true))
}

// genAssign evaluates the value, applying the operator of op-assigns, then
// writes it through the target.
func (cg *CodeGen) genAssign(e *parser.Expr) {
	target, src := e.Children[0], e.Children[1]
	if op, ok := e.Kind.AssignOp(); ok {
		typ := target.Type
		if op == parser.ExprXor && typ.Kind == parser.KindBool {
			typ = parser.BoolType().WithSecret(typ.Secret)
		}
		cg.genExpr(&parser.Expr{Kind: op, Type: typ, Children: []*parser.Expr{target, src},
			Signature: e.Signature, Pos: e.Pos})
	} else {
		cg.genExpr(src)
	}
	cg.writeTop(target)
}

// writeTop pops a value and stores it through the access target.
func (cg *CodeGen) writeTop(target *parser.Expr) {
	val := cg.pop(true)
	cg.genExpr(target)
	dest := cg.pop(false)
	first := cg.stmt != nil && cg.stmt.FirstAssignment
	t := dest.typ
	if t.ContainsArray() || isRefCounted(t) || t.Kind == parser.KindTuple || t.Kind == parser.KindStruct {
		cg.copyOrMoveElement(dest, val, !first)
		return
	}
	cg.store(val.val, dest.val)
}

// genFormat lowers format % args into a new string.
func (cg *CodeGen) genFormat(e *parser.Expr) {
	cg.genExpr(e.Children[0])
	format := cg.pop(true)
	args := []*parser.Expr{e.Children[1]}
	if e.Children[1].Kind == parser.ExprTuple {
		args = e.Children[1].Children
	}
	dest := cg.tempValue(parser.StringType().WithSecret(e.Type.Secret))
	cg.sprintf(dest, format, args)
	cg.push(dest)
}
