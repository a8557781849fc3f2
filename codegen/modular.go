package codegen

import (
	"github.com/google/rune-sub002/parser"
)

var smallnumModularOps = map[parser.ExprKind]string{
	parser.ExprAdd: "runtime_smallnumModularAdd",
	parser.ExprSub: "runtime_smallnumModularSub",
	parser.ExprMul: "runtime_smallnumModularMul",
	parser.ExprDiv: "runtime_smallnumModularDiv",
	parser.ExprExp: "runtime_smallnumModularExp",
}

var bigintModularOps = map[parser.ExprKind]string{
	parser.ExprAdd: "runtime_bigintModularAdd",
	parser.ExprSub: "runtime_bigintModularSub",
	parser.ExprMul: "runtime_bigintModularMul",
	parser.ExprDiv: "runtime_bigintModularDiv",
	parser.ExprExp: "runtime_bigintModularExp",
}

// isModularOp reports whether an expression of modint type is computed
// modulo its modulus rather than as a plain integer.
func isModularOp(kind parser.ExprKind) bool {
	switch kind {
	case parser.ExprAdd, parser.ExprSub, parser.ExprMul, parser.ExprDiv, parser.ExprExp, parser.ExprNegate:
		return true
	}
	return false
}

// genModintExpr lowers "x mod m".
func (cg *CodeGen) genModintExpr(e *parser.Expr) {
	cg.genModular(e.Children[0], e.Children[1])
}

// genModular evaluates the modulus, then lowers e modulo it.
func (cg *CodeGen) genModular(e, modulus *parser.Expr) {
	cg.genExpr(modulus)
	m := cg.pop(true)
	if m.typ.Kind == parser.KindModint || m.typ.Kind == parser.KindInt {
		m.typ = parser.UintType(m.typ.Width).WithSecret(m.typ.Secret)
	}
	cg.genModularExpr(e, m)
}

func (cg *CodeGen) genModularExpr(e *parser.Expr, m element) {
	switch e.Kind {
	case parser.ExprInteger, parser.ExprIdent, parser.ExprRandUint, parser.ExprCast, parser.ExprCastTrunc,
		parser.ExprCall, parser.ExprIndex, parser.ExprDot, parser.ExprWidthOf:
		cg.modularReduce(e, m)
	case parser.ExprAdd, parser.ExprSub, parser.ExprMul, parser.ExprDiv:
		cg.genModularBinary(e, m)
	case parser.ExprExp:
		cg.genModularExp(e, m)
	case parser.ExprSecret, parser.ExprReveal:
		cg.genModularExpr(e.Children[0], m)
	case parser.ExprNegate:
		cg.genModularNegate(e, m)
	case parser.ExprEqual, parser.ExprNotEqual:
		cg.genModularExpr(e.Children[0], m)
		left := cg.pop(true)
		cg.genModularExpr(e.Children[1], m)
		right := cg.pop(true)
		cg.pushValue(parser.BoolType().WithSecret(left.typ.Secret || right.typ.Secret),
			cg.compare(e.Kind, left, right), false)
		return
	default:
		cg.fail("Invalid modular arithmetic expression %s", e)
	}
	top := cg.top()
	top.typ = parser.UintType(m.typ.Width).WithSecret(top.typ.Secret || e.Type.Secret)
}

// modularReduce computes a leaf the ordinary way and reduces it into [0, m).
func (cg *CodeGen) modularReduce(e *parser.Expr, m element) {
	cg.genExpr(e)
	v := cg.pop(true)
	if v.typ.Kind == parser.KindModint {
		v.typ = parser.UintType(v.typ.Width).WithSecret(v.typ.Secret)
	}
	modWidth := m.typ.Width
	switch {
	case v.typ.Width < modWidth:
		v = cg.resizeInteger(v, intOf(v.typ.Kind, modWidth, v.typ.Secret), false)
	case v.typ.Width > modWidth:
		m = cg.resizeInteger(m, intOf(parser.KindUint, v.typ.Width, m.typ.Secret), false)
	}
	switch {
	case m.typ.IsBigint():
		dest := cg.tempValue(m.typ)
		cg.call("runtime_bigintMod", dest.val, v.val, m.val)
		cg.push(dest)
	case !v.typ.Signed() && !v.typ.Secret:
		cg.pushValue(m.typ, cg.binop("urem", v.val, m.val), false)
	default:
		r := cg.call("runtime_smallnumModReduce", cg.widen(v), cg.widen(m), i1(v.typ.Signed()), i1(v.typ.Secret))
		word := element{typ: intOf(parser.KindUint, parser.WordWidth, v.typ.Secret), val: r}
		cg.push(cg.resizeSmallInteger(word, m.typ.WithSecret(v.typ.Secret), true))
	}
	cg.resizeTop(parser.UintType(modWidth).WithSecret(cg.top().typ.Secret), true)
}

// genModularBinary lowers + - * / to the runtime modular primitives.
func (cg *CodeGen) genModularBinary(e *parser.Expr, m element) {
	cg.genModularExpr(e.Children[0], m)
	left := cg.pop(true)
	cg.genModularExpr(e.Children[1], m)
	right := cg.pop(true)
	secret := e.Type.Secret || left.typ.Secret || right.typ.Secret
	if m.typ.IsBigint() {
		fn := bigintModularOps[e.Kind]
		dest := cg.tempValue(m.typ.WithSecret(secret))
		cg.call(fn, dest.val, left.val, right.val, m.val)
		cg.push(dest)
		return
	}
	fn := smallnumModularOps[e.Kind]
	r := cg.call(fn, cg.widen(left), cg.widen(right), cg.widen(m), i1(secret))
	word := element{typ: intOf(parser.KindUint, parser.WordWidth, secret), val: r}
	cg.push(cg.resizeSmallInteger(word, m.typ.WithSecret(secret), true))
}

// genModularExp reduces the base but not the exponent, which could only be
// reduced knowing the factorization of the modulus.
func (cg *CodeGen) genModularExp(e *parser.Expr, m element) {
	cg.genModularExpr(e.Children[0], m)
	base := cg.pop(true)
	cg.genExpr(e.Children[1])
	exp := cg.pop(true)
	secret := e.Type.Secret || base.typ.Secret
	if m.typ.IsBigint() {
		if !exp.typ.IsBigint() {
			exp = cg.bigintHolder(exp)
		}
		dest := cg.tempValue(m.typ.WithSecret(secret))
		cg.call(bigintModularOps[parser.ExprExp], dest.val, base.val, exp.val, m.val)
		cg.push(dest)
		return
	}
	if exp.typ.IsBigint() {
		exp = cg.bigintToSmall(exp, sizeT, false)
	}
	r := cg.call(smallnumModularOps[parser.ExprExp], cg.widen(base), cg.widen(exp), cg.widen(m), i1(secret))
	word := element{typ: intOf(parser.KindUint, parser.WordWidth, secret), val: r}
	cg.push(cg.resizeSmallInteger(word, m.typ.WithSecret(secret), true))
}

// genModularNegate computes m - x.
func (cg *CodeGen) genModularNegate(e *parser.Expr, m element) {
	cg.genModularExpr(e.Children[0], m)
	v := cg.pop(true)
	if m.typ.IsBigint() {
		dest := cg.tempValue(m.typ.WithSecret(v.typ.Secret))
		cg.call("runtime_bigintSub", dest.val, m.val, v.val)
		cg.push(dest)
		return
	}
	cg.pushValue(m.typ.WithSecret(v.typ.Secret),
		cg.binop("sub", m.val, v.val), false)
}
