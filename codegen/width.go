package codegen

import (
	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// intOf is an integer datatype of the given kind and width.
func intOf(kind parser.Kind, width uint32, secret bool) *parser.Datatype {
	t := parser.UintType(width)
	if kind == parser.KindInt {
		t = parser.IntType(width)
	}
	return t.WithSecret(secret)
}

// widen extends a small integer or bool value to the machine word.
func (cg *CodeGen) widen(e element) value.Value {
	if e.typ.Kind == parser.KindBool {
		return cg.cast("zext", e.val, sizeType)
	}
	if e.typ.Width == parser.WordWidth {
		return e.val
	}
	op := "zext"
	if e.typ.Signed() {
		op = "sext"
	}
	return cg.cast(op, e.val, sizeType)
}

// resizeSmallInteger converts between word sized integers. Narrowing is
// checked for a changed value unless truncate is set.
func (cg *CodeGen) resizeSmallInteger(e element, to *parser.Datatype, truncate bool) element {
	old, width := e.typ.Width, to.Width
	r := element{typ: to, val: e.val}
	typ := types.NewInt(uint64(width))
	switch {
	case old == width:
		return r
	case old > width:
		r.val = cg.cast("trunc", e.val, typ)
		if !truncate && !cg.cfg.Unsafe {
			cg.checkTruncation(e, r.val, to)
		}
	case e.typ.Signed():
		r.val = cg.cast("sext", e.val, typ)
	default:
		r.val = cg.cast("zext", e.val, typ)
	}
	return r
}

// checkTruncation throws an overflow when narrowing to the datatype changed
// the value. The narrowed value is extended back by its own signedness, so
// -1 narrowed to u8 fails.
func (cg *CodeGen) checkTruncation(orig element, narrowed value.Value, to *parser.Datatype) {
	op := "zext"
	if to.Signed() {
		op = "sext"
	}
	back := cg.cast(op, narrowed, types.NewInt(uint64(orig.typ.Width)))
	same := cg.icmp(enum.IPredEQ, back, orig.val)
	passed := cg.newLabel("truncationCheckPassed")
	cg.branch(same, passed, cg.overflowFailedLabel())
	cg.label(passed)
}

// smallToBigint widens a word sized integer into a big integer temporary.
func (cg *CodeGen) smallToBigint(e element, to *parser.Datatype) element {
	v := cg.widen(e)
	dest := cg.tempValue(to)
	cg.call("runtime_integerToBigint", dest.val, v, i32(to.Width), i1(to.Signed()), i1(to.Secret))
	return dest
}

// bigintToSmall converts a big integer to a word sized one.
func (cg *CodeGen) bigintToSmall(e element, to *parser.Datatype, truncate bool) element {
	fn := "runtime_bigintToInteger"
	if truncate {
		fn = "runtime_bigintToIntegerTrunc"
	}
	v := cg.call(fn, e.val)
	word := element{typ: intOf(to.Kind, parser.WordWidth, to.Secret), val: v}
	return cg.resizeSmallInteger(word, to, truncate)
}

// resizeBigint casts a big integer to another big width or signedness.
func (cg *CodeGen) resizeBigint(e element, to *parser.Datatype, truncate bool) element {
	dest := cg.tempValue(to)
	cg.call("runtime_bigintCast", dest.val, e.val, i32(to.Width), i1(to.Signed()), i1(to.Secret), i1(truncate))
	return dest
}

// resizeInteger converts a dereferenced integer element to the datatype,
// picking the transition by which sides are big.
func (cg *CodeGen) resizeInteger(e element, to *parser.Datatype, truncate bool) element {
	from := e.typ
	if from.Width == to.Width && (from.Signed() == to.Signed() || !to.IsBigint()) {
		e.typ = to
		return e
	}
	switch {
	case !from.IsBigint() && !to.IsBigint():
		return cg.resizeSmallInteger(e, to, truncate)
	case !from.IsBigint():
		return cg.smallToBigint(e, to)
	case !to.IsBigint():
		return cg.bigintToSmall(e, to, truncate)
	}
	return cg.resizeBigint(e, to, truncate)
}

// resizeTop resizes the integer on top of the stack in place.
func (cg *CodeGen) resizeTop(to *parser.Datatype, truncate bool) {
	e := cg.pop(true)
	cg.push(cg.resizeInteger(e, to, truncate))
}

// resignTop relabels the top integer as signed or unsigned. Big integers
// carry their signedness, so they are cast.
func (cg *CodeGen) resignTop(to *parser.Datatype) {
	e := cg.pop(true)
	if !e.typ.IsBigint() {
		e.typ = to
		cg.push(e)
		return
	}
	cg.push(cg.resizeBigint(e, to, true))
}
