package codegen

import (
	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// genBuiltinCall lowers the methods of builtin types such as s.length().
func (cg *CodeGen) genBuiltinCall(e *parser.Expr, b parser.Builtin) {
	receiver := e.Children[0].Children[0]
	args := e.Children[1:]
	rt := receiver.Type
	switch b {
	case parser.BuiltinLength:
		cg.genExpr(receiver)
		if rt.Kind == parser.KindTuple || rt.Kind == parser.KindStruct {
			cg.pop(false)
			cg.pushValue(sizeT, i64(int64(len(rt.Types))), false)
			return
		}
		arr := cg.pop(false)
		cg.pushValue(sizeT, cg.arrayLength(arr), false)
	case parser.BuiltinResize:
		cg.genExpr(receiver)
		cg.genExpr(args[0])
		n := cg.resizeInteger(cg.pop(true), sizeT, false)
		arr := cg.pop(false)
		cg.call("runtime_resizeArray", arr.val, n.val, cg.elemSize(rt), i1(hasSubArrays(rt)))
		cg.push(arr)
	case parser.BuiltinAppend:
		cg.genExpr(receiver)
		cg.genExpr(args[0])
		v := cg.pop(false)
		arr := cg.pop(false)
		cg.appendElement(arr, v)
	case parser.BuiltinConcat:
		cg.genExpr(receiver)
		cg.genExpr(args[0])
		other := cg.pop(true)
		arr := cg.pop(false)
		cg.call("runtime_concatArrays", arr.val, other.val, cg.elemSize(rt), i1(hasSubArrays(rt)))
	case parser.BuiltinReverse:
		cg.genExpr(receiver)
		arr := cg.pop(false)
		cg.call("runtime_reverseArray", arr.val, cg.elemSize(rt), i1(hasSubArrays(rt)))
	case parser.BuiltinToUintBE, parser.BuiltinToUintLE:
		cg.genDecode(e.Type, receiver, b == parser.BuiltinToUintBE)
	case parser.BuiltinToStringBE, parser.BuiltinToStringLE:
		cg.genExpr(receiver)
		v := cg.pop(true)
		if !v.typ.IsBigint() {
			v = cg.bigintHolder(v)
		}
		fn := "runtime_bigintEncodeLittleEndian"
		if b == parser.BuiltinToStringBE {
			fn = "runtime_bigintEncodeBigEndian"
		}
		dest := cg.tempValue(e.Type)
		cg.call(fn, dest.val, v.val)
		cg.push(dest)
	case parser.BuiltinToHex, parser.BuiltinFromHex:
		cg.genExpr(receiver)
		v := cg.pop(true)
		fn := "runtime_stringToHex"
		if b == parser.BuiltinFromHex {
			fn = "runtime_hexToString"
		}
		dest := cg.tempValue(e.Type)
		cg.call(fn, dest.val, v.val)
		cg.push(dest)
	case parser.BuiltinFind, parser.BuiltinRfind:
		cg.genFind(receiver, args, b == parser.BuiltinRfind)
	case parser.BuiltinToString:
		cg.genToString(e.Type, receiver, args)
	default:
		cg.fail("Unexpected builtin %s", e.Children[0].Name)
	}
}

// appendElement copies v onto the end of arr. The runtime deep copies array
// elements. Other heap state moves into the array.
func (cg *CodeGen) appendElement(arr, v element) {
	elem := elementOf(arr.typ)
	var p value.Value
	switch {
	case elem.IsArray():
		p = cg.deref(v).val
	case elem.ContainsArray() || isRefCounted(elem) || elem.PassedByReference():
		tmp := cg.tempValue(elem)
		cg.copyOrMoveElement(tmp, v, false)
		cg.release(tmp)
		p = tmp.val
	default:
		slot := cg.tempSlot(cg.llType(elem))
		cg.store(cg.deref(v).val, slot)
		p = slot
	}
	data := cg.cast("bitcast", p, types.I8Ptr)
	cg.call("runtime_appendArrayElement", arr.val, data, cg.sizeOf(elem), i1(elem.IsArray()), i1(hasSubArrays(elem)))
}

// bigintHolder converts a small integer into a big integer temporary of the
// same width, for runtime routines that only take big integers.
func (cg *CodeGen) bigintHolder(v element) element {
	holder := cg.tempValue(parser.ArrayType(parser.UintType(32)))
	cg.call("runtime_integerToBigint", holder.val, cg.widen(v), i32(widthOf(v.typ)), i1(v.typ.Signed()), i1(v.typ.Secret))
	holder.typ = v.typ
	return holder
}

// genDecode reads an integer of datatype t from the bytes of a string.
func (cg *CodeGen) genDecode(t *parser.Datatype, receiver *parser.Expr, bigEndian bool) {
	cg.genExpr(receiver)
	s := cg.pop(true)
	fn := "runtime_bigintDecodeLittleEndian"
	if bigEndian {
		fn = "runtime_bigintDecodeBigEndian"
	}
	if t.IsBigint() {
		dest := cg.tempValue(t)
		cg.call(fn, dest.val, s.val, i32(t.Width), i1(t.Signed()), i1(t.Secret))
		cg.push(dest)
		return
	}
	holder := cg.tempValue(parser.ArrayType(parser.UintType(32)))
	cg.call(fn, holder.val, s.val, i32(t.Width), i1(t.Signed()), i1(t.Secret))
	holder.typ = t
	cg.push(cg.bigintToSmall(holder, t, false))
}

// genFind searches a string for a substring, from an optional offset.
func (cg *CodeGen) genFind(receiver *parser.Expr, args []*parser.Expr, reverse bool) {
	cg.genExpr(receiver)
	cg.genExpr(args[0])
	var offset value.Value
	if len(args) > 1 {
		cg.genExpr(args[1])
		offset = cg.resizeInteger(cg.pop(true), sizeT, false).val
	}
	sub := cg.pop(true)
	s := cg.pop(true)
	fn := "runtime_stringFind"
	if reverse {
		fn = "runtime_stringRfind"
		if offset == nil {
			offset = cg.arrayLength(s)
		}
	}
	if offset == nil {
		offset = i64(0)
	}
	r := cg.call(fn, s.val, sub.val, offset)
	cg.pushValue(parser.IntType(parser.WordWidth), r, false)
}

// genToString converts a value to a string. Integers take an optional base,
// 10 by default. Enums give their type name and everything else formats
// with sprintf.
func (cg *CodeGen) genToString(t *parser.Datatype, receiver *parser.Expr, args []*parser.Expr) {
	cg.genExpr(receiver)
	rt := receiver.Type
	switch {
	case rt.Kind == parser.KindBool:
		v := cg.pop(true)
		r := cg.selectValue(v.val, cg.stringConst("true"), cg.stringConst("false"))
		cg.push(element{typ: t, val: r, isConst: true})
		return
	case rt.Kind == parser.KindEnum:
		cg.pop(false)
		cg.push(element{typ: t, val: cg.stringConst(rt.Function.Name), isConst: true})
		return
	case !rt.IsInteger() && rt.Kind != parser.KindModint:
		spec, err := rt.FormatSpec()
		if err != nil {
			cg.fail("%s", err)
		}
		v := cg.formatOperand(cg.pop(true))
		dest := cg.tempValue(t)
		cg.call("runtime_sprintf", dest.val, cg.stringConst("%"+spec), v.val)
		cg.push(dest)
		return
	}
	var base value.Value = i32(10)
	if len(args) > 0 {
		cg.genExpr(args[0])
		base = cg.resizeInteger(cg.pop(true), parser.UintType(32), false).val
	}
	v := cg.pop(true)
	dest := cg.tempValue(t)
	if v.typ.IsBigint() {
		cg.call("runtime_bigintToString", dest.val, v.val, base)
	} else {
		cg.call("runtime_nativeIntToString", dest.val, cg.widen(v), base, i1(v.typ.Signed()))
	}
	cg.push(dest)
}
