package codegen

import (
	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// sizeOf is the byte size of a datatype as an i64 constant.
func (cg *CodeGen) sizeOf(t *parser.Datatype) constant.Constant {
	switch t.Kind {
	case parser.KindBool:
		return i64(1)
	case parser.KindFuncptr:
		return i64(8)
	case parser.KindString, parser.KindArray:
		return i64(16)
	case parser.KindFloat:
		return i64(int64(t.Width / 8))
	case parser.KindUint, parser.KindInt, parser.KindModint, parser.KindClass, parser.KindNull, parser.KindEnum:
		if t.IsBigint() {
			return i64(16)
		}
		switch {
		case t.Width <= 8:
			return i64(1)
		case t.Width <= 16:
			return i64(2)
		case t.Width <= 32:
			return i64(4)
		}
		return i64(8)
	case parser.KindTuple, parser.KindStruct:
		st := cg.tupleType(t)
		end := constant.NewGetElementPtr(st, constant.NewNull(types.NewPointer(st)), i32(1))
		return constant.NewPtrToInt(end, types.I64)
	}
	cg.fail("Datatype %s has no size", t)
	return nil
}

// elemSize is the byte size of one element of an array-like datatype.
func (cg *CodeGen) elemSize(t *parser.Datatype) constant.Constant {
	switch {
	case t.Kind == parser.KindString:
		return i64(1)
	case t.IsBigint():
		return i64(4)
	}
	return cg.sizeOf(t.Elem)
}

// indexTuple points at field i of a tuple or struct.
func (cg *CodeGen) indexTuple(e element, i int) element {
	p := cg.gep(cg.tupleType(e.typ), e.val, i32(0), i32(uint32(i)))
	return element{typ: e.typ.Types[i], val: p, isRef: true}
}

// arrayLength loads the element count of an array.
func (cg *CodeGen) arrayLength(arr element) value.Value {
	p := cg.gep(runtimeArray, arr.val, i32(0), i32(1))
	return cg.load(types.I64, p)
}

// arrayData loads the data pointer of an array as a pointer to its elements.
func (cg *CodeGen) arrayData(arr element, elemType types.Type) value.Value {
	p := cg.gep(runtimeArray, arr.val, i32(0), i32(0))
	data := cg.load(types.I64Ptr, p)
	return cg.cast("bitcast", data, types.NewPointer(elemType))
}

// indexArray points at element idx of an array, string or big integer.
func (cg *CodeGen) indexArray(arr, idx element, check bool) element {
	if idx.typ.Kind == parser.KindClass || idx.typ.Kind == parser.KindNull {
		idx.typ = parser.UintType(idx.typ.Width)
	}
	if check {
		cg.boundsCheck(arr, idx)
	}
	elem := elementOf(arr.typ)
	if arr.typ.Kind == parser.KindString {
		elem = elem.WithSecret(arr.typ.Secret)
	}
	typ := cg.llType(elem)
	data := cg.arrayData(arr, typ)
	return element{typ: elem, val: cg.gep(typ, data, idx.val), isRef: true}
}

// boundsCheck throws unless idx is below the array length.
func (cg *CodeGen) boundsCheck(arr, idx element) {
	if cg.cfg.Unsafe || (cg.stmt != nil && cg.stmt.Generated && !cg.debug) {
		return
	}
	length := cg.arrayLength(arr)
	i := cg.widen(idx)
	ok := cg.icmp(enum.IPredULT, i, length)
	passed := cg.newLabel("boundsCheckPassed")
	failed := cg.throwFailedLabel(&cg.fn.boundsFailed, "boundsCheckFailed", "Indexed passed the end of an array")
	cg.branch(ok, passed, failed)
	cg.label(passed)
}

// limitCheck throws unless a shift or rotate amount is below limit.
func (cg *CodeGen) limitCheck(amount element, limit uint32) {
	if cg.cfg.Unsafe || (cg.stmt != nil && cg.stmt.Generated && !cg.debug) {
		return
	}
	if limit > parser.WordWidth {
		limit = parser.WordWidth
	}
	if amount.typ.Width < 32 && uint64(limit) >= uint64(1)<<amount.typ.Width {
		return
	}
	ok := cg.icmp(enum.IPredULT, amount.val, intConst(amount.typ.Width, int64(limit)))
	passed := cg.newLabel("limitCheckPassed")
	failed := cg.throwFailedLabel(&cg.fn.limitFailed, "limitCheckFailed", "Shift or rotate by more than integer width")
	cg.branch(ok, passed, failed)
	cg.label(passed)
}

// copyArray deep copies src into dest.
func (cg *CodeGen) copyArray(dest, src element, freeDest bool) {
	if freeDest {
		cg.callFree(dest)
	}
	cg.call("runtime_copyArray", dest.val, src.val, cg.elemSize(dest.typ), i1(hasSubArrays(dest.typ)))
}

// moveArray transfers src into dest, leaving src empty.
func (cg *CodeGen) moveArray(dest, src element, freeDest bool) {
	if freeDest {
		cg.callFree(dest)
	}
	cg.call("runtime_moveArray", dest.val, src.val)
}

// updateBackPointers refreshes the owner pointer of every array reachable from e.
func (cg *CodeGen) updateBackPointers(e element) {
	switch {
	case e.typ.IsArray():
		cg.call("runtime_updateArrayBackPointer", e.val)
	case e.typ.Kind == parser.KindTuple || e.typ.Kind == parser.KindStruct:
		for i, f := range e.typ.Types {
			if f.ContainsArray() {
				cg.updateBackPointers(cg.indexTuple(e, i))
			}
		}
	}
}

// storeValue stores a tuple, object or scalar src through dest.
func (cg *CodeGen) storeValue(dest, src element) {
	v := src.val
	if src.isRef || src.typ.PassedByReference() {
		v = cg.load(cg.llType(dest.typ), src.val)
	}
	cg.store(v, dest.val)
	if dest.typ.ContainsArray() {
		cg.updateBackPointers(dest)
	}
}

// unrefCurrent drops the object held by dest before it is overwritten.
func (cg *CodeGen) unrefCurrent(dest element) {
	if !isRefCounted(dest.typ) {
		return
	}
	cg.unrefObject(cg.derefAny(dest))
}

// moveElement moves src into dest without copying heap state.
func (cg *CodeGen) moveElement(dest, src element, freeDest bool) {
	if src.needsFree {
		cg.release(src)
	}
	if dest.typ.IsArray() {
		cg.moveArray(dest, src, freeDest)
		return
	}
	if freeDest {
		if dest.typ.ContainsArray() {
			cg.freeElement(dest)
		}
		cg.unrefCurrent(dest)
	}
	cg.storeValue(dest, src)
}

// copyElement deep copies src into dest, reffing copied objects.
func (cg *CodeGen) copyElement(dest, src element, freeDest bool) {
	switch {
	case dest.typ.IsArray():
		cg.copyArray(dest, src, freeDest)
	case dest.typ.Kind == parser.KindTuple || dest.typ.Kind == parser.KindStruct:
		for i := range dest.typ.Types {
			s := cg.indexTuple(src, i)
			d := cg.indexTuple(dest, i)
			cg.copyElement(d, s, freeDest)
		}
	case isRefCounted(dest.typ):
		v := cg.deref(src)
		if !v.isNull {
			cg.refObject(v)
		}
		if freeDest {
			cg.unrefCurrent(dest)
		}
		cg.storeValue(dest, v)
	default:
		cg.storeValue(dest, cg.deref(src))
	}
}

// copyOrMoveElement moves owned temporaries and copies everything holding heap
// state that someone else still owns.
func (cg *CodeGen) copyOrMoveElement(dest, src element, freeDest bool) {
	if !src.needsFree && (src.typ.ContainsArray() || isRefCounted(src.typ)) && !src.isNull {
		cg.copyElement(dest, src, freeDest)
		return
	}
	cg.moveElement(dest, src, freeDest)
}

func (cg *CodeGen) refObject(e element) {
	if !isRefCounted(e.typ) {
		return
	}
	cg.callFunc(cg.classHelper(e.typ.Class, "ref"), e.val)
}

func (cg *CodeGen) unrefObject(e element) {
	if !isRefCounted(e.typ) {
		return
	}
	cg.callFunc(cg.classHelper(e.typ.Class, "unref"), e.val)
}

// freeElement releases the heap state of an owned value.
func (cg *CodeGen) freeElement(e element) {
	t := e.typ
	switch {
	case t.Kind == parser.KindTuple || t.Kind == parser.KindStruct:
		for i, f := range t.Types {
			if f.ContainsArray() || isRefCounted(f) {
				cg.freeElement(cg.indexTuple(e, i))
			}
		}
	case t.Kind == parser.KindClass:
		cg.unrefObject(cg.derefAny(e))
	case t.Kind == parser.KindArray && isRefCounted(t.BaseType()):
		class := t.BaseType().Class
		fn := constant.NewBitCast(cg.classHelper(class, "unref"), types.I8Ptr)
		cg.call("runtime_foreachArrayObject", e.val, fn, i32(class.RefWidth), i32(t.ArrayDepth()))
		cg.callFree(e)
	case t.IsArray():
		cg.callFree(e)
	}
}

func (cg *CodeGen) callFree(e element) {
	cg.call("runtime_freeArray", e.val)
}

// sliceArray pushes a new array holding src[lo:hi].
func (cg *CodeGen) sliceArray(src, lo, hi element) {
	dest := cg.tempValue(src.typ)
	cg.call("runtime_sliceArray", dest.val, src.val, cg.widen(lo), cg.widen(hi),
		cg.elemSize(src.typ), i1(hasSubArrays(src.typ)))
	cg.push(dest)
}

// concatArrays pushes a new array holding left followed by right.
func (cg *CodeGen) concatArrays(t *parser.Datatype, left, right element) {
	dest := cg.tempValue(t)
	cg.copyArray(dest, left, false)
	cg.call("runtime_concatArrays", dest.val, right.val, cg.elemSize(t), i1(hasSubArrays(t)))
	cg.push(dest)
}

// allocArray pushes a new array of n elements.
func (cg *CodeGen) allocArray(t *parser.Datatype, n value.Value) element {
	dest := cg.tempValue(t)
	cg.call("runtime_allocArray", dest.val, n, cg.elemSize(t), i1(hasSubArrays(t)))
	return dest
}
