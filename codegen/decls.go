package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

type protoParam struct {
	typ     types.Type
	zeroext bool
}

// proto is the prototype of a runtime entry point.
type proto struct {
	ret        types.Type
	params     []protoParam
	variadic   bool
	noreturn   bool
	local      bool
	noalias    bool
	retZeroext bool
}

var (
	arrayPtr = types.NewPointer(runtimeArray)

	pArr  = protoParam{typ: arrayPtr}
	pI64  = protoParam{typ: types.I64}
	pI32  = protoParam{typ: types.I32}
	pI32z = protoParam{typ: types.I32, zeroext: true}
	pI1   = protoParam{typ: types.I1}
	pI1z  = protoParam{typ: types.I1, zeroext: true}
	pI8p  = protoParam{typ: types.I8Ptr}
	pI8pp = protoParam{typ: types.NewPointer(types.I8Ptr)}
	pMeta = protoParam{typ: types.Metadata}
)

func takes(ps ...protoParam) []protoParam {
	return ps
}

// runtimeProtos lists every runtime entry point the generated code may call.
var runtimeProtos = map[string]proto{
	"calloc": {ret: types.I8Ptr, params: takes(pI64, pI64), local: true, noalias: true},

	"runtime_initArrayOfStringsFromC":     {ret: types.Void, params: takes(pArr, pI8pp, pI32), local: true},
	"runtime_initArrayOfStringsFromCUTF8": {ret: types.Void, params: takes(pArr, pI8pp, pI32), local: true},
	"runtime_concatArrays":                {ret: types.Void, params: takes(pArr, pArr, pI64, pI1z), local: true},
	"runtime_xorStrings":                  {ret: types.Void, params: takes(pArr, pArr, pArr), local: true},
	"runtime_freeArray":                   {ret: types.Void, params: takes(pArr), local: true},
	"runtime_foreachArrayObject":          {ret: types.Void, params: takes(pArr, pI8p, pI32, pI32), local: true},
	"runtime_allocArray":                  {ret: types.Void, params: takes(pArr, pI64, pI64, pI1z), local: true},
	"runtime_appendArrayElement":          {ret: types.Void, params: takes(pArr, pI8p, pI64, pI1z, pI1z), local: true},
	"runtime_arrayStart":                  {ret: types.Void, local: true},
	"runtime_arrayStop":                   {ret: types.Void, local: true},
	"runtime_compactArrayHeap":            {ret: types.Void, local: true},
	"runtime_copyArray":                   {ret: types.Void, params: takes(pArr, pArr, pI64, pI1z), local: true},
	"runtime_moveArray":                   {ret: types.Void, params: takes(pArr, pArr), local: true},
	"runtime_sliceArray":                  {ret: types.Void, params: takes(pArr, pArr, pI64, pI64, pI64, pI1z), local: true},
	"runtime_reverseArray":                {ret: types.Void, params: takes(pArr, pI64, pI1z), local: true},
	"runtime_resizeArray":                 {ret: types.Void, params: takes(pArr, pI64, pI64, pI1z), local: true},
	"runtime_nativeIntToString":           {ret: types.Void, params: takes(pArr, pI64, pI32, pI1z), local: true},
	"runtime_puts":                        {ret: types.Void, params: takes(pArr), local: true},
	"runtime_stringToHex":                 {ret: types.Void, params: takes(pArr, pArr), local: true},
	"runtime_hexToString":                 {ret: types.Void, params: takes(pArr, pArr), local: true},
	"runtime_stringFind":                  {ret: types.I64, params: takes(pArr, pArr, pI64), local: true},
	"runtime_stringRfind":                 {ret: types.I64, params: takes(pArr, pArr, pI64), local: true},
	"runtime_throwException":              {ret: types.Void, params: takes(pArr), variadic: true, noreturn: true, local: true},
	"runtime_throwOverflow":               {ret: types.Void, noreturn: true, local: true},
	"runtime_sprintf":                     {ret: types.Void, params: takes(pArr, pArr), variadic: true, local: true},
	"runtime_generateTrueRandomValue":     {ret: types.I64, params: takes(pI32), local: true},
	"runtime_generateTrueRandomBigint":    {ret: types.Void, params: takes(pArr, pI32), local: true},

	"llvm.dbg.declare": {ret: types.Void, params: takes(pMeta, pMeta, pMeta)},
	"llvm.dbg.value":   {ret: types.Void, params: takes(pMeta, pMeta, pMeta)},

	"runtime_compareArrays":            {ret: types.I1, params: takes(pI32, pI32, pArr, pArr, pI64, pI1z, pI1z)},
	"runtime_updateArrayBackPointer":   {ret: types.Void, params: takes(pArr)},
	"runtime_bigintCast":               {ret: types.Void, params: takes(pArr, pArr, pI32z, pI1z, pI1z, pI1z)},
	"runtime_integerToBigint":          {ret: types.Void, params: takes(pArr, pI64, pI32, pI1, pI1), local: true},
	"runtime_bigintToInteger":          {ret: types.I64, params: takes(pArr)},
	"runtime_bigintToIntegerTrunc":     {ret: types.I64, params: takes(pArr)},
	"runtime_bigintToString":           {ret: types.Void, params: takes(pArr, pArr, pI32)},
	"runtime_bigintDecodeBigEndian":    {ret: types.Void, params: takes(pArr, pArr, pI32z, pI1z, pI1z)},
	"runtime_bigintDecodeLittleEndian": {ret: types.Void, params: takes(pArr, pArr, pI32z, pI1z, pI1z)},
	"runtime_bigintEncodeBigEndian":    {ret: types.Void, params: takes(pArr, pArr)},
	"runtime_bigintEncodeLittleEndian": {ret: types.Void, params: takes(pArr, pArr)},
	"runtime_compareBigints":           {ret: types.I1, params: takes(pI32, pArr, pArr), retZeroext: true},
	"runtime_bigintAdd":                {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintAddTrunc":           {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintSub":                {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintSubTrunc":           {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintMul":                {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintMulTrunc":           {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintDiv":                {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintMod":                {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintExp":                {ret: types.Void, params: takes(pArr, pArr, pI32)},
	"runtime_bigintNegate":             {ret: types.Void, params: takes(pArr, pArr)},
	"runtime_bigintNegateTrunc":        {ret: types.Void, params: takes(pArr, pArr)},
	"runtime_bigintComplement":         {ret: types.Void, params: takes(pArr, pArr)},
	"runtime_bigintRotl":               {ret: types.Void, params: takes(pArr, pArr, pI32)},
	"runtime_bigintRotr":               {ret: types.Void, params: takes(pArr, pArr, pI32)},
	"runtime_bigintShl":                {ret: types.Void, params: takes(pArr, pArr, pI32)},
	"runtime_bigintShr":                {ret: types.Void, params: takes(pArr, pArr, pI32)},
	"runtime_bigintBitwiseAnd":         {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintBitwiseOr":          {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintBitwiseXor":         {ret: types.Void, params: takes(pArr, pArr, pArr)},
	"runtime_bigintModularAdd":         {ret: types.Void, params: takes(pArr, pArr, pArr, pArr)},
	"runtime_bigintModularSub":         {ret: types.Void, params: takes(pArr, pArr, pArr, pArr)},
	"runtime_bigintModularMul":         {ret: types.Void, params: takes(pArr, pArr, pArr, pArr)},
	"runtime_bigintModularDiv":         {ret: types.Void, params: takes(pArr, pArr, pArr, pArr)},
	"runtime_bigintModularExp":         {ret: types.Void, params: takes(pArr, pArr, pArr, pArr)},
	"runtime_smallnumMul":              {ret: types.I64, params: takes(pI64, pI64, pI1z, pI1z)},
	"runtime_smallnumDiv":              {ret: types.I64, params: takes(pI64, pI64, pI1z, pI1z)},
	"runtime_smallnumMod":              {ret: types.I64, params: takes(pI64, pI64, pI1z, pI1z)},
	"runtime_smallnumExp":              {ret: types.I64, params: takes(pI64, pI32, pI1z, pI1z)},
	"runtime_smallnumModReduce":        {ret: types.I64, params: takes(pI64, pI64, pI1z, pI1z)},
	"runtime_smallnumModularAdd":       {ret: types.I64, params: takes(pI64, pI64, pI64, pI1z)},
	"runtime_smallnumModularSub":       {ret: types.I64, params: takes(pI64, pI64, pI64, pI1z)},
	"runtime_smallnumModularMul":       {ret: types.I64, params: takes(pI64, pI64, pI64, pI1z)},
	"runtime_smallnumModularDiv":       {ret: types.I64, params: takes(pI64, pI64, pI64, pI1z)},
	"runtime_smallnumModularExp":       {ret: types.I64, params: takes(pI64, pI64, pI64, pI1z)},
}

// declCatalog holds the runtime functions and intrinsics declared so far
type declCatalog struct {
	funcs map[string]*ir.Func
}

func newDeclCatalog() *declCatalog {
	return &declCatalog{funcs: map[string]*ir.Func{}}
}

// runtime returns the declaration of a runtime function, adding it to the
// module the first time it is used.
func (cg *CodeGen) runtime(name string) *ir.Func {
	if f, ok := cg.decls.funcs[name]; ok {
		return f
	}
	p, ok := runtimeProtos[name]
	if !ok {
		cg.fail("Unknown declaration: %s", name)
	}
	ps := make([]*ir.Param, len(p.params))
	for i, pp := range p.params {
		ps[i] = ir.NewParam("", pp.typ)
		if pp.zeroext {
			ps[i].Attrs = append(ps[i].Attrs, enum.ParamAttrZeroExt)
		}
	}
	f := ir.NewFunc(name, p.ret, ps...)
	f.Sig.Variadic = p.variadic
	if p.local {
		f.Preemption = enum.PreemptionDSOLocal
	}
	if p.noreturn {
		f.FuncAttrs = append(f.FuncAttrs, enum.FuncAttrNoReturn)
	}
	if p.noalias {
		f.ReturnAttrs = append(f.ReturnAttrs, enum.ReturnAttrNoAlias)
	}
	if p.retZeroext {
		f.ReturnAttrs = append(f.ReturnAttrs, enum.ReturnAttrZeroExt)
	}
	cg.declareFunc(f)
	return f
}

// intrinsic declares an overloaded LLVM intrinsic once per name.
func (cg *CodeGen) intrinsic(name string, ret types.Type, paramTypes ...types.Type) *ir.Func {
	if f, ok := cg.decls.funcs[name]; ok {
		return f
	}
	ps := make([]*ir.Param, len(paramTypes))
	for i, t := range paramTypes {
		ps[i] = ir.NewParam("", t)
	}
	f := ir.NewFunc(name, ret, ps...)
	cg.declareFunc(f)
	return f
}

func (cg *CodeGen) declareFunc(f *ir.Func) {
	cg.decls.funcs[f.Name()] = f
	cg.module.Funcs = append(cg.module.Funcs, f)
}

// call emits a call to a runtime function.
func (cg *CodeGen) call(name string, args ...value.Value) *ir.InstCall {
	return cg.callFunc(cg.runtime(name), args...)
}

// overflowIntrinsic is llvm.<op>.with.overflow.iW, returning {iW, i1}.
func (cg *CodeGen) overflowIntrinsic(op string, width uint32) *ir.Func {
	w := types.NewInt(uint64(width))
	return cg.intrinsic(fmt.Sprintf("llvm.%s.with.overflow.i%d", op, width), types.NewStruct(w, types.I1), w, w)
}

// funnelShift is llvm.fshl.iW or llvm.fshr.iW.
func (cg *CodeGen) funnelShift(op string, width uint32) *ir.Func {
	w := types.NewInt(uint64(width))
	return cg.intrinsic(fmt.Sprintf("llvm.%s.i%d", op, width), w, w, w, w)
}
