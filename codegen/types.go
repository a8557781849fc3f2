package codegen

import (
	"fmt"
	"strings"

	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir/types"
)

// runtimeArray is %struct.runtime_array, the header of every array, string
// and big integer.
var runtimeArray = newRuntimeArray()

func newRuntimeArray() *types.StructType {
	st := types.NewStruct(types.NewPointer(types.I64), types.I64)
	st.SetName("struct.runtime_array")
	return st
}

type typeKey struct {
	name string
	def  bool
}

// typeCache memoizes LLVM types by datatype spelling and names tuple struct types.
type typeCache struct {
	llTypes map[typeKey]types.Type
	tuples  map[string]*types.StructType
}

func newTypeCache() *typeCache {
	return &typeCache{
		llTypes: map[typeKey]types.Type{},
		tuples:  map[string]*types.StructType{},
	}
}

// paramType is the type a parameter is passed as.
func (cg *CodeGen) paramType(v *parser.Variable) types.Type {
	t := cg.llType(v.Type)
	if !v.Const || v.Type.PassedByReference() {
		return types.NewPointer(t)
	}
	return t
}

// llRefType is the type of a value of the datatype as an operand: types
// passed by reference are pointers.
func (cg *CodeGen) llRefType(t *parser.Datatype) types.Type {
	key := typeKey{t.String(), false}
	if typ, ok := cg.types.llTypes[key]; ok {
		return typ
	}
	typ := cg.llType(t)
	if t.PassedByReference() {
		typ = types.NewPointer(typ)
	}
	cg.types.llTypes[key] = typ
	return typ
}

func (cg *CodeGen) llType(t *parser.Datatype) types.Type {
	if t.Kind == parser.KindTuple || t.Kind == parser.KindStruct {
		// Structs of the same name may differ in fields.
		return cg.tupleType(t)
	}
	key := typeKey{t.String(), true}
	if typ, ok := cg.types.llTypes[key]; ok {
		return typ
	}
	typ := cg.newLLType(t)
	cg.types.llTypes[key] = typ
	return typ
}

func (cg *CodeGen) newLLType(t *parser.Datatype) types.Type {
	switch t.Kind {
	case parser.KindBool:
		return types.I1
	case parser.KindUint, parser.KindInt:
		if t.IsBigint() {
			return runtimeArray
		}
		return types.NewInt(uint64(t.Width))
	case parser.KindModint:
		if t.Modulus != nil {
			return cg.llType(t.Modulus.Type)
		}
		return cg.llType(parser.UintType(t.Width))
	case parser.KindFloat:
		switch t.Width {
		case 32:
			return types.Float
		case 64:
			return types.Double
		}
		cg.fail("Unexpected float width %d", t.Width)
	case parser.KindString, parser.KindArray:
		return runtimeArray
	case parser.KindClass, parser.KindNull, parser.KindEnum:
		return types.NewInt(uint64(t.Width))
	case parser.KindFuncptr:
		ret := cg.llRefType(t.Ret)
		var params []types.Type
		if t.Ret.PassedByReference() {
			params = append(params, ret)
			ret = types.Void
		}
		for _, p := range t.Types {
			params = append(params, cg.llRefType(p))
		}
		return types.NewPointer(types.NewFunc(ret, params...))
	case parser.KindTuple, parser.KindStruct:
		return cg.tupleType(t)
	case parser.KindNone:
		return types.Void
	}
	cg.fail("Unexpected type %s", t)
	return nil
}

// tupleType returns the named struct for a tuple or struct, adding it to the
// module on first use.
func (cg *CodeGen) tupleType(t *parser.Datatype) *types.StructType {
	fields := make([]types.Type, len(t.Types))
	names := make([]string, len(t.Types))
	for i, f := range t.Types {
		fields[i] = cg.llType(f)
		names[i] = fields[i].String()
	}
	body := strings.Join(names, ", ")
	if st, ok := cg.types.tuples[body]; ok {
		return st
	}
	st := types.NewStruct(fields...)
	st.SetName(fmt.Sprintf("struct.runtime_tuple%d", len(cg.types.tuples)+1))
	cg.types.tuples[body] = st
	cg.module.TypeDefs = append(cg.module.TypeDefs, st)
	return st
}

// elementOf is the element type of an array-like datatype: u8 for strings
// and u32 for big integer limbs.
func elementOf(t *parser.Datatype) *parser.Datatype {
	switch {
	case t.Kind == parser.KindString:
		return parser.UintType(8)
	case t.IsBigint():
		return parser.UintType(32)
	}
	return t.Elem
}

func isRefCounted(t *parser.Datatype) bool {
	return t.Kind == parser.KindClass && t.Class != nil && t.Class.RefCounted
}

// hasSubArrays reports whether array elements are themselves arrays.
func hasSubArrays(t *parser.Datatype) bool {
	return t.Kind == parser.KindArray && t.Elem.ContainsArray()
}

// sizeT is the machine size type.
var sizeT = parser.UintType(parser.WordWidth)

// sizeType is the LLVM type of sizeT.
var sizeType = types.I64
