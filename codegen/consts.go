package codegen

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// signedBigintFlag is the leading word of a signed big integer constant.
const signedBigintFlag = 1

// constPool interns string literals by content and big integer literals by
// width, signedness and value.
type constPool struct {
	strings  map[string]*ir.Global
	bigints  map[string]*ir.Global
	numStrs  int
	numArray int
}

func newConstPool() *constPool {
	return &constPool{strings: map[string]*ir.Global{}, bigints: map[string]*ir.Global{}}
}

// addArrayConst adds a constant %struct.runtime_array header named name and
// its private data global to the module.
func (cg *CodeGen) addArrayConst(name string, init constant.Constant, n int64) *ir.Global {
	data := ir.NewGlobalDef(name+".data", init)
	data.Linkage = enum.LinkagePrivate
	data.UnnamedAddr = enum.UnnamedAddrUnnamedAddr
	data.Immutable = true
	data.Align = ir.Align(parser.WordWidth / 8)
	header := ir.NewGlobalDef(name, constant.NewStruct(runtimeArray,
		constant.NewBitCast(data, types.I64Ptr), i64(n)))
	header.Linkage = enum.LinkageInternal
	header.Immutable = true
	cg.module.Globals = append(cg.module.Globals, header, data)
	return header
}

// stringConst returns the global holding a string literal.
func (cg *CodeGen) stringConst(s string) *ir.Global {
	if g, ok := cg.pool.strings[s]; ok {
		return g
	}
	cg.pool.numStrs++
	g := cg.addArrayConst(fmt.Sprintf(".str%d", cg.pool.numStrs), constant.NewCharArrayFromString(s), int64(len(s)))
	cg.pool.strings[s] = g
	return g
}

// bigintWords encodes a big integer in the runtime format: a signedness
// word, a width header, then little endian 31-bit limbs.
func bigintWords(v *big.Int, width uint32, signed bool) []uint32 {
	var numWords uint32
	if signed {
		numWords = 2 + (width+30)/31
	} else {
		numWords = 3 + width/31
		width++
	}
	words := make([]uint32, numWords)
	if signed {
		words[0] = signedBigintFlag
	}
	words[1] = (width/31)<<5 | width%31
	limbs := uint(numWords - 2)
	m := new(big.Int).Set(v)
	if m.Sign() < 0 {
		m.Add(m, new(big.Int).Lsh(big.NewInt(1), 31*limbs))
	}
	mask := big.NewInt(0x7fffffff)
	for i := uint(0); i < limbs; i++ {
		limb := new(big.Int).Rsh(m, 31*i)
		words[2+i] = uint32(limb.And(limb, mask).Uint64())
	}
	return words
}

// bigintConst returns the global holding a big integer literal.
func (cg *CodeGen) bigintConst(v *big.Int, t *parser.Datatype) *ir.Global {
	key := fmt.Sprintf("%s:%d:%s", t.Kind, t.Width, v)
	if g, ok := cg.pool.bigints[key]; ok {
		return g
	}
	words := bigintWords(v, t.Width, t.Signed())
	elems := make([]constant.Constant, len(words))
	for i, w := range words {
		elems[i] = constant.NewInt(types.I32, int64(w))
	}
	g := cg.arrayConst(types.I32, elems)
	cg.pool.bigints[key] = g
	return g
}

// arrayConst adds a constant array of scalar elements and returns its header.
func (cg *CodeGen) arrayConst(elemType types.Type, elems []constant.Constant) *ir.Global {
	cg.pool.numArray++
	arrayType := types.NewArray(uint64(len(elems)), elemType)
	return cg.addArrayConst(fmt.Sprintf(".array%d", cg.pool.numArray), constant.NewArray(arrayType, elems...), int64(len(elems)))
}

// isConstArray reports whether an array literal can live in a constant global.
func isConstArray(e *parser.Expr) bool {
	for _, c := range e.Children {
		switch c.Kind {
		case parser.ExprInteger:
			if c.Type.IsBigint() {
				return false
			}
		case parser.ExprBool, parser.ExprNull:
		default:
			return false
		}
	}
	return len(e.Children) > 0
}

// primitiveArrayConst adds an array literal of integer, bool or null elements.
func (cg *CodeGen) primitiveArrayConst(e *parser.Expr) *ir.Global {
	first := e.Children[0]
	var elemType *types.IntType
	switch first.Kind {
	case parser.ExprInteger:
		elemType = types.NewInt(uint64(first.Type.Width))
	case parser.ExprBool:
		elemType = types.I1
	default:
		elemType = types.NewInt(uint64(first.Type.Width))
	}
	elems := make([]constant.Constant, len(e.Children))
	for i, c := range e.Children {
		switch c.Kind {
		case parser.ExprInteger:
			elems[i] = &constant.Int{Typ: elemType, X: new(big.Int).Set(c.Int)}
		case parser.ExprBool:
			elems[i] = constant.NewBool(c.Bool)
		default:
			elems[i] = constant.NewInt(elemType, -1)
		}
	}
	return cg.arrayConst(elemType, elems)
}

// escapeString escapes bytes for a c"..." literal.
func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c >= ' ' && c <= '~' && c != '"':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "\\%02X", c)
		}
	}
	return b.String()
}
