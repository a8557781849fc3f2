package codegen

import (
	"testing"

	"github.com/google/rune-sub002/parser"
)

func Test_Types_MemoBySpelling(t *testing.T) {
	cg := NewCodeGen(nil, Config{ModuleName: "t"})
	if cg.llType(parser.UintType(32)) != cg.llType(parser.UintType(32)) {
		t.Fatalf("equal datatypes should share one LLVM type")
	}
	if got := cg.llRefType(parser.StringType()).String(); got != "%struct.runtime_array*" {
		t.Fatalf("string operand type: got %s", got)
	}
	if got := cg.llType(parser.StringType()).String(); got != "%struct.runtime_array" {
		t.Fatalf("string value type: got %s", got)
	}
}

func Test_Types_DistinctTuplesGetDistinctStructs(t *testing.T) {
	cg := NewCodeGen(nil, Config{ModuleName: "t"})
	a := cg.llType(parser.TupleType(parser.UintType(8), parser.StringType()))
	b := cg.llType(parser.TupleType(parser.UintType(8), parser.StringType()))
	c := cg.llType(parser.TupleType(parser.UintType(16)))
	if a != b {
		t.Fatalf("equal tuples should share a struct: %s %s", a, b)
	}
	if a.String() == c.String() {
		t.Fatalf("different tuples share the name %s", a)
	}
	if got := cg.llRefType(parser.TupleType(parser.UintType(16))).String(); got != c.String()+"*" {
		t.Fatalf("tuples are passed by pointer: got %s", got)
	}
}
