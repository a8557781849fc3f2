package codegen

import (
	"math/big"
	"strings"
	"testing"

	"github.com/google/rune-sub002/parser"
)

func Test_Consts_BigintWordsUnsigned(t *testing.T) {
	words := bigintWords(big.NewInt(5), 256, false)
	if len(words) != 11 {
		t.Fatalf("want 11 words, got %d", len(words))
	}
	if words[0] != 0 || words[1] != 265 || words[2] != 5 {
		t.Fatalf("bad header or limb: %v", words[:3])
	}
	for _, w := range words[3:] {
		if w != 0 {
			t.Fatalf("upper limbs should be zero: %v", words)
		}
	}
}

func Test_Consts_BigintWordsSigned(t *testing.T) {
	words := bigintWords(big.NewInt(7), 256, true)
	if len(words) != 11 || words[0] != signedBigintFlag || words[1] != 264 || words[2] != 7 {
		t.Fatalf("bad signed encoding: %v", words)
	}
	neg := bigintWords(big.NewInt(-1), 256, true)
	for i, w := range neg[2:] {
		if w != 0x7fffffff {
			t.Fatalf("limb %d of -1: want 0x7fffffff, got %#x", i, w)
		}
	}
}

func Test_Consts_BigintWordsSplitsLimbs(t *testing.T) {
	v := new(big.Int).Lsh(big.NewInt(1), 31)
	words := bigintWords(v, 128, false)
	if words[2] != 0 || words[3] != 1 {
		t.Fatalf("2^31 should carry into the second limb: %v", words)
	}
}

func Test_Consts_ArrayConstGlobals(t *testing.T) {
	cg := NewCodeGen(nil, Config{ModuleName: "t"})
	g := cg.stringConst("hi\n")
	if g.Name() != ".str1" {
		t.Fatalf("want .str1, got %s", g.Name())
	}
	out := cg.module.String()
	for _, want := range []string{
		"@.str1 = internal constant %struct.runtime_array { i64* bitcast ([3 x i8]* @.str1.data to i64*), i64 3 }",
		`@.str1.data = private unnamed_addr constant [3 x i8] c"hi\0A", align 8`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("module does not contain %q\n--- module ---\n%s", want, out)
		}
	}
}

func Test_Consts_EscapeString(t *testing.T) {
	if got := escapeString("a\"b\\c\n"); got != `a\22b\\c\0A` {
		t.Fatalf("bad escape: %s", got)
	}
}

func Test_Consts_PoolInternsByContent(t *testing.T) {
	cg := NewCodeGen(nil, Config{ModuleName: "t"})
	a := cg.stringConst("hello")
	b := cg.stringConst("hello")
	c := cg.stringConst("world")
	if a != b || a == c {
		t.Fatalf("strings should intern by content: %s %s %s", a, b, c)
	}
	u := cg.bigintConst(big.NewInt(9), parser.UintType(256))
	v := cg.bigintConst(big.NewInt(9), parser.UintType(256))
	w := cg.bigintConst(big.NewInt(9), parser.UintType(512))
	if u != v || u == w {
		t.Fatalf("big integers intern by width and value: %s %s %s", u, v, w)
	}
}
