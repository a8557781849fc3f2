package parser

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

// --- helpers ---------------------------------------------------------------

func mustRead(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := ReadString("test.rn", src)
	if err != nil {
		t.Fatalf("ReadString error: %v\nsource:\n%s", err, src)
	}
	return prog
}

func wantReadError(t *testing.T, src, substr string) {
	t.Helper()
	_, err := ReadString("bad.rn", src)
	if err == nil {
		t.Fatalf("expected error containing %q, got none", substr)
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if !strings.Contains(perr.Msg, substr) {
		t.Fatalf("error %q does not contain %q", perr.Msg, substr)
	}
}

func wantType(t *testing.T, e *Expr, want string) {
	t.Helper()
	if got := e.Type.String(); got != want {
		t.Fatalf("%s: want type %s, got %s", e, want, got)
	}
}

func findSig(t *testing.T, prog *Program, path string) *Signature {
	t.Helper()
	for _, sig := range prog.Signatures {
		if sig.Path == path {
			return sig
		}
	}
	t.Fatalf("no signature %s", path)
	return nil
}

// --- program structure -----------------------------------------------------

func Test_Reader_ProgramStructure(t *testing.T) {
	prog := mustRead(t, `
(program "demo"
  (file "demo.rn" "/src")
  (var count u32 var (init 0))
  (func sum (params (var a i32) (var b i32)) (returns i32)
    (body (return (add a b))))
  (main (body (call (call sum 1i32 2i32)))))
`)
	if prog.Name != "demo" {
		t.Fatalf("want name demo, got %q", prog.Name)
	}
	if len(prog.Files) != 1 || prog.Files[0].Name != "demo.rn" || prog.Files[0].Directory != "/src" {
		t.Fatalf("bad files: %#v", prog.Files)
	}
	if prog.Root.File != prog.Files[0] {
		t.Fatalf("root block should live in the first file")
	}
	if prog.Main().Kind != FuncModule {
		t.Fatalf("main should be the module function")
	}

	count := prog.Root.Lookup("count")
	if count == nil || count.Const || count.IsLocal() {
		t.Fatalf("want mutable global count, got %#v", count)
	}
	wantType(t, count.Initializer, "u32")

	sig := findSig(t, prog, "sum")
	if sig.ReturnType.String() != "i32" {
		t.Fatalf("want i32 return, got %s", sig.ReturnType)
	}
	params := sig.Block.Params()
	if len(params) != 2 || params[0].Name != "a" || !params[0].Const {
		t.Fatalf("bad params: %#v", params)
	}
	if !params[1].IsLocal() {
		t.Fatalf("params are frame variables")
	}
	if sig.Block.File != prog.Files[0] {
		t.Fatalf("function should default to file 0")
	}

	stmts := prog.Root.Statements
	if len(stmts) != 1 || stmts[0].Kind != StmtCall {
		t.Fatalf("want one call statement, got %#v", stmts)
	}
	call := stmts[0].Expr
	if call.Kind != ExprCall || call.Signature != sig {
		t.Fatalf("call should bind to sum: %#v", call)
	}
	wantType(t, call, "i32")
	if got := call.String(); got != "sum(1i32, 2i32)" {
		t.Fatalf("want sum(1i32, 2i32), got %s", got)
	}
}

func Test_Reader_ClassesStructsEnums(t *testing.T) {
	prog := mustRead(t, `
(program "shapes"
  (class Point (refwidth 16) refcounted (path "geo_Point")
    (members (var x i64) (var y i64)))
  (class Ghost unused)
  (struct Pair (left u8) (right string))
  (enum Color 8 (Red 0) (Green 1))
  (func Point (kind constructor) (class Point)
    (params (var self (class Point)) (var x i64)) (returns (class Point)))
  (func norm (kind method) (class Point)
    (params (var self (class Point))) (returns i64)
    (body (return (dot self x))))
  (main (body)))
`)
	if len(prog.Classes) != 2 {
		t.Fatalf("want 2 classes, got %d", len(prog.Classes))
	}
	point := prog.Classes[0]
	if point.RefWidth != 16 || !point.RefCounted || point.Path != "geo_Point" || !point.Instantiated {
		t.Fatalf("bad class: %#v", point)
	}
	if prog.Classes[1].Instantiated {
		t.Fatalf("Ghost should be uninstantiated")
	}
	if len(point.Members) != 2 || point.Members[0].ArrayVar == nil {
		t.Fatalf("members need per-class arrays: %#v", point.Members)
	}
	if got := point.Members[0].ArrayVar.Type.String(); got != "[i64]" {
		t.Fatalf("want [i64] member array, got %s", got)
	}

	ctor := findSig(t, prog, "Point")
	if ctor.Function.Kind != FuncConstructor || ctor.ReturnType.Class != point {
		t.Fatalf("bad constructor: %#v", ctor)
	}
	norm := findSig(t, prog, "geo_Point_norm")
	body := norm.Block.Statements[0].Expr
	wantType(t, body, "i64")
	if body.Kind != ExprDot || body.Children[1].Variable != point.Members[0] {
		t.Fatalf("dot should bind to member x")
	}
}

func Test_Reader_StructAndEnumTypes(t *testing.T) {
	prog := mustRead(t, `
(program "t"
  (struct Pair (left u8) (right string))
  (enum Color 8 (Red 0) (Green 3))
  (var p (struct Pair))
  (var c (enum Color) (init (dot Color Green)))
  (main (body)))
`)
	p := prog.Root.Lookup("p")
	if p.Type.Kind != KindStruct || len(p.Type.Types) != 2 {
		t.Fatalf("bad struct type: %s", p.Type)
	}
	if !p.Type.PassedByReference() || !p.Type.ContainsArray() {
		t.Fatalf("struct with a string is passed by reference and holds an array")
	}
	c := prog.Root.Lookup("c")
	if c.Type.Kind != KindEnum || c.Type.Width != 8 {
		t.Fatalf("bad enum type: %s", c.Type)
	}
	if v := c.Initializer.Children[1].Variable; v == nil || v.EntryValue != 3 {
		t.Fatalf("Green should carry entry value 3")
	}
}

// --- literals --------------------------------------------------------------

func Test_Reader_LiteralAdoption(t *testing.T) {
	prog := mustRead(t, `
(program "t"
  (func f (params (var x u16)) (returns u16)
    (body
      (assign (= x (add x 3)))
      (assign (= x (shl x 2)))
      (return 7)))
  (func g (params (var y i32)) (returns bool)
    (body (return (lt y -1))))
  (var big u256 (init 0xff))
  (var h f32 (init 1.5f32))
  (var lit u64 (init 5))
  (main (body)))
`)
	f := findSig(t, prog, "f").Block.Statements
	add := f[0].Expr.Children[1]
	wantType(t, add.Children[1], "u16")
	shl := f[1].Expr.Children[1]
	wantType(t, shl.Children[1], "u32")
	wantType(t, f[2].Expr, "u16")

	g := findSig(t, prog, "g").Block.Statements
	lt := g[0].Expr
	wantType(t, lt, "bool")
	wantType(t, lt.Children[1], "i32")
	if lt.Children[1].Int.Int64() != -1 {
		t.Fatalf("want -1, got %s", lt.Children[1].Int)
	}

	big := prog.Root.Lookup("big").Initializer
	wantType(t, big, "u256")
	if big.Int.Int64() != 255 {
		t.Fatalf("want 255, got %s", big.Int)
	}
	if !prog.Root.Lookup("big").Type.IsBigint() {
		t.Fatalf("u256 is a big integer")
	}
	h := prog.Root.Lookup("h").Initializer
	if h.Kind != ExprFloat || h.Float != 1.5 || h.Type.Width != 32 {
		t.Fatalf("bad float literal %#v", h)
	}
	wantType(t, prog.Root.Lookup("lit").Initializer, "u64")
}

func Test_Reader_SuffixedLiteralKeepsType(t *testing.T) {
	prog := mustRead(t, `
(program "t"
  (var a u8 (init 2u32))
  (main (body)))
`)
	wantType(t, prog.Root.Lookup("a").Initializer, "u32")
}

// --- statements ------------------------------------------------------------

func Test_Reader_StatementAttributes(t *testing.T) {
	prog := mustRead(t, `
(program "t"
  (var count u32 var)
  (main (body
    (assign (@ line 42 generated first) (= count 5))
    (print (@ unused) "skipped"))))
`)
	stmts := prog.Root.Statements
	s := stmts[0]
	if s.Line.Num != 42 || !s.Generated || !s.FirstAssignment || !s.Instantiated {
		t.Fatalf("bad attributes: %#v", s)
	}
	if s.Kind != StmtAssign || s.Expr.Kind != ExprAssign {
		t.Fatalf("want assignment, got %v", s.Kind)
	}
	wantType(t, s.Expr.Children[1], "u32")
	if stmts[1].Instantiated {
		t.Fatalf("unused statement should be uninstantiated")
	}
	if got := s.String(); got != "count = 5u32" {
		t.Fatalf("want %q, got %q", "count = 5u32", got)
	}
}

func Test_Reader_StatementLineForms(t *testing.T) {
	prog := mustRead(t, `
(program "t"
  (main (body
    (print (@ line 7) "bare")
    (print (@ (line 9) generated) "nested"))))
`)
	stmts := prog.Root.Statements
	if stmts[0].Line.Num != 7 || stmts[0].Generated {
		t.Fatalf("bare line form: got line %d generated %v", stmts[0].Line.Num, stmts[0].Generated)
	}
	if stmts[1].Line.Num != 9 || !stmts[1].Generated {
		t.Fatalf("nested line form: got line %d generated %v", stmts[1].Line.Num, stmts[1].Generated)
	}
	wantReadError(t, `(program "t" (main (body (print (@ line) "x"))))`, "line takes a number")
}

func Test_Reader_MinimalProgram(t *testing.T) {
	prog := mustRead(t, `(program "empty" (main (body)))`)
	if prog.Name != "empty" || prog.Root == nil || prog.Root.Line == nil {
		t.Fatalf("bad root: %#v", prog)
	}
	if prog.Root.Line.Num != 1 || prog.Root.Line.File != nil {
		t.Fatalf("root line: got %d", prog.Root.Line.Num)
	}
}

func Test_Reader_ControlFlow(t *testing.T) {
	prog := mustRead(t, `
(program "t"
  (func f (params (var x u8)) (locals (var i u32 var)) (returns none)
    (body
      (if (eq x 1) (print "one"))
      (elseif (eq x 2) (print "two"))
      (else (print "many"))
      (do (assign (+= i 1)))
      (while (lt i 10))
      (while (gt i 0) (assign (-= i 1)))
      (for (= i 0) (lt i 3) (+= i 1) (print i))
      (switch x
        (case (1 2) (print "small"))
        (default (print "big")))))
  (main (body)))
`)
	sig := findSig(t, prog, "f")
	if len(sig.Block.Params()) != 1 || sig.Block.Lookup("i").Kind != VarLocal {
		t.Fatalf("locals follow params")
	}
	stmts := sig.Block.Statements
	kinds := []StmtKind{StmtIf, StmtElseIf, StmtElse, StmtDo, StmtWhile, StmtWhile, StmtFor, StmtSwitch}
	if len(stmts) != len(kinds) {
		t.Fatalf("want %d statements, got %d", len(kinds), len(stmts))
	}
	for i, k := range kinds {
		if stmts[i].Kind != k {
			t.Fatalf("statement %d: want kind %d, got %d", i, k, stmts[i].Kind)
		}
	}
	if stmts[4].Block != nil {
		t.Fatalf("do-while tail has no block")
	}
	if stmts[5].Block == nil || len(stmts[5].Block.Statements) != 1 {
		t.Fatalf("while loop keeps its body")
	}
	if got := stmts[6].String(); got != "for i = 0u32, i < 3u32, i += 1u32" {
		t.Fatalf("bad for header %q", got)
	}

	cases := stmts[7].Block.Statements
	if len(cases) != 2 || cases[0].Kind != StmtCase || cases[1].Kind != StmtDefault {
		t.Fatalf("bad switch cases: %#v", cases)
	}
	values := cases[0].Expr.Children
	if len(values) != 2 {
		t.Fatalf("want 2 case values, got %d", len(values))
	}
	for _, v := range values {
		wantType(t, v, "u8")
	}
}

func Test_Reader_TypeSwitch(t *testing.T) {
	prog := mustRead(t, `
(program "t"
  (func f (params (var x u32)) (returns none)
    (body (typeswitch x (case u32 (print "u32")) (default (print "other")))))
  (main (body)))
`)
	s := findSig(t, prog, "f").Block.Statements[0]
	if s.Kind != StmtTypeSwitch || s.Expr == nil {
		t.Fatalf("want typeswitch on x")
	}
	c := s.Block.Statements[0]
	if !c.Expr.Children[0].IsType() {
		t.Fatalf("typeswitch case holds a type")
	}
}

// --- print formats ---------------------------------------------------------

func Test_Reader_PrintFormat(t *testing.T) {
	prog := mustRead(t, `
(program "t"
  (var n u32)
  (var s string)
  (var xs (array i64))
  (main (body
    (print "50% of " n " c:\\dir")
    (print u32 " " s xs true))))
`)
	format, err := PrintFormat(prog.Root.Statements[0].Expr.Children)
	if err != nil {
		t.Fatalf("PrintFormat: %v", err)
	}
	if want := `50\% of %u32 c:\\dir`; format != want {
		t.Fatalf("want %q, got %q", want, format)
	}
	format, err = PrintFormat(prog.Root.Statements[1].Expr.Children)
	if err != nil {
		t.Fatalf("PrintFormat: %v", err)
	}
	if want := "u32 %s%[i64]%b"; format != want {
		t.Fatalf("want %q, got %q", want, format)
	}
}

func Test_Reader_FormatSpec(t *testing.T) {
	cases := []struct {
		typ  *Datatype
		want string
	}{
		{TupleType(UintType(8), StringType()), "(u8,s)"},
		{ArrayType(ArrayType(IntType(16))), "[[i16]]"},
		{FloatType(64), "f64"},
		{BoolType(), "b"},
	}
	for _, c := range cases {
		got, err := c.typ.FormatSpec()
		if err != nil {
			t.Fatalf("%s: %v", c.typ, err)
		}
		if got != c.want {
			t.Fatalf("%s: want %q, got %q", c.typ, c.want, got)
		}
	}
	if _, err := FuncptrType(NoneType()).FormatSpec(); err == nil {
		t.Fatalf("funcptr should not be printable")
	}
}

// --- datatypes -------------------------------------------------------------

func Test_Datatype_Predicates(t *testing.T) {
	if !UintType(65).IsBigint() || UintType(64).IsBigint() {
		t.Fatalf("big integers are wider than a word")
	}
	if !IntType(128).ContainsArray() || IntType(64).ContainsArray() {
		t.Fatalf("only big integers hold arrays")
	}
	if !TupleType(UintType(8)).PassedByReference() || TupleType(UintType(8)).ContainsArray() {
		t.Fatalf("tuples travel by reference")
	}
	if ArrayType(ArrayType(BoolType())).ArrayDepth() != 2 {
		t.Fatalf("want depth 2")
	}
	s := UintType(32).WithSecret(true)
	if s.String() != "secret(u32)" || UintType(32).Secret {
		t.Fatalf("WithSecret must copy")
	}
	if !s.WithSecret(false).Equal(UintType(32)) {
		t.Fatalf("revealed secret should equal plain type")
	}
}

// --- errors ----------------------------------------------------------------

func Test_Reader_Errors(t *testing.T) {
	wantReadError(t, `(program "t" (main (body (call nope))))`, "undefined identifier")
	wantReadError(t, `(program "t" (main (body (if 5))))`, "condition must be bool")
	wantReadError(t, `(program "a") (program "b")`, "expected a single")
	wantReadError(t, `(program "t" (var x u0) (main (body)))`, "unknown type")
	wantReadError(t, `(program "t" (bogus) (main (body)))`, "unknown item")
	wantReadError(t, `(program "t" (func f (kind weird)) (main (body)))`, "unknown function kind")
	wantReadError(t, `(program "t" (var xs (array u8)) (main (body (print (index xs 1 2)))))`, "takes 2 operands")
}

func Test_Reader_SyntaxError(t *testing.T) {
	_, err := ReadString("broken.rn", `(program "t"`)
	if err == nil {
		t.Fatalf("expected a syntax error")
	}
	var perr *Error
	if errors.As(err, &perr) {
		t.Fatalf("syntax errors come from the listing parser, got %v", perr)
	}
	if !strings.Contains(err.Error(), "parsing broken.rn") {
		t.Fatalf("error should name the listing: %v", err)
	}
}
