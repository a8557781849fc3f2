package codegen

import (
	"strings"
	"testing"

	"github.com/google/rune-sub002/parser"
	"github.com/pkg/errors"
)

// --- helpers ---------------------------------------------------------------

func gen(t *testing.T, src string, cfg Config) string {
	t.Helper()
	prog, err := parser.ReadString("test.rn", src)
	if err != nil {
		t.Fatalf("ReadString error: %v\nsource:\n%s", err, src)
	}
	var b strings.Builder
	if err := NewCodeGen(prog, cfg).Generate(&b); err != nil {
		t.Fatalf("Generate error: %v\nsource:\n%s", err, src)
	}
	return b.String()
}

func genError(t *testing.T, src string) error {
	t.Helper()
	prog, err := parser.ReadString("test.rn", src)
	if err != nil {
		t.Fatalf("ReadString error: %v\nsource:\n%s", err, src)
	}
	var b strings.Builder
	return NewCodeGen(prog, Config{}).Generate(&b)
}

func wantContains(t *testing.T, out, substr string) {
	t.Helper()
	if !strings.Contains(out, substr) {
		t.Fatalf("output does not contain %q\n--- output ---\n%s", substr, out)
	}
}

func wantMissing(t *testing.T, out, substr string) {
	t.Helper()
	if strings.Contains(out, substr) {
		t.Fatalf("output should not contain %q\n--- output ---\n%s", substr, out)
	}
}

func wantCount(t *testing.T, out, substr string, n int) {
	t.Helper()
	if got := strings.Count(out, substr); got != n {
		t.Fatalf("want %d of %q, got %d\n--- output ---\n%s", n, substr, got, out)
	}
}

// --- module shape ----------------------------------------------------------

func Test_CodeGen_TrivialMain(t *testing.T) {
	out := gen(t, `(program "t" (main (body)))`, Config{})
	wantContains(t, out, "; ModuleID = 't'")
	wantContains(t, out, `target triple = "x86_64-pc-linux-gnu"`)
	wantContains(t, out, "@argv = dso_local global %struct.runtime_array zeroinitializer")
	wantContains(t, out, "define dso_local i32 @main(i32 %0, i8** %1) {")
	wantContains(t, out, "call void @runtime_arrayStart()")
	wantContains(t, out, "call void @runtime_initArrayOfStringsFromCUTF8(%struct.runtime_array* @argv, i8** %1, i32 %0)")
	wantContains(t, out, "ret i32 0")
	wantMissing(t, out, "!llvm.dbg.cu")
}

func Test_CodeGen_WindowsTriple(t *testing.T) {
	out := gen(t, `(program "t" (main (body)))`, Config{Windows: true, ModuleName: "win.rn"})
	wantContains(t, out, "; ModuleID = 'win.rn'")
	wantContains(t, out, `target triple = "x86_64-w64-windows-gnu"`)
}

func Test_CodeGen_GlobalsAndInitializers(t *testing.T) {
	out := gen(t, `
(program "t"
  (var count u32 var (init 7))
  (var name string var (init "rune"))
  (var idle u8 unused)
  (var $total u64 var (init 1))
  (main (body)))
`, Config{})
	wantContains(t, out, "@count = dso_local global i32 0")
	wantContains(t, out, "@$total = dso_local global i64 0")
	wantContains(t, out, "store i64 1, i64* @$total")
	wantContains(t, out, "@name = dso_local global %struct.runtime_array zeroinitializer")
	wantMissing(t, out, "@idle")
	wantContains(t, out, "store i32 7, i32* @count")
	wantContains(t, out, "call void @runtime_copyArray(%struct.runtime_array* @name, %struct.runtime_array* @.str1, i64 1, i1 false)")
	wantContains(t, out, "call void @runtime_freeArray(%struct.runtime_array* @name)")
}

// --- arithmetic ------------------------------------------------------------

const sumProgram = `
(program "t"
  (func sum (params (var a i32) (var b i32)) (returns i32)
    (body (return (add a b))))
  (main (body (call (call sum 1i32 2i32)))))
`

func Test_CodeGen_CheckedAdd(t *testing.T) {
	out := gen(t, sumProgram, Config{})
	wantContains(t, out, "define internal i32 @sum(i32 %a, i32 %b) {")
	wantContains(t, out, "%1 = call { i32, i1 } @llvm.sadd.with.overflow.i32(i32 %a, i32 %b)")
	wantCount(t, out, "declare { i32, i1 } @llvm.sadd.with.overflow.i32(i32 %0, i32 %1)", 1)
	wantCount(t, out, "call void @runtime_throwOverflow()", 1)
	wantCount(t, out, "declare dso_local void @runtime_throwOverflow() noreturn", 1)
	wantContains(t, out, "ret i32 %2")
	wantContains(t, out, "call i32 @sum(i32 1, i32 2)")
}

func Test_CodeGen_UnsafeDropsOverflowCheck(t *testing.T) {
	out := gen(t, sumProgram, Config{Unsafe: true})
	wantContains(t, out, "%1 = add i32 %a, %b")
	wantMissing(t, out, "with.overflow")
	wantMissing(t, out, "runtime_throwOverflow")
}

func Test_CodeGen_TruncatingAddSkipsCheck(t *testing.T) {
	out := gen(t, `
(program "t"
  (func wrap (params (var a u8) (var b u8)) (returns u8)
    (body (return (addtrunc a b))))
  (main (body)))
`, Config{})
	wantContains(t, out, "add i8 %a, %b")
	wantMissing(t, out, "with.overflow")
}

func Test_CodeGen_BigintAdd(t *testing.T) {
	out := gen(t, `
(program "t"
  (func add256 (params (var a u256) (var b u256)) (returns u256)
    (body (return (add a b))))
  (main (body)))
`, Config{})
	wantContains(t, out, "@add256(%struct.runtime_array* %.retVal, %struct.runtime_array* %a, %struct.runtime_array* %b)")
	wantContains(t, out, "call void @runtime_bigintAdd(%struct.runtime_array* %.tmp1, %struct.runtime_array* %a, %struct.runtime_array* %b)")
	wantContains(t, out, "call void @runtime_moveArray(%struct.runtime_array* %.retVal, %struct.runtime_array* %.tmp1)")
	wantContains(t, out, "ret void")
	wantMissing(t, out, "call void @runtime_freeArray")
}

func Test_CodeGen_StringConcat(t *testing.T) {
	out := gen(t, `
(program "t"
  (func cat (params (var a string) (var b string)) (returns string)
    (body (return (add a b))))
  (main (body)))
`, Config{})
	wantContains(t, out, "call void @runtime_copyArray(%struct.runtime_array* %.tmp1, %struct.runtime_array* %a, i64 1, i1 false)")
	wantContains(t, out, "call void @runtime_concatArrays(%struct.runtime_array* %.tmp1, %struct.runtime_array* %b, i64 1, i1 false)")
	wantContains(t, out, "call void @runtime_moveArray(%struct.runtime_array* %.retVal, %struct.runtime_array* %.tmp1)")
}

// --- arrays ----------------------------------------------------------------

const indexProgram = `
(program "t"
  (func at (params (var xs (array u32)) (var i u64)) (returns u32)
    (body (return (index xs i))))
  (main (body)))
`

func Test_CodeGen_IndexBoundsCheck(t *testing.T) {
	out := gen(t, indexProgram, Config{})
	wantContains(t, out, "icmp ult i64 %i, %2")
	wantContains(t, out, "boundsCheckFailed")
	wantContains(t, out, `c"Indexed passed the end of an array"`)
	wantCount(t, out, "declare dso_local void @runtime_throwException", 1)
}

func Test_CodeGen_IndexUnsafe(t *testing.T) {
	out := gen(t, indexProgram, Config{Unsafe: true})
	wantMissing(t, out, "boundsCheckFailed")
	wantMissing(t, out, "icmp ult")
	wantContains(t, out, "getelementptr inbounds i32, i32* ")
}

// --- modular arithmetic ----------------------------------------------------

func Test_CodeGen_ModularExp(t *testing.T) {
	out := gen(t, `
(program "t"
  (func mexp (params (var g u256) (var e u256) (var p u256)) (returns u256)
    (body (return (modint (exp g e) p))))
  (main (body)))
`, Config{})
	wantCount(t, out, "call void @runtime_bigintMod(%struct.runtime_array* %.tmp1, %struct.runtime_array* %g, %struct.runtime_array* %p)", 1)
	wantCount(t, out, "call void @runtime_bigintModularExp(", 1)
	wantContains(t, out, "call void @runtime_bigintModularExp(%struct.runtime_array* %.tmp2, %struct.runtime_array* %.tmp1, %struct.runtime_array* %e, %struct.runtime_array* %p)")
	wantContains(t, out, "call void @runtime_freeArray(%struct.runtime_array* %.tmp1)")
}

func Test_CodeGen_SmallModularAdd(t *testing.T) {
	out := gen(t, `
(program "t"
  (func madd (params (var a u64) (var b u64) (var p u64)) (returns u64)
    (body (return (modint (add a b) p))))
  (main (body)))
`, Config{})
	wantContains(t, out, "urem i64 %a, %p")
	wantContains(t, out, "urem i64 %b, %p")
	wantContains(t, out, "call i64 @runtime_smallnumModularAdd(")
	wantMissing(t, out, "with.overflow")
}

// --- statements ------------------------------------------------------------

func Test_CodeGen_PrintDeclaredOnce(t *testing.T) {
	out := gen(t, `
(program "t"
  (var n u32)
  (main (body
    (print "n = " n)
    (print "done"))))
`, Config{})
	wantCount(t, out, "declare dso_local void @runtime_puts(", 1)
	wantCount(t, out, "declare dso_local void @runtime_sprintf(", 1)
	wantContains(t, out, `c"n = %u32"`)
	wantContains(t, out, "zext i32 ")
	wantCount(t, out, "call void @runtime_puts(", 2)
}

func Test_CodeGen_StringConstantsInterned(t *testing.T) {
	out := gen(t, `
(program "t"
  (main (body
    (print "hi")
    (print "hi"))))
`, Config{})
	wantCount(t, out, "@.str1.data = private", 1)
	wantMissing(t, out, "@.str2")
}

func Test_CodeGen_IfChainAndLoops(t *testing.T) {
	out := gen(t, `
(program "t"
  (func f (params (var x u8)) (locals (var i u32 var)) (returns none)
    (body
      (if (eq x 1) (print "one"))
      (elseif (eq x 2) (print "two"))
      (else (print "many"))
      (while (lt i 10) (assign (!+= i 1)))
      (for (= i 0) (lt i 3) (= i (addtrunc i 1)) (print i))))
  (main (body)))
`, Config{})
	wantContains(t, out, "define internal void @f(i8 %x) {")
	wantContains(t, out, "%i = alloca i32")
	wantContains(t, out, "icmp eq i8 %x, 1")
	wantContains(t, out, "icmp eq i8 %x, 2")
	wantContains(t, out, "ifDone")
	wantContains(t, out, "whileLoop")
	wantContains(t, out, "whileBody")
	wantContains(t, out, "forLoopBody")
	wantContains(t, out, "forLoopDone")
	wantContains(t, out, "ret void")
}

func Test_CodeGen_Switch(t *testing.T) {
	out := gen(t, `
(program "t"
  (func f (params (var x u8)) (returns none)
    (body
      (switch x
        (case (1 2) (print "small"))
        (default (print "big")))))
  (main (body)))
`, Config{})
	wantContains(t, out, "switchDone")
	wantCount(t, out, "icmp eq i8 %x, ", 2)
}

func Test_CodeGen_ThrowIsUnreachable(t *testing.T) {
	out := gen(t, `
(program "t"
  (func fail (params (var code u16)) (returns none)
    (body (throw "bad code " code)))
  (main (body)))
`, Config{})
	wantContains(t, out, `c"bad code %u16"`)
	wantContains(t, out, "call void (%struct.runtime_array*, ...) @runtime_throwException(%struct.runtime_array* @.str1, i64 ")
	wantContains(t, out, "unreachable")
}

// --- debug info ------------------------------------------------------------

func Test_CodeGen_DebugMetadata(t *testing.T) {
	out := gen(t, `
(program "t"
  (file "t.rn" "/src")
  (var count u32 var (line 2))
  (func sum (line 3) (params (var a i32 (line 3)) (var b i32 (line 3))) (returns i32)
    (body (return (@ line 4) (add a b))))
  (main (body)))
`, Config{Debug: true})
	wantContains(t, out, "!llvm.dbg.cu = !{!0}")
	wantContains(t, out, "!4 = !DIFile(filename: \"t.rn\", directory: \"/src\")")
	wantContains(t, out, "define internal i32 @sum(i32 %a, i32 %b) !dbg !")
	wantContains(t, out, `!DILocalVariable(name: "a", arg: 1`)
	wantContains(t, out, `!DILocalVariable(name: "b", arg: 2`)
	wantContains(t, out, `distinct !DIGlobalVariable(name: "count"`)
	wantContains(t, out, "call void @llvm.dbg.value(metadata i32 %a")
	wantContains(t, out, "!DILocation(line: 4, scope: !")
	wantContains(t, out, `!DIBasicType(name: "i32"`)
	wantContains(t, out, "@count = dso_local global i32 0, !dbg !")
}

func Test_CodeGen_DebugWithoutFiles(t *testing.T) {
	out := gen(t, `(program "t" (main (body)))`, Config{Debug: true})
	wantContains(t, out, "!4 = !DIFile(filename: \"t\", directory: \".\")")
	wantMissing(t, out, "!dbg !")
}

// --- errors ----------------------------------------------------------------

func Test_CodeGen_ErrorHasLine(t *testing.T) {
	err := genError(t, `
(program "t"
  (file "t.rn" "/src")
  (func f (params (var x f64)) (returns none)
    (body (print (@ line 9) (tuple x (funcaddr f)))))
  (main (body)))
`)
	if err == nil {
		t.Fatalf("expected a generation error")
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if !strings.Contains(cerr.Error(), "t.rn:9:") || !strings.Contains(cerr.Msg, "unsupported datatype") {
		t.Fatalf("unexpected error %q", cerr.Error())
	}
}

// --- truncation and shifts -------------------------------------------------

func Test_CodeGen_NarrowingCastChecksBySignedness(t *testing.T) {
	out := gen(t, `
(program "t"
  (func narrow (params (var x i32)) (returns u8)
    (body (return (cast u8 x))))
  (func narrowSigned (params (var y u32)) (returns i8)
    (body (return (cast i8 y))))
  (main (body)))
`, Config{})
	wantContains(t, out, "%1 = trunc i32 %x to i8")
	wantContains(t, out, "%2 = zext i8 %1 to i32")
	wantContains(t, out, "%3 = icmp eq i32 %2, %x")
	wantContains(t, out, "%1 = trunc i32 %y to i8")
	wantContains(t, out, "%2 = sext i8 %1 to i32")
	wantContains(t, out, "%3 = icmp eq i32 %2, %y")
	wantCount(t, out, "truncationCheckPassed", 4)
	wantCount(t, out, "call void @runtime_throwOverflow()", 2)
}

func Test_CodeGen_NarrowingCastTruncSkipsCheck(t *testing.T) {
	out := gen(t, `
(program "t"
  (func low (params (var x i32)) (returns u8)
    (body (return (casttrunc u8 x))))
  (main (body)))
`, Config{})
	wantContains(t, out, "trunc i32 %x to i8")
	wantMissing(t, out, "truncationCheckPassed")
}

const shiftProgram = `
(program "t"
  (func sh (params (var x u32) (var n u32)) (returns u32)
    (body (return (shl x n))))
  (main (body)))
`

func Test_CodeGen_ShiftAmountChecked(t *testing.T) {
	out := gen(t, shiftProgram, Config{})
	wantContains(t, out, "icmp ult i32 %n, 32")
	wantContains(t, out, "limitCheckPassed")
	wantContains(t, out, "limitCheckFailed")
	wantContains(t, out, `c"Shift or rotate by more than integer width"`)
	wantContains(t, out, "shl i32 %x, %n")
}

func Test_CodeGen_ShiftUnsafeSkipsLimitCheck(t *testing.T) {
	out := gen(t, shiftProgram, Config{Unsafe: true})
	wantMissing(t, out, "limitCheck")
	wantContains(t, out, "shl i32 %x, %n")
}

func Test_CodeGen_ShiftByConstant(t *testing.T) {
	out := gen(t, `
(program "t"
  (func sh3 (params (var x u32)) (returns u32)
    (body (return (shl x 3))))
  (main (body)))
`, Config{})
	wantMissing(t, out, "limitCheck")
	wantContains(t, out, "shl i32 %x, ")
}

func Test_CodeGen_ShiftByConstantTooWide(t *testing.T) {
	err := genError(t, `
(program "t"
  (func sh40 (params (var x u32)) (returns u32)
    (body (return (shl x 40))))
  (main (body)))
`)
	if err == nil || !strings.Contains(err.Error(), "Shift or rotate by more than integer width") {
		t.Fatalf("expected a shift width error, got %v", err)
	}
}

const generatedShiftProgram = `
(program "t"
  (file "t.rn" "/src")
  (func sh (params (var x u32) (var n u32)) (returns u32)
    (body (return (@ generated) (shl x n))))
  (main (body)))
`

func Test_CodeGen_GeneratedShiftSkipsLimitCheck(t *testing.T) {
	out := gen(t, generatedShiftProgram, Config{})
	wantMissing(t, out, "limitCheck")
	out = gen(t, generatedShiftProgram, Config{Debug: true})
	wantContains(t, out, "icmp ult i32 %n, 32")
	wantContains(t, out, "limitCheckFailed")
}

// --- short circuits and loops ----------------------------------------------

func Test_CodeGen_AndPhi(t *testing.T) {
	out := gen(t, `
(program "t"
  (func both (params (var a bool) (var b bool)) (returns bool)
    (body (return (and a b))))
  (main (body)))
`, Config{})
	wantContains(t, out, "br i1 %a, label %andShortcutNotTaken2, label %andShortcutTaken1")
	wantContains(t, out, "%1 = phi i1 [ false, %0 ], [ %b, %andShortcutNotTaken2 ]")
	wantContains(t, out, "ret i1 %1")
}

func Test_CodeGen_NestedShortCircuitPhis(t *testing.T) {
	out := gen(t, `
(program "t"
  (func either (params (var a bool) (var b bool) (var c bool)) (returns bool)
    (body (return (or a (and b c)))))
  (main (body)))
`, Config{})
	wantContains(t, out, "%1 = phi i1 [ false, %orShortcutNotTaken2 ], [ %c, %andShortcutNotTaken4 ]")
	wantContains(t, out, "%2 = phi i1 [ true, %0 ], [ %1, %andShortcutTaken3 ]")
}

func Test_CodeGen_DoWhileBranchesBackToLoop(t *testing.T) {
	out := gen(t, `
(program "t"
  (func count (params (var n u32)) (locals (var i u32 var)) (returns none)
    (body
      (do (assign (!+= i 1)))
      (while (lt i n))))
  (main (body)))
`, Config{})
	wantContains(t, out, "whileLoop1:")
	wantContains(t, out, "label %whileLoop1, label %whileDone2")
	wantMissing(t, out, "whileBody")
}

func Test_CodeGen_TemporariesAllocatedInEntryBlock(t *testing.T) {
	out := gen(t, `
(program "t"
  (func rep (params (var s string) (var n u32)) (locals (var i u32 var) (var acc string var)) (returns none)
    (body
      (while (lt i n)
        (assign (= acc (add acc s)))
        (assign (!+= i 1)))))
  (main (body)))
`, Config{})
	alloca := strings.Index(out, "%.tmp1 = alloca %struct.runtime_array")
	loop := strings.Index(out, "whileLoop1:")
	if alloca < 0 || loop < 0 || alloca > loop {
		t.Fatalf("temporary should be allocated before the loop\n--- output ---\n%s", out)
	}
	wantCount(t, out, "%.tmp1 = alloca", 1)
}

func Test_CodeGen_FailureBlocksAtFunctionEnd(t *testing.T) {
	out := gen(t, sumProgram, Config{})
	failed := strings.Index(out, "overflowCheckFailed1:")
	ret := strings.Index(out, "ret i32 %2")
	if failed < 0 || ret < 0 || failed < ret {
		t.Fatalf("failure block should follow the body\n--- output ---\n%s", out)
	}
}

func Test_CodeGen_StringSwitchComparesArrays(t *testing.T) {
	out := gen(t, `
(program "t"
  (func pick (params (var s string)) (returns none)
    (body
      (switch s
        (case ("a" "b") (print "ab"))
        (case ("c") (print "c"))
        (default (print "other")))))
  (main (body)))
`, Config{})
	wantCount(t, out, "call i1 @runtime_compareArrays(i32 4, i32 0, %struct.runtime_array* %s, ", 3)
	wantContains(t, out, ", label %default2")
	wantContains(t, out, "switchDone1:")
}

// --- objects and tuples ----------------------------------------------------

func Test_CodeGen_RefUnrefClassObjects(t *testing.T) {
	out := gen(t, `
(program "t"
  (class Node refcounted)
  (func keep (params (var n (class Node))) (returns (class Node))
    (body
      (ref n)
      (unref n)
      (return n)))
  (main (body)))
`, Config{})
	wantCount(t, out, "call void @Node_ref(i32 %n)", 2)
	wantCount(t, out, "call void @Node_unref(i32 %n)", 1)
	wantContains(t, out, "declare void @Node_ref(i32 %0)")
	wantContains(t, out, "declare void @Node_unref(i32 %0)")
	lastRef := strings.LastIndex(out, "call void @Node_ref(i32 %n)")
	ret := strings.Index(out, "ret i32 %n")
	if ret < 0 || lastRef > ret {
		t.Fatalf("returned object should be referenced before ret\n--- output ---\n%s", out)
	}
}

func Test_CodeGen_RefOfPlainClassIsDropped(t *testing.T) {
	out := gen(t, `
(program "t"
  (class Leaf)
  (func hold (params (var l (class Leaf))) (returns none)
    (body (ref l) (unref l)))
  (main (body)))
`, Config{})
	wantMissing(t, out, "@Leaf_ref")
	wantMissing(t, out, "@Leaf_unref")
}

func Test_CodeGen_TupleMoveUpdatesBackPointers(t *testing.T) {
	out := gen(t, `
(program "t"
  (func pack (params (var s string)) (locals (var p (tuple u8 string) var)) (returns none)
    (body (assign (= p (tuple 1u8 s)))))
  (main (body)))
`, Config{})
	wantContains(t, out, "%struct.runtime_tuple1 = type { i8, %struct.runtime_array }")
	wantContains(t, out, "%p = alloca %struct.runtime_tuple1")
	store := strings.Index(out, "store %struct.runtime_tuple1 %")
	update := strings.Index(out, "call void @runtime_updateArrayBackPointer(%struct.runtime_array* ")
	if store < 0 || update < store {
		t.Fatalf("back pointers should be updated after the tuple store\n--- output ---\n%s", out)
	}
}

func Test_CodeGen_MethodCallPassesReceiver(t *testing.T) {
	out := gen(t, `
(program "t"
  (class Counter)
  (func bump (kind method) (class Counter) (params (var self (class Counter)) (var by u32)) (returns u32)
    (body (return (addtrunc by 1u32))))
  (func use (params (var c (class Counter))) (returns u32)
    (body (return (call (dot c bump) 2u32))))
  (main (body)))
`, Config{})
	wantContains(t, out, "define internal i32 @Counter_bump(i32 %self, i32 %by) {")
	wantContains(t, out, "call i32 @Counter_bump(i32 %c, i32 2)")
}

// --- builtins --------------------------------------------------------------

func Test_CodeGen_AppendArrayElementFlags(t *testing.T) {
	out := gen(t, `
(program "t"
  (func grow (params (var rows (array (array u8)) var) (var row (array u8))) (returns none)
    (body (call (call (dot rows append) row))))
  (func deeper (params (var grid (array (array (array u8))) var) (var rows (array (array u8)))) (returns none)
    (body (call (call (dot grid append) rows))))
  (main (body)))
`, Config{})
	wantContains(t, out, "call void @runtime_appendArrayElement(%struct.runtime_array* %rows, i8* %1, i64 16, i1 true, i1 false)")
	wantContains(t, out, "call void @runtime_appendArrayElement(%struct.runtime_array* %grid, i8* %1, i64 16, i1 true, i1 true)")
}

func Test_CodeGen_AppendScalarThroughSlot(t *testing.T) {
	out := gen(t, `
(program "t"
  (func push (params (var xs (array u32) var) (var x u32)) (returns none)
    (body (call (call (dot xs append) x))))
  (main (body)))
`, Config{})
	wantContains(t, out, "%.tmp1 = alloca i32")
	wantContains(t, out, "store i32 %x, i32* %.tmp1")
	wantContains(t, out, "%1 = bitcast i32* %.tmp1 to i8*")
	wantContains(t, out, "call void @runtime_appendArrayElement(%struct.runtime_array* %xs, i8* %1, i64 4, i1 false, i1 false)")
}

func Test_CodeGen_AppendByteToString(t *testing.T) {
	out := gen(t, `
(program "t"
  (func addA (params (var s string var)) (returns none)
    (body (call (call (dot s append) 65u8))))
  (main (body)))
`, Config{})
	wantContains(t, out, "store i8 65, i8* %.tmp1")
	wantContains(t, out, "call void @runtime_appendArrayElement(%struct.runtime_array* %s, i8* %1, i64 1, i1 false, i1 false)")
}

func Test_CodeGen_ToStringBool(t *testing.T) {
	out := gen(t, `
(program "t"
  (func show (params (var b bool)) (returns string)
    (body (return (call (dot b toString)))))
  (main (body)))
`, Config{})
	wantContains(t, out, `c"true"`)
	wantContains(t, out, `c"false"`)
	wantContains(t, out, "select i1 %b, %struct.runtime_array* @.str1, %struct.runtime_array* @.str2")
	wantMissing(t, out, "runtime_nativeIntToString")
}

func Test_CodeGen_ToStringEnumAndTuple(t *testing.T) {
	out := gen(t, `
(program "t"
  (enum Color 8 (Red 0) (Blue 1))
  (func name (params (var c (enum Color))) (returns string)
    (body (return (call (dot c toString)))))
  (func pair (params (var p (tuple u32 string))) (returns string)
    (body (return (call (dot p toString)))))
  (func list (params (var xs (array u32))) (returns string)
    (body (return (call (dot xs toString)))))
  (main (body)))
`, Config{})
	wantContains(t, out, `c"Color"`)
	wantContains(t, out, `c"%(u32,s)"`)
	wantContains(t, out, `c"%[u32]"`)
	wantCount(t, out, "call void (%struct.runtime_array*, %struct.runtime_array*, ...) @runtime_sprintf(", 2)
	wantMissing(t, out, "zext i0")
	wantMissing(t, out, "runtime_nativeIntToString")
}

func Test_CodeGen_ToStringIntegerBase(t *testing.T) {
	out := gen(t, `
(program "t"
  (func dec (params (var x u16)) (returns string)
    (body (return (call (dot x toString)))))
  (func hex (params (var x u16)) (returns string)
    (body (return (call (dot x toString) 16))))
  (main (body)))
`, Config{})
	wantContains(t, out, "zext i16 %x to i64")
	wantContains(t, out, ", i32 10, i1 false)")
	wantContains(t, out, ", i32 16, i1 false)")
	wantCount(t, out, "declare dso_local void @runtime_nativeIntToString(", 1)
}

// --- declarations ----------------------------------------------------------

func Test_CodeGen_DeclarationsEmittedOnce(t *testing.T) {
	out := gen(t, `
(program "t"
  (func f (params (var a u32)) (returns u32)
    (body (print a) (return (add a 1))))
  (func g (params (var b u32)) (returns u32)
    (body (print b) (return (add b 2))))
  (main (body)))
`, Config{})
	wantCount(t, out, "declare dso_local void @runtime_puts(", 1)
	wantCount(t, out, "call void @runtime_puts(", 2)
	wantCount(t, out, "declare { i32, i1 } @llvm.uadd.with.overflow.i32(i32 %0, i32 %1)", 1)
	wantCount(t, out, "call { i32, i1 } @llvm.uadd.with.overflow.i32(", 2)
	wantCount(t, out, "declare dso_local void @runtime_throwOverflow() noreturn", 1)
	wantMissing(t, out, "runtime_bigint")
}
