package codegen

import (
	"fmt"

	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// function is the function being generated. Locals and temporaries are
// allocated at the top of the entry block, so each executes once per call.
type function struct {
	ir    *ir.Func
	entry *ir.Block
	cur   *ir.Block
	// allocaEnd is where the next temporary goes in the entry block.
	allocaEnd int
	// tail holds the shared failure blocks, placed after the body.
	tail []*ir.Block
	vars map[*parser.Variable]value.Value
	// retVal is the hidden result pointer of functions returning by reference.
	retVal value.Value

	tmpNum   int
	labelNum int

	overflowFailed *ir.Block
	boundsFailed   *ir.Block
	limitFailed    *ir.Block
}

func newFunction(f *ir.Func) *function {
	entry := ir.NewBlock("")
	entry.Parent = f
	f.Blocks = append(f.Blocks, entry)
	return &function{ir: f, entry: entry, cur: entry, vars: map[*parser.Variable]value.Value{}}
}

// finish places the failure blocks after the body.
func (f *function) finish() {
	for _, b := range f.tail {
		b.Parent = f.ir
	}
	f.ir.Blocks = append(f.ir.Blocks, f.tail...)
}

// loc is the !dbg attachment for instructions at the current line.
func (cg *CodeGen) loc() ir.Metadata {
	if !cg.debug || cg.line == nil {
		return nil
	}
	return cg.dbg.attachment(cg.dbg.location(cg.dbg.scope, cg.line.Num))
}

// block is the block instructions go to. Code after a terminator gets a
// fresh block.
func (cg *CodeGen) block() *ir.Block {
	if cg.fn.cur.Term != nil {
		cg.label(cg.newLabel("block"))
	}
	return cg.fn.cur
}

func (cg *CodeGen) terminated() bool {
	return cg.fn.cur.Term != nil
}

func (cg *CodeGen) newLabel(prefix string) *ir.Block {
	cg.fn.labelNum++
	return ir.NewBlock(fmt.Sprintf("%s%d", prefix, cg.fn.labelNum))
}

// label starts a new basic block, falling through from an open one.
func (cg *CodeGen) label(b *ir.Block) {
	f := cg.fn
	if f.cur.Term == nil {
		br := f.cur.NewBr(b)
		br.Metadata = cg.loc()
	}
	b.Parent = f.ir
	f.ir.Blocks = append(f.ir.Blocks, b)
	f.cur = b
}

func (cg *CodeGen) jump(b *ir.Block) {
	if !cg.terminated() {
		br := cg.fn.cur.NewBr(b)
		br.Metadata = cg.loc()
	}
}

func (cg *CodeGen) branch(cond value.Value, ifTrue, ifFalse *ir.Block) {
	br := cg.block().NewCondBr(cond, ifTrue, ifFalse)
	br.Metadata = cg.loc()
}

// ret returns v, or nothing when v is nil.
func (cg *CodeGen) ret(v value.Value) {
	r := cg.block().NewRet(v)
	r.Metadata = cg.loc()
}

func (cg *CodeGen) unreachable() {
	u := cg.block().NewUnreachable()
	u.Metadata = cg.loc()
}

// insertAlloca puts instructions after the allocas of the entry block.
func (f *function) insertAlloca(insts ...ir.Instruction) {
	entry := f.entry
	rest := append([]ir.Instruction(nil), entry.Insts[f.allocaEnd:]...)
	entry.Insts = append(append(entry.Insts[:f.allocaEnd], insts...), rest...)
	f.allocaEnd += len(insts)
}

// tempAlloca reserves a zeroed stack slot in the entry block.
func (cg *CodeGen) tempAlloca(typ types.Type) *ir.InstAlloca {
	slot := cg.tempSlot(typ)
	cg.fn.insertAlloca(ir.NewStore(constant.NewZeroInitializer(typ), slot))
	return slot
}

// tempSlot reserves an uninitialized stack slot in the entry block.
func (cg *CodeGen) tempSlot(typ types.Type) *ir.InstAlloca {
	f := cg.fn
	f.tmpNum++
	a := ir.NewAlloca(typ)
	a.SetName(fmt.Sprintf(".tmp%d", f.tmpNum))
	f.insertAlloca(a)
	return a
}

// failureBlock returns the shared failure block stored in slot, creating the
// block that throws on first use.
func (cg *CodeGen) failureBlock(slot **ir.Block, prefix string, throw func(b *ir.Block)) *ir.Block {
	if *slot != nil {
		return *slot
	}
	b := cg.newLabel(prefix)
	throw(b)
	b.NewUnreachable()
	cg.fn.tail = append(cg.fn.tail, b)
	*slot = b
	return b
}

// overflowFailedLabel is the per function block calling runtime_throwOverflow.
func (cg *CodeGen) overflowFailedLabel() *ir.Block {
	return cg.failureBlock(&cg.fn.overflowFailed, "overflowCheckFailed", func(b *ir.Block) {
		b.NewCall(cg.runtime("runtime_throwOverflow"))
	})
}

// throwFailedLabel is a per function block throwing message.
func (cg *CodeGen) throwFailedLabel(slot **ir.Block, prefix, message string) *ir.Block {
	msg := cg.stringConst(message)
	return cg.failureBlock(slot, prefix, func(b *ir.Block) {
		b.NewCall(cg.runtime("runtime_throwException"), msg)
	})
}

// --- instructions ----------------------------------------------------------

// binop emits a binary instruction by its LLVM name.
func (cg *CodeGen) binop(op string, x, y value.Value) value.Value {
	b := cg.block()
	md := cg.loc()
	switch op {
	case "add":
		i := b.NewAdd(x, y)
		i.Metadata = md
		return i
	case "sub":
		i := b.NewSub(x, y)
		i.Metadata = md
		return i
	case "mul":
		i := b.NewMul(x, y)
		i.Metadata = md
		return i
	case "urem":
		i := b.NewURem(x, y)
		i.Metadata = md
		return i
	case "fadd":
		i := b.NewFAdd(x, y)
		i.Metadata = md
		return i
	case "fsub":
		i := b.NewFSub(x, y)
		i.Metadata = md
		return i
	case "fmul":
		i := b.NewFMul(x, y)
		i.Metadata = md
		return i
	case "fdiv":
		i := b.NewFDiv(x, y)
		i.Metadata = md
		return i
	case "frem":
		i := b.NewFRem(x, y)
		i.Metadata = md
		return i
	case "shl":
		i := b.NewShl(x, y)
		i.Metadata = md
		return i
	case "lshr":
		i := b.NewLShr(x, y)
		i.Metadata = md
		return i
	case "ashr":
		i := b.NewAShr(x, y)
		i.Metadata = md
		return i
	case "and":
		i := b.NewAnd(x, y)
		i.Metadata = md
		return i
	case "or":
		i := b.NewOr(x, y)
		i.Metadata = md
		return i
	case "xor":
		i := b.NewXor(x, y)
		i.Metadata = md
		return i
	}
	cg.fail("Unexpected binary operator %s", op)
	return nil
}

// cast emits a conversion instruction by its LLVM name.
func (cg *CodeGen) cast(op string, v value.Value, to types.Type) value.Value {
	b := cg.block()
	md := cg.loc()
	switch op {
	case "trunc":
		i := b.NewTrunc(v, to)
		i.Metadata = md
		return i
	case "zext":
		i := b.NewZExt(v, to)
		i.Metadata = md
		return i
	case "sext":
		i := b.NewSExt(v, to)
		i.Metadata = md
		return i
	case "fptrunc":
		i := b.NewFPTrunc(v, to)
		i.Metadata = md
		return i
	case "fpext":
		i := b.NewFPExt(v, to)
		i.Metadata = md
		return i
	case "fptoui":
		i := b.NewFPToUI(v, to)
		i.Metadata = md
		return i
	case "fptosi":
		i := b.NewFPToSI(v, to)
		i.Metadata = md
		return i
	case "uitofp":
		i := b.NewUIToFP(v, to)
		i.Metadata = md
		return i
	case "sitofp":
		i := b.NewSIToFP(v, to)
		i.Metadata = md
		return i
	case "bitcast":
		i := b.NewBitCast(v, to)
		i.Metadata = md
		return i
	}
	cg.fail("Unexpected conversion %s", op)
	return nil
}

func (cg *CodeGen) load(typ types.Type, src value.Value) value.Value {
	i := cg.block().NewLoad(typ, src)
	i.Metadata = cg.loc()
	return i
}

func (cg *CodeGen) store(src, dst value.Value) {
	i := cg.block().NewStore(src, dst)
	i.Metadata = cg.loc()
}

// gep emits an inbounds getelementptr.
func (cg *CodeGen) gep(elem types.Type, src value.Value, indices ...value.Value) value.Value {
	i := cg.block().NewGetElementPtr(elem, src, indices...)
	i.InBounds = true
	i.Metadata = cg.loc()
	return i
}

func (cg *CodeGen) icmp(pred enum.IPred, x, y value.Value) value.Value {
	i := cg.block().NewICmp(pred, x, y)
	i.Metadata = cg.loc()
	return i
}

func (cg *CodeGen) fcmp(pred enum.FPred, x, y value.Value) value.Value {
	i := cg.block().NewFCmp(pred, x, y)
	i.Metadata = cg.loc()
	return i
}

func (cg *CodeGen) fneg(x value.Value) value.Value {
	i := cg.block().NewFNeg(x)
	i.Metadata = cg.loc()
	return i
}

func (cg *CodeGen) selectValue(cond, x, y value.Value) value.Value {
	i := cg.block().NewSelect(cond, x, y)
	i.Metadata = cg.loc()
	return i
}

func (cg *CodeGen) extract(x value.Value, index uint64) value.Value {
	i := cg.block().NewExtractValue(x, index)
	i.Metadata = cg.loc()
	return i
}

func (cg *CodeGen) phi(incs ...*ir.Incoming) value.Value {
	i := cg.block().NewPhi(incs...)
	i.Metadata = cg.loc()
	return i
}

// callFunc calls a function or function pointer.
func (cg *CodeGen) callFunc(callee value.Value, args ...value.Value) *ir.InstCall {
	i := cg.block().NewCall(callee, args...)
	i.Metadata = cg.loc()
	return i
}

// --- constants -------------------------------------------------------------

func intConst(width uint32, v int64) *constant.Int {
	return constant.NewInt(types.NewInt(uint64(width)), v)
}

func i64(v int64) *constant.Int {
	return constant.NewInt(types.I64, v)
}

func i32(v uint32) *constant.Int {
	return constant.NewInt(types.I32, int64(v))
}

func i1(b bool) *constant.Int {
	return constant.NewBool(b)
}
