package codegen

import (
	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// genFunction generates one function definition. A nil signature generates
// main from the root block.
func (cg *CodeGen) genFunction(block *parser.Block, sig *parser.Signature) {
	var fn *ir.Func
	if sig == nil {
		fn = ir.NewFunc("main", types.I32, ir.NewParam("", types.I32), ir.NewParam("", types.NewPointer(types.I8Ptr)))
		fn.Preemption = enum.PreemptionDSOLocal
	} else {
		fn = cg.funcRef(sig.Path)
	}
	cg.fn = newFunction(fn)
	cg.scope = block
	cg.sig = sig
	cg.stack = cg.stack[:0]
	cg.free = nil
	cg.localsEnd = 0
	cg.stmt = nil
	cg.line = block.Line
	// Generated functions have no source file to point the debugger at.
	cg.debug = cg.dbg != nil && block.File != nil
	if cg.debug {
		cg.dbg.scope = cg.dbg.subprogram(cg, block, sig)
		fn.Metadata = cg.dbg.attachment(cg.dbg.node(cg.dbg.scope))
	}
	if sig != nil {
		cg.bindParams(block, sig)
	}
	cg.declareLocals(block)
	if sig == nil {
		cg.call("runtime_arrayStart")
		cg.call("runtime_initArrayOfStringsFromCUTF8", cg.argv, fn.Params[1], fn.Params[0])
	} else if sig.Function.Kind == parser.FuncConstructor {
		self := block.Params()[0]
		obj := cg.callFunc(cg.classHelper(sig.Function.Class, "allocate"))
		obj.SetName(self.Name)
		cg.fn.vars[self] = obj
	}
	if cg.debug {
		cg.declareFrame(block, sig)
	}
	cg.initVariables(block)
	cg.genBlock(block)
	if !cg.terminated() {
		cg.line = block.Line
		cg.genFunctionEnd()
	}
	cg.fn.finish()
	cg.module.Funcs = append(cg.module.Funcs, fn)
	cg.debug = false
}

// skipParam reports whether parameter i is left out of the definition.
func skipParam(sig *parser.Signature, i int) bool {
	if sig.Function.Kind == parser.FuncConstructor && i == 0 {
		return true
	}
	return !sig.ParamInstantiated(i) && !sig.CalledByFuncPtr
}

// newSignatureFunc creates the function of a signature. Results passed by
// reference are written through a leading .retVal parameter.
func (cg *CodeGen) newSignatureFunc(sig *parser.Signature) *ir.Func {
	ret := sig.ReturnType
	retType := cg.llRefType(ret)
	var params []*ir.Param
	if ret.PassedByReference() {
		params = append(params, ir.NewParam(".retVal", retType))
		retType = types.Void
	}
	for i, v := range sig.Block.Params() {
		if skipParam(sig, i) {
			continue
		}
		params = append(params, ir.NewParam(v.Name, cg.paramType(v)))
	}
	f := ir.NewFunc(sig.Path, retType, params...)
	if sig.Function.Exported {
		f.Preemption = enum.PreemptionDSOLocal
	} else {
		f.Linkage = enum.LinkageInternal
	}
	return f
}

// bindParams maps the parameters of the block to those of the function.
func (cg *CodeGen) bindParams(block *parser.Block, sig *parser.Signature) {
	params := cg.fn.ir.Params
	if sig.ReturnType.PassedByReference() {
		cg.fn.retVal = params[0]
		params = params[1:]
	}
	for i, v := range block.Params() {
		if skipParam(sig, i) {
			continue
		}
		cg.fn.vars[v] = params[0]
		params = params[1:]
	}
}

// declareLocals allocates and zeroes the frame variables in the entry block.
// Locals holding heap state are owned by the function.
func (cg *CodeGen) declareLocals(block *parser.Block) {
	f := cg.fn
	for _, v := range block.Variables {
		if v.Kind == parser.VarParam || !v.Instantiated || !v.IsLocal() {
			continue
		}
		a := ir.NewAlloca(cg.llType(v.Type))
		a.SetName(v.Name)
		f.insertAlloca(a, ir.NewStore(cg.zeroValue(v.Type), a))
		f.vars[v] = a
		if v.Type.ContainsArray() || (isRefCounted(v.Type) && !v.Generated) {
			cg.free = append(cg.free, element{typ: v.Type, val: a, isRef: true})
		}
	}
	cg.localsEnd = len(cg.free)
}

func (cg *CodeGen) declareFrame(block *parser.Block, sig *parser.Signature) {
	if sig != nil {
		n := 0
		for i, v := range block.Params() {
			if skipParam(sig, i) {
				continue
			}
			n++
			cg.declareVariable(v, n)
		}
	}
	for _, v := range block.Variables {
		if v.Kind != parser.VarParam && v.Instantiated && v.IsLocal() {
			cg.declareVariable(v, 0)
		}
	}
}

// initVariables assigns the initializers of the block's variables. In main
// these are the module globals.
func (cg *CodeGen) initVariables(block *parser.Block) {
	for _, v := range block.Variables {
		if v.Kind == parser.VarParam || v.Initializer == nil || !v.Instantiated {
			continue
		}
		if v.Line != nil {
			cg.line = v.Line
		}
		cg.genExpr(v.Initializer)
		cg.writeTop(&parser.Expr{Kind: parser.ExprIdent, Name: v.Name, Variable: v, Type: v.Type})
		cg.freeElements(false)
	}
}

// genFunctionEnd returns from a function whose body falls off the end.
func (cg *CodeGen) genFunctionEnd() {
	sig := cg.sig
	if sig == nil {
		cg.freeElements(true)
		cg.ret(i32(0))
		return
	}
	fn := sig.Function
	if fn.Kind == parser.FuncDestructor {
		cg.freeSelf()
	}
	cg.freeElements(true)
	switch {
	case fn.Kind == parser.FuncConstructor:
		cg.ret(cg.fn.vars[cg.scope.Params()[0]])
	case sig.ReturnType.Kind == parser.KindNone || sig.ReturnType.PassedByReference():
		cg.ret(nil)
	default:
		cg.unreachable()
	}
}

// freeSelf returns the destructed object to its class.
func (cg *CodeGen) freeSelf() {
	self := cg.scope.Params()[0]
	obj := cg.varValue(self)
	if !self.Const {
		obj = cg.derefAny(element{typ: self.Type, val: obj, isRef: true}).val
	}
	cg.callFunc(cg.classHelper(cg.sig.Function.Class, "free"), obj)
}

// genBlock generates the instantiated statements of a block. If chains and
// do-while pairs are generated together.
func (cg *CodeGen) genBlock(b *parser.Block) {
	if b == nil {
		return
	}
	stmts := b.Statements
	for i := 0; i < len(stmts); i++ {
		s := stmts[i]
		switch s.Kind {
		case parser.StmtIf:
			chain := []*parser.Statement{s}
			for i+1 < len(stmts) && (stmts[i+1].Kind == parser.StmtElseIf || stmts[i+1].Kind == parser.StmtElse) {
				i++
				if stmts[i].Instantiated {
					chain = append(chain, stmts[i])
				}
			}
			if s.Instantiated {
				cg.genIf(chain)
			}
		case parser.StmtDo:
			if i+1 >= len(stmts) || stmts[i+1].Kind != parser.StmtWhile {
				cg.setStatement(s)
				cg.fail("do without a matching while")
			}
			i++
			if s.Instantiated {
				cg.genLoop(s, stmts[i])
			}
		default:
			if s.Instantiated {
				cg.genStatement(s)
			}
		}
	}
}

func (cg *CodeGen) setStatement(s *parser.Statement) {
	cg.stmt = s
	if s.Line != nil {
		cg.line = s.Line
	}
}

// genStatement generates a statement and releases its temporaries.
func (cg *CodeGen) genStatement(s *parser.Statement) {
	depth := len(cg.stack)
	switch s.Kind {
	case parser.StmtSwitch:
		cg.setStatement(s)
		cg.genSwitch(s)
	case parser.StmtTypeSwitch:
		cg.setStatement(s)
		cg.genTypeSwitch(s)
	case parser.StmtWhile:
		cg.genLoop(nil, s)
	case parser.StmtFor:
		cg.genFor(s)
	case parser.StmtAssign:
		cg.setStatement(s)
		cg.genExpr(s.Expr)
	case parser.StmtCall:
		cg.setStatement(s)
		cg.genExpr(s.Expr)
		if s.Expr.Type != nil && s.Expr.Type.Kind != parser.KindNone {
			cg.pop(false)
		}
	case parser.StmtPrint:
		cg.setStatement(s)
		cg.genPrint(s)
	case parser.StmtThrow:
		cg.setStatement(s)
		cg.genThrow(s)
	case parser.StmtReturn:
		cg.setStatement(s)
		cg.genReturn(s)
	case parser.StmtRef, parser.StmtUnref:
		cg.setStatement(s)
		cg.genRefOrUnref(s)
	case parser.StmtElseIf, parser.StmtElse:
		cg.setStatement(s)
		cg.fail("else without an if")
	case parser.StmtCase, parser.StmtDefault:
		cg.setStatement(s)
		cg.fail("Case or default in non-switch statement")
	default:
		cg.setStatement(s)
		cg.fail("Unexpected statement %s", s)
	}
	cg.freeElements(false)
	if len(cg.stack) > depth {
		cg.stack = cg.stack[:depth]
	}
}

// genIf generates an if statement with its else-if and else clauses.
func (cg *CodeGen) genIf(chain []*parser.Statement) {
	done := cg.newLabel("ifDone")
	for i, s := range chain {
		cg.setStatement(s)
		next := done
		if i < len(chain)-1 {
			next = cg.newLabel("ifClause")
		}
		if s.Kind != parser.StmtElse {
			cg.genExpr(s.Expr)
			cond := cg.pop(true)
			cg.freeElements(false)
			body := cg.newLabel("ifBody")
			cg.branch(cond.val, body, next)
			cg.label(body)
		}
		cg.genBlock(s.Block)
		cg.jump(done)
		if next != done {
			cg.label(next)
		}
	}
	cg.label(done)
}

// genSwitch compares the target against each case value in order. The
// target stays alive until the whole switch is done.
func (cg *CodeGen) genSwitch(s *parser.Statement) {
	cg.genExpr(s.Expr)
	saved := cg.localsEnd
	cg.localsEnd = len(cg.free)
	target := cg.pop(true)
	done := cg.newLabel("switchDone")
	def := cg.newLabel("default")
	var cases []*parser.Statement
	lastCase := -1
	hasDefault := false
	if s.Block != nil {
		for _, c := range s.Block.Statements {
			if !c.Instantiated {
				continue
			}
			switch c.Kind {
			case parser.StmtCase:
				lastCase = len(cases)
			case parser.StmtDefault:
				hasDefault = true
			default:
				cg.fail("Unexpected statement in switch: %s", c)
			}
			cases = append(cases, c)
		}
	}
	// next is the test of the following case, once something branches to it.
	var next *ir.Block
	for i, c := range cases {
		cg.setStatement(c)
		if c.Kind == parser.StmtDefault {
			if i < lastCase {
				if next == nil {
					next = cg.newLabel("case")
				}
				cg.jump(next)
			}
			cg.label(def)
			cg.genBlock(c.Block)
			cg.jump(done)
			continue
		}
		if next != nil {
			cg.label(next)
			next = nil
		}
		miss := done
		switch {
		case i < lastCase:
			next = cg.newLabel("case")
			miss = next
		case hasDefault:
			miss = def
		}
		body := cg.newLabel("caseBody")
		vals := c.Expr.Children
		for j, val := range vals {
			m := miss
			if j < len(vals)-1 {
				m = cg.newLabel("case")
			}
			cg.genExpr(val)
			v := cg.pop(true)
			cond := cg.compare(parser.ExprEqual, target, v)
			cg.freeElements(false)
			cg.branch(cond, body, m)
			if m != miss {
				cg.label(m)
			}
		}
		cg.label(body)
		cg.genBlock(c.Block)
		cg.jump(done)
	}
	cg.label(done)
	cg.localsEnd = saved
}

// genTypeSwitch generates the one case the binder kept for the target type.
func (cg *CodeGen) genTypeSwitch(s *parser.Statement) {
	if s.Block == nil {
		return
	}
	for _, c := range s.Block.Statements {
		if c.Instantiated {
			cg.genBlock(c.Block)
			return
		}
	}
}

// genLoop generates a while loop, or a do-while when do is set. The while
// block of a do-while runs after the test.
func (cg *CodeGen) genLoop(do, while *parser.Statement) {
	loop := cg.newLabel("whileLoop")
	cg.label(loop)
	if do != nil {
		cg.setStatement(do)
		cg.genBlock(do.Block)
	}
	cg.setStatement(while)
	cg.genExpr(while.Expr)
	cond := cg.pop(true)
	cg.freeElements(false)
	done := cg.newLabel("whileDone")
	if while.Block == nil {
		cg.branch(cond.val, loop, done)
	} else {
		body := cg.newLabel("whileBody")
		cg.branch(cond.val, body, done)
		cg.label(body)
		cg.genBlock(while.Block)
		cg.jump(loop)
	}
	cg.label(done)
}

// genFor generates "for init, test, update { body }".
func (cg *CodeGen) genFor(s *parser.Statement) {
	cg.setStatement(s)
	c := s.Expr.Children
	if len(c) != 3 {
		cg.fail("for needs init, test and update expressions")
	}
	cg.genExpr(c[0])
	cg.freeElements(false)
	loop := cg.newLabel("forLoop")
	cg.label(loop)
	cg.genExpr(c[1])
	cond := cg.pop(true)
	cg.freeElements(false)
	body := cg.newLabel("forLoopBody")
	done := cg.newLabel("forLoopDone")
	cg.branch(cond.val, body, done)
	cg.label(body)
	cg.genBlock(s.Block)
	cg.stmt = s
	if s.Line != nil {
		cg.line = s.Line
	}
	cg.genExpr(c[2])
	cg.freeElements(false)
	cg.jump(loop)
	cg.label(done)
}

// printArgs builds the format string of a print or throw and returns the
// arguments that become conversions.
func (cg *CodeGen) printArgs(s *parser.Statement) (string, []*parser.Expr) {
	var all []*parser.Expr
	if s.Expr != nil {
		all = s.Expr.Children
	}
	format, err := parser.PrintFormat(all)
	if err != nil {
		cg.fail("%v", err)
	}
	var args []*parser.Expr
	for _, a := range all {
		if a.Kind != parser.ExprString && !a.IsType() {
			args = append(args, a)
		}
	}
	return format, args
}

func (cg *CodeGen) genPrint(s *parser.Statement) {
	format, args := cg.printArgs(s)
	dest := cg.tempValue(parser.StringType())
	cg.sprintf(dest, element{typ: parser.StringType(), val: cg.stringConst(format), isConst: true}, args)
	cg.call("runtime_puts", dest.val)
}

// genThrow raises an exception. Nothing after it runs, so the temporaries
// are dropped without being freed.
func (cg *CodeGen) genThrow(s *parser.Statement) {
	format, args := cg.printArgs(s)
	operands := append([]value.Value{cg.stringConst(format)}, cg.formatArgs(args)...)
	cg.call("runtime_throwException", operands...)
	cg.resetNeedsFree()
	cg.unreachable()
}

func (cg *CodeGen) genReturn(s *parser.Statement) {
	sig := cg.sig
	if s.Expr == nil || sig == nil {
		cg.genFunctionEnd()
		return
	}
	ret := sig.ReturnType
	cg.genExpr(s.Expr)
	if ret.PassedByReference() {
		v := cg.pop(false)
		cg.copyOrMoveElement(element{typ: ret, val: cg.fn.retVal, isRef: true}, v, false)
		cg.freeElements(true)
		cg.ret(nil)
		return
	}
	v := cg.pop(true)
	if isRefCounted(ret) && !v.isNull && !v.needsFree {
		cg.refObject(v)
	} else if v.needsFree {
		cg.release(v)
	}
	cg.freeElements(true)
	cg.ret(v.val)
}

// genRefOrUnref adjusts the reference count of an object. Objects of classes
// without reference counting are left alone.
func (cg *CodeGen) genRefOrUnref(s *parser.Statement) {
	if s.Expr == nil || !isRefCounted(s.Expr.Type) {
		return
	}
	cg.genExpr(s.Expr)
	v := cg.pop(true)
	if s.Kind == parser.StmtRef {
		cg.refObject(v)
	} else {
		cg.unrefObject(v)
	}
}
