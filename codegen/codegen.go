package codegen

import (
	"fmt"
	"io"

	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"
)

const (
	dataLayout    = "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
	linuxTriple   = "x86_64-pc-linux-gnu"
	windowsTriple = "x86_64-w64-windows-gnu"
)

// Config selects the target and the checks carried by the generated code
type Config struct {
	// Unsafe drops overflow, truncation, bounds and shift limit checks.
	Unsafe bool
	// Debug emits DWARF metadata and !dbg locations.
	Debug   bool
	Windows bool
	// ModuleName is written to the ModuleID comment and source_filename.
	ModuleName string
}

// Error is a fatal code generation error. Upstream contract violations and
// compile time errors in the program both end up here.
type Error struct {
	Line *parser.Line
	Msg  string
}

func (e *Error) Error() string {
	if e.Line != nil && e.Line.File != nil {
		return fmt.Sprintf("%s:%d: %s", e.Line.File.Name, e.Line.Num, e.Msg)
	}
	return e.Msg
}

// CodeGen struct
type CodeGen struct {
	prog *parser.Program
	cfg  Config
	// debug is cfg.Debug narrowed to the function being generated.
	debug bool

	module *ir.Module
	types  *typeCache
	decls  *declCatalog
	pool   *constPool
	dbg    *debugInfo

	stack     []element
	free      []element
	localsEnd int

	fn    *function
	scope *parser.Block
	sig   *parser.Signature
	line  *parser.Line
	stmt  *parser.Statement

	// funcs holds the generated functions, externs and class helpers by path.
	funcs   map[string]*ir.Func
	globals map[*parser.Variable]*ir.Global
	argv    *ir.Global
	// helpers are class helpers like Foo_ref the program does not define.
	helpers []*ir.Func
}

// NewCodeGen creates a new CodeGen
func NewCodeGen(prog *parser.Program, cfg Config) *CodeGen {
	if cfg.ModuleName == "" {
		cfg.ModuleName = prog.Name
	}
	cg := &CodeGen{
		prog:    prog,
		cfg:     cfg,
		module:  newModule(cfg),
		types:   newTypeCache(),
		decls:   newDeclCatalog(),
		pool:    newConstPool(),
		funcs:   map[string]*ir.Func{},
		globals: map[*parser.Variable]*ir.Global{},
	}
	if cfg.Debug {
		cg.dbg = newDebugInfo(prog, cfg.ModuleName)
	}
	return cg
}

func newModule(cfg Config) *ir.Module {
	m := ir.NewModule()
	m.SourceFilename = cfg.ModuleName
	m.DataLayout = dataLayout
	m.TargetTriple = linuxTriple
	if cfg.Windows {
		m.TargetTriple = windowsTriple
	}
	m.TypeDefs = append(m.TypeDefs, runtimeArray)
	return m
}

// Generate writes the LLVM assembly for the whole program to w.
func (cg *CodeGen) Generate(w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			err = e
		}
	}()
	cg.declareExterns()
	cg.declareSignatures()
	cg.declareGlobals(cg.prog.Root)
	for _, class := range cg.prog.Classes {
		if class.Instantiated {
			cg.declareGlobals(class.Block)
		}
	}
	if cg.argv == nil {
		cg.argv = cg.module.NewGlobalDef("argv", constant.NewZeroInitializer(runtimeArray))
		cg.argv.Preemption = enum.PreemptionDSOLocal
	}
	cg.genFunction(cg.prog.Root, nil)
	for _, sig := range cg.prog.Signatures {
		fn := sig.Function
		if sig.Block == cg.prog.Root || fn.Kind == parser.FuncIterator || fn.Extern {
			continue
		}
		cg.genFunction(sig.Block, sig)
	}
	cg.module.Funcs = append(cg.module.Funcs, cg.helpers...)
	if cg.dbg != nil {
		cg.dbg.finish(cg.module)
	}
	if _, err = fmt.Fprintf(w, "; ModuleID = '%s'\n", cg.cfg.ModuleName); err == nil {
		_, err = cg.module.WriteTo(w)
	}
	return errors.Wrap(err, "writing llvm assembly")
}

// fail aborts generation with an error at the current source line.
func (cg *CodeGen) fail(format string, args ...interface{}) {
	panic(&Error{Line: cg.line, Msg: fmt.Sprintf(format, args...)})
}

func (cg *CodeGen) declareExterns() {
	for _, sig := range cg.prog.Externs {
		ret := cg.llRefType(sig.ReturnType)
		var params []*ir.Param
		if sig.ReturnType.PassedByReference() {
			params = append(params, ir.NewParam("", ret))
			ret = types.Void
		}
		for _, v := range sig.Block.Params() {
			params = append(params, ir.NewParam("", cg.paramType(v)))
		}
		f := cg.module.NewFunc(sig.Path, ret, params...)
		f.Preemption = enum.PreemptionDSOLocal
		cg.funcs[sig.Path] = f
	}
}

// declareSignatures creates the function of every signature up front, so
// calls can refer to functions generated later.
func (cg *CodeGen) declareSignatures() {
	for _, sig := range cg.prog.Signatures {
		fn := sig.Function
		if sig.Block == cg.prog.Root || fn.Kind == parser.FuncIterator || fn.Extern {
			continue
		}
		cg.funcs[sig.Path] = cg.newSignatureFunc(sig)
	}
}

// funcRef is the function of a path, which must be generated or declared.
func (cg *CodeGen) funcRef(path string) *ir.Func {
	f, ok := cg.funcs[path]
	if !ok {
		cg.fail("Undefined function %s", path)
	}
	return f
}

// declareGlobals creates a global for every instantiated variable of a module block.
func (cg *CodeGen) declareGlobals(block *parser.Block) {
	for _, v := range block.Variables {
		if v.Kind != parser.VarLocal || !v.Instantiated || v.IsLocal() {
			continue
		}
		g := cg.module.NewGlobalDef(cg.globalName(v), cg.zeroValue(v.Type))
		g.Preemption = enum.PreemptionDSOLocal
		if cg.dbg != nil {
			g.Metadata = append(g.Metadata, &metadata.Attachment{Name: "dbg", Node: cg.dbg.globalVariable(cg, v)})
		}
		cg.globals[v] = g
		if v.Name == "argv" && block == cg.prog.Root {
			cg.argv = g
		}
	}
}

// zeroValue is the initial value of a global of the datatype.
func (cg *CodeGen) zeroValue(t *parser.Datatype) constant.Constant {
	switch t.Kind {
	case parser.KindClass, parser.KindNull:
		return intConst(t.Width, -1)
	case parser.KindFuncptr:
		return constant.NewNull(cg.llType(t).(*types.PointerType))
	case parser.KindBool:
		return constant.False
	case parser.KindUint, parser.KindInt, parser.KindEnum:
		if !t.IsBigint() {
			return intConst(t.Width, 0)
		}
	}
	return constant.NewZeroInitializer(cg.llType(t))
}

// classHelper returns Class_ref, Class_unref, Class_free or Class_allocate.
// Helpers the program does not define are declared at the end of the module.
func (cg *CodeGen) classHelper(class *parser.Class, suffix string) *ir.Func {
	path := class.Path + "_" + suffix
	if f, ok := cg.funcs[path]; ok {
		return f
	}
	ref := types.NewInt(uint64(class.RefWidth))
	var f *ir.Func
	if suffix == "allocate" {
		f = ir.NewFunc(path, ref)
	} else {
		f = ir.NewFunc(path, types.Void, ir.NewParam("", ref))
	}
	cg.funcs[path] = f
	cg.helpers = append(cg.helpers, f)
	return f
}
