package codegen

import (
	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

func (cg *CodeGen) genCall(e *parser.Expr) {
	callee := e.Children[0]
	if callee.Type.Kind == parser.KindFuncptr {
		cg.genFuncptrCall(e)
		return
	}
	fn := callee.Type.Function
	if fn == nil {
		cg.fail("Cannot call %s", callee)
	}
	switch fn.Kind {
	case parser.FuncBuiltin:
		cg.genBuiltinCall(e, fn.Builtin)
		return
	case parser.FuncStruct:
		cg.genStructCall(e, fn)
		return
	}
	if e.Signature == nil {
		cg.fail("Call to %s has no signature", fn.Name)
	}
	cg.callSignature(e.Signature, callee, e.Children[1:])
}

// bindArgs lines arguments up with parameters. Named arguments go to the
// parameter of that name and missing ones take the parameter default.
func (cg *CodeGen) bindArgs(params []*parser.Variable, args []*parser.Expr) []*parser.Expr {
	vals := make([]*parser.Expr, len(params))
	for i, a := range args {
		if a.Kind == parser.ExprNamedParam {
			found := false
			for j, p := range params {
				if p.Name == a.Name {
					vals[j] = a.Children[1]
					found = true
				}
			}
			if !found {
				cg.fail("No parameter named %s", a.Name)
			}
			continue
		}
		if i >= len(vals) {
			cg.fail("Too many arguments")
		}
		vals[i] = a
	}
	for i, p := range params {
		if vals[i] == nil {
			if p.Initializer == nil {
				cg.fail("Missing argument %s", p.Name)
			}
			vals[i] = p.Initializer
		}
	}
	return vals
}

// pushArgs evaluates the arguments of used parameters last to first, so the
// first one ends up on top.
func (cg *CodeGen) pushArgs(params []*parser.Variable, vals []*parser.Expr, used func(i int) bool) {
	for i := len(params) - 1; i >= 0; i-- {
		if !used(i) {
			continue
		}
		cg.genExpr(vals[i])
		p := params[i]
		v := cg.pop(false)
		switch {
		case p.Type.PassedByReference():
		case p.Const:
			v = cg.deref(v)
		case !v.isRef:
			slot := cg.tempSlot(cg.llType(p.Type))
			cg.store(v.val, slot)
			v = element{typ: v.typ, val: slot, isRef: true}
		}
		cg.push(v)
	}
}

// callSignature calls a generated function. callee is nil for operator
// overloads, whose operands are the arguments.
func (cg *CodeGen) callSignature(sig *parser.Signature, callee *parser.Expr, args []*parser.Expr) {
	fn := sig.Function
	params := sig.Block.Params()
	isMethod := callee != nil && callee.IsMethodCall()
	skip := 0
	if (fn.Kind == parser.FuncConstructor || isMethod) && len(params) > 0 {
		skip = 1
	}
	vals := cg.bindArgs(params[skip:], args)
	cg.pushArgs(params[skip:], vals, func(i int) bool {
		return sig.ParamInstantiated(i+skip) || sig.CalledByFuncPtr
	})
	if isMethod {
		cg.genExpr(callee)
		if !cg.pop(false).isDelegate {
			cg.fail("Method call without a receiver")
		}
		if params[0].Const && !params[0].Type.PassedByReference() {
			cg.push(cg.pop(true))
		}
	}
	ret := sig.ReturnType
	var operands []value.Value
	var result element
	if ret.PassedByReference() {
		result = cg.tempValue(ret)
		operands = append(operands, result.val)
	}
	if isMethod {
		operands = append(operands, cg.pop(false).val)
	}
	for i := skip; i < len(params); i++ {
		if !sig.ParamInstantiated(i) && !sig.CalledByFuncPtr {
			continue
		}
		operands = append(operands, cg.pop(false).val)
	}
	cg.pushResult(ret, cg.funcRef(sig.Path), operands, result)
}

// pushResult emits the call and pushes its result, if any. Results returned
// by reference land in result.
func (cg *CodeGen) pushResult(ret *parser.Datatype, callee value.Value, operands []value.Value, result element) {
	call := cg.callFunc(callee, operands...)
	switch {
	case ret.PassedByReference():
		cg.push(result)
	case ret.Kind == parser.KindNone:
	default:
		r := element{typ: ret, val: call}
		if isRefCounted(ret) {
			r = cg.ownResult(r)
		}
		cg.push(r)
	}
}

// genFuncptrCall calls through a function pointer. Parameters are const.
func (cg *CodeGen) genFuncptrCall(e *parser.Expr) {
	callee := e.Children[0]
	ft := callee.Type
	args := e.Children[1:]
	if len(args) != len(ft.Types) {
		cg.fail("Function pointer takes %d arguments", len(ft.Types))
	}
	for i := len(args) - 1; i >= 0; i-- {
		cg.genExpr(args[i])
		cg.push(cg.pop(true))
	}
	cg.genExpr(callee)
	fp := cg.pop(true)
	ret := ft.Ret
	var operands []value.Value
	var result element
	if ret.PassedByReference() {
		result = cg.tempValue(ret)
		operands = append(operands, result.val)
	}
	for range ft.Types {
		operands = append(operands, cg.pop(false).val)
	}
	cg.pushResult(ret, fp.val, operands, result)
}

// genStructCall builds a struct value in a temporary from its field arguments.
func (cg *CodeGen) genStructCall(e *parser.Expr, fn *parser.Function) {
	fields := fn.Block.Params()
	vals := cg.bindArgs(fields, e.Children[1:])
	s := cg.tempValue(e.Type)
	for i := len(fields) - 1; i >= 0; i-- {
		cg.genExpr(vals[i])
	}
	for i := range fields {
		v := cg.pop(false)
		cg.copyOrMoveElement(cg.indexTuple(s, i), v, false)
	}
	cg.push(s)
}

// formatArgs evaluates print arguments as variadic operands. Small integers
// are widened to the word and floats to double.
func (cg *CodeGen) formatArgs(args []*parser.Expr) []value.Value {
	for i := len(args) - 1; i >= 0; i-- {
		cg.genExpr(args[i])
		cg.push(cg.formatOperand(cg.pop(true)))
	}
	operands := make([]value.Value, 0, len(args))
	for range args {
		operands = append(operands, cg.pop(false).val)
	}
	return operands
}

// formatOperand applies the default argument promotions to a dereferenced
// element.
func (cg *CodeGen) formatOperand(v element) element {
	switch {
	case v.typ.Kind == parser.KindBool || (v.typ.IsInteger() || v.typ.Kind == parser.KindEnum) && !v.typ.IsBigint():
		return element{typ: intOf(v.typ.Kind, parser.WordWidth, v.typ.Secret), val: cg.widen(v)}
	case v.typ.Kind == parser.KindFloat && v.typ.Width == 32:
		return element{typ: parser.FloatType(64), val: cg.cast("fpext", v.val, types.Double)}
	}
	return v
}

// sprintf formats args into dest.
func (cg *CodeGen) sprintf(dest, format element, args []*parser.Expr) {
	cg.call("runtime_sprintf", append([]value.Value{dest.val, format.val}, cg.formatArgs(args)...)...)
}
