package codegen

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir/value"
)

// element is a value on the expression stack
type element struct {
	typ *parser.Datatype
	val value.Value
	// isRef means val points to the value.
	isRef bool
	// needsFree marks an owned temporary that is released at statement end
	// unless it is moved somewhere first.
	needsFree bool
	// isDelegate means the element below is the receiver of this method.
	isDelegate bool
	isNull     bool
	// isConst points into read-only storage; mutation must copy first.
	isConst bool
}

func (cg *CodeGen) push(e element) {
	cg.stack = append(cg.stack, e)
}

func (cg *CodeGen) pushValue(t *parser.Datatype, v value.Value, isRef bool) {
	cg.push(element{typ: t, val: v, isRef: isRef})
}

// pop removes the top element, loading it first when deref is set.
func (cg *CodeGen) pop(deref bool) element {
	if len(cg.stack) == 0 {
		cg.fail("Element stack underflow: %s", cg.dumpStack())
	}
	e := cg.stack[len(cg.stack)-1]
	cg.stack = cg.stack[:len(cg.stack)-1]
	if deref {
		e = cg.deref(e)
	}
	return e
}

func (cg *CodeGen) top() *element {
	if len(cg.stack) == 0 {
		cg.fail("Element stack underflow: %s", cg.dumpStack())
	}
	return &cg.stack[len(cg.stack)-1]
}

// deref loads a referenced element. Values passed by reference stay pointers.
func (cg *CodeGen) deref(e element) element {
	if !e.isRef || e.typ.PassedByReference() {
		return e
	}
	return cg.derefAny(e)
}

func (cg *CodeGen) derefAny(e element) element {
	if !e.isRef {
		return e
	}
	e.val = cg.load(cg.llType(e.typ), e.val)
	e.isRef = false
	return e
}

// tempValue allocates a zeroed stack temporary of the datatype. Temporaries
// holding arrays are owned and go on the free list.
func (cg *CodeGen) tempValue(t *parser.Datatype) element {
	e := element{typ: t, val: cg.tempAlloca(cg.llType(t)), isRef: true}
	if t.ContainsArray() {
		e.needsFree = true
		cg.free = append(cg.free, e)
	}
	return e
}

// ownResult records an owned ref-counted result so it is unreffed unless moved.
func (cg *CodeGen) ownResult(e element) element {
	e.needsFree = true
	cg.free = append(cg.free, e)
	return e
}

// release removes an element from the free list because its value moved.
func (cg *CodeGen) release(e element) {
	for i := len(cg.free) - 1; i >= 0; i-- {
		if cg.free[i].val == e.val {
			cg.free = append(cg.free[:i], cg.free[i+1:]...)
			if i < cg.localsEnd {
				cg.localsEnd--
			}
			return
		}
	}
}

// freeElements releases the statement temporaries, and the locals too when
// freeLocals is set. The list is left holding only the locals.
func (cg *CodeGen) freeElements(freeLocals bool) {
	end := cg.localsEnd
	if freeLocals {
		end = 0
	}
	for i := len(cg.free) - 1; i >= end; i-- {
		cg.freeElement(cg.free[i])
	}
	cg.free = cg.free[:cg.localsEnd]
}

// resetNeedsFree drops the temporaries without freeing them, for paths that
// never return.
func (cg *CodeGen) resetNeedsFree() {
	cg.free = cg.free[:cg.localsEnd]
}

// dumpStack renders the element stack for internal error reports.
func (cg *CodeGen) dumpStack() string {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, MaxDepth: 2}
	return fmt.Sprintf("stack %d, free %d (locals %d)\n%s", len(cg.stack), len(cg.free), cg.localsEnd,
		cfg.Sdump(cg.stack))
}
