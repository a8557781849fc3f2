package parser

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/lexer"
	"github.com/pkg/errors"
)

// Error is a listing error at a position
type Error struct {
	Pos lexer.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func fail(n *Node, format string, args ...interface{}) {
	var pos lexer.Position
	if n != nil {
		pos = n.Pos
	}
	panic(&Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

type namedReader struct {
	io.Reader
	name string
}

func (r namedReader) Name() string { return r.name }

// ReadFile reads a program listing from disk.
func ReadFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening listing")
	}
	defer f.Close()
	return Read(path, f)
}

// ReadString reads a program listing held in memory.
func ReadString(name, src string) (*Program, error) {
	return Read(name, strings.NewReader(src))
}

// Read parses and binds a program listing.
func Read(name string, r io.Reader) (*Program, error) {
	listing := &Listing{}
	if err := listingParser.Parse(namedReader{r, name}, listing); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", name)
	}
	return Build(listing)
}

type reader struct {
	prog      *Program
	classes   map[string]*Class
	structs   map[string]*Function
	enums     map[string]*Function
	funcs     map[string]*Function
	sigs      map[*Function]*Signature
	operators map[string][]*Signature
	builtins  map[Builtin]*Function
	untyped   map[*Expr]bool
	// pendingInit holds initializers until every name is declared.
	pendingInit map[*Variable]*Node
	bodies      []func()
}

// Build binds a parsed listing into a Program.
func Build(listing *Listing) (prog *Program, err error) {
	defer func() {
		if e := recover(); e != nil {
			perr, ok := e.(*Error)
			if !ok {
				panic(e)
			}
			prog, err = nil, perr
		}
	}()
	if len(listing.Nodes) != 1 || listing.Nodes[0].Head() != "program" {
		var n *Node
		if len(listing.Nodes) > 0 {
			n = listing.Nodes[0]
		}
		fail(n, "expected a single (program ...) form")
	}
	r := &reader{
		classes:   map[string]*Class{},
		structs:   map[string]*Function{},
		enums:     map[string]*Function{},
		funcs:     map[string]*Function{},
		sigs:      map[*Function]*Signature{},
		operators: map[string][]*Signature{},
		builtins:  map[Builtin]*Function{},
		untyped:   map[*Expr]bool{},

		pendingInit: map[*Variable]*Node{},
	}
	r.program(listing.Nodes[0])
	return r.prog, nil
}

func (r *reader) program(n *Node) {
	args := n.Args()
	if len(args) == 0 || args[0].Str == nil {
		fail(n, "program needs a name")
	}
	mainFn := &Function{Name: "main", Kind: FuncModule, Exported: true}
	r.prog = &Program{Name: unquote(args[0])}
	root := &Block{Owner: mainFn, Line: r.line(n, nil)}
	mainFn.Block = root
	r.prog.Root = root
	items := args[1:]
	// Names first, so types can refer to classes, structs and enums declared later.
	for _, item := range items {
		switch item.Head() {
		case "file":
			a := item.Args()
			if len(a) != 2 || a[0].Str == nil || a[1].Str == nil {
				fail(item, "file takes a name and a directory")
			}
			r.prog.Files = append(r.prog.Files, &Filepath{Name: unquote(a[0]), Directory: unquote(a[1])})
		case "class":
			r.declareClass(item)
		case "struct":
			name := r.name(item)
			fn := &Function{Name: name, Path: name, Kind: FuncStruct, Line: r.line(item, nil)}
			fn.Block = &Block{Owner: fn}
			r.structs[name] = fn
		case "enum":
			name := r.name(item)
			fn := &Function{Name: name, Path: name, Kind: FuncEnum, Line: r.line(item, nil)}
			fn.Block = &Block{Owner: fn}
			r.enums[name] = fn
		}
	}
	if len(r.prog.Files) > 0 {
		root.File = r.prog.Files[0]
		root.Line = &Line{File: root.File, Num: 1}
	}
	// Field and entry types next, so signatures see complete structs and enums.
	for _, item := range items {
		switch item.Head() {
		case "struct":
			r.structFields(item)
		case "enum":
			r.enumEntries(item)
		}
	}
	for _, item := range items {
		switch item.Head() {
		case "file", "main", "struct", "enum":
		case "class":
			r.classMembers(item)
		case "var":
			v := r.variable(item, root, VarLocal)
			root.Variables = append(root.Variables, v)
		case "func":
			r.function(item)
		case "extern":
			r.extern(item)
		default:
			fail(item, "unknown item %q", item.Head())
		}
	}
	for _, item := range items {
		if item.Head() == "main" {
			a := item.Args()
			if len(a) != 1 || a[0].Head() != "body" {
				fail(item, "main takes a body")
			}
			sc := &scope{r: r, fn: mainFn, block: root}
			body := a[0]
			r.bodies = append(r.bodies, func() {
				root.Statements = r.statements(body.Args(), sc, root)
			})
		}
	}
	for _, v := range root.Variables {
		v := v
		r.bodies = append(r.bodies, func() { r.initializer(v, &scope{r: r, fn: mainFn, block: root}) })
	}
	for i := 0; i < len(r.bodies); i++ {
		r.bodies[i]()
	}
}

func (r *reader) name(n *Node) string {
	a := n.Args()
	if len(a) == 0 || a[0].Atom == nil {
		fail(n, "%s needs a name", n.Head())
	}
	return *a[0].Atom
}

func (r *reader) file(index int, n *Node) *Filepath {
	if index < 0 || index >= len(r.prog.Files) {
		if index == 0 {
			return nil
		}
		fail(n, "no file %d", index)
	}
	return r.prog.Files[index]
}

// line builds a source line from a (line N) attribute, falling back to the listing line.
func (r *reader) line(n *Node, file *Filepath) *Line {
	if file == nil && len(r.prog.Files) > 0 {
		file = r.prog.Files[0]
	}
	num := uint32(n.Pos.Line)
	for _, a := range n.Args() {
		if a.Head() == "line" {
			num = r.uint32Arg(a)
		}
	}
	return &Line{File: file, Num: num}
}

func (r *reader) uint32Arg(n *Node) uint32 {
	a := n.Args()
	if len(a) != 1 || a[0].Atom == nil {
		fail(n, "%s takes a number", n.Head())
	}
	return r.number32(a[0])
}

func (r *reader) number32(n *Node) uint32 {
	v, err := strconv.ParseUint(*n.Atom, 10, 32)
	if err != nil {
		fail(n, "bad number %q", *n.Atom)
	}
	return uint32(v)
}

func (r *reader) stringArg(n *Node) string {
	a := n.Args()
	if len(a) != 1 || a[0].Str == nil {
		fail(n, "%s takes a string", n.Head())
	}
	return unquote(a[0])
}

func (r *reader) declareClass(n *Node) {
	name := r.name(n)
	class := &Class{Name: name, Path: name, RefWidth: 32, Instantiated: true, Methods: map[string]*Function{}}
	for _, a := range n.Args()[1:] {
		switch {
		case a.Head() == "refwidth":
			class.RefWidth = r.uint32Arg(a)
		case a.IsAtom("refcounted"):
			class.RefCounted = true
		case a.Head() == "path":
			class.Path = r.stringArg(a)
		case a.IsAtom("unused"):
			class.Instantiated = false
		}
	}
	class.Line = r.line(n, nil)
	owner := &Function{Name: name, Path: class.Path, Kind: FuncModule, Class: class}
	class.Block = &Block{Owner: owner, Line: class.Line}
	owner.Block = class.Block
	r.classes[name] = class
	r.prog.Classes = append(r.prog.Classes, class)
}

func (r *reader) classMembers(n *Node) {
	class := r.classes[r.name(n)]
	for _, a := range n.Args()[1:] {
		if a.Head() != "members" {
			continue
		}
		for _, m := range a.Args() {
			v := r.variable(m, class.Block, VarLocal)
			v.ArrayVar = &Variable{
				Name:         v.Name,
				Type:         ArrayType(v.Type),
				Block:        class.Block,
				Instantiated: v.Instantiated,
				Line:         v.Line,
			}
			class.Members = append(class.Members, v)
			class.Block.Variables = append(class.Block.Variables, v.ArrayVar)
		}
	}
}

func (r *reader) structFields(n *Node) {
	fn := r.structs[r.name(n)]
	for _, f := range n.Args()[1:] {
		a := f.List
		if a == nil || len(a.Items) != 2 || a.Items[0].Atom == nil {
			fail(f, "struct field is (name type)")
		}
		fn.Block.Variables = append(fn.Block.Variables, &Variable{
			Name:         *a.Items[0].Atom,
			Kind:         VarParam,
			Instantiated: true,
			Type:         r.datatype(a.Items[1], nil),
			Block:        fn.Block,
			Line:         r.line(f, nil),
		})
	}
}

func (r *reader) enumEntries(n *Node) {
	fn := r.enums[r.name(n)]
	args := n.Args()
	if len(args) < 2 || args[1].Atom == nil {
		fail(n, "enum needs a width")
	}
	width, err := strconv.ParseUint(*args[1].Atom, 10, 32)
	if err != nil {
		fail(args[1], "bad enum width")
	}
	typ := &Datatype{Kind: KindEnum, Width: uint32(width), Function: fn}
	for _, e := range args[2:] {
		a := e.List
		if a == nil || len(a.Items) != 2 || a.Items[0].Atom == nil || a.Items[1].Atom == nil {
			fail(e, "enum entry is (name value)")
		}
		value, err := strconv.ParseUint(*a.Items[1].Atom, 10, 32)
		if err != nil {
			fail(e, "bad enum value")
		}
		fn.Block.Variables = append(fn.Block.Variables, &Variable{
			Name:         *a.Items[0].Atom,
			Const:        true,
			Instantiated: true,
			Type:         typ,
			EntryValue:   uint32(value),
			Block:        fn.Block,
			Line:         r.line(e, nil),
		})
	}
}

// variable reads (var name type flag... (init expr)). Initializers are bound later.
func (r *reader) variable(n *Node, block *Block, kind VarKind) *Variable {
	if n.Head() != "var" {
		fail(n, "expected (var ...)")
	}
	args := n.Args()
	if len(args) < 2 || args[0].Atom == nil {
		fail(n, "var is (var name type ...)")
	}
	v := &Variable{
		Name:         *args[0].Atom,
		Kind:         kind,
		Const:        kind == VarParam,
		Instantiated: true,
		Block:        block,
		Line:         r.line(n, block.File),
	}
	v.Type = r.datatype(args[1], nil)
	for _, a := range args[2:] {
		switch {
		case a.IsAtom("const"):
			v.Const = true
		case a.IsAtom("var"):
			v.Const = false
		case a.IsAtom("generated"):
			v.Generated = true
		case a.IsAtom("unused"):
			v.Instantiated = false
		case a.Head() == "line":
		case a.Head() == "init":
			if len(a.Args()) != 1 {
				fail(a, "init takes one expression")
			}
			r.pendingInit[v] = a.Args()[0]
		default:
			fail(a, "unknown variable flag")
		}
	}
	return v
}

func (r *reader) initializer(v *Variable, sc *scope) {
	n, ok := r.pendingInit[v]
	if !ok {
		return
	}
	delete(r.pendingInit, v)
	v.Initializer = sc.expr(n)
	sc.adopt(v.Initializer, v.Type)
}

func (r *reader) function(n *Node) {
	name := r.name(n)
	fn := &Function{Name: name, Path: name, Kind: FuncPlain}
	fn.Block = &Block{Owner: fn}
	sig := &Signature{Function: fn, Block: fn.Block, ReturnType: NoneType()}
	var params, locals, body *Node
	fileIndex := 0
	explicitPath := false
	for _, a := range n.Args()[1:] {
		switch {
		case a.Head() == "kind":
			fn.Kind = r.funcKind(a)
		case a.IsAtom("exported"):
			fn.Exported = true
		case a.IsAtom("funcptr"):
			sig.CalledByFuncPtr = true
		case a.Head() == "path":
			fn.Path = r.stringArg(a)
			explicitPath = true
		case a.Head() == "class":
			fn.Class = r.classes[r.name(a)]
			if fn.Class == nil {
				fail(a, "unknown class %q", r.name(a))
			}
		case a.Head() == "line":
		case a.Head() == "file":
			fileIndex = int(r.uint32Arg(a))
		case a.Head() == "params":
			params = a
		case a.Head() == "locals":
			locals = a
		case a.Head() == "returns":
			if len(a.Args()) != 1 {
				fail(a, "returns takes a type")
			}
			sig.ReturnType = r.datatype(a.Args()[0], nil)
		case a.Head() == "body":
			body = a
		default:
			fail(a, "unknown function attribute")
		}
	}
	if fn.Kind == FuncConstructor && fn.Class == nil {
		fail(n, "constructor %s has no class", name)
	}
	if fn.Class != nil && !explicitPath && fn.Kind != FuncConstructor {
		fn.Path = fn.Class.Path + "_" + name
	}
	fn.Block.File = r.file(fileIndex, n)
	fn.Line = r.line(n, fn.Block.File)
	fn.Block.Line = fn.Line
	sig.Line = fn.Line
	sig.Path = fn.Path
	if fn.Kind == FuncConstructor {
		sig.ReturnType = ClassType(fn.Class)
	}
	if params != nil {
		for _, p := range params.Args() {
			v := r.variable(p, fn.Block, VarParam)
			fn.Block.Variables = append(fn.Block.Variables, v)
			sig.Instantiated = append(sig.Instantiated, v.Instantiated)
		}
	}
	if locals != nil {
		for _, l := range locals.Args() {
			fn.Block.Variables = append(fn.Block.Variables, r.variable(l, fn.Block, VarLocal))
		}
	}
	if fn.Class != nil {
		fn.Class.Methods[name] = fn
	}
	if fn.Kind == FuncOperator {
		r.operators[name] = append(r.operators[name], sig)
	} else if fn.Class == nil || fn.Kind == FuncConstructor {
		r.funcs[name] = fn
	}
	r.sigs[fn] = sig
	r.prog.Signatures = append(r.prog.Signatures, sig)
	sc := &scope{r: r, fn: fn, block: fn.Block}
	r.bodies = append(r.bodies, func() {
		for _, v := range fn.Block.Variables {
			r.initializer(v, sc)
		}
		if body != nil {
			fn.Block.Statements = r.statements(body.Args(), sc, fn.Block)
		}
	})
}

func (r *reader) funcKind(n *Node) FuncKind {
	switch r.name(n) {
	case "plain":
		return FuncPlain
	case "constructor":
		return FuncConstructor
	case "destructor":
		return FuncDestructor
	case "method":
		return FuncMethod
	case "operator":
		return FuncOperator
	case "final":
		return FuncFinal
	case "iterator":
		return FuncIterator
	}
	fail(n, "unknown function kind %q", r.name(n))
	return FuncPlain
}

func (r *reader) extern(n *Node) {
	name := r.name(n)
	fn := &Function{Name: name, Path: name, Kind: FuncPlain, Extern: true, Exported: true}
	fn.Block = &Block{Owner: fn}
	sig := &Signature{Function: fn, Path: name, Block: fn.Block, ReturnType: NoneType()}
	for _, a := range n.Args()[1:] {
		switch a.Head() {
		case "params":
			for _, p := range a.Args() {
				v := r.variable(p, fn.Block, VarParam)
				fn.Block.Variables = append(fn.Block.Variables, v)
				sig.Instantiated = append(sig.Instantiated, true)
			}
		case "returns":
			if len(a.Args()) != 1 {
				fail(a, "returns takes a type")
			}
			sig.ReturnType = r.datatype(a.Args()[0], nil)
		default:
			fail(a, "unknown extern attribute")
		}
	}
	fn.Line = r.line(n, nil)
	sig.Line = fn.Line
	r.funcs[name] = fn
	r.sigs[fn] = sig
	r.prog.Externs = append(r.prog.Externs, sig)
}

var scalarTypes = map[string]*Datatype{
	"bool":   boolType,
	"none":   noneType,
	"string": stringType,
	"f32":    {Kind: KindFloat, Width: 32},
	"f64":    {Kind: KindFloat, Width: 64},
}

// parseIntType recognizes uN and iN.
func parseIntType(s string) (*Datatype, bool) {
	if len(s) < 2 || (s[0] != 'u' && s[0] != 'i') {
		return nil, false
	}
	width, err := strconv.ParseUint(s[1:], 10, 32)
	if err != nil || width == 0 {
		return nil, false
	}
	if s[0] == 'u' {
		return UintType(uint32(width)), true
	}
	return IntType(uint32(width)), true
}

func (r *reader) datatype(n *Node, sc *scope) *Datatype {
	if n.Atom != nil {
		if t, ok := scalarTypes[*n.Atom]; ok {
			return t
		}
		if t, ok := parseIntType(*n.Atom); ok {
			return t
		}
		fail(n, "unknown type %q", *n.Atom)
	}
	args := n.Args()
	switch n.Head() {
	case "array":
		if len(args) != 1 {
			fail(n, "array takes one type")
		}
		return ArrayType(r.datatype(args[0], sc))
	case "tuple":
		var types []*Datatype
		for _, a := range args {
			types = append(types, r.datatype(a, sc))
		}
		return TupleType(types...)
	case "secret":
		if len(args) != 1 {
			fail(n, "secret takes one type")
		}
		return r.datatype(args[0], sc).WithSecret(true)
	case "class", "null":
		class := r.classes[r.name(n)]
		if class == nil {
			fail(n, "unknown class %q", r.name(n))
		}
		if n.Head() == "null" {
			return NullType(class)
		}
		return ClassType(class)
	case "struct":
		fn := r.structs[r.name(n)]
		if fn == nil {
			fail(n, "unknown struct %q", r.name(n))
		}
		return structType(fn)
	case "enum", "enumclass":
		fn := r.enums[r.name(n)]
		if fn == nil {
			fail(n, "unknown enum %q", r.name(n))
		}
		if n.Head() == "enumclass" {
			return &Datatype{Kind: KindEnumClass, Function: fn}
		}
		return enumType(fn)
	case "funcptr":
		if len(args) == 0 {
			fail(n, "funcptr needs a return type")
		}
		var params []*Datatype
		for _, a := range args[1:] {
			params = append(params, r.datatype(a, sc))
		}
		return FuncptrType(r.datatype(args[0], sc), params...)
	case "modint":
		if len(args) != 2 {
			fail(n, "modint is (modint type modulus)")
		}
		base := r.datatype(args[0], sc)
		if sc == nil {
			sc = &scope{r: r, block: r.prog.Root, fn: r.prog.Root.Owner}
		}
		modulus := sc.expr(args[1])
		sc.adopt(modulus, base)
		return &Datatype{Kind: KindModint, Width: base.Width, Secret: base.Secret, Modulus: modulus}
	}
	fail(n, "unknown type form %q", n.Head())
	return nil
}

func structType(fn *Function) *Datatype {
	t := &Datatype{Kind: KindStruct, Function: fn}
	for _, v := range fn.Block.Params() {
		t.Types = append(t.Types, v.Type)
	}
	return t
}

func enumType(fn *Function) *Datatype {
	for _, v := range fn.Block.Variables {
		return v.Type
	}
	return &Datatype{Kind: KindEnum, Width: 32, Function: fn}
}

func unquote(n *Node) string {
	s, err := strconv.Unquote(*n.Str)
	if err != nil {
		fail(n, "bad string literal: %v", err)
	}
	return s
}
