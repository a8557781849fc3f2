package codegen

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/rune-sub002/parser"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/metadata"
)

// Tags !0 through !3 are the compile unit, the two module flags and the
// globals list. Interned tags start after them.
const numHeaderTags = 3

// mdTag is a numbered metadata definition kept as its LLVM text.
type mdTag struct {
	id   int64
	text string
}

func (t *mdTag) String() string   { return t.Ident() }
func (t *mdTag) Ident() string    { return fmt.Sprintf("!%d", t.id) }
func (t *mdTag) ID() int64        { return t.id }
func (t *mdTag) SetID(id int64)   { t.id = id }
func (t *mdTag) LLString() string { return t.text }
func (t *mdTag) SetDistinct(bool) {}

// mdText is inline metadata such as !DIExpression().
type mdText string

func (t mdText) String() string { return string(t) }

// debugInfo interns debug metadata by text. Every tag is added to the module
// once, at the end, in numbering order.
type debugInfo struct {
	nums map[string]int
	tags map[int]*mdTag
	next int

	files    map[*parser.Filepath]int
	typeTags map[string]int
	ptrTags  map[string]int
	globals  []int
	// scope is the subprogram of the function being generated.
	scope int
}

func newDebugInfo(prog *parser.Program, moduleName string) *debugInfo {
	d := &debugInfo{
		nums:     map[string]int{},
		tags:     map[int]*mdTag{},
		next:     numHeaderTags + 1,
		files:    map[*parser.Filepath]int{},
		typeTags: map[string]int{},
		ptrTags:  map[string]int{},
	}
	for _, f := range prog.Files {
		if f.Parent == nil || !f.Package {
			d.fileTag(f)
		}
	}
	if len(prog.Files) == 0 {
		// The compile unit always names !4 as its file.
		d.tag(fileText(moduleName, ""))
	}
	return d
}

func (d *debugInfo) tag(text string) int {
	if n, ok := d.nums[text]; ok {
		return n
	}
	n := d.next
	d.next++
	d.nums[text] = n
	d.tags[n] = &mdTag{id: int64(n), text: text}
	return n
}

// node is the definition of tag n.
func (d *debugInfo) node(n int) *mdTag {
	t, ok := d.tags[n]
	if !ok {
		panic(fmt.Sprintf("no metadata tag !%d", n))
	}
	return t
}

// attachment is the !dbg attachment of a node.
func (d *debugInfo) attachment(node metadata.MDNode) ir.Metadata {
	return ir.Metadata{&metadata.Attachment{Name: "dbg", Node: node}}
}

func fileText(name, dir string) string {
	if dir == "" {
		dir = filepath.Dir(name)
	}
	return fmt.Sprintf("!DIFile(filename: \"%s\", directory: \"%s\")",
		escapeString(filepath.Base(name)), escapeString(dir))
}

// fileTag returns the tag of a source file. Package directories take the tag
// of the first file loaded from them.
func (d *debugInfo) fileTag(f *parser.Filepath) int {
	if f == nil {
		return numHeaderTags + 1
	}
	if n, ok := d.files[f]; ok {
		return n
	}
	n := d.tag(fileText(f.Name, f.Directory))
	for p := f; p != nil; p = p.Parent {
		if _, ok := d.files[p]; ok {
			break
		}
		d.files[p] = n
	}
	return n
}

func lineNum(l *parser.Line) uint32 {
	if l == nil {
		return 0
	}
	return l.Num
}

func (d *debugInfo) location(scope int, line uint32) *mdTag {
	return d.node(d.tag(fmt.Sprintf("!DILocation(line: %d, scope: !%d)", line, scope)))
}

// subprogram creates the tag for a function, or for main when sig is nil.
func (d *debugInfo) subprogram(cg *CodeGen, block *parser.Block, sig *parser.Signature) int {
	file := d.fileTag(block.File)
	line := lineNum(block.Line)
	name := "main"
	types := "null"
	if sig != nil {
		name = escapeString(sig.Path)
		var params []string
		for i, v := range block.Params() {
			if sig.ParamInstantiated(i) || sig.CalledByFuncPtr {
				params = append(params, d.typeRef(cg, v.Type))
			}
		}
		types = strings.Join(params, ", ")
	}
	typ := d.tag(fmt.Sprintf("!DISubroutineType(types: !{%s})", types))
	return d.tag(fmt.Sprintf("distinct !DISubprogram(name: \"%s\", scope: !%d, file: !%d, line: %d, type: !%d, "+
		"isLocal: false, isDefinition: true, scopeLine: %d, isOptimized: false, unit: !0)",
		name, file, file, line, typ, line))
}

// globalVariable creates the tags of a module level variable and returns its
// expression tag.
func (d *debugInfo) globalVariable(cg *CodeGen, v *parser.Variable) *mdTag {
	var file int
	if v.Block != nil {
		file = d.fileTag(v.Block.File)
	} else {
		file = d.fileTag(nil)
	}
	gv := d.tag(fmt.Sprintf("distinct !DIGlobalVariable(name: \"%s\", scope: !0, file: !%d, line: %d, "+
		"type: %s, isLocal: false, isDefinition: true)",
		escapeString(v.Name), file, lineNum(v.Line), d.typeRef(cg, v.Type)))
	n := d.tag(fmt.Sprintf("!DIGlobalVariableExpression(var: !%d, expr: !DIExpression())", gv))
	d.globals = append(d.globals, n)
	return d.node(n)
}

// declareVariable describes a parameter (argNum > 0) or a local to the
// debugger. Call it once the variable holds its initial value.
func (cg *CodeGen) declareVariable(v *parser.Variable, argNum int) {
	d := cg.dbg
	file := d.fileTag(cg.scope.File)
	loc := d.location(d.scope, lineNum(v.Line))
	argPos := ""
	if argNum != 0 {
		argPos = fmt.Sprintf(", arg: %d", argNum)
	}
	lv := d.tag(fmt.Sprintf("!DILocalVariable(name: \"%s\"%s, scope: !%d, file: !%d, line: %d, type: %s)",
		escapeString(v.Name), argPos, d.scope, file, lineNum(v.Line), d.typeRef(cg, v.Type)))
	fn := "llvm.dbg.declare"
	if v.Kind == parser.VarParam {
		fn = "llvm.dbg.value"
	}
	call := cg.call(fn, &metadata.Value{Value: cg.varValue(v)}, &metadata.Value{Value: d.node(lv)},
		&metadata.Value{Value: mdText("!DIExpression()")})
	call.Metadata = d.attachment(loc)
}

// typeRef is "!N" for the type tag of a datatype, or "null" for none.
func (d *debugInfo) typeRef(cg *CodeGen, t *parser.Datatype) string {
	if t.Kind == parser.KindNone {
		return "null"
	}
	return fmt.Sprintf("!%d", d.typeTag(cg, t))
}

func (d *debugInfo) typeTag(cg *CodeGen, t *parser.Datatype) int {
	key := t.String()
	if n, ok := d.typeTags[key]; ok {
		return n
	}
	n := d.newTypeTag(cg, t)
	d.typeTags[key] = n
	return n
}

func (d *debugInfo) newTypeTag(cg *CodeGen, t *parser.Datatype) int {
	if t.IsBigint() {
		return d.arrayTag(cg, t)
	}
	switch t.Kind {
	case parser.KindBool:
		return d.tag("!DIBasicType(name: \"bool\", size: 8, encoding: DW_ATE_boolean)")
	case parser.KindString, parser.KindArray:
		return d.arrayTag(cg, t)
	case parser.KindUint:
		enc := "DW_ATE_unsigned"
		if t.Width == 8 {
			enc = "DW_ATE_unsigned_char"
		}
		return d.tag(fmt.Sprintf("!DIBasicType(name: \"u%d\", size: %d, encoding: %s)", t.Width, t.Width, enc))
	case parser.KindInt:
		return d.tag(fmt.Sprintf("!DIBasicType(name: \"i%d\", size: %d, encoding: DW_ATE_signed)", t.Width, t.Width))
	case parser.KindFloat:
		return d.tag(fmt.Sprintf("!DIBasicType(name: \"float\", size: %d, encoding: DW_ATE_float)", t.Width))
	case parser.KindModint:
		if t.Modulus != nil {
			return d.typeTag(cg, t.Modulus.Type)
		}
		return d.typeTag(cg, parser.UintType(t.Width))
	case parser.KindClass:
		if t.Class != nil {
			return d.classTag(cg, t)
		}
		fallthrough
	case parser.KindNull, parser.KindTclass:
		return d.tag(fmt.Sprintf("!DIBasicType(name: \"object\", size: %d, encoding: DW_ATE_unsigned)", t.Width))
	case parser.KindTuple, parser.KindStruct:
		return d.tupleTag(cg, t)
	case parser.KindEnum, parser.KindEnumClass:
		return d.enumTag(cg, t)
	case parser.KindFuncptr:
		return d.funcptrTag(cg, t)
	}
	cg.fail("Unexpected datatype %s in debug info", t)
	return 0
}

func (d *debugInfo) pointerTag(cg *CodeGen, t *parser.Datatype) int {
	key := t.String()
	if n, ok := d.ptrTags[key]; ok {
		return n
	}
	n := d.tag(fmt.Sprintf("!DIDerivedType(tag: DW_TAG_pointer_type, baseType: !%d, size: %d)",
		d.typeTag(cg, t), parser.WordWidth))
	d.ptrTags[key] = n
	return n
}

func (d *debugInfo) memberTag(name string, base, size, offset int) int {
	return d.tag(fmt.Sprintf("!DIDerivedType(tag: DW_TAG_member, name: \"%s\", baseType: !%d, size: %d, offset: %d)",
		name, base, size, offset))
}

// arrayTag describes the runtime array header of arrays, strings and big
// integers as a {data, numElements} structure.
func (d *debugInfo) arrayTag(cg *CodeGen, t *parser.Datatype) int {
	var elem *parser.Datatype
	switch {
	case t.Kind == parser.KindString:
		elem = parser.UintType(8)
	case t.IsInteger() || t.Kind == parser.KindModint:
		elem = parser.UintType(32)
	default:
		elem = t.Elem
	}
	w := parser.WordWidth
	data := d.memberTag("data", d.pointerTag(cg, elem), w, 0)
	num := d.memberTag("numElements", d.typeTag(cg, sizeT), w, w)
	elements := d.tag(fmt.Sprintf("!{!%d, !%d}", data, num))
	return d.tag(fmt.Sprintf("distinct !DICompositeType(tag: DW_TAG_structure_type, size: %d, elements: !%d)",
		2*w, elements))
}

func (d *debugInfo) classTag(cg *CodeGen, t *parser.Datatype) int {
	c := t.Class
	base := d.typeTag(cg, parser.UintType(t.Width))
	var file int
	if c.Block != nil {
		file = d.fileTag(c.Block.File)
	} else {
		file = d.fileTag(nil)
	}
	return d.tag(fmt.Sprintf("!DIDerivedType(tag: DW_TAG_typedef, name: \"class.%s\", file: !%d, line: %d, baseType: !%d)",
		escapeString(c.Path), file, lineNum(c.Line), base))
}

// datatypeSize is the size in bits the debugger assumes for a datatype.
func datatypeSize(t *parser.Datatype) int {
	if t.IsBigint() {
		return 2 * parser.WordWidth
	}
	switch t.Kind {
	case parser.KindBool:
		return 8
	case parser.KindString, parser.KindArray:
		return 2 * parser.WordWidth
	case parser.KindUint, parser.KindInt, parser.KindEnum, parser.KindFloat, parser.KindModint:
		return int(t.Width)
	case parser.KindClass, parser.KindTclass, parser.KindNull:
		return 32
	case parser.KindFuncptr:
		return parser.WordWidth
	case parser.KindTuple, parser.KindStruct:
		return tupleSize(t)
	}
	return 0
}

// padOffset rounds offset up to a multiple of size.
func padOffset(offset, size int) int {
	if size == 0 {
		return offset
	}
	return size * ((offset + size - 1) / size)
}

func tupleSize(t *parser.Datatype) int {
	offset := 0
	for _, f := range t.Types {
		size := datatypeSize(f)
		offset = padOffset(offset, size) + size
	}
	return offset
}

func (d *debugInfo) tupleTag(cg *CodeGen, t *parser.Datatype) int {
	var members []string
	offset := 0
	for _, f := range t.Types {
		base := d.typeTag(cg, f)
		size := datatypeSize(f)
		offset = padOffset(offset, size)
		var text string
		if offset == 0 {
			text = fmt.Sprintf("!DIDerivedType(tag: DW_TAG_member, baseType: !%d, size: %d)", base, size)
		} else {
			text = fmt.Sprintf("!DIDerivedType(tag: DW_TAG_member, baseType: !%d, size: %d, offset: %d)", base, size, offset)
		}
		members = append(members, fmt.Sprintf("!%d", d.tag(text)))
		offset += size
	}
	return d.tag(fmt.Sprintf("distinct !DICompositeType(tag: DW_TAG_structure_type, size: %d, elements: !{%s})",
		offset, strings.Join(members, ", ")))
}

func (d *debugInfo) enumTag(cg *CodeGen, t *parser.Datatype) int {
	fn := t.Function
	if fn == nil || fn.Block == nil {
		return d.typeTag(cg, parser.UintType(t.Width))
	}
	var entries []string
	width := t.Width
	for i, v := range fn.Block.Variables {
		if i == 0 && v.Type != nil && v.Type.Width != 0 {
			width = v.Type.Width
		}
		n := d.tag(fmt.Sprintf("!DIEnumerator(name: \"%s\", value: %d, isUnsigned: true)",
			escapeString(v.Name), v.EntryValue))
		entries = append(entries, fmt.Sprintf("!%d", n))
	}
	elements := d.tag(fmt.Sprintf("!{%s}", strings.Join(entries, ", ")))
	base := d.tag(fmt.Sprintf("!DIBasicType(name: \"u%d\", size: %d, encoding: DW_ATE_unsigned)", width, width))
	return d.tag(fmt.Sprintf("!DICompositeType(tag: DW_TAG_enumeration_type, file: !%d, line: %d, "+
		"baseType: !%d, size: %d, elements: !%d)",
		d.fileTag(fn.Block.File), lineNum(fn.Line), base, width, elements))
}

func (d *debugInfo) funcptrTag(cg *CodeGen, t *parser.Datatype) int {
	types := []string{d.typeRef(cg, t.Ret)}
	for _, p := range t.Types {
		types = append(types, d.typeRef(cg, p))
	}
	list := d.tag(fmt.Sprintf("!{%s}", strings.Join(types, ", ")))
	fn := d.tag(fmt.Sprintf("!DISubroutineType(types: !%d)", list))
	return d.tag(fmt.Sprintf("!DIDerivedType(tag: DW_TAG_pointer_type, baseType: !%d, size: %d)", fn, parser.WordWidth))
}

// finish adds the header tags and every interned tag to the module, in order.
func (d *debugInfo) finish(m *ir.Module) {
	globals := make([]string, len(d.globals))
	for i, n := range d.globals {
		globals[i] = fmt.Sprintf("!%d", n)
	}
	header := []*mdTag{
		{id: 0, text: fmt.Sprintf("distinct !DICompileUnit(language: DW_LANG_C99, file: !%d, producer: \"rune (0.0.0)\", "+
			"isOptimized: false, emissionKind: FullDebug, globals: !3)", numHeaderTags+1)},
		{id: 1, text: "!{i32 2, !\"Dwarf Version\", i32 4}"},
		{id: 2, text: "!{i32 2, !\"Debug Info Version\", i32 3}"},
		{id: 3, text: fmt.Sprintf("!{%s}", strings.Join(globals, ", "))},
	}
	for _, t := range header {
		m.MetadataDefs = append(m.MetadataDefs, t)
	}
	nums := make([]int, 0, len(d.tags))
	for n := range d.tags {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		m.MetadataDefs = append(m.MetadataDefs, d.tags[n])
	}
	m.NamedMetadataDefs["llvm.dbg.cu"] = &metadata.NamedDef{Name: "llvm.dbg.cu", Nodes: []metadata.Node{header[0]}}
	m.NamedMetadataDefs["llvm.module.flags"] = &metadata.NamedDef{Name: "llvm.module.flags",
		Nodes: []metadata.Node{header[1], header[2]}}
}
