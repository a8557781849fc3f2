package parser

func (r *reader) subBlock(nodes []*Node, sc *scope, parent *Block, n *Node) *Block {
	b := &Block{Owner: sc.fn, File: parent.File, Line: r.line(n, parent.File)}
	b.Statements = r.statements(nodes, sc, b)
	return b
}

func (r *reader) statements(nodes []*Node, sc *scope, block *Block) []*Statement {
	var stmts []*Statement
	for _, n := range nodes {
		stmts = append(stmts, r.statement(n, sc, block))
	}
	return stmts
}

// statement reads one statement. An optional (@ line N generated first unused)
// form may lead the operands.
func (r *reader) statement(n *Node, sc *scope, block *Block) *Statement {
	s := &Statement{Instantiated: true, Line: &Line{File: block.File, Num: uint32(n.Pos.Line)}}
	args := n.Args()
	if len(args) > 0 && args[0].Head() == "@" {
		attrs := args[0].Args()
		for i := 0; i < len(attrs); i++ {
			a := attrs[i]
			switch {
			case a.Head() == "line":
				s.Line.Num = r.uint32Arg(a)
			case a.IsAtom("line"):
				if i+1 >= len(attrs) || attrs[i+1].Atom == nil {
					fail(a, "line takes a number")
				}
				i++
				s.Line.Num = r.number32(attrs[i])
			case a.IsAtom("generated"):
				s.Generated = true
			case a.IsAtom("first"):
				s.FirstAssignment = true
			case a.IsAtom("unused"):
				s.Instantiated = false
			default:
				fail(a, "unknown statement attribute")
			}
		}
		args = args[1:]
	}
	need := func(count int) {
		if len(args) < count {
			fail(n, "%s needs %d operands", n.Head(), count)
		}
	}
	switch n.Head() {
	case "assign", "call":
		need(1)
		s.Kind = StmtAssign
		if n.Head() == "call" {
			s.Kind = StmtCall
		}
		s.Expr = sc.expr(args[0])
	case "print", "throw":
		s.Kind = StmtPrint
		if n.Head() == "throw" {
			s.Kind = StmtThrow
		}
		s.Expr = &Expr{Kind: ExprList, Type: NoneType(), Pos: n.Pos}
		for _, a := range args {
			s.Expr.Children = append(s.Expr.Children, sc.typeOrValue(a))
		}
	case "return":
		s.Kind = StmtReturn
		if len(args) > 0 {
			s.Expr = sc.expr(args[0])
			if sig := r.sigs[sc.fn]; sig != nil {
				sc.adopt(s.Expr, sig.ReturnType)
			}
		}
	case "if", "elseif", "while":
		need(1)
		s.Kind = map[string]StmtKind{"if": StmtIf, "elseif": StmtElseIf, "while": StmtWhile}[n.Head()]
		s.Expr = sc.expr(args[0])
		if s.Expr.Type.Kind != KindBool {
			fail(args[0], "condition must be bool, not %s", s.Expr.Type)
		}
		if s.Kind != StmtWhile || len(args) > 1 {
			s.Block = r.subBlock(args[1:], sc, block, n)
		}
	case "else", "do":
		s.Kind = StmtElse
		if n.Head() == "do" {
			s.Kind = StmtDo
		}
		s.Block = r.subBlock(args, sc, block, n)
	case "switch":
		need(1)
		s.Kind = StmtSwitch
		s.Expr = sc.expr(args[0])
		s.Block = &Block{Owner: sc.fn, File: block.File, Line: s.Line}
		for _, c := range args[1:] {
			s.Block.Statements = append(s.Block.Statements, r.switchCase(c, sc, s.Block, s.Expr.Type))
		}
	case "typeswitch":
		s.Kind = StmtTypeSwitch
		if len(args) > 0 && args[0].Head() != "case" && args[0].Head() != "default" {
			s.Expr = sc.expr(args[0])
			args = args[1:]
		}
		s.Block = &Block{Owner: sc.fn, File: block.File, Line: s.Line}
		for _, c := range args {
			s.Block.Statements = append(s.Block.Statements, r.typeCase(c, sc, s.Block))
		}
	case "for":
		need(3)
		s.Kind = StmtFor
		s.Expr = &Expr{Kind: ExprList, Type: NoneType(), Pos: n.Pos}
		for _, a := range args[:3] {
			s.Expr.Children = append(s.Expr.Children, sc.expr(a))
		}
		s.Block = r.subBlock(args[3:], sc, block, n)
	case "ref", "unref":
		need(1)
		s.Kind = StmtRef
		if n.Head() == "unref" {
			s.Kind = StmtUnref
		}
		s.Expr = sc.expr(args[0])
	default:
		fail(n, "unknown statement %q", n.Head())
	}
	return s
}

func (r *reader) switchCase(n *Node, sc *scope, block *Block, target *Datatype) *Statement {
	s := &Statement{Instantiated: true, Line: &Line{File: block.File, Num: uint32(n.Pos.Line)}}
	args := n.Args()
	switch n.Head() {
	case "case":
		if len(args) == 0 || args[0].List == nil {
			fail(n, "case is (case (values...) statements...)")
		}
		s.Kind = StmtCase
		s.Expr = &Expr{Kind: ExprList, Type: NoneType(), Pos: args[0].Pos}
		for _, v := range args[0].List.Items {
			e := sc.expr(v)
			sc.adopt(e, target)
			s.Expr.Children = append(s.Expr.Children, e)
		}
		s.Block = r.subBlock(args[1:], sc, block, n)
	case "default":
		s.Kind = StmtDefault
		s.Block = r.subBlock(args, sc, block, n)
	default:
		fail(n, "switch holds case and default forms")
	}
	return s
}

func (r *reader) typeCase(n *Node, sc *scope, block *Block) *Statement {
	s := &Statement{Instantiated: true, Line: &Line{File: block.File, Num: uint32(n.Pos.Line)}}
	args := n.Args()
	switch n.Head() {
	case "case":
		if len(args) == 0 {
			fail(n, "case needs a type")
		}
		s.Kind = StmtCase
		s.Expr = &Expr{Kind: ExprList, Type: NoneType(), Pos: args[0].Pos}
		s.Expr.Children = []*Expr{sc.typeExpr(args[0])}
		s.Block = r.subBlock(args[1:], sc, block, n)
	case "default":
		s.Kind = StmtDefault
		s.Block = r.subBlock(args, sc, block, n)
	default:
		fail(n, "typeswitch holds case and default forms")
	}
	return s
}
