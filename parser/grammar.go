package parser

import (
	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
)

// LexerRegex tokenizes a program listing
const LexerRegex = `(;[^\n]*)` +
	`|(\s+)` +
	`|(?P<String>"(?:\\.|[^"\\])*")` +
	`|(?P<Paren>[()])` +
	`|(?P<Atom>[^\s()";]+)`

// Listing is the raw S-expression form of a program listing
type Listing struct {
	Nodes []*Node `parser:"@@*"`
}

// Node is one S-expression
type Node struct {
	Pos lexer.Position

	List *List   `parser:"@@"`
	Str  *string `parser:"| @String"`
	Atom *string `parser:"| @Atom"`
}

// List is a parenthesized S-expression list
type List struct {
	Items []*Node `parser:"\"(\" @@* \")\""`
}

var listingParser = participle.MustBuild(
	&Listing{},
	participle.Lexer(lexer.Must(lexer.Regexp(LexerRegex))),
	participle.UseLookahead(2))

// Head returns the leading atom of a list node, or "".
func (n *Node) Head() string {
	if n.List == nil || len(n.List.Items) == 0 || n.List.Items[0].Atom == nil {
		return ""
	}
	return *n.List.Items[0].Atom
}

// Args returns the items of a list node after its head.
func (n *Node) Args() []*Node {
	if n.List == nil || len(n.List.Items) == 0 {
		return nil
	}
	return n.List.Items[1:]
}

// IsAtom reports whether the node is the given atom.
func (n *Node) IsAtom(s string) bool {
	return n.Atom != nil && *n.Atom == s
}
