package parser

import (
	"fmt"
	"strconv"
	"strings"
)

var infix = map[ExprKind]string{
	ExprAdd:            "+",
	ExprSub:            "-",
	ExprMul:            "*",
	ExprDiv:            "/",
	ExprMod:            "%",
	ExprExp:            "**",
	ExprAddTrunc:       "!+",
	ExprSubTrunc:       "!-",
	ExprMulTrunc:       "!*",
	ExprAnd:            "&&",
	ExprOr:             "||",
	ExprXor:            "^^",
	ExprBitAnd:         "&",
	ExprBitOr:          "|",
	ExprBitXor:         "^",
	ExprShl:            "<<",
	ExprShr:            ">>",
	ExprRotl:           "<<<",
	ExprRotr:           ">>>",
	ExprLt:             "<",
	ExprLe:             "<=",
	ExprGt:             ">",
	ExprGe:             ">=",
	ExprEqual:          "==",
	ExprNotEqual:       "!=",
	ExprIn:             "in",
	ExprModint:         "mod",
	ExprAssign:         "=",
	ExprAddEquals:      "+=",
	ExprSubEquals:      "-=",
	ExprMulEquals:      "*=",
	ExprDivEquals:      "/=",
	ExprModEquals:      "%=",
	ExprExpEquals:      "**=",
	ExprAddTruncEquals: "!+=",
	ExprSubTruncEquals: "!-=",
	ExprMulTruncEquals: "!*=",
	ExprAndEquals:      "&&=",
	ExprOrEquals:       "||=",
	ExprXorEquals:      "^^=",
	ExprBitAndEquals:   "&=",
	ExprBitOrEquals:    "|=",
	ExprBitXorEquals:   "^=",
	ExprShlEquals:      "<<=",
	ExprShrEquals:      ">>=",
	ExprRotlEquals:     "<<<=",
	ExprRotrEquals:     ">>>=",
}

var prefix = map[ExprKind]string{
	ExprNot:         "!",
	ExprBitNot:      "~",
	ExprNegate:      "-",
	ExprNegateTrunc: "!-",
}

var wrapped = map[ExprKind]string{
	ExprSigned:   "signed",
	ExprUnsigned: "unsigned",
	ExprSecret:   "secret",
	ExprReveal:   "reveal",
	ExprNotNull:  "notnull",
	ExprIsNull:   "isnull",
	ExprTypeOf:   "typeof",
	ExprArrayOf:  "arrayof",
	ExprWidthOf:  "widthof",
	ExprFuncAddr: "&",
}

func (e *Expr) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Expr) writeList(b *strings.Builder, exprs []*Expr) {
	for i, c := range exprs {
		if i > 0 {
			b.WriteString(", ")
		}
		c.write(b)
	}
}

func (e *Expr) write(b *strings.Builder) {
	if op, ok := infix[e.Kind]; ok {
		e.Children[0].writeOperand(b)
		fmt.Fprintf(b, " %s ", op)
		e.Children[1].writeOperand(b)
		return
	}
	if op, ok := prefix[e.Kind]; ok {
		b.WriteString(op)
		e.Children[0].writeOperand(b)
		return
	}
	if name, ok := wrapped[e.Kind]; ok {
		b.WriteString(name)
		b.WriteString("(")
		if len(e.Children) > 0 {
			e.writeList(b, e.Children)
		} else {
			b.WriteString(e.Type.String())
		}
		b.WriteString(")")
		return
	}
	switch e.Kind {
	case ExprInteger:
		b.WriteString(e.Int.String())
		if e.Type.IsInteger() {
			if e.Type.Signed() {
				fmt.Fprintf(b, "i%d", e.Type.Width)
			} else {
				fmt.Fprintf(b, "u%d", e.Type.Width)
			}
		}
	case ExprFloat:
		b.WriteString(strconv.FormatFloat(e.Float, 'g', -1, 64))
		if e.Type.Width == 32 {
			b.WriteString("f32")
		}
	case ExprBool:
		b.WriteString(strconv.FormatBool(e.Bool))
	case ExprString:
		// Keep comment text on one line.
		b.WriteString(strconv.QuoteToASCII(e.Text))
	case ExprIdent:
		b.WriteString(e.Name)
	case ExprArray:
		b.WriteString("[")
		e.writeList(b, e.Children)
		b.WriteString("]")
	case ExprTuple:
		b.WriteString("(")
		e.writeList(b, e.Children)
		b.WriteString(")")
	case ExprCast, ExprCastTrunc:
		if e.Kind == ExprCastTrunc {
			b.WriteString("!")
		}
		fmt.Fprintf(b, "<%s>", e.Type)
		e.Children[1].writeOperand(b)
	case ExprSelect:
		e.Children[0].writeOperand(b)
		b.WriteString(" ? ")
		e.Children[1].writeOperand(b)
		b.WriteString(" : ")
		e.Children[2].writeOperand(b)
	case ExprCall:
		e.Children[0].writeOperand(b)
		b.WriteString("(")
		e.writeList(b, e.Children[1:])
		b.WriteString(")")
	case ExprIndex:
		e.Children[0].writeOperand(b)
		b.WriteString("[")
		e.Children[1].write(b)
		b.WriteString("]")
	case ExprSlice:
		e.Children[0].writeOperand(b)
		b.WriteString("[")
		e.Children[1].write(b)
		b.WriteString(":")
		e.Children[2].write(b)
		b.WriteString("]")
	case ExprDot:
		e.Children[0].writeOperand(b)
		b.WriteString(".")
		b.WriteString(e.Name)
	case ExprNull:
		fmt.Fprintf(b, "null(%s)", e.Type.Class.Name)
	case ExprRandUint:
		fmt.Fprintf(b, "rand%d", e.Type.Width)
	case ExprNamedParam:
		fmt.Fprintf(b, "%s = ", e.Name)
		e.Children[1].write(b)
	case ExprList:
		e.writeList(b, e.Children)
	default:
		b.WriteString(e.Type.String())
	}
}

func (e *Expr) writeOperand(b *strings.Builder) {
	_, isInfix := infix[e.Kind]
	if isInfix || e.Kind == ExprSelect {
		b.WriteString("(")
		e.write(b)
		b.WriteString(")")
		return
	}
	e.write(b)
}

var stmtNames = map[StmtKind]string{
	StmtIf:         "if",
	StmtElseIf:     "else if",
	StmtElse:       "else",
	StmtSwitch:     "switch",
	StmtTypeSwitch: "typeswitch",
	StmtCase:       "case",
	StmtDefault:    "default",
	StmtDo:         "do",
	StmtWhile:      "while",
	StmtFor:        "for",
	StmtPrint:      "print",
	StmtThrow:      "throw",
	StmtReturn:     "return",
	StmtRef:        "ref",
	StmtUnref:      "unref",
}

// String renders the statement header on one line, without its sub-block.
func (s *Statement) String() string {
	if s.Kind == StmtAssign || s.Kind == StmtCall {
		return s.Expr.String()
	}
	text := stmtNames[s.Kind]
	if s.Expr == nil {
		return text
	}
	if s.Kind == StmtFor {
		c := s.Expr.Children
		return fmt.Sprintf("for %s, %s, %s", c[0], c[1], c[2])
	}
	return text + " " + s.Expr.String()
}
