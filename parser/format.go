package parser

import (
	"fmt"
	"strings"
)

// FormatSpec returns the runtime sprintf conversion for values of the datatype,
// without the leading %.
func (d *Datatype) FormatSpec() (string, error) {
	var b strings.Builder
	if err := d.writeSpec(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (d *Datatype) writeSpec(b *strings.Builder) error {
	switch d.Kind {
	case KindBool:
		b.WriteByte('b')
	case KindString:
		b.WriteByte('s')
	case KindUint, KindClass, KindEnum:
		fmt.Fprintf(b, "u%d", d.Width)
	case KindInt:
		fmt.Fprintf(b, "i%d", d.Width)
	case KindFloat:
		fmt.Fprintf(b, "f%d", d.Width)
	case KindArray:
		b.WriteByte('[')
		if err := d.Elem.writeSpec(b); err != nil {
			return err
		}
		b.WriteByte(']')
	case KindTuple, KindStruct:
		b.WriteByte('(')
		for i, t := range d.Types {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := t.writeSpec(b); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	default:
		return fmt.Errorf("unsupported datatype in print statement: %s", d)
	}
	return nil
}

// PrintFormat builds the format string for print and throw arguments. String
// literals are inlined with \ and % escaped, type expressions print their type,
// and every other argument becomes a conversion.
func PrintFormat(args []*Expr) (string, error) {
	var b strings.Builder
	for _, arg := range args {
		switch {
		case arg.Kind == ExprString:
			for i := 0; i < len(arg.Text); i++ {
				c := arg.Text[i]
				if c == '\\' || c == '%' {
					b.WriteByte('\\')
				}
				b.WriteByte(c)
			}
		case arg.IsType():
			b.WriteString(arg.Type.String())
		default:
			b.WriteByte('%')
			if err := arg.Type.writeSpec(&b); err != nil {
				return "", err
			}
		}
	}
	return b.String(), nil
}
