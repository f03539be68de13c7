package wire

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/constpool"
	"github.com/vk/fablego/internal/program"
)

// FromExpression converts an analyzed expression into its wire form. Every
// string constant the expression carries — literal texts, base names,
// specifiers, map keys, template texts — is interned in the pool as a side
// effect, so lowering the same program always produces the same table.
func FromExpression(expr program.Expression, pool *constpool.Pool) (*Node, error) {
	return convert(expr, pool, false)
}

// convert walks the expression tree. Inside a composite (map or array) a
// variable reference is tagged KindRef instead of KindVar; nested is sticky
// once a composite has been entered.
func convert(expr program.Expression, pool *constpool.Pool, nested bool) (*Node, error) {
	switch e := expr.(type) {
	case *program.Literal:
		return litNode(e.Value, pool)

	case *program.VariableRef:
		kind := KindVar
		if nested {
			kind = KindRef
		}
		pool.Intern(e.Base)
		pool.InternAll(e.Specifiers...)
		return &Node{Kind: kind, Base: e.Base, Path: e.Specifiers}, nil

	case *program.MapLiteral:
		n := &Node{Kind: KindMap, Entries: make([]Entry, 0, len(e.Entries))}
		for _, entry := range e.Entries {
			pool.Intern(entry.Key)
			child, err := convert(entry.Value, pool, true)
			if err != nil {
				return nil, err
			}
			n.Entries = append(n.Entries, Entry{Key: entry.Key, Node: child})
		}
		return n, nil

	case *program.ArrayLiteral:
		n := &Node{Kind: KindArray, Items: make([]*Node, 0, len(e.Items))}
		for _, item := range e.Items {
			child, err := convert(item, pool, true)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, child)
		}
		return n, nil

	case *program.Binary:
		left, err := convert(e.Left, pool, nested)
		if err != nil {
			return nil, err
		}
		right, err := convert(e.Right, pool, nested)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindBinary, Op: string(e.Op), Left: left, Right: right}, nil

	case *program.Grouped:
		// Grouping only directed parsing; the tree already fixes the order.
		return convert(e.Inner, pool, nested)

	case *program.InterpolatedString:
		text := renderTemplate(e.Parts)
		pool.Intern(text)
		return &Node{Kind: KindTemplate, Template: text}, nil

	default:
		return nil, fmt.Errorf("expression %T has no wire form", expr)
	}
}

// litNode encodes a scalar literal leaf. Whole numbers keep integer form so
// they survive the round trip without picking up a fraction.
func litNode(v cty.Value, pool *constpool.Pool) (*Node, error) {
	if v.IsNull() {
		return &Node{Kind: KindLit, Lit: LitNull}, nil
	}
	switch v.Type() {
	case cty.String:
		s := v.AsString()
		pool.Intern(s)
		return &Node{Kind: KindLit, Lit: LitString, Str: s}, nil
	case cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return &Node{Kind: KindLit, Lit: LitInt, Int: i}, nil
		}
		f, _ := bf.Float64()
		return &Node{Kind: KindLit, Lit: LitFloat, Float: f}, nil
	case cty.Bool:
		return &Node{Kind: KindLit, Lit: LitBool, Bool: v.True()}, nil
	default:
		return nil, fmt.Errorf("literal of type %s has no wire form", v.Type().FriendlyName())
	}
}

// renderTemplate flattens interpolation parts into a single template string
// with ${path} placeholders, the form the runtime resolver consumes.
func renderTemplate(parts []program.StringPart) string {
	var sb strings.Builder
	for _, p := range parts {
		if p.Interp != "" {
			sb.WriteString("${")
			sb.WriteString(p.Interp)
			sb.WriteString("}")
			continue
		}
		sb.WriteString(p.Literal)
	}
	return sb.String()
}
