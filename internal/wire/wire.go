// Package wire defines the serialized expression format that crosses the
// generator/runtime boundary.
//
// An expression leaves the generator as a msgpack blob and is evaluated by
// the runtime against a live context chain. The format is a typed tagged
// union rather than marker strings, so a corrupt blob fails decoding instead
// of evaluating to garbage.
package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zclconf/go-cty/cty"
)

// Kind tags the expression node variants.
type Kind uint8

const (
	// KindLit is a scalar literal leaf.
	KindLit Kind = iota + 1
	// KindVar reads a binding from the context chain.
	KindVar
	// KindRef is a variable reference nested inside a composite. It
	// evaluates exactly like KindVar; the distinct tag preserves the
	// analyzed form.
	KindRef
	// KindBinary applies an operator to two child nodes.
	KindBinary
	// KindMap builds an object value from ordered entries.
	KindMap
	// KindArray builds a tuple value from ordered items.
	KindArray
	// KindTemplate is an interpolated string with ${name} placeholders.
	KindTemplate
)

var kindNames = map[Kind]string{
	KindLit:      "lit",
	KindVar:      "var",
	KindRef:      "ref",
	KindBinary:   "binary",
	KindMap:      "map",
	KindArray:    "array",
	KindTemplate: "template",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// LitKind selects which scalar field of a KindLit node is meaningful.
type LitKind uint8

const (
	LitNull LitKind = iota
	LitBool
	LitInt
	LitFloat
	LitString
)

// Node is one vertex of a serialized expression tree. Only the fields for
// its Kind are set; the rest stay at their zero values and are elided on the
// wire.
type Node struct {
	Kind Kind `msgpack:"kind"`

	// KindLit
	Lit   LitKind `msgpack:"lit,omitempty"`
	Str   string  `msgpack:"str,omitempty"`
	Int   int64   `msgpack:"int,omitempty"`
	Float float64 `msgpack:"float,omitempty"`
	Bool  bool    `msgpack:"bool,omitempty"`

	// KindVar / KindRef
	Base string   `msgpack:"base,omitempty"`
	Path []string `msgpack:"path,omitempty"`

	// KindBinary
	Op    string `msgpack:"op,omitempty"`
	Left  *Node  `msgpack:"left,omitempty"`
	Right *Node  `msgpack:"right,omitempty"`

	// KindMap
	Entries []Entry `msgpack:"entries,omitempty"`

	// KindArray
	Items []*Node `msgpack:"items,omitempty"`

	// KindTemplate
	Template string `msgpack:"template,omitempty"`
}

// Entry is one ordered key/value pair of a KindMap node.
type Entry struct {
	Key  string `msgpack:"key"`
	Node *Node  `msgpack:"node"`
}

// Encode serializes a node tree.
func Encode(n *Node) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("cannot encode a nil expression node")
	}
	blob, err := msgpack.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to encode expression: %w", err)
	}
	return blob, nil
}

// Decode deserializes and structurally validates a node tree.
func Decode(blob []byte) (*Node, error) {
	var n Node
	if err := msgpack.Unmarshal(blob, &n); err != nil {
		return nil, fmt.Errorf("failed to decode expression blob: %w", err)
	}
	if err := n.validate(); err != nil {
		return nil, fmt.Errorf("invalid expression blob: %w", err)
	}
	return &n, nil
}

// validate checks the tree shape so evaluation never meets a half-built node.
func (n *Node) validate() error {
	switch n.Kind {
	case KindLit:
		if n.Lit > LitString {
			return fmt.Errorf("lit node has unknown scalar kind %d", n.Lit)
		}
	case KindVar, KindRef:
		if n.Base == "" {
			return fmt.Errorf("%s node is missing its base name", n.Kind)
		}
	case KindBinary:
		if n.Op == "" {
			return fmt.Errorf("binary node is missing its operator")
		}
		if n.Left == nil || n.Right == nil {
			return fmt.Errorf("binary node %q is missing an operand", n.Op)
		}
		if err := n.Left.validate(); err != nil {
			return err
		}
		if err := n.Right.validate(); err != nil {
			return err
		}
	case KindMap:
		for _, e := range n.Entries {
			if e.Node == nil {
				return fmt.Errorf("map entry %q has no value", e.Key)
			}
			if err := e.Node.validate(); err != nil {
				return err
			}
		}
	case KindArray:
		for i, item := range n.Items {
			if item == nil {
				return fmt.Errorf("array item %d is nil", i)
			}
			if err := item.validate(); err != nil {
				return err
			}
		}
	case KindTemplate:
		// Any template text is valid; unknown placeholders degrade at
		// evaluation time.
	default:
		return fmt.Errorf("unknown node kind %d", uint8(n.Kind))
	}
	return nil
}

// LitValue reconstructs the cty value of a KindLit node.
func (n *Node) LitValue() (cty.Value, error) {
	if n.Kind != KindLit {
		return cty.NilVal, fmt.Errorf("node %s is not a literal", n.Kind)
	}
	switch n.Lit {
	case LitNull:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case LitBool:
		return cty.BoolVal(n.Bool), nil
	case LitInt:
		return cty.NumberIntVal(n.Int), nil
	case LitFloat:
		return cty.NumberFloatVal(n.Float), nil
	case LitString:
		return cty.StringVal(n.Str), nil
	default:
		return cty.NilVal, fmt.Errorf("literal node has unknown scalar kind %d", n.Lit)
	}
}
