package runtime

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/wire"
)

// templatePattern matches the ${path} placeholders of template nodes.
var templatePattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// EvalWire decodes a serialized expression and evaluates it against the
// bindings visible from ec.
func (r *Runtime) EvalWire(ctx context.Context, ec ContextID, blob []byte) (cty.Value, error) {
	node, err := wire.Decode(blob)
	if err != nil {
		return cty.NilVal, err
	}
	return r.evalNode(ctx, ec, node)
}

// EvalFilter evaluates a serialized predicate and reduces the result to a
// boolean.
func (r *Runtime) EvalFilter(ctx context.Context, ec ContextID, blob []byte) (bool, error) {
	v, err := r.EvalWire(ctx, ec, blob)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func (r *Runtime) evalNode(ctx context.Context, ec ContextID, n *wire.Node) (cty.Value, error) {
	switch n.Kind {
	case wire.KindLit:
		return n.LitValue()

	case wire.KindVar, wire.KindRef:
		return r.ResolvePath(ec, n.Base, n.Path)

	case wire.KindBinary:
		return r.evalBinary(ctx, ec, n)

	case wire.KindMap:
		if len(n.Entries) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(n.Entries))
		for _, e := range n.Entries {
			v, err := r.evalNode(ctx, ec, e.Node)
			if err != nil {
				return cty.NilVal, fmt.Errorf("map entry %q: %w", e.Key, err)
			}
			attrs[e.Key] = normalize(v)
		}
		return cty.ObjectVal(attrs), nil

	case wire.KindArray:
		if len(n.Items) == 0 {
			return cty.EmptyTupleVal, nil
		}
		items := make([]cty.Value, len(n.Items))
		for i, item := range n.Items {
			v, err := r.evalNode(ctx, ec, item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("array item %d: %w", i, err)
			}
			items[i] = normalize(v)
		}
		return cty.TupleVal(items), nil

	case wire.KindTemplate:
		return r.resolveTemplate(ctx, ec, n.Template), nil

	default:
		return cty.NilVal, fmt.Errorf("cannot evaluate node kind %s", n.Kind)
	}
}

func (r *Runtime) evalBinary(ctx context.Context, ec ContextID, n *wire.Node) (cty.Value, error) {
	left, err := r.evalNode(ctx, ec, n.Left)
	if err != nil {
		return cty.NilVal, err
	}
	right, err := r.evalNode(ctx, ec, n.Right)
	if err != nil {
		return cty.NilVal, err
	}

	switch n.Op {
	case "+":
		// A string on either side turns + into concatenation.
		if isString(left) || isString(right) {
			ls, err := CoerceString(left)
			if err != nil {
				return cty.NilVal, fmt.Errorf("operator +: %w", err)
			}
			rs, err := CoerceString(right)
			if err != nil {
				return cty.NilVal, fmt.Errorf("operator +: %w", err)
			}
			return cty.StringVal(ls + rs), nil
		}
		l, rr, err := numericOperands(left, right, n.Op)
		if err != nil {
			return cty.NilVal, err
		}
		return l.Add(rr), nil

	case "-":
		l, rr, err := numericOperands(left, right, n.Op)
		if err != nil {
			return cty.NilVal, err
		}
		return l.Subtract(rr), nil

	case "*":
		l, rr, err := numericOperands(left, right, n.Op)
		if err != nil {
			return cty.NilVal, err
		}
		return l.Multiply(rr), nil

	case "/":
		l, rr, err := numericOperands(left, right, n.Op)
		if err != nil {
			return cty.NilVal, err
		}
		if rr.AsBigFloat().Sign() == 0 {
			return cty.NilVal, fmt.Errorf("division by zero")
		}
		return l.Divide(rr), nil

	case "%":
		l, rr, err := numericOperands(left, right, n.Op)
		if err != nil {
			return cty.NilVal, err
		}
		if rr.AsBigFloat().Sign() == 0 {
			return cty.NilVal, fmt.Errorf("modulo by zero")
		}
		return l.Modulo(rr), nil

	case "==":
		return cty.BoolVal(LooseEquals(left, right)), nil

	case "!=":
		return cty.BoolVal(!LooseEquals(left, right)), nil

	case "<", ">", "<=", ">=":
		return compareOrdered(left, right, n.Op)

	case "&&":
		return cty.BoolVal(Truthy(left) && Truthy(right)), nil

	case "||":
		return cty.BoolVal(Truthy(left) || Truthy(right)), nil

	default:
		return cty.NilVal, fmt.Errorf("unknown binary operator %q", n.Op)
	}
}

// Compare applies a where-clause operator to two values. Equality uses the
// loose rules of the == operator; ordering follows compareOrdered; contains
// checks substring membership on strings and element membership on
// collections.
func Compare(left, right cty.Value, op string) (bool, error) {
	switch op {
	case "==", "=", "is":
		return LooseEquals(left, right), nil
	case "!=", "is not":
		return !LooseEquals(left, right), nil
	case "<", ">", "<=", ">=":
		v, err := compareOrdered(left, right, op)
		if err != nil {
			return false, err
		}
		return v.True(), nil
	case "contains":
		if isString(left) {
			rs, err := CoerceString(right)
			if err != nil {
				return false, fmt.Errorf("operator contains: %w", err)
			}
			return strings.Contains(left.AsString(), rs), nil
		}
		elems, err := Elements(left)
		if err != nil {
			return false, fmt.Errorf("operator contains: %w", err)
		}
		for _, e := range elems {
			if LooseEquals(e.Value, right) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// compareOrdered applies an ordering operator. Two strings compare
// lexically; everything else compares numerically.
func compareOrdered(left, right cty.Value, op string) (cty.Value, error) {
	if isString(left) && isString(right) {
		ls, rs := left.AsString(), right.AsString()
		switch op {
		case "<":
			return cty.BoolVal(ls < rs), nil
		case ">":
			return cty.BoolVal(ls > rs), nil
		case "<=":
			return cty.BoolVal(ls <= rs), nil
		default:
			return cty.BoolVal(ls >= rs), nil
		}
	}
	l, r, err := numericOperands(left, right, op)
	if err != nil {
		return cty.NilVal, err
	}
	switch op {
	case "<":
		return l.LessThan(r), nil
	case ">":
		return l.GreaterThan(r), nil
	case "<=":
		return l.LessThanOrEqualTo(r), nil
	default:
		return l.GreaterThanOrEqualTo(r), nil
	}
}

// numericOperands converts both operands to numbers for an arithmetic or
// ordering operator.
func numericOperands(left, right cty.Value, op string) (cty.Value, cty.Value, error) {
	l, err := asNumber(left)
	if err != nil {
		return cty.NilVal, cty.NilVal, fmt.Errorf("operator %s: left operand: %w", op, err)
	}
	r, err := asNumber(right)
	if err != nil {
		return cty.NilVal, cty.NilVal, fmt.Errorf("operator %s: right operand: %w", op, err)
	}
	return l, r, nil
}

func asNumber(v cty.Value) (cty.Value, error) {
	if v == cty.NilVal || v.IsNull() {
		return cty.NilVal, fmt.Errorf("value is null")
	}
	conv, err := convert.Convert(v, cty.Number)
	if err != nil {
		return cty.NilVal, fmt.Errorf("value %s is not numeric", v.Type().FriendlyName())
	}
	return conv, nil
}

func isString(v cty.Value) bool {
	return v != cty.NilVal && !v.IsNull() && v.Type() == cty.String
}

// normalize replaces the NilVal sentinel with a typed null so the value can
// enter a cty composite without panicking.
func normalize(v cty.Value) cty.Value {
	if v == cty.NilVal {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	return v
}

// resolveTemplate renders a template string by substituting each ${path}
// placeholder with the referenced binding. A placeholder that cannot be
// resolved or rendered becomes an empty string; template rendering never
// fails a statement.
func (r *Runtime) resolveTemplate(ctx context.Context, ec ContextID, tpl string) cty.Value {
	if !strings.Contains(tpl, "${") {
		return cty.StringVal(tpl)
	}
	out := templatePattern.ReplaceAllStringFunc(tpl, func(m string) string {
		path := strings.TrimSpace(m[2 : len(m)-1])
		if path == "" {
			return ""
		}
		parts := strings.Split(path, ".")
		v, err := r.ResolvePath(ec, parts[0], parts[1:])
		if err != nil {
			ctxlog.FromContext(ctx).Debug("Template placeholder did not resolve; rendering it empty.",
				"placeholder", path, "error", err)
			return ""
		}
		s, err := CoerceString(v)
		if err != nil {
			ctxlog.FromContext(ctx).Debug("Template placeholder is not renderable; rendering it empty.",
				"placeholder", path, "error", err)
			return ""
		}
		return s
	})
	return cty.StringVal(out)
}
