package runtime

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// CoerceString renders a value as a string. Null renders empty; composite
// values are an error.
func CoerceString(v cty.Value) (string, error) {
	if v == cty.NilVal || v.IsNull() {
		return "", nil
	}
	if v.Type() == cty.String {
		return v.AsString(), nil
	}
	conv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("cannot render %s as a string: %w", v.Type().FriendlyName(), err)
	}
	return conv.AsString(), nil
}

// CoerceInt converts a value to a whole number. Fractions and
// non-numeric-looking strings are errors.
func CoerceInt(v cty.Value) (int, error) {
	if v == cty.NilVal || v.IsNull() {
		return 0, fmt.Errorf("cannot convert null to a whole number")
	}
	conv, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %s to a number: %w", v.Type().FriendlyName(), err)
	}
	bf := conv.AsBigFloat()
	n, acc := bf.Int64()
	if acc != big.Exact {
		return 0, fmt.Errorf("number %s is not a whole number", bf.Text('g', -1))
	}
	return int(n), nil
}

// Truthy implements condition semantics: null, false, zero, the empty
// string and empty collections are false; everything else is true.
func Truthy(v cty.Value) bool {
	if v == cty.NilVal || v.IsNull() {
		return false
	}
	switch {
	case v.Type() == cty.Bool:
		return v.True()
	case v.Type() == cty.Number:
		return v.AsBigFloat().Sign() != 0
	case v.Type() == cty.String:
		return v.AsString() != ""
	case v.CanIterateElements():
		return v.LengthInt() > 0
	}
	return true
}

// LooseEquals compares two values the way match cases and the == operator
// do: same-typed values compare directly, and primitives of different types
// compare by their string renderings.
func LooseEquals(a, b cty.Value) bool {
	if a == cty.NilVal || b == cty.NilVal {
		return a == b
	}
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.Type().Equals(b.Type()) {
		return a.RawEquals(b)
	}
	as, errA := CoerceString(a)
	bs, errB := CoerceString(b)
	if errA != nil || errB != nil {
		return false
	}
	return as == bs
}

// FromGo bridges a Go value into the runtime value system. Maps and slices
// convert recursively; other types go through gocty's implied-type
// conversion.
func FromGo(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return x, nil
	case string:
		return cty.StringVal(x), nil
	case bool:
		return cty.BoolVal(x), nil
	case int:
		return cty.NumberIntVal(int64(x)), nil
	case int64:
		return cty.NumberIntVal(x), nil
	case float64:
		return cty.NumberFloatVal(x), nil
	case []any:
		if len(x) == 0 {
			return cty.EmptyTupleVal, nil
		}
		items := make([]cty.Value, len(x))
		for i, el := range x {
			conv, err := FromGo(el)
			if err != nil {
				return cty.NilVal, err
			}
			items[i] = conv
		}
		return cty.TupleVal(items), nil
	case map[string]any:
		if len(x) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(x))
		for k, el := range x {
			conv, err := FromGo(el)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = conv
		}
		return cty.ObjectVal(attrs), nil
	}

	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot bridge %T into a runtime value: %w", v, err)
	}
	out, err := gocty.ToCtyValue(v, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot bridge %T into a runtime value: %w", v, err)
	}
	return out, nil
}

// ToGo bridges a runtime value into plain Go data: strings, bools, int64 or
// float64 numbers, []any and map[string]any. Unsupported values become nil.
func ToGo(v cty.Value) any {
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	switch {
	case v.Type() == cty.String:
		return v.AsString()
	case v.Type() == cty.Bool:
		return v.True()
	case v.Type() == cty.Number:
		bf := v.AsBigFloat()
		if n, acc := bf.Int64(); acc == big.Exact {
			return n
		}
		f, _ := bf.Float64()
		return f
	case v.Type().IsObjectType() || v.Type().IsMapType():
		out := map[string]any{}
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			out[k.AsString()] = ToGo(ev)
		}
		return out
	case v.CanIterateElements():
		out := []any{}
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			out = append(out, ToGo(ev))
		}
		return out
	}
	return nil
}

// Element is one item of an iterated collection.
type Element struct {
	Index cty.Value
	Value cty.Value
}

// Elements lists a collection's items in iteration order. Lists and tuples
// index by position, maps and objects by key (sorted), sets by position.
func Elements(coll cty.Value) ([]Element, error) {
	if coll == cty.NilVal || coll.IsNull() {
		return nil, fmt.Errorf("cannot iterate null: %w", ErrNotIterable)
	}
	ty := coll.Type()
	if !(ty.IsListType() || ty.IsSetType() || ty.IsTupleType() || ty.IsMapType() || ty.IsObjectType()) {
		return nil, fmt.Errorf("cannot iterate %s: %w", ty.FriendlyName(), ErrNotIterable)
	}

	var out []Element
	pos := 0
	for it := coll.ElementIterator(); it.Next(); {
		k, v := it.Element()
		if ty.IsSetType() {
			k = cty.NumberIntVal(int64(pos))
		}
		out = append(out, Element{Index: k, Value: v})
		pos++
	}
	return out, nil
}
