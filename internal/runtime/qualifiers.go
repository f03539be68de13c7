package runtime

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// QualifierFunc is one named value operation from the qualifier table.
type QualifierFunc func(v cty.Value) (cty.Value, error)

// qualifierTable is fixed language surface, not a registry: it is immutable
// after init and identical for every Runtime.
var qualifierTable = map[string]QualifierFunc{
	"sort":    qualSort,
	"unique":  qualUnique,
	"sum":     qualSum,
	"avg":     qualAvg,
	"min":     qualMin,
	"max":     qualMax,
	"count":   qualCount,
	"length":  qualCount,
	"first":   qualFirst,
	"last":    qualLast,
	"reverse": qualReverse,
	"keys":    qualKeys,
	"values":  qualValues,
	"upper":   qualUpper,
	"lower":   qualLower,
	"trim":    qualTrim,
}

// Qualifier looks up a named value operation.
func Qualifier(name string) (QualifierFunc, bool) {
	op, ok := qualifierTable[name]
	return op, ok
}

// IsQualifier reports whether name is a known value operation.
func IsQualifier(name string) bool {
	_, ok := qualifierTable[name]
	return ok
}

// baseOperations maps result-descriptor base words onto the operation the
// base implies when no explicit specifier selects one.
var baseOperations = map[string]string{
	"total":   "sum",
	"sum":     "sum",
	"average": "avg",
	"avg":     "avg",
	"count":   "count",
	"minimum": "min",
	"min":     "min",
	"maximum": "max",
	"max":     "max",
}

// OperationForBase resolves the implicit aggregation a descriptor base
// names. An explicit specifier always wins over this; callers apply that
// precedence.
func OperationForBase(base string) (string, bool) {
	op, ok := baseOperations[strings.ToLower(base)]
	return op, ok
}

// Aggregate applies a named aggregation to a collection, optionally
// projecting each element through a field first. The compute and reduce
// actions share it.
func Aggregate(v cty.Value, op, field string) (cty.Value, error) {
	fn, ok := Qualifier(op)
	if !ok {
		return cty.NilVal, fmt.Errorf("aggregation %q: %w", op, ErrUnknownSpecifier)
	}
	if field != "" {
		elems, err := Elements(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("aggregation %q: %w", op, err)
		}
		items := make([]cty.Value, len(elems))
		for i, e := range elems {
			items[i], err = Project(e.Value, []string{field})
			if err != nil {
				return cty.NilVal, fmt.Errorf("aggregation field %q: %w", field, err)
			}
		}
		if len(items) == 0 {
			v = cty.EmptyTupleVal
		} else {
			v = cty.TupleVal(items)
		}
	}
	return fn(v)
}

func qualSort(v cty.Value) (cty.Value, error) {
	elems, err := Elements(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("sort: %w", err)
	}
	if len(elems) == 0 {
		return cty.EmptyTupleVal, nil
	}

	numeric := true
	for _, e := range elems {
		if e.Value.IsNull() || e.Value.Type() != cty.Number {
			numeric = false
			break
		}
	}

	items := make([]cty.Value, len(elems))
	for i, e := range elems {
		items[i] = e.Value
	}
	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		if numeric {
			return items[i].LessThan(items[j]).True()
		}
		a, errA := CoerceString(items[i])
		b, errB := CoerceString(items[j])
		if errA != nil || errB != nil {
			if sortErr == nil {
				sortErr = fmt.Errorf("sort: elements are not comparable")
			}
			return false
		}
		return a < b
	})
	if sortErr != nil {
		return cty.NilVal, sortErr
	}
	return cty.TupleVal(items), nil
}

func qualUnique(v cty.Value) (cty.Value, error) {
	elems, err := Elements(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unique: %w", err)
	}
	var items []cty.Value
	for _, e := range elems {
		seen := false
		for _, kept := range items {
			if kept.RawEquals(e.Value) {
				seen = true
				break
			}
		}
		if !seen {
			items = append(items, e.Value)
		}
	}
	if len(items) == 0 {
		return cty.EmptyTupleVal, nil
	}
	return cty.TupleVal(items), nil
}

func qualSum(v cty.Value) (cty.Value, error) {
	nums, err := numericElements(v, "sum")
	if err != nil {
		return cty.NilVal, err
	}
	total := cty.Zero
	for _, n := range nums {
		total = total.Add(n)
	}
	return total, nil
}

func qualAvg(v cty.Value) (cty.Value, error) {
	nums, err := numericElements(v, "avg")
	if err != nil {
		return cty.NilVal, err
	}
	if len(nums) == 0 {
		return cty.Zero, nil
	}
	total := cty.Zero
	for _, n := range nums {
		total = total.Add(n)
	}
	return total.Divide(cty.NumberIntVal(int64(len(nums)))), nil
}

func qualMin(v cty.Value) (cty.Value, error) {
	nums, err := numericElements(v, "min")
	if err != nil {
		return cty.NilVal, err
	}
	if len(nums) == 0 {
		return cty.NullVal(cty.Number), nil
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if n.LessThan(best).True() {
			best = n
		}
	}
	return best, nil
}

func qualMax(v cty.Value) (cty.Value, error) {
	nums, err := numericElements(v, "max")
	if err != nil {
		return cty.NilVal, err
	}
	if len(nums) == 0 {
		return cty.NullVal(cty.Number), nil
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if n.GreaterThan(best).True() {
			best = n
		}
	}
	return best, nil
}

func qualCount(v cty.Value) (cty.Value, error) {
	if v != cty.NilVal && !v.IsNull() && v.Type() == cty.String {
		return cty.NumberIntVal(int64(utf8.RuneCountInString(v.AsString()))), nil
	}
	elems, err := Elements(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("count: %w", err)
	}
	return cty.NumberIntVal(int64(len(elems))), nil
}

func qualFirst(v cty.Value) (cty.Value, error) {
	elems, err := Elements(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("first: %w", err)
	}
	if len(elems) == 0 {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	return elems[0].Value, nil
}

func qualLast(v cty.Value) (cty.Value, error) {
	elems, err := Elements(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("last: %w", err)
	}
	if len(elems) == 0 {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	return elems[len(elems)-1].Value, nil
}

func qualReverse(v cty.Value) (cty.Value, error) {
	if v != cty.NilVal && !v.IsNull() && v.Type() == cty.String {
		runes := []rune(v.AsString())
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return cty.StringVal(string(runes)), nil
	}
	elems, err := Elements(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("reverse: %w", err)
	}
	if len(elems) == 0 {
		return cty.EmptyTupleVal, nil
	}
	items := make([]cty.Value, len(elems))
	for i, e := range elems {
		items[len(elems)-1-i] = e.Value
	}
	return cty.TupleVal(items), nil
}

func qualKeys(v cty.Value) (cty.Value, error) {
	if v == cty.NilVal || v.IsNull() || !(v.Type().IsObjectType() || v.Type().IsMapType()) {
		return cty.NilVal, fmt.Errorf("keys: value is not an object")
	}
	var items []cty.Value
	for it := v.ElementIterator(); it.Next(); {
		k, _ := it.Element()
		items = append(items, k)
	}
	if len(items) == 0 {
		return cty.EmptyTupleVal, nil
	}
	return cty.TupleVal(items), nil
}

func qualValues(v cty.Value) (cty.Value, error) {
	if v == cty.NilVal || v.IsNull() || !(v.Type().IsObjectType() || v.Type().IsMapType()) {
		return cty.NilVal, fmt.Errorf("values: value is not an object")
	}
	var items []cty.Value
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		items = append(items, ev)
	}
	if len(items) == 0 {
		return cty.EmptyTupleVal, nil
	}
	return cty.TupleVal(items), nil
}

func qualUpper(v cty.Value) (cty.Value, error) {
	s, err := CoerceString(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("upper: %w", err)
	}
	return cty.StringVal(strings.ToUpper(s)), nil
}

func qualLower(v cty.Value) (cty.Value, error) {
	s, err := CoerceString(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("lower: %w", err)
	}
	return cty.StringVal(strings.ToLower(s)), nil
}

func qualTrim(v cty.Value) (cty.Value, error) {
	s, err := CoerceString(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("trim: %w", err)
	}
	return cty.StringVal(strings.TrimSpace(s)), nil
}

// numericElements converts every element of a collection to a number.
func numericElements(v cty.Value, op string) ([]cty.Value, error) {
	elems, err := Elements(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	nums := make([]cty.Value, 0, len(elems))
	for i, e := range elems {
		conv, err := convert.Convert(e.Value, cty.Number)
		if err != nil {
			return nil, fmt.Errorf("%s: element %d is not numeric: %w", op, i, err)
		}
		nums = append(nums, conv)
	}
	return nums, nil
}
