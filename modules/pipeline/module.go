// Package pipeline implements the dedicated data-pipeline actions: filter,
// map, reduce and sort. The three pipeline verbs are never synonym targets;
// a program that says filter always gets this filter.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/runtime"
)

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the pipeline actions with the registry.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{Name: "filter", Fn: runFilter})
	r.Register(&action.Definition{Name: "map", Fn: runMap})
	r.Register(&action.Definition{Name: "reduce", Fn: runReduce})
	r.Register(&action.Definition{Name: "sort", Fn: runSort})
}

// whereClause reads the statement's where slots. ok is false when the
// statement carries none.
func whereClause(inv *action.Invocation) (field, op string, value cty.Value, ok bool, err error) {
	fieldV, present := inv.Slot(runtime.SlotWhereField)
	if !present {
		return "", "", cty.NilVal, false, nil
	}
	if field, err = runtime.CoerceString(fieldV); err != nil {
		return "", "", cty.NilVal, false, err
	}
	opV, present := inv.Slot(runtime.SlotWhereOp)
	if !present {
		return "", "", cty.NilVal, false, fmt.Errorf("where clause has no operator")
	}
	if op, err = runtime.CoerceString(opV); err != nil {
		return "", "", cty.NilVal, false, err
	}
	value, _ = inv.Slot(runtime.SlotWhereValue)
	return field, op, value, true, nil
}

// runFilter keeps the elements of the object's collection that satisfy the
// where clause. Without one, truthy elements survive.
func runFilter(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	coll, err := inv.ObjectValue()
	if err != nil {
		return cty.NilVal, fmt.Errorf("filter: %w", err)
	}
	elems, err := runtime.Elements(coll)
	if err != nil {
		return cty.NilVal, fmt.Errorf("filter %q: %w", inv.Object.Base, err)
	}

	field, op, want, hasWhere, err := whereClause(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("filter %q: %w", inv.Object.Base, err)
	}

	var kept []cty.Value
	for i, e := range elems {
		keep := false
		if hasWhere {
			got := e.Value
			if field != "" {
				got, err = runtime.Project(e.Value, []string{field})
				if err != nil {
					return cty.NilVal, fmt.Errorf("filter %q element %d: %w", inv.Object.Base, i, err)
				}
			}
			keep, err = runtime.Compare(got, want, op)
			if err != nil {
				return cty.NilVal, fmt.Errorf("filter %q element %d: %w", inv.Object.Base, i, err)
			}
		} else {
			keep = runtime.Truthy(e.Value)
		}
		if keep {
			kept = append(kept, e.Value)
		}
	}
	return tupleOf(kept), nil
}

// runMap projects every element of the collection through the object
// descriptor's specifiers. With no specifiers it returns the elements
// unchanged, as a tuple.
func runMap(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	if inv.Object.Base == "" {
		return cty.NilVal, fmt.Errorf("map: statement names no collection")
	}
	// The specifiers describe the per-element projection, so the base is
	// resolved without them.
	coll, err := inv.Runtime.Resolve(inv.Context, inv.Object.Base)
	if err != nil {
		return cty.NilVal, fmt.Errorf("map: %w", err)
	}
	elems, err := runtime.Elements(coll)
	if err != nil {
		return cty.NilVal, fmt.Errorf("map %q: %w", inv.Object.Base, err)
	}

	out := make([]cty.Value, len(elems))
	for i, e := range elems {
		out[i], err = runtime.Project(e.Value, inv.Object.Specifiers)
		if err != nil {
			return cty.NilVal, fmt.Errorf("map %q element %d: %w", inv.Object.Base, i, err)
		}
	}
	return tupleOf(out), nil
}

// runReduce aggregates the collection with the statement's aggregation
// clause, or with the operation the result base implies.
func runReduce(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	coll, err := inv.ObjectValue()
	if err != nil {
		return cty.NilVal, fmt.Errorf("reduce: %w", err)
	}

	op := ""
	if v, ok := inv.Slot(runtime.SlotAggregationType); ok {
		op, err = runtime.CoerceString(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("reduce: %w", err)
		}
	} else if implied, ok := runtime.OperationForBase(inv.Result.Base); ok {
		op = implied
	}
	if op == "" {
		return cty.NilVal, fmt.Errorf("reduce %q: no aggregation selected", inv.Object.Base)
	}

	field := ""
	if v, ok := inv.Slot(runtime.SlotAggregationField); ok {
		if field, err = runtime.CoerceString(v); err != nil {
			return cty.NilVal, fmt.Errorf("reduce: %w", err)
		}
	}

	out, err := runtime.Aggregate(coll, op, field)
	if err != nil {
		return cty.NilVal, fmt.Errorf("reduce %q: %w", inv.Object.Base, err)
	}
	return out, nil
}

// runSort orders the collection. The optional "by" clause names the element
// field to sort on; the flag "desc" reverses the order.
func runSort(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	coll, err := inv.ObjectValue()
	if err != nil {
		return cty.NilVal, fmt.Errorf("sort: %w", err)
	}

	key := ""
	if v, ok := inv.Slot(runtime.SlotByPattern); ok {
		if key, err = runtime.CoerceString(v); err != nil {
			return cty.NilVal, fmt.Errorf("sort: %w", err)
		}
	}
	desc := false
	if v, ok := inv.Slot(runtime.SlotByFlags); ok {
		flags, err := runtime.CoerceString(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("sort: %w", err)
		}
		switch flags {
		case "", "asc":
		case "desc":
			desc = true
		default:
			return cty.NilVal, fmt.Errorf("sort %q: unknown flag %q", inv.Object.Base, flags)
		}
	}

	var out cty.Value
	if key == "" {
		out, err = runtime.Aggregate(coll, "sort", "")
		if err != nil {
			return cty.NilVal, fmt.Errorf("sort %q: %w", inv.Object.Base, err)
		}
	} else {
		out, err = sortByField(coll, key)
		if err != nil {
			return cty.NilVal, fmt.Errorf("sort %q: %w", inv.Object.Base, err)
		}
	}

	if desc {
		out, err = runtime.Aggregate(out, "reverse", "")
		if err != nil {
			return cty.NilVal, fmt.Errorf("sort %q: %w", inv.Object.Base, err)
		}
	}
	return out, nil
}

// sortByField orders elements by one projected field, numerically when every
// key is a number and lexically otherwise. The sort is stable.
func sortByField(coll cty.Value, field string) (cty.Value, error) {
	elems, err := runtime.Elements(coll)
	if err != nil {
		return cty.NilVal, err
	}

	type keyed struct {
		value cty.Value
		key   cty.Value
	}
	items := make([]keyed, len(elems))
	numeric := true
	for i, e := range elems {
		k, err := runtime.Project(e.Value, []string{field})
		if err != nil {
			return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
		}
		if k.IsNull() || k.Type() != cty.Number {
			numeric = false
		}
		items[i] = keyed{value: e.Value, key: k}
	}

	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		if numeric {
			return items[i].key.LessThan(items[j].key).True()
		}
		a, errA := runtime.CoerceString(items[i].key)
		b, errB := runtime.CoerceString(items[j].key)
		if errA != nil || errB != nil {
			if sortErr == nil {
				sortErr = fmt.Errorf("field %q is not comparable", field)
			}
			return false
		}
		return a < b
	})
	if sortErr != nil {
		return cty.NilVal, sortErr
	}

	out := make([]cty.Value, len(items))
	for i, it := range items {
		out[i] = it.value
	}
	return tupleOf(out), nil
}

func tupleOf(items []cty.Value) cty.Value {
	if len(items) == 0 {
		return cty.EmptyTupleVal
	}
	return cty.TupleVal(items)
}
