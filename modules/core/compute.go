package core

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/runtime"
)

// operationFor resolves which value operation a statement selects, by the
// documented precedence: an explicit result specifier naming an operation
// wins, then the aggregation clause, then an operation implied by the result
// base. Empty means identity.
func operationFor(inv *action.Invocation) string {
	for _, spec := range inv.Result.Specifiers {
		if runtime.IsQualifier(spec) {
			return spec
		}
	}
	if v, ok := inv.Slot(runtime.SlotAggregationType); ok {
		if op, err := runtime.CoerceString(v); err == nil && op != "" {
			return op
		}
	}
	if op, ok := runtime.OperationForBase(inv.Result.Base); ok {
		return op
	}
	return ""
}

// aggregationField reads the optional field the aggregation projects each
// element through.
func aggregationField(inv *action.Invocation) string {
	if v, ok := inv.Slot(runtime.SlotAggregationField); ok {
		if field, err := runtime.CoerceString(v); err == nil {
			return field
		}
	}
	return ""
}

// runCompute evaluates the statement's expression and applies the selected
// aggregation, if any.
func runCompute(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	v, err := statementValue(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("compute: %w", err)
	}
	op := operationFor(inv)
	if op == "" {
		return v, nil
	}
	out, err := runtime.Aggregate(v, op, aggregationField(inv))
	if err != nil {
		return cty.NilVal, fmt.Errorf("compute: %w", err)
	}
	return out, nil
}

// runCompare compares the object's value against the statement's expression
// or literal, using the where-clause operator when one is given and loose
// equality otherwise.
func runCompare(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	left, err := inv.ObjectValue()
	if err != nil {
		return cty.NilVal, fmt.Errorf("compare: %w", err)
	}

	right := cty.NilVal
	if v, ok := inv.Slot(runtime.SlotExpression); ok {
		right = v
	} else if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		right = v
	} else {
		return cty.NilVal, fmt.Errorf("compare %q: nothing to compare against", inv.Object.Base)
	}

	op := "=="
	if v, ok := inv.Slot(runtime.SlotWhereOp); ok {
		if s, err := runtime.CoerceString(v); err == nil && s != "" {
			op = s
		}
	}

	match, err := runtime.Compare(left, right, op)
	if err != nil {
		return cty.NilVal, fmt.Errorf("compare %q: %w", inv.Object.Base, err)
	}
	return cty.BoolVal(match), nil
}

// runValidate checks the object's value. With a where clause, the named
// field must satisfy the comparison; without one, the value itself must be
// truthy. A failed validation returns false and flags the context's error
// state so the entry choreography surfaces it.
func runValidate(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	v, err := inv.ObjectValue()
	if err != nil {
		return cty.NilVal, fmt.Errorf("validate: %w", err)
	}

	valid := true
	detail := ""
	if fieldV, ok := inv.Slot(runtime.SlotWhereField); ok {
		field, err := runtime.CoerceString(fieldV)
		if err != nil {
			return cty.NilVal, fmt.Errorf("validate: %w", err)
		}
		opV, ok := inv.Slot(runtime.SlotWhereOp)
		if !ok {
			return cty.NilVal, fmt.Errorf("validate %q: where clause has no operator", inv.Object.Base)
		}
		op, err := runtime.CoerceString(opV)
		if err != nil {
			return cty.NilVal, fmt.Errorf("validate: %w", err)
		}
		want, _ := inv.Slot(runtime.SlotWhereValue)

		got, err := runtime.Project(v, []string{field})
		if err != nil {
			return cty.NilVal, fmt.Errorf("validate %q: %w", inv.Object.Base, err)
		}
		valid, err = runtime.Compare(got, want, op)
		if err != nil {
			return cty.NilVal, fmt.Errorf("validate %q: %w", inv.Object.Base, err)
		}
		detail = fmt.Sprintf("%s %s", field, op)
	} else {
		valid = runtime.Truthy(v)
		detail = "value is not truthy"
	}

	if !valid {
		failure := fmt.Errorf("validation of %q failed: %s", inv.Object.Base, detail)
		if err := inv.Runtime.FlagError(inv.Context, failure); err != nil {
			return cty.NilVal, err
		}
		ctxlog.FromContext(ctx).Warn("Validation failed.", "object", inv.Object.Base, "check", detail)
	}
	return cty.BoolVal(valid), nil
}

// runTransform applies a named value operation to the object's value. The
// operation comes from the result specifiers or the aggregation clause.
func runTransform(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	v, err := inv.ObjectValue()
	if err != nil {
		return cty.NilVal, fmt.Errorf("transform: %w", err)
	}
	op := operationFor(inv)
	if op == "" {
		return cty.NilVal, fmt.Errorf("transform %q: no operation selected", inv.Object.Base)
	}
	out, err := runtime.Aggregate(v, op, aggregationField(inv))
	if err != nil {
		return cty.NilVal, fmt.Errorf("transform %q: %w", inv.Object.Base, err)
	}
	return out, nil
}
