// Package core implements the built-in actions every fable program can rely
// on: logging, responses, binding creation, computation, validation, event
// emission and the blocking wait.
package core

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the core actions with the registry.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{Name: "log", Fn: runLog})
	r.Register(&action.Definition{
		Name:         "return",
		Prepositions: []program.Preposition{program.PrepFrom, program.PrepWith, program.PrepTo},
		Fn:           runReturn,
	})
	r.Register(&action.Definition{Name: "create", Fn: runCreate})
	r.Register(&action.Definition{Name: "update", Fn: runUpdate})
	r.Register(&action.Definition{Name: "compute", Fn: runCompute})
	r.Register(&action.Definition{Name: "compare", Fn: runCompare})
	r.Register(&action.Definition{Name: "validate", Fn: runValidate})
	r.Register(&action.Definition{Name: "transform", Fn: runTransform})
	r.Register(&action.Definition{Name: "emit", Fn: runEmit})
	r.Register(&action.Definition{Name: "wait", Fn: runWait})
	r.Register(&action.Definition{Name: "accept", Fn: runAccept})
	r.Register(&action.Definition{Name: "transition", Fn: runTransition})
}

// statementValue resolves the value a statement carries, in clause
// precedence order: the evaluated expression wins, then the literal, then
// the object descriptor's resolved value.
func statementValue(inv *action.Invocation) (cty.Value, error) {
	if v, ok := inv.Slot(runtime.SlotExpression); ok {
		return v, nil
	}
	if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		return v, nil
	}
	return inv.ObjectValue()
}

// runLog writes the statement's value to the application log at Info level.
func runLog(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	v, err := statementValue(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("log: %w", err)
	}
	msg, err := runtime.CoerceString(v)
	if err != nil {
		msg = fmt.Sprintf("%v", runtime.ToGo(v))
	}
	ctxlog.FromContext(ctx).Info(msg)
	return cty.NilVal, nil
}

// runReturn records the statement's value as the pending response on the
// invocation's root context. The entry choreography prints it after the
// drain completes.
func runReturn(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	v, err := statementValue(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("return: %w", err)
	}
	if err := inv.Runtime.SetResponse(inv.Context, v); err != nil {
		return cty.NilVal, fmt.Errorf("return: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Response recorded.")
	return v, nil
}

// runCreate materializes the statement's value; the dispatcher binds it onto
// the result base.
func runCreate(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	v, err := statementValue(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("create: %w", err)
	}
	if v == cty.NilVal {
		return cty.NilVal, fmt.Errorf("create %q: statement carries no value", inv.Result.Base)
	}
	return v, nil
}

// runUpdate replaces an existing binding. Updating a name that was never
// bound is an error; create is the verb for that.
func runUpdate(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	if _, err := inv.Runtime.Resolve(inv.Context, inv.Result.Base); err != nil {
		return cty.NilVal, fmt.Errorf("update %q: %w", inv.Result.Base, err)
	}
	v, err := statementValue(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("update %q: %w", inv.Result.Base, err)
	}
	return v, nil
}
