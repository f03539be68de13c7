package codegen

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
	"github.com/vk/fablego/internal/wire"
)

// slotBind is one clause binding materialized before a dispatch call. The
// bind func evaluates whatever the clause needs and writes it into the
// reserved slot name.
type slotBind struct {
	name string
	bind func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) error
}

func stringSlot(name, value string) slotBind {
	return slotBind{name: name, bind: func(_ context.Context, rt *runtime.Runtime, ec runtime.ContextID) error {
		return rt.BindString(ec, name, value)
	}}
}

func wireSlot(name string, blob []byte) slotBind {
	return slotBind{name: name, bind: func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) error {
		v, err := rt.EvalWire(ctx, ec, blob)
		if err != nil {
			return err
		}
		return rt.BindValue(ec, name, v)
	}}
}

// lowerAction turns one verb statement into a step that binds the
// statement's clause slots, dispatches the canonical verb, binds the result
// and clears the slots again.
func (g *generator) lowerAction(stmt *program.ActionStatement) (stepFunc, error) {
	verb, _ := g.reg.Canonical(stmt.Verb)

	g.pool.Intern(verb)
	g.pool.Intern(stmt.Result.Base)
	g.pool.InternAll(stmt.Result.Specifiers...)
	if stmt.Object.Base != "" {
		g.pool.Intern(stmt.Object.Base)
		g.pool.InternAll(stmt.Object.Specifiers...)
	}

	var slots []slotBind
	if stmt.Literal != nil {
		g.pool.Intern(*stmt.Literal)
		slots = append(slots, stringSlot(runtime.SlotLiteral, *stmt.Literal))
	}
	if stmt.Expression != nil {
		blob, err := g.encode(stmt.Expression)
		if err != nil {
			return nil, fmt.Errorf("expression: %w", err)
		}
		slots = append(slots, wireSlot(runtime.SlotExpression, blob))
	}
	if agg := stmt.Aggregation; agg != nil {
		g.pool.Intern(agg.Type)
		slots = append(slots, stringSlot(runtime.SlotAggregationType, agg.Type))
		if agg.Field != "" {
			g.pool.Intern(agg.Field)
			slots = append(slots, stringSlot(runtime.SlotAggregationField, agg.Field))
		}
	}
	if wh := stmt.Where; wh != nil {
		g.pool.InternAll(wh.Field, wh.Op)
		slots = append(slots,
			stringSlot(runtime.SlotWhereField, wh.Field),
			stringSlot(runtime.SlotWhereOp, wh.Op))
		if wh.Value != nil {
			blob, err := g.encode(wh.Value)
			if err != nil {
				return nil, fmt.Errorf("where value: %w", err)
			}
			slots = append(slots, wireSlot(runtime.SlotWhereValue, blob))
		}
	}
	if pat := stmt.Pattern; pat != nil {
		g.pool.Intern(pat.Text)
		slots = append(slots, stringSlot(runtime.SlotByPattern, pat.Text))
		if pat.Flags != "" {
			g.pool.Intern(pat.Flags)
			slots = append(slots, stringSlot(runtime.SlotByFlags, pat.Flags))
		}
	}

	result, object := stmt.Result, stmt.Object

	return func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) (cty.Value, error) {
		bound := make([]string, 0, len(slots))
		defer func() {
			for _, name := range bound {
				if err := rt.Unbind(ec, name); err != nil {
					ctxlog.FromContext(ctx).Debug("Could not clear a statement slot.", "slot", name, "error", err)
				}
			}
		}()
		for _, s := range slots {
			if err := s.bind(ctx, rt, ec); err != nil {
				return cty.NilVal, fmt.Errorf("%s %s: %w", verb, s.name, err)
			}
			bound = append(bound, s.name)
		}

		out, err := rt.Dispatch(ctx, ec, verb, result, object)
		if err != nil {
			return cty.NilVal, err
		}
		if out != cty.NilVal && result.Base != "" {
			if err := rt.BindValue(ec, result.Base, out); err != nil {
				return cty.NilVal, err
			}
		}
		return out, nil
	}, nil
}

// lowerPublish turns a publish statement into a step that re-exposes an
// internal binding under its external name in the same scope.
func (g *generator) lowerPublish(stmt *program.PublishStatement) (stepFunc, error) {
	g.pool.InternAll(stmt.ExternalName, stmt.InternalVariable)
	external, internal := stmt.ExternalName, stmt.InternalVariable

	return func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) (cty.Value, error) {
		v, err := rt.Resolve(ec, internal)
		if err != nil {
			return cty.NilVal, fmt.Errorf("publish %q: %w", external, err)
		}
		if err := rt.BindValue(ec, external, v); err != nil {
			return cty.NilVal, fmt.Errorf("publish %q: %w", external, err)
		}
		ctxlog.FromContext(ctx).Debug("Published binding.", "name", external, "variable", internal)
		return cty.NilVal, nil
	}, nil
}

// encode serializes an expression to its wire blob. Composite blobs are
// interned so the pool covers every constant the lowered code carries.
func (g *generator) encode(expr program.Expression) ([]byte, error) {
	node, err := wire.FromExpression(expr, g.pool)
	if err != nil {
		return nil, err
	}
	blob, err := wire.Encode(node)
	if err != nil {
		return nil, err
	}
	if node.Kind == wire.KindMap || node.Kind == wire.KindArray {
		g.pool.Intern(string(blob))
	}
	return blob, nil
}
