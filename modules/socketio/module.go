package socketio

import (
	"context"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/runtime"
)

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the socket action with the registry. The name is an
// extension action outside the canonical catalog.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{Name: "socket", Fn: runSocket})
}

// runSocket drives the client. A statement whose value is a URL connects;
// anything else emits the object-named event outbound with the statement's
// payload.
func runSocket(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	svc, err := inv.Service(ServiceName)
	if err != nil {
		return cty.NilVal, err
	}
	manager, ok := svc.(*Manager)
	if !ok {
		return cty.NilVal, fmt.Errorf("service %q is not a socket manager", ServiceName)
	}

	if target, ok := connectTarget(inv); ok {
		if err := manager.Connect(ctx, target); err != nil {
			return cty.NilVal, fmt.Errorf("socket: %w", err)
		}
		return cty.StringVal(target), nil
	}

	if inv.Object.Base == "" {
		return cty.NilVal, fmt.Errorf("socket: statement names neither a URL nor an event")
	}
	var payload any
	if v, ok := inv.Slot(runtime.SlotExpression); ok {
		payload = runtime.ToGo(v)
	} else if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		payload = runtime.ToGo(v)
	}
	if err := manager.Emit(inv.Object.Base, payload); err != nil {
		return cty.NilVal, fmt.Errorf("socket: %w", err)
	}
	return cty.StringVal(inv.Object.Base), nil
}

// connectTarget looks for a URL in the statement: the literal clause first,
// then the object's resolved value.
func connectTarget(inv *action.Invocation) (string, bool) {
	if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		if s, err := runtime.CoerceString(v); err == nil && strings.Contains(s, "://") {
			return s, true
		}
	}
	if inv.Object.Base != "" {
		if v, err := inv.ObjectValue(); err == nil {
			if s, err := runtime.CoerceString(v); err == nil && strings.Contains(s, "://") {
				return s, true
			}
		}
	}
	return "", false
}
