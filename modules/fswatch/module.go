package fswatch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the watch action with the registry.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{
		Name:         "watch",
		Prepositions: []program.Preposition{program.PrepAt, program.PrepOn, program.PrepFor},
		Fn:           runWatch,
	})
}

// watchPath resolves the filesystem path a watch statement names, in
// clause precedence order.
func watchPath(inv *action.Invocation) (string, error) {
	if v, ok := inv.Slot(runtime.SlotExpression); ok {
		return runtime.CoerceString(v)
	}
	if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		return runtime.CoerceString(v)
	}
	v, err := inv.ObjectValue()
	if err != nil {
		return "", err
	}
	if v == cty.NilVal {
		return "", fmt.Errorf("statement names no path")
	}
	return runtime.CoerceString(v)
}

// runWatch registers a path with the watcher. The result name is the
// registration key File Handler feature sets bind to; without one the
// path's base name serves.
func runWatch(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	svc, err := inv.Service(ServiceName)
	if err != nil {
		return cty.NilVal, err
	}
	watcher, ok := svc.(*Watcher)
	if !ok {
		return cty.NilVal, fmt.Errorf("service %q is not a file watcher", ServiceName)
	}

	path, err := watchPath(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("watch: %w", err)
	}
	key := inv.Result.Base
	if key == "" {
		key = filepath.Base(path)
	}

	if err := watcher.Watch(ctx, key, path); err != nil {
		return cty.NilVal, fmt.Errorf("watch %q: %w", key, err)
	}
	return cty.StringVal(key), nil
}
