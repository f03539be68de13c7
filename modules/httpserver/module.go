package httpserver

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
)

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the listen action with the registry.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{Name: "listen", Fn: runListen})
}

// runListen starts the App's HTTP listener. Without a configured bind
// address the service is absent and the action fails.
func runListen(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	svc, err := inv.Service(ServiceName)
	if err != nil {
		return cty.NilVal, err
	}
	server, ok := svc.(*Server)
	if !ok {
		return cty.NilVal, fmt.Errorf("service %q is not an HTTP server", ServiceName)
	}
	if err := server.Listen(ctx); err != nil {
		return cty.NilVal, fmt.Errorf("listen: %w", err)
	}
	return cty.StringVal(server.addr), nil
}
