// Package envvars exposes the process environment to programs through the
// extension action "environment". Retrieving from it yields either the
// whole environment as a map or a single named variable.
package envvars

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/runtime"
)

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the environment action with the registry. The name is
// an extension action, not part of the canonical catalog, so it never
// collides with a synonym.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{Name: "environment", Fn: runEnvironment})
}

// runEnvironment reads the process environment. With no object the whole
// environment comes back as a map; an object base names one variable, and
// an unset variable is a null string, not an error.
func runEnvironment(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	if inv.Object.Base != "" {
		v, ok := os.LookupEnv(inv.Object.Base)
		if !ok {
			return cty.NullVal(cty.String), nil
		}
		return cty.StringVal(v), nil
	}

	envMap := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && pair[0] != "" {
			envMap[pair[0]] = cty.StringVal(pair[1])
		}
	}
	out := cty.MapValEmpty(cty.String)
	if len(envMap) > 0 {
		out = cty.MapVal(envMap)
	}

	v, err := runtime.Project(out, inv.Object.Specifiers)
	if err != nil {
		return cty.NilVal, fmt.Errorf("environment: %w", err)
	}
	return v, nil
}
