// Package shell implements the run action (one-shot shell command
// execution) and the resolve action (path and filesystem lookups).
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/runtime"
)

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the shell actions with the registry.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{Name: "run", Fn: runCommand})
	r.Register(&action.Definition{Name: "resolve", Fn: runResolve})
}

// commandLine resolves the shell command a run statement names, in clause
// precedence order.
func commandLine(inv *action.Invocation) (string, error) {
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
		return "", fmt.Errorf("statement names no command")
	}
	return runtime.CoerceString(v)
}

// runCommand executes the statement's command through the shell and
// captures its output. A non-zero exit is data, not an error; the caller
// inspects the returned code.
func runCommand(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	cmdLine, err := commandLine(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("run: %w", err)
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running shell command.", "command", cmdLine)

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdLine)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			logger.Debug("Shell command exited non-zero.", "command", cmdLine, "code", code)
		} else {
			return cty.NilVal, fmt.Errorf("run %q: %w", cmdLine, err)
		}
	}

	return cty.ObjectVal(map[string]cty.Value{
		"stdout": cty.StringVal(stdout.String()),
		"stderr": cty.StringVal(stderr.String()),
		"code":   cty.NumberIntVal(int64(code)),
	}), nil
}

// runResolve applies path operations to the object's value. The object's
// specifiers name the operations, applied left to right; with none the
// path comes back cleaned and absolute.
func runResolve(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	if inv.Object.Base == "" {
		return cty.NilVal, fmt.Errorf("resolve: statement names no path")
	}
	v, err := inv.Runtime.Resolve(inv.Context, inv.Object.Base)
	if err != nil {
		return cty.NilVal, fmt.Errorf("resolve: %w", err)
	}

	if len(inv.Object.Specifiers) == 0 {
		path, err := runtime.CoerceString(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("resolve %q: %w", inv.Object.Base, err)
		}
		abs, err := filepath.Abs(filepath.Clean(path))
		if err != nil {
			return cty.NilVal, fmt.Errorf("resolve %q: %w", inv.Object.Base, err)
		}
		return cty.StringVal(abs), nil
	}

	for _, op := range inv.Object.Specifiers {
		v, err = pathOp(v, op)
		if err != nil {
			return cty.NilVal, fmt.Errorf("resolve %q: %w", inv.Object.Base, err)
		}
	}
	return v, nil
}

// pathOp applies one named path operation.
func pathOp(v cty.Value, op string) (cty.Value, error) {
	path, err := runtime.CoerceString(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("operation %q needs a string path: %w", op, err)
	}

	switch op {
	case "abs":
		abs, err := filepath.Abs(path)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(abs), nil
	case "base":
		return cty.StringVal(filepath.Base(path)), nil
	case "dir":
		return cty.StringVal(filepath.Dir(path)), nil
	case "ext":
		return cty.StringVal(filepath.Ext(path)), nil
	case "clean":
		return cty.StringVal(filepath.Clean(path)), nil
	case "exists":
		_, err := os.Stat(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cty.NilVal, err
		}
		return cty.BoolVal(err == nil), nil
	case "list":
		return listDir(path)
	default:
		return cty.NilVal, fmt.Errorf("unknown path operation %q: %w", op, runtime.ErrUnknownSpecifier)
	}
}

func listDir(path string) (cty.Value, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return cty.NilVal, err
	}
	if len(entries) == 0 {
		return cty.EmptyTupleVal, nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	items := make([]cty.Value, len(names))
	for i, name := range names {
		items[i] = cty.StringVal(name)
	}
	return cty.TupleVal(items), nil
}
