package codegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

// ExecConfig carries the per-run knobs the entry choreography needs.
type ExecConfig struct {
	// Out receives the program's pending response and failure diagnostics.
	Out io.Writer
	// Contract, when not NilVal, is bound as `contract` in the root context
	// before the entry point runs.
	Contract cty.Value
	// DrainTimeout bounds how long shutdown waits for in-flight handlers.
	DrainTimeout time.Duration
}

// Execute runs the generated program end to end: it creates the root
// context, binds the contract, registers every handler-role feature set on
// the bus, invokes the entry point, drains the bus, runs the matching exit
// handler, prints the pending response, and tears the runtime down. The
// teardown happens even when the entry point fails.
func (m *Module) Execute(ctx context.Context, rt *runtime.Runtime, cfg ExecConfig) error {
	logger := ctxlog.FromContext(ctx)

	entry, err := m.prog.EntryPoint()
	if err != nil {
		return err
	}
	entryFn := m.features[entry.Name]

	root := rt.NewRootContext(entry.Name)
	defer func() {
		if destroyErr := rt.DestroyContext(root); destroyErr != nil {
			logger.Debug("Root context was already gone at teardown.", "error", destroyErr)
		}
		rt.Shutdown(ctx)
	}()

	if cfg.Contract != cty.NilVal {
		if err := rt.BindValue(root, "contract", cfg.Contract); err != nil {
			return err
		}
	}

	b := rt.Bus()
	if err := m.registerHandlers(ctx, rt, b); err != nil {
		return err
	}
	b.Start(ctx)

	logger.Debug("Invoking entry point.", "featureSet", entry.Name)
	_, entryErr := entryFn(ctx, rt, root)
	if entryErr != nil {
		logger.Error("Entry point failed.", "featureSet", entry.Name, "error", entryErr)
	}

	if drainErr := b.Drain(ctx, cfg.DrainTimeout); drainErr != nil && !errors.Is(drainErr, bus.ErrDrainTimeout) {
		logger.Debug("Drain ended early.", "error", drainErr)
	}

	flagged := rt.ContextError(root)
	st := shutdownState(ctx, entryErr, flagged)
	if exitErr := m.runExitHandler(ctx, rt, b, root, st); exitErr != nil {
		logger.Error("Exit handler failed.", "error", exitErr)
	}

	if v, ok := rt.TakeResponse(root); ok {
		if writeErr := writeResponse(cfg.Out, v); writeErr != nil {
			logger.Error("Could not write the response.", "error", writeErr)
		}
	}

	if entryErr != nil {
		return fmt.Errorf("execution failed: %w", entryErr)
	}
	if flagged != nil {
		if cfg.Out != nil {
			fmt.Fprintf(cfg.Out, "error: %v\n", flagged)
		}
		return fmt.Errorf("execution flagged an error: %w", flagged)
	}
	return nil
}

// registerHandlers subscribes every handler-role feature set under its event
// type. Socket, file and repository events share the bus with application
// events under their own namespaces.
func (m *Module) registerHandlers(ctx context.Context, rt *runtime.Runtime, b *bus.Bus) error {
	logger := ctxlog.FromContext(ctx)

	subscribe := func(fs *program.FeatureSet, eventType string) error {
		fn := m.features[fs.Name]
		if err := b.Subscribe(eventType, m.handlerFor(rt, fs.Name, fn)); err != nil {
			return fmt.Errorf("registering %q: %w", fs.Name, err)
		}
		logger.Debug("Handler registered.", "featureSet", fs.Name, "eventType", eventType)
		return nil
	}

	for _, fs := range m.prog.ByRole(program.RoleHandler) {
		if err := subscribe(fs, fs.Role.Key); err != nil {
			return err
		}
	}
	for _, fs := range m.prog.ByRole(program.RoleSocketHandler) {
		if err := subscribe(fs, bus.SocketEvent(fs.Role.Key)); err != nil {
			return err
		}
	}
	for _, fs := range m.prog.ByRole(program.RoleFileHandler) {
		if err := subscribe(fs, bus.FileEvent(fs.Role.Key)); err != nil {
			return err
		}
	}
	for _, fs := range m.prog.ByRole(program.RoleObserver) {
		if err := subscribe(fs, bus.RepoEvent(fs.Role.Key)); err != nil {
			return err
		}
	}
	return nil
}

// handlerFor adapts a generated feature func into a bus handler. Every
// delivery gets its own root context with the event bound as `event` and its
// payload as `data`.
func (m *Module) handlerFor(rt *runtime.Runtime, name string, fn FeatureFunc) bus.HandlerFunc {
	return func(ctx context.Context, evt bus.Event) (err error) {
		hc := rt.NewRootContext(name)
		defer func() {
			if destroyErr := rt.DestroyContext(hc); destroyErr != nil && err == nil {
				err = destroyErr
			}
		}()

		if err := rt.BindValue(hc, "event", eventValue(evt)); err != nil {
			return err
		}
		if err := rt.BindValue(hc, "data", eventData(evt)); err != nil {
			return err
		}
		_, err = fn(ctx, rt, hc)
		return err
	}
}

// runExitHandler picks the exit feature set matching the shutdown reason and
// drives it through the bus's exiting phase. The handler runs in a dedicated
// child of the root context with the shutdown state bound.
func (m *Module) runExitHandler(ctx context.Context, rt *runtime.Runtime, b *bus.Bus,
	root runtime.ContextID, st bus.ShutdownState) error {

	kind := program.RoleExitSuccess
	if st.Reason == bus.ReasonError {
		kind = program.RoleExitError
	}
	fs, err := m.prog.ExitHandler(kind)
	if err != nil {
		return err
	}

	var callback func(context.Context, bus.ShutdownState) error
	if fs != nil {
		fn := m.features[fs.Name]
		name := fs.Name
		callback = func(ctx context.Context, st bus.ShutdownState) (err error) {
			ec, err := rt.NewNamedContext(root, name)
			if err != nil {
				return err
			}
			defer func() {
				if destroyErr := rt.DestroyContext(ec); destroyErr != nil && err == nil {
					err = destroyErr
				}
			}()

			if err := bindShutdownState(rt, ec, st); err != nil {
				return err
			}
			_, err = fn(ctx, rt, ec)
			return err
		}
	}
	return b.RunExitHandler(ctx, st, callback)
}

func bindShutdownState(rt *runtime.Runtime, ec runtime.ContextID, st bus.ShutdownState) error {
	if err := rt.BindString(ec, "reason", st.Reason); err != nil {
		return err
	}
	if err := rt.BindInt(ec, "code", st.Code); err != nil {
		return err
	}
	if err := rt.BindString(ec, "signal", st.Signal); err != nil {
		return err
	}
	errVal := cty.NullVal(cty.String)
	if st.Error != nil {
		errVal = cty.StringVal(st.Error.Error())
	}
	return rt.BindValue(ec, "error", errVal)
}

// shutdownState derives the exit reason. An entry failure or a flagged
// context error wins over everything; a canceled parent context counts as a
// signal-driven shutdown; anything else is success.
func shutdownState(ctx context.Context, entryErr, flagged error) bus.ShutdownState {
	switch {
	case entryErr != nil:
		return bus.ShutdownState{Reason: bus.ReasonError, Code: 1, Error: entryErr}
	case flagged != nil:
		return bus.ShutdownState{Reason: bus.ReasonError, Code: 1, Error: flagged}
	case ctx.Err() != nil:
		return bus.ShutdownState{Reason: bus.ReasonSignal, Code: 130, Signal: "interrupt"}
	default:
		return bus.ShutdownState{Reason: bus.ReasonSuccess, Code: 0}
	}
}

// eventValue renders a bus event as the `event` binding: an object with id,
// type and data attributes.
func eventValue(evt bus.Event) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"id":   cty.StringVal(evt.ID.String()),
		"type": cty.StringVal(evt.Type),
		"data": eventData(evt),
	})
}

func eventData(evt bus.Event) cty.Value {
	if evt.Data == cty.NilVal {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	return evt.Data
}

// writeResponse renders the pending response to the run's writer. Strings
// print raw; everything else renders as JSON.
func writeResponse(w io.Writer, v cty.Value) error {
	if w == nil {
		return nil
	}
	if v != cty.NilVal && !v.IsNull() && v.Type() == cty.String {
		_, err := fmt.Fprintln(w, v.AsString())
		return err
	}
	if v == cty.NilVal {
		v = cty.NullVal(cty.DynamicPseudoType)
	}
	out, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return fmt.Errorf("cannot render the response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
