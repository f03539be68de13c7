// Package runtime implements the fixed execution contract that generated
// feature functions run against: arena-allocated execution contexts with
// scoped variables, expression evaluation over the wire format, action
// dispatch, and the bounded parallel loop executor.
//
// One Runtime exists per session and owns all of its state. Nothing here is
// package-global; two Runtimes in one process share nothing.
package runtime

import (
	"context"
	"log/slog"
	stdruntime "runtime"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/program"
)

// Dispatcher resolves and executes one action call. The action registry
// implements it; the indirection keeps this package independent of the
// registry package.
type Dispatcher interface {
	Dispatch(ctx context.Context, rt *Runtime, ec ContextID, verb string,
		result program.ResultDescriptor, object program.ObjectDescriptor) (cty.Value, error)
}

// Options configure a Runtime.
type Options struct {
	// Registry resolves action dispatches. Required.
	Registry Dispatcher

	// Bus is the App's event bus. Required.
	Bus *bus.Bus

	// Services holds named collaborators that action implementations may
	// request: the repository, HTTP client, socket manager, file watcher.
	Services map[string]any

	// Logger handles runtime-internal logging on paths that have no call
	// context, such as Shutdown. Required.
	Logger *slog.Logger

	// DefaultParallelism bounds parallel loops that do not declare their
	// own bound. Zero means NumCPU.
	DefaultParallelism int
}

// Runtime is the per-session execution state.
type Runtime struct {
	mu       sync.RWMutex
	records  []contextRecord
	freeList []int
	nextGen  uint64

	dispatcher         Dispatcher
	bus                *bus.Bus
	services           map[string]any
	logger             *slog.Logger
	defaultParallelism int
}

// New constructs a Runtime. Missing required options are programmer errors
// and panic, matching application startup behavior.
func New(opts Options) *Runtime {
	if opts.Registry == nil {
		panic("runtime: Options.Registry is required")
	}
	if opts.Bus == nil {
		panic("runtime: Options.Bus is required")
	}
	if opts.Logger == nil {
		panic("runtime: Options.Logger is required")
	}
	parallelism := opts.DefaultParallelism
	if parallelism <= 0 {
		parallelism = stdruntime.NumCPU()
	}
	return &Runtime{
		nextGen:            1,
		dispatcher:         opts.Registry,
		bus:                opts.Bus,
		services:           opts.Services,
		logger:             opts.Logger,
		defaultParallelism: parallelism,
	}
}

// Bus returns the App's event bus.
func (r *Runtime) Bus() *bus.Bus {
	return r.bus
}

// Service returns a named collaborator provided at construction.
func (r *Runtime) Service(name string) (any, bool) {
	svc, ok := r.services[name]
	return svc, ok
}

// DefaultParallelism returns the bound applied to parallel loops that do
// not declare their own.
func (r *Runtime) DefaultParallelism() int {
	return r.defaultParallelism
}

// Dispatch executes one action call through the registry. A dispatch error
// flags the owning context's error state and is returned to the caller.
func (r *Runtime) Dispatch(ctx context.Context, ec ContextID, verb string,
	result program.ResultDescriptor, object program.ObjectDescriptor) (cty.Value, error) {

	out, err := r.dispatcher.Dispatch(ctx, r, ec, verb, result, object)
	if err != nil {
		if flagErr := r.FlagError(ec, err); flagErr != nil {
			ctxlog.FromContext(ctx).Debug("Could not flag dispatch error on context.", "error", flagErr)
		}
		return cty.NilVal, err
	}
	return out, nil
}

// Shutdown releases the runtime. Contexts still alive at shutdown indicate
// a teardown leak in generated code; they are logged and reclaimed.
func (r *Runtime) Shutdown(ctx context.Context) {
	r.mu.Lock()
	leaked := 0
	for i := range r.records {
		if r.records[i].alive {
			r.records[i].alive = false
			r.records[i].vars = nil
			leaked++
		}
	}
	r.records = nil
	r.freeList = nil
	r.mu.Unlock()

	if leaked > 0 {
		r.logger.Warn("Runtime shut down with live contexts.", "count", leaked)
	}
	r.logger.Debug("Runtime shut down.")
}
