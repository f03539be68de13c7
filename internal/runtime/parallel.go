package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/ctxlog"
)

// BodyFunc is one generated loop body. It receives the per-iteration child
// context with the item and index variables already bound.
type BodyFunc func(ctx context.Context, ec ContextID) (cty.Value, error)

// LoopSpec describes one parallel for-each execution.
type LoopSpec struct {
	// Collection is the already-evaluated value being iterated.
	Collection cty.Value

	// ItemVar names the per-iteration element binding.
	ItemVar string

	// IndexVar optionally names the per-iteration index binding.
	IndexVar string

	// Bound caps concurrent iterations. Zero or negative means the
	// runtime default.
	Bound int

	// Filter is an optional serialized predicate. Iterations where it is
	// falsy are skipped and contribute no result.
	Filter []byte
}

// ForEachParallel runs the body over every element of the collection with a
// bounded worker pool. Each iteration gets its own child context, bound and
// destroyed by the executor. Results keep collection order with skipped
// iterations compacted out. Iteration failures do not stop the other
// iterations; they are joined and returned after the pool drains.
func (r *Runtime) ForEachParallel(ctx context.Context, parent ContextID, spec LoopSpec, body BodyFunc) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	elems, err := Elements(spec.Collection)
	if err != nil {
		return cty.NilVal, fmt.Errorf("for-each collection: %w", err)
	}
	if len(elems) == 0 {
		return cty.EmptyTupleVal, nil
	}

	bound := spec.Bound
	if bound <= 0 {
		bound = r.defaultParallelism
	}
	if bound > len(elems) {
		bound = len(elems)
	}
	logger.Debug("Starting parallel loop.", "elements", len(elems), "workers", bound)

	type outcome struct {
		value   cty.Value
		skipped bool
		err     error
	}
	outcomes := make([]outcome, len(elems))

	ready := make(chan int, len(elems))
	for i := range elems {
		ready <- i
	}
	close(ready)

	var wg sync.WaitGroup
	wg.Add(bound)
	for i := 0; i < bound; i++ {
		go func(workerID int) {
			defer wg.Done()
			workerLogger := logger.With("workerID", workerID)
			workerLogger.Debug("Loop worker started.")
			for idx := range ready {
				if err := ctx.Err(); err != nil {
					outcomes[idx] = outcome{err: err}
					continue
				}
				workerLogger.Debug("Loop worker picked up an element.", "index", idx)
				value, skipped, err := r.runIteration(ctx, parent, spec, elems[idx], body)
				outcomes[idx] = outcome{value: value, skipped: skipped, err: err}
			}
			workerLogger.Debug("Loop worker finished.")
		}(i)
	}
	wg.Wait()

	var iterErrs []error
	results := make([]cty.Value, 0, len(elems))
	for i, out := range outcomes {
		if out.err != nil {
			iterErrs = append(iterErrs, fmt.Errorf("iteration %d: %w", i, out.err))
			continue
		}
		if out.skipped {
			continue
		}
		results = append(results, normalize(out.value))
	}
	if len(iterErrs) > 0 {
		return cty.NilVal, fmt.Errorf("%w: %w", ErrIteration, errors.Join(iterErrs...))
	}
	if len(results) == 0 {
		return cty.EmptyTupleVal, nil
	}
	return cty.TupleVal(results), nil
}

// runIteration executes one element: child context, bindings, filter, body.
// The child is destroyed whatever happens; a body error outranks a destroy
// error.
func (r *Runtime) runIteration(ctx context.Context, parent ContextID, spec LoopSpec,
	elem Element, body BodyFunc) (value cty.Value, skipped bool, err error) {

	child, err := r.NewChildContext(parent)
	if err != nil {
		return cty.NilVal, false, err
	}
	defer func() {
		if destroyErr := r.DestroyContext(child); destroyErr != nil && err == nil {
			err = destroyErr
		}
	}()

	if err := r.BindValue(child, spec.ItemVar, elem.Value); err != nil {
		return cty.NilVal, false, err
	}
	if spec.IndexVar != "" {
		if err := r.BindValue(child, spec.IndexVar, elem.Index); err != nil {
			return cty.NilVal, false, err
		}
	}

	if len(spec.Filter) > 0 {
		keep, err := r.EvalFilter(ctx, child, spec.Filter)
		if err != nil {
			return cty.NilVal, false, err
		}
		if !keep {
			return cty.NilVal, true, nil
		}
	}

	value, err = body(ctx, child)
	return value, false, err
}
