package codegen

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

// lowerForEach turns a loop into a step. Serial loops inline the iteration
// here: each element gets a child scope with the loop variables bound, the
// filter decides whether the body runs, and the first failing iteration
// aborts the loop. Parallel loops hand the same lowered body to the
// runtime's bounded executor, which isolates failures instead.
//
// Both forms produce a tuple of the surviving iteration values, in element
// order.
func (g *generator) lowerForEach(stmt *program.ForEachLoop) (stepFunc, error) {
	g.pool.Intern(stmt.ItemVar)
	if stmt.IndexVar != "" {
		g.pool.Intern(stmt.IndexVar)
	}
	g.pool.Intern(stmt.Collection.Base)
	g.pool.InternAll(stmt.Collection.Specifiers...)

	var filterBlob []byte
	if stmt.Filter != nil {
		var err error
		filterBlob, err = g.encode(stmt.Filter)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
	}
	body, err := g.lowerStatements(stmt.Body)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}

	collection := stmt.Collection
	itemVar, indexVar := stmt.ItemVar, stmt.IndexVar
	bound := stmt.Concurrency

	if stmt.Parallel {
		return func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) (cty.Value, error) {
			coll, err := rt.ResolvePath(ec, collection.Base, collection.Specifiers)
			if err != nil {
				return cty.NilVal, fmt.Errorf("for-each collection: %w", err)
			}
			spec := runtime.LoopSpec{
				Collection: coll,
				ItemVar:    itemVar,
				IndexVar:   indexVar,
				Bound:      bound,
				Filter:     filterBlob,
			}
			return rt.ForEachParallel(ctx, ec, spec, func(ctx context.Context, child runtime.ContextID) (cty.Value, error) {
				return runSteps(ctx, rt, child, body)
			})
		}, nil
	}

	return func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) (cty.Value, error) {
		coll, err := rt.ResolvePath(ec, collection.Base, collection.Specifiers)
		if err != nil {
			return cty.NilVal, fmt.Errorf("for-each collection: %w", err)
		}
		elems, err := runtime.Elements(coll)
		if err != nil {
			return cty.NilVal, fmt.Errorf("for-each collection: %w", err)
		}
		results := make([]cty.Value, 0, len(elems))
		for i, elem := range elems {
			if err := ctx.Err(); err != nil {
				return cty.NilVal, err
			}
			v, skipped, err := runSerialIteration(ctx, rt, ec, itemVar, indexVar, filterBlob, elem, body)
			if err != nil {
				return cty.NilVal, fmt.Errorf("iteration %d: %w", i, err)
			}
			if skipped {
				continue
			}
			if v == cty.NilVal {
				v = cty.NullVal(cty.DynamicPseudoType)
			}
			results = append(results, v)
		}
		if len(results) == 0 {
			return cty.EmptyTupleVal, nil
		}
		return cty.TupleVal(results), nil
	}, nil
}

// runSerialIteration runs one element through the loop body in its own child
// scope. skipped reports that the filter rejected the element.
func runSerialIteration(ctx context.Context, rt *runtime.Runtime, parent runtime.ContextID,
	itemVar, indexVar string, filter []byte, elem runtime.Element, body []stepFunc) (value cty.Value, skipped bool, err error) {

	child, err := rt.NewChildContext(parent)
	if err != nil {
		return cty.NilVal, false, err
	}
	defer func() {
		if destroyErr := rt.DestroyContext(child); destroyErr != nil && err == nil {
			err = destroyErr
		}
	}()

	if err := rt.BindValue(child, itemVar, elem.Value); err != nil {
		return cty.NilVal, false, err
	}
	if indexVar != "" {
		if err := rt.BindValue(child, indexVar, elem.Index); err != nil {
			return cty.NilVal, false, err
		}
	}
	if filter != nil {
		keep, err := rt.EvalFilter(ctx, child, filter)
		if err != nil {
			return cty.NilVal, false, err
		}
		if !keep {
			return cty.NilVal, true, nil
		}
	}

	value, err = runSteps(ctx, rt, child, body)
	return value, false, err
}
