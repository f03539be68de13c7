package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

func traceItem() *program.ActionStatement {
	return &program.ActionStatement{
		Verb:   "trace",
		Result: program.ResultDescriptor{Base: "traced"},
		Object: program.ObjectDescriptor{Base: "item"},
	}
}

func numberList(ns ...int64) cty.Value {
	vals := make([]cty.Value, len(ns))
	for i, n := range ns {
		vals[i] = cty.NumberIntVal(n)
	}
	return cty.TupleVal(vals)
}

func TestLowerForEach_SerialRunsInOrder(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:    "item",
		Collection: program.ObjectDescriptor{Base: "items"},
		Body:       []program.Statement{traceItem()},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindValue(root, "items", numberList(1, 2, 3)))

	v, err := fn(testCtx(), r.rt, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"trace 1", "trace 2", "trace 3"}, r.recorded())
	assert.True(t, v.RawEquals(numberList(1, 2, 3)))
	// Iteration scopes are gone; only the root remains.
	assert.Equal(t, 1, r.rt.LiveContexts())
}

func TestLowerForEach_SerialIndexVariable(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:    "item",
		IndexVar:   "i",
		Collection: program.ObjectDescriptor{Base: "items"},
		Body: []program.Statement{&program.ActionStatement{
			Verb:   "mirror",
			Result: program.ResultDescriptor{Base: "tagged"},
			Expression: &program.InterpolatedString{Parts: []program.StringPart{
				{Interp: "i"},
				{Literal: ":"},
				{Interp: "item"},
			}},
		}},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindValue(root, "items", cty.TupleVal([]cty.Value{
		cty.StringVal("a"), cty.StringVal("b"),
	})))

	v, err := fn(testCtx(), r.rt, root)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.TupleVal([]cty.Value{
		cty.StringVal("0:a"), cty.StringVal("1:b"),
	})))
}

func TestLowerForEach_SerialFilterSkips(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:    "item",
		Collection: program.ObjectDescriptor{Base: "items"},
		Filter: &program.Binary{
			Op:    program.OpEq,
			Left:  &program.Binary{Op: program.OpMod, Left: ref("item"), Right: lit(cty.NumberIntVal(2))},
			Right: lit(cty.NumberIntVal(0)),
		},
		Body: []program.Statement{traceItem()},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindValue(root, "items", numberList(1, 2, 3, 4)))

	v, err := fn(testCtx(), r.rt, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"trace 2", "trace 4"}, r.recorded())
	assert.True(t, v.RawEquals(numberList(2, 4)))
}

func TestLowerForEach_SerialScopesAreIsolated(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:    "item",
		Collection: program.ObjectDescriptor{Base: "items"},
		Body: []program.Statement{&program.ActionStatement{
			Verb:       "mirror",
			Result:     program.ResultDescriptor{Base: "inner"},
			Expression: ref("item"),
		}},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindValue(root, "items", numberList(5)))
	require.NoError(t, r.rt.BindString(root, "item", "outer"))

	_, err := fn(testCtx(), r.rt, root)
	require.NoError(t, err)

	// The loop variable shadowed the outer binding only inside the scope.
	outer, err := r.rt.Resolve(root, "item")
	require.NoError(t, err)
	assert.Equal(t, "outer", outer.AsString())

	// Bodies bind their results in the iteration scope, not the parent.
	_, err = r.rt.Resolve(root, "inner")
	assert.ErrorIs(t, err, runtime.ErrUndefinedVariable)
}

func TestLowerForEach_SerialFirstErrorAborts(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:    "item",
		Collection: program.ObjectDescriptor{Base: "items"},
		Body: []program.Statement{&program.MatchStatement{
			Subject: program.ObjectDescriptor{Base: "item"},
			Cases: []program.MatchCase{
				literalCase(cty.NumberIntVal(2), &program.ActionStatement{Verb: "fail"}),
			},
			Otherwise: []program.Statement{traceItem()},
		}},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindValue(root, "items", numberList(1, 2, 3)))

	_, err := fn(testCtx(), r.rt, root)
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "iteration 1")
	// The third element never ran.
	assert.Equal(t, []string{"trace 1"}, r.recorded())
	assert.Equal(t, 1, r.rt.LiveContexts())
}

func TestLowerForEach_SerialEmptyCollection(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:    "item",
		Collection: program.ObjectDescriptor{Base: "items"},
		Body:       []program.Statement{traceItem()},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindValue(root, "items", cty.EmptyTupleVal))

	v, err := fn(testCtx(), r.rt, root)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.EmptyTupleVal))
	assert.Empty(t, r.recorded())
}

func TestLowerForEach_CollectionNotIterable(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:    "item",
		Collection: program.ObjectDescriptor{Base: "items"},
		Body:       []program.Statement{traceItem()},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindInt(root, "items", 7))

	_, err := fn(testCtx(), r.rt, root)
	require.ErrorIs(t, err, runtime.ErrNotIterable)
	assert.Contains(t, err.Error(), "for-each collection")
}

func TestLowerForEach_ParallelCollectsInElementOrder(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:     "item",
		Collection:  program.ObjectDescriptor{Base: "items"},
		Parallel:    true,
		Concurrency: 2,
		Body: []program.Statement{&program.ActionStatement{
			Verb:       "mirror",
			Result:     program.ResultDescriptor{Base: "doubled"},
			Expression: &program.Binary{Op: program.OpMul, Left: ref("item"), Right: lit(cty.NumberIntVal(2))},
		}, traceItem()},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindValue(root, "items", numberList(1, 2, 3, 4)))

	v, err := fn(testCtx(), r.rt, root)
	require.NoError(t, err)
	// Results keep element order even though workers interleave.
	assert.True(t, v.RawEquals(numberList(1, 2, 3, 4)))
	assert.ElementsMatch(t, []string{"trace 1", "trace 2", "trace 3", "trace 4"}, r.recorded())
	assert.Equal(t, 1, r.rt.LiveContexts())
}

func TestLowerForEach_ParallelFailuresAreIsolated(t *testing.T) {
	r := newRig(t)
	prog := progWith(entryFeature(&program.ForEachLoop{
		ItemVar:     "item",
		Collection:  program.ObjectDescriptor{Base: "items"},
		Parallel:    true,
		Concurrency: 3,
		Body: []program.Statement{&program.MatchStatement{
			Subject: program.ObjectDescriptor{Base: "item"},
			Cases: []program.MatchCase{
				literalCase(cty.NumberIntVal(3), &program.ActionStatement{Verb: "fail"}),
			},
			Otherwise: []program.Statement{traceItem()},
		}},
	}))

	mod := r.generate(t, prog)
	fn, _ := mod.Feature("main")

	root := r.rt.NewRootContext("main")
	require.NoError(t, r.rt.BindValue(root, "items", numberList(1, 2, 3, 4)))

	_, err := fn(testCtx(), r.rt, root)
	require.ErrorIs(t, err, runtime.ErrIteration)
	require.ErrorIs(t, err, errBoom)
	// Every other element still ran to completion.
	assert.ElementsMatch(t, []string{"trace 1", "trace 2", "trace 4"}, r.recorded())
	assert.Equal(t, 1, r.rt.LiveContexts())
}
