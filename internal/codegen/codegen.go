// Package codegen lowers an analyzed program onto the runtime execution
// contract. Every feature set becomes one generated closure; statements
// inside it become pre-bound steps that carry their serialized expression
// blobs, pooled constants and canonical verbs, so nothing is re-derived at
// execution time. The package also owns the entry-point choreography that
// wires handlers onto the bus and drives the drain/exit sequence.
package codegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/constpool"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

var (
	// ErrNoEntryPoint reports a program without an entry feature set.
	ErrNoEntryPoint = errors.New("program has no entry point")
	// ErrDuplicateEntryPoint reports two feature sets claiming the entry
	// activity.
	ErrDuplicateEntryPoint = errors.New("program has multiple entry points")
	// ErrDuplicateExitHandler reports two feature sets claiming the same
	// exit role.
	ErrDuplicateExitHandler = errors.New("program has multiple exit handlers")
)

// FeatureFunc is the generated body of one feature set. It runs the feature
// set's statements in order against the given execution context and returns
// the last statement value.
type FeatureFunc func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) (cty.Value, error)

// stepFunc is one lowered statement. A step that produces no value returns
// cty.NilVal, which leaves the feature set's running result untouched.
type stepFunc func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) (cty.Value, error)

// Module is a generated program: one feature func per feature set, plus the
// program model and the constant pool the lowered code was built against.
type Module struct {
	prog     *program.Program
	pool     *constpool.Pool
	features map[string]FeatureFunc
}

// Generate validates the program's structure and lowers every feature set
// into a callable. Structural problems (missing or duplicated entry point,
// duplicated exit handlers, verbs no registered action resolves) surface
// here, before anything runs.
func Generate(ctx context.Context, prog *program.Program, reg *action.Registry, pool *constpool.Pool) (*Module, error) {
	logger := ctxlog.FromContext(ctx)

	if err := validate(prog, reg); err != nil {
		return nil, err
	}

	g := &generator{reg: reg, pool: pool}
	features := make(map[string]FeatureFunc, len(prog.FeatureSets))
	for _, fs := range prog.FeatureSets {
		if _, exists := features[fs.Name]; exists {
			return nil, fmt.Errorf("duplicate feature set name %q", fs.Name)
		}
		steps, err := g.lowerStatements(fs.Statements)
		if err != nil {
			return nil, fmt.Errorf("feature set %s: %w", location(fs), err)
		}
		features[fs.Name] = featureFunc(steps)
		logger.Debug("Feature set lowered.", "featureSet", fs.Name, "role", fs.Role.Kind.String(), "statements", len(fs.Statements))
	}

	logger.Debug("Program lowered.", "featureSets", len(features), "constants", pool.Len())
	return &Module{prog: prog, pool: pool, features: features}, nil
}

// Feature returns the generated func for a feature set name.
func (m *Module) Feature(name string) (FeatureFunc, bool) {
	fn, ok := m.features[name]
	return fn, ok
}

// Program returns the program model the module was generated from.
func (m *Module) Program() *program.Program {
	return m.prog
}

// Pool returns the constant pool shared by the module's lowered code.
func (m *Module) Pool() *constpool.Pool {
	return m.pool
}

func featureFunc(steps []stepFunc) FeatureFunc {
	return func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) (cty.Value, error) {
		return runSteps(ctx, rt, ec, steps)
	}
}

// runSteps executes lowered statements in order. The running result is the
// value of the last step that produced one; a failing step aborts the rest.
func runSteps(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID, steps []stepFunc) (cty.Value, error) {
	result := cty.NilVal
	for _, step := range steps {
		v, err := step(ctx, rt, ec)
		if err != nil {
			return cty.NilVal, err
		}
		if v != cty.NilVal {
			result = v
		}
	}
	return result, nil
}

func validate(prog *program.Program, reg *action.Registry) error {
	entries := prog.ByRole(program.RoleEntry)
	switch {
	case len(entries) == 0:
		return fmt.Errorf("%w: no feature set declares activity %q", ErrNoEntryPoint, program.ActivityEntry)
	case len(entries) > 1:
		return fmt.Errorf("%w: %s and %s both declare activity %q",
			ErrDuplicateEntryPoint, location(entries[0]), location(entries[1]), program.ActivityEntry)
	}

	for _, kind := range []program.RoleKind{program.RoleExitSuccess, program.RoleExitError} {
		handlers := prog.ByRole(kind)
		if len(handlers) > 1 {
			return fmt.Errorf("%w: %s and %s are both %s handlers",
				ErrDuplicateExitHandler, location(handlers[0]), location(handlers[1]), kind)
		}
	}

	for _, fs := range prog.FeatureSets {
		err := walkStatements(fs.Statements, func(stmt program.Statement) error {
			act, ok := stmt.(*program.ActionStatement)
			if !ok {
				return nil
			}
			if _, found := reg.Lookup(act.Verb); !found {
				return fmt.Errorf("verb %q: %w", act.Verb, action.ErrUnknownVerb)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("feature set %s: %w", location(fs), err)
		}
	}
	return nil
}

// walkStatements visits every statement in order, descending into match arms
// and loop bodies.
func walkStatements(stmts []program.Statement, visit func(program.Statement) error) error {
	for _, stmt := range stmts {
		if err := visit(stmt); err != nil {
			return err
		}
		switch s := stmt.(type) {
		case *program.MatchStatement:
			for _, c := range s.Cases {
				if err := walkStatements(c.Body, visit); err != nil {
					return err
				}
			}
			if err := walkStatements(s.Otherwise, visit); err != nil {
				return err
			}
		case *program.ForEachLoop:
			if err := walkStatements(s.Body, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// location names a feature set for error messages, with its declaration
// site when the loader recorded one.
func location(fs *program.FeatureSet) string {
	if fs.Source != nil {
		return fmt.Sprintf("%q (%s)", fs.Name, fs.Source)
	}
	return fmt.Sprintf("%q", fs.Name)
}

// generator carries the per-Generate state shared by the lowering funcs.
type generator struct {
	reg  *action.Registry
	pool *constpool.Pool
}

func (g *generator) lowerStatements(stmts []program.Statement) ([]stepFunc, error) {
	steps := make([]stepFunc, 0, len(stmts))
	for i, stmt := range stmts {
		var (
			step stepFunc
			err  error
		)
		switch s := stmt.(type) {
		case *program.ActionStatement:
			step, err = g.lowerAction(s)
		case *program.PublishStatement:
			step, err = g.lowerPublish(s)
		case *program.MatchStatement:
			step, err = g.lowerMatch(s)
		case *program.ForEachLoop:
			step, err = g.lowerForEach(s)
		default:
			err = fmt.Errorf("unsupported statement type %T", stmt)
		}
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
