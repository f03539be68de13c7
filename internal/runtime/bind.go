package runtime

import (
	"fmt"
	"strconv"

	"github.com/zclconf/go-cty/cty"
)

// BindValue binds name to a value in exactly the given context. Rebinding an
// inherited name shadows the ancestor's binding without mutating it.
func (r *Runtime) BindValue(id ContextID, name string, v cty.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.record(id)
	if err != nil {
		return fmt.Errorf("cannot bind %q: %w", name, err)
	}
	rec.vars[name] = v
	return nil
}

// BindString binds a string value.
func (r *Runtime) BindString(id ContextID, name, v string) error {
	return r.BindValue(id, name, cty.StringVal(v))
}

// BindInt binds a whole-number value.
func (r *Runtime) BindInt(id ContextID, name string, v int) error {
	return r.BindValue(id, name, cty.NumberIntVal(int64(v)))
}

// BindFloat binds a fractional-number value.
func (r *Runtime) BindFloat(id ContextID, name string, v float64) error {
	return r.BindValue(id, name, cty.NumberFloatVal(v))
}

// BindBool binds a boolean value.
func (r *Runtime) BindBool(id ContextID, name string, v bool) error {
	return r.BindValue(id, name, cty.BoolVal(v))
}

// Unbind removes a binding from exactly the given context. Unbinding a name
// that is not bound there is a no-op.
func (r *Runtime) Unbind(id ContextID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.record(id)
	if err != nil {
		return fmt.Errorf("cannot unbind %q: %w", name, err)
	}
	delete(rec.vars, name)
	return nil
}

// Resolve looks a name up on the context chain, nearest scope first.
func (r *Runtime) Resolve(id ContextID, name string) (cty.Value, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.record(id)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot resolve %q: %w", name, err)
	}
	for {
		if v, ok := rec.vars[name]; ok {
			return v, nil
		}
		if !rec.hasParent {
			break
		}
		parent, err := r.record(rec.parent)
		if err != nil {
			// A dead ancestor ends the walk.
			break
		}
		rec = parent
	}
	return cty.NilVal, fmt.Errorf("variable %q: %w", name, ErrUndefinedVariable)
}

// ResolvePath resolves a base name and projects it through the specifier
// path. Each specifier is tried as a key of the current value first; a
// specifier that is not a key but names a qualifier operation applies that
// operation instead.
func (r *Runtime) ResolvePath(id ContextID, base string, specifiers []string) (cty.Value, error) {
	v, err := r.Resolve(id, base)
	if err != nil {
		return cty.NilVal, err
	}
	for _, spec := range specifiers {
		v, err = projectSpecifier(v, spec)
		if err != nil {
			return cty.NilVal, fmt.Errorf("resolving %s: %w", base, err)
		}
	}
	return v, nil
}

// Project applies a specifier path to an already-resolved value, using the
// same projection rules as ResolvePath. The pipeline actions use it to
// project each element of a collection without a context round trip.
func Project(v cty.Value, specifiers []string) (cty.Value, error) {
	var err error
	for _, spec := range specifiers {
		v, err = projectSpecifier(v, spec)
		if err != nil {
			return cty.NilVal, err
		}
	}
	return v, nil
}

// projectSpecifier applies one specifier step to a value.
func projectSpecifier(v cty.Value, spec string) (cty.Value, error) {
	if !v.IsNull() {
		ty := v.Type()
		switch {
		case ty.IsObjectType():
			if ty.HasAttribute(spec) {
				return v.GetAttr(spec), nil
			}
		case ty.IsMapType():
			key := cty.StringVal(spec)
			if v.HasIndex(key).True() {
				return v.Index(key), nil
			}
		case ty.IsTupleType() || ty.IsListType():
			if n, err := strconv.Atoi(spec); err == nil {
				key := cty.NumberIntVal(int64(n))
				if v.HasIndex(key).True() {
					return v.Index(key), nil
				}
			}
		}
	}
	if op, ok := Qualifier(spec); ok {
		return op(v)
	}
	return cty.NilVal, fmt.Errorf("specifier %q: %w", spec, ErrUnknownSpecifier)
}

// SetResponse records the pending response on the chain's root context.
// A later SetResponse replaces an unclaimed earlier one.
func (r *Runtime) SetResponse(id ContextID, v cty.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.record(id)
	if err != nil {
		return fmt.Errorf("cannot set response: %w", err)
	}
	root := r.rootOf(rec)
	root.response = v
	root.hasResponse = true
	return nil
}

// TakeResponse claims and clears the pending response of the chain rooted
// above id. The second return is false when no response is pending or the
// handle is dead.
func (r *Runtime) TakeResponse(id ContextID) (cty.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.record(id)
	if err != nil {
		return cty.NilVal, false
	}
	root := r.rootOf(rec)
	if !root.hasResponse {
		return cty.NilVal, false
	}
	v := root.response
	root.response = cty.NilVal
	root.hasResponse = false
	return v, true
}

// FlagError records a failure on the chain's root context. The first flagged
// error is kept; later flags leave the root cause intact.
func (r *Runtime) FlagError(id ContextID, flagged error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.record(id)
	if err != nil {
		return fmt.Errorf("cannot flag error: %w", err)
	}
	root := r.rootOf(rec)
	if root.errFlag == nil {
		root.errFlag = flagged
	}
	return nil
}

// ContextError returns the error flagged on the chain's root, or nil.
func (r *Runtime) ContextError(id ContextID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, err := r.record(id)
	if err != nil {
		return fmt.Errorf("cannot read error flag: %w", err)
	}
	return r.rootOf(rec).errFlag
}
