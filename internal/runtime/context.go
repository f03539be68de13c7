package runtime

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ContextID is an opaque handle to one execution context. Handles are cheap
// values; passing one around never transfers ownership. The zero value is
// never a live handle.
type ContextID struct {
	index int
	gen   uint64
}

// IsZero reports whether the handle is the zero value.
func (id ContextID) IsZero() bool {
	return id.gen == 0
}

func (id ContextID) String() string {
	return fmt.Sprintf("ctx#%d.%d", id.index, id.gen)
}

// contextRecord is one arena slot. Destroyed records return to the free list
// for reuse; the generation number makes a stale handle observable instead
// of silently addressing the slot's next tenant.
type contextRecord struct {
	gen       uint64
	alive     bool
	name      string
	parent    ContextID
	hasParent bool
	vars      map[string]cty.Value

	// Program-level state, meaningful on root records only.
	response    cty.Value
	hasResponse bool
	errFlag     error
}

// NewRootContext creates a context with no parent. Roots anchor a feature
// set invocation; the response and the error flag live on them.
func (r *Runtime) NewRootContext(name string) ContextID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocate(name, ContextID{}, false)
}

// NewNamedContext creates a child scope under parent.
func (r *Runtime) NewNamedContext(parent ContextID, name string) (ContextID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.record(parent); err != nil {
		return ContextID{}, fmt.Errorf("cannot create child context: %w", err)
	}
	return r.allocate(name, parent, true), nil
}

// NewChildContext creates an anonymous child scope under parent.
func (r *Runtime) NewChildContext(parent ContextID) (ContextID, error) {
	return r.NewNamedContext(parent, "")
}

// DestroyContext releases a context. The handle is dead afterwards;
// destroying it again is an error.
func (r *Runtime) DestroyContext(id ContextID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.record(id)
	if err != nil {
		return err
	}
	rec.alive = false
	rec.vars = nil
	rec.response = cty.NilVal
	rec.hasResponse = false
	rec.errFlag = nil
	r.freeList = append(r.freeList, id.index)
	return nil
}

// ContextName returns the name a context was created with.
func (r *Runtime) ContextName(id ContextID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, err := r.record(id)
	if err != nil {
		return "", err
	}
	return rec.name, nil
}

// LiveContexts returns how many contexts are currently alive.
func (r *Runtime) LiveContexts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for i := range r.records {
		if r.records[i].alive {
			n++
		}
	}
	return n
}

// allocate places a record in the arena, reusing a free slot when one
// exists. Callers hold r.mu.
func (r *Runtime) allocate(name string, parent ContextID, hasParent bool) ContextID {
	gen := r.nextGen
	r.nextGen++
	rec := contextRecord{
		gen:       gen,
		alive:     true,
		name:      name,
		parent:    parent,
		hasParent: hasParent,
		vars:      map[string]cty.Value{},
	}

	var idx int
	if n := len(r.freeList); n > 0 {
		idx = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		r.records[idx] = rec
	} else {
		idx = len(r.records)
		r.records = append(r.records, rec)
	}
	return ContextID{index: idx, gen: gen}
}

// record returns the live record a handle addresses. Callers hold r.mu.
func (r *Runtime) record(id ContextID) (*contextRecord, error) {
	if id.gen == 0 || id.index < 0 || id.index >= len(r.records) {
		return nil, fmt.Errorf("%s: %w", id, ErrDeadContext)
	}
	rec := &r.records[id.index]
	if !rec.alive || rec.gen != id.gen {
		return nil, fmt.Errorf("%s: %w", id, ErrDeadContext)
	}
	return rec, nil
}

// rootOf walks to the chain's root record. A dead ancestor ends the walk at
// the last live record. Callers hold r.mu.
func (r *Runtime) rootOf(rec *contextRecord) *contextRecord {
	for rec.hasParent {
		parent, err := r.record(rec.parent)
		if err != nil {
			break
		}
		rec = parent
	}
	return rec
}
