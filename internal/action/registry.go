// Package action implements verb canonicalization and the per-App registry
// of action implementations that generated code dispatches through.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

var (
	// ErrUnknownVerb reports a dispatch on a verb with no registered
	// implementation.
	ErrUnknownVerb = errors.New("unknown verb")

	// ErrInvalidPreposition reports an object preposition outside the
	// action's declared set.
	ErrInvalidPreposition = errors.New("invalid preposition")

	// ErrMissingService reports an action whose required collaborator was
	// not provided to the App.
	ErrMissingService = errors.New("missing service")
)

// Module is the interface action packages implement to contribute their
// definitions to an App's registry.
type Module interface {
	Register(r *Registry)
}

// Fn is one action implementation.
type Fn func(ctx context.Context, inv *Invocation) (cty.Value, error)

// Definition describes one registered action.
type Definition struct {
	// Name is the canonical verb the action dispatches under.
	Name string

	// Verbs lists additional spellings that resolve to this action.
	Verbs []string

	// Prepositions restricts which prepositions the object descriptor may
	// carry. Empty means any; a statement with no preposition always
	// passes.
	Prepositions []program.Preposition

	// Fn executes the action.
	Fn Fn
}

// Invocation carries everything an implementation needs for one call.
type Invocation struct {
	Runtime *runtime.Runtime
	Context runtime.ContextID
	Verb    string
	Result  program.ResultDescriptor
	Object  program.ObjectDescriptor
}

// Service fetches a named collaborator from the runtime, failing with
// ErrMissingService when the App was built without it.
func (inv *Invocation) Service(name string) (any, error) {
	svc, ok := inv.Runtime.Service(name)
	if !ok {
		return nil, fmt.Errorf("action %q requires the %q service: %w", inv.Verb, name, ErrMissingService)
	}
	return svc, nil
}

// ObjectValue resolves the invocation's object descriptor against the
// context chain. A statement without an object yields cty.NilVal.
func (inv *Invocation) ObjectValue() (cty.Value, error) {
	if inv.Object.Base == "" {
		return cty.NilVal, nil
	}
	return inv.Runtime.ResolvePath(inv.Context, inv.Object.Base, inv.Object.Specifiers)
}

// Slot reads a well-known clause slot. Absent slots report false rather
// than an error; clause data is optional for most actions.
func (inv *Invocation) Slot(name string) (cty.Value, bool) {
	v, err := inv.Runtime.Resolve(inv.Context, name)
	if err != nil {
		return cty.NilVal, false
	}
	return v, true
}

// Registry holds the action definitions and verb synonyms for a single
// application instance. Registration happens during startup; dispatch is
// concurrent afterwards.
type Registry struct {
	mu       sync.RWMutex
	actions  map[string]*Definition
	synonyms map[string]string
}

// New creates a Registry seeded with the built-in synonym table.
func New() *Registry {
	r := &Registry{
		actions:  make(map[string]*Definition),
		synonyms: make(map[string]string, len(builtinSynonyms)),
	}
	for verb, canonical := range builtinSynonyms {
		r.synonyms[verb] = canonical
	}
	return r
}

// Register adds an action definition. Naming collisions are programmer
// errors and panic.
func (r *Registry) Register(def *Definition) {
	if def == nil || def.Name == "" {
		panic("action definition requires a name")
	}
	if def.Fn == nil {
		panic(fmt.Sprintf("action '%s' has no implementation", def.Name))
	}
	name := strings.ToLower(def.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		panic(fmt.Sprintf("action with name '%s' already registered", name))
	}
	if target, exists := r.synonyms[name]; exists {
		panic(fmt.Sprintf("action name '%s' is already a synonym for '%s'", name, target))
	}
	for _, verb := range def.Verbs {
		verb = strings.ToLower(verb)
		if verb == "" || verb == name {
			continue
		}
		if isPipelineVerb(verb) || isPipelineVerb(name) {
			panic(fmt.Sprintf("verb '%s' cannot take part in a synonym; filter, map and reduce always mean themselves", verb))
		}
		if IsCanonicalVerb(verb) {
			panic(fmt.Sprintf("verb '%s' is a canonical verb and cannot become a synonym", verb))
		}
		if target, exists := r.synonyms[verb]; exists && target != name {
			panic(fmt.Sprintf("verb '%s' already registered as a synonym for '%s'", verb, target))
		}
		if _, exists := r.actions[verb]; exists {
			panic(fmt.Sprintf("verb '%s' already names a registered action", verb))
		}
		r.synonyms[verb] = name
	}
	slog.Debug("Registering action.", "name", name, "verbs", def.Verbs)
	r.actions[name] = def
}

// Canonical resolves any verb spelling to its canonical form. The result is
// total (unknown verbs resolve to themselves, reported false) and
// idempotent (a canonical form resolves to itself).
func (r *Registry) Canonical(verb string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(verb))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.synonyms[v]; ok {
		return target, true
	}
	if _, ok := r.actions[v]; ok {
		return v, true
	}
	if IsCanonicalVerb(v) {
		return v, true
	}
	return v, false
}

// Lookup returns the definition a verb spelling dispatches to.
func (r *Registry) Lookup(verb string) (*Definition, bool) {
	canonical, _ := r.Canonical(verb)
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.actions[canonical]
	return def, ok
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// Validate checks registry invariants after all modules have registered:
// every name and synonym must canonicalize back to its own definition, and
// every declared preposition must be a known one.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []string
	for name, def := range r.actions {
		if c, _ := r.canonicalLocked(name); c != name {
			errs = append(errs, fmt.Sprintf("action '%s' does not canonicalize to itself (got '%s')", name, c))
		}
		for _, p := range def.Prepositions {
			if p != program.PrepNone && p.String() == "" {
				errs = append(errs, fmt.Sprintf("action '%s' declares an unknown preposition value %d", name, int(p)))
			}
		}
	}
	for verb, target := range r.synonyms {
		if _, ok := r.actions[target]; !ok && !IsCanonicalVerb(target) {
			errs = append(errs, fmt.Sprintf("synonym '%s' points at unknown action '%s'", verb, target))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("action registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Action registry validated.", "actions", len(r.actions), "synonyms", len(r.synonyms))
	return nil
}

// canonicalLocked is Canonical for callers already holding r.mu.
func (r *Registry) canonicalLocked(verb string) (string, bool) {
	if target, ok := r.synonyms[verb]; ok {
		return target, true
	}
	if _, ok := r.actions[verb]; ok {
		return verb, true
	}
	if IsCanonicalVerb(verb) {
		return verb, true
	}
	return verb, false
}

// Dispatch resolves the verb and executes the matching action. It
// implements runtime.Dispatcher.
func (r *Registry) Dispatch(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID, verb string,
	result program.ResultDescriptor, object program.ObjectDescriptor) (cty.Value, error) {

	canonical, _ := r.Canonical(verb)
	r.mu.RLock()
	def, ok := r.actions[canonical]
	r.mu.RUnlock()
	if !ok {
		return cty.NilVal, fmt.Errorf("verb %q: %w", verb, ErrUnknownVerb)
	}

	if len(def.Prepositions) > 0 && object.Preposition != program.PrepNone {
		allowed := false
		for _, p := range def.Prepositions {
			if p == object.Preposition {
				allowed = true
				break
			}
		}
		if !allowed {
			return cty.NilVal, fmt.Errorf("action %q does not take %q: %w",
				canonical, object.Preposition.String(), ErrInvalidPreposition)
		}
	}

	ctxlog.FromContext(ctx).Debug("Dispatching action.", "verb", verb, "canonical", canonical)
	return def.Fn(ctx, &Invocation{
		Runtime: rt,
		Context: ec,
		Verb:    canonical,
		Result:  result,
		Object:  object,
	})
}
