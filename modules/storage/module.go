package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

// repositorySuffix is the naming contract: an object base naming a
// repository always ends with it.
const repositorySuffix = "-repository"

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the storage actions with the registry.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{Name: "retrieve", Fn: runRetrieve})
	r.Register(&action.Definition{
		Name:         "store",
		Prepositions: []program.Preposition{program.PrepInto, program.PrepTo, program.PrepOn},
		Fn:           runStore,
	})
	r.Register(&action.Definition{
		Name:         "publish",
		Prepositions: []program.Preposition{program.PrepTo, program.PrepInto},
		Fn:           runPublish,
	})
}

// isRepository reports whether an object base names a repository rather
// than a context binding.
func isRepository(base string) bool {
	return strings.HasSuffix(base, repositorySuffix) && len(base) > len(repositorySuffix)
}

func repositoryService(inv *action.Invocation) (*Repository, error) {
	svc, err := inv.Service(ServiceName)
	if err != nil {
		return nil, err
	}
	repo, ok := svc.(*Repository)
	if !ok {
		return nil, fmt.Errorf("service %q is not a repository", ServiceName)
	}
	return repo, nil
}

// storedValue resolves what a write statement stores: the evaluated
// expression wins, then the literal, then the result name's current
// binding.
func storedValue(inv *action.Invocation) (cty.Value, error) {
	if v, ok := inv.Slot(runtime.SlotExpression); ok {
		return v, nil
	}
	if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		return v, nil
	}
	if inv.Result.Base == "" {
		return cty.NilVal, fmt.Errorf("statement carries no value to store")
	}
	return inv.Runtime.Resolve(inv.Context, inv.Result.Base)
}

// runRetrieve reads a value. A repository-suffixed object base reads from
// the repository service; anything else resolves against the context chain.
func runRetrieve(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	if inv.Object.Base == "" {
		return cty.NilVal, fmt.Errorf("retrieve %q: statement names no source", inv.Result.Base)
	}
	if !isRepository(inv.Object.Base) {
		v, err := inv.ObjectValue()
		if err != nil {
			return cty.NilVal, fmt.Errorf("retrieve: %w", err)
		}
		return v, nil
	}

	repo, err := repositoryService(inv)
	if err != nil {
		return cty.NilVal, err
	}

	// A leading specifier naming a stored key selects that entry; the rest
	// of the specifiers, or all of them otherwise, project the result.
	specs := inv.Object.Specifiers
	var v cty.Value
	if len(specs) > 0 {
		if keyed, ok := repo.Get(inv.Object.Base, specs[0]); ok {
			v = keyed
			specs = specs[1:]
		} else {
			v = repo.All(inv.Object.Base)
		}
	} else {
		v = repo.All(inv.Object.Base)
	}

	v, err = runtime.Project(v, specs)
	if err != nil {
		return cty.NilVal, fmt.Errorf("retrieve from %q: %w", inv.Object.Base, err)
	}
	return v, nil
}

// runStore writes the statement's value into the object's repository under
// the result name. Observers of the repository fire on the write.
func runStore(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	return writeRepository(ctx, inv, "store")
}

// runPublish is the publication form of a repository write. It shares
// store's mechanics; the distinct verb keeps program text honest about
// intent, and lets programs alias richer publication flows onto it.
func runPublish(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	return writeRepository(ctx, inv, "publish")
}

func writeRepository(ctx context.Context, inv *action.Invocation, verb string) (cty.Value, error) {
	if !isRepository(inv.Object.Base) {
		return cty.NilVal, fmt.Errorf("%s: %q does not name a repository", verb, inv.Object.Base)
	}
	if inv.Result.Base == "" {
		return cty.NilVal, fmt.Errorf("%s into %q: statement names no key", verb, inv.Object.Base)
	}
	repo, err := repositoryService(inv)
	if err != nil {
		return cty.NilVal, err
	}
	v, err := storedValue(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("%s %q: %w", verb, inv.Result.Base, err)
	}
	if err := repo.Put(ctx, inv.Object.Base, inv.Result.Base, v); err != nil {
		return cty.NilVal, fmt.Errorf("%s into %q: %w", verb, inv.Object.Base, err)
	}
	return v, nil
}
