// Package constpool provides the session-owned string interning table.
//
// Every constant the generator emits — verbs, descriptor bases, specifiers,
// literal texts and serialized expression blobs — is registered here exactly
// once. Interning the same program in the same order always yields the same
// table, which is what makes generated output deterministic and comparable
// across runs.
package constpool

import "fmt"

// ID identifies one interned constant. IDs are dense, starting at zero, in
// first-intern order.
type ID int

// Pool is an append-only interning table. It is written while a program is
// being lowered and read afterwards; it is not safe for concurrent writes.
type Pool struct {
	strings []string
	index   map[string]ID
}

// New creates and returns an initialized, empty Pool.
func New() *Pool {
	return &Pool{
		strings: []string{},
		index:   map[string]ID{},
	}
}

// FromStrings rebuilds a pool from a previously exported table. Duplicate
// entries keep their first ID so exported IDs stay valid.
func FromStrings(strs []string) *Pool {
	p := New()
	for _, s := range strs {
		p.Intern(s)
	}
	return p
}

// Intern registers s and returns its ID. Interning an already-known string
// returns the existing ID.
func (p *Pool) Intern(s string) ID {
	if id, ok := p.index[s]; ok {
		return id
	}
	id := ID(len(p.strings))
	p.strings = append(p.strings, s)
	p.index[s] = id
	return id
}

// InternAll interns every given string and returns the IDs in argument order.
func (p *Pool) InternAll(strs ...string) []ID {
	ids := make([]ID, len(strs))
	for i, s := range strs {
		ids[i] = p.Intern(s)
	}
	return ids
}

// Lookup returns the string for an ID.
func (p *Pool) Lookup(id ID) (string, error) {
	if id < 0 || int(id) >= len(p.strings) {
		return "", fmt.Errorf("constant pool has no entry %d (size %d)", id, len(p.strings))
	}
	return p.strings[id], nil
}

// Contains reports whether s was interned.
func (p *Pool) Contains(s string) bool {
	_, ok := p.index[s]
	return ok
}

// Len returns the number of interned constants.
func (p *Pool) Len() int {
	return len(p.strings)
}

// Strings exports the table in ID order. The returned slice is a copy.
func (p *Pool) Strings() []string {
	out := make([]string, len(p.strings))
	copy(out, p.strings)
	return out
}
