// Package scope implements the compile-time scope graph: a tree of named
// contexts, each linked to its parent and passed explicitly to callers,
// searched outward-in for identifier resolution.
package scope

import (
	"fmt"
	"strings"

	"fu/internal/ast"
	"fu/internal/types"
)

// VariableDecl records a declared identifier's resolved type together with
// the syntax node that introduced it.
type VariableDecl struct {
	Type    *types.Type
	Site    ast.Node
	IsConst bool

	// MemberDecls holds nested member declarations for a type-valued
	// declaration (a type's own members), keyed by member name.
	MemberDecls map[string]*VariableDecl
}

// AsConst returns a copy of v with IsConst forced true, used when a
// `const` declaration binds an otherwise-mutable type.
func (v *VariableDecl) AsConst() *VariableDecl {
	c := *v
	c.IsConst = true
	return &c
}

// TypeOrNil returns v's Type, or nil if v itself is nil: a convenience for
// callers that pull a return type off EnclosingReturnType without first
// checking whether any enclosing scope declared one.
func (v *VariableDecl) TypeOrNil() *types.Type {
	if v == nil {
		return nil
	}
	return v.Type
}

// Member is anything a scope's member table may hold: either a declared
// variable/value, or a nested child Scope (a namespace or type body).
type Member interface{ isMember() }

func (*VariableDecl) isMember() {}
func (*Scope) isMember()        {}

// Scope is one node of the scope graph. The zero value is not usable;
// construct via NewGlobal.
type Scope struct {
	Name       string // empty for the unnamed global scope
	Parent     *Scope
	Location   *ast.Location
	ReturnType *VariableDecl

	members map[string]Member
	scopes  map[string]*Scope
}

// NewGlobal constructs the single root of a scope graph.
func NewGlobal() *Scope {
	return &Scope{members: map[string]Member{}, scopes: map[string]*Scope{}}
}

// FQDN renders the dotted path from the global scope to this one, used in
// diagnostics.
func (s *Scope) FQDN() string {
	var parts []string
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Name != "" {
			parts = append([]string{cur.Name}, parts...)
		}
	}
	if len(parts) == 0 {
		return "<global>"
	}
	return strings.Join(parts, ".")
}

// GetChild returns a previously entered/new'd child scope by name, or nil.
func (s *Scope) GetChild(name string) *Scope {
	return s.scopes[name]
}

// New creates and links a fresh named (or anonymous, if name == "") child
// scope seeded with the given members. A second New with the same name on
// the same parent is an error; Enter with that name returns the existing
// child.
func (s *Scope) New(name string, vars map[string]Member, returnType *VariableDecl) (*Scope, error) {
	if name != "" {
		if _, exists := s.scopes[name]; exists {
			return nil, fmt.Errorf("scope: already have %s.%s, use Enter instead", s.FQDN(), name)
		}
	}
	if vars == nil {
		vars = map[string]Member{}
	}
	child := &Scope{
		Name:       name,
		Parent:     s,
		members:    vars,
		scopes:     map[string]*Scope{},
		ReturnType: returnType,
	}
	if name != "" {
		s.scopes[name] = child
	}
	return child, nil
}

// Enter returns the named child scope, creating it on first entry and
// reusing it thereafter. This is the pattern a type or namespace body uses
// when its declaration and its member population happen in separate passes
// walking the same tree.
func (s *Scope) Enter(name string, loc *ast.Location) (*Scope, error) {
	if name == "" {
		return nil, fmt.Errorf("scope: anonymous scope cannot be entered by name")
	}
	if existing, ok := s.scopes[name]; ok {
		return existing, nil
	}
	child := &Scope{
		Name:     name,
		Parent:   s,
		Location: loc,
		members:  map[string]Member{},
		scopes:   map[string]*Scope{},
	}
	s.scopes[name] = child
	return child, nil
}

// Declare binds name to member in this scope's own member table. It does not
// check for shadowing against outer scopes; callers (the checker) decide
// whether redeclaration is an error.
func (s *Scope) Declare(name string, m Member) {
	s.members[name] = m
}

// Members returns this scope's own (non-inherited) member table.
func (s *Scope) Members() map[string]Member {
	return s.members
}

// InScope walks from s outward through parents looking for identifier,
// returning the first match and the scope it was found in. It returns
// (nil, nil) if nothing binds the name anywhere in the chain.
func (s *Scope) InScope(identifier string) (Member, *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		if m, ok := cur.members[identifier]; ok {
			return m, cur
		}
	}
	return nil, nil
}

// EnclosingReturnType walks outward for the nearest scope carrying a
// non-nil ReturnType, used by the checker to type-check return statements
// against the function scope they occur in.
func (s *Scope) EnclosingReturnType() *VariableDecl {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.ReturnType != nil {
			return cur.ReturnType
		}
	}
	return nil
}
