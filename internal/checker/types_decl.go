package checker

import (
	"fu/internal/ast"
	"fu/internal/diagnostics"
	"fu/internal/scope"
	"fu/internal/types"
)

// CheckNamespace enters (or re-enters) the named chain of scopes a
// namespace declaration introduces and populates its body. A name
// collision with a non-scope binding is an error.
func (c *Checker) CheckNamespace(n *ast.NamespaceDecl, s *scope.Scope) {
	c.markChecked(n)
	if existing, ok := s.Members()[n.Name]; ok {
		if _, isScope := existing.(*scope.Scope); !isScope {
			c.Diags.Report(diagnostics.Errorf(loc(n), "%q is already declared and is not a namespace", n.Name))
			return
		}
	}
	child, err := s.Enter(n.Name, loc(n))
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(n), "%s", err))
		return
	}
	s.Declare(n.Name, child)
	for _, stmt := range n.Body.Stmts {
		c.CheckTopLevel(stmt, child)
	}
}

// CheckTypeDecl constructs a new composed (optionally generic) type from a
// type declaration and registers it in the current scope.
func (c *Checker) CheckTypeDecl(td *ast.TypeDecl, s *scope.Scope) {
	c.markChecked(td)

	if _, exists := s.Members()[td.Name]; exists {
		c.Diags.Report(diagnostics.Errorf(loc(td), "redefinition of %q", td.Name))
		return
	}

	this := types.NewThis()
	bodyScope, err := s.Enter(td.Name, loc(td))
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(td), "%s", err))
		return
	}
	// memberDecls is populated below as each member is processed; `this`'s
	// VariableDecl shares the same map so owning-type lookups from within
	// the constructor body see every member once it exists.
	memberDecls := map[string]*scope.VariableDecl{}
	thisDecl := &scope.VariableDecl{Type: this, MemberDecls: memberDecls}
	bodyScope.Declare("this", thisDecl)

	var genericParams *types.GenericParamList
	if len(td.GenericNames) > 0 {
		genericParams = types.NewGenericParamList()
		seen := map[string]bool{}
		for _, name := range td.GenericNames {
			if seen[name] {
				c.Diags.Report(diagnostics.Errorf(loc(td), "generic parameter names must be unique"))
				continue
			}
			seen[name] = true
			marker := genericParams.Declare(name)
			bodyScope.Declare(name, &scope.VariableDecl{Type: types.MarkerType(marker)})
		}
	}

	var inherits []*types.Type
	for _, te := range td.Inherits {
		base, err := ResolveTypeExpr(c.Builtins, te, bodyScope)
		if err != nil {
			c.Diags.Report(diagnostics.Errorf(loc(td), "%s", err))
			continue
		}
		if base.Callable != nil || base.Indexable != nil {
			c.Diags.Report(diagnostics.Errorf(loc(td), "types cannot inherit from functions or arrays"))
			continue
		}
		if base.Kind == types.KindGenericParam {
			c.Diags.Report(diagnostics.Errorf(loc(td), "types cannot inherit directly from generic parameters"))
			continue
		}
		if base.IsIntegral() || base.IsFloat() {
			c.Diags.Report(diagnostics.Errorf(loc(td), "types cannot inherit from integral types"))
			continue
		}
		inherits = append(inherits, base)
		if !base.IsInterface {
			if base.Instance != nil {
				for _, name := range base.Instance.Names() {
					t, _ := base.Instance.Get(name)
					bodyScope.Declare(name, &scope.VariableDecl{Type: t})
				}
			}
		}
	}

	members := types.NewMembers()
	staticMembers := types.NewMembers()
	specialOps := map[types.SpecialOperator]*types.Callable{}
	errors := false

	for _, m := range td.Members {
		if m.Special != "" {
			op := types.SpecialOperator(m.Special)
			if _, ok := specialOps[op]; ok {
				c.Diags.Report(diagnostics.Errorf(loc(td), "special operator %q already implemented for type %q", m.Special, td.Name))
				errors = true
				continue
			}
			mt, err := ResolveTypeExpr(c.Builtins, m.Type, bodyScope)
			if err != nil {
				c.Diags.Report(diagnostics.Errorf(loc(td), "%s", err))
				errors = true
				continue
			}
			callable := mt.EffectiveCallable()
			if callable == nil {
				c.Diags.Report(diagnostics.Errorf(loc(td), "%s.op%s must be callable", td.Name, m.Special))
				errors = true
				continue
			}
			// A plain identity check, not Equals: `this` has not been
			// resolved yet at this point in construction, and Equals would
			// dereference it via Resolve() as soon as the compared pointers
			// differ.
			if op == types.OpConstructor && callable.Return != this {
				c.Diags.Report(diagnostics.Errorf(loc(td), "%s.op= (constructor) must return this, not %s", td.Name, callable.Return.Name))
				errors = true
			}
			specialOps[op] = callable
			continue
		}

		mt, err := ResolveTypeExpr(c.Builtins, m.Type, bodyScope)
		if err != nil {
			c.Diags.Report(diagnostics.Errorf(loc(td), "%s", err))
			errors = true
			continue
		}
		if m.IsStatic {
			staticMembers.Set(m.Name, mt)
		} else {
			members.Set(m.Name, mt)
		}
		decl := &scope.VariableDecl{Type: mt, IsConst: m.IsConst}
		memberDecls[m.Name] = decl
		bodyScope.Declare(m.Name, decl)
	}

	if errors {
		return
	}

	newType := &types.Type{
		Kind:          types.KindComposed,
		Name:          td.Name,
		IsRef:         true,
		Inherits:      inherits,
		Instance:      members,
		Static:        staticMembers,
		SpecialOps:    specialOps,
		GenericParams: genericParams,
	}
	this.ResolveThis(newType)

	vd := &scope.VariableDecl{Type: types.NewStatic(newType), Site: td, MemberDecls: memberDecls}
	s.Declare(td.Name, vd)

	if ctor, ok := specialOps[types.OpConstructor]; ok {
		c.checkConstructor(td, newType, ctor, bodyScope)
	}
}

// checkConstructor validates a type's constructor body against a synthesized
// scope containing `this` and the constructor's parameters: explicit
// value-returns are forbidden, and any instance member left unassigned is
// warned about once the body has been checked.
func (c *Checker) checkConstructor(td *ast.TypeDecl, owner *types.Type, ctor *types.Callable, bodyScope *scope.Scope) {
	var ctorMember *ast.Member
	for i := range td.Members {
		if td.Members[i].Special == string(types.OpConstructor) {
			ctorMember = &td.Members[i]
			break
		}
	}
	if ctorMember == nil || ctorMember.Body == nil {
		return
	}

	ctorScope, err := bodyScope.New("", nil, &scope.VariableDecl{Type: c.Builtins.Void})
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(td), "%s", err))
		return
	}
	for i, p := range ctorMember.ParamList {
		if i >= len(ctor.Params) {
			break
		}
		ctorScope.Declare(p.Name, &scope.VariableDecl{Type: ctor.Params[i], IsConst: true})
	}

	assigned := map[string]bool{}
	for _, stmt := range ctorMember.Body.Stmts {
		switch n := stmt.(type) {
		case *ast.ReturnStmt:
			c.markChecked(n)
			if n.Value != nil {
				c.Diags.Report(diagnostics.Errorf(loc(n), "constructors cannot explicitly return a value"))
			}
		case *ast.AssignOp:
			c.CheckAssign(n, ctorScope)
			if targetOwner, member, err := c.Resolver.OwningType(n.Target, ctorScope); err == nil && targetOwner != nil {
				for name, md := range targetOwner.MemberDecls {
					if md == member {
						assigned[name] = true
					}
				}
			}
		default:
			c.checkStmt(stmt, ctorScope)
		}
	}

	if owner.Instance != nil {
		for _, name := range owner.Instance.Names() {
			if !assigned[name] {
				c.Diags.Report(diagnostics.Warningf(loc(td), "constructor for %q does not assign instance member %q", td.Name, name))
			}
		}
	}
}

// CheckInterfaceDecl registers an interface type: like a TypeDecl, but
// members may lack bodies, and members whose ast.Member.Body is non-nil are
// tracked as having a default implementation.
func (c *Checker) CheckInterfaceDecl(id *ast.InterfaceDecl, s *scope.Scope) {
	c.markChecked(id)
	if _, exists := s.Members()[id.Name]; exists {
		c.Diags.Report(diagnostics.Errorf(loc(id), "redefinition of %q", id.Name))
		return
	}

	members := types.NewMembers()
	defaults := map[string]bool{}
	for _, m := range id.Members {
		mt, err := ResolveTypeExpr(c.Builtins, m.Type, s)
		if err != nil {
			c.Diags.Report(diagnostics.Errorf(loc(id), "%s", err))
			continue
		}
		members.Set(m.Name, mt)
		if m.Body != nil {
			defaults[m.Name] = true
		}
	}

	newType := &types.Type{
		Kind:              types.KindComposed,
		Name:              id.Name,
		Instance:          members,
		IsInterface:       true,
		InterfaceDefaults: defaults,
	}
	s.Declare(id.Name, &scope.VariableDecl{Type: newType, Site: id})
}
