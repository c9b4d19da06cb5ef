package checker

import (
	"fmt"

	"fu/internal/ast"
	"fu/internal/diagnostics"
	"fu/internal/resolver"
	"fu/internal/scope"
	"fu/internal/types"
)

// Checker drives the populate/optimize/check passes over a program. It
// tracks two sets by node identity: checked (every node must be
// validated at most once; a second visit is an implementation bug, not a
// user error) and absorbed (syntactic fragments, such as identifiers inside
// a type expression or an index modifier, that a parent node's check
// silently accounts for and that therefore must not trip the checked-once
// panic if a generic tree walk reaches them independently).
type Checker struct {
	Builtins *types.Builtins
	Resolver *resolver.Resolver
	Diags    *diagnostics.Sink

	checked  map[ast.Node]bool
	absorbed map[ast.Node]bool
}

func New(b *types.Builtins, diags *diagnostics.Sink) *Checker {
	c := &Checker{
		Builtins: b,
		Diags:    diags,
		checked:  map[ast.Node]bool{},
		absorbed: map[ast.Node]bool{},
	}
	c.Resolver = resolver.New(b, func(format string, args ...interface{}) {
		diags.Reportf(diagnostics.Warning, nil, format, args...)
	})
	return c
}

func loc(n ast.Node) *ast.Location {
	if n == nil {
		return nil
	}
	l := n.Loc()
	return &l
}

// markChecked records that n has now been validated. A second call for the
// same node indicates the checker revisited it, which is a bug in the
// checker itself, not a user error.
func (c *Checker) markChecked(n ast.Node) {
	if n == nil {
		return
	}
	if c.absorbed[n] {
		return
	}
	if c.checked[n] {
		panic(fmt.Sprintf("checker: %T at %v was checked more than once", n, n.Loc()))
	}
	c.checked[n] = true
}

// markAbsorbed records that n is a fragment a parent check already accounts
// for (identifiers inside type expressions, index fragments) and should be
// skipped by later independent traversal.
func (c *Checker) markAbsorbed(n ast.Node) {
	if n != nil {
		c.absorbed[n] = true
	}
}

// CheckReturnStmt validates a return statement against the enclosing
// function's return type.
func (c *Checker) CheckReturnStmt(ret *ast.ReturnStmt, returnType *types.Type, s *scope.Scope) {
	c.markChecked(ret)
	if ret.Value == nil {
		if returnType != nil && !returnType.Equals(c.Builtins.Void) {
			c.Diags.Report(diagnostics.Errorf(loc(ret), "empty return in a function that returns %s", returnType.Name))
		}
		return
	}
	res, err := c.Resolver.Resolve(ret.Value, s, returnType, false)
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(ret), "%s", err))
		return
	}
	valType, err := res.AsType()
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(ret), "%s", err))
		return
	}
	if returnType != nil {
		CheckConversion(valType, returnType, loc(ret), c.Diags)
	}
}

// checkTopLevelReturns counts the direct (non-nested) ReturnStmt children
// of a function's body; more than one is an error.
func (c *Checker) checkTopLevelReturns(body *ast.Scope) {
	count := 0
	for _, stmt := range body.Stmts {
		if _, ok := stmt.(*ast.ReturnStmt); ok {
			count++
		}
	}
	if count > 1 {
		c.Diags.Report(diagnostics.Errorf(loc(body), "function body has %d top-level return statements, expected at most one", count))
	}
}

// CheckAssign validates an assignment: the target must not be a const
// member, and the value's type must convert to the target's type.
func (c *Checker) CheckAssign(assign *ast.AssignOp, s *scope.Scope) {
	c.markChecked(assign)

	_, member, err := c.Resolver.OwningType(assign.Target, s)
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(assign), "%s", err))
		return
	}
	if member != nil && member.IsConst {
		c.Diags.Report(diagnostics.Errorf(loc(assign), "cannot assign to a const member"))
		return
	}

	targetRes, err := c.Resolver.Resolve(assign.Target, s, nil, false)
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(assign), "%s", err))
		return
	}
	targetType, err := targetRes.AsType()
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(assign), "%s", err))
		return
	}

	valueRes, err := c.Resolver.Resolve(assign.Value, s, targetType, false)
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(assign), "%s", err))
		return
	}
	valueType, err := valueRes.AsType()
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(assign), "%s", err))
		return
	}
	CheckConversion(valueType, targetType, loc(assign), c.Diags)
}

// CheckDeclaration validates a variable or function declaration: shadowing
// warnings, redefinition errors, and, for a declaration with a body, that
// its type is callable, checking the body in a fresh function scope seeded
// with its parameters.
func (c *Checker) CheckDeclaration(decl *ast.Declaration, s *scope.Scope) {
	c.markChecked(decl)

	if s.Parent != nil {
		if outer, _ := s.Parent.InScope(decl.Name); outer != nil {
			c.Diags.Report(diagnostics.Warningf(loc(decl), "declaration of %q shadows a previous declaration", decl.Name))
		}
	}
	if _, exists := s.Members()[decl.Name]; exists {
		c.Diags.Report(diagnostics.Errorf(loc(decl), "redefinition of %q", decl.Name))
	}

	declType, err := ResolveTypeExpr(c.Builtins, decl.Type, s)
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(decl), "%s", err))
		return
	}
	// A type expression's own identifiers (base name, generic arguments,
	// parameter-list element types) are resolved here, not via the general
	// statement walk, so they are absorbed rather than independently checked.
	c.markAbsorbed(decl.Type)
	vd := &scope.VariableDecl{Type: declType, Site: decl, IsConst: decl.IsConst}
	s.Declare(decl.Name, vd)

	if decl.Body == nil {
		if decl.Value != nil {
			c.markChecked(decl.Value)
			valueRes, err := c.Resolver.Resolve(decl.Value, s, declType, false)
			if err != nil {
				c.Diags.Report(diagnostics.Errorf(loc(decl.Value), "%s", err))
				return
			}
			valueType, err := valueRes.AsType()
			if err != nil {
				c.Diags.Report(diagnostics.Errorf(loc(decl.Value), "%s", err))
				return
			}
			CheckConversion(valueType, declType, loc(decl), c.Diags)
		}
		return
	}

	callable := declType.EffectiveCallable()
	if callable == nil {
		c.Diags.Report(diagnostics.Errorf(loc(decl), "%q is not callable but is initialized with a body", decl.Name))
		return
	}
	if len(decl.Body.Stmts) == 0 {
		c.Diags.Report(diagnostics.Warningf(loc(decl.Body), "method %q initialized with an empty body", decl.Name))
	}

	fnVars := map[string]scope.Member{}
	for i, p := range decl.Params {
		pt, err := ResolveTypeExpr(c.Builtins, p.Type, s)
		if err != nil {
			c.Diags.Report(diagnostics.Errorf(loc(decl), "parameter %d (%s): %s", i, p.Name, err))
			continue
		}
		fnVars[p.Name] = &scope.VariableDecl{Type: pt, IsConst: true}
	}
	fnScope, err := s.New(decl.Name, fnVars, &scope.VariableDecl{Type: callable.Return})
	if err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(decl), "%s", err))
		return
	}
	c.checkTopLevelReturns(decl.Body)
	c.checkBody(decl.Body, fnScope)
}

// checkBody validates each statement of a scope body in turn.
func (c *Checker) checkBody(body *ast.Scope, s *scope.Scope) {
	c.markChecked(body)
	for _, stmt := range body.Stmts {
		c.checkStmt(stmt, s)
	}
}

func (c *Checker) checkStmt(stmt ast.Node, s *scope.Scope) {
	switch n := stmt.(type) {
	case *ast.ReturnStmt:
		c.CheckReturnStmt(n, s.EnclosingReturnType().TypeOrNil(), s)
	case *ast.AssignOp:
		c.CheckAssign(n, s)
	case *ast.Declaration:
		c.CheckDeclaration(n, s)
	case *ast.IfStmt:
		c.checkIfStmt(n, s)
	default:
		c.checkExpr(stmt, s)
	}
}

func (c *Checker) checkIfStmt(stmt *ast.IfStmt, s *scope.Scope) {
	c.markChecked(stmt)
	for _, cs := range stmt.Cases {
		condRes, err := c.Resolver.Resolve(cs.Cond, s, c.Builtins.Bool, false)
		if err != nil {
			c.Diags.Report(diagnostics.Errorf(loc(cs.Cond), "%s", err))
		} else if condType, err := condRes.AsType(); err == nil {
			CheckConversion(condType, c.Builtins.Bool, loc(cs.Cond), c.Diags)
		}
		c.markChecked(cs.Cond)
		bodyScope, _ := s.New("", nil, nil)
		c.checkBody(cs.Body, bodyScope)
	}
	if stmt.Else != nil {
		elseScope, _ := s.New("", nil, nil)
		c.checkBody(stmt.Else, elseScope)
	}
}

// SeedBuiltins declares every builtin type directly in the global scope so
// user declarations can reference them by name via ResolveTypeExpr.
func SeedBuiltins(global *scope.Scope, b *types.Builtins) {
	for name, t := range map[string]*types.Type{
		"type": b.Type, "void": b.Void, "bool": b.Bool,
		"i8": b.I8, "u8": b.U8, "i16": b.I16, "u16": b.U16,
		"i32": b.I32, "u32": b.U32, "i64": b.I64, "u64": b.U64,
		"size_t": b.Size, "usize_t": b.USize,
		"f16": b.F16, "f32": b.F32, "f64": b.F64,
		"string": b.String,
	} {
		global.Declare(name, &scope.VariableDecl{Type: t})
	}
	global.Declare("Array", &scope.VariableDecl{Type: types.NewStatic(b.Array)})
}

// CheckTopLevel dispatches a single top-level program element to the
// matching populate/check routine.
func (c *Checker) CheckTopLevel(n ast.Node, s *scope.Scope) {
	switch v := n.(type) {
	case *ast.NamespaceDecl:
		c.CheckNamespace(v, s)
	case *ast.TypeDecl:
		c.CheckTypeDecl(v, s)
	case *ast.InterfaceDecl:
		c.CheckInterfaceDecl(v, s)
	case *ast.Declaration:
		c.CheckDeclaration(v, s)
	default:
		c.checkStmt(n, s)
	}
}

// Run drives the full populate/optimize/check pipeline over a program's
// top-level elements, returning the populated global scope.
func (c *Checker) Run(program []ast.Node) *scope.Scope {
	global := scope.NewGlobal()
	SeedBuiltins(global, c.Builtins)

	optimized := make([]ast.Node, len(program))
	for i, n := range program {
		optimized[i] = Optimize(n)
	}
	for _, n := range optimized {
		c.CheckTopLevel(n, global)
	}
	return global
}

// checkExpr resolves an expression purely for its side effect of validating
// every sub-node it touches (member lookups, call/index operators), without
// a particular target type in mind.
func (c *Checker) checkExpr(expr ast.Node, s *scope.Scope) {
	c.markChecked(expr)
	if _, err := c.Resolver.Resolve(expr, s, nil, false); err != nil {
		c.Diags.Report(diagnostics.Errorf(loc(expr), "%s", err))
	}
}
