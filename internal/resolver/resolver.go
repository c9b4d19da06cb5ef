// Package resolver maps syntax nodes to types, scopes, or variable
// declarations: member and index lookups, call result types, literal
// typing, and owning-type resolution for assignment targets.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"fu/internal/ast"
	"fu/internal/scope"
	"fu/internal/types"
)

// Result is whatever a syntax node resolves to. Exactly one of Decl or
// Scope is set when resolution found a declared name; Type is always set
// unless the node resolved to a bare scope reference.
type Result struct {
	Type  *types.Type
	Decl  *scope.VariableDecl
	Scope *scope.Scope
}

func ofType(t *types.Type) Result          { return Result{Type: t} }
func ofDecl(d *scope.VariableDecl) Result  { return Result{Type: d.Type, Decl: d} }
func ofScope(s *scope.Scope) Result        { return Result{Scope: s} }

// AsType unwraps a Result to its type, failing if resolution bottomed out
// at a bare scope.
func (r Result) AsType() (*types.Type, error) {
	if r.Type == nil {
		if r.Scope != nil {
			return nil, fmt.Errorf("resolver: cannot operate on scope %q", r.Scope.FQDN())
		}
		return nil, fmt.Errorf("resolver: result has no type")
	}
	return r.Type, nil
}

// Warnf receives non-fatal resolver warnings (signed/unsigned or size
// mismatches in infix arithmetic); callers typically wire this to a
// diagnostics.Sink.
type Warnf func(format string, args ...interface{})

// Resolver holds the builtin registry every literal and member lookup is
// checked against.
type Resolver struct {
	Builtins *types.Builtins
	Warn     Warnf
}

func New(b *types.Builtins, warn Warnf) *Resolver {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}
	return &Resolver{Builtins: b, Warn: warn}
}

// Resolve performs the full per-node case analysis. want is the type the
// caller would prefer the result coerce to (e.g. a declaration's annotated
// type), and wantSigned forces a negative-capable fallback for untyped
// integer literals.
func (r *Resolver) Resolve(node ast.Node, s *scope.Scope, want *types.Type, wantSigned bool) (Result, error) {
	switch n := node.(type) {
	case *ast.ReturnStmt:
		if n.Value == nil {
			return ofType(r.Builtins.Void), nil
		}
		return r.Resolve(n.Value, s, want, wantSigned)

	case *ast.UnaryOp:
		if n.Op == ast.OpDot {
			// Leading `.` is sugar for `this.<ident>`.
			m, _ := s.InScope("this")
			if m == nil {
				return Result{}, fmt.Errorf("resolver: cannot use `.%s`, `this` is not in scope", identName(n.Operand))
			}
			decl, ok := m.(*scope.VariableDecl)
			if !ok {
				return Result{}, fmt.Errorf("resolver: `this` does not name a value")
			}
			return r.member(decl.Type, n.Operand)
		}
		return Result{}, fmt.Errorf("resolver: prefix operator %q not implemented", n.Op)

	case *ast.BinaryOp:
		switch n.Op {
		case ast.OpDot:
			leftRes, err := r.Resolve(n.Left, s, nil, false)
			if err != nil {
				return Result{}, err
			}
			lt, err := leftRes.AsType()
			if err != nil {
				return Result{}, err
			}
			return r.member(lt, n.Right)
		case ast.OpAssign:
			return ofType(r.Builtins.Void), nil
		default:
			return r.binaryArithmetic(n, s, want, wantSigned)
		}

	case *ast.IndexOp:
		leftRes, err := r.Resolve(n.Collection, s, nil, false)
		if err != nil {
			return Result{}, err
		}
		lt, err := leftRes.AsType()
		if err != nil {
			return Result{}, err
		}
		idx := lt.EffectiveIndexable()
		if idx == nil {
			return Result{}, fmt.Errorf("resolver: %s is not indexable", lt.Name)
		}
		return ofType(idx.Element), nil

	case *ast.CallOp:
		leftRes, err := r.Resolve(n.Callee, s, nil, false)
		if err != nil {
			return Result{}, err
		}
		lt, err := leftRes.AsType()
		if err != nil {
			return Result{}, err
		}
		callable := lt.EffectiveCallable()
		if callable == nil {
			return Result{}, fmt.Errorf("resolver: %s is not callable", lt.Name)
		}
		return ofType(callable.Return), nil

	case *ast.AssignOp:
		return ofType(r.Builtins.Void), nil

	case *ast.Ident:
		m, _ := s.InScope(n.Name)
		if m == nil {
			return Result{}, fmt.Errorf("resolver: identifier %q is not defined", n.Name)
		}
		switch v := m.(type) {
		case *scope.VariableDecl:
			return ofDecl(v), nil
		case *scope.Scope:
			return ofScope(v), nil
		default:
			return Result{}, fmt.Errorf("resolver: identifier %q resolved to an unknown member kind", n.Name)
		}

	case *ast.Literal:
		return r.resolveLiteral(n, want, wantSigned)

	default:
		return Result{}, fmt.Errorf("resolver: resolution for %T is not implemented", node)
	}
}

func identName(n ast.Node) string {
	if id, ok := n.(*ast.Ident); ok {
		return id.Name
	}
	return "?"
}

// member looks up rhs (an Ident) among owner's effective instance members,
// or, when owner is itself a type-valued declaration, its static members.
func (r *Resolver) member(owner *types.Type, rhs ast.Node) (Result, error) {
	id, ok := rhs.(*ast.Ident)
	if !ok {
		return Result{}, fmt.Errorf("resolver: expected identifier on right of dot operator, got %T", rhs)
	}
	resolved := owner.Resolve()
	// A KindStatic facet's Instance field already holds the wrapped type's
	// static members (see types.NewStatic), so no branch is needed here.
	members := resolved.Instance
	if members == nil {
		return Result{}, fmt.Errorf("resolver: %s has no member %q", resolved.Name, id.Name)
	}
	mt, ok := members.Get(id.Name)
	if !ok {
		return Result{}, fmt.Errorf("resolver: %s has no member %q", resolved.Name, id.Name)
	}
	return ofType(mt), nil
}

// binaryArithmetic resolves infix arithmetic: constant folding on two
// literals, or widening with a warning on two typed operands.
func (r *Resolver) binaryArithmetic(n *ast.BinaryOp, s *scope.Scope, want *types.Type, wantSigned bool) (Result, error) {
	leftLit, leftIsLit := n.Left.(*ast.Literal)
	rightLit, rightIsLit := n.Right.(*ast.Literal)
	if leftIsLit && rightIsLit && leftLit.Kind == ast.LiteralNumber && rightLit.Kind == ast.LiteralNumber {
		return r.foldLiteralArithmetic(n.Op, leftLit, rightLit, want, wantSigned)
	}

	leftRes, err := r.Resolve(n.Left, s, nil, false)
	if err != nil {
		return Result{}, err
	}
	rightRes, err := r.Resolve(n.Right, s, nil, false)
	if err != nil {
		return Result{}, err
	}
	lt, err := leftRes.AsType()
	if err != nil {
		return Result{}, err
	}
	rt, err := rightRes.AsType()
	if err != nil {
		return Result{}, err
	}

	switch {
	case lt.IsFloat() && rt.IsFloat():
		if *lt.Size != *rt.Size {
			r.Warn("performing %s between floating point types of different size can result in information loss", n.Op)
		}
		return ofType(widerSize(lt, rt)), nil
	case lt.IsIntegral() && rt.IsIntegral():
		li, _ := lt.IntegralInfo()
		ri, _ := rt.IntegralInfo()
		if li.Signed != ri.Signed || li.Bits != ri.Bits {
			r.Warn("performing %s between numeric types of different signedness or size can result in information loss", n.Op)
		}
		return ofType(widerSize(lt, rt)), nil
	default:
		return Result{}, fmt.Errorf("resolver: cannot apply %s between %s and %s", n.Op, lt.Name, rt.Name)
	}
}

func widerSize(a, b *types.Type) *types.Type {
	if a.Size == nil || b.Size == nil {
		return a
	}
	if *b.Size > *a.Size {
		return b
	}
	return a
}

// resolveLiteral types a literal from its written form and the caller's
// want hint.
func (r *Resolver) resolveLiteral(lit *ast.Literal, want *types.Type, wantSigned bool) (Result, error) {
	b := r.Builtins
	if lit.Kind == ast.LiteralString {
		return ofType(b.String), nil
	}

	text := lit.Text
	if lit.FSuffix {
		val, err := strconv.ParseFloat(strings.TrimSuffix(text, "f"), 64)
		if err != nil {
			return Result{}, fmt.Errorf("resolver: malformed float literal %q: %w", text, err)
		}
		if want != nil && want.IsIntegral() && couldHoldIntegerValue(want, int64(val)) {
			return ofType(want), nil
		}
		return ofType(b.F32), nil
	}
	if lit.HasDot {
		return Result{}, fmt.Errorf("resolver: bare (non-f-suffixed) float literals are not supported: %q", text)
	}

	val, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Result{}, fmt.Errorf("resolver: malformed integer literal %q: %w", text, err)
	}
	if want != nil && want.IsIntegral() && couldHoldIntegerValue(want, val) {
		return ofType(want), nil
	}
	if wantSigned || val < 0 {
		return ofType(b.Size), nil
	}
	return ofType(b.USize), nil
}

// foldLiteralArithmetic evaluates arithmetic between two numeric literals,
// yielding the narrowest integer type that can hold the result (honoring
// signedness preference), or the narrowest float.
func (r *Resolver) foldLiteralArithmetic(op ast.OperatorKind, lhs, rhs *ast.Literal, want *types.Type, wantSigned bool) (Result, error) {
	b := r.Builtins
	lf, lIsFloat, err := literalNumericValue(lhs)
	if err != nil {
		return Result{}, err
	}
	rf, rIsFloat, err := literalNumericValue(rhs)
	if err != nil {
		return Result{}, err
	}

	isFloat := lIsFloat || rIsFloat
	var result float64
	switch op {
	case ast.OpAdd:
		result = lf + rf
	case ast.OpSub:
		result = lf - rf
	case ast.OpMul:
		result = lf * rf
	case ast.OpDiv:
		if rf == 0 {
			return Result{}, fmt.Errorf("resolver: division by zero in constant folding")
		}
		result = lf / rf
	default:
		return Result{}, fmt.Errorf("resolver: operator %q is not a foldable arithmetic operator", op)
	}

	if isFloat {
		if want != nil && want.IsFloat() {
			return ofType(want), nil
		}
		return ofType(narrowestFloatFor(b, result)), nil
	}
	val := int64(result)
	if want != nil && want.IsIntegral() && couldHoldIntegerValue(want, val) {
		return ofType(want), nil
	}
	return ofType(narrowestIntegralFor(b, val, wantSigned)), nil
}

func literalNumericValue(lit *ast.Literal) (float64, bool, error) {
	text := strings.TrimSuffix(lit.Text, "f")
	if lit.FSuffix || lit.HasDot {
		v, err := strconv.ParseFloat(text, 64)
		return v, true, err
	}
	v, err := strconv.ParseInt(text, 10, 64)
	return float64(v), false, err
}

func couldHoldIntegerValue(t *types.Type, val int64) bool {
	info, ok := t.IntegralInfo()
	if !ok {
		return false
	}
	if info.Signed {
		min := -(int64(1) << (info.Bits - 1))
		max := int64(1)<<(info.Bits-1) - 1
		return val >= min && val <= max
	}
	if val < 0 {
		return false
	}
	if info.Bits >= 64 {
		return true
	}
	max := int64(1)<<info.Bits - 1
	return val <= max
}

// narrowestIntegralFor picks the smallest builtin integral type (ties
// broken toward unsigned unless wantSigned or the value is negative) that
// can represent val.
func narrowestIntegralFor(b *types.Builtins, val int64, wantSigned bool) *types.Type {
	signedOrder := []*types.Type{b.I8, b.I16, b.I32, b.I64}
	unsignedOrder := []*types.Type{b.U8, b.U16, b.U32, b.U64}

	if wantSigned || val < 0 {
		for _, t := range signedOrder {
			if couldHoldIntegerValue(t, val) {
				return t
			}
		}
		return b.I64
	}
	for _, t := range unsignedOrder {
		if couldHoldIntegerValue(t, val) {
			return t
		}
	}
	return b.U64
}

// narrowestFloatFor prefers f32 when the value round-trips cleanly through
// float32 precision, otherwise f64.
func narrowestFloatFor(b *types.Builtins, val float64) *types.Type {
	if float64(float32(val)) == val {
		return b.F32
	}
	return b.F64
}

// OwningType returns the (owner declaration, member declaration) pair for an
// assignment target, supporting `a.b`, bare `.b`, and bare identifiers.
func (r *Resolver) OwningType(node ast.Node, s *scope.Scope) (owner *scope.VariableDecl, member *scope.VariableDecl, err error) {
	switch n := node.(type) {
	case *ast.Ident:
		m, _ := s.InScope(n.Name)
		decl, ok := m.(*scope.VariableDecl)
		if !ok {
			return nil, nil, fmt.Errorf("resolver: identifier %q does not name a declared value", n.Name)
		}
		return nil, decl, nil

	case *ast.UnaryOp:
		if n.Op != ast.OpDot {
			return nil, nil, fmt.Errorf("resolver: cannot find owning type of prefix operator %q", n.Op)
		}
		m, _ := s.InScope("this")
		ownerDecl, ok := m.(*scope.VariableDecl)
		if !ok {
			return nil, nil, fmt.Errorf("resolver: cannot use `.%s`, `this` is not in scope", identName(n.Operand))
		}
		name := identName(n.Operand)
		md, ok := ownerDecl.MemberDecls[name]
		if !ok {
			return nil, nil, fmt.Errorf("resolver: %s does not have a %q member", ownerDecl.Type.Name, name)
		}
		return ownerDecl, md, nil

	case *ast.BinaryOp:
		if n.Op != ast.OpDot {
			return nil, nil, fmt.Errorf("resolver: cannot find owning type of operator %q", n.Op)
		}
		var ownerDecl *scope.VariableDecl
		if left, ok := n.Left.(*ast.Ident); ok {
			m, _ := s.InScope(left.Name)
			ownerDecl, _ = m.(*scope.VariableDecl)
		}
		if ownerDecl == nil {
			return nil, nil, fmt.Errorf("resolver: left side of dot operator did not resolve to a declared value")
		}
		name := identName(n.Right)
		md, ok := ownerDecl.MemberDecls[name]
		if !ok {
			if !ownerDecl.Type.Instance.Has(name) {
				return nil, nil, fmt.Errorf("resolver: %s does not have a %q member", ownerDecl.Type.Name, name)
			}
			return ownerDecl, nil, nil
		}
		return ownerDecl, md, nil

	default:
		return nil, nil, fmt.Errorf("resolver: cannot find owning type of %T", node)
	}
}
