package resolver

import (
	"strings"
	"testing"

	"fu/internal/ast"
	"fu/internal/scope"
	"fu/internal/types"
)

func loc() ast.Location { return ast.Location{} }

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func numLit(text string, fsuffix, hasDot bool) *ast.Literal {
	return &ast.Literal{Kind: ast.LiteralNumber, Text: text, FSuffix: fsuffix, HasDot: hasDot}
}

func TestResolveIdentifier(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()
	g.Declare("x", &scope.VariableDecl{Type: b.I32})

	r := New(b, nil)
	res, err := r.Resolve(ident("x"), g, nil, false)
	if err != nil {
		t.Fatalf("Resolve(x) failed: %v", err)
	}
	if !res.Type.Equals(b.I32) {
		t.Errorf("Resolve(x).Type = %v, want i32", res.Type.Name)
	}

	if _, err := r.Resolve(ident("nope"), g, nil, false); err == nil {
		t.Errorf("expected error resolving undefined identifier")
	}
}

func TestResolveReturnStmt(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()
	r := New(b, nil)

	res, err := r.Resolve(&ast.ReturnStmt{Value: nil}, g, nil, false)
	if err != nil || !res.Type.Equals(b.Void) {
		t.Errorf("bare return should resolve to void, got %v (err=%v)", res.Type, err)
	}

	res, err = r.Resolve(&ast.ReturnStmt{Value: numLit("5", false, false)}, g, b.I32, false)
	if err != nil || !res.Type.Equals(b.I32) {
		t.Errorf("return 5 with want=i32 should resolve to i32, got %v (err=%v)", res.Type, err)
	}
}

func TestResolveLiteralTyping(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()
	r := New(b, nil)

	tests := []struct {
		name string
		lit  *ast.Literal
		want *types.Type
		sign bool
		expect *types.Type
	}{
		{"f-suffixed float", numLit("3f", true, false), nil, false, b.F32},
		{"bare positive integer defaults to usize", numLit("5", false, false), nil, false, b.USize},
		{"negative integer defaults to size_t", numLit("-5", false, false), nil, false, b.Size},
		{"want-hint narrows to i8", numLit("5", false, false), b.I8, false, b.I8},
		{"want_signed forces size_t", numLit("5", false, false), nil, true, b.Size},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(tt.lit, g, tt.want, tt.sign)
			if err != nil {
				t.Fatalf("Resolve literal failed: %v", err)
			}
			if !res.Type.Equals(tt.expect) {
				t.Errorf("got %v, want %v", res.Type.Name, tt.expect.Name)
			}
		})
	}
}

func TestResolveStringLiteral(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()
	r := New(b, nil)

	res, err := r.Resolve(&ast.Literal{Kind: ast.LiteralString, Text: "hi"}, g, nil, false)
	if err != nil || !res.Type.Equals(b.String) {
		t.Errorf("string literal should resolve to string type, got %v (err=%v)", res.Type, err)
	}
}

func TestFoldLiteralArithmeticNarrowestInt(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()
	r := New(b, nil)

	expr := &ast.BinaryOp{Op: ast.OpAdd, Left: numLit("1", false, false), Right: numLit("2", false, false)}
	res, err := r.Resolve(expr, g, nil, false)
	if err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if !res.Type.Equals(b.U8) {
		t.Errorf("1+2 should fold to narrowest unsigned type u8, got %v", res.Type.Name)
	}
}

func TestBinaryArithmeticWidensAndWarns(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()
	g.Declare("a", &scope.VariableDecl{Type: b.I8})
	g.Declare("c", &scope.VariableDecl{Type: b.I32})

	var warnings []string
	r := New(b, func(format string, args ...interface{}) {
		warnings = append(warnings, format)
	})

	expr := &ast.BinaryOp{Op: ast.OpAdd, Left: ident("a"), Right: ident("c")}
	res, err := r.Resolve(expr, g, nil, false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Type.Equals(b.I32) {
		t.Errorf("i8 + i32 should widen to i32, got %v", res.Type.Name)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "size") {
		t.Errorf("expected one size-mismatch warning, got %v", warnings)
	}
}

func TestResolveDotOperatorMember(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()

	widget := &types.Type{Kind: types.KindComposed, Name: "Widget", Instance: types.NewMembers()}
	widget.Instance.Set("size", b.U32)
	g.Declare("w", &scope.VariableDecl{Type: widget})

	r := New(b, nil)
	expr := &ast.BinaryOp{Op: ast.OpDot, Left: ident("w"), Right: ident("size")}
	res, err := r.Resolve(expr, g, nil, false)
	if err != nil {
		t.Fatalf("Resolve w.size failed: %v", err)
	}
	if !res.Type.Equals(b.U32) {
		t.Errorf("w.size should resolve to u32, got %v", res.Type.Name)
	}
}

func TestResolveLeadingDotRequiresThisInScope(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()
	r := New(b, nil)

	expr := &ast.UnaryOp{Op: ast.OpDot, Operand: ident("size")}
	if _, err := r.Resolve(expr, g, nil, false); err == nil {
		t.Errorf("expected error using leading `.` with no `this` in scope")
	}
}

func TestResolveIndexAndCall(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()

	arrayOfI32 := b.Array.Instantiate(map[string]*types.Type{"T": b.I32})
	g.Declare("xs", &scope.VariableDecl{Type: arrayOfI32})

	fn := &types.Type{Kind: types.KindComposed, Name: "fn", Callable: &types.Callable{Params: []*types.Type{b.I32}, Return: b.Bool}}
	g.Declare("pred", &scope.VariableDecl{Type: fn})

	r := New(b, nil)

	idxRes, err := r.Resolve(&ast.IndexOp{Collection: ident("xs"), Index: numLit("0", false, false)}, g, nil, false)
	if err != nil || !idxRes.Type.Equals(b.I32) {
		t.Errorf("xs[0] should resolve to i32, got %v (err=%v)", idxRes.Type, err)
	}

	callRes, err := r.Resolve(&ast.CallOp{Callee: ident("pred"), Args: &ast.ExprList{}}, g, nil, false)
	if err != nil || !callRes.Type.Equals(b.Bool) {
		t.Errorf("pred(...) should resolve to bool, got %v (err=%v)", callRes.Type, err)
	}
}

func TestOwningTypeForPlainIdentifier(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()
	decl := &scope.VariableDecl{Type: b.I32}
	g.Declare("x", decl)

	r := New(b, nil)
	owner, member, err := r.OwningType(ident("x"), g)
	if err != nil {
		t.Fatalf("OwningType failed: %v", err)
	}
	if owner != nil {
		t.Errorf("plain identifier should have a nil owner")
	}
	if member != decl {
		t.Errorf("OwningType did not return the declared member")
	}
}

func TestOwningTypeForDottedMember(t *testing.T) {
	b := types.NewBuiltins()
	g := scope.NewGlobal()

	widget := &types.Type{Kind: types.KindComposed, Name: "Widget", Instance: types.NewMembers()}
	widget.Instance.Set("size", b.U32)
	sizeDecl := &scope.VariableDecl{Type: b.U32}
	ownerDecl := &scope.VariableDecl{Type: widget, MemberDecls: map[string]*scope.VariableDecl{"size": sizeDecl}}
	g.Declare("w", ownerDecl)

	r := New(b, nil)
	owner, member, err := r.OwningType(&ast.BinaryOp{Op: ast.OpDot, Left: ident("w"), Right: ident("size")}, g)
	if err != nil {
		t.Fatalf("OwningType failed: %v", err)
	}
	if owner != ownerDecl {
		t.Errorf("expected owner to be w's declaration")
	}
	if member != sizeDecl {
		t.Errorf("expected member to be size's declaration")
	}
}
