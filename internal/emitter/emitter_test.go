package emitter

import (
	"testing"

	"fu/internal/ast"
	"fu/internal/binfmt"
	"fu/internal/vm"
)

func typeExpr(name string) *ast.TypeExpr { return &ast.TypeExpr{Name: name} }

func numLit(text string) *ast.Literal {
	return &ast.Literal{Kind: ast.LiteralNumber, Text: text}
}

func mainReturning(body []ast.Node) []ast.Node {
	return []ast.Node{
		&ast.Declaration{
			Name: "main",
			Type: typeExpr("i32"),
			Body: &ast.Scope{Stmts: body},
		},
	}
}

func runEmitted(t *testing.T, program []ast.Node) int {
	t.Helper()
	out, err := Emit(program)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	b, err := binfmt.Decode(out)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	code, err := vm.New(b).Run(nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return code
}

func TestEmitReturnLiteral(t *testing.T) {
	program := mainReturning([]ast.Node{
		&ast.ReturnStmt{Value: numLit("42")},
	})
	if code := runEmitted(t, program); code != 42 {
		t.Fatalf("got exit code %d, want 42", code)
	}
}

func TestEmitArithmetic(t *testing.T) {
	program := mainReturning([]ast.Node{
		&ast.ReturnStmt{Value: &ast.BinaryOp{
			Op:    ast.OpAdd,
			Left:  numLit("19"),
			Right: numLit("23"),
		}},
	})
	if code := runEmitted(t, program); code != 42 {
		t.Fatalf("got exit code %d, want 42", code)
	}
}

func TestEmitLocalDeclarationAndAssignment(t *testing.T) {
	program := mainReturning([]ast.Node{
		&ast.Declaration{Name: "x", Type: typeExpr("i32"), Value: numLit("10")},
		&ast.AssignOp{
			Target: &ast.Ident{Name: "x"},
			Value: &ast.BinaryOp{
				Op:    ast.OpMul,
				Left:  &ast.Ident{Name: "x"},
				Right: numLit("2"),
			},
		},
		&ast.ReturnStmt{Value: &ast.Ident{Name: "x"}},
	})
	if code := runEmitted(t, program); code != 20 {
		t.Fatalf("got exit code %d, want 20", code)
	}
}

func TestEmitIfElse(t *testing.T) {
	program := mainReturning([]ast.Node{
		&ast.IfStmt{
			Cases: []ast.IfCase{
				{
					Cond: &ast.BinaryOp{Op: ast.OpLess, Left: numLit("1"), Right: numLit("2")},
					Body: &ast.Scope{Stmts: []ast.Node{&ast.ReturnStmt{Value: numLit("7")}}},
				},
			},
			Else: &ast.Scope{Stmts: []ast.Node{&ast.ReturnStmt{Value: numLit("9")}}},
		},
	})
	if code := runEmitted(t, program); code != 7 {
		t.Fatalf("got exit code %d, want 7", code)
	}
}

func TestEmitIfFalseTakesElseBranch(t *testing.T) {
	program := mainReturning([]ast.Node{
		&ast.IfStmt{
			Cases: []ast.IfCase{
				{
					Cond: &ast.BinaryOp{Op: ast.OpLess, Left: numLit("5"), Right: numLit("2")},
					Body: &ast.Scope{Stmts: []ast.Node{&ast.ReturnStmt{Value: numLit("7")}}},
				},
			},
			Else: &ast.Scope{Stmts: []ast.Node{&ast.ReturnStmt{Value: numLit("9")}}},
		},
	})
	if code := runEmitted(t, program); code != 9 {
		t.Fatalf("got exit code %d, want 9", code)
	}
}

func TestEmitFunctionCall(t *testing.T) {
	program := []ast.Node{
		&ast.Declaration{
			Name: "double",
			Type: typeExpr("i32"),
			Params: []ast.Param{
				{Name: "n", Type: typeExpr("i32")},
			},
			Body: &ast.Scope{Stmts: []ast.Node{
				&ast.ReturnStmt{Value: &ast.BinaryOp{
					Op:    ast.OpMul,
					Left:  &ast.Ident{Name: "n"},
					Right: numLit("2"),
				}},
			}},
		},
		&ast.Declaration{
			Name: "main",
			Type: typeExpr("i32"),
			Body: &ast.Scope{Stmts: []ast.Node{
				&ast.ReturnStmt{Value: &ast.CallOp{
					Callee: &ast.Ident{Name: "double"},
					Args:   &ast.ExprList{Elements: []ast.Node{numLit("21")}},
				}},
			}},
		},
	}
	if code := runEmitted(t, program); code != 42 {
		t.Fatalf("got exit code %d, want 42", code)
	}
}

func TestEmitRejectsMissingMain(t *testing.T) {
	program := []ast.Node{
		&ast.Declaration{Name: "helper", Type: typeExpr("i32"), Body: &ast.Scope{}},
	}
	if _, err := Emit(program); err == nil {
		t.Fatalf("expected an error for a program with no main")
	}
}

func TestEmitRejectsMainWithBadSignature(t *testing.T) {
	program := []ast.Node{
		&ast.Declaration{
			Name: "main",
			Type: typeExpr("f32"),
			Body: &ast.Scope{Stmts: []ast.Node{&ast.ReturnStmt{Value: numLit("1.0")}}},
		},
	}
	if _, err := Emit(program); err == nil {
		t.Fatalf("expected an error for main returning a float")
	}
}

func TestEmitRejectsMainWithScalarStringParameter(t *testing.T) {
	program := []ast.Node{
		&ast.Declaration{
			Name:   "main",
			Type:   typeExpr("void"),
			Params: []ast.Param{{Name: "args", Type: typeExpr("string")}},
			Body:   &ast.Scope{},
		},
	}
	if _, err := Emit(program); err == nil {
		t.Fatalf("expected an error for main taking a scalar string instead of string[]")
	}
}

func TestEmitAcceptsMainWithStringArrayParameter(t *testing.T) {
	argsType := &ast.TypeExpr{
		Name:      "string",
		Modifiers: []ast.TypeModifier{{Kind: ast.ModArrayDef}},
	}
	program := []ast.Node{
		&ast.Declaration{
			Name:   "main",
			Type:   typeExpr("void"),
			Params: []ast.Param{{Name: "args", Type: argsType}},
			Body:   &ast.Scope{},
		},
	}
	if _, err := Emit(program); err != nil {
		t.Fatalf("expected main(string[]) to be accepted, got %v", err)
	}
}

func TestEmitNoReturnValuePropagatesZeroExitCode(t *testing.T) {
	program := []ast.Node{
		&ast.Declaration{
			Name: "main",
			Type: typeExpr("void"),
			Body: &ast.Scope{Stmts: []ast.Node{&ast.ReturnStmt{}}},
		},
	}
	if code := runEmitted(t, program); code != 0 {
		t.Fatalf("got exit code %d, want 0", code)
	}
}
