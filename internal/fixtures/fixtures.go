// Package fixtures holds a small set of named, fully-built syntax trees,
// one per end-to-end scenario. The tokenizer/parser that would normally
// turn `.fu` text into one of these trees is an external collaborator, so
// cmd/fu's build and check subcommands select a fixture by name instead of
// parsing a file, the same way the checker and emitter package tests build
// their input trees as Go literals rather than through a parser.
package fixtures

import "fu/internal/ast"

func ident(name string) *ast.Ident          { return &ast.Ident{Name: name} }
func typeExpr(name string) *ast.TypeExpr    { return &ast.TypeExpr{Name: name} }
func numLit(text string) *ast.Literal       { return &ast.Literal{Kind: ast.LiteralNumber, Text: text} }
func callableType(ret string, params ...*ast.TypeExpr) *ast.TypeExpr {
	return &ast.TypeExpr{Name: ret, Modifiers: []ast.TypeModifier{{Kind: ast.ModParamList, Params: params}}}
}

// Program is one named fixture: the source it stands in for and the syntax
// tree itself.
type Program struct {
	Name        string
	Description string
	Nodes       []ast.Node
}

// emptyMain is "main: void() = { };": checks cleanly, emits a function
// whose body is a single RET, and exits 0.
func emptyMain() Program {
	return Program{
		Name:        "empty-main",
		Description: `main: void() = { };`,
		Nodes: []ast.Node{
			&ast.Declaration{
				Name: "main",
				Type: callableType("void"),
				Body: &ast.Scope{},
			},
		},
	}
}

// foldedReturn is "main: i32() = { return 1 + 2; };": the optimizer folds
// the literal arithmetic to 3 before emission; the VM exits with code 3.
func foldedReturn() Program {
	return Program{
		Name:        "folded-return",
		Description: `main: i32() = { return 1 + 2; };`,
		Nodes: []ast.Node{
			&ast.Declaration{
				Name: "main",
				Type: callableType("i32"),
				Body: &ast.Scope{
					Stmts: []ast.Node{
						&ast.ReturnStmt{Value: &ast.BinaryOp{Op: ast.OpAdd, Left: numLit("1"), Right: numLit("2")}},
					},
				},
			},
		},
	}
}

// incompleteConstructor declares a type whose constructor never assigns
// every instance member; the checker warns by member name.
func incompleteConstructor() Program {
	thisTE := &ast.TypeExpr{Name: "this", Modifiers: []ast.TypeModifier{{Kind: ast.ModParamList}}}
	return Program{
		Name:        "incomplete-constructor",
		Description: `foo: type = { x: i8; op=: this() = { y: i8 = 0; }; };`,
		Nodes: []ast.Node{
			&ast.TypeDecl{
				Name: "foo",
				Members: []ast.Member{
					{Name: "x", Type: typeExpr("i8")},
					{
						Special: "Constructor",
						Type:    thisTE,
						Body: &ast.Scope{
							Stmts: []ast.Node{
								&ast.Declaration{Name: "y", Type: typeExpr("i8"), Value: numLit("0")},
							},
						},
					},
				},
			},
		},
	}
}

// voidInitializer is "main: void() = { x: void = 0; };": void participates
// in no conversion, so the initializer errors.
func voidInitializer() Program {
	return Program{
		Name:        "void-initializer",
		Description: `main: void() = { x: void = 0; };`,
		Nodes: []ast.Node{
			&ast.Declaration{
				Name: "main",
				Type: callableType("void"),
				Body: &ast.Scope{
					Stmts: []ast.Node{
						&ast.Declaration{Name: "x", Type: typeExpr("void"), Value: numLit("0")},
					},
				},
			},
		},
	}
}

// narrowingLiteral is "x: u8 = 500;": 500 only fits a usize_t literal, and
// narrowing it into u8 (range 0..255) warns.
func narrowingLiteral() Program {
	return Program{
		Name:        "narrowing-literal",
		Description: `x: u8 = 500;`,
		Nodes: []ast.Node{
			&ast.Declaration{Name: "x", Type: typeExpr("u8"), Value: numLit("500")},
		},
	}
}

// shadowedDeclaration declares a namespace-level `x` before a
// function-local `x` of the same name, triggering the shadowing warning.
// The namespace comes first so the outer declaration exists by the time
// the local one is checked.
func shadowedDeclaration() Program {
	return Program{
		Name:        "shadowed-declaration",
		Description: `x: namespace = {}; main: void() = { x: u8 = 0; };`,
		Nodes: []ast.Node{
			&ast.NamespaceDecl{Name: "x", Body: &ast.Scope{}},
			&ast.Declaration{
				Name: "main",
				Type: callableType("void"),
				Body: &ast.Scope{
					Stmts: []ast.Node{
						&ast.Declaration{Name: "x", Type: typeExpr("u8"), Value: numLit("0")},
					},
				},
			},
		},
	}
}

// All returns every built-in fixture.
func All() []Program {
	return []Program{
		emptyMain(),
		foldedReturn(),
		incompleteConstructor(),
		voidInitializer(),
		narrowingLiteral(),
		shadowedDeclaration(),
	}
}

// Find returns the named fixture, or false if no fixture has that name.
func Find(name string) (Program, bool) {
	for _, p := range All() {
		if p.Name == name {
			return p, true
		}
	}
	return Program{}, false
}
