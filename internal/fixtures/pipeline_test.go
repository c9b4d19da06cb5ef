package fixtures

import (
	"testing"

	"fu/internal/ast"
	"fu/internal/binfmt"
	"fu/internal/checker"
	"fu/internal/diagnostics"
	"fu/internal/emitter"
	"fu/internal/types"
	"fu/internal/vm"
)

// foldAll applies the constant-folding pass to every top-level node,
// mirroring what checker.Run does internally before checking: the emitter
// must lower the identical folded tree the checker validated.
func foldAll(nodes []ast.Node) []ast.Node {
	out := make([]ast.Node, len(nodes))
	for i, n := range nodes {
		out[i] = checker.Optimize(n)
	}
	return out
}

// runFixture drives a named fixture through the full pipeline
// (populate/optimize/check, then emit, then execute), returning the
// diagnostics the checker produced and, when checking succeeds, the VM's
// exit code.
func runFixture(t *testing.T, name string) (diags *diagnostics.Sink, code int, ranVM bool) {
	t.Helper()
	prog, ok := Find(name)
	if !ok {
		t.Fatalf("no such fixture %q", name)
	}

	diags = diagnostics.NewSink()
	c := checker.New(types.NewBuiltins(), diags)
	c.Run(prog.Nodes)
	if diags.HasErrors() {
		return diags, 0, false
	}

	out, err := emitter.Emit(foldAll(prog.Nodes))
	if err != nil {
		// A fixture with no main (scenarios 3/5 demonstrate checker
		// behavior only) is expected to fail emission; that is not a test
		// failure, just a fixture with nothing to run.
		return diags, 0, false
	}
	b, err := binfmt.Decode(out)
	if err != nil {
		t.Fatalf("decode failed for %q: %v", name, err)
	}
	code, err = vm.New(b).Run(nil)
	if err != nil {
		t.Fatalf("vm run failed for %q: %v", name, err)
	}
	return diags, code, true
}

func TestEndToEndEmptyMainExitsZero(t *testing.T) {
	diags, code, ran := runFixture(t, "empty-main")
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	if !ran {
		t.Fatalf("expected empty-main to emit and run")
	}
	if code != 0 {
		t.Fatalf("got exit code %d, want 0", code)
	}
}

func TestEndToEndFoldedReturnExitsThree(t *testing.T) {
	diags, code, ran := runFixture(t, "folded-return")
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	if !ran {
		t.Fatalf("expected folded-return to emit and run")
	}
	if code != 3 {
		t.Fatalf("got exit code %d, want 3", code)
	}
}

func TestEndToEndIncompleteConstructorWarns(t *testing.T) {
	diags, _, _ := runFixture(t, "incomplete-constructor")
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	if diags.CountKind(diagnostics.Warning) == 0 {
		t.Fatalf("expected a warning about an unassigned member, got %v", diags.All())
	}
}

func TestEndToEndVoidInitializerErrors(t *testing.T) {
	diags, _, _ := runFixture(t, "void-initializer")
	if !diags.HasErrors() {
		t.Fatalf("expected an error converting a literal into void")
	}
}

func TestEndToEndNarrowingLiteralWarns(t *testing.T) {
	diags, _, _ := runFixture(t, "narrowing-literal")
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	if diags.CountKind(diagnostics.Warning) == 0 {
		t.Fatalf("expected a narrowing warning, got %v", diags.All())
	}
}

func TestEndToEndShadowedDeclarationWarns(t *testing.T) {
	diags, code, ran := runFixture(t, "shadowed-declaration")
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	if diags.CountKind(diagnostics.Warning) == 0 {
		t.Fatalf("expected a shadowing warning, got %v", diags.All())
	}
	if !ran {
		t.Fatalf("expected shadowed-declaration's main to still emit and run")
	}
	if code != 0 {
		t.Fatalf("got exit code %d, want 0", code)
	}
}
