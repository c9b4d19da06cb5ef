package scope

import (
	"testing"

	"fu/internal/types"
)

func TestInScopeWalksOutward(t *testing.T) {
	b := types.NewBuiltins()
	global := NewGlobal()
	global.Declare("x", &VariableDecl{Type: b.I32})

	fn, err := global.New("main", nil, nil)
	if err != nil {
		t.Fatalf("New(main) failed: %v", err)
	}
	fn.Declare("y", &VariableDecl{Type: b.Bool})

	if m, found := fn.InScope("y"); m == nil || found != fn {
		t.Errorf("expected y to resolve in its own scope")
	}
	if m, found := fn.InScope("x"); m == nil || found != global {
		t.Errorf("expected x to resolve in the enclosing global scope")
	}
	if m, _ := fn.InScope("nope"); m != nil {
		t.Errorf("expected undeclared identifier to resolve to nil")
	}
}

func TestNewRejectsDuplicateName(t *testing.T) {
	global := NewGlobal()
	if _, err := global.New("foo", nil, nil); err != nil {
		t.Fatalf("first New(foo) failed: %v", err)
	}
	if _, err := global.New("foo", nil, nil); err == nil {
		t.Errorf("expected second New(foo) on the same parent to fail")
	}
}

func TestEnterReusesExistingChild(t *testing.T) {
	global := NewGlobal()
	first, err := global.Enter("Widget", nil)
	if err != nil {
		t.Fatalf("Enter(Widget) failed: %v", err)
	}
	first.Declare("field", &VariableDecl{})

	second, err := global.Enter("Widget", nil)
	if err != nil {
		t.Fatalf("second Enter(Widget) failed: %v", err)
	}
	if second != first {
		t.Errorf("Enter must return the same scope instance on re-entry")
	}
	if _, ok := second.Members()["field"]; !ok {
		t.Errorf("re-entered scope lost previously declared members")
	}
}

func TestFQDN(t *testing.T) {
	global := NewGlobal()
	ns, _ := global.Enter("app", nil)
	ty, _ := ns.Enter("Widget", nil)

	if got := ty.FQDN(); got != "app.Widget" {
		t.Errorf("FQDN() = %q, want %q", got, "app.Widget")
	}
	if got := global.FQDN(); got != "<global>" {
		t.Errorf("global FQDN() = %q, want <global>", got)
	}
}

func TestEnclosingReturnTypeWalksOutward(t *testing.T) {
	b := types.NewBuiltins()
	global := NewGlobal()
	ret := &VariableDecl{Type: b.I32}
	fn, _ := global.New("compute", nil, ret)

	block, err := fn.New("", nil, nil)
	if err != nil {
		t.Fatalf("anonymous New failed: %v", err)
	}
	if got := block.EnclosingReturnType(); got != ret {
		t.Errorf("expected nested block to inherit enclosing function's return type")
	}
}
