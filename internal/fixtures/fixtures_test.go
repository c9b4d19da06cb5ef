package fixtures

import "testing"

func TestFindReturnsKnownFixture(t *testing.T) {
	p, ok := Find("empty-main")
	if !ok {
		t.Fatalf("expected empty-main to be found")
	}
	if len(p.Nodes) != 1 {
		t.Fatalf("expected one top-level node, got %d", len(p.Nodes))
	}
}

func TestFindRejectsUnknownName(t *testing.T) {
	if _, ok := Find("does-not-exist"); ok {
		t.Fatalf("expected no fixture named does-not-exist")
	}
}

func TestAllNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range All() {
		if seen[p.Name] {
			t.Fatalf("duplicate fixture name %q", p.Name)
		}
		seen[p.Name] = true
	}
}
