package types

import "testing"

func TestIntegralEquality(t *testing.T) {
	b1 := NewBuiltins()
	b2 := NewBuiltins()

	tests := []struct {
		name     string
		a, b     *Type
		expected bool
	}{
		{"same instance i8", b1.I8, b1.I8, true},
		{"distinct instances same width/sign", b1.U16, b2.U16, true},
		{"distinct width", b1.I8, b1.I16, false},
		{"distinct signedness", b1.I32, b1.U32, false},
		{"float vs integral", b1.F32, b1.I32, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equals(tt.b); got != tt.expected {
				t.Errorf("%s.Equals(%s) = %v, want %v", tt.a.Name, tt.b.Name, got, tt.expected)
			}
		})
	}
}

func TestGenericParamMarkersCompareByIdentity(t *testing.T) {
	params := NewGenericParamList()
	m1 := params.Declare("T")
	m2 := params.Declare("U")

	t1 := MarkerType(m1)
	t2 := MarkerType(m2)
	t1again := MarkerType(m1)

	if !t1.Equals(t1again) {
		t.Errorf("same marker slot should compare equal")
	}
	if t1.Equals(t2) {
		t.Errorf("distinct marker slots must never compare equal")
	}
}

func TestArrayInstantiationIsImmutable(t *testing.T) {
	b := NewBuiltins()

	intArray := b.Array.Instantiate(map[string]*Type{"T": b.I32})
	if intArray == b.Array {
		t.Fatalf("Instantiate must not mutate the generic original")
	}
	if len(intArray.GenericInheritance) != 1 || intArray.GenericInheritance[0] != b.Array {
		t.Errorf("instantiated type must record its predecessor in GenericInheritance")
	}
	elem, _ := intArray.Indexable.Element, 0
	if !elem.Equals(b.I32) {
		t.Errorf("instantiated Array<i32> element type = %v, want i32", elem.Name)
	}
	// The original Array's element type must remain the free T marker.
	if b.Array.Indexable.Element.Kind != KindGenericParam {
		t.Errorf("original Array must remain generic after instantiation")
	}
}

func TestCommonGenericAncestor(t *testing.T) {
	b := NewBuiltins()
	ints := b.Array.Instantiate(map[string]*Type{"T": b.I32})
	intsAgain := ints.Instantiate(map[string]*Type{"T": b.I32})

	if CommonGenericAncestor(ints, intsAgain) != ints {
		t.Errorf("expected ints to be the common ancestor of its own re-instantiation")
	}
	floats := b.Array.Instantiate(map[string]*Type{"T": b.F32})
	if CommonGenericAncestor(ints, floats) != b.Array {
		t.Errorf("expected Array to be the only common ancestor of two unrelated instantiations")
	}
}

func TestThisResolvesExactlyOnce(t *testing.T) {
	this := NewThis()
	target := &Type{Kind: KindComposed, Name: "Foo"}
	this.ResolveThis(target)

	if this.Resolve() != target {
		t.Fatalf("Resolve() did not return the resolved target")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic resolving this a second time")
		}
	}()
	this.ResolveThis(target)
}

func TestStaticFacetExposesConstructorAndWrappedInstance(t *testing.T) {
	instance := &Type{
		Kind:     KindComposed,
		Name:     "Foo",
		Instance: NewMembers(),
		Static:   NewMembers(),
		SpecialOps: map[SpecialOperator]*Callable{
			OpConstructor: {Return: nil},
		},
	}
	st := NewStatic(instance)
	if st.StaticOf() != instance {
		t.Errorf("StaticOf() = %v, want instance", st.StaticOf())
	}
	if st.Callable == nil {
		t.Errorf("static facet must expose the constructor as callable")
	}
}
