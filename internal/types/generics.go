package types

// GenericParamMarker is a free (unbound) generic parameter. Two markers are
// equal only when they are the same pointer: a parameter slot has identity,
// not structure.
type GenericParamMarker struct {
	Name string
}

// GenericParamList is an insertion-ordered mapping from generic parameter
// name to either a free marker or a bound type.
type GenericParamList struct {
	order  []string
	byName map[string]GenericBinding
}

// GenericBinding is either a free GenericParamMarker or a bound *Type.
type GenericBinding struct {
	Marker *GenericParamMarker // non-nil iff unbound
	Bound  *Type               // non-nil iff bound
}

func NewGenericParamList() *GenericParamList {
	return &GenericParamList{byName: map[string]GenericBinding{}}
}

func (g *GenericParamList) Declare(name string) *GenericParamMarker {
	m := &GenericParamMarker{Name: name}
	if _, ok := g.byName[name]; !ok {
		g.order = append(g.order, name)
	}
	g.byName[name] = GenericBinding{Marker: m}
	return m
}

func (g *GenericParamList) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

func (g *GenericParamList) Get(name string) (GenericBinding, bool) {
	b, ok := g.byName[name]
	return b, ok
}

func (g *GenericParamList) IsFullyBound() bool {
	for _, n := range g.order {
		if g.byName[n].Bound == nil {
			return false
		}
	}
	return true
}

// clone copies the parameter list, optionally substituting bindings from
// assignments.
func (g *GenericParamList) clone(assign map[string]*Type) *GenericParamList {
	out := NewGenericParamList()
	out.order = append([]string{}, g.order...)
	for _, n := range g.order {
		cur := g.byName[n]
		if bound, ok := assign[n]; ok {
			out.byName[n] = GenericBinding{Bound: bound}
			continue
		}
		out.byName[n] = cur
	}
	return out
}

// Instantiate rebuilds a generic type with the given parameter assignment.
// The receiver is left untouched: the result is a new *Type whose
// GenericInheritance chain records the predecessor, so conversion checks
// can walk common generic ancestors later.
func (t *Type) Instantiate(assign map[string]*Type) *Type {
	if t.GenericParams == nil {
		panic("types: Instantiate called on a non-generic type")
	}
	next := &Type{
		Kind:              t.Kind,
		Name:              t.Name,
		Size:              t.Size,
		IsRef:             t.IsRef,
		IsConst:           t.IsConst,
		Callable:          t.Callable,
		Indexable:         t.Indexable,
		ReadOnly:          t.ReadOnly,
		Inherits:          t.Inherits,
		SpecialOps:        t.SpecialOps,
		InterfaceDefaults: t.InterfaceDefaults,
		IsInterface:       t.IsInterface,
	}
	if t.Instance != nil {
		next.Instance = t.Instance.Clone()
	}
	if t.Static != nil {
		next.Static = t.Static.Clone()
	}
	next.GenericParams = t.GenericParams.clone(assign)
	next.GenericInheritance = append(append([]*Type{}, t.GenericInheritance...), t)

	substituteMembers(next.Instance, t.GenericParams, assign)
	substituteMembers(next.Static, t.GenericParams, assign)
	if next.Indexable != nil {
		next.Indexable = &Indexable{
			Index:   substituteList(next.Indexable.Index, t.GenericParams, assign),
			Element: substituteOne(next.Indexable.Element, t.GenericParams, assign),
		}
	}
	return next
}

func substituteOne(candidate *Type, params *GenericParamList, assign map[string]*Type) *Type {
	if candidate == nil || candidate.Kind != KindGenericParam {
		return candidate
	}
	for _, name := range params.Names() {
		b, _ := params.Get(name)
		if b.Marker != nil && markerType(b.Marker) == candidate {
			if bound, ok := assign[name]; ok {
				return bound
			}
		}
	}
	return candidate
}

func substituteList(in []*Type, params *GenericParamList, assign map[string]*Type) []*Type {
	out := make([]*Type, len(in))
	for i, c := range in {
		out[i] = substituteOne(c, params, assign)
	}
	return out
}

func substituteMembers(m *Members, params *GenericParamList, assign map[string]*Type) {
	if m == nil {
		return
	}
	for _, name := range m.Names() {
		cur, _ := m.Get(name)
		m.Set(name, substituteOne(cur, params, assign))
	}
}

// markerCache lets a GenericParamMarker stand in as a *Type wherever a
// member or signature references "the free parameter T" structurally.
var markerCache = map[*GenericParamMarker]*Type{}

// markerType returns the sentinel *Type used to represent a generic
// parameter marker in member/signature positions.
func markerType(m *GenericParamMarker) *Type {
	if existing, ok := markerCache[m]; ok {
		return existing
	}
	t := &Type{Kind: KindGenericParam, Name: m.Name}
	markerCache[m] = t
	return t
}

// MarkerType is the exported form of markerType, used by the type builder
// when constructing a generic type's member table against its own
// parameter markers.
func MarkerType(m *GenericParamMarker) *Type { return markerType(m) }

// CommonGenericAncestor walks two generic inheritance chains (each type's
// own history plus itself) and returns the most specific type that appears
// in both. Used by the checker's generic-to-generic conversion rule.
func CommonGenericAncestor(a, b *Type) *Type {
	achain := append(append([]*Type{}, a.GenericInheritance...), a)
	bset := map[*Type]bool{}
	for _, t := range append(append([]*Type{}, b.GenericInheritance...), b) {
		bset[t] = true
	}
	for i := len(achain) - 1; i >= 0; i-- {
		if bset[achain[i]] {
			return achain[i]
		}
	}
	return nil
}
