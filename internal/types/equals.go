package types

// Equals implements type identity: structural equality for
// primitive/integral/float types (by kind, width and signedness, so
// separately constructed instances of the same primitive compare equal),
// and nominal
// equality (by underlying composition) for composed/generic types.
// GenericParam markers compare equal only by shared identity.
func (a *Type) Equals(b *Type) bool {
	return equalsVisited(a, b, map[[2]*Type]bool{})
}

func equalsVisited(a, b *Type, seen map[[2]*Type]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind == KindThis {
		return equalsVisited(a.Resolve(), b, seen)
	}
	if b.Kind == KindThis {
		return equalsVisited(a, b.Resolve(), seen)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindVoid, KindBool:
		return true
	case KindIntegral:
		ai, _ := a.IntegralInfo()
		bi, _ := b.IntegralInfo()
		return ai == bi
	case KindFloat:
		return a.Size != nil && b.Size != nil && *a.Size == *b.Size
	case KindGenericParam:
		// Identity already checked above via a == b; distinct markers
		// never compare equal.
		return false
	}

	key := [2]*Type{a, b}
	if seen[key] {
		return true // assume equal to break composition cycles (this-cycles)
	}
	seen[key] = true

	if a.Name != b.Name {
		return false
	}
	if !callableEquals(a.Callable, b.Callable, seen) {
		return false
	}
	if !indexableEquals(a.Indexable, b.Indexable, seen) {
		return false
	}
	if !membersEqual(a.Instance, b.Instance, seen) {
		return false
	}
	if !membersEqual(a.Static, b.Static, seen) {
		return false
	}
	return true
}

func callableEquals(a, b *Callable, seen map[[2]*Type]bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if !equalsVisited(a.Params[i], b.Params[i], seen) {
			return false
		}
	}
	return equalsVisited(a.Return, b.Return, seen)
}

func indexableEquals(a, b *Indexable, seen map[[2]*Type]bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Index) != len(b.Index) {
		return false
	}
	for i := range a.Index {
		if !equalsVisited(a.Index[i], b.Index[i], seen) {
			return false
		}
	}
	return equalsVisited(a.Element, b.Element, seen)
}

func membersEqual(a, b *Members, seen map[[2]*Type]bool) bool {
	if a == nil || b == nil {
		return a == b || (a != nil && a.Len() == 0) || (b != nil && b.Len() == 0)
	}
	if a.Len() != b.Len() {
		return false
	}
	for _, n := range a.Names() {
		at, _ := a.Get(n)
		bt, ok := b.Get(n)
		if !ok || !equalsVisited(at, bt, seen) {
			return false
		}
	}
	return true
}

// InheritsFrom reports whether t has base in its transitive closure of
// Inherits, used for fallthrough conversion checks.
func (t *Type) InheritsFrom(base *Type) bool {
	return t.inheritsFromVisited(base, map[*Type]bool{})
}

func (t *Type) inheritsFromVisited(base *Type, seen map[*Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	for _, parent := range t.Inherits {
		if parent.Equals(base) || parent.inheritsFromVisited(base, seen) {
			return true
		}
	}
	return false
}

// CommonAncestor finds a type reachable from both a's and b's transitive
// Inherits closure (including a and b themselves).
func CommonAncestor(a, b *Type) *Type {
	aClosure := closureOf(a)
	for _, cand := range closureOf(b) {
		for _, ac := range aClosure {
			if ac.Equals(cand) {
				return ac
			}
		}
	}
	return nil
}

func closureOf(t *Type) []*Type {
	out := []*Type{t}
	seen := map[*Type]bool{t: true}
	queue := append([]*Type{}, t.Inherits...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, cur.Inherits...)
	}
	return out
}
