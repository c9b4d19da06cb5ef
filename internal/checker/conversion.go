// Package checker implements the three-pass semantic check: populate
// (gather declarations, build the type graph), optimize (fold literal
// arithmetic), check (validate each node exactly once).
package checker

import (
	"fmt"

	"fu/internal/ast"
	"fu/internal/diagnostics"
	"fu/internal/types"
)

// exponentBitsFor returns the IEEE-754 exponent field width for a float
// type's byte size, used by the float→float conversion rule.
func exponentBitsFor(byteSize int) int {
	switch byteSize {
	case 2:
		return 5
	case 4:
		return 8
	case 8:
		return 11
	default:
		return 0
	}
}

// CheckConversion validates converting a value of type from to a value of
// type to, reporting warnings/errors to diags. It returns whether the
// conversion is permitted at all (errors => false; warnings still => true).
func CheckConversion(from, to *types.Type, loc *ast.Location, diags *diagnostics.Sink) bool {
	from = from.Resolve()
	to = to.Resolve()

	if from.Equals(to) {
		return true
	}

	if from.Kind == types.KindVoid || to.Kind == types.KindVoid {
		diags.Report(diagnostics.Errorf(loc, "there are no conversions to or from void"))
		return false
	}

	// The type model defines no enum kind, so no enum conversion rule
	// can trigger here.

	switch {
	case from.IsIntegral() && to.IsIntegral():
		fi, _ := from.IntegralInfo()
		ti, _ := to.IntegralInfo()
		fmin, fmax := integralRange(fi)
		tmin, tmax := integralRange(ti)
		// integralRange tops out at the int64 maximum, so a 64-bit unsigned
		// source is compared against a signed destination by signedness.
		unsigned64ToSigned := !fi.Signed && fi.Bits >= 64 && ti.Signed
		if fmin < tmin || fmax > tmax || unsigned64ToSigned {
			diags.Report(diagnostics.Warningf(loc,
				"narrowing when implicitly converting from a %s (%dbit %s) to a %s (%dbit %s)",
				from.Name, fi.Bits, signedness(fi.Signed), to.Name, ti.Bits, signedness(ti.Signed)))
		}
		return true

	case from.IsFloat() && to.IsIntegral():
		diags.Report(diagnostics.Warningf(loc, "loss of precision converting from a %s to a %s", from.Name, to.Name))
		return true

	case from.IsFloat() && to.IsFloat():
		if to.Size != nil && from.Size != nil && exponentBitsFor(*to.Size) < exponentBitsFor(*from.Size) {
			diags.Report(diagnostics.Warningf(loc, "loss of floating point precision converting from a %s to a %s", from.Name, to.Name))
		}
		return true

	case to.Kind == types.KindGenericParam:
		return true

	case from.EffectiveCallable() != nil && to.EffectiveCallable() != nil:
		return checkCallableConversion(from, to, loc, diags)

	case to.IsInterface:
		return checkSatisfiesInterface(from, to, loc, diags)

	case from.GenericParams != nil && to.GenericParams != nil:
		return checkGenericConversion(from, to, loc, diags)

	default:
		if common := types.CommonAncestor(from, to); common != nil {
			return true
		}
		diags.Report(diagnostics.Errorf(loc, "could not find a conversion between %s and %s", from.Name, to.Name))
		return false
	}
}

func signedness(signed bool) string {
	if signed {
		return "signed"
	}
	return "unsigned"
}

func integralRange(info types.IntegralInfo) (min, max int64) {
	if info.Signed {
		return -(int64(1) << (info.Bits - 1)), int64(1)<<(info.Bits-1) - 1
	}
	if info.Bits >= 64 {
		return 0, 1<<63 - 1 // approximate; u64's true max exceeds int64's range
	}
	return 0, int64(1)<<info.Bits - 1
}

// checkCallableConversion structurally checks two callable signatures:
// identical parameter count with each parameter convertible, and a
// convertible return type.
func checkCallableConversion(from, to *types.Type, loc *ast.Location, diags *diagnostics.Sink) bool {
	fc, tc := from.EffectiveCallable(), to.EffectiveCallable()
	if len(fc.Params) != len(tc.Params) {
		diags.Report(diagnostics.Errorf(loc, "callable type mismatch: %s and %s take a different number of parameters", from.Name, to.Name))
		return false
	}
	ok := true
	sub := diagnostics.NewSink()
	for i := range fc.Params {
		if !CheckConversion(fc.Params[i], tc.Params[i], loc, sub) {
			ok = false
		}
	}
	if fc.Return != nil && tc.Return != nil {
		if !CheckConversion(fc.Return, tc.Return, loc, sub) {
			ok = false
		}
	}
	if len(sub.All()) > 0 {
		diags.Report(diagnostics.New(diagnostics.Error, "callable type mismatch:", loc, sub.All()...))
	}
	return ok
}

// checkGenericConversion walks the common generic-inheritance ancestry of
// two generic types and conversion-checks each shared parameter slot.
func checkGenericConversion(from, to *types.Type, loc *ast.Location, diags *diagnostics.Sink) bool {
	common := types.CommonGenericAncestor(from, to)
	if common == nil {
		diags.Report(diagnostics.Errorf(loc, "could not find a common generic ancestor between %s and %s", from.Name, to.Name))
		return false
	}
	for _, name := range common.GenericParams.Names() {
		fromBinding, _ := from.GenericParams.Get(name)
		toBinding, _ := to.GenericParams.Get(name)
		if fromBinding.Bound == nil || toBinding.Bound == nil {
			continue
		}
		if !CheckConversion(fromBinding.Bound, toBinding.Bound, loc, diags) {
			return false
		}
	}
	return true
}

// checkSatisfiesInterface checks that subject conforms to interface: every
// interface member must be present on the subject (directly or via
// inheritance) with an identical type, unless the interface supplies a
// default implementation for that member.
func checkSatisfiesInterface(subject, iface *types.Type, loc *ast.Location, diags *diagnostics.Sink) bool {
	if subject.InheritsFrom(iface) {
		return true
	}
	if iface.Instance == nil {
		return true
	}

	var errs []*diagnostics.Diagnostic
	for _, name := range iface.Instance.Names() {
		ifaceMemberType, _ := iface.Instance.Get(name)
		subjectMemberType := lookupMemberInClosure(subject, name)
		if subjectMemberType == nil {
			if !iface.InterfaceDefaults[name] {
				errs = append(errs, diagnostics.Errorf(loc, "missing %s.%s", iface.Name, name))
			}
			continue
		}
		if !subjectMemberType.Equals(ifaceMemberType) {
			errs = append(errs, diagnostics.Errorf(loc, "%s.%s is a %s, while %s.%s is a %s",
				subject.Name, name, subjectMemberType.Name, iface.Name, name, ifaceMemberType.Name))
		}
	}
	if len(errs) == 0 {
		return true
	}
	diags.Report(diagnostics.New(diagnostics.Error,
		fmt.Sprintf("%s does not directly or indirectly implement interface %s", subject.Name, iface.Name),
		loc, errs...))
	return false
}

// lookupMemberInClosure searches subject and its transitive Inherits
// closure for a directly declared instance member named name.
func lookupMemberInClosure(subject *types.Type, name string) *types.Type {
	seen := map[*types.Type]bool{}
	queue := []*types.Type{subject}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if cur.Instance != nil {
			if t, ok := cur.Instance.Get(name); ok {
				return t
			}
		}
		queue = append(queue, cur.Inherits...)
	}
	return nil
}
