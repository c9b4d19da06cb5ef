// Package vm implements the stack-machine runtime: a call-frame stack, a
// refcounted heap, checked arithmetic and conversion, and the JZ/JMP
// control-flow primitives the emitter's bytecode drives.
package vm

import "fu/internal/bytecode"

// Kind discriminates which field of a Value is meaningful.
type Kind byte

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindRef
)

// Value is a single stack/local/argument slot. Int holds every integral
// kind's bit pattern (fixed-width integrals up to 64 bits fit in an
// int64's representation); NumType records which of the fixed numeric tags
// produced it, needed for checked-arithmetic range tests.
type Value struct {
	Kind    Kind
	NumType bytecode.NumericType
	Int     int64
	Float   float64
	Ref     *Ref
}

func IntValue(t bytecode.NumericType, v int64) Value {
	return Value{Kind: KindInt, NumType: t, Int: v}
}

func FloatValue(t bytecode.NumericType, v float64) Value {
	return Value{Kind: KindFloat, NumType: t, Float: v}
}

func BoolValue(v bool) Value {
	i := int64(0)
	if v {
		i = 1
	}
	return Value{Kind: KindBool, NumType: bytecode.TypeBool, Int: i}
}

func RefValue(r *Ref) Value { return Value{Kind: KindRef, Ref: r} }

func (v Value) Bool() bool { return v.Int != 0 }

// Ref is a heap-allocated reference-typed object: either an array (a
// contiguous element vector) or a composed-type instance (a member slot
// vector). NewRef starts RefCount at 1 and Retain/Release adjust it; the
// VM's dispatch loop calls neither, so the count does not track the
// handles held on stacks and in slots, and no object is ever released.
type Ref struct {
	TypeID   uint16
	IsArray  bool
	Elements []Value // array elements, or composed-type member slots
	RefCount int
}

func NewRef(typeID uint16, isArray bool, size int) *Ref {
	return &Ref{TypeID: typeID, IsArray: isArray, Elements: make([]Value, size), RefCount: 1}
}

// Retain increments the handle count for a newly shared reference.
func (r *Ref) Retain() { r.RefCount++ }

// Release drops one handle; the object is dead once the count reaches
// zero. Go's GC reclaims the backing memory, so nothing is freed manually.
func (r *Ref) Release() {
	r.RefCount--
}

// NewStringRef builds a heap Array<u8> ref from a Go string, used to seed
// argv into the entry frame.
func NewStringRef(s string) *Ref {
	bs := []byte(s)
	r := NewRef(0, true, len(bs))
	for i, b := range bs {
		r.Elements[i] = IntValue(bytecode.TypeU8, int64(b))
	}
	return r
}
