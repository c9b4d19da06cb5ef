// Package emitter lowers a checked program into a binfmt.Binary: it walks
// reachable function bodies, assigns each a stable id through reservation,
// and emits a byte buffer per function plus the source map entries tying
// emitted ranges back to source locations.
package emitter

import "fu/internal/bytecode"

// StorageKind discriminates where a lowered expression's value currently
// lives.
type StorageKind int

const (
	// StorageArguments is a slot in the current frame's argument tuple.
	StorageArguments StorageKind = iota
	// StorageLocals is a slot in the current frame's local vector.
	StorageLocals
	// StorageStack means the value is already materialized on top of the
	// evaluation stack.
	StorageStack
	// StorageStatic is a module-level static/constant value.
	StorageStatic
	// StorageHeap is a member slot inside a heap-allocated reference.
	StorageHeap
)

// StorageDescriptor is what lowering an expression produces: where its
// value lives, its numeric/reference type, and (for argument, local and
// heap storage) the slot it was found at. The declaration the value came
// from is not recorded.
type StorageDescriptor struct {
	Kind StorageKind
	Type ValueType
	Slot int // meaningful for Arguments/Locals/Heap
}

// convertToStack emits the minimal byte sequence to materialize d on top
// of the evaluation stack, converting to target if it isn't already
// d.Type.
func (e *funcEmitter) convertToStack(c *bytecode.Chunk, d StorageDescriptor, target ValueType) {
	e.retrieve(c, d)
	if d.Type != target {
		emitConvert(c, bytecode.CHECKED_CONVERT, target)
	}
}

// retrieve moves non-stack storage onto the stack without conversion.
func (e *funcEmitter) retrieve(c *bytecode.Chunk, d StorageDescriptor) {
	switch d.Kind {
	case StorageStack:
		// already there
	case StorageArguments:
		c.WriteOp(bytecode.PUSH_ARG)
		c.WriteByte(byte(d.Slot))
	case StorageLocals:
		c.WriteOp(bytecode.PUSH_LOCAL)
		c.WriteByte(byte(d.Slot))
	case StorageHeap:
		c.WriteOp(bytecode.PUSH_REF)
		c.WriteByte(byte(d.Slot))
	case StorageStatic:
		// Statics are assembled as ordinary PUSH_LITERAL sequences at their
		// use site; nothing further to retrieve.
	}
}
