// Package binfmt implements the big-endian binary container format the
// emitter assembles a compiled program into and the VM loads a program
// from: a magic string, a flags byte, an optional entrypoint, a
// deduplicated string pool, a structurally-deduplicated type table, a
// function table, a code blob, and a source map.
package binfmt

import (
	"bytes"
	"encoding/binary"
)

const Magic = "foo-binary-v0.0.1"

const (
	FlagIsLibrary byte = 1 << 0
)

// TypeTag discriminates a type table entry's shape.
type TypeTag byte

const (
	TypePrimitive TypeTag = 0
	TypeComposed  TypeTag = 1
)

// CallableSig describes a type entry's optional callable signature: the
// index of its return type in the type table, and the indices of its
// parameter types.
type CallableSig struct {
	ReturnType uint16
	Params     []uint16
}

// TypeEntry is one row of the binary's type table.
type TypeEntry struct {
	Tag      TypeTag
	Name     string // resolved via the string pool at encode/decode time
	Callable *CallableSig
}

// FunctionEntry is one row of the binary's function table: a name, the
// fully-qualified scope it was declared in, the index of its callable
// signature in the type table, and the byte offset of its body in Code.
type FunctionEntry struct {
	Name      string
	Scope     string
	Signature uint16
	Address   uint32
}

// SourceMapEntry ties a span of emitted code back to a source location,
// recorded per-statement and per-expression.
type SourceMapEntry struct {
	File                         string
	SeekStart, SeekEnd           uint32
	LineStart, LineEnd           uint16
	ColStart, ColEnd             uint16
	CodeOffset, CodeLength       uint32
}

// Binary is the fully decoded contents of a compiled program.
type Binary struct {
	IsLibrary  bool
	Entrypoint uint32 // meaningless when IsLibrary
	Types      []TypeEntry
	Functions  []FunctionEntry
	Code       []byte
	SourceMap  []SourceMapEntry

	strings []string          // insertion order, excluding the sentinel ""
	index   map[string]uint32 // value -> byte offset within the string blob
	blobLen uint32
}

// NewBinary constructs an empty binary ready for incremental assembly.
func NewBinary() *Binary {
	// The blob opens with a length-zero entry, so the empty string's id is
	// byte offset 0 and every later entry starts at offset 4 or beyond.
	return &Binary{index: map[string]uint32{"": 0}, blobLen: 4}
}

// intern deduplicates s by value into the string pool, returning its id: the
// byte offset of its length prefix within the string blob.
func (b *Binary) intern(s string) uint32 {
	if off, ok := b.index[s]; ok {
		return off
	}
	off := b.blobLen
	b.strings = append(b.strings, s)
	b.index[s] = off
	b.blobLen += 4 + uint32(len(s))
	return off
}

// AddType appends t to the type table, returning its index, unless a
// structurally identical entry is already present.
func (b *Binary) AddType(t TypeEntry) uint16 {
	for i, existing := range b.Types {
		if typeEntriesEqual(existing, t) {
			return uint16(i)
		}
	}
	b.Types = append(b.Types, t)
	return uint16(len(b.Types) - 1)
}

func typeEntriesEqual(a, b TypeEntry) bool {
	if a.Tag != b.Tag || a.Name != b.Name {
		return false
	}
	if (a.Callable == nil) != (b.Callable == nil) {
		return false
	}
	if a.Callable == nil {
		return true
	}
	if a.Callable.ReturnType != b.Callable.ReturnType {
		return false
	}
	if len(a.Callable.Params) != len(b.Callable.Params) {
		return false
	}
	for i := range a.Callable.Params {
		if a.Callable.Params[i] != b.Callable.Params[i] {
			return false
		}
	}
	return true
}

// AddFunction appends fn to the function table, returning its index.
// Callers are responsible for not adding the same fully-qualified name
// twice: one function id per fully-qualified name.
func (b *Binary) AddFunction(fn FunctionEntry) uint16 {
	b.Functions = append(b.Functions, fn)
	return uint16(len(b.Functions) - 1)
}

// Encode serializes the binary to its big-endian wire format.
func (b *Binary) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)

	var flags byte
	if b.IsLibrary {
		flags |= FlagIsLibrary
	}
	buf.WriteByte(flags)

	if !b.IsLibrary {
		writeU32(&buf, b.Entrypoint)
	}

	// Every name a type or function entry references must be interned
	// before the string blob is serialized, or the indices written below
	// would point past what the blob actually contains.
	for _, t := range b.Types {
		if t.Tag == TypePrimitive || t.Tag == TypeComposed {
			b.intern(t.Name)
		}
	}
	for _, fn := range b.Functions {
		b.intern(fn.Name)
		b.intern(fn.Scope)
	}

	var strBlob bytes.Buffer
	writeU32(&strBlob, 0) // the length-zero sentinel: offset 0 is ""
	for _, s := range b.strings {
		writeU32(&strBlob, uint32(len(s)))
		strBlob.WriteString(s)
	}
	writeU32(&buf, uint32(strBlob.Len()))
	buf.Write(strBlob.Bytes())

	writeU16(&buf, uint16(len(b.Types)))
	for _, t := range b.Types {
		buf.WriteByte(byte(t.Tag))
		if t.Tag == TypePrimitive || t.Tag == TypeComposed {
			writeU32(&buf, b.index[t.Name])
			hasCallable := t.Callable != nil
			writeBool(&buf, hasCallable)
			if hasCallable {
				writeU16(&buf, t.Callable.ReturnType)
				writeU16(&buf, uint16(len(t.Callable.Params)))
				for _, p := range t.Callable.Params {
					writeU16(&buf, p)
				}
			}
		}
	}

	writeU16(&buf, uint16(len(b.Functions)))
	for _, fn := range b.Functions {
		writeU32(&buf, b.index[fn.Name])
		writeU32(&buf, b.index[fn.Scope])
		writeU16(&buf, fn.Signature)
		writeU32(&buf, fn.Address)
	}

	writeU32(&buf, uint32(len(b.Code)))
	buf.Write(b.Code)

	writeU16(&buf, uint16(len(b.SourceMap)))
	for _, sm := range b.SourceMap {
		writeU16(&buf, uint16(len(sm.File)))
		buf.WriteString(sm.File)
		writeU32(&buf, sm.SeekStart)
		writeU32(&buf, sm.SeekEnd)
		writeU16(&buf, sm.LineStart)
		writeU16(&buf, sm.LineEnd)
		writeU16(&buf, sm.ColStart)
		writeU16(&buf, sm.ColEnd)
		writeU32(&buf, sm.CodeOffset)
		writeU32(&buf, sm.CodeLength)
	}

	return buf.Bytes()
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}
