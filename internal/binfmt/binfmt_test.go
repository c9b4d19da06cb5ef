package binfmt

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := NewBinary()
	i32 := b.AddType(TypeEntry{Tag: TypePrimitive, Name: "i32"})
	voidT := b.AddType(TypeEntry{Tag: TypePrimitive, Name: "void"})
	fnType := b.AddType(TypeEntry{
		Tag:      TypeComposed,
		Name:     "main(Array<string>)",
		Callable: &CallableSig{ReturnType: i32, Params: []uint16{i32}},
	})
	_ = voidT

	b.Code = []byte{1, 2, 3, 4, 5}
	b.AddFunction(FunctionEntry{Name: "main", Scope: "<global>", Signature: fnType, Address: 0})
	b.Entrypoint = 0
	b.SourceMap = append(b.SourceMap, SourceMapEntry{
		File: "main.fu", SeekStart: 0, SeekEnd: 10,
		LineStart: 1, LineEnd: 1, ColStart: 0, ColEnd: 9,
		CodeOffset: 0, CodeLength: 5,
	})

	encoded := b.Encode()
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.IsLibrary {
		t.Fatalf("expected IsLibrary false")
	}
	if decoded.Entrypoint != 0 {
		t.Fatalf("got entrypoint %d, want 0", decoded.Entrypoint)
	}
	if !bytes.Equal(decoded.Code, b.Code) {
		t.Fatalf("code mismatch: got % x, want % x", decoded.Code, b.Code)
	}
	if len(decoded.Functions) != 1 || decoded.Functions[0].Name != "main" {
		t.Fatalf("expected one function named main, got %+v", decoded.Functions)
	}
	if len(decoded.Types) != 3 {
		t.Fatalf("expected 3 type entries, got %d", len(decoded.Types))
	}
	if decoded.Types[2].Callable == nil || decoded.Types[2].Callable.ReturnType != i32 {
		t.Fatalf("expected the callable type's return type index to round-trip")
	}
	if len(decoded.SourceMap) != 1 || decoded.SourceMap[0].File != "main.fu" {
		t.Fatalf("expected one source map entry for main.fu, got %+v", decoded.SourceMap)
	}
}

func TestAddTypeDeduplicatesStructurally(t *testing.T) {
	b := NewBinary()
	a := b.AddType(TypeEntry{Tag: TypePrimitive, Name: "i32"})
	c := b.AddType(TypeEntry{Tag: TypePrimitive, Name: "i32"})
	if a != c {
		t.Fatalf("expected structurally identical type entries to dedup to the same index")
	}
	if len(b.Types) != 1 {
		t.Fatalf("expected exactly one type entry, got %d", len(b.Types))
	}
}

func TestEncodeStartsWithMagic(t *testing.T) {
	b := NewBinary()
	b.Code = []byte{}
	encoded := b.Encode()
	if !bytes.HasPrefix(encoded, []byte(Magic)) {
		t.Fatalf("encoded binary does not start with the magic string")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("not-a-fu-binary-at-all-padding-padding"))
	if err == nil {
		t.Fatalf("expected an error decoding a bad magic string")
	}
}

func TestIsLibraryOmitsEntrypoint(t *testing.T) {
	b := NewBinary()
	b.IsLibrary = true
	b.Code = []byte{9}
	encoded := b.Encode()
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !decoded.IsLibrary {
		t.Fatalf("expected IsLibrary true to round-trip")
	}
}
