package bytecode

import "testing"

func TestWriteOpAndOperands(t *testing.T) {
	c := NewChunk()
	c.WriteOp(PUSH_ARG)
	c.WriteByte(2)
	c.WriteOp(CALL_EXPORT)
	c.WriteU16(7)
	want := []byte{byte(PUSH_ARG), 2, byte(CALL_EXPORT), 0, 7}
	if string(c.Code) != string(want) {
		t.Fatalf("got % x, want % x", c.Code, want)
	}
}

func TestPatchI16RelativeToByteAfterOperand(t *testing.T) {
	c := NewChunk()
	c.WriteOp(JZ)
	pos := c.WriteI16Placeholder()
	c.WriteOp(NOP)
	c.WriteOp(NOP)
	target := c.Len()
	c.PatchI16(pos, target)

	got := int16(uint16(c.Code[pos])<<8 | uint16(c.Code[pos+1]))
	want := int16(target - (pos + 2))
	if got != want {
		t.Fatalf("patched offset = %d, want %d", got, want)
	}
}

func TestPatchLastThreeBytesToTailCall(t *testing.T) {
	c := NewChunk()
	c.WriteOp(CALL_EXPORT)
	c.WriteU16(3)
	c.WriteOp(RET)
	if !c.PatchLastThreeBytesToTailCall() {
		t.Fatalf("expected the trailing call+ret to rewrite to a tail call")
	}
	want := []byte{byte(TAIL_EXPORT), 0, 3}
	if string(c.Code) != string(want) {
		t.Fatalf("got % x, want % x", c.Code, want)
	}
}

func TestPatchLastThreeBytesToTailCallRequiresExactShape(t *testing.T) {
	c := NewChunk()
	c.WriteOp(NOP)
	c.WriteOp(RET)
	if c.PatchLastThreeBytesToTailCall() {
		t.Fatalf("a body that doesn't end in CALL_EXPORT+RET must not be rewritten")
	}
}

func TestPatchLastThreeBytesToTailCallIgnoresLiteralPayloadBytes(t *testing.T) {
	// An i32 literal whose payload contains the CALL_EXPORT byte right
	// before RET must not be mistaken for a trailing call.
	c := NewChunk()
	c.WriteOp(PUSH_LITERAL)
	c.WriteByte(byte(TypeI32))
	c.WriteU32(uint32(byte(CALL_EXPORT))<<16 | 0x0102)
	c.WriteOp(RET)
	if c.PatchLastThreeBytesToTailCall() {
		t.Fatalf("a literal payload byte must not trigger the tail-call rewrite")
	}
}

func TestOpCodeString(t *testing.T) {
	if PUSH_LITERAL.String() != "PUSH_LITERAL" {
		t.Fatalf("got %q", PUSH_LITERAL.String())
	}
}
