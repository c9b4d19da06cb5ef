package bytecode

import "encoding/binary"

// Chunk is the growable byte buffer a single function body is emitted into.
// It carries no constant pool of its own: PUSH_LITERAL operands are encoded
// inline, and the string/type/function tables live in the binary builder
// (internal/binfmt), not per-function.
type Chunk struct {
	Code []byte

	// lastOpPos/prevOpPos track where the two most recent opcodes were
	// written, so the tail-call rewrite can tell a real trailing
	// CALL_EXPORT from a literal payload that happens to contain its byte.
	lastOpPos int
	prevOpPos int
}

func NewChunk() *Chunk { return &Chunk{lastOpPos: -1, prevOpPos: -1} }

// Len returns the current write position, used as a label target when
// patching a forward jump.
func (c *Chunk) Len() int { return len(c.Code) }

func (c *Chunk) WriteOp(op OpCode) {
	c.prevOpPos = c.lastOpPos
	c.lastOpPos = len(c.Code)
	c.Code = append(c.Code, byte(op))
}

func (c *Chunk) WriteByte(b byte) { c.Code = append(c.Code, b) }

func (c *Chunk) WriteU16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
}

func (c *Chunk) WriteU32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
}

func (c *Chunk) WriteI16(v int16) { c.WriteU16(uint16(v)) }

// WriteI16Placeholder reserves two bytes for a relative jump offset not yet
// known, returning the position to patch once the target label is fixed.
func (c *Chunk) WriteI16Placeholder() int {
	pos := c.Len()
	c.WriteI16(0)
	return pos
}

// PatchI16 overwrites the two placeholder bytes at pos with the signed
// relative offset from the byte immediately following the operand to
// target.
func (c *Chunk) PatchI16(pos int, target int) {
	rel := int16(target - (pos + 2))
	binary.BigEndian.PutUint16(c.Code[pos:pos+2], uint16(rel))
}

// PatchLastThreeBytesToTailCall rewrites a trailing `CALL_EXPORT <id>; RET`
// sequence into `TAIL_EXPORT <id>` in place, returning whether the rewrite
// applied.
func (c *Chunk) PatchLastThreeBytesToTailCall() bool {
	n := len(c.Code)
	if n < 4 || c.lastOpPos != n-1 || c.prevOpPos != n-4 {
		return false
	}
	if OpCode(c.Code[n-4]) != CALL_EXPORT || OpCode(c.Code[n-1]) != RET {
		return false
	}
	c.Code[n-4] = byte(TAIL_EXPORT)
	c.Code = c.Code[:n-1]
	c.lastOpPos = c.prevOpPos
	c.prevOpPos = -1
	return true
}
