package vm

import (
	"math"
	"testing"

	"fu/internal/binfmt"
	"fu/internal/bytecode"
)

func program(build func(c *bytecode.Chunk)) *binfmt.Binary {
	c := bytecode.NewChunk()
	build(c)
	b := binfmt.NewBinary()
	b.Code = c.Code
	b.Entrypoint = 0
	return b
}

func writeLiteral(c *bytecode.Chunk, t bytecode.NumericType, v int64) {
	c.WriteOp(bytecode.PUSH_LITERAL)
	c.WriteByte(byte(t))
	switch t {
	case bytecode.TypeU8, bytecode.TypeI8, bytecode.TypeBool:
		c.WriteByte(byte(v))
	case bytecode.TypeU16, bytecode.TypeI16:
		c.WriteU16(uint16(v))
	case bytecode.TypeU32, bytecode.TypeI32:
		c.WriteU32(uint32(v))
	default:
		c.WriteU32(uint32(v >> 32))
		c.WriteU32(uint32(v))
	}
}

func TestRunSimpleAdditionReturnsExitCode(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		writeLiteral(c, bytecode.TypeI32, 2)
		writeLiteral(c, bytecode.TypeI32, 3)
		c.WriteOp(bytecode.CHECKED_ADD)
		c.WriteByte(byte(bytecode.TypeI32))
		c.WriteOp(bytecode.RET)
	})

	code, err := New(b).Run(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 5 {
		t.Fatalf("got exit code %d, want 5", code)
	}
}

func TestRunCheckedAddOverflowTerminatesWithRuntimeError(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		writeLiteral(c, bytecode.TypeI8, 120)
		writeLiteral(c, bytecode.TypeI8, 120)
		c.WriteOp(bytecode.CHECKED_ADD)
		c.WriteByte(byte(bytecode.TypeI8))
		c.WriteOp(bytecode.RET)
	})

	_, err := New(b).Run(nil)
	if err == nil {
		t.Fatalf("expected an overflow runtime error")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
}

func TestRunChecked64BitAddOverflowTraps(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		writeLiteral(c, bytecode.TypeI64, math.MaxInt64)
		writeLiteral(c, bytecode.TypeI64, 1)
		c.WriteOp(bytecode.CHECKED_ADD)
		c.WriteByte(byte(bytecode.TypeI64))
		c.WriteOp(bytecode.RET)
	})

	_, err := New(b).Run(nil)
	if err == nil {
		t.Fatalf("expected an i64 overflow runtime error, not a wrapped result")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
}

func TestRunChecked64BitUnsignedMulOverflowTraps(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		// -1's bit pattern is the u64 maximum.
		writeLiteral(c, bytecode.TypeU64, -1)
		writeLiteral(c, bytecode.TypeU64, 2)
		c.WriteOp(bytecode.CHECKED_MUL)
		c.WriteByte(byte(bytecode.TypeU64))
		c.WriteOp(bytecode.RET)
	})

	_, err := New(b).Run(nil)
	if err == nil {
		t.Fatalf("expected a u64 overflow runtime error")
	}
}

func TestRunChecked64BitMinDividedByMinusOneTraps(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		writeLiteral(c, bytecode.TypeI64, math.MinInt64)
		writeLiteral(c, bytecode.TypeI64, -1)
		c.WriteOp(bytecode.CHECKED_IDIV)
		c.WriteByte(byte(bytecode.TypeI64))
		c.WriteOp(bytecode.RET)
	})

	_, err := New(b).Run(nil)
	if err == nil {
		t.Fatalf("expected an overflow runtime error for MinInt64 / -1")
	}
}

func TestRunDivisionByZeroTerminatesWithRuntimeError(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		writeLiteral(c, bytecode.TypeI32, 10)
		writeLiteral(c, bytecode.TypeI32, 0)
		c.WriteOp(bytecode.CHECKED_IDIV)
		c.WriteByte(byte(bytecode.TypeI32))
		c.WriteOp(bytecode.RET)
	})

	_, err := New(b).Run(nil)
	if err == nil {
		t.Fatalf("expected a division by zero runtime error")
	}
}

func TestRunJZSkipsWhenStackTopIsFalse(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		writeLiteral(c, bytecode.TypeBool, 0)
		c.WriteOp(bytecode.JZ)
		jzPos := c.WriteI16Placeholder()

		// Taken only if JZ fails to skip: pushes 1 and returns early.
		writeLiteral(c, bytecode.TypeI32, 1)
		c.WriteOp(bytecode.RET)

		target := c.Len()
		c.PatchI16(jzPos, target)
		writeLiteral(c, bytecode.TypeI32, 9)
		c.WriteOp(bytecode.RET)
	})

	code, err := New(b).Run(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 9 {
		t.Fatalf("got exit code %d, want 9 (JZ should have jumped past the early return)", code)
	}
}

func TestRunJZDoesNotPopTheCondition(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		writeLiteral(c, bytecode.TypeBool, 1)
		c.WriteOp(bytecode.JZ)
		jzPos := c.WriteI16Placeholder()
		target := c.Len()
		c.PatchI16(jzPos, target)
		// JZ must not have popped: the bool is still on the stack to return.
		c.WriteOp(bytecode.RET)
	})

	code, err := New(b).Run(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 1 {
		t.Fatalf("got exit code %d, want 1 (the peeked condition itself)", code)
	}
}

func TestRunJMPUnconditional(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		c.WriteOp(bytecode.JMP)
		jmpPos := c.WriteI16Placeholder()

		writeLiteral(c, bytecode.TypeI32, 1)
		c.WriteOp(bytecode.RET)

		target := c.Len()
		c.PatchI16(jmpPos, target)
		writeLiteral(c, bytecode.TypeI32, 7)
		c.WriteOp(bytecode.RET)
	})

	code, err := New(b).Run(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 7 {
		t.Fatalf("got exit code %d, want 7", code)
	}
}

func TestRunCallExportAndReturn(t *testing.T) {
	b := binfmt.NewBinary()

	callee := bytecode.NewChunk()
	writeLiteral(callee, bytecode.TypeI32, 41)
	writeLiteral(callee, bytecode.TypeI32, 1)
	callee.WriteOp(bytecode.CHECKED_ADD)
	callee.WriteByte(byte(bytecode.TypeI32))
	callee.WriteOp(bytecode.RET)

	caller := bytecode.NewChunk()
	caller.WriteOp(bytecode.INIT_ARGS)
	caller.WriteByte(0)
	caller.WriteOp(bytecode.CALL_EXPORT)
	caller.WriteU16(0)
	caller.WriteOp(bytecode.RET)

	calleeAddr := len(caller.Code)
	code := append(append([]byte{}, caller.Code...), callee.Code...)

	b.AddFunction(binfmt.FunctionEntry{Name: "callee", Address: uint32(calleeAddr)})
	b.Code = code
	b.Entrypoint = 0

	exit, err := New(b).Run(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit != 42 {
		t.Fatalf("got exit code %d, want 42", exit)
	}
}

func TestRunRecursionDepthCapped(t *testing.T) {
	b := binfmt.NewBinary()

	c := bytecode.NewChunk()
	c.WriteOp(bytecode.INIT_ARGS)
	c.WriteByte(0)
	c.WriteOp(bytecode.CALL_EXPORT)
	c.WriteU16(0)
	c.WriteOp(bytecode.RET)

	b.AddFunction(binfmt.FunctionEntry{Name: "recurse", Address: 0})
	b.Code = c.Code
	b.Entrypoint = 0

	_, err := New(b).Run(nil)
	if err == nil {
		t.Fatalf("expected a recursion depth error")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
}

func TestRunCheckedConvertPreservesInRangeValue(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		writeLiteral(c, bytecode.TypeI32, 100)
		c.WriteOp(bytecode.CHECKED_CONVERT)
		c.WriteByte(byte(bytecode.TypeI32))
		c.WriteOp(bytecode.RET)
	})

	code, err := New(b).Run(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 100 {
		t.Fatalf("PUSH_LITERAL i32 100; CHECKED_CONVERT i32 should leave the value unchanged, got %d", code)
	}
}

func TestRunCleanTerminationWithNoReturnValuePropagatesZero(t *testing.T) {
	b := program(func(c *bytecode.Chunk) {
		c.WriteOp(bytecode.RET)
	})

	code, err := New(b).Run(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("got exit code %d, want 0 for an absent return value", code)
	}
}
