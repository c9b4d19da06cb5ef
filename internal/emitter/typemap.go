package emitter

import "fu/internal/bytecode"

// ValueType is the emitter's compact view of a Fu type: either one of the
// fixed numeric tags, or a composed (heap-reference) type identified by
// name. Unlike internal/types.Type this carries no member/generic detail;
// the emitter only needs enough to pick opcode variants and type-table ids.
type ValueType struct {
	Numeric   bytecode.NumericType
	IsNumeric bool
	Name      string // composed type name when !IsNumeric; "void" for void
}

func numericType(t bytecode.NumericType) ValueType {
	return ValueType{Numeric: t, IsNumeric: true}
}

func composedType(name string) ValueType {
	return ValueType{Name: name}
}

var voidType = composedType("void")

var numericNames = map[string]bytecode.NumericType{
	"u8": bytecode.TypeU8, "u16": bytecode.TypeU16, "u32": bytecode.TypeU32, "u64": bytecode.TypeU64,
	"i8": bytecode.TypeI8, "i16": bytecode.TypeI16, "i32": bytecode.TypeI32, "i64": bytecode.TypeI64,
	"usize_t": bytecode.TypeUSize, "size_t": bytecode.TypeSize,
	"f16": bytecode.TypeF16, "f32": bytecode.TypeF32, "f64": bytecode.TypeF64,
	"bool": bytecode.TypeBool,
}

// valueTypeForName resolves a source type name (as it appears on a
// TypeExpr) to the emitter's compact ValueType.
func valueTypeForName(name string) ValueType {
	if nt, ok := numericNames[name]; ok {
		return numericType(nt)
	}
	return composedType(name)
}

// isIntegral reports whether t is one of the fixed-width integer tags
// (excludes float and bool).
func isIntegral(t bytecode.NumericType) bool {
	switch t {
	case bytecode.TypeF16, bytecode.TypeF32, bytecode.TypeF64, bytecode.TypeBool:
		return false
	default:
		return true
	}
}

func isFloat(t bytecode.NumericType) bool {
	switch t {
	case bytecode.TypeF16, bytecode.TypeF32, bytecode.TypeF64:
		return true
	default:
		return false
	}
}

func isSigned(t bytecode.NumericType) bool {
	switch t {
	case bytecode.TypeI8, bytecode.TypeI16, bytecode.TypeI32, bytecode.TypeI64, bytecode.TypeSize:
		return true
	default:
		return false
	}
}

func bitWidth(t bytecode.NumericType) int {
	switch t {
	case bytecode.TypeU8, bytecode.TypeI8, bytecode.TypeBool:
		return 8
	case bytecode.TypeU16, bytecode.TypeI16, bytecode.TypeF16:
		return 16
	case bytecode.TypeU32, bytecode.TypeI32, bytecode.TypeF32:
		return 32
	default:
		return 64
	}
}

// widerNumericType picks the operand type arithmetic should be carried out
// in: the wider of a and b, preferring float over integral and signed over
// unsigned at equal width.
func widerNumericType(a, b bytecode.NumericType) bytecode.NumericType {
	if isFloat(a) != isFloat(b) {
		if isFloat(a) {
			return a
		}
		return b
	}
	if bitWidth(a) != bitWidth(b) {
		if bitWidth(a) > bitWidth(b) {
			return a
		}
		return b
	}
	if isSigned(a) {
		return a
	}
	return b
}

// arithOpFor selects CHECKED_ADD/SUB/MUL/IDIV/FDIV for op over operand
// type t; division over a float operand type uses CHECKED_FDIV.
func arithOpFor(kind string, t bytecode.NumericType) bytecode.OpCode {
	if isFloat(t) {
		if kind == "/" {
			return bytecode.CHECKED_FDIV
		}
	}
	switch kind {
	case "+":
		return bytecode.CHECKED_ADD
	case "-":
		return bytecode.CHECKED_SUB
	case "*":
		return bytecode.CHECKED_MUL
	case "/":
		return bytecode.CHECKED_IDIV
	}
	return bytecode.NOP
}

func emitConvert(c *bytecode.Chunk, op bytecode.OpCode, target ValueType) {
	c.WriteOp(op)
	if target.IsNumeric {
		c.WriteByte(byte(target.Numeric))
	} else {
		c.WriteByte(byte(bytecode.TypeU64)) // reference-typed values carry no numeric tag; unused by the VM's ref path
	}
}
