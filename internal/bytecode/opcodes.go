// Package bytecode defines the one-byte opcode set and the in-memory code
// buffer the emitter writes into and the VM decodes from.
package bytecode

// OpCode is a single one-byte instruction tag.
type OpCode byte

const (
	NOP OpCode = iota
	PUSH_LITERAL
	PUSH_ARG
	PUSH_LOCAL
	POP_LOCAL
	INIT_LOCAL
	PUSH_REF
	PUSH_ARRAY
	CHECKED_CONVERT
	UNCHECKED_CONVERT
	RET
	CHECKED_ADD
	CHECKED_SUB
	CHECKED_MUL
	CHECKED_IDIV
	CHECKED_FDIV
	CALL_EXPORT
	TAIL_EXPORT
	INIT_ARGS
	NEW
	JMP
	JZ
	CMP
	LESS
)

var names = map[OpCode]string{
	NOP:               "NOP",
	PUSH_LITERAL:      "PUSH_LITERAL",
	PUSH_ARG:          "PUSH_ARG",
	PUSH_LOCAL:        "PUSH_LOCAL",
	POP_LOCAL:         "POP_LOCAL",
	INIT_LOCAL:        "INIT_LOCAL",
	PUSH_REF:          "PUSH_REF",
	PUSH_ARRAY:        "PUSH_ARRAY",
	CHECKED_CONVERT:   "CHECKED_CONVERT",
	UNCHECKED_CONVERT: "UNCHECKED_CONVERT",
	RET:               "RET",
	CHECKED_ADD:       "CHECKED_ADD",
	CHECKED_SUB:       "CHECKED_SUB",
	CHECKED_MUL:       "CHECKED_MUL",
	CHECKED_IDIV:      "CHECKED_IDIV",
	CHECKED_FDIV:      "CHECKED_FDIV",
	CALL_EXPORT:       "CALL_EXPORT",
	TAIL_EXPORT:       "TAIL_EXPORT",
	INIT_ARGS:         "INIT_ARGS",
	NEW:               "NEW",
	JMP:               "JMP",
	JZ:                "JZ",
	CMP:               "CMP",
	LESS:              "LESS",
}

func (op OpCode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}

// NumericType is one of the fixed numeric-type tags an opcode operand may
// carry.
type NumericType byte

const (
	TypeU8 NumericType = iota
	TypeU16
	TypeU32
	TypeU64
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeUSize
	TypeSize
	TypeF16
	TypeF32
	TypeF64
	TypeBool
)

var typeNames = map[NumericType]string{
	TypeU8: "u8", TypeU16: "u16", TypeU32: "u32", TypeU64: "u64",
	TypeI8: "i8", TypeI16: "i16", TypeI32: "i32", TypeI64: "i64",
	TypeUSize: "usize_t", TypeSize: "size_t",
	TypeF16: "f16", TypeF32: "f32", TypeF64: "f64",
	TypeBool: "bool",
}

func (t NumericType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}
