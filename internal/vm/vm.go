package vm

import (
	"encoding/binary"

	"fu/internal/binfmt"
	"fu/internal/bytecode"
)

// MaxCallDepth bounds call-frame recursion; exceeding it fails the
// program.
const MaxCallDepth = 100

// VM executes one loaded binary's code.
type VM struct {
	Binary *binfmt.Binary

	frames       []*Frame
	nextCallArgs []Value
}

func New(b *binfmt.Binary) *VM {
	return &VM{Binary: b}
}

// Run constructs the entry frame from argv and executes until the frame
// stack empties, returning the process exit code derived from the final
// return value (0 if absent).
func (m *VM) Run(argv []string) (int, error) {
	argvRef := NewRef(0, true, len(argv))
	for i, s := range argv {
		argvRef.Elements[i] = RefValue(NewStringRef(s))
	}
	entry := NewFrame([]Value{RefValue(argvRef)}, -1)
	m.frames = []*Frame{entry}

	ip := int(m.Binary.Entrypoint)
	code := m.Binary.Code

	for {
		if ip < 0 || ip >= len(code) {
			return 0, &RuntimeError{Message: "instruction pointer out of bounds"}
		}
		op := bytecode.OpCode(code[ip])
		ip++

		frame := m.frames[len(m.frames)-1]

		switch op {
		case bytecode.NOP:
			// no-op

		case bytecode.PUSH_LITERAL:
			nt := bytecode.NumericType(code[ip])
			ip++
			v, n := decodeLiteral(nt, code[ip:])
			ip += n
			frame.Push(v)

		case bytecode.PUSH_ARG:
			slot := int(code[ip])
			ip++
			frame.Push(frame.Args[slot])

		case bytecode.PUSH_LOCAL:
			slot := int(code[ip])
			ip++
			frame.Push(frame.Locals[slot])

		case bytecode.POP_LOCAL:
			slot := int(code[ip])
			ip++
			for slot >= len(frame.Locals) {
				frame.Locals = append(frame.Locals, Value{})
			}
			frame.Locals[slot] = frame.Pop()

		case bytecode.INIT_LOCAL:
			frame.Locals = append(frame.Locals, frame.Pop())

		case bytecode.PUSH_REF:
			slot := int(code[ip])
			ip++
			v := frame.Pop()
			if v.Kind != KindRef {
				return 0, &RuntimeError{Message: "PUSH_REF on a non-reference value"}
			}
			for slot >= len(v.Ref.Elements) {
				v.Ref.Elements = append(v.Ref.Elements, Value{})
			}
			frame.Push(v.Ref.Elements[slot])

		case bytecode.PUSH_ARRAY:
			idx := frame.Pop()
			ref := frame.Pop()
			if ref.Kind != KindRef {
				return 0, &RuntimeError{Message: "PUSH_ARRAY on a non-reference value"}
			}
			i := int(idx.Int)
			if i < 0 || i >= len(ref.Ref.Elements) {
				return 0, &RuntimeError{Message: "array index out of bounds"}
			}
			frame.Push(ref.Ref.Elements[i])

		case bytecode.CHECKED_CONVERT:
			nt := bytecode.NumericType(code[ip])
			ip++
			v, err := checkedConvert(nt, frame.Pop())
			if err != nil {
				return 0, err
			}
			frame.Push(v)

		case bytecode.UNCHECKED_CONVERT:
			nt := bytecode.NumericType(code[ip])
			ip++
			frame.Push(uncheckedConvert(nt, frame.Pop()))

		case bytecode.RET:
			var result Value
			hasResult := len(frame.Stack) > 0
			if hasResult {
				result = frame.Pop()
			}
			returnAddr := frame.ReturnAddress
			m.frames = m.frames[:len(m.frames)-1]
			if len(m.frames) == 0 {
				return exitCodeFor(result, hasResult), nil
			}
			ip = returnAddr
			if hasResult {
				m.frames[len(m.frames)-1].Push(result)
			}

		case bytecode.CHECKED_ADD, bytecode.CHECKED_SUB, bytecode.CHECKED_MUL,
			bytecode.CHECKED_IDIV, bytecode.CHECKED_FDIV:
			nt := bytecode.NumericType(code[ip])
			ip++
			b := frame.Pop()
			a := frame.Pop()
			v, err := checkedArith(op, nt, a, b)
			if err != nil {
				return 0, err
			}
			frame.Push(v)

		case bytecode.CALL_EXPORT:
			fnID := binary.BigEndian.Uint16(code[ip:])
			ip += 2
			var err error
			ip, err = m.call(int(fnID), ip)
			if err != nil {
				return 0, err
			}

		case bytecode.TAIL_EXPORT:
			fnID := binary.BigEndian.Uint16(code[ip:])
			ip += 2
			fn := m.Binary.Functions[fnID]
			frame.Args = m.nextCallArgs
			m.nextCallArgs = nil
			frame.Locals = nil
			frame.Stack = nil
			ip = int(fn.Address)

		case bytecode.INIT_ARGS:
			count := int(code[ip])
			ip++
			args := make([]Value, count)
			for i := count - 1; i >= 0; i-- {
				args[i] = frame.Pop()
			}
			m.nextCallArgs = args

		case bytecode.NEW:
			typeID := binary.BigEndian.Uint16(code[ip:])
			ip += 2
			frame.Push(RefValue(NewRef(typeID, false, 0)))

		case bytecode.JMP:
			rel := int16(binary.BigEndian.Uint16(code[ip:]))
			ip += 2
			ip += int(rel)

		case bytecode.JZ:
			rel := int16(binary.BigEndian.Uint16(code[ip:]))
			ip += 2
			if !frame.Peek().Bool() {
				ip += int(rel)
			}

		case bytecode.CMP:
			b := frame.Pop()
			a := frame.Pop()
			frame.Push(BoolValue(valuesEqual(a, b)))

		case bytecode.LESS:
			b := frame.Pop()
			a := frame.Pop()
			frame.Push(BoolValue(valuesLess(a, b)))

		default:
			return 0, &RuntimeError{Message: "unknown opcode"}
		}
	}
}

func (m *VM) call(fnID int, returnIP int) (int, error) {
	if len(m.frames) >= MaxCallDepth {
		return 0, &RuntimeError{Message: "recursion depth exceeded"}
	}
	fn := m.Binary.Functions[fnID]
	args := m.nextCallArgs
	m.nextCallArgs = nil
	frame := NewFrame(args, returnIP)
	m.frames = append(m.frames, frame)
	return int(fn.Address), nil
}

func exitCodeFor(v Value, has bool) int {
	if !has {
		return 0
	}
	return int(v.Int)
}

func valuesEqual(a, b Value) bool {
	if a.Kind == KindFloat || b.Kind == KindFloat {
		return floatOf(a) == floatOf(b)
	}
	if a.Kind == KindRef || b.Kind == KindRef {
		return a.Ref == b.Ref
	}
	return a.Int == b.Int
}

func valuesLess(a, b Value) bool {
	if a.Kind == KindFloat || b.Kind == KindFloat {
		return floatOf(a) < floatOf(b)
	}
	return a.Int < b.Int
}

func floatOf(v Value) float64 {
	if v.Kind == KindFloat {
		return v.Float
	}
	return float64(v.Int)
}
