package vm

import (
	"math"
	"math/bits"

	"fu/internal/bytecode"
)

type numericInfo struct {
	bits    int
	signed  bool
	isFloat bool
}

var numericInfoTable = map[bytecode.NumericType]numericInfo{
	bytecode.TypeU8:    {8, false, false},
	bytecode.TypeU16:   {16, false, false},
	bytecode.TypeU32:   {32, false, false},
	bytecode.TypeU64:   {64, false, false},
	bytecode.TypeI8:    {8, true, false},
	bytecode.TypeI16:   {16, true, false},
	bytecode.TypeI32:   {32, true, false},
	bytecode.TypeI64:   {64, true, false},
	bytecode.TypeUSize: {64, false, false},
	bytecode.TypeSize:  {64, true, false},
	bytecode.TypeF16:   {16, true, true},
	bytecode.TypeF32:   {32, true, true},
	bytecode.TypeF64:   {64, true, true},
	bytecode.TypeBool:  {1, false, false},
}

// intRange returns the inclusive bounds an integral numeric type can hold.
func intRange(t bytecode.NumericType) (min, max int64) {
	info := numericInfoTable[t]
	if info.signed {
		if info.bits >= 64 {
			return -1 << 63, 1<<63 - 1
		}
		return -(int64(1) << (info.bits - 1)), int64(1)<<(info.bits-1) - 1
	}
	if info.bits >= 64 {
		return 0, 1<<63 - 1 // approximation: u64's true ceiling exceeds int64's range
	}
	return 0, int64(1)<<info.bits - 1
}

// RuntimeError is a terminating VM failure: an out-of-range checked
// conversion, integer over/underflow, recursion depth exceeded, or an
// instruction pointer out of bounds.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

func checkedIntRange(t bytecode.NumericType, v int64) error {
	min, max := intRange(t)
	if v < min || v > max {
		return &RuntimeError{Message: "checked arithmetic overflow for type " + t.String()}
	}
	return nil
}

// checkedArith applies op to a, b under target numeric type t,
// range-checking the computed result against the target integer type and
// failing on overflow.
func checkedArith(op bytecode.OpCode, t bytecode.NumericType, a, b Value) (Value, error) {
	info := numericInfoTable[t]
	if info.isFloat || op == bytecode.CHECKED_FDIV {
		var r float64
		switch op {
		case bytecode.CHECKED_ADD:
			r = a.Float + b.Float
		case bytecode.CHECKED_SUB:
			r = a.Float - b.Float
		case bytecode.CHECKED_MUL:
			r = a.Float * b.Float
		case bytecode.CHECKED_FDIV:
			if b.Float == 0 {
				return Value{}, &RuntimeError{Message: "division by zero"}
			}
			r = a.Float / b.Float
		default:
			return Value{}, &RuntimeError{Message: "unsupported floating opcode"}
		}
		return FloatValue(t, r), nil
	}

	// 64-bit operands fill the int64 the result is computed in, so a
	// post-hoc range check can never see the wrap; these types get
	// explicit carry/borrow detection instead.
	if info.bits >= 64 {
		if info.signed {
			return checkedArithI64(op, t, a.Int, b.Int)
		}
		return checkedArithU64(op, t, uint64(a.Int), uint64(b.Int))
	}

	var r int64
	switch op {
	case bytecode.CHECKED_ADD:
		r = a.Int + b.Int
	case bytecode.CHECKED_SUB:
		r = a.Int - b.Int
	case bytecode.CHECKED_MUL:
		r = a.Int * b.Int
	case bytecode.CHECKED_IDIV:
		if b.Int == 0 {
			return Value{}, &RuntimeError{Message: "division by zero"}
		}
		r = a.Int / b.Int
	default:
		return Value{}, &RuntimeError{Message: "unsupported integral opcode"}
	}
	if err := checkedIntRange(t, r); err != nil {
		return Value{}, err
	}
	return IntValue(t, r), nil
}

func overflowErr(t bytecode.NumericType) error {
	return &RuntimeError{Message: "checked arithmetic overflow for type " + t.String()}
}

// checkedArithI64 performs signed 64-bit arithmetic (i64, size_t) with
// two's-complement wrap detection on the full-width result.
func checkedArithI64(op bytecode.OpCode, t bytecode.NumericType, a, b int64) (Value, error) {
	switch op {
	case bytecode.CHECKED_ADD:
		r := a + b
		if (a^r)&(b^r) < 0 {
			return Value{}, overflowErr(t)
		}
		return IntValue(t, r), nil
	case bytecode.CHECKED_SUB:
		r := a - b
		if (a^b)&(a^r) < 0 {
			return Value{}, overflowErr(t)
		}
		return IntValue(t, r), nil
	case bytecode.CHECKED_MUL:
		if a == 0 || b == 0 {
			return IntValue(t, 0), nil
		}
		if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
			return Value{}, overflowErr(t)
		}
		r := a * b
		if r/b != a {
			return Value{}, overflowErr(t)
		}
		return IntValue(t, r), nil
	case bytecode.CHECKED_IDIV:
		if b == 0 {
			return Value{}, &RuntimeError{Message: "division by zero"}
		}
		if a == math.MinInt64 && b == -1 {
			return Value{}, overflowErr(t)
		}
		return IntValue(t, a/b), nil
	default:
		return Value{}, &RuntimeError{Message: "unsupported integral opcode"}
	}
}

// checkedArithU64 performs unsigned 64-bit arithmetic (u64, usize_t) on the
// values' raw bit patterns, trapping on carry, borrow, or a high product
// word.
func checkedArithU64(op bytecode.OpCode, t bytecode.NumericType, a, b uint64) (Value, error) {
	switch op {
	case bytecode.CHECKED_ADD:
		r, carry := bits.Add64(a, b, 0)
		if carry != 0 {
			return Value{}, overflowErr(t)
		}
		return IntValue(t, int64(r)), nil
	case bytecode.CHECKED_SUB:
		r, borrow := bits.Sub64(a, b, 0)
		if borrow != 0 {
			return Value{}, overflowErr(t)
		}
		return IntValue(t, int64(r)), nil
	case bytecode.CHECKED_MUL:
		hi, r := bits.Mul64(a, b)
		if hi != 0 {
			return Value{}, overflowErr(t)
		}
		return IntValue(t, int64(r)), nil
	case bytecode.CHECKED_IDIV:
		if b == 0 {
			return Value{}, &RuntimeError{Message: "division by zero"}
		}
		return IntValue(t, int64(a/b)), nil
	default:
		return Value{}, &RuntimeError{Message: "unsupported integral opcode"}
	}
}

// checkedConvert converts v to numeric type t, range-checking the source
// against the destination type before storing.
func checkedConvert(t bytecode.NumericType, v Value) (Value, error) {
	info := numericInfoTable[t]
	if info.isFloat {
		switch v.Kind {
		case KindFloat:
			return FloatValue(t, v.Float), nil
		case KindInt:
			return FloatValue(t, float64(v.Int)), nil
		}
		return Value{}, &RuntimeError{Message: "cannot convert to a floating type"}
	}
	var iv int64
	switch v.Kind {
	case KindInt, KindBool:
		iv = v.Int
	case KindFloat:
		iv = int64(v.Float)
	default:
		return Value{}, &RuntimeError{Message: "cannot convert a reference to a numeric type"}
	}
	// A 64-bit destination spans the whole int64 representation, so the
	// range table can't decide; only a sign disagreement with the source
	// type is out of range.
	if info.bits >= 64 && t != bytecode.TypeBool && v.Kind == KindInt {
		src := numericInfoTable[v.NumType]
		if !info.signed && src.signed && iv < 0 {
			return Value{}, &RuntimeError{Message: "out of range conversion to " + t.String()}
		}
		if info.signed && !src.signed && uint64(iv) > math.MaxInt64 {
			return Value{}, &RuntimeError{Message: "out of range conversion to " + t.String()}
		}
		return IntValue(t, iv), nil
	}
	if err := checkedIntRange(t, iv); err != nil {
		return Value{}, err
	}
	return IntValue(t, iv), nil
}

// uncheckedConvert performs the same conversion as checkedConvert, but
// truncates instead of failing on overflow.
func uncheckedConvert(t bytecode.NumericType, v Value) Value {
	info := numericInfoTable[t]
	if info.isFloat {
		if v.Kind == KindFloat {
			return FloatValue(t, v.Float)
		}
		return FloatValue(t, float64(v.Int))
	}
	var iv int64
	switch v.Kind {
	case KindFloat:
		iv = int64(v.Float)
	default:
		iv = v.Int
	}
	bits := uint(info.bits)
	if bits < 64 {
		mask := int64(1)<<bits - 1
		iv &= mask
		if info.signed && iv&(int64(1)<<(bits-1)) != 0 {
			iv -= int64(1) << bits
		}
	}
	return IntValue(t, iv)
}
