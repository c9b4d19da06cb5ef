package emitter

import (
	"math"
	"strconv"

	"github.com/pkg/errors"

	"fu/internal/ast"
	"fu/internal/bytecode"
)

// localTable tracks the slot each declared name occupies in the current
// frame, mirroring how the VM's Frame grows Args (fixed, by param order)
// and Locals (append-only, by first INIT_LOCAL).
type localTable struct {
	args   map[string]StorageDescriptor
	locals map[string]StorageDescriptor
	next   int // next free local slot
}

func newLocalTable() *localTable {
	return &localTable{args: map[string]StorageDescriptor{}, locals: map[string]StorageDescriptor{}}
}

func (l *localTable) bindArg(name string, t ValueType, slot int) {
	l.args[name] = StorageDescriptor{Kind: StorageArguments, Type: t, Slot: slot}
}

func (l *localTable) bindLocal(name string, t ValueType) StorageDescriptor {
	d := StorageDescriptor{Kind: StorageLocals, Type: t, Slot: l.next}
	l.next++
	l.locals[name] = d
	return d
}

func (l *localTable) lookup(name string) (StorageDescriptor, bool) {
	if d, ok := l.locals[name]; ok {
		return d, true
	}
	if d, ok := l.args[name]; ok {
		return d, true
	}
	return StorageDescriptor{}, false
}

// funcEmitter lowers one function body, threading a local symbol table,
// the pending-if-label bookkeeping, and the source map entries recorded
// per-statement and per-expression against chunk-relative offsets.
type funcEmitter struct {
	e      *Emitter
	fd     *funcDecl
	locals *localTable
	sm     []spanEntry
}

// spanEntry is one chunk-relative source map record; assemble translates
// Offset into an absolute code offset once the chunk's final position in
// the code blob is known.
type spanEntry struct {
	Offset int
	Length int
	Loc    ast.Location
}

func newFuncEmitter(e *Emitter, fd *funcDecl) *funcEmitter {
	return &funcEmitter{e: e, fd: fd, locals: newLocalTable()}
}

// recordSpan maps the chunk bytes emitted since start back to n's source
// location. Spans that emitted nothing (a bare local lookup) are skipped.
func (fe *funcEmitter) recordSpan(c *bytecode.Chunk, start int, n ast.Node) {
	if c.Len() == start {
		return
	}
	fe.sm = append(fe.sm, spanEntry{Offset: start, Length: c.Len() - start, Loc: n.Loc()})
}

func (fe *funcEmitter) lowerStmt(c *bytecode.Chunk, n ast.Node) error {
	start := c.Len()
	err := fe.lowerStmtInner(c, n)
	if err == nil {
		fe.recordSpan(c, start, n)
	}
	return err
}

func (fe *funcEmitter) lowerStmtInner(c *bytecode.Chunk, n ast.Node) error {
	switch v := n.(type) {
	case *ast.ReturnStmt:
		if v.Value != nil {
			d, err := fe.lowerExpr(c, v.Value)
			if err != nil {
				return err
			}
			fe.convertToStack(c, d, fe.fd.returnType)
		}
		c.WriteOp(bytecode.RET)
		return nil

	case *ast.IfStmt:
		return fe.lowerIf(c, v)

	case *ast.Declaration:
		// A local variable declaration: `name: type = value`.
		if v.Body != nil {
			return errors.New("emitter: nested function declarations are not supported")
		}
		t := valueTypeForName(v.Type.Name)
		if v.Value != nil {
			d, err := fe.lowerExpr(c, v.Value)
			if err != nil {
				return err
			}
			fe.convertToStack(c, d, t)
		} else {
			pushZero(c, t)
		}
		c.WriteOp(bytecode.INIT_LOCAL)
		fe.locals.bindLocal(v.Name, t)
		return nil

	case *ast.AssignOp:
		return fe.lowerAssign(c, v)

	case *ast.Scope:
		for _, s := range v.Stmts {
			if err := fe.lowerStmt(c, s); err != nil {
				return err
			}
		}
		return nil

	default:
		// A bare expression statement: lower it and discard the result into
		// a throwaway local, since the fixed opcode set has no dedicated
		// stack-discard instruction.
		d, err := fe.lowerExpr(c, n)
		if err != nil {
			return err
		}
		fe.retrieve(c, d)
		c.WriteOp(bytecode.INIT_LOCAL)
		fe.locals.bindLocal("$discard", d.Type)
		return nil
	}
}

func (fe *funcEmitter) lowerAssign(c *bytecode.Chunk, a *ast.AssignOp) error {
	ident, ok := a.Target.(*ast.Ident)
	if !ok {
		return errors.New("emitter: only assignment to a plain local identifier is supported")
	}
	d, ok := fe.locals.lookup(ident.Name)
	if !ok {
		return errors.Errorf("emitter: assignment to undeclared local %q", ident.Name)
	}
	if d.Kind == StorageArguments {
		return errors.New("emitter: arguments are immutable")
	}
	rd, err := fe.lowerExpr(c, a.Value)
	if err != nil {
		return err
	}
	fe.convertToStack(c, rd, d.Type)
	c.WriteOp(bytecode.POP_LOCAL)
	c.WriteByte(byte(d.Slot))
	return nil
}

// lowerIf compiles a chain of cases plus an optional else: each head's
// conditional jump targets the next case (or else/end), each body ends
// with an unconditional jump to the shared end label.
func (fe *funcEmitter) lowerIf(c *bytecode.Chunk, stmt *ast.IfStmt) error {
	var endJumps []int
	for _, cs := range stmt.Cases {
		cond, err := fe.lowerExpr(c, cs.Cond)
		if err != nil {
			return err
		}
		fe.convertToStack(c, cond, numericType(bytecode.TypeBool))
		c.WriteOp(bytecode.JZ)
		nextCasePos := c.WriteI16Placeholder()

		if err := fe.lowerStmt(c, cs.Body); err != nil {
			return err
		}
		c.WriteOp(bytecode.JMP)
		endJumps = append(endJumps, c.WriteI16Placeholder())

		c.PatchI16(nextCasePos, c.Len())
	}
	if stmt.Else != nil {
		if err := fe.lowerStmt(c, stmt.Else); err != nil {
			return err
		}
	}
	end := c.Len()
	for _, pos := range endJumps {
		c.PatchI16(pos, end)
	}
	return nil
}

func (fe *funcEmitter) lowerExpr(c *bytecode.Chunk, n ast.Node) (StorageDescriptor, error) {
	start := c.Len()
	d, err := fe.lowerExprInner(c, n)
	if err == nil {
		fe.recordSpan(c, start, n)
	}
	return d, err
}

func (fe *funcEmitter) lowerExprInner(c *bytecode.Chunk, n ast.Node) (StorageDescriptor, error) {
	switch v := n.(type) {
	case *ast.Literal:
		return fe.lowerLiteral(c, v)

	case *ast.Ident:
		if d, ok := fe.locals.lookup(v.Name); ok {
			return d, nil
		}
		return StorageDescriptor{}, errors.Errorf("emitter: undeclared identifier %q", v.Name)

	case *ast.BinaryOp:
		return fe.lowerBinary(c, v)

	case *ast.UnaryOp:
		return fe.lowerUnary(c, v)

	case *ast.CallOp:
		return fe.lowerCall(c, v)

	case *ast.IndexOp:
		return fe.lowerIndex(c, v)

	default:
		return StorageDescriptor{}, errors.Errorf("emitter: unsupported expression node %T", n)
	}
}

func (fe *funcEmitter) lowerLiteral(c *bytecode.Chunk, l *ast.Literal) (StorageDescriptor, error) {
	if l.Kind == ast.LiteralString {
		return StorageDescriptor{}, errors.New("emitter: string literal expressions are not representable in the fixed opcode set; pass strings in through argv instead")
	}
	isFloatLit := l.HasDot || l.FSuffix
	if isFloatLit {
		f, err := strconv.ParseFloat(l.Text, 64)
		if err != nil {
			return StorageDescriptor{}, errors.Wrapf(err, "emitter: invalid float literal %q", l.Text)
		}
		t := bytecode.TypeF64
		if l.FSuffix {
			t = bytecode.TypeF32
		}
		writeLiteral(c, t, floatBits(t, f))
		return StorageDescriptor{Kind: StorageStack, Type: numericType(t)}, nil
	}
	iv, err := strconv.ParseInt(l.Text, 10, 64)
	if err != nil {
		return StorageDescriptor{}, errors.Wrapf(err, "emitter: invalid integer literal %q", l.Text)
	}
	t := bytecode.TypeI32
	writeLiteral(c, t, iv)
	return StorageDescriptor{Kind: StorageStack, Type: numericType(t)}, nil
}

// lowerBinary lowers a binary arithmetic/comparison expression. Picking
// the wider type requires both operands' numeric types before emitting
// anything for either, so it peeks their types first (peekType never
// emits), then lowers and converts the left operand fully onto the stack
// before starting the right: some operands (a bare local or argument)
// don't emit when merely looked up, so interleaving lower/convert calls
// instead of doing left fully before right would let the right operand's
// bytecode land first and silently flip non-commutative results.
func (fe *funcEmitter) lowerBinary(c *bytecode.Chunk, b *ast.BinaryOp) (StorageDescriptor, error) {
	if b.Op == ast.OpDot {
		return fe.lowerMemberAccess(c, b)
	}
	lt, err := fe.peekType(b.Left)
	if err != nil {
		return StorageDescriptor{}, err
	}
	rt, err := fe.peekType(b.Right)
	if err != nil {
		return StorageDescriptor{}, err
	}
	if !lt.IsNumeric || !rt.IsNumeric {
		return StorageDescriptor{}, errors.New("emitter: arithmetic/comparison requires numeric operands")
	}
	wide := widerNumericType(lt.Numeric, rt.Numeric)

	ld, err := fe.lowerExpr(c, b.Left)
	if err != nil {
		return StorageDescriptor{}, err
	}
	fe.convertToStack(c, ld, numericType(wide))
	rd, err := fe.lowerExpr(c, b.Right)
	if err != nil {
		return StorageDescriptor{}, err
	}
	fe.convertToStack(c, rd, numericType(wide))

	switch b.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv:
		op := arithOpFor(string(b.Op), wide)
		c.WriteOp(op)
		c.WriteByte(byte(wide))
		return StorageDescriptor{Kind: StorageStack, Type: numericType(wide)}, nil

	case ast.OpEq:
		c.WriteOp(bytecode.CMP)
		return StorageDescriptor{Kind: StorageStack, Type: numericType(bytecode.TypeBool)}, nil

	case ast.OpLess:
		c.WriteOp(bytecode.LESS)
		return StorageDescriptor{Kind: StorageStack, Type: numericType(bytecode.TypeBool)}, nil
	}
	return StorageDescriptor{}, errors.Errorf("emitter: unsupported binary operator %q", b.Op)
}

// peekType determines an expression's value type without emitting any
// bytecode, used by lowerBinary to pick the widening target before either
// operand is lowered.
func (fe *funcEmitter) peekType(n ast.Node) (ValueType, error) {
	switch v := n.(type) {
	case *ast.Literal:
		if v.Kind == ast.LiteralString {
			return ValueType{}, errors.New("emitter: string literal expressions are not representable in the fixed opcode set")
		}
		if v.HasDot || v.FSuffix {
			if v.FSuffix {
				return numericType(bytecode.TypeF32), nil
			}
			return numericType(bytecode.TypeF64), nil
		}
		return numericType(bytecode.TypeI32), nil

	case *ast.Ident:
		if d, ok := fe.locals.lookup(v.Name); ok {
			return d.Type, nil
		}
		return ValueType{}, errors.Errorf("emitter: undeclared identifier %q", v.Name)

	case *ast.BinaryOp:
		if v.Op == ast.OpDot {
			recv, err := fe.peekType(v.Left)
			if err != nil {
				return ValueType{}, err
			}
			name, ok := memberNameOf(v.Right)
			if !ok {
				return ValueType{}, errors.New("emitter: expected a member name on the right of '.'")
			}
			_, t, ok := fe.e.memberSlot(recv.Name, name)
			if !ok {
				return ValueType{}, errors.Errorf("emitter: unknown member %q on %s", name, recv.Name)
			}
			return t, nil
		}
		switch v.Op {
		case ast.OpEq, ast.OpLess:
			return numericType(bytecode.TypeBool), nil
		default:
			lt, err := fe.peekType(v.Left)
			if err != nil {
				return ValueType{}, err
			}
			rt, err := fe.peekType(v.Right)
			if err != nil {
				return ValueType{}, err
			}
			return numericType(widerNumericType(lt.Numeric, rt.Numeric)), nil
		}

	case *ast.UnaryOp:
		if v.Op == ast.OpNot {
			return numericType(bytecode.TypeBool), nil
		}
		// leading-dot member access on `this`
		name, ok := memberNameOf(v.Operand)
		if !ok {
			return ValueType{}, errors.New("emitter: expected a member name after '.'")
		}
		_, t, ok := fe.e.memberSlot(fe.fd.ownerType, name)
		if !ok {
			return ValueType{}, errors.Errorf("emitter: unknown member %q on %s", name, fe.fd.ownerType)
		}
		return t, nil

	case *ast.CallOp:
		if ident, ok := v.Callee.(*ast.Ident); ok {
			if _, known := fe.e.typeIDs[ident.Name]; known {
				return composedType(ident.Name), nil
			}
			if fd, ok := fe.e.funcs[ident.Name]; ok {
				return fd.returnType, nil
			}
		}
		if bin, ok := v.Callee.(*ast.BinaryOp); ok && bin.Op == ast.OpDot {
			recv, err := fe.peekType(bin.Left)
			if err != nil {
				return ValueType{}, err
			}
			name, ok := memberNameOf(bin.Right)
			if !ok {
				return ValueType{}, errors.New("emitter: expected a method name on the right of '.'")
			}
			if fd, ok := fe.e.funcs[recv.Name+"."+name]; ok {
				return fd.returnType, nil
			}
		}
		return ValueType{}, errors.New("emitter: cannot determine the type of an unresolved call")

	case *ast.IndexOp:
		return numericType(bytecode.TypeU8), nil

	default:
		return ValueType{}, errors.Errorf("emitter: cannot determine the type of %T", n)
	}
}

func (fe *funcEmitter) lowerUnary(c *bytecode.Chunk, u *ast.UnaryOp) (StorageDescriptor, error) {
	if u.Op == ast.OpDot {
		// Leading-dot shorthand for `this.<member>`.
		return fe.lowerMemberAccess(c, &ast.BinaryOp{Op: ast.OpDot, Left: &ast.Ident{Name: "this"}, Right: u.Operand})
	}
	if u.Op != ast.OpNot {
		return StorageDescriptor{}, errors.Errorf("emitter: unsupported unary operator %q", u.Op)
	}
	d, err := fe.lowerExpr(c, u.Operand)
	if err != nil {
		return StorageDescriptor{}, err
	}
	fe.convertToStack(c, d, numericType(bytecode.TypeBool))
	writeLiteral(c, bytecode.TypeBool, 0)
	c.WriteOp(bytecode.CMP)
	return StorageDescriptor{Kind: StorageStack, Type: numericType(bytecode.TypeBool)}, nil
}

// lowerMemberAccess supports reading a member by its declared slot. It
// never writes: the fixed opcode set defines PUSH_REF but no
// corresponding heap-write instruction.
func (fe *funcEmitter) lowerMemberAccess(c *bytecode.Chunk, b *ast.BinaryOp) (StorageDescriptor, error) {
	recv, err := fe.lowerExpr(c, b.Left)
	if err != nil {
		return StorageDescriptor{}, err
	}
	memberName, ok := memberNameOf(b.Right)
	if !ok {
		return StorageDescriptor{}, errors.New("emitter: expected a member name on the right of '.'")
	}
	slot, memberType, ok := fe.e.memberSlot(recv.Type.Name, memberName)
	if !ok {
		return StorageDescriptor{}, errors.Errorf("emitter: unknown member %q on %s", memberName, recv.Type.Name)
	}
	fe.retrieve(c, recv)
	c.WriteOp(bytecode.PUSH_REF)
	c.WriteByte(byte(slot))
	return StorageDescriptor{Kind: StorageStack, Type: memberType}, nil
}

func memberNameOf(n ast.Node) (string, bool) {
	if id, ok := n.(*ast.Ident); ok {
		return id.Name, true
	}
	return "", false
}

func (fe *funcEmitter) lowerCall(c *bytecode.Chunk, call *ast.CallOp) (StorageDescriptor, error) {
	// Object construction: `TypeName(...)` where TypeName names a
	// registered composed type lowers to NEW <type-id>.
	if ident, ok := call.Callee.(*ast.Ident); ok {
		if id, known := fe.e.typeIDs[ident.Name]; known {
			c.WriteOp(bytecode.NEW)
			c.WriteU16(id)
			return StorageDescriptor{Kind: StorageStack, Type: composedType(ident.Name)}, nil
		}
	}

	var fqdn string
	var receiver *StorageDescriptor
	switch callee := call.Callee.(type) {
	case *ast.Ident:
		fqdn = callee.Name
	case *ast.BinaryOp:
		if callee.Op != ast.OpDot {
			return StorageDescriptor{}, errors.New("emitter: unsupported call target")
		}
		recv, err := fe.lowerExpr(c, callee.Left)
		if err != nil {
			return StorageDescriptor{}, err
		}
		name, ok := memberNameOf(callee.Right)
		if !ok {
			return StorageDescriptor{}, errors.New("emitter: expected a method name on the right of '.'")
		}
		fqdn = recv.Type.Name + "." + name
		receiver = &recv
	default:
		return StorageDescriptor{}, errors.Errorf("emitter: unsupported call target %T", call.Callee)
	}

	fd, ok := fe.e.funcs[fqdn]
	if !ok {
		return StorageDescriptor{}, errors.Errorf("emitter: call to undeclared function %q", fqdn)
	}

	argc := 0
	if receiver != nil {
		fe.retrieve(c, *receiver)
		argc++
	}
	for i, arg := range call.Args.Elements {
		ad, err := fe.lowerExpr(c, arg)
		if err != nil {
			return StorageDescriptor{}, err
		}
		pi := i
		if receiver != nil {
			pi++
		}
		target := ad.Type
		if pi < len(fd.paramTypes) {
			target = fd.paramTypes[pi]
		}
		fe.convertToStack(c, ad, target)
		argc++
	}
	c.WriteOp(bytecode.INIT_ARGS)
	c.WriteByte(byte(argc))

	id := fe.e.reserve(fqdn)
	c.WriteOp(bytecode.CALL_EXPORT)
	c.WriteU16(id)

	return StorageDescriptor{Kind: StorageStack, Type: fd.returnType}, nil
}

func (fe *funcEmitter) lowerIndex(c *bytecode.Chunk, idx *ast.IndexOp) (StorageDescriptor, error) {
	coll, err := fe.lowerExpr(c, idx.Collection)
	if err != nil {
		return StorageDescriptor{}, err
	}
	// Retrieve the collection immediately: some operands (a bare local or
	// argument) don't emit anything when merely looked up, so deferring
	// this until after the index is lowered would let the index's
	// bytecode land first and reverse PUSH_ARRAY's expected stack order.
	fe.retrieve(c, coll)
	ix, err := fe.lowerExpr(c, idx.Index)
	if err != nil {
		return StorageDescriptor{}, err
	}
	fe.convertToStack(c, ix, numericType(bytecode.TypeUSize))
	c.WriteOp(bytecode.PUSH_ARRAY)
	return StorageDescriptor{Kind: StorageStack, Type: numericType(bytecode.TypeU8)}, nil
}

func writeLiteral(c *bytecode.Chunk, t bytecode.NumericType, v int64) {
	c.WriteOp(bytecode.PUSH_LITERAL)
	c.WriteByte(byte(t))
	switch t {
	case bytecode.TypeU8, bytecode.TypeI8, bytecode.TypeBool:
		c.WriteByte(byte(v))
	case bytecode.TypeU16, bytecode.TypeI16, bytecode.TypeF16:
		c.WriteU16(uint16(v))
	case bytecode.TypeU32, bytecode.TypeI32, bytecode.TypeF32:
		c.WriteU32(uint32(v))
	default:
		c.WriteU32(uint32(v >> 32))
		c.WriteU32(uint32(v))
	}
}

func pushZero(c *bytecode.Chunk, t ValueType) {
	if t.IsNumeric {
		writeLiteral(c, t.Numeric, 0)
	} else {
		writeLiteral(c, bytecode.TypeI32, 0)
	}
}

func floatBits(t bytecode.NumericType, f float64) int64 {
	if t == bytecode.TypeF32 {
		return int64(math.Float32bits(float32(f)))
	}
	return int64(math.Float64bits(f))
}
