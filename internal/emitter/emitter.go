package emitter

import (
	"fmt"

	"github.com/pkg/errors"

	"fu/internal/ast"
	"fu/internal/binfmt"
	"fu/internal/bytecode"
)

// funcDecl is one emittable function: a fully-qualified name, its
// parameter and return types, and the body to lower. Type methods carry an
// implicit `this` as argument slot 0.
type funcDecl struct {
	fqdn       string
	params     []ast.Param
	paramTypes []ValueType
	returnType ValueType
	body       *ast.Scope
	isMethod   bool
	ownerType  string
}

// Emitter lowers a whole checked program into one binfmt.Binary.
type Emitter struct {
	binary *binfmt.Binary

	funcs map[string]*funcDecl // every function reachable by fqdn
	ids   map[string]uint16    // fqdn -> reserved function table index
	queue []string             // reserved functions awaiting emission

	typeIDs map[string]uint16      // composed type name -> binfmt type table index
	chunks  map[string][]byte      // fqdn -> emitted body bytes, set once processed
	smaps   map[string][]spanEntry // fqdn -> chunk-relative source map spans
	order   []string               // fqdns in the order reserve() first saw them == function table index order

	// fields maps a composed type name to its data members' declared
	// order, giving each field the heap slot index PUSH_REF addresses.
	fields map[string][]fieldInfo
}

type fieldInfo struct {
	name string
	typ  ValueType
}

// memberSlot looks up typeName's field named memberName, returning its
// heap slot index and value type.
func (e *Emitter) memberSlot(typeName, memberName string) (int, ValueType, bool) {
	for i, f := range e.fields[typeName] {
		if f.name == memberName {
			return i, f.typ, true
		}
	}
	return 0, ValueType{}, false
}

func New() *Emitter {
	return &Emitter{
		binary:  binfmt.NewBinary(),
		funcs:   map[string]*funcDecl{},
		ids:     map[string]uint16{},
		typeIDs: map[string]uint16{},
		chunks:  map[string][]byte{},
		smaps:   map[string][]spanEntry{},
		fields:  map[string][]fieldInfo{},
	}
}

// Emit lowers program into a complete binary, validating and starting from
// its `main` entry point.
func Emit(program []ast.Node) ([]byte, error) {
	e := New()
	e.collect("", program)

	main, ok := e.funcs["main"]
	if !ok {
		return nil, errors.New("emitter: no main function in global scope")
	}
	if err := e.validateEntry(main); err != nil {
		return nil, err
	}

	e.reserve("main")
	for len(e.queue) > 0 {
		fqdn := e.queue[0]
		e.queue = e.queue[1:]
		if err := e.emitFunction(fqdn); err != nil {
			return nil, err
		}
	}

	e.assemble()
	return e.binary.Encode(), nil
}

// validateEntry checks the entry contract: main must be callable, return
// void or a fixed-width integral type, and take either no arguments or
// (str[]).
func (e *Emitter) validateEntry(main *funcDecl) error {
	if main.body == nil {
		return errors.New("emitter: main must be callable")
	}
	switch main.returnType.Name {
	case "void":
	default:
		if !main.returnType.IsNumeric || isFloat(main.returnType.Numeric) || main.returnType.Numeric == bytecode.TypeUSize || main.returnType.Numeric == bytecode.TypeSize || main.returnType.Numeric == bytecode.TypeBool {
			return errors.Errorf("emitter: main must return void or an integral type, got %v", main.returnType)
		}
	}
	switch len(main.params) {
	case 0:
	case 1:
		// The VM builds the entry frame's argument as an array of string
		// refs, so a scalar string parameter is the wrong type.
		pt := main.params[0].Type
		if pt == nil || pt.Name != "string" || !isArrayTypeExpr(pt) {
			return errors.New("emitter: main's single parameter must be string[]")
		}
	default:
		return errors.New("emitter: main must take no arguments or (str[])")
	}
	return nil
}

// isArrayTypeExpr reports whether te's modifier list ends in an array
// definition, i.e. the expression denotes an array of its base type.
func isArrayTypeExpr(te *ast.TypeExpr) bool {
	if len(te.Modifiers) == 0 {
		return false
	}
	return te.Modifiers[len(te.Modifiers)-1].Kind == ast.ModArrayDef
}

// collect walks program (and nested namespaces/type bodies) gathering
// every function declaration under its fully-qualified name.
func (e *Emitter) collect(prefix string, nodes []ast.Node) {
	for _, n := range nodes {
		switch v := n.(type) {
		case *ast.NamespaceDecl:
			e.collect(fqdnJoin(prefix, v.Name), v.Body.Stmts)
		case *ast.TypeDecl:
			e.typeID(v.Name)
			for _, m := range v.Members {
				if m.Body != nil {
					e.registerFunc(fqdnJoin(fqdnJoin(prefix, v.Name), m.Name), m.ParamList, m.Type, m.Body, true, v.Name)
					continue
				}
				e.fields[v.Name] = append(e.fields[v.Name], fieldInfo{name: m.Name, typ: valueTypeForName(m.Type.Name)})
			}
		case *ast.Declaration:
			if v.Body == nil {
				continue
			}
			e.registerFunc(fqdnJoin(prefix, v.Name), v.Params, v.Type, v.Body, false, "")
		}
	}
}

func fqdnJoin(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func (e *Emitter) registerFunc(fqdn string, params []ast.Param, retType *ast.TypeExpr, body *ast.Scope, isMethod bool, owner string) {
	fd := &funcDecl{
		fqdn:      fqdn,
		params:    params,
		body:      body,
		isMethod:  isMethod,
		ownerType: owner,
	}
	if retType != nil {
		fd.returnType = valueTypeForName(retType.Name)
	} else {
		fd.returnType = voidType
	}
	for _, p := range params {
		fd.paramTypes = append(fd.paramTypes, valueTypeForName(p.Type.Name))
	}
	if isMethod {
		fd.paramTypes = append([]ValueType{composedType(owner)}, fd.paramTypes...)
	}
	e.funcs[fqdn] = fd
}

// reserve returns fqdn's stable function table id, registering a
// placeholder function table entry and enqueuing it for emission on first
// reservation, so a call site can reference a callee whose body has not
// been lowered yet.
func (e *Emitter) reserve(fqdn string) uint16 {
	if id, ok := e.ids[fqdn]; ok {
		return id
	}
	id := e.binary.AddFunction(binfmt.FunctionEntry{Name: fqdn, Scope: "<global>"})
	e.ids[fqdn] = id
	e.order = append(e.order, fqdn)
	e.queue = append(e.queue, fqdn)
	return id
}

func (e *Emitter) typeID(name string) uint16 {
	if id, ok := e.typeIDs[name]; ok {
		return id
	}
	id := e.binary.AddType(binfmt.TypeEntry{Tag: binfmt.TypeComposed, Name: name})
	e.typeIDs[name] = id
	return id
}

// emitFunction lowers one reserved function's body into its own chunk.
func (e *Emitter) emitFunction(fqdn string) error {
	fd, ok := e.funcs[fqdn]
	if !ok {
		return fmt.Errorf("emitter: %s was reserved but never declared", fqdn)
	}
	fe := newFuncEmitter(e, fd)
	c := bytecode.NewChunk()
	for i := range fd.paramTypes {
		fe.locals.bindArg(fd.paramNameAt(i), fd.paramTypes[i], i)
	}
	for _, stmt := range fd.body.Stmts {
		if err := fe.lowerStmt(c, stmt); err != nil {
			return errors.Wrapf(err, "emitting %s", fqdn)
		}
	}
	if len(c.Code) == 0 || bytecode.OpCode(c.Code[len(c.Code)-1]) != bytecode.RET {
		c.WriteOp(bytecode.RET)
	}
	c.PatchLastThreeBytesToTailCall()
	e.chunks[fqdn] = c.Code
	e.smaps[fqdn] = clampSpans(fe.sm, c.Len())
	return nil
}

// clampSpans drops spans the tail-call rewrite truncated past the final
// chunk length and trims any span straddling the new end.
func clampSpans(spans []spanEntry, codeLen int) []spanEntry {
	out := spans[:0]
	for _, s := range spans {
		if s.Offset >= codeLen {
			continue
		}
		if s.Offset+s.Length > codeLen {
			s.Length = codeLen - s.Offset
		}
		out = append(out, s)
	}
	return out
}

func (fd *funcDecl) paramNameAt(i int) string {
	if fd.isMethod {
		if i == 0 {
			return "this"
		}
		return fd.params[i-1].Name
	}
	return fd.params[i].Name
}

// assemble concatenates every emitted function body into the binary's code
// blob in reservation order, fixing up each function table entry's address,
// the binary's entrypoint, and translating each chunk-relative source map
// span into an absolute code offset.
func (e *Emitter) assemble() {
	var code []byte
	for _, fqdn := range e.order {
		id := e.ids[fqdn]
		offset := uint32(len(code))
		code = append(code, e.chunks[fqdn]...)
		e.binary.Functions[id].Address = offset
		for _, s := range e.smaps[fqdn] {
			e.binary.SourceMap = append(e.binary.SourceMap, binfmt.SourceMapEntry{
				File:       s.Loc.File,
				SeekStart:  uint32(s.Loc.ByteStart),
				SeekEnd:    uint32(s.Loc.ByteEnd),
				LineStart:  uint16(s.Loc.LineStart),
				LineEnd:    uint16(s.Loc.LineEnd),
				ColStart:   uint16(s.Loc.ColStart),
				ColEnd:     uint16(s.Loc.ColEnd),
				CodeOffset: offset + uint32(s.Offset),
				CodeLength: uint32(s.Length),
			})
		}
	}
	e.binary.Code = code
	e.binary.Entrypoint = e.binary.Functions[e.ids["main"]].Address
}
