package ast

// node is embedded by every concrete node to satisfy the Loc half of Node.
type node struct {
	Location Location
}

func (n node) Loc() Location { return n.Location }

// Ident is a bare identifier reference.
type Ident struct {
	node
	Name string
}

func (i *Ident) Children() []Node { return nil }

// Literal is a string or number literal. Number values are carried as the
// exact source text so the resolver/optimizer can choose the narrowest
// representation without a lossy float round-trip.
type Literal struct {
	node
	Kind LiteralKind
	Text string // numeric literal source text, or the string's raw value
	// FSuffix and HasDot describe a numeric literal's written form: a
	// trailing `f` types it f32, a `.` makes it floating point.
	FSuffix bool
	HasDot  bool
}

func (l *Literal) Children() []Node { return nil }

// Identity pairs a left side (an identifier or a special-operator name)
// with a right-hand type expression. Used for `this: <type>` members and
// special-operator declarations (`op=: this() = ...`).
type Identity struct {
	node
	Left  Node // *Ident, or a string special-operator name via SpecialOp
	Right *TypeExpr
}

func (i *Identity) Children() []Node { return []Node{i.Left, i.Right} }

// SpecialOp names one of the small closed set of special operators
// (Constructor, Index, ...) referenced from the left side of an Identity.
type SpecialOp struct {
	node
	Name string
}

func (s *SpecialOp) Children() []Node { return nil }

// TypeModifier is one modifier attached to a TypeExpr: a parameter list
// (making the type callable), an array marker, or a generic parameter list.
type TypeModifier struct {
	Kind   TypeModifierKind
	Params []*TypeExpr // ModParamList: parameter types
	// ModGenericParamList: names of the generic parameters being declared.
	GenericNames []string
}

// TypeExpr references a named type plus an ordered list of modifiers.
type TypeExpr struct {
	node
	Name      string
	Modifiers []TypeModifier
}

func (t *TypeExpr) Children() []Node { return nil }

// ExprList is a parenthesized or comma-joined list of expressions, used for
// call arguments and tuple-like literals.
type ExprList struct {
	node
	Elements []Node
}

func (e *ExprList) Children() []Node { return e.Elements }

// Scope is a brace-delimited statement list, a lexical block.
type Scope struct {
	node
	Name  string // optional; "" for anonymous blocks
	Stmts []Node
}

func (s *Scope) Children() []Node { return s.Stmts }

// ReturnStmt carries an optional payload expression.
type ReturnStmt struct {
	node
	Value Node // nil for a bare `return;`
}

func (r *ReturnStmt) Children() []Node {
	if r.Value == nil {
		return nil
	}
	return []Node{r.Value}
}

// IfCase is one `if`/`elif`-style head plus its body.
type IfCase struct {
	Cond Node
	Body *Scope
}

// IfStmt is a chain of conditional cases with an optional trailing `else`.
type IfStmt struct {
	node
	Cases []IfCase
	Else  *Scope // nil if there is no else
}

func (i *IfStmt) Children() []Node {
	kids := make([]Node, 0, len(i.Cases)*2+1)
	for _, c := range i.Cases {
		kids = append(kids, c.Cond, c.Body)
	}
	if i.Else != nil {
		kids = append(kids, i.Else)
	}
	return kids
}

// BinaryOp is an infix expression with one of the arithmetic/comparison
// operator kinds.
type BinaryOp struct {
	node
	Op    OperatorKind
	Left  Node
	Right Node
}

func (b *BinaryOp) Children() []Node { return []Node{b.Left, b.Right} }

// UnaryOp is a prefix expression: `!x`, leading-`.` member access, etc.
type UnaryOp struct {
	node
	Op      OperatorKind
	Operand Node
}

func (u *UnaryOp) Children() []Node { return []Node{u.Operand} }

// CallOp applies an argument list to a callee.
type CallOp struct {
	node
	Callee Node
	Args   *ExprList
}

func (c *CallOp) Children() []Node { return []Node{c.Callee, c.Args} }

// IndexOp applies an index expression to a collection.
type IndexOp struct {
	node
	Collection Node
	Index      Node
}

func (i *IndexOp) Children() []Node { return []Node{i.Collection, i.Index} }

// AssignOp is a plain `lhs = rhs` assignment expression.
type AssignOp struct {
	node
	Target Node
	Value  Node
}

func (a *AssignOp) Children() []Node { return []Node{a.Target, a.Value} }

// NamespaceDecl introduces (or re-enters) a named chain of scopes.
type NamespaceDecl struct {
	node
	Name string
	Body *Scope
}

func (n *NamespaceDecl) Children() []Node { return []Node{n.Body} }

// Member is one member of a type/interface body: a name bound to a type
// expression, optionally with a body (for functions/constructors),
// optionally const or read-only.
type Member struct {
	Name      string
	Type      *TypeExpr
	Body      *Scope // nil for a field with no body
	IsConst   bool
	IsStatic  bool
	Special   string // "" unless this is a special-operator member
	ParamList []Param
}

// Param is one parameter in a callable member's parameter list.
type Param struct {
	Name string
	Type *TypeExpr
}

// TypeDecl declares a new composed (and optionally generic) type in the
// current scope.
type TypeDecl struct {
	node
	Name         string
	GenericNames []string
	Inherits     []*TypeExpr // from `this: <type>` members
	Members      []Member
}

func (t *TypeDecl) Children() []Node { return nil }

// InterfaceDecl declares an interface: like TypeDecl, but members may lack
// bodies, and a subset of member names may carry default implementations.
type InterfaceDecl struct {
	node
	Name    string
	Members []Member
	// Defaults holds the subset of Members (by name) with a non-nil Body.
	Defaults map[string]bool
}

func (i *InterfaceDecl) Children() []Node { return nil }

// Declaration is a top-level `name: type = value` binding, optionally
// carrying a callable body (making it a function/method declaration).
type Declaration struct {
	node
	Name    string
	Type    *TypeExpr
	Value   Node   // initializer expression; nil if Body is set
	Body    *Scope // non-nil for a function/method/constructor
	Params  []Param
	IsConst bool
}

func (d *Declaration) Children() []Node {
	kids := []Node{}
	if d.Value != nil {
		kids = append(kids, d.Value)
	}
	if d.Body != nil {
		kids = append(kids, d.Body)
	}
	return kids
}
