package checker

import (
	"strconv"

	"fu/internal/ast"
)

// Optimize is the single constant-folding pass: every infix arithmetic
// node whose operands are both numeric literals is replaced by a literal
// carrying the exact computed value and the original node's source range.
// The other nodes handled below are structurally cloned only when a
// descendant changed; an unchanged subtree is returned identically so the
// checker's checked-at-most-once bookkeeping stays valid against it. If
// statements, namespace and type declarations, and a call's callee are
// returned as they are: arithmetic inside them is not folded.
func Optimize(node ast.Node) ast.Node {
	switch n := node.(type) {
	case *ast.BinaryOp:
		left := Optimize(n.Left)
		right := Optimize(n.Right)
		if folded := foldIfLiterals(n.Op, left, right, n.Loc()); folded != nil {
			return folded
		}
		if left == n.Left && right == n.Right {
			return n
		}
		clone := *n
		clone.Left, clone.Right = left, right
		return &clone

	case *ast.UnaryOp:
		operand := Optimize(n.Operand)
		if operand == n.Operand {
			return n
		}
		clone := *n
		clone.Operand = operand
		return &clone

	case *ast.ReturnStmt:
		if n.Value == nil {
			return n
		}
		value := Optimize(n.Value)
		if value == n.Value {
			return n
		}
		clone := *n
		clone.Value = value
		return &clone

	case *ast.ExprList:
		changed := false
		next := make([]ast.Node, len(n.Elements))
		for i, e := range n.Elements {
			next[i] = Optimize(e)
			if next[i] != e {
				changed = true
			}
		}
		if !changed {
			return n
		}
		clone := *n
		clone.Elements = next
		return &clone

	case *ast.Scope:
		changed := false
		next := make([]ast.Node, len(n.Stmts))
		for i, s := range n.Stmts {
			next[i] = Optimize(s)
			if next[i] != s {
				changed = true
			}
		}
		if !changed {
			return n
		}
		clone := *n
		clone.Stmts = next
		return &clone

	case *ast.AssignOp:
		target := Optimize(n.Target)
		value := Optimize(n.Value)
		if target == n.Target && value == n.Value {
			return n
		}
		clone := *n
		clone.Target, clone.Value = target, value
		return &clone

	case *ast.CallOp:
		args := Optimize(n.Args)
		if args == ast.Node(n.Args) {
			return n
		}
		clone := *n
		clone.Args = args.(*ast.ExprList)
		return &clone

	case *ast.IndexOp:
		coll := Optimize(n.Collection)
		idx := Optimize(n.Index)
		if coll == n.Collection && idx == n.Index {
			return n
		}
		clone := *n
		clone.Collection, clone.Index = coll, idx
		return &clone

	case *ast.Declaration:
		value, body := n.Value, n.Body
		if value != nil {
			value = Optimize(value)
		}
		if body != nil {
			body = Optimize(body).(*ast.Scope)
		}
		if value == n.Value && body == n.Body {
			return n
		}
		clone := *n
		clone.Value, clone.Body = value, body
		return &clone

	default:
		return node
	}
}

// foldIfLiterals evaluates op over two numeric literals and returns the
// folded replacement literal, or nil if either operand is not a foldable
// numeric literal.
func foldIfLiterals(op ast.OperatorKind, left, right ast.Node, at ast.Location) *ast.Literal {
	lhs, ok := left.(*ast.Literal)
	if !ok || lhs.Kind != ast.LiteralNumber {
		return nil
	}
	rhs, ok := right.(*ast.Literal)
	if !ok || rhs.Kind != ast.LiteralNumber {
		return nil
	}

	lv, lFloat, err := parseLiteralNumber(lhs)
	if err != nil {
		return nil
	}
	rv, rFloat, err := parseLiteralNumber(rhs)
	if err != nil {
		return nil
	}

	var result float64
	switch op {
	case ast.OpAdd:
		result = lv + rv
	case ast.OpSub:
		result = lv - rv
	case ast.OpMul:
		result = lv * rv
	case ast.OpDiv:
		if rv == 0 {
			return nil
		}
		result = lv / rv
	default:
		return nil
	}

	isFloat := lFloat || rFloat
	folded := &ast.Literal{Kind: ast.LiteralNumber}
	folded.Location = at
	if isFloat {
		folded.HasDot = true
		folded.Text = strconv.FormatFloat(result, 'g', -1, 64)
	} else {
		folded.Text = strconv.FormatInt(int64(result), 10)
	}
	return folded
}

func parseLiteralNumber(lit *ast.Literal) (float64, bool, error) {
	text := lit.Text
	if lit.FSuffix {
		text = text[:len(text)-1]
	}
	if lit.FSuffix || lit.HasDot {
		v, err := strconv.ParseFloat(text, 64)
		return v, true, err
	}
	v, err := strconv.ParseInt(text, 10, 64)
	return float64(v), false, err
}
