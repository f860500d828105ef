package ast

import (
	"fmt"
	"strings"

	"github.com/toyc/toyc/internal/lexer"
)

type Location = lexer.Location

/*
The AST is a binary tree. Sequences (functions of a program, statements of a block,
parameters, call arguments) hang off a right-leaning spine: a Separator (or Comma)
node holds one item in Left and the rest of the sequence in Right.

  Program:   Separator{Left: Function, Right: Separator{...}}
  Function:  Name = function name, Left = parameters (Comma spine of Identifiers),
             Right = body (Separator spine of statements)
  VarDecl:   Name, Left = optional initializer
  Assign:    Left = Identifier, Right = value
  If/While:  Left = condition, Right = body spine
  Return:    Left = optional value
  Call:      Name = callee, Left = arguments (Comma spine)
  Out:       Left = value
  Operator:  Op, Left (and Right for binary operators)
*/

type Kind int

const (
	KindSeparator Kind = iota
	KindComma
	KindFunction
	KindVarDecl
	KindAssign
	KindIf
	KindWhile
	KindReturn
	KindCall
	KindOut
	KindIn
	KindBreak
	KindContinue
	KindAbort
	KindConstant
	KindIdentifier
	KindOperator
)

var kindNames = [...]string{
	KindSeparator:  "seq",
	KindComma:      "comma",
	KindFunction:   "func",
	KindVarDecl:    "var",
	KindAssign:     "assign",
	KindIf:         "if",
	KindWhile:      "while",
	KindReturn:     "return",
	KindCall:       "call",
	KindOut:        "out",
	KindIn:         "in",
	KindBreak:      "break",
	KindContinue:   "continue",
	KindAbort:      "abort",
	KindConstant:   "const",
	KindIdentifier: "ident",
	KindOperator:   "op",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind%d", int(k))
	}
	return kindNames[k]
}

type Operator int

const (
	OpNone Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpLess
	OpGreater
	OpLessEq
	OpGreaterEq
	OpEqual
	OpNotEqual
	OpAnd
	OpOr
	OpNot
	OpSin
	OpCos
	OpFloor
	OpSqrt
	OpDiff
)

var operatorNames = [...]string{
	OpNone:      "?",
	OpAdd:       "+",
	OpSub:       "-",
	OpMul:       "*",
	OpDiv:       "/",
	OpLess:      "<",
	OpGreater:   ">",
	OpLessEq:    "<=",
	OpGreaterEq: ">=",
	OpEqual:     "==",
	OpNotEqual:  "!=",
	OpAnd:       "&&",
	OpOr:        "||",
	OpNot:       "!",
	OpSin:       "sin",
	OpCos:       "cos",
	OpFloor:     "floor",
	OpSqrt:      "sqrt",
	OpDiff:      "diff",
}

func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("op%d", int(o))
	}
	return operatorNames[o]
}

// OperatorFromString maps source spelling to an operator.
func OperatorFromString(s string) (Operator, bool) {
	for i, name := range operatorNames {
		if i != int(OpNone) && name == s {
			return Operator(i), true
		}
	}
	return OpNone, false
}

func (o Operator) IsRelational() bool {
	return o >= OpLess && o <= OpNotEqual
}

func (o Operator) IsUnary() bool {
	return o >= OpNot
}

type Node struct {
	Kind  Kind
	Op    Operator
	Value int64
	Name  NameID
	Left  *Node
	Right *Node
	// Stack offset of the bound variable (parameters and declarations).
	// Recorded by the IR generator.
	Offset int
	Loc    Location
}

func NewSeparator(item, next *Node) *Node {
	return &Node{Kind: KindSeparator, Left: item, Right: next}
}

func NewComma(item, next *Node) *Node {
	return &Node{Kind: KindComma, Left: item, Right: next}
}

func NewConstant(value int64) *Node {
	return &Node{Kind: KindConstant, Value: value}
}

func NewIdentifier(name NameID) *Node {
	return &Node{Kind: KindIdentifier, Name: name}
}

func NewOperator(op Operator, left, right *Node) *Node {
	return &Node{Kind: KindOperator, Op: op, Left: left, Right: right}
}

// Spine builds a right-leaning sequence of the given kind.
func Spine(kind Kind, items ...*Node) *Node {
	var head *Node
	for i := len(items) - 1; i >= 0; i-- {
		head = &Node{Kind: kind, Left: items[i], Right: head}
	}
	return head
}

// Items flattens a spine rooted at n. Nodes of another kind end the walk.
func (n *Node) Items(kind Kind) []*Node {
	items := []*Node{}
	for cur := n; cur != nil && cur.Kind == kind; cur = cur.Right {
		items = append(items, cur.Left)
	}
	return items
}

func (n *Node) GetLocation() Location {
	return n.Loc
}

// String renders the subtree as an s-expression.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("()")
		return
	}
	switch n.Kind {
	case KindConstant:
		fmt.Fprintf(sb, "%d", n.Value)
		return
	case KindIdentifier:
		fmt.Fprintf(sb, "#%d", n.Name)
		return
	case KindIn, KindBreak, KindContinue, KindAbort:
		fmt.Fprintf(sb, "(%s)", n.Kind)
		return
	case KindOperator:
		fmt.Fprintf(sb, "(%s ", n.Op)
	case KindFunction, KindVarDecl, KindCall:
		fmt.Fprintf(sb, "(%s #%d ", n.Kind, n.Name)
	default:
		fmt.Fprintf(sb, "(%s ", n.Kind)
	}
	n.Left.write(sb)
	if n.Right != nil {
		sb.WriteString(" ")
		n.Right.write(sb)
	}
	sb.WriteString(")")
}
