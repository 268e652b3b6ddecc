// Package expr describes argument expressions by shape, which is all that
// inference needs to know about them. A host builds these nodes from its own
// syntax tree; constructors link every child to its parent.
package expr

import (
	"go/token"
	"sync/atomic"

	"github.com/cottand/tyinfer/frontend/types"
)

type NodeID uint64

// Positioner allows finding the location in the original source file.
type Positioner interface {
	Pos() token.Pos // position of first character belonging to the node
	End() token.Pos // position of first character immediately after the node
}

// Range represents a range of positions in the source code.
type Range struct {
	PosStart token.Pos
	PosEnd   token.Pos
}

func (r Range) Pos() token.Pos { return r.PosStart }
func (r Range) End() token.Pos { return r.PosEnd }

// Expr is implemented by every expression shape
type Expr interface {
	Positioner
	ID() NodeID
	// Parent is the enclosing expression, or nil at the root
	Parent() Expr
	Shape() Shape
	setParent(Expr)
}

type Shape uint8

const (
	ShapeTyped Shape = iota
	ShapeParen
	ShapeConditional
	ShapeSwitch
	ShapeCall
	ShapeLambda
	ShapeMethodRef
)

func (s Shape) String() string {
	switch s {
	case ShapeTyped:
		return "typed"
	case ShapeParen:
		return "parenthesized"
	case ShapeConditional:
		return "conditional"
	case ShapeSwitch:
		return "switch"
	case ShapeCall:
		return "call"
	case ShapeLambda:
		return "lambda"
	case ShapeMethodRef:
		return "method reference"
	}
	return "unknown"
}

var nodeCount atomic.Uint64

type node struct {
	Range
	id     NodeID
	parent Expr
}

func newNode() node { return node{id: NodeID(nodeCount.Add(1))} }

func (n *node) ID() NodeID       { return n.id }
func (n *node) Parent() Expr     { return n.parent }
func (n *node) setParent(p Expr) { n.parent = p }

// Reparent makes parent the enclosing expression of child. Constructors already
// do this; hosts only need it when building trees out of order.
func Reparent(child, parent Expr) {
	if child != nil {
		child.setParent(parent)
	}
}

var (
	_ Expr = (*Typed)(nil)
	_ Expr = (*Paren)(nil)
	_ Expr = (*Conditional)(nil)
	_ Expr = (*Switch)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Lambda)(nil)
	_ Expr = (*MethodRef)(nil)
)

// Typed is a standalone expression whose type is already known, like a literal
// or a variable. Its Type may mention the parameter slots of enclosing lambdas.
type Typed struct {
	node
	Type types.Type
}

func NewTyped(t types.Type) *Typed {
	return &Typed{node: newNode(), Type: t}
}

func (*Typed) Shape() Shape { return ShapeTyped }

type Paren struct {
	node
	Inner Expr
}

func NewParen(inner Expr) *Paren {
	p := &Paren{node: newNode(), Inner: inner}
	Reparent(inner, p)
	return p
}

func (*Paren) Shape() Shape { return ShapeParen }

// Conditional is a ternary expression; only its branches matter to inference
type Conditional struct {
	node
	Then Expr
	Else Expr
}

func NewConditional(then, els Expr) *Conditional {
	c := &Conditional{node: newNode(), Then: then, Else: els}
	Reparent(then, c)
	Reparent(els, c)
	return c
}

func (*Conditional) Shape() Shape { return ShapeConditional }

// Switch is a switch expression; only its result expressions matter to inference
type Switch struct {
	node
	Results []Expr
}

func NewSwitch(results ...Expr) *Switch {
	s := &Switch{node: newNode(), Results: results}
	for _, r := range results {
		Reparent(r, s)
	}
	return s
}

func (*Switch) Shape() Shape { return ShapeSwitch }

// Call is a method invocation or a class instance creation.
type Call struct {
	node
	Method *types.Method
	Args   []Expr
	// TypeArgs are explicit type arguments, if any
	TypeArgs []types.Type
	// Site binds the type parameters of the qualifier's class, for example
	// E -> String when calling a method of List<String>
	Site types.Substitutor
	// Target is the type the context of a top-level call expects, or nil
	Target types.Type
}

func NewCall(method *types.Method, args ...Expr) *Call {
	c := &Call{node: newNode(), Method: method, Args: args}
	for _, arg := range args {
		Reparent(arg, c)
	}
	return c
}

func (*Call) Shape() Shape { return ShapeCall }

// ArgIndex returns the position of e among c's arguments, or -1
func (c *Call) ArgIndex(e Expr) int {
	for i, arg := range c.Args {
		if arg == e {
			return i
		}
	}
	return -1
}

// LambdaParam is a lambda parameter. Type is nil for implicitly typed
// parameters. Slot stands for the parameter's type inside the body.
type LambdaParam struct {
	Name string
	Type types.Type
	Slot *types.TypeParam
}

type Lambda struct {
	node
	Params []LambdaParam
	// Returns are the result expressions of the body
	Returns []Expr
	// VoidCompatible is set when the body may complete without a value,
	// for example a block without return values or a statement expression
	VoidCompatible bool
	// Thrown are the checked exceptions the body can throw
	Thrown []types.Type
}

// NewLambda creates a lambda with one parameter per name, all implicitly typed
func NewLambda(names []string, returns ...Expr) *Lambda {
	l := &Lambda{node: newNode(), Returns: returns}
	for _, name := range names {
		l.Params = append(l.Params, LambdaParam{Name: name, Slot: types.NewTypeParam(name)})
	}
	for _, r := range returns {
		Reparent(r, l)
	}
	return l
}

// NewTypedLambda creates a lambda whose parameters all have explicit types
func NewTypedLambda(names []string, paramTypes []types.Type, returns ...Expr) *Lambda {
	l := NewLambda(names, returns...)
	for i := range l.Params {
		l.Params[i].Type = paramTypes[i]
	}
	return l
}

func (*Lambda) Shape() Shape { return ShapeLambda }

// Slot returns the slot of the parameter called name, or nil
func (l *Lambda) Slot(name string) *types.TypeParam {
	for _, p := range l.Params {
		if p.Name == name {
			return p.Slot
		}
	}
	return nil
}

// AddReturn adds a result expression to the body
func (l *Lambda) AddReturn(e Expr) {
	l.Returns = append(l.Returns, e)
	Reparent(e, l)
}

// ExplicitlyTyped reports whether every parameter has a declared type.
// A lambda with no parameters is explicitly typed.
func (l *Lambda) ExplicitlyTyped() bool {
	for _, p := range l.Params {
		if p.Type == nil {
			return false
		}
	}
	return true
}

// MethodRef is a method reference such as String::length or list::add.
type MethodRef struct {
	node
	Qualifier types.Type
	// TypeQualified is set for ReferenceType::name forms, where an instance
	// method takes its receiver as the first function parameter
	TypeQualified bool
	// Candidates are the potentially applicable methods named by the reference
	Candidates []*types.Method
	TypeArgs   []types.Type
}

func NewMethodRef(qualifier types.Type, typeQualified bool, candidates ...*types.Method) *MethodRef {
	return &MethodRef{node: newNode(), Qualifier: qualifier, TypeQualified: typeQualified, Candidates: candidates}
}

func (*MethodRef) Shape() Shape { return ShapeMethodRef }

// Exact reports whether the reference names exactly one method which is
// neither variable arity nor generic (unless type arguments are given),
// and whose qualifier is not raw
func (m *MethodRef) Exact() bool {
	if len(m.Candidates) != 1 {
		return false
	}
	c := m.Candidates[0]
	if c.Varargs || (c.Generic() && len(m.TypeArgs) == 0) {
		return false
	}
	if q, ok := m.Qualifier.(*types.Class); ok && q.IsRaw() {
		return false
	}
	return true
}

// Unwrap strips parentheses
func Unwrap(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}
		e = p.Inner
	}
}
